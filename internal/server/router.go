package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/satindergrewal/tunegen/internal/web"
)

// Endpoints are the optional handlers mounted beside the API. Nil handlers
// are not routed.
type Endpoints struct {
	MP3     http.Handler // GET /stream
	Offer   http.Handler // POST /offer
	Discord http.Handler // POST /discord
}

// SetupRouter creates and configures the Gin router.
func SetupRouter(api *API, ep Endpoints) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// Web UI
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/generate", api.Generate)
		apiGroup.POST("/playpause", api.PlayPause)
		apiGroup.POST("/restart", api.Restart)
		apiGroup.GET("/status", api.Status)
		apiGroup.GET("/save", api.Save)
		apiGroup.GET("/presets", api.Presets)
		apiGroup.GET("/events", api.Events)
	}

	// Audio streams
	if ep.MP3 != nil {
		r.GET("/stream", gin.WrapH(ep.MP3))
	}
	if ep.Offer != nil {
		r.POST("/offer", gin.WrapH(ep.Offer))
	}

	// Discord interactions
	if ep.Discord != nil {
		r.POST("/discord", gin.WrapH(ep.Discord))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// corsMiddleware handles CORS for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
