package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/satindergrewal/tunegen/internal/blob"
	"github.com/satindergrewal/tunegen/internal/musicgen"
	"github.com/satindergrewal/tunegen/internal/player"
	"github.com/satindergrewal/tunegen/internal/presets"
	"github.com/satindergrewal/tunegen/internal/stream"
	"github.com/satindergrewal/tunegen/internal/waveform"
)

// ListenerCounter reports connected stream listeners by kind.
type ListenerCounter interface {
	Counts() map[stream.Kind]int
}

// API handles HTTP control endpoints.
type API struct {
	ctrl      *player.Controller
	prompter  *player.Prompter
	canvas    *waveform.Canvas
	listeners ListenerCounter // nil when not streaming
	started   time.Time

	mu    sync.Mutex
	genre string // preset of the live clip, for download names
}

// NewAPI creates a new API handler. listeners may be nil.
func NewAPI(ctrl *player.Controller, prompter *player.Prompter, canvas *waveform.Canvas, listeners ListenerCounter) *API {
	return &API{
		ctrl:      ctrl,
		prompter:  prompter,
		canvas:    canvas,
		listeners: listeners,
		started:   time.Now(),
	}
}

// GenerateRequest is the request body for the generate endpoint.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Genre  string `json:"genre"`
}

// StatusResponse describes the player as the UI renders it.
type StatusResponse struct {
	State     string              `json:"state"`
	Mounted   bool                `json:"mounted"`
	Resource  string              `json:"resource,omitempty"`
	Size      int                 `json:"size,omitempty"`
	Genre     string              `json:"genre,omitempty"`
	Frame     *waveform.Frame     `json:"frame,omitempty"`
	Listeners map[stream.Kind]int `json:"listeners,omitempty"`
	Uptime    float64             `json:"uptime"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Generate turns a prompt into a clip and loads it.
func (a *API) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if req.Genre != "" && !presets.IsValid(req.Genre) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown genre " + req.Genre})
		return
	}

	prompt := presets.Compose(req.Genre, req.Prompt)
	if prompt == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "prompt is required"})
		return
	}

	log.Printf("[API] Generate request: genre=%q prompt=%q", req.Genre, prompt)

	if err := a.prompter.Submit(c.Request.Context(), prompt); err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	a.mu.Lock()
	a.genre = req.Genre
	a.mu.Unlock()

	c.JSON(http.StatusOK, a.status())
}

// PlayPause toggles playback.
func (a *API) PlayPause(c *gin.Context) {
	if err := a.ctrl.TogglePlayPause(); err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, a.status())
}

// Restart plays the clip from the beginning.
func (a *API) Restart(c *gin.Context) {
	if err := a.ctrl.Restart(); err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, a.status())
}

// Status reports the player state and the latest waveform frame.
func (a *API) Status(c *gin.Context) {
	c.JSON(http.StatusOK, a.status())
}

// Save downloads the live clip.
func (a *API) Save(c *gin.Context) {
	url, b, ok := a.ctrl.Resource()
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no clip loaded"})
		return
	}

	a.mu.Lock()
	name := presets.FileName(a.genre, url)
	a.mu.Unlock()

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, b.Type(), b.Bytes())
}

// Presets lists the genre presets.
func (a *API) Presets(c *gin.Context) {
	c.JSON(http.StatusOK, presets.All())
}

// Events streams state changes as server-sent events until the client leaves.
func (a *API) Events(c *gin.Context) {
	w := a.ctrl.Watch()
	defer a.ctrl.Unwatch(w)

	ctx := c.Request.Context()
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case st := <-w.C:
			c.SSEvent("state", st.String())
			return true
		}
	})
}

func (a *API) status() StatusResponse {
	resp := StatusResponse{
		State:   a.ctrl.State().String(),
		Mounted: a.ctrl.Mounted(),
		Uptime:  time.Since(a.started).Seconds(),
	}
	if url, b, ok := a.ctrl.Resource(); ok {
		resp.Resource = url
		resp.Size = b.Size()
		a.mu.Lock()
		resp.Genre = a.genre
		a.mu.Unlock()
	}
	if a.canvas != nil {
		if f, drawn := a.canvas.Snapshot(); drawn {
			resp.Frame = &f
		}
	}
	if a.listeners != nil {
		resp.Listeners = a.listeners.Counts()
	}
	return resp
}

// statusFor maps playback and generation failures to HTTP statuses.
func statusFor(err error) int {
	var loadErr *player.LoadError
	var netErr *musicgen.NetworkError
	switch {
	case errors.Is(err, player.ErrStale), errors.Is(err, player.ErrNotMounted):
		return http.StatusConflict
	case errors.As(err, &loadErr), errors.Is(err, blob.ErrMalformed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &netErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
