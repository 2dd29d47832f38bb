package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/satindergrewal/tunegen/internal/audio"
	"github.com/satindergrewal/tunegen/internal/blob"
	"github.com/satindergrewal/tunegen/internal/config"
	"github.com/satindergrewal/tunegen/internal/discord"
	"github.com/satindergrewal/tunegen/internal/musicgen"
	"github.com/satindergrewal/tunegen/internal/ollama"
	"github.com/satindergrewal/tunegen/internal/player"
	"github.com/satindergrewal/tunegen/internal/server"
	"github.com/satindergrewal/tunegen/internal/stream"
	"github.com/satindergrewal/tunegen/internal/waveform"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("tunegen starting up...")

	theme, err := config.LoadTheme(cfg.ThemeFile)
	if err != nil {
		log.Printf("Theme not applied: %v", err)
	}

	// MusicGen client
	client := musicgen.NewClient(cfg.MusicGenAPIURL, cfg.MusicGenAPIKey, cfg.ClipDuration, cfg.MusicGenTimeout)

	// Ollama LLM (optional -- expands short prompts)
	if cfg.OllamaURL != "" && cfg.Refine {
		ollamaClient := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel)

		readyCtx, readyCancel := context.WithTimeout(ctx, 30*time.Second)
		if ollamaClient.WaitForReady(readyCtx) {
			client.SetRefineFunc(ollama.NewRefiner(ollamaClient).Refine)
			log.Printf("Ollama connected: %s (prompt refinement enabled)", cfg.OllamaModel)
		} else {
			log.Println("Ollama not available, sending prompts as typed")
		}
		readyCancel()
	} else {
		log.Println("Ollama not configured (set OLLAMA_URL to enable prompt refinement)")
	}

	// Playback output: browser streams or the local sound device
	var (
		out       waveform.Output
		endpoints server.Endpoints
		listeners server.ListenerCounter
		peers     *stream.WebRTCHandler
	)
	switch cfg.Output {
	case config.OutputSpeaker:
		spk, err := audio.NewSpeaker()
		if err != nil {
			log.Fatalf("Speaker output unavailable: %v", err)
		}
		out = spk
		log.Println("Playing through the local sound device")
	default:
		pipeline := audio.NewPipeline()
		go pipeline.Run(ctx)

		// Broadcaster: fan-out PCM frames to all listeners
		broadcaster := stream.NewBroadcaster()
		go broadcaster.Run(ctx, pipeline.Frames())

		peers = stream.NewWebRTCHandler(broadcaster, cfg.OpusKbps)
		endpoints.MP3 = stream.NewHTTPHandler(broadcaster, "tunegen", cfg.MP3Kbps)
		endpoints.Offer = peers
		out = pipeline
		listeners = broadcaster
	}

	// Playback controller with a server-side canvas the UI polls
	store := blob.NewStore()
	ctrl := player.New(player.SurferFactory(store, out), store, theme)
	canvas := waveform.NewCanvas()
	if err := ctrl.Mount(canvas); err != nil {
		log.Fatalf("Waveform engine: %v", err)
	}
	defer ctrl.Unmount()

	prompter := player.NewPrompter(client, ctrl)

	// Discord bot (optional -- /generate slash command answered with a file)
	var bot *discord.Bot
	if cfg.DiscordPublicKey != "" {
		key, err := hex.DecodeString(cfg.DiscordPublicKey)
		if err != nil || len(key) != ed25519.PublicKeySize {
			log.Fatalf("DISCORD_PUBLIC_KEY must be a %d-byte hex key", ed25519.PublicKeySize)
		}
		bot = discord.NewBot(ctx, ed25519.PublicKey(key), client, cfg.ClipDuration)
		endpoints.Discord = bot
		log.Println("Discord interactions enabled on /discord")
	}

	gin.SetMode(gin.ReleaseMode)
	api := server.NewAPI(ctrl, prompter, canvas, listeners)
	router := server.SetupRouter(api, endpoints)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if peers != nil {
			peers.Close()
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
		}
	}()

	log.Printf("tunegen live on %s (backend %s)", addr, cfg.MusicGenAPIURL)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
	if bot != nil {
		bot.Wait()
	}
}
