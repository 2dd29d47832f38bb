package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/satindergrewal/tunegen/internal/waveform"
)

// Output modes for rendered playback.
const (
	OutputStream  = "stream"  // HTTP MP3 + WebRTC to browsers
	OutputSpeaker = "speaker" // local sound device
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// MusicGen backend
	MusicGenAPIURL  string
	MusicGenAPIKey  string
	MusicGenTimeout time.Duration
	ClipDuration    int // seconds of audio per prompt

	// Server
	Port      int
	Output    string // OutputStream or OutputSpeaker
	MP3Kbps   int
	OpusKbps  int
	ThemeFile string

	// Prompt refinement (optional)
	OllamaURL   string
	OllamaModel string
	Refine      bool

	// Discord slash-command bot (optional)
	DiscordPublicKey string // hex Ed25519 application key, empty disables /discord
}

// Load reads configuration from the environment with sane defaults. A .env
// file in the working directory is applied first when present; variables
// already set in the environment win.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring .env: %v", err)
	}

	return Config{
		MusicGenAPIURL:  envStr("MUSICGEN_API_URL", "http://localhost:8000"),
		MusicGenAPIKey:  envStr("MUSICGEN_API_KEY", ""),
		MusicGenTimeout: time.Duration(envInt("MUSICGEN_TIMEOUT", 300)) * time.Second,
		ClipDuration:    envInt("MUSICGEN_DURATION", 10),

		Port:      envInt("TUNEGEN_PORT", 8080),
		Output:    envOutput("TUNEGEN_OUTPUT", OutputStream),
		MP3Kbps:   envInt("TUNEGEN_MP3_KBPS", 192),
		OpusKbps:  envInt("TUNEGEN_OPUS_KBPS", 128),
		ThemeFile: envStr("TUNEGEN_THEME_FILE", ""),

		OllamaURL:   envStr("OLLAMA_URL", ""),
		OllamaModel: envStr("OLLAMA_MODEL", "qwen3"),
		Refine:      envBool("TUNEGEN_REFINE", true),

		DiscordPublicKey: envStr("DISCORD_PUBLIC_KEY", ""),
	}
}

// LoadTheme reads waveform options from a YAML file. Keys missing from the
// file keep their defaults; an empty path or a missing file yields the
// defaults unchanged.
func LoadTheme(path string) (waveform.Options, error) {
	opts := waveform.DefaultOptions()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, fmt.Errorf("read theme file: %w", err)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return waveform.DefaultOptions(), fmt.Errorf("parse theme file: %w", err)
	}
	if opts.MinPxPerSec <= 0 {
		return waveform.DefaultOptions(), fmt.Errorf("parse theme file: min_px_per_sec must be positive, got %v", opts.MinPxPerSec)
	}
	return opts, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envOutput(key, fallback string) string {
	switch v := strings.ToLower(os.Getenv(key)); v {
	case OutputStream, OutputSpeaker:
		return v
	case "":
		return fallback
	default:
		log.Printf("Unknown %s=%q, using %q", key, v, fallback)
		return fallback
	}
}
