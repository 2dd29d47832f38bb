package musicgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// maxClipBytes bounds a response body. 30s of 32kHz 16-bit stereo WAV is
// under 4 MiB; anything far larger is not a clip.
const maxClipBytes = 64 << 20

// RefineFunc rewrites a user prompt before generation. Returns empty string on
// failure (the original prompt is used).
type RefineFunc func(ctx context.Context, prompt string) string

// Client requests clips from a MusicGen web endpoint.
type Client struct {
	apiURL   string
	apiKey   string
	duration int // seconds, 0 lets the server decide
	http     *http.Client

	mu       sync.RWMutex
	refineFn RefineFunc
}

// NewClient creates a MusicGen API client.
func NewClient(apiURL, apiKey string, duration int, timeout time.Duration) *Client {
	return &Client{
		apiURL:   strings.TrimRight(apiURL, "/"),
		apiKey:   apiKey,
		duration: duration,
		http:     &http.Client{Timeout: timeout},
	}
}

// GenerateRequest is the /generate request body.
type GenerateRequest struct {
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration,omitempty"`
	Format   string `json:"format,omitempty"`
}

// GenerateOptions override the client defaults for one request.
type GenerateOptions struct {
	Duration int    // seconds, 0 uses the client default
	Format   string // "wav" or "mp3", empty means wav
}

// SetRefineFunc sets the optional prompt rewriter. Pass nil to send prompts as typed.
func (c *Client) SetRefineFunc(fn RefineFunc) {
	c.mu.Lock()
	c.refineFn = fn
	c.mu.Unlock()
}

// Generate submits prompt and returns the WAV bytes of the generated clip.
// Every failure is a *NetworkError.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return c.GenerateWith(ctx, prompt, GenerateOptions{})
}

// GenerateWith is Generate with a per-request duration and audio format.
func (c *Client) GenerateWith(ctx context.Context, prompt string, opts GenerateOptions) ([]byte, error) {
	duration := opts.Duration
	if duration <= 0 {
		duration = c.duration
	}
	format := opts.Format
	if format == "" {
		format = "wav"
	}

	c.mu.RLock()
	refineFn := c.refineFn
	c.mu.RUnlock()

	// Use a short timeout so a slow LLM never blocks generation.
	if refineFn != nil {
		refineCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if refined := refineFn(refineCtx, prompt); refined != "" {
			log.Printf("Prompt refined: %q -> %q", prompt, refined)
			prompt = refined
		}
		cancel()
	}

	body, err := json.Marshal(GenerateRequest{Prompt: prompt, Duration: duration, Format: format})
	if err != nil {
		return nil, &NetworkError{Op: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Op: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/"+format)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Op: "submit prompt", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &NetworkError{
			Op:     "generate",
			Status: resp.StatusCode,
			Err:    errors.New(strings.TrimSpace(string(msg))),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes+1))
	if err != nil {
		return nil, &NetworkError{Op: "read audio", Err: err}
	}
	if len(data) > maxClipBytes {
		return nil, &NetworkError{Op: "read audio", Err: fmt.Errorf("clip exceeds %d bytes", maxClipBytes)}
	}

	log.Printf("Clip received: %d bytes in %v", len(data), time.Since(start).Round(time.Millisecond))
	return data, nil
}

// NetworkError is a failed generation request.
type NetworkError struct {
	Op     string
	Status int // HTTP status, 0 if the request never completed
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("musicgen %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("musicgen %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
