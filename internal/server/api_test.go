package server

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gopxl/beep/v2"

	"github.com/satindergrewal/tunegen/internal/blob"
	"github.com/satindergrewal/tunegen/internal/musicgen"
	"github.com/satindergrewal/tunegen/internal/player"
	"github.com/satindergrewal/tunegen/internal/stream"
	"github.com/satindergrewal/tunegen/internal/waveform"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// toneWAV builds a 16-bit mono 8kHz WAV of n half-scale samples.
func toneWAV(n int) []byte {
	dataLen := n * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], 1)
	binary.LittleEndian.PutUint32(buf[24:], 8000)
	binary.LittleEndian.PutUint32(buf[28:], 16000)
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[44+2*i:], uint16(16384))
	}
	return buf
}

// silentOutput accepts a streamer and never pulls from it.
type silentOutput struct{}

func (silentOutput) SampleRate() beep.SampleRate { return 8000 }
func (silentOutput) Play(beep.Streamer)          {}
func (silentOutput) Clear()                      {}

// sourceFunc adapts a function to player.AudioSource.
type sourceFunc func(ctx context.Context, prompt string) ([]byte, error)

func (f sourceFunc) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return f(ctx, prompt)
}

type staticCounts map[stream.Kind]int

func (s staticCounts) Counts() map[stream.Kind]int { return s }

type testEnv struct {
	router *gin.Engine
	ctrl   *player.Controller
	canvas *waveform.Canvas

	mu      sync.Mutex
	prompts []string
}

func (e *testEnv) lastPrompt() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.prompts) == 0 {
		return ""
	}
	return e.prompts[len(e.prompts)-1]
}

// setupTestRouter wires a mounted controller backed by a real waveform
// engine. gen produces the audio for every prompt.
func setupTestRouter(t *testing.T, mount bool, gen sourceFunc) *testEnv {
	t.Helper()
	store := blob.NewStore()
	ctrl := player.New(player.SurferFactory(store, silentOutput{}), store, waveform.DefaultOptions())
	canvas := waveform.NewCanvas()
	if mount {
		if err := ctrl.Mount(canvas); err != nil {
			t.Fatalf("Mount: %v", err)
		}
	}
	t.Cleanup(ctrl.Unmount)

	env := &testEnv{ctrl: ctrl, canvas: canvas}
	src := sourceFunc(func(ctx context.Context, prompt string) ([]byte, error) {
		env.mu.Lock()
		env.prompts = append(env.prompts, prompt)
		env.mu.Unlock()
		return gen(ctx, prompt)
	})
	api := NewAPI(ctrl, player.NewPrompter(src, ctrl), canvas, staticCounts{stream.KindHTTP: 2})
	env.router = SetupRouter(api, Endpoints{})
	return env
}

func okSource(n int) sourceFunc {
	return func(context.Context, string) ([]byte, error) { return toneWAV(n), nil }
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) StatusResponse {
	t.Helper()
	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode status %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestRouter(t, true, okSource(8))

	w := do(t, env.router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestIndexPage(t *testing.T) {
	env := setupTestRouter(t, true, okSource(8))

	w := do(t, env.router, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<canvas") {
		t.Error("index page missing waveform canvas")
	}
}

func TestGenerateLoadsClip(t *testing.T) {
	env := setupTestRouter(t, true, okSource(800))

	w := do(t, env.router, http.MethodPost, "/api/generate", `{"prompt": "upbeat jazz piano"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeStatus(t, w)
	if resp.State != "stopped" {
		t.Errorf("state = %q, want stopped", resp.State)
	}
	if !strings.HasPrefix(resp.Resource, blob.URLPrefix) {
		t.Errorf("resource = %q, want object URL", resp.Resource)
	}
	if resp.Size != 44+1600 {
		t.Errorf("size = %d, want %d", resp.Size, 44+1600)
	}
	if resp.Frame == nil || len(resp.Frame.Bars) == 0 {
		t.Fatalf("frame not drawn: %+v", resp.Frame)
	}
	if resp.Listeners[stream.KindHTTP] != 2 {
		t.Errorf("listeners = %v", resp.Listeners)
	}
	if env.lastPrompt() != "upbeat jazz piano" {
		t.Errorf("prompt = %q", env.lastPrompt())
	}
}

func TestGenerateWithPreset(t *testing.T) {
	env := setupTestRouter(t, true, okSource(8))

	w := do(t, env.router, http.MethodPost, "/api/generate", `{"genre": "jazz"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(env.lastPrompt(), "jazz") {
		t.Errorf("preset prompt not used: %q", env.lastPrompt())
	}
	if resp := decodeStatus(t, w); resp.Genre != "jazz" {
		t.Errorf("genre = %q, want jazz", resp.Genre)
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	env := setupTestRouter(t, true, okSource(8))

	tests := []struct {
		name string
		body string
	}{
		{"empty prompt", `{"prompt": "   "}`},
		{"unknown genre", `{"prompt": "x", "genre": "polka"}`},
		{"not json", `prompt=x`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, env.router, http.MethodPost, "/api/generate", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})
	}
	if env.lastPrompt() != "" {
		t.Errorf("source called for rejected input: %q", env.lastPrompt())
	}
}

func TestGenerateErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		gen  sourceFunc
		want int
	}{
		{
			name: "backend down",
			gen: func(context.Context, string) ([]byte, error) {
				return nil, &musicgen.NetworkError{Op: "generate", Status: 503, Err: errors.New("busy")}
			},
			want: http.StatusBadGateway,
		},
		{
			name: "not a wav",
			gen: func(context.Context, string) ([]byte, error) {
				return []byte("<html>oops</html>"), nil
			},
			want: http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter(t, true, tt.gen)
			w := do(t, env.router, http.MethodPost, "/api/generate", `{"prompt": "x"}`)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if _, _, ok := env.ctrl.Resource(); ok {
				t.Error("failed generation left a live clip")
			}
		})
	}
}

func TestGenerateSupersededReturnsConflict(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	env := setupTestRouter(t, true, func(ctx context.Context, prompt string) ([]byte, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
		return toneWAV(8), nil
	})

	firstDone := make(chan *httptest.ResponseRecorder)
	go func() {
		firstDone <- do(t, env.router, http.MethodPost, "/api/generate", `{"prompt": "first"}`)
	}()
	<-entered

	w := do(t, env.router, http.MethodPost, "/api/generate", `{"prompt": "second"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("second: expected status 200, got %d", w.Code)
	}
	close(release)

	first := <-firstDone
	if first.Code != http.StatusConflict {
		t.Errorf("first: expected status 409, got %d", first.Code)
	}
}

func TestTransportWithoutEngine(t *testing.T) {
	env := setupTestRouter(t, false, okSource(8))

	for _, path := range []string{"/api/playpause", "/api/restart"} {
		w := do(t, env.router, http.MethodPost, path, "")
		if w.Code != http.StatusConflict {
			t.Errorf("%s: expected status 409, got %d", path, w.Code)
		}
	}
}

func TestPlayPauseAndRestart(t *testing.T) {
	env := setupTestRouter(t, true, okSource(800))
	do(t, env.router, http.MethodPost, "/api/generate", `{"prompt": "x"}`)

	steps := []struct {
		path string
		want string
	}{
		{"/api/playpause", "playing"},
		{"/api/playpause", "paused"},
		{"/api/restart", "playing"},
	}
	for _, s := range steps {
		w := do(t, env.router, http.MethodPost, s.path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", s.path, w.Code)
		}
		if got := decodeStatus(t, w).State; got != s.want {
			t.Errorf("%s: state = %q, want %q", s.path, got, s.want)
		}
	}
}

func TestSave(t *testing.T) {
	env := setupTestRouter(t, true, okSource(8))

	if w := do(t, env.router, http.MethodGet, "/api/save", ""); w.Code != http.StatusNotFound {
		t.Errorf("save before generate: expected 404, got %d", w.Code)
	}

	do(t, env.router, http.MethodPost, "/api/generate", `{"prompt": "x", "genre": "lofi"}`)
	w := do(t, env.router, http.MethodGet, "/api/save", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != blob.TypeWAV {
		t.Errorf("Content-Type = %q", ct)
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "lofi-") || !strings.HasSuffix(cd, `.wav"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if w.Body.Len() != len(toneWAV(8)) {
		t.Errorf("body = %d bytes, want %d", w.Body.Len(), len(toneWAV(8)))
	}
}

func TestPresetsEndpoint(t *testing.T) {
	env := setupTestRouter(t, true, okSource(8))

	w := do(t, env.router, http.MethodGet, "/api/presets", "")
	var list []struct {
		Name    string   `json:"name"`
		Prompt  string   `json:"prompt"`
		Related []string `json:"related"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) == 0 || list[0].Prompt == "" || len(list[0].Related) == 0 {
		t.Errorf("presets = %+v", list)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestRouter(t, true, okSource(8))

	w := do(t, env.router, http.MethodOptions, "/api/generate", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestOptionalEndpoints(t *testing.T) {
	env := setupTestRouter(t, true, okSource(8))
	if w := do(t, env.router, http.MethodPost, "/discord", `{"type":1}`); w.Code != http.StatusNotFound {
		t.Errorf("/discord without a bot: status %d, want 404", w.Code)
	}

	bot := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":1}`))
	})
	router := SetupRouter(NewAPI(env.ctrl, nil, env.canvas, nil), Endpoints{Discord: bot})
	w := do(t, router, http.MethodPost, "/discord", `{"type":1}`)
	if w.Code != http.StatusOK || w.Body.String() != `{"type":1}` {
		t.Errorf("/discord: status %d body %q", w.Code, w.Body.String())
	}
}

func TestEventsStream(t *testing.T) {
	env := setupTestRouter(t, true, okSource(800))
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data:"); ok {
				return data
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	if got := next(); got != "stopped" {
		t.Errorf("initial event = %q, want stopped", got)
	}

	do(t, env.router, http.MethodPost, "/api/generate", `{"prompt": "x"}`)
	do(t, env.router, http.MethodPost, "/api/playpause", "")
	if got := next(); got != "playing" {
		t.Errorf("event after play = %q, want playing", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{player.ErrStale, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", player.ErrNotMounted), http.StatusConflict},
		{&player.LoadError{Stage: "engine", Err: errors.New("bad")}, http.StatusUnprocessableEntity},
		{&musicgen.NetworkError{Op: "generate", Err: context.DeadlineExceeded}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
