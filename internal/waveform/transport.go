package waveform

import (
	"sync"

	"github.com/gopxl/beep/v2"
)

// transport is the streamer an engine hands to its Output. It never runs dry:
// while stopped or paused it yields silence, so the Output can keep it
// attached for the engine's whole life.
type transport struct {
	mu       sync.Mutex
	src      beep.StreamSeeker
	playing  bool
	onFinish func()
}

func (t *transport) Stream(samples [][2]float64) (int, bool) {
	t.mu.Lock()
	if t.src == nil || !t.playing {
		t.mu.Unlock()
		clear(samples)
		return len(samples), true
	}

	n, _ := t.src.Stream(samples)
	clear(samples[n:])

	finished := t.src.Position() >= t.src.Len()
	if finished {
		t.playing = false
	}
	onFinish := t.onFinish
	t.mu.Unlock()

	if finished && onFinish != nil {
		onFinish()
	}
	return len(samples), true
}

func (t *transport) Err() error { return nil }

// set swaps the source and stops playback.
func (t *transport) set(src beep.StreamSeeker) {
	t.mu.Lock()
	t.src = src
	t.playing = false
	t.mu.Unlock()
}

// start begins playing from the current position. A source already at its end
// is rewound first. It reports false if there is nothing to play.
func (t *transport) start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.src == nil {
		return false
	}
	if t.src.Position() >= t.src.Len() {
		_ = t.src.Seek(0)
	}
	t.playing = true
	return true
}

func (t *transport) pause() {
	t.mu.Lock()
	t.playing = false
	t.mu.Unlock()
}

// stop halts playback and rewinds to the beginning.
func (t *transport) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playing = false
	if t.src != nil {
		_ = t.src.Seek(0)
	}
}

func (t *transport) isPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// progress returns the played fraction of the source.
func (t *transport) progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.src == nil || t.src.Len() == 0 {
		return 0
	}
	return float64(t.src.Position()) / float64(t.src.Len())
}
