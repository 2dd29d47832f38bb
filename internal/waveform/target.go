package waveform

import "sync"

// Target is the mount point an engine draws into.
type Target interface {
	Draw(Frame)
	Clear()
}

// Canvas is an in-memory Target that keeps the latest frame for readers such
// as the status API.
type Canvas struct {
	mu    sync.RWMutex
	frame Frame
	drawn bool
}

// NewCanvas creates an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{}
}

func (c *Canvas) Draw(f Frame) {
	c.mu.Lock()
	c.frame = f
	c.drawn = true
	c.mu.Unlock()
}

func (c *Canvas) Clear() {
	c.mu.Lock()
	c.frame = Frame{}
	c.drawn = false
	c.mu.Unlock()
}

// Snapshot returns the last drawn frame and whether anything is drawn.
func (c *Canvas) Snapshot() (Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame, c.drawn
}
