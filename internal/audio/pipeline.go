package audio

import (
	"context"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// Pipeline pulls PCM from the attached streamer and emits 20ms frames at
// real-time rate. With nothing attached it emits silence so downstream
// encoders keep a steady clock.
type Pipeline struct {
	frameCh chan []int16

	mu     sync.Mutex
	source beep.Streamer
	frames int64
}

// NewPipeline creates an idle pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		frameCh: make(chan []int16, 100),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// SampleRate is the rate attached streamers must produce.
func (p *Pipeline) SampleRate() beep.SampleRate {
	return Rate
}

// Play attaches s, replacing whatever was attached.
func (p *Pipeline) Play(s beep.Streamer) {
	p.mu.Lock()
	p.source = s
	p.mu.Unlock()
}

// Clear detaches the current streamer.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	p.source = nil
	p.mu.Unlock()
}

// Uptime returns how much audio the pipeline has emitted.
func (p *Pipeline) Uptime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.frames) * FrameDuration
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		if !p.sendFrame(ctx, ticker, p.nextFrame()) {
			return
		}
	}
}

// nextFrame renders one frame from the attached streamer.
func (p *Pipeline) nextFrame() []int16 {
	p.mu.Lock()
	src := p.source
	p.frames++
	p.mu.Unlock()

	frame := make([]int16, FrameSamples)
	if src == nil {
		return frame
	}

	// Stream without the lock: the source may call back into its owner,
	// which in turn may Clear this pipeline.
	buf := make([][2]float64, FrameSize)
	n, ok := src.Stream(buf)
	ToInt16(frame, buf[:n])
	if !ok {
		p.mu.Lock()
		if p.source == src {
			p.source = nil
		}
		p.mu.Unlock()
	}
	return frame
}

// sendFrame waits for the ticker then sends a frame. Returns false on cancel.
func (p *Pipeline) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}
