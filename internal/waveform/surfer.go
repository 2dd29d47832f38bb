package waveform

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"github.com/satindergrewal/tunegen/internal/blob"
)

var (
	ErrNoMedia   = errors.New("waveform: no media loaded")
	ErrDestroyed = errors.New("waveform: engine destroyed")
	ErrNoTarget  = errors.New("waveform: nil render target")
)

// resampleQuality trades CPU for fidelity when converting clip rates to the
// output rate. beep accepts 1 through 64.
const resampleQuality = 4

// redrawInterval paces progress redraws while playing.
const redrawInterval = 100 * time.Millisecond

// Resolver dereferences object URLs.
type Resolver interface {
	Resolve(url string) (*blob.Blob, error)
}

// Output plays a streamer at a fixed sample rate.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Clear()
}

// Surfer decodes WAV clips, draws their bar waveform into a Target and plays
// them through an Output.
type Surfer struct {
	target   Target
	opts     Options
	resolver Resolver
	out      Output

	events *emitter
	tr     *transport
	quit   chan struct{}

	mu        sync.Mutex
	destroyed bool
	bars      []float64
	width     int
	duration  time.Duration
}

// NewSurfer builds an engine bound to target and attaches its transport to out.
func NewSurfer(target Target, opts Options, resolver Resolver, out Output) (*Surfer, error) {
	if target == nil {
		return nil, ErrNoTarget
	}
	s := &Surfer{
		target:   target,
		opts:     opts,
		resolver: resolver,
		out:      out,
		events:   newEmitter(),
		tr:       &transport{},
		quit:     make(chan struct{}),
	}
	s.tr.onFinish = s.finished
	out.Play(s.tr)
	go s.animate()
	return s, nil
}

// Load resolves url, decodes it and renders its waveform. Playback stops. On
// failure the previously loaded clip stays active.
func (s *Surfer) Load(url string) error {
	if s.isDestroyed() {
		return ErrDestroyed
	}
	b, err := s.resolver.Resolve(url)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", url, err)
	}

	streamer, format, err := wav.Decode(bytes.NewReader(b.Bytes()))
	if err != nil {
		return fmt.Errorf("decode wav: %w", err)
	}
	defer streamer.Close()
	if format.SampleRate <= 0 || format.NumChannels <= 0 {
		return fmt.Errorf("decode wav: invalid format %+v", format)
	}

	rate := s.out.SampleRate()
	buf := beep.NewBuffer(beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2})
	buf.Append(beep.Resample(resampleQuality, format.SampleRate, rate, streamer))
	if err := streamer.Err(); err != nil {
		return fmt.Errorf("read wav: %w", err)
	}

	samples := make([][2]float64, buf.Len())
	all := buf.Streamer(0, buf.Len())
	n, _ := all.Stream(samples)
	samples = samples[:n]

	duration := rate.D(buf.Len())
	width, nbars := layout(duration, s.opts)

	s.mu.Lock()
	s.bars = peaks(samples, nbars)
	s.width = width
	s.duration = duration
	s.mu.Unlock()

	s.tr.set(buf.Streamer(0, buf.Len()))
	s.redraw()
	s.events.emit(EventReady)

	log.Printf("Waveform loaded: %v, %d bars", duration, nbars)
	return nil
}

// Play starts or resumes playback.
func (s *Surfer) Play() error {
	if s.isDestroyed() {
		return ErrDestroyed
	}
	if !s.tr.start() {
		return ErrNoMedia
	}
	s.redraw()
	s.events.emit(EventPlay)
	return nil
}

// Pause halts playback at the current position.
func (s *Surfer) Pause() error {
	if s.isDestroyed() {
		return ErrDestroyed
	}
	s.tr.pause()
	s.redraw()
	s.events.emit(EventPause)
	return nil
}

// PlayPause flips between playing and paused.
func (s *Surfer) PlayPause() error {
	if s.isDestroyed() {
		return ErrDestroyed
	}
	if s.tr.isPlaying() {
		return s.Pause()
	}
	return s.Play()
}

// Stop halts playback and seeks to the beginning.
func (s *Surfer) Stop() error {
	if s.isDestroyed() {
		return ErrDestroyed
	}
	s.tr.stop()
	s.redraw()
	return nil
}

// On subscribes fn to ev. The returned function unsubscribes.
func (s *Surfer) On(ev Event, fn func()) func() {
	return s.events.on(ev, fn)
}

// ListenerCount returns the number of subscribed handlers.
func (s *Surfer) ListenerCount() int {
	return s.events.count()
}

// Playing reports whether the transport is running.
func (s *Surfer) Playing() bool {
	return s.tr.isPlaying()
}

// Destroy detaches the engine from its output and target and drops every
// subscription. Only the first call has an effect.
func (s *Surfer) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrDestroyed
	}
	s.destroyed = true
	s.bars = nil
	s.target.Clear()
	s.mu.Unlock()

	close(s.quit)
	s.tr.set(nil)
	s.out.Clear()
	s.events.stop(EventDestroy)
	return nil
}

// Frame renders the current state without drawing it.
func (s *Surfer) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

func (s *Surfer) frameLocked() Frame {
	return Frame{
		Bars:     s.bars,
		Width:    s.width,
		Progress: s.tr.progress(),
		Duration: s.duration,
		Playing:  s.tr.isPlaying(),
		Options:  s.opts,
	}
}

// animate keeps the target's progress current during playback.
func (s *Surfer) animate() {
	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			if s.tr.isPlaying() {
				s.redraw()
			}
		}
	}
}

func (s *Surfer) finished() {
	s.redraw()
	s.events.emit(EventFinish)
}

// redraw draws under s.mu so no frame lands on the target after Destroy
// cleared it.
func (s *Surfer) redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.target.Draw(s.frameLocked())
}

func (s *Surfer) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
