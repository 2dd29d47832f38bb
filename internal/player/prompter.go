package player

import (
	"context"
	"log"
	"sync"
)

// AudioSource turns a text prompt into WAV bytes.
type AudioSource interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Prompter submits prompts to an AudioSource and loads the results into a
// Controller. Only the most recent prompt's response is ever loaded.
type Prompter struct {
	source AudioSource
	ctrl   *Controller

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewPrompter creates a prompter feeding ctrl from source.
func NewPrompter(source AudioSource, ctrl *Controller) *Prompter {
	return &Prompter{source: source, ctrl: ctrl}
}

// Submit requests audio for prompt and loads it. Submitting cancels the
// previous in-flight request; a response that is no longer the latest is
// dropped with ErrStale. Source errors are returned as-is and leave the
// controller untouched.
func (p *Prompter) Submit(ctx context.Context, prompt string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.seq++
	seq := p.seq
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.mu.Unlock()

	log.Printf("Generating: %q", prompt)
	data, err := p.source.Generate(ctx, prompt)

	p.mu.Lock()
	defer p.mu.Unlock()

	if seq != p.seq {
		log.Printf("Discarding stale response for %q", prompt)
		return ErrStale
	}
	p.cancel = nil

	if err != nil {
		log.Printf("Generate failed for %q: %v", prompt, err)
		return err
	}

	if err := p.ctrl.Load(data); err != nil {
		log.Printf("Load failed for %q: %v", prompt, err)
		return err
	}
	log.Printf("Loaded %d bytes for %q", len(data), prompt)
	return nil
}
