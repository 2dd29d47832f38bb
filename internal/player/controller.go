package player

import (
	"fmt"
	"log"
	"sync"

	"github.com/satindergrewal/tunegen/internal/blob"
	"github.com/satindergrewal/tunegen/internal/waveform"
)

// Controller owns one waveform engine per mounted render target, feeds it
// clips as object URLs and mirrors the engine's play/finish events into an
// observable State.
type Controller struct {
	factory EngineFactory
	store   *blob.Store
	opts    waveform.Options

	mu         sync.Mutex
	target     waveform.Target
	engine     Engine
	generation int
	unsubs     []func()
	current    string // live object URL, empty if none
	pending    []byte // clip waiting for an engine
	state      State
	watchers   map[*Watcher]struct{}
}

// New creates an unmounted controller. Engines built by factory must resolve
// URLs through store.
func New(factory EngineFactory, store *blob.Store, opts waveform.Options) *Controller {
	return &Controller{
		factory:  factory,
		store:    store,
		opts:     opts,
		state:    Stopped,
		watchers: make(map[*Watcher]struct{}),
	}
}

// Mount binds the controller to target, building an engine if none exists
// for it. A nil target is not ready yet and is ignored. Mounting a different
// target replaces the current engine.
func (c *Controller) Mount(target waveform.Target) error {
	if target == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine != nil {
		if c.target == target {
			return nil
		}
		c.releaseLocked()
	}
	return c.ensureEngineLocked(target)
}

// Unmount releases the engine and revokes the live object URL. The clip
// itself is kept and reloaded on the next Mount.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return
	}
	c.releaseLocked()
}

// Mounted reports whether an engine exists.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine != nil
}

// Load makes buf the current clip. Before an engine exists the buffer is
// validated, copied and held (replacing any earlier held buffer) until Mount.
// On failure a *LoadError is returned and the previous clip stays current.
func (c *Controller) Load(buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		b, err := blob.New(buf, blob.TypeWAV)
		if err != nil {
			return &LoadError{Stage: "blob", Err: err}
		}
		if c.pending != nil {
			log.Println("Pending clip superseded before an engine was mounted")
		}
		c.pending = b.Bytes()
		return nil
	}
	return c.loadLocked(buf)
}

// TogglePlayPause flips the engine's transport and the visible state.
func (c *Controller) TogglePlayPause() error {
	c.mu.Lock()
	eng, prev, gen := c.engine, c.state, c.generation
	c.mu.Unlock()
	if eng == nil {
		return ErrNotMounted
	}

	if err := eng.PlayPause(); err != nil {
		return fmt.Errorf("play/pause: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.setStateLocked(prev.toggled())
	}
	return nil
}

// Restart seeks to the beginning and plays.
func (c *Controller) Restart() error {
	c.mu.Lock()
	eng, gen := c.engine, c.generation
	c.mu.Unlock()
	if eng == nil {
		return ErrNotMounted
	}

	if err := eng.Stop(); err != nil {
		return fmt.Errorf("restart: stop: %w", err)
	}
	if err := eng.Play(); err != nil {
		return fmt.Errorf("restart: play: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.setStateLocked(Playing)
	}
	return nil
}

// State returns the current transport state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resource returns the live object URL and its blob.
func (c *Controller) Resource() (string, *blob.Blob, bool) {
	c.mu.Lock()
	u := c.current
	c.mu.Unlock()
	if u == "" {
		return "", nil, false
	}
	b, err := c.store.Resolve(u)
	if err != nil {
		return "", nil, false
	}
	return u, b, true
}

func (c *Controller) ensureEngineLocked(target waveform.Target) error {
	eng, err := c.factory(target, c.opts)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	c.generation++
	gen := c.generation
	c.engine = eng
	c.target = target
	c.unsubs = []func(){
		eng.On(waveform.EventPlay, c.onEngineEvent(gen, Playing, eng.Playing)),
		eng.On(waveform.EventFinish, c.onEngineEvent(gen, Stopped, nil)),
	}
	c.setStateLocked(Stopped)
	log.Printf("Engine %d created", gen)

	if buf := c.pending; buf != nil {
		c.pending = nil
		if err := c.loadLocked(buf); err != nil {
			log.Printf("Deferred load failed: %v", err)
		}
	}
	return nil
}

// releaseLocked tears down the engine. Teardown failures are logged and
// otherwise ignored; the engine is forgotten either way.
func (c *Controller) releaseLocked() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil

	eng, gen := c.engine, c.generation
	c.engine = nil
	c.target = nil
	c.generation++
	destroyEngine(eng, gen)

	if c.current != "" {
		if b, err := c.store.Resolve(c.current); err == nil {
			c.pending = b.Bytes()
		}
		c.store.RevokeObjectURL(c.current)
		c.current = ""
	}
	c.setStateLocked(Stopped)
}

func destroyEngine(eng Engine, gen int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Engine %d teardown panicked: %v", gen, r)
		}
	}()
	if err := eng.Destroy(); err != nil {
		log.Printf("Engine %d teardown failed: %v", gen, err)
		return
	}
	log.Printf("Engine %d destroyed", gen)
}

func (c *Controller) loadLocked(buf []byte) error {
	b, err := blob.New(buf, blob.TypeWAV)
	if err != nil {
		return &LoadError{Stage: "blob", Err: err}
	}

	u := c.store.CreateObjectURL(b)
	if err := c.engine.Load(u); err != nil {
		c.store.RevokeObjectURL(u)
		return &LoadError{Stage: "engine", Err: err}
	}

	if c.current != "" {
		c.store.RevokeObjectURL(c.current)
	}
	c.current = u
	c.setStateLocked(Stopped)
	return nil
}

// onEngineEvent returns a handler moving the state to st, ignoring events
// from engines of earlier generations. When holds is set the event only
// applies while holds reports true; engines deliver events asynchronously, so
// a play event can arrive after a later pause.
func (c *Controller) onEngineEvent(gen int, st State, holds func() bool) func() {
	return func() {
		if holds != nil && !holds() {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation || c.engine == nil {
			return
		}
		c.setStateLocked(st)
	}
}

func (c *Controller) setStateLocked(st State) {
	if c.state == st {
		return
	}
	c.state = st
	for w := range c.watchers {
		w.send(st)
	}
}
