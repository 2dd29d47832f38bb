package player

import (
	"encoding/binary"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/satindergrewal/tunegen/internal/blob"
	"github.com/satindergrewal/tunegen/internal/waveform"
)

// wavClip builds a 16-bit mono 8kHz WAV: a 44 byte header plus n silent samples.
func wavClip(n int) []byte {
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
	return buf
}

// fakeEngine delivers events synchronously on the calling goroutine.
type fakeEngine struct {
	store  *blob.Store
	target waveform.Target

	mu             sync.Mutex
	handlers       map[waveform.Event]map[int]func()
	nextID         int
	loaded         []string
	playing        bool
	destroyed      int
	loadErr        error
	destroyErr     error
	panicOnDestroy bool
}

func (e *fakeEngine) Load(url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loadErr != nil {
		return e.loadErr
	}
	if _, err := e.store.Resolve(url); err != nil {
		return err
	}
	e.loaded = append(e.loaded, url)
	e.playing = false
	return nil
}

func (e *fakeEngine) PlayPause() error {
	e.mu.Lock()
	playing := e.playing
	e.mu.Unlock()
	if playing {
		e.mu.Lock()
		e.playing = false
		e.mu.Unlock()
		e.emit(waveform.EventPause)
		return nil
	}
	return e.Play()
}

func (e *fakeEngine) Play() error {
	e.mu.Lock()
	if len(e.loaded) == 0 {
		e.mu.Unlock()
		return waveform.ErrNoMedia
	}
	e.playing = true
	e.mu.Unlock()
	e.emit(waveform.EventPlay)
	return nil
}

func (e *fakeEngine) Stop() error {
	e.mu.Lock()
	e.playing = false
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *fakeEngine) On(ev waveform.Event, fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	if e.handlers[ev] == nil {
		e.handlers[ev] = make(map[int]func())
	}
	e.handlers[ev][id] = fn
	return func() {
		e.mu.Lock()
		delete(e.handlers[ev], id)
		e.mu.Unlock()
	}
}

func (e *fakeEngine) Destroy() error {
	e.mu.Lock()
	e.destroyed++
	clear(e.handlers)
	e.playing = false
	e.mu.Unlock()
	if e.panicOnDestroy {
		panic("renderer already detached")
	}
	return e.destroyErr
}

// finish simulates the clip reaching its end.
func (e *fakeEngine) finish() {
	e.mu.Lock()
	e.playing = false
	e.mu.Unlock()
	e.emit(waveform.EventFinish)
}

func (e *fakeEngine) emit(ev waveform.Event) {
	e.mu.Lock()
	hs := e.handlers[ev]
	fns := make([]func(), 0, len(hs))
	for _, id := range slices.Sorted(maps.Keys(hs)) {
		fns = append(fns, hs[id])
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// handler returns the first handler registered for ev.
func (e *fakeEngine) handler(ev waveform.Event) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := slices.Sorted(maps.Keys(e.handlers[ev]))
	if len(ids) == 0 {
		return nil
	}
	return e.handlers[ev][ids[0]]
}

func (e *fakeEngine) listenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, hs := range e.handlers {
		n += len(hs)
	}
	return n
}

func (e *fakeEngine) loads() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.loaded)
}

// fakeFactory records every engine it builds.
type fakeFactory struct {
	store   *blob.Store
	mu      sync.Mutex
	engines []*fakeEngine
	err     error
	setup   func(*fakeEngine)
}

func (f *fakeFactory) build(target waveform.Target, _ waveform.Options) (Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e := &fakeEngine{
		store:    f.store,
		target:   target,
		handlers: make(map[waveform.Event]map[int]func()),
	}
	if f.setup != nil {
		f.setup(e)
	}
	f.engines = append(f.engines, e)
	return e, nil
}

func (f *fakeFactory) all() []*fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.engines)
}

func (f *fakeFactory) last(t *testing.T) *fakeEngine {
	t.Helper()
	all := f.all()
	if len(all) == 0 {
		t.Fatal("No engine built")
	}
	return all[len(all)-1]
}

// alive counts built engines that have not been destroyed.
func (f *fakeFactory) alive() int {
	n := 0
	for _, e := range f.all() {
		e.mu.Lock()
		if e.destroyed == 0 {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

func newTestController() (*Controller, *fakeFactory, *blob.Store) {
	store := blob.NewStore()
	f := &fakeFactory{store: store}
	return New(f.build, store, waveform.DefaultOptions()), f, store
}

var errRejected = errors.New("engine rejected source")
