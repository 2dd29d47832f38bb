package waveform

import (
	"maps"
	"slices"
	"sync"
)

// Event names an engine notification.
type Event string

const (
	EventReady   Event = "ready"
	EventPlay    Event = "play"
	EventPause   Event = "pause"
	EventFinish  Event = "finish"
	EventDestroy Event = "destroy"
)

// emitter delivers events to handlers one at a time on its own goroutine, in
// the order they were emitted.
type emitter struct {
	mu       sync.Mutex
	nextID   int
	handlers map[Event]map[int]func()

	queue    chan Event
	done     chan struct{}
	stopOnce sync.Once
}

func newEmitter() *emitter {
	e := &emitter{
		handlers: make(map[Event]map[int]func()),
		queue:    make(chan Event, 64),
		done:     make(chan struct{}),
	}
	go e.run()
	return e
}

// on registers fn for ev and returns a function that removes it.
func (e *emitter) on(ev Event, fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.done:
		return func() {}
	default:
	}

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

func (e *emitter) emit(ev Event) {
	select {
	case <-e.done:
	case e.queue <- ev:
	}
}

func (e *emitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, hs := range e.handlers {
		n += len(hs)
	}
	return n
}

// stop drops every handler and ends delivery. Queued events are discarded.
// Handlers of last, if any, run once on the caller's goroutine first.
func (e *emitter) stop(last Event) {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		fns := sortedHandlers(e.handlers[last])
		e.handlers = make(map[Event]map[int]func())
		close(e.done)
		e.mu.Unlock()

		for _, fn := range fns {
			fn()
		}
	})
}

func (e *emitter) run() {
	for {
		select {
		case <-e.done:
			return
		case ev := <-e.queue:
			e.mu.Lock()
			fns := sortedHandlers(e.handlers[ev])
			e.mu.Unlock()

			for _, fn := range fns {
				fn()
			}
		}
	}
}

// sortedHandlers returns hs in subscription order.
func sortedHandlers(hs map[int]func()) []func() {
	fns := make([]func(), 0, len(hs))
	for _, id := range slices.Sorted(maps.Keys(hs)) {
		fns = append(fns, hs[id])
	}
	return fns
}
