package player

// Watcher receives state changes. Slow watchers miss intermediate states but
// the controller never blocks on them.
type Watcher struct {
	C chan State
}

// send delivers st, dropping the oldest queued state if the buffer is full.
func (w *Watcher) send(st State) {
	for {
		select {
		case w.C <- st:
			return
		default:
		}
		select {
		case <-w.C:
		default:
		}
	}
}

// Watch subscribes to state changes. The current state is delivered first.
func (c *Controller) Watch() *Watcher {
	w := &Watcher{C: make(chan State, 8)}
	c.mu.Lock()
	c.watchers[w] = struct{}{}
	w.send(c.state)
	c.mu.Unlock()
	return w
}

// Unwatch removes w. No more states are delivered after it returns.
func (c *Controller) Unwatch(w *Watcher) {
	c.mu.Lock()
	delete(c.watchers, w)
	c.mu.Unlock()
}

// Watchers returns the number of active watchers.
func (c *Controller) Watchers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watchers)
}
