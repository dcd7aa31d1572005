// Package cartsync turns bursts of optimistic cart edits into a minimal, ordered
// set of backend writes and reverts the cart when a write fails.
package cartsync

import (
	"context"
	"sync"
	"time"
)

// Debouncer collapses repeated triggers per key into one call of the latest fn,
// run once the key has been quiet for the window. Runs for the same key never
// overlap; different keys are independent.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	slots   map[string]*slot
	stopped bool
}

type slot struct {
	fn      func()
	seq     uint64
	timer   *time.Timer
	running chan struct{}
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, slots: make(map[string]*slot)}
}

// Trigger replaces the pending fn for key and restarts its timer. It returns
// false once the debouncer is stopped.
func (d *Debouncer) Trigger(key string, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	s, ok := d.slots[key]
	if !ok {
		s = &slot{}
		d.slots[key] = s
	}
	s.fn = fn
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
	}
	seq := s.seq
	s.timer = time.AfterFunc(d.window, func() { d.fire(key, seq) })
	return true
}

// Cancel drops the pending fn for key. It does not interrupt a run in progress.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.slots[key]
	if !ok || s.fn == nil {
		return false
	}
	s.fn = nil
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.running == nil {
		delete(d.slots, key)
	}
	return true
}

// Pending reports whether key has a fn waiting for its timer.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.slots[key]
	return ok && s.fn != nil
}

// Flush runs every pending fn now and waits for all runs, including ones
// already in progress, to finish.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.mu.Lock()
	var runs []func()
	var waits []chan struct{}
	for key, s := range d.slots {
		if s.fn != nil {
			runs = append(runs, d.startLocked(key, s))
		}
		if s.running != nil {
			waits = append(waits, s.running)
		}
	}
	d.mu.Unlock()

	for _, run := range runs {
		go run()
	}
	for _, w := range waits {
		select {
		case <-w:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop cancels every pending fn. Runs in progress complete normally.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, s := range d.slots {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.fn = nil
		s.seq++
		if s.running == nil {
			delete(d.slots, key)
		}
	}
}

func (d *Debouncer) fire(key string, seq uint64) {
	d.mu.Lock()
	s, ok := d.slots[key]
	if !ok || s.seq != seq || s.fn == nil {
		d.mu.Unlock()
		return
	}
	run := d.startLocked(key, s)
	d.mu.Unlock()
	run()
}

// startLocked takes the pending fn and returns a closure that runs it after the
// previous run for the same key has finished.
func (d *Debouncer) startLocked(key string, s *slot) func() {
	fn := s.fn
	s.fn = nil
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	prev := s.running
	done := make(chan struct{})
	s.running = done

	return func() {
		if prev != nil {
			<-prev
		}
		defer d.release(key, s, done)
		fn()
	}
}

func (d *Debouncer) release(key string, s *slot, done chan struct{}) {
	close(done)
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.running == done {
		s.running = nil
		if s.fn == nil && s.timer == nil && d.slots[key] == s {
			delete(d.slots, key)
		}
	}
}
