package scanner

import (
	"context"
	"sync"
	"time"

	"bookscan/internal/entity"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type resolveResult struct {
	item entity.CatalogItem
	err  error
}

// stubResolver answers from a queue of results. With a gate set, each call
// blocks until the gate is closed, receives a value or ctx ends.
type stubResolver struct {
	mu        sync.Mutex
	calls     []string
	results   []resolveResult
	gate      chan struct{}
	cancelled int
}

func (r *stubResolver) Resolve(ctx context.Context, identifier string) (entity.CatalogItem, error) {
	r.mu.Lock()
	r.calls = append(r.calls, identifier)
	var res resolveResult
	if len(r.results) > 0 {
		res = r.results[0]
		r.results = r.results[1:]
	}
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			r.mu.Lock()
			r.cancelled++
			r.mu.Unlock()
			return entity.CatalogItem{}, ctx.Err()
		}
	}
	return res.item, res.err
}

func (r *stubResolver) cancelledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *stubResolver) queue(item entity.CatalogItem, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, resolveResult{item: item, err: err})
}

func (r *stubResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
