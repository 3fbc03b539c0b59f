// Package admission gates calls to the external catalog provider with a
// sliding-window limit and a minimum spacing between admitted calls.
package admission

import (
	"sync"
	"time"
)

// Policy configures a Limiter.
type Policy struct {
	// MinInterval is the minimum spacing between two admitted calls for a key.
	MinInterval time.Duration
	// Window is the trailing interval MaxRequests is counted over.
	Window time.Duration
	// MaxRequests is the number of admissions allowed inside Window.
	MaxRequests int
}

// DefaultPolicy is the canonical provider policy: at most two calls per
// ten seconds, two seconds apart.
var DefaultPolicy = Policy{
	MinInterval: 2 * time.Second,
	Window:      10 * time.Second,
	MaxRequests: 2,
}

// Decision is the result of Admit.
type Decision struct {
	Allowed bool
	// RetryAfter is how long the caller should wait before asking again.
	// Zero when Allowed.
	RetryAfter time.Duration
}

type window struct {
	admitted     []time.Time // ascending
	lastAdmitted time.Time
}

// Limiter is safe for concurrent use; every check-and-record runs under one lock.
type Limiter struct {
	mu      sync.Mutex
	policy  Policy
	windows map[string]*window
	now     func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(policy Policy, opts ...Option) *Limiter {
	l := &Limiter{
		policy:  policy,
		windows: make(map[string]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the limiter's configuration.
func (l *Limiter) Policy() Policy { return l.policy }

// Admit decides whether a call for key may proceed now. An allowed call is
// recorded immediately, before the caller starts the request.
func (l *Limiter) Admit(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	w.prune(now, l.policy.Window)

	var wait time.Duration
	if !w.lastAdmitted.IsZero() && l.policy.MinInterval > 0 {
		if elapsed := now.Sub(w.lastAdmitted); elapsed < l.policy.MinInterval {
			wait = l.policy.MinInterval - elapsed
		}
	}
	if l.policy.MaxRequests > 0 && len(w.admitted) >= l.policy.MaxRequests {
		// the call becomes possible once enough of the oldest admissions age out
		oldest := w.admitted[len(w.admitted)-l.policy.MaxRequests]
		if untilFree := oldest.Add(l.policy.Window).Sub(now); untilFree > wait {
			wait = untilFree
		}
	}
	if wait > 0 {
		return Decision{Allowed: false, RetryAfter: wait}
	}

	w.admitted = append(w.admitted, now)
	w.lastAdmitted = now
	return Decision{Allowed: true}
}

// InWindow reports how many admissions for key fall inside the trailing window.
func (l *Limiter) InWindow(key string) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		return 0
	}
	w.prune(now, l.policy.Window)
	return len(w.admitted)
}

// Reset forgets every recorded admission.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = make(map[string]*window)
}

func (w *window) prune(now time.Time, size time.Duration) {
	cutoff := now.Add(-size)
	i := 0
	for i < len(w.admitted) && !w.admitted[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.admitted = append(w.admitted[:0], w.admitted[i:]...)
	}
}
