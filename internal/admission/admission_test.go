package admission

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestLimiter_ThreeRequestsWithinOneSecond(t *testing.T) {
	clock := newFakeClock()
	l := New(Policy{Window: 10 * time.Second, MaxRequests: 2}, WithClock(clock.Now))

	var allowed, denied int
	var lastDenied Decision
	for i := 0; i < 3; i++ {
		d := l.Admit("catalog")
		if d.Allowed {
			allowed++
		} else {
			denied++
			lastDenied = d
		}
		clock.Advance(400 * time.Millisecond)
	}

	assert.Equal(t, 2, allowed)
	assert.Equal(t, 1, denied)
	assert.Greater(t, lastDenied.RetryAfter, time.Duration(0))
}

func TestLimiter_WindowRetryAfterPointsAtOldestAdmission(t *testing.T) {
	clock := newFakeClock()
	l := New(Policy{Window: 10 * time.Second, MaxRequests: 2}, WithClock(clock.Now))

	require.True(t, l.Admit("k").Allowed)
	clock.Advance(time.Second)
	require.True(t, l.Admit("k").Allowed)
	clock.Advance(time.Second)

	d := l.Admit("k")
	require.False(t, d.Allowed)
	assert.Equal(t, 8*time.Second, d.RetryAfter)

	clock.Advance(8 * time.Second)
	assert.True(t, l.Admit("k").Allowed, "oldest admission has aged out")
}

func TestLimiter_MinInterval(t *testing.T) {
	clock := newFakeClock()
	l := New(Policy{MinInterval: 2 * time.Second, Window: 10 * time.Second, MaxRequests: 3}, WithClock(clock.Now))

	require.True(t, l.Admit("k").Allowed)
	clock.Advance(500 * time.Millisecond)

	d := l.Admit("k")
	require.False(t, d.Allowed)
	assert.Equal(t, 1500*time.Millisecond, d.RetryAfter)

	clock.Advance(1500 * time.Millisecond)
	assert.True(t, l.Admit("k").Allowed)
}

func TestLimiter_DeniedAttemptsAreNotRecorded(t *testing.T) {
	clock := newFakeClock()
	l := New(Policy{MinInterval: time.Second, Window: 10 * time.Second, MaxRequests: 5}, WithClock(clock.Now))

	require.True(t, l.Admit("k").Allowed)
	for i := 0; i < 5; i++ {
		clock.Advance(100 * time.Millisecond)
		require.False(t, l.Admit("k").Allowed)
	}
	assert.Equal(t, 1, l.InWindow("k"))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := New(Policy{MinInterval: time.Second, Window: time.Minute, MaxRequests: 1}, WithClock(clock.Now))

	assert.True(t, l.Admit("a").Allowed)
	assert.True(t, l.Admit("b").Allowed)
	assert.False(t, l.Admit("a").Allowed)
}

func TestLimiter_PrunesOldAdmissions(t *testing.T) {
	clock := newFakeClock()
	l := New(Policy{Window: 10 * time.Second, MaxRequests: 10}, WithClock(clock.Now))

	for i := 0; i < 4; i++ {
		require.True(t, l.Admit("k").Allowed)
		clock.Advance(3 * time.Second)
	}
	// admissions at t=0,3,6,9; now t=12, window covers (2,12]
	assert.Equal(t, 3, l.InWindow("k"))
}

func TestLimiter_Reset(t *testing.T) {
	clock := newFakeClock()
	l := New(DefaultPolicy, WithClock(clock.Now))
	require.True(t, l.Admit("k").Allowed)
	require.False(t, l.Admit("k").Allowed)

	l.Reset()
	assert.True(t, l.Admit("k").Allowed)
}

func TestLimiter_ConcurrentAdmitsRespectLimit(t *testing.T) {
	clock := newFakeClock()
	l := New(Policy{Window: time.Minute, MaxRequests: 3}, WithClock(clock.Now))

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("k").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, allowed)
}
