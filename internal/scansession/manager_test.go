package scansession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookscan/internal/logging"
	"bookscan/internal/scanner"
)

func newTestManager(idle time.Duration) *Manager {
	factory := func(userID string) *scanner.Coordinator {
		return scanner.New(userID, &fakeCatalog{}, nil, scanner.DefaultConfig())
	}
	return NewManager(factory, idle, logging.NewNop())
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(time.Minute)
	t.Cleanup(m.CloseAll)

	s, err := m.Create("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, scanner.Idle{}, s.Coordinator.State())

	got, err := m.Get("user-1", s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("user-2", s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get("user-1", "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_LimitsSessionsPerUser(t *testing.T) {
	m := newTestManager(time.Minute)
	t.Cleanup(m.CloseAll)

	for i := 0; i < DefaultMaxPerUser; i++ {
		_, err := m.Create("user-1")
		require.NoError(t, err)
	}
	_, err := m.Create("user-1")
	assert.ErrorIs(t, err, ErrTooManySessions)

	_, err = m.Create("user-2")
	assert.NoError(t, err)
}

func TestManager_DeleteClosesCoordinator(t *testing.T) {
	m := newTestManager(time.Minute)
	s, err := m.Create("user-1")
	require.NoError(t, err)
	s.Coordinator.Start()

	assert.ErrorIs(t, m.Delete("user-2", s.ID), ErrSessionNotFound)
	require.NoError(t, m.Delete("user-1", s.ID))

	assert.Equal(t, scanner.Idle{}, s.Coordinator.State())
	s.Coordinator.Start()
	assert.Equal(t, scanner.Idle{}, s.Coordinator.State())
	assert.Zero(t, m.Len())
}

func TestManager_SweepReapsIdleSessions(t *testing.T) {
	m := newTestManager(time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale, err := m.Create("user-1")
	require.NoError(t, err)
	now = now.Add(45 * time.Second)
	fresh, err := m.Create("user-1")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, m.Sweep())

	_, err = m.Get("user-1", stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get("user-1", fresh.ID)
	assert.NoError(t, err)
}
