// Package scansession exposes scanning sessions over HTTP. Each session owns
// one scanner.Coordinator with its own lookup cache and admission window.
package scansession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookscan/internal/scanner"
)

var (
	ErrSessionNotFound = errors.New("scan session not found")
	ErrTooManySessions = errors.New("too many open scan sessions")
)

const DefaultMaxPerUser = 4

// Factory builds the coordinator for a new session.
type Factory func(userID string) *scanner.Coordinator

type Session struct {
	ID          string
	UserID      string
	CreatedAt   time.Time
	Coordinator *scanner.Coordinator

	lastSeen time.Time
}

type Manager struct {
	factory    Factory
	idle       time.Duration
	maxPerUser int
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(factory Factory, idle time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		factory:    factory,
		idle:       idle,
		maxPerUser: DefaultMaxPerUser,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
}

func (m *Manager) Create(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	open := 0
	for _, s := range m.sessions {
		if s.UserID == userID {
			open++
		}
	}
	if open >= m.maxPerUser {
		return nil, ErrTooManySessions
	}

	now := m.now()
	s := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		CreatedAt:   now,
		Coordinator: m.factory(userID),
		lastSeen:    now,
	}
	m.sessions[s.ID] = s
	m.logger.Info("scan session created", slog.String("session_id", s.ID), slog.String("user_id", userID))
	return s, nil
}

// Get returns the session and marks it used. Sessions of other users are reported as missing.
func (m *Manager) Get(userID, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	s.lastSeen = m.now()
	return s, nil
}

func (m *Manager) Delete(userID, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Coordinator.Close()
	m.logger.Info("scan session closed", slog.String("session_id", id))
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions unused for longer than the idle timeout.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idle)
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Coordinator.Close()
		m.logger.Info("idle scan session reaped", slog.String("session_id", s.ID))
	}
	return len(expired)
}

// StartJanitor sweeps every interval until ctx ends.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// CloseAll closes every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Coordinator.Close()
	}
}
