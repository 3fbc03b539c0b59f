package scansession

import (
	"time"

	"bookscan/internal/entity"
	"bookscan/internal/scanner"
)

// StateView is the JSON form of a coordinator state.
type StateView struct {
	State         string              `json:"state"`
	SavedCount    int                 `json:"saved_count"`
	Identifier    string              `json:"identifier,omitempty"`
	Item          *entity.CatalogItem `json:"item,omitempty"`
	ThenStop      bool                `json:"then_stop,omitempty"`
	CooldownUntil *time.Time          `json:"cooldown_until,omitempty"`
	Message       string              `json:"message,omitempty"`
	CanRetry      *bool               `json:"can_retry,omitempty"`
	ErrorKind     string              `json:"error_kind,omitempty"`
}

type SessionView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	StateView
}

func viewOf(u scanner.Update) StateView {
	v := StateView{State: u.State.Name(), SavedCount: u.SavedCount}
	switch s := u.State.(type) {
	case scanner.Cooldown:
		until := s.Until
		v.CooldownUntil = &until
	case scanner.Searching:
		v.Identifier = s.Identifier
	case scanner.Confirming:
		item := s.Item
		v.Item = &item
		v.Identifier = item.Identifier
	case scanner.Saving:
		item := s.Item
		v.Item = &item
		v.Identifier = item.Identifier
		v.ThenStop = s.ThenStop
	case scanner.ErrorState:
		canRetry := s.CanRetry
		v.Message = s.Message
		v.CanRetry = &canRetry
		v.ErrorKind = string(s.Kind)
	}
	return v
}

func sessionView(s *Session) SessionView {
	return SessionView{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		StateView: viewOf(s.Coordinator.Snapshot()),
	}
}
