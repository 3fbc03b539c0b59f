package scanner

import (
	"time"

	"bookscan/internal/entity"
)

// State is the coordinator's current variant. Exactly one is active.
type State interface {
	Name() string
	isState()
}

type Idle struct{}

type Scanning struct{}

// Cooldown accepts scans but returns to Scanning at Until.
type Cooldown struct {
	Until time.Time
}

// Searching means a lookup for Identifier is in flight.
type Searching struct {
	Identifier string
}

// Confirming waits for the user to accept or skip Item.
type Confirming struct {
	Item entity.CatalogItem
}

// Saving means Item is being written to the collection. ThenStop selects
// Idle instead of Cooldown once it succeeds.
type Saving struct {
	Item     entity.CatalogItem
	ThenStop bool
}

// ErrorState is shown until dismissed. CanRetry selects Scanning over Idle on dismiss.
type ErrorState struct {
	Message  string
	CanRetry bool
	Kind     ErrorKind
}

func (Idle) Name() string       { return "idle" }
func (Scanning) Name() string   { return "scanning" }
func (Cooldown) Name() string   { return "cooldown" }
func (Searching) Name() string  { return "searching" }
func (Confirming) Name() string { return "confirming" }
func (Saving) Name() string     { return "saving" }
func (ErrorState) Name() string { return "error" }

func (Idle) isState()       {}
func (Scanning) isState()   {}
func (Cooldown) isState()   {}
func (Searching) isState()  {}
func (Confirming) isState() {}
func (Saving) isState()     {}
func (ErrorState) isState() {}

// event is everything that can drive a transition.
type event interface {
	isEvent()
}

type (
	startEvent           struct{}
	stopEvent            struct{}
	scanEvent            struct{ identifier string }
	invalidScanEvent     struct{ err error }
	ownedEvent           struct{}
	lookupOKEvent        struct{ item entity.CatalogItem }
	lookupNotFoundEvent  struct{}
	lookupFailedEvent    struct{ err error }
	confirmContinueEvent struct{}
	confirmStopEvent     struct{}
	skipEvent            struct{}
	saveOKEvent          struct{}
	saveFailedEvent      struct{ err error }
	cooldownExpiredEvent struct{}
	dismissEvent         struct{}
)

func (startEvent) isEvent()           {}
func (stopEvent) isEvent()            {}
func (scanEvent) isEvent()            {}
func (invalidScanEvent) isEvent()     {}
func (ownedEvent) isEvent()           {}
func (lookupOKEvent) isEvent()        {}
func (lookupNotFoundEvent) isEvent()  {}
func (lookupFailedEvent) isEvent()    {}
func (confirmContinueEvent) isEvent() {}
func (confirmStopEvent) isEvent()     {}
func (skipEvent) isEvent()            {}
func (saveOKEvent) isEvent()          {}
func (saveFailedEvent) isEvent()      {}
func (cooldownExpiredEvent) isEvent() {}
func (dismissEvent) isEvent()         {}

// receptive reports whether s accepts scans.
func receptive(s State) bool {
	switch s.(type) {
	case Scanning, Cooldown:
		return true
	}
	return false
}

// transition is the complete transition table. Pairs it does not list
// return the current state with changed=false.
func transition(s State, ev event, now time.Time, cooldown time.Duration) (next State, changed bool) {
	if _, ok := ev.(stopEvent); ok {
		return Idle{}, true
	}

	switch cur := s.(type) {
	case Idle:
		if _, ok := ev.(startEvent); ok {
			return Scanning{}, true
		}

	case Scanning, Cooldown:
		switch ev := ev.(type) {
		case scanEvent:
			return Searching{Identifier: ev.identifier}, true
		case invalidScanEvent:
			return errorFor(ev.err), true
		case cooldownExpiredEvent:
			if _, ok := cur.(Cooldown); ok {
				return Scanning{}, true
			}
		}

	case Searching:
		switch ev := ev.(type) {
		case lookupOKEvent:
			return Confirming{Item: ev.item}, true
		case lookupNotFoundEvent:
			return notFoundError(cur.Identifier), true
		case ownedEvent:
			return ErrorState{Message: "already added", CanRetry: true, Kind: KindDuplicate}, true
		case lookupFailedEvent:
			return errorFor(ev.err), true
		}

	case Confirming:
		switch ev.(type) {
		case confirmContinueEvent:
			return Saving{Item: cur.Item}, true
		case confirmStopEvent:
			return Saving{Item: cur.Item, ThenStop: true}, true
		case skipEvent:
			return Cooldown{Until: now.Add(cooldown)}, true
		}

	case Saving:
		switch ev := ev.(type) {
		case saveOKEvent:
			if cur.ThenStop {
				return Idle{}, true
			}
			return Cooldown{Until: now.Add(cooldown)}, true
		case saveFailedEvent:
			return errorFor(ev.err), true
		}

	case ErrorState:
		if _, ok := ev.(dismissEvent); ok {
			if cur.CanRetry {
				return Scanning{}, true
			}
			return Idle{}, true
		}
	}
	return s, false
}
