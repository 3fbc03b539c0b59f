package scanner

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bookscan/internal/entity"
)

func eventName(ev event) string {
	return fmt.Sprintf("%T", ev)
}

func TestTransition_UnlistedPairsAreNoOps(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	item := entity.CatalogItem{Identifier: "9780306406157", Title: "Signals"}

	states := []State{
		Idle{},
		Scanning{},
		Cooldown{Until: now.Add(time.Second)},
		Searching{Identifier: item.Identifier},
		Confirming{Item: item},
		Saving{Item: item},
		ErrorState{Message: "x", CanRetry: true, Kind: KindTransport},
	}
	events := []event{
		startEvent{}, stopEvent{}, scanEvent{identifier: item.Identifier},
		invalidScanEvent{err: errors.New("bad")}, ownedEvent{},
		lookupOKEvent{item: item}, lookupNotFoundEvent{}, lookupFailedEvent{err: errors.New("down")},
		confirmContinueEvent{}, confirmStopEvent{}, skipEvent{},
		saveOKEvent{}, saveFailedEvent{err: errors.New("disk")},
		cooldownExpiredEvent{}, dismissEvent{},
	}

	stop := eventName(stopEvent{})
	accepted := map[string][]string{
		"idle":       {eventName(startEvent{}), stop},
		"scanning":   {eventName(scanEvent{}), eventName(invalidScanEvent{}), stop},
		"cooldown":   {eventName(scanEvent{}), eventName(invalidScanEvent{}), eventName(cooldownExpiredEvent{}), stop},
		"searching":  {eventName(lookupOKEvent{}), eventName(lookupNotFoundEvent{}), eventName(ownedEvent{}), eventName(lookupFailedEvent{}), stop},
		"confirming": {eventName(confirmContinueEvent{}), eventName(confirmStopEvent{}), eventName(skipEvent{}), stop},
		"saving":     {eventName(saveOKEvent{}), eventName(saveFailedEvent{}), stop},
		"error":      {eventName(dismissEvent{}), stop},
	}

	for _, s := range states {
		for _, ev := range events {
			name := fmt.Sprintf("%s/%s", s.Name(), eventName(ev))
			t.Run(name, func(t *testing.T) {
				next, changed := transition(s, ev, now, time.Second)
				want := false
				for _, a := range accepted[s.Name()] {
					if a == eventName(ev) {
						want = true
					}
				}
				assert.Equal(t, want, changed)
				if !changed {
					assert.Equal(t, s, next)
				}
			})
		}
	}
}

func TestTransition_Targets(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	item := entity.CatalogItem{Identifier: "9780306406157", Title: "Signals"}
	cd := 1500 * time.Millisecond

	tests := []struct {
		name string
		from State
		ev   event
		want State
	}{
		{"start", Idle{}, startEvent{}, Scanning{}},
		{"scan from cooldown", Cooldown{Until: now}, scanEvent{identifier: "9780306406157"}, Searching{Identifier: "9780306406157"}},
		{"found", Searching{Identifier: item.Identifier}, lookupOKEvent{item: item}, Confirming{Item: item}},
		{"not found names identifier", Searching{Identifier: item.Identifier}, lookupNotFoundEvent{},
			ErrorState{Message: "no match found for 9780306406157", CanRetry: true, Kind: KindNotFound}},
		{"owned", Searching{Identifier: item.Identifier}, ownedEvent{},
			ErrorState{Message: "already added", CanRetry: true, Kind: KindDuplicate}},
		{"continue", Confirming{Item: item}, confirmContinueEvent{}, Saving{Item: item}},
		{"and stop", Confirming{Item: item}, confirmStopEvent{}, Saving{Item: item, ThenStop: true}},
		{"skip", Confirming{Item: item}, skipEvent{}, Cooldown{Until: now.Add(cd)}},
		{"saved then cooldown", Saving{Item: item}, saveOKEvent{}, Cooldown{Until: now.Add(cd)}},
		{"saved then stop", Saving{Item: item, ThenStop: true}, saveOKEvent{}, Idle{}},
		{"cooldown expires", Cooldown{Until: now}, cooldownExpiredEvent{}, Scanning{}},
		{"dismiss retryable", ErrorState{CanRetry: true}, dismissEvent{}, Scanning{}},
		{"dismiss fatal", ErrorState{CanRetry: false}, dismissEvent{}, Idle{}},
		{"stop from saving", Saving{Item: item}, stopEvent{}, Idle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, changed := transition(tt.from, tt.ev, now, cd)
			assert.True(t, changed)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestReceptive(t *testing.T) {
	assert.True(t, receptive(Scanning{}))
	assert.True(t, receptive(Cooldown{}))
	assert.False(t, receptive(Idle{}))
	assert.False(t, receptive(Searching{}))
	assert.False(t, receptive(Confirming{}))
	assert.False(t, receptive(Saving{}))
	assert.False(t, receptive(ErrorState{}))
}
