// Package history records merge outcomes so past decisions stay queryable:
// which phases contributed to a module, what was excluded, and where the
// pipeline produced conflicts.
package history

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/dusk-indust/pymerge/internal/merge"
)

// MergeEvent is one recorded engine run against a target module.
type MergeEvent struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"` // path of the merged module
	Kind      string    `json:"kind"`   // merged | conflict | parse_error
	Phases    []string  `json:"phases"` // contributing phases in fold order
	Warnings  []string  `json:"warnings,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConflictEvent is one irreconcilable declaration within a merge event.
type ConflictEvent struct {
	ID      string   `json:"id"`
	EventID string   `json:"eventId"`
	Name    string   `json:"name"`
	Phases  []string `json:"phases"`
	Reason  string   `json:"reason"`
}

// HistoryStats summarizes the stored record.
type HistoryStats struct {
	EventCount    int `json:"eventCount"`
	MergedCount   int `json:"mergedCount"`
	ConflictCount int `json:"conflictCount"`
}

// NewEventID returns a random 128-bit hex identifier.
func NewEventID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the platform is broken; fall back to
		// a timestamp so recording still proceeds.
		return fmt.Sprintf("ev-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", b)
}

// EventFromResult builds the storable event (plus its conflicts) for one
// engine result.
func EventFromResult(target string, phases []merge.Phase, res merge.MergeResult) (MergeEvent, []ConflictEvent) {
	ev := MergeEvent{
		ID:        NewEventID(),
		Target:    target,
		Kind:      string(res.Kind),
		Warnings:  res.Warnings,
		Timestamp: time.Now().UTC(),
	}
	for _, p := range phases {
		ev.Phases = append(ev.Phases, string(p))
	}

	var conflicts []ConflictEvent
	for _, c := range res.Conflicts {
		ce := ConflictEvent{
			ID:      NewEventID(),
			EventID: ev.ID,
			Name:    c.Name,
			Reason:  c.Reason,
		}
		for _, p := range c.Phases {
			ce.Phases = append(ce.Phases, string(p))
		}
		conflicts = append(conflicts, ce)
	}
	return ev, conflicts
}
