package history

import (
	"context"
	"sort"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu        sync.RWMutex
	events    map[string]MergeEvent
	conflicts []ConflictEvent
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{events: make(map[string]MergeEvent)}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// RecordEvent stores an event keyed by its ID.
func (m *MemStore) RecordEvent(_ context.Context, ev MergeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
	return nil
}

// RecordConflict appends a conflict to the internal slice.
func (m *MemStore) RecordConflict(_ context.Context, c ConflictEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts = append(m.conflicts, c)
	return nil
}

// GetEvent returns the event with the given ID, or nil if not found.
func (m *MemStore) GetEvent(_ context.Context, id string) (*MergeEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

// ListEvents returns events for the given target, newest first, up to limit.
// An empty target matches every event; a limit <= 0 returns all matches.
func (m *MemStore) ListEvents(_ context.Context, target string, limit int) ([]MergeEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []MergeEvent
	for _, ev := range m.events {
		if target == "" || ev.Target == target {
			results = append(results, ev)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].ID < results[j].ID
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ListConflicts returns all conflicts recorded under the given event ID.
func (m *MemStore) ListConflicts(_ context.Context, eventID string) ([]ConflictEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []ConflictEvent
	for _, c := range m.conflicts {
		if c.EventID == eventID {
			results = append(results, c)
		}
	}
	return results, nil
}

// Stats returns counts of stored events and conflicts.
func (m *MemStore) Stats(_ context.Context) (*HistoryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	merged := 0
	for _, ev := range m.events {
		if ev.Kind == "merged" {
			merged++
		}
	}
	return &HistoryStats{
		EventCount:    len(m.events),
		MergedCount:   merged,
		ConflictCount: len(m.conflicts),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
