package history

import (
	"context"
	"io"
)

// Store is the interface for the merge-history backend.
// Implementations: KuzuStore (persistent), MemStore (in-memory and testing).
type Store interface {
	io.Closer

	// Schema setup — called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	RecordEvent(ctx context.Context, ev MergeEvent) error
	RecordConflict(ctx context.Context, c ConflictEvent) error

	// Read operations.
	GetEvent(ctx context.Context, id string) (*MergeEvent, error)
	ListEvents(ctx context.Context, target string, limit int) ([]MergeEvent, error)
	ListConflicts(ctx context.Context, eventID string) ([]ConflictEvent, error)

	// Stats.
	Stats(ctx context.Context) (*HistoryStats, error)
}

// Record stores one event and all of its conflicts in a single call.
func Record(ctx context.Context, s Store, ev MergeEvent, conflicts []ConflictEvent) error {
	if err := s.RecordEvent(ctx, ev); err != nil {
		return err
	}
	for _, c := range conflicts {
		if err := s.RecordConflict(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
