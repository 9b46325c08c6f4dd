//go:build cgo

package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the leaf directory itself, so the
// history survives across sessions.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS MergeEvent(
		id STRING,
		target STRING,
		kind STRING,
		phases STRING,
		warnings STRING,
		timestamp STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Conflict(
		id STRING,
		name STRING,
		phases STRING,
		reason STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS REPORTED(FROM MergeEvent TO Conflict)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// listSep joins multi-valued columns; phase names and warning text never
// contain it.
const listSep = "\x1f"

// RecordEvent inserts a MergeEvent node.
func (s *KuzuStore) RecordEvent(_ context.Context, ev MergeEvent) error {
	return s.exec(
		`CREATE (e:MergeEvent {
			id: $id,
			target: $target,
			kind: $kind,
			phases: $phases,
			warnings: $warnings,
			timestamp: $ts
		})`,
		map[string]any{
			"id":       ev.ID,
			"target":   ev.Target,
			"kind":     ev.Kind,
			"phases":   strings.Join(ev.Phases, listSep),
			"warnings": strings.Join(ev.Warnings, listSep),
			"ts":       ev.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	)
}

// RecordConflict inserts a Conflict node and links it to its event.
func (s *KuzuStore) RecordConflict(_ context.Context, c ConflictEvent) error {
	err := s.exec(
		"CREATE (c:Conflict {id: $id, name: $name, phases: $phases, reason: $reason})",
		map[string]any{
			"id":     c.ID,
			"name":   c.Name,
			"phases": strings.Join(c.Phases, listSep),
			"reason": c.Reason,
		},
	)
	if err != nil {
		return err
	}
	return s.exec(
		`MATCH (e:MergeEvent {id: $ev}), (c:Conflict {id: $c})
		 CREATE (e)-[:REPORTED]->(c)`,
		map[string]any{"ev": c.EventID, "c": c.ID},
	)
}

// ---------- Read operations ----------

// GetEvent retrieves a single MergeEvent by ID, or nil if not found.
func (s *KuzuStore) GetEvent(_ context.Context, id string) (*MergeEvent, error) {
	rows, err := s.query(
		`MATCH (e:MergeEvent {id: $id})
		 RETURN e.id, e.target, e.kind, e.phases, e.warnings, e.timestamp`,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToEvent(rows[0]), nil
}

// ListEvents returns events for the given target, newest first, up to limit.
// An empty target matches every event.
func (s *KuzuStore) ListEvents(_ context.Context, target string, limit int) ([]MergeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	cypher := `MATCH (e:MergeEvent)
		 RETURN e.id, e.target, e.kind, e.phases, e.warnings, e.timestamp
		 ORDER BY e.timestamp DESC LIMIT $lim`
	params := map[string]any{"lim": int64(limit)}
	if target != "" {
		cypher = `MATCH (e:MergeEvent {target: $target})
		 RETURN e.id, e.target, e.kind, e.phases, e.warnings, e.timestamp
		 ORDER BY e.timestamp DESC LIMIT $lim`
		params["target"] = target
	}
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]MergeEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToEvent(r))
	}
	return out, nil
}

// ListConflicts returns all conflicts linked to the given event.
func (s *KuzuStore) ListConflicts(_ context.Context, eventID string) ([]ConflictEvent, error) {
	rows, err := s.query(
		`MATCH (e:MergeEvent {id: $ev})-[:REPORTED]->(c:Conflict)
		 RETURN c.id, c.name, c.phases, c.reason`,
		map[string]any{"ev": eventID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]ConflictEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, ConflictEvent{
			ID:      toString(r[0]),
			EventID: eventID,
			Name:    toString(r[1]),
			Phases:  splitList(toString(r[2])),
			Reason:  toString(r[3]),
		})
	}
	return out, nil
}

// ---------- Stats ----------

// Stats returns counts of stored events and conflicts.
func (s *KuzuStore) Stats(_ context.Context) (*HistoryStats, error) {
	events, err := s.countTable("MergeEvent")
	if err != nil {
		return nil, err
	}
	conflicts, err := s.countTable("Conflict")
	if err != nil {
		return nil, err
	}
	merged := 0
	rows, err := s.query(
		"MATCH (e:MergeEvent {kind: $k}) RETURN count(e)",
		map[string]any{"k": "merged"},
	)
	if err == nil && len(rows) > 0 && len(rows[0]) > 0 {
		merged = toInt(rows[0][0])
	}
	return &HistoryStats{
		EventCount:    events,
		MergedCount:   merged,
		ConflictCount: conflicts,
	}, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// countTable returns the number of rows in a node table.
func (s *KuzuStore) countTable(table string) (int, error) {
	// Table name is a fixed internal constant, not user input.
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN count(n)", table)
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// rowToEvent converts a 6-column result row into a MergeEvent.
// Column order: id, target, kind, phases, warnings, timestamp.
func rowToEvent(r []any) *MergeEvent {
	ts, _ := time.Parse(time.RFC3339Nano, toString(r[5]))
	return &MergeEvent{
		ID:        toString(r[0]),
		Target:    toString(r[1]),
		Kind:      toString(r[2]),
		Phases:    splitList(toString(r[3])),
		Warnings:  splitList(toString(r[4])),
		Timestamp: ts,
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).
// These helpers safely coerce any -> concrete type.

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
