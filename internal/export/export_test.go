package export

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pymerge/internal/history"
	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/runner"
)

func TestBuildReport(t *testing.T) {
	outcomes := []runner.Outcome{
		{
			Target:   "pkg/good.py",
			Wrote:    true,
			Duration: 12 * time.Millisecond,
			Result: merge.MergeResult{
				Kind:     merge.ResultMerged,
				Warnings: []string{"excluded entry-guard block from draft (statement 3, line 9)"},
			},
		},
		{
			Target: "pkg/bad.py",
			Result: merge.MergeResult{
				Kind: merge.ResultConflict,
				Conflicts: []merge.ConflictRecord{
					{Name: "f", Phases: []merge.Phase{merge.PhaseDraft, merge.PhaseTarget}, Reason: "changed body"},
				},
			},
		},
		{
			Target: "pkg/broken.py",
			Result: merge.MergeResult{
				Kind:     merge.ResultParseError,
				ParseErr: &merge.ParseError{Phase: merge.PhaseSpec, Line: 2, Column: 5, Message: "invalid syntax"},
			},
		},
	}

	report := BuildReport(outcomes)

	assert.Equal(t, 1, report.Summary.Merged)
	assert.Equal(t, 1, report.Summary.Conflicts)
	assert.Equal(t, 1, report.Summary.ParseErrors)
	require.Len(t, report.Modules, 3)

	assert.True(t, report.Modules[0].Wrote)
	assert.Equal(t, int64(12), report.Modules[0].DurationMS)

	require.Len(t, report.Modules[1].Conflicts, 1)
	assert.Equal(t, []string{"draft", "target"}, report.Modules[1].Conflicts[0].Phases)

	assert.Contains(t, report.Modules[2].ParseError, "invalid syntax")

	// The report round-trips as JSON.
	data, err := report.JSON()
	require.NoError(t, err)
	var decoded MergeReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Summary, decoded.Summary)
}

func TestGenerateMermaid(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemStore()

	ev := history.MergeEvent{
		ID:        "ev1",
		Target:    "pkg/mod.py",
		Kind:      "conflict",
		Phases:    []string{"draft", "target"},
		Timestamp: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, history.Record(ctx, store, ev, []history.ConflictEvent{
		{ID: "c1", EventID: "ev1", Name: "f", Phases: []string{"draft", "target"}, Reason: "changed body"},
	}))

	diagram, err := GenerateMermaid(ctx, store, "pkg/mod.py", 10)
	require.NoError(t, err)

	assert.Contains(t, diagram, "graph TD")
	assert.Contains(t, diagram, "pkg/mod.py")
	assert.Contains(t, diagram, "conflict 2026-08-30 10:00")
	assert.Contains(t, diagram, "[\"draft\"]")
	assert.Contains(t, diagram, "f: changed body")
	assert.Contains(t, diagram, "-.->")
}

func TestGenerateMermaid_EmptyHistory(t *testing.T) {
	diagram, err := GenerateMermaid(context.Background(), history.NewMemStore(), "pkg/mod.py", 5)
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n  N0[\"pkg/mod.py\"]\n", diagram)
}
