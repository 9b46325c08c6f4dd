package mcptools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pymerge/internal/history"
	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/runner"
)

func newTestService(t *testing.T) (*MergeService, history.Store) {
	t.Helper()
	engine := merge.NewEngine()
	t.Cleanup(func() { engine.Close() })
	store := history.NewMemStore()
	r := runner.New(engine, store, nil, nil)
	return NewMergeService(engine, r, store), store
}

func TestMergeModule(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("merges fenced draft into target", func(t *testing.T) {
		_, out, err := svc.MergeModule(ctx, nil, MergeModuleInput{
			Target: "A = 1\n",
			Draft:  "```python\nA = 1\n\nB = 2\n```\n",
		})
		require.NoError(t, err)
		assert.Equal(t, "merged", out.Kind)
		assert.Contains(t, out.Text, "B = 2")
		assert.Empty(t, out.Conflicts)
	})

	t.Run("reports conflicts", func(t *testing.T) {
		_, out, err := svc.MergeModule(ctx, nil, MergeModuleInput{
			Target: "def f():\n    return 1\n",
			Review: "def f():\n    return 2\n",
		})
		require.NoError(t, err)
		assert.Equal(t, "conflict", out.Kind)
		assert.Empty(t, out.Text)
		require.Len(t, out.Conflicts, 1)
		assert.Contains(t, out.Conflicts[0], "f")
	})

	t.Run("requires at least one phase text", func(t *testing.T) {
		_, _, err := svc.MergeModule(ctx, nil, MergeModuleInput{Target: "A = 1\n"})
		assert.Error(t, err)
	})
}

func TestMergeFiles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	dir := t.TempDir()

	target := filepath.Join(dir, "mod.py")
	draft := filepath.Join(dir, "mod.draft.py")
	require.NoError(t, os.WriteFile(target, []byte("A = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(draft, []byte("A = 1\n\nB = 2\n"), 0o644))

	t.Run("dry run leaves disk untouched", func(t *testing.T) {
		_, out, err := svc.MergeFiles(ctx, nil, MergeFilesInput{Paths: []string{target, draft}})
		require.NoError(t, err)
		assert.Equal(t, "merged", out.Kind)
		assert.False(t, out.Wrote)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "A = 1\n", string(data))
	})

	t.Run("write persists the merge", func(t *testing.T) {
		_, out, err := svc.MergeFiles(ctx, nil, MergeFilesInput{Paths: []string{target, draft}, Write: true})
		require.NoError(t, err)
		assert.True(t, out.Wrote)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Contains(t, string(data), "B = 2")
	})

	t.Run("rejects mixed targets", func(t *testing.T) {
		other := filepath.Join(dir, "other.review.py")
		require.NoError(t, os.WriteFile(other, []byte("C = 3\n"), 0o644))
		_, _, err := svc.MergeFiles(ctx, nil, MergeFilesInput{Paths: []string{draft, other}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "two targets")
	})
}

func TestMergeHistory(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, history.Record(ctx, store,
		history.MergeEvent{
			ID:        "ev1",
			Target:    "pkg/mod.py",
			Kind:      "conflict",
			Phases:    []string{"draft", "target"},
			Timestamp: time.Now().UTC(),
		},
		[]history.ConflictEvent{
			{ID: "c1", EventID: "ev1", Name: "f", Phases: []string{"draft", "target"}, Reason: "changed body"},
		}))

	_, out, err := svc.MergeHistory(ctx, nil, MergeHistoryInput{Target: "pkg/mod.py"})
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "conflict", out.Events[0].Kind)
	require.Len(t, out.Events[0].Conflicts, 1)
	assert.Contains(t, out.Events[0].Conflicts[0], "changed body")
}
