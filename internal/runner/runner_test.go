package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pymerge/internal/history"
	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/phase"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestRunner(t *testing.T, store history.Store) *Runner {
	t.Helper()
	engine := merge.NewEngine()
	t.Cleanup(func() { engine.Close() })
	return New(engine, store, nil, nil)
}

func TestScan_GroupsByTarget(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mod.py", "A = 1\n")
	writeFile(t, dir, "mod.draft.py", "B = 2\n")
	writeFile(t, dir, "sub/other.review.py", "C = 3\n")
	writeFile(t, dir, "untouched.py", "D = 4\n") // no contributions, not a job
	writeFile(t, dir, "notes.md", "ignored")

	jobs, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, filepath.Join(dir, "mod.py"), jobs[0].Target)
	assert.Len(t, jobs[0].Files, 2)
	assert.Equal(t, filepath.Join(dir, "sub", "other.py"), jobs[1].Target)
	assert.Len(t, jobs[1].Files, 1)
}

func TestMergeJob_WritesMergedOutputWithBackup(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "mod.py", "A = 1\n")
	draft := writeFile(t, dir, "mod.draft.py", "A = 1\n\nB = 2\n")

	store := history.NewMemStore()
	r := newTestRunner(t, store)

	out, err := r.MergeJob(context.Background(), Job{
		Target: target,
		Files: []phase.FileInput{
			{Path: target, Phase: merge.PhaseTarget},
			{Path: draft, Phase: merge.PhaseDraft},
		},
	})
	require.NoError(t, err)
	require.Equal(t, merge.ResultMerged, out.Result.Kind)
	assert.True(t, out.Wrote)

	merged, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(merged), "B = 2")

	backup, err := os.ReadFile(target + ".backup")
	require.NoError(t, err)
	assert.Equal(t, "A = 1\n", string(backup))

	// The outcome was recorded.
	require.NotEmpty(t, out.EventID)
	ev, err := store.GetEvent(context.Background(), out.EventID)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "merged", ev.Kind)
	assert.Equal(t, target, ev.Target)
}

func TestMergeJob_ConflictNeverTouchesDisk(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "mod.py", "def f():\n    return 1\n")
	draft := writeFile(t, dir, "mod.draft.py", "def f():\n    return 2\n")

	store := history.NewMemStore()
	r := newTestRunner(t, store)

	out, err := r.MergeJob(context.Background(), Job{
		Target: target,
		Files: []phase.FileInput{
			{Path: target, Phase: merge.PhaseTarget},
			{Path: draft, Phase: merge.PhaseDraft},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, merge.ResultConflict, out.Result.Kind)
	assert.False(t, out.Wrote)

	// Target is byte-identical; no backup was created.
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "def f():\n    return 1\n", string(data))
	_, err = os.Stat(target + ".backup")
	assert.True(t, os.IsNotExist(err))

	conflicts, err := store.ListConflicts(context.Background(), out.EventID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "f", conflicts[0].Name)
}

func TestMergeJob_MissingTargetMergesAgainstEmptyModule(t *testing.T) {
	dir := t.TempDir()
	draft := writeFile(t, dir, "mod.draft.py", "```python\nA = 1\n```\n")
	target := filepath.Join(dir, "mod.py")

	r := newTestRunner(t, nil)
	out, err := r.MergeJob(context.Background(), Job{
		Target: target,
		Files:  []phase.FileInput{{Path: draft, Phase: merge.PhaseDraft}},
	})
	require.NoError(t, err)
	require.Equal(t, merge.ResultMerged, out.Result.Kind)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "__all__ = [\"A\"]\n\nA = 1\n", string(data), "fences cleaned, fresh module created")
}

func TestRun_BatchReportsEveryOutcome(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.py", "A = 1\n")
	writeFile(t, dir, "good.draft.py", "B = 2\n")
	writeFile(t, dir, "bad.py", "def f():\n    return 1\n")
	writeFile(t, dir, "bad.review.py", "def f():\n    return 2\n")

	jobs, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	var mu sync.Mutex
	var events []ProgressEvent
	engine := merge.NewEngine()
	defer engine.Close()
	// The callback runs from worker goroutines, so it must lock.
	r := New(engine, history.NewMemStore(), nil, func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	outcomes, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byTarget := map[string]Outcome{}
	for _, out := range outcomes {
		byTarget[filepath.Base(out.Target)] = out
	}
	assert.Equal(t, merge.ResultConflict, byTarget["bad.py"].Result.Kind)
	assert.Equal(t, merge.ResultMerged, byTarget["good.py"].Result.Kind)

	var merged, conflicted bool
	for _, ev := range events {
		switch ev.Status {
		case ProgressMerged:
			merged = true
		case ProgressConflict:
			conflicted = true
		}
	}
	assert.True(t, merged)
	assert.True(t, conflicted)
}
