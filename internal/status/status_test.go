package status

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pymerge/internal/merge"
)

func write(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("A = 1\n"), 0o644))
	return path
}

func TestGetModuleStatus(t *testing.T) {
	dir := t.TempDir()
	target := write(t, dir, "mod.py")
	write(t, dir, "mod.draft.py")
	write(t, dir, "mod.py.backup")

	ms := GetModuleStatus(target)

	require.Len(t, ms.Phases, 4)
	byPhase := map[merge.Phase]PhaseInfo{}
	for _, pi := range ms.Phases {
		byPhase[pi.Phase] = pi
	}
	assert.False(t, byPhase[merge.PhaseSpec].Present)
	assert.True(t, byPhase[merge.PhaseDraft].Present)
	assert.True(t, byPhase[merge.PhaseTarget].Present)
	assert.True(t, ms.Pending)
	assert.True(t, ms.HasBackup)
	assert.Equal(t, merge.PhaseTarget, ms.Phases[len(ms.Phases)-1].Phase, "target listed last")
}

func TestListModules(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.py")
	write(t, dir, "a.review.py")
	write(t, dir, "sub/b.spec.py") // orphaned phase file, target missing

	modules, err := ListModules(dir)
	require.NoError(t, err)
	require.Len(t, modules, 2)

	assert.Equal(t, filepath.Join(dir, "a.py"), modules[0].Target)
	assert.True(t, modules[0].Pending)

	assert.Equal(t, filepath.Join(dir, "sub", "b.py"), modules[1].Target)
	assert.True(t, modules[1].Pending)
	for _, pi := range modules[1].Phases {
		if pi.Phase == merge.PhaseTarget {
			assert.False(t, pi.Present)
		}
	}
}
