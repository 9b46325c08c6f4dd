package merge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubParser returns canned modules per phase, bypassing tree-sitter. Used to
// force planner-internal situations that real parses cannot easily reach.
type stubParser struct {
	mods map[Phase]*Module
}

func (s *stubParser) Parse(_ context.Context, _ []byte, phase Phase) (*Module, error) {
	if mod, ok := s.mods[phase]; ok {
		return mod, nil
	}
	return &Module{Phase: phase}, nil
}

func (s *stubParser) Close() error { return nil }

func doMerge(t *testing.T, target string, incoming map[Phase]string) MergeResult {
	t.Helper()
	e := NewEngine()
	defer e.Close()

	var ins []Input
	for _, phase := range PipelineOrder {
		if src, ok := incoming[phase]; ok {
			ins = append(ins, Input{Phase: phase, Text: []byte(src)})
		}
	}
	return e.Merge(context.Background(), Input{Phase: PhaseTarget, Text: []byte(target)}, ins)
}

func TestMerge_Idempotence(t *testing.T) {
	src := "\"\"\"Point helpers.\"\"\"\n" +
		"\n" +
		"import math\n" +
		"\n" +
		"__all__ = [\"distance\"]\n" +
		"\n" +
		"\n" +
		"def distance(a, b):\n" +
		"    return math.sqrt((a.x - b.x) ** 2 + (a.y - b.y) ** 2)\n"

	res := doMerge(t, src, map[Phase]string{PhaseDraft: src})

	require.Equal(t, ResultMerged, res.Kind)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, src, res.Text)
}

func TestMerge_FutureOrderingInvariant(t *testing.T) {
	future := "from __future__ import annotations\n"
	res := doMerge(t,
		"\"\"\"Doc.\"\"\"\n\n"+future+"\n\nB = 2\n",
		map[Phase]string{
			PhaseSpec:  future + "\n\nA = 1\n",
			PhaseDraft: future + "\n\nC = 3\n",
		})

	require.Equal(t, ResultMerged, res.Kind)
	lines := strings.Split(res.Text, "\n")
	require.Greater(t, len(lines), 2)
	assert.Equal(t, "\"\"\"Doc.\"\"\"", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "from __future__ import annotations", lines[2])
	assert.Equal(t, 1, strings.Count(res.Text, "from __future__"),
		"future import present in three inputs must appear exactly once")
}

func TestMerge_ExportFidelity(t *testing.T) {
	res := doMerge(t,
		"__all__ = [\"A\", \"B\"]\n\n\ndef A():\n    pass\n\n\ndef B():\n    pass\n",
		map[Phase]string{
			PhaseDraft: "def C():\n    pass\n",
		})

	require.Equal(t, ResultMerged, res.Kind)
	require.NotNil(t, res.Module.ExportList)
	assert.Equal(t, []string{"A", "B"}, res.Module.ExportList.Names)
	assert.Contains(t, res.Text, "def C():", "C stays as a non-exported declaration")
	assert.Equal(t, 1, strings.Count(res.Text, "__all__"))
	assert.Contains(t, res.Text, "__all__ = [\"A\", \"B\"]")
}

func TestMerge_NoLeakInvariant(t *testing.T) {
	res := doMerge(t,
		"def api():\n    return 1\n",
		map[Phase]string{
			PhaseDraft: "def api():\n    return 1\n\n\nif __name__ == \"__main__\":\n    demo_run(api())\n",
		})

	require.Equal(t, ResultMerged, res.Kind)
	assert.NotContains(t, res.Text, "__main__")
	assert.NotContains(t, res.Text, "demo_run")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "entry-guard")
	assert.Contains(t, res.Warnings[0], "draft")
}

func TestMerge_ConflictCorrectness(t *testing.T) {
	res := doMerge(t,
		"def f():\n    return \"target\"\n",
		map[Phase]string{
			PhaseDraft: "def f():\n    return \"draft\"\n",
		})

	require.Equal(t, ResultConflict, res.Kind)
	assert.Empty(t, res.Text, "a conflicted merge never carries output text")
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "f", res.Conflicts[0].Name)
	assert.Equal(t, []Phase{PhaseDraft, PhaseTarget}, res.Conflicts[0].Phases)
	assert.NotEmpty(t, FormatConflict(res.Conflicts[0]))
}

func TestMerge_ParseErrorPropagates(t *testing.T) {
	res := doMerge(t,
		"A = 1\n",
		map[Phase]string{
			PhaseReview: "def broken(:\n    pass\n",
		})

	require.Equal(t, ResultParseError, res.Kind)
	require.NotNil(t, res.ParseErr)
	assert.Equal(t, PhaseReview, res.ParseErr.Phase)
	assert.Greater(t, res.ParseErr.Line, 0)
}

func TestMerge_FallbackRefusal(t *testing.T) {
	// Force a planning failure: a genuine load-time cycle split across
	// phases. The result must be a Conflict, never concatenated text.
	mods := map[Phase]*Module{
		PhaseDraft: {
			Phase: PhaseDraft,
			Decls: []Declaration{
				{Name: "A", Kind: DeclAssignment, Phase: PhaseDraft, Source: "A = B", LoadRefs: []string{"B"}},
			},
		},
		PhaseTarget: {
			Phase: PhaseTarget,
			Decls: []Declaration{
				{Name: "B", Kind: DeclAssignment, Phase: PhaseTarget, Source: "B = A", LoadRefs: []string{"A"}},
			},
		},
	}

	e := NewEngineWithParser(&stubParser{mods: mods})
	res := e.Merge(context.Background(),
		Input{Phase: PhaseTarget}, []Input{{Phase: PhaseDraft}})

	require.Equal(t, ResultConflict, res.Kind)
	assert.Empty(t, res.Text)
	require.NotEmpty(t, res.Conflicts)
	assert.Contains(t, res.Conflicts[0].Reason, "circular")
}

func TestMerge_InputValidation(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	ctx := context.Background()

	t.Run("mistagged target", func(t *testing.T) {
		res := e.Merge(ctx, Input{Phase: PhaseDraft, Text: []byte("A = 1\n")}, nil)
		require.Equal(t, ResultParseError, res.Kind)
		assert.Contains(t, res.ParseErr.Message, "target")
	})

	t.Run("duplicate phase", func(t *testing.T) {
		res := e.Merge(ctx,
			Input{Phase: PhaseTarget, Text: []byte("A = 1\n")},
			[]Input{
				{Phase: PhaseDraft, Text: []byte("B = 2\n")},
				{Phase: PhaseDraft, Text: []byte("C = 3\n")},
			})
		require.Equal(t, ResultParseError, res.Kind)
		assert.Contains(t, res.ParseErr.Message, "duplicate")
	})

	t.Run("second target", func(t *testing.T) {
		res := e.Merge(ctx,
			Input{Phase: PhaseTarget, Text: []byte("A = 1\n")},
			[]Input{{Phase: PhaseTarget, Text: []byte("B = 2\n")}})
		require.Equal(t, ResultParseError, res.Kind)
	})
}

func TestMerge_EndToEndScenario(t *testing.T) {
	target := "\"\"\"Runtime configuration.\"\"\"\n" +
		"\n" +
		"__all__ = [\"Config\"]\n" +
		"\n" +
		"\n" +
		"class Config:\n" +
		"    pass\n"
	draft := "class Config:\n" +
		"    def __init__(self):\n" +
		"        self.debug = False\n" +
		"\n" +
		"\n" +
		"if __name__ == \"__main__\":\n" +
		"    print(Config())\n"

	res := doMerge(t, target, map[Phase]string{PhaseDraft: draft})

	require.Equal(t, ResultMerged, res.Kind)

	// Draft's Config is a strict superset: the added field survives.
	assert.Contains(t, res.Text, "self.debug = False")

	// Export list is exactly the target's.
	assert.Equal(t, []string{"Config"}, res.Module.ExportList.Names)
	assert.Contains(t, res.Text, "__all__ = [\"Config\"]")

	// The entry-guard block is gone, with one warning for the exclusion.
	assert.NotContains(t, res.Text, "__main__")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "entry-guard")

	// The merged output is valid input again.
	p := NewTreeSitterParser()
	defer p.Close()
	_, err := p.Parse(context.Background(), []byte(res.Text), PhaseTarget)
	assert.NoError(t, err)
}
