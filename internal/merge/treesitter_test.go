package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseText(t *testing.T, phase Phase, text string) *Module {
	t.Helper()
	p := NewTreeSitterParser()
	defer p.Close()
	mod, err := p.Parse(context.Background(), []byte(text), phase)
	require.NoError(t, err)
	require.NotNil(t, mod)
	return mod
}

func TestParse_DocstringExtracted(t *testing.T) {
	mod := parseText(t, PhaseDraft, "\"\"\"Utility helpers.\"\"\"\n\nimport os\n")

	assert.Equal(t, "\"\"\"Utility helpers.\"\"\"", mod.Docstring)
	require.Len(t, mod.Decls, 1)
	assert.Equal(t, DeclImport, mod.Decls[0].Kind)
}

func TestParse_DocstringOnlyWhenLeading(t *testing.T) {
	mod := parseText(t, PhaseDraft, "import os\n\n\"\"\"not a docstring\"\"\"\n")

	assert.Empty(t, mod.Docstring)
	assert.Len(t, mod.Decls, 2)
}

func TestParse_PreservesOrderAndSpans(t *testing.T) {
	src := "import os\n\n\ndef main():\n    return os.getcwd()\n\n\nVALUE = 42\n"
	mod := parseText(t, PhaseSpec, src)

	require.Len(t, mod.Decls, 3)
	assert.Equal(t, DeclImport, mod.Decls[0].Kind)
	assert.Equal(t, DeclFunction, mod.Decls[1].Kind)
	assert.Equal(t, "main", mod.Decls[1].Name)
	assert.Equal(t, DeclAssignment, mod.Decls[2].Kind)
	assert.Equal(t, "VALUE", mod.Decls[2].Name)

	// Raw spans reproduce the statement text byte-for-byte.
	assert.Equal(t, "import os", mod.Decls[0].Source)
	assert.Equal(t, "def main():\n    return os.getcwd()", mod.Decls[1].Source)
	assert.Equal(t, "VALUE = 42", mod.Decls[2].Source)

	for i, d := range mod.Decls {
		assert.Equal(t, i, d.Ordinal, "ordinal for %s", d.Name)
		assert.Equal(t, PhaseSpec, d.Phase)
		assert.Greater(t, d.Line, 0)
	}
}

func TestParse_SyntaxErrorLocation(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	_, err := p.Parse(context.Background(), []byte("def broken(:\n    pass\n"), PhaseReview)
	require.Error(t, err)

	pe, ok := err.(*ParseError)
	require.True(t, ok, "expected *ParseError, got %T", err)
	assert.Equal(t, PhaseReview, pe.Phase)
	assert.Greater(t, pe.Line, 0)
	assert.Greater(t, pe.Column, 0)
	assert.Contains(t, pe.Error(), "review")
}

func TestParse_ExportListLifted(t *testing.T) {
	src := "import os\n\n__all__ = [\"walk\", \"main\"]\n\n\ndef walk():\n    pass\n"
	mod := parseText(t, PhaseTarget, src)

	require.NotNil(t, mod.ExportList)
	assert.Equal(t, []string{"walk", "main"}, mod.ExportList.Names)
	assert.Equal(t, 1, mod.ExportList.Ordinal)
	assert.Equal(t, "__all__ = [\"walk\", \"main\"]", mod.ExportList.Source)

	// The __all__ assignment is not a mergeable declaration.
	for _, d := range mod.Decls {
		assert.NotEqual(t, "__all__", d.Name)
	}
}

func TestParse_EmptyModule(t *testing.T) {
	mod := parseText(t, PhaseTarget, "")
	assert.Empty(t, mod.Decls)
	assert.Empty(t, mod.Docstring)
	assert.Nil(t, mod.ExportList)
}
