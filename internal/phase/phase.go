// Package phase adapts raw generation-pipeline artifacts into engine inputs.
// Generation phases emit files wrapped in markdown fences and tagged by
// filename convention; everything here is a thin adapter in front of the
// merge engine, which never performs I/O itself.
package phase

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/pymerge/internal/merge"
)

// Suffixes maps filename phase markers to pipeline phases. A file without a
// marker ("mod.py") is the pre-existing target.
var Suffixes = map[string]merge.Phase{
	".spec":   merge.PhaseSpec,
	".draft":  merge.PhaseDraft,
	".review": merge.PhaseReview,
}

// FromFilename derives the phase tag and target stem from a file path:
// "pkg/mod.draft.py" is the draft contribution for "pkg/mod.py".
func FromFilename(path string) (merge.Phase, string) {
	if filepath.Ext(path) != ".py" {
		return "", ""
	}
	stem := strings.TrimSuffix(path, ".py")
	for marker, p := range Suffixes {
		if strings.HasSuffix(stem, marker) {
			return p, strings.TrimSuffix(stem, marker) + ".py"
		}
	}
	return merge.PhaseTarget, path
}

// CleanFences strips a wrapping markdown code fence from generated output.
// Generation phases routinely emit "```python ... ```" blocks; the engine
// wants bare source.
func CleanFences(text string) string {
	lines := strings.Split(text, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start >= len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[start]), "```") {
		return text
	}

	end := len(lines) - 1
	for end > start && strings.TrimSpace(lines[end]) == "" {
		end--
	}
	if end <= start || strings.TrimSpace(lines[end]) != "```" {
		return text
	}

	return strings.Join(lines[start+1:end], "\n") + "\n"
}

// FileInput names one on-disk phase contribution.
type FileInput struct {
	Path  string
	Phase merge.Phase
}

// Load reads and cleans every file and splits the set into the target input
// and the incoming contributions. Exactly one file must be tagged target.
func Load(files []FileInput) (merge.Input, []merge.Input, error) {
	var target merge.Input
	var incoming []merge.Input
	haveTarget := false

	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return merge.Input{}, nil, fmt.Errorf("read %s contribution: %w", f.Phase, err)
		}
		in := merge.Input{Phase: f.Phase, Text: []byte(CleanFences(string(data)))}
		if f.Phase == merge.PhaseTarget {
			if haveTarget {
				return merge.Input{}, nil, fmt.Errorf("two files tagged target: %s", f.Path)
			}
			target = in
			haveTarget = true
			continue
		}
		incoming = append(incoming, in)
	}

	if !haveTarget {
		return merge.Input{}, nil, fmt.Errorf("no file tagged target among %d inputs", len(files))
	}
	return target, incoming, nil
}
