package merge

import (
	"fmt"
	"sort"
	"strings"
)

// newConflictResult packages irreconcilable collisions for the caller. No
// unilateral resolution is attempted: an automatic guess risks silently
// corrupting a file, a refused merge is always recoverable.
func newConflictResult(records []ConflictRecord) MergeResult {
	out := make([]ConflictRecord, len(records))
	for i, r := range records {
		out[i] = ConflictRecord{
			Name:   r.Name,
			Phases: mergePhases(nil, r.Phases),
			Reason: r.Reason,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return MergeResult{Kind: ResultConflict, Conflicts: out}
}

// newParseErrorResult packages a fatal syntax failure.
func newParseErrorResult(err *ParseError) MergeResult {
	return MergeResult{Kind: ResultParseError, ParseErr: err}
}

// FormatConflict renders one conflict record as a human-readable diagnostic
// naming the offending phases and declaration.
func FormatConflict(r ConflictRecord) string {
	phases := make([]string, len(r.Phases))
	for i, p := range r.Phases {
		phases[i] = string(p)
	}
	return fmt.Sprintf("%s: conflicting definitions in %s: %s",
		r.Name, strings.Join(phases, ", "), r.Reason)
}

// mergePhases appends extras onto base, de-duplicating and normalizing to
// pipeline order.
func mergePhases(base, extras []Phase) []Phase {
	seen := make(map[Phase]bool, len(base)+len(extras))
	for _, p := range base {
		seen[p] = true
	}
	for _, p := range extras {
		seen[p] = true
	}
	var out []Phase
	for _, p := range PipelineOrder {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}
