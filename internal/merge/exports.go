package merge

import (
	"fmt"
	"strings"
)

// resolveExports attaches the governing export list to the merged module and
// inserts its statement into the declaration sequence.
//
// The target's explicit __all__ is authoritative and re-emitted verbatim at
// its original relative position — a module may intentionally keep helpers
// private, so names other phases add never widen it. Without an explicit
// list, one is derived from the merged non-private top-level names in
// first-definition order. This step cannot fail: an empty declaration set
// yields an empty export list (and no synthesized statement).
func resolveExports(merged *Module, mods []*Module) {
	var owner *Module
	for _, m := range mods {
		if m.ExportList != nil {
			// Pipeline order with target folded last: the latest explicit
			// list wins, which always prefers the target's.
			owner = m
		}
	}

	if owner != nil {
		merged.ExportList = &ExportList{
			Names:  append([]string(nil), owner.ExportList.Names...),
			Source: owner.ExportList.Source,
		}
		decl := Declaration{
			Name:         "__all__",
			Kind:         DeclAssignment,
			Phase:        owner.Phase,
			Ordinal:      owner.ExportList.Ordinal,
			Source:       owner.ExportList.Source,
			IsExportList: true,
			ExportNames:  merged.ExportList.Names,
		}
		insertAt := exportPosition(merged, owner)
		merged.Decls = append(merged.Decls, Declaration{})
		copy(merged.Decls[insertAt+1:], merged.Decls[insertAt:])
		merged.Decls[insertAt] = decl
		return
	}

	var names []string
	for _, d := range merged.Decls {
		if d.Name == "" || strings.HasPrefix(d.Name, "_") {
			continue
		}
		switch d.Kind {
		case DeclClass, DeclFunction, DeclAssignment:
			names = append(names, d.Name)
		}
	}

	merged.ExportList = &ExportList{Names: names, Derived: true}
	if len(names) == 0 {
		return
	}

	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	decl := Declaration{
		Name:         "__all__",
		Kind:         DeclAssignment,
		Phase:        PhaseTarget,
		Source:       fmt.Sprintf("__all__ = [%s]", strings.Join(quoted, ", ")),
		IsExportList: true,
		ExportNames:  names,
	}
	insertAt := afterImports(merged)
	merged.Decls = append(merged.Decls, Declaration{})
	copy(merged.Decls[insertAt+1:], merged.Decls[insertAt:])
	merged.Decls[insertAt] = decl
}

// exportPosition finds where the owner's __all__ belongs in the merged
// sequence: right after the owner declaration that preceded it, or after the
// import block when no preceding declaration survived the merge.
func exportPosition(merged *Module, owner *Module) int {
	for ord := owner.ExportList.Ordinal - 1; ord >= 0; ord-- {
		prev := owner.Decls[ord]
		for i, d := range merged.Decls {
			if declMatches(d, prev) {
				return i + 1
			}
		}
	}
	return afterImports(merged)
}

func declMatches(a, b Declaration) bool {
	if a.Kind != b.Kind {
		return false
	}
	if b.Name != "" {
		return a.Name == b.Name
	}
	return normalizeText(a.Source) == normalizeText(b.Source)
}

// afterImports returns the index just past the leading import block.
func afterImports(m *Module) int {
	i := 0
	for i < len(m.Decls) && m.Decls[i].Kind == DeclImport {
		i++
	}
	return i
}
