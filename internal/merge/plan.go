package merge

import (
	"fmt"
	"strings"
)

// planner folds classified modules into one declaration sequence or a set of
// conflicts. Inputs must already be sorted in pipeline order; the target is
// folded last and wins exact ties.
type planner struct {
	warnings  []string
	conflicts map[string]*ConflictRecord
	order     []string // conflict names in first-detected order

	futureStmts []*importStmtPlan
	futureTable map[string]*bindingPlan
	importStmts []*importStmtPlan
	importTable map[string]*bindingPlan

	seq         []*planEntry
	byName      map[string]*planEntry
	unnamedSeen map[string]bool
}

// planEntry is one retained declaration slot: the current winner plus every
// phase that contributed a same-named definition.
type planEntry struct {
	decl   Declaration
	phases []Phase
}

// importStmtPlan tracks one original import statement and the fate of each
// of its bindings, so unchanged statements re-emit byte-for-byte.
type importStmtPlan struct {
	decl     Declaration
	bindings []*bindingPlan
}

type bindingPlan struct {
	ImportBinding
	changed bool // alias rewritten during folding
}

// planMerge combines modules into a merged Module. On any conflict the
// returned module is nil and the full conflict list is populated — never a
// partial merge.
func planMerge(mods []*Module) (*Module, []string, []ConflictRecord) {
	p := &planner{
		conflicts:   make(map[string]*ConflictRecord),
		futureTable: make(map[string]*bindingPlan),
		importTable: make(map[string]*bindingPlan),
		byName:      make(map[string]*planEntry),
		unnamedSeen: make(map[string]bool),
	}

	for _, mod := range mods {
		p.foldModule(mod)
	}

	if len(p.conflicts) == 0 {
		p.repairForwardReferences()
	}
	if len(p.conflicts) > 0 {
		return nil, nil, p.conflictList()
	}

	merged := &Module{
		Phase:     PhaseTarget,
		Docstring: pickDocstring(mods),
	}
	merged.Decls = append(merged.Decls, renderImports(p.futureStmts)...)
	merged.Decls = append(merged.Decls, renderImports(p.importStmts)...)
	for _, entry := range p.seq {
		merged.Decls = append(merged.Decls, entry.decl)
	}
	return merged, p.warnings, nil
}

func (p *planner) foldModule(mod *Module) {
	for _, decl := range mod.Decls {
		switch decl.Kind {
		case DeclImport:
			if decl.Future {
				p.foldImport(decl, &p.futureStmts, p.futureTable)
			} else {
				p.foldImport(decl, &p.importStmts, p.importTable)
			}
		case DeclEntryGuard:
			p.warnf("excluded entry-guard block from %s (statement %d, line %d)",
				decl.Phase, decl.Ordinal+1, decl.Line)
		case DeclBareExpr:
			p.warnf("excluded bare top-level call %q from %s (statement %d, line %d)",
				firstLine(decl.Source), decl.Phase, decl.Ordinal+1, decl.Line)
		default:
			p.foldDecl(decl)
		}
	}
}

// foldImport merges one import statement into the binding table,
// de-duplicating by (source module, imported name). On alias disagreement
// the target's alias wins; otherwise the first-seen alias is kept. Either
// resolution records one warning.
func (p *planner) foldImport(decl Declaration, stmts *[]*importStmtPlan, table map[string]*bindingPlan) {
	sp := &importStmtPlan{decl: decl}
	for _, b := range decl.Bindings {
		existing := table[b.key()]
		if existing == nil {
			bp := &bindingPlan{ImportBinding: b}
			table[b.key()] = bp
			sp.bindings = append(sp.bindings, bp)
			continue
		}
		if b.Alias != existing.Alias {
			if decl.Phase == PhaseTarget {
				p.warnf("import alias collision for %s: target alias %q replaces %q",
					importLabel(b), b.Alias, existing.Alias)
				existing.Alias = b.Alias
				existing.changed = true
			} else {
				p.warnf("import alias collision for %s: keeping first-seen alias %q, ignoring %q from %s",
					importLabel(b), existing.Alias, b.Alias, decl.Phase)
			}
		}
	}
	if len(sp.bindings) > 0 {
		*stmts = append(*stmts, sp)
	}
}

// foldDecl merges one non-import declaration by name. Unnamed statements are
// kept, de-duplicated by normalized text.
func (p *planner) foldDecl(decl Declaration) {
	if decl.Name == "" {
		key := normalizeText(decl.Source)
		if p.unnamedSeen[key] {
			return
		}
		p.unnamedSeen[key] = true
		p.seq = append(p.seq, &planEntry{decl: decl, phases: []Phase{decl.Phase}})
		return
	}

	existing := p.byName[decl.Name]
	if existing == nil {
		entry := &planEntry{decl: decl, phases: []Phase{decl.Phase}}
		p.byName[decl.Name] = entry
		p.seq = append(p.seq, entry)
		return
	}

	existing.phases = append(existing.phases, decl.Phase)

	if existing.decl.Kind != decl.Kind {
		p.conflict(decl.Name, existing.phases, fmt.Sprintf(
			"defined as %s in %s but as %s in %s",
			existing.decl.Kind, existing.decl.Phase, decl.Kind, decl.Phase))
		return
	}

	// Structurally identical: one copy survives, later phase wins the tie.
	if normalizeText(existing.decl.Source) == normalizeText(decl.Source) {
		existing.decl = decl
		return
	}

	// Richness rule: a strict superset wins regardless of fold position,
	// because phases are expected to move toward completeness.
	if supersetOf(decl, existing.decl) {
		existing.decl = decl
		return
	}
	if supersetOf(existing.decl, decl) {
		return
	}

	p.conflict(decl.Name, existing.phases, incompatibleReason(existing.decl, decl))
}

// supersetOf reports whether a is a strict superset of b: same declared
// signature, every member of b present unchanged, only additions.
func supersetOf(a, b Declaration) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case DeclFunction:
		// A placeholder body loses to a real implementation with the same
		// signature; anything else is incomparable.
		return a.Signature == b.Signature && b.Stub && !a.Stub

	case DeclClass:
		if a.Signature != b.Signature || a.Opaque || b.Opaque {
			return false
		}
		if len(a.Members) <= len(b.Members) {
			return false
		}
		byName := make(map[string]string, len(a.Members))
		for _, m := range a.Members {
			byName[m.Name] = m.Body
		}
		for _, m := range b.Members {
			body, ok := byName[m.Name]
			if !ok || body != m.Body {
				return false
			}
		}
		return true
	}
	return false
}

func incompatibleReason(a, b Declaration) string {
	switch a.Kind {
	case DeclFunction:
		if a.Signature != b.Signature {
			return fmt.Sprintf("function signatures differ between %s and %s", a.Phase, b.Phase)
		}
		return fmt.Sprintf("function bodies differ between %s and %s and neither is a placeholder", a.Phase, b.Phase)
	case DeclClass:
		if a.Signature != b.Signature {
			return fmt.Sprintf("class headers differ between %s and %s", a.Phase, b.Phase)
		}
		if a.Opaque || b.Opaque {
			return fmt.Sprintf("class bodies are not member-comparable between %s and %s", a.Phase, b.Phase)
		}
		return fmt.Sprintf("class members changed or removed between %s and %s", a.Phase, b.Phase)
	case DeclAssignment:
		return fmt.Sprintf("assigned values differ between %s and %s", a.Phase, b.Phase)
	}
	return fmt.Sprintf("definitions differ between %s and %s", a.Phase, b.Phase)
}

// repairForwardReferences reorders only to fix names used before their
// defining declaration, hoisting the definition above its first load-time
// use. Genuine cycles are reported as conflicts, never resolved.
func (p *planner) repairForwardReferences() {
	deps := make(map[string][]string, len(p.byName))
	for name, entry := range p.byName {
		for _, ref := range entry.decl.LoadRefs {
			if _, ok := p.byName[ref]; ok && ref != name {
				deps[name] = append(deps[name], ref)
			}
		}
	}

	indexOf := func(name string) int {
		for i, entry := range p.seq {
			if entry.decl.Name == name {
				return i
			}
		}
		return -1
	}

	maxMoves := len(p.seq) * len(p.seq)
	for move := 0; ; move++ {
		i, j, ref := p.firstForwardReference(indexOf)
		if ref == "" {
			return
		}
		if cyc := findCycle(ref, deps); cyc != nil {
			p.conflict(ref, p.cyclePhases(cyc), fmt.Sprintf(
				"circular load-time dependency: %s", strings.Join(cyc, " -> ")))
			return
		}
		if move >= maxMoves {
			p.conflict(ref, []Phase{p.byName[ref].decl.Phase},
				"unable to order declarations without breaking a dependency")
			return
		}

		entry := p.seq[j]
		p.seq = append(p.seq[:j], p.seq[j+1:]...)
		rest := append([]*planEntry{entry}, p.seq[i:]...)
		p.seq = append(p.seq[:i:i], rest...)
		p.warnf("hoisted %s above its first use in %s", ref, describeEntry(p.seq[i+1]))
	}
}

// firstForwardReference returns the position of the first declaration that
// references a name defined later in the sequence, the position of that
// definition, and the name itself.
func (p *planner) firstForwardReference(indexOf func(string) int) (user, def int, ref string) {
	for i, entry := range p.seq {
		for _, r := range entry.decl.LoadRefs {
			if _, ok := p.byName[r]; !ok || r == entry.decl.Name {
				continue
			}
			if j := indexOf(r); j > i {
				return i, j, r
			}
		}
	}
	return 0, 0, ""
}

// findCycle returns a load-time dependency cycle reachable from start, or nil.
func findCycle(start string, deps map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		stack = append(stack, name)
		for _, dep := range deps[name] {
			switch color[dep] {
			case gray:
				for k, s := range stack {
					if s == dep {
						cycle = append(append([]string{}, stack[k:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	if visit(start) {
		return cycle
	}
	return nil
}

func (p *planner) cyclePhases(cycle []string) []Phase {
	seen := make(map[Phase]bool)
	var phases []Phase
	for _, name := range cycle {
		if entry := p.byName[name]; entry != nil && !seen[entry.decl.Phase] {
			seen[entry.decl.Phase] = true
			phases = append(phases, entry.decl.Phase)
		}
	}
	return phases
}

// renderImports emits merged import statements. A statement whose binding set
// survived untouched re-emits its original text; anything merged or rewritten
// is synthesized canonically.
func renderImports(stmts []*importStmtPlan) []Declaration {
	var out []Declaration
	for _, sp := range stmts {
		intact := len(sp.bindings) == len(sp.decl.Bindings)
		for _, bp := range sp.bindings {
			if bp.changed {
				intact = false
			}
		}

		decl := sp.decl
		if !intact {
			decl.Source = synthesizeImport(sp)
			decl.Bindings = make([]ImportBinding, len(sp.bindings))
			for i, bp := range sp.bindings {
				decl.Bindings[i] = bp.ImportBinding
			}
		}
		out = append(out, decl)
	}
	return out
}

func synthesizeImport(sp *importStmtPlan) string {
	// Plain imports ("import m as a") and from-imports never mix in one
	// statement; the first binding decides the form.
	if sp.bindings[0].Name == "" {
		var lines []string
		for _, bp := range sp.bindings {
			if bp.Alias != "" {
				lines = append(lines, fmt.Sprintf("import %s as %s", bp.Module, bp.Alias))
			} else {
				lines = append(lines, "import "+bp.Module)
			}
		}
		return strings.Join(lines, "\n")
	}

	var names []string
	for _, bp := range sp.bindings {
		if bp.Alias != "" {
			names = append(names, bp.Name+" as "+bp.Alias)
		} else {
			names = append(names, bp.Name)
		}
	}
	return fmt.Sprintf("from %s import %s", sp.bindings[0].Module, strings.Join(names, ", "))
}

func (p *planner) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

// conflict records one irreconcilable name. Repeated reports for the same
// name accumulate phases onto a single record.
func (p *planner) conflict(name string, phases []Phase, reason string) {
	if existing := p.conflicts[name]; existing != nil {
		existing.Phases = mergePhases(existing.Phases, phases)
		return
	}
	p.conflicts[name] = &ConflictRecord{
		Name:   name,
		Phases: mergePhases(nil, phases),
		Reason: reason,
	}
	p.order = append(p.order, name)
}

func (p *planner) conflictList() []ConflictRecord {
	out := make([]ConflictRecord, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, *p.conflicts[name])
	}
	return out
}

// pickDocstring prefers the target's docstring, falling back to the first
// phase that has one.
func pickDocstring(mods []*Module) string {
	first := ""
	for _, m := range mods {
		if m.Docstring == "" {
			continue
		}
		if m.Phase == PhaseTarget {
			return m.Docstring
		}
		if first == "" {
			first = m.Docstring
		}
	}
	return first
}

func importLabel(b ImportBinding) string {
	if b.Name != "" {
		return b.Module + "." + b.Name
	}
	return b.Module
}

func describeEntry(entry *planEntry) string {
	if entry.decl.Name != "" {
		return entry.decl.Name
	}
	return fmt.Sprintf("%s statement %d", entry.decl.Phase, entry.decl.Ordinal+1)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}
