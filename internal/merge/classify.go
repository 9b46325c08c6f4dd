package merge

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// classifyStatement tags one top-level statement with its Declaration kind
// and extracts the structural facts later merge stages need: import bindings,
// class member inventories, normalized signatures and bodies, and the names
// the statement references at import time.
func classifyStatement(stmt *tree_sitter.Node, source []byte, phase Phase, ordinal int) Declaration {
	decl := Declaration{
		Kind:    DeclOther,
		Phase:   phase,
		Ordinal: ordinal,
		Source:  strings.TrimRight(stmt.Utf8Text(source), " \t\n"),
		Line:    int(stmt.StartPosition().Row) + 1,
		EndLine: int(stmt.EndPosition().Row) + 1,
	}

	target := stmt
	if stmt.Kind() == "decorated_definition" {
		if def := stmt.ChildByFieldName("definition"); def != nil {
			target = def
		}
	}

	switch target.Kind() {
	case "future_import_statement":
		decl.Kind = DeclImport
		decl.Future = true
		decl.Bindings = fromImportBindings(target, source, "__future__")

	case "import_statement":
		decl.Kind = DeclImport
		decl.Bindings = plainImportBindings(target, source)

	case "import_from_statement":
		decl.Kind = DeclImport
		module := ""
		if m := target.ChildByFieldName("module_name"); m != nil {
			module = m.Utf8Text(source)
		}
		if module == "__future__" {
			decl.Future = true
		}
		decl.Bindings = fromImportBindings(target, source, module)

	case "class_definition":
		decl.Kind = DeclClass
		if name := target.ChildByFieldName("name"); name != nil {
			decl.Name = name.Utf8Text(source)
		}
		decl.Signature = classSignature(stmt, target, source)
		decl.Members, decl.Opaque = classMembers(target, source)
		decl.Body = normalizeText(bodyText(target, source))

	case "function_definition":
		decl.Kind = DeclFunction
		if name := target.ChildByFieldName("name"); name != nil {
			decl.Name = name.Utf8Text(source)
		}
		decl.Signature = functionSignature(stmt, target, source)
		decl.Body = normalizeText(bodyText(target, source))
		decl.Stub = isStubBlock(target.ChildByFieldName("body"), source)

	case "expression_statement":
		classifyExpression(target, source, &decl)

	case "if_statement":
		if isEntryGuard(target, source) {
			decl.Kind = DeclEntryGuard
		}
	}

	decl.LoadRefs = collectLoadRefs(stmt, source, decl.Name)
	return decl
}

// classifyExpression handles module-scope expression statements: assignments,
// bare calls, and everything else.
func classifyExpression(stmt *tree_sitter.Node, source []byte, decl *Declaration) {
	child := stmt.NamedChild(0)
	if child == nil {
		return
	}

	switch child.Kind() {
	case "assignment":
		left := child.ChildByFieldName("left")
		if left == nil || left.Kind() != "identifier" {
			// Tuple targets and attribute targets have no single merge name.
			return
		}
		decl.Kind = DeclAssignment
		decl.Name = left.Utf8Text(source)
		if right := child.ChildByFieldName("right"); right != nil {
			decl.Body = normalizeText(right.Utf8Text(source))
		}
		if decl.Name == "__all__" {
			decl.IsExportList = true
			decl.ExportNames = exportNames(child.ChildByFieldName("right"), source)
		}

	case "call":
		decl.Kind = DeclBareExpr
	}
}

// isEntryGuard reports whether the conditional structurally compares
// __name__ against a string literal with ==, i.e. "only runs when this
// module is executed directly".
func isEntryGuard(ifStmt *tree_sitter.Node, source []byte) bool {
	cond := ifStmt.ChildByFieldName("condition")
	for cond != nil && cond.Kind() == "parenthesized_expression" {
		cond = cond.NamedChild(0)
	}
	if cond == nil || cond.Kind() != "comparison_operator" || cond.NamedChildCount() != 2 {
		return false
	}

	hasEq := false
	for i := uint(0); i < cond.ChildCount(); i++ {
		if c := cond.Child(i); c != nil && !c.IsNamed() && c.Utf8Text(source) == "==" {
			hasEq = true
		}
	}
	if !hasEq {
		return false
	}

	left, right := cond.NamedChild(0), cond.NamedChild(1)
	isSentinel := func(n *tree_sitter.Node) bool {
		return n.Kind() == "identifier" && n.Utf8Text(source) == "__name__"
	}
	isLiteral := func(n *tree_sitter.Node) bool { return n.Kind() == "string" }

	return (isSentinel(left) && isLiteral(right)) || (isSentinel(right) && isLiteral(left))
}

// plainImportBindings extracts bindings from "import a, b.c as d".
func plainImportBindings(node *tree_sitter.Node, source []byte) []ImportBinding {
	var bindings []ImportBinding
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			bindings = append(bindings, ImportBinding{Module: child.Utf8Text(source)})
		case "aliased_import":
			b := ImportBinding{}
			if n := child.ChildByFieldName("name"); n != nil {
				b.Module = n.Utf8Text(source)
			}
			if a := child.ChildByFieldName("alias"); a != nil {
				b.Alias = a.Utf8Text(source)
			}
			bindings = append(bindings, b)
		}
	}
	return bindings
}

// fromImportBindings extracts bindings from "from m import a, b as c, *".
// The module_name child is skipped by byte range so only imported names are
// collected.
func fromImportBindings(node *tree_sitter.Node, source []byte, module string) []ImportBinding {
	moduleNode := node.ChildByFieldName("module_name")
	var bindings []ImportBinding
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if moduleNode != nil && child.StartByte() == moduleNode.StartByte() {
			continue
		}
		switch child.Kind() {
		case "dotted_name", "identifier":
			bindings = append(bindings, ImportBinding{Module: module, Name: child.Utf8Text(source)})
		case "aliased_import":
			b := ImportBinding{Module: module}
			if n := child.ChildByFieldName("name"); n != nil {
				b.Name = n.Utf8Text(source)
			}
			if a := child.ChildByFieldName("alias"); a != nil {
				b.Alias = a.Utf8Text(source)
			}
			bindings = append(bindings, b)
		case "wildcard_import":
			bindings = append(bindings, ImportBinding{Module: module, Name: "*"})
		}
	}
	return bindings
}

// exportNames reads the string elements of an __all__ list or tuple.
func exportNames(right *tree_sitter.Node, source []byte) []string {
	if right == nil {
		return nil
	}
	if right.Kind() != "list" && right.Kind() != "tuple" {
		return nil
	}
	var names []string
	for i := uint(0); i < right.NamedChildCount(); i++ {
		child := right.NamedChild(i)
		if child == nil || child.Kind() != "string" {
			continue
		}
		names = append(names, stringContent(child, source))
	}
	return names
}

// stringContent returns the text between a string literal's quotes.
func stringContent(str *tree_sitter.Node, source []byte) string {
	for i := uint(0); i < str.NamedChildCount(); i++ {
		if c := str.NamedChild(i); c != nil && c.Kind() == "string_content" {
			return c.Utf8Text(source)
		}
	}
	return ""
}

// classSignature is the normalized class header: decorators, name, and bases.
func classSignature(outer, def *tree_sitter.Node, source []byte) string {
	var parts []string
	if outer.Kind() == "decorated_definition" {
		for i := uint(0); i < outer.NamedChildCount(); i++ {
			if c := outer.NamedChild(i); c != nil && c.Kind() == "decorator" {
				parts = append(parts, normalizeText(c.Utf8Text(source)))
			}
		}
	}
	sig := "class"
	if name := def.ChildByFieldName("name"); name != nil {
		sig += " " + name.Utf8Text(source)
	}
	if sup := def.ChildByFieldName("superclasses"); sup != nil {
		sig += normalizeText(sup.Utf8Text(source))
	}
	parts = append(parts, sig)
	return strings.Join(parts, " ")
}

// functionSignature is the normalized def header: decorators, name,
// parameters, and return annotation.
func functionSignature(outer, def *tree_sitter.Node, source []byte) string {
	var parts []string
	if outer.Kind() == "decorated_definition" {
		for i := uint(0); i < outer.NamedChildCount(); i++ {
			if c := outer.NamedChild(i); c != nil && c.Kind() == "decorator" {
				parts = append(parts, normalizeText(c.Utf8Text(source)))
			}
		}
	}
	sig := "def"
	if name := def.ChildByFieldName("name"); name != nil {
		sig += " " + name.Utf8Text(source)
	}
	if params := def.ChildByFieldName("parameters"); params != nil {
		sig += normalizeText(params.Utf8Text(source))
	}
	if ret := def.ChildByFieldName("return_type"); ret != nil {
		sig += " -> " + normalizeText(ret.Utf8Text(source))
	}
	parts = append(parts, sig)
	return strings.Join(parts, " ")
}

// classMembers inventories a class body for the richness comparison: methods
// and class-level assignments keyed by name, each with normalized text.
// A body containing control flow or other opaque statements is flagged so
// the planner falls back to whole-text identity for that class.
func classMembers(def *tree_sitter.Node, source []byte) ([]Member, bool) {
	body := def.ChildByFieldName("body")
	if body == nil {
		return nil, false
	}

	var members []Member
	opaque := false
	first := true
	for i := uint(0); i < body.NamedChildCount(); i++ {
		stmt := body.NamedChild(i)
		if stmt == nil || stmt.Kind() == "comment" {
			continue
		}

		if first && isDocstringStmt(stmt) {
			members = append(members, Member{Name: "__doc__", Body: normalizeText(stmt.Utf8Text(source))})
			first = false
			continue
		}
		first = false

		switch stmt.Kind() {
		case "function_definition":
			members = append(members, memberFromDef(stmt, stmt, source))
		case "decorated_definition":
			if inner := stmt.ChildByFieldName("definition"); inner != nil {
				members = append(members, memberFromDef(stmt, inner, source))
			} else {
				opaque = true
			}
		case "expression_statement":
			child := stmt.NamedChild(0)
			if child == nil {
				opaque = true
				break
			}
			switch child.Kind() {
			case "assignment":
				left := child.ChildByFieldName("left")
				if left != nil && left.Kind() == "identifier" {
					members = append(members, Member{
						Name: left.Utf8Text(source),
						Body: normalizeText(stmt.Utf8Text(source)),
					})
				} else {
					opaque = true
				}
			case "ellipsis":
				// "..." placeholder body, contributes nothing.
			default:
				opaque = true
			}
		case "pass_statement":
			// Empty-body marker, contributes nothing.
		default:
			opaque = true
		}
	}
	return members, opaque
}

func memberFromDef(outer, def *tree_sitter.Node, source []byte) Member {
	name := ""
	if n := def.ChildByFieldName("name"); n != nil {
		name = n.Utf8Text(source)
	}
	return Member{Name: name, Body: normalizeText(outer.Utf8Text(source))}
}

// isStubBlock reports whether a function body is a placeholder: at most a
// docstring followed by pass, "...", or raise NotImplementedError.
func isStubBlock(body *tree_sitter.Node, source []byte) bool {
	if body == nil {
		return true
	}
	first := true
	for i := uint(0); i < body.NamedChildCount(); i++ {
		stmt := body.NamedChild(i)
		if stmt == nil || stmt.Kind() == "comment" {
			continue
		}
		if first && isDocstringStmt(stmt) {
			first = false
			continue
		}
		first = false

		switch stmt.Kind() {
		case "pass_statement":
		case "expression_statement":
			child := stmt.NamedChild(0)
			if child == nil || child.Kind() != "ellipsis" {
				return false
			}
		case "raise_statement":
			if !strings.Contains(stmt.Utf8Text(source), "NotImplementedError") {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// bodyText returns the raw text of a definition's body block.
func bodyText(def *tree_sitter.Node, source []byte) string {
	if body := def.ChildByFieldName("body"); body != nil {
		return body.Utf8Text(source)
	}
	return ""
}

// collectLoadRefs gathers the identifiers a statement evaluates at import
// time: decorators, base classes, parameter annotations and defaults, and
// assignment right-hand sides. Function bodies are excluded because they do
// not execute until called. For attribute accesses only the leftmost object
// identifier counts; the attribute name is not a module-scope reference.
func collectLoadRefs(stmt *tree_sitter.Node, source []byte, selfName string) []string {
	seen := make(map[string]bool)
	var refs []string

	add := func(name string) {
		if name == "" || name == selfName || seen[name] {
			return
		}
		seen[name] = true
		refs = append(refs, name)
	}

	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "identifier":
			add(n.Utf8Text(source))
			return
		case "attribute":
			walk(n.ChildByFieldName("object"))
			return
		case "keyword_argument":
			walk(n.ChildByFieldName("value"))
			return
		case "function_definition":
			// Parameters and return annotation evaluate at definition time;
			// the body does not.
			walk(n.ChildByFieldName("parameters"))
			walk(n.ChildByFieldName("return_type"))
			return
		case "class_definition":
			walk(n.ChildByFieldName("superclasses"))
			walk(n.ChildByFieldName("body"))
			return
		case "assignment", "augmented_assignment":
			// The target is a binding, not a reference.
			walk(n.ChildByFieldName("type"))
			walk(n.ChildByFieldName("right"))
			return
		case "default_parameter", "typed_default_parameter":
			walk(n.ChildByFieldName("type"))
			walk(n.ChildByFieldName("value"))
			return
		case "typed_parameter":
			walk(n.ChildByFieldName("type"))
			return
		case "parameters":
			for i := uint(0); i < n.NamedChildCount(); i++ {
				child := n.NamedChild(i)
				if child != nil && child.Kind() != "identifier" {
					walk(child)
				}
			}
			return
		case "import_statement", "import_from_statement", "future_import_statement":
			return
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(stmt)
	return refs
}

// normalizeText collapses a span for structural comparison: trailing
// whitespace stripped per line, blank lines dropped.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
