package merge

import (
	"context"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// Compile-time check.
var _ Parser = (*TreeSitterParser)(nil)

// TreeSitterParser implements Parser using the tree-sitter Python grammar.
// A new tree-sitter parser is created per Parse call, so this type is safe
// for sequential use but individual Parse calls are not thread-safe.
type TreeSitterParser struct {
	language *tree_sitter.Language
}

// NewTreeSitterParser creates a TreeSitterParser with the Python grammar
// registered.
func NewTreeSitterParser() *TreeSitterParser {
	return &TreeSitterParser{
		language: tree_sitter.NewLanguage(tree_sitter_python.Language()),
	}
}

// Parse builds a Module from raw Python source. Declaration order and raw
// statement spans are preserved so an unchanged statement can be re-emitted
// byte-for-byte. A leading bare string literal becomes the module docstring
// and is excluded from the declaration list.
func (p *TreeSitterParser) Parse(_ context.Context, text []byte, phase Phase) (*Module, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.language); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}

	tree := parser.Parse(text, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s input", phase)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line, col, msg := firstSyntaxError(root)
		return nil, &ParseError{Phase: phase, Line: line, Column: col, Message: msg}
	}

	mod := &Module{Phase: phase}
	first := true
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt == nil || stmt.Kind() == "comment" {
			continue
		}

		if first && isDocstringStmt(stmt) {
			mod.Docstring = stmt.Utf8Text(text)
			first = false
			continue
		}
		first = false

		decl := classifyStatement(stmt, text, phase, len(mod.Decls))

		// The first __all__ assignment is lifted out as the module's explicit
		// export list; it is not a mergeable declaration.
		if decl.IsExportList {
			if mod.ExportList == nil {
				mod.ExportList = &ExportList{
					Names:   decl.ExportNames,
					Ordinal: len(mod.Decls),
					Source:  decl.Source,
				}
			}
			continue
		}

		mod.Decls = append(mod.Decls, decl)
	}

	return mod, nil
}

// Close is a no-op because parsers are created per Parse call.
func (p *TreeSitterParser) Close() error {
	return nil
}

// firstSyntaxError locates the first ERROR or MISSING node and returns its
// 1-based line and column plus a short message.
func firstSyntaxError(root *tree_sitter.Node) (line, col int, msg string) {
	cursor := root.Walk()
	defer cursor.Close()

	var found *tree_sitter.Node
	var missing bool
	var walk func() bool
	walk = func() bool {
		node := cursor.Node()
		if node.IsError() || node.IsMissing() {
			found = node
			missing = node.IsMissing()
			return true
		}
		if cursor.GotoFirstChild() {
			for {
				if walk() {
					return true
				}
				if !cursor.GotoNextSibling() {
					break
				}
			}
			cursor.GotoParent()
		}
		return false
	}
	walk()

	if found == nil {
		return 1, 1, "invalid syntax"
	}
	pos := found.StartPosition()
	msg = "invalid syntax"
	if missing {
		msg = fmt.Sprintf("missing %s", found.Kind())
	}
	return int(pos.Row) + 1, int(pos.Column) + 1, msg
}

// isDocstringStmt reports whether the statement is a bare string literal.
func isDocstringStmt(stmt *tree_sitter.Node) bool {
	if stmt.Kind() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return false
	}
	child := stmt.NamedChild(0)
	return child != nil && child.Kind() == "string"
}
