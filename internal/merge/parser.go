package merge

import "context"

// Parser turns one raw phase contribution into a structured Module.
// Implementations: TreeSitterParser (production), StubParser (testing).
type Parser interface {
	// Parse builds a Module from raw source text. A syntactically invalid
	// input returns a *ParseError carrying the phase and exact location;
	// any other error is an internal failure.
	Parse(ctx context.Context, text []byte, phase Phase) (*Module, error)

	// Close releases parser resources (tree-sitter C memory).
	Close() error
}
