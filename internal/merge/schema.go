package merge

import "fmt"

// --- Enums ---

// Phase identifies which generation-pipeline stage contributed a module
// version. Modules are folded in PipelineOrder; the target folds last.
type Phase string

const (
	PhaseSpec   Phase = "spec"
	PhaseDraft  Phase = "draft"
	PhaseReview Phase = "review"
	PhaseTarget Phase = "target"
)

// PipelineOrder is the fixed fold order for merge planning. Later phases win
// exact ties, so the pre-existing target always folds last.
var PipelineOrder = []Phase{PhaseSpec, PhaseDraft, PhaseReview, PhaseTarget}

// Valid reports whether p is one of the four pipeline phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseSpec, PhaseDraft, PhaseReview, PhaseTarget:
		return true
	}
	return false
}

// DeclKind classifies top-level statements in a parsed module.
type DeclKind string

const (
	DeclImport     DeclKind = "import"
	DeclClass      DeclKind = "class"
	DeclFunction   DeclKind = "function"
	DeclAssignment DeclKind = "assignment"
	DeclEntryGuard DeclKind = "entry_guard"
	DeclBareExpr   DeclKind = "bare_expression"
	DeclOther      DeclKind = "other"
)

// ResultKind discriminates the MergeResult variant.
type ResultKind string

const (
	ResultMerged     ResultKind = "merged"
	ResultConflict   ResultKind = "conflict"
	ResultParseError ResultKind = "parse_error"
)

// --- Models ---

// ImportBinding is one name introduced by an import statement. Name is empty
// for a whole-module import ("import os"); Alias is empty when unaliased.
type ImportBinding struct {
	Module string `json:"module"`
	Name   string `json:"name,omitempty"`
	Alias  string `json:"alias,omitempty"`
}

// key identifies the binding for de-duplication: (source module, imported name).
func (b ImportBinding) key() string {
	return b.Module + "\x00" + b.Name
}

// Bound returns the name this binding introduces into module scope.
func (b ImportBinding) Bound() string {
	if b.Alias != "" {
		return b.Alias
	}
	if b.Name != "" {
		return b.Name
	}
	return b.Module
}

// Member is a named member of a class body: a method, a class-level
// assignment, or a bare annotation. Body is the normalized member text used
// for structural comparison.
type Member struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// Declaration is one classified top-level statement. Declarations are value
// objects; the planner copies rather than mutates them.
type Declaration struct {
	Name    string   `json:"name,omitempty"` // empty for unnamed statements
	Kind    DeclKind `json:"kind"`
	Phase   Phase    `json:"phase"`
	Ordinal int      `json:"ordinal"` // position within the originating module
	Source  string   `json:"source"`  // raw statement text, byte-for-byte
	Line    int      `json:"line"`    // 1-based start line in the original text
	EndLine int      `json:"endLine"`

	// Classifier extras.
	Bindings     []ImportBinding `json:"bindings,omitempty"` // DeclImport only
	Future       bool            `json:"future,omitempty"`   // from __future__ import ...
	IsExportList bool            `json:"isExportList,omitempty"`
	ExportNames  []string        `json:"exportNames,omitempty"` // __all__ contents
	Signature    string          `json:"signature,omitempty"`   // normalized def/class header
	Body         string          `json:"body,omitempty"`        // normalized body text
	Stub         bool            `json:"stub,omitempty"`        // body is pass/.../NotImplementedError
	Members      []Member        `json:"members,omitempty"`     // DeclClass only
	Opaque       bool            `json:"opaque,omitempty"`      // class body not member-comparable
	LoadRefs     []string        `json:"loadRefs,omitempty"`    // names referenced at import time
}

// ExportList is a module's public-name list. Explicit lists come from an
// __all__ assignment and keep their original statement text; derived lists
// are computed from merged non-private names and marked Derived.
type ExportList struct {
	Names   []string `json:"names"`
	Ordinal int      `json:"ordinal"` // position among the module's declarations
	Source  string   `json:"source"`  // original statement text ("" when derived)
	Derived bool     `json:"derived,omitempty"`
}

// Module is one parsed phase contribution: an ordered declaration sequence,
// an optional leading docstring, and the phase tag. Never mutated after
// construction.
type Module struct {
	Phase      Phase         `json:"phase"`
	Docstring  string        `json:"docstring,omitempty"` // raw statement text incl. quotes
	Decls      []Declaration `json:"decls"`
	ExportList *ExportList   `json:"exportList,omitempty"`
}

// ConflictRecord describes one name defined incompatibly across phases.
type ConflictRecord struct {
	Name   string  `json:"name"`
	Phases []Phase `json:"phases"`
	Reason string  `json:"reason"`
}

// ParseError reports syntactically invalid input. Fatal for the merge call.
type ParseError struct {
	Phase   Phase  `json:"phase"`
	Line    int    `json:"line"`   // 1-based
	Column  int    `json:"column"` // 1-based
	Message string `json:"message"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Phase, e.Line, e.Column, e.Message)
}

// Input is one raw phase contribution handed to the orchestrator.
type Input struct {
	Phase Phase  `json:"phase"`
	Text  []byte `json:"text"`
}

// MergeResult is the closed result variant of a merge call. Exactly one of
// the three shapes is populated, discriminated by Kind:
//
//	ResultMerged     — Module, Text, and Warnings
//	ResultConflict   — Conflicts (never a partial merge alongside)
//	ResultParseError — ParseErr
type MergeResult struct {
	Kind      ResultKind       `json:"kind"`
	Module    *Module          `json:"module,omitempty"`
	Text      string           `json:"text,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
	Conflicts []ConflictRecord `json:"conflicts,omitempty"`
	ParseErr  *ParseError      `json:"parseError,omitempty"`
}
