package merge

import (
	"context"
	"fmt"
)

// mergeState names the stage a call was in when a parser failure must be
// coerced into a ParseError. The per-call flow is
//
//	parsing -> classifying -> planning
//	planning -> conflicted                          (terminal)
//	planning -> resolving_exports -> serializing -> done
//
// with parse_error reachable as a terminal state from parsing. Only the two
// stages that touch the parser can fail internally; everything in between is
// a pure computation over already-parsed values.
type mergeState string

const (
	stateParsing     mergeState = "parsing"
	stateSerializing mergeState = "serializing"
)

// Engine is the single public entry point for program merging. Every call
// site parses its inputs into phase-tagged text and delegates here; there is
// no other merge path.
//
// Merge calls are pure, synchronous computations over immutable values, so
// independent calls may run concurrently with zero coordination.
type Engine struct {
	parser Parser
}

// NewEngine creates an Engine backed by the tree-sitter Python parser.
func NewEngine() *Engine {
	return &Engine{parser: NewTreeSitterParser()}
}

// NewEngineWithParser creates an Engine with a custom parser. Used by tests
// to inject stub modules.
func NewEngineWithParser(parser Parser) *Engine {
	return &Engine{parser: parser}
}

// Close releases parser resources.
func (e *Engine) Close() error {
	return e.parser.Close()
}

// Merge combines the incoming phase contributions with the target module.
//
// Hard contract: on any internal failure the result is a ParseError or a
// Conflict. There is no fallback to text concatenation, and a Merged result
// is always syntactically valid — the serialized output is re-parsed before
// it is returned.
func (e *Engine) Merge(ctx context.Context, target Input, incoming []Input) MergeResult {
	if err := validateInputs(target, incoming); err != nil {
		return newParseErrorResult(err)
	}

	inputs := make([]Input, 0, len(incoming)+1)
	for _, phase := range PipelineOrder {
		if phase == PhaseTarget {
			inputs = append(inputs, target)
			continue
		}
		for _, in := range incoming {
			if in.Phase == phase {
				inputs = append(inputs, in)
			}
		}
	}

	// Parsing and classification happen per input module; building a
	// Module's declaration list classifies every top-level statement.
	mods := make([]*Module, 0, len(inputs))
	for _, in := range inputs {
		mod, err := e.parser.Parse(ctx, in.Text, in.Phase)
		if err != nil {
			return newParseErrorResult(asParseError(err, in.Phase, stateParsing))
		}
		mods = append(mods, mod)
	}

	merged, warnings, conflicts := planMerge(mods)
	if len(conflicts) > 0 {
		return newConflictResult(conflicts)
	}

	resolveExports(merged, mods)
	text := Serialize(merged)

	// A Merged result must re-parse; anything else is an internal failure
	// surfaced explicitly, never handed to a writer.
	if _, err := e.parser.Parse(ctx, []byte(text), PhaseTarget); err != nil {
		pe := asParseError(err, PhaseTarget, stateSerializing)
		pe.Message = "internal: merged output failed to re-parse: " + pe.Message
		return newParseErrorResult(pe)
	}

	return MergeResult{
		Kind:     ResultMerged,
		Module:   merged,
		Text:     text,
		Warnings: warnings,
	}
}

// asParseError coerces a parser failure into a ParseError, noting the merge
// state for non-syntax internal failures.
func asParseError(err error, phase Phase, state mergeState) *ParseError {
	if pe, ok := err.(*ParseError); ok {
		return pe
	}
	return &ParseError{
		Phase: phase, Line: 1, Column: 1,
		Message: fmt.Sprintf("internal failure while %s: %v", state, err),
	}
}

// validateInputs enforces the input contract: the target is tagged target,
// incoming phases are valid non-target tags, and no phase repeats.
func validateInputs(target Input, incoming []Input) *ParseError {
	if target.Phase != PhaseTarget {
		return &ParseError{
			Phase: target.Phase, Line: 1, Column: 1,
			Message: fmt.Sprintf("target input tagged %q, want %q", target.Phase, PhaseTarget),
		}
	}
	seen := map[Phase]bool{PhaseTarget: true}
	for _, in := range incoming {
		if !in.Phase.Valid() || in.Phase == PhaseTarget {
			return &ParseError{
				Phase: in.Phase, Line: 1, Column: 1,
				Message: fmt.Sprintf("invalid incoming phase tag %q", in.Phase),
			}
		}
		if seen[in.Phase] {
			return &ParseError{
				Phase: in.Phase, Line: 1, Column: 1,
				Message: fmt.Sprintf("duplicate contribution for phase %q", in.Phase),
			}
		}
		seen[in.Phase] = true
	}
	return nil
}
