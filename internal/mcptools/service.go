// Package mcptools exposes the merge engine to MCP clients, so pipeline
// agents can merge phase variants and inspect merge history as tools.
package mcptools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/pymerge/internal/history"
	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/phase"
	"github.com/dusk-indust/pymerge/internal/runner"
)

// MergeService holds the engine, runner, and history store used by MCP tool
// handlers.
type MergeService struct {
	engine *merge.Engine
	runner *runner.Runner
	store  history.Store
}

// NewMergeService creates a MergeService. store may be nil, in which case
// merge_history reports an error.
func NewMergeService(engine *merge.Engine, r *runner.Runner, store history.Store) *MergeService {
	return &MergeService{engine: engine, runner: r, store: store}
}

// MergeModuleInput carries module texts, one per phase. Target may be empty
// for a brand-new module.
type MergeModuleInput struct {
	Target string `json:"target"`
	Spec   string `json:"spec,omitempty"`
	Draft  string `json:"draft,omitempty"`
	Review string `json:"review,omitempty"`
}

// MergeModuleOutput is the engine outcome in tool form.
type MergeModuleOutput struct {
	Kind       string   `json:"kind"`
	Text       string   `json:"text,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Conflicts  []string `json:"conflicts,omitempty"`
	ParseError string   `json:"parseError,omitempty"`
}

// MergeModule merges in-memory phase texts and returns the outcome.
func (s *MergeService) MergeModule(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MergeModuleInput,
) (*mcp.CallToolResult, MergeModuleOutput, error) {
	var incoming []merge.Input
	for _, in := range []struct {
		phase merge.Phase
		text  string
	}{
		{merge.PhaseSpec, input.Spec},
		{merge.PhaseDraft, input.Draft},
		{merge.PhaseReview, input.Review},
	} {
		if in.text != "" {
			incoming = append(incoming, merge.Input{
				Phase: in.phase,
				Text:  []byte(phase.CleanFences(in.text)),
			})
		}
	}
	if len(incoming) == 0 {
		return nil, MergeModuleOutput{}, fmt.Errorf("at least one of spec, draft, review is required")
	}

	res := s.engine.Merge(ctx,
		merge.Input{Phase: merge.PhaseTarget, Text: []byte(phase.CleanFences(input.Target))},
		incoming)
	return nil, resultToOutput(res), nil
}

// MergeFilesInput names on-disk phase files for one target module.
type MergeFilesInput struct {
	Paths []string `json:"paths"`
	Write bool     `json:"write,omitempty"` // persist a merged result to the target file
}

// MergeFilesOutput is the engine outcome plus write status.
type MergeFilesOutput struct {
	MergeModuleOutput
	Target string `json:"target"`
	Wrote  bool   `json:"wrote"`
}

// MergeFiles merges phase files identified by filename convention. All paths
// must resolve to the same target module.
func (s *MergeService) MergeFiles(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MergeFilesInput,
) (*mcp.CallToolResult, MergeFilesOutput, error) {
	if len(input.Paths) == 0 {
		return nil, MergeFilesOutput{}, fmt.Errorf("paths is required")
	}

	job := runner.Job{}
	for _, p := range input.Paths {
		ph, target := phase.FromFilename(p)
		if ph == "" {
			return nil, MergeFilesOutput{}, fmt.Errorf("not a recognized phase file: %s", p)
		}
		if job.Target == "" {
			job.Target = target
		} else if job.Target != target {
			return nil, MergeFilesOutput{}, fmt.Errorf("paths span two targets: %s and %s", job.Target, target)
		}
		job.Files = append(job.Files, phase.FileInput{Path: p, Phase: ph})
	}

	if input.Write {
		out, err := s.runner.MergeJob(ctx, job)
		if err != nil {
			return nil, MergeFilesOutput{}, err
		}
		return nil, MergeFilesOutput{
			MergeModuleOutput: resultToOutput(out.Result),
			Target:            job.Target,
			Wrote:             out.Wrote,
		}, nil
	}

	target, incoming, err := phase.Load(job.Files)
	if err != nil {
		return nil, MergeFilesOutput{}, err
	}
	res := s.engine.Merge(ctx, target, incoming)
	return nil, MergeFilesOutput{
		MergeModuleOutput: resultToOutput(res),
		Target:            job.Target,
	}, nil
}

// MergeHistoryInput selects events for one target module.
type MergeHistoryInput struct {
	Target string `json:"target,omitempty"` // empty matches every target
	Limit  int    `json:"limit,omitempty"`
}

// MergeHistoryEvent is one recorded merge with its conflicts inlined.
type MergeHistoryEvent struct {
	ID        string   `json:"id"`
	Target    string   `json:"target"`
	Kind      string   `json:"kind"`
	Phases    []string `json:"phases,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// MergeHistoryOutput is the result of merge_history.
type MergeHistoryOutput struct {
	Events []MergeHistoryEvent `json:"events"`
}

// MergeHistory lists recorded merge events, newest first.
func (s *MergeService) MergeHistory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MergeHistoryInput,
) (*mcp.CallToolResult, MergeHistoryOutput, error) {
	if s.store == nil {
		return nil, MergeHistoryOutput{}, fmt.Errorf("no history store configured")
	}

	events, err := s.store.ListEvents(ctx, input.Target, input.Limit)
	if err != nil {
		return nil, MergeHistoryOutput{}, fmt.Errorf("list events: %w", err)
	}

	out := MergeHistoryOutput{Events: make([]MergeHistoryEvent, 0, len(events))}
	for _, ev := range events {
		he := MergeHistoryEvent{
			ID:        ev.ID,
			Target:    ev.Target,
			Kind:      ev.Kind,
			Phases:    ev.Phases,
			Warnings:  ev.Warnings,
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		}
		conflicts, err := s.store.ListConflicts(ctx, ev.ID)
		if err != nil {
			return nil, MergeHistoryOutput{}, fmt.Errorf("list conflicts: %w", err)
		}
		for _, c := range conflicts {
			he.Conflicts = append(he.Conflicts, fmt.Sprintf("%s [%v]: %s", c.Name, c.Phases, c.Reason))
		}
		out.Events = append(out.Events, he)
	}
	return nil, out, nil
}

// resultToOutput converts an engine result into tool output.
func resultToOutput(res merge.MergeResult) MergeModuleOutput {
	out := MergeModuleOutput{
		Kind:     string(res.Kind),
		Text:     res.Text,
		Warnings: res.Warnings,
	}
	for _, c := range res.Conflicts {
		out.Conflicts = append(out.Conflicts, merge.FormatConflict(c))
	}
	if res.ParseErr != nil {
		out.ParseError = res.ParseErr.Error()
	}
	return out
}
