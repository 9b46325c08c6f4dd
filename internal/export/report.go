// Package export renders batch outcomes for humans and tooling: a JSON
// report per run and a Mermaid provenance diagram from the history store.
package export

import (
	"encoding/json"
	"time"

	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/runner"
)

// MergeReport is the top-level JSON export structure for one batch run.
type MergeReport struct {
	ExportedAt string         `json:"exportedAt"`
	Summary    ReportSummary  `json:"summary"`
	Modules    []ModuleExport `json:"modules"`
}

// ReportSummary counts outcomes by result kind.
type ReportSummary struct {
	Merged      int `json:"merged"`
	Conflicts   int `json:"conflicts"`
	ParseErrors int `json:"parseErrors"`
}

// ModuleExport describes the outcome for one target module.
type ModuleExport struct {
	Target     string           `json:"target"`
	Kind       string           `json:"kind"`
	Wrote      bool             `json:"wrote"`
	DurationMS int64            `json:"durationMs"`
	Warnings   []string         `json:"warnings,omitempty"`
	Conflicts  []ConflictExport `json:"conflicts,omitempty"`
	ParseError string           `json:"parseError,omitempty"`
}

// ConflictExport describes a single irreconcilable declaration.
type ConflictExport struct {
	Name   string   `json:"name"`
	Phases []string `json:"phases"`
	Reason string   `json:"reason"`
}

// BuildReport converts batch outcomes into the export structure.
func BuildReport(outcomes []runner.Outcome) *MergeReport {
	report := &MergeReport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Modules:    make([]ModuleExport, 0, len(outcomes)),
	}

	for _, out := range outcomes {
		me := ModuleExport{
			Target:     out.Target,
			Kind:       string(out.Result.Kind),
			Wrote:      out.Wrote,
			DurationMS: out.Duration.Milliseconds(),
			Warnings:   out.Result.Warnings,
		}
		switch out.Result.Kind {
		case merge.ResultMerged:
			report.Summary.Merged++
		case merge.ResultConflict:
			report.Summary.Conflicts++
			for _, c := range out.Result.Conflicts {
				ce := ConflictExport{Name: c.Name, Reason: c.Reason}
				for _, p := range c.Phases {
					ce.Phases = append(ce.Phases, string(p))
				}
				me.Conflicts = append(me.Conflicts, ce)
			}
		case merge.ResultParseError:
			report.Summary.ParseErrors++
			if out.Result.ParseErr != nil {
				me.ParseError = out.Result.ParseErr.Error()
			}
		}
		report.Modules = append(report.Modules, me)
	}
	return report
}

// JSON renders the report as indented JSON.
func (r *MergeReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
