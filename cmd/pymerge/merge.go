package main

import (
	"fmt"
	"os"

	"github.com/dusk-indust/pymerge/internal/config"
	"github.com/dusk-indust/pymerge/internal/history"
	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/phase"
	"github.com/dusk-indust/pymerge/internal/runner"
)

// runMerge merges the named phase files into their target module. With
// write=false the merged text goes to stdout instead of the target file.
func runMerge(engine *merge.Engine, store history.Store, cfg *config.ProjectConfig, paths []string, write bool) error {
	if len(paths) == 0 {
		return fmt.Errorf("usage: pymerge merge <files...>")
	}

	job := runner.Job{}
	for _, p := range paths {
		ph, target := phase.FromFilename(p)
		if ph == "" {
			return fmt.Errorf("not a recognized phase file: %s", p)
		}
		if job.Target == "" {
			job.Target = target
		} else if job.Target != target {
			return fmt.Errorf("files span two targets: %s and %s", job.Target, target)
		}
		job.Files = append(job.Files, phase.FileInput{Path: p, Phase: ph})
	}

	ctx, cancel := signalContext()
	defer cancel()

	if !write {
		target, incoming, err := phase.Load(job.Files)
		if err != nil {
			return err
		}
		res := engine.Merge(ctx, target, incoming)
		return reportResult(job.Target, res, func() error {
			_, err := os.Stdout.WriteString(res.Text)
			return err
		})
	}

	r := runner.New(engine, store, cfg, nil)
	out, err := r.MergeJob(ctx, job)
	if err != nil {
		return err
	}
	return reportResult(job.Target, out.Result, func() error {
		fmt.Printf("merged %s\n", job.Target)
		return nil
	})
}

// reportResult prints warnings and turns non-merged outcomes into errors so
// the process exits nonzero. onMerged runs only for a merged result.
func reportResult(target string, res merge.MergeResult, onMerged func() error) error {
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	switch res.Kind {
	case merge.ResultMerged:
		return onMerged()
	case merge.ResultConflict:
		for _, c := range res.Conflicts {
			fmt.Fprintln(os.Stderr, merge.FormatConflict(c))
		}
		return fmt.Errorf("%s: %d conflict(s), nothing written", target, len(res.Conflicts))
	case merge.ResultParseError:
		return fmt.Errorf("%s: %w", target, res.ParseErr)
	default:
		return fmt.Errorf("%s: unexpected result kind %q", target, res.Kind)
	}
}
