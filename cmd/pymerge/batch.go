package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dusk-indust/pymerge/internal/config"
	"github.com/dusk-indust/pymerge/internal/export"
	"github.com/dusk-indust/pymerge/internal/history"
	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/runner"
)

// runBatch scans the backlog directory and merges every pending target.
func runBatch(engine *merge.Engine, store history.Store, cfg *config.ProjectConfig, flags cliFlags) error {
	dir := cfg.BacklogDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(flags.ProjectRoot, dir)
	}

	jobs, err := runner.Scan(dir)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("Nothing to merge.")
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	r, done := newRunner(engine, store, cfg)
	outcomes, err := r.Run(ctx, jobs)
	done()
	if err != nil {
		return err
	}

	report := export.BuildReport(outcomes)
	if flags.Report {
		data, err := report.JSON()
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}

	for _, out := range outcomes {
		switch out.Result.Kind {
		case merge.ResultMerged:
			fmt.Printf("  merged   %s\n", out.Target)
		case merge.ResultConflict:
			fmt.Printf("  CONFLICT %s\n", out.Target)
			for _, c := range out.Result.Conflicts {
				fmt.Printf("           %s\n", merge.FormatConflict(c))
			}
		case merge.ResultParseError:
			fmt.Printf("  ERROR    %s: %v\n", out.Target, out.Result.ParseErr)
		}
	}
	fmt.Printf("\n%d merged, %d conflicts, %d parse errors\n",
		report.Summary.Merged, report.Summary.Conflicts, report.Summary.ParseErrors)

	if report.Summary.Conflicts > 0 || report.Summary.ParseErrors > 0 {
		return fmt.Errorf("%d target(s) need attention", report.Summary.Conflicts+report.Summary.ParseErrors)
	}
	return nil
}
