// Package runner drives the merge engine across a backlog of generated phase
// files. The engine itself is pure; everything filesystem-shaped lives here.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/pymerge/internal/config"
	"github.com/dusk-indust/pymerge/internal/history"
	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/phase"
)

// Job is one target module together with its on-disk phase contributions.
type Job struct {
	Target string // path the merged module is written to
	Files  []phase.FileInput
}

// Outcome reports how one job ended.
type Outcome struct {
	Target   string
	Result   merge.MergeResult
	EventID  string // history record, "" if no store configured
	Wrote    bool   // true when the merged text reached disk
	Duration time.Duration
}

// Runner merges backlog jobs concurrently and persists the results.
type Runner struct {
	engine      *merge.Engine
	store       history.Store
	backup      string
	concurrency int
	onProgress  func(ProgressEvent)
}

// New creates a Runner. store may be nil to skip history recording;
// onProgress may be nil.
func New(engine *merge.Engine, store history.Store, cfg *config.ProjectConfig, onProgress func(ProgressEvent)) *Runner {
	backup := config.DefaultBackupSuffix
	concurrency := config.DefaultConcurrency
	if cfg != nil {
		backup = cfg.BackupSuffix
		concurrency = cfg.Concurrency
	}
	return &Runner{
		engine:      engine,
		store:       store,
		backup:      backup,
		concurrency: concurrency,
		onProgress:  onProgress,
	}
}

// Scan walks dir and groups phase files by target module. Only targets with
// at least one phase contribution become jobs; a bare module with no pending
// variants has nothing to merge. Jobs come back sorted by target path.
func Scan(dir string) ([]Job, error) {
	groups := make(map[string][]phase.FileInput)
	hasContribution := make(map[string]bool)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		p, target := phase.FromFilename(path)
		if p == "" {
			return nil
		}
		groups[target] = append(groups[target], phase.FileInput{Path: path, Phase: p})
		if p != merge.PhaseTarget {
			hasContribution[target] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	jobs := make([]Job, 0, len(groups))
	for target, files := range groups {
		if !hasContribution[target] {
			continue
		}
		jobs = append(jobs, Job{Target: target, Files: files})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Target < jobs[j].Target })
	return jobs, nil
}

// Run merges every job, at most concurrency at a time. Conflicts and parse
// errors are outcomes, not errors; only I/O failures abort the batch.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	outcomes := make([]Outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, job := range jobs {
		r.emit(ProgressEvent{Target: job.Target, Status: ProgressPending})
		g.Go(func() error {
			out, err := r.MergeJob(gctx, job)
			if err != nil {
				r.emit(ProgressEvent{Target: job.Target, Status: ProgressFailed, Message: err.Error()})
				return err
			}
			outcomes[i] = out
			return nil
		})
	}

	err := g.Wait()
	return outcomes, err
}

// MergeJob runs one job end to end: load inputs, merge, persist on success,
// record history. The returned error covers I/O only.
func (r *Runner) MergeJob(ctx context.Context, job Job) (Outcome, error) {
	r.emit(ProgressEvent{Target: job.Target, Status: ProgressWorking})
	start := time.Now()

	target, incoming, err := r.loadInputs(job)
	if err != nil {
		return Outcome{}, err
	}

	res := r.engine.Merge(ctx, target, incoming)
	out := Outcome{Target: job.Target, Result: res, Duration: time.Since(start)}

	if res.Kind == merge.ResultMerged {
		if err := r.writeTarget(job.Target, res.Text); err != nil {
			return Outcome{}, err
		}
		out.Wrote = true
	}

	if r.store != nil {
		phases := make([]merge.Phase, 0, len(incoming)+1)
		for _, in := range incoming {
			phases = append(phases, in.Phase)
		}
		phases = append(phases, merge.PhaseTarget)
		ev, conflicts := history.EventFromResult(job.Target, phases, res)
		if err := history.Record(ctx, r.store, ev, conflicts); err != nil {
			return Outcome{}, fmt.Errorf("record history for %s: %w", job.Target, err)
		}
		out.EventID = ev.ID
	}

	switch res.Kind {
	case merge.ResultMerged:
		r.emit(ProgressEvent{Target: job.Target, Status: ProgressMerged})
	case merge.ResultConflict:
		msg := ""
		if len(res.Conflicts) > 0 {
			msg = merge.FormatConflict(res.Conflicts[0])
		}
		r.emit(ProgressEvent{Target: job.Target, Status: ProgressConflict, Message: msg})
	case merge.ResultParseError:
		r.emit(ProgressEvent{Target: job.Target, Status: ProgressFailed, Message: res.ParseErr.Error()})
	}
	return out, nil
}

// loadInputs reads the job's files. A target with no on-disk file merges
// against an empty module.
func (r *Runner) loadInputs(job Job) (merge.Input, []merge.Input, error) {
	files := job.Files
	haveTarget := false
	for _, f := range files {
		if f.Phase == merge.PhaseTarget {
			haveTarget = true
		}
	}
	if !haveTarget {
		// phase.Load insists on a target file; read contributions directly
		// and merge against an empty module.
		var ins []merge.Input
		for _, f := range files {
			data, err := os.ReadFile(f.Path)
			if err != nil {
				return merge.Input{}, nil, fmt.Errorf("read %s contribution: %w", f.Phase, err)
			}
			ins = append(ins, merge.Input{Phase: f.Phase, Text: []byte(phase.CleanFences(string(data)))})
		}
		return merge.Input{Phase: merge.PhaseTarget}, ins, nil
	}
	return phase.Load(files)
}

// writeTarget backs up the existing module, then writes atomically via a
// temp file in the same directory.
func (r *Runner) writeTarget(path string, text string) error {
	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+r.backup, prev, 0o644); err != nil {
			return fmt.Errorf("backup %s: %w", path, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// emit sends a progress event if a callback is registered.
func (r *Runner) emit(ev ProgressEvent) {
	if r.onProgress != nil {
		r.onProgress(ev)
	}
}
