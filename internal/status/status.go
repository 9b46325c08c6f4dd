// Package status reports the backlog state: which phase variants exist for
// each target module and which targets still have merges pending.
package status

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/phase"
)

// PhaseInfo describes the presence of a single phase variant on disk.
type PhaseInfo struct {
	Phase    merge.Phase
	Present  bool
	FilePath string // absolute path when present, empty otherwise
}

// ModuleStatus holds the backlog status of one target module.
type ModuleStatus struct {
	Target    string
	Phases    []PhaseInfo // in pipeline order, target last
	HasBackup bool        // a previous merge left a backup file
	Pending   bool        // contributions exist that have not been folded in
}

// GetModuleStatus inspects the filesystem for every phase variant of target.
func GetModuleStatus(target string) ModuleStatus {
	ms := ModuleStatus{Target: target}
	stem := target[:len(target)-len(".py")]

	for _, p := range merge.PipelineOrder {
		path := target
		if p != merge.PhaseTarget {
			path = stem + "." + string(p) + ".py"
		}
		info := PhaseInfo{Phase: p}
		if _, err := os.Stat(path); err == nil {
			info.Present = true
			info.FilePath = path
			if p != merge.PhaseTarget {
				ms.Pending = true
			}
		}
		ms.Phases = append(ms.Phases, info)
	}

	if _, err := os.Stat(target + ".backup"); err == nil {
		ms.HasBackup = true
	}
	return ms
}

// ListModules scans dir for Python modules and returns the status of every
// target found, sorted by path. Targets are discovered from both bare
// modules and orphaned phase files.
func ListModules(dir string) ([]ModuleStatus, error) {
	targets := make(map[string]bool)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, target := phase.FromFilename(path); target != "" {
			targets[target] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(targets))
	for t := range targets {
		paths = append(paths, t)
	}
	sort.Strings(paths)

	results := make([]ModuleStatus, 0, len(paths))
	for _, t := range paths {
		results = append(results, GetModuleStatus(t))
	}
	return results, nil
}
