package main

import (
	"fmt"
	"path/filepath"

	"github.com/dusk-indust/pymerge/internal/config"
	"github.com/dusk-indust/pymerge/internal/status"
)

// runStatus prints the backlog state for every known target module.
func runStatus(projectRoot string, cfg *config.ProjectConfig) error {
	dir := cfg.BacklogDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectRoot, dir)
	}

	modules, err := status.ListModules(dir)
	if err != nil {
		fmt.Println("No backlog found.")
		fmt.Println("Run 'pymerge init' to set up a project.")
		return nil
	}
	if len(modules) == 0 {
		fmt.Println("No modules found in", dir)
		return nil
	}

	pending := 0
	for _, ms := range modules {
		marker := "  "
		note := "up to date"
		if ms.Pending {
			marker = "->"
			note = "pending merge"
			pending++
		}
		fmt.Printf("%s %-40s [%s]  phases: %s\n", marker, ms.Target, note, phaseSummary(ms))
	}
	fmt.Printf("\n%d module(s), %d pending\n", len(modules), pending)
	return nil
}

// phaseSummary renders present phases as "spec draft - target".
func phaseSummary(ms status.ModuleStatus) string {
	out := ""
	for i, pi := range ms.Phases {
		if i > 0 {
			out += " "
		}
		if pi.Present {
			out += string(pi.Phase)
		} else {
			out += "-"
		}
	}
	if ms.HasBackup {
		out += " (backup)"
	}
	return out
}
