//go:build !cgo

package main

import (
	"fmt"
	"os"

	"github.com/dusk-indust/pymerge/internal/config"
	"github.com/dusk-indust/pymerge/internal/history"
)

// openHistoryStore falls back to the in-memory backend: the persistent
// KuzuDB store needs CGO.
func openHistoryStore(cfg *config.ProjectConfig) (history.Store, error) {
	if cfg.HistoryDB != "" {
		fmt.Fprintln(os.Stderr, "warning: historyDb configured but this build has no CGO; history is in-memory only")
	}
	return history.NewMemStore(), nil
}
