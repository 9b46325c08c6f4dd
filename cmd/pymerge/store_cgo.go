//go:build cgo

package main

import (
	"github.com/dusk-indust/pymerge/internal/config"
	"github.com/dusk-indust/pymerge/internal/history"
)

// openHistoryStore opens the configured history backend. With a historyDb
// path the record persists across runs; otherwise it lives in memory for
// the duration of the process.
func openHistoryStore(cfg *config.ProjectConfig) (history.Store, error) {
	if cfg.HistoryDB == "" {
		return history.NewMemStore(), nil
	}
	return history.NewKuzuFileStore(cfg.HistoryDB)
}
