package main

import (
	"fmt"

	"github.com/dusk-indust/pymerge/internal/config"
	"github.com/dusk-indust/pymerge/internal/history"
	"github.com/dusk-indust/pymerge/internal/mcptools"
	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/queue"
)

// runServe starts the requested long-running services and blocks until the
// process is signalled.
func runServe(engine *merge.Engine, store history.Store, cfg *config.ProjectConfig, flags cliFlags) error {
	ctx, cancel := signalContext()
	defer cancel()

	if flags.RPCAddr != "" {
		srv := queue.NewServer(engine)
		if err := srv.Start(ctx, flags.RPCAddr); err != nil {
			return fmt.Errorf("start JSON-RPC service: %w", err)
		}
		defer srv.Stop(ctx)
		fmt.Printf("JSON-RPC service listening on %s\n", flags.RPCAddr)
	}

	if flags.ServeMCP {
		r, done := newRunner(engine, store, cfg)
		defer done()
		svc := mcptools.NewMergeService(engine, r, store)
		fmt.Printf("MCP server listening on %s\n", flags.MCPAddr)
		return mcptools.RunMCPServer(ctx, svc, flags.MCPAddr)
	}

	<-ctx.Done()
	return nil
}
