package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMergeMCPServer creates an MCP server with all 3 merge tools registered.
func NewMergeMCPServer(svc *MergeService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "pymerge",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_module",
		Description: "Merge machine-generated variants of one Python module into a coherent whole. Accepts the current target text plus spec, draft, and review phase texts; returns merged source, a conflict report, or a parse error. Never concatenates on failure.",
	}, svc.MergeModule)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_files",
		Description: "Merge on-disk phase files (mod.spec.py, mod.draft.py, mod.review.py) into their target module (mod.py). Phases are derived from filenames. With write=true a merged result is backed up and written atomically.",
	}, svc.MergeFiles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_history",
		Description: "List recorded merge events, newest first, optionally filtered by target module. Each event includes contributing phases, warnings, and conflict details.",
	}, svc.MergeHistory)

	return server
}

// RunMCPServer starts an HTTP server exposing the merge MCP tools.
func RunMCPServer(ctx context.Context, svc *MergeService, addr string) error {
	server := NewMergeMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
