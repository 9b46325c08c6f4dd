package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/pymerge/internal/config"
	"github.com/dusk-indust/pymerge/internal/history"
	"github.com/dusk-indust/pymerge/internal/merge"
	"github.com/dusk-indust/pymerge/internal/runner"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ProjectRoot string
	Backlog     string
	HistoryDB   string
	Write       bool
	Report      bool
	Force       bool
	Verbose     bool
	ServeMCP    bool
	MCPAddr     string
	RPCAddr     string
	Version     bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("pymerge", flag.ContinueOnError)
	fs.StringVar(&flags.ProjectRoot, "project-root", ".", "path to the target project")
	fs.StringVar(&flags.Backlog, "backlog", "", "backlog directory with phase files (overrides config)")
	fs.StringVar(&flags.HistoryDB, "history-db", "", "merge history database path (overrides config)")
	fs.BoolVar(&flags.Write, "write", true, "persist merged modules to disk")
	fs.BoolVar(&flags.Report, "report", false, "print a JSON report after a batch run")
	fs.BoolVar(&flags.Force, "force", false, "overwrite existing files during init")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable verbose output")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server for agent integration")
	fs.StringVar(&flags.MCPAddr, "mcp-addr", "localhost:8377", "listen address for the MCP server")
	fs.StringVar(&flags.RPCAddr, "serve-rpc", "", "listen address for the JSON-RPC service")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load(flags.ProjectRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.Backlog != "" {
		cfg.BacklogDir = flags.Backlog
	}
	if flags.HistoryDB != "" {
		cfg.HistoryDB = flags.HistoryDB
	}
	if flags.Verbose {
		cfg.Verbose = true
	}

	engine := merge.NewEngine()
	defer engine.Close()

	store, err := openHistoryStore(cfg)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()
	if err := store.InitSchema(context.Background()); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}

	if flags.ServeMCP || flags.RPCAddr != "" {
		return runServe(engine, store, cfg, flags)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return runStatus(flags.ProjectRoot, cfg)
	}

	switch rest[0] {
	case "merge":
		return runMerge(engine, store, cfg, rest[1:], flags.Write)
	case "batch":
		return runBatch(engine, store, cfg, flags)
	case "status":
		return runStatus(flags.ProjectRoot, cfg)
	case "history":
		target := ""
		if len(rest) > 1 {
			target = rest[1]
		}
		return runHistory(store, target)
	case "diagram":
		if len(rest) < 2 {
			return fmt.Errorf("usage: pymerge diagram <target.py>")
		}
		return runDiagram(store, rest[1])
	case "init":
		return runInit(flags.ProjectRoot, flags.Force)
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

// newRunner builds the batch runner. In verbose mode progress events flow
// through a reporter channel and print to stdout; the returned done func
// flushes and stops the printer.
func newRunner(engine *merge.Engine, store history.Store, cfg *config.ProjectConfig) (*runner.Runner, func()) {
	if !cfg.Verbose {
		return runner.New(engine, store, cfg, nil), func() {}
	}

	reporter := runner.NewProgressReporter()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range reporter.Subscribe() {
			fmt.Println(runner.FormatProgress(ev))
		}
	}()
	done := func() {
		reporter.Close()
		<-drained
	}
	return runner.New(engine, store, cfg, reporter.Emit), done
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
