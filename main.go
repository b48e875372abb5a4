package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"calltrace/internal/config"
	"calltrace/internal/logging"
	"calltrace/internal/model"
	"calltrace/internal/session"
	"calltrace/internal/trace"
	"calltrace/internal/tui"
	"calltrace/internal/visibility"
	"calltrace/internal/watch"
	"calltrace/internal/web"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
	"go.uber.org/zap"
)

func checkUpdate(cfg config.UpdateConfig, currentVer string) {
	githubTag := &latest.GithubTag{
		Owner:      cfg.Owner,
		Repository: cfg.Repository,
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not check for updates: %v\n", err)
		return
	}

	if res.Outdated {
		fmt.Printf("\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Printf("👉 Download it from https://github.com/%s/%s/releases\n", cfg.Owner, cfg.Repository)
	} else {
		fmt.Printf("✅ You are using the latest version: %s\n", currentVer)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "calltrace: %v\n", err)
	os.Exit(1)
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: calltrace [options] TRACE VISIBILITY\n\n")
		fmt.Fprintf(os.Stderr, "calltrace shows an execution trace as an indented call tree.\n")
		fmt.Fprintf(os.Stderr, "TRACE is the trace text printed by an instrumented program. VISIBILITY is\n")
		fmt.Fprintf(os.Stderr, "the TOML file remembering which functions are hidden; it is created on\n")
		fmt.Fprintf(os.Stderr, "quit if it does not exist.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  calltrace trace.txt vis.toml                     # Start TUI mode\n")
		fmt.Fprintf(os.Stderr, "  calltrace --record ./app trace.txt vis.toml      # Record, then view\n")
		fmt.Fprintf(os.Stderr, "  calltrace -f trace.txt vis.toml                  # Reload on change\n")
		fmt.Fprintf(os.Stderr, "  calltrace --report trace.txt vis.toml            # Print filtered trace\n")
		fmt.Fprintf(os.Stderr, "  calltrace -r -o r.txt trace.txt vis.toml         # Save report to file\n")
		fmt.Fprintf(os.Stderr, "  calltrace --json trace.txt vis.toml              # Output as JSON\n")
		fmt.Fprintf(os.Stderr, "  calltrace --web trace.txt vis.toml               # Serve on http://localhost:8080\n")
	}

	jsonFlag := pflag.BoolP("json", "j", false, "Output filtered lines, summary and visibility as JSON")
	reportFlag := pflag.BoolP("report", "r", false, "Print the filtered trace and a summary (CLI mode)")
	outputFlag := pflag.StringP("output", "o", "", "Save report to the specified file (combined with --report)")
	verboseFlag := pflag.Bool("verbose", false, "Include source locations and every function in the report")
	webFlag := pflag.BoolP("web", "w", false, "Start Web Mode (address from config, default :8080)")
	addrFlag := pflag.String("addr", "", "Web Mode listen address, overrides the config file")
	followFlag := pflag.BoolP("follow", "f", false, "Reload the trace automatically when it changes")
	recordFlag := pflag.String("record", "", "Run this shell command first and write its stderr to TRACE")
	configFlag := pflag.StringP("config", "c", config.DefaultPath(), "Configuration file")
	logFileFlag := pflag.String("log-file", "", "Write logs to this file, overrides the config file")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for latest version")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("calltrace version %s\n", model.Version)
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fatal(err)
	}
	if pflag.Lookup("follow").Changed {
		cfg.Follow = *followFlag
	}
	if *addrFlag != "" {
		cfg.Web.Addr = *addrFlag
	}
	if *logFileFlag != "" {
		cfg.Log.File = *logFileFlag
	}

	if *updateFlag {
		checkUpdate(cfg.Update, model.Version)
		return
	}

	if pflag.NArg() != 2 {
		pflag.Usage()
		os.Exit(2)
	}
	tracePath, visibilityPath := pflag.Arg(0), pflag.Arg(1)

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *recordFlag != "" {
		runRecord(ctx, *recordFlag, tracePath, logger)
	}

	source := trace.NewSource(tracePath)
	store := visibility.NewStore(visibilityPath, logger)

	switch {
	case *webFlag:
		runWebMode(ctx, cfg, source, store, tracePath, logger)
	case *reportFlag:
		runReportMode(source, store, *outputFlag, *verboseFlag)
	case *jsonFlag:
		runJsonMode(source, store)
	default:
		// Default: TUI
		runTuiMode(ctx, cfg, source, store, tracePath, logger)
	}
}

func runRecord(ctx context.Context, command, tracePath string, logger *zap.Logger) {
	rec, err := trace.RecordCommand(ctx, command, os.Stdout, vfs.Default, tracePath)
	if err != nil {
		fatal(err)
	}
	logger.Info("recorded trace",
		zap.String("command", command),
		zap.String("path", tracePath),
		zap.Int("lines", rec.Lines),
		zap.Int("records", rec.Records),
		zap.Int("exit_code", rec.ExitCode))
	if rec.ExitCode != 0 {
		fmt.Fprintf(os.Stderr, "Command exited with status %d; viewing its trace anyway.\n", rec.ExitCode)
	}
}

// readOnly opens the persisted visibility set for modes that never save it.
func readOnly(store *visibility.Store) *visibility.Store {
	ro := *store
	ro.ReadOnly = true
	return &ro
}

// loadFiltered reads the trace and visibility set for the non-interactive
// modes.
func loadFiltered(source *trace.Source, store *visibility.Store) (*visibility.Info, []trace.RenderLine, trace.Summary) {
	text, err := source.Read()
	if err != nil {
		fatal(err)
	}
	info, err := readOnly(store).Load()
	if err != nil {
		fatal(err)
	}
	info = visibility.Reconcile(info, text)
	return info, trace.Filter(text, info.Map()), trace.Summarize(text)
}

func runReportMode(source *trace.Source, store *visibility.Store, outputFile string, verbose bool) {
	_, lines, summary := loadFiltered(source, store)
	report := trace.GenerateReport(lines, summary, verbose)

	if outputFile != "" {
		err := os.WriteFile(outputFile, []byte(report), 0644)
		if err != nil {
			fatal(errors.Wrapf(err, "writing report to %s", outputFile))
		}
		fmt.Printf("Report saved to %s\n", outputFile)
	} else {
		fmt.Print(report)
	}
}

func runJsonMode(source *trace.Source, store *visibility.Store) {
	info, lines, summary := loadFiltered(source, store)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	err := enc.Encode(struct {
		Lines      []trace.RenderLine `json:"lines"`
		Summary    trace.Summary      `json:"summary"`
		Visibility []visibility.Entry `json:"visibility"`
		Version    string             `json:"version"`
	}{
		Lines:      lines,
		Summary:    summary,
		Visibility: info.Entries,
		Version:    model.Version,
	})
	if err != nil {
		fatal(err)
	}
}

func runWebMode(ctx context.Context, cfg *config.Config, source *trace.Source, store *visibility.Store, tracePath string, logger *zap.Logger) {
	root, err := filepath.Abs(filepath.Dir(tracePath))
	if err != nil {
		fatal(err)
	}
	server := web.NewServer(source, readOnly(store), root, zapr.NewLogger(logger), nil)

	fmt.Printf("Starting calltrace web server at http://%s\n", displayAddr(cfg.Web.Addr))
	if err := server.ListenAndServe(ctx, cfg.Web.Addr); err != nil {
		fatal(err)
	}
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func runTuiMode(ctx context.Context, cfg *config.Config, source *trace.Source, store *visibility.Store, tracePath string, logger *zap.Logger) {
	ctrl, err := session.Open(source, store, session.Options{
		FastStep: cfg.FastStep,
		Logger:   logger,
	})
	if err != nil {
		fatal(err)
	}

	opts := tui.Options{
		Tick:   cfg.Tick(),
		Follow: cfg.Follow,
		Logger: logger,
	}

	watcher, err := watch.New(tracePath, watch.DefaultDebounce, logger)
	if err != nil {
		fatal(err)
	}
	defer watcher.Stop()
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("trace file is not watched", zap.Error(err))
	} else {
		opts.Change = watcher.Changes()
	}

	m := tui.InitialModel(ctrl, opts)
	p := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fatal(errors.Wrap(err, "terminal UI"))
	}
	if ctrl.Running() {
		// Interrupted by a signal: flush like a normal quit.
		if err := ctrl.Dispatch(session.Event{Action: session.Quit}); err != nil {
			fatal(err)
		}
	}
}
