package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/config"
	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/loader"
	"github.com/roach88/cadence/internal/metrics"
	"github.com/roach88/cadence/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config      string
	Database    string
	MetricsAddr string
	MaxTicks    int
	TickMS      int
	RunID       string
	Label       string

	// IDGenerator allows overriding the run and node id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator

	// LogWriter receives engine logs. Defaults to stderr.
	LogWriter io.Writer
}

// RunSummary is the outcome of one run.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Nodes     int    `json:"nodes"`
	Ticks     int64  `json:"ticks"`
	Events    int    `json:"events"`
	Errors    int    `json:"fetch_errors"`
	Pending   bool   `json:"pending"`
	Digest    string `json:"trace_digest"`
	Database  string `json:"database,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <specs-dir>",
		Short: "Drive node specs until they settle",
		Long: `Load the CUE node specs in a directory and tick the engine until no
directive has work left, the tick limit is reached, or the process is
interrupted.

Fetch directives load over HTTP. With --db every trace event is stored in
SQLite for later inspection with 'cadence trace'. With --metrics-addr the
engine exposes Prometheus metrics on /metrics while it runs.

Settings come from cadence.toml (or --config); flags override them.

Example:
  cadence run ./specs
  cadence run --db ./cadence.db --ticks 500 ./specs
  cadence run --metrics-addr 127.0.0.1:9464 --tick-ms 16 ./specs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to config file (default ./cadence.toml if present)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "address to serve /metrics on")
	cmd.Flags().IntVar(&opts.MaxTicks, "ticks", 0, "maximum ticks (0 means no limit)")
	cmd.Flags().IntVar(&opts.TickMS, "tick-ms", 0, "milliseconds between ticks (0 runs back to back)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "id for the stored run (default: generated)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label for the stored run")

	return cmd
}

// resolveConfig loads the config file and applies flags that were set.
func resolveConfig(opts *RunOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadOptional(opts.Config)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database = opts.Database
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	if flags.Changed("ticks") {
		cfg.MaxTicks = opts.MaxTicks
	}
	if flags.Changed("tick-ms") {
		cfg.TickMS = opts.TickMS
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runEngine(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logWriter := opts.LogWriter
	if logWriter == nil {
		logWriter = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	logger.Info("loading specs", "dir", specsDir)
	specs, err := LoadSpecs(specsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load specs", err)
	}
	logger.Info("specs loaded", "nodes", len(specs.Nodes), "files", specs.FileCount)

	ids := opts.IDGenerator
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	runID := opts.RunID
	if runID == "" {
		runID = ids.Generate()
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	trace := &traceBuffer{}
	engineOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithIDs(ids),
		engine.WithMaxResolveDepth(cfg.MaxResolveDepth),
		engine.WithRecorder(trace),
	}

	var st *store.Store
	var recorder *store.RunRecorder
	if cfg.Database != "" {
		logger.Info("opening database", "path", cfg.Database)
		st, err = store.Open(cfg.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		if err := st.BeginRun(ctx, store.Run{ID: runID, Label: opts.Label, SpecDigest: specDigest(specs)}); err != nil {
			return WrapExitError(ExitCommandError, "failed to begin run", err)
		}
		recorder = st.Recorder(runID, logger)
		engineOpts = append(engineOpts, engine.WithRecorder(recorder))
	}

	collector := metrics.New("")
	engineOpts = append(engineOpts, engine.WithRecorder(collector), engine.WithObserver(collector))
	if cfg.MetricsAddr != "" {
		if _, err := collector.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
	}

	httpLoader := loader.New(nil,
		loader.WithTimeout(cfg.FetchTimeout()),
		loader.WithLogger(logger),
	)
	defer httpLoader.Close()
	engineOpts = append(engineOpts, engine.WithLoader(httpLoader))

	eng := engine.New(engineOpts...)
	httpLoader.Bind(eng)
	defer eng.Stop()

	for _, n := range specs.Nodes {
		if _, err := eng.AddNode("", n.Spec, engine.WithNodeID(n.ID)); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to add node %s", n.ID), err)
		}
	}

	logger.Info("engine starting", "run_id", runID, "tick_ms", cfg.TickMS, "max_ticks", cfg.MaxTicks)
	started := time.Now()
	_, runErr := eng.RunUntilIdle(ctx, cfg.TickInterval(), cfg.MaxTicks)
	cancelled := errors.Is(runErr, context.Canceled)
	if runErr != nil && !cancelled {
		return WrapExitError(ExitFailure, "engine error", runErr)
	}

	summary := RunSummary{
		RunID:     runID,
		Nodes:     len(specs.Nodes),
		Ticks:     eng.TickCount(),
		Events:    len(trace.events),
		Errors:    eng.ErrorCount(),
		Pending:   eng.Pending(),
		Database:  cfg.Database,
		Cancelled: cancelled,
	}

	if st != nil {
		if err := recorder.Err(); err != nil {
			return WrapExitError(ExitFailure, "trace write failed", err)
		}
		// The run context may be cancelled already; finish on a fresh one.
		digest, err := st.FinishRun(context.Background(), runID, summary.Ticks)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to finish run", err)
		}
		summary.Digest = digest
	} else {
		digest, err := ir.TraceDigest(trace.events)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to digest trace", err)
		}
		summary.Digest = digest
	}

	logger.Info("engine stopped",
		"run_id", runID,
		"ticks", summary.Ticks,
		"events", summary.Events,
		"pending", summary.Pending,
		"elapsed", time.Since(started))

	return outputRunSummary(opts, cmd, summary)
}

// traceBuffer keeps every trace event of the run in memory.
type traceBuffer struct {
	events []ir.TraceEvent
}

func (b *traceBuffer) Record(ev ir.TraceEvent) {
	b.events = append(b.events, ev)
}

// specDigest hashes the loaded node specs so stored runs can be matched
// to the input that produced them.
func specDigest(specs *LoadResult) string {
	nodes := make(ir.Object, len(specs.Nodes))
	for _, n := range specs.Nodes {
		obj, err := ir.FromGo(n.Spec)
		if err != nil {
			return ""
		}
		nodes[n.ID] = obj
	}
	digest, err := ir.ValueHash(nodes)
	if err != nil {
		return ""
	}
	return digest
}

func outputRunSummary(opts *RunOptions, cmd *cobra.Command, s RunSummary) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if formatter.JSON() {
		return writeResponse(formatter.Writer, CLIResponse{Status: "ok", Data: s, RunID: s.RunID})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	fmt.Fprintf(w, "  nodes:  %d\n", s.Nodes)
	fmt.Fprintf(w, "  ticks:  %d\n", s.Ticks)
	fmt.Fprintf(w, "  events: %d\n", s.Events)
	if s.Errors > 0 {
		fmt.Fprintf(w, "  fetch errors: %d\n", s.Errors)
	}
	fmt.Fprintf(w, "  digest: %s\n", s.Digest)
	switch {
	case s.Cancelled:
		fmt.Fprintln(w, "Interrupted before settling.")
	case s.Pending:
		fmt.Fprintln(w, "Tick limit reached with work pending.")
	default:
		fmt.Fprintln(w, "\u2713 Settled")
	}
	return nil
}
