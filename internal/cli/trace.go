package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Node     string // optional - filter to one node
	Name     string // optional - filter to one directive
	Type     string // optional - filter to one event type
}

// TraceEvent is a single event in the trace timeline.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Tick   int64  `json:"tick"`
	NodeID string `json:"node_id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Step   int    `json:"step"`
	Steps  int    `json:"steps"`
	Cycle  int    `json:"cycle"`
	Value  any    `json:"value"`
}

// TraceResult holds the trace of one stored run.
type TraceResult struct {
	Run      RunInfo      `json:"run"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// RunInfo describes a stored run.
type RunInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Ticks       int64  `json:"ticks"`
	Finished    bool   `json:"finished"`
	TraceDigest string `json:"trace_digest,omitempty"`
	Verified    bool   `json:"verified"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Directives  int            `json:"directives"`
	ByType      map[string]int `json:"by_type"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect stored runs",
		Long: `Inspect runs recorded by 'cadence run --db'.

Without --run, lists the stored runs. With --run, prints the lifecycle
timeline of that run: every activation, step, cycle, fetch and
completion in logical clock order, followed by per-type counts.

For finished runs the stored trace digest is recomputed from the events
and reported as verified when it matches.

Examples:
  cadence trace --db ./cadence.db
  cadence trace --db ./cadence.db --run 0190f3c2-...
  cadence trace --db ./cadence.db --run demo --node box --name x
  cadence trace --db ./cadence.db --run demo --type step --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show (omit to list runs)")
	cmd.Flags().StringVar(&opts.Node, "node", "", "filter to one node id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "filter to one directive name")
	cmd.Flags().StringVar(&opts.Type, "type", "", "filter to one event type")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, st, opts, cmd)
	}

	run, err := st.GetRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadTraceFiltered(ctx, opts.RunID, store.TraceFilter{
		NodeID: opts.Node,
		Name:   opts.Name,
		Type:   ir.TraceType(opts.Type),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	info := runInfo(run)
	if run.Finished {
		full, err := st.ReadTrace(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read trace", err)
		}
		digest, err := ir.TraceDigest(full)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to digest trace", err)
		}
		info.Verified = digest == run.TraceDigest
	}

	result := TraceResult{
		Run:      info,
		Timeline: buildTimeline(events),
		Stats:    buildStats(events),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

func runInfo(r store.Run) RunInfo {
	return RunInfo{
		ID:          r.ID,
		Label:       r.Label,
		Ticks:       r.Ticks,
		Finished:    r.Finished,
		TraceDigest: r.TraceDigest,
	}
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	infos := make([]RunInfo, len(runs))
	for i, r := range runs {
		infos[i] = runInfo(r)
	}

	if opts.Format == "json" {
		return writeResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: infos})
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return nil
	}
	for _, r := range infos {
		state := "finished"
		if !r.Finished {
			state = "unfinished"
		}
		line := fmt.Sprintf("%s  %s  %d ticks", r.ID, state, r.Ticks)
		if r.Label != "" {
			line += "  " + r.Label
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// buildTimeline converts stored events to timeline entries.
func buildTimeline(events []ir.TraceEvent) []TraceEvent {
	timeline := make([]TraceEvent, len(events))
	for i, ev := range events {
		timeline[i] = TraceEvent{
			Seq:    ev.Seq,
			Tick:   ev.Tick,
			NodeID: ev.NodeID,
			Name:   ev.Name,
			Type:   string(ev.Type),
			Status: statusLabel(ev.Status),
			Step:   ev.Step,
			Steps:  ev.Steps,
			Cycle:  ev.Cycle,
			Value:  ir.ToGo(ev.Value),
		}
	}
	return timeline
}

func buildStats(events []ir.TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events), ByType: make(map[string]int)}
	seen := make(map[string]bool)
	for _, ev := range events {
		stats.ByType[string(ev.Type)]++
		key := ev.NodeID + "." + ev.Name
		if !seen[key] {
			seen[key] = true
			stats.Directives++
		}
	}
	return stats
}

func statusLabel(s ir.Status) string {
	if s == ir.StatusIdle {
		return "idle"
	}
	return string(s)
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	return writeResponse(cmd.OutOrStdout(), response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Status: %s\n", runStatus(result.Run))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Directives:   %d\n", result.Stats.Directives)

	// Sort keys for deterministic output
	types := make([]string, 0, len(result.Stats.ByType))
	for t := range result.Stats.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-12s  %d\n", t+":", result.Stats.ByType[t])
	}
	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] t%d %s.%s %s", event.Seq, event.Tick, event.NodeID, event.Name, event.Type)
	if event.Steps > 0 {
		fmt.Fprintf(w, " %d/%d", event.Step, event.Steps)
	}
	if event.Cycle > 0 {
		fmt.Fprintf(w, " cycle %d", event.Cycle)
	}
	fmt.Fprintf(w, " = %s\n", formatValue(event.Value))
	if verbose {
		fmt.Fprintf(w, "       Status: %s\n", event.Status)
	}
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	val, err := ir.FromGo(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return ir.Format(val)
}

// runStatus returns a human-readable run status.
func runStatus(r RunInfo) string {
	switch {
	case !r.Finished:
		return "Unfinished"
	case r.Verified:
		return fmt.Sprintf("Finished after %d ticks (digest verified)", r.Ticks)
	default:
		return fmt.Sprintf("Finished after %d ticks (DIGEST MISMATCH)", r.Ticks)
	}
}
