package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/diverge/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - show one run's step timeline
}

// TraceRun is one recorded run in the listing.
type TraceRun struct {
	RunID     string `json:"run_id"`
	Seed      int64  `json:"seed"`
	Status    string `json:"status"`
	Steps     int    `json:"steps"`
	CreatedAt string `json:"created_at"`
}

// TraceStep is one recorded operation in a run's timeline.
type TraceStep struct {
	Index      int    `json:"index"`
	Kind       string `json:"kind"`
	Sender     string `json:"sender"`
	Payload    string `json:"payload"`
	ModelCode  string `json:"model_code"`
	SystemCode string `json:"system_code"`
	Diverged   string `json:"diverged,omitempty"`
}

// TraceRunList is the JSON payload for the listing form.
type TraceRunList struct {
	Runs []TraceRun `json:"runs"`
}

func (l TraceRunList) String() string {
	if len(l.Runs) == 0 {
		return "no runs recorded"
	}
	var b strings.Builder
	for _, r := range l.Runs {
		fmt.Fprintf(&b, "%s  seed=%-6d %-9s steps=%-4d %s\n", r.RunID, r.Seed, r.Status, r.Steps, r.CreatedAt)
	}
	return strings.TrimRight(b.String(), "\n")
}

// TraceTimeline is the JSON payload for the single-run form.
type TraceTimeline struct {
	Run   TraceRun    `json:"run"`
	Steps []TraceStep `json:"steps"`
}

func (t TraceTimeline) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s seed=%d %s after %d ops\n", t.Run.RunID, t.Run.Seed, t.Run.Status, t.Run.Steps)
	for _, s := range t.Steps {
		fmt.Fprintf(&b, "  %4d %-8s %-10s model=%-22s system=%-22s %s\n",
			s.Index, s.Kind, s.Sender, s.ModelCode, s.SystemCode, s.Payload)
		if s.Diverged != "" {
			fmt.Fprintf(&b, "       ^ diverged on %s\n", s.Diverged)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded run traces",
		Long: `List recorded runs, or show one run's full operation timeline.

Without --run, lists all recorded runs newest first. With --run, shows
every recorded operation of that run with both sides' outcome codes and
the comparator field if the step diverged.

Examples:
  diverge trace --db ./traces.db
  diverge trace --db ./traces.db --run 018f3c4a-...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show this run's timeline")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	traceStore, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	defer traceStore.Close()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if opts.RunID == "" {
		records, err := traceStore.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		list := TraceRunList{Runs: make([]TraceRun, 0, len(records))}
		for _, r := range records {
			list.Runs = append(list.Runs, asTraceRun(r))
		}
		return out.Success(list)
	}

	rec, err := traceStore.ReadRun(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read run %s", opts.RunID), err)
	}
	steps, err := traceStore.ReadSteps(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read steps of run %s", opts.RunID), err)
	}

	timeline := TraceTimeline{Run: asTraceRun(*rec), Steps: make([]TraceStep, 0, len(steps))}
	for _, s := range steps {
		timeline.Steps = append(timeline.Steps, TraceStep{
			Index:      s.Index,
			Kind:       s.Kind,
			Sender:     s.Sender,
			Payload:    string(s.Payload),
			ModelCode:  s.ModelCode.String(),
			SystemCode: s.SystemCode.String(),
			Diverged:   s.Diverged,
		})
	}
	return out.Success(timeline)
}

func asTraceRun(r store.RunRecord) TraceRun {
	return TraceRun{
		RunID:     r.ID,
		Seed:      r.Seed,
		Status:    r.Status,
		Steps:     r.Steps,
		CreatedAt: r.CreatedAt,
	}
}
