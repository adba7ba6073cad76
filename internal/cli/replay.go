package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/diverge/internal/engine"
	"github.com/roach88/diverge/internal/govern"
	"github.com/roach88/diverge/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - replay one recorded run only
}

// ReplayRunResult is the verification result for one recorded run.
type ReplayRunResult struct {
	RunID      string `json:"run_id"`
	Seed       int64  `json:"seed"`
	Recorded   string `json:"recorded"`
	Replayed   string `json:"replayed"`
	Steps      int    `json:"steps"`
	Reproduced bool   `json:"reproduced"`
}

// ReplayResult is the overall verification result.
type ReplayResult struct {
	Runs          []ReplayRunResult `json:"runs"`
	TotalRuns     int               `json:"total_runs"`
	Skipped       int               `json:"skipped"`
	AllReproduced bool              `json:"all_reproduced"`
}

func (r ReplayResult) String() string {
	var b strings.Builder
	for _, run := range r.Runs {
		mark := "ok"
		if !run.Reproduced {
			mark = "MISMATCH"
		}
		fmt.Fprintf(&b, "%s  run %s seed=%d recorded=%s replayed=%s steps=%d\n",
			mark, run.RunID, run.Seed, run.Recorded, run.Replayed, run.Steps)
	}
	fmt.Fprintf(&b, "%d runs replayed, %d skipped", len(r.Runs), r.Skipped)
	return b.String()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute recorded runs and verify their verdicts",
		Long: `Re-execute recorded runs from their seed and configuration and verify
that each reproduces its recorded verdict.

A run is reproduced when the fresh execution reaches the same status
after the same number of operations. Runs that ended in a fatal fault or
were cancelled are skipped: they have no verdict to reproduce.

Exit codes:
  0 - every replayed run reproduced its verdict
  1 - at least one run did not reproduce
  2 - command error (database not found, etc.)

Examples:
  diverge replay --db ./traces.db
  diverge replay --db ./traces.db --run 018f3c4a-...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay one recorded run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	logger := setupLogging(opts.Verbose)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	traceStore, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	defer traceStore.Close()

	var records []store.RunRecord
	if opts.RunID != "" {
		rec, err := traceStore.ReadRun(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read run %s", opts.RunID), err)
		}
		records = []store.RunRecord{*rec}
	} else {
		records, err = traceStore.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	govStore, err := store.Open(":memory:")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open governance store", err)
	}
	defer govStore.Close()

	result := ReplayResult{TotalRuns: len(records), AllReproduced: true}
	for _, rec := range records {
		if rec.Status != string(engine.StatusCompleted) && rec.Status != string(engine.StatusDiverged) {
			logger.Debug("skipping run without a verdict", "run_id", rec.ID, "status", rec.Status)
			result.Skipped++
			continue
		}

		eng := engine.New(govern.NewGenerator(), govern.BuildExecutors(ctx, govStore, rec.Config), rec.Config,
			engine.WithLogger(logger))
		res, err := eng.Run(ctx, rec.Seed)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", rec.ID), err)
		}

		runResult := ReplayRunResult{
			RunID:      rec.ID,
			Seed:       rec.Seed,
			Recorded:   rec.Status,
			Replayed:   string(res.Status),
			Steps:      res.Steps,
			Reproduced: string(res.Status) == rec.Status && res.Steps == rec.Steps,
		}
		if !runResult.Reproduced {
			result.AllReproduced = false
		}
		result.Runs = append(result.Runs, runResult)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := out.Success(result); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if !result.AllReproduced {
		return NewExitError(ExitDivergence, "replay verification failed")
	}
	return nil
}
