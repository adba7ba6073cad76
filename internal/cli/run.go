package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/engine"
	"github.com/roach88/diverge/internal/govern"
	"github.com/roach88/diverge/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Seed     int64
	Runs     int
	Config   string
	Database string
}

// RunSummary is one run's verdict as reported by the run command.
type RunSummary struct {
	RunID  string `json:"run_id"`
	Seed   int64  `json:"seed"`
	Status string `json:"status"`
	Steps  int    `json:"steps"`
	Field  string `json:"field,omitempty"`
	Report string `json:"report,omitempty"`
}

func (s RunSummary) String() string {
	line := fmt.Sprintf("run %s seed=%d %s after %d ops", s.RunID, s.Seed, s.Status, s.Steps)
	if s.Report != "" {
		line += "\n" + strings.TrimRight(s.Report, "\n")
	}
	return line
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute differential runs from a seed",
		Long: `Execute one or more differential runs of the governance domain.

Each run generates a deterministic operation sequence from its seed,
applies it in lockstep to the reference model and the store-backed
system, and stops at the first divergence. Governance state lives in a
throwaway in-memory database; pass --db to persist run traces for later
replay and inspection.

Exit codes:
  0 - all runs completed without divergence
  1 - at least one run diverged
  2 - command error or fatal fault (unmet test premises)

Examples:
  diverge run --seed 42
  diverge run --seed 1 --runs 100 --db ./traces.db
  diverge run --seed 7 --config run.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDifferential(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "first generator seed")
	cmd.Flags().IntVar(&opts.Runs, "runs", 1, "number of consecutive seeds to run")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to run config YAML (defaults apply when omitted)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (traces discarded when omitted)")

	return cmd
}

func runDifferential(opts *RunOptions, cmd *cobra.Command) error {
	logger := setupLogging(opts.Verbose)

	if opts.Runs <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--runs must be positive, got %d", opts.Runs))
	}

	cfg := config.Default()
	if opts.Config != "" {
		var err error
		cfg, err = config.Load(opts.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}

	govStore, err := store.Open(":memory:")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open governance store", err)
	}
	defer govStore.Close()

	engOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.Database != "" {
		traceStore, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace database", err)
		}
		defer traceStore.Close()
		engOpts = append(engOpts, engine.WithRecorder(traceStore))
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(govern.NewGenerator(), govern.BuildExecutors(ctx, govStore, cfg), cfg, engOpts...)
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	diverged := 0
	for i := 0; i < opts.Runs; i++ {
		seed := opts.Seed + int64(i)
		res, err := eng.Run(ctx, seed)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return NewExitError(ExitCommandError, "interrupted")
			}
			_ = out.Error(fmt.Sprintf("run with seed %d died", seed), err.Error())
			return WrapExitError(ExitCommandError, "fatal fault", err)
		}

		summary := RunSummary{
			RunID:  res.RunID,
			Seed:   res.Seed,
			Status: string(res.Status),
			Steps:  res.Steps,
		}
		if res.Report != nil {
			summary.Field = res.Report.Field
			summary.Report = res.Report.Render()
			diverged++
		}
		if err := out.Success(summary); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	if diverged > 0 {
		return NewExitError(ExitDivergence, fmt.Sprintf("%d of %d runs diverged", diverged, opts.Runs))
	}
	return nil
}
