package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/diverge/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
}

// ScenarioResult is one scenario's pass/fail outcome.
type ScenarioResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ScenarioRunResult is the overall scenario command payload.
type ScenarioRunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Failed    int              `json:"failed"`
}

func (r ScenarioRunResult) String() string {
	var b strings.Builder
	for _, s := range r.Scenarios {
		mark := "PASS"
		if !s.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "%s  %s\n", mark, s.Name)
		if s.Detail != "" {
			fmt.Fprintf(&b, "      %s\n", s.Detail)
		}
	}
	fmt.Fprintf(&b, "%d scenarios, %d failed", len(r.Scenarios), r.Failed)
	return b.String()
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file-or-dir>...",
		Short: "Execute declarative differential scenarios",
		Long: `Execute YAML scenario files and check each verdict against its
expectation. A directory argument runs every .yaml file in it.

Exit codes:
  0 - every scenario matched its expectation
  1 - at least one scenario failed
  2 - command error (unreadable or invalid scenario file)

Examples:
  diverge scenario ./scenarios
  diverge scenario tamper-balance.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	return cmd
}

func runScenarios(opts *ScenarioOptions, args []string, cmd *cobra.Command) error {
	logger := setupLogging(opts.Verbose)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var scenarios []harness.Scenario
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read scenario path", err)
		}
		if info.IsDir() {
			dir, err := harness.LoadDir(arg)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load scenarios", err)
			}
			scenarios = append(scenarios, dir...)
			continue
		}
		sc, err := harness.Load(arg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		scenarios = append(scenarios, sc)
	}
	if len(scenarios) == 0 {
		return NewExitError(ExitCommandError, "no scenarios found")
	}

	result := ScenarioRunResult{Scenarios: make([]ScenarioResult, 0, len(scenarios))}
	for _, sc := range scenarios {
		res, runErr := harness.Execute(ctx, sc, harness.WithLogger(logger))
		sr := ScenarioResult{Name: sc.Name, Passed: true}
		if err := harness.Check(sc, res, runErr); err != nil {
			sr.Passed = false
			sr.Detail = err.Error()
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := out.Success(result); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if result.Failed > 0 {
		return NewExitError(ExitDivergence, fmt.Sprintf("%d of %d scenarios failed", result.Failed, len(result.Scenarios)))
	}
	return nil
}
