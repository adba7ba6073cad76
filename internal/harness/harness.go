package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/engine"
	"github.com/roach88/diverge/internal/govern"
	"github.com/roach88/diverge/internal/op"
	"github.com/roach88/diverge/internal/store"
	"github.com/roach88/diverge/internal/testutil"
)

// Execute runs one scenario end to end: governance model versus the
// store-backed governance system, over a throwaway in-memory database.
// The verdict comes back exactly as the engine produced it; Check matches
// it against the scenario's expectation.
func Execute(ctx context.Context, sc Scenario, opts ...Option) (*engine.RunResult, error) {
	var h options
	for _, opt := range opts {
		opt(&h)
	}

	cfg, err := config.FromMap(sc.Config)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	defer st.Close()

	var gen engine.Generator
	if len(sc.Ops) > 0 {
		ops, err := sc.Operations()
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		cfg.MaxOps = len(ops)
		gen = testutil.FixedGenerator{Env: testutil.Env, Ops: ops}
	} else {
		gen = govern.NewGenerator()
	}

	build := govern.BuildExecutors(ctx, st, cfg)
	if sc.Tamper != nil {
		build = tamperedBuild(build, *sc.Tamper)
	}

	var engOpts []engine.Option
	if h.logger != nil {
		engOpts = append(engOpts, engine.WithLogger(h.logger))
	}
	if h.recorder != nil {
		engOpts = append(engOpts, engine.WithRecorder(h.recorder))
	}
	return engine.New(gen, build, cfg, engOpts...).Run(ctx, sc.Seed)
}

// Check compares an execution's verdict against the scenario's expectation.
func Check(sc Scenario, res *engine.RunResult, runErr error) error {
	if sc.Expect.Status == "fatal" {
		var fault *engine.FaultError
		if !errors.As(runErr, &fault) {
			return fmt.Errorf("scenario %s: expected a fatal fault, got result %+v err %v", sc.Name, res, runErr)
		}
		if sc.Expect.Step != 0 && fault.Step != sc.Expect.Step {
			return fmt.Errorf("scenario %s: fault at step %d, expected %d", sc.Name, fault.Step, sc.Expect.Step)
		}
		return nil
	}

	if runErr != nil {
		return fmt.Errorf("scenario %s: unexpected run error: %w", sc.Name, runErr)
	}
	if string(res.Status) != sc.Expect.Status {
		return fmt.Errorf("scenario %s: status %s, expected %s", sc.Name, res.Status, sc.Expect.Status)
	}
	if res.Status != engine.StatusDiverged {
		return nil
	}
	if sc.Expect.Step != 0 && res.Steps != sc.Expect.Step {
		return fmt.Errorf("scenario %s: diverged at step %d, expected %d", sc.Name, res.Steps, sc.Expect.Step)
	}
	if sc.Expect.Field != "" && res.Report.Field != sc.Expect.Field {
		return fmt.Errorf("scenario %s: diverged on %s, expected %s", sc.Name, res.Report.Field, sc.Expect.Field)
	}
	return nil
}

type options struct {
	logger   *slog.Logger
	recorder engine.Recorder
}

// Option adjusts scenario execution.
type Option func(*options)

// WithLogger sets the engine logger for the run.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder wires a trace recorder, typically a file-backed store.
func WithRecorder(r engine.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// tamperedBuild wraps the built system executor so one step's reported
// outcome is mutated before the engine sees it.
func tamperedBuild(base engine.BuildExecutors, tm Tamper) engine.BuildExecutors {
	return func(env op.Environment) (engine.ModelExecutor, engine.SystemExecutor, error) {
		model, system, err := base(env)
		if err != nil {
			return nil, nil, err
		}
		return model, &testutil.TamperSystem{Inner: system, Step: tm.Step, Mutate: mutator(tm)}, nil
	}
}

func mutator(tm Tamper) testutil.Mutator {
	switch tm.Field {
	case "balance":
		return testutil.TamperBalance(tm.Delta)
	case "storage":
		return testutil.TamperStorage(tm.Key)
	case "aux_balance":
		return testutil.TamperAuxBalance(op.Handle(tm.Handle), tm.Delta)
	case "drop_aux":
		return testutil.DropAux(op.Handle(tm.Handle))
	case "poison":
		return testutil.PoisonFailure()
	}
	// validate() rejects unknown fields before execution reaches here.
	panic(fmt.Sprintf("unknown tamper field %q", tm.Field))
}
