package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/op"
)

// Status is the terminal state of a run that produced a result. Fatal
// conditions (normalization faults, collaborator faults, cancellation) are
// returned as errors instead and never carry a result.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusDiverged  Status = "diverged"

	// Trace-only statuses for runs that ended in an error.
	StatusFatal     Status = "fatal"
	StatusCancelled Status = "cancelled"
)

// FaultStage names the point in a step where a fatal fault surfaced.
type FaultStage string

const (
	FaultGenerate  FaultStage = "generate"
	FaultBuild     FaultStage = "build"
	FaultModel     FaultStage = "model"
	FaultSystem    FaultStage = "system"
	FaultNormalize FaultStage = "normalize"
	FaultObserve   FaultStage = "observe"
	FaultRecord    FaultStage = "record"
)

// FaultError is a fatal, non-recoverable run failure: the test's premises
// are unmet, so no divergence verdict is possible. Distinct from a semantic
// divergence, which is an expected, assertable outcome.
type FaultError struct {
	Stage FaultStage
	// Step is the 1-based operation index, 0 when no step applies.
	Step int
	Err  error
}

func (e *FaultError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s fault at operation %d: %v", e.Stage, e.Step, e.Err)
	}
	return fmt.Sprintf("%s fault: %v", e.Stage, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// StepRecord is one applied operation as persisted to the run trace.
type StepRecord struct {
	Index      int
	Kind       string
	Sender     string
	Payload    []byte // canonical JSON of the operation
	ModelCode  op.ErrorCode
	SystemCode op.ErrorCode
	// Diverged is the comparator field label when this step diverged,
	// empty when the step matched.
	Diverged string
}

// Recorder persists run traces. The engine treats recorder failures as
// collaborator faults: a trace that silently lost steps cannot be replayed.
type Recorder interface {
	BeginRun(ctx context.Context, runID string, seed int64, cfg config.Run) error
	RecordStep(ctx context.Context, runID string, rec StepRecord) error
	FinishRun(ctx context.Context, runID string, status Status, steps int) error
}

// NopRecorder discards all trace records. Default when no store is wired.
type NopRecorder struct{}

func (NopRecorder) BeginRun(context.Context, string, int64, config.Run) error { return nil }
func (NopRecorder) RecordStep(context.Context, string, StepRecord) error      { return nil }
func (NopRecorder) FinishRun(context.Context, string, Status, int) error      { return nil }

// RunResult is the outcome of a run that reached a verdict.
type RunResult struct {
	RunID string
	Seed  int64

	Status Status

	// Steps is the number of operations applied to each executor. When
	// Status is StatusDiverged this equals the diverging operation's
	// index: nothing after the first divergence is applied to either
	// side.
	Steps int

	// Report is set exactly when Status is StatusDiverged.
	Report *DivergenceReport
}

// Engine orchestrates differential runs.
//
// An Engine is safe to reuse across runs; each Run owns its own model state
// and executor pair. Runs with different seeds may execute concurrently on
// separate Engine values as long as their executors do not share a system
// instance.
type Engine struct {
	gen    Generator
	build  BuildExecutors
	cfg    config.Run
	rec    Recorder
	ids    RunIDGenerator
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder wires a trace recorder (typically *store.Store).
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.rec = r }
}

// WithLogger sets the engine's logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRunIDs overrides run ID generation, for deterministic traces in tests.
func WithRunIDs(g RunIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// New creates an engine over a generator and an executor builder. The
// builder is invoked once per run, after the generator has produced the
// environment.
func New(gen Generator, build BuildExecutors, cfg config.Run, opts ...Option) *Engine {
	e := &Engine{
		gen:    gen,
		build:  build,
		cfg:    cfg,
		rec:    NopRecorder{},
		ids:    UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one differential run from the given seed.
//
// The loop applies each operation to both executors in the same logical
// step, normalizes the system's failure (if any) into the model's error
// code space, and compares the observable tuples. It stops on the first
// divergence: no later operation is applied to either side, so the state
// at the point of divergence is preserved for diagnostics.
//
// Returns a RunResult for the Completed and Diverged verdicts. Fatal
// conditions return a *FaultError instead; cancellation between steps
// returns the context's error with no report, discarding in-flight state.
func (e *Engine) Run(ctx context.Context, seed int64) (*RunResult, error) {
	runID := e.ids.NewRunID()
	logger := e.logger.With("run_id", runID, "seed", seed)

	env, seq, err := e.gen.Generate(seed, e.cfg)
	if err != nil {
		return nil, &FaultError{Stage: FaultGenerate, Err: err}
	}
	logger.Info("sequence generated", "ops", len(seq.Ops), "start_level", e.cfg.StartLevel)

	model, system, err := e.build(env)
	if err != nil {
		return nil, &FaultError{Stage: FaultBuild, Err: err}
	}

	if err := e.rec.BeginRun(ctx, runID, seed, e.cfg); err != nil {
		return nil, &FaultError{Stage: FaultRecord, Err: err}
	}

	state := op.NewModelState(env, e.cfg.StartLevel)

	for i, o := range seq.Ops {
		step := i + 1

		// Cancellation is honored between steps only: a step in flight
		// is one atomic logical unit.
		if err := ctx.Err(); err != nil {
			e.finish(ctx, runID, StatusCancelled, i, logger)
			return nil, err
		}

		modelOut, err := model.Apply(state, o)
		if err != nil {
			e.finish(ctx, runID, StatusFatal, i, logger)
			return nil, &FaultError{Stage: FaultModel, Step: step, Err: err}
		}

		sysRaw, err := system.Apply(ctx, o)
		if err != nil {
			e.finish(ctx, runID, StatusFatal, i, logger)
			return nil, &FaultError{Stage: FaultSystem, Step: step, Err: err}
		}

		sysOut := op.Outcome{Code: op.ErrNone, Observed: sysRaw.Observed}
		if sysRaw.Failure != nil {
			code, nerr := op.Normalize(sysRaw.Failure)
			if nerr != nil {
				e.finish(ctx, runID, StatusFatal, i, logger)
				return nil, &FaultError{Stage: FaultNormalize, Step: step, Err: nerr}
			}
			sysOut.Code = code
		}

		if err := checkAux(env, modelOut.Observed, sysOut.Observed); err != nil {
			e.finish(ctx, runID, StatusFatal, i, logger)
			return nil, &FaultError{Stage: FaultObserve, Step: step, Err: err}
		}

		report := Compare(step, o, modelOut, sysOut)

		if err := e.recordStep(ctx, runID, step, o, modelOut.Code, sysOut.Code, report); err != nil {
			e.finish(ctx, runID, StatusFatal, step, logger)
			return nil, &FaultError{Stage: FaultRecord, Step: step, Err: err}
		}

		if report != nil {
			logger.Info("divergence detected",
				"step", step,
				"kind", o.Payload.Kind().String(),
				"field", report.Field,
			)
			logger.Debug("observable diff", "diff", report.Diff)
			e.finish(ctx, runID, StatusDiverged, step, logger)
			return &RunResult{RunID: runID, Seed: seed, Status: StatusDiverged, Steps: step, Report: report}, nil
		}

		logger.Debug("step matched",
			"step", step,
			"kind", o.Payload.Kind().String(),
			"outcome", modelOut.Code.String(),
		)
	}

	e.finish(ctx, runID, StatusCompleted, len(seq.Ops), logger)
	return &RunResult{RunID: runID, Seed: seed, Status: StatusCompleted, Steps: len(seq.Ops)}, nil
}

func (e *Engine) recordStep(ctx context.Context, runID string, step int, o op.Operation, modelCode, sysCode op.ErrorCode, report *DivergenceReport) error {
	payload, err := op.MarshalOperation(o)
	if err != nil {
		return fmt.Errorf("render operation: %w", err)
	}
	rec := StepRecord{
		Index:      step,
		Kind:       o.Payload.Kind().String(),
		Sender:     string(o.Sender),
		Payload:    payload,
		ModelCode:  modelCode,
		SystemCode: sysCode,
	}
	if report != nil {
		rec.Diverged = report.Field
	}
	return e.rec.RecordStep(ctx, runID, rec)
}

// finish closes the run's trace record. Uses a context detached from
// cancellation so a cancelled run still leaves a consistent trace. Finish
// failures are logged, not propagated: the run's verdict is already made.
func (e *Engine) finish(ctx context.Context, runID string, status Status, steps int, logger *slog.Logger) {
	if err := e.rec.FinishRun(context.WithoutCancel(ctx), runID, status, steps); err != nil {
		logger.Warn("failed to finish run trace", "status", string(status), "error", err)
	}
}

// checkAux verifies both observable sets report every tracked auxiliary
// entity and nothing else. A missing entity is a hard fault, not a soft
// skip: comparing around it would silently shrink the observable tuple.
func checkAux(env op.Environment, model, system op.ObservableSet) error {
	handles := env.Handles()
	if len(model.Aux) != len(handles) {
		return fmt.Errorf("model reported %d auxiliary entities, environment tracks %d", len(model.Aux), len(handles))
	}
	if len(system.Aux) != len(handles) {
		return fmt.Errorf("system reported %d auxiliary entities, environment tracks %d", len(system.Aux), len(handles))
	}
	for _, h := range handles {
		if _, ok := model.Aux[h]; !ok {
			return fmt.Errorf("model observables missing auxiliary entity %q", h)
		}
		if _, ok := system.Aux[h]; !ok {
			return fmt.Errorf("system observables missing auxiliary entity %q", h)
		}
	}
	return nil
}
