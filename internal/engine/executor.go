package engine

import (
	"context"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/op"
)

// Generator produces the operation sequence for one run.
//
// Generation must be deterministic for a given seed and config: reproducing
// a failing run depends on it. The generator does not validate business
// rules; invalid operations are part of the test surface and are judged by
// the executors.
type Generator interface {
	Generate(seed int64, cfg config.Run) (op.Environment, op.Sequence, error)
}

// ModelExecutor applies one operation to the reference model.
//
// Apply must be total: every payload variant has defined model semantics,
// and an operation whose preconditions fail yields a failure outcome, never
// an unrecovered fault. The returned error is reserved for collaborator
// faults (an unresolvable handle, an undefined custom entrypoint under the
// fail policy) and aborts the run. Apply is pure computation and never
// blocks, so it takes no context.
type ModelExecutor interface {
	Apply(state *op.ModelState, o op.Operation) (op.Outcome, error)
}

// SystemOutcome is the raw result of one submission to the system under
// test, before failure normalization.
type SystemOutcome struct {
	// Failure is the system's raw failure payload, nil on success. Its
	// shape is system-specific; op.Normalize maps it into the ErrorCode
	// space or faults the run.
	Failure any

	// Observed is the post-operation observable tuple. Reported on
	// failure too: balances and auxiliary state must stay comparable
	// across failed steps.
	Observed op.ObservableSet
}

// SystemExecutor applies one operation against the real system under test.
//
// Apply may suspend on I/O; the orchestrator waits for it before advancing.
// The submission and its observable fetches are one atomic logical unit
// relative to the model step they are compared against. Implementations
// fund the sender before submission if the transport requires it; that
// bookkeeping is external to the semantics under test and must not show up
// in the compared balances. The returned error is a transport-level
// collaborator fault and aborts the run.
type SystemExecutor interface {
	Apply(ctx context.Context, o op.Operation) (SystemOutcome, error)
}

// BuildExecutors resolves the executor pair for a run once the generator
// has produced the environment. Resolution happens once per run, before the
// first step.
type BuildExecutors func(env op.Environment) (ModelExecutor, SystemExecutor, error)
