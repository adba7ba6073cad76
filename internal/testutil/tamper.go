package testutil

import (
	"context"

	"github.com/roach88/diverge/internal/engine"
	"github.com/roach88/diverge/internal/op"
)

// Mutator alters one raw system outcome in place.
type Mutator func(*engine.SystemOutcome)

// TamperBalance shifts the reported primary balance.
func TamperBalance(delta int64) Mutator {
	return func(out *engine.SystemOutcome) {
		out.Observed.Balance += delta
	}
}

// TamperStorage flips a field in the reported primary storage.
func TamperStorage(key string) Mutator {
	return func(out *engine.SystemOutcome) {
		if out.Observed.Storage == nil {
			out.Observed.Storage = map[string]any{}
		}
		out.Observed.Storage[key] = true
	}
}

// TamperAuxBalance shifts one auxiliary entity's reported balance.
func TamperAuxBalance(h op.Handle, delta int64) Mutator {
	return func(out *engine.SystemOutcome) {
		a := out.Observed.Aux[h]
		a.Balance += delta
		out.Observed.Aux[h] = a
	}
}

// DropAux removes an auxiliary entity from the reported observables,
// simulating an unresolvable handle.
func DropAux(h op.Handle) Mutator {
	return func(out *engine.SystemOutcome) {
		delete(out.Observed.Aux, h)
	}
}

// PoisonFailure replaces the outcome with a raw failure of a shape the
// normalizer does not recognize.
func PoisonFailure() Mutator {
	return func(out *engine.SystemOutcome) {
		out.Failure = map[string]any{"tag": "unmapped", "detail": "poisoned by test"}
	}
}

// TamperSystem wraps a system executor and mutates the outcome of exactly
// one step, counted across calls. Step is 1-based.
type TamperSystem struct {
	Inner  engine.SystemExecutor
	Step   int
	Mutate Mutator

	calls int
}

func (t *TamperSystem) Apply(ctx context.Context, o op.Operation) (engine.SystemOutcome, error) {
	out, err := t.Inner.Apply(ctx, o)
	if err != nil {
		return out, err
	}
	t.calls++
	if t.calls == t.Step {
		t.Mutate(&out)
	}
	return out, nil
}
