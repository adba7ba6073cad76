// Package testutil provides deterministic collaborators for engine tests:
// fixed sequences, scripted executors, and fault-injecting wrappers.
package testutil

import (
	"context"
	"fmt"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/engine"
	"github.com/roach88/diverge/internal/op"
)

// Env is the environment used by fixtures throughout the test suite.
var Env = op.Environment{Token: "token", Consumer: "consumer", Guardian: "guardian"}

// FixedGenerator returns a predetermined environment and operation list,
// ignoring seed and config.
type FixedGenerator struct {
	Env op.Environment
	Ops []op.Operation
}

func (g FixedGenerator) Generate(int64, config.Run) (op.Environment, op.Sequence, error) {
	return g.Env, op.Sequence{Env: g.Env, Ops: g.Ops}, nil
}

// FailingGenerator propagates a generator-internal error.
type FailingGenerator struct {
	Err error
}

func (g FailingGenerator) Generate(int64, config.Run) (op.Environment, op.Sequence, error) {
	return op.Environment{}, op.Sequence{}, g.Err
}

// ScriptedModel replays a queue of outcomes, one per Apply call.
type ScriptedModel struct {
	Outcomes []op.Outcome
	Calls    int
}

func (m *ScriptedModel) Apply(_ *op.ModelState, _ op.Operation) (op.Outcome, error) {
	if m.Calls >= len(m.Outcomes) {
		return op.Outcome{}, fmt.Errorf("scripted model exhausted after %d calls", m.Calls)
	}
	out := m.Outcomes[m.Calls]
	m.Calls++
	return out, nil
}

// ScriptedSystem replays a queue of raw system outcomes, one per Apply call.
type ScriptedSystem struct {
	Outcomes []engine.SystemOutcome
	Calls    int
}

func (s *ScriptedSystem) Apply(_ context.Context, _ op.Operation) (engine.SystemOutcome, error) {
	if s.Calls >= len(s.Outcomes) {
		return engine.SystemOutcome{}, fmt.Errorf("scripted system exhausted after %d calls", s.Calls)
	}
	out := s.Outcomes[s.Calls]
	s.Calls++
	return out, nil
}

// Observables builds an observable set with every entity in Env present,
// suitable as a matching baseline for scripted outcomes.
func Observables() op.ObservableSet {
	aux := make(map[op.Handle]op.AuxState, 3)
	for _, h := range Env.Handles() {
		aux[h] = op.AuxState{Storage: map[string]any{}}
	}
	return op.ObservableSet{Storage: map[string]any{}, Aux: aux}
}

// SuccessOutcome wraps Observables in a successful outcome.
func SuccessOutcome() op.Outcome {
	return op.Outcome{Code: op.ErrNone, Observed: Observables()}
}

// SuccessSystemOutcome wraps Observables in a successful raw outcome.
func SuccessSystemOutcome() engine.SystemOutcome {
	return engine.SystemOutcome{Observed: Observables()}
}
