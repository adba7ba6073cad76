package govern

import (
	"fmt"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/op"
)

// Model is the executable reference implementation of the governance
// contract. State lives in the plain maps of op.ModelState; applying an
// operation mutates the state in place and returns a snapshot.
type Model struct {
	env    op.Environment
	period int64
	policy string
	custom ModelCustom
}

// ModelOption customizes a Model beyond its configuration.
type ModelOption func(*Model)

// WithModelCustom replaces the built-in custom capability.
func WithModelCustom(c ModelCustom) ModelOption {
	return func(m *Model) { m.custom = c }
}

// NewModel builds a Model for the given run environment and configuration.
func NewModel(env op.Environment, cfg config.Run, opts ...ModelOption) *Model {
	m := &Model{
		env:    env,
		period: cfg.PeriodLength,
		policy: cfg.OnUnknownCustom,
		custom: TouchCustom{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply advances the clock if the operation carries a directive, evaluates
// the payload, and snapshots the resulting state. Detail codes report
// semantic rejections; a returned error is a fault in the model itself.
func (m *Model) Apply(state *op.ModelState, o op.Operation) (op.Outcome, error) {
	if o.Advance > 0 {
		state.Level += o.Advance
	}
	ensureShape(state)
	code, err := m.eval(state, o)
	if err != nil {
		return op.Outcome{}, err
	}
	return op.Outcome{Code: code, Observed: state.Observe()}, nil
}

// ensureShape seeds the three top-level collections so that the model's
// storage snapshot has the same shape as the system's from the first step.
func ensureShape(state *op.ModelState) {
	for _, key := range []string{"proposals", "votes", "frozen"} {
		if _, ok := state.Storage[key]; !ok {
			state.Storage[key] = map[string]any{}
		}
	}
}

func (m *Model) eval(state *op.ModelState, o op.Operation) (op.ErrorCode, error) {
	switch p := o.Payload.(type) {
	case op.Propose:
		return m.propose(state, o.Sender, p)
	case op.Vote:
		return m.vote(state, o.Sender, p)
	case op.Freeze:
		return m.freeze(state, o.Sender, p)
	case op.Transfer:
		return m.transfer(state, o.Sender, p)
	case op.Custom:
		handled, code := m.custom.ApplyModel(state, m.env, o.Sender, p)
		if handled {
			return code, nil
		}
		if m.policy == config.OnUnknownFail {
			return 0, fmt.Errorf("model: custom entrypoint %q not defined by capability", p.Entrypoint)
		}
		return op.ErrNone, nil
	}
	return 0, fmt.Errorf("model: unhandled payload kind %s", o.Payload.Kind())
}

func (m *Model) propose(state *op.ModelState, sender op.Sender, p op.Propose) (op.ErrorCode, error) {
	if !inProposalPeriod(state.Level, m.period) {
		return op.ErrWrongPeriod, nil
	}
	proposals := collection(state, "proposals")
	if _, ok := proposals[p.Proposal]; ok {
		return op.ErrDuplicateProposal, nil
	}
	proposals[p.Proposal] = map[string]any{
		"proposer": string(sender),
		"yay":      int64(0),
		"nay":      int64(0),
		"pass":     int64(0),
	}
	return op.ErrNone, nil
}

func (m *Model) vote(state *op.ModelState, sender op.Sender, p op.Vote) (op.ErrorCode, error) {
	if inProposalPeriod(state.Level, m.period) {
		return op.ErrWrongPeriod, nil
	}
	proposals := collection(state, "proposals")
	entry, ok := proposals[p.Proposal].(map[string]any)
	if !ok {
		return op.ErrUnknownProposal, nil
	}
	votes := collection(state, "votes")
	byProposal, ok := votes[p.Proposal].(map[string]any)
	if !ok {
		byProposal = map[string]any{}
	}
	if _, voted := byProposal[string(sender)]; voted {
		return op.ErrAlreadyVoted, nil
	}
	frozen := collection(state, "frozen")
	weight, _ := frozen[string(sender)].(int64)
	if weight == 0 {
		return op.ErrNothingFrozen, nil
	}

	byProposal[string(sender)] = p.Ballot.String()
	votes[p.Proposal] = byProposal
	key := p.Ballot.String()
	tally, _ := entry[key].(int64)
	entry[key] = tally + weight

	// Push the running tally of the voted proposal to the consumer.
	aux := state.Aux[m.env.Consumer]
	aux.Storage = map[string]any{
		"proposal": p.Proposal,
		"yay":      entry["yay"],
		"nay":      entry["nay"],
		"pass":     entry["pass"],
	}
	state.Aux[m.env.Consumer] = aux
	return op.ErrNone, nil
}

func (m *Model) freeze(state *op.ModelState, sender op.Sender, p op.Freeze) (op.ErrorCode, error) {
	if p.Amount <= 0 {
		return op.ErrBadAmount, nil
	}
	state.Balance += p.Amount
	frozen := collection(state, "frozen")
	cur, _ := frozen[string(sender)].(int64)
	frozen[string(sender)] = cur + p.Amount

	aux := state.Aux[m.env.Token]
	locked, _ := aux.Storage["total_locked"].(int64)
	aux.Storage["total_locked"] = locked + p.Amount
	state.Aux[m.env.Token] = aux
	return op.ErrNone, nil
}

func (m *Model) transfer(state *op.ModelState, sender op.Sender, p op.Transfer) (op.ErrorCode, error) {
	if sender != op.Sender(m.env.Guardian) {
		return op.ErrUnauthorized, nil
	}
	if p.Amount <= 0 {
		return op.ErrBadAmount, nil
	}
	if p.Amount > state.Balance {
		return op.ErrInsufficientBalance, nil
	}
	aux, ok := state.Aux[p.To]
	if !ok {
		return 0, fmt.Errorf("model: transfer to unresolvable handle %q", p.To)
	}
	state.Balance -= p.Amount
	aux.Balance += p.Amount
	state.Aux[p.To] = aux
	return op.ErrNone, nil
}

func collection(state *op.ModelState, key string) map[string]any {
	m, _ := state.Storage[key].(map[string]any)
	return m
}
