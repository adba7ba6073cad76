package govern

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/engine"
	"github.com/roach88/diverge/internal/op"
	"github.com/roach88/diverge/internal/store"
)

// System is the store-backed implementation of the governance contract.
// It is written against the SQLite tables in internal/store, independently
// of the model, and reports semantic rejections as raw numeric payloads:
// either a bare detail tag or a [tag, detail] pair, depending on the
// entrypoint. The engine's normalizer maps both shapes back to codes.
type System struct {
	st     *store.Store
	env    op.Environment
	cfg    config.Run
	custom SystemCustom
	logger *slog.Logger
}

// SystemOption customizes a System.
type SystemOption func(*System)

// WithSystemCustom replaces the built-in custom capability.
func WithSystemCustom(c SystemCustom) SystemOption {
	return func(s *System) { s.custom = c }
}

// WithSystemLogger sets the logger used for per-operation debug output.
func WithSystemLogger(l *slog.Logger) SystemOption {
	return func(s *System) { s.logger = l }
}

// NewSystem resets the governance tables for a fresh run and returns a
// System bound to them.
func NewSystem(ctx context.Context, st *store.Store, env op.Environment, cfg config.Run, opts ...SystemOption) (*System, error) {
	s := &System{
		st:     st,
		env:    env,
		cfg:    cfg,
		custom: TouchCustom{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := st.ResetGovernance(ctx, cfg.StartLevel, env.Handles()); err != nil {
		return nil, fmt.Errorf("reset governance state: %w", err)
	}
	return s, nil
}

// Apply credits the per-operation fee, advances the clock if directed,
// evaluates the payload against the store, and reads back the full
// observable set.
func (s *System) Apply(ctx context.Context, o op.Operation) (engine.SystemOutcome, error) {
	if s.cfg.Funding > 0 {
		if err := s.st.CreditFee(ctx, string(o.Sender), s.cfg.Funding); err != nil {
			return engine.SystemOutcome{}, err
		}
	}
	if o.Advance > 0 {
		if err := s.st.AdvanceGovLevel(ctx, o.Advance); err != nil {
			return engine.SystemOutcome{}, err
		}
	}
	raw, err := s.eval(ctx, o)
	if err != nil {
		return engine.SystemOutcome{}, err
	}
	s.logger.Debug("applied operation",
		slog.String("kind", o.Payload.Kind().String()),
		slog.String("sender", string(o.Sender)),
		slog.Any("failure", raw))
	observed, err := s.st.GovObservables(ctx, s.env.Handles())
	if err != nil {
		return engine.SystemOutcome{}, err
	}
	return engine.SystemOutcome{Failure: raw, Observed: observed}, nil
}

func (s *System) eval(ctx context.Context, o op.Operation) (any, error) {
	switch p := o.Payload.(type) {
	case op.Propose:
		return s.propose(ctx, o.Sender, p)
	case op.Vote:
		return s.vote(ctx, o.Sender, p)
	case op.Freeze:
		return s.freeze(ctx, o.Sender, p)
	case op.Transfer:
		return s.transfer(ctx, o.Sender, p)
	case op.Custom:
		handled, raw, err := s.custom.ApplySystem(ctx, s.st, s.env, o.Sender, p)
		if err != nil {
			return nil, err
		}
		if handled {
			return raw, nil
		}
		if s.cfg.OnUnknownCustom == config.OnUnknownFail {
			return nil, fmt.Errorf("system: custom entrypoint %q not defined by capability", p.Entrypoint)
		}
		return nil, nil
	}
	return nil, fmt.Errorf("system: unhandled payload kind %s", o.Payload.Kind())
}

func (s *System) propose(ctx context.Context, sender op.Sender, p op.Propose) (any, error) {
	level, err := s.st.GovLevel(ctx)
	if err != nil {
		return nil, err
	}
	if !inProposalPeriod(level, s.cfg.PeriodLength) {
		return []any{op.ErrWrongPeriod.Wire(), p.Proposal}, nil
	}
	exists, err := s.st.ProposalExists(ctx, p.Proposal)
	if err != nil {
		return nil, err
	}
	if exists {
		return []any{op.ErrDuplicateProposal.Wire(), p.Proposal}, nil
	}
	return nil, s.st.InsertProposal(ctx, p.Proposal, string(sender))
}

func (s *System) vote(ctx context.Context, sender op.Sender, p op.Vote) (any, error) {
	level, err := s.st.GovLevel(ctx)
	if err != nil {
		return nil, err
	}
	if inProposalPeriod(level, s.cfg.PeriodLength) {
		return []any{op.ErrWrongPeriod.Wire(), p.Proposal}, nil
	}
	exists, err := s.st.ProposalExists(ctx, p.Proposal)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []any{op.ErrUnknownProposal.Wire(), p.Proposal}, nil
	}
	voted, err := s.st.HasVoted(ctx, p.Proposal, string(sender))
	if err != nil {
		return nil, err
	}
	if voted {
		return []any{op.ErrAlreadyVoted.Wire(), p.Proposal}, nil
	}
	weight, err := s.st.FrozenAmount(ctx, string(sender))
	if err != nil {
		return nil, err
	}
	if weight == 0 {
		return op.ErrNothingFrozen.Wire(), nil
	}
	if err := s.st.RecordVote(ctx, p.Proposal, string(sender), p.Ballot.String(), weight); err != nil {
		return nil, err
	}
	yay, nay, pass, err := s.st.ProposalTally(ctx, p.Proposal)
	if err != nil {
		return nil, err
	}
	return nil, s.st.SetAuxStorage(ctx, s.env.Consumer, map[string]any{
		"proposal": p.Proposal,
		"yay":      yay,
		"nay":      nay,
		"pass":     pass,
	})
}

func (s *System) freeze(ctx context.Context, sender op.Sender, p op.Freeze) (any, error) {
	if p.Amount <= 0 {
		return op.ErrBadAmount.Wire(), nil
	}
	if err := s.st.CreditGovBalance(ctx, p.Amount); err != nil {
		return nil, err
	}
	if err := s.st.AddFrozen(ctx, string(sender), p.Amount); err != nil {
		return nil, err
	}
	m, err := s.st.AuxStorage(ctx, s.env.Token)
	if err != nil {
		return nil, err
	}
	locked, _ := m["total_locked"].(int64)
	m["total_locked"] = locked + p.Amount
	return nil, s.st.SetAuxStorage(ctx, s.env.Token, m)
}

func (s *System) transfer(ctx context.Context, sender op.Sender, p op.Transfer) (any, error) {
	if sender != op.Sender(s.env.Guardian) {
		return op.ErrUnauthorized.Wire(), nil
	}
	if p.Amount <= 0 {
		return op.ErrBadAmount.Wire(), nil
	}
	balance, err := s.st.GovBalance(ctx)
	if err != nil {
		return nil, err
	}
	if p.Amount > balance {
		return op.ErrInsufficientBalance.Wire(), nil
	}
	return nil, s.st.TransferToAux(ctx, p.To, p.Amount)
}

// BuildExecutors returns an executor factory backed by the given store,
// suitable for engine.New. ctx scopes the store operations that happen
// during construction.
func BuildExecutors(ctx context.Context, st *store.Store, cfg config.Run, opts ...SystemOption) engine.BuildExecutors {
	return func(env op.Environment) (engine.ModelExecutor, engine.SystemExecutor, error) {
		system, err := NewSystem(ctx, st, env, cfg, opts...)
		if err != nil {
			return nil, nil, err
		}
		return NewModel(env, cfg), system, nil
	}
}
