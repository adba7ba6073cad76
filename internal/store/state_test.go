package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diverge/internal/op"
)

var govHandles = []op.Handle{"consumer", "guardian", "token"}

func openGov(t *testing.T) *Store {
	t.Helper()
	s := openTest(t)
	require.NoError(t, s.ResetGovernance(context.Background(), 3, govHandles))
	return s
}

func TestGovernance_ResetSeedsState(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	level, err := s.GovLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), level)

	obs, err := s.GovObservables(ctx, govHandles)
	require.NoError(t, err)
	assert.Equal(t, int64(0), obs.Balance)
	assert.Equal(t, map[string]any{"proposals": map[string]any{}, "votes": map[string]any{}, "frozen": map[string]any{}}, obs.Storage)
	require.Len(t, obs.Aux, 3)
	for _, h := range govHandles {
		assert.Empty(t, obs.Aux[h].Storage)
		assert.Zero(t, obs.Aux[h].Balance)
	}
}

func TestGovernance_ResetClearsPreviousRun(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	require.NoError(t, s.InsertProposal(ctx, "p-1", "alice"))
	require.NoError(t, s.ResetGovernance(ctx, 0, govHandles))

	exists, err := s.ProposalExists(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGovernance_LevelAdvance(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	require.NoError(t, s.AdvanceGovLevel(ctx, 5))
	level, err := s.GovLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), level)
}

func TestGovernance_VoteTally(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	require.NoError(t, s.InsertProposal(ctx, "p-1", "alice"))
	require.NoError(t, s.RecordVote(ctx, "p-1", "bob", "yay", 10))
	require.NoError(t, s.RecordVote(ctx, "p-1", "carol", "nay", 4))

	yay, nay, pass, err := s.ProposalTally(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), yay)
	assert.Equal(t, int64(4), nay)
	assert.Equal(t, int64(0), pass)

	voted, err := s.HasVoted(ctx, "p-1", "bob")
	require.NoError(t, err)
	assert.True(t, voted)

	voted, err = s.HasVoted(ctx, "p-1", "dave")
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestGovernance_DuplicateVoteRollsBackTally(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	require.NoError(t, s.InsertProposal(ctx, "p-1", "alice"))
	require.NoError(t, s.RecordVote(ctx, "p-1", "bob", "yay", 10))
	require.Error(t, s.RecordVote(ctx, "p-1", "bob", "nay", 3), "primary key forbids a second vote")

	yay, nay, _, err := s.ProposalTally(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), yay)
	assert.Equal(t, int64(0), nay, "failed vote must not leak a tally update")
}

func TestGovernance_FrozenStake(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	amount, err := s.FrozenAmount(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, amount)

	require.NoError(t, s.AddFrozen(ctx, "bob", 10))
	require.NoError(t, s.AddFrozen(ctx, "bob", 5))

	amount, err = s.FrozenAmount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(15), amount)
}

func TestGovernance_AuxStorageRoundTripKeepsInt64(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	require.NoError(t, s.SetAuxStorage(ctx, "token", map[string]any{"total_locked": int64(25)}))

	m, err := s.AuxStorage(ctx, "token")
	require.NoError(t, err)
	// Structural comparison against the model requires int64, not the
	// float64 encoding/json defaults to.
	assert.Equal(t, map[string]any{"total_locked": int64(25)}, m)
}

func TestGovernance_SetAuxStorageUnknownHandle(t *testing.T) {
	s := openGov(t)
	err := s.SetAuxStorage(context.Background(), "ghost", map[string]any{})
	assert.Error(t, err)
}

func TestGovernance_TransferToAux(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	require.NoError(t, s.CreditGovBalance(ctx, 50))
	require.NoError(t, s.TransferToAux(ctx, "consumer", 20))

	balance, err := s.GovBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)

	obs, err := s.GovObservables(ctx, govHandles)
	require.NoError(t, err)
	assert.Equal(t, int64(20), obs.Aux["consumer"].Balance)
}

func TestGovernance_TransferToUnknownAuxFails(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	require.NoError(t, s.CreditGovBalance(ctx, 50))
	require.Error(t, s.TransferToAux(ctx, "ghost", 20))

	balance, err := s.GovBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance, "failed transfer must not debit the contract")
}

func TestGovernance_ObservablesShape(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	require.NoError(t, s.InsertProposal(ctx, "p-1", "alice"))
	require.NoError(t, s.AddFrozen(ctx, "bob", 10))
	require.NoError(t, s.RecordVote(ctx, "p-1", "bob", "yay", 10))

	obs, err := s.GovObservables(ctx, govHandles)
	require.NoError(t, err)

	want := map[string]any{
		"proposals": map[string]any{
			"p-1": map[string]any{"proposer": "alice", "yay": int64(10), "nay": int64(0), "pass": int64(0)},
		},
		"votes": map[string]any{
			"p-1": map[string]any{"bob": "yay"},
		},
		"frozen": map[string]any{"bob": int64(10)},
	}
	assert.Equal(t, want, obs.Storage)
}

func TestGovernance_ObservablesOmitMissingAux(t *testing.T) {
	s := openGov(t)
	ctx := context.Background()

	obs, err := s.GovObservables(ctx, []op.Handle{"consumer", "ghost"})
	require.NoError(t, err)
	_, ok := obs.Aux["ghost"]
	assert.False(t, ok, "unresolvable handles are left out for the engine to fault on")
	_, ok = obs.Aux["consumer"]
	assert.True(t, ok)
}
