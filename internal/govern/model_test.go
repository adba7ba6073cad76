package govern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/op"
)

var testEnv = op.Environment{Token: "token", Consumer: "consumer", Guardian: "guardian"}

func newModel(t *testing.T, mutate ...func(*config.Run)) (*Model, *op.ModelState) {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(&cfg)
	}
	return NewModel(testEnv, cfg), op.NewModelState(testEnv, cfg.StartLevel)
}

func apply(t *testing.T, m *Model, state *op.ModelState, o op.Operation) op.Outcome {
	t.Helper()
	out, err := m.Apply(state, o)
	require.NoError(t, err)
	return out
}

func TestModelProposeInProposalPeriod(t *testing.T) {
	m, state := newModel(t)

	out := apply(t, m, state, op.Operation{Sender: "alice", Payload: op.Propose{Proposal: "p-1"}})
	assert.Equal(t, op.ErrNone, out.Code)

	proposals := out.Observed.Storage["proposals"].(map[string]any)
	require.Contains(t, proposals, "p-1")
	entry := proposals["p-1"].(map[string]any)
	assert.Equal(t, "alice", entry["proposer"])
	assert.Equal(t, int64(0), entry["yay"])
}

func TestModelProposeDuplicate(t *testing.T) {
	m, state := newModel(t)

	apply(t, m, state, op.Operation{Sender: "alice", Payload: op.Propose{Proposal: "p-1"}})
	out := apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Propose{Proposal: "p-1"}})
	assert.Equal(t, op.ErrDuplicateProposal, out.Code)
}

func TestModelProposeOutsideProposalPeriod(t *testing.T) {
	m, state := newModel(t)

	// Advance one full period length: level 8 is the first voting period.
	out := apply(t, m, state, op.Operation{Sender: "alice", Advance: 8, Payload: op.Propose{Proposal: "p-1"}})
	assert.Equal(t, op.ErrWrongPeriod, out.Code)
	assert.Equal(t, int64(8), state.Level)
}

func TestModelAdvancePersistsAcrossFailedPayload(t *testing.T) {
	m, state := newModel(t)

	apply(t, m, state, op.Operation{Sender: "alice", Advance: 8, Payload: op.Propose{Proposal: "p-1"}})
	require.Equal(t, int64(8), state.Level)

	// Another full period brings us back to a proposal period.
	out := apply(t, m, state, op.Operation{Sender: "alice", Advance: 8, Payload: op.Propose{Proposal: "p-1"}})
	assert.Equal(t, op.ErrNone, out.Code)
}

func TestModelVoteFlow(t *testing.T) {
	m, state := newModel(t)

	apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Freeze{Amount: 10}})
	apply(t, m, state, op.Operation{Sender: "alice", Payload: op.Propose{Proposal: "p-1"}})

	out := apply(t, m, state, op.Operation{Sender: "bob", Advance: 8, Payload: op.Vote{Proposal: "p-1", Ballot: op.BallotYay}})
	require.Equal(t, op.ErrNone, out.Code)

	entry := out.Observed.Storage["proposals"].(map[string]any)["p-1"].(map[string]any)
	assert.Equal(t, int64(10), entry["yay"])

	// The consumer sees the running tally of the voted proposal.
	consumer := out.Observed.Aux["consumer"]
	assert.Equal(t, map[string]any{
		"proposal": "p-1",
		"yay":      int64(10),
		"nay":      int64(0),
		"pass":     int64(0),
	}, consumer.Storage)
}

func TestModelVoteRejections(t *testing.T) {
	m, state := newModel(t)

	apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Freeze{Amount: 10}})
	apply(t, m, state, op.Operation{Sender: "alice", Payload: op.Propose{Proposal: "p-1"}})

	// Still in the proposal period.
	out := apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Vote{Proposal: "p-1", Ballot: op.BallotYay}})
	assert.Equal(t, op.ErrWrongPeriod, out.Code)

	out = apply(t, m, state, op.Operation{Sender: "bob", Advance: 8, Payload: op.Vote{Proposal: "p-9", Ballot: op.BallotYay}})
	assert.Equal(t, op.ErrUnknownProposal, out.Code)

	out = apply(t, m, state, op.Operation{Sender: "carol", Payload: op.Vote{Proposal: "p-1", Ballot: op.BallotNay}})
	assert.Equal(t, op.ErrNothingFrozen, out.Code)

	apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Vote{Proposal: "p-1", Ballot: op.BallotYay}})
	out = apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Vote{Proposal: "p-1", Ballot: op.BallotNay}})
	assert.Equal(t, op.ErrAlreadyVoted, out.Code)
}

func TestModelFreeze(t *testing.T) {
	m, state := newModel(t)

	out := apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Freeze{Amount: 10}})
	require.Equal(t, op.ErrNone, out.Code)
	assert.Equal(t, int64(10), out.Observed.Balance)
	assert.Equal(t, int64(10), out.Observed.Storage["frozen"].(map[string]any)["bob"])
	assert.Equal(t, int64(10), out.Observed.Aux["token"].Storage["total_locked"])

	out = apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Freeze{Amount: 5}})
	assert.Equal(t, int64(15), out.Observed.Storage["frozen"].(map[string]any)["bob"])
	assert.Equal(t, int64(15), out.Observed.Aux["token"].Storage["total_locked"])

	out = apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Freeze{Amount: 0}})
	assert.Equal(t, op.ErrBadAmount, out.Code)
	assert.Equal(t, int64(15), out.Observed.Balance)
}

func TestModelTransfer(t *testing.T) {
	m, state := newModel(t)
	apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Freeze{Amount: 40}})

	out := apply(t, m, state, op.Operation{Sender: "alice", Payload: op.Transfer{To: "consumer", Amount: 10}})
	assert.Equal(t, op.ErrUnauthorized, out.Code)

	out = apply(t, m, state, op.Operation{Sender: "guardian", Payload: op.Transfer{To: "consumer", Amount: 0}})
	assert.Equal(t, op.ErrBadAmount, out.Code)

	out = apply(t, m, state, op.Operation{Sender: "guardian", Payload: op.Transfer{To: "consumer", Amount: 100}})
	assert.Equal(t, op.ErrInsufficientBalance, out.Code)

	out = apply(t, m, state, op.Operation{Sender: "guardian", Payload: op.Transfer{To: "consumer", Amount: 25}})
	require.Equal(t, op.ErrNone, out.Code)
	assert.Equal(t, int64(15), out.Observed.Balance)
	assert.Equal(t, int64(25), out.Observed.Aux["consumer"].Balance)
}

func TestModelTransferToUnknownHandleFaults(t *testing.T) {
	m, state := newModel(t)
	apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Freeze{Amount: 40}})

	_, err := m.Apply(state, op.Operation{Sender: "guardian", Payload: op.Transfer{To: "nobody", Amount: 10}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nobody")
}

func TestModelCustomTouch(t *testing.T) {
	m, state := newModel(t)

	out := apply(t, m, state, op.Operation{Sender: "alice", Payload: op.Custom{Entrypoint: "touch"}})
	require.Equal(t, op.ErrNone, out.Code)
	assert.Equal(t, int64(1), out.Observed.Aux["consumer"].Storage["touches"])

	out = apply(t, m, state, op.Operation{Sender: "bob", Payload: op.Custom{Entrypoint: "touch"}})
	assert.Equal(t, int64(2), out.Observed.Aux["consumer"].Storage["touches"])
}

func TestModelUnknownCustomPolicy(t *testing.T) {
	m, state := newModel(t)

	// Default policy ignores unknown entrypoints as successful no-ops.
	out := apply(t, m, state, op.Operation{Sender: "alice", Payload: op.Custom{Entrypoint: "burn"}})
	assert.Equal(t, op.ErrNone, out.Code)

	m, state = newModel(t, func(c *config.Run) { c.OnUnknownCustom = config.OnUnknownFail })
	_, err := m.Apply(state, op.Operation{Sender: "alice", Payload: op.Custom{Entrypoint: "burn"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "burn")
}

func TestModelStorageShapeFromFirstStep(t *testing.T) {
	m, state := newModel(t)

	out := apply(t, m, state, op.Operation{Sender: "alice", Payload: op.Custom{Entrypoint: "touch"}})
	assert.Equal(t, map[string]any{
		"proposals": map[string]any{},
		"votes":     map[string]any{},
		"frozen":    map[string]any{},
	}, out.Observed.Storage)
}
