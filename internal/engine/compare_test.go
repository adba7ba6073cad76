package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diverge/internal/op"
)

var testEnv = op.Environment{Token: "token", Consumer: "consumer", Guardian: "guardian"}

func baseOutcome() op.Outcome {
	aux := make(map[op.Handle]op.AuxState)
	for _, h := range testEnv.Handles() {
		aux[h] = op.AuxState{Storage: map[string]any{}}
	}
	return op.Outcome{
		Code: op.ErrNone,
		Observed: op.ObservableSet{
			Storage: map[string]any{"frozen": map[string]any{"alice": int64(10)}},
			Balance: 10,
			Aux:     aux,
		},
	}
}

func testOp() op.Operation {
	return op.Operation{Sender: "alice", Payload: op.Propose{Proposal: "p-1"}}
}

func TestCompare_EqualOutcomes(t *testing.T) {
	assert.Nil(t, Compare(1, testOp(), baseOutcome(), baseOutcome()))
}

func TestCompare_PrimaryOutcomeCodeMismatch(t *testing.T) {
	model, system := baseOutcome(), baseOutcome()
	system.Code = op.ErrAlreadyVoted

	rep := Compare(3, testOp(), model, system)
	require.NotNil(t, rep)
	assert.Equal(t, 3, rep.Index)
	assert.Equal(t, FieldPrimaryOutcome, rep.Field)
	assert.Equal(t, "ok", rep.Model)
	assert.Equal(t, "already_voted", rep.System)
}

func TestCompare_PartialFailureIsPrimaryOutcome(t *testing.T) {
	// Model fails, system succeeds: a first-class divergence, not a
	// separate error path.
	model, system := baseOutcome(), baseOutcome()
	model.Code = op.ErrNothingFrozen

	rep := Compare(1, testOp(), model, system)
	require.NotNil(t, rep)
	assert.Equal(t, FieldPrimaryOutcome, rep.Field)
	assert.Equal(t, "nothing_frozen", rep.Model)
	assert.Equal(t, "ok", rep.System)
}

func TestCompare_PrimaryStorageMismatch(t *testing.T) {
	model, system := baseOutcome(), baseOutcome()
	system.Observed.Storage["frozen"].(map[string]any)["alice"] = int64(99)

	rep := Compare(1, testOp(), model, system)
	require.NotNil(t, rep)
	assert.Equal(t, FieldPrimaryStorage, rep.Field)
	assert.Contains(t, rep.Model, `"alice":10`)
	assert.Contains(t, rep.System, `"alice":99`)
	assert.NotEmpty(t, rep.Diff)
}

func TestCompare_SingleCause_PrimaryBalanceOnly(t *testing.T) {
	// Input crafted to violate exactly the primary balance check: the
	// report names that check and carries no auxiliary field data.
	model, system := baseOutcome(), baseOutcome()
	system.Observed.Balance = 7

	rep := Compare(2, testOp(), model, system)
	require.NotNil(t, rep)
	assert.Equal(t, FieldPrimaryBalance, rep.Field)
	assert.Equal(t, "10", rep.Model)
	assert.Equal(t, "7", rep.System)
	assert.NotContains(t, rep.Model, "aux")
	assert.NotContains(t, rep.System, "aux")
}

func TestCompare_CheckOrder_StorageBeforeBalance(t *testing.T) {
	model, system := baseOutcome(), baseOutcome()
	system.Observed.Storage["extra"] = true
	system.Observed.Balance = 7

	rep := Compare(1, testOp(), model, system)
	require.NotNil(t, rep)
	assert.Equal(t, FieldPrimaryStorage, rep.Field, "first failing check wins")
}

func TestCompare_AuxStorageMismatch(t *testing.T) {
	model, system := baseOutcome(), baseOutcome()
	system.Observed.Aux["token"].Storage["total_locked"] = int64(5)

	rep := Compare(1, testOp(), model, system)
	require.NotNil(t, rep)
	assert.Equal(t, FieldAuxStorage("token"), rep.Field)
}

func TestCompare_AuxBalanceMismatch(t *testing.T) {
	model, system := baseOutcome(), baseOutcome()
	a := system.Observed.Aux["consumer"]
	a.Balance = 4
	system.Observed.Aux["consumer"] = a

	rep := Compare(1, testOp(), model, system)
	require.NotNil(t, rep)
	assert.Equal(t, FieldAuxBalance("consumer"), rep.Field)
	assert.Equal(t, "0", rep.Model)
	assert.Equal(t, "4", rep.System)
}

func TestCompare_AuxStorageBeforeAuxBalance(t *testing.T) {
	model, system := baseOutcome(), baseOutcome()
	// Both an aux storage and an aux balance mismatch; storage checks run
	// first across all entities.
	system.Observed.Aux["token"].Storage["total_locked"] = int64(5)
	a := system.Observed.Aux["consumer"]
	a.Balance = 4
	system.Observed.Aux["consumer"] = a

	rep := Compare(1, testOp(), model, system)
	require.NotNil(t, rep)
	assert.Equal(t, FieldAuxStorage("token"), rep.Field)
}

func TestCompare_Idempotent(t *testing.T) {
	model, system := baseOutcome(), baseOutcome()
	system.Observed.Balance = 3

	first := Compare(5, testOp(), model, system)
	second := Compare(5, testOp(), model, system)
	require.NotNil(t, first)
	assert.Equal(t, first, second)
}
