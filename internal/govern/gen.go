package govern

import (
	"fmt"
	"math/rand"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/op"
)

// Generator produces deterministic operation sequences for the governance
// domain. The same seed and configuration always yield the same sequence,
// which is what makes recorded runs replayable.
type Generator struct {
	senders     []op.Sender
	proposals   []string
	entrypoints []string
	maxAmount   int64
}

// NewGenerator returns a Generator with the default pools. The sender pool
// includes the guardian so authorization paths get exercised, and the
// entrypoint pool includes one name the built-in capability does not
// define, so the unknown-custom policy gets exercised too.
func NewGenerator() *Generator {
	return &Generator{
		senders:   []op.Sender{"alice", "bob", "carol", "dave", "guardian"},
		proposals: []string{"p-1", "p-2", "p-3", "p-4", "p-5", "p-6"},
		// "burn" is deliberately outside TouchCustom's vocabulary.
		entrypoints: []string{"touch", "burn"},
		maxAmount:   50,
	}
}

// Generate draws exactly cfg.MaxOps operations from seed. Amounts start at
// zero so the bad-amount rejection path appears in generated sequences.
func (g *Generator) Generate(seed int64, cfg config.Run) (op.Environment, op.Sequence, error) {
	total := cfg.Weights.Propose + cfg.Weights.Vote + cfg.Weights.Freeze + cfg.Weights.Transfer + cfg.Weights.Custom
	if total <= 0 {
		return op.Environment{}, op.Sequence{}, fmt.Errorf("generate: operation weights sum to %d", total)
	}

	rng := rand.New(rand.NewSource(seed))
	env := op.Environment{Token: "token", Consumer: "consumer", Guardian: "guardian"}
	handles := env.Handles()

	ops := make([]op.Operation, 0, cfg.MaxOps)
	for i := 0; i < cfg.MaxOps; i++ {
		o := op.Operation{Sender: g.senders[rng.Intn(len(g.senders))]}
		if rng.Intn(4) == 0 {
			o.Advance = int64(rng.Intn(3) + 1)
		}
		switch g.pick(rng, cfg.Weights, total) {
		case op.KindPropose:
			o.Payload = op.Propose{Proposal: g.proposals[rng.Intn(len(g.proposals))]}
		case op.KindVote:
			o.Payload = op.Vote{
				Proposal: g.proposals[rng.Intn(len(g.proposals))],
				Ballot:   op.Ballot(rng.Intn(3)),
			}
		case op.KindFreeze:
			o.Payload = op.Freeze{Amount: int64(rng.Intn(int(g.maxAmount) + 1))}
		case op.KindTransfer:
			o.Payload = op.Transfer{
				To:     handles[rng.Intn(len(handles))],
				Amount: int64(rng.Intn(int(g.maxAmount) + 1)),
			}
		case op.KindCustom:
			o.Payload = op.Custom{Entrypoint: g.entrypoints[rng.Intn(len(g.entrypoints))]}
		}
		ops = append(ops, o)
	}
	return env, op.Sequence{Env: env, Ops: ops}, nil
}

// pick draws a kind from the cumulative weight distribution. The draw
// order is fixed so weight changes do not reshuffle unrelated kinds.
func (g *Generator) pick(rng *rand.Rand, w config.Weights, total int) op.Kind {
	n := rng.Intn(total)
	for _, c := range []struct {
		kind   op.Kind
		weight int
	}{
		{op.KindPropose, w.Propose},
		{op.KindVote, w.Vote},
		{op.KindFreeze, w.Freeze},
		{op.KindTransfer, w.Transfer},
		{op.KindCustom, w.Custom},
	} {
		if n < c.weight {
			return c.kind
		}
		n -= c.weight
	}
	return op.KindCustom
}
