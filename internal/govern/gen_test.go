package govern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diverge/internal/config"
	"github.com/roach88/diverge/internal/op"
)

func TestGenerateDeterministic(t *testing.T) {
	cfg := config.Default()
	g := NewGenerator()

	env1, seq1, err := g.Generate(7, cfg)
	require.NoError(t, err)
	env2, seq2, err := g.Generate(7, cfg)
	require.NoError(t, err)

	assert.Equal(t, env1, env2)
	assert.Equal(t, seq1, seq2)
}

func TestGenerateLengthAndEnvironment(t *testing.T) {
	cfg := config.Default()
	cfg.MaxOps = 17

	env, seq, err := NewGenerator().Generate(1, cfg)
	require.NoError(t, err)
	assert.Len(t, seq.Ops, 17)
	assert.Equal(t, env, seq.Env)
	assert.ElementsMatch(t, []op.Handle{"token", "consumer", "guardian"}, env.Handles())
}

func TestGenerateDifferentSeedsDiffer(t *testing.T) {
	cfg := config.Default()
	g := NewGenerator()

	_, seq1, err := g.Generate(1, cfg)
	require.NoError(t, err)
	_, seq2, err := g.Generate(2, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, seq1.Ops, seq2.Ops)
}

func TestGenerateRespectsZeroedWeights(t *testing.T) {
	cfg := config.Default()
	cfg.Weights = config.Weights{Freeze: 1}

	_, seq, err := NewGenerator().Generate(3, cfg)
	require.NoError(t, err)
	for _, o := range seq.Ops {
		assert.Equal(t, op.KindFreeze, o.Payload.Kind())
	}
}

func TestGenerateAllWeightsZero(t *testing.T) {
	cfg := config.Default()
	cfg.Weights = config.Weights{}

	_, _, err := NewGenerator().Generate(3, cfg)
	require.Error(t, err)
}
