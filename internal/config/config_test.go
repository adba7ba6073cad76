package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_EmptyYieldsDefaults(t *testing.T) {
	r, err := FromMap(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), r)
}

func TestFromMap_Overrides(t *testing.T) {
	r, err := FromMap(map[string]any{
		"max_ops":           16,
		"period_length":     4,
		"on_unknown_custom": "fail",
		"weights":           map[string]any{"custom": 10},
	})
	require.NoError(t, err)

	assert.Equal(t, 16, r.MaxOps)
	assert.Equal(t, int64(4), r.PeriodLength)
	assert.Equal(t, OnUnknownFail, r.OnUnknownCustom)
	assert.Equal(t, 10, r.Weights.Custom)
	// Untouched fields keep schema defaults.
	assert.Equal(t, 4, r.Weights.Propose)
	assert.Equal(t, int64(1), r.Funding)
}

func TestFromMap_Invalid(t *testing.T) {
	cases := []struct {
		name string
		m    map[string]any
	}{
		{"zero max_ops", map[string]any{"max_ops": 0}},
		{"negative weight", map[string]any{"weights": map[string]any{"vote": -1}}},
		{"unknown policy", map[string]any{"on_unknown_custom": "explode"}},
		{"unknown field", map[string]any{"max_opz": 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromMap(tc.m)
			assert.Error(t, err)
		})
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_ops: 8\nstart_level: 3\n"), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, r.MaxOps)
	assert.Equal(t, int64(3), r.StartLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
