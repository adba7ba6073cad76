package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommandCompletes(t *testing.T) {
	out, err := execute(t, "run", "--seed", "42", "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, float64(64), data["steps"])
}

func TestRunCommandRejectsNonPositiveRuns(t *testing.T) {
	_, err := execute(t, "run", "--runs", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunReplayTraceRoundTrip(t *testing.T) {
	db := filepath.Join(t.TempDir(), "traces.db")

	out, err := execute(t, "run", "--seed", "3", "--runs", "2", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")

	out, err = execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "2 runs replayed")
	assert.NotContains(t, out, "MISMATCH")

	out, err = execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "seed=3")
	assert.Contains(t, out, "seed=4")
}

func TestTraceTimeline(t *testing.T) {
	db := filepath.Join(t.TempDir(), "traces.db")

	out, err := execute(t, "run", "--seed", "5", "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	runID := resp.Data.(map[string]any)["run_id"].(string)

	out, err = execute(t, "trace", "--db", db, "--run", runID)
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "model=")
}

func TestScenarioCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: freeze-agrees
ops:
  - { sender: bob, kind: freeze, amount: 10 }
expect:
  status: completed
`), 0o644))

	out, err := execute(t, "scenario", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  freeze-agrees")
	assert.Contains(t, out, "0 failed")
}

func TestScenarioCommandFailureExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrong.yaml")
	// Expects a divergence that never happens.
	require.NoError(t, os.WriteFile(path, []byte(`
name: wrong-expectation
ops:
  - { sender: bob, kind: freeze, amount: 10 }
expect:
  status: diverged
`), 0o644))

	out, err := execute(t, "scenario", path)
	require.Error(t, err)
	assert.Equal(t, ExitDivergence, GetExitCode(err))
	assert.Contains(t, out, "FAIL  wrong-expectation")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("max_ops: 16\n"), 0o644))
	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("max_ops: -1\n"), 0o644))
	out, err = execute(t, "validate", bad)
	require.Error(t, err)
	assert.Equal(t, ExitDivergence, GetExitCode(err))
	assert.Contains(t, out, "invalid")
}
