package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("testdata", "scenarios")

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.Empty(t, resp.Data.Scenarios)
}

func TestTestCommandPasses(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ pick\n")
	assert.Contains(t, out, "✓ pick_one\n")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), scenariosDir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "pick", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "exhausted", resp.Data.Scenarios[0].Status)
	assert.Equal(t, 3, resp.Data.Scenarios[0].Solutions)
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--filter", "pick_*")
	require.NoError(t, err)
	assert.NotContains(t, out, "✓ pick\n")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommandFailingScenario(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), filepath.Join("testdata", "failing"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "Expected: 4 solutions")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

// copyScenario copies the pick scenario and its program into a temp tree.
func copyScenario(t *testing.T) (scenario string) {
	t.Helper()
	root := t.TempDir()
	src, err := os.ReadFile(program("pick.cue"))
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, "programs", "pick.cue"), string(src))

	body, err := os.ReadFile(filepath.Join(scenariosDir, "pick.yaml"))
	require.NoError(t, err)
	scenario = filepath.Join(root, "scenarios", "pick.yaml")
	writeFile(t, scenario, string(body))
	return scenario
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	scenario := copyScenario(t)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenario, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ pick (golden updated)")

	got, err := os.ReadFile(goldenFilePath(scenario))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(scenariosDir, "golden", "pick.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	scenario := copyScenario(t)
	writeFile(t, goldenFilePath(scenario), `{"scenario_name":"pick","solutions":[],"status":"exhausted"}`)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenario)
	require.Error(t, err)
	assert.Contains(t, out, "✗ pick")
	assert.Contains(t, out, "do not match golden file")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("a", "b", "golden", "demo.golden"),
		goldenFilePath(filepath.Join("a", "b", "demo.yaml")))
}
