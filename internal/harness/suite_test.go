package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverScenarios(t *testing.T) {
	paths, err := DiscoverScenarios("testdata/scenarios")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "coloring.yaml"),
		filepath.Join("testdata", "scenarios", "demand.yaml"),
		filepath.Join("testdata", "scenarios", "mutual_exclusion.yaml"),
		filepath.Join("testdata", "scenarios", "quota.yaml"),
	}, paths)

	single, err := DiscoverScenarios("testdata/scenarios/quota.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"testdata/scenarios/quota.yaml"}, single)

	_, err = DiscoverScenarios("testdata/nope")
	assert.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	paths, err := DiscoverScenarios("testdata/scenarios")
	require.NoError(t, err)

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("name: broken\n"), 0644))

	result := RunSuite(context.Background(), append(paths, broken))
	assert.Equal(t, 5, result.TotalScenarios)
	assert.Equal(t, 4, result.Passed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken, result.Failures[0].ScenarioPath)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
}

func TestProgramNotFoundError(t *testing.T) {
	err := &ProgramNotFoundError{Scenario: "s", Path: "p.cue"}
	assert.Equal(t, `scenario "s" references program "p.cue" which does not exist`, err.Error())
}
