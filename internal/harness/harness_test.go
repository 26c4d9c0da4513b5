package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dusa/internal/store"
	"github.com/roach88/dusa/internal/testutil"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

func TestRun_TestdataScenariosPass(t *testing.T) {
	for _, name := range []string{"coloring", "mutual_exclusion", "demand", "quota"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_RecordsRunDetails(t *testing.T) {
	result, err := Run(loadTestScenario(t, "coloring"))
	require.NoError(t, err)
	assert.Equal(t, "coloring-run", result.RunID)
	assert.Equal(t, store.StatusExhausted, result.Status)
	assert.Equal(t, 6, result.Stats.Solutions)
	assert.Len(t, result.Solutions, 6)
}

func TestRun_DefaultRunID(t *testing.T) {
	result, err := Run(loadTestScenario(t, "mutual_exclusion"))
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultRunID, result.RunID)
}

func TestRun_FailingAssertionsAreReported(t *testing.T) {
	s := loadTestScenario(t, "coloring")
	s.Assertions = []Assertion{
		{Type: AssertSolutionCount, Count: 5},
		{Type: AssertRelationCount, Relation: "vertex", Count: 18},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1, "six solutions with three vertices each")
	assert.Contains(t, result.Errors[0], "6 solutions")
}

func TestRun_Limit(t *testing.T) {
	s := loadTestScenario(t, "coloring")
	s.Limit = 2
	s.Assertions = []Assertion{
		{Type: AssertSolutionCount, Count: 2},
		{Type: AssertRunStatus, Status: store.StatusLimited},
		{Type: AssertRelationCount, Relation: "color", Count: 6},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ShuffleFindsTheSameSolutions(t *testing.T) {
	plain, err := Run(loadTestScenario(t, "coloring"))
	require.NoError(t, err)

	s := loadTestScenario(t, "coloring")
	s.Shuffle = 42
	shuffled, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, canonicalSet(plain.Solutions), canonicalSet(shuffled.Solutions))
}

func TestRun_BadFactIsAnError(t *testing.T) {
	s := loadTestScenario(t, "coloring")
	s.Facts = []FactSpec{{Name: "edge", Args: []any{1.5}}}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to import facts")
}

func TestRun_CompileErrorIsAnError(t *testing.T) {
	path := writeScenario(t, `rules: [{conclusion: {name: "p", args: ["X"]}}]`, `
name: unbound
description: "conclusion variable never bound"
program: prog.cue
assertions:
  - type: solution_count
    count: 0
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile")
}

func TestRunContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunContext(ctx, loadTestScenario(t, "coloring"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScenarioFacts_Atoms(t *testing.T) {
	s := loadTestScenario(t, "demand")
	s.Facts = []FactSpec{
		{Name: "likes", Args: []any{"b"}},
		{Name: "tagged", Args: []any{map[string]any{"const": "t", "args": []any{"b", 2}}}, Value: map[string]any{"string": "hi"}},
	}
	s.Assertions = []Assertion{{Type: AssertEverySolution, Facts: []string{`tagged (t b 2) is "hi"`}}}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
