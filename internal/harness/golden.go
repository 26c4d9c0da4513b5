package harness

import (
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dusa/internal/ir"
)

// SolutionSnapshot captures the outcome of a scenario execution.
// It serializes to canonical JSON for deterministic comparison.
type SolutionSnapshot struct {
	ScenarioName string     `json:"scenario_name"`
	Status       string     `json:"status"`
	Solutions    [][]string `json:"solutions"`
}

// NewSolutionSnapshot builds a snapshot from a result. Solutions are
// sorted so the snapshot does not depend on search order.
func NewSolutionSnapshot(name string, result *Result) SolutionSnapshot {
	sols := slices.Clone(result.Solutions)
	slices.SortFunc(sols, func(a, b []string) int {
		return strings.Compare(render(a), render(b))
	})
	return SolutionSnapshot{
		ScenarioName: name,
		Status:       result.Status,
		Solutions:    sols,
	}
}

// toCanonical converts the snapshot for ir.MarshalCanonical, which only
// handles interchange values and plain primitives.
func (s SolutionSnapshot) toCanonical() ir.Object {
	sols := make(ir.Array, len(s.Solutions))
	for i, sol := range s.Solutions {
		lines := make(ir.Array, len(sol))
		for j, line := range sol {
			lines[j] = ir.String(line)
		}
		sols[i] = lines
	}
	return ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"status":        ir.String(s.Status),
		"solutions":     sols,
	}
}

// MarshalCanonical serializes the snapshot as canonical JSON.
func (s SolutionSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonical())
}

// RunWithGolden executes a scenario and compares its solutions against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSolutionSnapshot(scenarioName, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
