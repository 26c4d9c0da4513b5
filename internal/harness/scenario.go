package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a program, optional
// external facts, and assertions over the solutions it produces.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path to a .cue file or CUE package directory.
	// Relative paths resolve against the scenario file's directory.
	Program string `yaml:"program"`

	// Facts are asserted before the search starts. Each entry is
	// {name, args, value}; bare strings in args and value are atoms.
	Facts []FactSpec `yaml:"facts,omitempty"`

	// Limit stops the search after this many solutions. Zero means all.
	Limit int `yaml:"limit,omitempty"`

	// MaxSteps bounds the steps taken per solution. Zero keeps the
	// engine default.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Shuffle seeds agenda shuffling. Zero keeps the FIFO agenda.
	Shuffle uint64 `yaml:"shuffle,omitempty"`

	// RunID is the fixed run id recorded in the solution log.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the solutions and the recorded run.
	Assertions []Assertion `yaml:"assertions"`
}

// FactSpec is one external fact as written in a scenario.
type FactSpec struct {
	Name  string `yaml:"name"`
	Args  []any  `yaml:"args,omitempty"`
	Value any    `yaml:"value,omitempty"`
}

// Assertion validates the solutions of a scenario run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "solution_count": exactly Count solutions
	// - "some_solution": at least one solution holds every line in Facts
	// - "every_solution": every solution holds every line in Facts
	// - "no_solution": no solution holds every line in Facts
	// - "solution_set": the solutions are exactly Solutions, in any order
	// - "relation_count": Count recorded facts of Relation across the run
	// - "run_status": the run finished with Status
	Type string `yaml:"type"`

	// Facts are rendered fact lines such as "edge a b" or "color a is red".
	Facts []string `yaml:"facts,omitempty"`

	// Solutions lists the expected solutions as fact lines (solution_set).
	Solutions [][]string `yaml:"solutions,omitempty"`

	// Relation names the relation counted by relation_count.
	Relation string `yaml:"relation,omitempty"`

	// Count is the expected number (solution_count, relation_count).
	Count int `yaml:"count"`

	// Status is the expected run status (run_status).
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertSolutionCount = "solution_count"
	AssertSomeSolution  = "some_solution"
	AssertEverySolution = "every_solution"
	AssertNoSolution    = "no_solution"
	AssertSolutionSet   = "solution_set"
	AssertRelationCount = "relation_count"
	AssertRunStatus     = "run_status"
)

// LoadScenario reads and parses a scenario YAML file, resolving the
// program path relative to the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the program path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve BEFORE validation so the existence check sees the real path
	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) && basePath != "" {
		scenario.Program = filepath.Join(basePath, scenario.Program)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Program == "" {
		return fmt.Errorf("program is required")
	}

	if _, err := os.Stat(s.Program); os.IsNotExist(err) {
		return &ProgramNotFoundError{Scenario: s.Name, Path: s.Program}
	}

	if s.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	for i, f := range s.Facts {
		if f.Name == "" {
			return fmt.Errorf("facts[%d]: name is required", i)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSolutionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for solution_count", index)
		}
	case AssertSomeSolution, AssertEverySolution, AssertNoSolution:
		if len(a.Facts) == 0 {
			return fmt.Errorf("assertions[%d]: facts list is required for %s", index, a.Type)
		}
	case AssertSolutionSet:
		// An empty list asserts there are no solutions.
	case AssertRelationCount:
		if a.Relation == "" {
			return fmt.Errorf("assertions[%d]: relation is required for relation_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for relation_count", index)
		}
	case AssertRunStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for run_status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
