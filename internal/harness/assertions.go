package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dusa/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type      string     // Assertion type for categorization
	Expected  string     // Human-readable expected outcome
	Actual    string     // Human-readable actual outcome
	Solutions [][]string // Every solution, for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nSolutions:\n")
	if len(e.Solutions) == 0 {
		fmt.Fprintf(&buf, "  (none)\n")
	}
	for i, sol := range e.Solutions {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, render(sol))
	}

	return buf.String()
}

// render formats fact lines the way engine.Database.String does.
func render(lines []string) string {
	return "{" + strings.Join(lines, ", ") + "}"
}

// holdsAll reports whether every expected line is one of the solution's
// lines. Solution lines are sorted.
func holdsAll(solution, facts []string) bool {
	for _, f := range facts {
		if _, ok := slices.BinarySearch(solution, f); !ok {
			return false
		}
	}
	return true
}

// assertSolutionCount checks the exact number of solutions.
func assertSolutionCount(solutions [][]string, assertion Assertion) error {
	if len(solutions) != assertion.Count {
		return &AssertionError{
			Type:      AssertSolutionCount,
			Expected:  fmt.Sprintf("%d solutions", assertion.Count),
			Actual:    fmt.Sprintf("%d solutions", len(solutions)),
			Solutions: solutions,
		}
	}
	return nil
}

// assertSomeSolution checks that at least one solution holds every fact.
func assertSomeSolution(solutions [][]string, assertion Assertion) error {
	for _, sol := range solutions {
		if holdsAll(sol, assertion.Facts) {
			return nil
		}
	}
	return &AssertionError{
		Type:      AssertSomeSolution,
		Expected:  fmt.Sprintf("a solution holding %s", render(assertion.Facts)),
		Actual:    "no solution holds them all",
		Solutions: solutions,
	}
}

// assertEverySolution checks that every solution holds every fact.
// Vacuously true when there are no solutions; pair it with solution_count
// to rule that out.
func assertEverySolution(solutions [][]string, assertion Assertion) error {
	for i, sol := range solutions {
		if !holdsAll(sol, assertion.Facts) {
			return &AssertionError{
				Type:      AssertEverySolution,
				Expected:  fmt.Sprintf("every solution holding %s", render(assertion.Facts)),
				Actual:    fmt.Sprintf("solution %d does not: %s", i+1, render(sol)),
				Solutions: solutions,
			}
		}
	}
	return nil
}

// assertNoSolution checks that no solution holds every fact.
func assertNoSolution(solutions [][]string, assertion Assertion) error {
	for i, sol := range solutions {
		if holdsAll(sol, assertion.Facts) {
			return &AssertionError{
				Type:      AssertNoSolution,
				Expected:  fmt.Sprintf("no solution holding %s", render(assertion.Facts)),
				Actual:    fmt.Sprintf("solution %d does: %s", i+1, render(sol)),
				Solutions: solutions,
			}
		}
	}
	return nil
}

// canonicalSet renders each solution and sorts the renderings, so two
// lists of solutions compare equal regardless of search order.
func canonicalSet(solutions [][]string) []string {
	out := make([]string, len(solutions))
	for i, sol := range solutions {
		lines := slices.Clone(sol)
		slices.Sort(lines)
		out[i] = render(lines)
	}
	slices.Sort(out)
	return out
}

// assertSolutionSet checks that the solutions are exactly the expected
// ones, in any order.
func assertSolutionSet(solutions [][]string, assertion Assertion) error {
	want := canonicalSet(assertion.Solutions)
	got := canonicalSet(solutions)
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:      AssertSolutionSet,
		Expected:  strings.Join(want, " "),
		Actual:    strings.Join(got, " "),
		Solutions: solutions,
	}
}

// assertRelationCount checks the number of recorded facts of a relation
// across every solution of the run. It reads the solution log rather
// than the in-memory result, so it also checks what was persisted.
func assertRelationCount(ctx context.Context, st *store.Store, runID string, assertion Assertion) error {
	rows, err := st.ReadFacts(ctx, runID, assertion.Relation)
	if err != nil {
		return &AssertionError{
			Type:     AssertRelationCount,
			Expected: fmt.Sprintf("read facts of %s", assertion.Relation),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(rows) != assertion.Count {
		return &AssertionError{
			Type:     AssertRelationCount,
			Expected: fmt.Sprintf("%d recorded facts of %s", assertion.Count, assertion.Relation),
			Actual:   fmt.Sprintf("%d recorded facts", len(rows)),
		}
	}
	return nil
}

// assertRunStatus checks how the run ended.
func assertRunStatus(result *Result, assertion Assertion) error {
	if result.Status != assertion.Status {
		return &AssertionError{
			Type:      AssertRunStatus,
			Expected:  fmt.Sprintf("status %s", assertion.Status),
			Actual:    fmt.Sprintf("status %s", result.Status),
			Solutions: result.Solutions,
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for relation_count assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertSolutionCount:
			err = assertSolutionCount(result.Solutions, assertion)
		case AssertSomeSolution:
			err = assertSomeSolution(result.Solutions, assertion)
		case AssertEverySolution:
			err = assertEverySolution(result.Solutions, assertion)
		case AssertNoSolution:
			err = assertNoSolution(result.Solutions, assertion)
		case AssertSolutionSet:
			err = assertSolutionSet(result.Solutions, assertion)
		case AssertRelationCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: relation_count requires database context", i)
			} else {
				err = assertRelationCount(actx.Ctx, actx.Store, actx.RunID, assertion)
			}
		case AssertRunStatus:
			err = assertRunStatus(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
