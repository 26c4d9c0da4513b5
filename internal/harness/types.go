package harness

import "github.com/roach88/dusa/internal/engine"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Solutions holds each solution's fact lines in the order the search
	// produced them.
	Solutions [][]string `json:"solutions"`

	// Status is the recorded run status (exhausted, limited, quota).
	Status string `json:"status"`

	// RunID is the id the run was recorded under.
	RunID string `json:"run_id"`

	// Stats are the search counters at the end of the run.
	Stats engine.Stats `json:"stats"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Solutions: [][]string{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddSolution records one solution's fact lines.
func (r *Result) AddSolution(lines []string) {
	r.Solutions = append(r.Solutions, lines)
}
