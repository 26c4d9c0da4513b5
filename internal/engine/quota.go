package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the default maximum number of steps per Next call.
// This keeps runaway programs (unbounded term construction) from spinning
// forever; zero disables the limit.
const DefaultMaxSteps = 1_000_000

// QuotaEnforcer counts search steps and enforces a maximum.
//
// Search resets it at the start of every Next call, so the quota bounds
// the work spent looking for one solution, not the whole run.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
// A limit of zero or less never trips.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
func (q *QuotaEnforcer) Check(phase string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{
			Phase: phase,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a search exceeds its step quota.
//
// The search itself is left intact: calling Next again grants a fresh
// quota and resumes where the previous call stopped.
type StepsExceededError struct {
	Phase string // what the search was doing, e.g. "solution 3"
	Steps int    // number of steps taken
	Limit int    // maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("%s exceeded max steps quota: %d steps > %d limit",
		e.Phase, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
