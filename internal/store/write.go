package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/dusa/internal/ir"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusExhausted = "exhausted" // every branch explored
	StatusLimited   = "limited"   // stopped at the requested solution count
	StatusQuota     = "quota"     // stopped by the step quota
	StatusCancelled = "cancelled" // the context was cancelled
	StatusFailed    = "failed"    // the log or a solution callback returned an error
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("run not found")

// Run is one solve invocation.
type Run struct {
	ID          string
	ProgramHash string
	Source      string
	Status      string
	Steps       int64
	Solutions   int64
	Seq         int64
}

// Solution is one recorded solution. Facts is the canonical fact array
// produced by engine.Database.Facts.
type Solution struct {
	RunID string
	Hash  string
	Seq   int64
	Facts ir.Array
}

// CreateRun inserts a run record in the running state.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// A zero Seq is replaced by the next value of the store's run counter.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	status := run.Status
	if status == "" {
		status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, program_hash, source, status, steps, solutions, seq)
		VALUES (?, ?, ?, ?, ?, ?,
			CASE WHEN ? > 0 THEN ? ELSE (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs) END)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.ProgramHash,
		run.Source,
		status,
		run.Steps,
		run.Solutions,
		run.Seq, run.Seq,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the final status and counters of a run.
func (s *Store) FinishRun(ctx context.Context, id, status string, steps, solutions int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, steps = ?, solutions = ?
		WHERE id = ?
	`, status, steps, solutions, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// WriteSolution records a solution and its facts.
// Returns whether a new record was inserted.
//
// Uses ON CONFLICT(run_id, hash) DO NOTHING: a solution already recorded
// for the run is left untouched and inserted=false.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteSolution(ctx context.Context, sol Solution) (inserted bool, err error) {
	factsJSON, err := marshalValue(sol.Facts)
	if err != nil {
		return false, fmt.Errorf("write solution: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write solution: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO solutions (run_id, hash, seq, facts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, hash) DO NOTHING
	`, sol.RunID, sol.Hash, sol.Seq, factsJSON)
	if err != nil {
		return false, fmt.Errorf("write solution: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write solution: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	for i, f := range sol.Facts {
		obj, ok := f.(ir.Object)
		if !ok {
			return false, fmt.Errorf("write solution: fact %d is %T, not an object", i, f)
		}
		name, _ := obj["name"].(ir.String)
		args, ok := obj["args"].(ir.Array)
		if !ok {
			args = ir.Array{}
		}
		argsJSON, err := marshalValue(args)
		if err != nil {
			return false, fmt.Errorf("write solution: fact %d: %w", i, err)
		}
		valueJSON, err := marshalValue(obj["value"])
		if err != nil {
			return false, fmt.Errorf("write solution: fact %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO facts (run_id, solution_hash, relation, args, value)
			VALUES (?, ?, ?, ?, ?)
		`, sol.RunID, sol.Hash, string(name), argsJSON, valueJSON); err != nil {
			return false, fmt.Errorf("write solution: fact %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write solution: commit: %w", err)
	}
	return true, nil
}
