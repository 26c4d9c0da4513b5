package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/queryir"
	"github.com/roach88/dusa/internal/querysql"
)

// FactRow is one fact of a recorded solution.
type FactRow struct {
	SolutionHash string
	Seq          int64 // seq of the owning solution
	Relation     string
	Args         ir.Array
	Value        ir.Value
}

// ReadRun returns the run with the given id.
// Returns an error wrapping ErrRunNotFound if there is none.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, program_hash, source, status, steps, solutions, seq
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run, oldest first.
// Ordering: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, program_hash, source, status, steps, solutions, seq
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadSolutions returns the solutions recorded for a run in the order
// they were yielded.
// Ordering: ORDER BY seq ASC, hash COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if no solutions exist for the run.
func (s *Store) ReadSolutions(ctx context.Context, runID string) ([]Solution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, hash, seq, facts
		FROM solutions
		WHERE run_id = ?
		ORDER BY seq ASC, hash COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query solutions: %w", err)
	}
	defer rows.Close()

	solutions := []Solution{}
	for rows.Next() {
		var sol Solution
		var factsJSON string
		if err := rows.Scan(&sol.RunID, &sol.Hash, &sol.Seq, &factsJSON); err != nil {
			return nil, fmt.Errorf("scan solution: %w", err)
		}
		sol.Facts, err = unmarshalArray(factsJSON)
		if err != nil {
			return nil, fmt.Errorf("solution %s: %w", sol.Hash, err)
		}
		solutions = append(solutions, sol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate solutions: %w", err)
	}
	return solutions, nil
}

// ReadFacts returns the facts of relation across every solution of a run.
// Ordering: ORDER BY solution seq ASC, args COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadFacts(ctx context.Context, runID, relation string) ([]FactRow, error) {
	return s.QueryFacts(ctx, queryir.Select{Run: runID, Relation: relation})
}

// QueryFacts runs a fact query compiled by querysql. Ordering is the
// same as ReadFacts.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryFacts(ctx context.Context, q queryir.Query) ([]FactRow, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile fact query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	facts := []FactRow{}
	for rows.Next() {
		var f FactRow
		var argsJSON, valueJSON string
		if err := rows.Scan(&f.SolutionHash, &f.Seq, &f.Relation, &argsJSON, &valueJSON); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		if f.Args, err = unmarshalArray(argsJSON); err != nil {
			return nil, err
		}
		if f.Value, err = unmarshalValue(valueJSON); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.ProgramHash, &run.Source, &run.Status, &run.Steps, &run.Solutions, &run.Seq)
	return run, err
}
