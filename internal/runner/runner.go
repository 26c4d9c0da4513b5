// Package runner drives a search to completion and records what it finds.
//
// It is the single place where engine solutions meet the solution log:
// the CLI's solve command and the conformance harness both go through
// Record, so a run is logged the same way no matter who started it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/dusa/internal/engine"
	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/store"
)

// Sequencer hands out solution sequence numbers.
type Sequencer interface {
	Next() int64
}

type counter struct{ n int64 }

func (c *counter) Next() int64 {
	c.n++
	return c.n
}

// Config describes one recorded run.
type Config struct {
	RunID       string
	ProgramHash string
	Source      string // program path as given by the user

	// Limit stops the run after this many solutions. Zero means all.
	Limit int

	// Seq numbers solutions. Defaults to 1, 2, 3...
	Seq Sequencer

	Logger *slog.Logger

	// OnSolution is called for every solution after it is recorded.
	// Returning an error stops the run.
	OnSolution func(seq int64, db *engine.Database) error
}

// Summary reports how a run ended.
type Summary struct {
	RunID      string
	Status     string
	Solutions  int
	Duplicates int // solutions whose hash the log already held
	Stats      engine.Stats
}

// Record pulls solutions from search until it is exhausted, the limit is
// reached, the step quota runs out, or ctx is cancelled. Each solution is
// written to st (when st is non-nil) before OnSolution sees it.
//
// The returned error is nil for exhaustion and for the limit. For the
// quota it is the *engine.StepsExceededError, for cancellation ctx.Err(),
// and for a store or OnSolution error that error (status "failed"). In
// every case Summary.Status says which, and the run record is finished
// regardless.
func Record(ctx context.Context, st *store.Store, search *engine.Search, cfg Config) (Summary, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	seq := cfg.Seq
	if seq == nil {
		seq = &counter{}
	}

	summary := Summary{RunID: cfg.RunID}
	if st != nil {
		if err := st.CreateRun(ctx, store.Run{
			ID:          cfg.RunID,
			ProgramHash: cfg.ProgramHash,
			Source:      cfg.Source,
		}); err != nil {
			return summary, err
		}
	}

	status, runErr := drain(ctx, st, search, cfg, seq, &summary, log)
	summary.Status = status
	summary.Stats = search.Stats()

	if st != nil {
		// CRITICAL: a cancelled ctx must not keep the run stuck in "running".
		finishCtx := context.WithoutCancel(ctx)
		if err := st.FinishRun(finishCtx, cfg.RunID, status,
			int64(summary.Stats.Steps), int64(summary.Solutions)); err != nil {
			return summary, errors.Join(runErr, err)
		}
	}

	log.Info("run finished",
		"run_id", cfg.RunID,
		"status", status,
		"solutions", summary.Solutions,
		"duplicates", summary.Duplicates,
		"steps", summary.Stats.Steps)
	return summary, runErr
}

func drain(ctx context.Context, st *store.Store, search *engine.Search, cfg Config, seq Sequencer, summary *Summary, log *slog.Logger) (string, error) {
	for {
		if cfg.Limit > 0 && summary.Solutions >= cfg.Limit && !search.Done() {
			return store.StatusLimited, nil
		}

		db, err := search.NextContext(ctx)
		switch {
		case errors.Is(err, engine.ErrExhausted):
			return store.StatusExhausted, nil
		case engine.IsStepsExceededError(err):
			return store.StatusQuota, err
		case err != nil:
			return stopStatus(err), err
		}

		n := seq.Next()
		summary.Solutions++
		if st != nil {
			if err := write(ctx, st, cfg.RunID, n, db, summary, log); err != nil {
				return stopStatus(err), err
			}
		}
		if cfg.OnSolution != nil {
			if err := cfg.OnSolution(n, db); err != nil {
				return stopStatus(err), err
			}
		}
	}
}

// stopStatus labels a run that ended on err. Only context errors mean the
// run was cancelled; anything else is a failure.
func stopStatus(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return store.StatusCancelled
	}
	return store.StatusFailed
}

func write(ctx context.Context, st *store.Store, runID string, seq int64, db *engine.Database, summary *Summary, log *slog.Logger) error {
	facts, err := db.Facts()
	if err != nil {
		return fmt.Errorf("solution %d: %w", seq, err)
	}
	hash, err := ir.SolutionHash(facts)
	if err != nil {
		return fmt.Errorf("solution %d: %w", seq, err)
	}
	inserted, err := st.WriteSolution(ctx, store.Solution{
		RunID: runID,
		Hash:  hash,
		Seq:   seq,
		Facts: facts,
	})
	if err != nil {
		return err
	}
	if !inserted {
		summary.Duplicates++
		log.Warn("duplicate solution", "run_id", runID, "seq", seq, "hash", hash)
	}
	return nil
}
