package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/dusa/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun inserts a run with minimal required fields.
func createTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.CreateRun(context.Background(), Run{ID: id, ProgramHash: "test-hash", Source: "test.cue"}); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
}

// fact builds one canonical fact object.
func fact(name string, value ir.Value, args ...ir.Value) ir.Object {
	return ir.Object{"name": ir.String(name), "args": append(ir.Array{}, args...), "value": value}
}

// createTestSolution builds a solution whose hash is derived from its facts.
func createTestSolution(runID string, seq int64, facts ...ir.Value) Solution {
	arr := append(ir.Array{}, facts...)
	return Solution{RunID: runID, Hash: ir.MustSolutionHash(arr), Seq: seq, Facts: arr}
}
