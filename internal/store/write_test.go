package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dusa/internal/ir"
)

func TestCreateRun_AssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-b")
	createTestRun(t, s, "run-a")

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID, "ordered by seq, not id")
	assert.Equal(t, int64(1), runs[0].Seq)
	assert.Equal(t, int64(2), runs[1].Seq)
	assert.Equal(t, StatusRunning, runs[0].Status)
}

func TestCreateRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-1")
	require.NoError(t, s.CreateRun(ctx, Run{ID: "run-1", ProgramHash: "other", Source: "other.cue"}))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "test-hash", run.ProgramHash, "first write wins")
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	require.NoError(t, s.FinishRun(ctx, "run-1", StatusExhausted, 42, 3))
	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, run.Status)
	assert.Equal(t, int64(42), run.Steps)
	assert.Equal(t, int64(3), run.Solutions)

	err = s.FinishRun(ctx, "missing", StatusExhausted, 0, 0)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestWriteSolution_IdempotentByHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	sol := createTestSolution("run-1", 1,
		fact("edge", ir.Array{}, ir.Object{"const": ir.String("a")}, ir.Object{"const": ir.String("b")}),
		fact("size", ir.Int(2)),
	)
	inserted, err := s.WriteSolution(ctx, sol)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.WriteSolution(ctx, sol)
	require.NoError(t, err)
	assert.False(t, inserted)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM facts").Scan(&count))
	assert.Equal(t, 2, count, "facts are not duplicated")
}

func TestWriteSolution_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	_, err := s.WriteSolution(context.Background(), createTestSolution("missing", 1, fact("p", ir.Array{})))
	assert.Error(t, err, "foreign key to runs is enforced")
}

func TestWriteSolution_RejectsMalformedFacts(t *testing.T) {
	s := createTestStore(t)
	createTestRun(t, s, "run-1")
	_, err := s.WriteSolution(context.Background(), Solution{
		RunID: "run-1",
		Hash:  "h",
		Seq:   1,
		Facts: ir.Array{ir.String("not an object")},
	})
	assert.ErrorContains(t, err, "not an object")
}
