package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dusa/internal/compiler"
	"github.com/roach88/dusa/internal/engine"
	"github.com/roach88/dusa/internal/runner"
	"github.com/roach88/dusa/internal/term"
)

var _ runner.Sequencer = (*DeterministicClock)(nil)

const threeWaySrc = `rules: [{conclusion: {name: "pick", choices: ["a", "b", "c"]}}]`

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newThreeWaySearch(t *testing.T) *engine.Search {
	t.Helper()
	p, err := compiler.CompileBytes("three.cue", []byte(threeWaySrc))
	require.NoError(t, err)
	ts := term.NewStore()
	prog, issues := compiler.Compile(p, ts)
	require.Empty(t, issues)
	search, err := engine.NewSearch(prog, ts, engine.WithLogger(quiet))
	require.NoError(t, err)
	return search
}

// record runs search to exhaustion without a log and returns the seq
// each solution was given.
func record(search *engine.Search, clock *DeterministicClock) ([]int64, error) {
	var seqs []int64
	_, err := runner.Record(context.Background(), nil, search, runner.Config{
		RunID:  DefaultRunID,
		Seq:    clock,
		Logger: quiet,
		OnSolution: func(seq int64, _ *engine.Database) error {
			seqs = append(seqs, seq)
			return nil
		},
	})
	return seqs, err
}

func recordSeqs(t *testing.T, clock *DeterministicClock) []int64 {
	t.Helper()
	seqs, err := record(newThreeWaySearch(t), clock)
	require.NoError(t, err)
	return seqs
}

func TestDeterministicClock_StartsAtZero(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())
}

func TestDeterministicClock_NumbersRecordedSolutions(t *testing.T) {
	clock := NewDeterministicClock()

	assert.Equal(t, []int64{1, 2, 3}, recordSeqs(t, clock))
	assert.Equal(t, int64(3), clock.Current())

	// A second run on the same clock keeps counting.
	assert.Equal(t, []int64{4, 5, 6}, recordSeqs(t, clock))
}

func TestDeterministicClock_ResetReplaysNumbering(t *testing.T) {
	clock := NewDeterministicClock()
	first := recordSeqs(t, clock)
	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, first, recordSeqs(t, clock))
}

func TestDeterministicClock_SharedByConcurrentRuns(t *testing.T) {
	clock := NewDeterministicClock()
	const runs = 8

	searches := make([]*engine.Search, runs)
	for i := range searches {
		searches[i] = newThreeWaySearch(t)
	}

	var wg sync.WaitGroup
	results := make([][]int64, runs)
	errs := make([]error, runs)
	wg.Add(runs)
	for i := 0; i < runs; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = record(searches[i], clock)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// Every solution of every run got its own seq, and none were skipped.
	seen := make(map[int64]bool)
	for _, seqs := range results {
		require.Len(t, seqs, 3)
		for _, seq := range seqs {
			require.False(t, seen[seq], "seq %d handed out twice", seq)
			seen[seq] = true
		}
	}
	for seq := int64(1); seq <= runs*3; seq++ {
		assert.True(t, seen[seq], "seq %d never handed out", seq)
	}
}
