package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/store"
	"github.com/roach88/dusa/internal/term"
	"github.com/roach88/dusa/internal/testutil"
)

// recordedRuns solves two programs into a fresh database and returns its path.
func recordedRuns(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	_, err := solve(t, ctx, &SolveOptions{
		Database: dbPath,
		RunIDs:   testutil.NewFixedRunIDGenerator("pick-run"),
	}, program("pick.cue"))
	require.NoError(t, err)

	_, err = solve(t, ctx, &SolveOptions{
		Database: dbPath,
		Facts:    filepath.Join("testdata", "facts", "triangle.json"),
		Limit:    2,
		RunIDs:   testutil.NewFixedRunIDGenerator("coloring-run"),
	}, program("coloring.cue"))
	require.NoError(t, err)
	return dbPath
}

func TestShowListsRuns(t *testing.T) {
	dbPath := recordedRuns(t)
	out, err := execute(t, NewShowCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[1] pick-run exhausted 3 solution(s)")
	assert.Contains(t, out, "[2] coloring-run limited   2 solution(s)")
}

func TestShowListsRunsJSON(t *testing.T) {
	dbPath := recordedRuns(t)
	out, err := execute(t, NewShowCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "pick-run", resp.Data[0].ID)
	assert.Equal(t, store.StatusLimited, resp.Data[1].Status)
}

func TestShowEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	out, err := execute(t, NewShowCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestShowRun(t *testing.T) {
	dbPath := recordedRuns(t)
	out, err := execute(t, NewShowCommand(&RootOptions{Format: "text"}), "--db", dbPath, "pick-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Run: pick-run")
	assert.Contains(t, out, "Status: exhausted")
	assert.Contains(t, out, "{pick is a}")
	assert.Contains(t, out, "{pick is b}")
	assert.Contains(t, out, "{pick is c}")
}

func TestShowRunRelationJSON(t *testing.T) {
	dbPath := recordedRuns(t)
	out, err := execute(t, NewShowCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "coloring-run", "--relation", "color")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		RunID  string     `json:"run_id"`
		Data   ShowResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "coloring-run", resp.RunID)
	assert.Equal(t, "color", resp.Data.Relation)
	require.Len(t, resp.Data.Solutions, 2)
	for _, sol := range resp.Data.Solutions {
		require.Len(t, sol.Facts, 3)
		assert.Equal(t, "color a is ", sol.Facts[0][:len("color a is ")])
	}
	assert.Equal(t, int64(1), resp.Data.Solutions[0].Seq)
	assert.Equal(t, int64(2), resp.Data.Solutions[1].Seq)
}

func TestShowRunFilters(t *testing.T) {
	dbPath := recordedRuns(t)

	t.Run("argument", func(t *testing.T) {
		out, err := execute(t, NewShowCommand(&RootOptions{Format: "json"}),
			"--db", dbPath, "coloring-run", "--relation", "color", "--arg", "0=a")
		require.NoError(t, err)

		var resp struct {
			Data ShowResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Data.Solutions, 2)
		for _, sol := range resp.Data.Solutions {
			require.Len(t, sol.Facts, 1)
			assert.Contains(t, sol.Facts[0], "color a is ")
		}
	})

	t.Run("value", func(t *testing.T) {
		out, err := execute(t, NewShowCommand(&RootOptions{Format: "text"}),
			"--db", dbPath, "pick-run", "--relation", "pick", "--value", "b")
		require.NoError(t, err)
		assert.Contains(t, out, "{pick is b}")
		assert.NotContains(t, out, "pick is a")
		assert.NotContains(t, out, "pick is c")
	})

	t.Run("no match", func(t *testing.T) {
		out, err := execute(t, NewShowCommand(&RootOptions{Format: "text"}),
			"--db", dbPath, "pick-run", "--relation", "pick", "--value", "z")
		require.NoError(t, err)
		assert.Contains(t, out, "(no solutions)")
	})

	t.Run("malformed argument", func(t *testing.T) {
		_, err := execute(t, NewShowCommand(&RootOptions{Format: "text"}),
			"--db", dbPath, "coloring-run", "--relation", "color", "--arg", "x=a")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), ErrCodeBadFilter)
	})

	t.Run("needs relation", func(t *testing.T) {
		_, err := execute(t, NewShowCommand(&RootOptions{Format: "text"}),
			"--db", dbPath, "coloring-run", "--value", "red")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "require --relation")
	})
}

func TestParseLiteral(t *testing.T) {
	assert.Equal(t, ir.Int(3), parseLiteral("3"))
	assert.Equal(t, ir.Bool(true), parseLiteral("true"))
	assert.Equal(t, ir.Object{"string": ir.String("x")}, parseLiteral(`{"string":"x"}`))
	assert.Equal(t, ir.Object{"const": ir.String("red")}, parseLiteral("red"))
	assert.Equal(t, ir.Object{"const": ir.String("red")}, parseLiteral(`"red"`))
}

func TestShowRunNotFound(t *testing.T) {
	dbPath := recordedRuns(t)
	out, err := execute(t, NewShowCommand(&RootOptions{Format: "text"}), "--db", dbPath, "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeRunNotFound)
	assert.Contains(t, out, "no run nope")
}

func TestShowRequiresDB(t *testing.T) {
	_, err := execute(t, NewShowCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestFormatFact(t *testing.T) {
	ts := term.NewStore()

	line, err := formatFact(ts, "pair",
		ir.Array{ir.Object{"const": ir.String("p"), "args": ir.Array{ir.Int(1), ir.Object{"string": ir.String("x")}}}},
		ir.Bool(true))
	require.NoError(t, err)
	assert.Equal(t, `pair (p 1 "x") is #tt`, line)

	line, err = formatFact(ts, "seen", ir.Array{ir.Object{"const": ir.String("a")}}, ir.Array{})
	require.NoError(t, err)
	assert.Equal(t, "seen a", line)

	_, err = formatFact(ts, "bad", ir.Array{ir.Array{ir.Int(1)}}, nil)
	assert.Error(t, err)
}
