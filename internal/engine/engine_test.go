package engine

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dusa/internal/compiler"
	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/term"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func compileSrc(t *testing.T, src string) (*ir.Program, *term.Store) {
	t.Helper()
	p, err := compiler.CompileBytes("test.cue", []byte(src))
	require.NoError(t, err)
	store := term.NewStore()
	prog, issues := compiler.Compile(p, store)
	require.Empty(t, issues)
	return prog, store
}

func newSearch(t *testing.T, src string, opts ...Option) *Search {
	t.Helper()
	prog, store := compileSrc(t, src)
	s, err := NewSearch(prog, store, append([]Option{quiet()}, opts...)...)
	require.NoError(t, err)
	return s
}

// solveAll renders every solution and sorts them.
func solveAll(t *testing.T, src string, opts ...Option) []string {
	t.Helper()
	s := newSearch(t, src, opts...)
	var out []string
	for db := range s.Solutions() {
		out = append(out, db.String())
	}
	require.NoError(t, s.Err())
	require.True(t, s.Done())
	slices.Sort(out)
	return out
}

const (
	exhaustiveSrc = `rules: [{conclusion: {name: "a", choices: [true, false]}}]`

	openSrc = `rules: [{conclusion: {name: "a", value: false, open: true}}]`

	mutexSrc = `
rules: [
	{conclusion: {name: "p", value: false, open: true}},
	{conclusion: {name: "q", value: false, open: true}},
	{premises: [{name: "q", value: false}], conclusion: {name: "p", value: true}},
	{premises: [{name: "p", value: false}], conclusion: {name: "q", value: true}},
]
`

	demandForbidSrc = `
rules: [
	{conclusion: {name: "p", args: ["a"], choices: [true, false]}},
	{conclusion: {name: "p", args: ["b"], choices: [true, false]}},
]
demands: [[{name: "p", args: ["a"], value: true}]]
forbids: [[{name: "p", args: ["b"], value: false}]]
`

	clashSrc = `
rules: [
	{conclusion: {name: "p", value: "a"}},
	{conclusion: {name: "p", value: "b"}},
]
`

	concatSrc = `
builtins: {concat: "STRING_CONCAT"}
rules: [
	{conclusion: {name: "word", value: {string: "abc"}}},
	{
		premises: [{name: "word", value: "W"}, {name: "concat", args: ["X", "Y"], value: "W"}]
		conclusion: {name: "split", args: ["X", "Y"]}
	},
]
`

	coloringSrc = `
rules: [
	{conclusion: {name: "edge", args: ["a", "b"]}},
	{conclusion: {name: "edge", args: ["b", "c"]}},
	{conclusion: {name: "edge", args: ["a", "c"]}},
	{premises: [{name: "edge", args: ["X", "_"]}], conclusion: {name: "vertex", args: ["X"]}},
	{premises: [{name: "edge", args: ["_", "Y"]}], conclusion: {name: "vertex", args: ["Y"]}},
	{premises: [{name: "vertex", args: ["X"]}], conclusion: {name: "color", args: ["X"], choices: ["red", "green", "blue"]}},
]
forbids: [[
	{name: "edge", args: ["X", "Y"]},
	{name: "color", args: ["X"], value: "C"},
	{name: "color", args: ["Y"], value: "C"},
]]
`
)

func TestSearch_ExhaustiveChoice(t *testing.T) {
	assert.Equal(t, []string{"{a is #ff}", "{a is #tt}"}, solveAll(t, exhaustiveSrc))
}

func TestSearch_NonExhaustiveChoice(t *testing.T) {
	assert.Equal(t, []string{"{a is #ff}", "{}"}, solveAll(t, openSrc))
}

func TestSearch_MutualExclusion(t *testing.T) {
	// This program is often quoted as having exactly two solutions, the
	// two exclusive ones. A noneOf child lets an attribute stay unbound,
	// though, the same way `a is? ff` yields {} in the test above. Ruling
	// out ff for both p and q leaves nothing to derive, so the empty
	// database is a third solution. The naive evaluator agrees.
	assert.Equal(t, []string{
		"{p is #ff, q is #tt}",
		"{p is #tt, q is #ff}",
		"{}",
	}, solveAll(t, mutexSrc))
}

func TestSearch_DemandAndForbid(t *testing.T) {
	assert.Equal(t, []string{"{p a is #tt, p b is #tt}"}, solveAll(t, demandForbidSrc))
}

func TestSearch_ValueConflictPrunes(t *testing.T) {
	s := newSearch(t, clashSrc)
	db, err := s.Next()
	assert.Nil(t, db)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, s.Stats().Conflicts)
	assert.Zero(t, s.Stats().Solutions)
}

func TestSearch_ConcatEnumeratesEverySplit(t *testing.T) {
	s := newSearch(t, concatSrc)
	db, err := s.Next()
	require.NoError(t, err)
	store := db.Store()

	var splits [][2]string
	for args := range db.Lookup("split") {
		require.Len(t, args, 2)
		splits = append(splits, [2]string{store.Format(args[0]), store.Format(args[1])})
	}
	slices.SortFunc(splits, func(a, b [2]string) int {
		return len(a[0]) - len(b[0])
	})
	assert.Equal(t, [][2]string{
		{`""`, `"abc"`},
		{`"a"`, `"bc"`},
		{`"ab"`, `"c"`},
		{`"abc"`, `""`},
	}, splits)

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestSearch_GraphColoring(t *testing.T) {
	solutions := solveAll(t, coloringSrc)
	assert.Len(t, solutions, 6, "a triangle has 3! proper colorings")
	for _, sol := range solutions {
		assert.Contains(t, sol, "vertex c")
	}
}

func TestSearch_ExternalFacts(t *testing.T) {
	prog, store := compileSrc(t, `
rules: [{premises: [{name: "input", args: ["X"]}], conclusion: {name: "seen", args: ["X"]}}]
`)
	s, err := NewSearch(prog, store, quiet(), WithFacts(
		Fact{Name: "input", Args: []term.Data{store.Int(1)}, Value: store.Trivial()},
		Fact{Name: "input", Args: []term.Data{store.Int(2)}, Value: store.Trivial()},
	))
	require.NoError(t, err)

	db, err := s.Next()
	require.NoError(t, err)
	_, ok := db.Get("seen", store.Int(2))
	assert.True(t, ok)
	assert.True(t, db.Has("input"))
	assert.False(t, db.Has("missing"))
	assert.Equal(t, []string{"input", "seen"}, db.Relations())
}

func TestSearch_ConflictingExternalFacts(t *testing.T) {
	prog, store := compileSrc(t, exhaustiveSrc)
	s, err := NewSearch(prog, store, quiet(), WithFacts(
		Fact{Name: "x", Value: store.Int(1)},
		Fact{Name: "x", Value: store.Int(2)},
	))
	require.NoError(t, err)
	assert.True(t, s.Done())
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestSearch_StepIsSingleTransition(t *testing.T) {
	s := newSearch(t, exhaustiveSrc)
	var yielded int
	for i := 0; i < 1000 && !s.Done(); i++ {
		before := s.Stats().Steps
		if _, ok := s.Step(); ok {
			yielded++
		}
		assert.Equal(t, before+1, s.Stats().Steps)
	}
	assert.True(t, s.Done())
	assert.Equal(t, 2, yielded)
	assert.Equal(t, 1, s.Stats().Branches)
	assert.Zero(t, s.Stats().Live, "every node is released once the tree is exhausted")

	_, ok := s.Step()
	assert.False(t, ok, "a finished search stays finished")
}

func TestSearch_SolutionsStopEarly(t *testing.T) {
	s := newSearch(t, coloringSrc)
	var n int
	for range s.Solutions() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
	assert.False(t, s.Done())

	// The search resumes where the loop stopped.
	for range s.Solutions() {
		n++
	}
	assert.Equal(t, 6, n)
}

func TestSearch_ConfluentUnderShuffle(t *testing.T) {
	for _, src := range []string{mutexSrc, demandForbidSrc, coloringSrc, concatSrc} {
		want := solveAll(t, src)
		for seed := uint64(1); seed <= 5; seed++ {
			assert.Equal(t, want, solveAll(t, src, WithShuffle(seed)), "seed %d", seed)
		}
	}
}

func TestSearch_DeterministicOrder(t *testing.T) {
	order := func() []string {
		s := newSearch(t, coloringSrc)
		var out []string
		for db := range s.Solutions() {
			out = append(out, db.String())
		}
		return out
	}
	assert.Equal(t, order(), order())
}

func TestDatabase_HashIgnoresInterningOrder(t *testing.T) {
	hash := func(warm bool) string {
		p, err := compiler.CompileBytes("test.cue", []byte(demandForbidSrc))
		require.NoError(t, err)
		store := term.NewStore()
		if warm {
			store.Const("b")
			store.Bool(false)
		}
		prog, issues := compiler.Compile(p, store)
		require.Empty(t, issues)
		s, err := NewSearch(prog, store, quiet())
		require.NoError(t, err)
		db, err := s.Next()
		require.NoError(t, err)
		h, err := db.Hash()
		require.NoError(t, err)
		return h
	}
	assert.Equal(t, hash(false), hash(true))
}

func TestNewSearch_RejectsInvalidProgram(t *testing.T) {
	prog := ir.NewProgram()
	prog.Seeds = []string{"$missing"}
	_, err := NewSearch(prog, term.NewStore(), quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid program")
}

func TestDatabase_FactsFeedAnotherSearch(t *testing.T) {
	s := newSearch(t, `
rules: [
	{conclusion: {name: "pair", args: [{const: "p", args: [1, {string: "x"}]}], value: true}},
	{conclusion: {name: "unit", args: ["a"]}},
]
`)
	db, err := s.Next()
	require.NoError(t, err)
	facts, err := db.Facts()
	require.NoError(t, err)
	require.Len(t, facts, 2)

	prog, store := compileSrc(t, `rules: [{premises: [{name: "unit", args: ["X"]}], conclusion: {name: "seen", args: ["X"]}}]`)
	imported, err := DecodeFacts(store, facts)
	require.NoError(t, err)
	again, err := NewSearch(prog, store, quiet(), WithFacts(imported...))
	require.NoError(t, err)
	out, err := again.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{`pair (p 1 "x") is #tt`, "seen a", "unit a"}, out.Lines())
}

func TestDecodeFacts_Errors(t *testing.T) {
	store := term.NewStore()
	_, err := DecodeFacts(store, ir.Array{ir.Int(1)})
	assert.ErrorContains(t, err, "expected object")
	_, err = DecodeFacts(store, ir.Array{ir.Object{"args": ir.Array{}}})
	assert.ErrorContains(t, err, "name is required")
	_, err = DecodeFacts(store, ir.Array{ir.Object{"name": ir.String("p"), "args": ir.Int(1)}})
	assert.ErrorContains(t, err, "args must be an array")
}

func TestSearch_NextContextCancelled(t *testing.T) {
	s := newSearch(t, coloringSrc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.NextContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Stats().Steps)

	// Cancellation leaves the search resumable.
	db, err := s.NextContext(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, db)
}
