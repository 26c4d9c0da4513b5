package engine

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dusa/internal/ast"
	"github.com/roach88/dusa/internal/compiler"
	"github.com/roach88/dusa/internal/term"
)

// naive evaluates builtin-free programs straight from the declarations:
// every round re-matches every rule against every committed fact, and
// choices are explored by plain recursion over copied maps.
type naive struct {
	store *term.Store
	prog  *ast.Program
	out   []string
}

type naiveAttr struct {
	name string
	args []term.Data
}

type naiveState struct {
	is  map[string]term.Data
	not map[string][]term.Data
	// attrs remembers the decoded attribute behind each key.
	attrs map[string]naiveAttr
}

type offerSet struct {
	closed bool
	values []term.Data
}

func (n *naive) key(name string, args []term.Data) string {
	var b strings.Builder
	b.WriteString(name)
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(n.store.Format(a))
	}
	return b.String()
}

func (st naiveState) clone() naiveState {
	out := naiveState{
		is:    make(map[string]term.Data, len(st.is)),
		not:   make(map[string][]term.Data, len(st.not)),
		attrs: make(map[string]naiveAttr, len(st.attrs)),
	}
	for k, v := range st.is {
		out.is[k] = v
	}
	for k, v := range st.not {
		out.not[k] = slices.Clone(v)
	}
	for k, v := range st.attrs {
		out.attrs[k] = v
	}
	return out
}

// matches enumerates substitutions satisfying every premise.
func (n *naive) matches(st naiveState, prems []ast.Premise, s ast.Subst, yield func(ast.Subst)) {
	if len(prems) == 0 {
		yield(s)
		return
	}
	p := prems[0]
	for key, v := range st.is {
		attr := st.attrs[key]
		if attr.name != p.Name || len(attr.args) != len(p.Args) {
			continue
		}
		cur, ok := s, true
		for i, arg := range p.Args {
			r := ast.Match(n.store, arg, attr.args[i], cur)
			if r.Status != ast.Matched {
				ok = false
				break
			}
			cur = r.Subst
		}
		if !ok {
			continue
		}
		r := ast.Match(n.store, p.ValueOrTrivial(), v, cur)
		if r.Status == ast.Matched {
			n.matches(st, prems[1:], r.Subst, yield)
		}
	}
}

func (n *naive) apply(pats []ast.Pattern, s ast.Subst) []term.Data {
	out := make([]term.Data, len(pats))
	for i, p := range pats {
		d, err := ast.Apply(n.store, p, s)
		if err != nil {
			panic(err)
		}
		out[i] = d
	}
	return out
}

func (n *naive) solve(st naiveState) {
	for {
		offers := make(map[string]*offerSet)
		conflict := false
		for _, d := range n.prog.Decls {
			n.matches(st, d.Premises, ast.EmptySubst(), func(s ast.Subst) {
				switch d.Kind {
				case ast.DeclForbid:
					conflict = true
					return
				case ast.DeclDemand:
					return
				}
				c := d.Conclusion
				args := n.apply(c.Args, s)
				values := n.apply(c.Values, s)
				if len(values) == 0 {
					values = []term.Data{n.store.Trivial()}
				}
				key := n.key(c.Name, args)
				st.attrs[key] = naiveAttr{name: c.Name, args: args}
				if v, ok := st.is[key]; ok {
					if c.Exhaustive && !slices.Contains(values, v) {
						conflict = true
					}
					return
				}
				values = slices.DeleteFunc(values, func(v term.Data) bool {
					return slices.Contains(st.not[key], v)
				})
				o := offers[key]
				if o == nil {
					o = &offerSet{}
					offers[key] = o
				}
				switch {
				case c.Exhaustive && !o.closed:
					o.closed, o.values = true, values
				case c.Exhaustive:
					o.values = slices.DeleteFunc(o.values, func(v term.Data) bool {
						return !slices.Contains(values, v)
					})
				case !o.closed:
					for _, v := range values {
						if !slices.Contains(o.values, v) {
							o.values = append(o.values, v)
						}
					}
				}
			})
		}
		if conflict {
			return
		}

		keys := make([]string, 0, len(offers))
		for k := range offers {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		committed := false
		var pick string
		for _, k := range keys {
			o := offers[k]
			if o.closed && len(o.values) == 0 {
				return
			}
			if o.closed && len(o.values) == 1 {
				st.is[k] = o.values[0]
				committed = true
			} else if len(o.values) > 0 && pick == "" {
				pick = k
			}
		}
		if committed {
			continue
		}

		if pick == "" {
			for _, d := range n.prog.Decls {
				if d.Kind != ast.DeclDemand {
					continue
				}
				met := false
				n.matches(st, d.Premises, ast.EmptySubst(), func(ast.Subst) { met = true })
				if !met {
					return
				}
			}
			n.record(st)
			return
		}

		o := offers[pick]
		for _, v := range o.values {
			child := st.clone()
			child.is[pick] = v
			n.solve(child)
		}
		if !o.closed {
			child := st.clone()
			child.not[pick] = append(child.not[pick], o.values...)
			n.solve(child)
		}
		return
	}
}

func (n *naive) record(st naiveState) {
	lines := make([]string, 0, len(st.is))
	for k, v := range st.is {
		if v == n.store.Trivial() {
			lines = append(lines, k)
		} else {
			lines = append(lines, k+" is "+n.store.Format(v))
		}
	}
	slices.Sort(lines)
	n.out = append(n.out, "{"+strings.Join(lines, ", ")+"}")
}

func naiveSolve(t *testing.T, src string) []string {
	t.Helper()
	p, err := compiler.CompileBytes("test.cue", []byte(src))
	require.NoError(t, err)
	n := &naive{store: term.NewStore(), prog: p}
	n.solve(naiveState{
		is:    make(map[string]term.Data),
		not:   make(map[string][]term.Data),
		attrs: make(map[string]naiveAttr),
	})
	slices.Sort(n.out)
	return slices.Compact(n.out)
}

func TestSearch_AgreesWithNaiveEvaluator(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"exhaustive", exhaustiveSrc},
		{"open", openSrc},
		{"mutual exclusion", mutexSrc},
		{"demand and forbid", demandForbidSrc},
		{"clash", clashSrc},
		{"coloring", coloringSrc},
		{"transitive closure", `
rules: [
	{conclusion: {name: "edge", args: ["a", "b"]}},
	{conclusion: {name: "edge", args: ["b", "c"]}},
	{conclusion: {name: "edge", args: ["c", "a"]}},
	{premises: [{name: "edge", args: ["X", "Y"]}], conclusion: {name: "path", args: ["X", "Y"]}},
	{
		premises: [{name: "edge", args: ["X", "Y"]}, {name: "path", args: ["Y", "Z"]}]
		conclusion: {name: "path", args: ["X", "Z"]}
	},
]
`},
		{"structures", `
rules: [
	{conclusion: {name: "pair", args: [{const: "p", args: ["a", "b"]}]}},
	{conclusion: {name: "pair", args: [{const: "p", args: ["c", "c"]}]}},
	{premises: [{name: "pair", args: [{const: "p", args: ["X", "Y"]}]}], conclusion: {name: "swap", args: [{const: "p", args: ["Y", "X"]}]}},
	{premises: [{name: "pair", args: [{const: "p", args: ["X", "X"]}]}], conclusion: {name: "same", args: ["X"]}},
]
`},
		{"open choice feeding exhaustive", `
rules: [
	{conclusion: {name: "node", args: [1]}},
	{conclusion: {name: "node", args: [2]}},
	{premises: [{name: "node", args: ["N"]}], conclusion: {name: "mark", args: ["N"], choices: ["on", "off"], open: true}},
	{premises: [{name: "mark", args: [1], value: "on"}], conclusion: {name: "mark", args: [2], value: "off"}},
	{premises: [{name: "mark", args: ["N"], value: "V"}], conclusion: {name: "seen", value: "V"}},
]
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, naiveSolve(t, tt.src), solveAll(t, tt.src))
		})
	}
}
