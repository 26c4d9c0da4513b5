package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/dusa/internal/ast"
)

// Link is one step of a binarized declaration. Link i consumes the partial
// match built from premises 0..i-1 and, if Premise is set, extends it with
// premise i. The last link of a chain has no premise and finishes the
// declaration.
type Link struct {
	Name    string
	Premise *ast.Premise
	// Live holds the variables bound by earlier premises that are still
	// needed, in binding order.
	Live []string

	// Filled by Indexize.
	Vars       []string // prefix layout
	Shared     []string // join key; a prefix of Vars
	Introduced []string // new variables a join contributes
}

// Chain is a declaration turned into a sequence of binary steps.
type Chain struct {
	Decl  FlatDecl
	Links []Link
}

// Binarize splits each flattened declaration with n premises into n+1
// steps named $<id>-0 ... $<id>-n, each carrying only its live variables.
func Binarize(decls []FlatDecl) []Chain {
	chains := make([]Chain, 0, len(decls))
	for _, d := range decls {
		chains = append(chains, binarize(d))
	}
	return chains
}

func binarize(d FlatDecl) Chain {
	n := len(d.Premises)

	// used[i] holds every variable mentioned at or after premise i.
	used := make([]map[string]bool, n+1)
	used[n] = make(map[string]bool)
	if d.Conclusion != nil {
		for _, v := range ast.ConclusionVars(nil, d.Conclusion) {
			used[n][v] = true
		}
	}
	for i := n - 1; i >= 0; i-- {
		used[i] = make(map[string]bool, len(used[i+1]))
		for v := range used[i+1] {
			used[i][v] = true
		}
		for _, v := range ast.PremiseVars(nil, &d.Premises[i]) {
			used[i][v] = true
		}
	}

	chain := Chain{Decl: d, Links: make([]Link, n+1)}
	var bound []string
	for i := 0; i <= n; i++ {
		link := Link{Name: stepName(d.ID, i)}
		for _, v := range bound {
			if used[i][v] {
				link.Live = append(link.Live, v)
			}
		}
		if i < n {
			link.Premise = &d.Premises[i]
			bound = ast.PremiseVars(bound, link.Premise)
		}
		chain.Links[i] = link
	}
	return chain
}

func stepName(id string, i int) string {
	return fmt.Sprintf("$%s-%d", id, i)
}

// Indexize decides the prefix layout of every link. A link joining a
// relation lays its prefix out as shared variables (those the premise also
// mentions) followed by the passed-through rest; the index built for the
// premise is keyed on the same shared order followed by the variables the
// premise introduces. Other links keep binding order.
func Indexize(chains []Chain) {
	for c := range chains {
		links := chains[c].Links
		for i := range links {
			link := &links[i]
			if link.Premise == nil || link.Premise.Builtin != ast.BuiltinNone {
				link.Vars = slices.Clone(link.Live)
				continue
			}
			mentioned := ast.PremiseVars(nil, link.Premise)
			var passed []string
			for _, v := range link.Live {
				if slices.Contains(mentioned, v) {
					link.Shared = append(link.Shared, v)
				} else {
					passed = append(passed, v)
				}
			}
			link.Vars = append(slices.Clone(link.Shared), passed...)
			next := links[i+1].Live
			for _, v := range mentioned {
				if !slices.Contains(link.Live, v) && slices.Contains(next, v) {
					link.Introduced = append(link.Introduced, v)
				}
			}
		}
	}
}
