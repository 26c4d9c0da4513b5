package compiler

import (
	"slices"

	"github.com/roach88/dusa/internal/ast"
)

// Check validates a program before compilation.
// Returns all issues found (does not fail-fast).
func Check(p *ast.Program) []Issue {
	c := &checker{
		prog:  p,
		arity: make(map[string]int),
	}

	names := make([]string, 0, len(p.Builtins))
	for name := range p.Builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		// E208: every binding resolves to a catalog entry
		if p.Builtins[name] == ast.BuiltinNone {
			c.add(issuef(ErrUnknownBuiltin, ast.Position{}, "%s is not bound to a known builtin", name))
		}
	}

	for i := range p.Decls {
		c.decl(&p.Decls[i])
	}
	return sortIssues(c.issues)
}

type checker struct {
	prog   *ast.Program
	arity  map[string]int
	issues []Issue
}

func (c *checker) add(i Issue) {
	c.issues = append(c.issues, i)
}

// relation records the arity of an ordinary relation use.
func (c *checker) relation(name string, n int, pos ast.Position) {
	// E201: one arity per relation
	if prev, ok := c.arity[name]; ok && prev != n {
		c.add(issuef(ErrArityMismatch, pos, "%s is used with %d arguments here but %d elsewhere", name, n, prev))
		return
	}
	c.arity[name] = n
}

func (c *checker) builtinArity(b ast.Builtin, name string, n int, pos ast.Position) {
	lo, hi := b.Arity()
	// E207
	if n < lo || (hi >= 0 && n > hi) {
		if lo == hi {
			c.add(issuef(ErrBuiltinArity, pos, "builtin %s (%s) takes %d arguments, got %d", name, b, lo, n))
		} else {
			c.add(issuef(ErrBuiltinArity, pos, "builtin %s (%s) takes at least %d arguments, got %d", name, b, lo, n))
		}
	}
}

// patterns checks calls and wildcards inside p.
func (c *checker) patterns(p ast.Pattern, pos ast.Position, wildcards map[string]bool, inConclusion bool) {
	ast.Walk(p, func(sub ast.Pattern) {
		switch pat := sub.(type) {
		case ast.Wildcard:
			// E206
			if inConclusion {
				c.add(issuef(ErrWildcardInConclusion, pos, "wildcard %s cannot appear in a conclusion", pat.Name))
				return
			}
			// E203
			if pat.Name != "_" {
				if wildcards[pat.Name] {
					c.add(issuef(ErrRepeatedWildcard, pos, "named wildcard %s is used more than once", pat.Name))
				}
				wildcards[pat.Name] = true
			}
		case ast.Call:
			if pat.Builtin != ast.BuiltinNone {
				c.builtinArity(pat.Builtin, pat.Name, len(pat.Args), pos)
				if pat.Builtin.IsConstraint() {
					c.add(issuef(ErrConstraintValue, pos, "%s has no value and cannot be used as a term", pat.Name))
				}
			} else {
				c.relation(pat.Name, len(pat.Args), pos)
			}
		}
	})
}

func (c *checker) decl(d *ast.Declaration) {
	wildcards := make(map[string]bool)
	var bound []string

	for i := range d.Premises {
		prem := &d.Premises[i]
		if prem.Builtin != ast.BuiltinNone {
			c.builtinArity(prem.Builtin, prem.Name, len(prem.Args), prem.Pos)
			// E209
			if prem.Builtin.IsConstraint() && prem.Value != nil {
				if _, ok := prem.Value.(ast.Trivial); !ok {
					c.add(issuef(ErrConstraintValue, prem.Pos, "%s is a constraint and takes no value", prem.Builtin))
				}
			}
		} else {
			c.relation(prem.Name, len(prem.Args), prem.Pos)
		}
		for _, arg := range prem.Args {
			c.patterns(arg, prem.Pos, wildcards, false)
		}
		c.patterns(prem.ValueOrTrivial(), prem.Pos, wildcards, false)
		bound = ast.PremiseVars(bound, prem)
	}

	concl := d.Conclusion
	if concl == nil {
		return
	}
	// E205
	if b, ok := c.prog.Builtins[concl.Name]; ok {
		c.add(issuef(ErrExtendsBuiltin, concl.Pos, "%s is the builtin %s and cannot be extended by rules", concl.Name, b))
	}
	c.relation(concl.Name, len(concl.Args), concl.Pos)
	for _, arg := range concl.Args {
		c.patterns(arg, concl.Pos, wildcards, true)
	}
	for _, v := range concl.Values {
		c.patterns(v, concl.Pos, wildcards, true)
	}
	// E202
	for _, v := range ast.ConclusionVars(nil, concl) {
		if !slices.Contains(bound, v) {
			c.add(issuef(ErrUnboundConclusionVar, concl.Pos, "variable %s in the conclusion is not bound by any premise", v))
		}
	}
}
