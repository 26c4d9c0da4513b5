package ast

import (
	"fmt"

	"github.com/roach88/dusa/internal/pmap"
	"github.com/roach88/dusa/internal/term"
)

// Subst is a persistent substitution from variable names to ground terms.
// Once bound, a variable is never rebound.
type Subst struct {
	m pmap.Map[string, term.Data]
}

// EmptySubst returns a substitution with no bindings.
func EmptySubst() Subst {
	return Subst{m: pmap.NewOrdered[string, term.Data]()}
}

// Get returns the binding for name.
func (s Subst) Get(name string) (term.Data, bool) {
	return s.m.Get(name)
}

// Bind returns s extended with name = d. Binding an already bound
// variable is a caller error; Match never does it.
func (s Subst) Bind(name string, d term.Data) Subst {
	m := s.m
	if m.Size() == 0 {
		m = pmap.NewOrdered[string, term.Data]()
	}
	return Subst{m: m.Set(name, d)}
}

// Len returns the number of bound variables.
func (s Subst) Len() int {
	return s.m.Size()
}

// MatchStatus is the outcome of matching or builtin evaluation.
type MatchStatus int

const (
	// Matched means the pattern matched; Subst carries the bindings.
	Matched MatchStatus = iota + 1
	// NoMatch is the ordinary failure: the data has a different shape.
	NoMatch
	// TypeError means the operation is not defined on the data it met.
	TypeError
)

func (s MatchStatus) String() string {
	switch s {
	case Matched:
		return "matched"
	case NoMatch:
		return "no-match"
	case TypeError:
		return "type-error"
	default:
		return fmt.Sprintf("MatchStatus(%d)", int(s))
	}
}

// MatchResult is the ternary result of Match.
type MatchResult struct {
	Status MatchStatus
	Subst  Subst
	Reason string // set for TypeError
}

// Match matches pattern p against ground data d, extending s.
func Match(store *term.Store, p Pattern, d term.Data, s Subst) MatchResult {
	switch pat := p.(type) {
	case Wildcard:
		return MatchResult{Status: Matched, Subst: s}
	case Var:
		if bound, ok := s.Get(pat.Name); ok {
			return matchIf(bound == d, s)
		}
		return MatchResult{Status: Matched, Subst: s.Bind(pat.Name, d)}
	case Trivial:
		return matchIf(d == store.Trivial(), s)
	case IntLit:
		return matchIf(d == term.IntData(pat.Value), s)
	case BoolLit:
		return matchIf(d == store.Bool(pat.Value), s)
	case StringLit:
		v, ok := store.Expose(d).(term.String)
		return matchIf(ok && string(v) == pat.Value, s)
	case Const:
		v, ok := store.Expose(d).(term.Const)
		if !ok || v.Name != pat.Name || len(v.Args) != len(pat.Args) {
			return MatchResult{Status: NoMatch}
		}
		for i, arg := range pat.Args {
			r := Match(store, arg, v.Args[i], s)
			if r.Status != Matched {
				return r
			}
			s = r.Subst
		}
		return MatchResult{Status: Matched, Subst: s}
	case Call:
		return MatchResult{Status: TypeError, Reason: fmt.Sprintf("call to %s must be flattened before matching", pat.Name)}
	default:
		return MatchResult{Status: TypeError, Reason: fmt.Sprintf("unknown pattern %T", p)}
	}
}

func matchIf(ok bool, s Subst) MatchResult {
	if ok {
		return MatchResult{Status: Matched, Subst: s}
	}
	return MatchResult{Status: NoMatch}
}

// Apply instantiates p under s. Every variable in p must be bound.
func Apply(store *term.Store, p Pattern, s Subst) (term.Data, error) {
	switch pat := p.(type) {
	case Trivial:
		return store.Trivial(), nil
	case IntLit:
		return term.IntData(pat.Value), nil
	case BoolLit:
		return store.Bool(pat.Value), nil
	case StringLit:
		return store.String(pat.Value), nil
	case Var:
		d, ok := s.Get(pat.Name)
		if !ok {
			return term.Data{}, fmt.Errorf("apply: variable %s is unbound", pat.Name)
		}
		return d, nil
	case Const:
		args := make([]term.Data, len(pat.Args))
		for i, arg := range pat.Args {
			d, err := Apply(store, arg, s)
			if err != nil {
				return term.Data{}, err
			}
			args[i] = d
		}
		return store.Const(pat.Name, args...), nil
	case Wildcard:
		return term.Data{}, fmt.Errorf("apply: wildcard %s has no value", pat.Name)
	case Call:
		return term.Data{}, fmt.Errorf("apply: call to %s must be flattened", pat.Name)
	default:
		return term.Data{}, fmt.Errorf("apply: unknown pattern %T", p)
	}
}
