package queryir

import (
	"fmt"

	"github.com/roach88/dusa/internal/ir"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each malformed node, in traversal order.
	Problems []string
}

// Validate checks that a query is well formed: it names a run and a
// relation, argument indexes are non-negative, and every literal is a
// data value.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addProblem("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.Run == "" {
		v.addProblem("select without a run id")
	}
	if sel.Relation == "" {
		v.addProblem("select without a relation")
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		v.addProblem("nil predicate")
		return
	}

	switch pred := p.(type) {
	case ArgEquals:
		v.validateArgEquals(pred)
	case *ArgEquals:
		v.validateArgEquals(*pred)
	case ValueEquals:
		v.validateLiteral("value", pred.Value)
	case *ValueEquals:
		v.validateLiteral("value", pred.Value)
	case SeqEquals:
		v.validateSeq(pred)
	case *SeqEquals:
		v.validateSeq(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateArgEquals(eq ArgEquals) {
	if eq.Index < 0 {
		v.addProblem("argument index %d is negative", eq.Index)
	}
	v.validateLiteral(fmt.Sprintf("argument %d", eq.Index), eq.Value)
}

func (v *validator) validateSeq(eq SeqEquals) {
	if eq.Seq < 1 {
		v.addProblem("solution seq %d is not positive", eq.Seq)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

// validateLiteral checks the top level of a literal. Bare strings are
// not data: a data string is {"string": ...}.
func (v *validator) validateLiteral(what string, value ir.Value) {
	switch value.(type) {
	case nil:
		v.addProblem("%s compared to nil", what)
	case ir.String:
		v.addProblem("%s compared to a bare string; use {\"string\": ...} or {\"const\": ...}", what)
	}
}
