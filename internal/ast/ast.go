// Package ast defines the checked program representation the compiler
// consumes: patterns, premises, conclusions, and declarations, plus the
// builtin catalog and substitution-based matching over ground terms.
//
// This package imports only term; compiler and engine import ast.
package ast

import "fmt"

// Position is a source location attached to declarations and premises.
type Position struct {
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// IsValid reports whether the position carries a line number.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Pattern is a sealed interface for term patterns.
type Pattern interface {
	pattern() // Sealed
}

// Trivial is the unit pattern ().
type Trivial struct{}

// IntLit is an integer literal.
type IntLit struct{ Value int64 }

// StringLit is a string literal.
type StringLit struct{ Value string }

// BoolLit is a boolean literal.
type BoolLit struct{ Value bool }

// Var is a named variable. Names are unique within a declaration.
type Var struct{ Name string }

// Wildcard matches anything and binds nothing. Name is "_" or "_Name";
// a named wildcard may appear only once per declaration.
type Wildcard struct{ Name string }

// Const is a named structure: an atom when Args is empty.
type Const struct {
	Name string
	Args []Pattern
}

// Call is a value-producing relation or builtin used in pattern position,
// e.g. the (plus N 1) in "fib (plus N 1) is X". Flattening hoists it into
// its own premise.
type Call struct {
	Name    string
	Builtin Builtin // BuiltinNone for ordinary relations
	Args    []Pattern
}

func (Trivial) pattern()   {}
func (IntLit) pattern()    {}
func (StringLit) pattern() {}
func (BoolLit) pattern()   {}
func (Var) pattern()       {}
func (Wildcard) pattern()  {}
func (Const) pattern()     {}
func (Call) pattern()      {}

// Premise is one hypothesis of a rule body.
//
// For ordinary relations Builtin is BuiltinNone and the premise matches a
// fact "Name Args is Value". For builtins the premise asks the builtin to
// relate Args and Value. A nil Value means ().
type Premise struct {
	Name    string
	Builtin Builtin
	Args    []Pattern
	Value   Pattern
	Pos     Position
}

// Conclusion is the head of a rule: "Name Args is Values" or, when
// Exhaustive is false, "Name Args is? Values". An empty Values means ().
type Conclusion struct {
	Name       string
	Args       []Pattern
	Values     []Pattern
	Exhaustive bool
	Pos        Position
}

// DeclKind identifies the kind of a declaration.
type DeclKind int

const (
	// DeclRule derives a conclusion from premises.
	DeclRule DeclKind = iota + 1
	// DeclDemand requires every solution to satisfy its premises.
	DeclDemand
	// DeclForbid rejects every solution satisfying its premises.
	DeclForbid
)

func (k DeclKind) String() string {
	switch k {
	case DeclRule:
		return "rule"
	case DeclDemand:
		return "demand"
	case DeclForbid:
		return "forbid"
	default:
		return fmt.Sprintf("DeclKind(%d)", int(k))
	}
}

// Declaration is one top-level rule, demand, or forbid.
// Conclusion is set only for DeclRule.
type Declaration struct {
	Kind       DeclKind
	Premises   []Premise
	Conclusion *Conclusion
	Pos        Position
}

// Program is a checked program: builtin bindings plus declarations.
type Program struct {
	// Builtins maps surface names (plus, s, concat) to catalog entries.
	Builtins map[string]Builtin
	Decls    []Declaration
}

// ValuesOrTrivial returns c.Values, or a single () if the conclusion
// names no value.
func (c *Conclusion) ValuesOrTrivial() []Pattern {
	if len(c.Values) == 0 {
		return []Pattern{Trivial{}}
	}
	return c.Values
}

// ValueOrTrivial returns p.Value, or () if unset.
func (p *Premise) ValueOrTrivial() Pattern {
	if p.Value == nil {
		return Trivial{}
	}
	return p.Value
}
