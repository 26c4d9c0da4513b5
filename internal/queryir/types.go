package queryir

import "github.com/roach88/dusa/internal/ir"

// Query represents an abstract query over recorded facts.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition on one recorded fact.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - ArgEquals: argument i of the fact = literal
//   - ValueEquals: value of the fact = literal
//   - SeqEquals: the owning solution has the given seq
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads the facts of one relation across the solutions of a run.
//
// Semantics:
//
//	facts of <relation> in <run> WHERE <filter>
//
// Example: the color of vertex a in every solution of a run.
//
//	Select{
//	  Run:      runID,
//	  Relation: "color",
//	  Filter:   ArgEquals{Index: 0, Value: ir.Object{"const": ir.String("a")}},
//	}
//
// Results are always ordered by solution seq, then by canonical args.
type Select struct {
	Run      string    // run id
	Relation string    // relation name
	Filter   Predicate // nil = every fact of the relation
}

func (Select) queryNode() {}

// ArgEquals matches facts whose argument at Index equals Value.
//
// A fact with fewer than Index+1 arguments never matches.
type ArgEquals struct {
	Index int
	Value ir.Value
}

func (ArgEquals) predicateNode() {}

// ValueEquals matches facts whose value equals Value. Plain (unit)
// facts carry the value [].
type ValueEquals struct {
	Value ir.Value
}

func (ValueEquals) predicateNode() {}

// SeqEquals matches facts of the solution yielded at position Seq.
type SeqEquals struct {
	Seq int64
}

func (SeqEquals) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates slice means "always true".
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
