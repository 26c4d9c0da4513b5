// Package queryir provides a small query representation over the
// solution log: which recorded facts of a run to read back.
//
// The IR sits between callers (the show command, tests) and the SQL
// backend in package querysql:
//
//	[show flags] → [Query IR] → [querysql] → SQLite
//
// SUPPORTED FRAGMENT:
//   - Select(run, relation, filter) - facts of one relation in one run
//   - Predicates: ArgEquals, ValueEquals, SeqEquals, And
//
// EXCLUDED:
//   - Joins across relations (a solution is read whole for that)
//   - OR predicates and negation
//   - Aggregations
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods, so backends can
// switch over them exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	    // Handle select
//	default:
//	    // Impossible - compiler knows all Query types
//	}
//
// CRITICAL: Literal values are ir.Value in canonical data form
// (numbers, booleans, {"string": ...}, {"const": ...}, []). Comparison
// is on canonical JSON text, so two data values match exactly when they
// are the same term.
package queryir
