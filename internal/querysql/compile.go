package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/queryir"
)

// factColumns is the fixed projection of every fact query, in the order
// store scans it.
const factColumns = "f.solution_hash, s.seq, f.relation, f.args, f.value"

// SQLCompiler compiles QueryIR to parameterized SQL against the
// solution log schema.
//
// CRITICAL: ALL queries include ORDER BY for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple. Malformed queries (see
// queryir.Validate) are rejected.
//
// MANDATORY: Every query includes ORDER BY with a deterministic tiebreaker.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	where := "f.run_id = ? AND f.relation = ?"
	params := []any{q.Run, q.Relation}

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}

	sql := fmt.Sprintf("SELECT %s FROM facts f JOIN solutions s ON s.run_id = f.run_id AND s.hash = f.solution_hash WHERE %s ORDER BY %s",
		factColumns,
		where,
		stableOrderKey())

	return sql, params, nil
}

// stableOrderKey returns the ORDER BY clause of every fact query.
// COLLATE BINARY keeps text ordering identical across SQLite versions.
func stableOrderKey() string {
	return "s.seq ASC, f.args COLLATE BINARY ASC"
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.ArgEquals:
		return c.compileArgEquals(pred)
	case *queryir.ArgEquals:
		return c.compileArgEquals(*pred)
	case queryir.ValueEquals:
		return c.compileValueEquals(pred)
	case *queryir.ValueEquals:
		return c.compileValueEquals(*pred)
	case queryir.SeqEquals:
		return "s.seq = ?", []any{pred.Seq}, nil
	case *queryir.SeqEquals:
		return "s.seq = ?", []any{pred.Seq}, nil
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileArgEquals compares one element of the stored args array. The
// -> operator yields the element as minified JSON text, which for
// canonical input is the element's canonical encoding.
func (c *SQLCompiler) compileArgEquals(eq queryir.ArgEquals) (string, []any, error) {
	param, err := canonicalParam(eq.Value)
	if err != nil {
		return "", nil, err
	}
	return "(f.args -> ?) = ?", []any{fmt.Sprintf("$[%d]", eq.Index), param}, nil
}

func (c *SQLCompiler) compileValueEquals(eq queryir.ValueEquals) (string, []any, error) {
	param, err := canonicalParam(eq.Value)
	if err != nil {
		return "", nil, err
	}
	return "f.value = ?", []any{param}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}

	var sqlParts []string
	var allParams []any

	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return "(" + strings.Join(sqlParts, " AND ") + ")", allParams, nil
}

// canonicalParam renders a literal the way the store writes args and
// values, so equality is plain text comparison.
func canonicalParam(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("convert value: %w", err)
	}
	return string(data), nil
}
