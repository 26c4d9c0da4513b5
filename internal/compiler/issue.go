package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/dusa/internal/ast"
)

// Issue codes (E200-E299).
const (
	// Checker (E201-E209)
	ErrArityMismatch        = "E201" // relation used with two different arities
	ErrUnboundConclusionVar = "E202" // conclusion variable not bound by any premise
	ErrRepeatedWildcard     = "E203" // named wildcard used twice in one declaration
	ErrBuiltinMode          = "E204" // builtin cannot run with these bound/unbound positions
	ErrExtendsBuiltin       = "E205" // rule concludes a name bound to a builtin
	ErrWildcardInConclusion = "E206" // conclusion contains a wildcard
	ErrBuiltinArity         = "E207" // wrong number of builtin arguments
	ErrUnknownBuiltin       = "E208" // builtin binding names no catalog entry
	ErrConstraintValue      = "E209" // comparison premise given a value

	// Internal (E290-E299)
	ErrInvalidProgram = "E299" // compiled program failed structural validation
)

// Issue is a compile-time problem with its source position. The pipeline
// collects every issue it can rather than stopping at the first.
type Issue struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Pos     ast.Position `json:"pos"`
}

// Error implements the error interface.
func (i Issue) Error() string {
	if i.Pos.IsValid() {
		return fmt.Sprintf("[%s] %s: %s", i.Code, i.Pos, i.Message)
	}
	return fmt.Sprintf("[%s] %s", i.Code, i.Message)
}

func issuef(code string, pos ast.Position, format string, args ...any) Issue {
	return Issue{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// sortIssues orders issues by position, then code, for stable reporting.
func sortIssues(issues []Issue) []Issue {
	slices.SortStableFunc(issues, func(a, b Issue) int {
		if a.Pos.File != b.Pos.File {
			if a.Pos.File < b.Pos.File {
				return -1
			}
			return 1
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line - b.Pos.Line
		}
		if a.Pos.Column != b.Pos.Column {
			return a.Pos.Column - b.Pos.Column
		}
		if a.Code < b.Code {
			return -1
		}
		if a.Code > b.Code {
			return 1
		}
		return 0
	})
	return issues
}
