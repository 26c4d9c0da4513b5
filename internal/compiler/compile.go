// Package compiler turns checked programs into the step-and-index form the
// engine executes.
//
// The pipeline runs Check, Flatten, Binarize, Indexize, and Emit, then
// validates the result. Every stage reports Issues with positions rather
// than panicking; Compile stops after the first stage that reports any.
package compiler

import (
	"github.com/roach88/dusa/internal/ast"
	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/term"
)

// Compile runs the full pipeline. Constants are interned into store.
func Compile(p *ast.Program, store *term.Store) (*ir.Program, []Issue) {
	if issues := Check(p); len(issues) > 0 {
		return nil, issues
	}
	flat, issues := Flatten(p)
	if len(issues) > 0 {
		return nil, issues
	}
	chains := Binarize(flat)
	Indexize(chains)
	prog, issues := Emit(chains, store)
	if len(issues) > 0 {
		return nil, issues
	}
	// CRITICAL: a program that fails validation would corrupt engine state.
	if errs := prog.Validate(); len(errs) > 0 {
		issues = make([]Issue, 0, len(errs))
		for _, err := range errs {
			issues = append(issues, issuef(ErrInvalidProgram, ast.Position{}, "%v", err))
		}
		return nil, issues
	}
	return prog, nil
}
