package compiler

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dusa/internal/ast"
)

// CompileError is a structural problem in a CUE program description.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// LoadProgram reads a program from a .cue file or from the CUE package in
// a directory.
func LoadProgram(path string) (*ast.Program, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return CompileBytes(path, src)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, &CompileError{Field: "load", Message: "no CUE instances found in " + path}
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	return CompileProgram(ctx.BuildInstance(instances[0]))
}

// CompileBytes compiles CUE source text into a program.
func CompileBytes(filename string, src []byte) (*ast.Program, error) {
	ctx := cuecontext.New()
	return CompileProgram(ctx.CompileBytes(src, cue.Filename(filename)))
}

// CompileProgram parses a CUE value into a program.
//
// The value has up to four fields:
//
//	builtins: {plus: "INT_PLUS", s: "NAT_SUCC"}
//	rules: [{premises: [...], conclusion: {name: "path", args: ["X", "Y"]}}]
//	demands: [[{name: "p", value: "tt"}]]
//	forbids: [[{name: "p", value: "ff"}, {name: "q", value: "ff"}]]
//
// A conclusion carries either one value, a list of choices, or neither
// (the unit value); "open: true" makes it a non-exhaustive "is?" choice.
// Premises match facts with {name, args, value} or test builtins with
// {eq|neq|lt|leq|gt|geq: [A, B]}.
//
// Patterns: a string starting with an uppercase letter is a variable, "_"
// or "_Name" a wildcard, "()" the unit value, and any other string an
// atom. Numbers and booleans are literals; {string: "..."} is a string
// literal, {const: name, args: [...]} a constructor, and
// {call: name, args: [...]} a nested call.
func CompileProgram(v cue.Value) (*ast.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	prog := &ast.Program{Builtins: make(map[string]ast.Builtin)}
	if b := v.LookupPath(cue.ParsePath("builtins")); b.Exists() {
		iter, err := b.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			// Unknown names stay BuiltinNone so Check can report them.
			builtin, _ := ast.ParseBuiltin(name)
			prog.Builtins[iter.Label()] = builtin
		}
	}

	p := &parser{builtins: prog.Builtins}

	if rules := v.LookupPath(cue.ParsePath("rules")); rules.Exists() {
		iter, err := rules.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			decl, err := p.rule(iter.Value())
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, decl)
		}
	}

	for _, kind := range []ast.DeclKind{ast.DeclDemand, ast.DeclForbid} {
		field := "demands"
		if kind == ast.DeclForbid {
			field = "forbids"
		}
		list := v.LookupPath(cue.ParsePath(field))
		if !list.Exists() {
			continue
		}
		iter, err := list.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			premises, err := p.premises(iter.Value())
			if err != nil {
				return nil, err
			}
			prog.Decls = append(prog.Decls, ast.Declaration{
				Kind:     kind,
				Premises: premises,
				Pos:      position(iter.Value().Pos()),
			})
		}
	}

	return prog, nil
}

func position(pos token.Pos) ast.Position {
	if !pos.IsValid() {
		return ast.Position{}
	}
	return ast.Position{File: pos.Filename(), Line: pos.Line(), Column: pos.Column()}
}

var constraintFields = []struct {
	field   string
	builtin ast.Builtin
}{
	{"eq", ast.Equal},
	{"neq", ast.NotEqual},
	{"lt", ast.Lt},
	{"leq", ast.Leq},
	{"gt", ast.Gt},
	{"geq", ast.Geq},
}

var constraintNames = map[ast.Builtin]string{
	ast.Equal:    "==",
	ast.NotEqual: "!=",
	ast.Lt:       "<",
	ast.Leq:      "<=",
	ast.Gt:       ">",
	ast.Geq:      ">=",
}

type parser struct {
	builtins map[string]ast.Builtin
}

func (p *parser) rule(v cue.Value) (ast.Declaration, error) {
	decl := ast.Declaration{Kind: ast.DeclRule, Pos: position(v.Pos())}

	if prem := v.LookupPath(cue.ParsePath("premises")); prem.Exists() {
		premises, err := p.premises(prem)
		if err != nil {
			return decl, err
		}
		decl.Premises = premises
	}

	cv := v.LookupPath(cue.ParsePath("conclusion"))
	if !cv.Exists() {
		return decl, &CompileError{Field: "conclusion", Message: "conclusion is required", Pos: v.Pos()}
	}
	name, args, err := p.head(cv)
	if err != nil {
		return decl, err
	}
	concl := &ast.Conclusion{Name: name, Args: args, Exhaustive: true, Pos: position(cv.Pos())}

	value := cv.LookupPath(cue.ParsePath("value"))
	choices := cv.LookupPath(cue.ParsePath("choices"))
	switch {
	case value.Exists() && choices.Exists():
		return decl, &CompileError{Field: "conclusion", Message: "value and choices are mutually exclusive", Pos: cv.Pos()}
	case value.Exists():
		pat, err := p.pattern(value)
		if err != nil {
			return decl, err
		}
		concl.Values = []ast.Pattern{pat}
	case choices.Exists():
		concl.Values, err = p.patterns(choices)
		if err != nil {
			return decl, err
		}
		if len(concl.Values) == 0 {
			return decl, &CompileError{Field: "choices", Message: "at least one choice is required", Pos: choices.Pos()}
		}
	}

	if open := cv.LookupPath(cue.ParsePath("open")); open.Exists() {
		b, err := open.Bool()
		if err != nil {
			return decl, formatCUEError(err)
		}
		concl.Exhaustive = !b
	}

	decl.Conclusion = concl
	return decl, nil
}

func (p *parser) premises(v cue.Value) ([]ast.Premise, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ast.Premise
	for iter.Next() {
		prem, err := p.premise(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, prem)
	}
	return out, nil
}

func (p *parser) premise(v cue.Value) (ast.Premise, error) {
	pos := position(v.Pos())
	for _, c := range constraintFields {
		operands := v.LookupPath(cue.ParsePath(c.field))
		if !operands.Exists() {
			continue
		}
		args, err := p.patterns(operands)
		if err != nil {
			return ast.Premise{}, err
		}
		return ast.Premise{Name: constraintNames[c.builtin], Builtin: c.builtin, Args: args, Pos: pos}, nil
	}

	name, args, err := p.head(v)
	if err != nil {
		return ast.Premise{}, err
	}
	prem := ast.Premise{Name: name, Builtin: p.builtins[name], Args: args, Pos: pos}
	if value := v.LookupPath(cue.ParsePath("value")); value.Exists() {
		prem.Value, err = p.pattern(value)
		if err != nil {
			return ast.Premise{}, err
		}
	}
	return prem, nil
}

// head reads the name and args shared by premises and conclusions.
func (p *parser) head(v cue.Value) (string, []ast.Pattern, error) {
	nv := v.LookupPath(cue.ParsePath("name"))
	if !nv.Exists() {
		return "", nil, &CompileError{Field: "name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nv.String()
	if err != nil {
		return "", nil, formatCUEError(err)
	}
	var args []ast.Pattern
	if av := v.LookupPath(cue.ParsePath("args")); av.Exists() {
		args, err = p.patterns(av)
		if err != nil {
			return "", nil, err
		}
	}
	return name, args, nil
}

func (p *parser) patterns(v cue.Value) ([]ast.Pattern, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ast.Pattern
	for iter.Next() {
		pat, err := p.pattern(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, pat)
	}
	return out, nil
}

func (p *parser) pattern(v cue.Value) (ast.Pattern, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return word(s), nil
	case cue.IntKind, cue.NumberKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: "pattern", Message: "numbers must be integers", Pos: v.Pos()}
		}
		return ast.IntLit{Value: n}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ast.BoolLit{Value: b}, nil
	case cue.StructKind:
		return p.structured(v)
	}
	return nil, &CompileError{Field: "pattern", Message: fmt.Sprintf("unsupported pattern of kind %s", v.IncompleteKind()), Pos: v.Pos()}
}

func (p *parser) structured(v cue.Value) (ast.Pattern, error) {
	if sv := v.LookupPath(cue.ParsePath("string")); sv.Exists() {
		s, err := sv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ast.StringLit{Value: s}, nil
	}

	var args []ast.Pattern
	if av := v.LookupPath(cue.ParsePath("args")); av.Exists() {
		var err error
		if args, err = p.patterns(av); err != nil {
			return nil, err
		}
	}
	if cv := v.LookupPath(cue.ParsePath("const")); cv.Exists() {
		name, err := cv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ast.Const{Name: name, Args: args}, nil
	}
	if cv := v.LookupPath(cue.ParsePath("call")); cv.Exists() {
		name, err := cv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ast.Call{Name: name, Builtin: p.builtins[name], Args: args}, nil
	}
	return nil, &CompileError{Field: "pattern", Message: "struct patterns need one of string, const, or call", Pos: v.Pos()}
}

// word classifies a bare string pattern.
func word(s string) ast.Pattern {
	switch {
	case s == "()":
		return ast.Trivial{}
	case strings.HasPrefix(s, "_"):
		return ast.Wildcard{Name: s}
	case s != "" && unicode.IsUpper([]rune(s)[0]):
		return ast.Var{Name: s}
	default:
		return ast.Const{Name: s}
	}
}
