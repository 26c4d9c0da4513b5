package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/dusa/internal/ast"
)

// FlatDecl is a declaration after flattening: no calls remain in any
// pattern, and every builtin premise sits where its mode is supported.
type FlatDecl struct {
	ID         string // r1, d1, f1, ... in declaration order per kind
	Kind       ast.DeclKind
	Premises   []ast.Premise
	Conclusion *ast.Conclusion
	Pos        ast.Position
}

// Flatten hoists nested calls into premises of their own.
//
// A call whose arguments are already ground is computed before the
// premise that contains it; otherwise the containing premise binds a fresh
// variable and the call runs after it, backwards. Zero-argument builtins
// fold into literals.
func Flatten(p *ast.Program) ([]FlatDecl, []Issue) {
	var out []FlatDecl
	var issues []Issue
	counts := map[ast.DeclKind]int{}
	prefix := map[ast.DeclKind]string{ast.DeclRule: "r", ast.DeclDemand: "d", ast.DeclForbid: "f"}

	for i := range p.Decls {
		d := &p.Decls[i]
		counts[d.Kind]++
		f := &flattener{known: make(map[string]bool)}
		fd := f.decl(d)
		fd.ID = fmt.Sprintf("%s%d", prefix[d.Kind], counts[d.Kind])
		out = append(out, fd)
		issues = append(issues, f.issues...)
	}
	return out, sortIssues(issues)
}

type flattener struct {
	fresh  int
	known  map[string]bool
	out    []ast.Premise
	issues []Issue
}

func (f *flattener) freshVar() ast.Var {
	f.fresh++
	return ast.Var{Name: fmt.Sprintf("#%d", f.fresh)}
}

func (f *flattener) decl(d *ast.Declaration) FlatDecl {
	for i := range d.Premises {
		prem := d.Premises[i]
		var before, after []ast.Premise
		args := make([]ast.Pattern, len(prem.Args))
		for j, arg := range prem.Args {
			args[j] = f.hoist(arg, prem.Pos, &before, &after)
		}
		prem.Args = args
		if prem.Value != nil {
			prem.Value = f.hoist(prem.Value, prem.Pos, &before, &after)
		}
		f.emitAll(before, prem, after)
	}

	fd := FlatDecl{Kind: d.Kind, Pos: d.Pos}
	if d.Conclusion != nil {
		c := *d.Conclusion
		var before, after []ast.Premise
		c.Args = make([]ast.Pattern, len(d.Conclusion.Args))
		for j, arg := range d.Conclusion.Args {
			c.Args[j] = f.hoist(arg, c.Pos, &before, &after)
		}
		c.Values = make([]ast.Pattern, len(d.Conclusion.Values))
		for j, v := range d.Conclusion.Values {
			c.Values[j] = f.hoist(v, c.Pos, &before, &after)
		}
		for _, prem := range before {
			f.emit(prem)
		}
		for _, prem := range slices.Backward(after) {
			f.emit(prem)
		}
		fd.Conclusion = &c
	}
	fd.Premises = f.out
	return fd
}

func (f *flattener) emitAll(before []ast.Premise, main ast.Premise, after []ast.Premise) {
	for _, prem := range before {
		f.emit(prem)
	}
	f.emit(main)
	// Outer calls were hoisted last but must run first when going backwards.
	for _, prem := range slices.Backward(after) {
		f.emit(prem)
	}
}

func (f *flattener) emit(prem ast.Premise) {
	if prem.Builtin != ast.BuiltinNone {
		argsBound := make([]bool, len(prem.Args))
		for i, arg := range prem.Args {
			argsBound[i] = ast.IsGround(arg, f.known)
		}
		valueBound := ast.IsGround(prem.ValueOrTrivial(), f.known)
		// E204
		if !prem.Builtin.SupportsMode(argsBound, valueBound) {
			f.issues = append(f.issues, issuef(ErrBuiltinMode, prem.Pos,
				"%s cannot run here: %s", prem.Builtin, describeMode(argsBound, valueBound)))
		}
	}
	for _, v := range ast.PremiseVars(nil, &prem) {
		f.known[v] = true
	}
	f.out = append(f.out, prem)
}

func describeMode(argsBound []bool, valueBound bool) string {
	desc := "arguments ("
	for i, b := range argsBound {
		if i > 0 {
			desc += " "
		}
		if b {
			desc += "bound"
		} else {
			desc += "free"
		}
	}
	if valueBound {
		return desc + "), value bound"
	}
	return desc + "), value free"
}

// hoist replaces every call inside p by a fresh variable and records the
// premise that computes it.
func (f *flattener) hoist(p ast.Pattern, pos ast.Position, before, after *[]ast.Premise) ast.Pattern {
	switch pat := p.(type) {
	case ast.Const:
		if len(pat.Args) == 0 {
			return pat
		}
		args := make([]ast.Pattern, len(pat.Args))
		for i, arg := range pat.Args {
			args[i] = f.hoist(arg, pos, before, after)
		}
		return ast.Const{Name: pat.Name, Args: args}
	case ast.Call:
		switch pat.Builtin {
		case ast.BooleanTrue:
			return ast.BoolLit{Value: true}
		case ast.BooleanFalse:
			return ast.BoolLit{Value: false}
		case ast.NatZero:
			return ast.IntLit{Value: 0}
		}
		args := make([]ast.Pattern, len(pat.Args))
		for i, arg := range pat.Args {
			args[i] = f.hoist(arg, pos, before, after)
		}
		out := f.freshVar()
		prem := ast.Premise{Name: pat.Name, Builtin: pat.Builtin, Args: args, Value: out, Pos: pos}
		ground := true
		for _, arg := range args {
			if !ast.IsGround(arg, f.known) {
				ground = false
				break
			}
		}
		if ground {
			*before = append(*before, prem)
			f.known[out.Name] = true
		} else {
			*after = append(*after, prem)
		}
		return out
	default:
		return p
	}
}
