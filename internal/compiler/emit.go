package compiler

import (
	"slices"

	"github.com/roach88/dusa/internal/ast"
	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/term"
)

// Emit lowers indexized chains into a program of steps and index rules.
// Constants are interned into store, which the engine must share.
func Emit(chains []Chain, store *term.Store) (*ir.Program, []Issue) {
	e := &emitter{store: store, prog: ir.NewProgram()}
	for i := range chains {
		e.chain(&chains[i])
	}
	return e.prog, sortIssues(e.issues)
}

type emitter struct {
	store  *term.Store
	prog   *ir.Program
	issues []Issue
}

func (e *emitter) fail(pos ast.Position, format string, args ...any) {
	e.issues = append(e.issues, issuef(ErrInvalidProgram, pos, format, args...))
}

func (e *emitter) relation(name string, arity int) {
	e.prog.Relations[name] = arity
}

func (e *emitter) chain(c *Chain) {
	d := c.Decl
	e.prog.Seeds = append(e.prog.Seeds, c.Links[0].Name)
	for i := range c.Links {
		link := &c.Links[i]
		step := &ir.Step{Name: link.Name, Decl: d.ID, Vars: slices.Clone(link.Vars)}
		if d.Pos.IsValid() {
			step.Source = d.Pos.String()
		}
		if step.Vars == nil {
			step.Vars = []string{}
		}
		switch {
		case link.Premise == nil:
			e.finish(step, &d)
		case link.Premise.Builtin != ast.BuiltinNone:
			e.builtin(step, link, &c.Links[i+1])
		default:
			e.join(step, link, &c.Links[i+1])
		}
		e.prog.Steps[step.Name] = step
	}
}

func (e *emitter) join(step *ir.Step, link, next *Link) {
	p := link.Premise
	arity := len(p.Args)
	e.relation(p.Name, arity)

	// Memory starts as the fact: arguments in 0..arity-1, value at arity.
	f := newFrame(e.store, nil)
	f.n = arity + 1
	for j, arg := range p.Args {
		f.op(ir.Instr{Op: ir.OpLoad, Arg: j})
		f.match(arg)
	}
	f.op(ir.Instr{Op: ir.OpLoad, Arg: arity})
	f.match(p.ValueOrTrivial())
	if f.err != "" {
		e.fail(p.Pos, "%s: %s", link.Name, f.err)
		return
	}

	idx := &ir.Index{
		Name:     link.Name + ":" + p.Name,
		Relation: p.Name,
		Arity:    arity,
		Code:     f.code,
		Slots:    f.n,
		Shared:   len(link.Shared),
		Step:     link.Name,
	}
	for _, v := range append(slices.Clone(link.Shared), link.Introduced...) {
		idx.Key = append(idx.Key, f.slots[v])
	}
	e.prog.Indexes[p.Name] = append(e.prog.Indexes[p.Name], idx)

	step.Kind = ir.StepJoin
	step.Index = idx.Name
	step.Shared = len(link.Shared)
	step.Introduced = slices.Clone(link.Introduced)
	step.Next = next.Name
	env := append(slices.Clone(link.Vars), link.Introduced...)
	for _, v := range next.Vars {
		i := slices.Index(env, v)
		if i < 0 {
			e.fail(p.Pos, "%s: variable %s is not available to %s", link.Name, v, next.Name)
			return
		}
		step.NextFrom = append(step.NextFrom, i)
	}
}

func (e *emitter) builtin(step *ir.Step, link, next *Link) {
	p := link.Premise
	f := newFrame(e.store, link.Vars)
	f.builtin(p)
	if f.err != "" {
		e.issues = append(e.issues, issuef(f.issueCode(), p.Pos, "%s: %s", link.Name, f.err))
		return
	}
	step.Kind = ir.StepBuiltin
	step.Code = f.code
	step.Slots = f.n
	step.Next = next.Name
	for _, v := range next.Vars {
		slot, ok := f.slots[v]
		if !ok {
			e.fail(p.Pos, "%s: variable %s is not available to %s", link.Name, v, next.Name)
			return
		}
		step.NextFrom = append(step.NextFrom, slot)
	}
}

func (e *emitter) finish(step *ir.Step, d *FlatDecl) {
	switch d.Kind {
	case ast.DeclDemand:
		step.Kind = ir.StepDemand
		e.prog.Demands = append(e.prog.Demands, step.Name)
		return
	case ast.DeclForbid:
		step.Kind = ir.StepForbid
		e.prog.Forbids = append(e.prog.Forbids, step.Name)
		return
	}

	c := d.Conclusion
	e.relation(c.Name, len(c.Args))
	f := newFrame(e.store, step.Vars)
	store := func(p ast.Pattern) int {
		f.build(p)
		slot := f.alloc()
		f.op(ir.Instr{Op: ir.OpStore, Arg: slot})
		return slot
	}
	step.Kind = ir.StepConclude
	step.Relation = c.Name
	step.Exhaustive = c.Exhaustive
	for _, arg := range c.Args {
		step.ArgSlots = append(step.ArgSlots, store(arg))
	}
	for _, v := range c.ValuesOrTrivial() {
		step.ValueSlots = append(step.ValueSlots, store(v))
	}
	if f.err != "" {
		e.fail(c.Pos, "%s: %s", step.Name, f.err)
		return
	}
	step.Code = f.code
	step.Slots = f.n
}

// frame tracks slot assignment while generating one code sequence.
type frame struct {
	store *term.Store
	slots map[string]int
	n     int
	code  []ir.Instr
	err   string
	mode  bool // err is a builtin mode violation
}

func newFrame(store *term.Store, vars []string) *frame {
	f := &frame{store: store, slots: make(map[string]int, len(vars))}
	for _, v := range vars {
		f.slots[v] = f.alloc()
	}
	return f
}

func (f *frame) alloc() int {
	f.n++
	return f.n - 1
}

func (f *frame) op(in ir.Instr) {
	f.code = append(f.code, in)
}

func (f *frame) failf(msg string) {
	if f.err == "" {
		f.err = msg
	}
}

func (f *frame) issueCode() string {
	if f.mode {
		return ErrBuiltinMode
	}
	return ErrInvalidProgram
}

func (f *frame) ground(p ast.Pattern) bool {
	bound := make(map[string]bool, len(f.slots))
	for v := range f.slots {
		bound[v] = true
	}
	return ast.IsGround(p, bound)
}

// closed reports patterns without variables, which compile to constants.
func closed(p ast.Pattern) bool {
	return ast.IsGround(p, nil)
}

func (f *frame) constant(p ast.Pattern) {
	d, err := ast.Apply(f.store, p, ast.EmptySubst())
	if err != nil {
		f.failf(err.Error())
		return
	}
	f.op(ir.Instr{Op: ir.OpConst, Data: d})
}

// match consumes the top of the stack, checking it against p and storing
// first occurrences of variables.
func (f *frame) match(p ast.Pattern) {
	switch pat := p.(type) {
	case ast.Var:
		if slot, ok := f.slots[pat.Name]; ok {
			f.op(ir.Instr{Op: ir.OpLoad, Arg: slot})
			f.op(ir.Instr{Op: ir.OpEqual})
			return
		}
		slot := f.alloc()
		f.slots[pat.Name] = slot
		f.op(ir.Instr{Op: ir.OpStore, Arg: slot})
	case ast.Wildcard:
		f.op(ir.Instr{Op: ir.OpPop})
	case ast.Const:
		if closed(pat) {
			f.constant(pat)
			f.op(ir.Instr{Op: ir.OpEqual})
			return
		}
		f.op(ir.Instr{Op: ir.OpExplode, Name: pat.Name, Arg: len(pat.Args)})
		for _, arg := range pat.Args {
			f.match(arg)
		}
	case ast.Call:
		f.failf("call to " + pat.Name + " was not flattened")
	default:
		f.constant(p)
		f.op(ir.Instr{Op: ir.OpEqual})
	}
}

// build pushes the value of a ground pattern.
func (f *frame) build(p ast.Pattern) {
	switch pat := p.(type) {
	case ast.Var:
		slot, ok := f.slots[pat.Name]
		if !ok {
			f.failf("variable " + pat.Name + " is unbound")
			return
		}
		f.op(ir.Instr{Op: ir.OpLoad, Arg: slot})
	case ast.Const:
		if closed(pat) {
			f.constant(pat)
			return
		}
		for _, arg := range pat.Args {
			f.build(arg)
		}
		f.op(ir.Instr{Op: ir.OpBuild, Name: pat.Name, Arg: len(pat.Args)})
	case ast.Wildcard:
		f.failf("wildcard " + pat.Name + " has no value")
	case ast.Call:
		f.failf("call to " + pat.Name + " was not flattened")
	default:
		f.constant(p)
	}
}

var comparisons = map[ast.Builtin]ir.Op{
	ast.Gt:  ir.OpGreater,
	ast.Geq: ir.OpGreaterEq,
	ast.Lt:  ir.OpLess,
	ast.Leq: ir.OpLessEq,
}

// builtin lowers one builtin premise, choosing the mode from which of its
// positions are already ground.
func (f *frame) builtin(p *ast.Premise) {
	args := p.Args
	value := p.ValueOrTrivial()
	argsBound := make([]bool, len(args))
	unknown := -1
	for i, arg := range args {
		argsBound[i] = f.ground(arg)
		if !argsBound[i] && unknown < 0 {
			unknown = i
		}
	}
	valueBound := f.ground(value)
	if !p.Builtin.SupportsMode(argsBound, valueBound) {
		f.mode = true
		f.failf(p.Builtin.String() + " cannot run with these arguments unbound: " + describeMode(argsBound, valueBound))
		return
	}
	forward := unknown < 0

	switch p.Builtin {
	case ast.BooleanTrue:
		f.constant(ast.BoolLit{Value: true})
		f.match(value)
	case ast.BooleanFalse:
		f.constant(ast.BoolLit{Value: false})
		f.match(value)
	case ast.NatZero:
		f.constant(ast.IntLit{Value: 0})
		f.match(value)

	case ast.NatSucc:
		if forward {
			f.build(args[0])
			f.op(ir.Instr{Op: ir.OpDup})
			f.constant(ast.IntLit{Value: 0})
			f.op(ir.Instr{Op: ir.OpGreaterEq})
			f.constant(ast.IntLit{Value: 1})
			f.op(ir.Instr{Op: ir.OpPlus, Arg: 2})
			f.match(value)
			return
		}
		f.build(value)
		f.op(ir.Instr{Op: ir.OpDup})
		f.constant(ast.IntLit{Value: 0})
		f.op(ir.Instr{Op: ir.OpGreater})
		f.constant(ast.IntLit{Value: 1})
		f.op(ir.Instr{Op: ir.OpMinus})
		f.match(args[0])

	case ast.IntPlus:
		if forward {
			for _, arg := range args {
				f.build(arg)
			}
			f.op(ir.Instr{Op: ir.OpPlus, Arg: len(args)})
			f.match(value)
			return
		}
		f.build(value)
		for i, arg := range args {
			if i != unknown {
				f.build(arg)
			}
		}
		f.op(ir.Instr{Op: ir.OpPlus, Arg: len(args) - 1})
		f.op(ir.Instr{Op: ir.OpMinus})
		f.match(args[unknown])

	case ast.IntMinus:
		switch {
		case forward:
			f.build(args[0])
			f.build(args[1])
			f.op(ir.Instr{Op: ir.OpMinus})
			f.match(value)
		case unknown == 0:
			f.build(value)
			f.build(args[1])
			f.op(ir.Instr{Op: ir.OpPlus, Arg: 2})
			f.match(args[0])
		default:
			f.build(args[0])
			f.build(value)
			f.op(ir.Instr{Op: ir.OpMinus})
			f.match(args[1])
		}

	case ast.IntTimes:
		for _, arg := range args {
			f.build(arg)
		}
		f.op(ir.Instr{Op: ir.OpTimes, Arg: len(args)})
		f.match(value)

	case ast.StringConcat:
		if forward {
			for _, arg := range args {
				f.build(arg)
			}
			f.op(ir.Instr{Op: ir.OpConcat, Arg: len(args)})
			f.match(value)
			return
		}
		f.build(value)
		for i, arg := range args {
			if argsBound[i] {
				f.build(arg)
			}
		}
		f.op(ir.Instr{Op: ir.OpSplit, Mask: argsBound})
		for i, arg := range args {
			if !argsBound[i] {
				f.match(arg)
			}
		}

	case ast.Gt, ast.Geq, ast.Lt, ast.Leq:
		f.build(args[0])
		f.build(args[1])
		f.op(ir.Instr{Op: comparisons[p.Builtin]})

	case ast.Equal:
		switch {
		case forward:
			f.build(args[0])
			f.build(args[1])
			f.op(ir.Instr{Op: ir.OpEqual})
		case unknown == 0:
			f.build(args[1])
			f.match(args[0])
		default:
			f.build(args[0])
			f.match(args[1])
		}

	case ast.NotEqual:
		f.build(args[0])
		f.build(args[1])
		f.op(ir.Instr{Op: ir.OpNotEqual})

	default:
		f.failf("unknown builtin " + p.Builtin.String())
	}
}
