package ir

import (
	"fmt"
	"slices"
)

// StepKind identifies what happens when a prefix reaches its step.
type StepKind string

const (
	// StepJoin joins the prefix against an index on Shared variables.
	StepJoin StepKind = "join"
	// StepBuiltin runs Code over the prefix; each match continues.
	StepBuiltin StepKind = "builtin"
	// StepConclude builds a conclusion from the prefix.
	StepConclude StepKind = "conclude"
	// StepDemand marks a demand as satisfied.
	StepDemand StepKind = "demand"
	// StepForbid signals a forbidden configuration.
	StepForbid StepKind = "forbid"
)

// Step is the consumer of one partial-match predicate (prefix).
//
// A prefix tuple is laid out as Vars. For joins, the first Shared entries
// are the lookup key and the rest are passed through. The step's "env" is
// the prefix tuple followed by Introduced (joins) or by the machine
// memory after Code runs (builtin, conclude); NextFrom picks the next
// prefix tuple out of that env.
type Step struct {
	Name   string   `json:"name"`
	Kind   StepKind `json:"kind"`
	Decl   string   `json:"decl"`
	Source string   `json:"source,omitempty"`
	Vars   []string `json:"vars"`
	Shared int      `json:"shared,omitempty"`

	Index      string   `json:"index,omitempty"`
	Introduced []string `json:"introduced,omitempty"`

	Code  []Instr `json:"code,omitempty"`
	Slots int     `json:"slots,omitempty"`

	Next     string `json:"next,omitempty"`
	NextFrom []int  `json:"next_from,omitempty"`

	Relation   string `json:"relation,omitempty"`
	ArgSlots   []int  `json:"arg_slots,omitempty"`
	ValueSlots []int  `json:"value_slots,omitempty"`
	Exhaustive bool   `json:"exhaustive,omitempty"`
}

// Index is an index-insertion rule: every fact of Relation that matches
// Code is stored under Name keyed by the slots in Key (shared variables
// first, then introduced ones), then joined with prefixes waiting at Step.
type Index struct {
	Name     string  `json:"name"`
	Relation string  `json:"relation"`
	Arity    int     `json:"arity"`
	Code     []Instr `json:"code,omitempty"`
	Slots    int     `json:"slots"`
	Key      []int   `json:"key"`
	Shared   int     `json:"shared"`
	Step     string  `json:"step"`
}

// Program is a compiled rule set.
type Program struct {
	Steps     map[string]*Step    `json:"steps"`
	Indexes   map[string][]*Index `json:"indexes"`
	Relations map[string]int      `json:"relations"`
	Seeds     []string            `json:"seeds"`
	Demands   []string            `json:"demands,omitempty"`
	Forbids   []string            `json:"forbids,omitempty"`
}

// NewProgram returns an empty program ready for the compiler to fill.
func NewProgram() *Program {
	return &Program{
		Steps:     make(map[string]*Step),
		Indexes:   make(map[string][]*Index),
		Relations: make(map[string]int),
	}
}

// StepNames returns step names in sorted order.
func (p *Program) StepNames() []string {
	names := make([]string, 0, len(p.Steps))
	for name := range p.Steps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks the structural invariants the engine relies on: every
// reference resolves, every join's shared layout matches its index, and
// every slot reference is in range. Code is checked with CheckCode. It
// returns all violations found.
func (p *Program) Validate() []error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	indexes := make(map[string]*Index)
	for rel, list := range p.Indexes {
		for _, idx := range list {
			if idx.Relation != rel {
				bad("index %s: filed under %s but matches %s", idx.Name, rel, idx.Relation)
			}
			indexes[idx.Name] = idx
			for _, k := range idx.Key {
				if k < 0 || k >= idx.Slots {
					bad("index %s: key slot %d out of range", idx.Name, k)
				}
			}
			if idx.Arity+1 > idx.Slots {
				bad("index %s: %d slots cannot hold %d args and a value", idx.Name, idx.Slots, idx.Arity)
			}
			for _, err := range CheckCode(idx.Code, idx.Slots) {
				bad("index %s: %w", idx.Name, err)
			}
			if step, ok := p.Steps[idx.Step]; !ok || step.Kind != StepJoin || step.Index != idx.Name {
				bad("index %s: serves unknown join %s", idx.Name, idx.Step)
			}
		}
	}

	for _, name := range p.StepNames() {
		s := p.Steps[name]
		if s.Name != name {
			bad("step %s: filed under %s", s.Name, name)
		}
		var env int
		switch s.Kind {
		case StepJoin:
			idx, ok := indexes[s.Index]
			if !ok {
				bad("step %s: unknown index %s", name, s.Index)
				continue
			}
			if idx.Shared != s.Shared || s.Shared > len(s.Vars) {
				bad("step %s: shared layout %d disagrees with index %s (%d)", name, s.Shared, idx.Name, idx.Shared)
			}
			if len(idx.Key)-idx.Shared != len(s.Introduced) {
				bad("step %s: index %s introduces %d values, step expects %d", name, idx.Name, len(idx.Key)-idx.Shared, len(s.Introduced))
			}
			env = len(s.Vars) + len(s.Introduced)
		case StepBuiltin, StepConclude:
			if s.Slots < len(s.Vars) {
				bad("step %s: %d slots cannot hold %d prefix values", name, s.Slots, len(s.Vars))
			}
			for _, err := range CheckCode(s.Code, s.Slots) {
				bad("step %s: %w", name, err)
			}
			env = s.Slots
		case StepDemand, StepForbid:
		default:
			bad("step %s: unknown kind %q", name, s.Kind)
		}
		if s.Kind == StepJoin || s.Kind == StepBuiltin {
			next, ok := p.Steps[s.Next]
			if !ok {
				bad("step %s: next step %s not found", name, s.Next)
			} else if len(next.Vars) != len(s.NextFrom) {
				bad("step %s: next %s expects %d values, got %d", name, s.Next, len(next.Vars), len(s.NextFrom))
			}
			for _, i := range s.NextFrom {
				if i < 0 || i >= env {
					bad("step %s: env position %d out of range", name, i)
				}
			}
		}
		if s.Kind == StepConclude {
			if _, ok := p.Relations[s.Relation]; !ok {
				bad("step %s: concludes undeclared relation %s", name, s.Relation)
			}
			if len(s.ValueSlots) == 0 {
				bad("step %s: conclusion has no values", name)
			}
			for _, slot := range append(slices.Clone(s.ArgSlots), s.ValueSlots...) {
				if slot < 0 || slot >= s.Slots {
					bad("step %s: slot %d out of range", name, slot)
				}
			}
		}
	}

	for _, seed := range p.Seeds {
		if s, ok := p.Steps[seed]; !ok || len(s.Vars) != 0 {
			bad("seed %s: must name a step with an empty prefix", seed)
		}
	}
	for _, d := range p.Demands {
		if s, ok := p.Steps[d]; !ok || s.Kind != StepDemand {
			bad("demand %s: not a demand step", d)
		}
	}
	for _, f := range p.Forbids {
		if s, ok := p.Steps[f]; !ok || s.Kind != StepForbid {
			bad("forbid %s: not a forbid step", f)
		}
	}
	return errs
}

// CheckCode verifies that code can run on a machine with the given number
// of memory slots: slot operands are in range, counts are non-negative,
// and no instruction pops more than the stack holds. The stack starts
// empty and every instruction moves it by a fixed amount, so one pass
// over the code covers every path.
func CheckCode(code []Instr, slots int) []error {
	var errs []error
	depth := 0
	for pc, in := range code {
		bad := func(format string, args ...any) {
			errs = append(errs, fmt.Errorf("code[%d] %s: %s", pc, in.Op, fmt.Sprintf(format, args...)))
		}
		need, push := 0, 0
		switch in.Op {
		case OpConst:
			push = 1
		case OpLoad, OpStore:
			if in.Arg < 0 || in.Arg >= slots {
				bad("slot %d out of range (%d slots)", in.Arg, slots)
			}
			if in.Op == OpLoad {
				push = 1
			} else {
				need = 1
			}
		case OpDup:
			need, push = 1, 2
		case OpPop:
			need = 1
		case OpEqual, OpNotEqual, OpLess, OpLessEq, OpGreater, OpGreaterEq:
			need = 2
		case OpMinus, OpStripPrefix, OpStripSuffix:
			need, push = 2, 1
		case OpPlus, OpTimes, OpConcat, OpBuild:
			need, push = in.Arg, 1
		case OpExplode:
			need, push = 1, in.Arg
		case OpSplit:
			known := 0
			for _, k := range in.Mask {
				if k {
					known++
				}
			}
			need, push = known+1, len(in.Mask)-known
		case OpFail:
			// Nothing after Fail runs.
			return errs
		default:
			bad("unknown opcode")
			return errs
		}
		if in.Arg < 0 && countsOperands(in.Op) {
			bad("negative count %d", in.Arg)
			return errs
		}
		if need > depth {
			bad("pops %d with %d on the stack", need, depth)
			return errs
		}
		depth += push - need
	}
	return errs
}

func countsOperands(op Op) bool {
	switch op {
	case OpPlus, OpTimes, OpConcat, OpBuild, OpExplode:
		return true
	}
	return false
}
