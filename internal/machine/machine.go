// Package machine interprets compiled bytecode over term handles.
//
// A run starts with memory preloaded with known values and an empty
// stack. Instructions either continue, fail the current path, or (Split)
// fork it. Every path that reaches the end of the code is reported to the
// caller's yield function with its final memory.
package machine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/dusa/internal/ast"
	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/term"
)

// Result summarizes a run: how many paths matched, how many hit a type
// error, and the first type error's reason.
type Result struct {
	Matches    int
	TypeErrors int
	Reason     string
	stopped    bool
}

// Status collapses the result to the ternary outcome.
func (r Result) Status() ast.MatchStatus {
	switch {
	case r.Matches > 0:
		return ast.Matched
	case r.TypeErrors > 0:
		return ast.TypeError
	default:
		return ast.NoMatch
	}
}

// Machine executes code against one term store. It keeps no state
// between runs, but the store it interns into is not safe for concurrent use.
type Machine struct {
	store *term.Store
}

// New returns a machine for store.
func New(store *term.Store) *Machine {
	return &Machine{store: store}
}

// Run executes code. mem must be sized for the code's slots with known
// values already loaded. yield is called once per successful path with
// that path's memory; the slice is only valid during the call. Returning
// false from yield stops the run.
func (m *Machine) Run(code []ir.Instr, mem []term.Data, yield func(mem []term.Data) bool) Result {
	var res Result
	m.exec(code, 0, make([]term.Data, 0, 8), mem, yield, &res)
	return res
}

// RunOnce executes deterministic code and returns its final memory on a
// match. If the code forks, only the first path is kept.
func (m *Machine) RunOnce(code []ir.Instr, mem []term.Data) ([]term.Data, Result) {
	var out []term.Data
	res := m.Run(code, mem, func(final []term.Data) bool {
		out = append([]term.Data(nil), final...)
		return false
	})
	return out, res
}

func (m *Machine) typeError(res *Result, format string, args ...any) {
	res.TypeErrors++
	if res.Reason == "" {
		res.Reason = fmt.Sprintf(format, args...)
	}
}

func (m *Machine) exec(code []ir.Instr, pc int, stack, mem []term.Data, yield func([]term.Data) bool, res *Result) {
	pop := func() term.Data {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return d
	}

	for ; pc < len(code); pc++ {
		in := code[pc]
		switch in.Op {
		case ir.OpConst:
			stack = append(stack, in.Data)
		case ir.OpLoad:
			stack = append(stack, mem[in.Arg])
		case ir.OpStore:
			mem[in.Arg] = pop()
		case ir.OpDup:
			stack = append(stack, stack[len(stack)-1])
		case ir.OpPop:
			pop()

		case ir.OpEqual, ir.OpNotEqual:
			b, a := pop(), pop()
			if (a == b) != (in.Op == ir.OpEqual) {
				return
			}

		case ir.OpLess, ir.OpLessEq, ir.OpGreater, ir.OpGreaterEq:
			b, a := pop(), pop()
			c, ok := m.compare(a, b)
			if !ok {
				m.typeError(res, "%s: cannot compare %s and %s", in.Op, m.store.Format(a), m.store.Format(b))
				return
			}
			if !holds(in.Op, c) {
				return
			}

		case ir.OpPlus, ir.OpTimes:
			acc := int64(0)
			if in.Op == ir.OpTimes {
				acc = 1
			}
			for i := 0; i < in.Arg; i++ {
				d := pop()
				n, ok := d.AsInt()
				if !ok {
					m.typeError(res, "%s: %s is not an integer", in.Op, m.store.Format(d))
					return
				}
				if in.Op == ir.OpPlus {
					acc += n
				} else {
					acc *= n
				}
			}
			stack = append(stack, term.IntData(acc))

		case ir.OpMinus:
			b, a := pop(), pop()
			x, okA := a.AsInt()
			y, okB := b.AsInt()
			if !okA || !okB {
				m.typeError(res, "minus: %s - %s is not integer arithmetic", m.store.Format(a), m.store.Format(b))
				return
			}
			stack = append(stack, term.IntData(x-y))

		case ir.OpConcat:
			parts := make([]string, in.Arg)
			for i := in.Arg - 1; i >= 0; i-- {
				d := pop()
				s, ok := m.str(d)
				if !ok {
					m.typeError(res, "concat: %s is not a string", m.store.Format(d))
					return
				}
				parts[i] = s
			}
			stack = append(stack, m.store.String(strings.Join(parts, "")))

		case ir.OpStripPrefix, ir.OpStripSuffix:
			p, s := pop(), pop()
			affix, ok1 := m.str(p)
			whole, ok2 := m.str(s)
			if !ok1 || !ok2 {
				m.typeError(res, "%s: expected strings", in.Op)
				return
			}
			var rest string
			var found bool
			if in.Op == ir.OpStripPrefix {
				rest, found = strings.CutPrefix(whole, affix)
			} else {
				rest, found = strings.CutSuffix(whole, affix)
			}
			if !found {
				return
			}
			stack = append(stack, m.store.String(rest))

		case ir.OpExplode:
			d := pop()
			v, ok := m.store.Expose(d).(term.Const)
			if !ok || v.Name != in.Name || len(v.Args) != in.Arg {
				return
			}
			for i := len(v.Args) - 1; i >= 0; i-- {
				stack = append(stack, v.Args[i])
			}

		case ir.OpBuild:
			args := make([]term.Data, in.Arg)
			for i := in.Arg - 1; i >= 0; i-- {
				args[i] = pop()
			}
			stack = append(stack, m.store.Const(in.Name, args...))

		case ir.OpFail:
			return

		case ir.OpSplit:
			m.split(code, pc, stack, mem, yield, res)
			return

		default:
			panic(fmt.Sprintf("machine: unknown opcode %d at %d", in.Op, pc))
		}
	}

	if res.stopped {
		return
	}
	res.Matches++
	if !yield(mem) {
		res.stopped = true
	}
}

// split forks the run once per way of cutting the target string.
func (m *Machine) split(code []ir.Instr, pc int, stack, mem []term.Data, yield func([]term.Data) bool, res *Result) {
	in := code[pc]
	known := make(map[int]string)
	for i := len(in.Mask) - 1; i >= 0; i-- {
		if !in.Mask[i] {
			continue
		}
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s, ok := m.str(d)
		if !ok {
			m.typeError(res, "concat: %s is not a string", m.store.Format(d))
			return
		}
		known[i] = s
	}
	d := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	target, ok := m.str(d)
	if !ok {
		m.typeError(res, "concat: %s is not a string", m.store.Format(d))
		return
	}

	parts := make([]string, len(in.Mask))
	for i, s := range known {
		parts[i] = s
	}
	for filled := range Splits(target, in.Mask, parts) {
		if res.stopped {
			return
		}
		next := append(make([]term.Data, 0, len(stack)+len(filled)), stack...)
		for i := len(filled) - 1; i >= 0; i-- {
			next = append(next, m.store.String(filled[i]))
		}
		m.exec(code, pc+1, next, append([]term.Data(nil), mem...), yield, res)
	}
}

func (m *Machine) str(d term.Data) (string, bool) {
	v, ok := m.store.Expose(d).(term.String)
	return string(v), ok
}

// compare orders two integers or two strings.
func (m *Machine) compare(a, b term.Data) (int, bool) {
	if x, ok := a.AsInt(); ok {
		y, ok := b.AsInt()
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	x, ok1 := m.str(a)
	y, ok2 := m.str(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	return strings.Compare(x, y), true
}

func holds(op ir.Op, c int) bool {
	switch op {
	case ir.OpLess:
		return c < 0
	case ir.OpLessEq:
		return c <= 0
	case ir.OpGreater:
		return c > 0
	default:
		return c >= 0
	}
}

// runeCuts returns the byte offsets of every rune boundary in s,
// including 0 and len(s).
func runeCuts(s string) []int {
	cuts := make([]int, 0, utf8.RuneCountInString(s)+1)
	for i := range s {
		cuts = append(cuts, i)
	}
	return append(cuts, len(s))
}
