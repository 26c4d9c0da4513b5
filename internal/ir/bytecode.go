package ir

import (
	"fmt"
	"strings"

	"github.com/roach88/dusa/internal/term"
)

// Op is a stack machine opcode.
type Op byte

const (
	OpConst       Op = iota + 1 // push Data
	OpLoad                      // push mem[Arg] (a known substitution variable)
	OpStore                     // pop into mem[Arg] (a newly bound slot)
	OpDup                       // duplicate top
	OpPop                       // discard top
	OpEqual                     // pop b, a: continue iff a == b
	OpNotEqual                  // pop b, a: continue iff a != b
	OpLess                      // pop b, a: continue iff a < b (ints or strings)
	OpLessEq                    // pop b, a: continue iff a <= b
	OpGreater                   // pop b, a: continue iff a > b
	OpGreaterEq                 // pop b, a: continue iff a >= b
	OpPlus                      // pop Arg ints, push their sum
	OpMinus                     // pop b, a: push a - b
	OpTimes                     // pop Arg ints, push their product
	OpConcat                    // pop Arg strings, push their concatenation
	OpStripPrefix               // pop p, s: push s without prefix p, or fail
	OpStripSuffix               // pop p, s: push s without suffix p, or fail
	OpExplode                   // pop d: if d is Name/Arg push its args (first on top), else fail
	OpBuild                     // pop Arg values (first pushed is first arg), push Name applied to them
	OpFail                      // fail unconditionally
	OpSplit                     // nondeterministic: see below
)

// OpSplit pops the parts flagged known in Mask (in order, last on top) and
// then the target string. For every way of filling the unknown parts so the
// concatenation of all parts equals the target, it pushes the unknown parts
// (first unknown on top) and continues.

var opNames = map[Op]string{
	OpConst:       "const",
	OpLoad:        "load",
	OpStore:       "store",
	OpDup:         "dup",
	OpPop:         "pop",
	OpEqual:       "equal",
	OpNotEqual:    "not-equal",
	OpLess:        "less",
	OpLessEq:      "less-eq",
	OpGreater:     "greater",
	OpGreaterEq:   "greater-eq",
	OpPlus:        "plus",
	OpMinus:       "minus",
	OpTimes:       "times",
	OpConcat:      "concat",
	OpStripPrefix: "strip-prefix",
	OpStripSuffix: "strip-suffix",
	OpExplode:     "explode",
	OpBuild:       "build",
	OpFail:        "fail",
	OpSplit:       "split",
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", byte(op))
}

// ParseOp resolves an opcode mnemonic.
func ParseOp(name string) (Op, bool) {
	op, ok := opsByName[name]
	return op, ok
}

// Instr is one stack machine instruction. Which operands are meaningful
// depends on Op.
type Instr struct {
	Op   Op
	Arg  int       // slot, count, or arity
	Name string    // constructor for Explode/Build
	Data term.Data // constant for Const
	Mask []bool    // known parts for Split
}

// Format renders instructions one per line, resolving constants.
func Format(store *term.Store, code []Instr) string {
	var b strings.Builder
	for i, in := range code {
		fmt.Fprintf(&b, "%3d %s", i, in.Op)
		switch in.Op {
		case OpConst:
			fmt.Fprintf(&b, " %s", store.Format(in.Data))
		case OpLoad, OpStore, OpPlus, OpTimes, OpConcat:
			fmt.Fprintf(&b, " %d", in.Arg)
		case OpExplode, OpBuild:
			fmt.Fprintf(&b, " %s/%d", in.Name, in.Arg)
		case OpSplit:
			fmt.Fprintf(&b, " %v", in.Mask)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
