package ast

// Builtin identifies an entry in the builtin catalog.
type Builtin int

const (
	// BuiltinNone marks an ordinary (user-defined) relation.
	BuiltinNone Builtin = iota
	BooleanTrue
	BooleanFalse
	NatZero
	NatSucc
	IntPlus
	IntMinus
	IntTimes
	StringConcat
	Gt
	Geq
	Lt
	Leq
	Equal
	NotEqual
)

var builtinNames = map[Builtin]string{
	BooleanTrue:  "BOOLEAN_TRUE",
	BooleanFalse: "BOOLEAN_FALSE",
	NatZero:      "NAT_ZERO",
	NatSucc:      "NAT_SUCC",
	IntPlus:      "INT_PLUS",
	IntMinus:     "INT_MINUS",
	IntTimes:     "INT_TIMES",
	StringConcat: "STRING_CONCAT",
	Gt:           "GT",
	Geq:          "GEQ",
	Lt:           "LT",
	Leq:          "LEQ",
	Equal:        "EQUAL",
	NotEqual:     "NOT_EQUAL",
}

var builtinsByName = func() map[string]Builtin {
	m := make(map[string]Builtin, len(builtinNames))
	for b, name := range builtinNames {
		m[name] = b
	}
	return m
}()

func (b Builtin) String() string {
	if name, ok := builtinNames[b]; ok {
		return name
	}
	return "NONE"
}

// ParseBuiltin resolves a catalog name such as "INT_PLUS".
func ParseBuiltin(name string) (Builtin, bool) {
	b, ok := builtinsByName[name]
	return b, ok
}

// Arity returns the minimum and maximum argument count; max < 0 means
// unbounded.
func (b Builtin) Arity() (int, int) {
	switch b {
	case BooleanTrue, BooleanFalse, NatZero:
		return 0, 0
	case NatSucc:
		return 1, 1
	case IntPlus, IntTimes:
		return 1, -1
	case StringConcat:
		return 1, -1
	case IntMinus, Gt, Geq, Lt, Leq, Equal, NotEqual:
		return 2, 2
	default:
		return 0, -1
	}
}

// IsConstraint reports builtins that only test their arguments and carry
// no value (comparisons and equality).
func (b Builtin) IsConstraint() bool {
	switch b {
	case Gt, Geq, Lt, Leq, Equal, NotEqual:
		return true
	}
	return false
}

// SupportsMode reports whether b can run when exactly the arguments
// flagged in argsBound (and the value, if valueBound) are ground before
// the premise executes. Unbound positions are computed and then matched.
func (b Builtin) SupportsMode(argsBound []bool, valueBound bool) bool {
	unbound := 0
	for _, bound := range argsBound {
		if !bound {
			unbound++
		}
	}
	switch b {
	case BooleanTrue, BooleanFalse, NatZero:
		// Forward-only, no arguments.
		return true
	case NatSucc, IntPlus, IntMinus:
		// Fully reversible in any single unknown.
		if !valueBound {
			unbound++
		}
		return unbound <= 1
	case IntTimes, Gt, Geq, Lt, Leq, NotEqual:
		// Forward-only.
		return unbound == 0
	case StringConcat:
		// Forward, or any split of a known result.
		return unbound == 0 || valueBound
	case Equal:
		// Either side may be unknown, not both.
		return unbound <= 1
	default:
		return false
	}
}
