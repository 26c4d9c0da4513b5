package term

// View is a sealed interface describing the decoded shape of a Data handle.
// Only Trivial, Int, Bool, String, and Const implement this.
type View interface {
	view() // Sealed - only these types implement it
}

// Trivial is the unit value, written ().
type Trivial struct{}

func (Trivial) view() {}

// Int is a 64-bit integer.
type Int int64

func (Int) view() {}

// Bool is a boolean, written #tt or #ff.
type Bool bool

func (Bool) view() {}

// String is a string literal.
type String string

func (String) view() {}

// Const is a named constructor applied to already-interned arguments.
// A zero-argument Const is an atom such as tt or ff.
type Const struct {
	Name string
	Args []Data
}

func (Const) view() {}
