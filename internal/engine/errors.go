package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dusa/internal/term"
)

// ErrExhausted is returned by Next once every branch has been explored.
var ErrExhausted = errors.New("search exhausted")

// ConflictKind categorizes why a branch of the search died.
type ConflictKind string

const (
	// ConflictIncompatible: an exhaustive conclusion excludes the value the
	// attribute is already committed to.
	ConflictIncompatible ConflictKind = "incompatible"

	// ConflictExcluded: every value an exhaustive conclusion allows has
	// already been ruled out for the attribute.
	ConflictExcluded ConflictKind = "excluded"

	// ConflictForbid: a forbid declaration's premises all hold.
	ConflictForbid ConflictKind = "forbid"

	// ConflictDemand: the branch saturated with a demand still unmet.
	ConflictDemand ConflictKind = "demand"
)

// Conflict describes a dead end. Conflicts are ordinary search outcomes
// that prune a branch; they are never returned as errors.
type Conflict struct {
	Kind ConflictKind

	// Relation and Args name the attribute (incompatible, excluded).
	Relation string
	Args     []term.Data

	// Values holds the offered values that could not be accepted, and Held
	// the committed value or the excluded set they clashed with.
	Values []term.Data
	Held   []term.Data

	// Step names the forbid or demand step involved.
	Step string
}

// Format renders the conflict with terms resolved against store.
func (c *Conflict) Format(store *term.Store) string {
	switch c.Kind {
	case ConflictForbid:
		return fmt.Sprintf("%s: %s matched", c.Kind, c.Step)
	case ConflictDemand:
		return fmt.Sprintf("%s: %s never matched", c.Kind, c.Step)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", c.Kind, c.Relation)
	for _, arg := range c.Args {
		b.WriteByte(' ')
		b.WriteString(store.Format(arg))
	}
	fmt.Fprintf(&b, " offered %s, holds %s", formatSet(store, c.Values), formatSet(store, c.Held))
	return b.String()
}

func formatSet(store *term.Store, ds []term.Data) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = store.Format(d)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// InvariantError reports engine or compiler bugs detected at run time: a
// step or index the program does not define, or a choice tree in an
// impossible shape. It is raised with panic and never recovered by the
// engine.
type InvariantError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("engine invariant violated in %s: %s", e.Op, e.Message)
}

func invariant(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Message: fmt.Sprintf(format, args...)})
}

// IsInvariantError returns true if the error is an InvariantError.
// Uses errors.As to handle wrapped errors.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
