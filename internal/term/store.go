package term

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Data is a handle to a ground value.
//
// Integers are carried inline. Every other value is an index into the
// Store that interned it. Data is comparable: == is structural equality
// for handles from the same store.
type Data struct {
	owner uint32 // 0 for unboxed integers
	ref   bool
	bits  int64
}

// IntData returns the unboxed handle for n. It needs no store.
func IntData(n int64) Data {
	return Data{bits: n}
}

// AsInt reports the integer carried by d, if d is an unboxed integer.
func (d Data) AsInt() (int64, bool) {
	if d.ref {
		return 0, false
	}
	return d.bits, true
}

// Compare orders handles without decoding them.
// Integers sort before interned values, integers by value, interned values
// by store and then by interning order.
func Compare(a, b Data) int {
	if a.ref != b.ref {
		if !a.ref {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.owner, b.owner); c != 0 {
		return c
	}
	return cmp.Compare(a.bits, b.bits)
}

// CompareSlices orders equal-length or prefix-related handle tuples
// lexicographically.
func CompareSlices(a, b []Data) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// ForeignHandleError is raised (as a panic) when a handle is presented to a
// store that did not produce it. This is an engine invariant violation.
type ForeignHandleError struct {
	Handle Data
	Store  uint32
}

// Error implements the error interface.
func (e *ForeignHandleError) Error() string {
	return fmt.Sprintf("term handle %d (store %d) is foreign to store %d", e.Handle.bits, e.Handle.owner, e.Store)
}

var storeIDs atomic.Uint32

// canonNode is one level of the canonicalization trie: the root for a
// constructor name, then one level per already-canonical argument.
type canonNode struct {
	handle Data
	set    bool
	next   map[Data]*canonNode
}

// Store interns ground values. It is append-only and not safe for
// concurrent mutation; one store serves one compiled program instance.
type Store struct {
	id      uint32
	views   []View
	trivial Data
	bools   [2]Data
	strs    map[string]Data
	consts  map[string]*canonNode
}

// NewStore creates an empty store with the fixed values (trivial, #ff, #tt)
// pre-interned.
func NewStore() *Store {
	s := &Store{
		id:     storeIDs.Add(1),
		strs:   make(map[string]Data),
		consts: make(map[string]*canonNode),
	}
	s.trivial = s.push(Trivial{})
	s.bools[0] = s.push(Bool(false))
	s.bools[1] = s.push(Bool(true))
	return s
}

func (s *Store) push(v View) Data {
	d := Data{owner: s.id, ref: true, bits: int64(len(s.views))}
	s.views = append(s.views, v)
	return d
}

// Intern returns the canonical handle for v. Interning the same structure
// twice returns the same handle.
func (s *Store) Intern(v View) Data {
	switch val := v.(type) {
	case Trivial:
		return s.trivial
	case Int:
		return IntData(int64(val))
	case Bool:
		if val {
			return s.bools[1]
		}
		return s.bools[0]
	case String:
		if d, ok := s.strs[string(val)]; ok {
			return d
		}
		d := s.push(val)
		s.strs[string(val)] = d
		return d
	case Const:
		node, ok := s.consts[val.Name]
		if !ok {
			node = &canonNode{}
			s.consts[val.Name] = node
		}
		for _, arg := range val.Args {
			s.check(arg)
			if node.next == nil {
				node.next = make(map[Data]*canonNode)
			}
			child, ok := node.next[arg]
			if !ok {
				child = &canonNode{}
				node.next[arg] = child
			}
			node = child
		}
		if !node.set {
			var args []Data
			if len(val.Args) > 0 {
				args = make([]Data, len(val.Args))
				copy(args, val.Args)
			}
			node.handle = s.push(Const{Name: val.Name, Args: args})
			node.set = true
		}
		return node.handle
	default:
		panic(fmt.Sprintf("term: unknown view %T", v))
	}
}

func (s *Store) check(d Data) {
	if !d.ref {
		return
	}
	if d.owner != s.id || d.bits < 0 || d.bits >= int64(len(s.views)) {
		panic(&ForeignHandleError{Handle: d, Store: s.id})
	}
}

// Expose decodes d. The returned Const.Args must not be modified.
// Panics with *ForeignHandleError if d came from another store.
func (s *Store) Expose(d Data) View {
	if !d.ref {
		return Int(d.bits)
	}
	s.check(d)
	return s.views[d.bits]
}

// Lookup is Expose without the panic.
func (s *Store) Lookup(d Data) (View, bool) {
	if !d.ref {
		return Int(d.bits), true
	}
	if d.owner != s.id || d.bits < 0 || d.bits >= int64(len(s.views)) {
		return nil, false
	}
	return s.views[d.bits], true
}

// Len returns the number of interned (non-integer) values.
func (s *Store) Len() int {
	return len(s.views)
}

// Trivial returns the handle for ().
func (s *Store) Trivial() Data { return s.trivial }

// Bool returns the handle for #tt or #ff.
func (s *Store) Bool(b bool) Data { return s.Intern(Bool(b)) }

// String interns a string literal.
func (s *Store) String(str string) Data { return s.Intern(String(str)) }

// Int returns the unboxed handle for n.
func (s *Store) Int(n int64) Data { return IntData(n) }

// Const interns name applied to args.
func (s *Store) Const(name string, args ...Data) Data {
	return s.Intern(Const{Name: name, Args: args})
}

// Format renders d in surface notation: (), 42, "str", #tt, atom, (f a b).
func (s *Store) Format(d Data) string {
	var b strings.Builder
	s.format(&b, d)
	return b.String()
}

func (s *Store) format(b *strings.Builder, d Data) {
	switch v := s.Expose(d).(type) {
	case Trivial:
		b.WriteString("()")
	case Int:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case Bool:
		if v {
			b.WriteString("#tt")
		} else {
			b.WriteString("#ff")
		}
	case String:
		b.WriteString(strconv.Quote(string(v)))
	case Const:
		if len(v.Args) == 0 {
			b.WriteString(v.Name)
			return
		}
		b.WriteByte('(')
		b.WriteString(v.Name)
		for _, arg := range v.Args {
			b.WriteByte(' ')
			s.format(b, arg)
		}
		b.WriteByte(')')
	}
}
