package pmap

import (
	"iter"
	"strings"

	"github.com/roach88/dusa/internal/term"
)

type trieNode[V any] struct {
	value    V
	leaf     bool
	size     int // leaves at or below this node
	children Map[term.Data, *trieNode[V]]
}

func newTrieNode[V any]() *trieNode[V] {
	return &trieNode[V]{children: New[term.Data, *trieNode[V]](term.Compare)}
}

// Trie maps tuples of term handles to values, one AVL level per position.
// The zero Trie is empty and ready to use.
type Trie[V any] struct {
	root *trieNode[V]
}

// Size returns the number of stored tuples.
func (t Trie[V]) Size() int {
	if t.root == nil {
		return 0
	}
	return t.root.size
}

// Get looks up an exact tuple.
func (t Trie[V]) Get(keys []term.Data) (V, bool) {
	n := t.root
	for _, k := range keys {
		if n == nil {
			break
		}
		n, _ = n.children.Get(k)
	}
	if n == nil || !n.leaf {
		var zero V
		return zero, false
	}
	return n.value, true
}

// Set returns a trie with keys bound to v.
func (t Trie[V]) Set(keys []term.Data, v V) Trie[V] {
	root, _ := setTrie(t.root, keys, v)
	return Trie[V]{root: root}
}

func setTrie[V any](n *trieNode[V], keys []term.Data, v V) (*trieNode[V], bool) {
	var cp trieNode[V]
	if n != nil {
		cp = *n
	} else {
		cp = *newTrieNode[V]()
	}
	if len(keys) == 0 {
		added := !cp.leaf
		cp.value = v
		cp.leaf = true
		if added {
			cp.size++
		}
		return &cp, added
	}
	child, _ := cp.children.Get(keys[0])
	nc, added := setTrie(child, keys[1:], v)
	cp.children = cp.children.Set(keys[0], nc)
	if added {
		cp.size++
	}
	return &cp, added
}

// Remove returns a trie without the tuple. Absent tuples leave it unchanged.
func (t Trie[V]) Remove(keys []term.Data) Trie[V] {
	root, ok := removeTrie(t.root, keys)
	if !ok {
		return t
	}
	return Trie[V]{root: root}
}

func removeTrie[V any](n *trieNode[V], keys []term.Data) (*trieNode[V], bool) {
	if n == nil {
		return nil, false
	}
	cp := *n
	if len(keys) == 0 {
		if !n.leaf {
			return n, false
		}
		var zero V
		cp.value = zero
		cp.leaf = false
	} else {
		child, ok := n.children.Get(keys[0])
		if !ok {
			return n, false
		}
		nc, removed := removeTrie(child, keys[1:])
		if !removed {
			return n, false
		}
		if nc == nil {
			cp.children = cp.children.Remove(keys[0])
		} else {
			cp.children = cp.children.Set(keys[0], nc)
		}
	}
	cp.size--
	if cp.size == 0 {
		return nil, true
	}
	return &cp, true
}

// Lookup enumerates every stored tuple that starts with prefix, yielding
// the remaining suffix and its value. Work is proportional to the number
// of matches, not to the size of the trie.
func (t Trie[V]) Lookup(prefix []term.Data) iter.Seq2[[]term.Data, V] {
	return func(yield func([]term.Data, V) bool) {
		n := t.root
		for _, k := range prefix {
			if n == nil {
				return
			}
			n, _ = n.children.Get(k)
		}
		if n == nil {
			return
		}
		visitTrie(n, nil, yield)
	}
}

// All enumerates every stored tuple.
func (t Trie[V]) All() iter.Seq2[[]term.Data, V] {
	return t.Lookup(nil)
}

func visitTrie[V any](n *trieNode[V], path []term.Data, yield func([]term.Data, V) bool) bool {
	if n.leaf {
		out := make([]term.Data, len(path))
		copy(out, path)
		if !yield(out, n.value) {
			return false
		}
	}
	for k, child := range n.children.All() {
		if !visitTrie(child, append(path, k), yield) {
			return false
		}
	}
	return true
}

// PopArbitrary removes and returns some tuple (the least one).
func (t Trie[V]) PopArbitrary() ([]term.Data, V, Trie[V], bool) {
	for keys, v := range t.All() {
		return keys, v, t.Remove(keys), true
	}
	var zero V
	return nil, zero, t, false
}

// Key names one entry of a Table: a relation and its argument tuple.
type Key struct {
	Name string
	Args []term.Data
}

// Table maps (name, args) composite keys to values. The zero Table is
// empty and ready to use.
type Table[V any] struct {
	rels Map[string, Trie[V]]
	size int
}

func (t Table[V]) relations() Map[string, Trie[V]] {
	if t.rels.cmp == nil {
		return New[string, Trie[V]](strings.Compare)
	}
	return t.rels
}

// Size returns the number of stored keys across all names.
func (t Table[V]) Size() int {
	return t.size
}

// Get looks up (name, args).
func (t Table[V]) Get(name string, args []term.Data) (V, bool) {
	tr, ok := t.rels.Get(name)
	if !ok {
		var zero V
		return zero, false
	}
	return tr.Get(args)
}

// Has reports whether any key is stored under name.
func (t Table[V]) Has(name string) bool {
	tr, ok := t.rels.Get(name)
	return ok && tr.Size() > 0
}

// Set returns a table with (name, args) bound to v.
func (t Table[V]) Set(name string, args []term.Data, v V) Table[V] {
	rels := t.relations()
	tr, _ := rels.Get(name)
	before := tr.Size()
	tr = tr.Set(args, v)
	return Table[V]{rels: rels.Set(name, tr), size: t.size + tr.Size() - before}
}

// Remove returns a table without (name, args).
func (t Table[V]) Remove(name string, args []term.Data) Table[V] {
	tr, ok := t.rels.Get(name)
	if !ok {
		return t
	}
	before := tr.Size()
	tr = tr.Remove(args)
	if tr.Size() == before {
		return t
	}
	if tr.Size() == 0 {
		return Table[V]{rels: t.rels.Remove(name), size: t.size - before}
	}
	return Table[V]{rels: t.rels.Set(name, tr), size: t.size - 1}
}

// Lookup enumerates entries under name whose args start with prefix.
func (t Table[V]) Lookup(name string, prefix []term.Data) iter.Seq2[[]term.Data, V] {
	tr, _ := t.rels.Get(name)
	return tr.Lookup(prefix)
}

// All enumerates every entry, grouped by name in order.
func (t Table[V]) All() iter.Seq2[Key, V] {
	return func(yield func(Key, V) bool) {
		for name, tr := range t.rels.All() {
			for args, v := range tr.All() {
				if !yield(Key{Name: name, Args: args}, v) {
					return
				}
			}
		}
	}
}

// PopArbitrary removes and returns some entry.
func (t Table[V]) PopArbitrary() (Key, V, Table[V], bool) {
	for k, v := range t.All() {
		return k, v, t.Remove(k.Name, k.Args), true
	}
	var zero V
	return Key{}, zero, t, false
}
