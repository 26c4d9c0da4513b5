// Package pmap provides immutable, structurally shared maps for search
// state: an AVL tree keyed by an explicit comparator, a trie of AVL trees
// keyed by term tuples, and a table of tries keyed by relation name.
//
// Every update returns a new value; the receiver is left untouched and
// shares all unmodified subtrees with the result. Copying a state to fork
// a branch is therefore O(1).
package pmap

import (
	"cmp"
	"iter"
)

type node[K, V any] struct {
	key         K
	value       V
	left, right *node[K, V]
	height      int
	size        int
}

// Map is a persistent AVL tree. The zero Map is empty but has no
// comparator; use New or NewOrdered before calling Set.
type Map[K, V any] struct {
	root *node[K, V]
	cmp  func(a, b K) int
}

// New returns an empty map ordered by compare.
func New[K, V any](compare func(a, b K) int) Map[K, V] {
	return Map[K, V]{cmp: compare}
}

// NewOrdered returns an empty map over a naturally ordered key type.
func NewOrdered[K cmp.Ordered, V any]() Map[K, V] {
	return Map[K, V]{cmp: cmp.Compare[K]}
}

// Size returns the number of entries. O(1).
func (m Map[K, V]) Size() int {
	return sizeOf(m.root)
}

// Get looks up k.
func (m Map[K, V]) Get(k K) (V, bool) {
	n := m.root
	for n != nil {
		c := m.cmp(k, n.key)
		switch {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.value, true
		}
	}
	var zero V
	return zero, false
}

// Set returns a map with k bound to v.
func (m Map[K, V]) Set(k K, v V) Map[K, V] {
	if m.cmp == nil {
		panic("pmap: Set on a Map without a comparator")
	}
	return Map[K, V]{root: insert(m.root, k, v, m.cmp), cmp: m.cmp}
}

// Remove returns a map without k. If k is absent the receiver is returned.
func (m Map[K, V]) Remove(k K) Map[K, V] {
	if m.root == nil {
		return m
	}
	root, ok := remove(m.root, k, m.cmp)
	if !ok {
		return m
	}
	return Map[K, V]{root: root, cmp: m.cmp}
}

// PopArbitrary removes and returns some entry. Repeated pops visit every
// entry exactly once; this implementation pops the minimum.
func (m Map[K, V]) PopArbitrary() (K, V, Map[K, V], bool) {
	if m.root == nil {
		var k K
		var v V
		return k, v, m, false
	}
	k, v, rest := removeMin(m.root)
	return k, v, Map[K, V]{root: rest, cmp: m.cmp}, true
}

// All iterates entries in key order.
func (m Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		walk(m.root, yield)
	}
}

func walk[K, V any](n *node[K, V], yield func(K, V) bool) bool {
	if n == nil {
		return true
	}
	return walk(n.left, yield) && yield(n.key, n.value) && walk(n.right, yield)
}

func heightOf[K, V any](n *node[K, V]) int {
	if n == nil {
		return 0
	}
	return n.height
}

func sizeOf[K, V any](n *node[K, V]) int {
	if n == nil {
		return 0
	}
	return n.size
}

func mk[K, V any](k K, v V, l, r *node[K, V]) *node[K, V] {
	return &node[K, V]{
		key:    k,
		value:  v,
		left:   l,
		right:  r,
		height: max(heightOf(l), heightOf(r)) + 1,
		size:   sizeOf(l) + sizeOf(r) + 1,
	}
}

// balance rebuilds a node whose children differ in height by at most two.
func balance[K, V any](k K, v V, l, r *node[K, V]) *node[K, V] {
	hl, hr := heightOf(l), heightOf(r)
	switch {
	case hl > hr+1:
		if heightOf(l.left) >= heightOf(l.right) {
			return mk(l.key, l.value, l.left, mk(k, v, l.right, r))
		}
		lr := l.right
		return mk(lr.key, lr.value, mk(l.key, l.value, l.left, lr.left), mk(k, v, lr.right, r))
	case hr > hl+1:
		if heightOf(r.right) >= heightOf(r.left) {
			return mk(r.key, r.value, mk(k, v, l, r.left), r.right)
		}
		rl := r.left
		return mk(rl.key, rl.value, mk(k, v, l, rl.left), mk(r.key, r.value, rl.right, r.right))
	default:
		return mk(k, v, l, r)
	}
}

func insert[K, V any](n *node[K, V], k K, v V, compare func(a, b K) int) *node[K, V] {
	if n == nil {
		return mk[K, V](k, v, nil, nil)
	}
	c := compare(k, n.key)
	switch {
	case c < 0:
		return balance(n.key, n.value, insert(n.left, k, v, compare), n.right)
	case c > 0:
		return balance(n.key, n.value, n.left, insert(n.right, k, v, compare))
	default:
		return mk(k, v, n.left, n.right)
	}
}

func removeMin[K, V any](n *node[K, V]) (K, V, *node[K, V]) {
	if n.left == nil {
		return n.key, n.value, n.right
	}
	k, v, l := removeMin(n.left)
	return k, v, balance(n.key, n.value, l, n.right)
}

func remove[K, V any](n *node[K, V], k K, compare func(a, b K) int) (*node[K, V], bool) {
	if n == nil {
		return nil, false
	}
	c := compare(k, n.key)
	switch {
	case c < 0:
		l, ok := remove(n.left, k, compare)
		if !ok {
			return n, false
		}
		return balance(n.key, n.value, l, n.right), true
	case c > 0:
		r, ok := remove(n.right, k, compare)
		if !ok {
			return n, false
		}
		return balance(n.key, n.value, n.left, r), true
	}
	if n.left == nil {
		return n.right, true
	}
	if n.right == nil {
		return n.left, true
	}
	sk, sv, r := removeMin(n.right)
	return balance(sk, sv, n.left, r), true
}
