package pmap

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dusa/internal/term"
)

// checkAVL verifies ordering, the height-balance invariant, and cached sizes.
func checkAVL[K, V any](t *testing.T, m Map[K, V]) {
	t.Helper()
	var check func(n *node[K, V]) (int, int)
	check = func(n *node[K, V]) (int, int) {
		if n == nil {
			return 0, 0
		}
		if n.left != nil {
			require.Negative(t, m.cmp(n.left.key, n.key), "left child must sort before parent")
		}
		if n.right != nil {
			require.Positive(t, m.cmp(n.right.key, n.key), "right child must sort after parent")
		}
		hl, sl := check(n.left)
		hr, sr := check(n.right)
		require.LessOrEqual(t, hl-hr, 1, "height-balanced")
		require.LessOrEqual(t, hr-hl, 1, "height-balanced")
		require.Equal(t, max(hl, hr)+1, n.height, "cached height")
		require.Equal(t, sl+sr+1, n.size, "cached size")
		return n.height, n.size
	}
	check(m.root)
}

func TestMap_SetGetRemove(t *testing.T) {
	m := NewOrdered[int, string]()

	m1 := m.Set(3, "c").Set(1, "a").Set(2, "b")
	assert.Equal(t, 0, m.Size(), "original map is untouched")
	assert.Equal(t, 3, m1.Size())

	v, ok := m1.Get(2)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	m2 := m1.Set(2, "B")
	v, _ = m2.Get(2)
	assert.Equal(t, "B", v)
	v, _ = m1.Get(2)
	assert.Equal(t, "b", v, "older version keeps its binding")

	m3 := m2.Remove(1)
	_, ok = m3.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 2, m3.Size())
	assert.Equal(t, 3, m2.Size())

	assert.Same(t, m3.root, m3.Remove(42).root, "removing an absent key shares the whole tree")
}

func TestMap_RandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := NewOrdered[int, int]()
	shadow := map[int]int{}
	versions := []Map[int, int]{}
	snapshots := []map[int]int{}

	for i := 0; i < 2000; i++ {
		k := rng.Intn(300)
		if rng.Intn(3) == 0 {
			m = m.Remove(k)
			delete(shadow, k)
		} else {
			m = m.Set(k, i)
			shadow[k] = i
		}
		if i%250 == 0 {
			versions = append(versions, m)
			cp := make(map[int]int, len(shadow))
			for k, v := range shadow {
				cp[k] = v
			}
			snapshots = append(snapshots, cp)
		}
		checkAVL(t, m)
	}

	require.Equal(t, len(shadow), m.Size())
	for k, v := range shadow {
		got, ok := m.Get(k)
		require.True(t, ok)
		require.Equal(t, v, got)
	}

	// Persistence: every saved version still answers like its snapshot.
	for i, old := range versions {
		require.Equal(t, len(snapshots[i]), old.Size())
		for k, v := range snapshots[i] {
			got, ok := old.Get(k)
			require.True(t, ok)
			require.Equal(t, v, got)
		}
	}
}

func TestMap_AllInOrder(t *testing.T) {
	m := NewOrdered[int, bool]()
	for _, k := range []int{5, 1, 4, 2, 3} {
		m = m.Set(k, true)
	}

	var keys []int
	for k := range m.All() {
		keys = append(keys, k)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, keys)
}

func TestMap_PopArbitraryIsExhaustive(t *testing.T) {
	m := NewOrdered[int, int]()
	for k := 0; k < 50; k++ {
		m = m.Set(k, k*k)
	}

	seen := []int{}
	for {
		k, v, rest, ok := m.PopArbitrary()
		if !ok {
			break
		}
		assert.Equal(t, k*k, v)
		seen = append(seen, k)
		checkAVL(t, rest)
		m = rest
	}
	slices.Sort(seen)
	assert.Len(t, seen, 50)
	assert.Equal(t, 0, seen[0])
	assert.Equal(t, 49, seen[49])
}

func TestMap_TermKeys(t *testing.T) {
	s := term.NewStore()
	m := New[term.Data, string](term.Compare).
		Set(s.Const("a"), "atom").
		Set(term.IntData(1), "one")

	v, ok := m.Get(s.Const("a"))
	require.True(t, ok, "hash-consed keys compare equal")
	assert.Equal(t, "atom", v)
}
