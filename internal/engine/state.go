package engine

import (
	"cmp"
	"math/rand/v2"

	"github.com/roach88/dusa/internal/pmap"
	"github.com/roach88/dusa/internal/term"
)

type itemKind int

const (
	itemFact itemKind = iota + 1
	itemPrefix
)

// item is one unit of agenda work: a committed fact to index, or a
// partial match to store and advance.
type item struct {
	kind  itemKind
	name  string // relation (fact) or step (prefix)
	args  []term.Data
	value term.Data // facts only
}

type agendaKey struct {
	prio uint64
	seq  uint64
}

func compareAgendaKeys(a, b agendaKey) int {
	if c := cmp.Compare(a.prio, b.prio); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// explored is what a branch has settled about one attribute: either the
// value it is committed to, or the set of values it can no longer take.
type explored struct {
	is    bool
	value term.Data
	not   pmap.Map[term.Data, struct{}]
}

// frontier holds the candidate values of an uncommitted attribute. A
// closed frontier came from an exhaustive conclusion and can only shrink;
// an open one can still grow and allows "none of these".
type frontier struct {
	values pmap.Map[term.Data, struct{}]
	open   bool
}

func newValueSet() pmap.Map[term.Data, struct{}] {
	return pmap.New[term.Data, struct{}](term.Compare)
}

func valueSet(ds ...term.Data) pmap.Map[term.Data, struct{}] {
	set := newValueSet()
	for _, d := range ds {
		set = set.Set(d, struct{}{})
	}
	return set
}

func setValues(set pmap.Map[term.Data, struct{}]) []term.Data {
	out := make([]term.Data, 0, set.Size())
	for d := range set.All() {
		out = append(out, d)
	}
	return out
}

// State is everything one branch of the search knows. It is an immutable
// value: every transition returns a new State sharing structure with the
// old one, so a State can be kept as a branch point and resumed later.
type State struct {
	agenda  pmap.Map[agendaKey, item]
	seq     uint64
	shuffle *rand.Rand

	explored pmap.Table[explored]
	frontier pmap.Table[frontier]
	deferred pmap.Table[struct{}]
	pending  pmap.Map[string, struct{}]

	prefixes pmap.Table[struct{}]
	indexes  pmap.Table[struct{}]
}

func newState(demands []string, shuffle *rand.Rand) State {
	pending := pmap.NewOrdered[string, struct{}]()
	for _, d := range demands {
		pending = pending.Set(d, struct{}{})
	}
	return State{
		agenda:  pmap.New[agendaKey, item](compareAgendaKeys),
		shuffle: shuffle,
		pending: pending,
	}
}

// Saturated reports whether the agenda is empty.
func (s State) Saturated() bool {
	return s.agenda.Size() == 0
}

// Deferred reports how many attributes are waiting on a choice.
func (s State) Deferred() int {
	return s.deferred.Size()
}

func (s State) push(it item) State {
	key := agendaKey{seq: s.seq}
	if s.shuffle != nil {
		key.prio = s.shuffle.Uint64()
	}
	s.agenda = s.agenda.Set(key, it)
	s.seq++
	return s
}

func (s State) pop() (item, State, bool) {
	_, it, rest, ok := s.agenda.PopArbitrary()
	if !ok {
		return item{}, s, false
	}
	s.agenda = rest
	return it, s, true
}

// commit records attr = v and schedules the fact for indexing.
func (s State) commit(name string, args []term.Data, v term.Data) State {
	s.explored = s.explored.Set(name, args, explored{is: true, value: v})
	s.frontier = s.frontier.Remove(name, args)
	s.deferred = s.deferred.Remove(name, args)
	return s.push(item{kind: itemFact, name: name, args: args, value: v})
}

func (s State) excluded(name string, args []term.Data) pmap.Map[term.Data, struct{}] {
	if ex, ok := s.explored.Get(name, args); ok && !ex.is {
		return ex.not
	}
	return newValueSet()
}

// facts enumerates committed attributes in key order.
func (s State) facts(yield func(pmap.Key, term.Data) bool) {
	for key, ex := range s.explored.All() {
		if ex.is && !yield(key, ex.value) {
			return
		}
	}
}
