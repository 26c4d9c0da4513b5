package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"

	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/pmap"
	"github.com/roach88/dusa/internal/term"
)

const noNode = -1

// node is a choice-tree node. Leaves carry the state being stepped;
// branches carry the state their remaining children fork from.
type node struct {
	parent int
	leaf   bool
	state  State

	attr      pmap.Key
	values    []term.Data
	remaining []choice
}

// Stats counts what a search has done so far.
type Stats struct {
	Steps     int
	Solutions int
	Branches  int
	Conflicts int
	Live      int // choice-tree nodes currently allocated
}

// Search enumerates the solutions of a program, one transition at a time.
//
// The choice tree lives in an arena; cur is the leaf being stepped and
// every ancestor of cur is a branch with at least one unexplored child.
type Search struct {
	fwd   *Forward
	store *term.Store
	log   *slog.Logger

	facts    []Fact
	maxSteps int
	shuffle  *rand.Rand

	nodes []node
	free  []int
	root  int
	cur   int

	quota *QuotaEnforcer
	stats Stats
	err   error
}

// Option configures a Search.
type Option func(*Search)

// WithFacts adds external facts to the initial state.
func WithFacts(facts ...Fact) Option {
	return func(s *Search) {
		s.facts = append(s.facts, facts...)
	}
}

// WithMaxSteps sets the step quota for each Next call. Zero disables it.
func WithMaxSteps(n int) Option {
	return func(s *Search) {
		s.maxSteps = n
	}
}

// WithLogger sets the logger for search lifecycle and transition events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Search) {
		s.log = log
	}
}

// WithShuffle processes agenda items in a pseudo-random order seeded by
// seed instead of first-in first-out. Solutions are unaffected; only the
// order they arrive in may change.
func WithShuffle(seed uint64) Option {
	return func(s *Search) {
		s.shuffle = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewSearch prepares a search over prog. store must be the store prog was
// compiled or decoded into. No work is done until the first Step.
func NewSearch(prog *ir.Program, store *term.Store, opts ...Option) (*Search, error) {
	if errs := prog.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("NewSearch: invalid program: %w", errors.Join(errs...))
	}
	s := &Search{
		store:    store,
		log:      slog.Default(),
		maxSteps: DefaultMaxSteps,
		root:     noNode,
		cur:      noNode,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fwd = NewForward(prog, store, s.log)
	s.quota = NewQuotaEnforcer(s.maxSteps)

	s.log.Info("search starting",
		"steps", len(prog.Steps),
		"facts", len(s.facts),
		"max_steps", s.maxSteps,
		"shuffle", s.shuffle != nil)

	initial, c := s.fwd.Initial(s.facts, s.shuffle)
	if c != nil {
		s.conflict(c)
		return s, nil
	}
	s.root = s.alloc(node{parent: noNode, leaf: true, state: initial})
	s.cur = s.root
	return s, nil
}

// Done reports whether every branch has been explored.
func (s *Search) Done() bool {
	return s.root == noNode
}

// Stats returns a snapshot of the search counters.
func (s *Search) Stats() Stats {
	return s.stats
}

// Err returns the error that ended a Solutions loop early, if any.
func (s *Search) Err() error {
	return s.err
}

// Step performs exactly one transition of the current leaf. It returns a
// solution when that transition completed one. Stepping a finished search
// does nothing.
func (s *Search) Step() (*Database, bool) {
	if s.Done() {
		return nil, false
	}
	s.stats.Steps++
	stepsTotal.Inc()

	leaf := s.nodes[s.cur]
	if !leaf.leaf {
		invariant("Step", "current node %d is a branch", s.cur)
	}
	st := leaf.state

	if !st.Saturated() {
		next, c := s.fwd.Learn(st)
		if c != nil {
			s.conflict(c)
			s.retire(s.cur)
			return nil, false
		}
		s.nodes[s.cur].state = next
		return nil, false
	}

	if st.Deferred() > 0 {
		s.branch(s.cur, st)
		return nil, false
	}

	for name := range st.pending.All() {
		s.conflict(&Conflict{Kind: ConflictDemand, Step: name})
		s.retire(s.cur)
		return nil, false
	}

	db := newDatabase(s.store, st)
	s.stats.Solutions++
	solutionsTotal.Inc()
	s.log.Debug("solution", "facts", db.Size(), "steps", s.stats.Steps)
	s.retire(s.cur)
	return db, true
}

// Next steps until the next solution. It returns ErrExhausted when there
// are no more, or a *StepsExceededError when the per-call quota runs out;
// in the latter case calling Next again resumes the search.
func (s *Search) Next() (*Database, error) {
	return s.NextContext(context.Background())
}

// cancelCheckInterval is how many steps NextContext takes between
// checks of its context.
const cancelCheckInterval = 1024

// NextContext is Next with cancellation. When ctx is done it returns
// ctx.Err() and the search can be resumed later.
func (s *Search) NextContext(ctx context.Context) (*Database, error) {
	s.quota.Reset()
	for n := 0; !s.Done(); n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := s.quota.Check(fmt.Sprintf("solution %d", s.stats.Solutions+1)); err != nil {
			return nil, err
		}
		if db, ok := s.Step(); ok {
			return db, nil
		}
	}
	return nil, ErrExhausted
}

// Solutions returns a pull-style sequence over the remaining solutions.
// The sequence stops at exhaustion or at the first error, which Err then
// reports.
func (s *Search) Solutions() iter.Seq[*Database] {
	return func(yield func(*Database) bool) {
		for {
			db, err := s.Next()
			if err != nil {
				if !errors.Is(err, ErrExhausted) {
					s.err = err
				}
				return
			}
			if !yield(db) {
				return
			}
		}
	}
}

func (s *Search) conflict(c *Conflict) {
	s.stats.Conflicts++
	conflictsTotal.WithLabelValues(string(c.Kind)).Inc()
	if s.log.Enabled(context.Background(), slog.LevelDebug) {
		s.log.Debug("conflict", "kind", c.Kind, "detail", c.Format(s.store))
	}
}

// branch turns the saturated leaf at idx into a choice point on its least
// deferred attribute and descends into the first child.
func (s *Search) branch(idx int, st State) {
	base, attr, values, open, ok := branchOn(st)
	if !ok {
		invariant("branch", "no deferred attribute at node %d", idx)
	}
	choices := make([]choice, 0, len(values)+1)
	for _, v := range values {
		choices = append(choices, choice{value: v})
	}
	if open {
		choices = append(choices, choice{none: true})
	}

	s.stats.Branches++
	branchesTotal.Inc()
	s.log.Debug("branch", "relation", attr.Name, "choices", len(choices), "open", open)

	s.nodes[idx] = node{
		parent:    s.nodes[idx].parent,
		state:     base,
		attr:      attr,
		values:    values,
		remaining: choices,
	}
	s.descend(idx)
}

// descend materializes the next child of branch idx. A branch down to its
// last child is replaced by that child.
func (s *Search) descend(idx int) {
	b := s.nodes[idx]
	c := b.remaining[0]
	rest := b.remaining[1:]
	child := force(b.state, b.attr, c, b.values)
	if s.log.Enabled(context.Background(), slog.LevelDebug) {
		s.log.Debug("descend", "relation", b.attr.Name, "choice", c.format(s.store), "left", len(rest))
	}

	if len(rest) == 0 {
		s.nodes[idx] = node{parent: b.parent, leaf: true, state: child}
		s.cur = idx
		return
	}
	s.nodes[idx].remaining = rest
	s.cur = s.alloc(node{parent: idx, leaf: true, state: child})
}

// retire removes the leaf at idx, prunes exhausted ancestors, and moves
// to the next unexplored child.
func (s *Search) retire(idx int) {
	parent := s.nodes[idx].parent
	s.release(idx)
	for parent != noNode {
		if len(s.nodes[parent].remaining) > 0 {
			s.descend(parent)
			return
		}
		up := s.nodes[parent].parent
		s.release(parent)
		parent = up
	}
	s.root = noNode
	s.cur = noNode
	s.log.Info("search exhausted",
		"steps", s.stats.Steps,
		"solutions", s.stats.Solutions,
		"conflicts", s.stats.Conflicts)
}

func (s *Search) alloc(n node) int {
	s.stats.Live++
	if k := len(s.free); k > 0 {
		idx := s.free[k-1]
		s.free = s.free[:k-1]
		s.nodes[idx] = n
		return idx
	}
	s.nodes = append(s.nodes, n)
	return len(s.nodes) - 1
}

func (s *Search) release(idx int) {
	s.stats.Live--
	s.nodes[idx] = node{parent: noNode}
	s.free = append(s.free, idx)
}
