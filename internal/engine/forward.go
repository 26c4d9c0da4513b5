package engine

import (
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/machine"
	"github.com/roach88/dusa/internal/pmap"
	"github.com/roach88/dusa/internal/term"
)

// Fact is an external fact supplied to a search. Facts without a value
// carry the store's Trivial handle; the zero Data is the integer 0.
type Fact struct {
	Name  string
	Args  []term.Data
	Value term.Data
}

// Forward runs the deterministic half of the engine: it moves one branch
// from one State to the next without ever choosing.
type Forward struct {
	prog    *ir.Program
	store   *term.Store
	machine *machine.Machine
	log     *slog.Logger
}

// NewForward returns a forward engine for prog. The store must be the one
// prog was compiled or decoded into.
func NewForward(prog *ir.Program, store *term.Store, log *slog.Logger) *Forward {
	if log == nil {
		log = slog.Default()
	}
	return &Forward{prog: prog, store: store, machine: machine.New(store), log: log}
}

// Initial builds the root state: every seed step gets its empty prefix,
// every demand starts unmet, and each external fact is offered as an
// exhaustive single-value conclusion. A conflict among the facts means
// the program has no solutions.
func (f *Forward) Initial(facts []Fact, shuffle *rand.Rand) (State, *Conflict) {
	s := newState(f.prog.Demands, shuffle)
	for _, seed := range f.prog.Seeds {
		s = s.push(item{kind: itemPrefix, name: seed})
	}
	for _, fact := range facts {
		var c *Conflict
		s, c = f.offer(s, fact.Name, fact.Args, []term.Data{fact.Value}, true)
		if c != nil {
			return s, c
		}
	}
	return s, nil
}

// Learn pops and processes one agenda item. A saturated state is returned
// unchanged.
func (f *Forward) Learn(s State) (State, *Conflict) {
	it, s, ok := s.pop()
	if !ok {
		return s, nil
	}
	switch it.kind {
	case itemFact:
		return f.learnFact(s, it)
	case itemPrefix:
		return f.learnPrefix(s, it)
	default:
		invariant("Learn", "unknown agenda item kind %d", it.kind)
		return s, nil
	}
}

// learnFact runs every index-insertion rule for the fact's relation and
// joins new index entries against the prefixes already waiting.
func (f *Forward) learnFact(s State, it item) (State, *Conflict) {
	for _, idx := range f.prog.Indexes[it.name] {
		if len(it.args) != idx.Arity {
			invariant("learnFact", "%s has %d args, index %s expects %d", it.name, len(it.args), idx.Name, idx.Arity)
		}
		mem := make([]term.Data, idx.Slots)
		copy(mem, it.args)
		mem[idx.Arity] = it.value
		out, res := f.machine.RunOnce(idx.Code, mem)
		if res.Matches == 0 {
			if res.TypeErrors > 0 {
				f.log.Debug("index type error", "index", idx.Name, "reason", res.Reason)
			}
			continue
		}

		key := make([]term.Data, len(idx.Key))
		for i, slot := range idx.Key {
			key[i] = out[slot]
		}
		if _, dup := s.indexes.Get(idx.Name, key); dup {
			continue
		}
		s.indexes = s.indexes.Set(idx.Name, key, struct{}{})

		step := f.step(idx.Step)
		shared, introduced := key[:idx.Shared], key[idx.Shared:]
		for passed := range s.prefixes.Lookup(idx.Step, shared) {
			env := slices.Concat(shared, passed, introduced)
			s = s.push(f.successor(step, env))
		}
	}
	return s, nil
}

func (f *Forward) learnPrefix(s State, it item) (State, *Conflict) {
	if _, dup := s.prefixes.Get(it.name, it.args); dup {
		return s, nil
	}
	s.prefixes = s.prefixes.Set(it.name, it.args, struct{}{})

	step := f.step(it.name)
	switch step.Kind {
	case ir.StepJoin:
		shared := it.args[:step.Shared]
		for introduced := range s.indexes.Lookup(step.Index, shared) {
			env := slices.Concat(it.args, introduced)
			s = s.push(f.successor(step, env))
		}
		return s, nil

	case ir.StepBuiltin:
		res := f.machine.Run(step.Code, f.memory(step, it.args), func(mem []term.Data) bool {
			s = s.push(f.successor(step, mem))
			return true
		})
		if res.TypeErrors > 0 {
			f.log.Debug("builtin type error", "step", step.Name, "reason", res.Reason)
		}
		return s, nil

	case ir.StepConclude:
		mem, res := f.machine.RunOnce(step.Code, f.memory(step, it.args))
		if res.Matches == 0 {
			if res.TypeErrors > 0 {
				f.log.Debug("conclusion type error", "step", step.Name, "reason", res.Reason)
			}
			return s, nil
		}
		args := make([]term.Data, len(step.ArgSlots))
		for i, slot := range step.ArgSlots {
			args[i] = mem[slot]
		}
		values := make([]term.Data, len(step.ValueSlots))
		for i, slot := range step.ValueSlots {
			values[i] = mem[slot]
		}
		return f.offer(s, step.Relation, args, values, step.Exhaustive)

	case ir.StepDemand:
		s.pending = s.pending.Remove(step.Name)
		return s, nil

	case ir.StepForbid:
		return s, &Conflict{Kind: ConflictForbid, Step: step.Name}

	default:
		invariant("learnPrefix", "step %s has unknown kind %q", step.Name, step.Kind)
		return s, nil
	}
}

func (f *Forward) step(name string) *ir.Step {
	step, ok := f.prog.Steps[name]
	if !ok {
		invariant("step", "unknown step %s", name)
	}
	return step
}

func (f *Forward) memory(step *ir.Step, prefix []term.Data) []term.Data {
	mem := make([]term.Data, step.Slots)
	copy(mem, prefix)
	return mem
}

func (f *Forward) successor(step *ir.Step, env []term.Data) item {
	next := make([]term.Data, len(step.NextFrom))
	for i, pos := range step.NextFrom {
		next[i] = env[pos]
	}
	return item{kind: itemPrefix, name: step.Next, args: next}
}

// offer records a conclusion that attribute (name, args) takes one of
// values.
func (f *Forward) offer(s State, name string, args []term.Data, values []term.Data, exhaustive bool) (State, *Conflict) {
	ex, known := s.explored.Get(name, args)
	if known && ex.is {
		if !exhaustive || slices.Contains(values, ex.value) {
			return s, nil
		}
		return s, &Conflict{
			Kind:     ConflictIncompatible,
			Relation: name,
			Args:     args,
			Values:   values,
			Held:     []term.Data{ex.value},
		}
	}

	var excluded pmap.Map[term.Data, struct{}]
	if known {
		excluded = ex.not
	} else {
		excluded = newValueSet()
	}
	fr, hasFrontier := s.frontier.Get(name, args)

	if !exhaustive {
		if hasFrontier && !fr.open {
			return s, nil
		}
		if !hasFrontier {
			fr = frontier{values: newValueSet(), open: true}
		}
		before := fr.values.Size()
		for _, v := range values {
			if _, out := excluded.Get(v); !out {
				fr.values = fr.values.Set(v, struct{}{})
			}
		}
		if fr.values.Size() == 0 || (hasFrontier && fr.values.Size() == before) {
			return s, nil
		}
		s.frontier = s.frontier.Set(name, args, fr)
		s.deferred = s.deferred.Set(name, args, struct{}{})
		return s, nil
	}

	allowed := newValueSet()
	for _, v := range values {
		if _, out := excluded.Get(v); out {
			continue
		}
		if hasFrontier && !fr.open {
			if _, in := fr.values.Get(v); !in {
				continue
			}
		}
		allowed = allowed.Set(v, struct{}{})
	}

	switch allowed.Size() {
	case 0:
		held := setValues(excluded)
		if hasFrontier && !fr.open {
			held = setValues(fr.values)
		}
		return s, &Conflict{
			Kind:     ConflictExcluded,
			Relation: name,
			Args:     args,
			Values:   values,
			Held:     held,
		}
	case 1:
		v, _, _, _ := allowed.PopArbitrary()
		return s.commit(name, args, v), nil
	default:
		s.frontier = s.frontier.Set(name, args, frontier{values: allowed})
		s.deferred = s.deferred.Set(name, args, struct{}{})
		return s, nil
	}
}

// choice is one child of a branch: commit to value, or (none) rule out
// every value in the frontier.
type choice struct {
	none  bool
	value term.Data
}

func (c choice) format(store *term.Store) string {
	if c.none {
		return "noneOf"
	}
	return "just " + store.Format(c.value)
}

// branchOn removes the least deferred attribute from s and returns the
// base state its children fork from, the attribute, and its choices. ok
// is false when nothing is deferred.
func branchOn(s State) (base State, attr pmap.Key, values []term.Data, open bool, ok bool) {
	for key := range s.deferred.All() {
		attr, ok = key, true
		break
	}
	if !ok {
		return s, attr, nil, false, false
	}
	fr, found := s.frontier.Get(attr.Name, attr.Args)
	if !found {
		invariant("branchOn", "deferred attribute %s has no frontier", attr.Name)
	}
	s.deferred = s.deferred.Remove(attr.Name, attr.Args)
	s.frontier = s.frontier.Remove(attr.Name, attr.Args)
	return s, attr, setValues(fr.values), fr.open, true
}

// force applies a choice to the base state of a branch.
func force(base State, attr pmap.Key, c choice, values []term.Data) State {
	if !c.none {
		return base.commit(attr.Name, attr.Args, c.value)
	}
	not := base.excluded(attr.Name, attr.Args)
	for _, v := range values {
		not = not.Set(v, struct{}{})
	}
	base.explored = base.explored.Set(attr.Name, attr.Args, explored{not: not})
	return base
}
