package engine

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/pmap"
	"github.com/roach88/dusa/internal/term"
)

// Database is an immutable snapshot of the facts committed in one
// solution.
type Database struct {
	store *term.Store
	facts pmap.Table[term.Data]
}

func newDatabase(store *term.Store, s State) *Database {
	var facts pmap.Table[term.Data]
	for key, v := range s.facts {
		facts = facts.Set(key.Name, key.Args, v)
	}
	return &Database{store: store, facts: facts}
}

// Store returns the term store the facts' handles belong to.
func (db *Database) Store() *term.Store {
	return db.store
}

// Size returns the number of facts.
func (db *Database) Size() int {
	return db.facts.Size()
}

// Has reports whether any fact of relation name holds.
func (db *Database) Has(name string) bool {
	return db.facts.Has(name)
}

// Get returns the value of attribute (name, args).
func (db *Database) Get(name string, args ...term.Data) (term.Data, bool) {
	return db.facts.Get(name, args)
}

// Lookup enumerates facts of relation name whose arguments start with
// prefix. It yields full argument tuples.
func (db *Database) Lookup(name string, prefix ...term.Data) iter.Seq2[[]term.Data, term.Data] {
	return func(yield func([]term.Data, term.Data) bool) {
		for rest, v := range db.facts.Lookup(name, prefix) {
			if !yield(slices.Concat(prefix, rest), v) {
				return
			}
		}
	}
}

// All enumerates every fact.
func (db *Database) All() iter.Seq2[pmap.Key, term.Data] {
	return db.facts.All()
}

// Relations returns the names of relations with at least one fact, sorted.
func (db *Database) Relations() []string {
	var names []string
	for key := range db.facts.All() {
		if len(names) == 0 || names[len(names)-1] != key.Name {
			names = append(names, key.Name)
		}
	}
	return names
}

// Lines renders each fact as "name arg... is value" (omitting a trivial
// value), sorted. The result is independent of interning order.
func (db *Database) Lines() []string {
	lines := make([]string, 0, db.facts.Size())
	for key, v := range db.facts.All() {
		var b strings.Builder
		b.WriteString(key.Name)
		for _, arg := range key.Args {
			b.WriteByte(' ')
			b.WriteString(db.store.Format(arg))
		}
		if v != db.store.Trivial() {
			b.WriteString(" is ")
			b.WriteString(db.store.Format(v))
		}
		lines = append(lines, b.String())
	}
	slices.Sort(lines)
	return lines
}

// String renders the solution as a brace-enclosed fact list.
func (db *Database) String() string {
	return "{" + strings.Join(db.Lines(), ", ") + "}"
}

// Facts exports the solution as a canonically ordered array of
// {"name", "args", "value"} objects, suitable for ir.SolutionHash.
func (db *Database) Facts() (ir.Array, error) {
	type entry struct {
		key []byte
		obj ir.Object
	}
	entries := make([]entry, 0, db.facts.Size())
	for key, v := range db.facts.All() {
		args := make(ir.Array, len(key.Args))
		for i, arg := range key.Args {
			args[i] = ir.EncodeData(db.store, arg)
		}
		obj := ir.Object{
			"name":  ir.String(key.Name),
			"args":  args,
			"value": ir.EncodeData(db.store, v),
		}
		canonical, err := ir.MarshalCanonical(obj)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: canonical, obj: obj})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return strings.Compare(string(a.key), string(b.key))
	})
	out := make(ir.Array, len(entries))
	for i, e := range entries {
		out[i] = e.obj
	}
	return out, nil
}

// Hash returns the solution's content hash.
func (db *Database) Hash() (string, error) {
	facts, err := db.Facts()
	if err != nil {
		return "", err
	}
	return ir.SolutionHash(facts)
}

// DecodeFacts imports facts in the form Facts exports them. A missing
// value means ().
func DecodeFacts(store *term.Store, facts ir.Array) ([]Fact, error) {
	out := make([]Fact, 0, len(facts))
	for i, f := range facts {
		obj, ok := f.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("fact %d: expected object, got %T", i, f)
		}
		name, ok := obj["name"].(ir.String)
		if !ok || name == "" {
			return nil, fmt.Errorf("fact %d: name is required", i)
		}
		fact := Fact{Name: string(name), Value: store.Trivial()}
		if raw, ok := obj["args"]; ok {
			args, ok := raw.(ir.Array)
			if !ok {
				return nil, fmt.Errorf("fact %d (%s): args must be an array", i, name)
			}
			for j, arg := range args {
				d, err := ir.DecodeData(store, arg)
				if err != nil {
					return nil, fmt.Errorf("fact %d (%s) arg %d: %w", i, name, j, err)
				}
				fact.Args = append(fact.Args, d)
			}
		}
		if raw, ok := obj["value"]; ok {
			d, err := ir.DecodeData(store, raw)
			if err != nil {
				return nil, fmt.Errorf("fact %d (%s) value: %w", i, name, err)
			}
			fact.Value = d
		}
		out = append(out, fact)
	}
	return out, nil
}
