package ir

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/dusa/internal/term"
)

// EncodeData exports a handle out of its store.
//
//	int     -> 42
//	bool    -> true
//	string  -> {"string":"abc"}
//	()      -> []
//	f a b   -> {"const":"f","args":[...]}
func EncodeData(store *term.Store, d term.Data) Value {
	switch v := store.Expose(d).(type) {
	case term.Int:
		return Int(v)
	case term.Bool:
		return Bool(v)
	case term.String:
		return Object{"string": String(v)}
	case term.Trivial:
		return Array{}
	case term.Const:
		obj := Object{"const": String(v.Name)}
		if len(v.Args) > 0 {
			args := make(Array, len(v.Args))
			for i, arg := range v.Args {
				args[i] = EncodeData(store, arg)
			}
			obj["args"] = args
		}
		return obj
	default:
		panic(fmt.Sprintf("ir: unknown view %T", v))
	}
}

// DecodeData interns an exported value into store.
func DecodeData(store *term.Store, v Value) (term.Data, error) {
	switch val := v.(type) {
	case Int:
		return term.IntData(int64(val)), nil
	case Bool:
		return store.Bool(bool(val)), nil
	case Array:
		if len(val) != 0 {
			return term.Data{}, fmt.Errorf("decode data: only [] (unit) may be an array")
		}
		return store.Trivial(), nil
	case Object:
		if s, ok := val["string"].(String); ok && len(val) == 1 {
			return store.String(string(s)), nil
		}
		name, ok := val["const"].(String)
		if !ok {
			return term.Data{}, fmt.Errorf("decode data: object needs \"string\" or \"const\"")
		}
		var args []term.Data
		if raw, present := val["args"]; present {
			list, ok := raw.(Array)
			if !ok {
				return term.Data{}, fmt.Errorf("decode data: %s args must be an array", name)
			}
			args = make([]term.Data, len(list))
			for i, elem := range list {
				d, err := DecodeData(store, elem)
				if err != nil {
					return term.Data{}, fmt.Errorf("%s[%d]: %w", name, i, err)
				}
				args[i] = d
			}
		}
		return store.Const(string(name), args...), nil
	default:
		return term.Data{}, fmt.Errorf("decode data: unsupported value %T", v)
	}
}

// Encode exports p as canonical JSON. Constants are resolved against
// store, so the result is independent of interning order.
func Encode(p *Program, store *term.Store) ([]byte, error) {
	steps := make(Array, 0, len(p.Steps))
	for _, name := range p.StepNames() {
		steps = append(steps, encodeStep(store, p.Steps[name]))
	}

	rels := make([]string, 0, len(p.Indexes))
	for rel := range p.Indexes {
		rels = append(rels, rel)
	}
	slices.Sort(rels)
	indexes := Array{}
	for _, rel := range rels {
		for _, idx := range p.Indexes[rel] {
			indexes = append(indexes, Object{
				"name":     String(idx.Name),
				"relation": String(idx.Relation),
				"arity":    Int(idx.Arity),
				"code":     encodeCode(store, idx.Code),
				"slots":    Int(idx.Slots),
				"key":      intArray(idx.Key),
				"shared":   Int(idx.Shared),
				"step":     String(idx.Step),
			})
		}
	}

	relations := make(Object, len(p.Relations))
	for name, arity := range p.Relations {
		relations[name] = Int(arity)
	}

	doc := Object{
		"ir_version": String(IRVersion),
		"relations":  relations,
		"seeds":      strArray(p.Seeds),
		"demands":    strArray(p.Demands),
		"forbids":    strArray(p.Forbids),
		"steps":      steps,
		"indexes":    indexes,
	}
	return MarshalCanonical(doc)
}

func encodeStep(store *term.Store, s *Step) Object {
	obj := Object{
		"name": String(s.Name),
		"kind": String(s.Kind),
		"decl": String(s.Decl),
		"vars": strArray(s.Vars),
	}
	if s.Source != "" {
		obj["source"] = String(s.Source)
	}
	switch s.Kind {
	case StepJoin:
		obj["shared"] = Int(s.Shared)
		obj["index"] = String(s.Index)
		obj["introduced"] = strArray(s.Introduced)
		obj["next"] = String(s.Next)
		obj["next_from"] = intArray(s.NextFrom)
	case StepBuiltin:
		obj["code"] = encodeCode(store, s.Code)
		obj["slots"] = Int(s.Slots)
		obj["next"] = String(s.Next)
		obj["next_from"] = intArray(s.NextFrom)
	case StepConclude:
		obj["code"] = encodeCode(store, s.Code)
		obj["slots"] = Int(s.Slots)
		obj["relation"] = String(s.Relation)
		obj["arg_slots"] = intArray(s.ArgSlots)
		obj["value_slots"] = intArray(s.ValueSlots)
		obj["exhaustive"] = Bool(s.Exhaustive)
	}
	return obj
}

func encodeCode(store *term.Store, code []Instr) Array {
	out := make(Array, len(code))
	for i, in := range code {
		obj := Object{"op": String(in.Op.String())}
		switch in.Op {
		case OpConst:
			obj["data"] = EncodeData(store, in.Data)
		case OpLoad, OpStore, OpPlus, OpTimes, OpConcat:
			obj["arg"] = Int(in.Arg)
		case OpExplode, OpBuild:
			obj["arg"] = Int(in.Arg)
			obj["name"] = String(in.Name)
		case OpSplit:
			mask := make(Array, len(in.Mask))
			for j, known := range in.Mask {
				mask[j] = Bool(known)
			}
			obj["mask"] = mask
		}
		out[i] = obj
	}
	return out
}

func strArray(ss []string) Array {
	out := make(Array, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

func intArray(ns []int) Array {
	out := make(Array, len(ns))
	for i, n := range ns {
		out[i] = Int(n)
	}
	return out
}

// Decode imports an encoded program, interning its constants into store,
// and validates it.
func Decode(data []byte, store *term.Store) (*Program, error) {
	v, err := ParseValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	root, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("decode program: expected object, got %T", v)
	}
	r := &reader{store: store}
	if version := r.str(root, "ir_version"); r.err == nil && version != IRVersion {
		return nil, fmt.Errorf("decode program: unsupported ir_version %q (want %q)", version, IRVersion)
	}

	p := NewProgram()
	p.Seeds = r.strs(root, "seeds")
	p.Demands = r.strs(root, "demands")
	p.Forbids = r.strs(root, "forbids")
	if rels, ok := root["relations"].(Object); ok {
		for name, arity := range rels {
			n, ok := arity.(Int)
			if !ok {
				r.fail("relations[%q]: arity must be an integer", name)
				continue
			}
			p.Relations[name] = int(n)
		}
	}
	for _, elem := range r.array(root, "steps") {
		obj, ok := elem.(Object)
		if !ok {
			r.fail("steps: expected objects")
			continue
		}
		s := &Step{
			Name:       r.str(obj, "name"),
			Kind:       StepKind(r.str(obj, "kind")),
			Decl:       r.str(obj, "decl"),
			Source:     r.str(obj, "source"),
			Vars:       r.strs(obj, "vars"),
			Shared:     r.int(obj, "shared"),
			Index:      r.str(obj, "index"),
			Introduced: r.strs(obj, "introduced"),
			Code:       r.code(obj, "code"),
			Slots:      r.int(obj, "slots"),
			Next:       r.str(obj, "next"),
			NextFrom:   r.ints(obj, "next_from"),
			Relation:   r.str(obj, "relation"),
			ArgSlots:   r.ints(obj, "arg_slots"),
			ValueSlots: r.ints(obj, "value_slots"),
			Exhaustive: r.boolean(obj, "exhaustive"),
		}
		p.Steps[s.Name] = s
	}
	for _, elem := range r.array(root, "indexes") {
		obj, ok := elem.(Object)
		if !ok {
			r.fail("indexes: expected objects")
			continue
		}
		idx := &Index{
			Name:     r.str(obj, "name"),
			Relation: r.str(obj, "relation"),
			Arity:    r.int(obj, "arity"),
			Code:     r.code(obj, "code"),
			Slots:    r.int(obj, "slots"),
			Key:      r.ints(obj, "key"),
			Shared:   r.int(obj, "shared"),
			Step:     r.str(obj, "step"),
		}
		p.Indexes[idx.Relation] = append(p.Indexes[idx.Relation], idx)
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode program: %w", r.err)
	}
	if errs := p.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("decode program: %w", errors.Join(errs...))
	}
	return p, nil
}

// reader pulls typed fields out of decoded objects, keeping the first error.
// Absent keys read as zero values.
type reader struct {
	store *term.Store
	err   error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *reader) str(obj Object, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	s, ok := raw.(String)
	if !ok {
		r.fail("%s: expected string, got %T", key, raw)
	}
	return string(s)
}

func (r *reader) int(obj Object, key string) int {
	raw, ok := obj[key]
	if !ok {
		return 0
	}
	n, ok := raw.(Int)
	if !ok {
		r.fail("%s: expected integer, got %T", key, raw)
	}
	return int(n)
}

func (r *reader) boolean(obj Object, key string) bool {
	raw, ok := obj[key]
	if !ok {
		return false
	}
	b, ok := raw.(Bool)
	if !ok {
		r.fail("%s: expected boolean, got %T", key, raw)
	}
	return bool(b)
}

func (r *reader) array(obj Object, key string) Array {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	arr, ok := raw.(Array)
	if !ok {
		r.fail("%s: expected array, got %T", key, raw)
	}
	return arr
}

func (r *reader) strs(obj Object, key string) []string {
	var out []string
	for i, elem := range r.array(obj, key) {
		s, ok := elem.(String)
		if !ok {
			r.fail("%s[%d]: expected string", key, i)
			continue
		}
		out = append(out, string(s))
	}
	return out
}

func (r *reader) ints(obj Object, key string) []int {
	var out []int
	for i, elem := range r.array(obj, key) {
		n, ok := elem.(Int)
		if !ok {
			r.fail("%s[%d]: expected integer", key, i)
			continue
		}
		out = append(out, int(n))
	}
	return out
}

func (r *reader) code(obj Object, key string) []Instr {
	var out []Instr
	for i, elem := range r.array(obj, key) {
		in, ok := elem.(Object)
		if !ok {
			r.fail("%s[%d]: expected instruction object", key, i)
			continue
		}
		op, ok := ParseOp(r.str(in, "op"))
		if !ok {
			r.fail("%s[%d]: unknown op %v", key, i, in["op"])
			continue
		}
		instr := Instr{Op: op, Arg: r.int(in, "arg"), Name: r.str(in, "name")}
		if op == OpConst {
			raw, present := in["data"]
			if !present {
				r.fail("%s[%d]: const without data", key, i)
				continue
			}
			d, err := DecodeData(r.store, raw)
			if err != nil {
				r.fail("%s[%d]: %w", key, i, err)
				continue
			}
			instr.Data = d
		}
		if op == OpSplit {
			for _, m := range r.array(in, "mask") {
				b, _ := m.(Bool)
				instr.Mask = append(instr.Mask, bool(b))
			}
		}
		out = append(out, instr)
	}
	return out
}
