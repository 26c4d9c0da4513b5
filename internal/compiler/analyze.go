package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dusa/internal/ast"
)

// RecursionWarning describes a group of mutually recursive relations.
//
// Recursion is normal in Datalog programs; it is only reported at "warning"
// level when a rule in the group builds new terms (constructors with
// arguments, arithmetic, string concatenation, successor), because then
// saturation may never be reached.
type RecursionWarning struct {
	Path    []string `json:"path"`    // cycle path: ["path", "path"]
	Message string   `json:"message"` // human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeRecursion finds recursive relation groups in p.
//
// The algorithm:
//  1. Build the relation graph: premise relation → conclusion relation
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// A non-recursive program returns an empty list.
func AnalyzeRecursion(p *ast.Program) []RecursionWarning {
	graph := buildDependencyGraph(p)
	generative := generativeRelations(p)

	warnings := []RecursionWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, sccToWarning(scc, graph, generative))
		}
	}
	slices.SortFunc(warnings, func(a, b RecursionWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// dependencyGraph maps a relation to the relations derived from it.
type dependencyGraph map[string][]string

func buildDependencyGraph(p *ast.Program) dependencyGraph {
	graph := make(dependencyGraph)
	for i := range p.Decls {
		d := &p.Decls[i]
		if d.Conclusion == nil {
			continue
		}
		head := d.Conclusion.Name
		if graph[head] == nil {
			graph[head] = []string{}
		}
		var used []string
		for j := range d.Premises {
			prem := &d.Premises[j]
			if prem.Builtin == ast.BuiltinNone {
				used = append(used, prem.Name)
			}
			for _, arg := range append(slices.Clone(prem.Args), prem.ValueOrTrivial()) {
				used = appendCalls(used, arg)
			}
		}
		for _, rel := range used {
			if !slices.Contains(graph[rel], head) {
				graph[rel] = append(graph[rel], head)
			}
		}
	}
	for node := range graph {
		slices.Sort(graph[node])
	}
	return graph
}

// appendCalls adds relations called inside p.
func appendCalls(dst []string, p ast.Pattern) []string {
	ast.Walk(p, func(sub ast.Pattern) {
		if c, ok := sub.(ast.Call); ok && c.Builtin == ast.BuiltinNone {
			dst = append(dst, c.Name)
		}
	})
	return dst
}

// generativeRelations returns the relations concluded by rules that can
// produce terms not present in their premises.
func generativeRelations(p *ast.Program) map[string]bool {
	out := make(map[string]bool)
	for i := range p.Decls {
		d := &p.Decls[i]
		if d.Conclusion == nil {
			continue
		}
		grows := false
		check := func(pat ast.Pattern) {
			ast.Walk(pat, func(sub ast.Pattern) {
				switch s := sub.(type) {
				case ast.Call:
					switch s.Builtin {
					case ast.NatSucc, ast.IntPlus, ast.IntMinus, ast.IntTimes, ast.StringConcat:
						grows = true
					}
				case ast.Const:
					if len(s.Args) > 0 {
						grows = true
					}
				}
			})
		}
		for _, arg := range d.Conclusion.Args {
			check(arg)
		}
		for _, v := range d.Conclusion.Values {
			check(v)
		}
		for j := range d.Premises {
			switch d.Premises[j].Builtin {
			case ast.NatSucc, ast.IntPlus, ast.IntMinus, ast.IntTimes, ast.StringConcat:
				grows = true
			}
		}
		if grows {
			out[d.Conclusion.Name] = true
		}
	}
	return out
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToWarning(scc []string, graph dependencyGraph, generative map[string]bool) RecursionWarning {
	level := "info"
	for _, rel := range scc {
		if generative[rel] {
			level = "warning"
		}
	}

	if len(scc) == 1 {
		rel := scc[0]
		w := RecursionWarning{Path: []string{rel, rel}, Level: level,
			Message: fmt.Sprintf("%s is defined in terms of itself", rel)}
		if level == "warning" {
			w.Message += " and builds new terms; saturation may not terminate"
		}
		return w
	}

	path := reconstructCyclePath(scc, graph)
	w := RecursionWarning{Path: path, Level: level,
		Message: fmt.Sprintf("mutually recursive relations: %s", strings.Join(path, " → "))}
	if level == "warning" {
		w.Message += "; new terms are built inside the cycle, so saturation may not terminate"
	}
	return w
}

// reconstructCyclePath walks edges inside the SCC from its first node
// until it returns there.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	inSCC := make(map[string]bool, len(scc))
	for _, node := range scc {
		inSCC[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if inSCC[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
