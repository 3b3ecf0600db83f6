package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/rete/internal/ir"
)

// CycleWarning represents a potential forward-chaining cycle between rules.
//
// Cycles are warnings, not errors, because they may be intentional:
//   - Non-repeatable rules that fire once per tuple
//   - Recursive derivations that converge (closure computations)
//   - Negated patterns that stop matching once the derived fact exists
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["rule-a", "rule-b", "rule-a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis on a rule set.
//
// It builds a dependency graph where rule A has an edge to rule B when A
// declares it produces a fact type that one of B's patterns matches, then
// uses Tarjan's algorithm to find strongly connected components. Each SCC
// with more than one rule, or a rule that feeds itself, is reported.
//
// Rules without Produces declarations contribute no edges. A rule set
// without cycles returns an empty list.
func AnalyzeCycles(rs ir.RuleSet) []CycleWarning {
	if len(rs.Rules) == 0 {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(rs.Rules)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// dependencyGraph maps a rule name to the rules its actions may activate.
// order keeps rule declaration order so traversal is deterministic.
type dependencyGraph struct {
	order []string
	edges map[string][]string
}

// buildDependencyGraph connects producers to the rules matching what they produce.
func buildDependencyGraph(rules []ir.Rule) dependencyGraph {
	graph := dependencyGraph{edges: make(map[string][]string)}
	for _, r := range rules {
		graph.order = append(graph.order, r.Name)
		graph.edges[r.Name] = []string{}
	}

	for _, producer := range rules {
		for _, consumer := range rules {
			if triggers(producer.Produces, matchedTypes(consumer)) {
				graph.edges[producer.Name] = append(graph.edges[producer.Name], consumer.Name)
			}
		}
	}
	return graph
}

// matchedTypes returns every fact type a rule's patterns consume.
func matchedTypes(r ir.Rule) []reflect.Type {
	var types []reflect.Type
	for _, p := range r.Patterns {
		switch {
		case p.Kind == ir.KindMatch && p.Type != nil:
			types = append(types, p.Type)
		case p.Source != nil && p.Source.Type != nil:
			types = append(types, p.Source.Type)
		}
	}
	return types
}

func triggers(produced, matched []reflect.Type) bool {
	for _, out := range produced {
		for _, in := range matched {
			if out != nil && out.AssignableTo(in) {
				return true
			}
		}
	}
	return false
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of rule names.
// Single-node SCCs without self-loops are NOT cycles.
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

		for _, w := range graph.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of an SCC: pop it
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
			sccs = append(sccs, scc)
		}
	}

	for _, node := range graph.order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-triggering rule detected: %s → %s", name, name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC, starting at the
// member declared first.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	for _, name := range graph.order {
		if sccSet[name] {
			start = name
			break
		}
	}
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph.edges[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
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
