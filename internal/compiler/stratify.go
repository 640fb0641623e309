package compiler

import (
	"slices"

	"github.com/roach88/relcheck/internal/ruleir"
)

// Stratify orders the rules into strata so that every relation read under
// negation is complete before any rule that negates it runs.
//
// The algorithm:
//  1. Build the predicate dependency graph: an edge body -> head for every
//     body atom, marked negative for negated atoms
//  2. Find strongly connected components with Tarjan's algorithm
//  3. Reject any component containing a negative edge (NegationCycleError)
//  4. Emit components in topological order, one stratum per component
//     that derives at least one relation
//
// Iteration follows declaration order throughout, so the strata of a
// program are deterministic.
func Stratify(decls []ruleir.RelationDecl, rules []ruleir.Rule) ([]ruleir.Stratum, error) {
	g := buildDependencyGraph(decls, rules)
	sccs := tarjanSCC(g)

	for _, scc := range sccs {
		if cyc := negativeCycle(scc, g); cyc != nil {
			return nil, cyc
		}
	}

	// Tarjan emits a component after every component reachable from it,
	// i.e. dependents first. Reverse for dependencies first.
	slices.Reverse(sccs)

	var strata []ruleir.Stratum
	for _, scc := range sccs {
		members := make(map[string]bool, len(scc))
		for _, n := range scc {
			members[n] = true
		}

		st := ruleir.Stratum{Index: len(strata)}
		for i, r := range rules {
			if members[r.Head.Relation] {
				st.Rules = append(st.Rules, i)
			}
		}
		if len(st.Rules) == 0 {
			continue
		}
		for _, d := range g.nodes {
			if members[d] {
				st.Relations = append(st.Relations, d)
			}
		}
		strata = append(strata, st)
	}
	return strata, nil
}

type depEdge struct {
	to       string
	negative bool
	rule     string
}

// dependencyGraph keeps nodes in declaration order; relations referenced
// but not declared are appended in first-seen order.
type dependencyGraph struct {
	nodes []string
	edges map[string][]depEdge
}

func (g *dependencyGraph) addNode(n string) {
	if _, ok := g.edges[n]; !ok {
		g.edges[n] = nil
		g.nodes = append(g.nodes, n)
	}
}

func buildDependencyGraph(decls []ruleir.RelationDecl, rules []ruleir.Rule) *dependencyGraph {
	g := &dependencyGraph{edges: make(map[string][]depEdge)}
	for _, d := range decls {
		g.addNode(d.Name)
	}
	for _, r := range rules {
		head := r.Head.Relation
		g.addNode(head)
		for _, lit := range r.Body {
			var (
				from string
				neg  bool
			)
			switch l := lit.(type) {
			case ruleir.Positive:
				from = l.Atom.Relation
			case ruleir.Negated:
				from, neg = l.Atom.Relation, true
			default:
				continue
			}
			g.addNode(from)
			g.edges[from] = append(g.edges[from], depEdge{to: head, negative: neg, rule: r.ID})
		}
	}
	return g
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(g *dependencyGraph) [][]string {
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

		for _, e := range g.edges[v] {
			w := e.to
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
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

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// negativeCycle returns an error describing a negated edge inside scc, or
// nil when the component is negation-free.
func negativeCycle(scc []string, g *dependencyGraph) *NegationCycleError {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	for _, from := range g.nodes {
		if !members[from] {
			continue
		}
		for _, e := range g.edges[from] {
			if e.negative && members[e.to] {
				return &NegationCycleError{
					Cycle: append([]string{from}, reconstructPath(e.to, from, members, g)...),
					Rule:  e.rule,
				}
			}
		}
	}
	return nil
}

// reconstructPath returns a shortest path start..end inside the component
// (breadth first, edges in insertion order).
func reconstructPath(start, end string, members map[string]bool, g *dependencyGraph) []string {
	prev := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 && !hasKey(prev, end) {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.edges[cur] {
			if members[e.to] && !hasKey(prev, e.to) {
				prev[e.to] = cur
				queue = append(queue, e.to)
			}
		}
	}

	path := []string{end}
	for n := end; n != start; {
		n = prev[n]
		path = append(path, n)
	}
	slices.Reverse(path)
	return path
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}
