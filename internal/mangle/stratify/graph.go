// Package stratify builds the predicate dependency graph of a unit and
// reports negation cycles plus evaluation-cost hazards.
package stratify

import (
	"sort"

	"mglint/internal/mangle/ast"
)

// Edge is a head -> premise dependency.
type Edge struct {
	To       int
	Negative bool
	Site     ast.Range // the premise atom that created the edge
}

// Graph is the dependency graph over user predicates. Node indices follow
// first appearance in the unit.
type Graph struct {
	Nodes []ast.PredicateSym
	Edges [][]Edge

	index map[ast.PredicateSym]int
	heads map[int]ast.Range // first defining head per node
}

// NewGraph builds the graph of unit. Built-in predicates and functions are
// not nodes. A nil unit yields an empty graph.
func NewGraph(unit *ast.SourceUnit) *Graph {
	g := &Graph{
		index: make(map[ast.PredicateSym]int),
		heads: make(map[int]ast.Range),
	}
	if unit == nil {
		return g
	}
	for _, c := range unit.Clauses {
		if isBuiltin(c.Head.Predicate) {
			continue
		}
		from := g.node(c.Head.Predicate)
		if _, ok := g.heads[from]; !ok {
			g.heads[from] = c.Head.Span
		}
		for _, p := range c.Premises {
			switch n := p.(type) {
			case *ast.Atom:
				if !isBuiltin(n.Predicate) {
					g.addEdge(from, g.node(n.Predicate), false, n.Span)
				}
			case *ast.NegAtom:
				if !isBuiltin(n.Atom.Predicate) {
					g.addEdge(from, g.node(n.Atom.Predicate), true, n.Span)
				}
			}
		}
	}
	return g
}

func isBuiltin(sym ast.PredicateSym) bool {
	return sym.IsBuiltin() || sym.IsFunction()
}

func (g *Graph) node(sym ast.PredicateSym) int {
	if i, ok := g.index[sym]; ok {
		return i
	}
	i := len(g.Nodes)
	g.index[sym] = i
	g.Nodes = append(g.Nodes, sym)
	g.Edges = append(g.Edges, nil)
	return i
}

func (g *Graph) addEdge(from, to int, negative bool, site ast.Range) {
	g.Edges[from] = append(g.Edges[from], Edge{To: to, Negative: negative, Site: site})
}

// Node returns the index of sym, or -1.
func (g *Graph) Node(sym ast.PredicateSym) int {
	if i, ok := g.index[sym]; ok {
		return i
	}
	return -1
}

// SCCs returns the strongly connected components using Tarjan's algorithm.
// Components come out in reverse topological order (dependencies first);
// members of a component are sorted by node index. When positiveOnly is set,
// negative edges are ignored.
func (g *Graph) SCCs(positiveOnly bool) [][]int {
	t := &tarjan{
		g:            g,
		positiveOnly: positiveOnly,
		index:        make([]int, len(g.Nodes)),
		low:          make([]int, len(g.Nodes)),
		onStack:      make([]bool, len(g.Nodes)),
	}
	for i := range t.index {
		t.index[i] = -1
	}
	for v := range g.Nodes {
		if t.index[v] < 0 {
			t.connect(v)
		}
	}
	return t.out
}

type tarjan struct {
	g            *Graph
	positiveOnly bool
	next         int
	index        []int
	low          []int
	onStack      []bool
	stack        []int
	out          [][]int
}

func (t *tarjan) connect(v int) {
	t.index[v] = t.next
	t.low[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, e := range t.g.Edges[v] {
		if t.positiveOnly && e.Negative {
			continue
		}
		switch {
		case t.index[e.To] < 0:
			t.connect(e.To)
			t.low[v] = min(t.low[v], t.low[e.To])
		case t.onStack[e.To]:
			t.low[v] = min(t.low[v], t.index[e.To])
		}
	}

	if t.low[v] != t.index[v] {
		return
	}
	var comp []int
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		comp = append(comp, w)
		if w == v {
			break
		}
	}
	sort.Ints(comp)
	t.out = append(t.out, comp)
}

// recursive reports whether comp is a cycle: more than one node, or a node
// with an edge to itself.
func (g *Graph) recursive(comp []int, positiveOnly bool) bool {
	if len(comp) > 1 {
		return true
	}
	for _, e := range g.Edges[comp[0]] {
		if e.To == comp[0] && !(positiveOnly && e.Negative) {
			return true
		}
	}
	return false
}

// path returns the nodes of a shortest path from -> to that stays inside
// members, both ends included.
func (g *Graph) path(from, to int, members map[int]bool) []int {
	prev := map[int]int{from: from}
	queue := []int{from}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if v == to {
			break
		}
		for _, e := range g.Edges[v] {
			if _, seen := prev[e.To]; seen || !members[e.To] {
				continue
			}
			prev[e.To] = v
			queue = append(queue, e.To)
		}
	}
	if _, ok := prev[to]; !ok {
		return nil
	}
	var out []int
	for v := to; ; v = prev[v] {
		out = append(out, v)
		if v == from {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
