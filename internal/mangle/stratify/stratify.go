package stratify

import (
	"strings"

	"mglint/internal/mangle/ast"
	"mglint/internal/mangle/builtin"
	"mglint/internal/mangle/diag"
)

// Analyze runs the stratification check and every hazard detector. The
// result is ordered by source position.
func Analyze(unit *ast.SourceUnit) []diag.Diagnostic {
	var out []diag.Diagnostic
	out = append(out, CheckStratification(unit)...)
	out = append(out, CheckUnboundedRecursion(unit)...)
	out = append(out, CheckCartesianExplosion(unit)...)
	out = append(out, CheckLateFiltering(unit)...)
	out = append(out, CheckLateNegation(unit)...)
	out = append(out, CheckMultipleIndependentVars(unit)...)
	diag.Sort(out)
	return out
}

// CheckStratification reports one error per strongly connected component
// that contains a negative edge. Cycle lists the predicates along the
// offending loop, starting at the predicate whose clause holds the negation.
func CheckStratification(unit *ast.SourceUnit) []diag.Diagnostic {
	g := NewGraph(unit)
	var out []diag.Diagnostic
	for _, comp := range g.SCCs(false) {
		if !g.recursive(comp, false) {
			continue
		}
		members := memberSet(comp)
		from, edge, ok := g.firstNegativeEdge(comp, members)
		if !ok {
			continue
		}

		var cycle []string
		cycle = append(cycle, g.Nodes[from].Symbol)
		if edge.To != from {
			back := g.path(edge.To, from, members)
			for _, v := range back[:len(back)-1] {
				cycle = append(cycle, g.Nodes[v].Symbol)
			}
		}

		d := diag.New(diag.CodeStratification, edge.Site,
			"program is not stratifiable: %s depends negatively on itself via %s",
			g.Nodes[from].Symbol, strings.Join(append(cycle, cycle[0]), " -> "))
		d.Cycle = cycle
		out = append(out, d)
	}
	diag.Sort(out)
	return out
}

func (g *Graph) firstNegativeEdge(comp []int, members map[int]bool) (int, Edge, bool) {
	for _, v := range comp {
		for _, e := range g.Edges[v] {
			if e.Negative && members[e.To] {
				return v, e, true
			}
		}
	}
	return 0, Edge{}, false
}

func memberSet(comp []int) map[int]bool {
	m := make(map[int]bool, len(comp))
	for _, v := range comp {
		m[v] = true
	}
	return m
}

// CheckUnboundedRecursion warns about positive recursion when no predicate
// of the recursive component carries a bound declaration.
func CheckUnboundedRecursion(unit *ast.SourceUnit) []diag.Diagnostic {
	g := NewGraph(unit)
	bounded := map[ast.PredicateSym]bool{}
	if unit != nil {
		for _, d := range unit.Decls {
			if len(d.Bounds) > 0 {
				bounded[d.DeclaredAtom.Predicate] = true
			}
		}
	}

	var out []diag.Diagnostic
	for _, comp := range g.SCCs(true) {
		if !g.recursive(comp, true) {
			continue
		}
		names := make([]string, 0, len(comp))
		limited := false
		for _, v := range comp {
			names = append(names, g.Nodes[v].String())
			limited = limited || bounded[g.Nodes[v]]
		}
		if limited {
			continue
		}
		d := diag.New(diag.CodeUnboundedRecursion, g.heads[comp[0]],
			"recursive predicate(s) %s have no bound declaration; evaluation may not terminate", strings.Join(names, ", "))
		d.Cycle = names
		out = append(out, d)
	}
	diag.Sort(out)
	return out
}

// CheckCartesianExplosion warns when the positive user atoms of a body fall
// into two or more groups that share no variables.
func CheckCartesianExplosion(unit *ast.SourceUnit) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, c := range clauses(unit) {
		uf := joinGraph(c)
		var groups []*ast.Atom
		seen := map[string]bool{}
		for _, p := range c.Premises {
			a, ok := p.(*ast.Atom)
			if !ok || isBuiltin(a.Predicate) {
				continue
			}
			vars := ast.NamedVars(a)
			if len(vars) == 0 {
				continue
			}
			root := uf.find(anyVar(a))
			if !seen[root] {
				seen[root] = true
				groups = append(groups, a)
			}
		}
		if len(groups) < 2 {
			continue
		}
		out = append(out, diag.New(diag.CodeCartesianExplosion, groups[1].Span,
			"%s shares no variables with %s; the body computes a cross product", groups[1], groups[0]))
	}
	return out
}

// CheckLateFiltering warns about filters (comparisons, inequalities and
// all-input built-ins) that come after a join they could have pruned.
func CheckLateFiltering(unit *ast.SourceUnit) []diag.Diagnostic {
	cat := builtin.Default()
	isFilter := func(t ast.Term) bool {
		switch n := t.(type) {
		case *ast.Ineq:
			return true
		case *ast.Atom:
			spec, ok := cat.Predicate(n.Predicate.Symbol)
			return ok && spec.IsFilter()
		}
		return false
	}
	return lateChecks(unit, isFilter, diag.CodeLateFiltering, "filter %s could run before the join on %s")
}

// CheckLateNegation warns about negations that, in source order, come after
// a join although their variables were bound earlier.
func CheckLateNegation(unit *ast.SourceUnit) []diag.Diagnostic {
	isNeg := func(t ast.Term) bool {
		_, ok := t.(*ast.NegAtom)
		return ok
	}
	return lateChecks(unit, isNeg, diag.CodeLateNegation, "negation %s could run before the join on %s")
}

// lateChecks flags each premise matched by pick whose variables are all
// bound at some earlier point, when a user atom join sits between that point
// and the premise.
func lateChecks(unit *ast.SourceUnit, pick func(ast.Term) bool, code diag.Code, format string) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, c := range clauses(unit) {
		bound := ast.VarSet{}
		// boundAt[i] is the bound set before premise i.
		boundAt := make([]ast.VarSet, len(c.Premises))
		for i, p := range c.Premises {
			boundAt[i] = bound.Clone()
			switch n := p.(type) {
			case *ast.Atom, *ast.Eq:
				bound.AddTerm(n)
			}
		}

		for i, p := range c.Premises {
			if !pick(p) {
				continue
			}
			vars := ast.NamedVars(p)
			earliest := -1
			for j := 0; j < i; j++ {
				if vars.SubsetOf(boundAt[j]) {
					earliest = j
					break
				}
			}
			if earliest < 0 {
				continue
			}
			for j := earliest; j < i; j++ {
				a, ok := c.Premises[j].(*ast.Atom)
				if ok && !isBuiltin(a.Predicate) {
					out = append(out, diag.New(code, p.Range(), format, p, a))
					break
				}
			}
		}
	}
	return out
}

// CheckMultipleIndependentVars warns when head variables come from body
// premises that are not connected by shared variables.
func CheckMultipleIndependentVars(unit *ast.SourceUnit) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, c := range clauses(unit) {
		uf := joinGraph(c)
		groups := map[string][]string{}
		var roots []string
		for name := range orderedVars(c.Head) {
			if !uf.has(name) {
				continue
			}
			root := uf.find(name)
			if _, ok := groups[root]; !ok {
				roots = append(roots, root)
			}
			groups[root] = append(groups[root], name)
		}
		if len(roots) < 2 {
			continue
		}
		parts := make([]string, len(roots))
		for i, r := range roots {
			parts[i] = "{" + strings.Join(groups[r], ", ") + "}"
		}
		out = append(out, diag.New(diag.CodeIndependentVariables, c.Head.Span,
			"head of %s combines unrelated variable groups %s", c.Head.Predicate.Symbol, strings.Join(parts, " and ")))
	}
	return out
}

// ============================================================================
// Helpers
// ============================================================================

func clauses(unit *ast.SourceUnit) []*ast.Clause {
	if unit == nil {
		return nil
	}
	var out []*ast.Clause
	for _, c := range unit.Clauses {
		if !c.IsFact() {
			out = append(out, c)
		}
	}
	return out
}

// joinGraph unions the variables of every premise that moves data between
// them: user atoms, built-ins with outputs and equalities that bind a new
// variable. Filters (:lt, :string:contains, X = Y over bound variables)
// only test values and join nothing.
func joinGraph(c *ast.Clause) *unionFind {
	cat := builtin.Default()
	uf := newUnionFind()
	bound := ast.VarSet{}
	for _, p := range c.Premises {
		switch n := p.(type) {
		case *ast.Atom:
			if spec, ok := cat.Predicate(n.Predicate.Symbol); ok && spec.IsFilter() {
				continue
			}
		case *ast.Eq:
			if ast.NamedVars(n).SubsetOf(bound) {
				continue
			}
		default:
			continue
		}
		bound.AddTerm(p)

		var first string
		for _, v := range ast.Variables(p) {
			if v.IsWildcard() {
				continue
			}
			uf.add(v.Symbol)
			if first == "" {
				first = v.Symbol
				continue
			}
			uf.union(first, v.Symbol)
		}
	}
	return uf
}

func anyVar(t ast.Term) string {
	for _, v := range ast.Variables(t) {
		if !v.IsWildcard() {
			return v.Symbol
		}
	}
	return ""
}

// orderedVars yields the named variables of t in source order, once each.
func orderedVars(t ast.Term) func(func(string) bool) {
	return func(yield func(string) bool) {
		seen := ast.VarSet{}
		for _, v := range ast.Variables(t) {
			if v.IsWildcard() || seen.Has(v.Symbol) {
				continue
			}
			seen.Add(v.Symbol)
			if !yield(v.Symbol) {
				return
			}
		}
	}
}

type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) add(x string) {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
}

func (u *unionFind) has(x string) bool {
	_, ok := u.parent[x]
	return ok
}

func (u *unionFind) find(x string) string {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
