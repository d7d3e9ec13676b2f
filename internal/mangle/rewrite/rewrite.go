// Package rewrite reorders clause premises so that every negated atom is
// evaluated only after its variables are bound.
package rewrite

import "mglint/internal/mangle/ast"

// Result is a rewritten clause together with the negated premises that
// could never be scheduled.
type Result struct {
	Clause  *ast.Clause
	Dropped []*ast.NegAtom
}

type pending struct {
	neg  *ast.NegAtom
	vars ast.VarSet
}

// Reorder walks the premises once. Positive atoms and equalities are emitted
// in place and bind all their variables; inequalities are emitted in place
// and bind nothing. A negated atom is emitted as soon as all its variables
// are bound; waiting negations are released in their original relative order
// after each emission. Negations still waiting at the end are returned in
// Dropped and left out of the clause.
//
// The input clause is not modified.
func Reorder(c *ast.Clause) Result {
	out := &ast.Clause{
		Head:      c.Head,
		Transform: c.Transform,
		Span:      c.Span,
		Premises:  make([]ast.Term, 0, len(c.Premises)),
	}
	bound := ast.VarSet{}
	var waiting []pending

	release := func() {
		kept := waiting[:0]
		for _, w := range waiting {
			if w.vars.SubsetOf(bound) {
				out.Premises = append(out.Premises, w.neg)
				continue
			}
			kept = append(kept, w)
		}
		waiting = kept
	}

	for _, p := range c.Premises {
		switch n := p.(type) {
		case *ast.NegAtom:
			vars := ast.NamedVars(n)
			if vars.SubsetOf(bound) {
				out.Premises = append(out.Premises, n)
				continue
			}
			waiting = append(waiting, pending{neg: n, vars: vars})
		case *ast.Atom, *ast.Eq:
			bound.AddTerm(n)
			out.Premises = append(out.Premises, n)
			release()
		default:
			out.Premises = append(out.Premises, n)
		}
	}

	res := Result{Clause: out}
	for _, w := range waiting {
		res.Dropped = append(res.Dropped, w.neg)
	}
	if len(out.Premises) == 0 {
		out.Premises = nil
	}
	return res
}

// Clause returns the reordered copy of c.
func Clause(c *ast.Clause) *ast.Clause {
	return Reorder(c).Clause
}

// Unit rewrites every clause of u into a new unit. Declarations and headers
// are shared with u.
func Unit(u *ast.SourceUnit) *ast.SourceUnit {
	if u == nil {
		return nil
	}
	out := &ast.SourceUnit{
		Package: u.Package,
		Uses:    u.Uses,
		Decls:   u.Decls,
		Clauses: make([]*ast.Clause, len(u.Clauses)),
	}
	for i, c := range u.Clauses {
		out.Clauses[i] = Clause(c)
	}
	return out
}
