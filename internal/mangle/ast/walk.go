package ast

import (
	"strconv"
	"strings"
)

// Inspect traverses t depth-first in source order, calling fn for each node.
// Children are skipped when fn returns false.
func Inspect(t Term, fn func(Term) bool) {
	if t == nil || !fn(t) {
		return
	}
	switch n := t.(type) {
	case *Variable, *Constant:
	case *ApplyFn:
		for _, a := range n.Args {
			Inspect(a, fn)
		}
	case *Atom:
		for _, a := range n.Args {
			Inspect(a, fn)
		}
	case *NegAtom:
		Inspect(n.Atom, fn)
	case *Eq:
		Inspect(n.Left, fn)
		Inspect(n.Right, fn)
	case *Ineq:
		Inspect(n.Left, fn)
		Inspect(n.Right, fn)
	}
}

// Variables returns every variable occurrence in t in source order,
// wildcards included.
func Variables(t Term) []*Variable {
	var out []*Variable
	Inspect(t, func(n Term) bool {
		if v, ok := n.(*Variable); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

// VarSet is a set of variable names.
type VarSet map[string]struct{}

// NamedVars returns the names of the non-wildcard variables of t.
func NamedVars(t Term) VarSet {
	s := VarSet{}
	s.AddTerm(t)
	return s
}

// Add inserts name.
func (s VarSet) Add(name string) { s[name] = struct{}{} }

// Has reports membership.
func (s VarSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// AddTerm inserts every non-wildcard variable of t.
func (s VarSet) AddTerm(t Term) {
	for _, v := range Variables(t) {
		if !v.IsWildcard() {
			s.Add(v.Symbol)
		}
	}
}

// AddAll inserts every member of o.
func (s VarSet) AddAll(o VarSet) {
	for k := range o {
		s.Add(k)
	}
}

// SubsetOf reports whether every member of s is in o.
func (s VarSet) SubsetOf(o VarSet) bool {
	for k := range s {
		if !o.Has(k) {
			return false
		}
	}
	return true
}

// Clone copies the set.
func (s VarSet) Clone() VarSet {
	out := make(VarSet, len(s))
	out.AddAll(s)
	return out
}

// Missing returns the variables of t, in source order and without
// duplicates, that are absent from s.
func (s VarSet) Missing(t Term) []string {
	var out []string
	seen := VarSet{}
	for _, v := range Variables(t) {
		if v.IsWildcard() || s.Has(v.Symbol) || seen.Has(v.Symbol) {
			continue
		}
		seen.Add(v.Symbol)
		out = append(out, v.Symbol)
	}
	return out
}

// ============================================================================
// Printing
// ============================================================================

func (t *Variable) String() string { return t.Symbol }

func (t *Constant) String() string {
	if t.Raw != "" {
		return t.Raw
	}
	switch t.Kind {
	case NameConst:
		return t.Text
	case NumberConst:
		return strconv.FormatInt(t.Int, 10)
	case FloatConst:
		return strconv.FormatFloat(t.Float, 'g', -1, 64)
	case StringConst:
		return strconv.Quote(t.Text)
	case BytesConst:
		return "b" + strconv.Quote(t.Text)
	}
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return t.Kind.String() + "(" + strings.Join(parts, ", ") + ")"
}

func (t *ApplyFn) String() string { return t.Function.Symbol + "(" + joinTerms(t.Args) + ")" }

func (t *Atom) String() string { return t.Predicate.Symbol + "(" + joinTerms(t.Args) + ")" }

func (t *NegAtom) String() string { return "!" + t.Atom.String() }

func (t *Eq) String() string { return t.Left.String() + " = " + t.Right.String() }

func (t *Ineq) String() string { return t.Left.String() + " != " + t.Right.String() }

func joinTerms(ts []Term) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func (c *Clause) String() string {
	var sb strings.Builder
	sb.WriteString(c.Head.String())
	if c.IsFact() {
		sb.WriteString(".")
		return sb.String()
	}
	sb.WriteString(" :- ")
	sb.WriteString(joinTerms(c.Premises))
	for _, st := range c.Transform.Stages() {
		sb.WriteString(" |> ")
		for i, s := range st.Statements {
			if i > 0 {
				sb.WriteString(", ")
			}
			if s.IsDo() {
				sb.WriteString("do " + s.Fn.String())
			} else {
				sb.WriteString("let " + s.Var.Symbol + " = " + s.Fn.String())
			}
		}
	}
	sb.WriteString(".")
	return sb.String()
}
