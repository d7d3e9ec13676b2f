package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rng(l1, c1, l2, c2 int) Range {
	return Range{Start: Position{Line: l1, Column: c1}, End: Position{Line: l2, Column: c2}}
}

func TestRangeContains(t *testing.T) {
	single := rng(3, 4, 3, 8)
	multi := rng(2, 10, 4, 2)

	tests := []struct {
		name string
		r    Range
		line int
		col  int
		want bool
	}{
		{"start is inclusive", single, 3, 4, true},
		{"inside", single, 3, 7, true},
		{"end is exclusive", single, 3, 8, false},
		{"before start", single, 3, 3, false},
		{"other line", single, 2, 5, false},
		{"multi start line after start col", multi, 2, 40, true},
		{"multi start line before start col", multi, 2, 9, false},
		{"multi middle line any col", multi, 3, 0, true},
		{"multi end line before end col", multi, 4, 1, true},
		{"multi end line at end col", multi, 4, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Contains(tt.line, tt.col))
		})
	}
}

func TestSpan(t *testing.T) {
	got := Span(rng(2, 3, 2, 9), rng(1, 5, 2, 4))
	assert.Equal(t, rng(1, 5, 2, 9), got)
}

func TestVariablesAndVarSet(t *testing.T) {
	x := &Variable{Symbol: "X"}
	y := &Variable{Symbol: "Y"}
	w := &Variable{Symbol: Wildcard}
	atom := &Atom{
		Predicate: PredicateSym{Symbol: "edge", Arity: 3},
		Args:      []Term{x, &ApplyFn{Function: PredicateSym{Symbol: "fn:plus", Arity: 2}, Args: []Term{y, x}}, w},
	}

	vars := Variables(atom)
	assert.Len(t, vars, 4)
	assert.True(t, vars[3].IsWildcard())

	set := NamedVars(atom)
	assert.Len(t, set, 2)
	assert.True(t, set.Has("X"))
	assert.False(t, set.Has(Wildcard))

	bound := VarSet{}
	bound.Add("Y")
	assert.Equal(t, []string{"X"}, bound.Missing(atom))
	assert.False(t, set.SubsetOf(bound))
	bound.Add("X")
	assert.True(t, set.SubsetOf(bound))
}

func TestClauseString(t *testing.T) {
	x := &Variable{Symbol: "X"}
	c := &Clause{
		Head: &Atom{Predicate: PredicateSym{Symbol: "p", Arity: 1}, Args: []Term{x}},
		Premises: []Term{
			&Atom{Predicate: PredicateSym{Symbol: "q", Arity: 1}, Args: []Term{x}},
			&NegAtom{Atom: &Atom{Predicate: PredicateSym{Symbol: "r", Arity: 1}, Args: []Term{x}}},
		},
	}
	assert.Equal(t, "p(X) :- q(X), !r(X).", c.String())
	assert.False(t, c.IsFact())
}

func TestDeclDoc(t *testing.T) {
	d := &Decl{
		Descr: []*Atom{
			{Predicate: PredicateSym{Symbol: "doc", Arity: 2}, Args: []Term{
				&Constant{Kind: StringConst, Text: "first"},
				&Constant{Kind: StringConst, Text: "second"},
			}},
			{Predicate: PredicateSym{Symbol: "private", Arity: 0}},
		},
	}
	assert.Equal(t, "first\nsecond", d.Doc())
	assert.True(t, d.HasDescr("private"))
	assert.False(t, d.HasDescr("mode"))
}
