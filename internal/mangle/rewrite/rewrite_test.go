package rewrite

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mglint/internal/mangle/ast"
	"mglint/internal/mangle/parse"
)

func parseClause(t *testing.T, src string) *ast.Clause {
	t.Helper()
	unit, errs := parse.Parse(src)
	require.Empty(t, errs)
	require.Len(t, unit.Clauses, 1)
	return unit.Clauses[0]
}

func premiseStrings(c *ast.Clause) []string {
	out := make([]string, len(c.Premises))
	for i, p := range c.Premises {
		out[i] = p.String()
	}
	return out
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    []string
		dropped []string
	}{
		{
			name: "negation delayed until bound",
			src:  "p(X, Y) :- !q(X), r(Y), s(X).",
			want: []string{"r(Y)", "s(X)", "!q(X)"},
		},
		{
			name:    "never bound negation is dropped",
			src:     "p(Y) :- !q(X), r(Y).",
			want:    []string{"r(Y)"},
			dropped: []string{"!q(X)"},
		},
		{
			name: "already bound negation stays in place",
			src:  "p(X) :- r(X), !q(X), s(X).",
			want: []string{"r(X)", "!q(X)", "s(X)"},
		},
		{
			name: "waiting negations keep relative order",
			src:  "p(X) :- !a(X), !b(X), r(X).",
			want: []string{"r(X)", "!a(X)", "!b(X)"},
		},
		{
			name: "equality binds",
			src:  "p(X) :- !q(X), X = 3.",
			want: []string{"X = 3", "!q(X)"},
		},
		{
			name: "wildcards need no binding",
			src:  "p(X) :- r(X), !q(X, _).",
			want: []string{"r(X)", "!q(X, _)"},
		},
		{
			name: "inequality emitted in place without binding",
			src:  "p(X) :- !q(Y), X != Y, r(X), s(Y).",
			want: []string{"X != Y", "r(X)", "s(Y)", "!q(Y)"},
		},
		{
			name:    "only negation",
			src:     "orphan(X) :- !parent(_, X).",
			want:    []string{},
			dropped: []string{"!parent(_, X)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := parseClause(t, tt.src)
			res := Reorder(c)
			assert.Equal(t, tt.want, premiseStrings(res.Clause))

			var dropped []string
			for _, d := range res.Dropped {
				dropped = append(dropped, d.String())
			}
			assert.Equal(t, tt.dropped, dropped)
		})
	}
}

func TestReorderDoesNotMutateInput(t *testing.T) {
	c := parseClause(t, "p(X, Y) :- !q(X), r(Y), s(X).")
	before := premiseStrings(c)
	_ = Clause(c)
	assert.Equal(t, before, premiseStrings(c))
}

func TestClauseIdempotent(t *testing.T) {
	sources := []string{
		"p(X, Y) :- !q(X), r(Y), s(X).",
		"p(Y) :- !q(X), r(Y).",
		"p(X) :- !a(X), !b(X), r(X), X != 3.",
		"orphan(X) :- !parent(_, X).",
		"total(K, S) :- !skip(K), sale(K, V) |> do fn:group_by(K), let S = fn:sum(V).",
		"fact(/a).",
	}
	for _, src := range sources {
		once := Clause(parseClause(t, src))
		twice := Clause(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("Clause(Clause(%q)) differs (-once +twice):\n%s", src, diff)
		}
	}
}

func TestUnit(t *testing.T) {
	unit, errs := parse.Parse("Decl p(X).\np(X) :- !q(X), r(X).\nq(1).")
	require.Empty(t, errs)

	out := Unit(unit)
	require.Len(t, out.Clauses, 2)
	assert.NotSame(t, unit.Clauses[0], out.Clauses[0])
	assert.Equal(t, []string{"r(X)", "!q(X)"}, premiseStrings(out.Clauses[0]))
	assert.Equal(t, unit.Decls, out.Decls)
	assert.Nil(t, Unit(nil))
}
