package parse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mglint/internal/mangle/ast"
)

const ancestorProgram = `
parent(/alice, /bob).
parent(/bob, /carol).
ancestor(X, Y) :- parent(X, Y).
ancestor(X, Z) :- parent(X, Y), ancestor(Y, Z).
`

var ignorePositions = cmpopts.IgnoreTypes(ast.Range{})

func mustParse(t *testing.T, src string) *ast.SourceUnit {
	t.Helper()
	unit, errs := Parse(src)
	require.Empty(t, errs)
	require.NotNil(t, unit)
	return unit
}

func sym(name string, arity int) ast.PredicateSym {
	return ast.PredicateSym{Symbol: name, Arity: arity}
}

func TestParseAncestorProgram(t *testing.T) {
	unit := mustParse(t, ancestorProgram)
	require.Len(t, unit.Clauses, 4)

	assert.True(t, unit.Clauses[0].IsFact())
	assert.Equal(t, sym("parent", 2), unit.Clauses[0].Head.Predicate)

	rule := unit.Clauses[3]
	assert.Equal(t, sym("ancestor", 2), rule.Head.Predicate)
	require.Len(t, rule.Premises, 2)
	assert.Equal(t, "parent(X, Y)", rule.Premises[0].String())
	assert.Equal(t, "ancestor(Y, Z)", rule.Premises[1].String())
}

func TestParseDeterministic(t *testing.T) {
	first, errs1 := Parse(ancestorProgram)
	second, errs2 := Parse(ancestorProgram)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Parse() not deterministic (-first +second):\n%s", diff)
	}
	assert.Equal(t, errs1, errs2)
}

func TestParseComparisonsDesugar(t *testing.T) {
	unit := mustParse(t, "small(X) :- num(X), X < 3, X >= 0, X != 2, Y = X.")
	premises := unit.Clauses[0].Premises
	require.Len(t, premises, 5)

	lt, ok := premises[1].(*ast.Atom)
	require.True(t, ok)
	assert.Equal(t, sym(":lt", 2), lt.Predicate)

	ge, ok := premises[2].(*ast.Atom)
	require.True(t, ok)
	assert.Equal(t, sym(":ge", 2), ge.Predicate)

	assert.IsType(t, &ast.Ineq{}, premises[3])
	assert.IsType(t, &ast.Eq{}, premises[4])
}

func TestParseCompositeLiterals(t *testing.T) {
	unit := mustParse(t, `data([1, 2], [/a: "x", /b: "y"], {/name: "n"}, []).`)
	args := unit.Clauses[0].Head.Args
	require.Len(t, args, 4)

	want := []ast.Term{
		&ast.ApplyFn{Function: sym("fn:list", 2), Args: []ast.Term{
			&ast.Constant{Kind: ast.NumberConst, Int: 1, Raw: "1"},
			&ast.Constant{Kind: ast.NumberConst, Int: 2, Raw: "2"},
		}},
		&ast.ApplyFn{Function: sym("fn:map", 4), Args: []ast.Term{
			&ast.Constant{Kind: ast.NameConst, Text: "/a", Raw: "/a"},
			&ast.Constant{Kind: ast.StringConst, Text: "x", Raw: `"x"`},
			&ast.Constant{Kind: ast.NameConst, Text: "/b", Raw: "/b"},
			&ast.Constant{Kind: ast.StringConst, Text: "y", Raw: `"y"`},
		}},
		&ast.ApplyFn{Function: sym("fn:struct", 2), Args: []ast.Term{
			&ast.Constant{Kind: ast.NameConst, Text: "/name", Raw: "/name"},
			&ast.Constant{Kind: ast.StringConst, Text: "n", Raw: `"n"`},
		}},
		&ast.ApplyFn{Function: sym("fn:list", 0)},
	}
	if diff := cmp.Diff(want, args, ignorePositions); diff != "" {
		t.Errorf("head args mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDeclaration(t *testing.T) {
	unit := mustParse(t, `
Decl edge(X, Y)
  descr [doc("A directed edge."), mode('+', '-')]
  bound [/string, /string]
  bound [/number, /number].
`)
	require.Len(t, unit.Decls, 1)
	d := unit.Decls[0]
	assert.Equal(t, sym("edge", 2), d.DeclaredAtom.Predicate)
	assert.Len(t, d.Descr, 2)
	assert.Len(t, d.Bounds, 2)
	assert.Equal(t, "A directed edge.", d.Doc())
	assert.Equal(t, 2, d.Span.Start.Line)
	assert.Equal(t, 5, d.Span.End.Line)
}

func TestParsePackageAndUse(t *testing.T) {
	unit := mustParse(t, "Package graph.core!\nUse util!\nnode(/a).")
	require.NotNil(t, unit.Package)
	assert.Equal(t, "graph.core", unit.Package.Name)
	require.Len(t, unit.Uses, 1)
	assert.Equal(t, "util", unit.Uses[0].Name)
	assert.Len(t, unit.Clauses, 1)
}

func TestParseUppercasePackageIsAccepted(t *testing.T) {
	// Case is a semantic rule, not a syntactic one.
	unit := mustParse(t, "Package Graph!\nnode(/a).")
	assert.Equal(t, "Graph", unit.Package.Name)
}

func TestParseTransforms(t *testing.T) {
	unit := mustParse(t, `total(K, S) :- sale(K, V) |> do fn:group_by(K), let S = fn:sum(V) |> let T = fn:plus(S, 1).`)
	c := unit.Clauses[0]
	require.NotNil(t, c.Transform)
	stages := c.Transform.Stages()
	require.Len(t, stages, 2)

	require.Len(t, stages[0].Statements, 2)
	assert.True(t, stages[0].Statements[0].IsDo())
	assert.Equal(t, "fn:group_by", stages[0].Statements[0].Fn.Function.Symbol)
	assert.Equal(t, "S", stages[0].Statements[1].Var.Symbol)
	assert.Equal(t, "T", stages[1].Statements[0].Var.Symbol)
	assert.False(t, c.IsFact())
}

func TestParseNegationAndTemporal(t *testing.T) {
	unit := mustParse(t, "p(X) :- q(X)@[2024, 2025], ◇-[0d, 7d] r(X), !s(X).")
	premises := unit.Clauses[0].Premises
	require.Len(t, premises, 3)
	assert.Equal(t, "q(X)", premises[0].String())
	assert.Equal(t, "r(X)", premises[1].String())
	neg, ok := premises[2].(*ast.NegAtom)
	require.True(t, ok)
	assert.Equal(t, sym("s", 1), neg.Atom.Predicate)
}

func TestParseAlternativeImplication(t *testing.T) {
	unit := mustParse(t, "p(X) ⟸ q(X).")
	q := unit.Clauses[0].Premises[0].(*ast.Atom)
	// ⟸ is one code point but three bytes.
	assert.Equal(t, ast.Position{Line: 1, Column: 7, Offset: 9}, q.NameSpan.Start)
}

func TestParsePositions(t *testing.T) {
	unit := mustParse(t, "\nfoo(X, /bar).")
	head := unit.Clauses[0].Head
	assert.Equal(t, ast.Range{
		Start: ast.Position{Line: 2, Column: 0, Offset: 1},
		End:   ast.Position{Line: 2, Column: 3, Offset: 4},
	}, head.NameSpan)
	assert.Equal(t, 12, head.Span.End.Column)

	x := head.Args[0].(*ast.Variable)
	assert.True(t, x.Span.Contains(2, 4))
	assert.False(t, x.Span.Contains(2, 5))
}

func TestParseRecovery(t *testing.T) {
	src := "p(X) :- q(X) r(X).\nok(1).\nbad(.\nfine(2).\n"
	unit, errs := Parse(src)
	require.NotNil(t, unit)
	require.Len(t, errs, 2)
	assert.Equal(t, SourceParser, errs[0].Source)
	assert.Equal(t, 1, errs[0].Line)
	assert.Contains(t, errs[0].Message, "expected '.'")
	assert.Equal(t, 3, errs[1].Line)

	require.Len(t, unit.Clauses, 2)
	assert.Equal(t, "ok", unit.Clauses[0].Head.Predicate.Symbol)
	assert.Equal(t, "fine", unit.Clauses[1].Head.Predicate.Symbol)
}

func TestParseRecoveryAtLineStart(t *testing.T) {
	// The missing '.' is noticed at the next line's atom, which then parses.
	unit, errs := Parse("p(X) :- q(X)\nr(1).")
	require.Len(t, errs, 1)
	require.Len(t, unit.Clauses, 1)
	assert.Equal(t, "r", unit.Clauses[0].Head.Predicate.Symbol)
}

func TestParseLexerError(t *testing.T) {
	unit, errs := Parse("p(\"open).\nq(1).")
	require.Len(t, errs, 1)
	assert.Equal(t, SourceLexer, errs[0].Source)
	assert.Contains(t, errs[0].Message, "unterminated")
	require.NotNil(t, unit)
	assert.Len(t, unit.Clauses, 1)
}

func TestParseNilUnit(t *testing.T) {
	unit, errs := Parse("(((")
	assert.Nil(t, unit)
	assert.NotEmpty(t, errs)

	empty, errs := Parse("# only a comment\n")
	assert.Empty(t, errs)
	require.NotNil(t, empty)
	assert.Empty(t, empty.Clauses)
}

func TestParseMisplacedPackage(t *testing.T) {
	unit, errs := Parse("a(1).\nPackage late!\nb(2).")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "first declaration")
	assert.Len(t, unit.Clauses, 2)
}

func TestParseNestedPredicateRejected(t *testing.T) {
	_, errs := Parse("p(X) :- q(r(X)).")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "cannot be nested")
}

func TestStringEscapes(t *testing.T) {
	assert.Equal(t, "a\nb\"c", Unquote(`"a\nb\"c"`))
	assert.Equal(t, "é", Unquote(`'\u{e9}'`))
	assert.Equal(t, `x\qy`, Unquote(`"x\qy"`))
	assert.Equal(t, "AB", Unquote(`b"\x41B"`))

	assert.Empty(t, InvalidEscapes(`"fine \t \\ A"`))
	assert.Equal(t, []string{`\q`, `\u{zz}`[:2]}, InvalidEscapes(`"bad \q and \u{zz}"`))
}

func TestLexNumbers(t *testing.T) {
	toks, errs := Lex("-12 3.5 1e3 7.")
	require.Empty(t, errs)
	kinds := make([]TokenKind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []TokenKind{TokNumber, TokFloat, TokFloat, TokNumber, TokDot, TokEOF}, kinds)
}

func TestLexNames(t *testing.T) {
	toks, errs := Lex("/a/b.c /x.")
	require.Empty(t, errs)
	assert.Equal(t, "/a/b.c", toks[0].Text)
	assert.Equal(t, "/x", toks[1].Text)
	assert.Equal(t, TokDot, toks[2].Kind)
}
