package validate

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mglint/internal/mangle/diag"
	"mglint/internal/mangle/parse"
)

func run(t *testing.T, src string) Result {
	t.Helper()
	unit, errs := parse.Parse(src)
	require.Empty(t, errs, "source must parse: %q", src)
	return Validate(unit, nil)
}

func codesOf(ds []diag.Diagnostic) []diag.Code {
	var out []diag.Code
	for _, d := range ds {
		out = append(out, d.Code)
	}
	return out
}

func TestValidateCodes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []diag.Code
	}{
		{"clean program", "parent(/a, /b).\nancestor(X, Y) :- parent(X, Y).\nancestor(X, Z) :- parent(X, Y), ancestor(Y, Z).", nil},
		{"non-ground fact", "p(X, Y).", []diag.Code{diag.CodeNonGroundFact}},
		{"range restriction", "q(/a).\np(X, Y) :- q(X).", []diag.Code{diag.CodeRangeRestriction}},
		{"negation delayed", "q(/a).\nr(/a).\np(X) :- !r(X), q(X).", nil},
		{"orphan negation", "parent(/a, /b).\norphan(X) :- !parent(_, X).", []diag.Code{diag.CodeRangeRestriction, diag.CodeUnboundNegation}},
		{"unbound comparison", "q(1).\np(X) :- q(X), Y < 3.", []diag.Code{diag.CodeUnboundComparison}},
		{"bound comparison", "q(1).\np(X) :- q(X), X < 3.", nil},
		{"unknown builtin", "q(1).\np(X) :- q(X), :nope(X).", []diag.Code{diag.CodeUnknownPredicate}},
		{"builtin arity", "q(1).\np(X) :- q(X), :lt(X).", []diag.Code{diag.CodePredicateArity}},
		{"unknown function", "q(1).\np(Y) :- q(X), Y = fn:nope(X).", []diag.Code{diag.CodeUnknownFunction}},
		{"function arity", "q(1).\np(Y) :- q(X), Y = fn:sqrt(X, X).", []diag.Code{diag.CodeFunctionArity}},
		{"unbound input", "q(1).\np(A) :- q(X), :match_pair(P, A, B).", []diag.Code{diag.CodeUnboundInput}},
		{"map lookup needs a bound key", "q(1).\np(V) :- q(M), :match_entry(M, K, V).", []diag.Code{diag.CodeUnboundInput}},
		{"map lookup with bound key", "q(1).\np(V) :- q(M), :match_entry(M, /k, V).", nil},
		{"comparison does not bind the head", "p(X) :- X < 3.", []diag.Code{diag.CodeRangeRestriction, diag.CodeUnboundComparison}},
		{"filter does not bind the head", "q(1).\np(X, Y) :- q(X), :string:starts_with(Y, \"a\").", []diag.Code{diag.CodeRangeRestriction, diag.CodeUnboundInput}},
		{"list and option functions", "q(1).\np(L, M, O, S) :- q(X), L = fn:list:cons(X, fn:list()), M = fn:list:append(L, X), O = fn:some(X), S = fn:float64:to_string(X).", nil},
		{"collect_to_map reducer", "q(1, 2).\np(X, M) :- q(X, Y) |> do fn:group_by(X), let M = fn:collect_to_map(Y, Y).", nil},
		{"bound input binds outputs", "q(1).\np(A) :- q(X), P = fn:pair(X, X), :match_pair(P, A, B).", nil},
		{"group_by constant", "q(1, 2).\np(X, N) :- q(X, Y) |> do fn:group_by(X, 3), let N = fn:count().", []diag.Code{diag.CodeGroupByNotVariable}},
		{"group_by unbound", "q(1, 2).\np(Z, N) :- q(X, Y) |> do fn:group_by(Z), let N = fn:count().", []diag.Code{diag.CodeGroupByUnbound}},
		{"group_by duplicate", "q(1, 2).\np(X, N) :- q(X, Y) |> do fn:group_by(X, X), let N = fn:count().", []diag.Code{diag.CodeGroupByDuplicate}},
		{"grouping drops body variables", "q(1, 2).\np(Y, N) :- q(X, Y) |> do fn:group_by(X), let N = fn:count().", []diag.Code{diag.CodeRangeRestriction}},
		{"let unbound", "q(1).\np(X, S) :- q(X) |> let S = fn:plus(X, W).", []diag.Code{diag.CodeLetUnbound}},
		{"let redefines body", "q(1).\np(X) :- q(X) |> let X = fn:plus(X, 1).", []diag.Code{diag.CodeTransformRedefines}},
		{"let twice", "q(1).\np(X, S) :- q(X) |> let S = fn:plus(X, 1), let S = fn:plus(X, 2).", []diag.Code{diag.CodeLetTwice}},
		{"reducer without grouping", "q(1).\np(X, S) :- q(X) |> let S = fn:sum(X).", []diag.Code{diag.CodeReducerContext}},
		{"group_by outside do", "q(1).\np(Y) :- q(X), Y = fn:group_by(X).", []diag.Code{diag.CodeDoGroupBy}},
		{"odd map", "q(1).\np(M) :- q(X), M = fn:map(/a, X, /b).", []diag.Code{diag.CodeOddPairs}},
		{"even literals", "q(1).\np(M, N) :- q(X), M = {/a: X}, N = [/a: X].", nil},
		{"division by zero", "q(1).\np(Y) :- q(X), Y = fn:div(X, 0).", []diag.Code{diag.CodeDivisionByZero}},
		{"malformed name", "p(/a//b).", []diag.Code{diag.CodeBadName}},
		{"bad escape", `p("bad \q").`, []diag.Code{diag.CodeBadEscape}},
		{"builtin head", ":lt(1, 2).", []diag.Code{diag.CodeBuiltinHead}},
		{"decl argument", "Decl p(X, /a).", []diag.Code{diag.CodeDeclArgument}},
		{"bound arity", "Decl p(X, Y) bound [/string].", []diag.Code{diag.CodeBoundArity}},
		{"duplicate decl", "Decl p(X).\nDecl p(Y).", []diag.Code{diag.CodeDuplicateDecl}},
		{"private reference", "Package app!\nq(X) :- other._secret(X).", []diag.Code{diag.CodePrivateReference}},
		{"private in own package", "Package other!\nq(X) :- other._secret(X).", nil},
		{"package case", "Package App!\np(/a).", []diag.Code{diag.CodePackageCase}},
		{"use case", "Use Util!\np(/a).", []diag.Code{diag.CodeUseCase}},
		{"declared arity", "Decl p(X).\nq(1).\np(X) :- q(X).\nr(X) :- p(X, X), q(X).", []diag.Code{diag.CodeDeclaredArity, diag.CodeUndefinedPredicate}},
		{"wildcard head", "q(1).\np(X, _) :- q(X).", []diag.Code{diag.CodeWildcardHead}},
		{"undefined predicate", "p(X) :- q(X).", []diag.Code{diag.CodeUndefinedPredicate}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.src)
			assert.Equal(t, tt.want, codesOf(res.Errors), "%v", res.Errors)
		})
	}
}

func TestOrphanNegationIsReportedAtTheNegation(t *testing.T) {
	res := run(t, "parent(/a, /b).\norphan(X) :- !parent(_, X).")
	var neg *diag.Diagnostic
	for i := range res.Errors {
		if res.Errors[i].Code == diag.CodeUnboundNegation {
			neg = &res.Errors[i]
		}
	}
	require.NotNil(t, neg)
	assert.Equal(t, 2, neg.Range.Start.Line)
	assert.Equal(t, 13, neg.Range.Start.Column)
	assert.Contains(t, neg.Message, "X")
	assert.Equal(t, diag.SeverityError, neg.Severity)
}

func TestOneRangeErrorPerClause(t *testing.T) {
	res := run(t, "q(/a).\np(X, Y, Z) :- q(X).\nr(A, B) :- q(A).")
	var lines []int
	for _, d := range res.Errors {
		if d.Code == diag.CodeRangeRestriction {
			lines = append(lines, d.Range.Start.Line)
		}
	}
	assert.Equal(t, []int{2, 3}, lines)
}

func TestOneErrorPerNonGroundFact(t *testing.T) {
	res := run(t, "p(X, Y, X).\np(/a, /b, /c).\nq(Z).")
	assert.Equal(t, []diag.Code{diag.CodeNonGroundFact, diag.CodeNonGroundFact}, codesOf(res.Errors))
	assert.Contains(t, res.Errors[0].Message, "X, Y")
}

func TestDiagnosticsAreOrderedBySource(t *testing.T) {
	res := run(t, "r(1).\np(X) :- r(Y).\nq(X).\ns(/a//b).")
	require.Len(t, res.Errors, 3)
	for i := 1; i < len(res.Errors); i++ {
		assert.False(t, res.Errors[i].Range.Start.Before(res.Errors[i-1].Range.Start))
	}
}

// Clauses whose head variables all occur in positive premises never get a
// range restriction error, whatever the premise order.
func TestRangeRestrictionSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vars := []string{"A", "B", "C", "D", "E"}

	for i := 0; i < 200; i++ {
		var premises []string
		var used []string
		for j := 0; j < 1+rng.Intn(3); j++ {
			x, y := vars[rng.Intn(len(vars))], vars[rng.Intn(len(vars))]
			premises = append(premises, fmt.Sprintf("e(%s, %s)", x, y))
			used = append(used, x, y)
		}
		if rng.Intn(2) == 0 {
			premises = append(premises, fmt.Sprintf("!f(%s)", used[rng.Intn(len(used))]))
		}
		if rng.Intn(2) == 0 {
			premises = append(premises, fmt.Sprintf("%s != %s", used[rng.Intn(len(used))], used[rng.Intn(len(used))]))
		}
		rng.Shuffle(len(premises), func(a, b int) { premises[a], premises[b] = premises[b], premises[a] })

		head := make([]string, 1+rng.Intn(2))
		for k := range head {
			head[k] = used[rng.Intn(len(used))]
		}
		src := fmt.Sprintf("e(1, 2).\nf(1).\nh(%s) :- %s.", strings.Join(head, ", "), strings.Join(premises, ", "))

		res := run(t, src)
		for _, d := range res.Errors {
			assert.NotEqual(t, diag.CodeRangeRestriction, d.Code, "%s: %s", src, d)
		}
	}
}

func TestValidateNilUnit(t *testing.T) {
	res := Validate(nil, nil)
	assert.Empty(t, res.Errors)
	require.NotNil(t, res.Symbols)
	assert.Empty(t, res.Symbols.Predicates())
}

func TestValidateBuildsSymbols(t *testing.T) {
	res := run(t, "q(1).\np(X) :- q(X).")
	require.NotNil(t, res.Symbols)
	assert.NotNil(t, res.Symbols.FindPredicateAt(2, 0))
}
