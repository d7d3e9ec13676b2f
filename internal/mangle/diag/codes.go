package diag

import "sort"

// Code is a stable diagnostic identifier.
type Code string

const (
	CodeLexical Code = "P001"
	CodeSyntax  Code = "P002"

	CodeNonGroundFact        Code = "E001"
	CodeRangeRestriction     Code = "E002"
	CodeUnboundNegation      Code = "E003"
	CodeUnboundComparison    Code = "E004"
	CodeUnknownPredicate     Code = "E005"
	CodeUnknownFunction      Code = "E006"
	CodePredicateArity       Code = "E007"
	CodeFunctionArity        Code = "E008"
	CodeUnboundInput         Code = "E009"
	CodeGroupByNotVariable   Code = "E010"
	CodeGroupByUnbound       Code = "E011"
	CodeGroupByDuplicate     Code = "E012"
	CodeLetUnbound           Code = "E013"
	CodeTransformRedefines   Code = "E014"
	CodeStratification       Code = "E015"
	CodeBoundArity           Code = "E016"
	CodeDuplicateDecl        Code = "E017"
	CodePrivateReference     Code = "E018"
	CodeBadName              Code = "E019"
	CodePackageCase          Code = "E020"
	CodeBadEscape            Code = "E021"
	CodeOddPairs             Code = "E022"
	CodeBuiltinHead          Code = "E023"
	CodeDeclArgument         Code = "E024"
	CodeReducerContext       Code = "E025"
	CodeLetTwice             Code = "E026"
	CodeDeclaredArity        Code = "E027"
	CodeUseCase              Code = "E028"
	CodeDoGroupBy            Code = "E029"
	CodeDivisionByZero       Code = "E035"
	CodeWildcardHead         Code = "W001"
	CodeUnboundedRecursion   Code = "W002"
	CodeCartesianExplosion   Code = "W003"
	CodeLateFiltering        Code = "W004"
	CodeLateNegation         Code = "W005"
	CodeIndependentVariables Code = "W006"
	CodeUndefinedPredicate   Code = "I001"
	CodeReferenceParse       Code = "R001"
	CodeReferenceAnalysis    Code = "R002"
)

type codeInfo struct {
	severity Severity
	summary  string
}

var registry = map[Code]codeInfo{
	CodeLexical:              {SeverityError, "lexical error"},
	CodeSyntax:               {SeverityError, "syntax error"},
	CodeNonGroundFact:        {SeverityError, "variables in facts must be ground"},
	CodeRangeRestriction:     {SeverityError, "head variable is not bound by any positive premise"},
	CodeUnboundNegation:      {SeverityError, "variable in negated atom is not bound before the negation"},
	CodeUnboundComparison:    {SeverityError, "variable in comparison is not bound before the comparison"},
	CodeUnknownPredicate:     {SeverityError, "unknown built-in predicate"},
	CodeUnknownFunction:      {SeverityError, "unknown built-in function"},
	CodePredicateArity:       {SeverityError, "wrong number of arguments to built-in predicate"},
	CodeFunctionArity:        {SeverityError, "wrong number of arguments to built-in function"},
	CodeUnboundInput:         {SeverityError, "input argument of built-in predicate is not bound"},
	CodeGroupByNotVariable:   {SeverityError, "fn:group_by arguments must be variables"},
	CodeGroupByUnbound:       {SeverityError, "fn:group_by variable is not bound by the body"},
	CodeGroupByDuplicate:     {SeverityError, "fn:group_by variable is repeated"},
	CodeLetUnbound:           {SeverityError, "let expression uses an unbound variable"},
	CodeTransformRedefines:   {SeverityError, "transform redefines a variable bound by the body"},
	CodeStratification:       {SeverityError, "program is not stratifiable: recursion through negation"},
	CodeBoundArity:           {SeverityError, "bound list length differs from the declared arity"},
	CodeDuplicateDecl:        {SeverityError, "predicate declared more than once"},
	CodePrivateReference:     {SeverityError, "private predicate referenced from another package"},
	CodeBadName:              {SeverityError, "malformed name constant"},
	CodePackageCase:          {SeverityError, "package name must be lowercase"},
	CodeBadEscape:            {SeverityError, "invalid escape sequence in string literal"},
	CodeOddPairs:             {SeverityError, "fn:map and fn:struct need an even number of arguments"},
	CodeBuiltinHead:          {SeverityError, "built-in predicates and functions cannot be defined"},
	CodeDeclArgument:         {SeverityError, "declared atom arguments must be variables"},
	CodeReducerContext:       {SeverityError, "reducer used outside a grouping transform"},
	CodeLetTwice:             {SeverityError, "let variable defined twice in one transform chain"},
	CodeDeclaredArity:        {SeverityError, "predicate used with an arity that differs from its declaration"},
	CodeUseCase:              {SeverityError, "used package name must be lowercase"},
	CodeDoGroupBy:            {SeverityError, "do statements must call fn:group_by, and only there"},
	CodeDivisionByZero:       {SeverityError, "division by zero"},
	CodeWildcardHead:         {SeverityWarning, "wildcard in clause head"},
	CodeUnboundedRecursion:   {SeverityWarning, "recursion without a bound declaration may not terminate"},
	CodeCartesianExplosion:   {SeverityWarning, "premises share no variables and form a cross product"},
	CodeLateFiltering:        {SeverityWarning, "filter could run before later joins"},
	CodeLateNegation:         {SeverityWarning, "negation could run before later joins"},
	CodeIndependentVariables: {SeverityWarning, "head exposes variables from unrelated premises"},
	CodeUndefinedPredicate:   {SeverityInfo, "predicate is neither defined nor declared in this unit"},
	CodeReferenceParse:       {SeverityWarning, "reference parser rejected the unit"},
	CodeReferenceAnalysis:    {SeverityWarning, "reference analysis rejected the unit"},
}

// Severity returns the default severity of c.
func (c Code) Severity() Severity {
	if info, ok := registry[c]; ok {
		return info.severity
	}
	return SeverityError
}

// Describe returns a one-line summary of c, or "" for unknown codes.
func (c Code) Describe() string {
	return registry[c].summary
}

// Known reports whether c is registered.
func (c Code) Known() bool {
	_, ok := registry[c]
	return ok
}

// Codes lists every registered code in order.
func Codes() []Code {
	out := make([]Code, 0, len(registry))
	for c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
