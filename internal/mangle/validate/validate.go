// Package validate runs the semantic checks of a parsed unit and builds its
// symbol table.
//
// Every check is independent and runs for every clause, so one broken clause
// never hides findings in another. Binding-order checks look at premises in
// the order the clause rewriter would evaluate them.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"mglint/internal/mangle/ast"
	"mglint/internal/mangle/builtin"
	"mglint/internal/mangle/diag"
	"mglint/internal/mangle/parse"
	"mglint/internal/mangle/rewrite"
	"mglint/internal/mangle/symbols"
)

// Result carries the semantic channel and the symbol table.
type Result struct {
	Errors  []diag.Diagnostic
	Symbols *symbols.Table
}

var (
	nameConstantPattern = regexp.MustCompile(`^(/[A-Za-z0-9_.\-~%]+)+$`)
	packageNamePattern  = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)
)

type validator struct {
	unit     *ast.SourceUnit
	cat      *builtin.Catalog
	table    *symbols.Table
	decls    map[ast.PredicateSym]*ast.Decl
	arities  map[string][]int
	reported map[ast.PredicateSym]bool
	out      []diag.Diagnostic
}

// Validate checks unit against the built-in catalog (nil means the default
// catalog). A nil unit yields no diagnostics and an empty table.
func Validate(unit *ast.SourceUnit, cat *builtin.Catalog) Result {
	if cat == nil {
		cat = builtin.Default()
	}
	v := &validator{
		unit:     unit,
		cat:      cat,
		table:    symbols.Build(unit, cat),
		decls:    make(map[ast.PredicateSym]*ast.Decl),
		arities:  make(map[string][]int),
		reported: make(map[ast.PredicateSym]bool),
	}
	if unit == nil {
		return Result{Symbols: v.table}
	}

	v.checkHeader()
	for _, d := range unit.Decls {
		v.checkDecl(d)
	}
	for _, c := range unit.Clauses {
		v.checkClause(c)
	}

	diag.Sort(v.out)
	return Result{Errors: v.out, Symbols: v.table}
}

func (v *validator) report(code diag.Code, r ast.Range, format string, args ...interface{}) {
	v.out = append(v.out, diag.New(code, r, format, args...))
}

// ============================================================================
// Header and declarations
// ============================================================================

func (v *validator) checkHeader() {
	if p := v.unit.Package; p != nil {
		if !packageNamePattern.MatchString(p.Name) {
			v.report(diag.CodePackageCase, p.NameSpan, "package name %q must be lowercase", p.Name)
		}
		for _, a := range p.Atoms {
			v.checkConstants(a)
		}
	}
	for _, u := range v.unit.Uses {
		if !packageNamePattern.MatchString(u.Name) {
			v.report(diag.CodeUseCase, u.NameSpan, "used package name %q must be lowercase", u.Name)
		}
		for _, a := range u.Atoms {
			v.checkConstants(a)
		}
	}
}

func (v *validator) checkDecl(d *ast.Decl) {
	atom := d.DeclaredAtom
	sym := atom.Predicate

	if sym.IsBuiltin() || sym.IsFunction() {
		v.report(diag.CodeBuiltinHead, atom.NameSpan, "cannot declare built-in %s", sym.Symbol)
	}
	if prev, ok := v.decls[sym]; ok {
		v.report(diag.CodeDuplicateDecl, atom.Span, "%s is already declared at line %d", sym, prev.Span.Start.Line)
	} else {
		v.decls[sym] = d
		v.arities[sym.Symbol] = append(v.arities[sym.Symbol], sym.Arity)
	}

	for _, arg := range atom.Args {
		if _, ok := arg.(*ast.Variable); !ok {
			v.report(diag.CodeDeclArgument, arg.Range(), "argument %s of declared atom %s must be a variable", arg, sym.Symbol)
		}
	}
	for _, b := range d.Bounds {
		if len(b.Bounds) != sym.Arity {
			v.report(diag.CodeBoundArity, b.Span, "bound list has %d entries but %s has arity %d", len(b.Bounds), sym.Symbol, sym.Arity)
		}
		for _, t := range b.Bounds {
			v.checkConstants(t)
		}
	}

	v.checkConstants(atom)
	for _, a := range d.Descr {
		v.checkConstants(a)
	}
	for _, a := range d.Constraints {
		v.checkConstants(a)
	}
}

// ============================================================================
// Clauses
// ============================================================================

func (v *validator) checkClause(c *ast.Clause) {
	head := c.Head
	if head.Predicate.IsBuiltin() || head.Predicate.IsFunction() {
		v.report(diag.CodeBuiltinHead, head.NameSpan, "cannot define built-in %s", head.Predicate.Symbol)
	} else {
		v.checkUserAtom(head, false)
	}

	v.checkConstants(head)
	v.checkFunctions(head)
	for _, p := range c.Premises {
		v.checkConstants(p)
		v.checkFunctions(p)
	}

	if c.IsFact() {
		if vars := ast.Variables(head); len(vars) > 0 {
			v.report(diag.CodeNonGroundFact, head.Span, "fact %s contains variable(s) %s; facts must be ground", head.Predicate.Symbol, joinVars(vars))
		}
		return
	}
	for _, x := range ast.Variables(head) {
		if x.IsWildcard() {
			v.report(diag.CodeWildcardHead, x.Span, "wildcard in the head of %s produces an unbound value", head.Predicate.Symbol)
		}
	}

	v.checkBindingOrder(c)

	positive := v.positiveVars(c)
	available := positive
	if c.Transform != nil {
		available = v.checkTransform(c, positive)
	}
	if missing := available.Missing(head); len(missing) > 0 {
		v.report(diag.CodeRangeRestriction, head.Span, "head variable(s) %s of %s not bound by any positive premise",
			strings.Join(missing, ", "), head.Predicate.Symbol)
	}
}

// positiveVars collects the variables a clause body can bind: every variable
// of a user atom or an equality, and the output arguments of built-in atoms.
// Filters such as :lt bind nothing.
func (v *validator) positiveVars(c *ast.Clause) ast.VarSet {
	positive := ast.VarSet{}
	for _, p := range c.Premises {
		switch n := p.(type) {
		case *ast.Atom:
			if !n.Predicate.IsBuiltin() {
				positive.AddTerm(n)
				continue
			}
			spec, ok := v.cat.Predicate(n.Predicate.Symbol)
			if !ok {
				// already E005; do not pile a range error on top
				positive.AddTerm(n)
				continue
			}
			for i, arg := range n.Args {
				if i >= len(spec.Args) || spec.Args[i].Mode != builtin.ModeInput {
					positive.AddTerm(arg)
				}
			}
		case *ast.Eq:
			positive.AddTerm(n)
		}
	}
	return positive
}

// checkBindingOrder walks the premises in evaluation order and checks that
// negations, comparisons and built-in inputs only see bound variables.
func (v *validator) checkBindingOrder(c *ast.Clause) {
	reordered := rewrite.Reorder(c)
	bound := ast.VarSet{}

	for _, p := range reordered.Clause.Premises {
		switch n := p.(type) {
		case *ast.Atom:
			if n.Predicate.IsBuiltin() {
				v.checkBuiltinAtom(n, bound)
				continue
			}
			v.checkUserAtom(n, true)
			bound.AddTerm(n)
		case *ast.NegAtom:
			if n.Atom.Predicate.IsBuiltin() {
				v.checkBuiltinSignature(n.Atom)
			} else {
				v.checkUserAtom(n.Atom, true)
			}
			if missing := bound.Missing(n); len(missing) > 0 {
				v.report(diag.CodeUnboundNegation, n.Span, "variable(s) %s in %s must be bound by a positive premise before the negation",
					strings.Join(missing, ", "), n)
			}
		case *ast.Eq:
			bound.AddTerm(n)
		}
	}

	for _, n := range reordered.Dropped {
		if n.Atom.Predicate.IsBuiltin() {
			v.checkBuiltinSignature(n.Atom)
		} else {
			v.checkUserAtom(n.Atom, true)
		}
		v.report(diag.CodeUnboundNegation, n.Span, "variable(s) %s in %s are never bound by a positive premise, so the negation cannot be evaluated",
			strings.Join(bound.Missing(n), ", "), n)
	}
}

// checkBuiltinSignature reports unknown built-ins and arity mismatches.
func (v *validator) checkBuiltinSignature(a *ast.Atom) (builtin.PredicateSpec, bool) {
	spec, ok := v.cat.Predicate(a.Predicate.Symbol)
	if !ok {
		v.report(diag.CodeUnknownPredicate, a.NameSpan, "unknown built-in predicate %s", a.Predicate.Symbol)
		return spec, false
	}
	if !builtin.ArityMatches(spec.Arity, len(a.Args)) {
		v.report(diag.CodePredicateArity, a.NameSpan, "%s expects %d argument(s), got %d", spec.Name, spec.Arity, len(a.Args))
		return spec, false
	}
	return spec, true
}

func (v *validator) checkBuiltinAtom(a *ast.Atom, bound ast.VarSet) {
	spec, ok := v.checkBuiltinSignature(a)
	if !ok {
		bound.AddTerm(a)
		return
	}
	if builtin.IsComparison(spec.Name) {
		if missing := bound.Missing(a); len(missing) > 0 {
			v.report(diag.CodeUnboundComparison, a.Span, "variable(s) %s in comparison %s must be bound before it",
				strings.Join(missing, ", "), a)
		}
		return
	}

	modes := make([]builtin.Mode, len(a.Args))
	for i := range a.Args {
		modes[i] = builtin.ModeAny
		if i < len(spec.Args) {
			modes[i] = spec.Args[i].Mode
		}
	}
	for i, arg := range a.Args {
		if modes[i] != builtin.ModeInput {
			continue
		}
		if missing := bound.Missing(arg); len(missing) > 0 {
			v.report(diag.CodeUnboundInput, arg.Range(), "input argument %s of %s uses unbound variable(s) %s",
				arg, spec.Name, strings.Join(missing, ", "))
		}
	}
	for i, arg := range a.Args {
		if modes[i] != builtin.ModeInput {
			bound.AddTerm(arg)
		}
	}
}

// checkUserAtom runs the per-occurrence checks of a user predicate.
func (v *validator) checkUserAtom(a *ast.Atom, premise bool) {
	sym := a.Predicate

	if pkg, tip, ok := splitQualified(sym.Symbol); ok && strings.HasPrefix(tip, "_") && pkg != v.unit.PackageName() {
		v.report(diag.CodePrivateReference, a.NameSpan, "%s is private to package %s", sym.Symbol, pkg)
	}

	if _, declared := v.decls[sym]; !declared {
		if arities := v.arities[sym.Symbol]; len(arities) > 0 {
			v.report(diag.CodeDeclaredArity, a.NameSpan, "%s is declared with arity %s but used with %d argument(s)",
				sym.Symbol, joinInts(arities), sym.Arity)
		}
	}

	if !premise || v.reported[sym] {
		return
	}
	if _, _, qualified := splitQualified(sym.Symbol); qualified {
		return
	}
	if info := v.table.Predicate(sym); info != nil && !info.Defined() {
		v.reported[sym] = true
		v.report(diag.CodeUndefinedPredicate, a.NameSpan, "%s is neither defined nor declared in this unit", sym)
	}
}

// checkTransform validates the transform chain and returns the variables
// available to the head after the last stage.
func (v *validator) checkTransform(c *ast.Clause, body ast.VarSet) ast.VarSet {
	in := body.Clone()
	chain := ast.VarSet{}

	for _, stage := range c.Transform.Stages() {
		var group ast.VarSet
		grouping := stageGroups(stage)
		lets := ast.VarSet{}

		for _, st := range stage.Statements {
			if st.IsDo() {
				v.checkFunction(st.Fn, siteDo)
				for _, arg := range st.Fn.Args {
					v.checkFunctions(arg)
					v.checkConstants(arg)
				}
				if st.Fn.Function.Symbol != builtin.GroupBy {
					continue
				}
				group = v.checkGroupBy(st.Fn, in)
				continue
			}

			site := siteTerm
			if grouping {
				site = siteReducer
			}
			v.checkFunction(st.Fn, site)
			for _, arg := range st.Fn.Args {
				v.checkFunctions(arg)
				v.checkConstants(arg)
			}

			name := st.Var.Symbol
			switch {
			case st.Var.IsWildcard():
			case chain.Has(name):
				v.report(diag.CodeLetTwice, st.Var.Span, "%s is already defined earlier in this transform chain", name)
			case body.Has(name) || in.Has(name):
				v.report(diag.CodeTransformRedefines, st.Var.Span, "let %s redefines a variable bound by the clause body", name)
			}

			scope := in.Clone()
			scope.AddAll(lets)
			if missing := scope.Missing(st.Fn); len(missing) > 0 {
				v.report(diag.CodeLetUnbound, st.Fn.Span, "let %s uses unbound variable(s) %s", name, strings.Join(missing, ", "))
			}
			if !st.Var.IsWildcard() {
				lets.Add(name)
				chain.Add(name)
			}
		}

		if group != nil {
			in = group
		}
		in.AddAll(lets)
	}
	return in
}

func stageGroups(stage *ast.Transform) bool {
	for _, st := range stage.Statements {
		if st.IsDo() && st.Fn.Function.Symbol == builtin.GroupBy {
			return true
		}
	}
	return false
}

func (v *validator) checkGroupBy(fn *ast.ApplyFn, in ast.VarSet) ast.VarSet {
	group := ast.VarSet{}
	for _, arg := range fn.Args {
		x, ok := arg.(*ast.Variable)
		if !ok || x.IsWildcard() {
			v.report(diag.CodeGroupByNotVariable, arg.Range(), "fn:group_by argument %s is not a variable", arg)
			continue
		}
		if group.Has(x.Symbol) {
			v.report(diag.CodeGroupByDuplicate, x.Span, "%s appears more than once in fn:group_by", x.Symbol)
			continue
		}
		group.Add(x.Symbol)
		if !in.Has(x.Symbol) {
			v.report(diag.CodeGroupByUnbound, x.Span, "fn:group_by variable %s is not bound by the clause body", x.Symbol)
		}
	}
	return group
}

// ============================================================================
// Terms
// ============================================================================

type fnSite int

const (
	siteTerm    fnSite = iota // anywhere reducers and group_by are not allowed
	siteDo                    // the function of a do statement
	siteReducer               // the function of a let in a grouping stage
)

func (v *validator) checkFunctions(t ast.Term) {
	ast.Inspect(t, func(n ast.Term) bool {
		if fn, ok := n.(*ast.ApplyFn); ok {
			v.checkFunction(fn, siteTerm)
		}
		return true
	})
}

func (v *validator) checkFunction(fn *ast.ApplyFn, site fnSite) {
	name := fn.Function.Symbol
	spec, ok := v.cat.Function(name)
	if !ok {
		v.report(diag.CodeUnknownFunction, fn.NameSpan, "unknown built-in function %s", name)
		return
	}
	if !builtin.ArityMatches(spec.Arity, len(fn.Args)) {
		v.report(diag.CodeFunctionArity, fn.NameSpan, "%s expects %d argument(s), got %d", name, spec.Arity, len(fn.Args))
	}

	switch {
	case site == siteDo && name != builtin.GroupBy:
		v.report(diag.CodeDoGroupBy, fn.NameSpan, "do statements must call %s, found %s", builtin.GroupBy, name)
	case site != siteDo && name == builtin.GroupBy:
		v.report(diag.CodeDoGroupBy, fn.NameSpan, "%s may only appear in a do statement", builtin.GroupBy)
	case spec.Reducer && site != siteReducer:
		v.report(diag.CodeReducerContext, fn.NameSpan, "reducer %s may only appear in a let statement after do %s", name, builtin.GroupBy)
	}

	switch name {
	case "fn:map", "fn:struct":
		if len(fn.Args)%2 != 0 {
			v.report(diag.CodeOddPairs, fn.Span, "%s needs key/value pairs, got %d argument(s)", name, len(fn.Args))
		}
	case "fn:div", "fn:float:div":
		for _, arg := range fn.Args[min(1, len(fn.Args)):] {
			if isLiteralZero(arg) {
				v.report(diag.CodeDivisionByZero, arg.Range(), "%s divides by the literal %s", name, arg)
			}
		}
	}
}

func isLiteralZero(t ast.Term) bool {
	c, ok := t.(*ast.Constant)
	if !ok {
		return false
	}
	switch c.Kind {
	case ast.NumberConst:
		return c.Int == 0
	case ast.FloatConst:
		return c.Float == 0
	}
	return false
}

func (v *validator) checkConstants(t ast.Term) {
	ast.Inspect(t, func(n ast.Term) bool {
		c, ok := n.(*ast.Constant)
		if !ok {
			return true
		}
		switch c.Kind {
		case ast.NameConst:
			if !nameConstantPattern.MatchString(c.Text) {
				v.report(diag.CodeBadName, c.Span, "malformed name constant %s", c.Text)
			}
		case ast.StringConst, ast.BytesConst:
			for _, esc := range parse.InvalidEscapes(c.Raw) {
				v.report(diag.CodeBadEscape, c.Span, "invalid escape sequence %s", esc)
			}
		}
		return true
	})
}

// ============================================================================
// Helpers
// ============================================================================

// splitQualified splits "pkg.sub.name" into ("pkg.sub", "name").
func splitQualified(name string) (pkg, tip string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", name, false
	}
	return name[:i], name[i+1:], true
}

func joinVars(vars []*ast.Variable) string {
	seen := map[string]bool{}
	var names []string
	for _, x := range vars {
		if !seen[x.Symbol] {
			seen[x.Symbol] = true
			names = append(names, x.Symbol)
		}
	}
	return strings.Join(names, ", ")
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
