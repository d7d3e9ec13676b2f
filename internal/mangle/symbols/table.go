// Package symbols indexes the predicates and variables of a source unit and
// answers "what is at this position" queries for editor features.
package symbols

import (
	"fmt"
	"sort"

	"mglint/internal/mangle/ast"
	"mglint/internal/mangle/builtin"
)

// PredicateInfo aggregates everything known about one (name, arity) pair.
type PredicateInfo struct {
	Symbol        ast.PredicateSym
	DeclLocation  *ast.Range
	Definitions   []ast.Range // clause head atoms
	References    []ast.Range // premise and constraint atoms, function applications
	NameRanges    []ast.Range // every name token, for rename
	Documentation string
	Builtin       bool
}

// Defined reports whether the unit defines or declares the predicate.
func (p *PredicateInfo) Defined() bool {
	return p.DeclLocation != nil || len(p.Definitions) > 0
}

// VariableInfo describes one variable within one clause or declaration.
type VariableInfo struct {
	Name            string
	BindingLocation ast.Range
	Occurrences     []ast.Range
	Scope           ast.Range
}

type predEntry struct {
	r    ast.Range
	info *PredicateInfo
}

type varEntry struct {
	r    ast.Range
	info *VariableInfo
}

// Table is the symbol index of one unit. It is immutable after Build and
// safe for concurrent readers.
type Table struct {
	preds   map[ast.PredicateSym]*PredicateInfo
	order   []*PredicateInfo
	vars    []*VariableInfo
	predIdx []predEntry // name tokens
	atomIdx []predEntry // whole atoms
	varIdx  []varEntry
	catalog *builtin.Catalog
}

// Build indexes unit. A nil unit yields an empty table.
func Build(unit *ast.SourceUnit, cat *builtin.Catalog) *Table {
	if cat == nil {
		cat = builtin.Default()
	}
	t := &Table{preds: make(map[ast.PredicateSym]*PredicateInfo), catalog: cat}
	if unit == nil {
		return t
	}

	for _, d := range unit.Decls {
		t.addDecl(d)
	}
	for _, c := range unit.Clauses {
		t.addClause(c)
	}

	sort.SliceStable(t.predIdx, func(i, j int) bool {
		return t.predIdx[i].r.Start.Before(t.predIdx[j].r.Start)
	})
	sort.SliceStable(t.atomIdx, func(i, j int) bool {
		return t.atomIdx[i].r.Start.Before(t.atomIdx[j].r.Start)
	})
	sort.SliceStable(t.varIdx, func(i, j int) bool {
		return t.varIdx[i].r.Start.Before(t.varIdx[j].r.Start)
	})
	return t
}

func (t *Table) predicate(sym ast.PredicateSym) *PredicateInfo {
	if info, ok := t.preds[sym]; ok {
		return info
	}
	info := &PredicateInfo{Symbol: sym}
	switch {
	case sym.IsBuiltin():
		info.Builtin = true
		if spec, ok := t.catalog.Predicate(sym.Symbol); ok {
			info.Documentation = fmt.Sprintf("`%s`\n\n%s", spec.Signature(), spec.Doc)
		}
	case sym.IsFunction():
		info.Builtin = true
		if spec, ok := t.catalog.Function(sym.Symbol); ok {
			info.Documentation = spec.Doc
		}
	}
	t.preds[sym] = info
	t.order = append(t.order, info)
	return info
}

func (t *Table) addName(info *PredicateInfo, r ast.Range) {
	info.NameRanges = append(info.NameRanges, r)
	t.predIdx = append(t.predIdx, predEntry{r: r, info: info})
}

func (t *Table) addAtom(info *PredicateInfo, r ast.Range) {
	t.atomIdx = append(t.atomIdx, predEntry{r: r, info: info})
}

func (t *Table) addDecl(d *ast.Decl) {
	atom := d.DeclaredAtom
	info := t.predicate(atom.Predicate)
	t.addAtom(info, atom.Span)
	if info.DeclLocation == nil {
		r := atom.Span
		info.DeclLocation = &r
		info.Documentation = d.Doc()
	}
	t.addName(info, atom.NameSpan)
	for _, c := range d.Constraints {
		t.addReference(c)
	}

	scope := newScope(t, d.Span)
	for _, v := range ast.Variables(atom) {
		scope.visit(v, true)
	}
	for _, a := range d.Descr {
		for _, v := range ast.Variables(a) {
			scope.visit(v, false)
		}
	}
	scope.finish()
}

func (t *Table) addReference(a *ast.Atom) {
	info := t.predicate(a.Predicate)
	info.References = append(info.References, a.Span)
	t.addName(info, a.NameSpan)
	t.addAtom(info, a.Span)
	t.addFunctions(a)
}

func (t *Table) addFunctions(term ast.Term) {
	ast.Inspect(term, func(n ast.Term) bool {
		if fn, ok := n.(*ast.ApplyFn); ok {
			info := t.predicate(fn.Function)
			info.References = append(info.References, fn.Span)
			t.addName(info, fn.NameSpan)
		}
		return true
	})
}

func (t *Table) addClause(c *ast.Clause) {
	head := t.predicate(c.Head.Predicate)
	head.Definitions = append(head.Definitions, c.Head.Span)
	t.addName(head, c.Head.NameSpan)
	t.addAtom(head, c.Head.Span)
	t.addFunctions(c.Head)

	scope := newScope(t, c.Span)
	for _, v := range ast.Variables(c.Head) {
		scope.visit(v, false)
	}

	for _, p := range c.Premises {
		switch n := p.(type) {
		case *ast.Atom:
			t.addReference(n)
			scope.visitAll(n, true)
		case *ast.NegAtom:
			t.addReference(n.Atom)
			scope.visitAll(n, false)
		case *ast.Eq:
			t.addFunctions(n)
			scope.visitAll(n, true)
		default:
			t.addFunctions(n)
			scope.visitAll(n, false)
		}
	}

	for _, stage := range c.Transform.Stages() {
		for _, st := range stage.Statements {
			t.addFunctions(st.Fn)
			scope.visitAll(st.Fn, false)
			if st.Var != nil {
				scope.visit(st.Var, true)
			}
		}
	}
	scope.finish()
}

// scope collects variable occurrences of one clause or declaration.
type scope struct {
	t      *Table
	r      ast.Range
	byName map[string]*VariableInfo
	bound  map[*VariableInfo]bool
	order  []*VariableInfo
}

func newScope(t *Table, r ast.Range) *scope {
	return &scope{
		t:      t,
		r:      r,
		byName: make(map[string]*VariableInfo),
		bound:  make(map[*VariableInfo]bool),
	}
}

func (s *scope) visitAll(term ast.Term, positive bool) {
	for _, v := range ast.Variables(term) {
		s.visit(v, positive)
	}
}

func (s *scope) visit(v *ast.Variable, positive bool) {
	if v.IsWildcard() {
		return
	}
	info, ok := s.byName[v.Symbol]
	if !ok {
		info = &VariableInfo{Name: v.Symbol, Scope: s.r}
		s.byName[v.Symbol] = info
		s.order = append(s.order, info)
	}
	info.Occurrences = append(info.Occurrences, v.Span)
	if positive && !s.bound[info] {
		info.BindingLocation = v.Span
		s.bound[info] = true
	}
	s.t.varIdx = append(s.t.varIdx, varEntry{r: v.Span, info: info})
}

func (s *scope) finish() {
	for _, info := range s.order {
		if !s.bound[info] {
			info.BindingLocation = info.Occurrences[0]
		}
		s.t.vars = append(s.t.vars, info)
	}
}

// ============================================================================
// Queries
// ============================================================================

// Predicate returns the entry for sym, or nil.
func (t *Table) Predicate(sym ast.PredicateSym) *PredicateInfo {
	return t.preds[sym]
}

// Predicates returns every entry in first-seen order.
func (t *Table) Predicates() []*PredicateInfo {
	return t.order
}

// Variables returns every variable entry, grouped by scope in source order.
func (t *Table) Variables() []*VariableInfo {
	return t.vars
}

// FindPredicateAt returns the predicate at the position: the one whose
// name token contains it, else the innermost atom enclosing it. Atoms never
// nest, so innermost is the closest preceding one.
func (t *Table) FindPredicateAt(line, col int) *PredicateInfo {
	if e, ok := entryAt(t.predIdx, line, col); ok {
		return e.info
	}
	if e, ok := entryAt(t.atomIdx, line, col); ok {
		return e.info
	}
	return nil
}

// FindVariableAt returns the variable whose occurrence contains the
// position, or nil. Wildcards are never found.
func (t *Table) FindVariableAt(line, col int) *VariableInfo {
	if e, ok := t.variableEntryAt(line, col); ok {
		return e.info
	}
	return nil
}

// PrepareRename returns the range of the renameable symbol at the position.
// Built-in predicates, built-in functions and wildcards are not renameable.
func (t *Table) PrepareRename(line, col int) (ast.Range, bool) {
	if e, ok := t.variableEntryAt(line, col); ok {
		return e.r, true
	}
	if e, ok := t.predicateEntryAt(line, col); ok && !e.info.Builtin {
		return e.r, true
	}
	return ast.Range{}, false
}

// RenameLocations returns every range a rename at the position must edit,
// or nil when the position is not renameable.
func (t *Table) RenameLocations(line, col int) []ast.Range {
	if v := t.FindVariableAt(line, col); v != nil {
		return v.Occurrences
	}
	if e, ok := t.predicateEntryAt(line, col); ok && !e.info.Builtin {
		return e.info.NameRanges
	}
	return nil
}

func (t *Table) predicateEntryAt(line, col int) (predEntry, bool) {
	return entryAt(t.predIdx, line, col)
}

// entryAt binary-searches idx, sorted by start, for the last entry starting
// at or before the position and reports whether it contains the position.
func entryAt(idx []predEntry, line, col int) (predEntry, bool) {
	pos := ast.Position{Line: line, Column: col}
	i := sort.Search(len(idx), func(i int) bool {
		return pos.Before(idx[i].r.Start)
	})
	if i > 0 && idx[i-1].r.Contains(line, col) {
		return idx[i-1], true
	}
	return predEntry{}, false
}

func (t *Table) variableEntryAt(line, col int) (varEntry, bool) {
	pos := ast.Position{Line: line, Column: col}
	i := sort.Search(len(t.varIdx), func(i int) bool {
		return pos.Before(t.varIdx[i].r.Start)
	})
	if i > 0 && t.varIdx[i-1].r.Contains(line, col) {
		return t.varIdx[i-1], true
	}
	return varEntry{}, false
}
