// Package ast defines the position-annotated syntax tree shared by the
// parser, symbol table, validator, stratification analyzer and rewriter.
//
// Nodes are immutable once the parser returns them. Anything that needs a
// different shape (the clause rewriter, for example) builds new nodes and
// shares the untouched subtrees.
package ast

import (
	"fmt"
	"strings"
)

// Position is a point in a source unit. Line is 1-indexed, Column is the
// 0-indexed code point offset within the line and Offset is the byte offset
// from the start of the source.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// Before reports whether p sorts strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range is a half-open source interval [Start, End).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether (line, col) falls inside the range.
func (r Range) Contains(line, col int) bool {
	p := Position{Line: line, Column: col}
	return !p.Before(r.Start) && p.Before(r.End)
}

// IsZero reports whether the range was never set.
func (r Range) IsZero() bool {
	return r.Start.Line == 0 && r.End.Line == 0
}

// Span returns the smallest range covering both a and b.
func Span(a, b Range) Range {
	out := a
	if b.Start.Before(out.Start) {
		out.Start = b.Start
	}
	if out.End.Before(b.End) {
		out.End = b.End
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// ============================================================================
// Terms
// ============================================================================

// Term is the closed set of syntax nodes that can appear as arguments,
// premises or heads. The variants are *Variable, *Constant, *ApplyFn, *Atom,
// *NegAtom, *Eq and *Ineq.
type Term interface {
	Range() Range
	String() string
	isTerm()
}

// Wildcard is the anonymous variable symbol.
const Wildcard = "_"

// Variable is a logic variable occurrence.
type Variable struct {
	Symbol string
	Span   Range
}

// IsWildcard reports whether v is the anonymous variable.
func (v *Variable) IsWildcard() bool { return v.Symbol == Wildcard }

// ConstantKind classifies constant values.
type ConstantKind int

const (
	NameConst ConstantKind = iota
	NumberConst
	FloatConst
	StringConst
	BytesConst
	ListConst
	MapConst
	StructConst
	PairConst
)

var constantKindNames = [...]string{"name", "number", "float", "string", "bytes", "list", "map", "struct", "pair"}

func (k ConstantKind) String() string {
	if int(k) < len(constantKindNames) {
		return constantKindNames[k]
	}
	return fmt.Sprintf("ConstantKind(%d)", int(k))
}

// Constant is a literal value. Text holds the decoded value of names,
// strings and bytes; Raw holds the lexeme exactly as written, including
// quotes and escape sequences. Composite kinds keep their members in Elems.
type Constant struct {
	Kind  ConstantKind
	Text  string
	Int   int64
	Float float64
	Raw   string
	Elems []*Constant
	Span  Range
}

// PredicateSym identifies a predicate or function by name and arity.
// Arity -1 marks a variadic built-in.
type PredicateSym struct {
	Symbol string `json:"symbol"`
	Arity  int    `json:"arity"`
}

func (p PredicateSym) String() string {
	return fmt.Sprintf("%s/%d", p.Symbol, p.Arity)
}

// IsBuiltin reports whether p names a built-in predicate (":lt", ":match_pair").
func (p PredicateSym) IsBuiltin() bool { return strings.HasPrefix(p.Symbol, ":") }

// IsFunction reports whether p names a built-in function ("fn:plus").
func (p PredicateSym) IsFunction() bool { return strings.HasPrefix(p.Symbol, "fn:") }

// ApplyFn is a function application such as fn:plus(X, 1). List, map and
// struct literals are desugared into fn:list, fn:map and fn:struct.
type ApplyFn struct {
	Function PredicateSym
	Args     []Term
	NameSpan Range
	Span     Range
}

// Atom is a predicate applied to arguments.
type Atom struct {
	Predicate PredicateSym
	Args      []Term
	NameSpan  Range
	Span      Range
}

// NegAtom is a negated premise !a(...).
type NegAtom struct {
	Atom *Atom
	Span Range
}

// Eq is the premise Left = Right.
type Eq struct {
	Left, Right Term
	Span        Range
}

// Ineq is the premise Left != Right.
type Ineq struct {
	Left, Right Term
	Span        Range
}

func (t *Variable) Range() Range { return t.Span }
func (t *Constant) Range() Range { return t.Span }
func (t *ApplyFn) Range() Range  { return t.Span }
func (t *Atom) Range() Range     { return t.Span }
func (t *NegAtom) Range() Range  { return t.Span }
func (t *Eq) Range() Range       { return t.Span }
func (t *Ineq) Range() Range     { return t.Span }

func (*Variable) isTerm() {}
func (*Constant) isTerm() {}
func (*ApplyFn) isTerm()  {}
func (*Atom) isTerm()     {}
func (*NegAtom) isTerm()  {}
func (*Eq) isTerm()       {}
func (*Ineq) isTerm()     {}

// ============================================================================
// Clauses and declarations
// ============================================================================

// TransformStmt is one statement of a transform stage. Var is nil for a
// "do" statement.
type TransformStmt struct {
	Var  *Variable
	Fn   *ApplyFn
	Span Range
}

// IsDo reports whether the statement is a do statement.
func (s *TransformStmt) IsDo() bool { return s.Var == nil }

// Transform is one "|>" stage; Next links the following stage.
type Transform struct {
	Statements []*TransformStmt
	Next       *Transform
	Span       Range
}

// Stages flattens the transform chain starting at t.
func (t *Transform) Stages() []*Transform {
	var out []*Transform
	for s := t; s != nil; s = s.Next {
		out = append(out, s)
	}
	return out
}

// Clause is a fact or a rule.
type Clause struct {
	Head      *Atom
	Premises  []Term
	Transform *Transform
	Span      Range
}

// IsFact reports whether the clause has neither premises nor a transform.
func (c *Clause) IsFact() bool {
	return len(c.Premises) == 0 && c.Transform == nil
}

// BoundsBlock is one bound[...] tuple of a declaration.
type BoundsBlock struct {
	Bounds []Term
	Span   Range
}

// Decl declares a predicate's shape and documentation.
type Decl struct {
	DeclaredAtom *Atom
	Descr        []*Atom
	Bounds       []*BoundsBlock
	Constraints  []*Atom
	Span         Range
}

// Doc returns the concatenated doc("...") strings of the descr block.
func (d *Decl) Doc() string {
	var parts []string
	for _, a := range d.Descr {
		if a.Predicate.Symbol != "doc" {
			continue
		}
		for _, arg := range a.Args {
			if c, ok := arg.(*Constant); ok && c.Kind == StringConst {
				parts = append(parts, c.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// HasDescr reports whether the descr block contains an atom named name.
func (d *Decl) HasDescr(name string) bool {
	for _, a := range d.Descr {
		if a.Predicate.Symbol == name {
			return true
		}
	}
	return false
}

// PackageDecl is the optional "Package name!" header.
type PackageDecl struct {
	Name     string
	Atoms    []*Atom
	NameSpan Range
	Span     Range
}

// UseDecl is a "Use name!" import.
type UseDecl struct {
	Name     string
	Atoms    []*Atom
	NameSpan Range
	Span     Range
}

// SourceUnit is one parsed file.
type SourceUnit struct {
	Package *PackageDecl
	Uses    []*UseDecl
	Decls   []*Decl
	Clauses []*Clause
}

// PackageName returns the declared package name, or "" when absent.
func (u *SourceUnit) PackageName() string {
	if u == nil || u.Package == nil {
		return ""
	}
	return u.Package.Name
}
