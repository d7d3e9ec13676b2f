// Package parse turns Mangle source text into an ast.SourceUnit.
//
// The parser is recursive descent with panic-mode recovery: a syntax error
// abandons the current top-level construct, records one Error, skips to the
// next clause boundary and carries on, so a single typo does not hide the
// rest of the file from the later analysis stages.
package parse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mglint/internal/mangle/ast"
)

// ErrorSource names the stage that reported a parse error.
type ErrorSource string

const (
	SourceLexer  ErrorSource = "lexer"
	SourceParser ErrorSource = "parser"
)

// Error is a syntax or lexical error. Line is 1-indexed, Column 0-indexed,
// Length counts code points.
type Error struct {
	Message string      `json:"message"`
	Line    int         `json:"line"`
	Column  int         `json:"column"`
	Length  int         `json:"length"`
	Source  ErrorSource `json:"source"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Range returns the error location as a single-line range.
func (e Error) Range() ast.Range {
	return ast.Range{
		Start: ast.Position{Line: e.Line, Column: e.Column},
		End:   ast.Position{Line: e.Line, Column: e.Column + e.Length},
	}
}

// bailout unwinds the parser to the enclosing top-level construct.
type bailout struct{}

type parser struct {
	toks []Token
	pos  int
	errs []Error
}

// Parse parses one source unit. The unit is nil only when no top-level
// construct could be parsed and at least one error was reported; errors are
// ordered by position.
func Parse(source string) (*ast.SourceUnit, []Error) {
	toks, lexErrs := Lex(source)
	p := &parser{toks: toks}
	unit, parsed := p.parseUnit()

	errs := append(lexErrs, p.errs...)
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Line != errs[j].Line {
			return errs[i].Line < errs[j].Line
		}
		return errs[i].Column < errs[j].Column
	})
	if parsed == 0 && len(errs) > 0 {
		return nil, errs
	}
	return unit, errs
}

// ============================================================================
// Token helpers
// ============================================================================

func (p *parser) tok() Token { return p.toks[p.pos] }

func (p *parser) at(kind TokenKind) bool { return p.toks[p.pos].Kind == kind }

func (p *parser) atKeyword(word string) bool {
	t := p.toks[p.pos]
	return t.Kind == TokIdent && t.Text == word
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != TokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind TokenKind, context string) Token {
	t := p.tok()
	if t.Kind != kind {
		p.failf(t, "expected %s %s, found %s", kind, context, t.describe())
	}
	return p.next()
}

// spanFrom returns the range from start to the end of the last consumed token.
func (p *parser) spanFrom(start ast.Position) ast.Range {
	end := start
	if p.pos > 0 {
		end = p.toks[p.pos-1].Span.End
	}
	return ast.Range{Start: start, End: end}
}

func (p *parser) failf(t Token, format string, args ...interface{}) {
	if t.Kind != TokIllegal {
		p.errs = append(p.errs, Error{
			Message: fmt.Sprintf(format, args...),
			Line:    t.Span.Start.Line,
			Column:  t.Span.Start.Column,
			Length:  max(1, t.length()),
			Source:  SourceParser,
		})
	}
	panic(bailout{})
}

func (p *parser) failAt(r ast.Range, format string, args ...interface{}) {
	length := 1
	if r.Start.Line == r.End.Line && r.End.Column > r.Start.Column {
		length = r.End.Column - r.Start.Column
	}
	p.errs = append(p.errs, Error{
		Message: fmt.Sprintf(format, args...),
		Line:    r.Start.Line,
		Column:  r.Start.Column,
		Length:  length,
		Source:  SourceParser,
	})
	panic(bailout{})
}

// guard runs one top-level production and recovers from a bailout by
// resynchronizing at the next clause boundary.
func (p *parser) guard(start int, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, isBailout := r.(bailout); !isBailout {
				panic(r)
			}
			p.sync(start)
			ok = false
		}
	}()
	fn()
	return true
}

// sync skips past the next '.', or stops at a token that begins a line and
// can begin a top-level construct. It always makes progress past start.
func (p *parser) sync(start int) {
	for {
		t := p.tok()
		switch {
		case t.Kind == TokEOF:
			return
		case t.Kind == TokDot:
			p.next()
			return
		case p.pos > start && p.startsLine(p.pos) && startsTopLevel(t.Kind):
			return
		}
		p.next()
	}
}

func (p *parser) startsLine(i int) bool {
	return i == 0 || p.toks[i-1].Span.End.Line < p.toks[i].Span.Start.Line
}

func startsTopLevel(k TokenKind) bool {
	switch k {
	case TokIdent, TokPackage, TokUse, TokDecl:
		return true
	}
	return false
}

// ============================================================================
// Top level
// ============================================================================

func (p *parser) parseUnit() (*ast.SourceUnit, int) {
	unit := &ast.SourceUnit{}
	parsed := 0
	seenBody := false
	for !p.at(TokEOF) {
		start := p.pos
		ok := p.guard(start, func() {
			switch p.tok().Kind {
			case TokPackage:
				if unit.Package != nil || len(unit.Uses) > 0 || seenBody {
					p.failf(p.tok(), "package declaration must be the first declaration of the unit")
				}
				unit.Package = p.parsePackage()
			case TokUse:
				use := p.parseUse()
				if seenBody {
					p.failAt(use.Span, "use declaration must precede declarations and clauses")
				}
				unit.Uses = append(unit.Uses, use)
			case TokDecl:
				unit.Decls = append(unit.Decls, p.parseDecl())
				seenBody = true
			default:
				unit.Clauses = append(unit.Clauses, p.parseClause())
				seenBody = true
			}
		})
		if ok {
			parsed++
		}
	}
	return unit, parsed
}

func (p *parser) parseHeaderName(what string) Token {
	t := p.tok()
	if t.Kind != TokIdent && t.Kind != TokVariable {
		p.failf(t, "expected %s name, found %s", what, t.describe())
	}
	return p.next()
}

func (p *parser) parsePackage() *ast.PackageDecl {
	kw := p.next()
	name := p.parseHeaderName("package")
	d := &ast.PackageDecl{Name: name.Text, NameSpan: name.Span}
	if p.at(TokLBracket) {
		d.Atoms = p.parseAtomList()
	}
	p.expect(TokBang, "to end package declaration")
	d.Span = p.spanFrom(kw.Span.Start)
	return d
}

func (p *parser) parseUse() *ast.UseDecl {
	kw := p.next()
	name := p.parseHeaderName("package")
	d := &ast.UseDecl{Name: name.Text, NameSpan: name.Span}
	if p.at(TokLBracket) {
		d.Atoms = p.parseAtomList()
	}
	p.expect(TokBang, "to end use declaration")
	d.Span = p.spanFrom(kw.Span.Start)
	return d
}

func (p *parser) parseDecl() *ast.Decl {
	kw := p.next()
	d := &ast.Decl{DeclaredAtom: p.parseAtom("predicate after 'Decl'")}
	p.skipAnnotation()
	for {
		t := p.tok()
		switch {
		case t.Kind == TokDot:
			p.next()
			d.Span = p.spanFrom(kw.Span.Start)
			return d
		case p.atKeyword("descr"):
			p.next()
			d.Descr = append(d.Descr, p.parseAtomList()...)
		case p.atKeyword("bound"):
			p.next()
			d.Bounds = append(d.Bounds, p.parseBounds())
		case p.atKeyword("inclusion"):
			p.next()
			d.Constraints = append(d.Constraints, p.parseAtomList()...)
		default:
			p.failf(t, "expected descr, bound, inclusion or '.' in declaration, found %s", t.describe())
		}
	}
}

func (p *parser) parseBounds() *ast.BoundsBlock {
	open := p.expect(TokLBracket, "after 'bound'")
	b := &ast.BoundsBlock{}
	for !p.at(TokRBracket) {
		b.Bounds = append(b.Bounds, p.parseTerm())
		if !p.at(TokComma) {
			break
		}
		p.next()
	}
	p.expect(TokRBracket, "to close bound list")
	b.Span = p.spanFrom(open.Span.Start)
	return b
}

func (p *parser) parseAtomList() []*ast.Atom {
	p.expect(TokLBracket, "to open atom list")
	var atoms []*ast.Atom
	for !p.at(TokRBracket) {
		atoms = append(atoms, p.parseAtom("atom"))
		if !p.at(TokComma) {
			break
		}
		p.next()
	}
	p.expect(TokRBracket, "to close atom list")
	return atoms
}

func (p *parser) parseClause() *ast.Clause {
	start := p.tok().Span.Start
	c := &ast.Clause{Head: p.parseAtom("predicate at start of clause")}
	p.skipAnnotation()
	if p.at(TokImplies) {
		p.next()
		c.Premises, c.Transform = p.parseBody()
	}
	p.expect(TokDot, "at end of clause")
	c.Span = p.spanFrom(start)
	return c
}

// ============================================================================
// Bodies and transforms
// ============================================================================

func (p *parser) parseBody() ([]ast.Term, *ast.Transform) {
	var premises []ast.Term
	for {
		premises = append(premises, p.parseLiteral())
		if !p.at(TokComma) {
			break
		}
		p.next()
		if p.at(TokDot) || p.at(TokPipe) {
			break
		}
	}

	var first, last *ast.Transform
	for p.at(TokPipe) {
		tr := p.parseTransform()
		if first == nil {
			first = tr
		} else {
			last.Next = tr
		}
		last = tr
	}
	return premises, first
}

var comparisonPredicates = map[TokenKind]string{
	TokLt: ":lt",
	TokLe: ":le",
	TokGt: ":gt",
	TokGe: ":ge",
}

func (p *parser) parseLiteral() ast.Term {
	t := p.tok()
	switch {
	case t.Kind == TokBang:
		p.next()
		atom := p.parseAtom("predicate after '!'")
		p.skipAnnotation()
		return &ast.NegAtom{Atom: atom, Span: p.spanFrom(t.Span.Start)}
	case isTemporalOperator(t.Kind):
		p.next()
		p.skipInterval()
		return p.parseLiteral()
	case t.Kind == TokBuiltin || (t.Kind == TokIdent && !isFunctionName(t.Text)):
		atom := p.parseAtom("premise")
		p.skipAnnotation()
		return atom
	}

	left := p.parseTerm()
	op := p.tok()
	switch op.Kind {
	case TokEq, TokNe, TokLt, TokLe, TokGt, TokGe:
		p.next()
	default:
		p.failf(op, "expected comparison operator after %s, found %s", left, op.describe())
	}
	right := p.parseTerm()
	span := ast.Range{Start: left.Range().Start, End: right.Range().End}

	switch op.Kind {
	case TokEq:
		return &ast.Eq{Left: left, Right: right, Span: span}
	case TokNe:
		return &ast.Ineq{Left: left, Right: right, Span: span}
	}
	return &ast.Atom{
		Predicate: ast.PredicateSym{Symbol: comparisonPredicates[op.Kind], Arity: 2},
		Args:      []ast.Term{left, right},
		NameSpan:  op.Span,
		Span:      span,
	}
}

func (p *parser) parseTransform() *ast.Transform {
	pipe := p.next()
	tr := &ast.Transform{}
	if p.atKeyword("do") {
		kw := p.next()
		fn := p.parseFunction("after 'do'")
		tr.Statements = append(tr.Statements, &ast.TransformStmt{Fn: fn, Span: p.spanFrom(kw.Span.Start)})
		if !p.at(TokComma) {
			tr.Span = p.spanFrom(pipe.Span.Start)
			return tr
		}
		p.next()
	}
	for {
		tr.Statements = append(tr.Statements, p.parseLet())
		if !p.at(TokComma) {
			break
		}
		p.next()
	}
	tr.Span = p.spanFrom(pipe.Span.Start)
	return tr
}

func (p *parser) parseLet() *ast.TransformStmt {
	kw := p.tok()
	if !p.atKeyword("let") {
		p.failf(kw, "expected 'let' or 'do' in transform, found %s", kw.describe())
	}
	p.next()
	v := p.expect(TokVariable, "after 'let'")
	p.expect(TokEq, "after let variable")
	fn := p.parseFunction("on the right of let")
	return &ast.TransformStmt{
		Var:  &ast.Variable{Symbol: v.Text, Span: v.Span},
		Fn:   fn,
		Span: p.spanFrom(kw.Span.Start),
	}
}

func (p *parser) parseFunction(context string) *ast.ApplyFn {
	t := p.parseTerm()
	fn, ok := t.(*ast.ApplyFn)
	if !ok {
		p.failAt(t.Range(), "expected function application %s, found %s", context, t)
	}
	return fn
}

// skipAnnotation consumes an optional @[...] temporal annotation.
func (p *parser) skipAnnotation() {
	if p.at(TokAt) {
		p.next()
		p.skipInterval()
	}
}

// skipInterval consumes a bracketed interval without interpreting it.
func (p *parser) skipInterval() {
	p.expect(TokLBracket, "to open temporal interval")
	for depth := 1; depth > 0; {
		t := p.next()
		switch t.Kind {
		case TokLBracket:
			depth++
		case TokRBracket:
			depth--
		case TokEOF:
			p.failf(t, "unterminated temporal interval")
		}
	}
}

func isTemporalOperator(k TokenKind) bool {
	switch k {
	case TokDiamondMinus, TokBoxMinus, TokDiamondPlus, TokBoxPlus:
		return true
	}
	return false
}

func isFunctionName(name string) bool { return strings.HasPrefix(name, "fn:") }

// ============================================================================
// Atoms and terms
// ============================================================================

func (p *parser) parseAtom(context string) *ast.Atom {
	t := p.tok()
	if t.Kind != TokIdent && t.Kind != TokBuiltin {
		p.failf(t, "expected %s, found %s", context, t.describe())
	}
	p.next()
	var args []ast.Term
	if p.at(TokLParen) {
		args = p.parseArgs()
	}
	return &ast.Atom{
		Predicate: ast.PredicateSym{Symbol: t.Text, Arity: len(args)},
		Args:      args,
		NameSpan:  t.Span,
		Span:      p.spanFrom(t.Span.Start),
	}
}

func (p *parser) parseArgs() []ast.Term {
	p.expect(TokLParen, "to open argument list")
	var args []ast.Term
	for !p.at(TokRParen) {
		args = append(args, p.parseTerm())
		if !p.at(TokComma) {
			break
		}
		p.next()
	}
	p.expect(TokRParen, "to close argument list")
	return args
}

func (p *parser) parseTerm() ast.Term {
	t := p.tok()
	switch t.Kind {
	case TokVariable:
		p.next()
		return &ast.Variable{Symbol: t.Text, Span: t.Span}
	case TokName:
		p.next()
		return &ast.Constant{Kind: ast.NameConst, Text: t.Text, Raw: t.Text, Span: t.Span}
	case TokNumber:
		p.next()
		n, _ := strconv.ParseInt(t.Text, 10, 64)
		return &ast.Constant{Kind: ast.NumberConst, Int: n, Raw: t.Text, Span: t.Span}
	case TokFloat:
		p.next()
		f, _ := strconv.ParseFloat(t.Text, 64)
		return &ast.Constant{Kind: ast.FloatConst, Float: f, Raw: t.Text, Span: t.Span}
	case TokString:
		p.next()
		return &ast.Constant{Kind: ast.StringConst, Text: Unquote(t.Text), Raw: t.Text, Span: t.Span}
	case TokBytes:
		p.next()
		return &ast.Constant{Kind: ast.BytesConst, Text: Unquote(t.Text), Raw: t.Text, Span: t.Span}
	case TokLBracket:
		return p.parseListOrMap()
	case TokLBrace:
		return p.parseStruct()
	case TokIdent:
		if isFunctionName(t.Text) {
			return p.parseApply()
		}
		p.failf(t, "unexpected identifier %s in term position (predicates cannot be nested)", t.Text)
	case TokBuiltin:
		p.failf(t, "built-in predicate %s cannot be used as a term", t.Text)
	}
	p.failf(t, "expected term, found %s", t.describe())
	return nil
}

func (p *parser) parseApply() *ast.ApplyFn {
	name := p.next()
	if !p.at(TokLParen) {
		p.failf(p.tok(), "expected '(' after function %s, found %s", name.Text, p.tok().describe())
	}
	args := p.parseArgs()
	return &ast.ApplyFn{
		Function: ast.PredicateSym{Symbol: name.Text, Arity: len(args)},
		Args:     args,
		NameSpan: name.Span,
		Span:     p.spanFrom(name.Span.Start),
	}
}

func (p *parser) desugar(fn string, open Token, args []ast.Term) *ast.ApplyFn {
	return &ast.ApplyFn{
		Function: ast.PredicateSym{Symbol: fn, Arity: len(args)},
		Args:     args,
		NameSpan: open.Span,
		Span:     p.spanFrom(open.Span.Start),
	}
}

// parseListOrMap handles [a, b] (fn:list) and [k: v, ...] (fn:map).
func (p *parser) parseListOrMap() *ast.ApplyFn {
	open := p.next()
	if p.at(TokRBracket) {
		p.next()
		return p.desugar("fn:list", open, nil)
	}
	first := p.parseTerm()
	if p.at(TokColon) {
		p.next()
		args := []ast.Term{first, p.parseTerm()}
		for p.at(TokComma) {
			p.next()
			if p.at(TokRBracket) {
				break
			}
			key := p.parseTerm()
			p.expect(TokColon, "in map entry")
			args = append(args, key, p.parseTerm())
		}
		p.expect(TokRBracket, "to close map literal")
		return p.desugar("fn:map", open, args)
	}
	args := []ast.Term{first}
	for p.at(TokComma) {
		p.next()
		if p.at(TokRBracket) {
			break
		}
		args = append(args, p.parseTerm())
	}
	p.expect(TokRBracket, "to close list literal")
	return p.desugar("fn:list", open, args)
}

// parseStruct handles {field: value, ...} (fn:struct).
func (p *parser) parseStruct() *ast.ApplyFn {
	open := p.next()
	var args []ast.Term
	for !p.at(TokRBrace) {
		key := p.parseTerm()
		p.expect(TokColon, "in struct field")
		args = append(args, key, p.parseTerm())
		if !p.at(TokComma) {
			break
		}
		p.next()
	}
	p.expect(TokRBrace, "to close struct literal")
	return p.desugar("fn:struct", open, args)
}
