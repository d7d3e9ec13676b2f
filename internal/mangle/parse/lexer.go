package parse

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"mglint/internal/mangle/ast"
)

// TokenKind enumerates lexical token classes.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIllegal
	TokIdent    // foo, pkg.foo, fn:plus
	TokBuiltin  // :lt, :string:starts_with
	TokVariable // X, _
	TokName     // /a/b
	TokNumber
	TokFloat
	TokString
	TokBytes
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokLBrace
	TokRBrace
	TokComma
	TokDot
	TokColon
	TokImplies // :- or ⟸
	TokPipe    // |>
	TokBang
	TokEq
	TokNe
	TokLt
	TokLe
	TokGt
	TokGe
	TokAt
	TokDiamondMinus
	TokBoxMinus
	TokDiamondPlus
	TokBoxPlus
	TokPackage
	TokUse
	TokDecl
)

var tokenNames = map[TokenKind]string{
	TokEOF: "end of input", TokIllegal: "illegal token", TokIdent: "identifier",
	TokBuiltin: "built-in name", TokVariable: "variable", TokName: "name constant",
	TokNumber: "number", TokFloat: "float", TokString: "string", TokBytes: "bytes",
	TokLParen: "'('", TokRParen: "')'", TokLBracket: "'['", TokRBracket: "']'",
	TokLBrace: "'{'", TokRBrace: "'}'", TokComma: "','", TokDot: "'.'", TokColon: "':'",
	TokImplies: "':-'", TokPipe: "'|>'", TokBang: "'!'", TokEq: "'='", TokNe: "'!='",
	TokLt: "'<'", TokLe: "'<='", TokGt: "'>'", TokGe: "'>='", TokAt: "'@'",
	TokDiamondMinus: "'◇-'", TokBoxMinus: "'□-'", TokDiamondPlus: "'◇+'", TokBoxPlus: "'□+'",
	TokPackage: "'Package'", TokUse: "'Use'", TokDecl: "'Decl'",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one lexeme with its source range.
type Token struct {
	Kind TokenKind
	Text string
	Span ast.Range
}

func (t Token) describe() string {
	switch t.Kind {
	case TokIdent, TokBuiltin, TokVariable, TokName, TokNumber, TokFloat, TokString, TokBytes:
		return fmt.Sprintf("%s %s", t.Kind, t.Text)
	}
	return t.Kind.String()
}

func (t Token) length() int {
	return utf8.RuneCountInString(t.Text)
}

var keywords = map[string]TokenKind{
	"Package": TokPackage,
	"Use":     TokUse,
	"Decl":    TokDecl,
}

type lexer struct {
	src    string
	off    int
	line   int
	col    int
	tokens []Token
	errs   []Error
}

// Lex splits source into tokens. Lexical errors are returned alongside an
// illegal token at the offending position so the parser can resynchronize.
func Lex(source string) ([]Token, []Error) {
	l := &lexer{src: source, line: 1}
	l.run()
	return l.tokens, l.errs
}

func (l *lexer) pos() ast.Position {
	return ast.Position{Line: l.line, Column: l.col, Offset: l.off}
}

func (l *lexer) peek(n int) rune {
	off := l.off
	for i := 0; i < n; i++ {
		if off >= len(l.src) {
			return 0
		}
		_, size := utf8.DecodeRuneInString(l.src[off:])
		off += size
	}
	if off >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[off:])
	return r
}

func (l *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.off:])
	l.off += size
	if r == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return r
}

func (l *lexer) emit(kind TokenKind, start ast.Position) {
	l.tokens = append(l.tokens, Token{
		Kind: kind,
		Text: l.src[start.Offset:l.off],
		Span: ast.Range{Start: start, End: l.pos()},
	})
}

func (l *lexer) fail(start ast.Position, format string, args ...interface{}) {
	l.emit(TokIllegal, start)
	l.errs = append(l.errs, Error{
		Message: fmt.Sprintf(format, args...),
		Line:    start.Line,
		Column:  start.Column,
		Length:  max(1, l.tokens[len(l.tokens)-1].length()),
		Source:  SourceLexer,
	})
}

func (l *lexer) run() {
	for {
		l.skipSpace()
		start := l.pos()
		if l.off >= len(l.src) {
			l.emit(TokEOF, start)
			return
		}
		r := l.peek(0)
		next := l.peek(1)
		switch {
		case r == 'b' && (next == '"' || next == '\''):
			l.advance()
			l.scanString(start, TokBytes)
		case isLower(r) || (r == '_' && isLower(next)):
			l.scanIdent()
			l.emit(TokIdent, start)
		case isUpper(r) || r == '_':
			l.scanWord()
			text := l.src[start.Offset:l.off]
			if kw, ok := keywords[text]; ok {
				l.emit(kw, start)
			} else {
				l.emit(TokVariable, start)
			}
		case isDigit(r) || (r == '-' && isDigit(next)):
			l.scanNumber(start)
		case r == '"' || r == '\'' || r == '`':
			l.scanString(start, TokString)
		case r == '/':
			l.scanName()
			l.emit(TokName, start)
		case r == ':':
			l.advance()
			switch {
			case next == '-':
				l.advance()
				l.emit(TokImplies, start)
			case isLower(next):
				l.scanIdent()
				l.emit(TokBuiltin, start)
			default:
				l.emit(TokColon, start)
			}
		default:
			l.scanPunct(start, r, next)
		}
	}
}

func (l *lexer) skipSpace() {
	for l.off < len(l.src) {
		switch r := l.peek(0); {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f':
			l.advance()
		case r == '#':
			for l.off < len(l.src) && l.peek(0) != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *lexer) scanWord() {
	for isWord(l.peek(0)) {
		l.advance()
	}
}

// scanIdent consumes a lowercase identifier, continuing across "." package
// separators and ":" segments (fn:list:get).
func (l *lexer) scanIdent() {
	for {
		l.scanWord()
		r, next := l.peek(0), l.peek(1)
		if r == '.' && (isLower(next) || next == '_') {
			l.advance()
			continue
		}
		if r == ':' && isLetter(next) {
			l.advance()
			continue
		}
		return
	}
}

func (l *lexer) scanName() {
	l.advance()
	for {
		r := l.peek(0)
		switch {
		case isNameChar(r) || r == '/':
			l.advance()
		case r == '.' && isNameChar(l.peek(1)):
			l.advance()
		default:
			return
		}
	}
}

func (l *lexer) scanNumber(start ast.Position) {
	if l.peek(0) == '-' {
		l.advance()
	}
	for isDigit(l.peek(0)) {
		l.advance()
	}
	float := false
	if l.peek(0) == '.' && isDigit(l.peek(1)) {
		float = true
		l.advance()
		for isDigit(l.peek(0)) {
			l.advance()
		}
	}
	if r := l.peek(0); r == 'e' || r == 'E' {
		n := l.peek(1)
		if isDigit(n) || ((n == '+' || n == '-') && isDigit(l.peek(2))) {
			float = true
			l.advance()
			if n == '+' || n == '-' {
				l.advance()
			}
			for isDigit(l.peek(0)) {
				l.advance()
			}
		}
	}
	text := l.src[start.Offset:l.off]
	if float {
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			l.fail(start, "float literal %s out of range", text)
			return
		}
		l.emit(TokFloat, start)
		return
	}
	if _, err := strconv.ParseInt(text, 10, 64); err != nil {
		l.fail(start, "integer literal %s out of range", text)
		return
	}
	l.emit(TokNumber, start)
}

func (l *lexer) scanString(start ast.Position, kind TokenKind) {
	quote := l.advance()
	for {
		if l.off >= len(l.src) {
			l.fail(start, "unterminated string literal")
			return
		}
		r := l.peek(0)
		switch {
		case r == '\\':
			l.advance()
			if l.off < len(l.src) {
				l.advance()
			}
		case r == '\n' && quote != '`':
			l.fail(start, "unterminated string literal")
			return
		case r == quote:
			l.advance()
			l.emit(kind, start)
			return
		default:
			l.advance()
		}
	}
}

func (l *lexer) scanPunct(start ast.Position, r, next rune) {
	single := map[rune]TokenKind{
		'(': TokLParen, ')': TokRParen, '[': TokLBracket, ']': TokRBracket,
		'{': TokLBrace, '}': TokRBrace, ',': TokComma, '.': TokDot, '@': TokAt,
		'⟸': TokImplies,
	}
	if kind, ok := single[r]; ok {
		l.advance()
		l.emit(kind, start)
		return
	}

	pair := func(kind TokenKind) {
		l.advance()
		l.advance()
		l.emit(kind, start)
	}
	switch r {
	case '!':
		if next == '=' {
			pair(TokNe)
			return
		}
		l.advance()
		l.emit(TokBang, start)
		return
	case '=':
		l.advance()
		l.emit(TokEq, start)
		return
	case '<':
		if next == '=' {
			pair(TokLe)
			return
		}
		l.advance()
		l.emit(TokLt, start)
		return
	case '>':
		if next == '=' {
			pair(TokGe)
			return
		}
		l.advance()
		l.emit(TokGt, start)
		return
	case '|':
		if next == '>' {
			pair(TokPipe)
			return
		}
	case '◇':
		if next == '-' {
			pair(TokDiamondMinus)
			return
		}
		if next == '+' {
			pair(TokDiamondPlus)
			return
		}
	case '□':
		if next == '-' {
			pair(TokBoxMinus)
			return
		}
		if next == '+' {
			pair(TokBoxPlus)
			return
		}
	}
	l.advance()
	l.fail(start, "unexpected character %q", r)
}

func isLower(r rune) bool  { return r >= 'a' && r <= 'z' }
func isUpper(r rune) bool  { return r >= 'A' && r <= 'Z' }
func isDigit(r rune) bool  { return r >= '0' && r <= '9' }
func isLetter(r rune) bool { return isLower(r) || isUpper(r) }
func isWord(r rune) bool   { return isLetter(r) || isDigit(r) || r == '_' }

func isNameChar(r rune) bool {
	return isWord(r) || r == '-' || r == '~' || r == '%'
}
