package mangle

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/mangle/analysis"
	mparse "github.com/google/mangle/parse"

	"mglint/internal/logging"
	"mglint/internal/mangle/ast"
	"mglint/internal/mangle/diag"
	"mglint/internal/mangle/parse"
)

var (
	refLineCol = regexp.MustCompile(`(?:^|\s)(\d+):(\d+)`)
	refLine    = regexp.MustCompile(`(?i)line\s+(\d+)`)
)

// ReferenceCheck runs the upstream Mangle parser and analyzer over source
// and reports their rejections as R001 (parse) or R002 (analysis). It
// returns nil when both accept the unit.
func ReferenceCheck(source string) []diag.Diagnostic {
	unit, err := mparse.Unit(strings.NewReader(source))
	if err != nil {
		logging.ReferenceWarn("reference parse failed: %v", err)
		return []diag.Diagnostic{diag.New(diag.CodeReferenceParse, referenceRange(source, err.Error()), "%s", err.Error())}
	}
	if _, err := analysis.AnalyzeOneUnit(unit, nil); err != nil {
		logging.ReferenceWarn("reference analysis failed: %v", err)
		return []diag.Diagnostic{diag.New(diag.CodeReferenceAnalysis, referenceRange(source, err.Error()), "%s", err.Error())}
	}
	return nil
}

// referenceRange locates an upstream error message in source. Messages carry
// either "line:col" or "line N"; a positioned range runs to the end of the
// line. Messages without a position are anchored to the clause or declaration
// they print, else to the first one in the unit.
func referenceRange(source, msg string) ast.Range {
	line, col := 0, 0
	if m := refLineCol.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
		col, _ = strconv.Atoi(m[2])
	} else if m := refLine.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
	}

	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		if r, ok := anchorRange(source, msg); ok {
			return r
		}
		line, col = 1, 0
	}
	width := utf8.RuneCountInString(strings.TrimRight(lines[line-1], "\r"))
	if col > width {
		col = width
	}
	return ast.Range{
		Start: ast.Position{Line: line, Column: col},
		End:   ast.Position{Line: line, Column: width},
	}
}

// anchorRange picks the construct that shares the most predicate names with
// msg. Upstream prints atoms as name(args), so a name counts only when it is
// followed by an open paren. Clauses whose head is not named anchor to the
// earliest named premise instead.
func anchorRange(source, msg string) (ast.Range, bool) {
	unit, _ := parse.Parse(source)
	if unit == nil {
		return ast.Range{}, false
	}

	var (
		best      ast.Range
		bestScore int
		first     ast.Range
	)
	consider := func(whole ast.Range, head *ast.Atom, body []*ast.Atom) {
		if head == nil {
			return
		}
		if first.IsZero() || whole.Start.Before(first.Start) {
			first = whole
		}
		anchor, at := whole, -1
		headNamed := namedAt(msg, head.Predicate.Symbol) >= 0
		seen := make(map[string]bool)
		if headNamed {
			seen[head.Predicate.Symbol] = true
		}
		for _, a := range body {
			pos := namedAt(msg, a.Predicate.Symbol)
			if pos < 0 {
				continue
			}
			seen[a.Predicate.Symbol] = true
			if !headNamed && (at < 0 || pos < at) {
				anchor, at = a.Span, pos
			}
		}
		score := len(seen)
		if score > bestScore || (score > 0 && score == bestScore && anchor.Start.Before(best.Start)) {
			best, bestScore = anchor, score
		}
	}
	for _, d := range unit.Decls {
		consider(d.Span, d.DeclaredAtom, nil)
	}
	for _, c := range unit.Clauses {
		var body []*ast.Atom
		for _, p := range c.Premises {
			switch p := p.(type) {
			case *ast.Atom:
				body = append(body, p)
			case *ast.NegAtom:
				body = append(body, p.Atom)
			}
		}
		consider(c.Span, c.Head, body)
	}

	switch {
	case bestScore > 0:
		return best, true
	case !first.IsZero():
		return first, true
	}
	return ast.Range{}, false
}

// namedAt returns the byte offset of name( in msg, or -1. The match must not
// continue an identifier on its left.
func namedAt(msg, name string) int {
	if name == "" {
		return -1
	}
	needle := name + "("
	for off := 0; ; {
		i := strings.Index(msg[off:], needle)
		if i < 0 {
			return -1
		}
		i += off
		if i == 0 || !isNameByte(msg[i-1]) {
			return i
		}
		off = i + 1
	}
}

func isNameByte(b byte) bool {
	return b == '_' || b == '.' || b == ':' || b == '/' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
