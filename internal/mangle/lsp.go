package mangle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"mglint/internal/logging"
	"mglint/internal/mangle/ast"
	"mglint/internal/mangle/builtin"
)

// ============================================================================
// Editor query facade for Mangle (.mg) files
// Positions are 1-based lines and 0-based code point columns; converting to
// a protocol's own convention is the caller's job.
// ============================================================================

// Workspace keeps open documents and answers position queries against their
// latest analysis. Safe for concurrent use.
type Workspace struct {
	mu        sync.RWMutex
	documents map[string]*Document // open documents by URI
}

// Document is an open Mangle file and its analysis.
type Document struct {
	URI      string
	Version  int
	Content  string
	Lines    []string
	Analysis *Analysis
}

// Location is a range inside a document.
type Location struct {
	URI   string    `json:"uri"`
	Range ast.Range `json:"range"`
}

// TextEdit replaces Range with NewText.
type TextEdit struct {
	Location
	NewText string `json:"newText"`
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{documents: make(map[string]*Document)}
}

// ============================================================================
// Document Management
// ============================================================================

// OpenDocument opens or replaces a document and analyzes it from scratch.
func (w *Workspace) OpenDocument(uri, content string, version int) *Analysis {
	a := Analyze(content)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.documents[uri] = &Document{
		URI:      uri,
		Version:  version,
		Content:  content,
		Lines:    strings.Split(content, "\n"),
		Analysis: a,
	}
	logging.WorkspaceDebug("opened %s v%d: %d findings", uri, version, len(a.Diagnostics()))
	return a
}

// CloseDocument removes a document from the workspace.
func (w *Workspace) CloseDocument(uri string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.documents, uri)
}

// Document returns the open document for uri.
func (w *Workspace) Document(uri string) (*Document, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	doc, ok := w.documents[uri]
	return doc, ok
}

// URIs lists the open documents in sorted order.
func (w *Workspace) URIs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.documents))
	for uri := range w.documents {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// IndexWorkspace opens every .mg file below rootPath.
func (w *Workspace) IndexWorkspace(ctx context.Context, rootPath string) error {
	return filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if d.Name() == "node_modules" || d.Name() == ".git" || d.Name() == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".mg") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		w.OpenDocument(PathToURI(path), string(content), 1)
		return nil
	})
}

// ============================================================================
// Queries
// ============================================================================

// Diagnostics returns the merged findings of a document.
func (w *Workspace) Diagnostics(uri string) []Finding {
	doc, ok := w.Document(uri)
	if !ok {
		return nil
	}
	return doc.Analysis.Diagnostics()
}

// Definition returns where the symbol at the position is bound: the binding
// occurrence of a variable, or the declaration and defining heads of a
// predicate. Built-ins have no definition.
func (w *Workspace) Definition(uri string, line, col int) []Location {
	doc, ok := w.Document(uri)
	if !ok {
		return nil
	}
	table := doc.Analysis.Symbols

	if v := table.FindVariableAt(line, col); v != nil {
		return []Location{{URI: uri, Range: v.BindingLocation}}
	}
	p := table.FindPredicateAt(line, col)
	if p == nil || p.Builtin {
		return nil
	}
	var out []Location
	if p.DeclLocation != nil {
		out = append(out, Location{URI: uri, Range: *p.DeclLocation})
	}
	for _, r := range p.Definitions {
		out = append(out, Location{URI: uri, Range: r})
	}
	return out
}

// References returns every use of the symbol at the position. For a
// predicate that is each defining head and premise; includeDecl adds the
// declaration. For a variable it is each occurrence; without includeDecl the
// binding occurrence is left out.
func (w *Workspace) References(uri string, line, col int, includeDecl bool) []Location {
	doc, ok := w.Document(uri)
	if !ok {
		return nil
	}
	table := doc.Analysis.Symbols

	var ranges []ast.Range
	if v := table.FindVariableAt(line, col); v != nil {
		for _, r := range v.Occurrences {
			if includeDecl || r != v.BindingLocation {
				ranges = append(ranges, r)
			}
		}
	} else if p := table.FindPredicateAt(line, col); p != nil {
		if includeDecl && p.DeclLocation != nil {
			ranges = append(ranges, *p.DeclLocation)
		}
		ranges = append(ranges, p.Definitions...)
		ranges = append(ranges, p.References...)
	}
	return locations(uri, ranges)
}

// Hover returns markdown describing the symbol at the position, or "".
func (w *Workspace) Hover(uri string, line, col int) string {
	doc, ok := w.Document(uri)
	if !ok {
		return ""
	}
	table := doc.Analysis.Symbols

	if v := table.FindVariableAt(line, col); v != nil {
		b := v.BindingLocation.Start
		return fmt.Sprintf("**Variable** `%s`\n\nBound at %d:%d, %d occurrence(s) in this clause",
			v.Name, b.Line, b.Column, len(v.Occurrences))
	}

	if c := constantAt(doc.Analysis.Unit, line, col); c != nil && c.Kind == ast.NameConst {
		return fmt.Sprintf("**Name Constant**\n\n`%s`", c.Text)
	}

	if p := table.FindPredicateAt(line, col); p != nil {
		var sb strings.Builder
		if p.Builtin {
			fmt.Fprintf(&sb, "**Built-in** `%s`", p.Symbol)
			if p.Documentation != "" {
				sb.WriteString("\n\n" + p.Documentation)
			}
			return sb.String()
		}
		fmt.Fprintf(&sb, "**Predicate** `%s`", p.Symbol)
		if p.Documentation != "" {
			sb.WriteString("\n\n" + p.Documentation)
		}
		if p.DeclLocation != nil {
			fmt.Fprintf(&sb, "\n\nDeclared at line %d", p.DeclLocation.Start.Line)
		} else {
			sb.WriteString("\n\nNot declared")
		}
		fmt.Fprintf(&sb, "\n\n%d definition(s), %d reference(s)", len(p.Definitions), len(p.References))
		return sb.String()
	}

	return ""
}

// PrepareRename returns the range of the renameable symbol at the position.
func (w *Workspace) PrepareRename(uri string, line, col int) (ast.Range, bool) {
	doc, ok := w.Document(uri)
	if !ok {
		return ast.Range{}, false
	}
	return doc.Analysis.Symbols.PrepareRename(line, col)
}

// RenameLocations returns every range a rename at the position must edit.
func (w *Workspace) RenameLocations(uri string, line, col int) []Location {
	doc, ok := w.Document(uri)
	if !ok {
		return nil
	}
	return locations(uri, doc.Analysis.Symbols.RenameLocations(line, col))
}

var (
	variableName  = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)
	predicateName = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)*$`)
)

// Rename computes the edits that rename the symbol at the position to
// newName. Variables need an uppercase name, predicates a lowercase one.
func (w *Workspace) Rename(uri string, line, col int, newName string) ([]TextEdit, error) {
	doc, ok := w.Document(uri)
	if !ok {
		return nil, fmt.Errorf("document %s is not open", uri)
	}
	table := doc.Analysis.Symbols

	switch {
	case table.FindVariableAt(line, col) != nil:
		if !variableName.MatchString(newName) {
			return nil, fmt.Errorf("%q is not a valid variable name", newName)
		}
	case table.FindPredicateAt(line, col) != nil:
		if !predicateName.MatchString(newName) {
			return nil, fmt.Errorf("%q is not a valid predicate name", newName)
		}
	}

	locs := w.RenameLocations(uri, line, col)
	if len(locs) == 0 {
		return nil, fmt.Errorf("nothing to rename at %d:%d", line, col)
	}
	edits := make([]TextEdit, len(locs))
	for i, l := range locs {
		edits[i] = TextEdit{Location: l, NewText: newName}
	}
	return edits, nil
}

// ============================================================================
// Completion
// ============================================================================

// CompletionItem represents a completion suggestion.
type CompletionItem struct {
	Label         string         `json:"label"`
	Kind          CompletionKind `json:"kind"`
	Detail        string         `json:"detail,omitempty"`
	Documentation string         `json:"documentation,omitempty"`
	InsertText    string         `json:"insertText,omitempty"`
}

// CompletionKind follows LSP completion item kinds.
type CompletionKind int

const (
	CompletionFunction CompletionKind = 3
	CompletionField    CompletionKind = 5
	CompletionVariable CompletionKind = 6
	CompletionKeyword  CompletionKind = 14
	CompletionConstant CompletionKind = 21
)

var keywords = []string{"Decl", "Package", "Use", "bound", "descr", "do", "inclusion", "let"}

// Completions returns suggestions for the word ending at the position:
// predicates of the unit, built-in predicates after ':', built-in functions
// after "fn", and keywords.
func (w *Workspace) Completions(uri string, line, col int) []CompletionItem {
	doc, ok := w.Document(uri)
	if !ok || line < 1 || line > len(doc.Lines) {
		return nil
	}
	prefix := wordPrefix(doc.Lines[line-1], col)
	cat := builtin.Default()

	var items []CompletionItem
	seen := map[string]bool{}
	add := func(item CompletionItem) {
		if strings.HasPrefix(item.Label, prefix) && !seen[item.Label] {
			seen[item.Label] = true
			items = append(items, item)
		}
	}

	for _, p := range doc.Analysis.Symbols.Predicates() {
		if p.Builtin {
			continue
		}
		add(CompletionItem{
			Label:         p.Symbol.Symbol,
			Kind:          CompletionField,
			Detail:        p.Symbol.String(),
			Documentation: p.Documentation,
			InsertText:    p.Symbol.Symbol + "(",
		})
	}
	if strings.HasPrefix(prefix, ":") {
		for _, spec := range cat.Predicates() {
			add(CompletionItem{Label: spec.Name, Kind: CompletionFunction, Detail: spec.Signature(), Documentation: spec.Doc, InsertText: spec.Name + "("})
		}
	}
	if strings.HasPrefix(prefix, "fn") {
		for _, spec := range cat.Functions() {
			detail := "function"
			if spec.Reducer {
				detail = "reducer"
			}
			add(CompletionItem{Label: spec.Name, Kind: CompletionFunction, Detail: detail, Documentation: spec.Doc, InsertText: spec.Name + "("})
		}
	}
	if !strings.ContainsAny(prefix, ":/") {
		for _, kw := range keywords {
			add(CompletionItem{Label: kw, Kind: CompletionKeyword})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// ============================================================================
// Helper Functions
// ============================================================================

func locations(uri string, ranges []ast.Range) []Location {
	if len(ranges) == 0 {
		return nil
	}
	sorted := append([]ast.Range(nil), ranges...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	out := make([]Location, len(sorted))
	for i, r := range sorted {
		out[i] = Location{URI: uri, Range: r}
	}
	return out
}

// constantAt finds the innermost constant whose range contains the position.
func constantAt(unit *ast.SourceUnit, line, col int) *ast.Constant {
	if unit == nil {
		return nil
	}
	var found *ast.Constant
	visit := func(t ast.Term) {
		ast.Inspect(t, func(n ast.Term) bool {
			if !n.Range().Contains(line, col) {
				return false
			}
			if c, ok := n.(*ast.Constant); ok {
				found = c
			}
			return true
		})
	}
	for _, c := range unit.Clauses {
		if !c.Span.Contains(line, col) {
			continue
		}
		visit(c.Head)
		for _, p := range c.Premises {
			visit(p)
		}
		for _, stage := range c.Transform.Stages() {
			for _, st := range stage.Statements {
				visit(st.Fn)
			}
		}
	}
	for _, d := range unit.Decls {
		if d.Span.Contains(line, col) {
			visit(d.DeclaredAtom)
			for _, a := range d.Descr {
				visit(a)
			}
		}
	}
	return found
}

// wordPrefix returns the identifier characters immediately before col.
func wordPrefix(line string, col int) string {
	runes := []rune(line)
	if col > len(runes) {
		col = len(runes)
	}
	start := col
	for start > 0 && isWordRune(runes[start-1]) {
		start--
	}
	return string(runes[start:col])
}

func isWordRune(r rune) bool {
	return r == '_' || r == ':' || r == '/' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// URIToPath converts a file:// URI to a local path; other URIs pass through.
func URIToPath(uri string) string {
	if strings.HasPrefix(uri, "file://") {
		path := strings.TrimPrefix(uri, "file://")
		// Windows drive letters arrive as /C:/...
		if len(path) > 2 && path[0] == '/' && path[2] == ':' {
			path = path[1:]
		}
		return filepath.FromSlash(path)
	}
	return uri
}

// PathToURI converts a local path to an absolute file:// URI.
func PathToURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") && len(path) > 1 && path[1] == ':' {
		path = "/" + path
	}
	return "file://" + path
}
