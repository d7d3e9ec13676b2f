// Package mangle ties the static-analysis packages together: one call parses,
// rewrites, validates and stratifies a source text, and the Workspace answers
// editor queries over the result.
package mangle

import (
	"sort"
	"time"

	"mglint/internal/logging"
	"mglint/internal/mangle/ast"
	"mglint/internal/mangle/builtin"
	"mglint/internal/mangle/diag"
	"mglint/internal/mangle/parse"
	"mglint/internal/mangle/rewrite"
	"mglint/internal/mangle/stratify"
	"mglint/internal/mangle/symbols"
	"mglint/internal/mangle/validate"
)

// Channel names the analysis stage a finding came from.
type Channel string

const (
	ChannelParse          Channel = "parse"
	ChannelSemantic       Channel = "semantic"
	ChannelStratification Channel = "stratification"
	ChannelReference      Channel = "reference"
)

// Finding is a diagnostic tagged with its channel.
type Finding struct {
	Channel Channel `json:"channel"`
	diag.Diagnostic
}

// slowAnalysis is the duration above which a single analysis is logged as a
// warning.
const slowAnalysis = 250 * time.Millisecond

// Analysis is the result of analyzing one source text. Each channel is
// ordered by source position.
type Analysis struct {
	Source         string
	Unit           *ast.SourceUnit // nil only when nothing could be parsed
	Rewritten      *ast.SourceUnit
	ParseErrors    []parse.Error
	Semantic       []diag.Diagnostic
	Stratification []diag.Diagnostic
	Symbols        *symbols.Table
}

// Analyze runs parse, rewrite, validate and stratify over source. Semantic
// and stratification analysis run on the best-effort unit even when parsing
// reported errors.
func Analyze(source string) *Analysis {
	timer := logging.StartTimer(logging.CategoryAnalyze, "analyze")
	defer timer.StopWithThreshold(slowAnalysis)

	a := &Analysis{Source: source}
	a.Unit, a.ParseErrors = parse.Parse(source)
	a.Rewritten = rewrite.Unit(a.Unit)

	res := validate.Validate(a.Unit, builtin.Default())
	a.Semantic = res.Errors
	a.Symbols = res.Symbols
	a.Stratification = stratify.Analyze(a.Unit)

	clauses := 0
	if a.Unit != nil {
		clauses = len(a.Unit.Clauses)
	}
	logging.AnalyzeDebug("analyzed %d clauses: %d parse, %d semantic, %d stratification findings",
		clauses, len(a.ParseErrors), len(a.Semantic), len(a.Stratification))
	return a
}

// ParseDiagnostic converts a parse error to the shared diagnostic record.
func ParseDiagnostic(e parse.Error) diag.Diagnostic {
	code := diag.CodeSyntax
	if e.Source == parse.SourceLexer {
		code = diag.CodeLexical
	}
	return diag.New(code, e.Range(), "%s", e.Message)
}

// Diagnostics merges every channel for presentation. Findings are ordered by
// position; at equal positions parse findings come first, then semantic,
// then stratification.
func (a *Analysis) Diagnostics() []Finding {
	out := make([]Finding, 0, len(a.ParseErrors)+len(a.Semantic)+len(a.Stratification))
	for _, e := range a.ParseErrors {
		out = append(out, Finding{Channel: ChannelParse, Diagnostic: ParseDiagnostic(e)})
	}
	for _, d := range a.Semantic {
		out = append(out, Finding{Channel: ChannelSemantic, Diagnostic: d})
	}
	for _, d := range a.Stratification {
		out = append(out, Finding{Channel: ChannelStratification, Diagnostic: d})
	}
	SortFindings(out)
	return out
}

// HasErrors reports whether any channel holds an error-severity finding.
func (a *Analysis) HasErrors() bool {
	return len(a.ParseErrors) > 0 || len(diag.Errors(a.Semantic)) > 0 || len(diag.Errors(a.Stratification)) > 0
}

// SortFindings orders findings by start position, keeping the existing
// order for ties.
func SortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		return fs[i].Range.Start.Before(fs[j].Range.Start)
	})
}
