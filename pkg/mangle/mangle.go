// Package mangle is the public face of the mglint analyzer. It re-exports the
// analysis entry points from internal/mangle so tools outside this module can
// lint Mangle sources and answer editor queries without reaching into
// internal packages.
package mangle

import (
	"mglint/internal/mangle"
	"mglint/internal/mangle/ast"
	"mglint/internal/mangle/diag"
)

// Analysis results.
type (
	Analysis = mangle.Analysis
	Finding  = mangle.Finding
	Channel  = mangle.Channel
)

// Finding channels.
const (
	ChannelParse          = mangle.ChannelParse
	ChannelSemantic       = mangle.ChannelSemantic
	ChannelStratification = mangle.ChannelStratification
	ChannelReference      = mangle.ChannelReference
)

// Diagnostics and positions.
type (
	Diagnostic = diag.Diagnostic
	Code       = diag.Code
	Severity   = diag.Severity
	Position   = ast.Position
	Range      = ast.Range
)

// Severities.
const (
	SeverityError   = diag.SeverityError
	SeverityWarning = diag.SeverityWarning
	SeverityInfo    = diag.SeverityInfo
)

// Editor queries.
type (
	Workspace      = mangle.Workspace
	Document       = mangle.Document
	Location       = mangle.Location
	TextEdit       = mangle.TextEdit
	CompletionItem = mangle.CompletionItem
)

var (
	Analyze        = mangle.Analyze
	ReferenceCheck = mangle.ReferenceCheck
	SortFindings   = mangle.SortFindings
	NewWorkspace   = mangle.NewWorkspace
	PathToURI      = mangle.PathToURI
	URIToPath      = mangle.URIToPath
	Codes          = diag.Codes
	ParseSeverity  = diag.ParseSeverity
)

// Lint analyzes source and returns its findings in source order. When
// reference is set, the findings of the upstream Mangle analyzer are merged in
// on the reference channel.
func Lint(source string, reference bool) []Finding {
	findings := Analyze(source).Diagnostics()
	if !reference {
		return findings
	}
	for _, d := range ReferenceCheck(source) {
		findings = append(findings, Finding{Channel: ChannelReference, Diagnostic: d})
	}
	SortFindings(findings)
	return findings
}
