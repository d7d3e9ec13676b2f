// Package diag defines the diagnostic record shared by the validator and the
// stratification analyzer, and the registry of stable diagnostic codes.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"mglint/internal/mangle/ast"
)

// Severity follows LSP numbering so editors can use it directly.
type Severity int

const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
	SeverityInfo    Severity = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ParseSeverity accepts error, warning and info (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "info":
		return SeverityInfo, nil
	}
	return 0, fmt.Errorf("unknown severity %q (valid: error, warning, info)", s)
}

// AtLeast reports whether s is as severe as level or more.
func (s Severity) AtLeast(level Severity) bool { return s <= level }

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Diagnostic is one finding of the semantic or stratification channel.
type Diagnostic struct {
	Code     Code      `json:"code"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Range    ast.Range `json:"range"`
	Cycle    []string  `json:"cycle,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s %s: %s", d.Range.Start.Line, d.Range.Start.Column, d.Severity, d.Code, d.Message)
}

// New builds a diagnostic with the code's default severity.
func New(code Code, r ast.Range, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: code.Severity(),
		Message:  fmt.Sprintf(format, args...),
		Range:    r,
	}
}

// Sort orders diagnostics by start position, keeping emission order for ties.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		return ds[i].Range.Start.Before(ds[j].Range.Start)
	})
}

// Count returns how many diagnostics have exactly severity s.
func Count(ds []Diagnostic, s Severity) int {
	n := 0
	for _, d := range ds {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// Errors filters ds down to error-severity diagnostics.
func Errors(ds []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}
