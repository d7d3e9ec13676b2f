package checker

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"mglint/internal/mangle"
	"mglint/internal/mangle/diag"
)

// FileResult holds the findings for one file. Error is set when the file
// could not be read; Findings is then empty.
type FileResult struct {
	Path     string           `json:"path"`
	Findings []mangle.Finding `json:"findings"`
	Error    string           `json:"error,omitempty"`
}

// Counts summarizes a report.
type Counts struct {
	Files    int `json:"files"`
	Failed   int `json:"failed"` // files that could not be read
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// Report is the outcome of one run over a set of files.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Files     []FileResult  `json:"files"`
	Counts    Counts        `json:"counts"`
}

func (c *Counts) add(f FileResult) {
	c.Files++
	if f.Error != "" {
		c.Failed++
	}
	for _, fd := range f.Findings {
		switch fd.Severity {
		case diag.SeverityError:
			c.Errors++
		case diag.SeverityWarning:
			c.Warnings++
		default:
			c.Infos++
		}
	}
}

func newReport(started time.Time, files []FileResult) *Report {
	r := &Report{
		RunID:     uuid.New().String(),
		StartedAt: started,
		Duration:  time.Since(started),
		Files:     files,
	}
	for _, f := range files {
		r.Counts.add(f)
	}
	return r
}

// ExceedsLevel reports whether any finding is at least as severe as level.
func (r *Report) ExceedsLevel(level diag.Severity) bool {
	for _, f := range r.Files {
		for _, fd := range f.Findings {
			if fd.Severity.AtLeast(level) {
				return true
			}
		}
	}
	return false
}

// HasFailures reports whether any file could not be read.
func (r *Report) HasFailures() bool { return r.Counts.Failed > 0 }

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

type textStyles struct {
	path, code, summary    lipgloss.Style
	err, warn, info, fatal lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	re := lipgloss.NewRenderer(w)
	return textStyles{
		path:    re.NewStyle().Bold(true),
		code:    re.NewStyle().Faint(true),
		summary: re.NewStyle().Bold(true),
		err:     re.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true),
		warn:    re.NewStyle().Foreground(lipgloss.Color("#f59e0b")),
		info:    re.NewStyle().Foreground(lipgloss.Color("#3b82f6")),
		fatal:   re.NewStyle().Foreground(lipgloss.Color("#ef4444")),
	}
}

func (s textStyles) severity(sev diag.Severity) lipgloss.Style {
	switch sev {
	case diag.SeverityError:
		return s.err
	case diag.SeverityWarning:
		return s.warn
	}
	return s.info
}

// WriteText writes one line per finding as path:line:col: severity CODE
// message, then a summary line. Columns are printed 1-based. Colors are
// used only when w is a terminal.
func WriteText(w io.Writer, r *Report) error {
	st := newTextStyles(w)
	for _, f := range r.Files {
		if f.Error != "" {
			if _, err := fmt.Fprintf(w, "%s: %s\n", st.path.Render(f.Path), st.fatal.Render(f.Error)); err != nil {
				return err
			}
			continue
		}
		for _, fd := range f.Findings {
			start := fd.Range.Start
			_, err := fmt.Fprintf(w, "%s:%d:%d: %s %s %s\n",
				st.path.Render(f.Path), start.Line, start.Column+1,
				st.severity(fd.Severity).Render(fd.Severity.String()),
				st.code.Render(string(fd.Code)),
				fd.Message)
			if err != nil {
				return err
			}
		}
	}

	c := r.Counts
	line := fmt.Sprintf("%d file(s) checked: %d error(s), %d warning(s), %d info", c.Files, c.Errors, c.Warnings, c.Infos)
	if c.Failed > 0 {
		line += fmt.Sprintf(", %d unreadable", c.Failed)
	}
	_, err := fmt.Fprintln(w, st.summary.Render(line))
	return err
}
