package checker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mglint/internal/logging"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// History persists run summaries and their findings in sqlite.
type History struct {
	db   *sql.DB
	path string
}

// RunSummary is one recorded run.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Counts    Counts        `json:"counts"`
}

// CodeCount is the number of findings of one code within a run.
type CodeCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// OpenHistory opens or creates the history database at path.
func OpenHistory(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	h := &History{db: db, path: path}
	if err := h.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.History("history database opened: %s", path)
	return h, nil
}

func (h *History) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			duration_ns INTEGER NOT NULL,
			files INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			warnings INTEGER NOT NULL,
			infos INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS findings (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			channel TEXT NOT NULL,
			code TEXT NOT NULL,
			severity TEXT NOT NULL,
			line INTEGER NOT NULL,
			col INTEGER NOT NULL,
			message TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, stmt := range schema {
		if _, err := h.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize history schema: %w", err)
		}
	}
	return nil
}

// Record stores a report and all of its findings in one transaction.
func (h *History) Record(ctx context.Context, r *Report) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	c := r.Counts
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ns, files, failed, errors, warnings, infos)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt.UTC().Format(timeLayout), int64(r.Duration),
		c.Files, c.Failed, c.Errors, c.Warnings, c.Infos)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO findings (run_id, path, channel, code, severity, line, col, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range r.Files {
		for _, fd := range f.Findings {
			start := fd.Range.Start
			if _, err := stmt.ExecContext(ctx, r.RunID, f.Path, string(fd.Channel), string(fd.Code),
				fd.Severity.String(), start.Line, start.Column, fd.Message); err != nil {
				return fmt.Errorf("failed to insert finding: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	logging.History("recorded run %s (%d files)", r.RunID, c.Files)
	return nil
}

// Recent returns up to limit runs, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ns, files, failed, errors, warnings, infos
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s       RunSummary
			started string
			dur     int64
		)
		if err := rows.Scan(&s.RunID, &started, &dur, &s.Counts.Files, &s.Counts.Failed,
			&s.Counts.Errors, &s.Counts.Warnings, &s.Counts.Infos); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if s.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", started, err)
		}
		s.Duration = time.Duration(dur)
		out = append(out, s)
	}
	return out, rows.Err()
}

// CodeCounts returns the per-code finding counts of a run, most frequent
// first.
func (h *History) CodeCounts(ctx context.Context, runID string) ([]CodeCount, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT code, COUNT(*) AS n FROM findings WHERE run_id = ?
		 GROUP BY code ORDER BY n DESC, code ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var out []CodeCount
	for rows.Next() {
		var cc CodeCount
		if err := rows.Scan(&cc.Code, &cc.Count); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// Close closes the database.
func (h *History) Close() error {
	if h.db == nil {
		return nil
	}
	if err := h.db.Close(); err != nil {
		logging.HistoryError("failed to close history database: %v", err)
		return err
	}
	return nil
}
