package checker

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"mglint/internal/config"
	"mglint/internal/logging"
	"mglint/internal/mangle"
)

// Runner analyzes files with bounded parallelism and applies the
// configured code filters.
type Runner struct {
	cfg *config.Config
}

// NewRunner creates a runner. A nil cfg means the defaults.
func NewRunner(cfg *config.Config) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Runner{cfg: cfg}
}

// Config returns the runner's configuration.
func (r *Runner) Config() *config.Config { return r.cfg }

// Run expands patterns and checks every resulting file.
func (r *Runner) Run(ctx context.Context, patterns []string) (*Report, error) {
	paths, err := ExpandPaths(patterns, r.cfg.Include, r.cfg.Exclude)
	if err != nil {
		return nil, err
	}
	logging.CheckDebug("expanded %d pattern(s) to %d file(s)", len(patterns), len(paths))
	return r.RunFiles(ctx, paths)
}

// RunFiles checks paths concurrently and returns results in path order.
// Unreadable files are reported in their FileResult and do not stop the
// run; cancellation of ctx does.
func (r *Runner) RunFiles(ctx context.Context, paths []string) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryCheck, "check run")
	defer timer.Stop()

	started := time.Now()
	results := make([]FileResult, len(paths))

	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.CheckFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortResults(results)
	rep := newReport(started, results)
	logging.Check("checked %d file(s): %d error(s), %d warning(s)", rep.Counts.Files, rep.Counts.Errors, rep.Counts.Warnings)
	return rep, nil
}

// CheckFile reads and checks one file.
func (r *Runner) CheckFile(ctx context.Context, path string) FileResult {
	ctx, span := startCheckSpan(ctx, path)
	defer span.End()
	start := time.Now()

	content, err := os.ReadFile(path)
	if err != nil {
		logging.CheckWarn("cannot read %s: %v", path, err)
		res := FileResult{Path: path, Error: fmt.Sprintf("read failed: %v", err)}
		recordCheckMetrics(ctx, time.Since(start), Counts{}, false)
		return res
	}

	res := r.CheckSource(path, string(content))
	var c Counts
	c.add(res)
	setCheckSpanResult(span, c)
	recordCheckMetrics(ctx, time.Since(start), c, true)
	return res
}

// CheckSource analyzes source as if read from path.
func (r *Runner) CheckSource(path, source string) FileResult {
	a := mangle.Analyze(source)
	findings := a.Diagnostics()

	if r.cfg.Checks.Reference {
		for _, d := range mangle.ReferenceCheck(source) {
			findings = append(findings, mangle.Finding{Channel: mangle.ChannelReference, Diagnostic: d})
		}
		mangle.SortFindings(findings)
	}

	return FileResult{Path: path, Findings: r.filter(findings)}
}

// filter drops disabled codes and applies severity overrides.
func (r *Runner) filter(fs []mangle.Finding) []mangle.Finding {
	out := make([]mangle.Finding, 0, len(fs))
	for _, f := range fs {
		if r.cfg.IsDisabled(f.Code) {
			continue
		}
		f.Severity = r.cfg.SeverityFor(f.Code, f.Severity)
		out = append(out, f)
	}
	return out
}

func sortResults(rs []FileResult) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Path < rs[j].Path })
}
