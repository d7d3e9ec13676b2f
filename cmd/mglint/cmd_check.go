package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mglint/internal/checker"
	"mglint/internal/logging"
	"mglint/internal/mangle/diag"
)

// =============================================================================
// CHECK COMMAND - batch analysis of .mg files
// =============================================================================

type checkOptions struct {
	format    string
	failOn    string
	workers   int
	reference bool
	noHistory bool
}

func newCheckCmd(o *rootOptions) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check [path...]",
		Short: "Check Mangle files for errors",
		Long: `Analyzes .mg files and prints one line per finding.

Arguments may be files, directories (walked using the include/exclude
patterns from the config) or doublestar globs such as 'rules/**/*.mg'.
With no arguments the current directory is checked.

Exit status is 1 when any finding is at or above --fail-on, 2 when a file
could not be read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, o, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVar(&opts.failOn, "fail-on", "", "Lowest severity that fails the run: error, warning or info")
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, "Parallel analyses (default from config)")
	cmd.Flags().BoolVar(&opts.reference, "reference", false, "Also cross-check with the upstream Mangle analyzer")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record this run in the history database")
	return cmd
}

func runCheck(cmd *cobra.Command, o *rootOptions, opts *checkOptions, args []string) error {
	cfg := o.cfg
	if opts.failOn != "" {
		if _, err := diag.ParseSeverity(opts.failOn); err != nil {
			return usageError("--fail-on: %w", err)
		}
		cfg.FailOn = opts.failOn
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.reference {
		cfg.Checks.Reference = true
	}
	if opts.format != "text" && opts.format != "json" {
		return usageError("--format: unknown format %q (valid: text, json)", opts.format)
	}
	if len(args) == 0 {
		args = []string{"."}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := checker.NewRunner(cfg).Run(ctx, args)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		err = checker.WriteJSON(out, rep)
	} else {
		err = checker.WriteText(out, rep)
	}
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	if cfg.History.Enabled && !opts.noHistory {
		recordHistory(ctx, cfg.History.Path, rep)
	}

	if rep.HasFailures() {
		return &exitError{code: 2}
	}
	if rep.ExceedsLevel(cfg.FailLevel()) {
		return &exitError{code: 1}
	}
	return nil
}

// recordHistory stores rep. Failures are logged and never fail the run.
func recordHistory(ctx context.Context, path string, rep *checker.Report) {
	h, err := checker.OpenHistory(path)
	if err != nil {
		logging.HistoryError("cannot open history %s: %v", path, err)
		return
	}
	defer h.Close()
	if err := h.Record(ctx, rep); err != nil {
		logging.HistoryError("cannot record run %s: %v", rep.RunID, err)
	}
}
