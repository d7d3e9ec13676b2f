// Command mglint is a static analyzer for Mangle (.mg) Datalog programs.
//
// Exit codes: 0 clean, 1 findings at or above the fail level, 2 usage or
// I/O errors.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mglint/internal/config"
	"mglint/internal/logging"
)

// exitError carries a process exit code through cobra. A nil err means the
// command already reported what went wrong.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...interface{}) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:   "mglint",
		Short: "mglint - static analysis for Mangle Datalog",
		Long: `mglint parses Mangle (.mg) programs and reports syntax errors, semantic
errors (range restriction, unbound negation, built-in misuse, transform
scoping) and stratification problems without evaluating anything.

Configuration is read from .mglint.yaml in the working directory, or from
the file given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := o.configPath
			if path == "" {
				path = config.DefaultFileName
			}
			cfg, err := config.Load(path)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			if o.verbose {
				cfg.Logging.DebugMode = true
			}
			if err := cfg.Validate(); err != nil {
				return usageError("invalid configuration %s: %w", path, err)
			}
			if err := logging.Initialize(cfg.Logging); err != nil {
				return &exitError{code: 2, err: err}
			}
			logging.BootDebug("config loaded from %s (workers=%d, fail_on=%s)", path, cfg.Workers, cfg.FailOn)
			o.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "Config file (default .mglint.yaml)")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newCheckCmd(o),
		newWatchCmd(o),
		newQueryCmd(o),
		newExplainCmd(o),
		newHistoryCmd(o),
	)
	return root
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	code := 2
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
		if ee.err == nil {
			os.Exit(code)
		}
	}
	fmt.Fprintln(os.Stderr, "mglint:", err)
	os.Exit(code)
}
