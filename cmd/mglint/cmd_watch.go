package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"mglint/internal/checker"
	"mglint/internal/logging"
)

func newWatchCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path...]",
		Short: "Re-check Mangle files whenever they change",
		Long: `Checks the given paths once, then watches their directories and re-checks
each .mg file after it stops changing for the configured debounce window
(watch.debounce, default 500ms). After each re-check a status line counts the
tracked files and how many still have errors. Stops on Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := checker.NewRunner(o.cfg)
			out := cmd.OutOrStdout()

			rep, err := runner.Run(ctx, args)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			if err := checker.WriteText(out, rep); err != nil {
				return err
			}

			var (
				mu sync.Mutex
				w  *checker.Watcher
			)
			w, err = checker.NewWatcher(runner, args, func(r *checker.Report) {
				mu.Lock()
				defer mu.Unlock()
				if err := checker.WriteText(out, r); err != nil {
					logging.WatchError("cannot write report: %v", err)
				}
				writeWatchStatus(out, w)
			})
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			defer w.Close()
			if err := w.Start(ctx); err != nil {
				return &exitError{code: 2, err: err}
			}
			logging.Watch("watching %v", args)
			mu.Lock()
			writeWatchStatus(out, w)
			mu.Unlock()

			<-ctx.Done()
			return nil
		},
	}
}

func writeWatchStatus(out io.Writer, w *checker.Watcher) {
	files, failing := w.Summary()
	fmt.Fprintf(out, "watching %d file(s), %d with errors\n", files, failing)
}
