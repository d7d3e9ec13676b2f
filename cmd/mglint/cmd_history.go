package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mglint/internal/checker"
)

func newHistoryCmd(o *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded check runs",
		Long: `Lists the most recent runs stored in the history database (history.path,
or MGLINT_HISTORY_DB). With a run id, shows that run's findings per code.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := o.cfg.History.Path
			if _, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintf(cmd.OutOrStdout(), "no history at %s\n", path)
					return nil
				}
				return &exitError{code: 2, err: err}
			}

			h, err := checker.OpenHistory(path)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			defer h.Close()

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")

			if len(args) == 1 {
				counts, err := h.CodeCounts(cmd.Context(), args[0])
				if err != nil {
					return &exitError{code: 2, err: err}
				}
				if asJSON {
					return enc.Encode(counts)
				}
				for _, c := range counts {
					fmt.Fprintf(out, "%s  %d\n", c.Code, c.Count)
				}
				return nil
			}

			runs, err := h.Recent(cmd.Context(), limit)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			if asJSON {
				return enc.Encode(runs)
			}
			for _, r := range runs {
				c := r.Counts
				fmt.Fprintf(out, "%s  %s  %8s  files=%d errors=%d warnings=%d infos=%d\n",
					r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond),
					c.Files, c.Errors, c.Warnings, c.Infos)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}
