package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mglint/internal/mangle/diag"
)

func newExplainCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [CODE]",
		Short: "Describe diagnostic codes",
		Long: `Without arguments, lists every diagnostic code with its effective severity
(after checks.severity overrides) and a one-line summary. With a code,
describes only that one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codes := diag.Codes()
			if len(args) == 1 {
				code := diag.Code(strings.ToUpper(args[0]))
				if !code.Known() {
					return usageError("unknown diagnostic code %q", args[0])
				}
				codes = []diag.Code{code}
			}

			out := cmd.OutOrStdout()
			for _, c := range codes {
				sev := o.cfg.SeverityFor(c, c.Severity())
				status := ""
				if o.cfg.IsDisabled(c) {
					status = " (disabled)"
				}
				if _, err := fmt.Fprintf(out, "%s  %-7s  %s%s\n", c, sev, c.Describe(), status); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
