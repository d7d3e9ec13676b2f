package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"mglint/internal/mangle"
)

// =============================================================================
// QUERY COMMANDS - editor queries from the command line
// =============================================================================

// queryTarget is the parsed FILE LINE COL triple. col is 0-based.
type queryTarget struct {
	path      string
	line, col int
	ws        *mangle.Workspace
}

func parseTarget(args []string) (*queryTarget, error) {
	line, err := strconv.Atoi(args[1])
	if err != nil || line < 1 {
		return nil, usageError("LINE must be a positive integer, got %q", args[1])
	}
	col, err := strconv.Atoi(args[2])
	if err != nil || col < 1 {
		return nil, usageError("COL must be a positive integer, got %q", args[2])
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return nil, &exitError{code: 2, err: err}
	}
	ws := mangle.NewWorkspace()
	ws.OpenDocument(args[0], string(content), 1)
	return &queryTarget{path: args[0], line: line, col: col - 1, ws: ws}, nil
}

func newQueryCmd(_ *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Answer editor queries (hover, definition, references, rename, complete)",
		Long: `Runs a single editor query against one file. LINE and COL are 1-based, as
printed by 'mglint check'. JSON output uses 1-based lines and 0-based
code point columns.`,
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	emit := func(out io.Writer, v interface{}, text func() error) error {
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}
		return text()
	}
	printLocations := func(out io.Writer, locs []mangle.Location) error {
		return emit(out, locs, func() error {
			for _, l := range locs {
				if _, err := fmt.Fprintf(out, "%s:%d:%d\n", l.URI, l.Range.Start.Line, l.Range.Start.Column+1); err != nil {
					return err
				}
			}
			return nil
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "hover FILE LINE COL",
		Short: "Describe the symbol at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args)
			if err != nil {
				return err
			}
			h := t.ws.Hover(t.path, t.line, t.col)
			out := cmd.OutOrStdout()
			return emit(out, map[string]string{"contents": h}, func() error {
				_, err := fmt.Fprintln(out, h)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "definition FILE LINE COL",
		Short: "Locate where the symbol at a position is defined",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args)
			if err != nil {
				return err
			}
			return printLocations(cmd.OutOrStdout(), t.ws.Definition(t.path, t.line, t.col))
		},
	})

	var includeDecl bool
	refs := &cobra.Command{
		Use:   "references FILE LINE COL",
		Short: "List every use of the symbol at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args)
			if err != nil {
				return err
			}
			return printLocations(cmd.OutOrStdout(), t.ws.References(t.path, t.line, t.col, includeDecl))
		},
	}
	refs.Flags().BoolVar(&includeDecl, "include-declaration", true, "Include the declaration or binding occurrence")
	cmd.AddCommand(refs)

	cmd.AddCommand(&cobra.Command{
		Use:   "rename FILE LINE COL NEWNAME",
		Short: "Compute the edits that rename the symbol at a position",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args[:3])
			if err != nil {
				return err
			}
			edits, err := t.ws.Rename(t.path, t.line, t.col, args[3])
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			out := cmd.OutOrStdout()
			return emit(out, edits, func() error {
				for _, e := range edits {
					r := e.Range
					if _, err := fmt.Fprintf(out, "%s:%d:%d-%d: %s\n", e.URI, r.Start.Line, r.Start.Column+1, r.End.Column+1, e.NewText); err != nil {
						return err
					}
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "complete FILE LINE COL",
		Short: "List completions for the word ending at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args)
			if err != nil {
				return err
			}
			items := t.ws.Completions(t.path, t.line, t.col)
			out := cmd.OutOrStdout()
			return emit(out, items, func() error {
				for _, it := range items {
					if _, err := fmt.Fprintf(out, "%s\t%s\n", it.Label, it.Detail); err != nil {
						return err
					}
				}
				return nil
			})
		},
	})

	return cmd
}
