package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pricecrawl/pricecrawl/internal/parser"
)

func newParsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parsers",
		Short: "List registered shop parsers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parser.RegisterBuiltins()
			descriptions := parser.Describe()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range parser.Names() {
				fmt.Fprintf(w, "%s\t%s\n", name, descriptions[name])
			}
			return w.Flush()
		},
	}
}
