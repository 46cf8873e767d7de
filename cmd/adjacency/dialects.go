package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coregx/adjacency"
)

func newDialectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List registered dialects and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFAMILY\tRECURSIVE CTE\tCORRELATED CTE\tARRAY PATH")
			for _, name := range adjacency.Dialects() {
				d, _ := adjacency.LookupDialect(name)
				c := d.Capabilities()
				fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%t\n", name, d.Name(), c.RecursiveCTE, c.CorrelatedCTE, c.ArrayPath)
			}
			return w.Flush()
		},
	}
}
