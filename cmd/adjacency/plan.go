package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coregx/adjacency"
	"github.com/coregx/adjacency/internal/cli"
)

func newPlanCmd() *cobra.Command {
	var (
		owners []string
		exists string
		update []string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the statement a relation renders",
		Example: `  # Lazy load for one owner
  adjacency plan --config relation.yaml --owner 1

  # Eager load for several owners
  adjacency plan --config relation.yaml --owner 1 --owner 2

  # Existence predicate on an outer query
  adjacency plan --config relation.yaml --exists "users.id >= 1"

  # Bulk update
  adjacency plan --config relation.yaml --owner 1 --set title=archived`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, err := cfg.Build(dialect)
			if err != nil {
				return cli.ConfigError("building relation", err)
			}

			plan, err := render(rel, owners, exists, update)
			if err != nil {
				return cli.PlanError("rendering plan", err)
			}

			sql, params := plan.Statement()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, sql)
			for i, p := range params {
				fmt.Fprintf(out, "-- %d: %v\n", i+1, p)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&owners, "owner", nil, "owner key (repeat for an eager plan)")
	cmd.Flags().StringVar(&exists, "exists", "", `existence predicate "outer.column op n"`)
	cmd.Flags().StringArrayVar(&update, "set", nil, "column=value to render an update (needs one owner)")
	return cmd
}

func render(rel adjacency.Relation, owners []string, exists string, update []string) (*adjacency.QueryPlan, error) {
	keys := make([]interface{}, len(owners))
	for i, o := range owners {
		keys[i] = parseValue(o)
	}

	switch {
	case exists != "":
		fields := strings.Fields(exists)
		if len(fields) != 3 {
			return nil, fmt.Errorf("expected \"column op n\", got %q", exists)
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("count: %w", err)
		}
		return rel.ExistsPlan(fields[0], fields[1], n)
	case len(update) > 0:
		if len(keys) != 1 {
			return nil, fmt.Errorf("update needs exactly one owner, got %d", len(keys))
		}
		values := make(map[string]interface{}, len(update))
		for _, kv := range update {
			col, val, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, fmt.Errorf("expected column=value, got %q", kv)
			}
			values[col] = parseValue(val)
		}
		return rel.UpdatePlan(keys[0], values)
	case len(keys) == 1:
		return rel.Plan(keys[0])
	}
	return rel.EagerPlan(keys)
}

// parseValue keeps numeric flags numeric so rendered arguments match what
// an application would bind.
func parseValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
