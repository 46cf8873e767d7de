package main

import (
	"github.com/spf13/cobra"

	"github.com/coregx/adjacency/internal/cli"
)

var (
	// Set during PersistentPreRunE
	cfg *cli.Config

	// Persistent flags
	cfgFile string
	dialect string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adjacency",
		Short: "Render recursive hierarchy relations as SQL",
		Long: `adjacency - recursive relations over adjacency-list tables

Loads a relation description from a YAML, JSON or TOML file and prints the
WITH RECURSIVE statement it renders for a dialect.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "dialects" {
				return nil
			}

			var err error
			cfg, err = cli.LoadConfig(cfgFile)
			if err != nil {
				return cli.ConfigError("loading configuration", err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "adjacency.yaml", "relation config file")
	root.PersistentFlags().StringVar(&dialect, "dialect", "", "dialect to render for (default: from config)")

	root.AddCommand(newPlanCmd())
	root.AddCommand(newDialectsCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}
