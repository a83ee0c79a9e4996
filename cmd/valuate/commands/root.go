// Package commands implements the valuate command line.
package commands

import (
	"github.com/aristath/valuation/internal/config"
	"github.com/aristath/valuation/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globals holds the state shared by every subcommand
type globals struct {
	logLevel string
	pretty   bool

	cfg *config.Config
	log zerolog.Logger
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "valuate",
		Short: "Lowest defensible valuation by simulated annealing",
		Long: `Encodes revenue, assets and liabilities as a QUBO, samples it with
simulated annealing and reports the lowest defensible valuation.

Defaults come from the environment (.env supported); flags override them.

Examples:
  valuate solve
  valuate solve --revenue 750 --bits 8 --show-qubo
  valuate solve --seed 42 --store
  valuate runs list --limit 5`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = g.logLevel
			}
			g.cfg = cfg
			g.log = logger.New(logger.Config{
				Level:  level,
				Pretty: g.pretty,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&g.pretty, "pretty", true, "human readable log output")

	rootCmd.AddCommand(newSolveCmd(g))
	rootCmd.AddCommand(newRunsCmd(g))

	return rootCmd
}

// Execute runs the command tree.
// This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}
