package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aristath/valuation/internal/modules/valuation"
	"github.com/spf13/cobra"
)

func newRunsCmd(g *globals) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored valuation runs",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openRunDB(g)
			if err != nil {
				return err
			}
			defer db.Close()

			repo, err := valuation.NewRunRepository(db.Conn(), g.log)
			if err != nil {
				return err
			}
			runs, err := repo.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tVALUATION\tBEST ENERGY\tDEGENERATE")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%g\t%t\n",
					run.ID, run.CreatedAt.Format(time.RFC3339), run.Valuation, run.BestEnergy, run.Degenerate)
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run with its variable states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openRunDB(g)
			if err != nil {
				return err
			}
			defer db.Close()

			repo, err := valuation.NewRunRepository(db.Conn(), g.log)
			if err != nil {
				return err
			}
			run, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Valuation: %.2f million, best energy %g\n", run.Valuation, run.BestEnergy)
			fmt.Fprintf(out, "Reads %d x %d sweeps, T %g -> %g, seed %d\n",
				run.NumReads, run.Sweeps, run.TMax, run.TMin, run.Seed)
			for _, f := range valuation.Families {
				for _, v := range f.Variables(run.Inputs.Bits) {
					fmt.Fprintf(out, "  %s = %d\n", v, run.Assignment.Value(v))
				}
			}
			if run.Degenerate {
				fmt.Fprintln(out, "WARNING: degenerate result")
			}
			return nil
		},
	}

	runsCmd.AddCommand(listCmd, showCmd)
	return runsCmd
}
