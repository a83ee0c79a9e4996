package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/aristath/valuation/internal/database"
	"github.com/aristath/valuation/internal/modules/annealing"
	"github.com/aristath/valuation/internal/modules/qubo"
	"github.com/aristath/valuation/internal/modules/valuation"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type solveOptions struct {
	revenue, assets, liabilities float64
	scale                        float64
	bits                         int
	alpha, beta, gamma           float64
	threshold                    float64
	largePenalty                 float64
	thresholdPenalty             float64

	numReads, sweeps int
	tMax, tMin       float64
	seed             uint64
	workers          int

	showQUBO bool
	store    bool
	asJSON   bool
}

func newSolveCmd(g *globals) *cobra.Command {
	opts := &solveOptions{}
	defaults := valuation.DefaultInputs()

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Run one valuation",
		Long: `Builds the valuation QUBO, anneals it and prints the best valuation
together with the state of every binary variable.

Example:
  valuate solve --num-reads 20 --sweeps 2000 --seed 7 --show-qubo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, g, opts)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.revenue, "revenue", defaults.Financials.Revenue, "revenue in millions")
	f.Float64Var(&opts.assets, "assets", defaults.Financials.Assets, "assets in millions")
	f.Float64Var(&opts.liabilities, "liabilities", defaults.Financials.Liabilities, "liabilities in millions")
	f.Float64Var(&opts.scale, "scale", defaults.ScaleDivisor, "scaling divisor (floor division)")
	f.IntVar(&opts.bits, "bits", defaults.Bits, "bits per family")
	f.Float64Var(&opts.alpha, "alpha", defaults.Alpha, "revenue weight")
	f.Float64Var(&opts.beta, "beta", defaults.Beta, "assets weight")
	f.Float64Var(&opts.gamma, "gamma", defaults.Gamma, "liabilities weight")
	f.Float64Var(&opts.threshold, "threshold", defaults.Threshold, "minimum defensible valuation")
	f.Float64Var(&opts.largePenalty, "large-penalty", defaults.LargePenalty, "selection forcing constant")
	f.Float64Var(&opts.thresholdPenalty, "threshold-penalty", defaults.ThresholdPenalty, "threshold penalty weight")
	f.IntVar(&opts.numReads, "num-reads", annealing.DefaultNumReads, "independent annealing reads")
	f.IntVar(&opts.sweeps, "sweeps", annealing.DefaultSweeps, "sweeps per read")
	f.Float64Var(&opts.tMax, "t-max", 0, "start temperature (0 derives from the model)")
	f.Float64Var(&opts.tMin, "t-min", 0, "final temperature (0 derives from the model)")
	f.Uint64Var(&opts.seed, "seed", 0, "random seed (0 seeds from the clock)")
	f.IntVar(&opts.workers, "workers", 0, "concurrent reads (0 uses the configured default)")
	f.BoolVar(&opts.showQUBO, "show-qubo", false, "print the QUBO table before solving")
	f.BoolVar(&opts.store, "store", false, "store the run in the run history database")
	f.BoolVar(&opts.asJSON, "json", false, "print the full result as JSON")

	return cmd
}

// request starts from the configured request and applies every flag the user set
func (o *solveOptions) request(flags *pflag.FlagSet, base valuation.Request) valuation.Request {
	req := base
	in := &req.Inputs
	p := &req.Params

	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("revenue", func() { in.Financials.Revenue = o.revenue })
	set("assets", func() { in.Financials.Assets = o.assets })
	set("liabilities", func() { in.Financials.Liabilities = o.liabilities })
	set("scale", func() { in.ScaleDivisor = o.scale })
	set("bits", func() { in.Bits = o.bits })
	set("alpha", func() { in.Alpha = o.alpha })
	set("beta", func() { in.Beta = o.beta })
	set("gamma", func() { in.Gamma = o.gamma })
	set("threshold", func() { in.Threshold = o.threshold })
	set("large-penalty", func() { in.LargePenalty = o.largePenalty })
	set("threshold-penalty", func() { in.ThresholdPenalty = o.thresholdPenalty })
	set("num-reads", func() { p.NumReads = o.numReads })
	set("sweeps", func() { p.Sweeps = o.sweeps })
	set("t-max", func() { p.TMax = o.tMax })
	set("t-min", func() { p.TMin = o.tMin })
	set("seed", func() { p.Seed = o.seed })
	set("workers", func() { p.Workers = o.workers })

	return req
}

func runSolve(cmd *cobra.Command, g *globals, opts *solveOptions) error {
	req := opts.request(cmd.Flags(), g.cfg.Request())
	if err := req.Inputs.Validate(); err != nil {
		return err
	}
	if err := req.Params.Validate(); err != nil {
		return err
	}

	var store valuation.RunStore
	if opts.store {
		db, err := openRunDB(g)
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := valuation.NewRunRepository(db.Conn(), g.log)
		if err != nil {
			return err
		}
		store = repo
	}

	svc := valuation.NewService(annealing.NewSampler(g.log), store, nil, g.log)
	out := cmd.OutOrStdout()

	if opts.showQUBO {
		model, err := svc.Preview(req.Inputs)
		if err != nil {
			return err
		}
		printQUBO(out, model)
	}

	result, err := svc.Valuate(cmd.Context(), req)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(out, result)
	return nil
}

func openRunDB(g *globals) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    g.cfg.DatabasePath(),
		Profile: database.ProfileLedger,
		Name:    "valuation",
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func printQUBO(out io.Writer, m *qubo.Model) {
	fmt.Fprintf(out, "QUBO (%d variables, %d entries)\n", m.NumVariables(), m.Len())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for p, coeff := range m.Coefficients() {
		fmt.Fprintf(tw, "  %s\t%s\t%g\n", p.U, p.V, coeff)
	}
	tw.Flush()
	fmt.Fprintln(out)
}

func printResult(out io.Writer, r *valuation.Result) {
	fmt.Fprintf(out, "Lowest defensible valuation: %.2f million\n", r.Decoded.Valuation)
	fmt.Fprintf(out, "Best energy: %g (read %d of %d, seed %d)\n", r.Best.Energy, r.Best.Read, r.NumReads, r.Seed)
	fmt.Fprintf(out, "Units: revenue %d, assets %d, liabilities %d\n",
		r.Decoded.RevenueUnits, r.Decoded.AssetUnits, r.Decoded.LiabilityUnits)

	fmt.Fprintln(out, "Variables:")
	tw := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	for _, f := range valuation.Families {
		for _, v := range f.Variables(r.Encoder.Bits) {
			fmt.Fprintf(tw, "  %s\t= %d\n", v, r.Best.Assignment.Value(v))
		}
	}
	tw.Flush()

	if r.Decoded.Degenerate {
		fmt.Fprintln(out, "WARNING: no revenue or asset bit selected; the result is degenerate")
	}
	if r.RunID != "" {
		fmt.Fprintf(out, "Run: %s\n", r.RunID)
	}
}
