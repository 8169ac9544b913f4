package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/lazypower/memseries/internal/metrics"
	"github.com/lazypower/memseries/internal/store"
	"github.com/lazypower/memseries/internal/sweep"
)

var (
	critGrid    = sweep.DefaultCriticalGrid()
	breathGrid  = sweep.DefaultBreathingGrid()
	sweepNoSave bool
	sweepJSON   bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate a parameter grid",
}

var sweepCriticalCmd = &cobra.Command{
	Use:   "critical",
	Short: "Classify a square grid around (alpha, beta)",
	RunE:  runSweepCritical,
}

var sweepBreathingCmd = &cobra.Command{
	Use:   "breathing",
	Short: "Measure breathing across imaginary exponents",
	RunE:  runSweepBreathing,
}

func init() {
	f := sweepCriticalCmd.Flags()
	f.Float64Var(&critGrid.AlphaCenter, "alpha", critGrid.AlphaCenter, "alpha at the grid center")
	f.Float64Var(&critGrid.BetaCenter, "beta", critGrid.BetaCenter, "beta at the grid center")
	f.Float64Var(&critGrid.Delta, "delta", critGrid.Delta, "half-width of the grid")
	f.IntVar(&critGrid.Steps, "steps", critGrid.Steps, "points per axis")
	f.IntVar(&critGrid.N, "n", critGrid.N, "terms per run")
	f.Float64Var(&critGrid.Lambda, "lambda", critGrid.Lambda, "memory coupling")
	f.Float64Var(&critGrid.Rho, "rho", critGrid.Rho, "memory exponent")
	f.IntVar(&critGrid.Window, "window", critGrid.Window, "tail window")

	f = sweepBreathingCmd.Flags()
	f.Float64Var(&breathGrid.AlphaR, "alpha-r", breathGrid.AlphaR, "real part of alpha")
	f.Float64Var(&breathGrid.BetaR, "beta-r", breathGrid.BetaR, "real part of beta")
	f.Float64Var(&breathGrid.AlphaIMin, "alpha-i-min", breathGrid.AlphaIMin, "lowest imaginary alpha")
	f.Float64Var(&breathGrid.AlphaIMax, "alpha-i-max", breathGrid.AlphaIMax, "highest imaginary alpha")
	f.Float64Var(&breathGrid.BetaIMin, "beta-i-min", breathGrid.BetaIMin, "lowest imaginary beta")
	f.Float64Var(&breathGrid.BetaIMax, "beta-i-max", breathGrid.BetaIMax, "highest imaginary beta")
	f.IntVar(&breathGrid.Steps, "steps", breathGrid.Steps, "points per axis")
	f.IntVar(&breathGrid.N, "n", breathGrid.N, "terms per run")
	f.Float64Var(&breathGrid.Lambda, "lambda", breathGrid.Lambda, "memory coupling")
	f.Float64Var(&breathGrid.Rho, "rho", breathGrid.Rho, "memory exponent")
	f.Float64Var(&breathGrid.ScaleFrac, "scale-frac", breathGrid.ScaleFrac, "residence band as a fraction of the median magnitude")

	for _, c := range []*cobra.Command{sweepCriticalCmd, sweepBreathingCmd} {
		c.Flags().BoolVar(&sweepNoSave, "no-save", false, "do not record the sweep in the database")
		c.Flags().BoolVar(&sweepJSON, "json", false, "output JSON")
		sweepCmd.AddCommand(c)
	}
}

// newRunner wires a runner to the database unless --no-save is set. The
// returned closer releases the database.
func newRunner() (*sweep.Runner, func(), error) {
	m := metrics.NewCollector(logger)
	if sweepNoSave {
		return sweep.NewRunner(nil, logger, m, cfg.Sweep.Workers), func() {}, nil
	}
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	return sweep.NewRunner(db, logger, m, cfg.Sweep.Workers), func() { db.Close() }, nil
}

// signalContext is cancelled on SIGINT or SIGTERM so a sweep records itself
// as failed instead of staying running.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runSweepCritical(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("window") {
		critGrid.Window = cfg.Sweep.Window
	}
	if err := validator.New().Struct(critGrid); err != nil {
		return fmt.Errorf("invalid grid: %w", err)
	}
	r, closeDB, err := newRunner()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	res, err := r.Critical(ctx, critGrid)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sweepJSON {
		return printJSON(out, res)
	}
	printSweepHeader(out, res.Sweep)
	for _, d := range res.Diagnostics {
		fmt.Fprintf(out, "  alpha=%-8.4f beta=%-8.4f M=%-14.8g growth=%-12.4g %s\n",
			d.Alpha, d.Beta, d.FinalSum, d.WindowedGrowth, d.Classification)
	}
	return nil
}

func runSweepBreathing(cmd *cobra.Command, args []string) error {
	if err := validator.New().Struct(breathGrid); err != nil {
		return fmt.Errorf("invalid grid: %w", err)
	}
	r, closeDB, err := newRunner()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	res, err := r.Breathing(ctx, breathGrid)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sweepJSON {
		return printJSON(out, res)
	}
	printSweepHeader(out, res.Sweep)
	for _, p := range res.Breathing {
		fmt.Fprintf(out, "  alpha_i=%-6.3f beta_i=%-6.3f residence=%-7d std=%-12.4g mean=%.4g\n",
			p.AlphaI, p.BetaI, p.Residence, p.AmplitudeStd, p.MeanMagnitude)
	}
	return nil
}

func printSweepHeader(w io.Writer, s *store.Sweep) {
	fmt.Fprintf(w, "## Sweep %s (%s)\n\n", s.ID, s.Kind)
	fmt.Fprintf(w, "  status: %s  points: %d\n\n", s.Status, s.Points)
}
