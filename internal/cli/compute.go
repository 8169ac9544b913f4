package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/memseries/internal/analysis"
	"github.com/lazypower/memseries/internal/series"
)

// paramFlags backs the run parameters shared by every compute command.
type paramFlags struct {
	n      int
	alpha  float64
	beta   float64
	lambda float64
	rho    float64
}

func (f *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.n, "n", 10000, "number of terms")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 1, "power-law exponent")
	cmd.Flags().Float64Var(&f.beta, "beta", 1, "log exponent")
	cmd.Flags().Float64Var(&f.lambda, "lambda", 1e-4, "memory coupling")
	cmd.Flags().Float64Var(&f.rho, "rho", 1, "memory exponent")
}

func (f *paramFlags) params() series.Params {
	return series.Params{N: f.n, Alpha: f.alpha, Beta: f.beta, Lambda: f.lambda, Rho: f.rho}
}

var (
	seriesFlags   paramFlags
	seriesComplex bool
	seriesAlphaI  float64
	seriesBetaI   float64
	seriesValues  bool
	seriesJSON    bool

	classifyFlags  paramFlags
	classifyWindow int
	classifyJSON   bool

	validateFlags paramFlags
	validateStep  float64
	validateJSON  bool

	breatheFlags     paramFlags
	breatheAlphaI    float64
	breatheBetaI     float64
	breatheScale     float64
	breatheFitOffset int
	breatheFitCount  int
	breatheSpectrum  bool
	breatheJSON      bool
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Compute a memory-weighted series",
	RunE:  runSeries,
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify the growth of a run",
	RunE:  runClassify,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compare the discrete sum against its ODE limit",
	RunE:  runValidate,
}

var breatheCmd = &cobra.Command{
	Use:   "breathe",
	Short: "Measure breathing of a complex-exponent run",
	RunE:  runBreathe,
}

func init() {
	seriesFlags.register(seriesCmd)
	seriesCmd.Flags().BoolVar(&seriesComplex, "complex", false, "use complex exponents")
	seriesCmd.Flags().Float64Var(&seriesAlphaI, "alpha-i", 0, "imaginary part of alpha")
	seriesCmd.Flags().Float64Var(&seriesBetaI, "beta-i", 0, "imaginary part of beta")
	seriesCmd.Flags().BoolVar(&seriesValues, "values", false, "print every term")
	seriesCmd.Flags().BoolVar(&seriesJSON, "json", false, "output JSON")

	classifyFlags.register(classifyCmd)
	classifyCmd.Flags().IntVar(&classifyWindow, "window", series.DefaultWindow, "tail window")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "output JSON")

	validateFlags.register(validateCmd)
	validateCmd.Flags().Float64Var(&validateStep, "step", series.DefaultStep, "RK4 step size")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "output JSON")

	breatheFlags.register(breatheCmd)
	breatheCmd.Flags().Float64Var(&breatheAlphaI, "alpha-i", 2.8, "imaginary part of alpha")
	breatheCmd.Flags().Float64Var(&breatheBetaI, "beta-i", 2.9, "imaginary part of beta")
	breatheCmd.Flags().Float64Var(&breatheScale, "scale-frac", analysis.DefaultScaleFrac, "residence band as a fraction of the median magnitude")
	breatheCmd.Flags().IntVar(&breatheFitOffset, "fit-offset", analysis.DefaultFitOffset, "first sample of the phase fit")
	breatheCmd.Flags().IntVar(&breatheFitCount, "fit-count", analysis.DefaultFitCount, "samples in the phase fit")
	breatheCmd.Flags().BoolVar(&breatheSpectrum, "spectrum", false, "report the dominant frequency of the real part")
	breatheCmd.Flags().BoolVar(&breatheJSON, "json", false, "output JSON")
}

func runSeries(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p := seriesFlags.params()

	if seriesComplex {
		start := time.Now()
		cs, err := series.RunComplex(series.ComplexParams{Params: p, AlphaI: seriesAlphaI, BetaI: seriesBetaI})
		if err != nil {
			return err
		}
		logger.Debug("complex run", zap.Int("n", p.N), zap.Duration("elapsed", time.Since(start)))
		mag := cs.Magnitudes()
		if seriesJSON {
			resp := map[string]any{"variant": "complex", "n": p.N, "final_sum": cs.FinalSum()}
			if seriesValues {
				resp["index"], resp["magnitude"], resp["phase"], resp["sum"] = cs.Index, mag, cs.Phase, cs.Sum
			}
			return printJSON(out, resp)
		}
		fmt.Fprintf(out, "## Series (complex)\n\n")
		printParams(out, p)
		fmt.Fprintf(out, "  alpha_i: %g  beta_i: %g\n", seriesAlphaI, seriesBetaI)
		fmt.Fprintf(out, "  final M: %.12g\n", cs.FinalSum())
		if seriesValues {
			fmt.Fprintln(out)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "n\t|a_n|\tphase\tM_n")
			for i := range cs.Values {
				fmt.Fprintf(tw, "%g\t%.10g\t%.6f\t%.10g\n", cs.Index[i], mag[i], cs.Phase[i], cs.Sum[i])
			}
			return tw.Flush()
		}
		return nil
	}

	start := time.Now()
	s, err := series.Run(p)
	if err != nil {
		return err
	}
	logger.Debug("real run", zap.Int("n", p.N), zap.Duration("elapsed", time.Since(start)))
	if seriesJSON {
		resp := map[string]any{"variant": "real", "n": p.N, "final_sum": s.FinalSum()}
		if seriesValues {
			resp["index"], resp["values"], resp["sum"] = s.Index, s.Values, s.Sum
		}
		return printJSON(out, resp)
	}
	fmt.Fprintf(out, "## Series (real)\n\n")
	printParams(out, p)
	fmt.Fprintf(out, "  final M: %.12g\n", s.FinalSum())
	if seriesValues {
		fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "n\ta_n\tM_n")
		for i := range s.Values {
			fmt.Fprintf(tw, "%g\t%.10g\t%.10g\n", s.Index[i], s.Values[i], s.Sum[i])
		}
		return tw.Flush()
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if !cmd.Flags().Changed("window") {
		classifyWindow = cfg.Sweep.Window
	}
	d, err := series.Classify(classifyFlags.params(), classifyWindow)
	if err != nil {
		return err
	}
	if classifyJSON {
		return printJSON(out, d)
	}
	fmt.Fprintf(out, "## Classification: %s\n\n", d.Classification)
	printParams(out, d.Params())
	fmt.Fprintf(out, "  final M:         %.12g\n", d.FinalSum)
	fmt.Fprintf(out, "  windowed growth: %.6g\n", d.WindowedGrowth)
	fmt.Fprintf(out, "  tail mean:       %.6g\n", d.TailMean)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cc, err := series.Compare(validateFlags.params(), validateStep)
	if err != nil {
		return err
	}
	if validateJSON {
		return printJSON(out, cc)
	}
	fmt.Fprintf(out, "## ODE cross-check (h = %g)\n\n", cc.Step)
	printParams(out, cc.Params)
	fmt.Fprintf(out, "  discrete:      %.12g\n", cc.Discrete)
	fmt.Fprintf(out, "  ode:           %.12g\n", cc.ODE)
	fmt.Fprintf(out, "  relative diff: %.3e\n", cc.RelativeDiff)
	return nil
}

func runBreathe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p := series.ComplexParams{Params: breatheFlags.params(), AlphaI: breatheAlphaI, BetaI: breatheBetaI}
	cs, err := series.RunComplex(p)
	if err != nil {
		return err
	}
	m, err := analysis.Breathing(cs.Values, breatheScale)
	if err != nil {
		return err
	}

	var fit *analysis.PhaseFit
	if cs.Len() >= 2 {
		if fit, err = analysis.FitPhase(cs.Index, cs.Phase, breatheFitOffset, breatheFitCount); err != nil {
			return err
		}
	}
	var peak *analysis.Peak
	if breatheSpectrum && cs.Len() >= 2 {
		re := make([]float64, cs.Len())
		for i, v := range cs.Values {
			re[i] = real(v)
		}
		sp, err := analysis.ComputeSpectrum(re)
		if err != nil {
			return err
		}
		pk := sp.Peak()
		peak = &pk
	}

	if breatheJSON {
		resp := map[string]any{"params": p, "metrics": m}
		if fit != nil {
			resp["phase_fit"] = fit
		}
		if peak != nil {
			resp["spectrum_peak"] = peak
		}
		return printJSON(out, resp)
	}

	fmt.Fprintf(out, "## Breathing\n\n")
	printParams(out, p.Params)
	fmt.Fprintf(out, "  alpha_i: %g  beta_i: %g\n\n", p.AlphaI, p.BetaI)
	fmt.Fprintf(out, "  residence:     %d / %d\n", m.Residence, cs.Len())
	fmt.Fprintf(out, "  target:        %.6g\n", m.Target)
	fmt.Fprintf(out, "  mean |a_n|:    %.6g\n", m.MeanMagnitude)
	fmt.Fprintf(out, "  amplitude std: %.6g\n", m.AmplitudeStd)
	if fit != nil {
		fmt.Fprintf(out, "  phase slope:   %.6f (samples %d..%d)\n", fit.Slope, fit.Offset, fit.Offset+fit.Count)
	}
	if peak != nil {
		fmt.Fprintf(out, "  spectrum peak: bin %d, f = %.6g, amplitude %.6g\n", peak.Bin, peak.Frequency, peak.Amplitude)
	}
	return nil
}

func printParams(w io.Writer, p series.Params) {
	fmt.Fprintf(w, "  n: %d  alpha: %g  beta: %g  lambda: %g  rho: %g\n", p.N, p.Alpha, p.Beta, p.Lambda, p.Rho)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
