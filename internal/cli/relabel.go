package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/memseries/internal/domain"
	"github.com/lazypower/memseries/internal/series"
)

var (
	relabelFlags paramFlags
	relabelKB    float64
	relabelH0    float64
	relabelTMax  float64
	relabelDT    float64
	relabelT0    float64
	relabelGamma float64
	relabelJSON  bool
)

var relabelCmd = &cobra.Command{
	Use:   "relabel",
	Short: "Read a run under a physical analogy",
}

var entropyCmd = &cobra.Command{
	Use:   "entropy",
	Short: "Terms as entropy increments, S = kB * M",
	RunE:  runEntropy,
}

var cosmologyCmd = &cobra.Command{
	Use:   "cosmology",
	Short: "Terms as expansion-rate increments, H = H0 + M",
	RunE:  runCosmology,
}

var neuralCmd = &cobra.Command{
	Use:   "neural",
	Short: "Terms as synaptic weight updates",
	RunE:  runNeural,
}

func init() {
	for _, c := range []*cobra.Command{entropyCmd, cosmologyCmd, neuralCmd} {
		relabelFlags.register(c)
		c.Flags().BoolVar(&relabelJSON, "json", false, "output JSON")
		relabelCmd.AddCommand(c)
	}
	entropyCmd.Flags().Float64Var(&relabelKB, "kb", 1, "Boltzmann scale")
	cosmologyCmd.Flags().Float64Var(&relabelH0, "h0", 0, "initial expansion rate")
	cosmologyCmd.Flags().Float64Var(&relabelTMax, "t-max", 0, "sample H on a uniform time grid up to t-max (0 disables)")
	cosmologyCmd.Flags().Float64Var(&relabelDT, "dt", 1, "time step of the sampling grid")
	cosmologyCmd.Flags().Float64Var(&relabelT0, "t0", 1, "time scale of the event mapping N(t) = (t/t0)^gamma")
	cosmologyCmd.Flags().Float64Var(&relabelGamma, "gamma", 1, "exponent of the event mapping")
}

func runEntropy(cmd *cobra.Command, args []string) error {
	s, err := series.Run(relabelFlags.params())
	if err != nil {
		return err
	}
	v := domain.EntropyView(s, relabelKB)

	out := cmd.OutOrStdout()
	if relabelJSON {
		return printJSON(out, v)
	}
	fmt.Fprintf(out, "## Entropy\n\n")
	printParams(out, relabelFlags.params())
	fmt.Fprintf(out, "  kB: %g\n", relabelKB)
	fmt.Fprintf(out, "  S:  %.12g\n", domain.Final(v.S))
	fmt.Fprintf(out, "  M:  %.12g\n", domain.Final(v.M))
	return nil
}

func runCosmology(cmd *cobra.Command, args []string) error {
	p := relabelFlags.params()

	var events []int
	if relabelTMax > 0 {
		t, err := domain.UniformSteps(relabelTMax, relabelDT)
		if err != nil {
			return err
		}
		if len(t) == 0 {
			return fmt.Errorf("t-max %g is shorter than one step of %g", relabelTMax, relabelDT)
		}
		events = domain.PowerLawEvents(t, relabelT0, relabelGamma)
		// The run has to reach the largest event index.
		for _, n := range events {
			p.N = max(p.N, n-series.FirstIndex+1)
		}
	}

	s, err := series.Run(p)
	if err != nil {
		return err
	}
	v := domain.CosmologyView(s, relabelH0)

	out := cmd.OutOrStdout()
	if events != nil {
		h, err := domain.SampleAt(v.H, events)
		if err != nil {
			return err
		}
		t, _ := domain.UniformSteps(relabelTMax, relabelDT)
		if relabelJSON {
			return printJSON(out, map[string]any{"t": t, "events": events, "h": h})
		}
		fmt.Fprintf(out, "## Cosmology (sampled)\n\n")
		printParams(out, p)
		fmt.Fprintf(out, "  H0: %g  t0: %g  gamma: %g\n\n", relabelH0, relabelT0, relabelGamma)
		for i := range t {
			fmt.Fprintf(out, "  t=%-10g N=%-8d H=%.10g\n", t[i], events[i], h[i])
		}
		return nil
	}

	if relabelJSON {
		return printJSON(out, v)
	}
	fmt.Fprintf(out, "## Cosmology\n\n")
	printParams(out, p)
	fmt.Fprintf(out, "  H0: %g\n", relabelH0)
	fmt.Fprintf(out, "  H:  %.12g\n", domain.Final(v.H))
	return nil
}

func runNeural(cmd *cobra.Command, args []string) error {
	s, err := series.Run(relabelFlags.params())
	if err != nil {
		return err
	}
	v := domain.NeuralView(s)

	out := cmd.OutOrStdout()
	if relabelJSON {
		return printJSON(out, v)
	}
	fmt.Fprintf(out, "## Potentiation\n\n")
	printParams(out, relabelFlags.params())
	fmt.Fprintf(out, "  W: %.12g\n", domain.Final(v.W))
	return nil
}
