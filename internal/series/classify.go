package series

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultWindow is the tail window used when callers pass a window <= 0.
const DefaultWindow = 10000

// boundaryTolerance decides when alpha counts as exactly 1.
const boundaryTolerance = 1e-12

// Classification is the theoretical convergence label of a baseline.
type Classification string

const (
	Convergent Classification = "convergent"
	Divergent  Classification = "divergent"
)

// ClassifyExponents applies the Bertrand series test to the undamped
// baseline: convergent iff alpha > 1, or alpha == 1 and beta > 1.
// lambda and rho are deliberately not consulted.
func ClassifyExponents(alpha, beta float64) Classification {
	if alpha > 1.0 || (math.Abs(alpha-1.0) < boundaryTolerance && beta > 1.0) {
		return Convergent
	}
	return Divergent
}

// Diagnostics is the read-only summary of one completed run.
type Diagnostics struct {
	N              int            `json:"n"`
	Alpha          float64        `json:"alpha"`
	Beta           float64        `json:"beta"`
	Lambda         float64        `json:"lambda"`
	Rho            float64        `json:"rho"`
	FinalSum       float64        `json:"final_sum"`
	WindowedGrowth float64        `json:"windowed_growth"`
	TailMean       float64        `json:"tail_mean"`
	Classification Classification `json:"classification"`
}

// Finite reports whether every summary value is finite.
func (d *Diagnostics) Finite() bool {
	for _, v := range []float64{d.FinalSum, d.WindowedGrowth, d.TailMean} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Params returns the parameter tuple the diagnostics were computed for.
func (d *Diagnostics) Params() Params {
	return Params{N: d.N, Alpha: d.Alpha, Beta: d.Beta, Lambda: d.Lambda, Rho: d.Rho}
}

// WindowedGrowth is the average per-step increase of sum over its final
// 2*window samples. Series shorter than 2*window use max(10, len/10).
func WindowedGrowth(sum []float64, window int) float64 {
	n := len(sum)
	if n == 0 {
		return 0
	}
	if window <= 0 {
		window = DefaultWindow
	}
	// n < 2*window, written so a huge window cannot overflow.
	if window > n/2 {
		window = max(10, n/10)
	}
	start := max(0, n-2*window)
	return (sum[n-1] - sum[start]) / float64(max(1, n-start))
}

// TailMean is the mean of the final window values. Series shorter than
// window use max(10, len/5), clipped to the series length.
func TailMean(values []float64, window int) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if n < window {
		window = max(10, n/5)
	}
	window = min(window, n)
	return stat.Mean(values[n-window:], nil)
}

// Summarize computes diagnostics for a series already produced by Run(p).
func Summarize(s *Series, p Params, window int) *Diagnostics {
	return &Diagnostics{
		N:              p.N,
		Alpha:          p.Alpha,
		Beta:           p.Beta,
		Lambda:         p.Lambda,
		Rho:            p.Rho,
		FinalSum:       s.FinalSum(),
		WindowedGrowth: WindowedGrowth(s.Sum, window),
		TailMean:       TailMean(s.Values, window),
		Classification: ClassifyExponents(p.Alpha, p.Beta),
	}
}

// Classify runs the engine for p and summarizes the result.
func Classify(p Params, window int) (*Diagnostics, error) {
	s, err := Run(p)
	if err != nil {
		return nil, err
	}
	return Summarize(s, p, window), nil
}
