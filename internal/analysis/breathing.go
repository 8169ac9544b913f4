// Package analysis derives scalar diagnostics from complex-valued runs:
// breathing metrics, phase slope fits and magnitude spectra.
package analysis

import (
	"errors"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultScaleFrac is the relative band around the median magnitude that
// counts as "near".
const DefaultScaleFrac = 0.5

// ErrNoSignal is returned when a run has no positive magnitude to anchor on.
var ErrNoSignal = errors.New("no positive magnitude in series")

// BreathingMetrics summarizes how long a complex run lingers near its typical
// magnitude and how much it oscillates while there.
type BreathingMetrics struct {
	Residence     int     `json:"residence"`
	AmplitudeStd  float64 `json:"amplitude_std"`
	MeanMagnitude float64 `json:"mean_mag"`
	Target        float64 `json:"target"`
}

// Finite reports whether every metric is finite.
func (m *BreathingMetrics) Finite() bool {
	for _, v := range []float64{m.AmplitudeStd, m.MeanMagnitude, m.Target} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Breathing computes BreathingMetrics over the magnitudes of values.
func Breathing(values []complex128, scaleFrac float64) (*BreathingMetrics, error) {
	mag := make([]float64, len(values))
	for i, v := range values {
		mag[i] = cmplx.Abs(v)
	}
	return BreathingMagnitudes(mag, scaleFrac)
}

// BreathingMagnitudes is Breathing over precomputed magnitudes.
//
// The target is the median positive magnitude. A sample is near when it lies
// strictly within scaleFrac*target of it. The amplitude is the population
// standard deviation of the near samples, or of all samples when none are.
func BreathingMagnitudes(mag []float64, scaleFrac float64) (*BreathingMetrics, error) {
	target, ok := positiveMedian(mag)
	if !ok {
		return nil, ErrNoSignal
	}
	tol := scaleFrac * target

	near := make([]float64, 0, len(mag))
	for _, m := range mag {
		if math.Abs(m-target) < tol {
			near = append(near, m)
		}
	}

	var amp float64
	if len(near) > 0 {
		_, amp = stat.PopMeanStdDev(near, nil)
	} else {
		_, amp = stat.PopMeanStdDev(mag, nil)
	}

	return &BreathingMetrics{
		Residence:     len(near),
		AmplitudeStd:  amp,
		MeanMagnitude: stat.Mean(mag, nil),
		Target:        target,
	}, nil
}

func positiveMedian(xs []float64) (float64, bool) {
	pos := make([]float64, 0, len(xs))
	for _, x := range xs {
		if x > 0 {
			pos = append(pos, x)
		}
	}
	if len(pos) == 0 {
		return 0, false
	}
	sort.Float64s(pos)
	mid := len(pos) / 2
	if len(pos)%2 == 1 {
		return pos[mid], true
	}
	return (pos[mid-1] + pos[mid]) / 2, true
}
