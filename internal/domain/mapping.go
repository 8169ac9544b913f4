package domain

import (
	"fmt"
	"math"

	"github.com/lazypower/memseries/internal/series"
)

// minRatio keeps t/t0 away from zero before exponentiation.
const minRatio = 1e-12

// UniformSteps returns dt, 2dt, ..., floor(tMax/dt)*dt.
func UniformSteps(tMax, dt float64) ([]float64, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("uniform steps: dt must be finite and > 0, got %g", dt)
	}
	if math.IsNaN(tMax) || math.IsInf(tMax, 0) {
		return nil, fmt.Errorf("uniform steps: t_max must be finite, got %g", tMax)
	}
	n := int(math.Floor(tMax / dt))
	if n <= 0 {
		return []float64{}, nil
	}
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i+1) * dt
	}
	return t, nil
}

// PowerLawEvents maps continuous time to an event index N(t) = floor((t/t0)^gamma),
// clamped to at least 2 so ln N stays positive.
func PowerLawEvents(t []float64, t0, gamma float64) []int {
	t0 = math.Max(t0, minRatio)
	out := make([]int, len(t))
	for i, v := range t {
		ratio := math.Max(v/t0, minRatio)
		n := int(math.Floor(math.Pow(ratio, gamma)))
		out[i] = max(n, series.FirstIndex)
	}
	return out
}

// IdentityIndex is the engine's own index sequence 2..n+1.
func IdentityIndex(n int) []float64 {
	return series.Index(n)
}

// SampleAt reads values at event indices. Index n maps to values[n-2]; events
// past the end of the run read the last value.
func SampleAt(values []float64, events []int) ([]float64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("sample: empty series")
	}
	out := make([]float64, len(events))
	for i, n := range events {
		if n < series.FirstIndex {
			return nil, fmt.Errorf("sample: event %d has index %d < %d", i, n, series.FirstIndex)
		}
		out[i] = values[min(n-series.FirstIndex, len(values)-1)]
	}
	return out, nil
}
