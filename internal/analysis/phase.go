package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Default phase fit window, in samples.
const (
	DefaultFitOffset = 100
	DefaultFitCount  = 20000
)

// Unwrap removes 2*pi jumps from a phase sequence. Any step larger than pi in
// magnitude is shifted by a multiple of 2*pi; the first sample is kept.
func Unwrap(p []float64) []float64 {
	out := make([]float64, len(p))
	if len(p) == 0 {
		return out
	}
	out[0] = p[0]
	var correction float64
	for i := 1; i < len(p); i++ {
		dd := p[i] - p[i-1]
		if math.Abs(dd) >= math.Pi {
			ddmod := floorMod(dd+math.Pi, 2*math.Pi) - math.Pi
			if ddmod == -math.Pi && dd > 0 {
				ddmod = math.Pi
			}
			correction += ddmod - dd
		}
		out[i] = p[i] + correction
	}
	return out
}

// floorMod is a modulus with the sign of b.
func floorMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

// Gradient differentiates y with respect to a non-uniform grid x: second
// order central differences inside, one-sided first order at the ends.
func Gradient(y, x []float64) ([]float64, error) {
	n := len(y)
	if n != len(x) {
		return nil, fmt.Errorf("gradient: len(y) = %d, len(x) = %d", n, len(x))
	}
	if n < 2 {
		return nil, fmt.Errorf("gradient: need at least 2 samples, got %d", n)
	}

	g := make([]float64, n)
	g[0] = (y[1] - y[0]) / (x[1] - x[0])
	g[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		dx1 := x[i] - x[i-1]
		dx2 := x[i+1] - x[i]
		a := -dx2 / (dx1 * (dx1 + dx2))
		b := (dx2 - dx1) / (dx1 * dx2)
		c := dx1 / (dx2 * (dx1 + dx2))
		g[i] = a*y[i-1] + b*y[i] + c*y[i+1]
	}
	return g, nil
}

// PhaseSlope returns d(phase)/d(ln n) along the unwrapped phase. For the
// breathing variant it tracks alpha_i + beta_i/ln n.
func PhaseSlope(index, phase []float64) ([]float64, error) {
	ln := make([]float64, len(index))
	for i, n := range index {
		ln[i] = math.Log(n)
	}
	return Gradient(Unwrap(phase), ln)
}

// PhaseFit is a least-squares line phase = Intercept + Slope*ln(n).
type PhaseFit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Offset    int     `json:"offset"`
	Count     int     `json:"count"`
}

// FitPhase fits the unwrapped phase against ln(n) over count samples starting
// at offset. The window is clipped to the series; at least two samples must
// remain.
func FitPhase(index, phase []float64, offset, count int) (*PhaseFit, error) {
	n := len(phase)
	if n != len(index) {
		return nil, fmt.Errorf("fit phase: len(index) = %d, len(phase) = %d", len(index), n)
	}
	if n < 2 {
		return nil, fmt.Errorf("fit phase: need at least 2 samples, got %d", n)
	}
	if count <= 0 {
		count = DefaultFitCount
	}
	offset = max(0, min(offset, n-2))
	end := offset + min(count, n-offset)

	unwrapped := Unwrap(phase)
	x := make([]float64, end-offset)
	for i := range x {
		x[i] = math.Log(index[offset+i])
	}
	intercept, slope := stat.LinearRegression(x, unwrapped[offset:end], nil, false)
	return &PhaseFit{
		Slope:     slope,
		Intercept: intercept,
		Offset:    offset,
		Count:     end - offset,
	}, nil
}
