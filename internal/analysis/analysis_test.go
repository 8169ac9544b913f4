package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/memseries/internal/series"
)

func TestBreathingMagnitudes(t *testing.T) {
	tests := []struct {
		name      string
		mag       []float64
		scaleFrac float64
		residence int
		amp       float64
		mean      float64
		target    float64
	}{
		{
			name:      "cluster with outlier and zero",
			mag:       []float64{1, 1, 1, 1, 10, 0},
			scaleFrac: 0.5,
			residence: 4,
			amp:       0,
			mean:      14.0 / 6,
			target:    1,
		},
		{
			name:      "narrow band",
			mag:       []float64{1, 2, 3},
			scaleFrac: 0.001,
			residence: 1,
			amp:       0,
			mean:      2,
			target:    2,
		},
		{
			name:      "nothing near falls back to all samples",
			mag:       []float64{1, 3},
			scaleFrac: 0.1,
			residence: 0,
			amp:       1,
			mean:      2,
			target:    2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := BreathingMagnitudes(tt.mag, tt.scaleFrac)
			require.NoError(t, err)
			assert.Equal(t, tt.residence, m.Residence)
			assert.InDelta(t, tt.amp, m.AmplitudeStd, 1e-12)
			assert.InDelta(t, tt.mean, m.MeanMagnitude, 1e-12)
			assert.InDelta(t, tt.target, m.Target, 1e-12)
		})
	}
}

func TestBreathingNoSignal(t *testing.T) {
	_, err := BreathingMagnitudes([]float64{0, 0}, DefaultScaleFrac)
	assert.True(t, errors.Is(err, ErrNoSignal))

	_, err = Breathing(nil, DefaultScaleFrac)
	assert.True(t, errors.Is(err, ErrNoSignal))
}

func TestBreathingOnComplexRun(t *testing.T) {
	s, err := series.RunComplex(series.ComplexParams{
		Params: series.Params{N: 20000, Alpha: 1.0, Beta: 1.0, Lambda: 1e-4, Rho: 1.0},
		AlphaI: 2.8,
		BetaI:  2.9,
	})
	require.NoError(t, err)

	m, err := Breathing(s.Values, DefaultScaleFrac)
	require.NoError(t, err)
	assert.Greater(t, m.Residence, 0)
	assert.LessOrEqual(t, m.Residence, s.Len())
	assert.Greater(t, m.MeanMagnitude, 0.0)
	assert.Greater(t, m.Target, 0.0)
}

func TestUnwrapRecoversLinearPhase(t *testing.T) {
	n := 200
	truth := make([]float64, n)
	wrapped := make([]float64, n)
	for i := range truth {
		truth[i] = 0.1 + 0.7*float64(i)
		wrapped[i] = math.Remainder(truth[i], 2*math.Pi)
	}

	got := Unwrap(wrapped)
	for i := range truth {
		assert.InDelta(t, truth[i], got[i], 1e-9, "sample %d", i)
	}
}

func TestUnwrapLeavesSmallSteps(t *testing.T) {
	p := []float64{0, 1, 2, 3, 2.5, -0.5}
	assert.Equal(t, p, Unwrap(p))
	assert.Empty(t, Unwrap(nil))
}

func TestGradientNonUniform(t *testing.T) {
	x := []float64{0, 1, 3, 6}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = v * v
	}

	g, err := Gradient(y, x)
	require.NoError(t, err)
	// Edges are one-sided; interior is exact for quadratics.
	assert.InDelta(t, 1, g[0], 1e-12)
	assert.InDelta(t, 2, g[1], 1e-12)
	assert.InDelta(t, 6, g[2], 1e-12)
	assert.InDelta(t, 9, g[3], 1e-12)
}

func TestGradientRejectsShortOrMismatched(t *testing.T) {
	_, err := Gradient([]float64{1}, []float64{1})
	assert.Error(t, err)
	_, err = Gradient([]float64{1, 2}, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestFitPhaseRecoversLine(t *testing.T) {
	index := series.Index(30000)
	phase := make([]float64, len(index))
	for i, n := range index {
		phase[i] = math.Remainder(0.25+1.5*math.Log(n), 2*math.Pi)
	}

	fit, err := FitPhase(index, phase, DefaultFitOffset, DefaultFitCount)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, fit.Slope, 1e-9)
	assert.InDelta(t, 0.25, fit.Intercept, 1e-8)
	assert.Equal(t, DefaultFitOffset, fit.Offset)
	assert.Equal(t, DefaultFitCount, fit.Count)
}

func TestFitPhaseClipsWindow(t *testing.T) {
	index := series.Index(50)
	phase := make([]float64, len(index))
	for i, n := range index {
		phase[i] = 3 * math.Log(n)
	}

	fit, err := FitPhase(index, phase, 100, 20000)
	require.NoError(t, err)
	assert.Equal(t, 48, fit.Offset)
	assert.Equal(t, 2, fit.Count)
	assert.InDelta(t, 3, fit.Slope, 1e-9)

	// Counts past the end of int clip like any other long window.
	fit, err = FitPhase(index, phase, 10, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, 10, fit.Offset)
	assert.Equal(t, 40, fit.Count)
	assert.InDelta(t, 3, fit.Slope, 1e-9)

	fit, err = FitPhase(index, phase, math.MaxInt, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, 48, fit.Offset)
	assert.Equal(t, 2, fit.Count)

	_, err = FitPhase(index[:1], phase[:1], 0, 0)
	assert.Error(t, err)
}

func TestPhaseSlopeTracksBreathingExponents(t *testing.T) {
	s, err := series.RunComplex(series.ComplexParams{
		Params: series.Params{N: 5000, Alpha: 1, Beta: 1, Lambda: 1e-4, Rho: 1},
		AlphaI: 2.8,
		BetaI:  2.9,
	})
	require.NoError(t, err)

	slope, err := PhaseSlope(s.Index, s.Phase)
	require.NoError(t, err)
	for _, i := range []int{100, 1000, 4000} {
		want := 2.8 + 2.9/math.Log(s.Index[i])
		assert.InDelta(t, want, slope[i], 1e-3, "sample %d", i)
	}
}

func TestSpectrumPeak(t *testing.T) {
	const n, k = 256, 8
	seq := make([]float64, n)
	for i := range seq {
		seq[i] = 5 + math.Cos(2*math.Pi*k*float64(i)/n)
	}

	sp, err := ComputeSpectrum(seq)
	require.NoError(t, err)
	assert.Len(t, sp.Amplitudes, n/2+1)
	assert.InDelta(t, 0, sp.Amplitudes[0], 1e-9)

	p := sp.Peak()
	assert.Equal(t, k, p.Bin)
	assert.InDelta(t, float64(k)/n, p.Frequency, 1e-12)
	assert.InDelta(t, n/2, p.Amplitude, 1e-9)
}

func TestSpectrumRejectsShort(t *testing.T) {
	_, err := ComputeSpectrum([]float64{1})
	assert.Error(t, err)
}
