package analysis

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Spectrum is the one-sided amplitude spectrum of a real sequence, in cycles
// per index step.
type Spectrum struct {
	Frequencies []float64 `json:"frequencies"`
	Amplitudes  []float64 `json:"amplitudes"`
}

// Peak is the strongest non-DC bin of a spectrum.
type Peak struct {
	Bin       int     `json:"bin"`
	Frequency float64 `json:"frequency"`
	Amplitude float64 `json:"amplitude"`
}

// ComputeSpectrum removes the mean from seq and returns |FFT| for the
// non-negative frequencies.
func ComputeSpectrum(seq []float64) (*Spectrum, error) {
	if len(seq) < 2 {
		return nil, fmt.Errorf("spectrum: need at least 2 samples, got %d", len(seq))
	}
	mean := stat.Mean(seq, nil)
	centered := make([]float64, len(seq))
	for i, v := range seq {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(len(centered))
	coeffs := fft.Coefficients(nil, centered)

	s := &Spectrum{
		Frequencies: make([]float64, len(coeffs)),
		Amplitudes:  make([]float64, len(coeffs)),
	}
	for i, c := range coeffs {
		s.Frequencies[i] = fft.Freq(i)
		s.Amplitudes[i] = cmplx.Abs(c)
	}
	return s, nil
}

// Peak returns the largest bin above DC. A spectrum with only a DC bin
// returns the zero Peak.
func (s *Spectrum) Peak() Peak {
	var p Peak
	for i := 1; i < len(s.Amplitudes); i++ {
		if s.Amplitudes[i] > p.Amplitude {
			p = Peak{Bin: i, Frequency: s.Frequencies[i], Amplitude: s.Amplitudes[i]}
		}
	}
	return p
}
