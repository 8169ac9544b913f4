// Package domain reinterprets a memory-weighted run under physical analogies.
// Nothing here touches the recurrence itself; every view is a pure transform
// of a finished series.Series.
package domain

import (
	"gonum.org/v1/gonum/floats"

	"github.com/lazypower/memseries/internal/series"
)

// Entropy is the thermodynamic reading: each term is an entropy increment.
type Entropy struct {
	Index  []float64 `json:"n"`
	DeltaS []float64 `json:"delta_s"`
	S      []float64 `json:"s"`
	M      []float64 `json:"m"`
}

// EntropyView scales increments by kB and accumulates them into S.
func EntropyView(s *series.Series, kB float64) *Entropy {
	delta := append([]float64(nil), s.Values...)
	floats.Scale(kB, delta)
	total := floats.CumSum(make([]float64, len(s.Values)), s.Values)
	floats.Scale(kB, total)
	return &Entropy{
		Index:  s.Index,
		DeltaS: delta,
		S:      total,
		M:      s.Sum,
	}
}

// Cosmology is the expansion reading: H(t) = H0 + accumulated terms.
type Cosmology struct {
	T []float64 `json:"t"`
	H []float64 `json:"h"`
}

// CosmologyView offsets the cumulative sum of terms by H0.
func CosmologyView(s *series.Series, h0 float64) *Cosmology {
	h := floats.CumSum(make([]float64, len(s.Values)), s.Values)
	floats.AddConst(h0, h)
	return &Cosmology{T: s.Index, H: h}
}

// Potentiation is the synaptic reading: increments are weight changes and the
// running sum is the accumulated weight.
type Potentiation struct {
	Index  []float64 `json:"n"`
	DeltaW []float64 `json:"delta_w"`
	W      []float64 `json:"w"`
}

// NeuralView relabels terms as weight updates at unit stimulus. Stimulus
// scaling is not supported: a stimulus multiplies b before the memory
// feedback, so a scaled run is a different series, not a relabel of s.
func NeuralView(s *series.Series) *Potentiation {
	return &Potentiation{Index: s.Index, DeltaW: s.Values, W: s.Sum}
}

// Final returns the last element of xs, or 0 for an empty slice.
func Final(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}
