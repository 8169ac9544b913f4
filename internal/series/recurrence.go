package series

import (
	"math"
	"math/cmplx"
)

// Series is a fully materialized real-valued run.
type Series struct {
	Index  []float64 `json:"index"`
	Values []float64 `json:"values"`
	Sum    []float64 `json:"sum"`
}

// Len returns the number of steps in the run.
func (s *Series) Len() int { return len(s.Values) }

// FinalSum returns the last running-sum value.
func (s *Series) FinalSum() float64 {
	if len(s.Sum) == 0 {
		return 0
	}
	return s.Sum[len(s.Sum)-1]
}

// ComplexSeries is a fully materialized complex-valued run. Sum accumulates
// magnitudes, so it is real.
type ComplexSeries struct {
	Index  []float64    `json:"index"`
	Values []complex128 `json:"-"`
	Phase  []float64    `json:"phase"`
	Sum    []float64    `json:"sum"`
}

// Len returns the number of steps in the run.
func (s *ComplexSeries) Len() int { return len(s.Values) }

// FinalSum returns the last accumulated magnitude.
func (s *ComplexSeries) FinalSum() float64 {
	if len(s.Sum) == 0 {
		return 0
	}
	return s.Sum[len(s.Sum)-1]
}

// Magnitudes returns |a_i| for every step.
func (s *ComplexSeries) Magnitudes() []float64 {
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = cmplx.Abs(v)
	}
	return out
}

// accumulator owns the running magnitude M of one run. It never outlives the
// call that created it.
type accumulator struct {
	m      float64
	lambda float64
	rho    float64
}

func newAccumulator(p Params) *accumulator {
	return &accumulator{lambda: p.Lambda, rho: p.Rho}
}

// damping evaluates the memory kernel at the current state.
func (acc *accumulator) damping() float64 {
	return kernel(acc.m, acc.lambda, acc.rho)
}

// add folds a step magnitude into the state and returns the new M.
func (acc *accumulator) add(mag float64) float64 {
	acc.m += mag
	return acc.m
}

// Run computes the real-valued series for p.
func Run(p Params) (*Series, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	index := Index(p.N)
	base, err := Baselines(index, p.Alpha, p.Beta)
	if err != nil {
		return nil, err
	}

	s := &Series{
		Index:  index,
		Values: make([]float64, p.N),
		Sum:    make([]float64, p.N),
	}
	acc := newAccumulator(p)
	for i, b := range base {
		a := b * acc.damping()
		s.Values[i] = a
		s.Sum[i] = acc.add(math.Abs(a))
	}
	return s, nil
}

// Phase returns alphaI*ln(n) + betaI*ln(ln(n)).
func Phase(n, alphaI, betaI float64) float64 {
	ln := math.Log(n)
	return alphaI*ln + betaI*math.Log(ln)
}

// RunComplex computes the phase-rotated variant a_i = b_i * f(M) * e^{-j*phi_i}.
// With alphaI == betaI == 0 its magnitudes equal Run's values exactly.
func RunComplex(p ComplexParams) (*ComplexSeries, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	index := Index(p.N)
	base, err := Baselines(index, p.Alpha, p.Beta)
	if err != nil {
		return nil, err
	}

	s := &ComplexSeries{
		Index:  index,
		Values: make([]complex128, p.N),
		Phase:  make([]float64, p.N),
		Sum:    make([]float64, p.N),
	}
	acc := newAccumulator(p.Params)
	for i, b := range base {
		phi := Phase(index[i], p.AlphaI, p.BetaI)
		a := cmplx.Rect(b*acc.damping(), -phi)
		s.Phase[i] = phi
		s.Values[i] = a
		s.Sum[i] = acc.add(cmplx.Abs(a))
	}
	return s, nil
}
