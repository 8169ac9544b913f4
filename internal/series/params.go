// Package series computes memory-weighted recurrence series.
//
// A run walks the index sequence n = 2, 3, ..., N+1 once, left to right:
//
//	b_i = n_i^-alpha * (ln n_i)^-beta
//	a_i = b_i * exp(-lambda * M_{i-1}^rho)
//	M_i = M_{i-1} + |a_i|,  M_{-1} = 0
//
// The scan is inherently sequential since every step reads the exact
// accumulated magnitude left by the previous one. Everything here is a pure
// function of its inputs; callers may run independent parameter points in
// parallel but never split a single run.
package series

import (
	"errors"
	"fmt"
	"math"
)

// ErrDomain is wrapped by every error returned for inputs outside the
// engine's documented domain.
var ErrDomain = errors.New("domain error")

// ErrNonFinite marks a result that overflowed to ±Inf or NaN. The engine
// itself never returns it; layers that must store or encode results do.
var ErrNonFinite = errors.New("non-finite result")

func domainErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDomain, fmt.Sprintf(format, args...))
}

// Params is the immutable configuration of a single real-valued run.
type Params struct {
	N      int     `json:"n"`
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	Lambda float64 `json:"lambda"`
	Rho    float64 `json:"rho"`
}

// Validate rejects parameters the engine cannot evaluate.
func (p Params) Validate() error {
	if p.N < 1 {
		return domainErr("N must be >= 1, got %d", p.N)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"alpha", p.Alpha},
		{"beta", p.Beta},
		{"lambda", p.Lambda},
		{"rho", p.Rho},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return domainErr("%s must be finite, got %g", f.name, f.v)
		}
	}
	if p.Lambda < 0 {
		return domainErr("lambda must be >= 0, got %g", p.Lambda)
	}
	return nil
}

// ComplexParams adds the imaginary exponents that drive the phase of the
// complex ("breathing") variant.
type ComplexParams struct {
	Params
	AlphaI float64 `json:"alpha_i"`
	BetaI  float64 `json:"beta_i"`
}

// Validate checks the real parameters and the phase exponents.
func (p ComplexParams) Validate() error {
	if err := p.Params.Validate(); err != nil {
		return err
	}
	if math.IsNaN(p.AlphaI) || math.IsInf(p.AlphaI, 0) {
		return domainErr("alpha_i must be finite, got %g", p.AlphaI)
	}
	if math.IsNaN(p.BetaI) || math.IsInf(p.BetaI, 0) {
		return domainErr("beta_i must be finite, got %g", p.BetaI)
	}
	return nil
}
