// Package sweep evaluates the engine over parameter grids and records the
// results.
package sweep

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/lazypower/memseries/internal/analysis"
	"github.com/lazypower/memseries/internal/series"
)

// Linspace returns steps evenly spaced values over [lo, hi]. A single step
// yields just lo.
func Linspace(lo, hi float64, steps int) ([]float64, error) {
	if steps < 1 {
		return nil, fmt.Errorf("linspace: steps must be >= 1, got %d", steps)
	}
	if steps == 1 {
		return []float64{lo}, nil
	}
	return floats.Span(make([]float64, steps), lo, hi), nil
}

// CriticalGrid scans α and β symmetrically around a center, classifying each
// point. Grid order is α outer, β inner.
type CriticalGrid struct {
	AlphaCenter float64 `json:"alpha_center"`
	BetaCenter  float64 `json:"beta_center"`
	Delta       float64 `json:"delta" validate:"gte=0"`
	Steps       int     `json:"steps" validate:"gte=1,lte=101"`
	N           int     `json:"n" validate:"gte=1"`
	Lambda      float64 `json:"lambda"`
	Rho         float64 `json:"rho"`
	Window      int     `json:"window" validate:"gte=1"`
}

func DefaultCriticalGrid() CriticalGrid {
	return CriticalGrid{
		AlphaCenter: 1.0,
		BetaCenter:  1.0,
		Delta:       0.02,
		Steps:       9,
		N:           800_000,
		Lambda:      1e-4,
		Rho:         1.0,
		Window:      series.DefaultWindow,
	}
}

// Points expands the grid into engine parameters.
func (g CriticalGrid) Points() ([]series.Params, error) {
	if g.Delta < 0 {
		return nil, fmt.Errorf("critical grid: delta must be >= 0, got %g", g.Delta)
	}
	alphas, err := Linspace(g.AlphaCenter-g.Delta, g.AlphaCenter+g.Delta, g.Steps)
	if err != nil {
		return nil, fmt.Errorf("critical grid: %w", err)
	}
	betas, _ := Linspace(g.BetaCenter-g.Delta, g.BetaCenter+g.Delta, g.Steps)

	pts := make([]series.Params, 0, len(alphas)*len(betas))
	for _, a := range alphas {
		for _, b := range betas {
			p := series.Params{N: g.N, Alpha: a, Beta: b, Lambda: g.Lambda, Rho: g.Rho}
			if err := p.Validate(); err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
	}
	return pts, nil
}

// BreathingGrid scans the imaginary exponents of the complex variant at fixed
// real exponents.
type BreathingGrid struct {
	AlphaR    float64 `json:"alpha_r"`
	BetaR     float64 `json:"beta_r"`
	AlphaIMin float64 `json:"alpha_i_min"`
	AlphaIMax float64 `json:"alpha_i_max"`
	BetaIMin  float64 `json:"beta_i_min"`
	BetaIMax  float64 `json:"beta_i_max"`
	Steps     int     `json:"steps" validate:"gte=1,lte=101"`
	N         int     `json:"n" validate:"gte=1"`
	Lambda    float64 `json:"lambda"`
	Rho       float64 `json:"rho"`
	ScaleFrac float64 `json:"scale_frac" validate:"gt=0"`
}

func DefaultBreathingGrid() BreathingGrid {
	return BreathingGrid{
		AlphaR:    1.0,
		BetaR:     1.0,
		AlphaIMin: 2.4,
		AlphaIMax: 3.2,
		BetaIMin:  2.4,
		BetaIMax:  3.2,
		Steps:     7,
		N:         60_000,
		Lambda:    1e-4,
		Rho:       1.0,
		ScaleFrac: analysis.DefaultScaleFrac,
	}
}

// Points expands the grid into complex engine parameters, α_i outer.
func (g BreathingGrid) Points() ([]series.ComplexParams, error) {
	if !(g.ScaleFrac > 0) {
		return nil, fmt.Errorf("breathing grid: scale_frac must be > 0, got %g", g.ScaleFrac)
	}
	ais, err := Linspace(g.AlphaIMin, g.AlphaIMax, g.Steps)
	if err != nil {
		return nil, fmt.Errorf("breathing grid: %w", err)
	}
	bis, _ := Linspace(g.BetaIMin, g.BetaIMax, g.Steps)

	pts := make([]series.ComplexParams, 0, len(ais)*len(bis))
	for _, ai := range ais {
		for _, bi := range bis {
			p := series.ComplexParams{
				Params: series.Params{N: g.N, Alpha: g.AlphaR, Beta: g.BetaR, Lambda: g.Lambda, Rho: g.Rho},
				AlphaI: ai,
				BetaI:  bi,
			}
			if err := p.Validate(); err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
	}
	return pts, nil
}
