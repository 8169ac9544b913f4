package series

import "math"

// DefaultStep is the RK4 step size used when callers do not pick one.
const DefaultStep = 2.0

// Integrate solves the continuum limit dM/dn = b(n) * f(M) with classical
// fourth-order Runge-Kutta, starting at n = 2, M = 0, for p.N steps of size h.
// It shares no state with Run and is meant as an independent cross-check.
func Integrate(p Params, h float64) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
		return 0, domainErr("step size must be finite and > 0, got %g", h)
	}

	rate := func(n, m float64) float64 {
		return odeBaseline(n, p.Alpha, p.Beta) * kernel(m, p.Lambda, p.Rho)
	}

	m, n := 0.0, float64(FirstIndex)
	for range p.N {
		k1 := rate(n, m)
		k2 := rate(n+0.5*h, m+0.5*h*k1)
		k3 := rate(n+0.5*h, m+0.5*h*k2)
		k4 := rate(n+h, m+h*k3)
		m += (h / 6.0) * (k1 + 2*k2 + 2*k3 + k4)
		n += h
	}
	return m, nil
}

// odeBaseline clamps the logarithm argument at 2 instead of substituting.
func odeBaseline(n, alpha, beta float64) float64 {
	return 1.0 / (math.Pow(n, alpha) * math.Pow(math.Log(math.Max(n, FirstIndex)), beta))
}

// CrossCheck pairs the discrete running sum with the ODE estimate for the
// same parameters.
type CrossCheck struct {
	Params       Params  `json:"params"`
	Step         float64 `json:"step"`
	Discrete     float64 `json:"discrete"`
	ODE          float64 `json:"ode"`
	RelativeDiff float64 `json:"relative_diff"`
}

// Compare runs both methods. The relative difference is taken against the
// discrete sum, or is absolute when that sum is zero.
func Compare(p Params, h float64) (*CrossCheck, error) {
	ode, err := Integrate(p, h)
	if err != nil {
		return nil, err
	}
	s, err := Run(p)
	if err != nil {
		return nil, err
	}

	discrete := s.FinalSum()
	diff := math.Abs(discrete - ode)
	if discrete != 0 {
		diff /= math.Abs(discrete)
	}
	return &CrossCheck{
		Params:       p,
		Step:         h,
		Discrete:     discrete,
		ODE:          ode,
		RelativeDiff: diff,
	}, nil
}
