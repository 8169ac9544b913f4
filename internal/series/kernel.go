package series

import "math"

// MemoryKernel returns exp(-lambda * m^rho) for an accumulated magnitude m.
//
// lambda == 0 and m == 0 both return exactly 1, whatever rho is. Negative or
// NaN magnitudes and negative lambda are rejected.
func MemoryKernel(m, lambda, rho float64) (float64, error) {
	if math.IsNaN(m) || m < 0 {
		return 0, domainErr("memory magnitude must be >= 0, got %g", m)
	}
	if math.IsNaN(lambda) || lambda < 0 {
		return 0, domainErr("lambda must be >= 0, got %g", lambda)
	}
	if math.IsNaN(rho) {
		return 0, domainErr("rho must not be NaN")
	}
	return kernel(m, lambda, rho), nil
}

// kernel is the unchecked form used inside the scan, where m >= 0 holds by
// construction.
func kernel(m, lambda, rho float64) float64 {
	if lambda == 0 || m == 0 {
		return 1
	}
	return math.Exp(-lambda * math.Pow(m, rho))
}
