package series

import "math"

// tinyLog stands in for ln(n) == 0: the smallest positive normal float64.
const tinyLog = 0x1p-1022

// FirstIndex is the first index of every sequence; ln(2) > 0.
const FirstIndex = 2

// Index returns the index sequence 2, 3, ..., n+1.
func Index(n int) []float64 {
	idx := make([]float64, n)
	for i := range idx {
		idx[i] = float64(i + FirstIndex)
	}
	return idx
}

// Baseline returns n^-alpha * (ln n)^-beta. A zero logarithm is replaced by
// tinyLog so the result stays finite (very large) instead of dividing by zero.
func Baseline(n, alpha, beta float64) float64 {
	ln := math.Log(n)
	if ln == 0 {
		ln = tinyLog
	}
	return 1.0 / (math.Pow(n, alpha) * math.Pow(ln, beta))
}

// Baselines evaluates Baseline over an index slice. Every index must be >= 2.
func Baselines(index []float64, alpha, beta float64) ([]float64, error) {
	out := make([]float64, len(index))
	for i, n := range index {
		if !(n >= FirstIndex) {
			return nil, domainErr("index[%d] = %g, indices must be >= %d", i, n, FirstIndex)
		}
		out[i] = Baseline(n, alpha, beta)
	}
	return out, nil
}
