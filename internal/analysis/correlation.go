package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ACF is the sample autocorrelation for lags 0..nlags.
func ACF(x []float64, nlags int) []float64 {
	n := len(x)
	nlags = min(nlags, n-1)
	if nlags < 0 {
		return nil
	}
	mean := stat.Mean(x, nil)
	c0 := 0.0
	for _, v := range x {
		c0 += (v - mean) * (v - mean)
	}
	out := make([]float64, nlags+1)
	for k := range out {
		if c0 == 0 {
			out[k] = math.NaN()
			continue
		}
		ck := 0.0
		for t := k; t < n; t++ {
			ck += (x[t] - mean) * (x[t-k] - mean)
		}
		out[k] = ck / c0
	}
	return out
}

// PACF is the partial autocorrelation for lags 0..nlags from the
// Durbin-Levinson recursion on the sample autocorrelations.
func PACF(x []float64, nlags int) []float64 {
	r := ACF(x, nlags)
	if len(r) == 0 {
		return nil
	}
	out := make([]float64, len(r))
	out[0] = 1
	prev := []float64{}
	for k := 1; k < len(r); k++ {
		num, den := r[k], 1.0
		for j := 1; j < k; j++ {
			num -= prev[j-1] * r[k-j]
			den -= prev[j-1] * r[j]
		}
		if den == 0 || math.IsNaN(den) {
			for ; k < len(r); k++ {
				out[k] = math.NaN()
			}
			break
		}
		phi := num / den
		next := make([]float64, k)
		for j := 1; j < k; j++ {
			next[j-1] = prev[j-1] - phi*prev[k-j-1]
		}
		next[k-1] = phi
		prev = next
		out[k] = phi
	}
	return out
}
