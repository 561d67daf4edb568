package analysis

import (
	"fmt"
	"math"
)

// maxPhi keeps the fitted autoregression stationary.
const maxPhi = 0.99

// z95 is the two-sided 95% normal quantile used for forecast intervals.
const z95 = 1.959963984540054

// ARIMA is an ARIMA(1,d,0) model without a constant, fitted by conditional
// least squares on the d-times differenced series.
type ARIMA struct {
	D      int
	Phi    float64
	Sigma2 float64

	history []float64
	ar      []float64 // expanded (1 - phi B)(1 - B)^d, ar[0] == 1
}

// Order renders the model order the way it is reported, e.g. "(1,1,0)".
func (m *ARIMA) Order() string { return fmt.Sprintf("(1,%d,0)", m.D) }

// FitARIMA estimates phi and the innovation variance from y.
func FitARIMA(y []float64, d int) (*ARIMA, error) {
	if d < 0 {
		return nil, fmt.Errorf("negative differencing order %d", d)
	}
	w := diff(y, d)
	if len(w) < 2 {
		return nil, fmt.Errorf("arima(1,%d,0) needs at least %d observations, got %d: %w", d, d+2, len(y), ErrInsufficientData)
	}

	num, den := 0.0, 0.0
	for t := 1; t < len(w); t++ {
		num += w[t] * w[t-1]
		den += w[t-1] * w[t-1]
	}
	phi := 0.0
	if den > 0 {
		phi = math.Max(-maxPhi, math.Min(maxPhi, num/den))
	}

	ssr := 0.0
	for t := 1; t < len(w); t++ {
		e := w[t] - phi*w[t-1]
		ssr += e * e
	}

	ar := []float64{1, -phi}
	for range d {
		ar = polymul(ar, []float64{1, -1})
	}
	return &ARIMA{
		D:       d,
		Phi:     phi,
		Sigma2:  ssr / float64(len(w)-1),
		history: append([]float64(nil), y...),
		ar:      ar,
	}, nil
}

// Prediction holds point forecasts and their 95% intervals.
type Prediction struct {
	Mean  []float64
	Lower []float64
	Upper []float64
}

// Forecast predicts steps values past the end of the fitted series. The
// interval widths come from the psi weights of the integrated model.
func (m *ARIMA) Forecast(steps int) Prediction {
	ext := append([]float64(nil), m.history...)
	p := Prediction{
		Mean:  make([]float64, steps),
		Lower: make([]float64, steps),
		Upper: make([]float64, steps),
	}
	psi := m.psiWeights(steps)
	variance := 0.0
	for h := range steps {
		v := 0.0
		for k := 1; k < len(m.ar); k++ {
			v -= m.ar[k] * ext[len(ext)-k]
		}
		ext = append(ext, v)

		variance += psi[h] * psi[h]
		half := z95 * math.Sqrt(m.Sigma2*variance)
		p.Mean[h] = v
		p.Lower[h] = v - half
		p.Upper[h] = v + half
	}
	return p
}

func (m *ARIMA) psiWeights(n int) []float64 {
	psi := make([]float64, n)
	if n == 0 {
		return psi
	}
	psi[0] = 1
	for j := 1; j < n; j++ {
		for k := 1; k < len(m.ar) && k <= j; k++ {
			psi[j] -= m.ar[k] * psi[j-k]
		}
	}
	return psi
}

func polymul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}
