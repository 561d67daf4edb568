package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData is returned when a series is too short for a test or model.
var ErrInsufficientData = errors.New("insufficient data")

// Critical value levels reported by the ADF test.
var adfLevels = []string{"1%", "5%", "10%"}

// MacKinnon (2010) response surface for the constant-only regression with
// one integrated variable. Coefficients are in ascending powers.
var (
	adfTauMax  = 2.74
	adfTauMin  = -18.83
	adfTauStar = -1.61
	adfSmallP  = []float64{2.1659, 1.4412, 0.038269}
	adfLargeP  = []float64{1.7339, 0.93202, -0.12745, -0.010368}
	adfCrit    = [][]float64{
		{-3.43035, -6.5393, -16.786, -79.433},
		{-2.86154, -2.8903, -4.234, -40.040},
		{-2.56677, -1.5384, -2.809, 0},
	}
)

// ADFResult is the outcome of an augmented Dickey-Fuller unit root test.
type ADFResult struct {
	Statistic      float64
	PValue         float64
	UsedLag        int
	NObs           int
	CriticalValues map[string]float64
}

// Stationary reports whether the unit root is rejected at 5%.
func (r ADFResult) Stationary() bool { return r.PValue < 0.05 }

// ADF runs the augmented Dickey-Fuller test with a constant, choosing the
// number of lagged differences by AIC over a common sample.
func ADF(x []float64) (ADFResult, error) {
	n := len(x)
	maxLag := min(int(math.Ceil(12*math.Pow(float64(n)/100, 0.25))), n/2-2)
	if maxLag < 0 {
		return ADFResult{}, fmt.Errorf("adf needs at least 4 observations, got %d: %w", n, ErrInsufficientData)
	}
	dx := diff(x, 1)

	bestLag, bestAIC := 0, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		y, X := adfDesign(x, dx, maxLag, lag)
		fit, err := ols(X, y)
		if err != nil {
			continue
		}
		if fit.aic < bestAIC {
			bestLag, bestAIC = lag, fit.aic
		}
	}
	if math.IsInf(bestAIC, 1) {
		return ADFResult{}, fmt.Errorf("adf regression is singular: %w", ErrInsufficientData)
	}

	y, X := adfDesign(x, dx, bestLag, bestLag)
	fit, err := ols(X, y)
	if err != nil {
		return ADFResult{}, err
	}
	if fit.se[1] == 0 || math.IsNaN(fit.se[1]) {
		return ADFResult{}, fmt.Errorf("adf regression fits exactly: %w", ErrInsufficientData)
	}
	stat := fit.beta[1] / fit.se[1]
	nobs := len(y)

	return ADFResult{
		Statistic:      stat,
		PValue:         mackinnonP(stat),
		UsedLag:        bestLag,
		NObs:           nobs,
		CriticalValues: criticalValues(nobs),
	}, nil
}

func criticalValues(nobs int) map[string]float64 {
	crit := make(map[string]float64, len(adfLevels))
	for i, level := range adfLevels {
		crit[level] = polyval(adfCrit[i], 1/float64(nobs))
	}
	return crit
}

// adfDesign regresses dx[t] on a constant, x[t] and lag lagged differences,
// starting at t = trim so that every candidate lag shares one sample.
func adfDesign(x, dx []float64, trim, lag int) ([]float64, *mat.Dense) {
	nobs := len(dx) - trim
	y := make([]float64, nobs)
	X := mat.NewDense(nobs, lag+2, nil)
	for r := range nobs {
		t := trim + r
		y[r] = dx[t]
		X.Set(r, 0, 1)
		X.Set(r, 1, x[t])
		for j := 1; j <= lag; j++ {
			X.Set(r, j+1, dx[t-j])
		}
	}
	return y, X
}

func mackinnonP(stat float64) float64 {
	switch {
	case stat > adfTauMax:
		return 1
	case stat < adfTauMin:
		return 0
	}
	coef := adfLargeP
	if stat <= adfTauStar {
		coef = adfSmallP
	}
	return distuv.UnitNormal.CDF(polyval(coef, stat))
}

// polyval evaluates coefficients given in ascending powers.
func polyval(coef []float64, x float64) float64 {
	v := 0.0
	for i := len(coef) - 1; i >= 0; i-- {
		v = v*x + coef[i]
	}
	return v
}

type olsFit struct {
	beta []float64
	se   []float64
	ssr  float64
	aic  float64
}

// ols fits y = X beta by least squares and reports standard errors and the
// Gaussian AIC.
func ols(X *mat.Dense, y []float64) (olsFit, error) {
	n, k := X.Dims()
	if n <= k {
		return olsFit{}, fmt.Errorf("%d observations for %d regressors: %w", n, k, ErrInsufficientData)
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return olsFit{}, fmt.Errorf("singular design: %w", ErrInsufficientData)
	}

	yv := mat.NewVecDense(n, y)
	var xty, b mat.VecDense
	xty.MulVec(X.T(), yv)
	b.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(X, &b)
	ssr := 0.0
	for i := range n {
		e := y[i] - fitted.AtVec(i)
		ssr += e * e
	}

	sigma2 := ssr / float64(n-k)
	fit := olsFit{beta: make([]float64, k), se: make([]float64, k), ssr: ssr}
	for i := range k {
		fit.beta[i] = b.AtVec(i)
		fit.se[i] = math.Sqrt(sigma2 * inv.At(i, i))
	}
	half := float64(n) / 2
	llf := -half*math.Log(2*math.Pi) - half*math.Log(ssr/float64(n)) - half
	fit.aic = -2*llf + 2*float64(k)
	return fit, nil
}

// diff applies d rounds of first differencing.
func diff(x []float64, d int) []float64 {
	out := x
	for range d {
		if len(out) < 2 {
			return nil
		}
		next := make([]float64, len(out)-1)
		for i := range next {
			next[i] = out[i+1] - out[i]
		}
		out = next
	}
	return out
}
