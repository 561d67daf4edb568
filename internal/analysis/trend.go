package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Trend is an ordinary least squares line fitted on the year.
type Trend struct {
	Intercept float64
	Slope     float64
	RSquared  float64
}

// FitTrend regresses y on x with an intercept.
func FitTrend(x, y []float64) (Trend, error) {
	if len(x) != len(y) {
		return Trend{}, fmt.Errorf("trend: %d x values for %d y values", len(x), len(y))
	}
	if len(x) < 2 || floats.Min(x) == floats.Max(x) {
		return Trend{}, fmt.Errorf("trend needs two distinct x values: %w", ErrInsufficientData)
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return Trend{
		Intercept: alpha,
		Slope:     beta,
		RSquared:  stat.RSquared(x, y, nil, alpha, beta),
	}, nil
}

// At evaluates the line.
func (t Trend) At(x float64) float64 { return t.Intercept + t.Slope*x }

// GrowthRates is the period-over-period percent change rounded to two
// decimals. The first period and any change from zero are reported as 0.
func GrowthRates(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		if x[i-1] == 0 {
			continue
		}
		r := (x[i] - x[i-1]) / x[i-1] * 100
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out[i] = math.RoundToEven(r*100) / 100
	}
	return out
}
