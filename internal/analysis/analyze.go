package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/dataset"
	"gonum.org/v1/gonum/stat"
)

// maxCorrelogramLag bounds the lags shown in ACF and PACF panels.
const maxCorrelogramLag = 4

// StationarityTest is the ADF outcome for one transform of the series.
// Err is set when the test could not run, e.g. on a very short series.
type StationarityTest struct {
	Transform Transform
	Values    []float64
	Result    ADFResult
	Err       error
}

// Correlogram holds the ACF and PACF of one transform of the series.
type Correlogram struct {
	Transform Transform
	N         int
	ACF       []float64
	PACF      []float64
}

// Forecast is the model output past the last observation.
type Forecast struct {
	GregorianYears []int
	LocalYears     []int
	Values         []float64
	Lower, Upper   []float64 // 95% interval, ARIMA only

	ARIMA *ARIMA
	Trend *Trend
}

// Mean is the average forecast value.
func (f Forecast) Mean() float64 { return stat.Mean(f.Values, nil) }

// Result is everything one analysis produces.
type Result struct {
	Definition   Definition
	Series       dataset.Series
	Filtered     bool // FromYear applied without falling back
	Stationarity []StationarityTest
	Correlograms []Correlogram
	Growth       []float64
	Forecast     Forecast
	GeneratedAt  time.Time
}

// HistoricalMean is the average of the analyzed observations.
func (r *Result) HistoricalMean() float64 { return stat.Mean(r.Series.Values(), nil) }

// AboveAverage reports whether the forecast mean exceeds the historical mean.
func (r *Result) AboveAverage() bool { return r.Forecast.Mean() > r.HistoricalMean() }

// Analyze runs the definition's tests and model over s. Only a failed
// forecast is an error; stationarity tests that cannot run are recorded.
func Analyze(def Definition, s dataset.Series, now time.Time) (*Result, error) {
	res := &Result{Definition: def, Series: s, GeneratedAt: now}
	if def.FromYear != 0 {
		res.Series, res.Filtered = s.From(def.FromYear)
	}
	if res.Series.Len() == 0 {
		return nil, fmt.Errorf("%s: no observations: %w", def.Name, ErrInsufficientData)
	}

	values := res.Series.Values()
	if def.Growth {
		res.Growth = GrowthRates(values)
	}
	for _, tr := range def.Stationarity {
		x := transform(values, tr)
		test := StationarityTest{Transform: tr, Values: x}
		test.Result, test.Err = ADF(x)
		res.Stationarity = append(res.Stationarity, test)
	}
	if def.Correlogram {
		res.Correlograms = append(res.Correlograms, correlogram(values, Levels))
		if def.Model == ModelARIMA && def.D > 0 && len(values) > 2 {
			res.Correlograms = append(res.Correlograms, correlogram(diff(values, 1), FirstDifference))
		}
	}

	fc, err := forecast(def, res.Series)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.Name, err)
	}
	res.Forecast = fc
	return res, nil
}

// transform derives the series a stationarity test runs on. The leading
// growth rate has no predecessor and is left out.
func transform(values []float64, tr Transform) []float64 {
	switch tr {
	case FirstDifference:
		return diff(values, 1)
	case GrowthRate:
		g := GrowthRates(values)
		if len(g) == 0 {
			return g
		}
		return g[1:]
	default:
		return values
	}
}

func correlogram(x []float64, tr Transform) Correlogram {
	n := len(x)
	pacfLags := min(maxCorrelogramLag, max(1, n/2-1))
	return Correlogram{
		Transform: tr,
		N:         n,
		ACF:       ACF(x, min(maxCorrelogramLag, n-1)),
		PACF:      PACF(x, pacfLags),
	}
}

func forecast(def Definition, s dataset.Series) (Forecast, error) {
	steps := max(def.Steps, 1)
	last := s.Last()
	fc := Forecast{
		GregorianYears: make([]int, steps),
		LocalYears:     make([]int, steps),
	}
	for h := range steps {
		fc.GregorianYears[h] = last.GregorianYear() + h + 1
		fc.LocalYears[h] = last.LocalYear + h + 1
	}

	switch def.Model {
	case ModelARIMA:
		m, err := FitARIMA(s.Values(), def.D)
		if err != nil {
			return Forecast{}, err
		}
		p := m.Forecast(steps)
		fc.Values, fc.Lower, fc.Upper = p.Mean, p.Lower, p.Upper
		fc.ARIMA = m
	case ModelOLS:
		years := make([]float64, s.Len())
		for i, y := range s.GregorianYears() {
			years[i] = float64(y)
		}
		t, err := FitTrend(years, s.Values())
		if err != nil {
			return Forecast{}, err
		}
		fc.Values = make([]float64, steps)
		for h, y := range fc.GregorianYears {
			fc.Values[h] = math.RoundToEven(t.At(float64(y)))
		}
		fc.Trend = &t
	case ModelNaive:
		fc.Values = make([]float64, steps)
		for h := range fc.Values {
			fc.Values[h] = last.Value
		}
	default:
		return Forecast{}, errors.New("unknown model " + string(def.Model))
	}
	return fc, nil
}
