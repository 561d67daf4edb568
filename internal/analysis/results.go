package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/document"
	"github.com/tidwall/sjson"
)

type stationarityEntry struct {
	Series         string             `json:"series"`
	ADFStatistic   *float64           `json:"adf_statistic,omitempty"`
	PValue         *float64           `json:"p_value,omitempty"`
	UsedLag        *int               `json:"used_lag,omitempty"`
	NObs           *int               `json:"nobs,omitempty"`
	CriticalValues map[string]float64 `json:"critical_values,omitempty"`
	Stationary     *bool              `json:"stationary,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// EncodeResults renders the results file. Keys appear in a fixed order and
// non-finite numbers are written as null.
func EncodeResults(r *Result) ([]byte, error) {
	def := r.Definition
	key := def.ValueKey
	out := []byte("{}")
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		out, err = sjson.SetBytes(out, path, v)
	}

	set("metadata.analysis_date", r.GeneratedAt.UTC().Format(time.RFC3339))
	set("metadata.analysis", def.Name)
	set("metadata.data_source", def.DataSource)
	set("metadata.analysis_type", def.AnalysisType())
	if r.Forecast.ARIMA != nil {
		set("metadata.model_order", r.Forecast.ARIMA.Order())
	}

	values := r.Series.Values()
	set("historical_data.years", r.Series.LocalYears())
	set("historical_data.gregorian_years", r.Series.GregorianYears())
	set("historical_data."+key, finite(values))
	set("historical_data.mean_"+key, number(r.HistoricalMean()))
	set("historical_data.data_points", r.Series.Len())
	set("historical_data.dropped_points", r.Series.Dropped)

	entries := make([]stationarityEntry, 0, len(r.Stationarity))
	for _, t := range r.Stationarity {
		entries = append(entries, newStationarityEntry(t))
	}
	set("stationarity", entries)

	fc := r.Forecast
	set("forecast.forecast_years", fc.GregorianYears)
	set("forecast.forecast_persian_years", fc.LocalYears)
	set("forecast.forecasted_"+key, finite(fc.Values))
	set("forecast.forecast_mean", number(fc.Mean()))
	if fc.ARIMA != nil {
		set("forecast.confidence_intervals.lower", finite(fc.Lower))
		set("forecast.confidence_intervals.upper", finite(fc.Upper))
		set("forecast.phi", number(fc.ARIMA.Phi))
		set("forecast.sigma2", number(fc.ARIMA.Sigma2))
	}
	if fc.Trend != nil {
		set("forecast.regression.intercept", number(fc.Trend.Intercept))
		set("forecast.regression.slope", number(fc.Trend.Slope))
		set("forecast.regression.r_squared", number(fc.Trend.RSquared))
	}

	trend := "below_average"
	if r.AboveAverage() {
		trend = "above_average"
	}
	set("analysis_summary.historical_mean", number(r.HistoricalMean()))
	set("analysis_summary.forecast_mean", number(fc.Mean()))
	set("analysis_summary.expected_change", number(fc.Mean()-r.HistoricalMean()))
	set("analysis_summary.trend", trend)

	if r.Growth != nil {
		set("growth_rates.years", r.Series.LocalYears())
		set("growth_rates.values", finite(r.Growth))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s results: %w", def.Name, err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, out, "", "  "); err != nil {
		return nil, fmt.Errorf("indent %s results: %w", def.Name, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteResults encodes r and atomically replaces path.
func WriteResults(r *Result, path string) error {
	data, err := EncodeResults(r)
	if err != nil {
		return err
	}
	return document.WriteFileAtomic(path, data, 0o644)
}

// ResultsPath is where a definition's results file lives: resultsDir when
// set, otherwise next to the dataset.
func ResultsPath(def Definition, dataDir, resultsDir string) string {
	return filepath.Join(OutputDir(def, dataDir, resultsDir), def.ResultsFile())
}

// OutputDir resolves an output directory that defaults to the dataset's own.
func OutputDir(def Definition, dataDir, dir string) string {
	if dir != "" {
		return dir
	}
	return filepath.Dir(filepath.Join(dataDir, filepath.FromSlash(def.Dataset)))
}

func newStationarityEntry(t StationarityTest) stationarityEntry {
	e := stationarityEntry{Series: string(t.Transform)}
	if t.Err != nil {
		e.Error = t.Err.Error()
		return e
	}
	stationary := t.Result.Stationary()
	e.ADFStatistic = number(t.Result.Statistic)
	e.PValue = number(t.Result.PValue)
	e.UsedLag = &t.Result.UsedLag
	e.NObs = &t.Result.NObs
	e.CriticalValues = t.Result.CriticalValues
	e.Stationary = &stationary
	return e
}

func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finite(xs []float64) []*float64 {
	out := make([]*float64, len(xs))
	for i, x := range xs {
		out[i] = number(x)
	}
	return out
}
