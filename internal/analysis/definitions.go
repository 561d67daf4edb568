package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/iran-stats-etl/internal/dataset"
)

// Model selects how a series is forecast.
type Model string

const (
	ModelARIMA Model = "arima"
	ModelOLS   Model = "ols"
	ModelNaive Model = "naive"
)

// Transform names the series an ADF test runs on.
type Transform string

const (
	Levels          Transform = "levels"
	FirstDifference Transform = "first_difference"
	GrowthRate      Transform = "growth_rate"
)

// Definition describes one topic analysis.
type Definition struct {
	Name  string
	Topic string // used in chart titles

	// Dataset is relative to the data directory. A .json dataset stores its
	// rows under JSONKey.
	Dataset     string
	JSONKey     string
	YearColumn  string
	ValueColumn string

	// ValueKey names the value arrays in the results file, e.g. "students"
	// yields historical_data.students and forecast.forecasted_students.
	ValueKey   string
	DataSource string

	Model Model
	D     int // differencing order for ModelARIMA
	Steps int

	Stationarity []Transform
	Growth       bool
	Correlogram  bool

	// FromYear keeps observations from this Gregorian year on, falling back
	// to the whole series when none qualify. Zero keeps everything.
	FromYear int

	// Section is the document key the results are embedded under by merge.
	Section string
}

// ResultsFile is the base name of the results JSON.
func (d Definition) ResultsFile() string {
	return strings.ReplaceAll(d.Name, "-", "_") + "_analysis_results.json"
}

// AnalysisType is the metadata label of the model.
func (d Definition) AnalysisType() string {
	switch d.Model {
	case ModelARIMA:
		return "ARIMA_forecast"
	case ModelOLS:
		return "OLS_forecast"
	default:
		return "naive_forecast"
	}
}

// Load reads the definition's series from dataDir.
func (d Definition) Load(dataDir string) (dataset.Series, error) {
	path := filepath.Join(dataDir, filepath.FromSlash(d.Dataset))
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return dataset.LoadJSON(path, d.JSONKey, d.YearColumn, d.ValueColumn)
	}
	return dataset.LoadCSV(path, d.YearColumn, d.ValueColumn)
}

// Definitions returns the built-in analyses in run order.
func Definitions() []Definition {
	return []Definition{
		{
			Name:         "accidents",
			Topic:        "Traffic Accident Deaths",
			Dataset:      "Accidents/data_all.csv",
			YearColumn:   "year",
			ValueColumn:  "death",
			ValueKey:     "deaths",
			DataSource:   "Legal Medicine Organization",
			Model:        ModelARIMA,
			D:            2,
			Steps:        3,
			Stationarity: []Transform{Levels, FirstDifference},
			Correlogram:  true,
		},
		{
			Name:         "air",
			Topic:        "Air Pollution Deaths",
			Dataset:      "Air/data.csv",
			YearColumn:   "year",
			ValueColumn:  "Deaths",
			ValueKey:     "deaths",
			DataSource:   "Ministry of Health",
			Model:        ModelOLS,
			Steps:        1,
			Stationarity: []Transform{Levels},
			Growth:       true,
		},
		{
			Name:         "death-penalty",
			Topic:        "Death Penalties",
			Dataset:      "Death penalty/data.csv",
			YearColumn:   "year",
			ValueColumn:  "Death penalty",
			ValueKey:     "executions",
			DataSource:   "Iran Human Rights",
			Model:        ModelNaive,
			Steps:        1,
			Stationarity: []Transform{GrowthRate, FirstDifference},
			Growth:       true,
		},
		{
			Name:         "education",
			Topic:        "Students",
			Dataset:      "Education/data.json",
			JSONKey:      "education_data",
			YearColumn:   "persian_year",
			ValueColumn:  "students",
			ValueKey:     "students",
			DataSource:   "factnameh",
			Model:        ModelARIMA,
			D:            1,
			Steps:        3,
			Stationarity: []Transform{Levels},
			Correlogram:  true,
			FromYear:     2019,
			Section:      "education_analysis",
		},
		{
			Name:         "workers",
			Topic:        "Workers Died",
			Dataset:      "Workers/data.csv",
			YearColumn:   "year",
			ValueColumn:  "death",
			ValueKey:     "deaths",
			DataSource:   "Legal Medicine Organization",
			Model:        ModelNaive,
			Steps:        1,
			Stationarity: []Transform{FirstDifference},
		},
	}
}

// Select returns the named definitions in the order given, or all of them
// when names is empty.
func Select(defs []Definition, names []string) ([]Definition, error) {
	if len(names) == 0 {
		return defs, nil
	}
	out := make([]Definition, 0, len(names))
	for _, name := range names {
		found := false
		for _, d := range defs {
			if d.Name == name {
				out = append(out, d)
				found = true
				break
			}
		}
		if !found {
			known := make([]string, len(defs))
			for i, d := range defs {
				known[i] = d.Name
			}
			return nil, fmt.Errorf("unknown analysis %q (known: %s)", name, strings.Join(known, ", "))
		}
	}
	return out, nil
}
