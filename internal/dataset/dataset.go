// Package dataset loads the per-topic yearly series used by the analyses.
package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tidwall/gjson"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Point is one observation of a yearly series.
type Point struct {
	LocalYear int
	Date      time.Time // January 1 of the Gregorian year
	Value     float64
}

// GregorianYear is the calendar year of the observation.
func (p Point) GregorianYear() int { return p.Date.Year() }

// Series is a date-ordered yearly series. Rows whose value is missing are
// dropped on load and counted in Dropped.
type Series struct {
	Name    string
	Points  []Point
	Dropped int
}

// Len is the number of observations.
func (s Series) Len() int { return len(s.Points) }

// Values returns the observations in date order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// LocalYears returns the Persian years in date order.
func (s Series) LocalYears() []int {
	out := make([]int, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.LocalYear
	}
	return out
}

// GregorianYears returns the Gregorian years in date order.
func (s Series) GregorianYears() []int {
	out := make([]int, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.GregorianYear()
	}
	return out
}

// Last is the most recent observation. It panics on an empty series.
func (s Series) Last() Point { return s.Points[len(s.Points)-1] }

// From keeps observations from the given Gregorian year on. When none
// qualify the series is returned unchanged and ok is false.
func (s Series) From(gregorian int) (out Series, ok bool) {
	i := sort.Search(len(s.Points), func(i int) bool { return s.Points[i].GregorianYear() >= gregorian })
	if i == len(s.Points) {
		return s, false
	}
	out = s
	out.Points = slices.Clone(s.Points[i:])
	return out, true
}

// LoadCSV reads a yearly CSV with a Persian year column and a value column.
func LoadCSV(path, yearColumn, valueColumn string) (Series, error) {
	data, err := readFile(path)
	if err != nil {
		return Series{}, err
	}
	df := dataframe.ReadCSV(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return Series{}, fmt.Errorf("parse dataset %s: %v: %w", path, df.Err, domain.ErrMalformedRow)
	}
	for _, col := range []string{yearColumn, valueColumn} {
		if !slices.Contains(df.Names(), col) {
			return Series{}, fmt.Errorf("dataset %s has no %q column: %w", path, col, domain.ErrSchemaMismatch)
		}
	}
	return build(path, valueColumn, df.Col(yearColumn).Records(), df.Col(valueColumn).Records())
}

// LoadJSON reads an array of objects stored under key, e.g.
// {"education_data": [{"persian_year": 1398, "students": 1200}]}.
func LoadJSON(path, key, yearField, valueField string) (Series, error) {
	data, err := readFile(path)
	if err != nil {
		return Series{}, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !gjson.ValidBytes(data) {
		return Series{}, fmt.Errorf("dataset %s is not valid JSON: %w", path, domain.ErrMalformedRow)
	}
	rows := gjson.GetBytes(data, gjson.Escape(key))
	if !rows.IsArray() {
		return Series{}, fmt.Errorf("dataset %s has no %q array: %w", path, key, domain.ErrSchemaMismatch)
	}

	var years, values []string
	for _, row := range rows.Array() {
		years = append(years, scalar(row.Get(gjson.Escape(yearField))))
		values = append(values, scalar(row.Get(gjson.Escape(valueField))))
	}
	return build(path, valueField, years, values)
}

func scalar(r gjson.Result) string {
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	if r.Type == gjson.String {
		return r.Str
	}
	return r.Raw
}

func build(path, name string, years, values []string) (Series, error) {
	s := Series{Name: name, Points: make([]Point, 0, len(years))}
	for i := range years {
		f, ok := domain.ParseNumber(years[i])
		if !ok || f != float64(int(f)) {
			return Series{}, fmt.Errorf("dataset %s row %d: year %q: %w", path, i+1, years[i], domain.ErrMalformedRow)
		}
		local := int(f)
		v, ok := domain.ParseNumber(values[i])
		if !ok {
			s.Dropped++
			continue
		}
		s.Points = append(s.Points, Point{LocalYear: local, Date: domain.NormalizeYear(local), Value: v})
	}
	slices.SortStableFunc(s.Points, func(a, b Point) int { return a.Date.Compare(b.Date) })
	return s, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load dataset %s: %w", path, domain.ErrFileNotFound)
		}
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	return data, nil
}
