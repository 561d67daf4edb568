package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// missingMarkers are the spellings spreadsheet exports use for an empty cell.
var missingMarkers = map[string]struct{}{
	"":     {},
	"-":    {},
	"NaN":  {},
	"nan":  {},
	"-NaN": {},
	"-nan": {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"<NA>": {},
	"#N/A": {},
	"#NA":  {},
	"NULL": {},
	"null": {},
	"None": {},
}

// digitGrouping removes the thousands separators spreadsheet and
// Persian-locale exports put between digit groups.
var digitGrouping = strings.NewReplacer(",", "", "_", "", " ", "", "\u00a0", "", "\u202f", "")

// MalformedCell records a present cell that could not be read as an integer.
type MalformedCell struct {
	Index int
	Raw   string
}

func (c MalformedCell) String() string {
	return fmt.Sprintf("cell %d: %q", c.Index, c.Raw)
}

// IsMissing reports whether a raw cell holds no value.
func IsMissing(raw string) bool {
	_, ok := missingMarkers[strings.TrimSpace(raw)]
	return ok
}

// CleanSeries converts raw cells into nullable integers. Thousands separators
// are stripped; missing markers become nil. A present value that is not an
// integer also becomes nil and is returned in the malformed list. The output
// always has the same length and order as the input.
func CleanSeries(cells []string) ([]*int, []MalformedCell) {
	out := make([]*int, len(cells))
	var malformed []MalformedCell
	for i, raw := range cells {
		if IsMissing(raw) {
			continue
		}
		v, ok := parseCount(raw)
		if !ok {
			malformed = append(malformed, MalformedCell{Index: i, Raw: raw})
			continue
		}
		out[i] = &v
	}
	return out, malformed
}

// parseCount parses "1,234", "1 234", "1234" or an integral decimal such
// as "1234.0".
func parseCount(raw string) (int, bool) {
	s := digitGrouping.Replace(strings.TrimSpace(raw))
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int(f), true
}

// ParseAverage reads a summary average and rounds it half to even.
// Missing or unparseable cells yield nil.
func ParseAverage(raw string) *int {
	f, ok := ParseNumber(raw)
	if !ok {
		return nil
	}
	v := int(math.RoundToEven(f))
	return &v
}

// ParseForecast reads the forecast figure and truncates it toward zero.
// Missing or unparseable cells yield nil.
func ParseForecast(raw string) *int {
	f, ok := ParseNumber(raw)
	if !ok {
		return nil
	}
	v := int(math.Trunc(f))
	return &v
}

// ParseNumber reads a finite decimal, ignoring thousands separators.
func ParseNumber(raw string) (float64, bool) {
	if IsMissing(raw) {
		return 0, false
	}
	s := digitGrouping.Replace(strings.TrimSpace(raw))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseYears converts year column headers into integers. Unlike data cells,
// a header that is not an integer makes the whole table unusable.
func ParseYears(headers []string) ([]int, error) {
	years := make([]int, len(headers))
	for i, h := range headers {
		v, ok := parseCount(h)
		if !ok {
			return nil, fmt.Errorf("year header %q at column %d: %w", h, i, ErrMalformedRow)
		}
		years[i] = v
	}
	return years, nil
}

// SplitList splits a ";"-separated cell into trimmed entries. Blank entries
// keep their position, because sources and their links are paired by index;
// only the empty entry after a trailing ";" is dropped. A missing cell yields
// an empty, non-nil list.
func SplitList(raw string) []string {
	if IsMissing(raw) {
		return []string{}
	}
	parts := strings.Split(raw, ";")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// CleanCitations converts a citation row into nullable strings, one per year
// column, so that citations stay aligned with the data they annotate.
func CleanCitations(cells []string) []*string {
	out := make([]*string, len(cells))
	for i, raw := range cells {
		if IsMissing(raw) {
			continue
		}
		s := strings.TrimSpace(raw)
		out[i] = &s
	}
	return out
}
