package domain

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestCleanSeries(t *testing.T) {
	t.Run("separators and missing markers", func(t *testing.T) {
		got, malformed := CleanSeries([]string{"1,234", "", "N/A", "56"})
		assert.Equal(t, []*int{intp(1234), nil, nil, intp(56)}, got)
		assert.Empty(t, malformed)
	})

	t.Run("unparseable value becomes null and is reported", func(t *testing.T) {
		got, malformed := CleanSeries([]string{"12", "abc", "7.5", " 3 "})
		assert.Equal(t, []*int{intp(12), nil, nil, intp(3)}, got)
		assert.Equal(t, []MalformedCell{{Index: 1, Raw: "abc"}, {Index: 2, Raw: "7.5"}}, malformed)
	})

	t.Run("integral decimals are accepted", func(t *testing.T) {
		got, malformed := CleanSeries([]string{"1234.0", "1,000.00"})
		assert.Equal(t, []*int{intp(1234), intp(1000)}, got)
		assert.Empty(t, malformed)
	})

	t.Run("space and underscore grouping", func(t *testing.T) {
		got, malformed := CleanSeries([]string{"1 234", "1_234", "12,345", "1\u00a0234", "2\u202f500", "1 234.0"})
		assert.Equal(t, []*int{intp(1234), intp(1234), intp(12345), intp(1234), intp(2500), intp(1234)}, got)
		assert.Empty(t, malformed)
	})

	t.Run("pandas missing spellings", func(t *testing.T) {
		cells := []string{"NaN", "nan", "NULL", "None", "#N/A", "<NA>", "  "}
		got, malformed := CleanSeries(cells)
		assert.Len(t, got, len(cells))
		for i, v := range got {
			assert.Nil(t, v, "cell %d", i)
		}
		assert.Empty(t, malformed)
	})

	t.Run("empty input", func(t *testing.T) {
		got, malformed := CleanSeries(nil)
		assert.Empty(t, got)
		assert.Empty(t, malformed)
	})
}

func TestCleanSeries_PreservesLength(t *testing.T) {
	rows := [][]string{
		{"1", "2", "3"},
		{"", "", ""},
		{"x", "1,0", "-5", "NaN", "99"},
	}
	for _, row := range rows {
		got, _ := CleanSeries(row)
		assert.Len(t, got, len(row))
	}
}

func TestCleanSeries_IdempotentOnCleanIntegers(t *testing.T) {
	first, _ := CleanSeries([]string{"10", "-3", "0", "42"})
	raw := make([]string, len(first))
	for i, v := range first {
		require.NotNil(t, v)
		raw[i] = strconv.Itoa(*v)
	}
	second, _ := CleanSeries(raw)
	assert.Equal(t, first, second)
}

func TestParseAverage(t *testing.T) {
	tests := []struct {
		raw  string
		want *int
	}{
		{"60.4", intp(60)},
		{"2.5", intp(2)},
		{"3.5", intp(4)},
		{"1,800", intp(1800)},
		{"1 690.2", intp(1690)},
		{"20\u202f288.7", intp(20289)},
		{"", nil},
		{"abc", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAverage(tt.raw), "raw %q", tt.raw)
	}
}

func TestParseForecast(t *testing.T) {
	assert.Equal(t, intp(21900), ParseForecast("21900.9"))
	assert.Equal(t, intp(-3), ParseForecast("-3.7"))
	assert.Nil(t, ParseForecast("NaN"))
}

func TestParseYears(t *testing.T) {
	years, err := ParseYears([]string{"2018", "2019", "2020.0"})
	require.NoError(t, err)
	assert.Equal(t, []int{2018, 2019, 2020}, years)

	_, err = ParseYears([]string{"2018", "Unnamed: 3"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRow))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"WHO", "Iran Statistics Center"}, SplitList("WHO; Iran Statistics Center"))
	assert.Equal(t, []string{"WHO", "", "Iran Statistics Center"}, SplitList("WHO;;Iran Statistics Center"))
	assert.Equal(t, []string{"a", ""}, SplitList("a;;"))
	assert.Equal(t, []string{"a"}, SplitList("a;"))
	assert.Equal(t, []string{}, SplitList(""))
	assert.Equal(t, []string{}, SplitList("NaN"))
}

func TestCleanCitations(t *testing.T) {
	got := CleanCitations([]string{" https://who.int ", "", "NaN"})
	require.Len(t, got, 3)
	require.NotNil(t, got[0])
	assert.Equal(t, "https://who.int", *got[0])
	assert.Nil(t, got[1])
	assert.Nil(t, got[2])
}
