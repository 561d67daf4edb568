package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	s, err := LoadCSV("testdata/deaths.csv", "year", "death")
	require.NoError(t, err)

	assert.Equal(t, "death", s.Name)
	assert.Equal(t, 1, s.Dropped, "blank value for 1402 is dropped")
	assert.Equal(t, []int{1398, 1399, 1400, 1401, 1403}, s.LocalYears(), "rows are sorted by date")
	assert.Equal(t, []int{2019, 2020, 2021, 2022, 2024}, s.GregorianYears())
	assert.Equal(t, []float64{17183, 16000, 17051, 19700, 20045}, s.Values())
	assert.Equal(t, time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), s.Points[0].Date)
	assert.Equal(t, 1403, s.Last().LocalYear)
}

func TestLoadCSV_BOMAndSeparators(t *testing.T) {
	s, err := LoadCSV("testdata/air.csv", "year", "Deaths")
	require.NoError(t, err)

	assert.Equal(t, []float64{30000, 31000, 32500}, s.Values())
	assert.Equal(t, 1, s.Dropped)
}

func TestLoadCSV_Errors(t *testing.T) {
	_, err := LoadCSV("testdata/missing.csv", "year", "death")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	_, err = LoadCSV("testdata/deaths.csv", "year", "Deaths")
	assert.True(t, errors.Is(err, domain.ErrSchemaMismatch))

	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("year,death\n13x8,5\n"), 0o600))
	_, err = LoadCSV(path, "year", "death")
	assert.True(t, errors.Is(err, domain.ErrMalformedRow))
}

func TestLoadJSON(t *testing.T) {
	s, err := LoadJSON("testdata/education.json", "education_data", "persian_year", "students")
	require.NoError(t, err)

	assert.Equal(t, []int{1396, 1397, 1398, 1400, 1401}, s.LocalYears())
	assert.Equal(t, []float64{1180000, 1175000, 1160000, 1120000, 1105000}, s.Values())
	assert.Equal(t, 1, s.Dropped)
}

func TestLoadJSON_Errors(t *testing.T) {
	dir := t.TempDir()

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"education_data": [`), 0o600))
	_, err := LoadJSON(invalid, "education_data", "persian_year", "students")
	assert.True(t, errors.Is(err, domain.ErrMalformedRow))

	noKey := filepath.Join(dir, "nokey.json")
	require.NoError(t, os.WriteFile(noKey, []byte(`{"data": []}`), 0o600))
	_, err = LoadJSON(noKey, "education_data", "persian_year", "students")
	assert.True(t, errors.Is(err, domain.ErrSchemaMismatch))
}

func TestSeries_From(t *testing.T) {
	s, err := LoadJSON("testdata/education.json", "education_data", "persian_year", "students")
	require.NoError(t, err)

	recent, ok := s.From(2019)
	assert.True(t, ok)
	assert.Equal(t, []int{2019, 2021, 2022}, recent.GregorianYears())
	assert.Len(t, s.Points, 5, "original is not modified")

	all, ok := s.From(2030)
	assert.False(t, ok)
	assert.Equal(t, s.Len(), all.Len(), "falls back to the whole series")
}
