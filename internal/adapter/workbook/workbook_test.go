package workbook

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func intp(v int) *int { return &v }

func records() []domain.TopicRecord {
	return []domain.TopicRecord{
		{
			Spec:    domain.TopicSpec{Label: "Car Accidents", StatisticsPath: "traffic_accidents_deaths.deaths", DetailsKey: "traffic_accidents_deaths", World: true},
			Summary: domain.Summary{DailyAverage: intp(56), MonthlyAverage: intp(1690), YearlyAverage: intp(20288)},
			Detail: domain.Detail{
				Sources:      []string{"Legal Medicine Organization", "WHO"},
				SourcesLinks: []string{"https://lmo.ir"},
			},
			Local: domain.LocalSeries{Years: []int{2021, 2022}, Values: []*int{intp(17051), intp(19700)}},
			World: &domain.WorldSeries{
				Years:     []int{2020, 2021},
				Countries: []string{"Turkey"},
				Entries: map[string]domain.WorldEntry{
					"Turkey": {ChartData: []*int{intp(4866), nil}},
				},
			},
		},
		{
			Spec:    domain.TopicSpec{Label: "Death Penalty", StatisticsPath: "death_penalty", DetailsKey: "death_penalty"},
			Summary: domain.Summary{YearlyAverage: intp(912)},
			Local:   domain.LocalSeries{Years: []int{2022}, Values: []*int{nil}},
		},
	}
}

func value(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return v
}

func TestBuild_SummarySheet(t *testing.T) {
	f, err := Build(records())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.Equal(t, []string{SummarySheet, "Car Accidents", "Death Penalty"}, f.GetSheetList())
	assert.Equal(t, "Topic", value(t, f, SummarySheet, "A1"))
	assert.Equal(t, "Car Accidents", value(t, f, SummarySheet, "A2"))
	assert.Equal(t, "20288", value(t, f, SummarySheet, "F2"))
	assert.Equal(t, "2022", value(t, f, SummarySheet, "G2"))
	assert.Equal(t, "19700", value(t, f, SummarySheet, "H2"))
	assert.Equal(t, "1", value(t, f, SummarySheet, "I2"))

	assert.Empty(t, value(t, f, SummarySheet, "D3"), "missing daily average stays blank")
	assert.Empty(t, value(t, f, SummarySheet, "H3"), "missing latest value stays blank")
	assert.Equal(t, "0", value(t, f, SummarySheet, "I3"))
}

func TestBuild_TopicSheetAlignsYears(t *testing.T) {
	f, err := Build(records())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	sheet := "Car Accidents"
	assert.Equal(t, "Year", value(t, f, sheet, "A1"))
	assert.Equal(t, "Turkey", value(t, f, sheet, "C1"))

	// Rows are the union of local and world years.
	assert.Equal(t, "2020", value(t, f, sheet, "A2"))
	assert.Empty(t, value(t, f, sheet, "B2"))
	assert.Equal(t, "4866", value(t, f, sheet, "C2"))
	assert.Equal(t, "2021", value(t, f, sheet, "A3"))
	assert.Equal(t, "17051", value(t, f, sheet, "B3"))
	assert.Empty(t, value(t, f, sheet, "C3"))
	assert.Equal(t, "2022", value(t, f, sheet, "A4"))

	assert.Equal(t, "Source", value(t, f, sheet, "A6"))
	assert.Equal(t, "WHO", value(t, f, sheet, "A8"))
	assert.Empty(t, value(t, f, sheet, "B8"), "source without a link")
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{"summary": true}

	assert.Equal(t, "Air_Water", SheetName("Air/Water", used))
	assert.Equal(t, "Topic", SheetName("  ", used))
	assert.Equal(t, "Summary (2)", SheetName("Summary", used))

	long := SheetName("An exceptionally long topic label for a sheet", used)
	assert.Len(t, []rune(long), excelize.MaxSheetNameLength)

	again := SheetName("An exceptionally long topic label for a sheet", used)
	assert.NotEqual(t, long, again)
	assert.LessOrEqual(t, len([]rune(again)), excelize.MaxSheetNameLength)
}

func TestSheetName_CaseInsensitive(t *testing.T) {
	used := map[string]bool{"summary": true}

	assert.Equal(t, "SUMMARY (2)", SheetName("SUMMARY", used))
	assert.Equal(t, "Air Pollution", SheetName("Air Pollution", used))
	assert.Equal(t, "air pollution (2)", SheetName("air pollution", used))
	assert.True(t, used["air pollution (2)"])
}

func TestBuild_LabelsDifferingOnlyInCase(t *testing.T) {
	recs := []domain.TopicRecord{
		{Spec: domain.TopicSpec{Label: "Air Pollution"}, Local: domain.LocalSeries{Years: []int{2022}, Values: []*int{intp(1)}}},
		{Spec: domain.TopicSpec{Label: "air pollution"}, Local: domain.LocalSeries{Years: []int{2022}, Values: []*int{intp(2)}}},
	}
	f, err := Build(recs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.Equal(t, []string{SummarySheet, "Air Pollution", "air pollution (2)"}, f.GetSheetList())
	assert.Equal(t, "1", value(t, f, "Air Pollution", "B2"))
	assert.Equal(t, "2", value(t, f, "air pollution (2)", "B2"))
}

func TestExporter_Publish(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "statistics.xlsx")
	e := NewExporter(path, slog.Default())

	require.NoError(t, e.Publish(t.Context(), records()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	assert.Equal(t, "Death Penalty", value(t, f, SummarySheet, "A3"))
}
