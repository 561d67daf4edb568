package pipeline

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/couchcryptid/iran-stats-etl/internal/observability"
	"github.com/couchcryptid/iran-stats-etl/internal/table"
	"github.com/couchcryptid/iran-stats-etl/internal/topics"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func mustTable(t *testing.T, name, csv string) *table.Table {
	t.Helper()
	tbl, err := table.Read(name, strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func testSources(t *testing.T) *Sources {
	t.Helper()
	src, err := NewTableExtractor("testdata").Extract(t.Context())
	require.NoError(t, err)
	return src
}

func spec(t *testing.T, label string) domain.TopicSpec {
	t.Helper()
	s, ok := topics.Find(topics.Default(), label)
	require.True(t, ok, label)
	return s
}

func TestBuildTopicRecord_CarAccidents(t *testing.T) {
	rec, warnings, err := BuildTopicRecord(testSources(t), spec(t, "Car Accidents"))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, domain.Summary{DailyAverage: intp(56), MonthlyAverage: intp(1690), YearlyAverage: intp(20288)}, rec.Summary)
	assert.Equal(t, "Traffic Accident Deaths", rec.Detail.Title)
	assert.Equal(t, []string{"Legal Medicine Organization", "WHO"}, rec.Detail.Sources)
	assert.Equal(t, []string{"https://lmo.ir", "https://who.int"}, rec.Detail.SourcesLinks)

	assert.Equal(t, []int{2019, 2020, 2021, 2022}, rec.Local.Years)
	assert.Equal(t, []*int{intp(17183), intp(16000), intp(17051), intp(19700)}, rec.Local.Values)

	require.NotNil(t, rec.World)
	assert.Equal(t, []string{"Iran", "Turkey"}, rec.World.Countries)
	want := domain.WorldEntry{
		ChartData:   []*int{intp(5473), intp(4866), intp(5362), nil},
		Source:      domain.WorldSourceLabel,
		SourcesLink: []*string{strp("https://tuik.gov.tr"), strp("https://tuik.gov.tr"), nil, nil},
	}
	if diff := cmp.Diff(want, rec.World.Entries["Turkey"]); diff != "" {
		t.Errorf("Turkey entry mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTopicRecord_EveryCountryHasAFullSeries(t *testing.T) {
	src := testSources(t)
	for _, label := range []string{"Car Accidents", "Air Pollution", "Workers Died"} {
		rec, _, err := BuildTopicRecord(src, spec(t, label))
		require.NoError(t, err, label)
		require.NotNil(t, rec.World)

		selected, err := src.World.SelectTopic(label)
		require.NoError(t, err)
		assert.Len(t, rec.World.Countries, selected.Len(), label)
		for _, c := range rec.World.Countries {
			entry, ok := rec.World.Entries[c]
			require.True(t, ok, "%s/%s", label, c)
			assert.Len(t, entry.ChartData, len(rec.World.Years), "%s/%s", label, c)
		}
	}
}

func TestBuildTopicRecord_CitationFallback(t *testing.T) {
	rec, warnings, err := BuildTopicRecord(testSources(t), spec(t, "Air Pollution"))
	require.NoError(t, err)

	assert.Equal(t, []*string{strp("https://behdasht.gov.ir"), nil, nil, nil}, rec.World.Entries["Iran"].SourcesLink)
	assert.Equal(t, []*string{}, rec.World.Entries["India"].SourcesLink)
	assert.Equal(t, []*int{intp(30000), intp(31000), nil, intp(32500)}, rec.Local.Values)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "no citation row for India")
	assert.False(t, warnings[0].Malformed)
}

func TestBuildTopicRecord_MalformedCells(t *testing.T) {
	rec, warnings, err := BuildTopicRecord(testSources(t), spec(t, "Workers Died"))
	require.NoError(t, err)

	assert.Equal(t, intp(1900), rec.Summary.YearlyAverage)
	assert.Nil(t, rec.Local.Values[3], "n/a is a missing marker")
	assert.Nil(t, rec.World.Entries["Iran"].ChartData[3])

	require.Len(t, warnings, 1)
	assert.True(t, warnings[0].Malformed)
	assert.Contains(t, warnings[0].Message, `"unknown"`)
	assert.Contains(t, warnings[0].Message, "2022")
}

func TestBuildTopicRecord_LocalOnlyTopic(t *testing.T) {
	rec, _, err := BuildTopicRecord(testSources(t), spec(t, "Death Penalty"))
	require.NoError(t, err)

	assert.Nil(t, rec.World)
	assert.Equal(t, domain.Summary{DailyAverage: intp(2), MonthlyAverage: intp(76), YearlyAverage: intp(912)}, rec.Summary)
	assert.Equal(t, []string{"Iran Human Rights", "Amnesty International"}, rec.Detail.Sources)
}

func TestBuildTopicRecord_SourceLinkCountMismatchWarns(t *testing.T) {
	_, warnings, err := BuildTopicRecord(testSources(t), spec(t, "Death Penalty"))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "2 sources but 1 source links")
}

func TestBuildTopicRecord_BlankSourceKeepsLinksAligned(t *testing.T) {
	src := testSources(t)
	src.Details = mustTable(t, "details.csv",
		"Topic,Title,Description,Sources,Sources_Link\n"+
			"Death Penalty,Executions,d,WHO;;Iran Statistics Center,https://who.int;https://x.example;https://amar.org.ir\n")

	rec, warnings, err := BuildTopicRecord(src, spec(t, "Death Penalty"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"WHO", "", "Iran Statistics Center"}, rec.Detail.Sources)
	assert.Equal(t, []string{"https://who.int", "https://x.example", "https://amar.org.ir"}, rec.Detail.SourcesLinks)
}

func TestBuildTopicRecord_TopicNotFound(t *testing.T) {
	src := testSources(t)
	src.Details = mustTable(t, "details.csv", "Topic,Title,Description,Sources,Sources_Link\nCar Accidents,t,d,s,l\n")

	_, _, err := BuildTopicRecord(src, spec(t, "Workers Died"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTopicNotFound))
	assert.Contains(t, err.Error(), "details.csv")
}

func TestBuildTopicRecord_WorldRowsRequired(t *testing.T) {
	src := testSources(t)
	src.World = mustTable(t, "time_series_World.csv", "Topic,Country,2019\nAir Pollution,Iran,1\n")

	_, _, err := BuildTopicRecord(src, spec(t, "Car Accidents"))
	assert.True(t, errors.Is(err, domain.ErrTopicNotFound))
}

func TestBuildTopicRecord_MalformedYearHeader(t *testing.T) {
	src := testSources(t)
	src.Iran = mustTable(t, "time_series_Iran.csv", "Topic,2019,Total\nDeath Penalty,280,300\n")

	_, _, err := BuildTopicRecord(src, spec(t, "Death Penalty"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedRow))
}

func TestBuildTopicRecord_MissingSummaryColumn(t *testing.T) {
	src := testSources(t)
	src.Summary = mustTable(t, "data.csv", "Topic,Daily_Average\nDeath Penalty,2\n")

	_, _, err := BuildTopicRecord(src, spec(t, "Death Penalty"))
	assert.True(t, errors.Is(err, domain.ErrSchemaMismatch))
}

func TestRecordBuilder_CountsMalformedCells(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	b := NewRecordBuilder(slog.Default(), metrics)

	_, err := b.Transform(t.Context(), testSources(t), spec(t, "Workers Died"))
	require.NoError(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.MalformedCells.WithLabelValues("testdata/time_series_World.csv")), 0)
}
