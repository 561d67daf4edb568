package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/couchcryptid/iran-stats-etl/internal/topics"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func compact(t *testing.T, raw string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.Compact(&buf, []byte(raw)))
	return buf.String()
}

var deathPenalty = domain.TopicSpec{Label: "Death Penalty", StatisticsPath: "death_penalty", DetailsKey: "death_penalty"}

var workers = domain.TopicSpec{Label: "Workers Died", StatisticsPath: "workers.deaths", DetailsKey: "workers_deaths", World: true}

func deathPenaltyRecord() domain.TopicRecord {
	return domain.TopicRecord{
		Spec:    deathPenalty,
		Summary: domain.Summary{DailyAverage: intp(1), MonthlyAverage: intp(30), YearlyAverage: intp(365)},
		Detail: domain.Detail{
			Title:        "Executions",
			Description:  "d",
			Sources:      []string{"A"},
			SourcesLinks: []string{"http://a"},
		},
		Local: domain.LocalSeries{Years: []int{2019, 2020}, Values: []*int{intp(280), nil}},
	}
}

func workersRecord() domain.TopicRecord {
	return domain.TopicRecord{
		Spec:    workers,
		Summary: domain.Summary{DailyAverage: intp(5), MonthlyAverage: intp(160), YearlyAverage: intp(1900)},
		Detail:  domain.Detail{Title: "Workers", Sources: []string{}, SourcesLinks: []string{}},
		Local:   domain.LocalSeries{Years: []int{2020}, Values: []*int{intp(1900)}},
		World: &domain.WorldSeries{
			Years:     []int{2020},
			Countries: []string{"Iran", "St. Lucia"},
			Entries: map[string]domain.WorldEntry{
				"Iran":      {ChartData: []*int{intp(1900)}, Source: domain.WorldSourceLabel, SourcesLink: []*string{strp("https://ilo.org")}},
				"St. Lucia": {ChartData: []*int{nil}, Source: domain.WorldSourceLabel, SourcesLink: []*string{}},
			},
		},
	}
}

const emptyDeathPenaltyDoc = `{
  "iran_statistics": {
    "metadata": {},
    "statistics": {
      "death_penalty": {}
    },
    "details": {
      "death_penalty": {}
    }
  }
}
`

const mergedDeathPenaltyDoc = `{
  "iran_statistics": {
    "metadata": {},
    "statistics": {
      "death_penalty": {
        "daily_average": 1,
        "monthly_average": 30,
        "yearly_average": 365
      }
    },
    "details": {
      "death_penalty": {
        "title": "Executions",
        "description": "d",
        "sources": [
          "A"
        ],
        "sources_links": [
          "http://a"
        ],
        "chartYears": [
          2019,
          2020
        ],
        "chartData": [
          280,
          null
        ]
      }
    }
  }
}
`

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"iran_statistics": `},
		{"array root", `[]`},
		{"missing root key", `{"statistics": {}}`},
		{"root key not an object", `{"iran_statistics": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrSchemaMismatch))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "statistics.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))
}

func TestApply_InsertsWithIndentation(t *testing.T) {
	doc, err := Parse([]byte(emptyDeathPenaltyDoc))
	require.NoError(t, err)

	require.NoError(t, doc.Apply(deathPenaltyRecord()))
	assert.Equal(t, mergedDeathPenaltyDoc, string(doc.Bytes()))
}

func TestApply_Idempotent(t *testing.T) {
	doc, err := Parse([]byte(mergedDeathPenaltyDoc))
	require.NoError(t, err)

	require.NoError(t, doc.Apply(deathPenaltyRecord()))
	assert.Equal(t, mergedDeathPenaltyDoc, string(doc.Bytes()))
}

func TestApply_ReplacesOwnedValuesOnly(t *testing.T) {
	doc, err := Parse([]byte(`{"iran_statistics": {"statistics": {"death_penalty": {"daily_average": 9, "trend": "rising"}}, "details": {"death_penalty": {"title": "old", "icon": "x"}}}}`))
	require.NoError(t, err)

	require.NoError(t, doc.Apply(deathPenaltyRecord()))

	assert.Equal(t, int64(1), doc.Get(Root, "statistics", "death_penalty", "daily_average").Int())
	assert.Equal(t, "rising", doc.Get(Root, "statistics", "death_penalty", "trend").String())
	assert.Equal(t, "Executions", doc.Get(Root, "details", "death_penalty", "title").String())
	assert.Equal(t, "x", doc.Get(Root, "details", "death_penalty", "icon").String())
	assert.Equal(t, "null", doc.Get(Root, "details", "death_penalty", "chartData", "1").Raw)
}

func TestApply_LeavesOtherTopicsByteIdentical(t *testing.T) {
	skel, err := Skeleton(topics.Default(), DefaultMetadata(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	doc, err := Parse(skel)
	require.NoError(t, err)
	require.NoError(t, doc.Apply(deathPenaltyRecord()))

	beforeDetails := doc.Get(Root, "details", "death_penalty").Raw
	beforeStats := doc.Get(Root, "statistics", "death_penalty").Raw
	beforeAir := doc.Get(Root, "details", "air_pollution_deaths").Raw

	require.NoError(t, doc.Apply(workersRecord()))

	assert.Equal(t, beforeDetails, doc.Get(Root, "details", "death_penalty").Raw)
	assert.Equal(t, beforeStats, doc.Get(Root, "statistics", "death_penalty").Raw)
	assert.Equal(t, beforeAir, doc.Get(Root, "details", "air_pollution_deaths").Raw)

	world := doc.Get(WorldPath(workers)...)
	assert.Equal(t, "[2020]", compact(t, world.Get("chartYears").Raw))
	assert.Equal(t, `{"chartData":[1900],"source":"Source","sources_link":["https://ilo.org"]}`, compact(t, doc.Get(append(WorldPath(workers), "Iran")...).Raw))
	assert.Equal(t, `{"chartData":[null],"source":"Source","sources_link":[]}`, compact(t, doc.Get(append(WorldPath(workers), "St. Lucia")...).Raw))
}

func TestApply_SchemaMismatchLeavesDocumentUnchanged(t *testing.T) {
	original := `{"iran_statistics": {"statistics": {"workers": {"deaths": {}}}, "details": {"workers_deaths": {}}}}`
	doc, err := Parse([]byte(original))
	require.NoError(t, err)

	err = doc.Apply(workersRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchemaMismatch))
	assert.Contains(t, err.Error(), "iran_statistics.details.workers_deaths.world")
	assert.Equal(t, original, string(doc.Bytes()))
}

func TestApply_MissingStatisticsContainer(t *testing.T) {
	doc, err := Parse([]byte(`{"iran_statistics": {"details": {"death_penalty": {}}}}`))
	require.NoError(t, err)

	err = doc.Apply(deathPenaltyRecord())
	assert.True(t, errors.Is(err, domain.ErrSchemaMismatch))
}

func TestTouch(t *testing.T) {
	doc, err := Parse([]byte(emptyDeathPenaltyDoc))
	require.NoError(t, err)

	require.NoError(t, doc.Touch(time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("IRST", 3*3600+1800))))
	assert.Equal(t, "2025-03-04T01:36:07Z", doc.Get(Root, "metadata", "last_updated").String())

	noMeta, err := Parse([]byte(`{"iran_statistics": {}}`))
	require.NoError(t, err)
	assert.True(t, errors.Is(noMeta.Touch(time.Now()), domain.ErrSchemaMismatch))
}

func TestSetSection(t *testing.T) {
	doc, err := Parse([]byte(emptyDeathPenaltyDoc))
	require.NoError(t, err)

	require.NoError(t, doc.SetSection("education_analysis", []byte(`{"metadata": {"model_used": "ARIMA(1,1,0)"}}`)))
	assert.Equal(t, "ARIMA(1,1,0)", doc.Get(Root, "education_analysis", "metadata", "model_used").String())
	assert.Equal(t, "{}", doc.Get(Root, "metadata").Raw)

	assert.Error(t, doc.SetSection("broken", []byte(`{`)))
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statistics.json")
	require.NoError(t, os.WriteFile(path, []byte(emptyDeathPenaltyDoc), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, doc.Apply(deathPenaltyRecord()))
	require.NoError(t, doc.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, mergedDeathPenaltyDoc, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWithLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statistics.json")

	called := false
	require.NoError(t, WithLock(context.Background(), path, time.Second, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)

	fnErr := errors.New("merge failed")
	assert.ErrorIs(t, WithLock(context.Background(), path, time.Second, func() error { return fnErr }), fnErr)
}

func TestWithLock_Contended(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statistics.json")

	holder := flock.New(path + ".lock")
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = holder.Unlock() }()

	called := false
	err = WithLock(context.Background(), path, 250*time.Millisecond, func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestSkeleton(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, err := Skeleton(topics.Default(), DefaultMetadata(now))
	require.NoError(t, err)

	doc, err := Parse(data)
	require.NoError(t, err)
	for _, spec := range topics.Default() {
		assert.NoError(t, doc.CheckSchema(spec), spec.Label)
	}
	assert.Equal(t, "2025-06-01T12:00:00Z", doc.Get(Root, "metadata", "last_updated").String())
	assert.Equal(t, int64(0), doc.Get(Root, "statistics", "death_penalty", "yearly_average").Int())
	assert.False(t, doc.Get(DetailsPath(deathPenalty)...).Get("world").Exists())
}

func TestExportEndpoints(t *testing.T) {
	doc, err := Parse([]byte(mergedDeathPenaltyDoc))
	require.NoError(t, err)

	dir := t.TempDir()
	written, err := ExportEndpoints(doc, dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "death_penalty.json")}, written)

	data, err := os.ReadFile(written[0])
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"daily_average\": 1,\n  \"monthly_average\": 30,\n  \"yearly_average\": 365\n}\n", string(data))
}
