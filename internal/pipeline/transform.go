package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/couchcryptid/iran-stats-etl/internal/observability"
	"github.com/couchcryptid/iran-stats-etl/internal/table"
)

// Column names of the source tables.
const (
	colDailyAverage   = "Daily_Average"
	colMonthlyAverage = "Monthly_Average"
	colForecastNumber = "Forecast_Number"
	colTitle          = "Title"
	colDescription    = "Description"
	colSources        = "Sources"
	colSourcesLink    = "Sources_Link"
	colCountry        = "Country"
)

// Warning is a data problem that degrades a record without failing it.
type Warning struct {
	Table     string
	Message   string
	Malformed bool // a cell was published as null because it could not be parsed
}

// RecordBuilder implements Transformer using BuildTopicRecord and reports
// warnings through the logger and metrics.
type RecordBuilder struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRecordBuilder creates a RecordBuilder.
func NewRecordBuilder(logger *slog.Logger, metrics *observability.Metrics) *RecordBuilder {
	return &RecordBuilder{logger: logger, metrics: metrics}
}

func (b *RecordBuilder) Transform(_ context.Context, src *Sources, spec domain.TopicSpec) (domain.TopicRecord, error) {
	rec, warnings, err := BuildTopicRecord(src, spec)
	for _, w := range warnings {
		b.logger.Warn("source data degraded", "topic", spec.Label, "table", w.Table, "detail", w.Message)
		if w.Malformed {
			b.metrics.MalformedCells.WithLabelValues(w.Table).Inc()
		}
	}
	return rec, err
}

// BuildTopicRecord assembles everything the document holds for one topic.
// The summary, details and Iran tables must each have a row for the topic,
// and so must the world table for topics with a world comparison. Citation
// rows are optional and matched to countries by position.
func BuildTopicRecord(src *Sources, spec domain.TopicSpec) (domain.TopicRecord, []Warning, error) {
	var warnings []Warning
	warn := func(tbl *table.Table, malformed bool, format string, args ...any) {
		warnings = append(warnings, Warning{Table: tbl.Name(), Message: fmt.Sprintf(format, args...), Malformed: malformed})
	}

	rec := domain.TopicRecord{Spec: spec}

	summary, err := firstRow(src.Summary, spec.Label, warn)
	if err != nil {
		return rec, warnings, err
	}
	if rec.Summary, err = buildSummary(summary, src.Summary, warn); err != nil {
		return rec, warnings, err
	}

	details, err := firstRow(src.Details, spec.Label, warn)
	if err != nil {
		return rec, warnings, err
	}
	if rec.Detail, err = buildDetail(details, src.Details, warn); err != nil {
		return rec, warnings, err
	}

	if rec.Local, err = buildLocalSeries(src.Iran, spec.Label, warn); err != nil {
		return rec, warnings, err
	}

	if spec.World {
		world, err := buildWorldSeries(src.World, src.WorldSources, spec.Label, warn)
		if err != nil {
			return rec, warnings, err
		}
		rec.World = world
	}
	return rec, warnings, nil
}

type warnFunc func(tbl *table.Table, malformed bool, format string, args ...any)

func firstRow(tbl *table.Table, label string, warn warnFunc) (*table.Selection, error) {
	sel, err := tbl.SelectTopic(label)
	if err != nil {
		return nil, err
	}
	if sel.Len() > 1 {
		warn(tbl, false, "%d rows for topic, using the first", sel.Len())
	}
	return sel, nil
}

func buildSummary(sel *table.Selection, tbl *table.Table, warn warnFunc) (domain.Summary, error) {
	var raw [3]string
	for i, col := range []string{colDailyAverage, colMonthlyAverage, colForecastNumber} {
		v, err := sel.Value(0, col)
		if err != nil {
			return domain.Summary{}, err
		}
		raw[i] = v
	}

	s := domain.Summary{
		DailyAverage:   domain.ParseAverage(raw[0]),
		MonthlyAverage: domain.ParseAverage(raw[1]),
		YearlyAverage:  domain.ParseForecast(raw[2]),
	}
	for i, v := range []*int{s.DailyAverage, s.MonthlyAverage, s.YearlyAverage} {
		if v == nil && !domain.IsMissing(raw[i]) {
			warn(tbl, true, "summary value %q is not a number", raw[i])
		}
	}
	return s, nil
}

func buildDetail(sel *table.Selection, tbl *table.Table, warn warnFunc) (domain.Detail, error) {
	cols := []string{colTitle, colDescription, colSources, colSourcesLink}
	vals := make([]string, len(cols))
	for i, col := range cols {
		v, err := sel.Value(0, col)
		if err != nil {
			return domain.Detail{}, err
		}
		vals[i] = v
	}

	d := domain.Detail{
		Title:        textOrEmpty(vals[0]),
		Description:  textOrEmpty(vals[1]),
		Sources:      domain.SplitList(vals[2]),
		SourcesLinks: domain.SplitList(vals[3]),
	}
	if len(d.Sources) != len(d.SourcesLinks) {
		warn(tbl, false, "%d sources but %d source links", len(d.Sources), len(d.SourcesLinks))
	}
	return d, nil
}

func buildLocalSeries(tbl *table.Table, label string, warn warnFunc) (domain.LocalSeries, error) {
	cols := tbl.Columns()
	if len(cols) == 0 || cols[0] != table.TopicColumn {
		return domain.LocalSeries{}, fmt.Errorf("%s: first column must be %q: %w", tbl.Name(), table.TopicColumn, domain.ErrSchemaMismatch)
	}
	years, err := domain.ParseYears(cols[1:])
	if err != nil {
		return domain.LocalSeries{}, fmt.Errorf("%s: %w", tbl.Name(), err)
	}

	sel, err := firstRow(tbl, label, warn)
	if err != nil {
		return domain.LocalSeries{}, err
	}
	values, malformed := domain.CleanSeries(sel.Tail(0, 1))
	for _, m := range malformed {
		warn(tbl, true, "year %d: value %q is not an integer", years[m.Index], m.Raw)
	}
	return domain.LocalSeries{Years: years, Values: values}, nil
}

func buildWorldSeries(world, sources *table.Table, label string, warn warnFunc) (*domain.WorldSeries, error) {
	cols := world.Columns()
	if len(cols) < 2 || cols[0] != table.TopicColumn || cols[1] != colCountry {
		return nil, fmt.Errorf("%s: first columns must be %q, %q: %w", world.Name(), table.TopicColumn, colCountry, domain.ErrSchemaMismatch)
	}
	years, err := domain.ParseYears(cols[2:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", world.Name(), err)
	}

	rows, err := world.SelectTopic(label)
	if err != nil {
		return nil, err
	}

	citations, err := sources.SelectTopic(label)
	if err != nil {
		warn(sources, false, "no citation rows, countries get empty citation lists")
		citations = nil
	}

	ws := &domain.WorldSeries{
		Years:     years,
		Countries: make([]string, 0, rows.Len()),
		Entries:   make(map[string]domain.WorldEntry, rows.Len()),
	}
	for i := range rows.Len() {
		country, err := rows.Value(i, colCountry)
		if err != nil {
			return nil, err
		}
		values, malformed := domain.CleanSeries(rows.Tail(i, 2))
		for _, m := range malformed {
			warn(world, true, "%s, year %d: value %q is not an integer", country, years[m.Index], m.Raw)
		}

		entry := domain.WorldEntry{
			ChartData:   values,
			Source:      domain.WorldSourceLabel,
			SourcesLink: []*string{},
		}
		if citations != nil && i < citations.Len() {
			if cited, err := citations.Value(i, colCountry); err == nil && cited != country {
				warn(sources, false, "citation row %d is for %q, not %q", i, cited, country)
			}
			entry.SourcesLink = domain.CleanCitations(citations.Tail(i, 2))
		} else if citations != nil {
			warn(sources, false, "no citation row for %s", country)
		}

		if _, dup := ws.Entries[country]; dup {
			warn(world, false, "country %s listed twice, keeping the last row", country)
		} else {
			ws.Countries = append(ws.Countries, country)
		}
		ws.Entries[country] = entry
	}
	return ws, nil
}

func textOrEmpty(raw string) string {
	if domain.IsMissing(raw) {
		return ""
	}
	return raw
}
