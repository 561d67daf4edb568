// Package workbook exports merged topics as an Excel workbook for analysts
// who do not read the JSON document.
package workbook

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/couchcryptid/iran-stats-etl/internal/document"
	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/xuri/excelize/v2"
)

// SummarySheet lists one row per merged topic.
const SummarySheet = "Summary"

var summaryHeader = []any{
	"Topic", "Details Key", "Statistics Path",
	"Daily Average", "Monthly Average", "Yearly Average",
	"Latest Year", "Latest Value", "Countries",
}

// Exporter writes the workbook after each merge.
// It implements pipeline.Publisher.
type Exporter struct {
	path   string
	logger *slog.Logger
}

// NewExporter creates an Exporter that writes to path.
func NewExporter(path string, logger *slog.Logger) *Exporter {
	return &Exporter{path: path, logger: logger}
}

// Publish replaces the workbook with one built from records.
func (e *Exporter) Publish(_ context.Context, records []domain.TopicRecord) error {
	f, err := Build(records)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	if err := document.WriteFileAtomic(e.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	e.logger.Info("workbook exported", "path", e.path, "topics", len(records))
	return nil
}

// Build lays out the workbook: the Summary sheet first, then one sheet per
// topic with a Year column, the Iran series and one column per country.
func Build(records []domain.TopicRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := writeRow(f, SummarySheet, 1, summaryHeader, bold); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetColWidth(SummarySheet, "A", "C", 32); err != nil {
		_ = f.Close()
		return nil, err
	}

	used := map[string]bool{strings.ToLower(SummarySheet): true}
	for i, rec := range records {
		if err := writeRow(f, SummarySheet, i+2, summaryRow(rec), 0); err != nil {
			_ = f.Close()
			return nil, err
		}
		name := SheetName(rec.Spec.Label, used)
		if err := writeTopicSheet(f, name, rec, bold); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	return f, nil
}

func summaryRow(rec domain.TopicRecord) []any {
	row := []any{
		rec.Spec.Label, rec.Spec.DetailsKey, rec.Spec.StatisticsPath,
		cell(rec.Summary.DailyAverage), cell(rec.Summary.MonthlyAverage), cell(rec.Summary.YearlyAverage),
		nil, nil, 0,
	}
	if n := len(rec.Local.Years); n > 0 {
		row[6] = rec.Local.Years[n-1]
		row[7] = cell(rec.Local.Values[n-1])
	}
	if rec.World != nil {
		row[8] = len(rec.World.Countries)
	}
	return row
}

func writeTopicSheet(f *excelize.File, sheet string, rec domain.TopicRecord, style int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	years := slices.Clone(rec.Local.Years)
	header := []any{"Year", "Iran"}
	if rec.World != nil {
		years = append(years, rec.World.Years...)
		for _, c := range rec.World.Countries {
			header = append(header, c)
		}
	}
	slices.Sort(years)
	years = slices.Compact(years)

	if err := writeRow(f, sheet, 1, header, style); err != nil {
		return err
	}

	local := byYear(rec.Local.Years, rec.Local.Values)
	world := map[string]map[int]*int{}
	if rec.World != nil {
		for _, c := range rec.World.Countries {
			world[c] = byYear(rec.World.Years, rec.World.Entries[c].ChartData)
		}
	}
	for i, y := range years {
		row := []any{y, cell(local[y])}
		if rec.World != nil {
			for _, c := range rec.World.Countries {
				row = append(row, cell(world[c][y]))
			}
		}
		if err := writeRow(f, sheet, i+2, row, 0); err != nil {
			return err
		}
	}

	// Citations go below the data, one source per row.
	next := len(years) + 3
	if err := writeRow(f, sheet, next, []any{"Source", "Link"}, style); err != nil {
		return err
	}
	for i, s := range rec.Detail.Sources {
		var link any
		if i < len(rec.Detail.SourcesLinks) {
			link = rec.Detail.SourcesLinks[i]
		}
		if err := writeRow(f, sheet, next+1+i, []any{s, link}, 0); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, start, &values); err != nil {
		return err
	}
	if style == 0 || len(values) == 0 {
		return nil
	}
	end, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, start, end, style)
}

func byYear(years []int, values []*int) map[int]*int {
	m := make(map[int]*int, len(years))
	for i, y := range years {
		if i < len(values) {
			m[y] = values[i]
		}
	}
	return m
}

// cell leaves missing values as blank cells.
func cell(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// SheetName turns a topic label into a valid, unused sheet name and marks it
// used. Excel compares sheet names case-insensitively, so used is keyed by
// the lower-cased name.
func SheetName(label string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(label))
	if name == "" {
		name = "Topic"
	}
	name = truncate(name, excelize.MaxSheetNameLength)

	candidate := name
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate = truncate(name, excelize.MaxSheetNameLength-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
