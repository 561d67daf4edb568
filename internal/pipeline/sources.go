package pipeline

import (
	"context"
	"path/filepath"

	"github.com/couchcryptid/iran-stats-etl/internal/table"
)

// Source table file names inside the data directory.
const (
	SummaryFile      = "data.csv"
	DetailsFile      = "details.csv"
	IranSeriesFile   = "time_series_Iran.csv"
	WorldSeriesFile  = "time_series_World.csv"
	WorldSourcesFile = "world_sources.csv"
)

// Sources holds the five tables a merge run reads.
type Sources struct {
	Summary      *table.Table
	Details      *table.Table
	Iran         *table.Table
	World        *table.Table
	WorldSources *table.Table
}

// TableExtractor loads Sources from a directory.
// It implements Extractor.
type TableExtractor struct {
	dir string
}

// NewTableExtractor creates an extractor reading from dir.
func NewTableExtractor(dir string) *TableExtractor {
	return &TableExtractor{dir: dir}
}

// Extract reads every table. Any missing file fails the run.
func (e *TableExtractor) Extract(_ context.Context) (*Sources, error) {
	var src Sources
	targets := []struct {
		file string
		dst  **table.Table
	}{
		{SummaryFile, &src.Summary},
		{DetailsFile, &src.Details},
		{IranSeriesFile, &src.Iran},
		{WorldSeriesFile, &src.World},
		{WorldSourcesFile, &src.WorldSources},
	}
	for _, t := range targets {
		tbl, err := table.Load(filepath.Join(e.dir, t.file))
		if err != nil {
			return nil, err
		}
		*t.dst = tbl
	}
	return &src, nil
}
