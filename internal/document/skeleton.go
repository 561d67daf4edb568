package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/tidwall/sjson"
)

// Metadata describes the document's provenance block.
type Metadata struct {
	LastUpdated     string `json:"last_updated"`
	Source          string `json:"source"`
	UpdateFrequency string `json:"update_frequency"`
	DataVersion     string `json:"data_version"`
}

// DefaultMetadata is written into freshly seeded documents.
func DefaultMetadata(now time.Time) Metadata {
	return Metadata{
		LastUpdated:     now.UTC().Format(TimestampLayout),
		Source:          "Iran National Statistics Center",
		UpdateFrequency: "daily",
		DataVersion:     "1.0",
	}
}

type detailSkeleton struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Sources      []string       `json:"sources"`
	SourcesLinks []string       `json:"sources_links"`
	ChartYears   []int          `json:"chartYears"`
	ChartData    []*int         `json:"chartData"`
	World        *worldSkeleton `json:"world,omitempty"`
}

type worldSkeleton struct {
	ChartYears []int `json:"chartYears"`
}

// Skeleton builds an empty document with every container the given topics
// write into, so that a first merge succeeds.
func Skeleton(specs []domain.TopicSpec, meta Metadata) ([]byte, error) {
	raw := []byte("{}")
	set := func(path []string, v any) error {
		enc, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out, err := sjson.SetRawBytes(raw, joinPath(path), enc)
		if err != nil {
			return fmt.Errorf("skeleton %v: %w", path, err)
		}
		raw = out
		return nil
	}

	if err := set([]string{Root, "metadata"}, meta); err != nil {
		return nil, err
	}
	zero := 0
	for _, spec := range specs {
		if err := set(StatisticsPath(spec), domain.Summary{
			DailyAverage:   &zero,
			MonthlyAverage: &zero,
			YearlyAverage:  &zero,
		}); err != nil {
			return nil, err
		}
	}
	for _, spec := range specs {
		d := detailSkeleton{
			Sources:      []string{},
			SourcesLinks: []string{},
			ChartYears:   []int{},
			ChartData:    []*int{},
		}
		if spec.World {
			d.World = &worldSkeleton{ChartYears: []int{}}
		}
		if err := set(DetailsPath(spec), d); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", indentUnit); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
