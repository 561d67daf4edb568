package domain

import "strings"

// WorldSourceLabel is the display label written next to every country series.
const WorldSourceLabel = "Source"

// TopicSpec binds a topic label to the document keys it owns.
type TopicSpec struct {
	// Label is the value of the "Topic" column, e.g. "Car Accidents".
	Label string `yaml:"label"`

	// StatisticsPath is the dot-separated path below iran_statistics.statistics
	// that receives the summary averages, e.g. "traffic_accidents_deaths.deaths".
	StatisticsPath string `yaml:"statistics_path"`

	// DetailsKey is the key below iran_statistics.details, e.g. "traffic_accidents_deaths".
	DetailsKey string `yaml:"details_key"`

	// World marks topics that carry a per-country comparison.
	World bool `yaml:"world"`
}

// StatisticsKeys splits StatisticsPath into its components.
func (s TopicSpec) StatisticsKeys() []string {
	return strings.Split(s.StatisticsPath, ".")
}

// Summary holds the headline averages of a topic. Nil fields are published as null.
type Summary struct {
	DailyAverage   *int `json:"daily_average"`
	MonthlyAverage *int `json:"monthly_average"`
	YearlyAverage  *int `json:"yearly_average"`
}

// Detail holds the descriptive text and citations of a topic.
type Detail struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Sources      []string `json:"sources"`
	SourcesLinks []string `json:"sources_links"`
}

// LocalSeries is the Iran time series of a topic. Years and Values are parallel.
type LocalSeries struct {
	Years  []int
	Values []*int
}

// WorldEntry is one country's comparison series.
type WorldEntry struct {
	ChartData   []*int    `json:"chartData"`
	Source      string    `json:"source"`
	SourcesLink []*string `json:"sources_link"`
}

// WorldSeries is the per-country comparison of a topic. Countries keeps the
// table order; every name in Countries is a key of Entries.
type WorldSeries struct {
	Years     []int
	Countries []string
	Entries   map[string]WorldEntry
}

// TopicRecord is everything the document holds for one topic.
type TopicRecord struct {
	Spec    TopicSpec
	Summary Summary
	Detail  Detail
	Local   LocalSeries
	World   *WorldSeries // nil for topics without a world comparison
}
