// Package topics holds the registry of topics the merge step knows about.
package topics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// Default returns the five topics published on the website.
func Default() []domain.TopicSpec {
	return []domain.TopicSpec{
		{Label: "Car Accidents", StatisticsPath: "traffic_accidents_deaths.deaths", DetailsKey: "traffic_accidents_deaths", World: true},
		{Label: "Air Pollution", StatisticsPath: "air_pollution.deaths", DetailsKey: "air_pollution_deaths", World: true},
		{Label: "Education Dropout", StatisticsPath: "education.dropouts", DetailsKey: "education_dropouts"},
		{Label: "Workers Died", StatisticsPath: "workers.deaths", DetailsKey: "workers_deaths", World: true},
		{Label: "Death Penalty", StatisticsPath: "death_penalty", DetailsKey: "death_penalty"},
	}
}

type registryFile struct {
	Topics []domain.TopicSpec `yaml:"topics"`
}

// Load reads a YAML registry. An empty path returns Default.
func Load(path string) ([]domain.TopicSpec, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("topics file %s: %w", path, domain.ErrFileNotFound)
		}
		return nil, fmt.Errorf("read topics file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML registry.
func Parse(data []byte) ([]domain.TopicSpec, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse topics file: %w", err)
	}
	if err := Validate(f.Topics); err != nil {
		return nil, err
	}
	return f.Topics, nil
}

// Validate rejects empty registries, blank keys and two topics claiming the
// same label or document keys.
func Validate(specs []domain.TopicSpec) error {
	if len(specs) == 0 {
		return errors.New("topic registry is empty")
	}
	labels := make(map[string]bool, len(specs))
	details := make(map[string]bool, len(specs))
	stats := make(map[string]bool, len(specs))
	for i, s := range specs {
		switch {
		case strings.TrimSpace(s.Label) == "":
			return fmt.Errorf("topic %d: label is required", i)
		case s.DetailsKey == "":
			return fmt.Errorf("topic %q: details_key is required", s.Label)
		case s.StatisticsPath == "":
			return fmt.Errorf("topic %q: statistics_path is required", s.Label)
		}
		for _, k := range s.StatisticsKeys() {
			if k == "" {
				return fmt.Errorf("topic %q: statistics_path %q has an empty component", s.Label, s.StatisticsPath)
			}
		}
		if labels[s.Label] {
			return fmt.Errorf("topic %q is listed twice", s.Label)
		}
		if details[s.DetailsKey] {
			return fmt.Errorf("details_key %q is claimed by more than one topic", s.DetailsKey)
		}
		if stats[s.StatisticsPath] {
			return fmt.Errorf("statistics_path %q is claimed by more than one topic", s.StatisticsPath)
		}
		labels[s.Label], details[s.DetailsKey], stats[s.StatisticsPath] = true, true, true
	}
	return nil
}

// Find returns the spec with the given label.
func Find(specs []domain.TopicSpec, label string) (domain.TopicSpec, bool) {
	for _, s := range specs {
		if s.Label == label {
			return s, true
		}
	}
	return domain.TopicSpec{}, false
}
