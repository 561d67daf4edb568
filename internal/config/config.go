package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Missing-topic policies.
const (
	MissingTopicFail = "fail"
	MissingTopicSkip = "skip"
)

// Config holds all job settings, populated from environment variables.
type Config struct {
	DataDir            string
	DocumentPath       string
	TopicsFile         string
	MissingTopicPolicy string
	LockTimeout        time.Duration

	// Analysis outputs. Empty means next to each dataset.
	ChartDir   string
	ResultsDir string

	// Optional exports. Empty disables them.
	APIDir       string
	WorkbookPath string

	LogLevel  string
	LogFormat string

	// Kafka topic-update notifications.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Pushgateway for batch metrics. Empty URL disables pushing.
	PushgatewayURL string
	PushgatewayJob string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	lockTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("LOCK_TIMEOUT", "30s"))
	if err != nil || lockTimeout <= 0 {
		return nil, errors.New("invalid LOCK_TIMEOUT")
	}

	cfg := &Config{
		DataDir:            sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		DocumentPath:       sharedcfg.EnvOrDefault("DOCUMENT_PATH", "website/data/statistics.json"),
		TopicsFile:         os.Getenv("TOPICS_FILE"),
		MissingTopicPolicy: sharedcfg.EnvOrDefault("MISSING_TOPIC_POLICY", MissingTopicFail),
		LockTimeout:        lockTimeout,
		ChartDir:           os.Getenv("CHART_DIR"),
		ResultsDir:         os.Getenv("RESULTS_DIR"),
		APIDir:             os.Getenv("API_DIR"),
		WorkbookPath:       os.Getenv("WORKBOOK_PATH"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         sharedcfg.EnvOrDefault("KAFKA_TOPIC", "statistics-updates"),
		PushgatewayURL:     os.Getenv("PUSHGATEWAY_URL"),
		PushgatewayJob:     sharedcfg.EnvOrDefault("PUSHGATEWAY_JOB", "iran_stats_etl"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Commands call it again after
// applying flag overrides.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("DATA_DIR is required")
	}
	if c.DocumentPath == "" {
		return errors.New("DOCUMENT_PATH is required")
	}
	switch c.MissingTopicPolicy {
	case MissingTopicFail, MissingTopicSkip:
	default:
		return fmt.Errorf("invalid MISSING_TOPIC_POLICY %q (want %q or %q)", c.MissingTopicPolicy, MissingTopicFail, MissingTopicSkip)
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}
	return nil
}

// SkipMissingTopics reports whether absent topics are warnings instead of failures.
func (c *Config) SkipMissingTopics() bool {
	return c.MissingTopicPolicy == MissingTopicSkip
}
