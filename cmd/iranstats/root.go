package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/config"
	"github.com/couchcryptid/iran-stats-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const pushTimeout = 10 * time.Second

// logger is replaced by the configured one once setup has run.
var logger = slog.Default()

var (
	// Populated by the root command before any subcommand runs.
	cfg     *config.Config
	metrics *observability.Metrics

	dataDirFlag  string
	documentFlag string
	topicsFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "iranstats",
	Short: "Iran statistics data pipeline",
	Long: `iranstats turns the curated statistics tables into the JSON document the
website reads, and produces the forecasts, stationarity tests and charts
shown on the topic pages.

Settings come from environment variables (DATA_DIR, DOCUMENT_PATH, ...);
flags override them for a single run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentPreRunE = setup
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "directory holding the source tables (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&documentFlag, "document", "", "statistics document path (overrides DOCUMENT_PATH)")
	rootCmd.PersistentFlags().StringVar(&topicsFlag, "topics", "", "YAML topic registry (overrides TOPICS_FILE)")
}

// setup loads configuration and builds the logger and metrics shared by
// every subcommand.
func setup(_ *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	applyOverrides(c)
	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics = observability.NewMetrics(prometheus.NewRegistry())
	return nil
}

// applyOverrides copies the persistent flags the user set onto c.
func applyOverrides(c *config.Config) {
	flags := rootCmd.PersistentFlags()
	if flags.Changed("data-dir") {
		c.DataDir = dataDirFlag
	}
	if flags.Changed("document") {
		c.DocumentPath = documentFlag
	}
	if flags.Changed("topics") {
		c.TopicsFile = topicsFlag
	}
}

// pushMetrics sends the run's metrics to the Pushgateway when one is
// configured. It runs after the command so failed runs are reported too.
func pushMetrics() {
	if cfg == nil || metrics == nil || cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := metrics.Push(ctx, cfg.PushgatewayURL, cfg.PushgatewayJob); err != nil {
		logger.Warn("metrics push failed", "error", err)
	}
}
