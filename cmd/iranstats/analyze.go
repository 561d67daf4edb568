package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/iran-stats-etl/internal/adapter/chart"
	"github.com/couchcryptid/iran-stats-etl/internal/analysis"
	"github.com/couchcryptid/iran-stats-etl/internal/config"
	"github.com/couchcryptid/iran-stats-etl/internal/observability"
	"github.com/spf13/cobra"
)

var (
	analyzeChartDir   string
	analyzeResultsDir string
	analyzeNoCharts   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [name...]",
	Short: "Run the time-series analyses",
	Long: `Runs the stationarity tests, forecasts and growth-rate analyses for the
named datasets (all of them when no name is given), writing a results JSON
file and PNG charts for each.

Available analyses: accidents, air, death-penalty, education, workers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("chart-dir") {
			cfg.ChartDir = analyzeChartDir
		}
		if cmd.Flags().Changed("results-dir") {
			cfg.ResultsDir = analyzeResultsDir
		}
		var renderer analysis.Renderer
		if !analyzeNoCharts {
			renderer = chart.NewRenderer()
		}
		return runAnalyze(cmd.Context(), cfg, renderer, args, logger, metrics, cmd.OutOrStdout())
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeChartDir, "chart-dir", "", "write charts here instead of next to each dataset (overrides CHART_DIR)")
	analyzeCmd.Flags().StringVar(&analyzeResultsDir, "results-dir", "", "write results JSON here instead of next to each dataset (overrides RESULTS_DIR)")
	analyzeCmd.Flags().BoolVar(&analyzeNoCharts, "no-charts", false, "skip chart rendering")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(ctx context.Context, cfg *config.Config, renderer analysis.Renderer, names []string, logger *slog.Logger, metrics *observability.Metrics, out io.Writer) error {
	defs, err := analysis.Select(analysis.Definitions(), names)
	if err != nil {
		return err
	}

	runner := analysis.NewRunner(cfg.DataDir, cfg.ResultsDir, cfg.ChartDir, renderer, logger, metrics)
	report, err := runner.Run(ctx, defs)
	fmt.Fprintf(out, "analyzed: %d %s\n", len(report.Succeeded), list(report.Succeeded))
	if len(report.Failed) > 0 {
		fmt.Fprintf(out, "failed:   %d %s\n", len(report.Failed), list(report.Failed))
	}
	return err
}
