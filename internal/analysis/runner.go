package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/couchcryptid/iran-stats-etl/internal/observability"
)

// Renderer draws the charts of a result into dir and returns the written paths.
type Renderer interface {
	Render(ctx context.Context, r *Result, dir string) ([]string, error)
}

// Report summarizes an analyze run.
type Report struct {
	Succeeded []string
	Failed    []string
}

// Runner executes analyses and writes their results and charts.
type Runner struct {
	dataDir    string
	resultsDir string
	chartDir   string
	renderer   Renderer
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewRunner creates a Runner. Empty resultsDir or chartDir place outputs
// next to each dataset; a nil renderer skips charts.
func NewRunner(dataDir, resultsDir, chartDir string, renderer Renderer, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		dataDir:    dataDir,
		resultsDir: resultsDir,
		chartDir:   chartDir,
		renderer:   renderer,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes every definition. A failing analysis is reported and the
// rest still run; the returned error joins every failure.
func (r *Runner) Run(ctx context.Context, defs []Definition) (Report, error) {
	var report Report
	var errs []error
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := r.RunOne(ctx, def); err != nil {
			r.logger.Error("analysis failed", "analysis", def.Name, "error", err)
			report.Failed = append(report.Failed, def.Name)
			errs = append(errs, fmt.Errorf("analysis %q: %w", def.Name, err))
			continue
		}
		report.Succeeded = append(report.Succeeded, def.Name)
	}
	return report, errors.Join(errs...)
}

// RunOne loads, analyzes and persists a single definition.
func (r *Runner) RunOne(ctx context.Context, def Definition) (*Result, error) {
	start := time.Now()
	model := string(def.Model)
	defer func() { r.metrics.AnalysisDuration.WithLabelValues(model).Observe(time.Since(start).Seconds()) }()

	res, err := r.analyze(ctx, def)
	if err != nil {
		r.metrics.AnalysisRuns.WithLabelValues(model, "error").Inc()
		return nil, err
	}
	r.metrics.AnalysisRuns.WithLabelValues(model, "success").Inc()
	return res, nil
}

func (r *Runner) analyze(ctx context.Context, def Definition) (*Result, error) {
	series, err := def.Load(r.dataDir)
	if err != nil {
		return nil, err
	}
	if series.Dropped > 0 {
		r.logger.Warn("observations without a value dropped", "analysis", def.Name, "dropped", series.Dropped)
	}

	res, err := Analyze(def, series, domain.Now())
	if err != nil {
		return nil, err
	}
	if def.FromYear != 0 && !res.Filtered {
		r.logger.Warn("no observations in the recent window, using the whole series", "analysis", def.Name, "from", def.FromYear)
	}
	for _, t := range res.Stationarity {
		if t.Err != nil {
			r.logger.Warn("stationarity test skipped", "analysis", def.Name, "series", t.Transform, "error", t.Err)
			continue
		}
		r.logger.Info("stationarity test",
			"analysis", def.Name,
			"series", t.Transform,
			"adf_statistic", t.Result.Statistic,
			"p_value", t.Result.PValue,
			"stationary", t.Result.Stationary(),
		)
	}

	path := ResultsPath(def, r.dataDir, r.resultsDir)
	if err := WriteResults(res, path); err != nil {
		return nil, err
	}
	r.logger.Info("analysis results written", "analysis", def.Name, "path", path, "forecast", res.Forecast.Values)

	if r.renderer != nil {
		files, err := r.renderer.Render(ctx, res, OutputDir(def, r.dataDir, r.chartDir))
		r.metrics.ChartsRendered.Add(float64(len(files)))
		if err != nil {
			return nil, fmt.Errorf("render charts: %w", err)
		}
		r.logger.Info("charts rendered", "analysis", def.Name, "files", len(files))
	}
	return res, nil
}
