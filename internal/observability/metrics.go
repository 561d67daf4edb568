package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "iran_stats"

// Metrics holds the Prometheus counters, histograms, and gauges for one batch run.
// The job is short-lived, so metrics live on a private registry that is pushed
// to a Pushgateway when the run ends.
type Metrics struct {
	TopicsProcessed *prometheus.CounterVec // labels: outcome={merged,skipped,failed}
	MalformedCells  *prometheus.CounterVec // labels: table
	DocumentWrites  prometheus.Counter
	Notifications   *prometheus.CounterVec // labels: outcome={success,error}

	// Analysis metrics.
	AnalysisRuns     *prometheus.CounterVec // labels: model, outcome={success,error}
	ChartsRendered   prometheus.Counter
	AnalysisDuration *prometheus.HistogramVec // labels: model

	RunDuration prometheus.Histogram
	LastSuccess prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		TopicsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topics_processed_total",
			Help:      "Topics handled by the merge step, by outcome.",
		}, []string{"outcome"}),
		MalformedCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_cells_total",
			Help:      "Present cells that could not be parsed and were published as null.",
		}, []string{"table"}),
		DocumentWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_writes_total",
			Help:      "Successful atomic replacements of the statistics document.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Downstream publications of merged topics, by outcome.",
		}, []string{"outcome"}),
		AnalysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Per-topic analyses by forecasting model and outcome.",
		}, []string{"model", "outcome"}),
		ChartsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charts_rendered_total",
			Help:      "Chart images written to disk.",
		}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of one topic analysis including chart rendering.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"model"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete command run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that finished without errors.",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.TopicsProcessed,
		m.MalformedCells,
		m.DocumentWrites,
		m.Notifications,
		m.AnalysisRuns,
		m.ChartsRendered,
		m.AnalysisDuration,
		m.RunDuration,
		m.LastSuccess,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry so tests can
// inspect values without sharing state.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// Push sends the current values to a Pushgateway under the given job name.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
