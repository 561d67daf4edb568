package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/couchcryptid/iran-stats-etl/internal/observability"
)

// Extractor reads the source tables.
type Extractor interface {
	Extract(ctx context.Context) (*Sources, error)
}

// Transformer builds one topic record from the source tables.
type Transformer interface {
	Transform(ctx context.Context, src *Sources, spec domain.TopicSpec) (domain.TopicRecord, error)
}

// Loader merges records into the destination document.
type Loader interface {
	Load(ctx context.Context, records []domain.TopicRecord) (LoadResult, error)
}

// Publisher hands merged records to a downstream consumer after the
// document is saved.
type Publisher interface {
	Publish(ctx context.Context, records []domain.TopicRecord) error
}

// Report summarizes one run.
type Report struct {
	Merged  []string
	Skipped []string
	Failed  []string
}

// Pipeline orchestrates the extract-transform-load run over the topic registry.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	publishers  []Publisher
	topics      []domain.TopicSpec
	skipMissing bool
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, t Transformer, l Loader, topics []domain.TopicSpec, skipMissing bool, logger *slog.Logger, metrics *observability.Metrics, publishers ...Publisher) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		publishers:  publishers,
		topics:      topics,
		skipMissing: skipMissing,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run processes every topic once. A topic that fails is reported and the
// remaining topics are still merged; the returned error joins every topic
// failure so the caller can exit non-zero.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	defer func() { p.metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	var report Report
	p.logger.Info("merge started", "topics", len(p.topics))

	src, err := p.extractor.Extract(ctx)
	if err != nil {
		return report, fmt.Errorf("extract: %w", err)
	}

	var errs []error
	records := make([]domain.TopicRecord, 0, len(p.topics))
	for _, spec := range p.topics {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rec, err := p.transformer.Transform(ctx, src, spec)
		if err != nil {
			if p.skipMissing && errors.Is(err, domain.ErrTopicNotFound) {
				p.logger.Warn("topic missing from source tables, skipping", "topic", spec.Label, "error", err)
				p.metrics.TopicsProcessed.WithLabelValues("skipped").Inc()
				report.Skipped = append(report.Skipped, spec.Label)
				continue
			}
			p.logger.Error("topic failed", "topic", spec.Label, "error", err)
			p.metrics.TopicsProcessed.WithLabelValues("failed").Inc()
			report.Failed = append(report.Failed, spec.Label)
			errs = append(errs, fmt.Errorf("topic %q: %w", spec.Label, err))
			continue
		}
		records = append(records, rec)
	}

	result, err := p.loader.Load(ctx, records)
	if err != nil {
		p.metrics.TopicsProcessed.WithLabelValues("failed").Add(float64(len(records)))
		for _, rec := range records {
			report.Failed = append(report.Failed, rec.Spec.Label)
		}
		return report, errors.Join(append(errs, fmt.Errorf("load: %w", err))...)
	}

	for _, rec := range records {
		if ferr, ok := result.Failed[rec.Spec.Label]; ok {
			p.logger.Error("topic not merged", "topic", rec.Spec.Label, "error", ferr)
			p.metrics.TopicsProcessed.WithLabelValues("failed").Inc()
			report.Failed = append(report.Failed, rec.Spec.Label)
			errs = append(errs, fmt.Errorf("topic %q: %w", rec.Spec.Label, ferr))
		}
	}
	for _, rec := range result.Merged {
		p.logger.Info("topic merged", "topic", rec.Spec.Label)
		p.metrics.TopicsProcessed.WithLabelValues("merged").Inc()
		report.Merged = append(report.Merged, rec.Spec.Label)
	}

	if len(result.Merged) > 0 {
		for _, pub := range p.publishers {
			if err := pub.Publish(ctx, result.Merged); err != nil {
				p.logger.Error("publish failed", "error", err)
				p.metrics.Notifications.WithLabelValues("error").Inc()
				errs = append(errs, fmt.Errorf("publish: %w", err))
				continue
			}
			p.metrics.Notifications.WithLabelValues("success").Inc()
		}
	}

	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}
	p.metrics.LastSuccess.SetToCurrentTime()
	p.logger.Info("merge finished", "merged", len(report.Merged), "skipped", len(report.Skipped))
	return report, nil
}
