package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/document"
	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/couchcryptid/iran-stats-etl/internal/observability"
)

// Section is an externally produced JSON object embedded under
// iran_statistics.<Key>, e.g. the education analysis results.
type Section struct {
	Key  string
	Path string
}

// LoadResult reports which records reached the document.
type LoadResult struct {
	Merged []domain.TopicRecord
	Failed map[string]error // by topic label
}

// DocumentLoader merges records into the statistics document inside a
// file-locked read-modify-write.
// It implements Loader.
type DocumentLoader struct {
	path        string
	lockTimeout time.Duration
	sections    []Section
	apiDir      string
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// LoaderOption configures optional DocumentLoader behavior.
type LoaderOption func(*DocumentLoader)

// WithSection embeds the JSON file at path under iran_statistics.<key> when it exists.
func WithSection(key, path string) LoaderOption {
	return func(l *DocumentLoader) { l.sections = append(l.sections, Section{Key: key, Path: path}) }
}

// WithEndpointExport writes one file per statistics section to dir after saving.
func WithEndpointExport(dir string) LoaderOption {
	return func(l *DocumentLoader) { l.apiDir = dir }
}

// NewDocumentLoader creates a loader for the document at path.
func NewDocumentLoader(path string, lockTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...LoaderOption) *DocumentLoader {
	l := &DocumentLoader{
		path:        path,
		lockTimeout: lockTimeout,
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load applies each record. A record whose containers are missing is
// reported in Failed and leaves the document untouched; the others are
// still written. The returned error is reserved for failures that prevent
// writing at all.
func (l *DocumentLoader) Load(ctx context.Context, records []domain.TopicRecord) (LoadResult, error) {
	result := LoadResult{Failed: make(map[string]error)}

	// The lock file lives next to the document, so a missing directory
	// would otherwise surface as a lock error.
	if _, err := os.Stat(l.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, fmt.Errorf("load document %s: %w", l.path, domain.ErrFileNotFound)
		}
		return result, fmt.Errorf("stat document %s: %w", l.path, err)
	}

	err := document.WithLock(ctx, l.path, l.lockTimeout, func() error {
		doc, err := document.Load(l.path)
		if err != nil {
			return err
		}

		for _, rec := range records {
			if err := doc.Apply(rec); err != nil {
				result.Failed[rec.Spec.Label] = err
				continue
			}
			result.Merged = append(result.Merged, rec)
		}

		sectionsSet := l.applySections(doc)
		if len(result.Merged) == 0 && sectionsSet == 0 {
			l.logger.Warn("nothing to merge, document left unchanged", "path", l.path)
			return nil
		}

		if err := doc.Touch(domain.Now()); err != nil {
			return err
		}
		if err := doc.Save(l.path); err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		l.metrics.DocumentWrites.Inc()
		l.logger.Info("document saved", "path", l.path, "topics", len(result.Merged), "sections", sectionsSet)

		if l.apiDir != "" {
			written, err := document.ExportEndpoints(doc, l.apiDir)
			if err != nil {
				return fmt.Errorf("export endpoints: %w", err)
			}
			l.logger.Info("endpoints exported", "dir", l.apiDir, "files", len(written))
		}
		return nil
	})
	if err != nil {
		return LoadResult{Failed: result.Failed}, err
	}
	return result, nil
}

// applySections embeds the configured section files. A missing file is
// logged and skipped so that merges work before the analysis has run.
func (l *DocumentLoader) applySections(doc *document.Document) int {
	n := 0
	for _, s := range l.sections {
		data, err := os.ReadFile(s.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				l.logger.Info("section file not found, skipping", "section", s.Key, "path", s.Path)
			} else {
				l.logger.Warn("section file unreadable, skipping", "section", s.Key, "path", s.Path, "error", err)
			}
			continue
		}
		if err := doc.SetSection(s.Key, data); err != nil {
			l.logger.Warn("section not embedded", "section", s.Key, "path", s.Path, "error", err)
			continue
		}
		n++
	}
	return n
}
