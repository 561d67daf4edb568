package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/iran-stats-etl/internal/adapter/kafka"
	"github.com/couchcryptid/iran-stats-etl/internal/adapter/workbook"
	"github.com/couchcryptid/iran-stats-etl/internal/analysis"
	"github.com/couchcryptid/iran-stats-etl/internal/config"
	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/couchcryptid/iran-stats-etl/internal/observability"
	"github.com/couchcryptid/iran-stats-etl/internal/pipeline"
	"github.com/couchcryptid/iran-stats-etl/internal/topics"
	"github.com/spf13/cobra"
)

var (
	mergeSkipMissing bool
	mergeAPIDir      string
	mergeWorkbook    string
	mergeTopics      []string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge the source tables into the statistics document",
	Long: `Rebuilds every registered topic from the source tables and writes it into
the statistics document, replacing only the keys each topic owns.

The document must already exist (see "iranstats seed"). A topic missing from
the tables fails the run unless --skip-missing is set; the other topics are
merged either way.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if mergeSkipMissing {
			cfg.MissingTopicPolicy = config.MissingTopicSkip
		}
		if cmd.Flags().Changed("api-dir") {
			cfg.APIDir = mergeAPIDir
		}
		if cmd.Flags().Changed("workbook") {
			cfg.WorkbookPath = mergeWorkbook
		}
		return runMerge(cmd.Context(), cfg, mergeTopics, logger, metrics, cmd.OutOrStdout())
	},
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeSkipMissing, "skip-missing", false, "warn about topics absent from the tables instead of failing")
	mergeCmd.Flags().StringVar(&mergeAPIDir, "api-dir", "", "also write one JSON file per statistics section here (overrides API_DIR)")
	mergeCmd.Flags().StringVar(&mergeWorkbook, "workbook", "", "also export the merged topics to this .xlsx file (overrides WORKBOOK_PATH)")
	mergeCmd.Flags().StringArrayVar(&mergeTopics, "topic", nil, "merge only this topic label (repeatable)")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(ctx context.Context, cfg *config.Config, labels []string, logger *slog.Logger, metrics *observability.Metrics, out io.Writer) error {
	registry, err := topics.Load(cfg.TopicsFile)
	if err != nil {
		return err
	}
	if registry, err = selectTopics(registry, labels); err != nil {
		return err
	}

	var opts []pipeline.LoaderOption
	for _, def := range analysis.Definitions() {
		if def.Section != "" {
			opts = append(opts, pipeline.WithSection(def.Section, analysis.ResultsPath(def, cfg.DataDir, cfg.ResultsDir)))
		}
	}
	if cfg.APIDir != "" {
		opts = append(opts, pipeline.WithEndpointExport(cfg.APIDir))
	}

	var publishers []pipeline.Publisher
	if cfg.WorkbookPath != "" {
		publishers = append(publishers, workbook.NewExporter(cfg.WorkbookPath, logger))
	}
	if cfg.KafkaEnabled {
		notifier := kafka.NewNotifier(cfg, logger)
		defer func() {
			if err := notifier.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publishers = append(publishers, notifier)
	}

	p := pipeline.New(
		pipeline.NewTableExtractor(cfg.DataDir),
		pipeline.NewRecordBuilder(logger, metrics),
		pipeline.NewDocumentLoader(cfg.DocumentPath, cfg.LockTimeout, logger, metrics, opts...),
		registry,
		cfg.SkipMissingTopics(),
		logger,
		metrics,
		publishers...,
	)

	report, err := p.Run(ctx)
	printMergeReport(out, report)
	return err
}

// selectTopics narrows the registry to the given labels, in the order given.
// No labels selects every topic.
func selectTopics(registry []domain.TopicSpec, labels []string) ([]domain.TopicSpec, error) {
	if len(labels) == 0 {
		return registry, nil
	}
	out := make([]domain.TopicSpec, 0, len(labels))
	for _, label := range labels {
		spec, ok := topics.Find(registry, label)
		if !ok {
			return nil, fmt.Errorf("topic %q is not registered: %w", label, domain.ErrTopicNotFound)
		}
		out = append(out, spec)
	}
	return out, nil
}

func printMergeReport(w io.Writer, r pipeline.Report) {
	fmt.Fprintf(w, "merged:  %d %s\n", len(r.Merged), list(r.Merged))
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "skipped: %d %s\n", len(r.Skipped), list(r.Skipped))
	}
	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "failed:  %d %s\n", len(r.Failed), list(r.Failed))
	}
}

func list(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "(" + strings.Join(names, ", ") + ")"
}
