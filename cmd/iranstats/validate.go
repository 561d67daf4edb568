package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/iran-stats-etl/internal/config"
	"github.com/couchcryptid/iran-stats-etl/internal/document"
	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/couchcryptid/iran-stats-etl/internal/pipeline"
	"github.com/couchcryptid/iran-stats-etl/internal/table"
	"github.com/couchcryptid/iran-stats-etl/internal/topics"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

// worldYearsKey is the only key of a world object that is not a country.
const worldYearsKey = "chartYears"

// errValidationFailed is returned when any phase reports an error.
var errValidationFailed = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the source tables and the statistics document for consistency",
	Long: `Runs three integrity phases and prints PASS or FAIL for each:

  1. source coverage: every registered topic has rows in the summary, details
     and Iran tables, world topics in the world table, and one citation row
     per country
  2. document schema: every container a topic writes into exists
  3. document consistency: the values rebuilt from the tables equal the ones
     in the document

Exits non-zero when any phase fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runValidate(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func runValidate(ctx context.Context, cfg *config.Config, out io.Writer) error {
	fmt.Fprintln(out, "=== Iran Statistics Integrity Validation ===")
	fmt.Fprintln(out)

	registry, err := topics.Load(cfg.TopicsFile)
	if err != nil {
		return err
	}
	src, err := pipeline.NewTableExtractor(cfg.DataDir).Extract(ctx)
	if err != nil {
		return fmt.Errorf("load source tables: %w", err)
	}
	doc, err := document.Load(cfg.DocumentPath)
	if err != nil {
		return err
	}

	phases := []*phase{
		validateSourceCoverage(src, registry),
		validateDocumentSchema(doc, registry),
		validateDocumentConsistency(src, doc, registry),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Topics: %d registered, %d in summary table, %d in world table\n",
		len(registry), len(src.Summary.Topics()), len(src.World.Topics()))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return nil
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return errValidationFailed
}

// ── Phase 1: source coverage ──

func validateSourceCoverage(src *pipeline.Sources, registry []domain.TopicSpec) *phase {
	p := &phase{name: "Phase 1: Source coverage"}

	for _, spec := range registry {
		for _, tbl := range []*table.Table{src.Summary, src.Details, src.Iran} {
			if _, err := tbl.SelectTopic(spec.Label); err != nil {
				p.errorf("%s: no row for %q", tbl.Name(), spec.Label)
			}
		}

		if !spec.World {
			continue
		}
		world, err := src.World.SelectTopic(spec.Label)
		if err != nil {
			p.errorf("%s: no rows for %q", src.World.Name(), spec.Label)
			continue
		}
		citations, err := src.WorldSources.SelectTopic(spec.Label)
		if err != nil {
			p.errorf("%s: no citation rows for %q", src.WorldSources.Name(), spec.Label)
			continue
		}
		if world.Len() != citations.Len() {
			p.errorf("%q: %d countries but %d citation rows", spec.Label, world.Len(), citations.Len())
		}
	}
	return p
}

// ── Phase 2: document schema ──

func validateDocumentSchema(doc *document.Document, registry []domain.TopicSpec) *phase {
	p := &phase{name: "Phase 2: Document schema"}
	if !doc.Get(document.Root, "metadata").IsObject() {
		p.errorf("document has no %s.metadata object", document.Root)
	}
	for _, spec := range registry {
		if err := doc.CheckSchema(spec); err != nil {
			p.errorf("%v", err)
		}
	}
	return p
}

// ── Phase 3: document consistency ──

// validateDocumentConsistency merges each rebuilt record into a copy of the
// document and reports the topics whose owned values would change. A merge
// never removes a country, so countries the world table no longer lists are
// checked separately.
func validateDocumentConsistency(src *pipeline.Sources, doc *document.Document, registry []domain.TopicSpec) *phase {
	p := &phase{name: "Phase 3: Document matches source tables"}

	for _, spec := range registry {
		rec, _, err := pipeline.BuildTopicRecord(src, spec)
		if err != nil {
			p.errorf("%q: rebuild: %v", spec.Label, err)
			continue
		}
		merged, err := document.Parse(doc.Bytes())
		if err != nil {
			p.errorf("%v", err)
			return p
		}
		if err := merged.Apply(rec); err != nil {
			p.errorf("%q: %v", spec.Label, err)
			continue
		}

		for _, path := range [][]string{document.StatisticsPath(spec), document.DetailsPath(spec)} {
			want := merged.Get(path...).Value()
			got := doc.Get(path...).Value()
			if diff := cmp.Diff(want, got); diff != "" {
				p.errorf("%s is stale (-tables +document):\n%s", strings.Join(path, "."), diff)
			}
		}

		if spec.World && rec.World != nil {
			world := document.WorldPath(spec)
			doc.Get(world...).ForEach(func(key, _ gjson.Result) bool {
				country := key.String()
				if country == worldYearsKey {
					return true
				}
				if _, ok := rec.World.Entries[country]; !ok {
					p.errorf("%s.%s: country is not in %s", strings.Join(world, "."), country, src.World.Name())
				}
				return true
			})
		}
	}
	return p
}
