package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/iran-stats-etl/internal/config"
	"github.com/couchcryptid/iran-stats-etl/internal/document"
	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	"github.com/couchcryptid/iran-stats-etl/internal/topics"
	"github.com/spf13/cobra"
)

var seedForce bool

// errDocumentExists guards an existing document against seed.
var errDocumentExists = errors.New("document already exists")

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create an empty statistics document for the registered topics",
	Long: `Writes a document skeleton with the metadata block, zeroed statistics and
empty details for every registered topic, so that a first merge has every
container it writes into. Merging never creates the document by itself.

An existing document is only replaced with --force.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSeed(cmd.Context(), cfg, seedForce, logger, cmd.OutOrStdout())
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "overwrite an existing document")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(ctx context.Context, cfg *config.Config, force bool, logger *slog.Logger, out io.Writer) error {
	registry, err := topics.Load(cfg.TopicsFile)
	if err != nil {
		return err
	}
	data, err := document.Skeleton(registry, document.DefaultMetadata(domain.Now()))
	if err != nil {
		return fmt.Errorf("build skeleton: %w", err)
	}

	dir := filepath.Dir(cfg.DocumentPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	err = document.WithLock(ctx, cfg.DocumentPath, cfg.LockTimeout, func() error {
		_, err := os.Stat(cfg.DocumentPath)
		switch {
		case err == nil && !force:
			return fmt.Errorf("%s: %w (use --force to replace it)", cfg.DocumentPath, errDocumentExists)
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("stat %s: %w", cfg.DocumentPath, err)
		}
		return document.WriteFileAtomic(cfg.DocumentPath, data, 0o644)
	})
	if err != nil {
		return err
	}

	logger.Info("document seeded", "path", cfg.DocumentPath, "topics", len(registry))
	fmt.Fprintf(out, "seeded %s with %d topics\n", cfg.DocumentPath, len(registry))
	return nil
}
