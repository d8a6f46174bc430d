package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helpline-ai/helpline/internal/knowledge"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Chunk, embed and store every .txt and .md document under a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ingestor := knowledge.NewIngestor(rt.chunks, rt.suite.DocumentEmbedder, cfg.ChunkSize, cfg.ChunkOverlap, logger)

	stats, err := ingestor.IngestDir(ctx, args[0])
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", args[0], err)
	}

	fmt.Printf("Ingested %d documents (%d chunks).\n", stats.Documents, stats.Chunks)
	return nil
}
