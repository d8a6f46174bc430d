package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/helpline-ai/helpline/internal/provider"
)

// ChunkStore is the part of the store the ingestor writes through.
type ChunkStore interface {
	Add(ctx context.Context, chunk Chunk, embedding []float32) error
	DeleteBySource(ctx context.Context, source string) (int64, error)
}

// Ingestor loads documents from disk, splits them into chunks, embeds each
// chunk and writes it to the store. Use the provider's document embedder
// here, not the query embedder.
type Ingestor struct {
	store     ChunkStore
	embedder  provider.Embedder
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

func NewIngestor(store ChunkStore, embedder provider.Embedder, chunkSize, overlap int, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:     store,
		embedder:  embedder,
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    logger,
	}
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Documents int
	Chunks    int
}

// IngestDir ingests every .txt and .md file under dir, recursively. Each
// document's existing chunks are deleted before its new chunks are written,
// so re-running ingestion refreshes the corpus in place.
func (in *Ingestor) IngestDir(ctx context.Context, dir string) (*IngestStats, error) {
	stats := &IngestStats{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			return nil
		}

		n, err := in.ingestFile(ctx, dir, path)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		stats.Documents++
		stats.Chunks += n
		return nil
	})
	if err != nil {
		return nil, err
	}

	in.logger.Info("ingestion complete",
		"dir", dir,
		"documents", stats.Documents,
		"chunks", stats.Chunks)

	return stats, nil
}

func (in *Ingestor) ingestFile(ctx context.Context, root, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	source, err := filepath.Rel(root, path)
	if err != nil {
		source = path
	}
	source = filepath.ToSlash(source)

	chunks := SplitText(string(data), in.chunkSize, in.overlap)
	if len(chunks) == 0 {
		in.logger.Debug("skipping empty document", "source", source)
		return 0, nil
	}

	// Drop stale chunks first: a shrinking document must not leave
	// orphaned tail chunks behind.
	if _, err := in.store.DeleteBySource(ctx, source); err != nil {
		return 0, err
	}

	for i, content := range chunks {
		embedding, err := in.embedder.Embed(ctx, content)
		if err != nil {
			return 0, fmt.Errorf("embedding chunk %d: %w", i, err)
		}
		chunk := Chunk{Source: source, Ordinal: i, Content: content}
		if err := in.store.Add(ctx, chunk, embedding); err != nil {
			return 0, err
		}
	}

	in.logger.Debug("ingested document", "source", source, "chunks", len(chunks))
	return len(chunks), nil
}
