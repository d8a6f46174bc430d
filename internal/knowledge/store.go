package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Querier is the subset of pgx the store needs. Defined by the consumer so
// production passes *pgxpool.Pool and tests can substitute.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages knowledge chunks with vector similarity search over
// PostgreSQL + pgvector.
//
// Store is safe for concurrent use; it holds no mutable state beyond the
// connection pool.
type Store struct {
	db     Querier
	logger *slog.Logger
}

func NewStore(db Querier, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Add upserts a chunk with its embedding. A chunk is identified by
// (source, ordinal), so re-ingesting a document overwrites in place.
func (s *Store) Add(ctx context.Context, chunk Chunk, embedding []float32) error {
	const q = `
		INSERT INTO chunks (source, ordinal, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source, ordinal)
		DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`

	_, err := s.db.Exec(ctx, q, chunk.Source, chunk.Ordinal, chunk.Content, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("upserting chunk %s#%d: %w", chunk.Source, chunk.Ordinal, err)
	}
	return nil
}

// Query returns the k nearest chunks by cosine distance, most similar
// first. Ties break on chunk id so results are stable across calls.
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	const q = `
		SELECT id, source, ordinal, content, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM chunks
		ORDER BY embedding <=> $1, id
		LIMIT $2`

	rows, err := s.db.Query(ctx, q, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Chunk.ID, &h.Chunk.Source, &h.Chunk.Ordinal,
			&h.Chunk.Content, &h.Chunk.CreatedAt, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}

	s.logger.Debug("vector search", "k", k, "hits", len(hits))
	return hits, nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// DeleteBySource removes all chunks of one source document and reports how
// many were deleted.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM chunks WHERE source = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for %s: %w", source, err)
	}
	return tag.RowsAffected(), nil
}
