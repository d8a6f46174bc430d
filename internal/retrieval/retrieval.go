// Package retrieval implements the knowledge retrieval pipeline: embed the
// query, search the vector index, rerank the candidates and assemble a
// context block for the generation model.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/helpline-ai/helpline/internal/knowledge"
	"github.com/helpline-ai/helpline/internal/provider"
)

// ErrUnavailable indicates the embedder or the vector index could not be
// reached. Callers degrade to answering without sources; they never crash.
var ErrUnavailable = errors.New("retrieval unavailable")

// ErrInvalidLimits indicates the topK/rerankK constraint was violated. The
// check runs before any I/O.
var ErrInvalidLimits = errors.New("invalid retrieval limits")

// Result is one retrieved chunk with its relevance score, higher is more
// relevant.
type Result struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Index is the vector search the pipeline depends on, satisfied by
// *knowledge.Store.
type Index interface {
	Query(ctx context.Context, embedding []float32, k int) ([]knowledge.Hit, error)
}

// Pipeline runs retrieval. It is read-only with respect to the index:
// identical queries against an unchanged index return identical results.
//
// A nil reranker selects vector-order truncation: the topK vector hits are
// cut to rerankK with their similarity as the score. A reranker that fails
// at call time degrades the same way rather than failing the retrieval.
type Pipeline struct {
	embedder provider.Embedder
	index    Index
	reranker provider.Reranker
	topK     int
	rerankK  int
	logger   *slog.Logger
}

func New(embedder provider.Embedder, index Index, reranker provider.Reranker, topK, rerankK int, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		embedder: embedder,
		index:    index,
		reranker: reranker,
		topK:     topK,
		rerankK:  rerankK,
		logger:   logger,
	}
}

// Retrieve returns the rerankK most relevant chunks for query, in
// descending score order. topK candidates are fetched from the vector
// index first; the constraint topK >= rerankK > 0 is checked before any
// I/O.
func (p *Pipeline) Retrieve(ctx context.Context, query string, topK, rerankK int) ([]Result, error) {
	if rerankK <= 0 || topK < rerankK {
		return nil, fmt.Errorf("%w: need topK >= rerankK > 0, got topK=%d rerankK=%d",
			ErrInvalidLimits, topK, rerankK)
	}

	embedding, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrUnavailable, err)
	}

	hits, err := p.index.Query(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: searching index: %v", ErrUnavailable, err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	results := p.rerank(ctx, query, hits, rerankK)

	p.logger.Debug("retrieval complete",
		"candidates", len(hits),
		"results", len(results))

	return results, nil
}

func (p *Pipeline) rerank(ctx context.Context, query string, hits []knowledge.Hit, k int) []Result {
	if k > len(hits) {
		k = len(hits)
	}

	if p.reranker != nil {
		candidates := make([]string, len(hits))
		for i, h := range hits {
			candidates[i] = h.Chunk.Content
		}

		rankings, err := p.reranker.Rerank(ctx, query, candidates, k)
		if err == nil {
			results := make([]Result, 0, len(rankings))
			for _, r := range rankings {
				if r.Index < 0 || r.Index >= len(hits) {
					continue
				}
				results = append(results, Result{
					Source:  hits[r.Index].Chunk.Source,
					Content: hits[r.Index].Chunk.Content,
					Score:   r.Score,
				})
			}
			sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
			if len(results) > k {
				results = results[:k]
			}
			return results
		}
		p.logger.Warn("reranker failed, falling back to vector order", "error", err)
	}

	// Vector hits arrive in ascending distance order; similarity is the score.
	results := make([]Result, 0, k)
	for _, h := range hits[:k] {
		results = append(results, Result{
			Source:  h.Chunk.Source,
			Content: h.Chunk.Content,
			Score:   h.Similarity,
		})
	}
	return results
}

// BuildContext formats results as numbered source blocks for the model
// prompt. Empty results produce an empty string.
func BuildContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source %d: %s] (Relevance: %.2f)\n%s", i+1, r.Source, r.Score, r.Content)
	}
	return b.String()
}
