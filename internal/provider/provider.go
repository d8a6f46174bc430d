// Package provider defines the canonical conversation model and the
// interfaces the retrieval pipeline and the agent depend on, plus adapters
// for the supported model providers (Cohere, Gemini, OpenAI).
//
// Everything above this package works in terms of Turn, Generation and
// ToolSpec; each adapter owns the translation to its SDK's wire format.
package provider

import (
	"context"
	"errors"
)

// ErrGeneration wraps every transport or provider failure of a generation
// call. Callers match it with errors.Is and decide the retry policy; the
// adapters never retry on their own.
var ErrGeneration = errors.New("generation provider error")

// Embedder produces a fixed-dimension embedding vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Ranking is one reranker judgment: the index of a candidate in the input
// slice and its relevance score, higher meaning more relevant.
type Ranking struct {
	Index int
	Score float64
}

// Reranker reorders candidate documents by relevance to the query and
// returns the top k rankings in descending score order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string, k int) ([]Ranking, error)
}

// Generator runs one model call over the conversation history with the
// given tool specs and returns either final text or tool call requests.
// Implementations wrap transport failures in ErrGeneration.
type Generator interface {
	Generate(ctx context.Context, history []Turn, tools []ToolSpec) (*Generation, error)
}
