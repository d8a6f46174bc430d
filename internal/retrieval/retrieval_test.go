package retrieval

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/helpline-ai/helpline/internal/knowledge"
	"github.com/helpline-ai/helpline/internal/log"
	"github.com/helpline-ai/helpline/internal/provider"
)

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

type stubIndex struct {
	hits  []knowledge.Hit
	calls int
	err   error
}

func (s *stubIndex) Query(_ context.Context, _ []float32, k int) ([]knowledge.Hit, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if k > len(s.hits) {
		k = len(s.hits)
	}
	return s.hits[:k], nil
}

// stubReranker scores candidate i as scores[i] and returns the top k.
type stubReranker struct {
	scores []float64
	err    error
}

func (s *stubReranker) Rerank(_ context.Context, _ string, candidates []string, k int) ([]provider.Ranking, error) {
	if s.err != nil {
		return nil, s.err
	}
	rankings := make([]provider.Ranking, len(candidates))
	for i := range candidates {
		rankings[i] = provider.Ranking{Index: i, Score: s.scores[i]}
	}
	// Descending by score, as a real reranker returns them.
	for i := 0; i < len(rankings); i++ {
		for j := i + 1; j < len(rankings); j++ {
			if rankings[j].Score > rankings[i].Score {
				rankings[i], rankings[j] = rankings[j], rankings[i]
			}
		}
	}
	if k < len(rankings) {
		rankings = rankings[:k]
	}
	return rankings, nil
}

// tenHits builds 10 candidates whose vector order does not match the
// reranker's preference.
func tenHits() []knowledge.Hit {
	hits := make([]knowledge.Hit, 10)
	for i := range hits {
		hits[i] = knowledge.Hit{
			Chunk: knowledge.Chunk{
				Source:  fmt.Sprintf("doc%d.md", i),
				Content: fmt.Sprintf("content %d", i),
			},
			Similarity: 1.0 - float64(i)*0.05,
		}
	}
	return hits
}

func TestRetrieve_RerankedTopK(t *testing.T) {
	// The reranker prefers candidates 7, 2, 5 in that order.
	scores := []float64{0.1, 0.2, 0.8, 0.3, 0.1, 0.7, 0.2, 0.9, 0.1, 0.3}

	p := New(&stubEmbedder{}, &stubIndex{hits: tenHits()}, &stubReranker{scores: scores}, 10, 3, log.NewNop())

	results, err := p.Retrieve(context.Background(), "query", 10, 3)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("result count = %d, want exactly 3", len(results))
	}
	wantSources := []string{"doc7.md", "doc2.md", "doc5.md"}
	for i, want := range wantSources {
		if results[i].Source != want {
			t.Errorf("result %d source = %s, want %s", i, results[i].Source, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending score order at %d: %f > %f",
				i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestRetrieve_Idempotent(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.8, 0.3, 0.1, 0.7, 0.2, 0.9, 0.1, 0.3}
	p := New(&stubEmbedder{}, &stubIndex{hits: tenHits()}, &stubReranker{scores: scores}, 10, 3, log.NewNop())

	first, err := p.Retrieve(context.Background(), "query", 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Retrieve(context.Background(), "query", 10, 3)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical calls returned different results:\n%v\n%v", first, second)
	}
}

func TestRetrieve_InvalidLimits(t *testing.T) {
	embedder := &stubEmbedder{}
	index := &stubIndex{hits: tenHits()}
	p := New(embedder, index, nil, 10, 3, log.NewNop())

	tests := []struct {
		name    string
		topK    int
		rerankK int
	}{
		{"zero rerankK", 10, 0},
		{"negative rerankK", 10, -1},
		{"topK below rerankK", 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Retrieve(context.Background(), "q", tt.topK, tt.rerankK)
			if !errors.Is(err, ErrInvalidLimits) {
				t.Errorf("Retrieve() = %v, want ErrInvalidLimits", err)
			}
		})
	}

	// Validation must run before any I/O.
	if embedder.calls != 0 || index.calls != 0 {
		t.Errorf("collaborators called on invalid input: embedder=%d index=%d",
			embedder.calls, index.calls)
	}
}

func TestRetrieve_EmbedderFailure(t *testing.T) {
	p := New(&stubEmbedder{err: errors.New("connection refused")},
		&stubIndex{hits: tenHits()}, nil, 10, 3, log.NewNop())

	_, err := p.Retrieve(context.Background(), "q", 10, 3)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Retrieve() = %v, want ErrUnavailable", err)
	}
}

func TestRetrieve_IndexFailure(t *testing.T) {
	p := New(&stubEmbedder{}, &stubIndex{err: errors.New("pool closed")}, nil, 10, 3, log.NewNop())

	_, err := p.Retrieve(context.Background(), "q", 10, 3)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Retrieve() = %v, want ErrUnavailable", err)
	}
}

func TestRetrieve_NilRerankerTruncatesVectorOrder(t *testing.T) {
	p := New(&stubEmbedder{}, &stubIndex{hits: tenHits()}, nil, 10, 3, log.NewNop())

	results, err := p.Retrieve(context.Background(), "q", 10, 3)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("result count = %d, want 3", len(results))
	}
	for i, want := range []string{"doc0.md", "doc1.md", "doc2.md"} {
		if results[i].Source != want {
			t.Errorf("result %d source = %s, want %s (vector order)", i, results[i].Source, want)
		}
	}
}

func TestRetrieve_RerankerFailureFallsBack(t *testing.T) {
	p := New(&stubEmbedder{}, &stubIndex{hits: tenHits()},
		&stubReranker{err: errors.New("rerank quota")}, 10, 3, log.NewNop())

	results, err := p.Retrieve(context.Background(), "q", 10, 3)
	if err != nil {
		t.Fatalf("reranker failure should degrade, not fail: %v", err)
	}
	if len(results) != 3 || results[0].Source != "doc0.md" {
		t.Errorf("fallback should keep vector order, got %v", results)
	}
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	p := New(&stubEmbedder{}, &stubIndex{}, nil, 10, 3, log.NewNop())

	results, err := p.Retrieve(context.Background(), "q", 10, 3)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("empty index should yield no results, got %d", len(results))
	}
}

func TestBuildContext(t *testing.T) {
	results := []Result{
		{Source: "faq.md", Content: "Reset your password in settings.", Score: 0.91},
		{Source: "refunds.md", Content: "Refunds take 5 days.", Score: 0.62},
	}

	got := BuildContext(results)

	if !strings.Contains(got, "[Source 1: faq.md] (Relevance: 0.91)") {
		t.Errorf("missing first source header:\n%s", got)
	}
	if !strings.Contains(got, "[Source 2: refunds.md] (Relevance: 0.62)") {
		t.Errorf("missing second source header:\n%s", got)
	}
	if !strings.Contains(got, "Reset your password in settings.") {
		t.Errorf("missing chunk content:\n%s", got)
	}
}

func TestBuildContext_Empty(t *testing.T) {
	if got := BuildContext(nil); got != "" {
		t.Errorf("BuildContext(nil) = %q, want empty", got)
	}
}
