package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/helpline-ai/helpline/internal/log"
)

type fakeChunkStore struct {
	added   []Chunk
	deleted []string
	addErr  error
}

func (f *fakeChunkStore) Add(_ context.Context, chunk Chunk, _ []float32) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, chunk)
	return nil
}

func (f *fakeChunkStore) DeleteBySource(_ context.Context, source string) (int64, error) {
	f.deleted = append(f.deleted, source)
	return 0, nil
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	return []float32{1, 0, 0}, nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "faq.md", "How do I reset my password? Visit the settings page.")
	writeFile(t, dir, "policies/refunds.txt", "Refunds are processed within 5 business days.")
	writeFile(t, dir, "ignore.json", `{"not": "ingested"}`)

	store := &fakeChunkStore{}
	embedder := &fakeEmbedder{}
	ing := NewIngestor(store, embedder, 500, 50, log.NewNop())

	stats, err := ing.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestDir() error: %v", err)
	}

	if stats.Documents != 2 {
		t.Errorf("documents = %d, want 2 (.json must be skipped)", stats.Documents)
	}
	if stats.Chunks != 2 {
		t.Errorf("chunks = %d, want 2", stats.Chunks)
	}
	if embedder.calls != 2 {
		t.Errorf("embedder calls = %d, want 2", embedder.calls)
	}

	// Sources are slash-separated paths relative to the ingest root.
	sources := map[string]bool{}
	for _, c := range store.added {
		sources[c.Source] = true
		if c.Ordinal != 0 {
			t.Errorf("single-chunk document got ordinal %d", c.Ordinal)
		}
	}
	if !sources["faq.md"] || !sources["policies/refunds.txt"] {
		t.Errorf("unexpected sources: %v", sources)
	}

	// Stale chunks are dropped before re-adding.
	if len(store.deleted) != 2 {
		t.Errorf("DeleteBySource calls = %d, want 2", len(store.deleted))
	}
}

func TestIngestDir_SequentialOrdinals(t *testing.T) {
	dir := t.TempDir()
	var long string
	for i := 0; i < 200; i++ {
		long += "support articles need enough words to split across chunks "
	}
	writeFile(t, dir, "big.txt", long)

	store := &fakeChunkStore{}
	ing := NewIngestor(store, &fakeEmbedder{}, 500, 50, log.NewNop())

	if _, err := ing.IngestDir(context.Background(), dir); err != nil {
		t.Fatalf("IngestDir() error: %v", err)
	}

	if len(store.added) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(store.added))
	}
	for i, c := range store.added {
		if c.Ordinal != i {
			t.Errorf("chunk %d has ordinal %d", i, c.Ordinal)
		}
	}
}

func TestIngestDir_EmbedError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "some content")

	wantErr := errors.New("quota exceeded")
	ing := NewIngestor(&fakeChunkStore{}, &fakeEmbedder{err: wantErr}, 500, 50, log.NewNop())

	if _, err := ing.IngestDir(context.Background(), dir); !errors.Is(err, wantErr) {
		t.Errorf("IngestDir() = %v, want wrapped embed error", err)
	}
}

func TestIngestDir_MissingDir(t *testing.T) {
	ing := NewIngestor(&fakeChunkStore{}, &fakeEmbedder{}, 500, 50, log.NewNop())
	if _, err := ing.IngestDir(context.Background(), "/does/not/exist"); err == nil {
		t.Error("expected error for missing directory")
	}
}
