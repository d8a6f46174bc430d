// Package knowledge stores and searches the support knowledge base:
// document chunks with pgvector embeddings in PostgreSQL.
package knowledge

import "time"

// Chunk is one piece of a source document. Source is the document path
// relative to the ingestion root; Ordinal is the chunk's position within
// the document. The pair is unique.
type Chunk struct {
	ID        int64
	Source    string
	Ordinal   int
	Content   string
	CreatedAt time.Time
}

// Hit is a chunk returned by vector search together with its cosine
// similarity to the query, in [0, 1] for normalized embeddings.
type Hit struct {
	Chunk      Chunk
	Similarity float64
}
