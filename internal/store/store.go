// Package store defines the vector store contract shared by the chromem
// and Postgres backends.
package store

import (
	"context"

	"pdf-rag/internal/models"
)

// Result is one scored match from a similarity search.
type Result struct {
	ID         string
	Text       string
	Metadata   map[string]string
	Similarity float32
}

// VectorStore persists embedded fragments and supports nearest-neighbor
// search. Insert must be durable before it returns and safe for concurrent
// callers. Query on an empty store returns an empty slice, not an error.
type VectorStore interface {
	// Insert appends the fragments and returns how many entries were
	// written. It fails with models.ErrModelMismatch before writing
	// anything if the fragments were embedded with a different model or
	// dimensionality than the collection holds.
	Insert(ctx context.Context, fragments []models.Fragment) (int, error)

	// Query returns up to k entries ranked by descending cosine
	// similarity. A non-nil filter restricts candidates to entries whose
	// metadata matches every key/value pair exactly, before ranking.
	Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]Result, error)

	// Count reports the number of persisted entries.
	Count(ctx context.Context) (int, error)
}
