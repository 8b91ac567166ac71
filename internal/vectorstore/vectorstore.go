// Package vectorstore defines the vector database contract used by ingestion
// and retrieval. Backends live in subpackages.
package vectorstore

import (
	"context"

	"github.com/mohammad-safakhou/newsrag/models"
)

// Point is a vector plus the chunk metadata stored with it.
type Point struct {
	ID      string
	Vector  []float32
	Payload models.ChunkPayload
}

// Hit is a search result; Score is the cosine similarity reported by the
// backend, higher is closer.
type Hit struct {
	ID      string
	Score   float32
	Payload models.ChunkPayload
}

// Store is a single named collection in a vector database.
type Store interface {
	// EnsureCollection creates the collection with cosine distance and the
	// given dimension if it does not exist yet.
	EnsureCollection(ctx context.Context, dimension int) error
	// Upsert writes points in one batch and returns once they are durable.
	// Points with an existing id replace the stored point.
	Upsert(ctx context.Context, points []Point) error
	// Search returns up to k hits ordered by descending similarity.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}
