// Package vector provides the exact nearest-neighbour index over document embeddings.
package vector

import "context"

// VectorIndex stores fixed-dimension vectors at sequential positions and
// answers exact k-nearest-neighbour queries by Euclidean distance.
type VectorIndex interface {
	// Initialize fixes the dimension. Calling it again with the same dimension
	// is a no-op; a different dimension returns models.ErrDimensionMismatch.
	Initialize(dimension int) error
	// Add appends vectors and returns the position assigned to the first one.
	// Nothing is appended unless every vector has the index dimension.
	Add(ctx context.Context, vectors [][]float32) (int, error)
	// Search returns up to k neighbours ordered by ascending distance, ties by position.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Vector(position int) ([]float32, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimension() int
	Close() error
}

// Neighbor is a single search hit.
type Neighbor struct {
	Position int
	Distance float32 // squared Euclidean distance to the query
}
