package vectorstore

import "context"

// Hit is one nearest-neighbour result. Row is the position of the matched vector
// in the slice passed to Build.
type Hit struct {
	Row   int
	Score float32
}

// Index is an exact inner-product similarity index over a fixed set of vectors.
// It is immutable after Build; changing the vector set requires a new Build.
type Index interface {
	// Build replaces the indexed set with vectors.
	Build(ctx context.Context, vectors [][]float32) error

	// Search returns up to k hits ordered by descending score. Equal scores are
	// ordered by ascending row. When k exceeds the indexed count, all rows are returned.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Len returns the number of indexed vectors.
	Len() int
}
