package vectorstore

import (
	"context"
	"fmt"
	"sort"
)

// FlatIndex keeps every vector in memory and scores queries by a full scan.
// It does not normalize; callers supply unit-length vectors when cosine ranking is wanted.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex creates an empty index for vectors of width dim.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Build copies vectors into the index, replacing any previous contents.
func (f *FlatIndex) Build(ctx context.Context, vectors [][]float32) error {
	copied := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), f.dim)
		}
		copied[i] = append([]float32(nil), v...)
	}
	f.vectors = copied
	return nil
}

// Search returns the k rows with the highest inner product against query.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query has dimension %d, expected %d", len(query), f.dim)
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Row: i, Score: Dot(query, v)}
	}
	SortHits(hits)

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (f *FlatIndex) Len() int {
	return len(f.vectors)
}

// Dot returns the inner product of a and b, which must have equal length.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SortHits orders hits by descending score, then ascending row.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Row < hits[j].Row
	})
}
