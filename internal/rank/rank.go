// Package rank orders repository files by similarity to a query embedding.
package rank

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"issuepatch/internal/vectorstore"
)

// Result is one ranked file.
type Result struct {
	Path  string
	Score float32
	Row   int
}

// Ranker maps index hits back to paths through the positional alignment of
// paths and embeddings.
type Ranker struct {
	index      vectorstore.Index
	paths      []string
	embeddings [][]float32
}

// New returns a Ranker over idx, which must have been built from embeddings.
// paths[i] names the file embedded at embeddings[i].
func New(idx vectorstore.Index, paths []string, embeddings [][]float32) (*Ranker, error) {
	if len(paths) != len(embeddings) {
		return nil, fmt.Errorf("paths and embeddings are misaligned: %d paths, %d embeddings", len(paths), len(embeddings))
	}
	if idx.Len() != len(embeddings) {
		return nil, fmt.Errorf("index holds %d vectors, expected %d", idx.Len(), len(embeddings))
	}
	return &Ranker{index: idx, paths: paths, embeddings: embeddings}, nil
}

// Len returns the number of ranked files.
func (r *Ranker) Len() int {
	return len(r.paths)
}

// Rank returns up to k files nearest to query using the vector index.
func (r *Ranker) Rank(ctx context.Context, query []float32, k int) ([]Result, error) {
	if k <= 0 || len(r.paths) == 0 {
		return []Result{}, nil
	}
	hits, err := r.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if hit.Row < 0 || hit.Row >= len(r.paths) {
			return nil, fmt.Errorf("index returned row %d outside %d paths", hit.Row, len(r.paths))
		}
		results = append(results, Result{Path: r.paths[hit.Row], Score: hit.Score, Row: hit.Row})
	}
	return results, nil
}

// BruteForce scores every embedding against query, sorts the full list and
// returns the top k. It shares no scoring or ordering code with the index and
// serves as an oracle for Rank. Equal scores keep path order.
func (r *Ranker) BruteForce(query []float32, k int) []Result {
	if k <= 0 || len(r.paths) == 0 {
		return []Result{}
	}
	results := make([]Result, len(r.embeddings))
	for i, e := range r.embeddings {
		var score float64
		for j := 0; j < len(query) && j < len(e); j++ {
			score += float64(query[j]) * float64(e[j])
		}
		results[i] = Result{Path: r.paths[i], Score: float32(score), Row: i}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Row < results[j].Row
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// Paths returns the paths of results in order.
func Paths(results []Result) []string {
	out := make([]string, len(results))
	for i, res := range results {
		out[i] = res.Path
	}
	return out
}

// FilterExtensions keeps results whose extension is in allowed.
// Extensions compare case-insensitively with a leading dot. When allowed is
// empty, or nothing would survive, results is returned unchanged.
func FilterExtensions(results []Result, allowed []string) []Result {
	if len(allowed) == 0 {
		return results
	}
	set := make(map[string]struct{}, len(allowed))
	for _, ext := range allowed {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}

	filtered := make([]Result, 0, len(results))
	for _, res := range results {
		if _, ok := set[strings.ToLower(filepath.Ext(res.Path))]; ok {
			filtered = append(filtered, res)
		}
	}
	if len(filtered) == 0 {
		return results
	}
	return filtered
}

// Agree reports whether a and b contain the same set of paths, ignoring order.
func Agree(a, b []Result) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, res := range a {
		seen[res.Path]++
	}
	for _, res := range b {
		if seen[res.Path] == 0 {
			return false
		}
		seen[res.Path]--
	}
	return true
}
