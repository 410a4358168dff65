// Package retrieval ties the cache, index, ranker and synthesizer together for one repository.
package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"issuepatch/internal/cache"
	"issuepatch/internal/contextutil"
	"issuepatch/internal/hosting"
	"issuepatch/internal/issue"
	"issuepatch/internal/patch"
	"issuepatch/internal/rank"
	"issuepatch/internal/vectorstore"
)

// Deps are the collaborators an Engine is built from.
type Deps struct {
	Cache       *cache.Cache
	Index       vectorstore.Index
	Preparer    *issue.Preparer
	Synthesizer *patch.Synthesizer
}

// Options tune an Engine.
type Options struct {
	RepoName         string // owner/name, used in prompts
	Root             string // checkout root that pull request paths are relative to
	Describe         bool   // load or generate per-file descriptions
	FilterExtensions bool   // drop ranked files outside the issue's extension hints
}

// Engine answers retrieval queries over one repository. It is read-only after
// NewEngine returns.
type Engine struct {
	opts         Options
	ranker       *rank.Ranker
	preparer     *issue.Preparer
	synthesizer  *patch.Synthesizer
	descriptions map[string]string
}

// Score counts how many of a pull request's changed files were retrieved.
type Score struct {
	Hits    int
	Misses  int
	Nearest []string
}

// NewEngine loads the cached snapshot, builds the index over it and prepares the ranker.
func NewEngine(ctx context.Context, deps Deps, opts Options) (*Engine, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	paths, embeddings, err := deps.Cache.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	if err := deps.Index.Build(ctx, embeddings); err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	ranker, err := rank.New(deps.Index, paths, embeddings)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:        opts,
		ranker:      ranker,
		preparer:    deps.Preparer,
		synthesizer: deps.Synthesizer,
	}

	if opts.Describe {
		e.descriptions, err = deps.Cache.Descriptions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load descriptions: %w", err)
		}
	}

	logger.InfoContext(ctx, "retrieval engine ready",
		"repo", opts.RepoName,
		"files", len(paths),
		"descriptions", len(e.descriptions),
		"duration", time.Since(start))
	return e, nil
}

// Len returns the number of indexed files.
func (e *Engine) Len() int {
	return e.ranker.Len()
}

// Description returns the stored description of path, if any.
func (e *Engine) Description(path string) (string, bool) {
	d, ok := e.descriptions[path]
	return d, ok
}

// Prepare enriches and embeds iss if that has not happened yet.
func (e *Engine) Prepare(ctx context.Context, iss *issue.Issue) error {
	return e.preparer.Prepare(ctx, iss)
}

// NearestFiles returns up to k files most similar to iss.
func (e *Engine) NearestFiles(ctx context.Context, iss *issue.Issue, k int) ([]rank.Result, error) {
	if err := e.Prepare(ctx, iss); err != nil {
		return nil, err
	}
	results, err := e.ranker.Rank(ctx, iss.Embedding, k)
	if err != nil {
		return nil, err
	}
	if e.opts.FilterExtensions {
		results = rank.FilterExtensions(results, iss.AllowedExtensions)
	}
	return results, nil
}

// CrossValidate checks that the index and a brute-force scan agree on the top k for query.
func (e *Engine) CrossValidate(ctx context.Context, query []float32, k int) (bool, error) {
	indexed, err := e.ranker.Rank(ctx, query, k)
	if err != nil {
		return false, err
	}
	oracle := e.ranker.BruteForce(query, k)
	if !rank.Agree(indexed, oracle) {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "index and brute-force rankings disagree",
			"index", rank.Paths(indexed),
			"brute_force", rank.Paths(oracle))
		return false, nil
	}
	return true, nil
}

// Evaluate compares the nearest files for iss with the files pr changed.
func (e *Engine) Evaluate(ctx context.Context, iss *issue.Issue, pr *hosting.PullRequest, k int) (Score, error) {
	nearest, err := e.NearestFiles(ctx, iss, k)
	if err != nil {
		return Score{}, err
	}

	score := Score{Nearest: rank.Paths(nearest)}
	retrieved := make(map[string]struct{}, len(nearest))
	for _, res := range nearest {
		retrieved[res.Path] = struct{}{}
	}
	for _, file := range pr.ChangedFiles {
		if _, ok := retrieved[filepath.Join(e.opts.Root, filepath.FromSlash(file))]; ok {
			score.Hits++
		} else {
			score.Misses++
		}
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "evaluated retrieval against pull request",
		"issue", iss.Number,
		"pr", pr.Number,
		"hits", score.Hits,
		"misses", score.Misses)
	return score, nil
}

// Patches synthesizes patches for the k files nearest to iss.
func (e *Engine) Patches(ctx context.Context, iss *issue.Issue, k int) ([]patch.Patch, []patch.Attempt, error) {
	nearest, err := e.NearestFiles(ctx, iss, k)
	if err != nil {
		return nil, nil, err
	}
	patches, attempts := e.synthesizer.Synthesize(ctx, e.opts.RepoName, iss, rank.Paths(nearest))
	return patches, attempts, nil
}
