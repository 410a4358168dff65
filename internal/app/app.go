// Package app wires configuration into a ready retrieval engine for one repository.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"issuepatch/internal/cache"
	"issuepatch/internal/config"
	"issuepatch/internal/contextutil"
	"issuepatch/internal/gitrepo"
	"issuepatch/internal/handlers"
	"issuepatch/internal/hosting"
	"issuepatch/internal/issue"
	"issuepatch/internal/llm"
	"issuepatch/internal/patch"
	"issuepatch/internal/retrieval"
	"issuepatch/internal/vectorstore"
	"issuepatch/internal/walker"
)

// App holds the long-lived components built from a Config.
type App struct {
	Owner  string
	Name   string
	Repo   *gitrepo.Repo
	Cache  *cache.Cache
	Engine *retrieval.Engine
	Source *hosting.GitHubSource

	index   vectorstore.Index
	qdrant  *vectorstore.QdrantIndex
	closers []func() error
}

// Overrides replace values otherwise taken from Config.
type Overrides struct {
	Embedder  llm.Embedder
	Completer llm.Completer
	// SourceOptions are passed to the GitHub source, e.g. a test base URL.
	SourceOptions []hosting.GitHubOption
	// NoClone fails instead of cloning when the checkout is missing.
	NoClone bool
	// Rebuild discards cached snapshots before loading.
	Rebuild bool
}

// New opens (or clones) the checkout for cfg.Repo, loads or rebuilds its
// embedding snapshot, builds the configured index and returns the wired App.
func New(ctx context.Context, cfg *config.Config, ov Overrides) (*App, error) {
	logger := contextutil.LoggerFromContext(ctx)

	owner, name, err := hosting.ParseRepo(cfg.Repo)
	if err != nil {
		return nil, err
	}

	remote := gitrepo.RemoteURL(owner, name)
	if ov.NoClone {
		remote = ""
	}
	repo, err := gitrepo.Ensure(ctx, filepath.Join(cfg.ReposDir, owner, name), remote)
	if err != nil {
		return nil, err
	}
	if sha, err := repo.HeadSHA(); err == nil {
		logger.InfoContext(ctx, "repository checkout ready", "repo", cfg.Repo, "dir", repo.Dir(), "head", sha)
	}

	embedder := ov.Embedder
	if embedder == nil {
		embedder = llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDims)
	}
	completer := ov.Completer
	if completer == nil {
		completer = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	}

	// Validate embedding client vector size (fail-fast)
	probe, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		return nil, fmt.Errorf("failed to validate embedding client: %w", err)
	}
	if len(probe) != 1 || len(probe[0]) != cfg.EmbeddingDims {
		return nil, fmt.Errorf("embedding vector size mismatch: expected %d", cfg.EmbeddingDims)
	}

	a := &App{Owner: owner, Name: name, Repo: repo}

	a.Cache = cache.New(cfg.CacheDir, owner+"__"+name,
		walker.New(repo.Dir()),
		embedder, completer, cfg.EmbeddingDims,
		cache.WithMaxFiles(cfg.MaxFiles),
		cache.WithBatchSize(cfg.EmbedBatchSize),
		cache.WithSaveEvery(cfg.DescriptionSaveEvery),
		cache.WithModel(cfg.EmbeddingModelName),
		cache.WithTrustSnapshots(cfg.TrustSnapshots),
	)

	if ov.Rebuild {
		if err := a.Cache.Clear(); err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "cleared cached snapshots", "dir", cfg.CacheDir)
	}

	switch cfg.IndexBackend {
	case "qdrant":
		q, err := vectorstore.NewQdrantIndex(cfg.QdrantURL, qdrantCollection(cfg.QdrantCollection, owner, name), cfg.EmbeddingDims)
		if err != nil {
			return nil, err
		}
		a.qdrant = q
		a.index = q
		a.closers = append(a.closers, q.Close)
	default:
		a.index = vectorstore.NewFlatIndex(cfg.EmbeddingDims)
	}

	preparer := issue.NewPreparer(issue.NewEnricher(completer), embedder, cfg.EmbedEnriched)
	synthesizer := patch.NewSynthesizer(completer, patch.WithForceEdit(cfg.ForceEdit))

	a.Engine, err = retrieval.NewEngine(ctx, retrieval.Deps{
		Cache:       a.Cache,
		Index:       a.index,
		Preparer:    preparer,
		Synthesizer: synthesizer,
	}, retrieval.Options{
		RepoName:         cfg.Repo,
		Root:             repo.Dir(),
		Describe:         cfg.DescribeFiles,
		FilterExtensions: cfg.RankFilterExtensions,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Source, err = hosting.NewGitHubSource(ctx, owner, name, cfg.GitHubToken, ov.SourceOptions...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}

// qdrantCollection scopes the configured collection name to one repository.
func qdrantCollection(base, owner, name string) string {
	return base + "_" + strings.ToLower(owner+"_"+name)
}

// HealthChecks returns the named dependency checks served on /api/health.
func (a *App) HealthChecks() map[string]handlers.CheckFunc {
	checks := map[string]handlers.CheckFunc{
		"index": func(context.Context) error {
			if a.Engine.Len() == 0 {
				return errors.New("index is empty")
			}
			return nil
		},
	}
	if a.qdrant != nil {
		checks["qdrant"] = a.qdrant.Ping
	}
	return checks
}

// Close releases index connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
