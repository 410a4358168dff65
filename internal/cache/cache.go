// Package cache persists per-file embeddings, paths and descriptions of a repository
// so they are computed once and reused across runs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"issuepatch/internal/contextutil"
	"issuepatch/internal/llm"
	"issuepatch/internal/walker"
)

const descriptionPrompt = "A short summary in plain English of the above code is:"

// Cache owns the snapshot files of one repository.
type Cache struct {
	files     Files
	walker    *walker.Walker
	embedder  llm.Embedder
	completer llm.Completer
	dim       int
	model     string

	maxFiles  int
	batchSize int
	saveEvery int
	trust     bool

	fingerprint *walker.Fingerprint
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxFiles caps how many files a rebuild walks. Default 1000.
func WithMaxFiles(n int) Option {
	return func(c *Cache) { c.maxFiles = n }
}

// WithBatchSize sets how many files are embedded per request. Default 50.
func WithBatchSize(n int) Option {
	return func(c *Cache) { c.batchSize = n }
}

// WithSaveEvery sets how many new descriptions are generated between saves. Default 10.
func WithSaveEvery(n int) Option {
	return func(c *Cache) { c.saveEvery = n }
}

// WithModel records the embedding model name in the manifest. Snapshots built
// with a different model are rebuilt.
func WithModel(name string) Option {
	return func(c *Cache) { c.model = name }
}

// WithTrustSnapshots makes the getters load any existing snapshot without
// re-walking the repository to check it is fresh.
func WithTrustSnapshots(trust bool) Option {
	return func(c *Cache) { c.trust = trust }
}

// New creates a cache for repository name with snapshot files stored under dir.
// dim is the embedding width produced by embedder.
func New(dir, name string, w *walker.Walker, embedder llm.Embedder, completer llm.Completer, dim int, opts ...Option) *Cache {
	c := &Cache{
		files:     SnapshotFiles(dir, name),
		walker:    w,
		embedder:  embedder,
		completer: completer,
		dim:       dim,
		maxFiles:  1000,
		batchSize: 50,
		saveEvery: 10,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.batchSize = max(c.batchSize, 1)
	c.saveEvery = max(c.saveEvery, 1)
	return c
}

// Files returns the snapshot file names used by c.
func (c *Cache) Files() Files {
	return c.files
}

// Paths returns the ordered file paths. Index i corresponds to row i of Embeddings.
func (c *Cache) Paths(ctx context.Context) ([]string, error) {
	paths, _, err := c.snapshot(ctx)
	return paths, err
}

// Embeddings returns the embedding matrix, one row per path.
func (c *Cache) Embeddings(ctx context.Context) ([][]float32, error) {
	_, embeddings, err := c.snapshot(ctx)
	return embeddings, err
}

// Snapshot returns paths and embeddings from a single load so both are guaranteed aligned.
func (c *Cache) Snapshot(ctx context.Context) ([]string, [][]float32, error) {
	return c.snapshot(ctx)
}

func (c *Cache) snapshot(ctx context.Context) ([]string, [][]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)

	manifest, fresh, err := c.snapshotFresh(ctx)
	if err != nil {
		return nil, nil, err
	}
	if fresh {
		paths, embeddings, err := LoadSnapshot(c.files)
		if err == nil && manifest != nil {
			err = manifest.CheckPaths(paths)
		}
		switch {
		case err == nil && (len(embeddings) == 0 || len(embeddings[0]) == c.dim):
			logger.DebugContext(ctx, "loaded embedding snapshot", "files", len(paths))
			return paths, embeddings, nil
		case err == nil:
			logger.WarnContext(ctx, "embedding snapshot has wrong dimension, rebuilding", "got", len(embeddings[0]), "want", c.dim)
		case errors.Is(err, ErrMisaligned):
			logger.WarnContext(ctx, "embedding snapshot is misaligned, rebuilding", "error", err)
		default:
			logger.WarnContext(ctx, "failed to load embedding snapshot, rebuilding", "error", err)
		}
	}

	return c.rebuild(ctx)
}

// snapshotFresh reports whether the on-disk paths and embeddings snapshots may be
// reused, along with the manifest when one could be read.
func (c *Cache) snapshotFresh(ctx context.Context) (*Manifest, bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if !exists(c.files.Paths) || !exists(c.files.Embeddings) {
		return nil, false, nil
	}

	var manifest Manifest
	if err := readJSON(c.files.Manifest, &manifest); err != nil {
		if c.trust {
			return nil, true, nil
		}
		logger.InfoContext(ctx, "no usable snapshot manifest", "path", c.files.Manifest, "error", err)
		return nil, false, nil
	}
	if c.trust {
		return &manifest, true, nil
	}

	if manifest.Model != c.model {
		logger.InfoContext(ctx, "embedding model changed since snapshot", "snapshot_model", manifest.Model, "model", c.model)
		return &manifest, false, nil
	}

	current, err := c.currentFingerprint(ctx)
	if err != nil {
		return nil, false, err
	}
	if manifest.Fingerprint != current {
		logger.InfoContext(ctx, "repository changed since snapshot",
			"snapshot_files", manifest.Count, "current_files", current.Count)
		return &manifest, false, nil
	}
	return &manifest, manifest.Dims == c.dim, nil
}

func (c *Cache) currentFingerprint(ctx context.Context) (walker.Fingerprint, error) {
	if c.fingerprint != nil {
		return *c.fingerprint, nil
	}
	fp, err := c.walker.Fingerprint(ctx, c.maxFiles)
	if err != nil {
		return walker.Fingerprint{}, fmt.Errorf("failed to fingerprint repository: %w", err)
	}
	c.fingerprint = &fp
	return fp, nil
}

// rebuild walks the repository once, embedding files in fixed-size batches, and
// persists paths, embeddings and the manifest. Paths and rows are appended together
// so their order cannot diverge.
func (c *Cache) rebuild(ctx context.Context) ([]string, [][]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	var (
		paths      []string
		embeddings [][]float32
		batch      []string
		batchPaths []string
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		vecs, err := c.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to embed batch of %d files: %w", len(batch), err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(vecs))
		}
		for i, vec := range vecs {
			if len(vec) != c.dim {
				return fmt.Errorf("embedding for %s has dimension %d, expected %d", batchPaths[i], len(vec), c.dim)
			}
		}
		paths = append(paths, batchPaths...)
		embeddings = append(embeddings, vecs...)
		logger.InfoContext(ctx, "embedded batch", "batch_size", len(batch), "total", len(paths))
		batch, batchPaths = batch[:0], batchPaths[:0]
		return nil
	}

	err := c.walker.Walk(ctx, c.maxFiles, func(f walker.File) error {
		batch = append(batch, fmt.Sprintf("File: %s\n\n%s", f.Path, f.Content))
		batchPaths = append(batchPaths, f.Path)
		if len(batch) == c.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if err := flush(); err != nil {
		return nil, nil, err
	}

	if paths == nil {
		paths = []string{}
		embeddings = [][]float32{}
	}

	if err := SaveSnapshot(c.files, paths, embeddings, c.dim); err != nil {
		return nil, nil, err
	}

	fp, err := c.currentFingerprint(ctx)
	if err != nil {
		return nil, nil, err
	}
	if fp.Count != len(paths) {
		// The tree changed between fingerprinting and embedding; re-fingerprint so
		// the manifest describes what was actually embedded.
		c.fingerprint = nil
		if fp, err = c.currentFingerprint(ctx); err != nil {
			return nil, nil, err
		}
	}
	manifest := Manifest{
		Fingerprint: fp,
		PathsHash:   PathsDigest(paths),
		Model:       c.model,
		Dims:        c.dim,
		CreatedAt:   time.Now().UTC(),
	}
	if err := writeJSON(c.files.Manifest, manifest); err != nil {
		return nil, nil, fmt.Errorf("failed to save manifest: %w", err)
	}

	logger.InfoContext(ctx, "embedding snapshot rebuilt", "files", len(paths), "duration", time.Since(start))
	return paths, embeddings, nil
}

// Descriptions returns a natural-language description per file path.
// Existing descriptions are kept while the file content they were generated from
// is unchanged, and only missing or outdated ones are generated, so an interrupted
// run resumes where it stopped. Progress is saved every saveEvery files and when
// generation fails.
func (c *Cache) Descriptions(ctx context.Context) (map[string]string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	descriptions := make(map[string]string)
	sources := make(map[string]string)
	if exists(c.files.Descriptions) {
		if err := readJSON(c.files.Descriptions, &descriptions); err != nil {
			logger.WarnContext(ctx, "discarding unreadable descriptions snapshot", "error", err)
			descriptions = make(map[string]string)
		} else if c.trust {
			return descriptions, nil
		}
	}
	if exists(c.files.DescriptionSources) {
		if err := readJSON(c.files.DescriptionSources, &sources); err != nil {
			logger.WarnContext(ctx, "discarding unreadable description sources", "error", err)
			sources = make(map[string]string)
		}
	}

	live := make(map[string]struct{})
	generated, outdated := 0, 0
	err := c.walker.Walk(ctx, c.maxFiles, func(f walker.File) error {
		live[f.Path] = struct{}{}
		digest := contentDigest(f.Content)
		if _, ok := descriptions[f.Path]; ok {
			if sources[f.Path] == digest {
				return nil
			}
			outdated++
		}

		description, err := c.completer.Complete(ctx, describePrompt(f.Path, f.Content))
		if err != nil {
			return fmt.Errorf("failed to describe %s: %w", f.Path, err)
		}
		descriptions[f.Path] = "This file " + strings.TrimSpace(description)
		sources[f.Path] = digest
		generated++

		if generated%c.saveEvery == 0 {
			logger.InfoContext(ctx, "saving descriptions", "generated", generated, "total", len(descriptions))
			if err := c.saveDescriptions(descriptions, sources); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if generated > 0 {
			if saveErr := c.saveDescriptions(descriptions, sources); saveErr != nil {
				logger.ErrorContext(ctx, "failed to save descriptions", "error", saveErr)
			} else {
				logger.InfoContext(ctx, "saved descriptions before failing", "generated", generated)
			}
		}
		return nil, err
	}

	stale := 0
	for path := range descriptions {
		if _, ok := live[path]; !ok {
			delete(descriptions, path)
			stale++
		}
	}
	for path := range sources {
		if _, ok := descriptions[path]; !ok {
			delete(sources, path)
		}
	}

	if generated > 0 || stale > 0 || !exists(c.files.Descriptions) {
		if err := c.saveDescriptions(descriptions, sources); err != nil {
			return nil, err
		}
	}
	logger.InfoContext(ctx, "descriptions ready",
		"files", len(descriptions),
		"generated", generated,
		"regenerated", outdated,
		"dropped", stale)
	return descriptions, nil
}

// saveDescriptions writes descriptions before their sources, so a crash between
// the two leaves entries that are regenerated rather than trusted.
func (c *Cache) saveDescriptions(descriptions, sources map[string]string) error {
	if err := writeJSON(c.files.Descriptions, descriptions); err != nil {
		return fmt.Errorf("failed to save descriptions: %w", err)
	}
	if err := writeJSON(c.files.DescriptionSources, sources); err != nil {
		return fmt.Errorf("failed to save description sources: %w", err)
	}
	return nil
}

// Clear removes every snapshot file of the repository.
func (c *Cache) Clear() error {
	for _, path := range []string{c.files.Paths, c.files.Embeddings, c.files.Descriptions, c.files.DescriptionSources, c.files.Manifest} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	c.fingerprint = nil
	return nil
}

func describePrompt(path, code string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return fmt.Sprintf("File: %s\n\nCode:\n\n```%s\n%s```\n\n%s\nThis file", path, ext, code, descriptionPrompt)
}
