// Package walker enumerates the candidate source files of a repository checkout.
package walker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"issuepatch/internal/contextutil"
)

// ErrStop may be returned by a WalkFunc to end the traversal early without error.
var ErrStop = errors.New("stop walking")

// DefaultExtensions is the allow-list of source, doc and config extensions.
var DefaultExtensions = []string{
	".js", ".jsx", ".py", ".json", ".html", ".css", ".scss", ".yml", ".yaml",
	".ts", ".tsx", ".ipynb", ".c", ".cc", ".cpp", ".go", ".h", ".hpp",
	".java", ".sol", ".sh", ".txt",
}

// DefaultDirBlacklist holds directory name prefixes that are never descended into.
var DefaultDirBlacklist = []string{"build", "dist", ".github", "site", "tests"}

// File is a candidate file yielded by Walk.
type File struct {
	Path    string   // Root-joined path, the stable identifier used by the caches
	RelPath string   // Path relative to the root, slash separated
	Dir     string   // Containing directory (root-joined)
	Subdirs []string // Subdirectories of Dir that survive pruning
	Content string
}

// WalkFunc is called once per yielded file.
type WalkFunc func(File) error

// Walker traverses one repository root.
type Walker struct {
	root       string
	extensions map[string]struct{}
	blacklist  []string
}

// Option configures a Walker.
type Option func(*Walker)

// WithExtensions replaces the extension allow-list.
func WithExtensions(exts ...string) Option {
	return func(w *Walker) {
		w.extensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			w.extensions[strings.ToLower(ext)] = struct{}{}
		}
	}
}

// WithDirBlacklist replaces the directory prefix blacklist.
func WithDirBlacklist(prefixes ...string) Option {
	return func(w *Walker) {
		w.blacklist = append([]string(nil), prefixes...)
	}
}

// New creates a Walker rooted at root.
func New(root string, opts ...Option) *Walker {
	w := &Walker{root: root}
	WithExtensions(DefaultExtensions...)(w)
	WithDirBlacklist(DefaultDirBlacklist...)(w)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the directory the walker traverses.
func (w *Walker) Root() string {
	return w.root
}

// Walk performs a fresh top-down traversal and calls fn for every included file.
// Within a directory, files are yielded before any subdirectory is entered, both in lexical order.
// The walk stops once maxFiles files have been yielded; maxFiles <= 0 means no limit.
// Files that are not valid UTF-8 or contain only whitespace are skipped and not counted.
func (w *Walker) Walk(ctx context.Context, maxFiles int, fn WalkFunc) error {
	yielded := 0
	err := w.walkDir(ctx, w.root, maxFiles, &yielded, fn)
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

func (w *Walker) walkDir(ctx context.Context, dir string, maxFiles int, yielded *int, fn WalkFunc) error {
	logger := contextutil.LoggerFromContext(ctx)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files, subdirs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if w.includeDir(name) {
				subdirs = append(subdirs, name)
			}
			continue
		}
		if entry.Type().IsRegular() && w.includeFile(name) {
			files = append(files, name)
		}
	}

	for _, name := range files {
		if maxFiles > 0 && *yielded >= maxFiles {
			return ErrStop
		}

		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", path, err)
		}
		if !utf8.Valid(raw) {
			logger.DebugContext(ctx, "skipping undecodable file", "path", path)
			continue
		}
		content := string(raw)
		if strings.TrimSpace(content) == "" {
			continue
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}

		if err := fn(File{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Dir:     dir,
			Subdirs: append([]string(nil), subdirs...),
			Content: content,
		}); err != nil {
			return err
		}
		*yielded++
	}

	for _, name := range subdirs {
		if err := w.walkDir(ctx, filepath.Join(dir, name), maxFiles, yielded, fn); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) includeFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := w.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (w *Walker) includeDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, prefix := range w.blacklist {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return true
}

// Fingerprint summarizes the walked file set.
type Fingerprint struct {
	Count int    `json:"file_count"`
	Hash  string `json:"fingerprint"`
}

// Fingerprint re-walks the tree and hashes every yielded path together with its content.
// Any addition, removal, rename, reorder or edit within the first maxFiles files changes the hash.
func (w *Walker) Fingerprint(ctx context.Context, maxFiles int) (Fingerprint, error) {
	h := sha256.New()
	count := 0
	err := w.Walk(ctx, maxFiles, func(f File) error {
		sum := sha256.Sum256([]byte(f.Content))
		h.Write([]byte(f.Path))
		h.Write([]byte{0})
		h.Write(sum[:])
		count++
		return nil
	})
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Count: count, Hash: hex.EncodeToString(h.Sum(nil))}, nil
}
