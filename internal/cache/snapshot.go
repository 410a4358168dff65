package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"issuepatch/internal/walker"
)

// ErrMisaligned is returned when the paths and embeddings snapshots disagree on
// row count, or the paths no longer appear in the order they were embedded in.
var ErrMisaligned = errors.New("paths and embeddings snapshots are misaligned")

// Manifest records the walked file set the paths and embeddings snapshots were built from.
type Manifest struct {
	walker.Fingerprint
	PathsHash string    `json:"paths_sha256"`
	Model     string    `json:"model,omitempty"`
	Dims      int       `json:"dims"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckPaths returns ErrMisaligned unless paths is the exact ordered list the
// manifest was written for.
func (m Manifest) CheckPaths(paths []string) error {
	if m.PathsHash != PathsDigest(paths) {
		return fmt.Errorf("%w: paths snapshot differs from the list that was embedded", ErrMisaligned)
	}
	return nil
}

// PathsDigest hashes paths in order.
func PathsDigest(paths []string) string {
	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func contentDigest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Files names the snapshot files of one repository inside a cache directory.
type Files struct {
	Paths        string
	Embeddings   string
	Descriptions string
	// DescriptionSources maps each described path to the sha256 of the content it was described from.
	DescriptionSources string
	Manifest           string
}

// SnapshotFiles returns the snapshot file names for repository name under dir.
func SnapshotFiles(dir, name string) Files {
	return Files{
		Paths:              filepath.Join(dir, name+"_paths.json"),
		Embeddings:         filepath.Join(dir, name+"_embeds.npy"),
		Descriptions:       filepath.Join(dir, name+"_descriptions.json"),
		DescriptionSources: filepath.Join(dir, name+"_descriptions_sha256.json"),
		Manifest:           filepath.Join(dir, name+"_manifest.json"),
	}
}

// LoadSnapshot loads the paths and embeddings snapshots together and checks that
// row i of the matrix has a path at index i.
func LoadSnapshot(files Files) ([]string, [][]float32, error) {
	var paths []string
	if err := readJSON(files.Paths, &paths); err != nil {
		return nil, nil, err
	}
	embeddings, err := ReadMatrix(files.Embeddings)
	if err != nil {
		return nil, nil, err
	}
	if len(paths) != len(embeddings) {
		return nil, nil, fmt.Errorf("%w: %d paths, %d embeddings", ErrMisaligned, len(paths), len(embeddings))
	}
	return paths, embeddings, nil
}

// SaveSnapshot writes the paths and embeddings snapshots.
func SaveSnapshot(files Files, paths []string, embeddings [][]float32, dim int) error {
	if len(paths) != len(embeddings) {
		return fmt.Errorf("%w: %d paths, %d embeddings", ErrMisaligned, len(paths), len(embeddings))
	}
	if err := writeJSON(files.Paths, paths); err != nil {
		return fmt.Errorf("failed to save paths: %w", err)
	}
	if err := WriteMatrix(files.Embeddings, embeddings, dim); err != nil {
		return fmt.Errorf("failed to save embeddings: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, raw)
}

// writeFileAtomic replaces path via a temp file and rename; readers see the old or the new file, never a partial one.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
