package cache

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"issuepatch/internal/llm/mocks"
	"issuepatch/internal/walker"
)

// fakeEmbedder derives a 2-d vector from each text and records batch sizes.
type fakeEmbedder struct {
	batches []int
	err     error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, len(texts))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = textVector(text)
	}
	return out, nil
}

func textVector(text string) []float32 {
	var sum int
	for _, b := range []byte(text) {
		sum += int(b)
	}
	return []float32{float32(len(text)), float32(sum % 97)}
}

func (f *fakeEmbedder) calls() int {
	return len(f.batches)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return root
}

var sampleTree = map[string]string{
	"a.go":          "package a\n\nfunc A() int { return 1 }\n",
	"b.py":          "def b():\n    return 2\n",
	"pkg/c.go":      "package pkg\n",
	"pkg/d/e.js":    "export const e = 5;\n",
	"README.md":     "not an allowed extension\n",
	"tests/skip.go": "package tests\n",
}

func TestCache_Snapshot_BuildsAndPersists(t *testing.T) {
	root := writeTree(t, sampleTree)
	dir := t.TempDir()
	emb := &fakeEmbedder{}
	c := New(dir, "sample", walker.New(root), emb, nil, 2)

	paths, embeddings, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	want := []string{
		filepath.Join(root, "a.go"),
		filepath.Join(root, "b.py"),
		filepath.Join(root, "pkg", "c.go"),
		filepath.Join(root, "pkg", "d", "e.js"),
	}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("Snapshot() paths = %v, want %v", paths, want)
	}
	if len(embeddings) != len(paths) {
		t.Fatalf("Snapshot() embeddings = %d rows, want %d", len(embeddings), len(paths))
	}

	files := c.Files()
	for _, path := range []string{files.Paths, files.Embeddings, files.Manifest} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("snapshot file %s missing: %v", path, err)
		}
	}

	var manifest Manifest
	if err := readJSON(files.Manifest, &manifest); err != nil {
		t.Fatalf("readJSON(manifest) error = %v", err)
	}
	if manifest.Count != 4 || manifest.Dims != 2 || manifest.Hash == "" {
		t.Errorf("manifest = %+v, want 4 files of dim 2", manifest)
	}
}

func TestCache_Snapshot_RowsMatchPaths(t *testing.T) {
	root := writeTree(t, sampleTree)
	dir := t.TempDir()
	c := New(dir, "sample", walker.New(root), &fakeEmbedder{}, nil, 2)
	if _, _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	// Reload from disk with a fresh cache and check every row still belongs to its path.
	reloaded := New(dir, "sample", walker.New(root), &fakeEmbedder{}, nil, 2)
	paths, embeddings, err := reloaded.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	for i, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		want := textVector("File: " + path + "\n\n" + string(content))
		if embeddings[i][0] != want[0] || embeddings[i][1] != want[1] {
			t.Errorf("row %d (%s) = %v, want %v", i, path, embeddings[i], want)
		}
	}
}

func TestCache_Snapshot_Idempotent(t *testing.T) {
	root := writeTree(t, sampleTree)
	dir := t.TempDir()
	emb := &fakeEmbedder{}
	c := New(dir, "sample", walker.New(root), emb, nil, 2)

	first, err := c.Embeddings(context.Background())
	if err != nil {
		t.Fatalf("Embeddings() error = %v", err)
	}
	calls := emb.calls()

	again := New(dir, "sample", walker.New(root), emb, nil, 2)
	second, err := again.Embeddings(context.Background())
	if err != nil {
		t.Fatalf("Embeddings() error = %v", err)
	}
	if emb.calls() != calls {
		t.Errorf("embedder called %d more times on unchanged repository", emb.calls()-calls)
	}
	for i := range first {
		for j := range first[i] {
			if math.Float32bits(first[i][j]) != math.Float32bits(second[i][j]) {
				t.Errorf("Embeddings()[%d][%d] = %v, want %v", i, j, second[i][j], first[i][j])
			}
		}
	}
}

func TestCache_Snapshot_Batching(t *testing.T) {
	tests := []struct {
		name      string
		batchSize int
		want      []int
	}{
		{name: "partial final batch", batchSize: 3, want: []int{3, 1}},
		{name: "exact batches", batchSize: 2, want: []int{2, 2}},
		{name: "one batch", batchSize: 50, want: []int{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeTree(t, sampleTree)
			emb := &fakeEmbedder{}
			c := New(t.TempDir(), "sample", walker.New(root), emb, nil, 2, WithBatchSize(tt.batchSize))
			paths, err := c.Paths(context.Background())
			if err != nil {
				t.Fatalf("Paths() error = %v", err)
			}
			if len(paths) != 4 {
				t.Errorf("Paths() = %d entries, want 4", len(paths))
			}
			if len(emb.batches) != len(tt.want) {
				t.Fatalf("batches = %v, want %v", emb.batches, tt.want)
			}
			for i := range tt.want {
				if emb.batches[i] != tt.want[i] {
					t.Errorf("batches = %v, want %v", emb.batches, tt.want)
					break
				}
			}
		})
	}
}

func TestCache_Snapshot_MaxFiles(t *testing.T) {
	root := writeTree(t, sampleTree)
	c := New(t.TempDir(), "sample", walker.New(root), &fakeEmbedder{}, nil, 2, WithMaxFiles(2))
	paths, err := c.Paths(context.Background())
	if err != nil {
		t.Fatalf("Paths() error = %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("Paths() = %v, want 2 entries", paths)
	}
}

func TestCache_Snapshot_RebuildsWhenRepositoryChanges(t *testing.T) {
	root := writeTree(t, sampleTree)
	dir := t.TempDir()
	emb := &fakeEmbedder{}
	if _, err := New(dir, "sample", walker.New(root), emb, nil, 2).Paths(context.Background()); err != nil {
		t.Fatalf("Paths() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "new.go"), []byte("package a\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	calls := emb.calls()
	paths, err := New(dir, "sample", walker.New(root), emb, nil, 2).Paths(context.Background())
	if err != nil {
		t.Fatalf("Paths() error = %v", err)
	}
	if emb.calls() == calls {
		t.Error("embedder not called after repository changed")
	}
	if len(paths) != 5 {
		t.Errorf("Paths() = %d entries, want 5", len(paths))
	}
}

func TestCache_Snapshot_TrustSnapshots(t *testing.T) {
	root := writeTree(t, sampleTree)
	dir := t.TempDir()
	emb := &fakeEmbedder{}
	if _, err := New(dir, "sample", walker.New(root), emb, nil, 2).Paths(context.Background()); err != nil {
		t.Fatalf("Paths() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "new.go"), []byte("package a\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	calls := emb.calls()
	paths, err := New(dir, "sample", walker.New(root), emb, nil, 2, WithTrustSnapshots(true)).Paths(context.Background())
	if err != nil {
		t.Fatalf("Paths() error = %v", err)
	}
	if emb.calls() != calls {
		t.Error("embedder called despite trusted snapshot")
	}
	if len(paths) != 4 {
		t.Errorf("Paths() = %d entries, want the 4 snapshotted paths", len(paths))
	}
}

func TestCache_Snapshot_RebuildsMisaligned(t *testing.T) {
	root := writeTree(t, sampleTree)
	dir := t.TempDir()
	emb := &fakeEmbedder{}
	c := New(dir, "sample", walker.New(root), emb, nil, 2)
	if _, err := c.Paths(context.Background()); err != nil {
		t.Fatalf("Paths() error = %v", err)
	}

	extra := []string{"x", "y", "z", "w", "v"}
	if err := writeJSON(c.Files().Paths, extra); err != nil {
		t.Fatalf("writeJSON() error = %v", err)
	}
	if _, _, err := LoadSnapshot(c.Files()); err == nil {
		t.Fatal("LoadSnapshot() expected misalignment error")
	}

	calls := emb.calls()
	paths, embeddings, err := New(dir, "sample", walker.New(root), emb, nil, 2, WithTrustSnapshots(true)).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if emb.calls() == calls {
		t.Error("misaligned snapshot was not rebuilt")
	}
	if len(paths) != 4 || len(embeddings) != 4 {
		t.Errorf("Snapshot() = %d paths, %d rows, want 4 and 4", len(paths), len(embeddings))
	}
}

func TestCache_Snapshot_EmptyRepository(t *testing.T) {
	root := writeTree(t, map[string]string{"notes.md": "nothing to index\n"})
	emb := &fakeEmbedder{}
	paths, embeddings, err := New(t.TempDir(), "empty", walker.New(root), emb, nil, 2).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(paths) != 0 || len(embeddings) != 0 {
		t.Errorf("Snapshot() = %v, %v, want empty", paths, embeddings)
	}
	if emb.calls() != 0 {
		t.Errorf("embedder called %d times for empty repository", emb.calls())
	}
}

func TestCache_Snapshot_WrongDimension(t *testing.T) {
	root := writeTree(t, sampleTree)
	c := New(t.TempDir(), "sample", walker.New(root), &fakeEmbedder{}, nil, 3)
	if _, err := c.Paths(context.Background()); err == nil {
		t.Error("Paths() expected dimension error, got nil")
	}
}

func TestCache_Descriptions(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := writeTree(t, sampleTree)
	comp := mocks.NewMockCompleter(ctrl)
	comp.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, prompt string) (string, error) {
			if !strings.HasSuffix(prompt, "A short summary in plain English of the above code is:\nThis file") {
				t.Errorf("prompt has unexpected suffix: %q", prompt)
			}
			return " does something. ", nil
		}).
		Times(4)

	c := New(t.TempDir(), "sample", walker.New(root), &fakeEmbedder{}, comp, 2, WithSaveEvery(3))
	descriptions, err := c.Descriptions(context.Background())
	if err != nil {
		t.Fatalf("Descriptions() error = %v", err)
	}
	if len(descriptions) != 4 {
		t.Fatalf("Descriptions() = %d entries, want 4", len(descriptions))
	}
	if got := descriptions[filepath.Join(root, "a.go")]; got != "This file does something." {
		t.Errorf("description = %q, want %q", got, "This file does something.")
	}

	var saved map[string]string
	if err := readJSON(c.Files().Descriptions, &saved); err != nil {
		t.Fatalf("readJSON(descriptions) error = %v", err)
	}
	if len(saved) != 4 {
		t.Errorf("saved descriptions = %d, want 4", len(saved))
	}
}

func TestCache_Descriptions_Resume(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := writeTree(t, sampleTree)
	dir := t.TempDir()
	files := SnapshotFiles(dir, "sample")

	existing := map[string]string{
		filepath.Join(root, "a.go"):    "This file was described earlier.",
		filepath.Join(root, "gone.go"): "This file no longer exists.",
	}
	raw, _ := json.Marshal(existing)
	if err := os.WriteFile(files.Descriptions, raw, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	sources := map[string]string{filepath.Join(root, "a.go"): contentDigest(sampleTree["a.go"])}
	if err := writeJSON(files.DescriptionSources, sources); err != nil {
		t.Fatalf("writeJSON() error = %v", err)
	}

	comp := mocks.NewMockCompleter(ctrl)
	comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("is new.", nil).Times(3)

	descriptions, err := New(dir, "sample", walker.New(root), &fakeEmbedder{}, comp, 2).Descriptions(context.Background())
	if err != nil {
		t.Fatalf("Descriptions() error = %v", err)
	}
	if got := descriptions[filepath.Join(root, "a.go")]; got != "This file was described earlier." {
		t.Errorf("existing description overwritten: %q", got)
	}
	if _, ok := descriptions[filepath.Join(root, "gone.go")]; ok {
		t.Error("stale description was not dropped")
	}
	if len(descriptions) != 4 {
		t.Errorf("Descriptions() = %d entries, want 4", len(descriptions))
	}
}

func TestCache_Descriptions_ErrorKeepsProgress(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := writeTree(t, sampleTree)
	dir := t.TempDir()

	comp := mocks.NewMockCompleter(ctrl)
	gomock.InOrder(
		comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("is first.", nil),
		comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("is second.", nil),
		comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", os.ErrDeadlineExceeded),
	)

	// Default save cadence, so nothing has been saved when the third file fails.
	c := New(dir, "sample", walker.New(root), &fakeEmbedder{}, comp, 2)
	if _, err := c.Descriptions(context.Background()); err == nil {
		t.Fatal("Descriptions() expected error, got nil")
	}

	var saved map[string]string
	if err := readJSON(c.Files().Descriptions, &saved); err != nil {
		t.Fatalf("readJSON(descriptions) error = %v", err)
	}
	if len(saved) != 2 {
		t.Errorf("saved descriptions = %d, want 2", len(saved))
	}
	if got := saved[filepath.Join(root, "a.go")]; got != "This file is first." {
		t.Errorf("saved description = %q, want %q", got, "This file is first.")
	}

	// The next run only describes what is still missing.
	comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("is later.", nil).Times(2)
	descriptions, err := New(dir, "sample", walker.New(root), &fakeEmbedder{}, comp, 2).Descriptions(context.Background())
	if err != nil {
		t.Fatalf("Descriptions() error = %v", err)
	}
	if len(descriptions) != 4 {
		t.Errorf("Descriptions() = %d entries, want 4", len(descriptions))
	}
}

func TestCache_Descriptions_RegeneratesEditedFiles(t *testing.T) {
	tests := []struct {
		name  string
		trust bool
		want  string
	}{
		{name: "edited file is described again", want: "This file is rewritten."},
		{name: "trusted snapshot is returned as is", trust: true, want: "This file is original."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			root := writeTree(t, sampleTree)
			dir := t.TempDir()

			comp := mocks.NewMockCompleter(ctrl)
			comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("is original.", nil).Times(4)
			if _, err := New(dir, "sample", walker.New(root), &fakeEmbedder{}, comp, 2).Descriptions(context.Background()); err != nil {
				t.Fatalf("Descriptions() error = %v", err)
			}

			edited := filepath.Join(root, "b.py")
			if err := os.WriteFile(edited, []byte("def b():\n    return 3\n"), 0644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			if !tt.trust {
				comp.EXPECT().
					Complete(gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, prompt string) (string, error) {
						if !strings.Contains(prompt, "return 3") {
							t.Errorf("regenerated prompt does not hold the edited content: %q", prompt)
						}
						return "is rewritten.", nil
					}).
					Times(1)
			}

			c := New(dir, "sample", walker.New(root), &fakeEmbedder{}, comp, 2, WithTrustSnapshots(tt.trust))
			descriptions, err := c.Descriptions(context.Background())
			if err != nil {
				t.Fatalf("Descriptions() error = %v", err)
			}
			if got := descriptions[edited]; got != tt.want {
				t.Errorf("description = %q, want %q", got, tt.want)
			}
			if got := descriptions[filepath.Join(root, "a.go")]; got != "This file is original." {
				t.Errorf("unchanged file description = %q, want %q", got, "This file is original.")
			}
		})
	}
}

func TestCache_Descriptions_MissingSourcesRegenerates(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := writeTree(t, sampleTree)
	dir := t.TempDir()
	files := SnapshotFiles(dir, "sample")

	// A descriptions file without recorded sources cannot be trusted to match the code.
	if err := writeJSON(files.Descriptions, map[string]string{filepath.Join(root, "a.go"): "This file is old."}); err != nil {
		t.Fatalf("writeJSON() error = %v", err)
	}

	comp := mocks.NewMockCompleter(ctrl)
	comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("is fresh.", nil).Times(4)

	descriptions, err := New(dir, "sample", walker.New(root), &fakeEmbedder{}, comp, 2).Descriptions(context.Background())
	if err != nil {
		t.Fatalf("Descriptions() error = %v", err)
	}
	if got := descriptions[filepath.Join(root, "a.go")]; got != "This file is fresh." {
		t.Errorf("description = %q, want %q", got, "This file is fresh.")
	}

	var sources map[string]string
	if err := readJSON(files.DescriptionSources, &sources); err != nil {
		t.Fatalf("readJSON(sources) error = %v", err)
	}
	if got, want := sources[filepath.Join(root, "a.go")], contentDigest(sampleTree["a.go"]); got != want {
		t.Errorf("recorded source = %q, want %q", got, want)
	}
}

func TestCache_Snapshot_RebuildsReorderedPaths(t *testing.T) {
	tests := []struct {
		name  string
		trust bool
	}{
		{name: "fingerprint checked"},
		{name: "trusted snapshot", trust: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeTree(t, sampleTree)
			dir := t.TempDir()
			emb := &fakeEmbedder{}
			c := New(dir, "sample", walker.New(root), emb, nil, 2)
			paths, err := c.Paths(context.Background())
			if err != nil {
				t.Fatalf("Paths() error = %v", err)
			}

			// Same row count, rows no longer belong to their paths.
			swapped := append([]string(nil), paths...)
			swapped[0], swapped[1] = swapped[1], swapped[0]
			if err := writeJSON(c.Files().Paths, swapped); err != nil {
				t.Fatalf("writeJSON() error = %v", err)
			}

			calls := emb.calls()
			reloaded := New(dir, "sample", walker.New(root), emb, nil, 2, WithTrustSnapshots(tt.trust))
			got, embeddings, err := reloaded.Snapshot(context.Background())
			if err != nil {
				t.Fatalf("Snapshot() error = %v", err)
			}
			if emb.calls() == calls {
				t.Error("reordered snapshot was not rebuilt")
			}
			for i, path := range got {
				content, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("ReadFile() error = %v", err)
				}
				want := textVector("File: " + path + "\n\n" + string(content))
				if embeddings[i][0] != want[0] || embeddings[i][1] != want[1] {
					t.Errorf("row %d (%s) = %v, want %v", i, path, embeddings[i], want)
				}
			}
		})
	}
}

func TestCache_Snapshot_RebuildsWhenModelChanges(t *testing.T) {
	root := writeTree(t, sampleTree)
	dir := t.TempDir()
	emb := &fakeEmbedder{}
	if _, err := New(dir, "sample", walker.New(root), emb, nil, 2, WithModel("m1")).Paths(context.Background()); err != nil {
		t.Fatalf("Paths() error = %v", err)
	}

	calls := emb.calls()
	if _, err := New(dir, "sample", walker.New(root), emb, nil, 2, WithModel("m1")).Paths(context.Background()); err != nil {
		t.Fatalf("Paths() error = %v", err)
	}
	if emb.calls() != calls {
		t.Error("embedder called for the same model")
	}

	c := New(dir, "sample", walker.New(root), emb, nil, 2, WithModel("m2"))
	if _, err := c.Paths(context.Background()); err != nil {
		t.Fatalf("Paths() error = %v", err)
	}
	if emb.calls() == calls {
		t.Error("snapshot not rebuilt after model changed")
	}

	var manifest Manifest
	if err := readJSON(c.Files().Manifest, &manifest); err != nil {
		t.Fatalf("readJSON(manifest) error = %v", err)
	}
	if manifest.Model != "m2" {
		t.Errorf("manifest model = %q, want %q", manifest.Model, "m2")
	}
}

func TestNew_ClampsCadence(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := writeTree(t, sampleTree)
	emb := &fakeEmbedder{}
	comp := mocks.NewMockCompleter(ctrl)
	comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("is clamped.", nil).Times(4)

	c := New(t.TempDir(), "sample", walker.New(root), emb, comp, 2, WithSaveEvery(0), WithBatchSize(0))
	if _, err := c.Descriptions(context.Background()); err != nil {
		t.Fatalf("Descriptions() error = %v", err)
	}
	if _, err := c.Paths(context.Background()); err != nil {
		t.Fatalf("Paths() error = %v", err)
	}
	if len(emb.batches) != 4 {
		t.Errorf("batches = %v, want 4 batches of one", emb.batches)
	}
}

func TestCache_Clear(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := writeTree(t, sampleTree)
	comp := mocks.NewMockCompleter(ctrl)
	comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("is cleared.", nil).Times(4)

	c := New(t.TempDir(), "sample", walker.New(root), &fakeEmbedder{}, comp, 2)
	if _, err := c.Paths(context.Background()); err != nil {
		t.Fatalf("Paths() error = %v", err)
	}
	if _, err := c.Descriptions(context.Background()); err != nil {
		t.Fatalf("Descriptions() error = %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	files := c.Files()
	if exists(files.Paths) || exists(files.Embeddings) || exists(files.Manifest) || exists(files.Descriptions) || exists(files.DescriptionSources) {
		t.Error("Clear() left snapshot files behind")
	}
	if err := c.Clear(); err != nil {
		t.Errorf("Clear() on empty cache error = %v", err)
	}
}
