package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"issuepatch/internal/cache"
	"issuepatch/internal/hosting"
	"issuepatch/internal/issue"
	"issuepatch/internal/llm/mocks"
	"issuepatch/internal/patch"
	"issuepatch/internal/rank"
	"issuepatch/internal/vectorstore"
	"issuepatch/internal/walker"
)

var keywords = []string{"parser", "renderer", "network"}

// keywordEmbedder counts keyword occurrences, one dimension per keyword.
type keywordEmbedder struct{}

func (keywordEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(keywords))
		for j, kw := range keywords {
			vec[j] = float32(strings.Count(text, kw))
		}
		out[i] = vec
	}
	return out, nil
}

func writeRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/parse.go":  "// parser parser parser\npackage src\n",
		"src/draw.js":   "// renderer renderer\nexport function draw() { return 1; }\n",
		"src/net.py":    "# network\ndef fetch(): pass\n",
		"docs/notes.md": "parser notes, not indexed\n",
	}
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

func newEngine(t *testing.T, root string, comp *mocks.MockCompleter, opts Options) *Engine {
	t.Helper()
	emb := keywordEmbedder{}
	c := cache.New(t.TempDir(), "repo", walker.New(root), emb, comp, len(keywords))
	opts.Root = root
	opts.RepoName = "acme/repo"
	e, err := NewEngine(context.Background(), Deps{
		Cache:       c,
		Index:       vectorstore.NewFlatIndex(len(keywords)),
		Preparer:    issue.NewPreparer(nil, emb, false),
		Synthesizer: patch.NewSynthesizer(comp, patch.WithForceEdit(true)),
	}, opts)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func rendererIssue() *issue.Issue {
	return issue.FromHosting(&hosting.Issue{Number: 3, Title: "renderer draws nothing", Body: "The renderer returns early."})
}

func TestEngine_NearestFiles(t *testing.T) {
	root := writeRepo(t)
	e := newEngine(t, root, nil, Options{})

	if e.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", e.Len())
	}

	got, err := e.NearestFiles(context.Background(), rendererIssue(), 1)
	if err != nil {
		t.Fatalf("NearestFiles() error = %v", err)
	}
	if want := []string{filepath.Join(root, "src", "draw.js")}; !reflect.DeepEqual(rank.Paths(got), want) {
		t.Errorf("NearestFiles() = %v, want %v", rank.Paths(got), want)
	}

	all, err := e.NearestFiles(context.Background(), rendererIssue(), 10)
	if err != nil {
		t.Fatalf("NearestFiles() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("NearestFiles(k=10) = %d results, want 3", len(all))
	}
}

func TestEngine_NearestFiles_FilterExtensions(t *testing.T) {
	root := writeRepo(t)
	e := newEngine(t, root, nil, Options{FilterExtensions: true})

	iss := rendererIssue()
	iss.Embedding = []float32{1, 1, 1}
	iss.AllowedExtensions = []string{".py"}

	got, err := e.NearestFiles(context.Background(), iss, 3)
	if err != nil {
		t.Fatalf("NearestFiles() error = %v", err)
	}
	if want := []string{filepath.Join(root, "src", "net.py")}; !reflect.DeepEqual(rank.Paths(got), want) {
		t.Errorf("NearestFiles() = %v, want %v", rank.Paths(got), want)
	}
}

func TestEngine_CrossValidate(t *testing.T) {
	e := newEngine(t, writeRepo(t), nil, Options{})
	for _, query := range [][]float32{{1, 0, 0}, {0, 1, 0}, {0.2, 0.3, 0.9}} {
		ok, err := e.CrossValidate(context.Background(), query, 2)
		if err != nil {
			t.Fatalf("CrossValidate() error = %v", err)
		}
		if !ok {
			t.Errorf("CrossValidate(%v) = false, want true", query)
		}
	}
}

func TestEngine_Evaluate(t *testing.T) {
	root := writeRepo(t)
	e := newEngine(t, root, nil, Options{})

	pr := &hosting.PullRequest{Number: 4, ChangedFiles: []string{"src/draw.js", "src/parse.go", "README.md"}}
	score, err := e.Evaluate(context.Background(), rendererIssue(), pr, 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if score.Hits != 1 || score.Misses != 2 {
		t.Errorf("Evaluate() = %+v, want 1 hit and 2 misses", score)
	}
}

func TestEngine_Patches(t *testing.T) {
	ctrl := gomock.NewController(t)
	comp := mocks.NewMockCompleter(ctrl)
	comp.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, prompt string) (string, error) {
			if !strings.Contains(prompt, "acme/repo") {
				t.Errorf("prompt missing repository name")
			}
			return "Before:\n```js\nreturn 1;\n```\nAfter:\n```js\nreturn 2;\n```", nil
		}).
		Times(1)

	root := writeRepo(t)
	e := newEngine(t, root, comp, Options{})

	patches, attempts, err := e.Patches(context.Background(), rendererIssue(), 1)
	if err != nil {
		t.Fatalf("Patches() error = %v", err)
	}
	if len(patches) != 1 || len(attempts) != 1 {
		t.Fatalf("Patches() = %d patches, %d attempts, want 1 and 1", len(patches), len(attempts))
	}
	if !strings.Contains(patches[0].NewContent, "return 2;") {
		t.Errorf("NewContent = %q", patches[0].NewContent)
	}
}

func TestEngine_Descriptions(t *testing.T) {
	ctrl := gomock.NewController(t)
	comp := mocks.NewMockCompleter(ctrl)
	comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("does a thing.", nil).Times(3)

	root := writeRepo(t)
	e := newEngine(t, root, comp, Options{Describe: true})

	got, ok := e.Description(filepath.Join(root, "src", "net.py"))
	if !ok || got != "This file does a thing." {
		t.Errorf("Description() = %q, %v", got, ok)
	}
}
