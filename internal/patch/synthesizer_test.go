package patch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"issuepatch/internal/issue"
	"issuepatch/internal/llm/mocks"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func testIssue() *issue.Issue {
	return &issue.Issue{Number: 1, Title: "foo returns the wrong value", Body: "foo should return 2"}
}

func TestSynthesizer_Synthesize_Patched(t *testing.T) {
	ctrl := gomock.NewController(t)
	comp := mocks.NewMockCompleter(ctrl)
	path := writeFile(t, t.TempDir(), "foo.js", "function foo() { return 1; }")

	gomock.InOrder(
		comp.EXPECT().
			Complete(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, prompt string) (string, error) {
				if !strings.Contains(prompt, "Below is an issue on for the acme/widgets codebase.") {
					t.Errorf("prompt missing repository: %q", prompt)
				}
				if !strings.Contains(prompt, path+"```\nfunction foo() { return 1; }```\n") {
					t.Errorf("prompt missing file content: %q", prompt)
				}
				if !strings.HasSuffix(prompt, needsChangePrompt) {
					t.Errorf("first prompt should ask yes/no: %q", prompt)
				}
				return "Yes", nil
			}),
		comp.EXPECT().
			Complete(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, prompt string) (string, error) {
				if !strings.HasSuffix(prompt, editPrompt) {
					t.Errorf("second prompt should ask for an edit: %q", prompt)
				}
				return "Before:\n```js\nreturn 1;\n```\nAfter:\n```js\nreturn 2;\n```", nil
			}),
	)

	patches, attempts := NewSynthesizer(comp).Synthesize(context.Background(), "acme/widgets", testIssue(), []string{path})
	if len(patches) != 1 {
		t.Fatalf("Synthesize() returned %d patches, want 1", len(patches))
	}
	want := Patch{Path: path, Content: "function foo() { return 1; }", NewContent: "function foo() { return 2; }"}
	if patches[0] != want {
		t.Errorf("Synthesize() patch = %+v, want %+v", patches[0], want)
	}
	if len(attempts) != 1 || attempts[0].State != StatePatched {
		t.Errorf("Synthesize() attempts = %+v", attempts)
	}

	// The file on disk is never modified.
	raw, _ := os.ReadFile(path)
	if string(raw) != "function foo() { return 1; }" {
		t.Errorf("file content changed to %q", raw)
	}
}

func TestSynthesizer_Synthesize_TerminalStates(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		answerErr error
		edit      string
		editErr   error
		wantState State
		editCall  bool
	}{
		{name: "answer no", answer: "No", wantState: StateSkipped},
		{name: "answer no lenient", answer: " `no`. The file is unrelated.", wantState: StateSkipped},
		{name: "answer not sure", answer: "Not sure", edit: "Before: return 1;\nAfter: return 2;", wantState: StatePatched, editCall: true},
		{name: "malformed", answer: "Yes", edit: "Change return 1 to return 2.", wantState: StateMalformed, editCall: true},
		{name: "not found", answer: "Yes", edit: "Before: xyz_not_present\nAfter: abc", wantState: StateNotFound, editCall: true},
		{name: "yes/no call fails", answerErr: errors.New("bad status 500"), wantState: StateFailed},
		{name: "edit call fails", answer: "Yes", editErr: errors.New("bad status 500"), wantState: StateFailed, editCall: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			comp := mocks.NewMockCompleter(ctrl)
			path := writeFile(t, t.TempDir(), "foo.js", "function foo() { return 1; }")

			calls := []any{comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(tt.answer, tt.answerErr)}
			if tt.editCall {
				calls = append(calls, comp.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(tt.edit, tt.editErr))
			}
			gomock.InOrder(calls...)

			patches, attempts := NewSynthesizer(comp).Synthesize(context.Background(), "acme/widgets", testIssue(), []string{path})
			wantPatches := 0
			if tt.wantState == StatePatched {
				wantPatches = 1
			}
			if len(patches) != wantPatches {
				t.Errorf("Synthesize() returned %d patches, want %d", len(patches), wantPatches)
			}
			if len(attempts) != 1 || attempts[0].State != tt.wantState {
				t.Fatalf("Synthesize() attempts = %+v, want state %v", attempts, tt.wantState)
			}
			if (attempts[0].Err != nil) != (tt.wantState == StateFailed || tt.wantState == StateMalformed) {
				t.Errorf("attempt error = %v for state %v", attempts[0].Err, tt.wantState)
			}
		})
	}
}

func TestSynthesizer_Synthesize_ForceEdit(t *testing.T) {
	ctrl := gomock.NewController(t)
	comp := mocks.NewMockCompleter(ctrl)
	path := writeFile(t, t.TempDir(), "foo.js", "function foo() { return 1; }")

	comp.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, prompt string) (string, error) {
			if strings.HasSuffix(prompt, needsChangePrompt) {
				t.Error("yes/no question asked despite force edit")
			}
			return "Before: return 1;\nAfter: return 2;", nil
		}).
		Times(1)

	patches, _ := NewSynthesizer(comp, WithForceEdit(true)).Synthesize(context.Background(), "acme/widgets", testIssue(), []string{path})
	if len(patches) != 1 {
		t.Errorf("Synthesize() returned %d patches, want 1", len(patches))
	}
}

func TestSynthesizer_Synthesize_ContinuesPastFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	comp := mocks.NewMockCompleter(ctrl)
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.js")
	bad := writeFile(t, dir, "bad.js", "const a = 1;")
	good := writeFile(t, dir, "good.js", "const b = 1;")

	comp.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, prompt string) (string, error) {
			if strings.Contains(prompt, bad) {
				return "Before: const z = 9;\nAfter: const z = 0;", nil
			}
			return "Before: const b = 1;\nAfter: const b = 2;", nil
		}).
		Times(2)

	patches, attempts := NewSynthesizer(comp, WithForceEdit(true)).
		Synthesize(context.Background(), "acme/widgets", testIssue(), []string{missing, bad, good})

	if len(patches) != 1 || patches[0].Path != good || patches[0].NewContent != "const b = 2;" {
		t.Errorf("Synthesize() patches = %+v", patches)
	}
	counts := Counts(attempts)
	if counts[StateFailed] != 1 || counts[StateNotFound] != 1 || counts[StatePatched] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
}

func TestIsNo(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"No", true},
		{"no.", true},
		{"`No`", true},
		{"  NO, it does not", true},
		{"Yes", false},
		{"Not really", false},
		{"None of it", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isNo(tt.answer); got != tt.want {
			t.Errorf("isNo(%q) = %v, want %v", tt.answer, got, tt.want)
		}
	}
}

func TestState_String(t *testing.T) {
	if StatePatched.String() != "patched" || StateNotFound.String() != "not_found" {
		t.Errorf("unexpected state names: %v %v", StatePatched, StateNotFound)
	}
	if StateAwaitingEdit.Terminal() || !StateSkipped.Terminal() {
		t.Error("Terminal() misclassifies states")
	}
}
