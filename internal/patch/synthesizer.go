// Package patch proposes whole-file text substitutions for files relevant to an issue.
package patch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"issuepatch/internal/contextutil"
	"issuepatch/internal/issue"
	"issuepatch/internal/llm"
)

const (
	needsChangePrompt = "Does this file need to be changed to resolve the issue? Respond with only `Yes` or `No`."
	editPrompt        = "Identify which code block needs to be changed (mark it up with \"Before:\") and output the change (mark it up with \"After:\"). Make your change match the coding style of the original file."
)

// State is the position of one candidate file in the synthesis state machine.
type State int

const (
	StateNeedsCheck State = iota
	StateAwaitingEdit
	StateParseEdit
	StateSkipped   // model answered No
	StateMalformed // response lacked Before:/After:
	StateNotFound  // Before text not present verbatim
	StatePatched
	StateFailed // file unreadable or model call failed
)

func (s State) String() string {
	switch s {
	case StateNeedsCheck:
		return "needs_check"
	case StateAwaitingEdit:
		return "awaiting_edit"
	case StateParseEdit:
		return "parse_edit"
	case StateSkipped:
		return "skipped"
	case StateMalformed:
		return "malformed"
	case StateNotFound:
		return "not_found"
	case StatePatched:
		return "patched"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s ends a file's synthesis.
func (s State) Terminal() bool {
	return s >= StateSkipped
}

// Patch is a whole-file before/after pair.
type Patch struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	NewContent string `json:"new_content"`
}

// Attempt records where one file's synthesis ended.
type Attempt struct {
	Path  string
	State State
	Err   error
}

// Synthesizer drives the per-file state machine against a text model.
type Synthesizer struct {
	completer llm.Completer
	forceEdit bool
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithForceEdit skips the yes/no question and always asks for an edit.
func WithForceEdit(force bool) Option {
	return func(s *Synthesizer) { s.forceEdit = force }
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(completer llm.Completer, opts ...Option) *Synthesizer {
	s := &Synthesizer{completer: completer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize attempts one patch per file. Files that end in any state other
// than StatePatched are logged and left out of the returned patches; the
// attempts slice has one entry per input file in input order.
func (s *Synthesizer) Synthesize(ctx context.Context, repoName string, iss *issue.Issue, files []string) ([]Patch, []Attempt) {
	logger := contextutil.LoggerFromContext(ctx)

	patches := []Patch{}
	attempts := make([]Attempt, 0, len(files))
	for _, path := range files {
		p, attempt := s.synthesizeFile(ctx, repoName, iss, path)
		attempts = append(attempts, attempt)

		switch attempt.State {
		case StatePatched:
			patches = append(patches, p)
		case StateSkipped:
			logger.InfoContext(ctx, "file does not need a change", "path", path)
		default:
			logger.WarnContext(ctx, "no patch for file", "path", path, "state", attempt.State.String(), "error", attempt.Err)
		}
	}

	logger.InfoContext(ctx, "patch synthesis finished", "files", len(files), "patches", len(patches))
	return patches, attempts
}

func (s *Synthesizer) synthesizeFile(ctx context.Context, repoName string, iss *issue.Issue, path string) (Patch, Attempt) {
	logger := contextutil.LoggerFromContext(ctx)
	attempt := Attempt{Path: path, State: StateNeedsCheck}

	raw, err := os.ReadFile(path)
	if err != nil {
		attempt.State, attempt.Err = StateFailed, fmt.Errorf("failed to read file: %w", err)
		return Patch{}, attempt
	}
	content := string(raw)
	prompt := filePrompt(repoName, iss, path, content)

	if !s.forceEdit {
		answer, err := s.completer.Complete(ctx, prompt+needsChangePrompt)
		if err != nil {
			attempt.State, attempt.Err = StateFailed, fmt.Errorf("failed to ask whether file needs a change: %w", err)
			return Patch{}, attempt
		}
		logger.DebugContext(ctx, "needs change answer", "path", path, "answer", answer)
		if isNo(answer) {
			attempt.State = StateSkipped
			return Patch{}, attempt
		}
	}
	attempt.State = StateAwaitingEdit

	response, err := s.completer.Complete(ctx, prompt+editPrompt)
	if err != nil {
		attempt.State, attempt.Err = StateFailed, fmt.Errorf("failed to request edit: %w", err)
		return Patch{}, attempt
	}

	edit, err := ParseEdit(response)
	if err != nil {
		attempt.State, attempt.Err = StateMalformed, err
		return Patch{}, attempt
	}
	attempt.State = StateParseEdit

	newContent, state := Apply(content, edit)
	attempt.State = state
	if state != StatePatched {
		return Patch{}, attempt
	}
	return Patch{Path: path, Content: content, NewContent: newContent}, attempt
}

func filePrompt(repoName string, iss *issue.Issue, path, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below is an issue on for the %s codebase.\n Issue:%s - %s\n\n Here is a potential file that may need to be updated to fix the issue:\n", repoName, iss.Title, iss.Body)
	b.WriteString(path)
	b.WriteString("```\n")
	b.WriteString(content)
	b.WriteString("```\n")
	return b.String()
}

// isNo reports whether the first word of answer is "no", ignoring case and punctuation.
func isNo(answer string) bool {
	words := strings.FieldsFunc(answer, func(r rune) bool { return !unicode.IsLetter(r) })
	return len(words) > 0 && strings.EqualFold(words[0], "no")
}

// Counts tallies attempts by terminal state.
func Counts(attempts []Attempt) map[State]int {
	out := make(map[State]int)
	for _, a := range attempts {
		out[a.State]++
	}
	return out
}
