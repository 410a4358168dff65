package patch

import (
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	beforeMarker = "Before:"
	afterMarker  = "After:"
	fence        = "```"
)

// ErrMalformed is returned when a model response cannot be read as a before/after edit.
var ErrMalformed = errors.New("malformed edit")

// Edit replaces Before with After.
type Edit struct {
	Before string
	After  string
}

// ParseEdit reads a response of the form "... Before: <block> After: <block>".
// The text after the first "Before:" is split on the first "After:" and each
// block is cleaned of whitespace and a surrounding code fence.
func ParseEdit(response string) (Edit, error) {
	_, rest, ok := strings.Cut(response, beforeMarker)
	if !ok {
		return Edit{}, ErrMalformed
	}
	before, after, ok := strings.Cut(rest, afterMarker)
	if !ok {
		return Edit{}, ErrMalformed
	}
	e := Edit{Before: cleanCodeBlock(before), After: cleanCodeBlock(after)}
	if e.Before == "" {
		return Edit{}, ErrMalformed
	}
	return e, nil
}

// cleanCodeBlock trims block and strips one surrounding code fence. When the
// block opens with a fenced code block its body is used, which also drops the
// info string and any prose after the closing fence.
func cleanCodeBlock(block string) string {
	block = strings.TrimSpace(block)
	if code, ok := leadingFencedCode(block); ok {
		return strings.TrimSpace(code)
	}
	block = strings.TrimPrefix(block, fence)
	block = strings.TrimSuffix(block, fence)
	return strings.TrimSpace(block)
}

func leadingFencedCode(block string) (string, bool) {
	if !strings.HasPrefix(block, fence) {
		return "", false
	}
	src := []byte(block)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	fcb, ok := doc.FirstChild().(*ast.FencedCodeBlock)
	if !ok {
		return "", false
	}
	var b strings.Builder
	lines := fcb.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String(), true
}

// Apply substitutes every verbatim occurrence of e.Before in content with e.After.
// It returns StateNotFound and content unchanged when e.Before does not occur.
func Apply(content string, e Edit) (string, State) {
	if e.Before == "" || !strings.Contains(content, e.Before) {
		return content, StateNotFound
	}
	return strings.ReplaceAll(content, e.Before, e.After), StatePatched
}
