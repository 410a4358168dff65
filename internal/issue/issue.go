// Package issue turns a hosted issue into query text and a query embedding.
package issue

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"issuepatch/internal/contextutil"
	"issuepatch/internal/hosting"
	"issuepatch/internal/llm"
)

var extensionListRe = regexp.MustCompile(`\[.*\]`)

// Issue is a problem report plus the text, embedding and extension hints derived from it.
// It is enriched and embedded at most once.
type Issue struct {
	Number   int
	Title    string
	Body     string
	URL      string
	Comments []hosting.Comment

	FullText          string
	Enriched          string
	Embedding         []float32
	AllowedExtensions []string
}

// FromHosting builds an Issue and its full text from host data.
func FromHosting(h *hosting.Issue) *Issue {
	var conversation strings.Builder
	for _, c := range h.Comments {
		fmt.Fprintf(&conversation, "From %s\n: %s\n", c.Author, c.Body)
	}
	return &Issue{
		Number:   h.Number,
		Title:    h.Title,
		Body:     h.Body,
		URL:      h.URL,
		Comments: h.Comments,
		FullText: fmt.Sprintf("Issue: %s\n%s\nResponses:%s", h.Title, h.Body, conversation.String()),
	}
}

// Prepared reports whether the issue already carries an embedding.
func (i *Issue) Prepared() bool {
	return i.Embedding != nil
}

// Enricher asks a text model to restate an issue as a key focus with related
// keywords and a list of relevant file extensions.
type Enricher struct {
	completer llm.Completer
}

// NewEnricher creates an Enricher.
func NewEnricher(completer llm.Completer) *Enricher {
	return &Enricher{completer: completer}
}

// Enrich returns the model's expansion of iss and the file extensions it named.
// A response without a parseable bracketed list yields no extensions.
func (e *Enricher) Enrich(ctx context.Context, iss *Issue) (string, []string, error) {
	prompt := fmt.Sprintf(enrichTemplate, enrichExample, enrichExampleAnswer, iss.FullText)
	response, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to enrich issue %d: %w", iss.Number, err)
	}
	return strings.TrimSpace(response), ParseExtensions(ctx, response), nil
}

// ParseExtensions extracts the first bracketed JSON string array from text and
// normalises each entry to a lower-case extension with a leading dot.
func ParseExtensions(ctx context.Context, text string) []string {
	logger := contextutil.LoggerFromContext(ctx)

	match := extensionListRe.FindString(text)
	if match == "" {
		logger.WarnContext(ctx, "no extension list in enrichment response")
		return []string{}
	}

	var raw []string
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		logger.WarnContext(ctx, "unparseable extension list in enrichment response", "list", match, "error", err)
		return []string{}
	}

	seen := make(map[string]struct{}, len(raw))
	exts := make([]string, 0, len(raw))
	for _, ext := range raw {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	return exts
}

// Preparer enriches and embeds issues.
type Preparer struct {
	enricher *Enricher
	embedder llm.Embedder
	// embedEnriched embeds "Key Focus: <enriched>" instead of the raw full text.
	embedEnriched bool
}

// NewPreparer creates a Preparer. A nil enricher skips enrichment.
func NewPreparer(enricher *Enricher, embedder llm.Embedder, embedEnriched bool) *Preparer {
	return &Preparer{enricher: enricher, embedder: embedder, embedEnriched: embedEnriched}
}

// Prepare enriches and embeds iss. Calling it on an already prepared issue does nothing.
func (p *Preparer) Prepare(ctx context.Context, iss *Issue) error {
	if iss.Prepared() {
		return nil
	}
	logger := contextutil.LoggerFromContext(ctx)

	if p.enricher != nil {
		enriched, exts, err := p.enricher.Enrich(ctx, iss)
		if err != nil {
			return err
		}
		iss.Enriched = enriched
		iss.AllowedExtensions = exts
		logger.InfoContext(ctx, "issue enriched", "number", iss.Number, "extensions", exts)
		logger.DebugContext(ctx, "enriched text", "text", "Key Focus: "+enriched)
	}

	vecs, err := p.embedder.EmbedTexts(ctx, []string{p.queryText(iss)})
	if err != nil {
		return fmt.Errorf("failed to embed issue %d: %w", iss.Number, err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("expected 1 issue embedding, got %d", len(vecs))
	}
	iss.Embedding = vecs[0]
	return nil
}

func (p *Preparer) queryText(iss *Issue) string {
	if p.embedEnriched && iss.Enriched != "" {
		return "Key Focus: " + iss.Enriched
	}
	return iss.FullText
}
