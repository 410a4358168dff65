package handlers

import (
	"encoding/json"
	"net/http"

	"issuepatch/internal/contextutil"
	"issuepatch/internal/service"
)

// IssueRequest is the HTTP request payload naming an issue by number or inline.
//
// swagger:model IssueRequest
type IssueRequest struct {
	// Issue number on the configured repository host
	Issue int `json:"issue,omitempty"`

	// Inline title, used when no issue number is given
	Title string `json:"title,omitempty"`

	// Inline body
	Body string `json:"body,omitempty"`

	// Number of files to retrieve; 0 means the server default
	K int `json:"k,omitempty"`
}

func (r IssueRequest) toService() service.IssueRequest {
	return service.IssueRequest{Number: r.Issue, Title: r.Title, Body: r.Body, K: r.K}
}

// RankedFile is one retrieved file.
//
// swagger:model RankedFile
type RankedFile struct {
	Path  string  `json:"path"`
	Score float32 `json:"score"`
}

// RankResponse lists the files nearest to an issue, best first.
//
// swagger:model RankResponse
type RankResponse struct {
	Issue      int          `json:"issue,omitempty"`
	Files      []RankedFile `json:"files"`
	Extensions []string     `json:"extensions,omitempty"`
}

// PatchFile is a whole-file before/after pair.
//
// swagger:model PatchFile
type PatchFile struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	NewContent string `json:"new_content"`
}

// PatchOutcome reports where synthesis ended for one candidate file.
//
// swagger:model PatchOutcome
type PatchOutcome struct {
	Path  string `json:"path"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// PatchResponse carries the synthesized patches and one outcome per candidate file.
//
// swagger:model PatchResponse
type PatchResponse struct {
	Issue    int            `json:"issue,omitempty"`
	Patches  []PatchFile    `json:"patches"`
	Outcomes []PatchOutcome `json:"outcomes"`
}

// RankHandler handles HTTP requests for file ranking.
type RankHandler struct {
	issueService service.IssueService
}

// NewRankHandler creates a new RankHandler.
func NewRankHandler(issueService service.IssueService) *RankHandler {
	return &RankHandler{issueService: issueService}
}

// ServeHTTP handles HTTP requests for file ranking.
//
// swagger:route POST /api/rank rankFiles
//
// # Rank repository files for an issue
//
// Returns the k files whose embeddings are nearest to the issue's embedding.
//
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/RankResponse"
//	'400':
//	  description: Invalid request
//	'404':
//	  description: Issue not found on the host
//	'502':
//	  description: Host, embedding or completion service error
func (h *RankHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	svcResp, err := h.issueService.Rank(ctx, req.toService())
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to rank files")
		return
	}

	files := make([]RankedFile, len(svcResp.Files))
	for i, f := range svcResp.Files {
		files[i] = RankedFile{Path: f.Path, Score: f.Score}
	}
	writeJSON(ctx, w, RankResponse{
		Issue:      svcResp.IssueNumber,
		Files:      files,
		Extensions: svcResp.Extensions,
	})
}

// PatchHandler handles HTTP requests for patch synthesis.
type PatchHandler struct {
	issueService service.IssueService
}

// NewPatchHandler creates a new PatchHandler.
func NewPatchHandler(issueService service.IssueService) *PatchHandler {
	return &PatchHandler{issueService: issueService}
}

// ServeHTTP handles HTTP requests for patch synthesis.
//
// swagger:route POST /api/patches synthesizePatches
//
// # Propose patches for an issue
//
// Ranks files for the issue, then asks the completion model for a before/after
// edit per file. Files whose edit could not be applied are reported in outcomes.
//
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/PatchResponse"
//	'400':
//	  description: Invalid request
//	'502':
//	  description: Host, embedding or completion service error
func (h *PatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	svcResp, err := h.issueService.Patches(ctx, req.toService())
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to synthesize patches")
		return
	}

	patches := make([]PatchFile, len(svcResp.Patches))
	for i, p := range svcResp.Patches {
		patches[i] = PatchFile{Path: p.Path, Content: p.Content, NewContent: p.NewContent}
	}
	outcomes := make([]PatchOutcome, len(svcResp.Attempts))
	for i, a := range svcResp.Attempts {
		outcomes[i] = PatchOutcome{Path: a.Path, State: a.State.String()}
		if a.Err != nil {
			outcomes[i].Error = a.Err.Error()
		}
	}
	writeJSON(ctx, w, PatchResponse{
		Issue:    svcResp.IssueNumber,
		Patches:  patches,
		Outcomes: outcomes,
	})
}
