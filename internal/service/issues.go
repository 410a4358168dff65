package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_deps.go -package=mocks issuepatch/internal/service Retriever,IssueSource
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_issue_service.go -package=mocks issuepatch/internal/service IssueService

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"issuepatch/internal/contextutil"
	"issuepatch/internal/hosting"
	"issuepatch/internal/issue"
	"issuepatch/internal/patch"
	"issuepatch/internal/rank"
)

// MaxK bounds how many files a single request may rank.
const MaxK = 50

// Retriever ranks and patches files for an issue.
// This interface is defined from the service layer's perspective (consumer-first).
type Retriever interface {
	NearestFiles(ctx context.Context, iss *issue.Issue, k int) ([]rank.Result, error)
	Patches(ctx context.Context, iss *issue.Issue, k int) ([]patch.Patch, []patch.Attempt, error)
}

// IssueSource fetches issues by number.
type IssueSource interface {
	Issue(ctx context.Context, number int) (*hosting.Issue, error)
}

// IssueRequest identifies the issue to work on, either by number on the host
// or inline by title and body.
type IssueRequest struct {
	Number int
	Title  string
	Body   string
	K      int
}

// RankedFile is one retrieved file.
type RankedFile struct {
	Path  string
	Score float32
}

// RankResponse lists the files nearest to an issue.
type RankResponse struct {
	IssueNumber int
	Files       []RankedFile
	Extensions  []string
}

// PatchResponse carries the synthesized patches and per-file outcomes.
type PatchResponse struct {
	IssueNumber int
	Patches     []patch.Patch
	Attempts    []patch.Attempt
}

// IssueService answers retrieval and patch requests for one repository.
type IssueService interface {
	// Rank returns the files nearest to the requested issue.
	Rank(ctx context.Context, req IssueRequest) (RankResponse, error)
	// Patches synthesizes patches for the files nearest to the requested issue.
	Patches(ctx context.Context, req IssueRequest) (PatchResponse, error)
}

// issueService implements IssueService.
type issueService struct {
	retriever Retriever
	source    IssueSource
	defaultK  int
}

// NewIssueService creates a new IssueService. source may be nil, in which
// case only inline issues are accepted.
func NewIssueService(retriever Retriever, source IssueSource, defaultK int) IssueService {
	return &issueService{
		retriever: retriever,
		source:    source,
		defaultK:  defaultK,
	}
}

// Rank returns the nearest files for an issue.
func (s *issueService) Rank(ctx context.Context, req IssueRequest) (RankResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	iss, k, err := s.resolve(ctx, req)
	if err != nil {
		return RankResponse{}, err
	}

	results, err := s.retriever.NearestFiles(ctx, iss, k)
	if err != nil {
		logger.ErrorContext(ctx, "failed to rank files", "error", err)
		return RankResponse{}, externalError(err, "failed to rank files")
	}

	files := make([]RankedFile, len(results))
	for i, res := range results {
		files[i] = RankedFile{Path: res.Path, Score: res.Score}
	}

	logger.InfoContext(ctx, "rank request processed successfully", "issue", iss.Number, "k", k, "files", len(files))
	return RankResponse{IssueNumber: iss.Number, Files: files, Extensions: iss.AllowedExtensions}, nil
}

// Patches synthesizes patches for an issue.
func (s *issueService) Patches(ctx context.Context, req IssueRequest) (PatchResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	iss, k, err := s.resolve(ctx, req)
	if err != nil {
		return PatchResponse{}, err
	}

	patches, attempts, err := s.retriever.Patches(ctx, iss, k)
	if err != nil {
		logger.ErrorContext(ctx, "failed to synthesize patches", "error", err)
		return PatchResponse{}, externalError(err, "failed to synthesize patches")
	}

	logger.InfoContext(ctx, "patch request processed successfully", "issue", iss.Number, "k", k, "patches", len(patches))
	return PatchResponse{IssueNumber: iss.Number, Patches: patches, Attempts: attempts}, nil
}

// resolve validates req and returns the issue it names and the effective k.
func (s *issueService) resolve(ctx context.Context, req IssueRequest) (*issue.Issue, int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	k := req.K
	switch {
	case k < 0:
		return nil, 0, &ValidationError{Field: "k", Message: "must not be negative"}
	case k == 0:
		k = s.defaultK
	case k > MaxK:
		k = MaxK
	}

	if req.Number < 0 {
		return nil, 0, &ValidationError{Field: "issue", Message: "must be a positive number"}
	}

	if req.Number > 0 {
		if s.source == nil {
			return nil, 0, &ValidationError{Field: "issue", Message: "no issue source configured, send title and body instead"}
		}
		h, err := s.source.Issue(ctx, req.Number)
		if errors.Is(err, hosting.ErrNotFound) {
			logger.WarnContext(ctx, "issue not found", "issue", req.Number)
			return nil, 0, WrapError(ErrNotFound, fmt.Sprintf("issue %d", req.Number))
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to fetch issue", "issue", req.Number, "error", err)
			return nil, 0, externalError(err, fmt.Sprintf("failed to fetch issue %d", req.Number))
		}
		return issue.FromHosting(h), k, nil
	}

	if strings.TrimSpace(req.Title) == "" {
		logger.WarnContext(ctx, "issue request without number or title")
		return nil, 0, &ValidationError{Field: "title", Message: "cannot be empty when no issue number is given"}
	}
	return issue.FromHosting(&hosting.Issue{Title: req.Title, Body: req.Body}), k, nil
}
