package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"issuepatch/internal/contextutil"
)

const perPage = 100

// ErrNotFound is returned when the requested issue or pull request does not exist.
var ErrNotFound = errors.New("not found")

// GitHubSource reads issues and pull requests through the GitHub REST API.
type GitHubSource struct {
	client *github.Client
	owner  string
	repo   string
	files  FileLister
}

// GitHubOption configures a GitHubSource.
type GitHubOption func(*GitHubSource) error

// WithBaseURL points the client at a different API root, such as GitHub Enterprise or a test server.
func WithBaseURL(baseURL string) GitHubOption {
	return func(s *GitHubSource) error {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		s.client.BaseURL = u
		return nil
	}
}

// WithFileLister replaces the default API-based changed-file listing.
func WithFileLister(l FileLister) GitHubOption {
	return func(s *GitHubSource) error {
		s.files = l
		return nil
	}
}

// NewGitHubSource creates a source for owner/repo. An empty token makes
// unauthenticated requests.
func NewGitHubSource(ctx context.Context, owner, repo, token string, opts ...GitHubOption) (*GitHubSource, error) {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}

	s := &GitHubSource{
		client: github.NewClient(httpClient),
		owner:  owner,
		repo:   repo,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.files == nil {
		s.files = NewAPIFileLister(s.client, owner, repo)
	}
	return s, nil
}

// Issue fetches an issue together with its full comment thread.
func (s *GitHubSource) Issue(ctx context.Context, number int) (*Issue, error) {
	gi, _, err := s.client.Issues.Get(ctx, s.owner, s.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue %d: %w", number, notFound(err))
	}

	iss := convertIssue(gi)

	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		comments, resp, err := s.client.Issues.ListComments(ctx, s.owner, s.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments of issue %d: %w", number, err)
		}
		for _, c := range comments {
			iss.Comments = append(iss.Comments, Comment{
				Author: c.GetUser().GetLogin(),
				Body:   c.GetBody(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "fetched issue",
		"number", number,
		"comments", len(iss.Comments))
	return iss, nil
}

// ListIssues lists issues in the given state ("open", "closed" or "all").
// Pull requests, which the issues endpoint also returns, are excluded.
// Comments are not loaded.
func (s *GitHubSource) ListIssues(ctx context.Context, state string) ([]*Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	var out []*Issue
	for {
		issues, resp, err := s.client.Issues.ListByRepo(ctx, s.owner, s.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", err)
		}
		for _, gi := range issues {
			if gi.IsPullRequest() {
				continue
			}
			out = append(out, convertIssue(gi))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// PullRequest fetches a pull request, its parent commit and its changed files.
func (s *GitHubSource) PullRequest(ctx context.Context, number int) (*PullRequest, error) {
	gpr, _, err := s.client.PullRequests.Get(ctx, s.owner, s.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request %d: %w", number, notFound(err))
	}

	pr := &PullRequest{
		Number:           gpr.GetNumber(),
		URL:              gpr.GetHTMLURL(),
		ChangedFileCount: gpr.GetChangedFiles(),
	}

	commits, _, err := s.client.PullRequests.ListCommits(ctx, s.owner, s.repo, number, &github.ListOptions{PerPage: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to list commits of pull request %d: %w", number, err)
	}
	if len(commits) > 0 && len(commits[0].Parents) > 0 {
		pr.ParentSHA = commits[0].Parents[0].GetSHA()
	}

	files, err := s.files.ChangedFiles(ctx, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to list changed files of pull request %d: %w", number, err)
	}
	pr.ChangedFiles = files
	pr.CheckConsistency(ctx)

	return pr, nil
}

// notFound maps a 404 API response to ErrNotFound.
func notFound(err error) error {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, errResp.Message)
	}
	return err
}

func convertIssue(gi *github.Issue) *Issue {
	return &Issue{
		Number: gi.GetNumber(),
		Title:  gi.GetTitle(),
		Body:   gi.GetBody(),
		URL:    gi.GetHTMLURL(),
	}
}

// APIFileLister lists changed files through the pull request files endpoint.
type APIFileLister struct {
	client *github.Client
	owner  string
	repo   string
}

// NewAPIFileLister creates a lister sharing client.
func NewAPIFileLister(client *github.Client, owner, repo string) *APIFileLister {
	return &APIFileLister{client: client, owner: owner, repo: repo}
}

// ChangedFiles returns the repository-relative paths changed by pr.
func (l *APIFileLister) ChangedFiles(ctx context.Context, pr *PullRequest) ([]string, error) {
	opts := &github.ListOptions{PerPage: perPage}
	var out []string
	for {
		files, resp, err := l.client.PullRequests.ListFiles(ctx, l.owner, l.repo, pr.Number, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			out = append(out, f.GetFilename())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}
