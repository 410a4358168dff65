// Package hosting fetches issue and pull request metadata from the repository host.
package hosting

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_hosting.go -package=mocks issuepatch/internal/hosting Source,FileLister

import (
	"context"
	"fmt"
	"strings"

	"issuepatch/internal/contextutil"
)

// Comment is one entry of an issue's discussion thread.
type Comment struct {
	Author string
	Body   string
}

// Issue is a problem report as returned by the host.
type Issue struct {
	Number   int
	Title    string
	Body     string
	URL      string
	Comments []Comment
}

// PullRequest is used to evaluate retrieval against the files a fix actually touched.
type PullRequest struct {
	Number           int
	URL              string
	ChangedFileCount int      // Count declared by the host
	ParentSHA        string   // Parent of the pull request's first commit
	ChangedFiles     []string // Repository-relative paths
}

// CheckConsistency logs a warning when the listed changed files disagree with
// the declared count. It reports whether they agree.
func (pr *PullRequest) CheckConsistency(ctx context.Context) bool {
	if len(pr.ChangedFiles) == pr.ChangedFileCount {
		return true
	}
	contextutil.LoggerFromContext(ctx).WarnContext(ctx, "changed files do not match declared count",
		"url", pr.URL,
		"declared", pr.ChangedFileCount,
		"listed", len(pr.ChangedFiles))
	return false
}

// Source retrieves issues and pull requests of one repository.
type Source interface {
	Issue(ctx context.Context, number int) (*Issue, error)
	ListIssues(ctx context.Context, state string) ([]*Issue, error)
	PullRequest(ctx context.Context, number int) (*PullRequest, error)
}

// FileLister lists the files changed by a pull request.
type FileLister interface {
	ChangedFiles(ctx context.Context, pr *PullRequest) ([]string, error)
}

// ParseRepo splits "owner/name" into its parts.
func ParseRepo(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.Trim(fullName, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository must be of the form owner/name, got %q", fullName)
	}
	return owner, name, nil
}
