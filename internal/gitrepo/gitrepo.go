// Package gitrepo maintains the local checkout a repository is walked from.
package gitrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"

	"issuepatch/internal/contextutil"
)

// Repo is an opened local checkout.
type Repo struct {
	dir  string
	repo *git.Repository
}

// RemoteURL returns the clone URL of owner/name on github.com.
func RemoteURL(owner, name string) string {
	return fmt.Sprintf("https://github.com/%s/%s.git", owner, name)
}

// Ensure opens the checkout at dir, shallow-cloning remoteURL into it first
// when dir holds no repository. An empty remoteURL disables cloning.
func Ensure(ctx context.Context, dir, remoteURL string) (*Repo, error) {
	logger := contextutil.LoggerFromContext(ctx)

	r, err := git.PlainOpen(dir)
	if err == nil {
		return &Repo{dir: dir, repo: r}, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("failed to open repository at %s: %w", dir, err)
	}
	if remoteURL == "" {
		return nil, fmt.Errorf("no repository at %s: %w", dir, err)
	}

	logger.InfoContext(ctx, "cloning repository", "url", remoteURL, "dir", dir)
	r, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   remoteURL,
		Depth: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", remoteURL, err)
	}
	return &Repo{dir: dir, repo: r}, nil
}

// Dir returns the working tree root.
func (r *Repo) Dir() string {
	return r.dir
}

// HeadSHA returns the commit hash HEAD points at.
func (r *Repo) HeadSHA() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}
