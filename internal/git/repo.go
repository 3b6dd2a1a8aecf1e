package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// IsGitRepo checks if the path is a git repository
func IsGitRepo(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

// Repo is a local clone used as an export source
type Repo struct {
	path string
	repo *git.Repository
}

// Open opens the clone at path, walking up to the repository root
func Open(path string) (*Repo, error) {
	root, err := findRoot(path)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, &GitError{Command: "open " + root, Output: err.Error()}
	}
	return &Repo{path: root, repo: repo}, nil
}

// Path returns the repository root
func (r *Repo) Path() string {
	return r.path
}

// HasCommit reports whether the object database contains sha
func (r *Repo) HasCommit(sha string) bool {
	_, err := r.repo.CommitObject(plumbing.NewHash(sha))
	return err == nil
}

func (r *Repo) resolve(rev string) (plumbing.Hash, error) {
	if plumbing.IsHash(rev) {
		if _, err := r.repo.CommitObject(plumbing.NewHash(rev)); err != nil {
			return plumbing.ZeroHash, &CommitNotFoundError{Revisions: []string{rev}}
		}
		return plumbing.NewHash(rev), nil
	}
	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, &CommitNotFoundError{Revisions: []string{rev}}
	}
	return *h, nil
}

func findRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if IsGitRepo(abs) {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%s: %w", path, os.ErrNotExist)
		}
		abs = parent
	}
}

// GitError provides better context for git failures
type GitError struct {
	Command string
	Output  string
}

func (e *GitError) Error() string {
	return "git " + e.Command + ": " + e.Output
}

// CommitNotFoundError indicates a revision is missing from the clone,
// usually because it has not been fetched yet
type CommitNotFoundError struct {
	Revisions []string
}

func (e *CommitNotFoundError) Error() string {
	return "commit not found in local clone: " + strings.Join(e.Revisions, ", ")
}
