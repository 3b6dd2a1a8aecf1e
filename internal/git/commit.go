package git

import (
	"fmt"
	"strings"
	"time"

	"github.com/wahlandcase/applypr/internal/models"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitsBetween gets commits between two revisions (base..head), oldest first.
// Returns commits that are in head but not in base.
func (r *Repo) CommitsBetween(base, head string) ([]models.Commit, error) {
	baseHash, err := r.resolve(base)
	if err != nil {
		return nil, err
	}
	headHash, err := r.resolve(head)
	if err != nil {
		return nil, err
	}

	// Build set of commits reachable from base
	baseCommits := make(map[plumbing.Hash]bool)
	baseIter, err := r.repo.Log(&git.LogOptions{From: baseHash})
	if err != nil {
		return nil, err
	}
	err = baseIter.ForEach(func(c *object.Commit) error {
		baseCommits[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	headIter, err := r.repo.Log(&git.LogOptions{From: headHash, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, err
	}

	var newestFirst []models.Commit
	err = headIter.ForEach(func(c *object.Commit) error {
		// Don't stop iteration: merge commits have several parents and
		// feature commits may sit behind any of them
		if baseCommits[c.Hash] {
			return nil
		}
		newestFirst = append(newestFirst, models.Commit{
			SHA:     c.Hash.String(),
			Message: c.Message,
			Parents: c.NumParents(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	commits := make([]models.Commit, len(newestFirst))
	for i, c := range newestFirst {
		commits[len(newestFirst)-1-i] = c
	}
	return commits, nil
}

// FormatPatch renders one commit the way `git format-patch` does, so the
// result can be fed to `git am`
func (r *Repo) FormatPatch(sha string) (string, error) {
	hash, err := r.resolve(sha)
	if err != nil {
		return "", err
	}
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return "", err
	}

	tree, err := commit.Tree()
	if err != nil {
		return "", err
	}
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return "", err
		}
		if parentTree, err = parent.Tree(); err != nil {
			return "", err
		}
	}
	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return "", &GitError{Command: "diff " + sha, Output: err.Error()}
	}
	patch, err := changes.Patch()
	if err != nil {
		return "", &GitError{Command: "diff " + sha, Output: err.Error()}
	}

	subject, body := splitMessage(commit.Message)

	var b strings.Builder
	fmt.Fprintf(&b, "From %s Mon Sep 17 00:00:00 2001\n", commit.Hash)
	fmt.Fprintf(&b, "From: %s <%s>\n", commit.Author.Name, commit.Author.Email)
	fmt.Fprintf(&b, "Date: %s\n", commit.Author.When.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Subject: [PATCH] %s\n\n", subject)
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")
	b.WriteString(patch.String())
	b.WriteString("-- \napplypr\n\n")
	return b.String(), nil
}

func splitMessage(msg string) (subject, body string) {
	msg = strings.TrimSpace(msg)
	subject, body, _ = strings.Cut(msg, "\n")
	return strings.TrimSpace(subject), strings.TrimSpace(body)
}
