package export

import (
	"fmt"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"
)

// Entry is one commit selected for export with its sequence number
type Entry struct {
	Number int
	Commit models.Commit
}

// Name is the patch file name for the entry
func (e Entry) Name() string {
	return models.PatchFileName(e.Number, CommitSlug(e.Commit.Message))
}

// Plan numbers the commits of a PR for export.
//
// Merge commits are dropped and do not take a number. When fromCommit is
// set, every commit up to and including it keeps its number but is left
// out, so resumed exports produce the same file names as a full one. A
// fromCommit that is not among the non-merge commits is an error.
func Plan(commits []models.Commit, fromCommit string) ([]Entry, error) {
	skipping := fromCommit != ""
	number := 0
	var entries []Entry
	for _, c := range commits {
		if c.IsMerge() {
			continue
		}
		number++
		if skipping {
			if c.Matches(fromCommit) {
				skipping = false
			}
			continue
		}
		entries = append(entries, Entry{Number: number, Commit: c})
	}
	if skipping {
		return nil, errs.New(errs.ResumePointNotFound, "export", fmt.Errorf("commit %s is not part of the pull request", fromCommit))
	}
	return entries, nil
}
