package orchestrator

import (
	"context"
	"strings"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/remote"
)

// CommitCheck tells whether one PR commit is found in the remote history
type CommitCheck struct {
	// Number is the 1-based position of the commit in the PR
	Number  int
	Commit  models.Commit
	Applied bool
}

// CheckPR looks up every PR commit in the remote log by its subject
func (o *Orchestrator) CheckPR(ctx context.Context, pr int) ([]CommitCheck, error) {
	commits, err := o.api.Commits(ctx, pr)
	if err != nil {
		return nil, err
	}
	repo := o.repo().Quiet()

	checks := make([]CommitCheck, 0, len(commits))
	for i, c := range commits {
		out, err := repo.Check(ctx, errs.Precondition,
			"git --no-pager log -F --grep="+remote.Quote(c.Subject())+" -n1 --format=%H")
		if err != nil {
			return nil, err
		}
		checks = append(checks, CommitCheck{
			Number:  i + 1,
			Commit:  c,
			Applied: strings.TrimSpace(out) != "",
		})
	}
	return checks, nil
}
