package deploy

import (
	"context"

	"github.com/wahlandcase/applypr/internal/models"

	"go.uber.org/zap"
)

// ResumePoint is where a redeploy picks up
type ResumePoint struct {
	// Deployed is the newest commit successfully deployed to the host, nil if none
	Deployed *models.Commit
	// Next is the oldest commit not deployed yet, nil when Deployed is the head
	Next *models.Commit
	// From is the commit to pass as the exclusive starting point of an export:
	// Deployed itself, or the nearest older non-merge commit
	From string
	// Deployment is the deployment that matched
	Deployment models.DeploymentRecord
}

// Found reports whether any successful deploy was found
func (r ResumePoint) Found() bool {
	return r.Deployed != nil
}

// UpToDate reports whether the PR head is already deployed
func (r ResumePoint) UpToDate() bool {
	return r.Deployed != nil && r.Next == nil
}

// LastDeploy walks the PR commits newest first and stops at the first one
// with a successful deployment on this host
func (t *Tracker) LastDeploy(ctx context.Context, pr int) (ResumePoint, error) {
	host, err := t.Host(ctx)
	if err != nil {
		return ResumePoint{}, err
	}
	commits, err := t.api.Commits(ctx, pr)
	if err != nil {
		return ResumePoint{}, err
	}

	var newer *models.Commit
	for i := len(commits) - 1; i >= 0; i-- {
		c := commits[i]
		record, ok, err := t.successOn(ctx, c.SHA, host)
		if err != nil {
			return ResumePoint{}, err
		}
		if ok {
			rp := ResumePoint{Deployed: &c, Next: newer, Deployment: record, From: resumeFrom(commits[:i+1])}
			t.log.Info("found last deploy",
				zap.Int("pr", pr),
				zap.String("commit", c.ShortSHA()),
				zap.String("host", host),
				zap.Int64("deployment", record.ID),
			)
			return rp, nil
		}
		newer = &commits[i]
	}
	t.log.Info("no previous deploy on this host", zap.Int("pr", pr), zap.String("host", host))
	return ResumePoint{}, nil
}

func (t *Tracker) successOn(ctx context.Context, sha, host string) (models.DeploymentRecord, bool, error) {
	records, err := t.api.Deployments(ctx, sha)
	if err != nil {
		return models.DeploymentRecord{}, false, err
	}
	for _, r := range records {
		if r.Environment != host {
			continue
		}
		statuses, err := t.api.DeploymentStatuses(ctx, r.ID)
		if err != nil {
			return models.DeploymentRecord{}, false, err
		}
		r.Statuses = statuses
		if r.LatestState() == models.StateSuccess {
			return r, true, nil
		}
	}
	return models.DeploymentRecord{}, false, nil
}

// resumeFrom picks the newest non-merge commit; merges never start an export
func resumeFrom(upTo []models.Commit) string {
	for i := len(upTo) - 1; i >= 0; i-- {
		if !upTo[i].IsMerge() {
			return upTo[i].SHA
		}
	}
	return ""
}
