// Package deploy records deploys as GitHub deployments and finds where the
// last successful deploy of a PR to the current host left off.
package deploy

import (
	"context"
	"strings"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/remote"

	"go.uber.org/zap"
)

// API is the part of the hosting API the tracker needs
type API interface {
	PullRequest(ctx context.Context, number int) (*models.PullRequest, error)
	Commits(ctx context.Context, number int) ([]models.Commit, error)
	CreateDeployment(ctx context.Context, req models.DeploymentRequest) (int64, error)
	CreateDeploymentStatus(ctx context.Context, id int64, state models.DeployState, description string) error
	Deployments(ctx context.Context, sha string) ([]models.DeploymentRecord, error)
	DeploymentStatuses(ctx context.Context, id int64) ([]models.DeploymentStatus, error)
	AddLabels(ctx context.Context, number int, labels ...string) error
}

// Tracker creates and updates deployments for one host
type Tracker struct {
	api      API
	exec     *remote.Exec
	log      *zap.Logger
	hostname string
	labelFor func(host string) string
}

func NewTracker(api API, exec *remote.Exec, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{api: api, exec: exec, log: log}
}

// WithHostname skips the `uname -n` lookup on the remote
func (t *Tracker) WithHostname(name string) *Tracker {
	t.hostname = name
	return t
}

// WithLabels sets how a host maps to the label added after a successful deploy
func (t *Tracker) WithLabels(fn func(host string) string) *Tracker {
	t.labelFor = fn
	return t
}

// Host returns the deploy environment name: the configured override, or the
// remote's node name. The lookup is done once.
func (t *Tracker) Host(ctx context.Context) (string, error) {
	if t.hostname != "" {
		return t.hostname, nil
	}
	out, err := t.exec.Unprivileged().Quiet().Check(ctx, errs.Connection, "uname -n")
	if err != nil {
		return "", err
	}
	t.hostname = strings.TrimSpace(out)
	return t.hostname, nil
}

// MarkToDeploy creates a deployment for the PR head. A rejected deployment
// is not fatal: the returned handle is untracked (ID 0) and only logs.
func (t *Tracker) MarkToDeploy(ctx context.Context, pr int) (*Deployment, error) {
	pull, err := t.api.PullRequest(ctx, pr)
	if err != nil {
		return nil, err
	}
	host, err := t.Host(ctx)
	if err != nil {
		return nil, err
	}

	d := &Deployment{tracker: t, PR: *pull, Host: host}
	id, err := t.api.CreateDeployment(ctx, models.DeploymentRequest{Ref: pull.HeadSHA, Host: host})
	if err != nil {
		t.log.Warn("deployment not recorded, continuing untracked", zap.Int("pr", pr), zap.Error(err))
		return d, nil
	}
	d.ID = id
	t.log.Info("deployment created", zap.Int("pr", pr), zap.Int64("id", id), zap.String("host", host))
	return d, nil
}

// MarkStatus posts a status for an existing deployment. Unlike the handle
// transitions, API failures are returned.
func (t *Tracker) MarkStatus(ctx context.Context, id int64, state models.DeployState, description string) error {
	if !state.Valid() {
		return errs.Newf(errs.Usage, "deployment status", "unknown state %q", state)
	}
	if id == 0 {
		return nil
	}
	return t.api.CreateDeploymentStatus(ctx, id, state, description)
}

// MarkDeployed records a successful deploy without applying anything
func (t *Tracker) MarkDeployed(ctx context.Context, pr int, noLabel bool) (*Deployment, error) {
	d, err := t.MarkToDeploy(ctx, pr)
	if err != nil {
		return nil, err
	}
	d.NoLabel = noLabel
	if err := d.Succeed(ctx, "marked as deployed"); err != nil {
		return nil, err
	}
	return d, nil
}

// ListDeploys returns the deployments of the PR head with their status history
func (t *Tracker) ListDeploys(ctx context.Context, pr int) ([]models.DeploymentRecord, error) {
	pull, err := t.api.PullRequest(ctx, pr)
	if err != nil {
		return nil, err
	}
	records, err := t.api.Deployments(ctx, pull.HeadSHA)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Statuses, err = t.api.DeploymentStatuses(ctx, records[i].ID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (t *Tracker) label(host string) string {
	if t.labelFor == nil {
		return ""
	}
	return t.labelFor(host)
}
