package deploy

import (
	"context"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"

	"go.uber.org/zap"
)

// Deployment is the handle for one deploy. Its state only moves forward:
// once success, error or failure is reached every further transition fails.
type Deployment struct {
	tracker *Tracker

	// ID is the GitHub deployment id, 0 when untracked
	ID int64
	// PR is the pull request snapshot taken when the deploy started
	PR models.PullRequest
	// Host is the environment the deploy targets
	Host string
	// State is the last state set through this handle
	State models.DeployState
	// NoLabel suppresses the environment label on success
	NoLabel bool
}

// Tracked reports whether the deploy is recorded on GitHub
func (d *Deployment) Tracked() bool {
	return d.ID != 0
}

func (d *Deployment) Pending(ctx context.Context, description string) error {
	return d.transition(ctx, models.StatePending, description)
}

// Succeed marks the deploy successful and labels the PR for tracked environments
func (d *Deployment) Succeed(ctx context.Context, description string) error {
	if err := d.transition(ctx, models.StateSuccess, description); err != nil {
		return err
	}
	if d.NoLabel {
		return nil
	}
	label := d.tracker.label(d.Host)
	if label == "" || d.PR.HasLabel(label) {
		return nil
	}
	if err := d.tracker.api.AddLabels(ctx, d.PR.Number, label); err != nil {
		d.tracker.log.Warn("could not label pull request", zap.Int("pr", d.PR.Number), zap.String("label", label), zap.Error(err))
		return nil
	}
	d.tracker.log.Info("labelled pull request", zap.Int("pr", d.PR.Number), zap.String("label", label))
	return nil
}

// Fail marks the deploy as errored with description
func (d *Deployment) Fail(ctx context.Context, description string) error {
	return d.transition(ctx, models.StateError, description)
}

func (d *Deployment) transition(ctx context.Context, state models.DeployState, description string) error {
	if d.State.Terminal() {
		return errs.Newf(errs.Usage, "deployment status", "deployment of #%d is already %s", d.PR.Number, d.State)
	}
	d.State = state
	if !d.Tracked() {
		d.tracker.log.Debug("untracked deployment", zap.Int("pr", d.PR.Number), zap.String("state", string(state)))
		return nil
	}
	if err := d.tracker.api.CreateDeploymentStatus(ctx, d.ID, state, description); err != nil {
		d.tracker.log.Warn("could not update deployment status",
			zap.Int64("id", d.ID),
			zap.String("state", string(state)),
			zap.Error(err),
		)
	}
	return nil
}
