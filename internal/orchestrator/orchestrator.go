// Package orchestrator runs a deploy end to end: preflight, deployment
// record, export and upload, apply, and the final deployment status.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/wahlandcase/applypr/internal/apply"
	"github.com/wahlandcase/applypr/internal/deploy"
	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/export"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/remote"
	"github.com/wahlandcase/applypr/internal/transfer"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Settings describe the remote checkout
type Settings struct {
	// RepoDir is the checkout on the host
	RepoDir string
	// DeployUser owns the checkout; commands in it run as this user
	DeployUser string
	// RollingBranch is the branch deploys must happen on
	RollingBranch string
	// PatchDir returns the remote patches directory of a PR
	PatchDir func(pr int) string
}

// Orchestrator wires the deploy components together
type Orchestrator struct {
	settings Settings
	exec     *remote.Exec
	api      CommitSource
	exporter *export.Exporter
	uploader *transfer.Uploader
	tracker  *deploy.Tracker
	operator Operator
	notify   Notifier
	log      *zap.Logger
}

// CommitSource lists the commits of a PR, oldest first
type CommitSource interface {
	Commits(ctx context.Context, number int) ([]models.Commit, error)
}

func New(settings Settings, exec *remote.Exec, api CommitSource, exporter *export.Exporter,
	uploader *transfer.Uploader, tracker *deploy.Tracker, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		settings: settings,
		exec:     exec,
		api:      api,
		exporter: exporter,
		uploader: uploader,
		tracker:  tracker,
		operator: NonInteractive{},
		notify:   nopNotifier{},
		log:      log,
	}
}

func (o *Orchestrator) WithOperator(op Operator) *Orchestrator {
	o.operator = op
	return o
}

func (o *Orchestrator) WithNotifier(n Notifier) *Orchestrator {
	o.notify = n
	return o
}

// repo runs commands inside the checkout as the deploy user
func (o *Orchestrator) repo() *remote.Exec {
	return o.user().In(o.settings.RepoDir)
}

func (o *Orchestrator) user() *remote.Exec {
	if o.settings.DeployUser == "" {
		return o.exec.Unprivileged()
	}
	return o.exec.As(o.settings.DeployUser)
}

// Preflight checks the checkout exists, is on the rolling branch and has
// no git am in progress
func (o *Orchestrator) Preflight(ctx context.Context, opts Options) (models.RepoState, error) {
	st := models.RepoState{Path: o.settings.RepoDir}

	res, err := o.user().Quiet().Run(ctx, "ls "+remote.Quote(o.settings.RepoDir))
	if err != nil {
		return st, err
	}
	if res.Failed() {
		return st, &errs.Error{Kind: errs.Precondition, Op: "repository not found", Path: o.settings.RepoDir, Output: res.Output}
	}
	st.Exists = true

	repo := o.repo().Quiet()
	branch, err := repo.Check(ctx, errs.Precondition, "git rev-parse --abbrev-ref HEAD")
	if err != nil {
		return st, err
	}
	st.Branch = strings.TrimSpace(branch)
	if !opts.SkipRollingCheck && o.settings.RollingBranch != "" && st.Branch != o.settings.RollingBranch {
		return st, errs.Newf(errs.Precondition, "branch check", "checkout is on %q, expected %q", st.Branch, o.settings.RollingBranch)
	}

	if st.ApplyInProgress, err = repo.Exists(ctx, ".git/rebase-apply"); err != nil {
		return st, err
	}
	if st.ApplyInProgress {
		return st, errs.WithPath(errs.Precondition, "previous git am in progress", o.settings.RepoDir+"/.git/rebase-apply", nil)
	}
	return st, nil
}

// ApplyPR deploys one PR. Once the deployment is marked pending, any error
// marks it as errored with the error message.
func (o *Orchestrator) ApplyPR(ctx context.Context, pr int, opts Options) Result {
	log := o.log.With(zap.Int("pr", pr))
	if err := opts.Validate(); err != nil {
		return failed(pr, 0, err)
	}

	o.notify.Phase(pr, PhasePreflight, o.settings.RepoDir)
	if _, err := o.Preflight(ctx, opts); err != nil {
		if errs.Is(err, errs.Connection) {
			log.Error("could not reach host", zap.Error(err))
		}
		o.notify.Phase(pr, PhaseFailure, err.Error())
		return failed(pr, 0, err)
	}

	if opts.Redeploy {
		from, res, done := o.resume(ctx, pr)
		if done {
			return res
		}
		opts.FromCommit = from
	}

	d, err := o.tracker.MarkToDeploy(ctx, pr)
	if err != nil {
		o.notify.Phase(pr, PhaseFailure, err.Error())
		return failed(pr, 0, err)
	}
	d.NoLabel = opts.NoLabel
	if !d.Tracked() {
		log.Warn("no deployment id, the pull request must be marked manually")
	}
	if err := d.Pending(ctx, "applying"); err != nil {
		return failed(pr, d.ID, err)
	}
	o.notify.Phase(pr, PhasePending, fmt.Sprintf("deployment %d on %s", d.ID, d.Host))

	outcome, err := o.run(ctx, pr, d.PR, opts)
	if err == nil && outcome == apply.OutcomeAborted {
		err = errs.Newf(errs.Conflict, "apply", "aborted by operator")
	}
	if err != nil {
		if ferr := d.Fail(ctx, err.Error()); ferr != nil {
			log.Warn("could not mark deployment as failed", zap.Error(ferr))
		}
		o.notify.Phase(pr, PhaseFailure, err.Error())
		return failed(pr, d.ID, err)
	}

	if err := d.Succeed(ctx, outcome.String()); err != nil {
		log.Warn("could not mark deployment as successful", zap.Error(err))
	}
	o.notify.Phase(pr, PhaseSuccess, outcome.String())
	return Result{PR: pr, DeploymentID: d.ID, Status: models.Deployed, Outcome: outcome}
}

// resume looks up the last deploy and asks the operator to continue from it.
// done is true when the run ends here.
func (o *Orchestrator) resume(ctx context.Context, pr int) (from string, res Result, done bool) {
	rp, err := o.tracker.LastDeploy(ctx, pr)
	if err != nil {
		return "", failed(pr, 0, err), true
	}
	if !rp.Found() {
		o.notify.Phase(pr, PhaseResume, "no previous deploy, applying everything")
		return "", Result{}, false
	}
	if rp.UpToDate() {
		o.notify.Phase(pr, PhaseResume, "head already deployed")
		return "", skipped(pr, "already deployed at "+rp.Deployed.ShortSHA()), true
	}
	o.notify.Phase(pr, PhaseResume, fmt.Sprintf("last deployed %s, next %s", rp.Deployed.ShortSHA(), rp.Next.ShortSHA()))

	ok, err := o.operator.ConfirmResume(ctx, pr, rp)
	if err != nil {
		return "", failed(pr, 0, err), true
	}
	if !ok {
		return "", skipped(pr, "resume declined"), true
	}
	return rp.From, Result{}, false
}

func (o *Orchestrator) run(ctx context.Context, pr int, pull models.PullRequest, opts Options) (apply.Outcome, error) {
	arts, err := o.artifacts(ctx, pr, opts)
	if err != nil {
		return apply.OutcomeAborted, err
	}
	if len(arts) == 0 {
		o.log.Info("nothing left to apply", zap.Int("pr", pr))
		return apply.OutcomeClean, nil
	}

	o.notify.Phase(pr, PhaseApply, fmt.Sprintf("%d artifact(s)", len(arts)))
	session, err := apply.NewSession(o.repo(), arts, apply.Options{
		AutoExit:      opts.AutoExit,
		Reject:        opts.Reject,
		CommitMessage: fmt.Sprintf("Apply PR #%d: %s", pr, pull.Title),
		OnApplied:     func(subject string) { o.notify.Applied(pr, subject) },
	}, o.log)
	if err != nil {
		return apply.OutcomeAborted, err
	}

	step, err := session.Start(ctx)
	for err == nil && !step.Done {
		o.notify.Phase(pr, PhaseConflict, conflictDetail(step.Conflict))
		var d apply.Decision
		if d, err = o.operator.Decide(ctx, pr, step.Conflict); err != nil {
			if _, aerr := session.Resolve(ctx, apply.Abort); aerr != nil {
				o.log.Warn("abort after operator error failed", zap.Error(aerr))
			}
			return apply.OutcomeAborted, err
		}
		step, err = session.Resolve(ctx, d)
		if err != nil && session.State() == apply.AwaitingOperator {
			// Wiggle could not merge everything; ask again
			o.log.Warn("resolution failed", zap.Stringer("decision", d), zap.Error(err))
			err = nil
		}
	}
	if err != nil {
		return apply.OutcomeAborted, err
	}
	return step.Outcome, nil
}

func (o *Orchestrator) artifacts(ctx context.Context, pr int, opts Options) ([]models.PatchArtifact, error) {
	target := transfer.Target{Dir: o.settings.PatchDir(pr), Owner: o.settings.DeployUser}
	var arts []models.PatchArtifact
	var err error

	switch {
	case opts.SkipUpload:
		if arts, err = transfer.Remote(ctx, o.user(), target.Dir, opts.AsDiff); err != nil {
			return nil, err
		}
		if opts.FromCommit != "" {
			if arts, err = transfer.AfterCommit(arts, opts.FromCommit); err != nil {
				return nil, err
			}
		}

	case opts.SkipExport:
		local, err := transfer.LocalArtifacts(o.exporter.Dir(pr))
		if err != nil {
			return nil, err
		}
		o.notify.Phase(pr, PhaseUpload, target.Dir)
		if arts, err = o.uploader.Upload(ctx, pr, target, ofKind(local, opts.AsDiff), opts.FromCommit); err != nil {
			return nil, err
		}

	default:
		o.notify.Phase(pr, PhaseExport, o.exporter.Dir(pr))
		if opts.AsDiff {
			art, err := o.exporter.Diff(ctx, pr)
			if err != nil {
				return nil, err
			}
			arts = []models.PatchArtifact{art}
		} else if arts, err = o.exporter.Patches(ctx, pr, opts.FromCommit); err != nil {
			return nil, err
		}
		if len(arts) == 0 {
			return nil, nil
		}
		o.notify.Phase(pr, PhaseUpload, target.Dir)
		if arts, err = o.uploader.Upload(ctx, pr, target, arts, ""); err != nil {
			return nil, err
		}
	}

	if opts.FromNumber > 0 {
		arts = transfer.FromNumber(arts, opts.FromNumber)
	}
	return arts, nil
}

func ofKind(arts []models.PatchArtifact, diff bool) []models.PatchArtifact {
	want := models.KindPatch
	if diff {
		want = models.KindDiff
	}
	var out []models.PatchArtifact
	for _, a := range arts {
		if a.Kind == want {
			out = append(out, a)
		}
	}
	return out
}

func conflictDetail(c *apply.Conflict) string {
	if c == nil {
		return ""
	}
	if c.Patch != nil {
		return c.Patch.Name
	}
	return fmt.Sprintf("%d reject(s)", len(c.Rejects))
}

// Batch deploys prs strictly in order, carrying on after failures. The
// returned error aggregates every failure.
func (o *Orchestrator) Batch(ctx context.Context, prs []int, opts Options) ([]models.BatchResult, error) {
	var merr *multierror.Error
	results := make([]models.BatchResult, 0, len(prs))
	for _, pr := range prs {
		if ctx.Err() != nil {
			results = append(results, models.BatchResult{PR: pr, Status: models.Skipped("cancelled")})
			continue
		}
		r := o.ApplyPR(ctx, pr, opts)
		results = append(results, models.BatchResult{PR: pr, Status: r.Status, DeploymentID: r.DeploymentID})
		if r.Err != nil {
			merr = multierror.Append(merr, fmt.Errorf("PR #%d: %w", pr, r.Err))
		}
	}
	return results, merr.ErrorOrNil()
}
