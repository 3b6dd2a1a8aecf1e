package orchestrator

import (
	"github.com/wahlandcase/applypr/internal/apply"
	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"
)

// Options are the per-run switches of a deploy
type Options struct {
	// FromCommit resumes after this commit (exclusive)
	FromCommit string
	// FromNumber applies only patches numbered FromNumber or above
	FromNumber int
	// AsDiff applies the whole PR as a single diff
	AsDiff bool
	// AutoExit aborts on the first conflict
	AutoExit bool
	// Reject applies the diff with --reject
	Reject bool
	// Redeploy resumes from the last successful deploy on the host
	Redeploy bool
	// SkipUpload reuses the patches already on the host
	SkipUpload bool
	// SkipExport reuses the patches exported by an earlier run
	SkipExport bool
	// SkipRollingCheck allows deploying on any branch
	SkipRollingCheck bool
	// NoLabel suppresses the environment label on success
	NoLabel bool
}

// Validate rejects contradictory switches before anything touches the host
func (o Options) Validate() error {
	switch {
	case o.Redeploy && o.AsDiff:
		return errs.Newf(errs.Usage, "deploy", "--redeploy cannot be combined with --as-diff")
	case o.Reject && !o.AsDiff:
		return errs.Newf(errs.Usage, "deploy", "--reject only works with --as-diff")
	case o.Reject && o.AutoExit:
		return errs.Newf(errs.Usage, "deploy", "--reject cannot be combined with --auto-exit")
	case o.Redeploy && o.FromCommit != "":
		return errs.Newf(errs.Usage, "deploy", "--redeploy finds the starting commit itself, drop --from-commit")
	case o.AsDiff && (o.FromCommit != "" || o.FromNumber > 0):
		return errs.Newf(errs.Usage, "deploy", "a diff has no commits to resume from")
	case o.FromNumber < 0:
		return errs.Newf(errs.Usage, "deploy", "--from-number must be positive")
	}
	return nil
}

// Result is the outcome of one PR deploy. ApplyPR never panics or exits;
// everything that went wrong ends up in Err.
type Result struct {
	PR           int
	DeploymentID int64
	Status       models.BatchStatus
	Outcome      apply.Outcome
	Err          error
}

// Failed reports whether the deploy did not succeed
func (r Result) Failed() bool {
	return models.IsStatusFailed(r.Status)
}

// Skipped reports whether there was nothing to do
func (r Result) Skipped() bool {
	return models.IsStatusSkipped(r.Status)
}

func failed(pr int, id int64, err error) Result {
	return Result{PR: pr, DeploymentID: id, Status: models.Failed(err.Error()), Outcome: apply.OutcomeAborted, Err: err}
}

func skipped(pr int, reason string) Result {
	return Result{PR: pr, Status: models.Skipped(reason)}
}
