package changelog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/wahlandcase/applypr/internal/models"

	"github.com/blang/semver/v4"
	"go.uber.org/zap"
)

var errNoMilestone = errors.New("pull request has no milestone")

// PullSource fetches pull requests by number
type PullSource interface {
	PullRequest(ctx context.Context, number int) (*models.PullRequest, error)
}

// Verdict places a PR relative to a release version
type Verdict int

const (
	// Unchecked means no version was given
	Unchecked Verdict = iota
	// Included PRs are closed and belong to the version or an older one
	Included
	// Pending PRs belong to the version but are still open
	Pending
	// Later PRs belong to a newer milestone
	Later
)

// Name is the status name understood by ui.StateColor
func (v Verdict) Name() string {
	switch v {
	case Included:
		return "success"
	case Pending:
		return "pending"
	case Later:
		return "error"
	}
	return ""
}

// PRStatus is one audited PR
type PRStatus struct {
	Number    int
	State     string
	MergedAt  string
	Milestone string
	Verdict   Verdict
}

// AuditError is a PR that could not be fetched
type AuditError struct {
	Number int
	URL    string
	Err    error
}

// Audit is the result of auditing a list of PRs
type Audit struct {
	// ByMilestone groups PRs in input order
	ByMilestone map[string][]PRStatus
	Errors      []AuditError
	// NotIncluded are the PRs still to apply for the version, sorted and unique
	NotIncluded []int
}

// Milestones returns the milestone titles in ascending order
func (a *Audit) Milestones() []string {
	keys := make([]string, 0, len(a.ByMilestone))
	for k := range a.ByMilestone {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AuditPRs fetches every PR and compares its milestone with version. An
// empty version only groups the PRs.
func AuditPRs(ctx context.Context, api PullSource, owner, repository string, prs []int, version string, log *zap.Logger) *Audit {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Audit{ByMilestone: map[string][]PRStatus{}}
	var toApply []int
	for _, n := range prs {
		pull, err := api.PullRequest(ctx, n)
		if err == nil && pull.Milestone == "" {
			err = errNoMilestone
		}
		if err != nil {
			log.Debug("audit failed", zap.Int("pr", n), zap.Error(err))
			a.Errors = append(a.Errors, AuditError{
				Number: n,
				URL:    fmt.Sprintf("https://github.com/%s/%s/pull/%d", owner, repository, n),
				Err:    err,
			})
			continue
		}
		st := PRStatus{Number: n, State: pull.State, Milestone: pull.Milestone}
		if pull.MergedAt != nil {
			st.MergedAt = pull.MergedAt.UTC().Format(time.RFC3339)
		}
		if version != "" {
			st.Verdict = verdict(pull.State, pull.Milestone, version)
			if st.Verdict == Pending || st.Verdict == Later {
				toApply = append(toApply, n)
			}
		}
		a.ByMilestone[pull.Milestone] = append(a.ByMilestone[pull.Milestone], st)
	}
	slices.Sort(toApply)
	a.NotIncluded = slices.Compact(toApply)
	return a
}

func verdict(state, milestone, version string) Verdict {
	if compareVersions(milestone, version) > 0 {
		return Later
	}
	if state != "closed" {
		return Pending
	}
	return Included
}

// compareVersions compares as semantic versions when both parse, and as
// strings otherwise
func compareVersions(a, b string) int {
	va, errA := semver.ParseTolerant(a)
	vb, errB := semver.ParseTolerant(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}
