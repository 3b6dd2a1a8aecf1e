package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusCall struct {
	id    int64
	state models.DeployState
	desc  string
}

type fakeAPI struct {
	pull        models.PullRequest
	commits     []models.Commit
	createErr   error
	statusErr   error
	labelErr    error
	deployments map[string][]models.DeploymentRecord
	statuses    map[int64][]models.DeploymentStatus

	created  []models.DeploymentRequest
	posted   []statusCall
	labelled []string
}

func (f *fakeAPI) PullRequest(ctx context.Context, number int) (*models.PullRequest, error) {
	p := f.pull
	return &p, nil
}

func (f *fakeAPI) Commits(ctx context.Context, number int) ([]models.Commit, error) {
	return f.commits, nil
}

func (f *fakeAPI) CreateDeployment(ctx context.Context, req models.DeploymentRequest) (int64, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return 0, f.createErr
	}
	return 77, nil
}

func (f *fakeAPI) CreateDeploymentStatus(ctx context.Context, id int64, state models.DeployState, desc string) error {
	f.posted = append(f.posted, statusCall{id, state, desc})
	return f.statusErr
}

func (f *fakeAPI) Deployments(ctx context.Context, sha string) ([]models.DeploymentRecord, error) {
	return f.deployments[sha], nil
}

func (f *fakeAPI) DeploymentStatuses(ctx context.Context, id int64) ([]models.DeploymentStatus, error) {
	return f.statuses[id], nil
}

func (f *fakeAPI) AddLabels(ctx context.Context, number int, labels ...string) error {
	f.labelled = append(f.labelled, labels...)
	return f.labelErr
}

func newTracker(api *fakeAPI) (*Tracker, *remote.Mock) {
	m := remote.NewMock("erp01").On("uname -n", remote.OK("erp01\n"))
	t := NewTracker(api, remote.NewExec(m, nil), nil).WithLabels(func(host string) string {
		if host == "erp01" {
			return "deployed"
		}
		return ""
	})
	return t, m
}

func TestMarkToDeployUsesRemoteHostname(t *testing.T) {
	api := &fakeAPI{pull: models.PullRequest{Number: 42, HeadSHA: "head"}}
	tr, m := newTracker(api)

	d, err := tr.MarkToDeploy(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(77), d.ID)
	assert.Equal(t, "erp01", d.Host)
	assert.Equal(t, []models.DeploymentRequest{{Ref: "head", Host: "erp01"}}, api.created)

	_, err = tr.MarkToDeploy(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count("uname -n"))
}

func TestHostnameOverride(t *testing.T) {
	api := &fakeAPI{pull: models.PullRequest{Number: 42, HeadSHA: "head"}}
	tr, m := newTracker(api)
	tr.WithHostname("erp-pre")

	d, err := tr.MarkToDeploy(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "erp-pre", d.Host)
	assert.False(t, m.Ran("uname"))
}

func TestDeclinedDeploymentIsUntracked(t *testing.T) {
	api := &fakeAPI{pull: models.PullRequest{Number: 42}, createErr: errs.New(errs.API, "create deployment", errors.New("409 Conflict"))}
	tr, _ := newTracker(api)

	d, err := tr.MarkToDeploy(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, d.Tracked())

	require.NoError(t, d.Pending(context.Background(), "applying"))
	require.NoError(t, d.Succeed(context.Background(), "done"))
	assert.Empty(t, api.posted)
	assert.Empty(t, api.labelled)
	assert.Equal(t, models.StateSuccess, d.State)
}

func TestStatusHandleIsMonotonic(t *testing.T) {
	api := &fakeAPI{pull: models.PullRequest{Number: 42}}
	tr, _ := newTracker(api)
	d, err := tr.MarkToDeploy(context.Background(), 42)
	require.NoError(t, err)

	require.NoError(t, d.Pending(context.Background(), "applying"))
	require.NoError(t, d.Fail(context.Background(), "conflict: git am"))

	err = d.Succeed(context.Background(), "late")
	assert.True(t, errs.Is(err, errs.Usage))
	err = d.Pending(context.Background(), "again")
	assert.Error(t, err)

	assert.Equal(t, []statusCall{
		{77, models.StatePending, "applying"},
		{77, models.StateError, "conflict: git am"},
	}, api.posted)
	assert.Empty(t, api.labelled)
}

func TestSuccessLabelsTrackedEnvironment(t *testing.T) {
	api := &fakeAPI{pull: models.PullRequest{Number: 42}}
	tr, _ := newTracker(api)
	d, err := tr.MarkToDeploy(context.Background(), 42)
	require.NoError(t, err)

	require.NoError(t, d.Succeed(context.Background(), "ok"))
	assert.Equal(t, []string{"deployed"}, api.labelled)
}

func TestSuccessKeepsExistingLabel(t *testing.T) {
	api := &fakeAPI{pull: models.PullRequest{Number: 42, Labels: []string{"Deployed"}}}
	tr, _ := newTracker(api)
	d, err := tr.MarkToDeploy(context.Background(), 42)
	require.NoError(t, err)

	require.NoError(t, d.Succeed(context.Background(), "ok"))
	assert.Empty(t, api.labelled)
}

func TestSuccessLabelFailureIsWarning(t *testing.T) {
	api := &fakeAPI{pull: models.PullRequest{Number: 42}, labelErr: errors.New("403")}
	tr, _ := newTracker(api)
	d, err := tr.MarkToDeploy(context.Background(), 42)
	require.NoError(t, err)
	assert.NoError(t, d.Succeed(context.Background(), "ok"))
}

func TestNoLabelAndUntrackedHost(t *testing.T) {
	api := &fakeAPI{pull: models.PullRequest{Number: 42}}
	tr, _ := newTracker(api)

	d, err := tr.MarkDeployed(context.Background(), 42, true)
	require.NoError(t, err)
	assert.Equal(t, models.StateSuccess, d.State)
	assert.Empty(t, api.labelled)

	tr.WithHostname("devbox")
	_, err = tr.MarkDeployed(context.Background(), 42, false)
	require.NoError(t, err)
	assert.Empty(t, api.labelled)
}

func TestMarkStatus(t *testing.T) {
	api := &fakeAPI{statusErr: errors.New("boom")}
	tr, _ := newTracker(api)

	assert.NoError(t, tr.MarkStatus(context.Background(), 0, models.StateFailure, ""))
	assert.Empty(t, api.posted)

	err := tr.MarkStatus(context.Background(), 5, models.DeployState("done"), "")
	assert.True(t, errs.Is(err, errs.Usage))

	assert.EqualError(t, tr.MarkStatus(context.Background(), 5, models.StateFailure, "manual"), "boom")
}

func prCommits() []models.Commit {
	return []models.Commit{
		{SHA: "c1", Parents: 1},
		{SHA: "c2", Parents: 1},
		{SHA: "m3", Parents: 2},
		{SHA: "c4", Parents: 1},
		{SHA: "c5", Parents: 1},
	}
}

func success() []models.DeploymentStatus {
	return []models.DeploymentStatus{{State: models.StateSuccess}, {State: models.StatePending}}
}

func TestLastDeployFindsNewestSuccessOnHost(t *testing.T) {
	api := &fakeAPI{
		commits: prCommits(),
		deployments: map[string][]models.DeploymentRecord{
			"c5": {{ID: 1, Environment: "erp-pre"}},
			"c4": {{ID: 2, Environment: "erp01"}},
			"c2": {{ID: 3, Environment: "erp01"}},
		},
		statuses: map[int64][]models.DeploymentStatus{
			1: success(),
			2: {{State: models.StateError}, {State: models.StatePending}},
			3: success(),
		},
	}
	tr, _ := newTracker(api)

	rp, err := tr.LastDeploy(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, rp.Found())
	assert.Equal(t, "c2", rp.Deployed.SHA)
	assert.Equal(t, "m3", rp.Next.SHA)
	assert.Equal(t, "c2", rp.From)
	assert.Equal(t, int64(3), rp.Deployment.ID)
	assert.False(t, rp.UpToDate())
}

func TestLastDeployMergeResumesFromOlderCommit(t *testing.T) {
	api := &fakeAPI{
		commits:     prCommits(),
		deployments: map[string][]models.DeploymentRecord{"m3": {{ID: 9, Environment: "erp01"}}},
		statuses:    map[int64][]models.DeploymentStatus{9: success()},
	}
	tr, _ := newTracker(api)

	rp, err := tr.LastDeploy(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "m3", rp.Deployed.SHA)
	assert.Equal(t, "c4", rp.Next.SHA)
	assert.Equal(t, "c2", rp.From)
}

func TestLastDeployHeadAlreadyDeployed(t *testing.T) {
	api := &fakeAPI{
		commits:     prCommits(),
		deployments: map[string][]models.DeploymentRecord{"c5": {{ID: 4, Environment: "erp01"}}},
		statuses:    map[int64][]models.DeploymentStatus{4: success()},
	}
	tr, _ := newTracker(api)

	rp, err := tr.LastDeploy(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, rp.UpToDate())
}

func TestLastDeployNone(t *testing.T) {
	tr, _ := newTracker(&fakeAPI{commits: prCommits()})
	rp, err := tr.LastDeploy(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, rp.Found())
	assert.Equal(t, "", rp.From)
}

func TestListDeploysAttachesStatuses(t *testing.T) {
	api := &fakeAPI{
		pull:        models.PullRequest{Number: 42, HeadSHA: "c5"},
		deployments: map[string][]models.DeploymentRecord{"c5": {{ID: 1, Environment: "erp01"}, {ID: 2, Environment: "erp-pre"}}},
		statuses:    map[int64][]models.DeploymentStatus{1: success()},
	}
	tr, _ := newTracker(api)

	records, err := tr.ListDeploys(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.StateSuccess, records[0].LatestState())
	assert.Equal(t, models.DeployState(""), records[1].LatestState())
}
