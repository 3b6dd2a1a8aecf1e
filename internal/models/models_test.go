package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePatchNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"0001-add-tariff.patch", 1, true},
		{"0042-x.patch", 42, true},
		{"0007.patch", 7, true},
		{"42.diff", 0, false},
		{"notes.txt", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePatchNumber(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPatchFileName(t *testing.T) {
	assert.Equal(t, "0003-fix-rounding.patch", PatchFileName(3, "fix-rounding"))
	assert.Equal(t, "0012.patch", PatchFileName(12, ""))
	assert.Equal(t, "77.diff", DiffFileName(77))
}

func TestCommit(t *testing.T) {
	c := Commit{SHA: "0123456789abcdef", Message: "Fix invoice\n\nlong body", Parents: 2}
	assert.True(t, c.IsMerge())
	assert.Equal(t, "Fix invoice", c.Subject())
	assert.Equal(t, "0123456", c.ShortSHA())
	assert.False(t, Commit{Parents: 1}.IsMerge())

	assert.True(t, c.Matches("0123456789abcdef"))
	assert.True(t, c.Matches("0123456"))
	assert.False(t, c.Matches("012345"))
	assert.False(t, c.Matches("0123457"))
	assert.False(t, c.Matches(""))
	assert.False(t, Commit{}.Matches("0123456"))
}

func TestPullRequestOrigin(t *testing.T) {
	pr := PullRequest{HeadLabel: "gisce:fix_x", BaseLabel: "gisce:developer"}
	assert.True(t, pr.SameOrigin())
	assert.Equal(t, "fix_x", pr.HeadBranch())

	fork := PullRequest{HeadLabel: "someone:fix_x", BaseLabel: "gisce:developer"}
	assert.False(t, fork.SameOrigin())
}

func TestDeployState(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateError.Terminal())
	assert.True(t, StateFailure.Terminal())
	assert.False(t, DeployState("done").Valid())

	rec := DeploymentRecord{ID: 3, Statuses: []DeploymentStatus{{State: StateSuccess}, {State: StatePending}}}
	assert.True(t, rec.Tracked())
	assert.Equal(t, StateSuccess, rec.LatestState())
	assert.Equal(t, DeployState(""), DeploymentRecord{}.LatestState())
}

func TestBatchStatus(t *testing.T) {
	assert.True(t, IsStatusDeployed(Deployed))
	assert.Equal(t, "success", StatusName(Deployed))

	s := Failed("boom")
	assert.True(t, IsStatusFailed(s))
	assert.Equal(t, "boom", GetStatusReason(s))
	assert.Equal(t, "failed", StatusName(s))

	sk := Skipped("already deployed")
	assert.True(t, IsStatusSkipped(sk))
	assert.Equal(t, "already deployed", GetStatusReason(sk))
}
