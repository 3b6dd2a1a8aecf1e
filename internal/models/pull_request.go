package models

import (
	"strings"
	"time"
)

// PullRequest is a snapshot of a PR as returned by the hosting API
type PullRequest struct {
	// Number is the PR number
	Number int
	// Title is the PR title
	Title string
	// State is "open" or "closed"
	State string
	// BaseSHA is the commit the PR is based on
	BaseSHA string
	// HeadSHA is the tip of the PR branch
	HeadSHA string
	// BaseLabel is "owner:branch" of the base
	BaseLabel string
	// HeadLabel is "owner:branch" of the head
	HeadLabel string
	// BaseRef is the base branch name
	BaseRef string
	// Merged is true once the PR has been merged
	Merged bool
	// MergedAt is nil until merged
	MergedAt *time.Time
	// Milestone title, empty if none
	Milestone string
	// Labels are the label names on the PR
	Labels []string
}

// SameOrigin reports whether head and base live in the same repository owner
func (p PullRequest) SameOrigin() bool {
	headOwner, _, _ := strings.Cut(p.HeadLabel, ":")
	baseOwner, _, _ := strings.Cut(p.BaseLabel, ":")
	return headOwner != "" && headOwner == baseOwner
}

// HeadBranch returns the branch part of HeadLabel
func (p PullRequest) HeadBranch() string {
	_, branch, ok := strings.Cut(p.HeadLabel, ":")
	if !ok {
		return p.HeadLabel
	}
	return branch
}

// HasLabel reports whether the PR carries the given label (case-insensitive)
func (p PullRequest) HasLabel(name string) bool {
	for _, l := range p.Labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}
