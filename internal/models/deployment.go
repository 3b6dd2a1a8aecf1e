package models

import "time"

// DeployState is the state of a deployment status on the hosting API
type DeployState string

const (
	StatePending DeployState = "pending"
	StateSuccess DeployState = "success"
	StateError   DeployState = "error"
	StateFailure DeployState = "failure"
)

// Terminal reports whether no further transition is expected after this state
func (s DeployState) Terminal() bool {
	return s == StateSuccess || s == StateError || s == StateFailure
}

// Valid reports whether s is one of the known states
func (s DeployState) Valid() bool {
	switch s {
	case StatePending, StateSuccess, StateError, StateFailure:
		return true
	}
	return false
}

// DeploymentRecord is a deployment resource on the hosting API
type DeploymentRecord struct {
	// ID assigned by the API; 0 means the deploy is not tracked
	ID int64
	// Ref is the commit SHA that was deployed
	Ref string
	// Environment is the target host label
	Environment string
	// Description as recorded on creation
	Description string
	// Creator login
	Creator string
	// CreatedAt timestamp
	CreatedAt time.Time
	// Statuses, newest first
	Statuses []DeploymentStatus
}

// Tracked reports whether the record exists on the hosting API
func (d DeploymentRecord) Tracked() bool {
	return d.ID != 0
}

// LatestState returns the most recent status state, or "" if none
func (d DeploymentRecord) LatestState() DeployState {
	if len(d.Statuses) == 0 {
		return ""
	}
	return d.Statuses[0].State
}

// DeploymentStatus is one status entry of a deployment
type DeploymentStatus struct {
	State       DeployState
	Description string
	Creator     string
	CreatedAt   time.Time
}

// DeploymentRequest is what the tracker asks the hosting API to record
type DeploymentRequest struct {
	// Ref is the commit to mark, normally the PR head
	Ref string
	// Host is the deploy target; used as environment, description and payload
	Host string
}
