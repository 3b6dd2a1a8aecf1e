package models

// BatchStatus represents the outcome of one PR in a batch deploy
type BatchStatus interface {
	isBatchStatus()
}

type batchStatusDeployed struct{}
type batchStatusSkipped struct{ Reason string }
type batchStatusFailed struct{ Error string }

func (batchStatusDeployed) isBatchStatus() {}
func (batchStatusSkipped) isBatchStatus()  {}
func (batchStatusFailed) isBatchStatus()   {}

// Deployed indicates the PR was applied and marked as success
var Deployed BatchStatus = batchStatusDeployed{}

// Skipped creates a BatchStatus for a PR that had nothing to apply
func Skipped(reason string) BatchStatus {
	return batchStatusSkipped{Reason: reason}
}

// Failed creates a BatchStatus for a failed deploy with an error message
func Failed(err string) BatchStatus {
	return batchStatusFailed{Error: err}
}

// BatchResult represents the result of deploying a single PR in batch mode
type BatchResult struct {
	// PR number
	PR int
	// Status of the deploy
	Status BatchStatus
	// DeploymentID on the hosting API, 0 if untracked
	DeploymentID int64
}

// IsStatusDeployed returns true if status is Deployed
func IsStatusDeployed(s BatchStatus) bool {
	_, ok := s.(batchStatusDeployed)
	return ok
}

// IsStatusSkipped returns true if status is Skipped
func IsStatusSkipped(s BatchStatus) bool {
	_, ok := s.(batchStatusSkipped)
	return ok
}

// IsStatusFailed returns true if status is Failed
func IsStatusFailed(s BatchStatus) bool {
	_, ok := s.(batchStatusFailed)
	return ok
}

// GetStatusReason returns the reason string for Skipped or Failed statuses
func GetStatusReason(s BatchStatus) string {
	if skipped, ok := s.(batchStatusSkipped); ok {
		return skipped.Reason
	}
	if failed, ok := s.(batchStatusFailed); ok {
		return failed.Error
	}
	return ""
}

// StatusName returns a short name usable with ui.StatusIcon
func StatusName(s BatchStatus) string {
	switch {
	case IsStatusDeployed(s):
		return "success"
	case IsStatusSkipped(s):
		return "skipped"
	case IsStatusFailed(s):
		return "failed"
	}
	return ""
}
