package orchestrator

import (
	"context"

	"github.com/wahlandcase/applypr/internal/apply"
	"github.com/wahlandcase/applypr/internal/deploy"
)

// Operator answers the questions a deploy cannot answer alone
type Operator interface {
	// ConfirmResume asks whether to continue from the last deploy found
	ConfirmResume(ctx context.Context, pr int, rp deploy.ResumePoint) (bool, error)
	// Decide picks how to go on after a conflict
	Decide(ctx context.Context, pr int, c *apply.Conflict) (apply.Decision, error)
}

// NonInteractive never resumes and always aborts
type NonInteractive struct{}

func (NonInteractive) ConfirmResume(context.Context, int, deploy.ResumePoint) (bool, error) {
	return false, nil
}

func (NonInteractive) Decide(context.Context, int, *apply.Conflict) (apply.Decision, error) {
	return apply.Abort, nil
}

// Phase is a step of a deploy, reported to a Notifier
type Phase int

const (
	PhasePreflight Phase = iota
	PhaseResume
	PhasePending
	PhaseExport
	PhaseUpload
	PhaseApply
	PhaseConflict
	PhaseSuccess
	PhaseFailure
)

func (p Phase) String() string {
	switch p {
	case PhasePreflight:
		return "preflight"
	case PhaseResume:
		return "resume"
	case PhasePending:
		return "pending"
	case PhaseExport:
		return "export"
	case PhaseUpload:
		return "upload"
	case PhaseApply:
		return "apply"
	case PhaseConflict:
		return "conflict"
	case PhaseSuccess:
		return "success"
	case PhaseFailure:
		return "failure"
	}
	return "unknown"
}

// Notifier receives progress for display
type Notifier interface {
	Phase(pr int, phase Phase, detail string)
	Applied(pr int, subject string)
}

type nopNotifier struct{}

func (nopNotifier) Phase(int, Phase, string) {}
func (nopNotifier) Applied(int, string)      {}
