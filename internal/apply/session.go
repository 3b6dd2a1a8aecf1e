// Package apply drives `git am` / `git apply` on the remote checkout as an
// explicit state machine. Conflicts suspend the session and hand control
// back to the caller, which gathers an operator decision and resumes.
package apply

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/export"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/remote"

	"go.uber.org/zap"
)

const applyMarker = ".git/rebase-apply"

var failedAt = regexp.MustCompile(`Patch failed at ([0-9]{4}) `)

// Options tune a session
type Options struct {
	// AutoExit aborts on the first conflict instead of asking
	AutoExit bool
	// Reject applies a diff with --reject, leaving *.rej fragments
	Reject bool
	// CommitMessage is used to commit an applied diff
	CommitMessage string
	// OnApplied is called with the subject of each patch git am applies
	OnApplied func(subject string)
}

// Conflict describes where a session stopped
type Conflict struct {
	// Patch is the failing artifact, nil when it could not be identified
	Patch *models.PatchArtifact
	// Number is the failing patch number, 0 for diffs or when unknown
	Number int
	// Output is the raw tool output
	Output string
	// Rejects are the *.rej files left behind, relative to the checkout
	Rejects []string
}

// Step is what the caller sees after Start or Resolve
type Step struct {
	// Done is false while the session waits for a decision
	Done     bool
	Outcome  Outcome
	Conflict *Conflict
}

// Session applies one set of artifacts to a checkout
type Session struct {
	exec *remote.Exec
	log  *zap.Logger
	arts []models.PatchArtifact
	opts Options
	diff bool

	state      State
	history    []State
	conflicted bool
	current    *Conflict
	applied    int
}

// NewSession validates the artifact set against opts. exec must already
// point at the checkout and run as the deploy user.
func NewSession(exec *remote.Exec, arts []models.PatchArtifact, opts Options, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(arts) == 0 {
		return nil, errs.Newf(errs.Usage, "apply", "nothing to apply")
	}
	diff := arts[0].Kind == models.KindDiff
	if diff && len(arts) != 1 {
		return nil, errs.Newf(errs.Usage, "apply", "a diff is applied on its own, got %d artifacts", len(arts))
	}
	if opts.Reject && !diff {
		return nil, errs.Newf(errs.Usage, "apply", "--reject only works with --as-diff")
	}
	if opts.Reject && opts.AutoExit {
		return nil, errs.Newf(errs.Usage, "apply", "--reject cannot be combined with --auto-exit")
	}
	return &Session{
		exec:    exec,
		log:     log,
		arts:    arts,
		opts:    opts,
		diff:    diff,
		history: []State{Idle},
	}, nil
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// History returns every state the session went through, in order
func (s *Session) History() []State {
	out := make([]State, len(s.history))
	copy(out, s.history)
	return out
}

// Applied returns how many patches git am applied
func (s *Session) Applied() int {
	return s.applied
}

// Conflict returns the pending conflict, if any
func (s *Session) Conflict() *Conflict {
	return s.current
}

func (s *Session) move(to State) {
	if !canMove(s.state, to) {
		// Programming error in the session itself
		panic(fmt.Sprintf("apply: illegal transition %s -> %s", s.state, to))
	}
	s.log.Debug("apply state", zap.Stringer("from", s.state), zap.Stringer("to", to))
	s.state = to
	s.history = append(s.history, to)
}

// Start checks the checkout is free and applies the artifacts
func (s *Session) Start(ctx context.Context) (Step, error) {
	if s.state != Idle {
		return Step{}, errs.Newf(errs.Usage, "apply", "session already started")
	}
	busy, err := s.exec.Exists(ctx, applyMarker)
	if err != nil {
		return Step{}, err
	}
	if busy {
		return Step{}, errs.WithPath(errs.Precondition, "previous git am in progress", applyMarker,
			fmt.Errorf("finish it with git am --continue or --abort"))
	}

	s.move(Applying)
	if s.diff {
		return s.applyDiff(ctx)
	}

	paths := make([]string, len(s.arts))
	for i, art := range s.arts {
		paths[i] = artifactPath(art)
	}
	s.log.Info("applying patches", zap.Int("count", len(paths)), zap.String("host", s.exec.Host()))
	res, err := s.exec.Run(ctx, "git am "+remote.QuoteAll(paths...))
	if err != nil {
		return Step{}, err
	}
	return s.afterAm(ctx, res)
}

// Resolve resumes a session waiting on the operator
func (s *Session) Resolve(ctx context.Context, d Decision) (Step, error) {
	if s.state != AwaitingOperator {
		return Step{}, errs.Newf(errs.Usage, "apply", "no conflict to resolve (state %s)", s.state)
	}
	s.log.Info("operator decision", zap.Stringer("decision", d))

	switch d {
	case Abort:
		if err := s.abort(ctx); err != nil {
			return Step{}, err
		}
		return Step{Done: true, Outcome: OutcomeAborted, Conflict: s.current}, nil
	case Wiggle:
		if err := s.wiggle(ctx); err != nil {
			// Still waiting: the operator may fix things by hand or abort
			return Step{Conflict: s.current}, err
		}
	}
	if s.diff {
		s.conflicted = true
		s.move(Resolved)
		return s.commitDiff(ctx)
	}
	return s.continueAm(ctx)
}

func (s *Session) afterAm(ctx context.Context, res remote.Result) (Step, error) {
	s.progress(res.Output)
	if !res.Failed() {
		s.move(Clean)
		s.current = nil
		return Step{Done: true, Outcome: s.outcome()}, nil
	}

	if missingIdentity(res.Output) {
		s.bestEffortAbort(ctx)
		s.move(Aborted)
		return Step{Done: true, Outcome: OutcomeAborted}, errs.WithOutput(errs.Config, "git am", res.Output)
	}

	s.move(ConflictDetected)
	s.current = s.conflictFrom(res.Output)
	s.log.Warn("patch did not apply", zap.Int("number", s.current.Number))

	if s.opts.AutoExit {
		if err := s.abort(ctx); err != nil {
			return Step{}, err
		}
		return Step{Done: true, Outcome: OutcomeAborted, Conflict: s.current}, errs.WithOutput(errs.Conflict, "git am", res.Output)
	}
	s.move(AwaitingOperator)
	return Step{Conflict: s.current}, nil
}

func (s *Session) continueAm(ctx context.Context) (Step, error) {
	staged, err := s.exec.Check(ctx, errs.Conflict, "git diff --cached --name-only --no-color")
	if err != nil {
		return Step{}, err
	}
	s.conflicted = true

	line := "git am --skip"
	if strings.TrimSpace(staged) != "" {
		s.move(Resolved)
		line = "git am --resolved"
	} else {
		s.move(Skipped)
		s.log.Info("nothing staged, skipping patch", zap.Int("number", s.current.Number))
	}
	s.move(Applying)
	res, err := s.exec.Run(ctx, line)
	if err != nil {
		return Step{}, err
	}
	return s.afterAm(ctx, res)
}

func (s *Session) applyDiff(ctx context.Context) (Step, error) {
	art := s.arts[0]
	line := "git apply "
	if s.opts.Reject {
		line += "--reject "
	}
	line += remote.Quote(artifactPath(art))

	s.log.Info("applying diff", zap.String("file", art.Name), zap.Bool("reject", s.opts.Reject))
	res, err := s.exec.Run(ctx, line)
	if err != nil {
		return Step{}, err
	}
	if !res.Failed() {
		return s.commitDiff(ctx)
	}

	s.move(ConflictDetected)
	s.current = &Conflict{Patch: &s.arts[0], Output: res.Output}
	if s.opts.Reject {
		if s.current.Rejects, err = s.rejects(ctx); err != nil {
			return Step{}, err
		}
	}
	if s.opts.AutoExit {
		s.move(Aborted)
		return Step{Done: true, Outcome: OutcomeAborted, Conflict: s.current}, errs.WithOutput(errs.Conflict, "git apply", res.Output)
	}
	s.move(AwaitingOperator)
	return Step{Conflict: s.current}, nil
}

// commitDiff commits whatever the diff changed. No changes is a success.
// Reject fragments and the uploaded artifacts are never staged.
func (s *Session) commitDiff(ctx context.Context) (Step, error) {
	if _, err := s.exec.Check(ctx, errs.Conflict, "git add -A -- . "+remote.QuoteAll(s.unstaged()...)); err != nil {
		return Step{}, err
	}
	res, err := s.exec.Quiet().Run(ctx, "git diff --cached --quiet")
	if err != nil {
		return Step{}, err
	}
	if res.ExitCode > 1 {
		return Step{}, errs.WithOutput(errs.Conflict, "git diff --cached", res.Output)
	}
	if !res.Failed() {
		s.log.Info("diff produced no changes, nothing to commit")
		s.move(Clean)
		return Step{Done: true, Outcome: s.outcome()}, nil
	}

	msg := s.opts.CommitMessage
	if msg == "" {
		msg = "Apply " + s.arts[0].Name
	}
	res, err = s.exec.Run(ctx, "git commit -m "+remote.Quote(msg))
	if err != nil {
		return Step{}, err
	}
	if res.Failed() {
		kind := errs.Conflict
		if missingIdentity(res.Output) {
			kind = errs.Config
		}
		s.move(Aborted)
		return Step{Done: true, Outcome: OutcomeAborted}, errs.WithOutput(kind, "git commit", res.Output)
	}
	s.move(Clean)
	return Step{Done: true, Outcome: s.outcome()}, nil
}

// unstaged lists the pathspecs kept out of a diff commit. When the artifact
// was uploaded inside the checkout, its top level directory is one of them.
func (s *Session) unstaged() []string {
	specs := []string{":(exclude)*.rej", ":(exclude)*.porig"}
	p := path.Clean(artifactPath(s.arts[0]))
	if path.IsAbs(p) {
		dir := s.exec.Dir()
		if dir == "" {
			return specs
		}
		rel, ok := strings.CutPrefix(p, path.Clean(dir)+"/")
		if !ok {
			return specs
		}
		p = rel
	}
	if p == "." || strings.HasPrefix(p, "../") {
		return specs
	}
	top, _, _ := strings.Cut(p, "/")
	return append(specs, ":(exclude)"+top)
}

func (s *Session) wiggle(ctx context.Context) error {
	if s.current == nil || s.current.Patch == nil {
		return errs.Newf(errs.Conflict, "wiggle", "failing patch could not be identified")
	}
	art := s.current.Patch
	p := artifactPath(*art)

	files := art.Files
	if len(files) == 0 {
		content, err := s.exec.Quiet().Check(ctx, errs.Conflict, "cat "+remote.Quote(p))
		if err != nil {
			return err
		}
		if files, err = export.TouchedFiles([]byte(content)); err != nil {
			return errs.WithPath(errs.Conflict, "parse patch", p, err)
		}
	}

	// A diff applied with --reject already left its fragments behind.
	// Otherwise this exits non-zero whenever a hunk is rejected, as expected.
	if !(s.diff && s.opts.Reject) {
		if _, err := s.exec.Run(ctx, "git apply --reject "+remote.Quote(p)); err != nil {
			return err
		}
	}

	for _, f := range files {
		rej := f + ".rej"
		has, err := s.exec.Exists(ctx, rej)
		if err != nil {
			return err
		}
		if has {
			if _, err := s.exec.Check(ctx, errs.Conflict, "wiggle --replace "+remote.QuoteAll(f, rej)); err != nil {
				return err
			}
			if _, err := s.exec.Run(ctx, "rm -f "+remote.QuoteAll(rej, f+".porig")); err != nil {
				return err
			}
		}

		status, err := s.exec.Quiet().Check(ctx, errs.Conflict, "git status --porcelain -- "+remote.Quote(f))
		if err != nil {
			return err
		}
		stage := "git add -f "
		if strings.HasPrefix(status, " D") {
			stage = "git rm -f "
		}
		if _, err := s.exec.Check(ctx, errs.Conflict, stage+remote.Quote(f)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) rejects(ctx context.Context) ([]string, error) {
	out, err := s.exec.Quiet().Check(ctx, errs.Conflict, `find . -name "*.rej" -not -path "./.git/*"`)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			files = append(files, strings.TrimPrefix(l, "./"))
		}
	}
	return files, nil
}

// abort rolls back a patch sequence. A diff is left as is for manual cleanup.
func (s *Session) abort(ctx context.Context) error {
	if !s.diff {
		if _, err := s.exec.Check(ctx, errs.Conflict, "git am --abort"); err != nil {
			return err
		}
	}
	s.move(Aborted)
	return nil
}

func (s *Session) bestEffortAbort(ctx context.Context) {
	if _, err := s.exec.Run(ctx, "git am --abort"); err != nil {
		s.log.Warn("git am --abort failed", zap.Error(err))
	}
}

func (s *Session) progress(output string) {
	var subjects []string
	for _, line := range strings.Split(output, "\n") {
		if subject, ok := strings.CutPrefix(strings.TrimSpace(line), "Applying: "); ok {
			subjects = append(subjects, subject)
		}
	}
	// The last patch started is the one that failed
	if len(subjects) > 0 && failedAt.MatchString(output) {
		subjects = subjects[:len(subjects)-1]
	}
	for _, subject := range subjects {
		s.applied++
		if s.opts.OnApplied != nil {
			s.opts.OnApplied(subject)
		}
	}
}

// conflictFrom maps git am's "Patch failed at NNNN" onto the artifact set.
// NNNN is the position within this run, which only matches the file name
// prefix when the run started at patch 0001.
func (s *Session) conflictFrom(output string) *Conflict {
	c := &Conflict{Output: output}
	m := failedAt.FindStringSubmatch(output)
	if m == nil {
		return c
	}
	pos, _ := strconv.Atoi(m[1])
	if pos >= 1 && pos <= len(s.arts) {
		c.Patch = &s.arts[pos-1]
		c.Number = c.Patch.Number
	}
	return c
}

func (s *Session) outcome() Outcome {
	if s.conflicted {
		return OutcomeResolved
	}
	return OutcomeClean
}

func missingIdentity(output string) bool {
	return strings.Contains(output, "Please tell me who you are") ||
		strings.Contains(output, "git config --global user.email")
}

func artifactPath(art models.PatchArtifact) string {
	if art.RemotePath != "" {
		return art.RemotePath
	}
	return art.LocalPath
}
