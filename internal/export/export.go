// Package export turns a pull request into patch files on local disk: one
// mail-format patch per non-merge commit, or a single unified diff.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"

	"go.uber.org/zap"
)

// API is the part of the hosting API export reads from
type API interface {
	PullRequest(ctx context.Context, number int) (*models.PullRequest, error)
	Commits(ctx context.Context, number int) ([]models.Commit, error)
	CommitPatch(ctx context.Context, sha string) (string, error)
	PullDiff(ctx context.Context, number int) (string, error)
}

// LocalRepo is a clone the PR branch can be exported from directly
type LocalRepo interface {
	CommitsBetween(base, head string) ([]models.Commit, error)
	FormatPatch(sha string) (string, error)
}

// Exporter writes artifacts under <dir>/<pr>
type Exporter struct {
	api   API
	local LocalRepo
	dir   string
	log   *zap.Logger
	// OnPatch is called after each file is written
	OnPatch func(models.PatchArtifact)
}

func New(api API, dir string, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{api: api, dir: dir, log: log}
}

// WithLocal makes the exporter read commits from repo when the PR branch
// lives in the same origin and is not merged yet
func (e *Exporter) WithLocal(repo LocalRepo) *Exporter {
	e.local = repo
	return e
}

// Dir returns the local staging directory for a PR
func (e *Exporter) Dir(pr int) string {
	return filepath.Join(e.dir, strconv.Itoa(pr))
}

// Patches exports the PR as numbered patches, resuming after fromCommit
// when it is set. The staging directory is emptied first, so rerunning an
// export yields exactly the same file set.
func (e *Exporter) Patches(ctx context.Context, pr int, fromCommit string) ([]models.PatchArtifact, error) {
	pull, err := e.api.PullRequest(ctx, pr)
	if err != nil {
		return nil, err
	}

	commits, patch, err := e.source(ctx, pull)
	if err != nil {
		return nil, err
	}
	entries, err := Plan(commits, fromCommit)
	if err != nil {
		return nil, err
	}
	e.log.Info("exporting patches",
		zap.Int("pr", pr),
		zap.Int("commits", len(commits)),
		zap.Int("selected", len(entries)),
		zap.String("from_commit", fromCommit),
	)

	dir, err := e.resetDir(pr)
	if err != nil {
		return nil, err
	}

	artifacts := make([]models.PatchArtifact, 0, len(entries))
	for _, entry := range entries {
		content, err := patch(entry.Commit.SHA)
		if err != nil {
			return nil, err
		}
		art, err := e.write(dir, entry.Name(), content)
		if err != nil {
			return nil, err
		}
		art.Number = entry.Number
		art.Commit = entry.Commit.SHA
		artifacts = append(artifacts, art)
		e.notify(art)
		e.log.Debug("exported patch", zap.String("file", art.Name), zap.String("commit", entry.Commit.ShortSHA()))
	}
	return artifacts, nil
}

// Diff exports the whole PR as one diff, with no merge filtering
func (e *Exporter) Diff(ctx context.Context, pr int) (models.PatchArtifact, error) {
	content, err := e.api.PullDiff(ctx, pr)
	if err != nil {
		return models.PatchArtifact{}, err
	}
	dir, err := e.resetDir(pr)
	if err != nil {
		return models.PatchArtifact{}, err
	}
	art, err := e.write(dir, models.DiffFileName(pr), content)
	if err != nil {
		return models.PatchArtifact{}, err
	}
	art.Kind = models.KindDiff
	e.notify(art)
	e.log.Info("exported diff", zap.Int("pr", pr), zap.Int("files", len(art.Files)))
	return art, nil
}

func (e *Exporter) notify(art models.PatchArtifact) {
	if e.OnPatch != nil {
		e.OnPatch(art)
	}
}

type patchFunc func(sha string) (string, error)

func (e *Exporter) source(ctx context.Context, pull *models.PullRequest) ([]models.Commit, patchFunc, error) {
	if e.local != nil && pull.SameOrigin() && !pull.Merged {
		commits, err := e.local.CommitsBetween(pull.BaseSHA, pull.HeadSHA)
		if err == nil {
			e.log.Info("exporting from local clone", zap.String("branch", pull.HeadBranch()))
			return commits, e.local.FormatPatch, nil
		}
		// The clone may simply be behind; the API always has the commits
		e.log.Warn("local clone unusable, falling back to the API", zap.Error(err))
	}
	commits, err := e.api.Commits(ctx, pull.Number)
	if err != nil {
		return nil, nil, err
	}
	return commits, func(sha string) (string, error) {
		return e.api.CommitPatch(ctx, sha)
	}, nil
}

func (e *Exporter) resetDir(pr int) (string, error) {
	dir := e.Dir(pr)
	if err := os.RemoveAll(dir); err != nil {
		return "", errs.WithPath(errs.Upload, "clear patch dir", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errs.WithPath(errs.Upload, "create patch dir", dir, err)
	}
	return dir, nil
}

func (e *Exporter) write(dir, name, content string) (models.PatchArtifact, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return models.PatchArtifact{}, errs.WithPath(errs.Upload, "write patch", path, err)
	}
	files, err := TouchedFiles([]byte(content))
	if err != nil {
		return models.PatchArtifact{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return models.PatchArtifact{Kind: models.KindPatch, Name: name, LocalPath: path, Files: files}, nil
}
