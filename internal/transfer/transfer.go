// Package transfer moves exported artifacts onto the remote host, into the
// patches directory of the checkout, owned by the deploy user.
package transfer

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/remote"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Target is where artifacts end up on the remote host
type Target struct {
	// Dir is the final directory, e.g. /home/erp/src/erp/patches/42
	Dir string
	// Owner receives ownership of Dir after the move; empty keeps root
	Owner string
}

// Uploader copies artifacts through a staging directory
type Uploader struct {
	exec  *remote.Exec
	log   *zap.Logger
	newID func() string
}

func New(exec *remote.Exec, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{
		exec:  exec,
		log:   log,
		newID: func() string { return uuid.NewString()[:8] },
	}
}

// Upload places arts in target.Dir and returns them with RemotePath set.
// When fromCommit is set, artifacts up to and including the one exported
// from that commit are dropped first; an unknown commit fails before
// anything is sent.
func (u *Uploader) Upload(ctx context.Context, pr int, target Target, arts []models.PatchArtifact, fromCommit string) ([]models.PatchArtifact, error) {
	if fromCommit != "" {
		var err error
		if arts, err = AfterCommit(arts, fromCommit); err != nil {
			return nil, err
		}
	}

	staging := fmt.Sprintf("/tmp/applypr-%d-%s", pr, u.newID())
	login := u.exec.Unprivileged()
	root := u.exec.As("")

	if _, err := login.Check(ctx, errs.Upload, "mkdir -p "+remote.Quote(staging)); err != nil {
		return nil, err
	}
	defer u.cleanup(login, staging)

	if _, err := root.Check(ctx, errs.Upload, "mkdir -p "+remote.Quote(target.Dir)); err != nil {
		return nil, err
	}
	// Leftovers from an earlier export would be picked up by --skip-upload
	dir := remote.Quote(target.Dir)
	if _, err := root.Check(ctx, errs.Upload, "rm -f "+dir+"/*.patch "+dir+"/*.diff"); err != nil {
		return nil, err
	}

	u.log.Info("uploading artifacts",
		zap.Int("pr", pr),
		zap.Int("count", len(arts)),
		zap.String("host", u.exec.Host()),
		zap.String("dir", target.Dir),
	)

	out := make([]models.PatchArtifact, 0, len(arts))
	for _, art := range arts {
		staged := path.Join(staging, art.Name)
		if err := u.put(ctx, login, art.LocalPath, staged); err != nil {
			return nil, err
		}
		final := path.Join(target.Dir, art.Name)
		if _, err := root.Check(ctx, errs.Upload, "mv -f "+remote.QuoteAll(staged, final)); err != nil {
			return nil, err
		}
		art.RemotePath = final
		out = append(out, art)
	}

	if target.Owner != "" {
		if _, err := root.Check(ctx, errs.Upload, "chown -R "+remote.Quote(target.Owner+":")+" "+dir); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (u *Uploader) put(ctx context.Context, login *remote.Exec, local, dst string) error {
	f, err := os.Open(local)
	if err != nil {
		return errs.WithPath(errs.Upload, "open artifact", local, err)
	}
	defer f.Close()
	return login.Upload(ctx, f, dst)
}

func (u *Uploader) cleanup(login *remote.Exec, staging string) {
	// The caller's context may already be cancelled
	if _, err := login.Quiet().Run(context.Background(), "rm -rf "+remote.Quote(staging)); err != nil {
		u.log.Warn("could not remove staging dir", zap.String("dir", staging), zap.Error(err))
	}
}
