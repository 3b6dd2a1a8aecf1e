package remote

import (
	"context"

	"github.com/wahlandcase/applypr/internal/errs"

	"go.uber.org/zap"
)

// IsLocal reports whether host names this machine
func IsLocal(host string) bool {
	switch host {
	case "", "local", "localhost", "127.0.0.1":
		return true
	}
	return false
}

// Open returns a local channel for local hosts and an SSH channel otherwise
func Open(ctx context.Context, opts SSHOptions, log *zap.Logger) (Channel, error) {
	if IsLocal(opts.Host) {
		return NewLocal(), nil
	}
	ch, err := DialSSH(ctx, opts, log)
	if err != nil {
		return nil, errs.New(errs.Connection, opts.Host, err)
	}
	return ch, nil
}
