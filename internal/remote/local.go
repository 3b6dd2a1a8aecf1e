package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Local runs commands through bash on this machine, for deploying to the
// host applypr itself runs on.
type Local struct {
	host string
}

func NewLocal() *Local {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return &Local{host: host}
}

func (l *Local) Run(ctx context.Context, line string, stdin io.Reader) (Result, error) {
	cmd := exec.CommandContext(ctx, "bash", "-c", line)
	cmd.Stdin = stdin

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res := Result{Output: out.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

func (l *Local) Host() string {
	return l.host
}

func (l *Local) Close() error {
	return nil
}
