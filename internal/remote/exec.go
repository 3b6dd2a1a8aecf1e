package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wahlandcase/applypr/internal/errs"

	"go.uber.org/zap"
)

// Exec is an immutable execution context over a Channel. The With* style
// methods return modified copies, so a context can be narrowed for one call
// without affecting the caller's value.
type Exec struct {
	ch      Channel
	log     *zap.Logger
	dir     string
	user    string
	elevate bool
	// noSudo disables elevation entirely, for hosts where the login user owns the checkout
	noSudo bool
	quiet  bool
}

// NewExec wraps ch in a context running as the login user, in its home directory
func NewExec(ch Channel, log *zap.Logger) *Exec {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exec{ch: ch, log: log}
}

func (e *Exec) clone() *Exec {
	c := *e
	return &c
}

// In runs subsequent commands from dir
func (e *Exec) In(dir string) *Exec {
	c := e.clone()
	c.dir = dir
	return c
}

// As runs subsequent commands as user through sudo; an empty user means root
func (e *Exec) As(user string) *Exec {
	c := e.clone()
	c.user = user
	c.elevate = true
	return c
}

// Unprivileged runs subsequent commands as the login user
func (e *Exec) Unprivileged() *Exec {
	c := e.clone()
	c.user = ""
	c.elevate = false
	return c
}

// WithoutSudo makes As a no-op for this context and every context derived from it
func (e *Exec) WithoutSudo() *Exec {
	c := e.clone()
	c.noSudo = true
	return c
}

// Quiet demotes command tracing to debug level
func (e *Exec) Quiet() *Exec {
	c := e.clone()
	c.quiet = true
	return c
}

// Host returns the host name of the underlying channel
func (e *Exec) Host() string {
	return e.ch.Host()
}

// Dir returns the working directory, empty for the login directory
func (e *Exec) Dir() string {
	return e.dir
}

// Wrap renders line as it will be sent over the channel
func (e *Exec) Wrap(line string) string {
	if e.dir != "" {
		line = "cd " + Quote(e.dir) + " && " + line
	}
	if !e.elevate || e.noSudo {
		return line
	}
	if e.user == "" {
		return "sudo bash -c " + Quote(line)
	}
	return "sudo -H -u " + Quote(e.user) + " bash -c " + Quote(line)
}

func (e *Exec) trace(msg string, fields ...zap.Field) {
	if e.quiet {
		e.log.Debug(msg, fields...)
		return
	}
	e.log.Info(msg, fields...)
}

// Run executes line and returns its result. Transport failures are
// reported as errs.Connection; a non-zero exit is not an error here.
func (e *Exec) Run(ctx context.Context, line string) (Result, error) {
	return e.run(ctx, line, nil)
}

func (e *Exec) run(ctx context.Context, line string, stdin io.Reader) (Result, error) {
	e.trace("run", zap.String("host", e.ch.Host()), zap.String("cmd", line), zap.String("dir", e.dir), zap.String("user", e.user))
	res, err := e.ch.Run(ctx, e.Wrap(line), stdin)
	if err != nil {
		return res, errs.New(errs.Connection, e.ch.Host(), err)
	}
	if res.Failed() {
		e.log.Debug("command failed", zap.String("cmd", line), zap.Int("exit", res.ExitCode), zap.String("output", res.Output))
	}
	return res, nil
}

// Check executes line and turns a non-zero exit into an error of the given kind
func (e *Exec) Check(ctx context.Context, kind errs.Kind, line string) (string, error) {
	res, err := e.Run(ctx, line)
	if err != nil {
		return "", err
	}
	if res.Failed() {
		return res.Output, errs.WithOutput(kind, firstWords(line), res.Output)
	}
	return res.Output, nil
}

// Exists reports whether path exists on the host
func (e *Exec) Exists(ctx context.Context, path string) (bool, error) {
	res, err := e.Quiet().Run(ctx, "test -e "+Quote(path))
	if err != nil {
		return false, err
	}
	return !res.Failed(), nil
}

// Upload streams r into path, replacing any existing file
func (e *Exec) Upload(ctx context.Context, r io.Reader, path string) error {
	res, err := e.run(ctx, "cat > "+Quote(path), r)
	if err != nil {
		return err
	}
	if res.Failed() {
		return &errs.Error{
			Kind:   errs.Upload,
			Op:     "upload",
			Path:   path,
			Err:    fmt.Errorf("exit status %d", res.ExitCode),
			Output: strings.TrimSpace(res.Output),
		}
	}
	return nil
}

// firstWords names a command in errors without its long argument list
func firstWords(line string) string {
	fields := strings.Fields(line)
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return strings.Join(fields, " ")
}
