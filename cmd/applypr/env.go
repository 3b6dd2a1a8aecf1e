package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wahlandcase/applypr/internal/config"
	"github.com/wahlandcase/applypr/internal/deploy"
	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/github"
	"github.com/wahlandcase/applypr/internal/logging"
	"github.com/wahlandcase/applypr/internal/remote"
	"github.com/wahlandcase/applypr/internal/ui"
	"github.com/wahlandcase/applypr/internal/update"

	"go.uber.org/zap"
)

// globals are the persistent flags shared by every command
type globals struct {
	owner            string
	repository       string
	host             string
	src              string
	sudoUser         string
	hostname         string
	verbose          bool
	noColor          bool
	exitCode         bool
	skipVersionCheck bool
}

// env is what a command needs once flags and config are merged
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	client *github.Client
}

func (g *globals) load(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errs.New(errs.Config, "load config", err)
	}
	g.override(cfg)

	log, err := logging.New(cfg.Log.Level, g.verbose)
	if err != nil {
		return nil, errs.New(errs.Config, "logger", err)
	}
	ui.SetupColor(os.Stdout, g.noColor)

	token, err := github.ResolveToken(ctx, cfg.GitHub.Token)
	if err != nil {
		return nil, errs.New(errs.Config, "github token", err)
	}
	client, err := github.NewClient(github.Options{
		Owner:             cfg.GitHub.Owner,
		Repository:        cfg.GitHub.Repository,
		Token:             token,
		BaseURL:           cfg.GitHub.APIURL,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
	}, log)
	if err != nil {
		return nil, errs.New(errs.Config, "github client", err)
	}
	return &env{cfg: cfg, log: log, client: client}, nil
}

// override applies the flags that were given on top of the config
func (g *globals) override(cfg *config.Config) {
	if g.owner != "" {
		cfg.GitHub.Owner = g.owner
	}
	if g.repository != "" {
		cfg.GitHub.Repository = g.repository
	}
	if g.host != "" {
		cfg.Remote.Host = g.host
	}
	if g.src != "" {
		cfg.Remote.Src = g.src
	}
	if g.sudoUser != "" {
		cfg.Remote.SudoUser = g.sudoUser
	}
	if g.hostname != "" {
		cfg.Deploy.Hostname = g.hostname
	}
}

// dial opens the channel to the deploy host. The caller closes it.
func (e *env) dial(ctx context.Context) (*remote.Exec, func(), error) {
	opts := sshOptions(e.cfg)
	ch, err := remote.Open(ctx, opts, e.log)
	if err != nil {
		return nil, nil, err
	}
	exec := remote.NewExec(ch, e.log)
	if !e.cfg.Remote.UseSudo {
		exec = exec.WithoutSudo()
	}
	closer := func() {
		if err := ch.Close(); err != nil {
			e.log.Debug("close channel", zap.Error(err))
		}
	}
	return exec, closer, nil
}

// sshOptions splits a user@host:port host string; parts left out come from the config
func sshOptions(cfg *config.Config) remote.SSHOptions {
	opts := remote.SSHOptions{
		Host:       cfg.Remote.Host,
		User:       cfg.Remote.SSHUser,
		Port:       cfg.Remote.SSHPort,
		KnownHosts: cfg.Remote.KnownHosts,
		Timeout:    cfg.ConnectTimeout(),
	}
	if user, host, ok := strings.Cut(opts.Host, "@"); ok {
		opts.User, opts.Host = user, host
	}
	if host, port, ok := strings.Cut(opts.Host, ":"); ok {
		if p, err := strconv.Atoi(port); err == nil {
			opts.Host, opts.Port = host, p
		}
	}
	return opts
}

// tracker builds the deployment tracker; exec may be nil when the hostname
// is configured or the command never needs it
func (e *env) tracker(exec *remote.Exec) *deploy.Tracker {
	t := deploy.NewTracker(e.client, exec, e.log).WithLabels(e.cfg.EnvironmentLabel)
	if e.cfg.Deploy.Hostname != "" {
		t = t.WithHostname(e.cfg.Deploy.Hostname)
	}
	return t
}

// versionGate refuses to go on with an outdated build, at most once a day
func (g *globals) versionGate(ctx context.Context, e *env) error {
	if g.skipVersionCheck || !e.cfg.ShouldCheckForUpdate() {
		return nil
	}
	err := update.Require(ctx, e.client, version, e.cfg.Update.Repo)
	if err != nil && !errs.Is(err, errs.Precondition) {
		e.log.Warn("could not check for a newer release", zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	e.cfg.RecordUpdateCheck()
	if serr := e.cfg.Save(); serr != nil {
		e.log.Debug("could not record update check", zap.Error(serr))
	}
	return nil
}

// parsePRs accepts repeated flags, commas and spaces
func parsePRs(values []string) ([]int, error) {
	var prs []int
	for _, v := range values {
		for _, f := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			n, err := strconv.Atoi(strings.TrimPrefix(f, "#"))
			if err != nil || n <= 0 {
				return nil, errs.Newf(errs.Usage, "--pr", "invalid pull request number %q", f)
			}
			prs = append(prs, n)
		}
	}
	if len(prs) == 0 {
		return nil, errs.Newf(errs.Usage, "--pr", "at least one pull request is required")
	}
	return prs, nil
}

// deployFailed marks deploy failures, which only change the exit code with --exit-code
type deployFailed struct {
	err error
}

func (d *deployFailed) Error() string {
	return fmt.Sprintf("deploy failed: %v", d.err)
}

func (d *deployFailed) Unwrap() error {
	return d.err
}
