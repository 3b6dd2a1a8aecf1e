package main

// Must be first import - fixes terminal quirks before lipgloss loads
import _ "github.com/wahlandcase/applypr/internal/termfix"

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/ui"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=v1.2.3"
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string) int {
	g := &globals{}
	root := newRootCmd(g)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var failed *deployFailed
	if errors.As(err, &failed) {
		fmt.Fprintln(os.Stderr, ui.Colored("error", failed.Error()))
		if g.exitCode {
			return 1
		}
		return 0
	}
	fmt.Fprintln(os.Stderr, ui.Colored("error", err.Error()))
	if errs.Is(err, errs.Usage) {
		return 2
	}
	return 1
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:           "applypr",
		Short:         "Apply GitHub pull requests on a remote checkout and track them as deployments",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	f := root.PersistentFlags()
	f.StringVar(&g.owner, "owner", "", "Repository owner (default from config)")
	f.StringVar(&g.repository, "repository", "", "Repository name (default from config)")
	f.StringVar(&g.host, "host", "", "Deploy host: ssh_config alias, user@host[:port] or 'local'")
	f.StringVar(&g.src, "src", "", "Parent directory of the checkout on the host")
	f.StringVar(&g.sudoUser, "sudo-user", "", "User owning the checkout")
	f.StringVar(&g.hostname, "hostname", "", "Environment name to record instead of the host's node name")
	f.BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging")
	f.BoolVar(&g.noColor, "no-color", false, "Disable colours")
	f.BoolVar(&g.exitCode, "exit-code", false, "Exit non-zero when a deploy fails")
	f.BoolVar(&g.skipVersionCheck, "skip-version-check", false, "Deploy even when a newer release exists")

	root.AddCommand(
		newDeployCmd(g),
		newCheckPRCmd(g),
		newStatusCmd(g),
		newMarkDeployedCmd(g),
		newCheckPRsCmd(g),
		newGetDeploysCmd(g),
		newChangelogCmd(g),
		newVersionCmd(g),
	)
	return root
}
