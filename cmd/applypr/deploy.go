package main

import (
	"fmt"
	"os"

	"github.com/wahlandcase/applypr/internal/export"
	"github.com/wahlandcase/applypr/internal/git"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/orchestrator"
	"github.com/wahlandcase/applypr/internal/transfer"
	"github.com/wahlandcase/applypr/internal/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDeployCmd(g *globals) *cobra.Command {
	var prs []string
	var opts orchestrator.Options

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Apply one or more pull requests on the host",
		Long: `Exports the commits of each pull request as patches (or one diff), uploads
them to <src>/<repository>/patches/<pr> on the host and applies them with
git am / git apply. Each deploy is recorded as a GitHub deployment for the
host, pending while applying and success or error at the end.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := parsePRs(prs)
			if err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := g.load(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = e.log.Sync() }()
			if err := g.versionGate(ctx, e); err != nil {
				return err
			}

			exec, closeChannel, err := e.dial(ctx)
			if err != nil {
				return err
			}
			defer closeChannel()

			out := ui.NewPrinter(os.Stdout)
			out.Println(ui.RenderBanner(exec.Host()))

			o := orchestrator.New(settings(e), exec, e.client, exporter(e, out), transfer.New(exec, e.log), e.tracker(exec), e.log).
				WithNotifier(out)
			if ui.IsTerminal(os.Stdin) {
				o = o.WithOperator(ui.NewPrompter(os.Stdin, os.Stdout))
			}

			results, err := o.Batch(ctx, numbers, opts)
			printResults(out, results, e.client.PullURL)
			if err != nil {
				return &deployFailed{err: err}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&prs, "pr", nil, "Pull request number (repeatable or comma separated)")
	f.StringVar(&opts.FromCommit, "from-commit", "", "Apply only the commits after this one")
	f.IntVar(&opts.FromNumber, "from-number", 0, "Apply only the patches numbered this or above")
	f.BoolVar(&opts.AsDiff, "as-diff", false, "Apply the whole PR as a single diff")
	f.BoolVar(&opts.AutoExit, "auto-exit", false, "Abort on the first conflict instead of asking")
	f.BoolVar(&opts.Reject, "reject", false, "Apply the diff with --reject, leaving .rej files")
	f.BoolVar(&opts.Redeploy, "redeploy", false, "Continue from the last successful deploy on this host")
	f.BoolVar(&opts.SkipUpload, "skip-upload", false, "Apply the patches already uploaded to the host")
	f.BoolVar(&opts.SkipExport, "skip-export", false, "Upload the patches exported by an earlier run")
	f.BoolVar(&opts.SkipRollingCheck, "skip-rolling-check", false, "Deploy even if the checkout is not on the rolling branch")
	f.BoolVar(&opts.NoLabel, "no-label", false, "Do not add the environment label on success")
	_ = cmd.MarkFlagRequired("pr")
	return cmd
}

func settings(e *env) orchestrator.Settings {
	return orchestrator.Settings{
		RepoDir:       e.cfg.RepoPath(),
		DeployUser:    e.cfg.Remote.SudoUser,
		RollingBranch: e.cfg.Remote.RollingBranch,
		PatchDir:      e.cfg.RemotePatchDir,
	}
}

func exporter(e *env, out *ui.Printer) *export.Exporter {
	ex := export.New(e.client, e.cfg.PatchesDir(), e.log)
	ex.OnPatch = func(a models.PatchArtifact) {
		out.Println("      " + ui.Dim("exported "+a.Name))
	}
	if path := e.cfg.LocalRepoPath(); path != "" {
		repo, err := git.Open(path)
		if err != nil {
			e.log.Warn("local clone unavailable, exporting from the API", zap.String("path", path), zap.Error(err))
		} else {
			ex = ex.WithLocal(repo)
		}
	}
	return ex
}

func printResults(out *ui.Printer, results []models.BatchResult, urlFor func(int) string) {
	if len(results) < 2 {
		return
	}
	out.Println("")
	out.Println(ui.SectionHeader("SUMMARY", ui.ColorCyan))
	for _, r := range results {
		line := fmt.Sprintf("  %s PR #%d", ui.Icon(models.StatusName(r.Status)), r.PR)
		if reason := models.GetStatusReason(r.Status); reason != "" {
			line += "  " + ui.Dim(reason)
		}
		if models.IsStatusFailed(r.Status) {
			line += "  " + urlFor(r.PR)
		}
		out.Println(line)
	}
}
