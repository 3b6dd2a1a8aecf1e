package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/wahlandcase/applypr/internal/changelog"
	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/orchestrator"
	"github.com/wahlandcase/applypr/internal/remote"
	"github.com/wahlandcase/applypr/internal/ui"
	"github.com/wahlandcase/applypr/internal/update"

	"github.com/spf13/cobra"
)

func newCheckPRCmd(g *globals) *cobra.Command {
	var pr int
	cmd := &cobra.Command{
		Use:        "check-pr",
		Short:      "Look up each commit of a pull request in the host's git log",
		Deprecated: "commits are matched by subject only; prefer get-deploys",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.load(ctx)
			if err != nil {
				return err
			}
			exec, closeChannel, err := e.dial(ctx)
			if err != nil {
				return err
			}
			defer closeChannel()

			o := orchestrator.New(settings(e), exec, e.client, nil, nil, nil, e.log)
			checks, err := o.CheckPR(ctx, pr)
			if err != nil {
				return err
			}
			for _, c := range checks {
				status, text := "failed", "not applied"
				if c.Applied {
					status, text = "success", "applied"
				}
				fmt.Printf("%04d - %s : %s %s\n", c.Number, c.Commit.Subject(), ui.Icon(status), ui.Colored(status, text))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pr, "pr", 0, "Pull request number")
	_ = cmd.MarkFlagRequired("pr")
	return cmd
}

func newStatusCmd(g *globals) *cobra.Command {
	var id int64
	var state, description string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Set the status of a deployment by hand",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.load(ctx)
			if err != nil {
				return err
			}
			if err := e.tracker(nil).MarkStatus(ctx, id, models.DeployState(state), description); err != nil {
				return err
			}
			fmt.Printf("%s deployment %d is now %s\n", ui.Icon(state), id, ui.Colored(state, state))
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64Var(&id, "deploy-id", 0, "Deployment id")
	f.StringVar(&state, "state", "success", "pending, success, error or failure")
	f.StringVar(&description, "description", "", "Status description")
	_ = cmd.MarkFlagRequired("deploy-id")
	return cmd
}

func newMarkDeployedCmd(g *globals) *cobra.Command {
	var prs []string
	var noLabel bool
	cmd := &cobra.Command{
		Use:   "mark-deployed",
		Short: "Record pull requests as deployed on the host without applying them",
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := parsePRs(prs)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := g.load(ctx)
			if err != nil {
				return err
			}

			var exec *remote.Exec
			if e.cfg.Deploy.Hostname == "" {
				var closeChannel func()
				if exec, closeChannel, err = e.dial(ctx); err != nil {
					return err
				}
				defer closeChannel()
			}
			t := e.tracker(exec)
			for _, pr := range numbers {
				d, err := t.MarkDeployed(ctx, pr, noLabel)
				if err != nil {
					return fmt.Errorf("PR #%d: %w", pr, err)
				}
				fmt.Printf("%s PR #%d marked as deployed on %s (deployment %d)\n", ui.Icon("success"), pr, d.Host, d.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&prs, "pr", nil, "Pull request number (repeatable or comma separated)")
	cmd.Flags().BoolVar(&noLabel, "no-label", false, "Do not add the environment label")
	_ = cmd.MarkFlagRequired("pr")
	return cmd
}

func newCheckPRsCmd(g *globals) *cobra.Command {
	var prs []string
	var version string
	cmd := &cobra.Command{
		Use:   "check-prs",
		Short: "Group pull requests by milestone and list those not included in a version",
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := parsePRs(prs)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := g.load(ctx)
			if err != nil {
				return err
			}

			a := changelog.AuditPRs(ctx, e.client, e.cfg.GitHub.Owner, e.cfg.GitHub.Repository, numbers, version, e.log)
			for _, m := range a.Milestones() {
				fmt.Printf("\nMilestone %s\n", m)
				for _, st := range a.ByMilestone[m] {
					line := fmt.Sprintf("PR %d=> state %s merged_at %s milestone %s", st.Number, st.State, orNone(st.MergedAt), st.Milestone)
					if name := st.Verdict.Name(); name != "" {
						line = ui.Colored(name, line)
					}
					fmt.Printf("\t%s\n", line)
				}
			}
			for _, ae := range a.Errors {
				fmt.Printf("ERR\t%s\n", ui.Colored("error", fmt.Sprintf("Error PR %d : %s (%v)", ae.Number, ae.URL, ae.Err)))
			}
			if version != "" {
				ids := make([]string, len(a.NotIncluded))
				for i, n := range a.NotIncluded {
					ids[i] = fmt.Sprint(n)
				}
				fmt.Println(ui.Colored("pending", fmt.Sprintf("\nNot Included: %q\n", strings.Join(ids, " "))))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&prs, "pr", nil, "Pull request numbers (repeatable, comma or space separated)")
	cmd.Flags().StringVar(&version, "version", "", "Release version to compare milestones with")
	_ = cmd.MarkFlagRequired("pr")
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func newGetDeploysCmd(g *globals) *cobra.Command {
	var pr int
	cmd := &cobra.Command{
		Use:   "get-deploys",
		Short: "List the deployments of a pull request head",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := g.load(ctx)
			if err != nil {
				return err
			}
			records, err := e.tracker(nil).ListDeploys(ctx, pr)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Printf("PR #%d has no deployments\n", pr)
				return nil
			}
			for _, r := range records {
				fmt.Printf("%s %s by %s at %s\n",
					ui.Bold(fmt.Sprintf("Deployment %d", r.ID)), r.Environment, r.Creator, r.CreatedAt.Format("2006-01-02 15:04"))
				for _, s := range r.Statuses {
					fmt.Printf("  %s %s %s %s\n",
						ui.Icon(string(s.State)), ui.Colored(string(s.State), string(s.State)),
						ui.Dim(s.CreatedAt.Format("2006-01-02 15:04")), s.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pr, "pr", 0, "Pull request number")
	_ = cmd.MarkFlagRequired("pr")
	return cmd
}

func newChangelogCmd(g *globals) *cobra.Command {
	var milestone, outputDir, baseBranch string
	var showIssues bool
	cmd := &cobra.Command{
		Use:   "create-changelog",
		Short: "Write the changelog files of a milestone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if milestone == "" {
				return errs.Newf(errs.Usage, "create-changelog", "--milestone is required")
			}
			ctx := cmd.Context()
			e, err := g.load(ctx)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = e.cfg.Changelog.OutputDir
			}
			if baseBranch == "" {
				baseBranch = e.cfg.Changelog.BaseBranch
			}

			c, err := changelog.Build(ctx, e.client, changelog.Options{
				Milestone:  milestone,
				Owner:      e.cfg.GitHub.Owner,
				Repository: e.cfg.GitHub.Repository,
				BaseBranch: baseBranch,
				Categories: e.cfg.Changelog.Categories,
				SkipLabels: e.cfg.Changelog.SkipLabels,
				ShowIssues: showIssues,
			}, e.log)
			if err != nil {
				return err
			}
			files, err := c.Write(outputDir)
			if err != nil {
				return err
			}
			for _, path := range []string{files.Changelog, files.Top, files.Detailed} {
				fmt.Printf("%s %s\n", ui.Icon("success"), path)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&milestone, "milestone", "m", "", "Milestone title, e.g. 5.1.0")
	f.StringVar(&outputDir, "output-dir", "", "Directory the markdown files are written to")
	f.StringVar(&baseBranch, "base-branch", "", "Keep only PRs merged into this branch")
	f.BoolVar(&showIssues, "show-issues", true, "Include the issues of the milestone")
	return cmd
}

func newVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and whether a newer release exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("applypr %s\n", update.VersionDisplay(version))
			ctx := cmd.Context()
			e, err := g.load(ctx)
			if err != nil {
				return nil
			}
			latest, err := update.CheckForUpdate(ctx, e.client, version, e.cfg.Update.Repo)
			if err != nil || latest == nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "%s %s is available: %s\n", ui.Icon("pending"),
				update.VersionDisplay(latest.TagName), update.InstallCommand(e.cfg.Update.Repo, latest.TagName))
			return nil
		},
	}
}
