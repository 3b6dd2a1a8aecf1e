// Package changelog builds the release notes of a milestone from merged
// pull requests, and audits a list of PRs against a release.
package changelog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"

	"go.uber.org/zap"
)

// API is the part of the hosting API the changelog reads
type API interface {
	SearchIssues(ctx context.Context, query string) ([]models.Issue, error)
	PullRequest(ctx context.Context, number int) (*models.PullRequest, error)
}

// Options configure a changelog run
type Options struct {
	Milestone  string
	Owner      string
	Repository string
	// BaseBranch keeps only PRs merged into this branch
	BaseBranch string
	// Categories in output order; "bug" is always moved last
	Categories []string
	// SkipLabels are not shown next to detailed entries
	SkipLabels []string
	// ShowIssues adds the issues of the milestone
	ShowIssues bool
}

// Changelog is a grouped milestone
type Changelog struct {
	opts       Options
	categories []string
	sections   sections
	top        []Item
	issues     []Item
	others     []Item
}

// Queries returns the three searches a milestone is fetched with. GIS and
// billing PRs are fetched apart to stay under the search result cap.
func Queries(milestone, owner, repository string) []string {
	base := fmt.Sprintf("is:pr is:merged milestone:%s repo:%s/%s -label:internal -label:custom", milestone, owner, repository)
	return []string{
		base + " -label:GIS -label:facturacio",
		base + " label:GIS -label:facturacio",
		base + " -label:GIS label:facturacio",
	}
}

// Build searches the milestone and groups the results
func Build(ctx context.Context, api API, opts Options, log *zap.Logger) (*Changelog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BaseBranch == "" {
		opts.BaseBranch = "developer"
	}

	var found []models.Issue
	for _, q := range Queries(opts.Milestone, opts.Owner, opts.Repository) {
		items, err := api.SearchIssues(ctx, q)
		if err != nil {
			return nil, err
		}
		log.Info("search", zap.String("query", q), zap.Int("results", len(items)))
		found = append(found, items...)
	}

	c := &Changelog{
		opts:       opts,
		categories: bugLast(opts.Categories),
		sections:   newSections(opts.Categories),
	}

	imported := 0
	for _, is := range found {
		it := itemFrom(is)
		switch {
		case is.IsIssue():
			c.issues = append(c.issues, it)
		case is.IsPull():
			keep, err := c.onBase(ctx, api, is.Number, log)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
			if matchLabel([]string{topFeature}, is.Labels, true) == topFeature {
				c.top = append(c.top, it)
			}
			typeKey := matchLabel(typeKeys, is.Labels, true)
			c.sections.add(typeKey, matchLabel(opts.Categories, is.Labels, false), it)
		default:
			c.others = append(c.others, it)
		}
		imported++
	}
	c.sections.settle()
	log.Info("changelog grouped", zap.Int("found", len(found)), zap.Int("imported", imported), zap.Int("top", len(c.top)))
	return c, nil
}

// onBase reports whether the PR was merged into the base branch. When the
// PR cannot be fetched for connection reasons it is kept.
func (c *Changelog) onBase(ctx context.Context, api API, number int, log *zap.Logger) (bool, error) {
	pull, err := api.PullRequest(ctx, number)
	if err != nil {
		if errs.Is(err, errs.Connection) {
			log.Warn("could not fetch pull request, assuming base branch", zap.Int("pr", number), zap.Error(err))
			return true, nil
		}
		return false, err
	}
	return pull.BaseRef == c.opts.BaseBranch, nil
}

// Files are the markdown files a changelog is written to
type Files struct {
	Changelog string
	Top       string
	Detailed  string
}

// Write renders the three markdown files into dir
func (c *Changelog) Write(dir string) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, errs.WithPath(errs.Upload, "create changelog dir", dir, err)
	}
	m := c.opts.Milestone
	files := Files{
		Changelog: filepath.Join(dir, "changelog_"+m+".md"),
		Top:       filepath.Join(dir, "top_"+m+".md"),
		Detailed:  filepath.Join(dir, "detailed_"+m+".md"),
	}
	for path, content := range map[string]string{
		files.Top:       c.RenderTop(),
		files.Changelog: c.RenderSummary(),
		files.Detailed:  c.RenderDetailed(),
	} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return Files{}, errs.WithPath(errs.Upload, "write changelog", path, err)
		}
	}
	return files, nil
}
