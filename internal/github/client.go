package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"

	gh "github.com/google/go-github/v66/github"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const perPage = 100

// Options configures NewClient
type Options struct {
	Owner      string
	Repository string
	Token      string
	// BaseURL overrides the API endpoint (GitHub Enterprise, tests)
	BaseURL string
	// RequestsPerSecond paces outgoing requests; 0 disables pacing
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client is the hosting API client for one repository
type Client struct {
	gh    *gh.Client
	owner string
	repo  string
	log   *zap.Logger
}

// ResolveToken returns configured when set, otherwise asks the gh CLI
func ResolveToken(ctx context.Context, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	cmd := exec.CommandContext(ctx, "gh", "auth", "token")
	out, err := cmd.Output()
	token := strings.TrimSpace(string(out))
	if err != nil || token == "" {
		return "", fmt.Errorf("no GitHub token: set GITHUB_TOKEN or run 'gh auth login' first")
	}
	return token, nil
}

func NewClient(opts Options, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.RequestsPerSecond > 0 {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		paced := *httpClient
		paced.Transport = &pacedTransport{
			base:    base,
			limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		}
		httpClient = &paced
	}

	c := gh.NewClient(httpClient)
	if opts.Token != "" {
		c = c.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid api url %q: %w", opts.BaseURL, err)
		}
		c.BaseURL = u
	}
	return &Client{gh: c, owner: opts.Owner, repo: opts.Repository, log: log}, nil
}

// PullURL returns the web URL of a pull request
func (c *Client) PullURL(number int) string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", c.owner, c.repo, number)
}

// PullRequest fetches a PR snapshot
func (c *Client) PullRequest(ctx context.Context, number int) (*models.PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, apiError(fmt.Sprintf("get pull request #%d", number), err)
	}
	return convertPull(pr), nil
}

// Commits lists every commit of a PR, oldest first, following pagination
func (c *Client) Commits(ctx context.Context, number int) ([]models.Commit, error) {
	opts := &gh.ListOptions{PerPage: perPage}
	var commits []models.Commit
	for {
		page, resp, err := c.gh.PullRequests.ListCommits(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, apiError(fmt.Sprintf("list commits of #%d", number), err)
		}
		for _, rc := range page {
			commits = append(commits, models.Commit{
				SHA:     rc.GetSHA(),
				Message: rc.GetCommit().GetMessage(),
				Parents: len(rc.Parents),
				URL:     rc.GetURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		c.log.Debug("fetching extra commits page", zap.Int("pr", number), zap.Int("page", resp.NextPage))
		opts.Page = resp.NextPage
	}
	return commits, nil
}

// CommitPatch returns one commit in mail patch format
func (c *Client) CommitPatch(ctx context.Context, sha string) (string, error) {
	patch, _, err := c.gh.Repositories.GetCommitRaw(ctx, c.owner, c.repo, sha, gh.RawOptions{Type: gh.Patch})
	if err != nil {
		return "", apiError("get patch for "+sha, err)
	}
	return patch, nil
}

// PullDiff returns the whole PR as one unified diff
func (c *Client) PullDiff(ctx context.Context, number int) (string, error) {
	diff, _, err := c.gh.PullRequests.GetRaw(ctx, c.owner, c.repo, number, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", apiError(fmt.Sprintf("get diff of #%d", number), err)
	}
	return diff, nil
}

// CreateDeployment records a deploy of req.Ref to req.Host
func (c *Client) CreateDeployment(ctx context.Context, req models.DeploymentRequest) (int64, error) {
	d, _, err := c.gh.Repositories.CreateDeployment(ctx, c.owner, c.repo, &gh.DeploymentRequest{
		Ref:              gh.String(req.Ref),
		Task:             gh.String("deploy"),
		AutoMerge:        gh.Bool(false),
		Environment:      gh.String(req.Host),
		Description:      gh.String(req.Host),
		RequiredContexts: &[]string{},
		Payload:          map[string]string{"host": req.Host},
	})
	if err != nil {
		return 0, apiError("create deployment", err)
	}
	return d.GetID(), nil
}

// CreateDeploymentStatus posts a new status for a deployment
func (c *Client) CreateDeploymentStatus(ctx context.Context, id int64, state models.DeployState, description string) error {
	req := &gh.DeploymentStatusRequest{State: gh.String(string(state))}
	if description != "" {
		req.Description = gh.String(truncate(description, 140))
	}
	_, _, err := c.gh.Repositories.CreateDeploymentStatus(ctx, c.owner, c.repo, id, req)
	if err != nil {
		return apiError(fmt.Sprintf("set deployment %d %s", id, state), err)
	}
	return nil
}

// Deployments lists the deployments recorded for a commit, without statuses
func (c *Client) Deployments(ctx context.Context, sha string) ([]models.DeploymentRecord, error) {
	opts := &gh.DeploymentsListOptions{SHA: sha, ListOptions: gh.ListOptions{PerPage: perPage}}
	var records []models.DeploymentRecord
	for {
		page, resp, err := c.gh.Repositories.ListDeployments(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, apiError("list deployments for "+sha, err)
		}
		for _, d := range page {
			records = append(records, models.DeploymentRecord{
				ID:          d.GetID(),
				Ref:         d.GetSHA(),
				Environment: d.GetEnvironment(),
				Description: d.GetDescription(),
				Creator:     d.GetCreator().GetLogin(),
				CreatedAt:   d.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return records, nil
}

// DeploymentStatuses lists the statuses of a deployment, newest first
func (c *Client) DeploymentStatuses(ctx context.Context, id int64) ([]models.DeploymentStatus, error) {
	opts := &gh.ListOptions{PerPage: perPage}
	var statuses []models.DeploymentStatus
	for {
		page, resp, err := c.gh.Repositories.ListDeploymentStatuses(ctx, c.owner, c.repo, id, opts)
		if err != nil {
			return nil, apiError(fmt.Sprintf("list statuses of deployment %d", id), err)
		}
		for _, s := range page {
			statuses = append(statuses, models.DeploymentStatus{
				State:       models.DeployState(s.GetState()),
				Description: s.GetDescription(),
				Creator:     s.GetCreator().GetLogin(),
				CreatedAt:   s.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return statuses, nil
}

// AddLabels adds labels to a PR
func (c *Client) AddLabels(ctx context.Context, number int, labels ...string) error {
	_, _, err := c.gh.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, number, labels)
	if err != nil {
		return apiError(fmt.Sprintf("label #%d", number), err)
	}
	return nil
}

// SearchIssues runs an issue search and returns every page of results
func (c *Client) SearchIssues(ctx context.Context, query string) ([]models.Issue, error) {
	opts := &gh.SearchOptions{Sort: "created", Order: "asc", ListOptions: gh.ListOptions{PerPage: perPage}}
	var items []models.Issue
	for {
		res, resp, err := c.gh.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, apiError("search issues", err)
		}
		for _, is := range res.Issues {
			items = append(items, convertIssue(is))
		}
		if len(items) >= res.GetTotal() || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return items, nil
}

// LatestRelease returns the tag of the latest published release of owner/repo
func (c *Client) LatestRelease(ctx context.Context, ownerRepo string) (string, error) {
	owner, repo, ok := strings.Cut(ownerRepo, "/")
	if !ok {
		return "", fmt.Errorf("invalid repository %q, expected owner/repo", ownerRepo)
	}
	rel, _, err := c.gh.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return "", apiError("latest release of "+ownerRepo, err)
	}
	return rel.GetTagName(), nil
}

func convertPull(pr *gh.PullRequest) *models.PullRequest {
	out := &models.PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		State:     pr.GetState(),
		BaseSHA:   pr.GetBase().GetSHA(),
		HeadSHA:   pr.GetHead().GetSHA(),
		BaseLabel: pr.GetBase().GetLabel(),
		HeadLabel: pr.GetHead().GetLabel(),
		BaseRef:   pr.GetBase().GetRef(),
		Merged:    pr.GetMerged(),
		Milestone: pr.GetMilestone().GetTitle(),
	}
	if pr.MergedAt != nil {
		t := pr.MergedAt.Time
		out.MergedAt = &t
	}
	for _, l := range pr.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	return out
}

func convertIssue(is *gh.Issue) models.Issue {
	out := models.Issue{
		Number:  is.GetNumber(),
		Title:   is.GetTitle(),
		Body:    is.GetBody(),
		HTMLURL: is.GetHTMLURL(),
	}
	for _, l := range is.Labels {
		out.Labels = append(out.Labels, models.Label{Name: l.GetName(), Color: l.GetColor()})
	}
	return out
}

// apiError classifies a go-github failure, keeping the API message when there is one
func apiError(op string, err error) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return errs.New(errs.API, op, fmt.Errorf("%d %s", ghErr.Response.StatusCode, ghErr.Message))
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return errs.New(errs.Connection, op, err)
	}
	return errs.New(errs.API, op, err)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// pacedTransport waits on a token bucket before each request
type pacedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
