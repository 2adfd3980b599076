// Package github implements the GitHubClient and GitHubWriter ports using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient and driven.GitHubWriter ports.
type Client struct {
	gh       *gh.Client
	username string
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// apiURL overrides the REST endpoint for GitHub Enterprise; empty uses api.github.com.
func NewClient(token, username, apiURL string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	if apiURL != "" {
		u, err := parseBaseURL(apiURL)
		if err != nil {
			return nil, err
		}
		client.BaseURL = u
	}

	return &Client{gh: client, username: username}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, username string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	client.BaseURL = u

	return &Client{gh: client, username: username}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return u, nil
}

// Username returns the login review requests are searched for.
func (c *Client) Username() string {
	return c.username
}

// ResolveUsername looks up the authenticated user when no username was
// configured and remembers it for later searches.
func (c *Client) ResolveUsername(ctx context.Context) (string, error) {
	if c.username != "" {
		return c.username, nil
	}
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("resolving authenticated user: %w", err)
	}
	logRateLimit(resp, "user", 0, 1)
	c.username = user.GetLogin()
	return c.username, nil
}

// FetchReviewRequests searches for open pull requests where the configured
// user is a requested reviewer. Search results carry no commit ids, so each
// hit is hydrated with a PullRequests.Get call; hits that fail to hydrate are
// logged and skipped.
func (c *Client) FetchReviewRequests(ctx context.Context, repositories []string) ([]model.PullRequest, error) {
	if c.username == "" {
		return nil, fmt.Errorf("searching review requests: no GitHub username configured")
	}

	query := searchQuery(c.username, repositories)
	opts := &gh.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var allPRs []model.PullRequest

	for {
		result, resp, err := c.gh.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("searching review requests (page %d): %w", opts.Page, err)
		}

		logRateLimit(resp, "search/issues", opts.Page, len(result.Issues))

		for _, issue := range result.Issues {
			if !issue.IsPullRequest() {
				continue
			}
			repoFullName := repoFromIssue(issue)
			if repoFullName == "" {
				slog.Warn("search hit without repository", "url", issue.GetHTMLURL())
				continue
			}

			pr, err := c.fetchPullRequest(ctx, repoFullName, issue.GetNumber())
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// One unreadable PR must not hide the rest of the review queue.
				slog.Warn("skipping review request", "repo", repoFullName, "pr", issue.GetNumber(), "error", err)
				continue
			}
			allPRs = append(allPRs, pr)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if allPRs == nil {
		allPRs = []model.PullRequest{}
	}

	return allPRs, nil
}

// FetchPRStatus returns whether the pull request is open, closed or merged.
func (c *Client) FetchPRStatus(ctx context.Context, repoFullName string, prNumber int) (model.PRStatus, error) {
	pr, err := c.fetchPullRequest(ctx, repoFullName, prNumber)
	if err != nil {
		return "", err
	}
	return pr.Status, nil
}

func (c *Client) fetchPullRequest(ctx context.Context, repoFullName string, prNumber int) (model.PullRequest, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return model.PullRequest{}, err
	}

	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, prNumber)
	if err != nil {
		return model.PullRequest{}, fmt.Errorf("fetching pull request %s#%d: %w", repoFullName, prNumber, err)
	}
	logRateLimit(resp, repoFullName+"/pulls", 0, 1)

	return mapPullRequest(pr, repoFullName), nil
}

// FetchDiff returns the unified diff of a pull request.
func (c *Client) FetchDiff(ctx context.Context, repoFullName string, prNumber int) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	diff, resp, err := c.gh.PullRequests.GetRaw(ctx, owner, repo, prNumber, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", fmt.Errorf("fetching diff for %s#%d: %w", repoFullName, prNumber, err)
	}
	logRateLimit(resp, repoFullName+"/diff", 0, len(diff))

	return diff, nil
}

// searchQuery builds the issue search query. Repository qualifiers are
// OR-ed by the search API; entries without an owner are skipped.
func searchQuery(username string, repositories []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "type:pr state:open review-requested:%s", username)

	for _, r := range repositories {
		if _, _, err := splitRepo(r); err != nil {
			slog.Warn("repository filter ignored, expected owner/repo", "repo", r)
			continue
		}
		b.WriteString(" repo:")
		b.WriteString(r)
	}

	return b.String()
}

// repoFromIssue extracts "owner/repo" from a search hit's repository URL,
// which has the form ".../repos/{owner}/{repo}".
func repoFromIssue(issue *gh.Issue) string {
	if r := issue.GetRepository(); r.GetFullName() != "" {
		return r.GetFullName()
	}
	parts := strings.Split(strings.TrimSuffix(issue.GetRepositoryURL(), "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	owner, repo := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || repo == "" {
		return ""
	}
	return owner + "/" + repo
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapPullRequest converts a go-github PullRequest to a domain model PullRequest.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest, repoFullName string) model.PullRequest {
	status := model.PRStatusOpen
	if pr.GetMerged() || !pr.GetMergedAt().IsZero() {
		status = model.PRStatusMerged
	} else if pr.GetState() == "closed" {
		status = model.PRStatusClosed
	}

	return model.PullRequest{
		Number:       pr.GetNumber(),
		RepoFullName: repoFullName,
		Title:        pr.GetTitle(),
		Author:       pr.GetUser().GetLogin(),
		URL:          pr.GetHTMLURL(),
		Status:       status,
		IsDraft:      pr.GetDraft(),
		HeadSHA:      pr.GetHead().GetSHA(),
		BaseSHA:      pr.GetBase().GetSHA(),
		UpdatedAt:    pr.GetUpdatedAt().Time,
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
