// Package github adapts the GitHub REST API into the gitmetrics data model,
// with bounded pagination, immediate retry of transient failures, and
// rate-limit state capture.
package github

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	gh "github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"

	"github.com/promptops/agentpulse/internal/errs"
	"github.com/promptops/agentpulse/internal/gitmetrics"
)

// defaultStatsCap bounds how many commits get per-commit line-stat lookups.
// The list endpoint does not carry stats, and one extra call per commit
// adds up fast against the rate limit.
const defaultStatsCap = 50

// Config is the repository access configuration.
type Config struct {
	Token           string        `mapstructure:"token"`
	Owner           string        `mapstructure:"owner"`
	Repo            string        `mapstructure:"repo"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RateLimitBuffer int           `mapstructure:"rate_limit_buffer"`
	StatsCap        int           `mapstructure:"stats_cap"`
}

// Client fetches repository data. It implements gitmetrics.Source.
type Client struct {
	api             *gh.Client
	owner, repo     string
	attempts        int
	statsCap        int
	rateLimitBuffer int
	log             zerolog.Logger

	rateMu sync.Mutex
	rate   RateState
}

// NewClient validates cfg and builds a Client. Owner and repo are required;
// everything else has a default.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Owner == "" {
		return nil, &errs.ConfigError{Field: "owner", Reason: "required"}
	}
	if cfg.Repo == "" {
		return nil, &errs.ConfigError{Field: "repo", Reason: "required"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	api := gh.NewClient(httpClient)
	if cfg.Token != "" {
		api = api.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		var err error
		api, err = api.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, &errs.ConfigError{Field: "base_url", Reason: err.Error()}
		}
	}

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 3
	}
	statsCap := cfg.StatsCap
	if statsCap <= 0 {
		statsCap = defaultStatsCap
	}

	return &Client{
		api:             api,
		owner:           cfg.Owner,
		repo:            cfg.Repo,
		attempts:        attempts,
		statsCap:        statsCap,
		rateLimitBuffer: cfg.RateLimitBuffer,
		log:             log,
	}, nil
}

// Rate returns the rate-limit state captured from the most recent response.
// The client never sleeps on exhaustion; waiting for the reset is the
// caller's decision.
func (c *Client) Rate() RateState {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()
	return c.rate
}

// NearLimit reports whether the remaining rate budget has dropped to the
// configured buffer. Whether to wait for the reset is the caller's call.
func (c *Client) NearLimit() bool {
	r := c.Rate()
	return r.Limit > 0 && r.Remaining <= c.rateLimitBuffer
}

func (c *Client) setRate(r gh.Rate) {
	c.rateMu.Lock()
	c.rate = RateState{Limit: r.Limit, Remaining: r.Remaining, Reset: r.Reset.Time}
	c.rateMu.Unlock()
}

// Repository fetches the repository descriptor (single call, no pagination).
func (c *Client) Repository(ctx context.Context) (*gitmetrics.Repository, error) {
	repo, resp, err := c.api.Repositories.Get(ctx, c.owner, c.repo)
	if resp != nil {
		c.setRate(resp.Rate)
	}
	if err != nil {
		if rle := asRateLimit(err, resp); rle != nil {
			return nil, rle
		}
		return nil, err
	}

	return &gitmetrics.Repository{
		ID:            fmt.Sprintf("%s/%s", c.owner, c.repo),
		Name:          repo.GetName(),
		Owner:         c.owner,
		DefaultBranch: repo.GetDefaultBranch(),
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
	}, nil
}

// Commits fetches all commits in [since, until] across however many pages
// it takes, then enriches line stats for up to statsCap of them.
func (c *Client) Commits(ctx context.Context, since, until time.Time) ([]gitmetrics.Commit, error) {
	raw, err := collectPages(ctx, c, func(ctx context.Context, page int) ([]*gh.RepositoryCommit, *gh.Response, error) {
		opts := &gh.CommitsListOptions{
			Since:       since,
			Until:       until,
			ListOptions: gh.ListOptions{Page: page, PerPage: 100},
		}
		return c.api.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
	})
	if err != nil {
		return nil, err
	}

	commits := make([]gitmetrics.Commit, 0, len(raw))
	for _, rc := range raw {
		commits = append(commits, gitmetrics.Commit{
			SHA:     rc.GetSHA(),
			Author:  commitAuthor(rc),
			Message: rc.GetCommit().GetMessage(),
			Date:    rc.GetCommit().GetAuthor().GetDate().Time,
		})
	}

	c.enrichStats(ctx, commits)
	return commits, nil
}

// PullRequests fetches the full pull-request history (state=all).
func (c *Client) PullRequests(ctx context.Context) ([]gitmetrics.PullRequest, error) {
	raw, err := collectPages(ctx, c, func(ctx context.Context, page int) ([]*gh.PullRequest, *gh.Response, error) {
		opts := &gh.PullRequestListOptions{
			State:       "all",
			ListOptions: gh.ListOptions{Page: page, PerPage: 100},
		}
		return c.api.PullRequests.List(ctx, c.owner, c.repo, opts)
	})
	if err != nil {
		return nil, err
	}

	prs := make([]gitmetrics.PullRequest, 0, len(raw))
	for _, pr := range raw {
		prs = append(prs, gitmetrics.PullRequest{
			Number:    pr.GetNumber(),
			State:     pr.GetState(),
			CreatedAt: pr.GetCreatedAt().Time,
			MergedAt:  pr.GetMergedAt().Time,
			ClosedAt:  pr.GetClosedAt().Time,
		})
	}
	return prs, nil
}

// Issues fetches the full issue history (state=all), excluding pull
// requests, which GitHub's issues endpoint also returns.
func (c *Client) Issues(ctx context.Context) ([]gitmetrics.Issue, error) {
	raw, err := collectPages(ctx, c, func(ctx context.Context, page int) ([]*gh.Issue, *gh.Response, error) {
		opts := &gh.IssueListByRepoOptions{
			State:       "all",
			ListOptions: gh.ListOptions{Page: page, PerPage: 100},
		}
		return c.api.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
	})
	if err != nil {
		return nil, err
	}

	issues := make([]gitmetrics.Issue, 0, len(raw))
	for _, is := range raw {
		if is.IsPullRequest() {
			continue
		}
		issues = append(issues, gitmetrics.Issue{
			Number:    is.GetNumber(),
			State:     is.GetState(),
			CreatedAt: is.GetCreatedAt().Time,
			ClosedAt:  is.GetClosedAt().Time,
		})
	}
	return issues, nil
}

// enrichStats backfills additions/deletions for up to statsCap commits via
// per-commit lookups. Failures here degrade the line stats to zero rather
// than failing the fetch.
func (c *Client) enrichStats(ctx context.Context, commits []gitmetrics.Commit) {
	n := len(commits)
	if n > c.statsCap {
		n = c.statsCap
	}
	for i := 0; i < n; i++ {
		rc, resp, err := c.api.Repositories.GetCommit(ctx, c.owner, c.repo, commits[i].SHA, nil)
		if resp != nil {
			c.setRate(resp.Rate)
		}
		if err != nil {
			c.log.Debug().Str("sha", commits[i].SHA).Err(err).
				Msg("commit stats lookup failed; leaving line counts at zero")
			continue
		}
		commits[i].Additions = rc.GetStats().GetAdditions()
		commits[i].Deletions = rc.GetStats().GetDeletions()
	}
}

// commitAuthor prefers the GitHub login, falling back to the git author
// name for commits without a linked account.
func commitAuthor(rc *gh.RepositoryCommit) string {
	if login := rc.GetAuthor().GetLogin(); login != "" {
		return login
	}
	if name := rc.GetCommit().GetAuthor().GetName(); name != "" {
		return name
	}
	return "unknown"
}
