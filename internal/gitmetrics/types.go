// Package gitmetrics analyzes repository activity (commits, pull requests,
// and issues over a time window) into aggregate metrics, categorical trends,
// and a weighted health score.
package gitmetrics

import (
	"context"
	"time"
)

// Repository describes the repository under analysis.
type Repository struct {
	ID            string `json:"id"` // "owner/name"
	Name          string `json:"name"`
	Owner         string `json:"owner"`
	DefaultBranch string `json:"default_branch"`
	Stars         int    `json:"stars"`
	Forks         int    `json:"forks"`
}

// Commit is one commit inside the analysis window. Additions/Deletions are
// zero when the data source did not supply line stats.
type Commit struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Date      time.Time `json:"date"`
	Additions int       `json:"additions"`
	Deletions int       `json:"deletions"`
}

// PullRequest covers the repository's entire PR history. Zero MergedAt or
// ClosedAt means the event has not happened.
type PullRequest struct {
	Number    int       `json:"number"`
	State     string    `json:"state"` // open, closed
	CreatedAt time.Time `json:"created_at"`
	MergedAt  time.Time `json:"merged_at,omitzero"`
	ClosedAt  time.Time `json:"closed_at,omitzero"`
}

// Issue covers the repository's entire issue history, pull requests
// excluded.
type Issue struct {
	Number    int       `json:"number"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	ClosedAt  time.Time `json:"closed_at,omitzero"`
}

// Source is the repository data source the engine pulls from. Every call
// may block on the network; a failure of any call aborts the analysis.
type Source interface {
	Repository(ctx context.Context) (*Repository, error)
	Commits(ctx context.Context, since, until time.Time) ([]Commit, error)
	PullRequests(ctx context.Context) ([]PullRequest, error)
	Issues(ctx context.Context) ([]Issue, error)
}

// CommitStats aggregates the filtered commits.
type CommitStats struct {
	Total     int            `json:"total"`
	ByAuthor  map[string]int `json:"by_author"`
	ByDate    map[string]int `json:"by_date"` // YYYY-MM-DD
	AvgPerDay float64        `json:"avg_per_day"`
}

// PRStats aggregates the full pull-request history.
type PRStats struct {
	Total         int     `json:"total"`
	Open          int     `json:"open"`
	Closed        int     `json:"closed"`
	Merged        int     `json:"merged"`
	AvgMergeHours float64 `json:"avg_merge_hours"`
}

// IssueStats aggregates the full issue history.
type IssueStats struct {
	Total              int     `json:"total"`
	Open               int     `json:"open"`
	Closed             int     `json:"closed"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
}

// CodeStats aggregates line changes over the filtered commits.
type CodeStats struct {
	Additions         int     `json:"additions"`
	Deletions         int     `json:"deletions"`
	AvgLinesPerCommit float64 `json:"avg_lines_per_commit"`
}

// Contributor pairs a committer with their commit count.
type Contributor struct {
	Login   string `json:"login"`
	Commits int    `json:"commits"`
}

// ContributorStats aggregates committer activity. Active means the author's
// most recent qualifying commit falls within 30 days of the range end.
type ContributorStats struct {
	Total        int           `json:"total"`
	ActiveLast30 int           `json:"active_last_30_days"`
	Top          []Contributor `json:"top"` // top 10 by commit count
}

// ProjectMetrics is the read-only aggregate over one analysis run.
type ProjectMetrics struct {
	Commits      CommitStats      `json:"commits"`
	PullRequests PRStats          `json:"pull_requests"`
	Issues       IssueStats       `json:"issues"`
	Code         CodeStats        `json:"code"`
	Contributors ContributorStats `json:"contributors"`
}

// WeeklyActivity is one Monday-anchored bucket of the weekly time series.
type WeeklyActivity struct {
	WeekStart    time.Time `json:"week_start"`
	Commits      int       `json:"commits"`
	MergedPRs    int       `json:"merged_prs"`
	ClosedIssues int       `json:"closed_issues"`
}

// ProjectTrends holds the four categorical trend judgments plus the weekly
// series they were derived from.
type ProjectTrends struct {
	Activity        string           `json:"activity"`         // increasing, decreasing, stable
	Velocity        string           `json:"velocity"`         // accelerating, decelerating, consistent
	IssueResolution string           `json:"issue_resolution"` // improving, degrading, stable
	Engagement      string           `json:"engagement"`       // growing, shrinking, stable
	Weekly          []WeeklyActivity `json:"weekly"`
}

// ProjectAnalysis is one point-in-time analysis result, immutable after
// construction.
type ProjectAnalysis struct {
	Repository      string         `json:"repository"`
	AnalyzedAt      time.Time      `json:"analyzed_at"`
	RangeStart      time.Time      `json:"range_start"`
	RangeEnd        time.Time      `json:"range_end"`
	Metrics         ProjectMetrics `json:"metrics"`
	Trends          ProjectTrends  `json:"trends"`
	HealthScore     int            `json:"health_score"` // 0-100
	Recommendations []string       `json:"recommendations"`
	Digest          string         `json:"digest"`
}
