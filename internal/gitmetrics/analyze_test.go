package gitmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptops/agentpulse/internal/errs"
)

// fakeSource serves canned data, with optional per-stage failures.
type fakeSource struct {
	repo    *Repository
	commits []Commit
	prs     []PullRequest
	issues  []Issue

	repoErr    error
	commitsErr error
	prsErr     error
	issuesErr  error
}

func (f *fakeSource) Repository(ctx context.Context) (*Repository, error) {
	return f.repo, f.repoErr
}

func (f *fakeSource) Commits(ctx context.Context, since, until time.Time) ([]Commit, error) {
	return f.commits, f.commitsErr
}

func (f *fakeSource) PullRequests(ctx context.Context) ([]PullRequest, error) {
	return f.prs, f.prsErr
}

func (f *fakeSource) Issues(ctx context.Context) ([]Issue, error) {
	return f.issues, f.issuesErr
}

func testSource() *fakeSource {
	now := time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)
	return &fakeSource{
		repo: &Repository{ID: "acme/widgets", Name: "widgets", Owner: "acme"},
		commits: []Commit{
			{SHA: "a", Author: "ann", Message: "feat: add login", Date: now.AddDate(0, 0, -3)},
			{SHA: "b", Author: "bob", Message: "fix: cache key", Date: now.AddDate(0, 0, -2)},
			{SHA: "c", Author: "ann", Message: "Merge pull request #5 from x", Date: now.AddDate(0, 0, -1)},
		},
		prs: []PullRequest{
			{Number: 1, State: "closed", CreatedAt: now.AddDate(0, 0, -5),
				MergedAt: now.AddDate(0, 0, -4), ClosedAt: now.AddDate(0, 0, -4)},
		},
		issues: []Issue{
			{Number: 1, State: "open", CreatedAt: now.AddDate(0, 0, -6)},
		},
	}
}

func testEngine(src Source) *Engine {
	e := NewEngine(src, DefaultConfig(), zerolog.Nop())
	e.now = func() time.Time {
		return time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)
	}
	return e
}

func TestAnalyzeFullPipeline(t *testing.T) {
	e := testEngine(testSource())

	a, err := e.Analyze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "acme/widgets", a.Repository)
	assert.Equal(t, a.RangeEnd, a.AnalyzedAt)
	assert.Equal(t, 30, int(a.RangeEnd.Sub(a.RangeStart).Hours()/24))

	// The merge commit is filtered before aggregation.
	assert.Equal(t, 2, a.Metrics.Commits.Total)
	assert.Equal(t, 1, a.Metrics.PullRequests.Merged)
	assert.Equal(t, 1, a.Metrics.Issues.Open)

	assert.GreaterOrEqual(t, a.HealthScore, 0)
	assert.LessOrEqual(t, a.HealthScore, 100)
	assert.NotEmpty(t, a.Recommendations)
	assert.Len(t, a.Digest, 64)
}

func TestAnalyzeDeterministicDigest(t *testing.T) {
	e1 := testEngine(testSource())
	e2 := testEngine(testSource())

	a1, err := e1.Analyze(context.Background())
	require.NoError(t, err)
	a2, err := e2.Analyze(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a1.Digest, a2.Digest)
	assert.Equal(t, a1.HealthScore, a2.HealthScore)
}

func TestAnalyzeFetchFailureStages(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		mod   func(*fakeSource)
		stage string
	}{
		{"repository", func(f *fakeSource) { f.repoErr = boom }, "repository"},
		{"commits", func(f *fakeSource) { f.commitsErr = boom }, "commits"},
		{"pulls", func(f *fakeSource) { f.prsErr = boom }, "pulls"},
		{"issues", func(f *fakeSource) { f.issuesErr = boom }, "issues"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testSource()
			tt.mod(src)

			a, err := testEngine(src).Analyze(context.Background())
			assert.Nil(t, a, "failed analysis must not yield a partial result")

			var fe *errs.FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.stage, fe.Stage)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestIntegrityDigestSameDaySameCounts(t *testing.T) {
	morning := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 2, 20, 22, 0, 0, 0, time.UTC)
	nextDay := time.Date(2026, 2, 21, 8, 0, 0, 0, time.UTC)

	d1 := integrityDigest(10, 3, 2, "acme/widgets", morning)
	d2 := integrityDigest(10, 3, 2, "acme/widgets", evening)
	d3 := integrityDigest(10, 3, 2, "acme/widgets", nextDay)
	d4 := integrityDigest(11, 3, 2, "acme/widgets", morning)

	assert.Equal(t, d1, d2, "same day and counts share a digest")
	assert.NotEqual(t, d1, d3, "day change must change the digest")
	assert.NotEqual(t, d1, d4, "count change must change the digest")
}
