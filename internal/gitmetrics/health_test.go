package gitmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestHealthScoreZeroInputs(t *testing.T) {
	score := healthScore(ProjectMetrics{}, DefaultConfig().Weights)
	assert.GreaterOrEqual(t, score, 0)
	assert.LessOrEqual(t, score, 100)
}

func TestIssueManagementScoreNoIssues(t *testing.T) {
	assert.Equal(t, 75.0, issueManagementScore(ProjectMetrics{}))
}

func TestIssueManagementScoreOpenRatio(t *testing.T) {
	allOpen := ProjectMetrics{Issues: IssueStats{Total: 10, Open: 10}}
	allClosed := ProjectMetrics{Issues: IssueStats{Total: 10, Closed: 10, AvgResolutionHours: 24}}
	assert.Less(t, issueManagementScore(allOpen), issueManagementScore(allClosed))
}

func TestNormalizeClampsTimeRange(t *testing.T) {
	cfg := AnalysisConfig{TimeRangeDays: 0}
	assert.Equal(t, 1, cfg.normalize().TimeRangeDays)

	cfg.TimeRangeDays = 9999
	assert.Equal(t, 365, cfg.normalize().TimeRangeDays)
}

func TestNormalizeWeights(t *testing.T) {
	cfg := AnalysisConfig{
		TimeRangeDays: 30,
		Weights:       Weights{Activity: 0.4, CodeQuality: 0.4, Collaboration: 0.4, IssueManagement: 0.4},
	}
	w := cfg.normalize().Weights
	assert.InDelta(t, 0.25, w.Activity, 1e-9)
	assert.InDelta(t, 0.25, w.CodeQuality, 1e-9)
	assert.InDelta(t, 0.25, w.Collaboration, 1e-9)
	assert.InDelta(t, 0.25, w.IssueManagement, 1e-9)
}

func TestNormalizeWeightsAllZeroLeftAlone(t *testing.T) {
	cfg := AnalysisConfig{TimeRangeDays: 30}
	w := cfg.normalize().Weights
	assert.Zero(t, w.Activity+w.CodeQuality+w.Collaboration+w.IssueManagement)
}

func TestNormalizedWeightsSumToOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := AnalysisConfig{
			TimeRangeDays: rapid.IntRange(-10, 1000).Draw(t, "days"),
			Weights: Weights{
				Activity:        rapid.Float64Range(-1, 2).Draw(t, "activity"),
				CodeQuality:     rapid.Float64Range(-1, 2).Draw(t, "quality"),
				Collaboration:   rapid.Float64Range(-1, 2).Draw(t, "collab"),
				IssueManagement: rapid.Float64Range(-1, 2).Draw(t, "issues"),
			},
		}

		n := cfg.normalize()
		if n.TimeRangeDays < 1 || n.TimeRangeDays > 365 {
			t.Fatalf("TimeRangeDays %d out of [1,365]", n.TimeRangeDays)
		}

		sum := n.Weights.Activity + n.Weights.CodeQuality + n.Weights.Collaboration + n.Weights.IssueManagement
		if sum == 0 {
			// All weights clamped to zero; nothing to renormalize.
			return
		}
		if sum < 1-1e-9 || sum > 1+1e-9 {
			t.Fatalf("normalized weights sum to %v, want 1", sum)
		}
	})
}

func TestHealthScoreAlwaysBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := ProjectMetrics{
			Commits: CommitStats{
				Total:     rapid.IntRange(0, 10000).Draw(t, "commits"),
				AvgPerDay: rapid.Float64Range(0, 1000).Draw(t, "avg_per_day"),
			},
			PullRequests: PRStats{
				Total:         rapid.IntRange(0, 1000).Draw(t, "prs"),
				Merged:        rapid.IntRange(0, 1000).Draw(t, "merged"),
				AvgMergeHours: rapid.Float64Range(0, 10000).Draw(t, "merge_hours"),
			},
			Issues: IssueStats{
				Total:              rapid.IntRange(0, 1000).Draw(t, "issues"),
				Open:               rapid.IntRange(0, 1000).Draw(t, "open"),
				Closed:             rapid.IntRange(0, 1000).Draw(t, "closed"),
				AvgResolutionHours: rapid.Float64Range(0, 10000).Draw(t, "res_hours"),
			},
			Contributors: ContributorStats{
				ActiveLast30: rapid.IntRange(0, 100).Draw(t, "active"),
			},
		}

		// Guard the open ratio against drawing Open > Total.
		if m.Issues.Open > m.Issues.Total {
			m.Issues.Open = m.Issues.Total
		}

		score := healthScore(m, DefaultConfig().Weights)
		if score < 0 || score > 100 {
			t.Fatalf("health score %d out of [0,100]", score)
		}
	})
}

func TestRecommendationsOrderAndFallback(t *testing.T) {
	// Everything unhealthy at once: all six recommendations, fixed order.
	m := ProjectMetrics{
		Commits:      CommitStats{AvgPerDay: 0.1},
		PullRequests: PRStats{Total: 4, Merged: 1, AvgMergeHours: 100},
		Issues:       IssueStats{Total: 10, Open: 8, Closed: 2},
	}
	tr := ProjectTrends{Activity: "decreasing", Engagement: "shrinking"}

	recs := recommendations(30, m, tr)
	assert.Len(t, recs, 6)
	assert.Contains(t, recs[0], "health is low")
	assert.Contains(t, recs[1], "below one per day")
	assert.Contains(t, recs[2], "three days to merge")
	assert.Contains(t, recs[3], "half of all issues")
	assert.Contains(t, recs[4], "trending down")
	assert.Contains(t, recs[5], "Fewer contributors")

	// Nothing triggers: exactly one positive message.
	healthy := ProjectMetrics{
		Commits:      CommitStats{AvgPerDay: 3},
		PullRequests: PRStats{Total: 10, Merged: 9, AvgMergeHours: 10},
		Issues:       IssueStats{Total: 10, Open: 2, Closed: 8},
	}
	good := recommendations(90, healthy, ProjectTrends{Activity: "increasing", Engagement: "stable"})
	assert.Len(t, good, 1)
	assert.Contains(t, good[0], "looks good")
}
