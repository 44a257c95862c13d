package gitmetrics

import "math"

// healthScore combines the four sub-scores under the normalized weights,
// rounded to the nearest integer and clamped to [0,100].
func healthScore(m ProjectMetrics, w Weights) int {
	score := w.Activity*activityScore(m) +
		w.CodeQuality*codeQualityScore(m) +
		w.Collaboration*collaborationScore(m) +
		w.IssueManagement*issueManagementScore(m)

	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

// activityScore rewards commit cadence and a healthy PR merge ratio.
func activityScore(m ProjectMetrics) float64 {
	cadence := m.Commits.AvgPerDay / 3
	if cadence > 1 {
		cadence = 1
	}

	mergeRatio := 0.0
	if m.PullRequests.Total > 0 {
		mergeRatio = float64(m.PullRequests.Merged) / float64(m.PullRequests.Total)
	}

	return cadence*60 + mergeRatio*40
}

// codeQualityScore rewards the presence of a PR workflow and a moderate
// commit cadence (neither dormant nor firehose).
func codeQualityScore(m ProjectMetrics) float64 {
	score := 0.0
	if m.PullRequests.Total > 0 {
		score += 50
	}

	switch avg := m.Commits.AvgPerDay; {
	case avg >= 1 && avg <= 10:
		score += 50
	case avg > 0:
		score += 25
	}

	return score
}

// collaborationScore rewards active contributors and fast merges.
func collaborationScore(m ProjectMetrics) float64 {
	contributors := float64(m.Contributors.ActiveLast30) / 5
	if contributors > 1 {
		contributors = 1
	}

	mergeSpeed := 0.0
	if m.PullRequests.Merged > 0 {
		mergeSpeed = 72 / (72 + m.PullRequests.AvgMergeHours)
	}

	return contributors*60 + mergeSpeed*40
}

// issueManagementScore rewards fast resolution and a low open-issue ratio.
// A repository with no issues at all has nothing to manage and scores a
// fixed neutral value.
func issueManagementScore(m ProjectMetrics) float64 {
	if m.Issues.Total == 0 {
		return 75
	}

	resolutionSpeed := 0.0
	if m.Issues.Closed > 0 {
		resolutionSpeed = 48 / (48 + m.Issues.AvgResolutionHours)
	}

	openRatio := float64(m.Issues.Open) / float64(m.Issues.Total)

	return resolutionSpeed*60 + (1-openRatio)*40
}
