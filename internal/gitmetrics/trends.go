package gitmetrics

import (
	"sort"
	"time"

	"github.com/promptops/agentpulse/internal/trend"
)

// computeTrends derives the four categorical trend judgments and the weekly
// activity series for the [since, until] window.
func computeTrends(commits []Commit, prs []PullRequest, issues []Issue, since, until time.Time) ProjectTrends {
	weekly := weeklySeries(commits, prs, issues, since, until)
	return ProjectTrends{
		Activity:        activityTrend(weekly),
		Velocity:        velocityTrend(commits),
		IssueResolution: resolutionTrend(issues),
		Engagement:      engagementTrend(commits, until),
		Weekly:          weekly,
	}
}

// weekStart returns the Monday-anchored start of t's week: Sunday belongs
// to the previous week (offset -6 days).
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := int(day.Weekday()) - 1
	if day.Weekday() == time.Sunday {
		offset = 6
	}
	return day.AddDate(0, 0, -offset)
}

// weeklySeries partitions the range into weekly buckets, filling every week
// in range even when it saw no activity.
func weeklySeries(commits []Commit, prs []PullRequest, issues []Issue, since, until time.Time) []WeeklyActivity {
	first := weekStart(since)
	last := weekStart(until)
	if last.Before(first) {
		return nil
	}

	buckets := make(map[time.Time]*WeeklyActivity)
	var order []time.Time
	for w := first; !w.After(last); w = w.AddDate(0, 0, 7) {
		buckets[w] = &WeeklyActivity{WeekStart: w}
		order = append(order, w)
	}

	for _, c := range commits {
		if b, ok := buckets[weekStart(c.Date)]; ok {
			b.Commits++
		}
	}
	for _, pr := range prs {
		if pr.MergedAt.IsZero() {
			continue
		}
		if b, ok := buckets[weekStart(pr.MergedAt)]; ok {
			b.MergedPRs++
		}
	}
	for _, is := range issues {
		if is.ClosedAt.IsZero() {
			continue
		}
		if b, ok := buckets[weekStart(is.ClosedAt)]; ok {
			b.ClosedIssues++
		}
	}

	out := make([]WeeklyActivity, 0, len(order))
	for _, w := range order {
		out = append(out, *buckets[w])
	}
	return out
}

// activityTrend compares mean commits+merged-PRs over the last 4 weeks
// against all earlier weeks, at a 10% threshold. Fewer than 5 buckets leave
// no earlier window, which reads as stable.
func activityTrend(weekly []WeeklyActivity) string {
	if len(weekly) <= 4 {
		return "stable"
	}

	split := len(weekly) - 4
	var earlier, recent []float64
	for i, w := range weekly {
		v := float64(w.Commits + w.MergedPRs)
		if i < split {
			earlier = append(earlier, v)
		} else {
			recent = append(recent, v)
		}
	}

	cmp := trend.Compare(trend.Mean(recent), trend.Mean(earlier), trend.DefaultThreshold)
	return trend.Label(cmp, "increasing", "decreasing", "stable")
}

// velocityTrend compares the mean inter-commit interval over the last 10
// gaps against the first 10. Shrinking gaps mean commits are landing
// faster. Fewer than 10 commits is "consistent".
func velocityTrend(commits []Commit) string {
	if len(commits) < 10 {
		return "consistent"
	}

	sorted := make([]Commit, len(commits))
	copy(sorted, commits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].Date.Sub(sorted[i-1].Date).Hours())
	}

	n := 10
	if n > len(gaps) {
		n = len(gaps)
	}
	first := trend.Mean(gaps[:n])
	recent := trend.Mean(gaps[len(gaps)-n:])

	// Lower recent gaps than early gaps means acceleration.
	cmp := trend.Compare(recent, first, trend.DefaultThreshold)
	return trend.Label(cmp, "decelerating", "accelerating", "consistent")
}

// resolutionTrend compares mean resolution time of the last 5 closed issues
// against the first 5, by close date. Fewer than 5 closed issues is
// "stable"; faster recent resolution is "improving".
func resolutionTrend(issues []Issue) string {
	var closed []Issue
	for _, is := range issues {
		if !is.ClosedAt.IsZero() {
			closed = append(closed, is)
		}
	}
	if len(closed) < 5 {
		return "stable"
	}

	sort.Slice(closed, func(i, j int) bool { return closed[i].ClosedAt.Before(closed[j].ClosedAt) })

	resolution := func(is Issue) float64 { return is.ClosedAt.Sub(is.CreatedAt).Hours() }

	var first, recent []float64
	for _, is := range closed[:5] {
		first = append(first, resolution(is))
	}
	for _, is := range closed[len(closed)-5:] {
		recent = append(recent, resolution(is))
	}

	cmp := trend.Compare(trend.Mean(recent), trend.Mean(first), trend.DefaultThreshold)
	return trend.Label(cmp, "degrading", "improving", "stable")
}

// engagementTrend compares distinct committers in the 30 days before until
// against the preceding 30-60 day window. Strictly more is growing,
// strictly fewer is shrinking.
func engagementTrend(commits []Commit, until time.Time) string {
	recentCutoff := until.AddDate(0, 0, -30)
	earlierCutoff := until.AddDate(0, 0, -60)

	recent := make(map[string]bool)
	earlier := make(map[string]bool)
	for _, c := range commits {
		switch {
		case !c.Date.Before(recentCutoff):
			recent[c.Author] = true
		case !c.Date.Before(earlierCutoff):
			earlier[c.Author] = true
		}
	}

	switch {
	case len(recent) > len(earlier):
		return "growing"
	case len(recent) < len(earlier):
		return "shrinking"
	default:
		return "stable"
	}
}
