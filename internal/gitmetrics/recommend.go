package gitmetrics

// recommendations tests each condition independently, in fixed order, so
// the output ordering is deterministic. When nothing triggers it emits
// exactly one positive message.
func recommendations(score int, m ProjectMetrics, t ProjectTrends) []string {
	var recs []string

	if score < 50 {
		recs = append(recs, "Overall repository health is low; review recent development practices.")
	}
	if m.Commits.AvgPerDay < 1 {
		recs = append(recs, "Commit activity is below one per day; consider smaller, more frequent commits.")
	}
	if m.PullRequests.AvgMergeHours > 72 {
		recs = append(recs, "Pull requests take over three days to merge on average; smaller PRs or more reviewers would help.")
	}
	if m.Issues.Total > 0 && float64(m.Issues.Open)/float64(m.Issues.Total) > 0.5 {
		recs = append(recs, "More than half of all issues are open; triage and close stale issues.")
	}
	if t.Activity == "decreasing" {
		recs = append(recs, "Development activity is trending down over recent weeks.")
	}
	if t.Engagement == "shrinking" {
		recs = append(recs, "Fewer contributors are active than in the previous period.")
	}

	if len(recs) == 0 {
		recs = append(recs, "Repository health looks good; keep up the current practices.")
	}
	return recs
}
