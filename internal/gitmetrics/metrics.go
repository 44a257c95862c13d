package gitmetrics

import (
	"sort"
	"strings"
	"time"
)

// computeMetrics aggregates the three collections in a single pass each.
// until anchors the active-contributor window so the result depends only on
// the inputs, not the wall clock.
func computeMetrics(commits []Commit, prs []PullRequest, issues []Issue, rangeDays int, until time.Time) ProjectMetrics {
	return ProjectMetrics{
		Commits:      commitStats(commits, rangeDays),
		PullRequests: prStats(prs),
		Issues:       issueStats(issues),
		Code:         codeStats(commits),
		Contributors: contributorStats(commits, until),
	}
}

func commitStats(commits []Commit, rangeDays int) CommitStats {
	stats := CommitStats{
		Total:    len(commits),
		ByAuthor: make(map[string]int),
		ByDate:   make(map[string]int),
	}
	for _, c := range commits {
		stats.ByAuthor[c.Author]++
		stats.ByDate[c.Date.UTC().Format("2006-01-02")]++
	}
	if rangeDays > 0 {
		stats.AvgPerDay = float64(len(commits)) / float64(rangeDays)
	}
	return stats
}

func prStats(prs []PullRequest) PRStats {
	stats := PRStats{Total: len(prs)}
	var mergeHours float64
	for _, pr := range prs {
		switch pr.State {
		case "open":
			stats.Open++
		default:
			stats.Closed++
		}
		if !pr.MergedAt.IsZero() {
			stats.Merged++
			mergeHours += pr.MergedAt.Sub(pr.CreatedAt).Hours()
		}
	}
	if stats.Merged > 0 {
		stats.AvgMergeHours = mergeHours / float64(stats.Merged)
	}
	return stats
}

func issueStats(issues []Issue) IssueStats {
	stats := IssueStats{Total: len(issues)}
	var resolutionHours float64
	var resolved int
	for _, is := range issues {
		if is.State == "open" {
			stats.Open++
			continue
		}
		stats.Closed++
		if !is.ClosedAt.IsZero() {
			resolutionHours += is.ClosedAt.Sub(is.CreatedAt).Hours()
			resolved++
		}
	}
	if resolved > 0 {
		stats.AvgResolutionHours = resolutionHours / float64(resolved)
	}
	return stats
}

func codeStats(commits []Commit) CodeStats {
	var stats CodeStats
	for _, c := range commits {
		stats.Additions += c.Additions
		stats.Deletions += c.Deletions
	}
	if len(commits) > 0 {
		stats.AvgLinesPerCommit = float64(stats.Additions+stats.Deletions) / float64(len(commits))
	}
	return stats
}

func contributorStats(commits []Commit, until time.Time) ContributorStats {
	counts := make(map[string]int)
	latest := make(map[string]time.Time)
	for _, c := range commits {
		counts[c.Author]++
		if c.Date.After(latest[c.Author]) {
			latest[c.Author] = c.Date
		}
	}

	stats := ContributorStats{Total: len(counts)}

	activeCutoff := until.AddDate(0, 0, -30)
	for _, last := range latest {
		if !last.Before(activeCutoff) {
			stats.ActiveLast30++
		}
	}

	authors := make([]string, 0, len(counts))
	for a := range counts {
		authors = append(authors, a)
	}
	// Highest commit count first; ties break lexicographically.
	sort.Slice(authors, func(i, j int) bool {
		if counts[authors[i]] != counts[authors[j]] {
			return counts[authors[i]] > counts[authors[j]]
		}
		return authors[i] < authors[j]
	})
	if len(authors) > 10 {
		authors = authors[:10]
	}
	for _, a := range authors {
		stats.Top = append(stats.Top, Contributor{Login: a, Commits: counts[a]})
	}

	return stats
}

// isMergeCommit reports whether a commit message marks a merge: it starts
// with "merge " in any case, or carries the standard GitHub merge markers.
func isMergeCommit(message string) bool {
	if strings.HasPrefix(strings.ToLower(message), "merge ") {
		return true
	}
	return strings.Contains(message, "Merge pull request") ||
		strings.Contains(message, "Merge branch")
}

// filterCommits applies the merge-commit and message-length filters.
func filterCommits(commits []Commit, cfg AnalysisConfig) []Commit {
	out := make([]Commit, 0, len(commits))
	for _, c := range commits {
		if cfg.ExcludeMergeCommits && isMergeCommit(c.Message) {
			continue
		}
		if len(c.Message) < cfg.MinCommitMessageLength {
			continue
		}
		out = append(out, c)
	}
	return out
}
