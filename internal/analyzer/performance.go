package analyzer

import (
	"sort"

	"github.com/promptops/agentpulse/internal/session"
	"github.com/promptops/agentpulse/internal/trend"
)

// trendWindow is the number of most recent sessions compared against the
// earlier remainder when classifying the activity trend.
const trendWindow = 5

// Analyze computes per-agent-type and session-level performance aggregates.
// Output depends only on the input collection and its order, so identical
// input produces identical output across runs.
func Analyze(sessions []session.Session) Report {
	report := Report{
		TotalSessions: len(sessions),
		ByType:        make(map[string]AgentTypeStats),
		ActivityTrend: "stable",
	}

	if len(sessions) == 0 {
		return report
	}

	var endedDuration int64
	var endedCount int
	var successCount int

	typeGroups := make(map[string][]*session.AgentActivity)

	for i := range sessions {
		s := &sessions[i]
		if s.Ended() {
			endedDuration += s.DurationSeconds
			endedCount++
		}
		for j := range s.Activities {
			a := &s.Activities[j]
			report.TotalTasks++
			if a.Success {
				successCount++
			}
			typeGroups[a.AgentType] = append(typeGroups[a.AgentType], a)
		}
	}

	if endedCount > 0 {
		report.AvgSessionDurationSeconds = float64(endedDuration) / float64(endedCount)
	}
	if report.TotalTasks > 0 {
		report.SuccessRate = float64(successCount) / float64(report.TotalTasks)
	}

	peerMean := meanDuration(typeGroups)

	for agentType, acts := range typeGroups {
		var typeSuccess int
		var timedTotal int64
		var timedCount int
		var inTokens, outTokens int

		for _, a := range acts {
			if a.Success {
				typeSuccess++
			}
			if a.Ended() {
				timedTotal += a.DurationSeconds
				timedCount++
			}
			inTokens += a.InputTokens
			outTokens += a.OutputTokens
		}

		stats := AgentTypeStats{
			Count:        len(acts),
			SuccessRate:  float64(typeSuccess) / float64(len(acts)),
			InputTokens:  inTokens,
			OutputTokens: outTokens,
		}
		if timedCount > 0 {
			stats.AvgDurationSeconds = float64(timedTotal) / float64(timedCount)
		}
		stats.Efficiency = efficiency(stats.SuccessRate, stats.AvgDurationSeconds, timedCount > 0, peerMean)

		report.ByType[agentType] = stats
	}

	report.BusiestAgentType = busiestType(report.ByType)
	report.ActivityTrend = activityTrend(sessions)

	return report
}

// efficiency combines success rate with duration relative to peers into a
// bounded [0,100] score. Faster-than-peers raises the score, slower lowers
// it; an agent with no timed activities gets the neutral speed component.
func efficiency(successRate, avgDuration float64, hasTimed bool, peerMean float64) float64 {
	speed := 50.0
	if hasTimed && peerMean > 0 {
		speed = peerMean / (peerMean + avgDuration) * 100
	}
	score := 0.7*successRate*100 + 0.3*speed
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// meanDuration returns the mean duration across all timed activities.
func meanDuration(groups map[string][]*session.AgentActivity) float64 {
	var total int64
	var count int
	for _, acts := range groups {
		for _, a := range acts {
			if a.Ended() {
				total += a.DurationSeconds
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

// busiestType returns the agent type with the highest activity count,
// breaking ties toward the lexicographically smallest identifier.
func busiestType(byType map[string]AgentTypeStats) string {
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	best := ""
	bestCount := -1
	for _, t := range types {
		if byType[t].Count > bestCount {
			best = t
			bestCount = byType[t].Count
		}
	}
	return best
}

// activityTrend compares mean tasks per session over the last trendWindow
// sessions against all earlier sessions, in input order.
func activityTrend(sessions []session.Session) string {
	if len(sessions) <= trendWindow {
		return "stable"
	}

	split := len(sessions) - trendWindow
	earlier := make([]float64, 0, split)
	recent := make([]float64, 0, trendWindow)
	for i := range sessions {
		v := float64(len(sessions[i].Activities))
		if i < split {
			earlier = append(earlier, v)
		} else {
			recent = append(recent, v)
		}
	}

	cmp := trend.Compare(trend.Mean(recent), trend.Mean(earlier), trend.DefaultThreshold)
	return trend.Label(cmp, "increasing", "decreasing", "stable")
}
