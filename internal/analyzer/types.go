// Package analyzer computes per-agent and session-level performance
// aggregates from reconstructed session data.
package analyzer

// AgentTypeStats holds the aggregate metrics for one agent type.
type AgentTypeStats struct {
	// Count is the number of activities attributed to this type.
	Count int `json:"count"`

	// SuccessRate is completed-with-success over total, 0 when total is 0.
	SuccessRate float64 `json:"success_rate"`

	// AvgDurationSeconds is the mean duration over activities that have a
	// duration; activities still running are excluded, not counted as zero.
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`

	// Efficiency is a deterministic 0-100 score combining success rate with
	// duration relative to peer agents.
	Efficiency float64 `json:"efficiency"`

	// InputTokens and OutputTokens are totals across the type's activities.
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Report is the output of Analyze over a batch of sessions.
type Report struct {
	// TotalSessions is the number of sessions analyzed.
	TotalSessions int `json:"total_sessions"`

	// AvgSessionDurationSeconds averages over ended sessions only.
	AvgSessionDurationSeconds float64 `json:"avg_session_duration_seconds"`

	// TotalTasks is the activity count across all sessions.
	TotalTasks int `json:"total_tasks"`

	// SuccessRate is the overall completed-with-success ratio.
	SuccessRate float64 `json:"success_rate"`

	// BusiestAgentType is the type with the most activities. Ties break to
	// the lexicographically smallest identifier.
	BusiestAgentType string `json:"busiest_agent_type"`

	// ByType maps agent type to its aggregate stats.
	ByType map[string]AgentTypeStats `json:"by_type"`

	// ActivityTrend compares tasks per session over the recent window
	// against the earlier window: "increasing", "decreasing", or "stable".
	ActivityTrend string `json:"activity_trend"`
}
