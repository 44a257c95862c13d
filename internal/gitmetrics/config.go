package gitmetrics

// Weights are the four health-score component weights. They are clamped to
// [0,1] and renormalized to sum to 1 before scoring.
type Weights struct {
	Activity        float64 `json:"activity" mapstructure:"activity"`
	CodeQuality     float64 `json:"code_quality" mapstructure:"code_quality"`
	Collaboration   float64 `json:"collaboration" mapstructure:"collaboration"`
	IssueManagement float64 `json:"issue_management" mapstructure:"issue_management"`
}

// AnalysisConfig controls one analysis run.
type AnalysisConfig struct {
	// TimeRangeDays bounds the commit window, clamped to [1,365].
	TimeRangeDays int `mapstructure:"time_range_days"`

	// IncludeWeekends is accepted for interface compatibility but no
	// filtering currently branches on it.
	IncludeWeekends bool `mapstructure:"include_weekends"`

	// ExcludeMergeCommits drops merge commits before aggregation.
	ExcludeMergeCommits bool `mapstructure:"exclude_merge_commits"`

	// MinCommitMessageLength drops commits with shorter messages.
	MinCommitMessageLength int `mapstructure:"min_commit_message_length"`

	Weights Weights `mapstructure:"weights"`
}

// DefaultConfig returns the standard analysis configuration.
func DefaultConfig() AnalysisConfig {
	return AnalysisConfig{
		TimeRangeDays:          30,
		IncludeWeekends:        true,
		ExcludeMergeCommits:    true,
		MinCommitMessageLength: 0,
		Weights: Weights{
			Activity:        0.30,
			CodeQuality:     0.20,
			Collaboration:   0.25,
			IssueManagement: 0.25,
		},
	}
}

// normalize clamps the config into valid ranges and renormalizes the
// weights to sum to 1. A raw weight sum of 0 is left untouched: that is a
// degenerate input the caller must avoid, not something to silently repair
// with uniform weights.
func (c AnalysisConfig) normalize() AnalysisConfig {
	if c.TimeRangeDays < 1 {
		c.TimeRangeDays = 1
	}
	if c.TimeRangeDays > 365 {
		c.TimeRangeDays = 365
	}
	if c.MinCommitMessageLength < 0 {
		c.MinCommitMessageLength = 0
	}

	c.Weights.Activity = clamp01(c.Weights.Activity)
	c.Weights.CodeQuality = clamp01(c.Weights.CodeQuality)
	c.Weights.Collaboration = clamp01(c.Weights.Collaboration)
	c.Weights.IssueManagement = clamp01(c.Weights.IssueManagement)

	sum := c.Weights.Activity + c.Weights.CodeQuality + c.Weights.Collaboration + c.Weights.IssueManagement
	if sum > 0 {
		c.Weights.Activity /= sum
		c.Weights.CodeQuality /= sum
		c.Weights.Collaboration /= sum
		c.Weights.IssueManagement /= sum
	}

	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
