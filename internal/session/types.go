// Package session models session logs: decoding JSONL event lines and
// reconstructing them into Session and AgentActivity aggregates.
package session

import "time"

// Status is the lifecycle state of an AgentActivity.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FileOperation records a single file touched by an activity. It has no
// lifecycle of its own; it is owned by its parent AgentActivity.
type FileOperation struct {
	Op        string    `json:"op"` // read, write, edit, delete
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentActivity is one unit of delegated work performed by a named agent
// type within a session. EndTime's zero value means the activity has not
// ended; DurationSeconds is set only alongside EndTime, floored to whole
// seconds.
type AgentActivity struct {
	AgentID         string            `json:"agent_id"`
	AgentType       string            `json:"agent_type"`
	TaskID          string            `json:"task_id"`
	Description     string            `json:"description"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time,omitzero"`
	DurationSeconds int64             `json:"duration_seconds"`
	Status          Status            `json:"status"`
	InputTokens     int               `json:"input_tokens"`
	OutputTokens    int               `json:"output_tokens"`
	Tools           []string          `json:"tools,omitempty"`
	FileOps         []FileOperation   `json:"file_ops,omitempty"`
	Success         bool              `json:"success"`
	Error           string            `json:"error,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Ended reports whether the activity has an end time.
func (a *AgentActivity) Ended() bool {
	return !a.EndTime.IsZero()
}

// Finish applies the one-way terminal transition. The duration is floored to
// whole seconds from the start/end pair.
func (a *AgentActivity) Finish(end time.Time, success bool, errMsg string) {
	a.EndTime = end
	if !a.StartTime.IsZero() && end.After(a.StartTime) {
		a.DurationSeconds = int64(end.Sub(a.StartTime) / time.Second)
	} else {
		a.DurationSeconds = 0
	}
	a.Success = success
	if success {
		a.Status = StatusCompleted
		a.Error = ""
	} else {
		a.Status = StatusFailed
		a.Error = errMsg
	}
}

// Session is one continuous interaction window. It exclusively owns its
// Activities slice; activities never detach from their session.
type Session struct {
	ID              string          `json:"id"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time,omitzero"`
	DurationSeconds int64           `json:"duration_seconds"`
	WorkingDir      string          `json:"working_dir"`
	TotalTasks      int             `json:"total_tasks"`
	CompletedTasks  int             `json:"completed_tasks"`
	Activities      []AgentActivity `json:"activities"`
}

// Ended reports whether the session has an end time.
func (s *Session) Ended() bool {
	return !s.EndTime.IsZero()
}

// AgentTypeInfo carries optional display metadata for a known agent type.
// Agent types themselves are an open string enumeration; unknown types are
// fully valid and simply have no hints.
type AgentTypeInfo struct {
	Label        string
	Color        string
	DefaultTools []string
}

// knownAgentTypes is the display-hint side table for the commonly seen
// agent types. It is never used for validation.
var knownAgentTypes = map[string]AgentTypeInfo{
	"general-purpose":     {Label: "General", Color: "245"},
	"ceo":                 {Label: "CEO", Color: "220"},
	"backend-developer":   {Label: "Backend", Color: "39", DefaultTools: []string{"Bash", "Edit", "Write"}},
	"frontend-developer":  {Label: "Frontend", Color: "213", DefaultTools: []string{"Edit", "Write"}},
	"project-manager":     {Label: "PM", Color: "214"},
	"qa-engineer":         {Label: "QA", Color: "118", DefaultTools: []string{"Bash", "Read"}},
	"security-specialist": {Label: "Security", Color: "196"},
	"researcher":          {Label: "Research", Color: "81", DefaultTools: []string{"WebSearch", "WebFetch"}},
}

// LookupAgentType returns display hints for an agent type. The second
// return value reports whether hints exist; callers must treat unknown
// types as valid.
func LookupAgentType(agentType string) (AgentTypeInfo, bool) {
	info, ok := knownAgentTypes[agentType]
	return info, ok
}
