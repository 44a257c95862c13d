package session

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/promptops/agentpulse/internal/errs"
)

// Reconstruct builds one Session from the ordered decoded events of a single
// log source. The session id derives from the source path basename. When
// active is true the source stream is still open and the session gets no end
// time. Activities keep the order of their originating events; tool_result
// blocks are merged back into the pending activity they answer.
func Reconstruct(source string, events []*Event, active bool) *Session {
	sess := &Session{
		ID: strings.TrimSuffix(filepath.Base(source), ".jsonl"),
	}

	// Pending Task launches by tool_use id, pointing into sess.Activities.
	pending := make(map[string]int)

	for _, ev := range events {
		if !ev.Timestamp.IsZero() {
			if sess.StartTime.IsZero() {
				sess.StartTime = ev.Timestamp
			}
			sess.EndTime = ev.Timestamp
		}

		switch ev.Type {
		case "system":
			if ev.CWD != "" {
				sess.WorkingDir = ev.CWD
			}
		case "assistant":
			for _, act := range ev.Activities {
				sess.Activities = append(sess.Activities, act)
				pending[act.TaskID] = len(sess.Activities) - 1
			}
		case "user":
			if ev.Message == nil {
				continue
			}
			for _, block := range ev.Message.Content {
				if block.Type != "tool_result" {
					continue
				}
				idx, ok := pending[block.ToolUseID]
				if !ok {
					continue
				}
				act := &sess.Activities[idx]
				errMsg := ""
				if block.IsError {
					errMsg = resultText(block)
				}
				act.Finish(ev.Timestamp, !block.IsError, errMsg)
				delete(pending, block.ToolUseID)
			}
		}
	}

	if sess.WorkingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			sess.WorkingDir = wd
		}
	}

	if active {
		sess.EndTime = time.Time{}
	} else if !sess.StartTime.IsZero() && sess.EndTime.After(sess.StartTime) {
		sess.DurationSeconds = int64(sess.EndTime.Sub(sess.StartTime).Seconds())
	}

	sess.TotalTasks = len(sess.Activities)
	for i := range sess.Activities {
		if sess.Activities[i].Success {
			sess.CompletedTasks++
		}
	}

	return sess
}

// resultText extracts a short error description from a tool_result block.
func resultText(block ContentBlock) string {
	if block.Text != "" {
		return errs.Truncate(block.Text, 200)
	}
	if len(block.Content) > 0 {
		return errs.Truncate(string(block.Content), 200)
	}
	return "task failed"
}
