package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DecodeError reports a single malformed log line. It is recovered locally
// by the decoder and never propagated past a file.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Event is one decoded log record. Type is "system", "user", or
// "assistant"; other record types are dropped during decoding.
type Event struct {
	Type      string
	Timestamp time.Time
	CWD       string
	Message   *Message

	// Activities holds the AgentActivity candidates extracted from this
	// event's Task tool_use blocks (assistant events only).
	Activities []AgentActivity
}

// Message is the message payload of a user or assistant event.
type Message struct {
	Role    string         `json:"role"`
	Model   string         `json:"model"`
	Content []ContentBlock `json:"content"`
	Usage   Usage          `json:"usage"`
}

// ContentBlock is a single content block (tool_use, tool_result, text).
type ContentBlock struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
	Text      string          `json:"text"`
}

// Usage carries the token counts attached to an assistant message.
// Missing fields decode to zero.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// rawEvent is the top-level structure of a JSONL line.
type rawEvent struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	CWD       string          `json:"cwd"`
	Message   json.RawMessage `json:"message"`
}

// taskInput is the input payload of a Task tool_use block.
type taskInput struct {
	SubagentType string `json:"subagent_type"`
	Description  string `json:"description"`
	Prompt       string `json:"prompt"`
}

// Decoder turns raw log lines into typed events. A zero Decoder is usable;
// NewDecoder attaches a logger for per-line warnings.
type Decoder struct {
	log zerolog.Logger
}

// NewDecoder returns a Decoder that logs skipped lines at warn level.
func NewDecoder(log zerolog.Logger) *Decoder {
	return &Decoder{log: log}
}

// DecodeLine parses one log line. Malformed JSON yields (nil, *DecodeError);
// a well-formed line of an unrecognized event type yields (nil, nil). A
// corrupt line must never abort processing of the rest of the file, so
// callers treat both cases as skips.
func (d *Decoder) DecodeLine(line []byte, lineNo int) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, &DecodeError{Line: lineNo, Err: err}
	}

	switch raw.Type {
	case "system", "user", "assistant":
	default:
		return nil, nil
	}

	ev := &Event{
		Type:      raw.Type,
		Timestamp: ParseTimestamp(raw.Timestamp),
		CWD:       raw.CWD,
	}

	if raw.Message != nil {
		var msg Message
		if err := json.Unmarshal(raw.Message, &msg); err != nil {
			return nil, &DecodeError{Line: lineNo, Err: err}
		}
		ev.Message = &msg
	}

	if ev.Type == "assistant" && ev.Message != nil {
		ev.Activities = extractActivities(ev)
	}

	return ev, nil
}

// DecodeFile decodes every line of a JSONL log file, skipping malformed
// lines with a warning. The returned events preserve file order.
func (d *Decoder) DecodeFile(path string) ([]*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []*Event

	scanner := bufio.NewScanner(f)
	// Long tool results can push single lines into the megabytes.
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		ev, err := d.DecodeLine(scanner.Bytes(), lineNo)
		if err != nil {
			d.log.Warn().Str("file", path).Int("line", lineNo).Err(err).
				Msg("skipping malformed log line")
			continue
		}
		if ev == nil {
			continue
		}
		events = append(events, ev)
	}

	if err := scanner.Err(); err != nil {
		return events, err
	}
	return events, nil
}

// extractActivities yields one candidate AgentActivity per Task tool_use
// block. Blocks with other tool names are ignored. Candidates default to
// completed; the reconstructor flips them on a paired error result.
func extractActivities(ev *Event) []AgentActivity {
	var out []AgentActivity

	for _, block := range ev.Message.Content {
		if block.Type != "tool_use" || block.Name != "Task" {
			continue
		}

		var input taskInput
		if block.Input != nil {
			// Unparseable input still yields an activity; the fields
			// just stay at their defaults.
			_ = json.Unmarshal(block.Input, &input)
		}

		taskID := block.ID
		if taskID == "" {
			taskID = uuid.NewString()
		}

		agentType := input.SubagentType
		if agentType == "" {
			agentType = "general-purpose"
		}

		description := input.Description
		if description == "" {
			description = taskID
		}

		act := AgentActivity{
			AgentID:      taskID,
			AgentType:    agentType,
			TaskID:       taskID,
			Description:  description,
			StartTime:    ev.Timestamp,
			Status:       StatusCompleted,
			Success:      true,
			InputTokens:  ev.Message.Usage.InputTokens,
			OutputTokens: ev.Message.Usage.OutputTokens,
		}
		if ev.Message.Model != "" {
			act.Metadata = map[string]string{
				"model":       ev.Message.Model,
				"description": description,
			}
		}

		out = append(out, act)
	}

	return out
}

// ParseTimestamp parses an ISO 8601 timestamp string. It tries RFC3339Nano,
// RFC3339, and a plain datetime format without timezone. Returns the zero
// time if the string is empty or matches no supported format.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			t, err = time.Parse("2006-01-02T15:04:05", s)
			if err != nil {
				return time.Time{}
			}
		}
	}
	return t
}
