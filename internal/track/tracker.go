// Package track maintains the rolling in-memory state for sessions and
// activities still in progress, backed by the SQLite store. A Tracker is
// constructed once per run and passed to its consumers explicitly; there is
// no process-wide instance.
package track

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/promptops/agentpulse/internal/errs"
	"github.com/promptops/agentpulse/internal/session"
	"github.com/promptops/agentpulse/internal/store"
)

// interruptedMsg is stamped on activities that were still running when
// their session was force-terminated.
const interruptedMsg = "interrupted: session terminated before completion"

// Tracker records live sessions and their in-flight activities. All methods
// are safe for concurrent use; the mutex gives every id an exclusive update
// path.
type Tracker struct {
	mu       sync.Mutex
	db       *store.DB
	log      zerolog.Logger
	sessions map[string]*session.Session
	live     map[string]string // task id -> session id, in_progress only
}

// New returns a Tracker writing through to db.
func New(db *store.DB, log zerolog.Logger) *Tracker {
	return &Tracker{
		db:       db,
		log:      log,
		sessions: make(map[string]*session.Session),
		live:     make(map[string]string),
	}
}

// StartSession registers a new live session. The id may be empty, in which
// case one is generated.
func (t *Tracker) StartSession(id, workingDir string, start time.Time) *session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	s := &session.Session{ID: id, StartTime: start, WorkingDir: workingDir}
	t.sessions[id] = s
	return s
}

// Adopt registers a reconstructed session as live. Activities without an
// end time are marked in progress and tracked, so a later forced
// termination fails them; counts are recomputed to match.
func (t *Tracker) Adopt(s *session.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := *s
	cp.Activities = append([]session.AgentActivity(nil), s.Activities...)
	cp.CompletedTasks = 0
	for i := range cp.Activities {
		a := &cp.Activities[i]
		if !a.Ended() {
			a.Status = session.StatusInProgress
			a.Success = false
			t.live[a.TaskID] = cp.ID
		}
		if a.Success {
			cp.CompletedTasks++
		}
	}
	cp.TotalTasks = len(cp.Activities)
	t.sessions[cp.ID] = &cp
}

// StartActivity registers a delegated task as in progress within a session,
// returning its task id.
func (t *Tracker) StartActivity(sessionID string, a session.AgentActivity) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return "", &errs.NotFoundError{Kind: "session", ID: sessionID}
	}

	if a.TaskID == "" {
		a.TaskID = uuid.NewString()
	}
	if a.AgentID == "" {
		a.AgentID = a.TaskID
	}
	a.Status = session.StatusInProgress
	a.Success = false

	s.Activities = append(s.Activities, a)
	s.TotalTasks = len(s.Activities)
	t.live[a.TaskID] = sessionID
	return a.TaskID, nil
}

// UpdateActivity merges non-zero fields into a live activity. Terminal
// activities reject the merge.
func (t *Tracker) UpdateActivity(taskID string, patch session.AgentActivity) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, _, err := t.lookup(taskID)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return fmt.Errorf("activity %s is already %s; updates are not accepted", taskID, a.Status)
	}

	if patch.Description != "" {
		a.Description = patch.Description
	}
	if patch.InputTokens != 0 {
		a.InputTokens = patch.InputTokens
	}
	if patch.OutputTokens != 0 {
		a.OutputTokens = patch.OutputTokens
	}
	if len(patch.Tools) > 0 {
		a.Tools = append(a.Tools, patch.Tools...)
	}
	if len(patch.FileOps) > 0 {
		a.FileOps = append(a.FileOps, patch.FileOps...)
	}
	if len(patch.Metadata) > 0 {
		if a.Metadata == nil {
			a.Metadata = make(map[string]string, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			a.Metadata[k] = v
		}
	}
	return nil
}

// FinishActivity applies the one-way terminal transition for a task.
func (t *Tracker) FinishActivity(taskID string, end time.Time, success bool, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, sessionID, err := t.lookup(taskID)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return fmt.Errorf("activity %s is already %s", taskID, a.Status)
	}

	a.Finish(end, success, errMsg)
	delete(t.live, taskID)

	if s, ok := t.sessions[sessionID]; ok {
		s.CompletedTasks = 0
		for i := range s.Activities {
			if s.Activities[i].Success {
				s.CompletedTasks++
			}
		}
	}
	return nil
}

// EndSession marks a session ended at the given instant. Any activity still
// in progress is forced to failed with the standard interrupted message.
func (t *Tracker) EndSession(id string, end time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endSessionLocked(id, end)
}

func (t *Tracker) endSessionLocked(id string, end time.Time) error {
	s, ok := t.sessions[id]
	if !ok {
		return &errs.NotFoundError{Kind: "session", ID: id}
	}

	for i := range s.Activities {
		a := &s.Activities[i]
		if a.Status.Terminal() {
			continue
		}
		a.Finish(end, false, interruptedMsg)
		delete(t.live, a.TaskID)
		t.log.Warn().Str("session", id).Str("task", a.TaskID).
			Msg("activity interrupted by session termination")
	}

	s.EndTime = end
	if !s.StartTime.IsZero() && end.After(s.StartTime) {
		s.DurationSeconds = int64(end.Sub(s.StartTime) / time.Second)
	}
	s.TotalTasks = len(s.Activities)
	s.CompletedTasks = 0
	for i := range s.Activities {
		if s.Activities[i].Success {
			s.CompletedTasks++
		}
	}

	if err := t.db.SaveSession(s); err != nil {
		return err
	}
	delete(t.sessions, id)
	return nil
}

// Session returns a copy of the live session with the given id, or nil.
func (t *Tracker) Session(id string) *session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return nil
	}
	cp := *s
	cp.Activities = append([]session.AgentActivity(nil), s.Activities...)
	return &cp
}

// LiveCount returns the number of activities currently in progress.
func (t *Tracker) LiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Shutdown force-terminates every live session at the given instant and
// flushes the store. The flush runs even when a session save fails, so
// whatever was persisted stays durable.
func (t *Tracker) Shutdown(end time.Time) error {
	t.mu.Lock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := t.EndSession(id, end); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := t.db.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// lookup finds an in-flight activity and its owning session by task id.
func (t *Tracker) lookup(taskID string) (*session.AgentActivity, string, error) {
	sessionID, ok := t.live[taskID]
	if !ok {
		return nil, "", &errs.NotFoundError{Kind: "activity", ID: taskID}
	}
	s, ok := t.sessions[sessionID]
	if !ok {
		return nil, "", &errs.NotFoundError{Kind: "activity", ID: taskID}
	}
	for i := range s.Activities {
		if s.Activities[i].TaskID == taskID {
			return &s.Activities[i], sessionID, nil
		}
	}
	return nil, "", &errs.NotFoundError{Kind: "activity", ID: taskID}
}
