package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/promptops/agentpulse/internal/errs"
	"github.com/promptops/agentpulse/internal/session"
)

// Filter selects sessions for GetSessions. Zero From/To bounds are open;
// the range is inclusive on both ends. When AgentTypes is non-empty only
// sessions containing at least one activity of a listed type match.
type Filter struct {
	From       time.Time
	To         time.Time
	AgentTypes []string
}

// SaveSession persists a session and its activities. It is an idempotent
// upsert keyed by session id: saving the same session twice leaves one copy.
func (db *DB) SaveSession(s *session.Session) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return &errs.StorageError{Op: "save_session", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO sessions (id, start_time, end_time, duration_seconds, working_dir, total_tasks, completed_tasks)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			start_time=excluded.start_time, end_time=excluded.end_time,
			duration_seconds=excluded.duration_seconds, working_dir=excluded.working_dir,
			total_tasks=excluded.total_tasks, completed_tasks=excluded.completed_tasks`,
		s.ID, fmtTime(s.StartTime), fmtNullTime(s.EndTime), s.DurationSeconds,
		s.WorkingDir, s.TotalTasks, s.CompletedTasks,
	); err != nil {
		return &errs.StorageError{Op: "save_session", Err: err}
	}

	// Activities are owned by the session; replace wholesale so the upsert
	// stays idempotent.
	if _, err := tx.Exec("DELETE FROM activities WHERE session_id = ?", s.ID); err != nil {
		return &errs.StorageError{Op: "save_session", Err: err}
	}
	for i := range s.Activities {
		if err := insertActivity(tx, s.ID, &s.Activities[i]); err != nil {
			return &errs.StorageError{Op: "save_session", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errs.StorageError{Op: "save_session", Err: err}
	}
	return nil
}

// UpdateSession merges the non-zero fields of s into the stored session.
// Unknown ids yield a NotFoundError.
func (db *DB) UpdateSession(s *session.Session) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	existing, err := db.getSession(s.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return &errs.NotFoundError{Kind: "session", ID: s.ID}
	}

	if !s.StartTime.IsZero() {
		existing.StartTime = s.StartTime
	}
	if !s.EndTime.IsZero() {
		existing.EndTime = s.EndTime
	}
	if s.DurationSeconds != 0 {
		existing.DurationSeconds = s.DurationSeconds
	}
	if s.WorkingDir != "" {
		existing.WorkingDir = s.WorkingDir
	}
	if s.TotalTasks != 0 {
		existing.TotalTasks = s.TotalTasks
	}
	if s.CompletedTasks != 0 {
		existing.CompletedTasks = s.CompletedTasks
	}

	if _, err := db.conn.Exec(
		`UPDATE sessions SET start_time=?, end_time=?, duration_seconds=?, working_dir=?, total_tasks=?, completed_tasks=?
		 WHERE id=?`,
		fmtTime(existing.StartTime), fmtNullTime(existing.EndTime), existing.DurationSeconds,
		existing.WorkingDir, existing.TotalTasks, existing.CompletedTasks, existing.ID,
	); err != nil {
		return &errs.StorageError{Op: "update_session", Err: err}
	}
	return nil
}

// UpdateActivity merges the non-zero fields of a into the stored activity,
// keyed by task id. Terminal activities (completed/failed) reject further
// merges; the transition is one-way.
func (db *DB) UpdateActivity(a *session.AgentActivity) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	existing, err := db.getActivity(a.TaskID)
	if err != nil {
		return err
	}
	if existing == nil {
		return &errs.NotFoundError{Kind: "activity", ID: a.TaskID}
	}
	if existing.Status.Terminal() {
		return &errs.StorageError{Op: "update_activity",
			Err: &terminalError{taskID: a.TaskID, status: existing.Status}}
	}

	mergeActivity(existing, a)

	if _, err := db.conn.Exec(
		`UPDATE activities SET agent_id=?, agent_type=?, description=?, status=?, start_time=?, end_time=?,
			duration_seconds=?, input_tokens=?, output_tokens=?, tools=?, file_ops=?, success=?, error=?, metadata=?
		 WHERE task_id=?`,
		existing.AgentID, existing.AgentType, existing.Description, string(existing.Status),
		fmtTime(existing.StartTime), fmtNullTime(existing.EndTime), existing.DurationSeconds,
		existing.InputTokens, existing.OutputTokens, jsonField(existing.Tools),
		jsonField(existing.FileOps), existing.Success, existing.Error, jsonField(existing.Metadata),
		existing.TaskID,
	); err != nil {
		return &errs.StorageError{Op: "update_activity", Err: err}
	}
	return nil
}

// GetSessions returns sessions whose start time falls inside the filter's
// inclusive range, restricted by agent type when requested. No matches is an
// empty slice, never an error.
func (db *DB) GetSessions(f Filter) ([]session.Session, error) {
	var conds []string
	var args []any

	if !f.From.IsZero() {
		conds = append(conds, "start_time >= ?")
		args = append(args, fmtTime(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "start_time <= ?")
		args = append(args, fmtTime(f.To))
	}
	if len(f.AgentTypes) > 0 {
		placeholders := strings.Repeat("?,", len(f.AgentTypes))
		placeholders = placeholders[:len(placeholders)-1]
		conds = append(conds,
			"EXISTS (SELECT 1 FROM activities a WHERE a.session_id = sessions.id AND a.agent_type IN ("+placeholders+"))")
		for _, t := range f.AgentTypes {
			args = append(args, t)
		}
	}

	query := `SELECT id, start_time, end_time, duration_seconds, working_dir, total_tasks, completed_tasks FROM sessions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_time, id"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, &errs.StorageError{Op: "get_sessions", Err: err}
	}
	defer func() { _ = rows.Close() }()

	sessions := []session.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, &errs.StorageError{Op: "get_sessions", Err: err}
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.StorageError{Op: "get_sessions", Err: err}
	}

	for i := range sessions {
		acts, err := db.getSessionActivities(sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Activities = acts
	}

	return sessions, nil
}

// CleanOldData removes persisted sessions whose end time is older than
// now - retentionDays, returning the count removed. Sessions that never
// ended are still in flight and are kept regardless of age.
func (db *DB) CleanOldData(retentionDays int) (int, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res, err := db.conn.Exec(
		"DELETE FROM sessions WHERE end_time IS NOT NULL AND end_time < ?",
		fmtTime(cutoff),
	)
	if err != nil {
		return 0, &errs.StorageError{Op: "clean_old_data", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &errs.StorageError{Op: "clean_old_data", Err: err}
	}
	return int(n), nil
}

// getSession loads one session row (without activities), or nil.
func (db *DB) getSession(id string) (*session.Session, error) {
	row := db.conn.QueryRow(
		`SELECT id, start_time, end_time, duration_seconds, working_dir, total_tasks, completed_tasks
		 FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &errs.StorageError{Op: "get_session", Err: err}
	}
	return s, nil
}

func (db *DB) getActivity(taskID string) (*session.AgentActivity, error) {
	row := db.conn.QueryRow(activitySelect+" WHERE task_id = ?", taskID)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &errs.StorageError{Op: "get_activity", Err: err}
	}
	return a, nil
}

// getSessionActivities returns a session's activities in insertion order.
func (db *DB) getSessionActivities(sessionID string) ([]session.AgentActivity, error) {
	rows, err := db.conn.Query(activitySelect+" WHERE session_id = ? ORDER BY rowid", sessionID)
	if err != nil {
		return nil, &errs.StorageError{Op: "get_activities", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var acts []session.AgentActivity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, &errs.StorageError{Op: "get_activities", Err: err}
		}
		acts = append(acts, *a)
	}
	return acts, rows.Err()
}

const activitySelect = `SELECT task_id, agent_id, agent_type, description, status, start_time, end_time,
	duration_seconds, input_tokens, output_tokens, tools, file_ops, success, error, metadata FROM activities`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var s session.Session
	var start string
	var end sql.NullString
	var workingDir sql.NullString
	if err := row.Scan(&s.ID, &start, &end, &s.DurationSeconds, &workingDir,
		&s.TotalTasks, &s.CompletedTasks); err != nil {
		return nil, err
	}
	s.StartTime = session.ParseTimestamp(start)
	if end.Valid {
		s.EndTime = session.ParseTimestamp(end.String)
	}
	s.WorkingDir = workingDir.String
	return &s, nil
}

func scanActivity(row rowScanner) (*session.AgentActivity, error) {
	var a session.AgentActivity
	var status, start string
	var end, tools, fileOps, description, errMsg, metadata sql.NullString
	if err := row.Scan(&a.TaskID, &a.AgentID, &a.AgentType, &description, &status,
		&start, &end, &a.DurationSeconds, &a.InputTokens, &a.OutputTokens,
		&tools, &fileOps, &a.Success, &errMsg, &metadata); err != nil {
		return nil, err
	}
	a.Status = session.Status(status)
	a.Description = description.String
	a.Error = errMsg.String
	a.StartTime = session.ParseTimestamp(start)
	if end.Valid {
		a.EndTime = session.ParseTimestamp(end.String)
	}
	if tools.Valid && tools.String != "" {
		_ = json.Unmarshal([]byte(tools.String), &a.Tools)
	}
	if fileOps.Valid && fileOps.String != "" {
		_ = json.Unmarshal([]byte(fileOps.String), &a.FileOps)
	}
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &a.Metadata)
	}
	return &a, nil
}

func insertActivity(tx *sql.Tx, sessionID string, a *session.AgentActivity) error {
	_, err := tx.Exec(
		`INSERT INTO activities
		(task_id, session_id, agent_id, agent_type, description, status, start_time, end_time,
		 duration_seconds, input_tokens, output_tokens, tools, file_ops, success, error, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TaskID, sessionID, a.AgentID, a.AgentType, a.Description, string(a.Status),
		fmtTime(a.StartTime), fmtNullTime(a.EndTime), a.DurationSeconds,
		a.InputTokens, a.OutputTokens, jsonField(a.Tools), jsonField(a.FileOps),
		a.Success, a.Error, jsonField(a.Metadata),
	)
	return err
}

// mergeActivity copies the non-zero fields of src onto dst.
func mergeActivity(dst, src *session.AgentActivity) {
	if src.AgentID != "" {
		dst.AgentID = src.AgentID
	}
	if src.AgentType != "" {
		dst.AgentType = src.AgentType
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
	if !src.StartTime.IsZero() {
		dst.StartTime = src.StartTime
	}
	if !src.EndTime.IsZero() {
		dst.EndTime = src.EndTime
		dst.DurationSeconds = src.DurationSeconds
	}
	if src.InputTokens != 0 {
		dst.InputTokens = src.InputTokens
	}
	if src.OutputTokens != 0 {
		dst.OutputTokens = src.OutputTokens
	}
	if len(src.Tools) > 0 {
		dst.Tools = src.Tools
	}
	if len(src.FileOps) > 0 {
		dst.FileOps = src.FileOps
	}
	if src.Success {
		dst.Success = true
	}
	if src.Error != "" {
		dst.Error = src.Error
	}
	if len(src.Metadata) > 0 {
		dst.Metadata = src.Metadata
	}
}

type terminalError struct {
	taskID string
	status session.Status
}

func (e *terminalError) Error() string {
	return "activity " + e.taskID + " is already " + string(e.status) + "; updates are not accepted"
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fmtNullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return fmtTime(t)
}

func jsonField(v any) any {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return nil
		}
	case []session.FileOperation:
		if len(x) == 0 {
			return nil
		}
	case map[string]string:
		if len(x) == 0 {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}
