package store

import (
	"errors"
	"testing"
	"time"

	"github.com/promptops/agentpulse/internal/errs"
	"github.com/promptops/agentpulse/internal/session"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleSession(id string, start time.Time) *session.Session {
	end := start.Add(10 * time.Minute)
	return &session.Session{
		ID:              id,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: 600,
		WorkingDir:      "/home/dev/proj",
		TotalTasks:      2,
		CompletedTasks:  1,
		Activities: []session.AgentActivity{
			{
				AgentID:         id + "-t1",
				AgentType:       "backend-developer",
				TaskID:          id + "-t1",
				Description:     "implement handler",
				Status:          session.StatusCompleted,
				StartTime:       start,
				EndTime:         start.Add(5 * time.Minute),
				DurationSeconds: 300,
				InputTokens:     100,
				OutputTokens:    50,
				Tools:           []string{"Edit", "Bash"},
				Success:         true,
			},
			{
				AgentID:     id + "-t2",
				AgentType:   "qa-engineer",
				TaskID:      id + "-t2",
				Description: "verify",
				Status:      session.StatusInProgress,
				StartTime:   start.Add(5 * time.Minute),
			},
		},
	}
}

func TestSaveSessionIdempotent(t *testing.T) {
	db := testDB(t)
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	s := sampleSession("sess-1", start)

	if err := db.SaveSession(s); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := db.SaveSession(s); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := db.GetSessions(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 session after duplicate save, got %d", len(got))
	}
	if len(got[0].Activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(got[0].Activities))
	}
}

func TestSaveSessionRoundTrip(t *testing.T) {
	db := testDB(t)
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	s := sampleSession("sess-rt", start)

	if err := db.SaveSession(s); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSessions(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	g := got[0]
	if g.ID != "sess-rt" || g.WorkingDir != "/home/dev/proj" {
		t.Errorf("session fields lost: %+v", g)
	}
	if !g.StartTime.Equal(start) || !g.EndTime.Equal(start.Add(10*time.Minute)) {
		t.Errorf("time fields lost: start=%v end=%v", g.StartTime, g.EndTime)
	}

	a := g.Activities[0]
	if a.AgentType != "backend-developer" || a.DurationSeconds != 300 {
		t.Errorf("activity fields lost: %+v", a)
	}
	if len(a.Tools) != 2 || a.Tools[0] != "Edit" {
		t.Errorf("tools lost: %v", a.Tools)
	}

	// Second activity never ended.
	if g.Activities[1].Ended() {
		t.Error("in-progress activity should round-trip without an end time")
	}
}

func TestUpdateSessionNotFound(t *testing.T) {
	db := testDB(t)

	err := db.UpdateSession(&session.Session{ID: "missing"})
	var nf *errs.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.ID != "missing" {
		t.Errorf("NotFoundError.ID = %q, want missing", nf.ID)
	}
}

func TestUpdateSessionPartialMerge(t *testing.T) {
	db := testDB(t)
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	s := sampleSession("sess-up", start)
	if err := db.SaveSession(s); err != nil {
		t.Fatal(err)
	}

	patch := &session.Session{ID: "sess-up", TotalTasks: 5}
	if err := db.UpdateSession(patch); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSessions(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	g := got[0]
	if g.TotalTasks != 5 {
		t.Errorf("TotalTasks = %d, want 5", g.TotalTasks)
	}
	if g.WorkingDir != "/home/dev/proj" {
		t.Errorf("unset patch fields must not clobber, got working dir %q", g.WorkingDir)
	}
}

func TestUpdateActivityTerminalRejected(t *testing.T) {
	db := testDB(t)
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	s := sampleSession("sess-term", start)
	if err := db.SaveSession(s); err != nil {
		t.Fatal(err)
	}

	// First activity is completed; any further update must be rejected.
	err := db.UpdateActivity(&session.AgentActivity{
		TaskID:       "sess-term-t1",
		OutputTokens: 999,
	})
	if err == nil {
		t.Fatal("expected terminal activity update to be rejected")
	}
	var se *errs.StorageError
	if !errors.As(err, &se) {
		t.Errorf("expected StorageError, got %T", err)
	}
}

func TestUpdateActivityMergesInProgress(t *testing.T) {
	db := testDB(t)
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	s := sampleSession("sess-m", start)
	if err := db.SaveSession(s); err != nil {
		t.Fatal(err)
	}

	end := start.Add(8 * time.Minute)
	err := db.UpdateActivity(&session.AgentActivity{
		TaskID:          "sess-m-t2",
		Status:          session.StatusCompleted,
		EndTime:         end,
		DurationSeconds: 180,
		Success:         true,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSessions(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	a := got[0].Activities[1]
	if a.Status != session.StatusCompleted || !a.Success {
		t.Errorf("merge lost status: %+v", a)
	}
	if a.DurationSeconds != 180 || !a.EndTime.Equal(end) {
		t.Errorf("merge lost end/duration: %+v", a)
	}
	if a.Description != "verify" {
		t.Errorf("merge clobbered untouched field: %q", a.Description)
	}
}

func TestGetSessionsTimeRange(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		s := sampleSession(id, base.AddDate(0, 0, i))
		if err := db.SaveSession(s); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.GetSessions(Filter{
		From: base.AddDate(0, 0, 1),
		To:   base.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("inclusive range should match exactly b, got %v", ids(got))
	}
}

func TestGetSessionsAgentTypeFilter(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	s1 := sampleSession("s1", base)
	if err := db.SaveSession(s1); err != nil {
		t.Fatal(err)
	}
	s2 := sampleSession("s2", base.Add(time.Hour))
	for i := range s2.Activities {
		s2.Activities[i].AgentType = "researcher"
	}
	if err := db.SaveSession(s2); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSessions(Filter{AgentTypes: []string{"researcher"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "s2" {
		t.Fatalf("agent type filter should match only s2, got %v", ids(got))
	}
}

func TestGetSessionsNoMatchesIsEmptyNotNil(t *testing.T) {
	db := testDB(t)

	got, err := db.GetSessions(Filter{AgentTypes: []string{"nobody"}})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected no sessions, got %d", len(got))
	}
}

func TestCleanOldDataKeepsUnended(t *testing.T) {
	db := testDB(t)

	old := sampleSession("old", time.Now().UTC().AddDate(0, 0, -120))
	old.EndTime = old.StartTime.Add(time.Hour)
	if err := db.SaveSession(old); err != nil {
		t.Fatal(err)
	}

	// Ancient but never ended; must survive any retention window.
	openEnded := sampleSession("open", time.Now().UTC().AddDate(0, 0, -120))
	openEnded.EndTime = time.Time{}
	if err := db.SaveSession(openEnded); err != nil {
		t.Fatal(err)
	}

	recent := sampleSession("recent", time.Now().UTC().Add(-time.Hour))
	if err := db.SaveSession(recent); err != nil {
		t.Fatal(err)
	}

	removed, err := db.CleanOldData(90)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}

	got, err := db.GetSessions(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected open + recent to remain, got %v", ids(got))
	}
	for _, s := range got {
		if s.ID == "old" {
			t.Error("aged-out ended session should have been removed")
		}
	}
}

func TestCleanOldDataCascadesActivities(t *testing.T) {
	db := testDB(t)

	old := sampleSession("old", time.Now().UTC().AddDate(0, 0, -120))
	if err := db.SaveSession(old); err != nil {
		t.Fatal(err)
	}

	if _, err := db.CleanOldData(90); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM activities").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected activities to cascade, %d left", count)
	}
}

func TestFlush(t *testing.T) {
	db := testDB(t)
	if err := db.Flush(); err != nil {
		t.Fatalf("flush on healthy db: %v", err)
	}
}

func ids(sessions []session.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}
