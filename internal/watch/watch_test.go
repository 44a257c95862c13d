package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/promptops/agentpulse/internal/session"
	"github.com/promptops/agentpulse/internal/store"
	"github.com/promptops/agentpulse/internal/track"
)

const openTranscript = `{"type":"system","timestamp":"2026-01-10T12:00:00Z","cwd":"/tmp/proj"}
{"type":"assistant","timestamp":"2026-01-10T12:01:00Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"toolu_live","name":"Task","input":{"subagent_type":"qa-engineer","description":"still running"}}]}}
`

func testWatcher(t *testing.T, dir string) (*Watcher, *store.DB) {
	t.Helper()
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tracker := track.New(db, zerolog.Nop())
	return New(dir, 20*time.Millisecond, db, tracker, zerolog.Nop()), db
}

func TestWatcherIngestsNewTranscript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sess-live.jsonl")
	if err := os.WriteFile(path, []byte(openTranscript), 0o644); err != nil {
		t.Fatal(err)
	}

	w, db := testWatcher(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var ev Event
	select {
	case ev = <-w.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ingest event")
	}

	if ev.SessionID != "sess-live" {
		t.Errorf("SessionID = %q, want sess-live", ev.SessionID)
	}
	if ev.Tasks != 1 {
		t.Errorf("Tasks = %d, want 1", ev.Tasks)
	}
	if !ev.Live {
		t.Error("session with an unanswered task should be live")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	// Cancellation force-ends the adopted session; its unfinished activity
	// must come out failed with an error message, not dangling in progress.
	got, err := db.GetSessions(store.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 persisted session, got %d", len(got))
	}
	s := got[0]
	if !s.Ended() {
		t.Error("session should be ended after cancellation")
	}
	if len(s.Activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(s.Activities))
	}
	a := s.Activities[0]
	if a.Status != session.StatusFailed {
		t.Errorf("activity status = %s, want failed", a.Status)
	}
	if a.Error == "" {
		t.Error("interrupted activity should carry an error message")
	}
	if !a.Ended() {
		t.Error("interrupted activity should have an end time")
	}

	// The event channel closes when Run returns.
	select {
	case _, ok := <-w.Events():
		if ok {
			// A second ingest of the same unchanged file is possible only
			// if the change detection is broken.
			t.Error("unexpected extra event after shutdown")
		}
	case <-time.After(time.Second):
		t.Error("event channel not closed after Run returned")
	}
}

func TestWatcherIgnoresNonTranscripts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, db := testWatcher(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want context.DeadlineExceeded", err)
	}

	got, err := db.GetSessions(store.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected nothing ingested, got %d sessions", len(got))
	}
}
