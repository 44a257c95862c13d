// Package watch polls a directory of session transcripts and feeds new or
// changed files through the decoder, tracker, and store.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/promptops/agentpulse/internal/session"
	"github.com/promptops/agentpulse/internal/store"
	"github.com/promptops/agentpulse/internal/track"
)

// DefaultInterval is how often the watch directory is rescanned.
const DefaultInterval = 2 * time.Second

// Event is published whenever a session snapshot has been persisted.
type Event struct {
	SessionID string
	Source    string
	Tasks     int
	Live      bool
}

// Watcher rescans a directory on an interval and ingests .jsonl transcripts
// as they appear or grow. Sessions seen mid-flight are adopted by the
// tracker so that cancellation fails their unfinished activities instead of
// leaving them dangling.
type Watcher struct {
	dir      string
	interval time.Duration
	dec      *session.Decoder
	tracker  *track.Tracker
	db       *store.DB
	log      zerolog.Logger

	mu   sync.Mutex
	seen map[string]fileState

	events chan Event
}

type fileState struct {
	size    int64
	modTime time.Time
}

// New returns a Watcher over dir. A non-positive interval falls back to
// DefaultInterval.
func New(dir string, interval time.Duration, db *store.DB, tracker *track.Tracker, log zerolog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		dir:      dir,
		interval: interval,
		dec:      session.NewDecoder(log),
		tracker:  tracker,
		db:       db,
		log:      log.With().Str("component", "watch").Logger(),
		seen:     make(map[string]fileState),
		events:   make(chan Event, 16),
	}
}

// Events returns the channel of persisted-session notifications. The channel
// is closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run blocks until ctx is cancelled, rescanning the directory every
// interval. On cancellation it waits for in-flight ingests, force-ends all
// live sessions through the tracker, flushes the store, and closes the event
// channel. The returned error is the context's, or the first ingest or
// shutdown failure.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	g, gctx := errgroup.WithContext(ctx)

	w.scan(gctx, g)
	for {
		select {
		case <-ctx.Done():
			err := g.Wait()
			if serr := w.tracker.Shutdown(time.Now().UTC()); serr != nil && err == nil {
				err = serr
			}
			if err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
			w.scan(gctx, g)
		}
	}
}

// scan walks the directory once and schedules an ingest for every transcript
// that is new or has changed since the last pass.
func (w *Watcher) scan(ctx context.Context, g *errgroup.Group) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn().Err(err).Str("dir", w.dir).Msg("scan failed")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())

		w.mu.Lock()
		prev, ok := w.seen[path]
		changed := !ok || prev.size != info.Size() || !prev.modTime.Equal(info.ModTime())
		if changed {
			w.seen[path] = fileState{size: info.Size(), modTime: info.ModTime()}
		}
		w.mu.Unlock()

		if !changed {
			continue
		}
		g.Go(func() error {
			return w.ingest(ctx, path)
		})
	}
}

// ingest decodes one transcript, adopts the reconstructed session as live,
// and persists the current snapshot.
func (w *Watcher) ingest(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	events, err := w.dec.DecodeFile(path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("decode failed")
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	sess := session.Reconstruct(path, events, true)
	w.tracker.Adopt(sess)

	snapshot := w.tracker.Session(sess.ID)
	if snapshot == nil {
		snapshot = sess
	}
	if err := w.db.SaveSession(snapshot); err != nil {
		return err
	}

	w.log.Debug().
		Str("session", snapshot.ID).
		Int("tasks", snapshot.TotalTasks).
		Msg("session ingested")

	ev := Event{
		SessionID: snapshot.ID,
		Source:    path,
		Tasks:     snapshot.TotalTasks,
		Live:      !snapshot.Ended(),
	}
	select {
	case w.events <- ev:
	case <-ctx.Done():
	default:
		// Slow consumer. Drop rather than stall ingestion.
	}
	return nil
}
