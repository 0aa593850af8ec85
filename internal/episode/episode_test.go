package episode

import (
	"context"
	"testing"

	"github.com/rtk-mem/rtk-mem/internal/intent"
	"github.com/rtk-mem/rtk-mem/internal/store"
)

func testIntent() intent.TaskIntent {
	return intent.Parse("fix jwt token refresh bug", "testproj")
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestStartEpisodeReturnsHexID(t *testing.T) {
	s := newTestStore(t)
	budget := int64(3000)
	id, err := s.StartEpisode(context.Background(), "proj1", "fix auth bug", testIntent(), "bugfix", &budget)
	if err != nil {
		t.Fatalf("StartEpisode: %v", err)
	}
	if len(id) != 16 {
		t.Fatalf("expected 16-char session id, got %q (%d chars)", id, len(id))
	}
	for _, c := range id {
		if !isHexDigit(c) {
			t.Fatalf("session id %q contains non-hex char %q", id, c)
		}
	}
}

func TestRecordEpisodeEventRead(t *testing.T) {
	s := newTestStore(t)
	session, err := s.StartEpisode(context.Background(), "proj2", "add feature", testIntent(), "feature", nil)
	if err != nil {
		t.Fatalf("StartEpisode: %v", err)
	}

	filePath := "internal/auth/auth.go"
	event := EpisodeEvent{
		SessionID: session,
		EventType: EventRead,
		FilePath:  &filePath,
	}
	if err := s.RecordEpisodeEvent(context.Background(), event); err != nil {
		t.Fatalf("RecordEpisodeEvent: %v", err)
	}
}

func TestStartEpisodeIdempotentOnCollision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id1, err := s.StartEpisode(ctx, "proj3", "same task text", testIntent(), "bugfix", nil)
	if err != nil {
		t.Fatalf("StartEpisode: %v", err)
	}
	id2, err := s.StartEpisode(ctx, "proj3", "same task text", testIntent(), "bugfix", nil)
	if err != nil {
		t.Fatalf("StartEpisode (second call): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same session id within the same second, got %q and %q", id1, id2)
	}
}

func TestPurgeEpisodesRemovesOld(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.StartEpisode(ctx, "proj5", "old task", testIntent(), "bugfix", nil); err != nil {
		t.Fatalf("StartEpisode: %v", err)
	}

	// Negative retention days pushes the cutoff into the future, purging
	// everything regardless of when it started.
	deleted, err := s.PurgeEpisodes(ctx, -1)
	if err != nil {
		t.Fatalf("PurgeEpisodes: %v", err)
	}
	if deleted < 1 {
		t.Fatalf("expected at least one purged episode, got %d", deleted)
	}
}

func TestPurgeEpisodesCascadesEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session, err := s.StartEpisode(ctx, "proj6", "task", testIntent(), "bugfix", nil)
	if err != nil {
		t.Fatalf("StartEpisode: %v", err)
	}
	if err := s.RecordEpisodeEvent(ctx, EpisodeEvent{SessionID: session, EventType: EventEdit}); err != nil {
		t.Fatalf("RecordEpisodeEvent: %v", err)
	}

	if _, err := s.PurgeEpisodes(ctx, -1); err != nil {
		t.Fatalf("PurgeEpisodes: %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM episode_events WHERE session_id = ?", session).Scan(&count); err != nil {
		t.Fatalf("query episode_events: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected orphaned episode_events to be purged, found %d", count)
	}
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
