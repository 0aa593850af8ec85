// Package episode is the episodic memory store (component R): session
// lifecycle (start, event recording, retention purge) over the artifact
// store's episodes/episode_events tables.
package episode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rtk-mem/rtk-mem/internal/hashutil"
	"github.com/rtk-mem/rtk-mem/internal/intent"
	"github.com/rtk-mem/rtk-mem/internal/store"
)

// EventType classifies one recorded episode event.
type EventType string

const (
	EventRead     EventType = "read"
	EventEdit     EventType = "edit"
	EventGrepHit  EventType = "grepai_hit"
	EventDelta    EventType = "delta"
	EventDecision EventType = "decision"
	EventFeedback EventType = "feedback"
)

// EpisodeEvent is one event recorded within a session.
type EpisodeEvent struct {
	SessionID   string
	EventType   EventType
	FilePath    *string
	Symbol      *string
	PayloadJSON *string
}

// Store wraps the artifact store with episode-lifecycle operations.
type Store struct {
	db          *store.Store
	retryAttempts int
	retryBaseMs   int
}

// New wraps db with the default retry schedule (up to 3 retries, 100ms base),
// matching the retry behavior used for episode writes.
func New(db *store.Store) *Store {
	return &Store{db: db, retryAttempts: 3, retryBaseMs: 100}
}

// StartEpisode creates a new episode (INSERT OR IGNORE: idempotent if the
// same session_id is computed twice within the same second) and returns its
// 16-hex session id.
func (s *Store) StartEpisode(ctx context.Context, projectID, taskText string, taskIntent intent.TaskIntent, queryType string, tokenBudget *int64) (string, error) {
	var sessionID string
	err := withRetry(s.retryAttempts, s.retryBaseMs, func() error {
		var err error
		sessionID, err = s.startEpisodeOnce(ctx, projectID, taskText, taskIntent, queryType, tokenBudget)
		return err
	})
	return sessionID, err
}

func (s *Store) startEpisodeOnce(ctx context.Context, projectID, taskText string, taskIntent intent.TaskIntent, queryType string, tokenBudget *int64) (string, error) {
	now := time.Now().Unix()
	sessionID := hashutil.String(fmt.Sprintf("%s|%s|%d", projectID, taskText, now))

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO episodes
		   (session_id, project_id, task_text, task_fingerprint, query_type, started_at, token_budget)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, projectID, taskText, taskIntent.TaskFingerprint, queryType, now, tokenBudget,
	)
	if err != nil {
		return "", fmt.Errorf("episode: insert episode: %w", err)
	}
	return sessionID, nil
}

// RecordEpisodeEvent appends one event to a session's timeline.
func (s *Store) RecordEpisodeEvent(ctx context.Context, event EpisodeEvent) error {
	return withRetry(s.retryAttempts, s.retryBaseMs, func() error {
		return s.recordEpisodeEventOnce(ctx, event)
	})
}

func (s *Store) recordEpisodeEventOnce(ctx context.Context, event EpisodeEvent) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episode_events
		   (session_id, event_type, file_path, symbol, payload_json, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.SessionID, string(event.EventType), event.FilePath, event.Symbol, event.PayloadJSON, now,
	)
	if err != nil {
		return fmt.Errorf("episode: insert episode event: %w", err)
	}
	return nil
}

// PurgeEpisodes deletes episodes started before the retention cutoff and
// cascades to their orphaned episode_events (SQLite here has no enforced FK
// between the two tables). Returns the number of episodes deleted.
func (s *Store) PurgeEpisodes(ctx context.Context, retentionDays int64) (int, error) {
	cutoff := time.Now().Unix() - retentionDays*86400

	res, err := s.db.ExecContext(ctx, "DELETE FROM episodes WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("episode: purge old episodes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("episode: read purge rows affected: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM episode_events WHERE session_id NOT IN (SELECT session_id FROM episodes)`,
	); err != nil {
		return 0, fmt.Errorf("episode: purge orphaned episode events: %w", err)
	}

	return int(n), nil
}

func withRetry(maxRetries, baseMs int, op func() error) error {
	attempt := 0
	for {
		err := op()
		if err == nil {
			return nil
		}
		if !isBusyError(err) || attempt >= maxRetries {
			return err
		}
		attempt++
		time.Sleep(time.Duration(baseMs*(1<<(attempt-1))) * time.Millisecond)
	}
}

func isBusyError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
