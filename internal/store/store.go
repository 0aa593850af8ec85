// Package store is the artifact store (component B): a SQLite-backed,
// WAL-mode key-value store of project artifacts, import edges, cache
// events, and episodes, with bounded retry on transient contention.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps a sql.DB with rtk-mem's schema and artifact-store helpers.
type Store struct {
	*sql.DB
	mu   sync.RWMutex
	path string
}

// Open creates or opens the mem.db SQLite database at path, enabling WAL
// mode and the configured busy timeout, then applies the schema.
func Open(path string, busyTimeoutMs int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d&_foreign_keys=on", path, busyTimeoutMs)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}

	s := &Store{DB: sqlDB, path: path}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}

	return s, nil
}

// OpenMemory creates an in-memory SQLite database, used for tests.
func OpenMemory() (*Store, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: opening in-memory database: %w", err)
	}

	s := &Store{DB: sqlDB, path: ":memory:"}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.Exec(schema)
	return err
}

// schema is the full rtk-mem database schema.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
    project_id       TEXT    PRIMARY KEY,
    root_path        TEXT    NOT NULL UNIQUE,
    created_at       INTEGER NOT NULL,
    last_accessed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
    project_id       TEXT    PRIMARY KEY,
    artifact_version INTEGER NOT NULL,
    content_json     TEXT    NOT NULL,
    updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cache_stats (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id TEXT    NOT NULL,
    event      TEXT    NOT NULL,
    timestamp  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS artifact_edges (
    from_id   TEXT,
    to_id     TEXT,
    edge_type TEXT,
    PRIMARY KEY (from_id, to_id, edge_type)
);

CREATE TABLE IF NOT EXISTS events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id  TEXT    NOT NULL,
    event_type  TEXT    NOT NULL,
    timestamp   INTEGER NOT NULL,
    duration_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_projects_accessed ON projects(last_accessed_at);
CREATE INDEX IF NOT EXISTS idx_events_project ON events(project_id, event_type);
CREATE INDEX IF NOT EXISTS idx_artifacts_version ON artifacts(project_id, artifact_version);

CREATE TABLE IF NOT EXISTS episodes (
    session_id       TEXT    PRIMARY KEY,
    project_id       TEXT    NOT NULL,
    task_text        TEXT    NOT NULL,
    task_fingerprint TEXT,
    query_type       TEXT,
    started_at       INTEGER NOT NULL,
    ended_at         INTEGER,
    outcome          TEXT,
    token_budget     INTEGER,
    token_used       INTEGER,
    latency_ms       INTEGER
);

CREATE TABLE IF NOT EXISTS episode_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   TEXT    NOT NULL,
    event_type   TEXT    NOT NULL,
    file_path    TEXT,
    symbol       TEXT,
    payload_json TEXT,
    timestamp    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS causal_links (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   TEXT    NOT NULL,
    issue_ref    TEXT,
    commit_sha   TEXT,
    change_path  TEXT    NOT NULL,
    change_kind  TEXT    NOT NULL,
    rationale    TEXT,
    timestamp    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_episodes_project ON episodes(project_id, started_at);
CREATE INDEX IF NOT EXISTS idx_episode_events_session ON episode_events(session_id);
`
