package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
	"github.com/rtk-mem/rtk-mem/internal/hashutil"
)

// ProjectCacheKey returns the 16-hex project id for a canonical project
// root path.
func ProjectCacheKey(canonicalRoot string) string {
	return hashutil.String(canonicalRoot)
}

// LoadArtifact returns the stored artifact for projectRoot, or nil if none
// is cached or the cached schema version does not match artifact.Version
// (the caller should treat that as a cache miss and rebuild).
func (s *Store) LoadArtifact(projectRoot string) (*artifact.ProjectArtifact, error) {
	projectID := ProjectCacheKey(projectRoot)

	var contentJSON string
	var version int
	err := s.QueryRow(
		"SELECT content_json, artifact_version FROM artifacts WHERE project_id = ?",
		projectID,
	).Scan(&contentJSON, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: query artifact: %w", err)
	}

	now := time.Now().Unix()
	_, _ = s.Exec("UPDATE projects SET last_accessed_at = ? WHERE project_id = ?", now, projectID)

	if version != artifact.Version {
		return nil, nil
	}

	var art artifact.ProjectArtifact
	if err := json.Unmarshal([]byte(contentJSON), &art); err != nil {
		return nil, fmt.Errorf("store: parse artifact json: %w", err)
	}
	return &art, nil
}

// StoreArtifact upserts the project and artifact rows, then prunes
// least-recently-accessed projects above maxProjects. Writes retry on
// transient SQLITE_BUSY with exponential backoff.
func (s *Store) StoreArtifact(art *artifact.ProjectArtifact, maxProjects, retryAttempts, retryBaseMs int) error {
	return withRetry(retryAttempts, retryBaseMs, func() error {
		return s.storeArtifactOnce(art, maxProjects)
	})
}

func (s *Store) storeArtifactOnce(art *artifact.ProjectArtifact, maxProjects int) error {
	now := time.Now().Unix()
	contentJSON, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("store: marshal artifact: %w", err)
	}

	if _, err := s.Exec(
		`INSERT INTO projects (project_id, root_path, created_at, last_accessed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET last_accessed_at = excluded.last_accessed_at`,
		art.ProjectID, art.ProjectRoot, now, now,
	); err != nil {
		return fmt.Errorf("store: upsert project: %w", err)
	}

	if _, err := s.Exec(
		`INSERT INTO artifacts (project_id, artifact_version, content_json, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET
		   artifact_version = excluded.artifact_version,
		   content_json = excluded.content_json,
		   updated_at = excluded.updated_at`,
		art.ProjectID, artifact.Version, string(contentJSON), now,
	); err != nil {
		return fmt.Errorf("store: upsert artifact: %w", err)
	}

	return s.pruneCache(maxProjects)
}

// DeleteArtifact removes the cached artifact and project row for
// projectRoot. Returns whether a row was actually removed.
func (s *Store) DeleteArtifact(projectRoot string, retryAttempts, retryBaseMs int) (bool, error) {
	var deleted bool
	err := withRetry(retryAttempts, retryBaseMs, func() error {
		var err error
		deleted, err = s.deleteArtifactOnce(projectRoot)
		return err
	})
	return deleted, err
}

func (s *Store) deleteArtifactOnce(projectRoot string) (bool, error) {
	projectID := ProjectCacheKey(projectRoot)

	res, err := s.Exec("DELETE FROM artifacts WHERE project_id = ?", projectID)
	if err != nil {
		return false, fmt.Errorf("store: delete artifact: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := s.Exec("DELETE FROM projects WHERE project_id = ?", projectID); err != nil {
		return false, fmt.Errorf("store: delete project: %w", err)
	}

	return n > 0, nil
}

// pruneCache deletes least-recently-accessed projects above maxProjects and
// their orphaned artifacts.
func (s *Store) pruneCache(maxProjects int) error {
	var count int64
	if err := s.QueryRow("SELECT COUNT(*) FROM projects").Scan(&count); err != nil {
		return fmt.Errorf("store: count projects: %w", err)
	}

	if count <= int64(maxProjects) {
		return nil
	}

	removeCount := count - int64(maxProjects)
	if _, err := s.Exec(
		`DELETE FROM projects WHERE project_id IN
		   (SELECT project_id FROM projects ORDER BY last_accessed_at ASC LIMIT ?)`,
		removeCount,
	); err != nil {
		return fmt.Errorf("store: prune old projects: %w", err)
	}

	if _, err := s.Exec(
		`DELETE FROM artifacts WHERE project_id NOT IN (SELECT project_id FROM projects)`,
	); err != nil {
		return fmt.Errorf("store: prune orphaned artifacts: %w", err)
	}

	return nil
}

// withRetry retries op up to maxRetries times on "database is locked" /
// SQLITE_BUSY errors, with exponential backoff starting at baseMs.
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
		backoff := time.Duration(baseMs*(1<<(attempt-1))) * time.Millisecond
		time.Sleep(backoff)
	}
}

func isBusyError(err error) bool {
	return strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsArtifactStale reports whether art's updated_at is older than ttlSecs.
func IsArtifactStale(art *artifact.ProjectArtifact, ttlSecs int64) bool {
	now := time.Now().Unix()
	age := now - art.UpdatedAt
	if age < 0 {
		age = 0
	}
	return age > ttlSecs
}
