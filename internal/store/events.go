package store

import (
	"fmt"
	"time"
)

// CacheEventCount is one aggregated row from QueryCacheStats.
type CacheEventCount struct {
	Event string
	Count int64
}

// RecordCacheEvent appends a cache_stats row (hit, miss, refreshed,
// stale_rebuild, dirty_rebuild, delta, plan_graph_first, ...).
func (s *Store) RecordCacheEvent(projectID, event string) error {
	now := time.Now().Unix()
	if _, err := s.Exec(
		"INSERT INTO cache_stats (project_id, event, timestamp) VALUES (?, ?, ?)",
		projectID, event, now,
	); err != nil {
		return fmt.Errorf("store: record cache event: %w", err)
	}
	return nil
}

// QueryCacheStats aggregates cache_stats for a project by event, most
// frequent first.
func (s *Store) QueryCacheStats(projectID string) ([]CacheEventCount, error) {
	rows, err := s.Query(
		`SELECT event, COUNT(*) as cnt FROM cache_stats
		 WHERE project_id = ? GROUP BY event ORDER BY cnt DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query cache stats: %w", err)
	}
	defer rows.Close()

	var result []CacheEventCount
	for rows.Next() {
		var c CacheEventCount
		if err := rows.Scan(&c.Event, &c.Count); err != nil {
			return nil, fmt.Errorf("store: read cache stats row: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// RecordEvent appends a lifecycle event (explore/delta/refresh/watch/api)
// with an optional duration.
func (s *Store) RecordEvent(projectID, eventType string, durationMs *int64) error {
	now := time.Now().Unix()
	if _, err := s.Exec(
		"INSERT INTO events (project_id, event_type, timestamp, duration_ms) VALUES (?, ?, ?, ?)",
		projectID, eventType, now, durationMs,
	); err != nil {
		return fmt.Errorf("store: record event: %w", err)
	}
	return nil
}
