package store

import (
	"fmt"
	"strings"
)

// StoreArtifactEdges replaces the import edges for a project: from_id is an
// importing file's rel_path, to_id is the imported module string. Existing
// edges for the project are cleared before the new set is inserted.
func (s *Store) StoreArtifactEdges(projectID string, edges [][2]string) error {
	if _, err := s.Exec("DELETE FROM artifact_edges WHERE from_id LIKE ?", projectID+":%"); err != nil {
		return fmt.Errorf("store: clear artifact edges: %w", err)
	}

	stmt, err := s.Prepare(`INSERT OR IGNORE INTO artifact_edges (from_id, to_id, edge_type) VALUES (?, ?, 'imports')`)
	if err != nil {
		return fmt.Errorf("store: prepare artifact edge insert: %w", err)
	}
	defer stmt.Close()

	for _, edge := range edges {
		fromFile, toModule := edge[0], edge[1]
		fromKey := projectID + ":" + fromFile
		if _, err := stmt.Exec(fromKey, toModule); err != nil {
			return fmt.Errorf("store: insert artifact edge: %w", err)
		}
	}
	return nil
}

// GetDependents returns the rel_path of every file within projectID that
// imports moduleName, used for cascade invalidation.
func (s *Store) GetDependents(projectID, moduleName string) ([]string, error) {
	prefix := projectID + ":"
	rows, err := s.Query(
		"SELECT from_id FROM artifact_edges WHERE to_id = ? AND from_id LIKE ?",
		moduleName, prefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("store: query dependents: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var fromID string
		if err := rows.Scan(&fromID); err != nil {
			return nil, fmt.Errorf("store: read dependent row: %w", err)
		}
		if rel, ok := strings.CutPrefix(fromID, prefix); ok {
			result = append(result, rel)
		}
	}
	return result, rows.Err()
}
