package store

import (
	"testing"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
)

func TestOpenMemorySchema(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer s.Close()

	tables := []string{
		"projects", "artifacts", "cache_stats", "artifact_edges",
		"events", "episodes", "episode_events", "causal_links",
	}
	for _, table := range tables {
		var count int
		if err := s.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer s.Close()

	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestStoreAndLoadArtifactRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	root := "/tmp/project-a"
	art := &artifact.ProjectArtifact{
		SchemaVersion: artifact.Version,
		ProjectID:     ProjectCacheKey(root),
		ProjectRoot:   root,
		UpdatedAt:     1000,
		FileCount:     1,
		TotalBytes:    5,
		Files: []artifact.FileArtifact{
			{RelPath: "a.go", Size: 5, Hash: 42, Language: "go"},
		},
	}

	if err := s.StoreArtifact(art, 64, 3, 1); err != nil {
		t.Fatalf("StoreArtifact: %v", err)
	}

	loaded, err := s.LoadArtifact(root)
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected artifact, got nil")
	}
	if loaded.ProjectID != art.ProjectID || loaded.FileCount != 1 {
		t.Fatalf("unexpected loaded artifact: %+v", loaded)
	}
}

func TestLoadArtifactMissingReturnsNil(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	loaded, err := s.LoadArtifact("/nonexistent")
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil, got %+v", loaded)
	}
}

func TestDeleteArtifact(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	root := "/tmp/project-b"
	art := &artifact.ProjectArtifact{
		ProjectID:   ProjectCacheKey(root),
		ProjectRoot: root,
		UpdatedAt:   1,
	}
	if err := s.StoreArtifact(art, 64, 3, 1); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.DeleteArtifact(root, 3, 1)
	if err != nil {
		t.Fatalf("DeleteArtifact: %v", err)
	}
	if !deleted {
		t.Fatal("expected deletion")
	}

	loaded, err := s.LoadArtifact(root)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != nil {
		t.Fatal("artifact should be gone after delete")
	}
}

func TestPruneCacheEvictsLRU(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for i := 0; i < 5; i++ {
		root := "/tmp/proj-" + string(rune('a'+i))
		art := &artifact.ProjectArtifact{
			ProjectID:   ProjectCacheKey(root),
			ProjectRoot: root,
			UpdatedAt:   1,
		}
		if err := s.StoreArtifact(art, 3, 3, 1); err != nil {
			t.Fatal(err)
		}
	}

	var count int64
	if err := s.QueryRow("SELECT COUNT(*) FROM projects").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count > 3 {
		t.Fatalf("expected prune to cap projects at 3, got %d", count)
	}
}

func TestCacheStatsAggregation(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.RecordCacheEvent("p1", "hit"); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordCacheEvent("p1", "hit"); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordCacheEvent("p1", "miss"); err != nil {
		t.Fatal(err)
	}

	stats, err := s.QueryCacheStats("p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 || stats[0].Event != "hit" || stats[0].Count != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestArtifactEdgesCascadeInvalidation(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.StoreArtifactEdges("p1", [][2]string{
		{"a.go", "pkg/foo"},
		{"b.go", "pkg/foo"},
		{"c.go", "pkg/bar"},
	}); err != nil {
		t.Fatal(err)
	}

	deps, err := s.GetDependents("p1", "pkg/foo")
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependents, got %v", deps)
	}
}

func TestIsArtifactStale(t *testing.T) {
	art := &artifact.ProjectArtifact{UpdatedAt: 0}
	if !IsArtifactStale(art, 1) {
		t.Fatal("artifact from epoch should be stale with a 1s TTL")
	}
}
