package reranker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rtk-mem/rtk-mem/internal/ranker"
)

func TestRerankReturnsScorePerCandidate(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, dir, "auth.go", "package auth\n\nfunc Login(user string) error { return nil }\n")
	mustWrite(t, dir, "cache.go", "package cache\n\nfunc Get(key string) string { return \"\" }\n")

	candidates := []ranker.Candidate{
		{RelPath: "auth.go"},
		{RelPath: "cache.go"},
	}

	r := New(dir)
	scores, err := r.Rerank(context.Background(), "fix login authentication bug", candidates)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(scores) != len(candidates) {
		t.Fatalf("expected %d scores, got %d", len(candidates), len(scores))
	}
	for _, s := range scores {
		if s < 0 || s > 1 {
			t.Fatalf("score out of range: %v", s)
		}
	}
}

func TestRerankEmptyCandidatesReturnsNil(t *testing.T) {
	r := New(t.TempDir())
	scores, err := r.Rerank(context.Background(), "task", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores != nil {
		t.Fatalf("expected nil scores, got %v", scores)
	}
}

func TestRerankMissingFilesErrors(t *testing.T) {
	r := New(t.TempDir())
	candidates := []ranker.Candidate{{RelPath: "does-not-exist.go"}}
	if _, err := r.Rerank(context.Background(), "task", candidates); err == nil {
		t.Fatal("expected error when no candidate content is readable")
	}
}

func mustWrite(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
