package semantic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rtk-mem/rtk-mem/internal/ranker"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRunStageEmptyCandidates(t *testing.T) {
	evidence, backend, err := RunStage(context.Background(), "fix bug", nil, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evidence != nil || backend != "none" {
		t.Fatalf("expected (nil, none), got (%v, %q)", evidence, backend)
	}
}

func TestRunStageEmptyTask(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a")
	candidates := []ranker.Candidate{{RelPath: "a.go"}}
	evidence, backend, err := RunStage(context.Background(), "", candidates, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evidence != nil || backend != "none" {
		t.Fatalf("expected (nil, none), got (%v, %q)", evidence, backend)
	}
}

func TestBuiltinScorerFindsTerms(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "auth.go", "func authenticate_user(token string) { verify(token) }")

	candidates := []ranker.Candidate{{RelPath: "auth.go"}}
	evidence, backend := builtinScorer("authenticate token", candidates, dir)
	if backend != "builtin" {
		t.Fatalf("expected builtin backend, got %q", backend)
	}
	ev, ok := evidence["auth.go"]
	if !ok {
		t.Fatal("expected auth.go to have evidence")
	}
	if ev.SemanticScore <= 0 {
		t.Fatalf("expected positive score, got %v", ev.SemanticScore)
	}
}

func TestBuiltinScorerNoMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "math.go", "func add(a, b int) int { return a + b }")

	candidates := []ranker.Candidate{{RelPath: "math.go"}}
	evidence, _ := builtinScorer("authentication jwt refresh", candidates, dir)
	if len(evidence) != 0 {
		t.Fatalf("expected no matches, got %v", evidence)
	}
}

func TestBuiltinScorerShortTermsFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "func a() { b() }")

	candidates := []ranker.Candidate{{RelPath: "a.go"}}
	evidence, backend := builtinScorer("a b", candidates, dir)
	if backend != "builtin-no-terms" {
		t.Fatalf("expected builtin-no-terms, got %q", backend)
	}
	if len(evidence) != 0 {
		t.Fatalf("expected no evidence, got %v", evidence)
	}
}

func TestBuiltinScorerScoreClamped(t *testing.T) {
	dir := t.TempDir()
	content := ""
	for i := 0; i < 100; i++ {
		content += "auth "
	}
	writeFile(t, dir, "hot.go", content)

	candidates := []ranker.Candidate{{RelPath: "hot.go"}}
	evidence, _ := builtinScorer("auth", candidates, dir)
	if evidence["hot.go"].SemanticScore > 1 {
		t.Fatalf("expected score clamped to 1.0, got %v", evidence["hot.go"].SemanticScore)
	}
}

func TestNormalizeRawClampsRange(t *testing.T) {
	if s := normalizeRaw(0.5); s >= 0.1 {
		t.Fatalf("expected low score for low raw value, got %v", s)
	}
	if s := normalizeRaw(100); s <= 0.9 {
		t.Fatalf("expected near-1 score for high raw value, got %v", s)
	}
}
