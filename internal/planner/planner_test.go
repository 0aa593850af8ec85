package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/episode"
	"github.com/rtk-mem/rtk-mem/internal/ranker"
	"github.com/rtk-mem/rtk-mem/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestPlanContextReturnsSeedFileForMatchingTask(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
		"docs/unrelated.md":      "# Unrelated\n\nNothing to see here about that topic.\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	result, err := PlanContext(context.Background(), st, cfg, nil, nil, dir, "fix the login bug in auth", 0, "off")
	if err != nil {
		t.Fatalf("PlanContext: %v", err)
	}
	if result.PipelineVersion != pipelineVersion {
		t.Fatalf("expected pipeline version %q, got %q", pipelineVersion, result.PipelineVersion)
	}

	found := false
	for _, c := range result.Selected {
		if c.RelPath == "internal/auth/login.go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected login.go among selected candidates, got %+v", result.Selected)
	}
}

func TestPlanContextDefaultsTokenBudgetWhenZero(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	result, err := PlanContext(context.Background(), st, cfg, nil, nil, dir, "login", 0, "off")
	if err != nil {
		t.Fatalf("PlanContext: %v", err)
	}
	if result.BudgetReport.TokenBudget != cfg.Plan.DefaultTokenBudget {
		t.Fatalf("expected default token budget %d, got %d", cfg.Plan.DefaultTokenBudget, result.BudgetReport.TokenBudget)
	}
}

func TestPlanContextRespectsExplicitTokenBudget(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	result, err := PlanContext(context.Background(), st, cfg, nil, nil, dir, "login", 500, "off")
	if err != nil {
		t.Fatalf("PlanContext: %v", err)
	}
	if result.BudgetReport.TokenBudget != 500 {
		t.Fatalf("expected token budget 500, got %d", result.BudgetReport.TokenBudget)
	}
}

func TestPlanContextSkipsStage2WhenMlModeOff(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()
	rr := &stubReranker{calls: new(int)}

	if _, err := PlanContext(context.Background(), st, cfg, rr, nil, dir, "login", 0, "off"); err != nil {
		t.Fatalf("PlanContext: %v", err)
	}
	if *rr.calls != 0 {
		t.Fatalf("expected reranker not called in ml_mode=off, got %d calls", *rr.calls)
	}
}

func TestPlanContextInvokesStage2WhenMlModeFull(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()
	rr := &stubReranker{calls: new(int)}

	if _, err := PlanContext(context.Background(), st, cfg, rr, nil, dir, "login", 0, "full"); err != nil {
		t.Fatalf("PlanContext: %v", err)
	}
	if *rr.calls != 1 {
		t.Fatalf("expected reranker called once in ml_mode=full, got %d calls", *rr.calls)
	}
}

func TestPlanContextFailOpenWhenRerankerErrors(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()
	rr := &erroringReranker{}

	result, err := PlanContext(context.Background(), st, cfg, rr, nil, dir, "login", 0, "full")
	if err != nil {
		t.Fatalf("expected fail-open, got error: %v", err)
	}
	if result.BudgetReport.CandidatesTotal == 0 {
		t.Fatal("expected candidates to still be planned after a reranker failure")
	}
}

func TestPlanContextDropsNoisyFilesFromPool(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
		"project.rtk-lock":       "locked\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	result, err := PlanContext(context.Background(), st, cfg, nil, nil, dir, "login", 0, "off")
	if err != nil {
		t.Fatalf("PlanContext: %v", err)
	}
	for _, c := range result.Selected {
		if c.RelPath == "project.rtk-lock" {
			t.Fatal("expected rtk-lock sidecar to be filtered out before ranking")
		}
	}
}

func TestPlanContextRecordsEpisodeWhenStoreSupplied(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()
	epStore := episode.New(st)

	result, err := PlanContext(context.Background(), st, cfg, nil, epStore, dir, "fix the login bug", 0, "off")
	if err != nil {
		t.Fatalf("PlanContext: %v", err)
	}
	if result.SessionID == "" {
		t.Fatal("expected a session id when an episode store is supplied")
	}
}

func TestPlanContextLeavesSessionIDEmptyWithoutStore(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	result, err := PlanContext(context.Background(), st, cfg, nil, nil, dir, "login", 0, "off")
	if err != nil {
		t.Fatalf("PlanContext: %v", err)
	}
	if result.SessionID != "" {
		t.Fatalf("expected empty session id without an episode store, got %q", result.SessionID)
	}
}

type stubReranker struct {
	calls *int
}

func (s *stubReranker) Rerank(_ context.Context, _ string, candidates []ranker.Candidate) ([]float64, error) {
	*s.calls++
	scores := make([]float64, len(candidates))
	for i := range scores {
		scores[i] = 0.5
	}
	return scores, nil
}

type erroringReranker struct{}

func (erroringReranker) Rerank(_ context.Context, _ string, _ []ranker.Candidate) ([]float64, error) {
	return nil, errRerankUnavailable
}

var errRerankUnavailable = &rerankError{"reranker unavailable"}

type rerankError struct{ msg string }

func (e *rerankError) Error() string { return e.msg }
