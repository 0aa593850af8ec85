package explore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rtk-mem/rtk-mem/internal/config"
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

func TestContextReturnsNonNoiseFiles(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
		"project.rtk-lock":       "locked\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	result, err := Context(context.Background(), st, cfg, dir, "bugfix", 0, false)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	found, excluded := false, false
	for _, c := range result.Assembly.Selected {
		if c.RelPath == "internal/auth/login.go" {
			found = true
		}
		if c.RelPath == "project.rtk-lock" {
			excluded = true
		}
	}
	if !found {
		t.Fatal("expected login.go to be selected")
	}
	if excluded {
		t.Fatal("expected rtk-lock sidecar to be filtered out")
	}
}

func TestContextDefaultsTokenBudget(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	result, err := Context(context.Background(), st, cfg, dir, "general", 0, false)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if result.Assembly.BudgetReport.TokenBudget != cfg.Plan.DefaultTokenBudget {
		t.Fatalf("expected default token budget, got %d", result.Assembly.BudgetReport.TokenBudget)
	}
}

func TestContextForceRefreshTriggersFullScan(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"internal/auth/login.go": "package auth\n\nfunc Login() error { return nil }\n",
	})
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	if _, err := Context(context.Background(), st, cfg, dir, "general", 0, false); err != nil {
		t.Fatalf("first Context: %v", err)
	}
	result, err := Context(context.Background(), st, cfg, dir, "general", 0, true)
	if err != nil {
		t.Fatalf("second Context: %v", err)
	}
	if result.Build.Stats.ReusedEntries != 0 {
		t.Fatalf("expected forced refresh to skip reuse, got %d reused", result.Build.Stats.ReusedEntries)
	}
}
