package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/indexer"
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

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

func TestNewDaemonRejectsMissingRoot(t *testing.T) {
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	_, err := NewDaemon(filepath.Join(t.TempDir(), "does-not-exist"), cfg, st, nil)
	if err == nil {
		t.Fatal("expected error for nonexistent project root")
	}
}

func TestRunPerformsInitialRebuildBeforeWatching(t *testing.T) {
	dir := writeProject(t)
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	var states []indexer.BuildState
	d, err := NewDaemon(dir, cfg, st, func(s indexer.BuildState) { states = append(states, s) })
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Give the daemon a moment to perform its initial scan, then stop it.
	time.Sleep(50 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("expected exactly one rebuild from the initial scan, got %d", len(states))
	}
	if states[0].CacheStatus != "miss" {
		t.Fatalf("expected cache_status miss on first scan, got %q", states[0].CacheStatus)
	}
}

func TestStopUnblocksRun(t *testing.T) {
	dir := writeProject(t)
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	d, err := NewDaemon(dir, cfg, st, nil)
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	d.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestIsExcludedDirMatchesDefaultExcludes(t *testing.T) {
	dir := writeProject(t)
	st := newTestStore(t)
	cfg := config.DefaultConfig()

	d, err := NewDaemon(dir, cfg, st, nil)
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	if !d.isExcludedDir("node_modules") {
		t.Error("expected node_modules to be excluded")
	}
	if !d.isExcludedDir(".git") {
		t.Error("expected .git to be excluded")
	}
	if d.isExcludedDir("internal") {
		t.Error("did not expect internal to be excluded")
	}
}

func TestShouldIgnoreRespectsConfiguredExcludes(t *testing.T) {
	dir := writeProject(t)
	st := newTestStore(t)
	cfg := config.DefaultConfig()
	cfg.Exclude = []string{"**/*.log"}

	d, err := NewDaemon(dir, cfg, st, nil)
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	if !d.shouldIgnore(filepath.Join(dir, "debug.log")) {
		t.Error("expected debug.log to be ignored")
	}
	if d.shouldIgnore(filepath.Join(dir, "main.go")) {
		t.Error("did not expect main.go to be ignored")
	}
	if !d.shouldIgnore(filepath.Join(dir, "node_modules", "pkg", "index.js")) {
		t.Error("expected a path under node_modules to be ignored")
	}
}
