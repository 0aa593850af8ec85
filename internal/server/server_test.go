package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	cfg := config.DefaultConfig()
	return New(cfg, st, nil)
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	full := filepath.Join(dir, "main.go")
	if err := os.WriteFile(full, []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestExploreReturnsContext(t *testing.T) {
	srv := newTestServer(t)
	dir := writeProject(t)

	payload, _ := json.Marshal(map[string]string{"project_root": dir})
	req := httptest.NewRequest(http.MethodPost, "/v1/explore", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestExploreRejectsMissingProjectRoot(t *testing.T) {
	srv := newTestServer(t)

	payload, _ := json.Marshal(map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/v1/explore", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestExploreRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/explore", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestExploreRejectsUnsupportedQueryType(t *testing.T) {
	srv := newTestServer(t)
	dir := writeProject(t)

	payload, _ := json.Marshal(map[string]string{"project_root": dir, "query_type": "nonsense"})
	req := httptest.NewRequest(http.MethodPost, "/v1/explore", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMethodNotAllowedReturns405(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/explore", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestPlanContextHonorsTokenBudget(t *testing.T) {
	srv := newTestServer(t)
	dir := writeProject(t)

	payload, _ := json.Marshal(map[string]any{
		"project_root": dir,
		"task":         "fix main",
		"token_budget": 500,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/plan-context", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	report, ok := body["budget_report"].(map[string]any)
	if !ok {
		t.Fatalf("expected budget_report object, got %v", body["budget_report"])
	}
	if report["token_budget"] != float64(500) {
		t.Fatalf("expected token budget 500, got %v", report["token_budget"])
	}
	sessionID, ok := body["session_id"].(string)
	if !ok || sessionID == "" {
		t.Fatalf("expected a non-empty session_id, got %v", body["session_id"])
	}
}

func TestDeltaMissingProjectRootIs400(t *testing.T) {
	srv := newTestServer(t)

	payload, _ := json.Marshal(map[string]string{"project_root": "/does/not/exist"})
	req := httptest.NewRequest(http.MethodPost, "/v1/delta", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for nonexistent project root, got %d", w.Code)
	}
}
