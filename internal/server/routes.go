package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
	"github.com/rtk-mem/rtk-mem/internal/budget"
	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/delta"
	"github.com/rtk-mem/rtk-mem/internal/episode"
	"github.com/rtk-mem/rtk-mem/internal/explore"
	"github.com/rtk-mem/rtk-mem/internal/indexer"
	"github.com/rtk-mem/rtk-mem/internal/planner"
	"github.com/rtk-mem/rtk-mem/internal/reranker"
	"github.com/rtk-mem/rtk-mem/internal/store"
)

// Version is the build version reported by /v1/health. Overridden by the
// cmd package's -ldflags injection point at build time.
var Version = "dev"

// RegisterRoutes wires the six documented endpoints (health plus five
// POST endpoints) onto r.
func RegisterRoutes(r chi.Router, st *store.Store, cfg *config.Config, rr reranker.Reranker) {
	r.Get("/v1/health", healthHandler)
	r.Post("/v1/explore", contextHandler(st, cfg, false))
	r.Post("/v1/context", contextHandler(st, cfg, false))
	r.Post("/v1/refresh", contextHandler(st, cfg, true))
	r.Post("/v1/delta", deltaHandler(st, cfg))
	r.Post("/v1/plan-context", planContextHandler(st, cfg, rr))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "unknown path")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

type baseRequest struct {
	ProjectRoot string `json:"project_root"`
	QueryType   string `json:"query_type"`
	Detail      string `json:"detail"`
	Format      string `json:"format"`
}

func (b *baseRequest) normalize() error {
	if strings.TrimSpace(b.ProjectRoot) == "" {
		return errors.New("project_root is required")
	}
	switch b.QueryType {
	case "":
		b.QueryType = "general"
	case "general", "bugfix", "feature", "refactor", "incident":
	default:
		return fmt.Errorf("unsupported query_type %q", b.QueryType)
	}
	switch b.Detail {
	case "":
		b.Detail = "normal"
	case "compact", "normal", "verbose":
	default:
		return fmt.Errorf("unsupported detail %q", b.Detail)
	}
	switch b.Format {
	case "":
		b.Format = "json"
	case "json", "text":
	default:
		return fmt.Errorf("unsupported format %q", b.Format)
	}
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          Version,
		"artifact_version": artifact.Version,
	})
}

func contextHandler(st *store.Store, cfg *config.Config, forceRefresh bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req baseRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		result, err := explore.Context(r.Context(), st, cfg, req.ProjectRoot, req.QueryType, 0, forceRefresh)
		if err != nil {
			writeBuildError(w, err)
			return
		}

		if req.Format == "text" {
			writeText(w, http.StatusOK, renderAssemblyText(result.Assembly, req.Detail))
			return
		}
		writeJSON(w, http.StatusOK, assemblyResponse(result.Assembly, result.Build.CacheStatus, req.Detail))
	}
}

type deltaRequestBody struct {
	baseRequest
	Since string `json:"since"`
}

func deltaHandler(st *store.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deltaRequestBody
		if !decodeRequest(w, r, &req) {
			return
		}

		var summary artifact.DeltaSummary
		if req.Since != "" {
			if !cfg.Churn.GitDelta {
				writeError(w, http.StatusBadRequest, "since requires git_delta to be enabled")
				return
			}
			var err error
			summary, err = delta.VCSDelta(r.Context(), req.ProjectRoot, req.Since, cfg.Churn.GitDelta)
			if err != nil {
				var toolErr *delta.ExternalToolError
				if errors.As(err, &toolErr) {
					writeError(w, http.StatusBadRequest, toolErr.Error())
					return
				}
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		} else {
			state, err := indexer.Build(r.Context(), st, cfg, req.ProjectRoot, false, true, false)
			if err != nil {
				writeBuildError(w, err)
				return
			}
			if !state.CacheHit {
				if err := st.StoreArtifact(state.Artifact, cfg.Cache.MaxProjects, cfg.Cache.RetryAttempts, cfg.Cache.RetryBaseMs); err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
			}
			summary = state.Delta
		}

		if req.Format == "text" {
			writeText(w, http.StatusOK, renderDeltaText(summary))
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

type planRequestBody struct {
	baseRequest
	Task        string `json:"task"`
	TokenBudget uint32 `json:"token_budget"`
	MLMode      string `json:"ml_mode"`
}

func planContextHandler(st *store.Store, cfg *config.Config, rr reranker.Reranker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planRequestBody
		if !decodeRequest(w, r, &req) {
			return
		}
		switch req.MLMode {
		case "":
			req.MLMode = "off"
		case "off", "full":
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported ml_mode %q", req.MLMode))
			return
		}

		epStore := episode.New(st)
		result, err := planner.PlanContext(r.Context(), st, cfg, rr, epStore, req.ProjectRoot, req.Task, req.TokenBudget, req.MLMode)
		if err != nil {
			writeBuildError(w, err)
			return
		}

		if req.Format == "text" {
			writeText(w, http.StatusOK, renderAssemblyText(result, req.Detail))
			return
		}
		writeJSON(w, http.StatusOK, assemblyResponse(result, "", req.Detail))
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request, req interface{ normalize() error }) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := req.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeBuildError(w http.ResponseWriter, err error) {
	var notFound *indexer.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// assemblyResponse trims an AssemblyResult's JSON shape to the requested
// detail level: compact drops the decision trace and dropped-candidate
// list entirely, normal keeps dropped reasons but not the trace, verbose
// keeps everything.
func assemblyResponse(result budget.AssemblyResult, cacheStatus, detail string) map[string]any {
	resp := map[string]any{
		"selected":              result.Selected,
		"budget_report":         result.BudgetReport,
		"pipeline_version":      result.PipelineVersion,
		"semantic_backend_used": result.SemanticBackendUsed,
		"graph_candidate_count": result.GraphCandidateCount,
		"semantic_hit_count":    result.SemanticHitCount,
	}
	if cacheStatus != "" {
		resp["cache_status"] = cacheStatus
	}
	if result.SessionID != "" {
		resp["session_id"] = result.SessionID
	}
	if detail == "normal" || detail == "verbose" {
		resp["dropped"] = result.Dropped
	}
	if detail == "verbose" {
		resp["decision_trace"] = result.DecisionTrace
	}
	return resp
}

func renderAssemblyText(result budget.AssemblyResult, detail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "pipeline=%s candidates=%d/%d tokens=%d/%d efficiency=%.2f\n",
		result.PipelineVersion, result.BudgetReport.CandidatesSelected, result.BudgetReport.CandidatesTotal,
		result.BudgetReport.EstimatedUsed, result.BudgetReport.TokenBudget, result.BudgetReport.EfficiencyScore)
	if result.SessionID != "" {
		fmt.Fprintf(&b, "session=%s\n", result.SessionID)
	}
	for _, c := range result.Selected {
		fmt.Fprintf(&b, "%s\tscore=%.3f\ttokens=%d\n", c.RelPath, c.Score, c.EstimatedTokens)
	}
	if detail == "verbose" {
		b.WriteString("--- trace ---\n")
		for _, line := range result.DecisionTrace {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderDeltaText(summary artifact.DeltaSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "added=%d modified=%d removed=%d\n", summary.Added, summary.Modified, summary.Removed)
	for _, c := range summary.Changes {
		fmt.Fprintf(&b, "%s\t%s\n", c.Kind, c.RelPath)
	}
	return b.String()
}
