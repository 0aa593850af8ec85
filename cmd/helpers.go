package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rtk-mem/rtk-mem/internal/budget"
	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/store"
)

// openStore opens the artifact store at cfg.DBPath, or the default
// per-user cache location when cfg.DBPath is unset.
func openStore(c *config.Config) (*store.Store, error) {
	path := c.DBPath
	if path == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolving default db path: %w", err)
		}
		path = filepath.Join(base, "rtk", "mem.db")
	}
	return store.Open(path, c.Cache.BusyTimeoutMs)
}

// printAssembly renders an AssemblyResult per the shared --format/--detail
// flags.
func printAssembly(result budget.AssemblyResult) error {
	if formatFlag == "json" {
		return printJSON(assemblyPayload(result))
	}
	fmt.Println(renderAssemblyText(result))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func assemblyPayload(result budget.AssemblyResult) map[string]any {
	detail := effectiveDetail()
	payload := map[string]any{
		"selected":              result.Selected,
		"budget_report":         result.BudgetReport,
		"pipeline_version":      result.PipelineVersion,
		"semantic_backend_used": result.SemanticBackendUsed,
		"graph_candidate_count": result.GraphCandidateCount,
		"semantic_hit_count":    result.SemanticHitCount,
	}
	if result.SessionID != "" {
		payload["session_id"] = result.SessionID
	}
	if detail == "normal" || detail == "verbose" {
		payload["dropped"] = result.Dropped
	}
	if detail == "verbose" {
		payload["decision_trace"] = result.DecisionTrace
	}
	return payload
}

func renderAssemblyText(result budget.AssemblyResult) string {
	detail := effectiveDetail()
	out := fmt.Sprintf("pipeline=%s candidates=%d/%d tokens=%d/%d efficiency=%.2f\n",
		result.PipelineVersion, result.BudgetReport.CandidatesSelected, result.BudgetReport.CandidatesTotal,
		result.BudgetReport.EstimatedUsed, result.BudgetReport.TokenBudget, result.BudgetReport.EfficiencyScore)
	if result.SessionID != "" {
		out += fmt.Sprintf("session=%s\n", result.SessionID)
	}
	for _, c := range result.Selected {
		out += fmt.Sprintf("%s\tscore=%.3f\ttokens=%d\n", c.RelPath, c.Score, c.EstimatedTokens)
	}
	if detail == "verbose" {
		out += "--- trace ---\n"
		for _, line := range result.DecisionTrace {
			out += line + "\n"
		}
	}
	return out
}
