// Package ranker implements the deterministic Stage-1 linear ranking model
// (component I): a set of intent-tuned feature weights scores each
// candidate file in [0,1], with an optional Stage-2 blend against an
// external rerank oracle's scores.
package ranker

import (
	"sort"
	"strings"

	"github.com/rtk-mem/rtk-mem/internal/intent"
)

// FeatureVec holds a candidate's objective ranking signals, each in [0,1].
type FeatureVec struct {
	Structural    float64 `json:"structural"`
	Churn         float64 `json:"churn"`
	Recency       float64 `json:"recency"`
	Risk          float64 `json:"risk"`
	TestProximity float64 `json:"test_proximity"`
	TokenCost     float64 `json:"token_cost"`
	CallGraph     float64 `json:"call_graph"`
}

// Candidate is one file under consideration for inclusion in a plan.
type Candidate struct {
	RelPath         string     `json:"rel_path"`
	Features        FeatureVec `json:"features"`
	Score           float64    `json:"score"`
	Sources         []string   `json:"sources"`
	EstimatedTokens uint32     `json:"estimated_tokens"`
}

// Model is a linear ranking model: a weight per feature dimension.
type Model struct {
	Structural       float64
	Churn            float64
	Recency          float64
	Risk             float64
	TestProximity    float64
	CallGraph        float64
	TokenCostPenalty float64
}

// DefaultModel is the Unknown-intent fallback weighting.
func DefaultModel() Model {
	return Model{
		Structural:       0.25,
		Churn:            0.20,
		Recency:          0.15,
		Risk:             0.15,
		TestProximity:    0.05,
		CallGraph:        0.15,
		TokenCostPenalty: 0.05,
	}
}

// ForIntent selects intent-tuned weights. Every dimension here is a
// deterministic, objective signal — no learned or subjective weighting.
func ForIntent(k intent.Kind) Model {
	switch k {
	case intent.Bugfix:
		return Model{Structural: 0.15, Churn: 0.15, Recency: 0.25, Risk: 0.20, TestProximity: 0.05, CallGraph: 0.20, TokenCostPenalty: 0.00}
	case intent.Feature:
		return Model{Structural: 0.30, Churn: 0.15, Recency: 0.05, Risk: 0.05, TestProximity: 0.30, CallGraph: 0.10, TokenCostPenalty: 0.05}
	case intent.Refactor:
		return Model{Structural: 0.25, Churn: 0.25, Recency: 0.05, Risk: 0.10, TestProximity: 0.05, CallGraph: 0.25, TokenCostPenalty: 0.05}
	case intent.Incident:
		return Model{Structural: 0.10, Churn: 0.10, Recency: 0.35, Risk: 0.25, TestProximity: 0.00, CallGraph: 0.15, TokenCostPenalty: 0.05}
	default:
		return DefaultModel()
	}
}

// Score computes a single candidate's weighted score, clamped to [0,1].
func (m Model) Score(f FeatureVec) float64 {
	raw := m.Structural*f.Structural +
		m.Churn*f.Churn +
		m.Recency*f.Recency +
		m.Risk*f.Risk +
		m.TestProximity*f.TestProximity +
		m.CallGraph*f.CallGraph -
		m.TokenCostPenalty*f.TokenCost
	if raw < 0 {
		return 0
	}
	if raw > 1 {
		return 1
	}
	return raw
}

// RankStage1 scores every candidate with the intent-tuned model and returns
// them sorted by score descending.
func RankStage1(candidates []Candidate, k intent.Kind) []Candidate {
	model := ForIntent(k)
	for i := range candidates {
		candidates[i].Score = model.Score(candidates[i].Features)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	return candidates
}

// ApplyStage2 blends a parallel rerank-oracle score array (same order,
// covering the leading len(rerankScores) candidates) into each candidate's
// Stage-1 score: final = 0.6*stage1 + 0.4*rerank, then re-sorts.
func ApplyStage2(candidates []Candidate, rerankScores []float64) []Candidate {
	for i := range candidates {
		if i >= len(rerankScores) {
			break
		}
		blended := 0.6*candidates[i].Score + 0.4*rerankScores[i]
		if blended < 0 {
			blended = 0
		}
		if blended > 1 {
			blended = 1
		}
		candidates[i].Score = blended
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	return candidates
}

var riskPathSignals = []string{
	"auth", "authn", "authz", "login", "password", "secret", "token", "jwt",
	"payment", "billing", "stripe", "checkout", "crypto", "encrypt",
	"admin", "permission", "role", "privilege", "acl",
	"migration", "migrate", "schema",
}

// PathRiskScore scores a file path by how many risk-path signals it
// contains: 0.4 per hit, capped at 1.0.
func PathRiskScore(relPath string) float64 {
	lower := strings.ToLower(relPath)
	hits := 0
	for _, s := range riskPathSignals {
		if strings.Contains(lower, s) {
			hits++
		}
	}
	score := float64(hits) * 0.4
	if score > 1 {
		return 1
	}
	return score
}

// IsTestFile reports whether relPath looks like a test file by common
// naming conventions across Go, Rust, JS/TS, and Python.
func IsTestFile(relPath string) bool {
	lower := strings.ToLower(relPath)
	return strings.Contains(lower, "/test") ||
		strings.Contains(lower, "_test.") ||
		strings.Contains(lower, ".test.") ||
		strings.Contains(lower, "spec.") ||
		strings.HasSuffix(lower, "_spec.rs") ||
		strings.Contains(lower, "/tests/") ||
		strings.Contains(lower, "__tests__")
}
