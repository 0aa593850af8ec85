// Package budget implements the budget-aware context assembler (component
// K): a greedy knapsack that selects the highest-utility candidates under
// a hard token budget, with a human-readable trace of why each file was
// kept or dropped.
package budget

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rtk-mem/rtk-mem/internal/ranker"
)

const (
	baseTokensPerFile = 40
	tokensPerChar     = 0.28
)

// EstimateTokensForPath estimates the token cost of including relPath's
// content in context: a fixed per-file base, a per-character path-name
// cost, and a per-extension content-size heuristic.
func EstimateTokensForPath(relPath string) uint32 {
	pathTokens := uint32(math.Round(float64(len(relPath)) * tokensPerChar))
	return baseTokensPerFile + pathTokens + contentTokensForExtension(relPath)
}

func contentTokensForExtension(relPath string) uint32 {
	ext := ""
	if i := strings.LastIndex(relPath, "."); i >= 0 {
		ext = relPath[i+1:]
	}
	switch ext {
	case "rs", "ts", "tsx", "java", "go", "cpp", "c":
		return 350
	case "py", "js", "jsx", "swift", "kt":
		return 280
	case "md", "toml", "yaml", "yml":
		return 150
	case "json", "lock":
		return 120
	default:
		return 200
	}
}

func utility(c ranker.Candidate) float64 {
	tokens := c.EstimatedTokens
	if tokens < 1 {
		tokens = 1
	}
	costNormalized := float64(tokens) / 100
	if costNormalized < 0.1 {
		costNormalized = 0.1
	}
	return c.Score / costNormalized
}

// DroppedCandidate records a candidate excluded from the final selection.
type DroppedCandidate struct {
	RelPath string  `json:"rel_path"`
	Reason  string  `json:"reason"`
	Score   float64 `json:"score"`
}

// Report summarizes how much of the budget was used.
type Report struct {
	TokenBudget        uint32  `json:"token_budget"`
	EstimatedUsed      uint32  `json:"estimated_used"`
	CandidatesTotal    int     `json:"candidates_total"`
	CandidatesSelected int     `json:"candidates_selected"`
	EfficiencyScore    float64 `json:"efficiency_score"`
}

// AssemblyResult is the full output of Assemble. The four pipeline trace
// fields (PipelineVersion, SemanticBackendUsed, GraphCandidateCount,
// SemanticHitCount)
// are populated by the plan pipeline (component L) after assembly; they
// are zero-valued when Assemble is called directly.
type AssemblyResult struct {
	Selected      []ranker.Candidate `json:"selected"`
	Dropped       []DroppedCandidate `json:"dropped"`
	BudgetReport  Report             `json:"budget_report"`
	DecisionTrace []string           `json:"decision_trace"`

	PipelineVersion     string `json:"pipeline_version"`
	SemanticBackendUsed string `json:"semantic_backend_used"`
	GraphCandidateCount int    `json:"graph_candidate_count"`
	SemanticHitCount    int    `json:"semantic_hit_count"`

	// SessionID identifies the episode this assembly was recorded under, set
	// only by callers tracking episodic memory (the graph-first plan
	// pipeline); empty when no episode store was supplied.
	SessionID string `json:"session_id,omitempty"`
}

// Assemble greedily selects candidates by utility-per-token (score divided
// by a normalized token cost) until the token budget is exhausted.
// Candidates must already carry a Score (set by the ranker) and an
// EstimatedTokens cost.
func Assemble(candidates []ranker.Candidate, tokenBudget uint32) AssemblyResult {
	total := len(candidates)

	ordered := make([]ranker.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool { return utility(ordered[i]) > utility(ordered[j]) })

	var selected []ranker.Candidate
	var dropped []DroppedCandidate
	var trace []string
	var tokensUsed uint32

	for _, c := range ordered {
		cost := c.EstimatedTokens
		if tokensUsed+cost <= tokenBudget {
			trace = append(trace, fmt.Sprintf(
				"%s selected (score=%.2f, est_tokens=%d, utility=%.4f, sources=[%s])",
				c.RelPath, c.Score, cost, utility(c), strings.Join(c.Sources, ","),
			))
			tokensUsed += cost
			selected = append(selected, c)
		} else {
			available := uint32(0)
			if tokenBudget > tokensUsed {
				available = tokenBudget - tokensUsed
			}
			dropped = append(dropped, DroppedCandidate{
				RelPath: c.RelPath,
				Reason:  fmt.Sprintf("budget_exceeded (needs %d, available %d)", cost, available),
				Score:   c.Score,
			})
		}
	}

	var efficiency float64
	if tokenBudget > 0 {
		efficiency = float64(tokensUsed) / float64(tokenBudget)
	}

	return AssemblyResult{
		Selected: selected,
		Dropped:  dropped,
		BudgetReport: Report{
			TokenBudget:        tokenBudget,
			EstimatedUsed:      tokensUsed,
			CandidatesTotal:    total,
			CandidatesSelected: len(selected),
			EfficiencyScore:    efficiency,
		},
		DecisionTrace: trace,
	}
}
