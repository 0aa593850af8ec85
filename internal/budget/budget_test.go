package budget

import (
	"strings"
	"testing"

	"github.com/rtk-mem/rtk-mem/internal/ranker"
)

func candidate(path string, score float64, tokens uint32) ranker.Candidate {
	return ranker.Candidate{
		RelPath:         path,
		Score:           score,
		EstimatedTokens: tokens,
		Sources:         []string{"structural"},
	}
}

func TestAssembleRespectsBudget(t *testing.T) {
	candidates := []ranker.Candidate{
		candidate("a.go", 0.9, 400),
		candidate("b.go", 0.8, 400),
		candidate("c.go", 0.7, 400),
	}
	result := Assemble(candidates, 700)
	if result.BudgetReport.EstimatedUsed > 700 {
		t.Fatalf("used %d tokens, exceeds budget of 700", result.BudgetReport.EstimatedUsed)
	}
	if len(result.Selected)+len(result.Dropped) != len(candidates) {
		t.Fatalf("expected every candidate to be accounted for")
	}
}

func TestAssembleMaximizesUtilityNotJustScore(t *testing.T) {
	// cheap-but-decent candidate should beat an expensive-but-slightly-better one
	// when the budget can't fit both.
	expensive := candidate("big.go", 0.95, 900)
	cheap := candidate("small.go", 0.85, 100)

	result := Assemble([]ranker.Candidate{expensive, cheap}, 150)
	if len(result.Selected) != 1 || result.Selected[0].RelPath != "small.go" {
		t.Fatalf("expected small.go to be selected for its higher utility, got %+v", result.Selected)
	}
}

func TestBudgetReportEfficiency(t *testing.T) {
	candidates := []ranker.Candidate{
		candidate("a.go", 0.9, 500),
	}
	result := Assemble(candidates, 1000)
	want := float64(500) / float64(1000)
	if result.BudgetReport.EfficiencyScore != want {
		t.Fatalf("expected efficiency %.4f, got %.4f", want, result.BudgetReport.EfficiencyScore)
	}
}

func TestBudgetReportZeroBudgetEfficiencyIsZero(t *testing.T) {
	result := Assemble([]ranker.Candidate{candidate("a.go", 0.5, 100)}, 0)
	if result.BudgetReport.EfficiencyScore != 0 {
		t.Fatalf("expected 0 efficiency for zero budget, got %v", result.BudgetReport.EfficiencyScore)
	}
	if len(result.Selected) != 0 {
		t.Fatalf("expected nothing selected with zero budget")
	}
}

func TestDroppedCandidatesHaveReason(t *testing.T) {
	candidates := []ranker.Candidate{
		candidate("a.go", 0.9, 900),
		candidate("b.go", 0.1, 900),
	}
	result := Assemble(candidates, 900)
	if len(result.Dropped) != 1 {
		t.Fatalf("expected exactly one dropped candidate, got %d", len(result.Dropped))
	}
	if !strings.Contains(result.Dropped[0].Reason, "budget_exceeded") {
		t.Fatalf("expected budget_exceeded reason, got %q", result.Dropped[0].Reason)
	}
}

func TestEmptyCandidates(t *testing.T) {
	result := Assemble(nil, 1000)
	if len(result.Selected) != 0 || len(result.Dropped) != 0 {
		t.Fatalf("expected empty result for empty candidates")
	}
	if result.BudgetReport.CandidatesTotal != 0 {
		t.Fatalf("expected zero total candidates")
	}
}

func TestDecisionTracePopulated(t *testing.T) {
	candidates := []ranker.Candidate{
		candidate("a.go", 0.9, 200),
	}
	result := Assemble(candidates, 1000)
	if len(result.DecisionTrace) != 1 {
		t.Fatalf("expected one trace line, got %d", len(result.DecisionTrace))
	}
	if !strings.Contains(result.DecisionTrace[0], "a.go selected") {
		t.Fatalf("unexpected trace line: %q", result.DecisionTrace[0])
	}
}

func TestEstimateTokensByExtension(t *testing.T) {
	goTokens := EstimateTokensForPath("pkg/foo.go")
	mdTokens := EstimateTokensForPath("pkg/foo.md")
	jsonTokens := EstimateTokensForPath("pkg/foo.json")

	if goTokens <= mdTokens {
		t.Fatalf("expected source-like extension to cost more than markup: go=%d md=%d", goTokens, mdTokens)
	}
	if mdTokens <= jsonTokens {
		t.Fatalf("expected markup extension to cost more than blob/lock: md=%d json=%d", mdTokens, jsonTokens)
	}
}

func TestEstimateTokensLongerPathCostsMore(t *testing.T) {
	short := EstimateTokensForPath("a.go")
	long := EstimateTokensForPath("internal/some/very/deeply/nested/package/name.go")
	if long <= short {
		t.Fatalf("expected longer path to cost more tokens: short=%d long=%d", short, long)
	}
}
