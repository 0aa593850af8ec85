// Package planner implements the graph-first context-assembly pipeline
// (component L): it builds a tiered candidate pool from direct task
// matches and their import/call-graph neighbors, ranks and semantically
// scores the pool, then hands the survivors to the budget assembler.
package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
	"github.com/rtk-mem/rtk-mem/internal/budget"
	"github.com/rtk-mem/rtk-mem/internal/callgraph"
	"github.com/rtk-mem/rtk-mem/internal/churn"
	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/episode"
	"github.com/rtk-mem/rtk-mem/internal/indexer"
	"github.com/rtk-mem/rtk-mem/internal/intent"
	"github.com/rtk-mem/rtk-mem/internal/ranker"
	"github.com/rtk-mem/rtk-mem/internal/reranker"
	"github.com/rtk-mem/rtk-mem/internal/semantic"
	"github.com/rtk-mem/rtk-mem/internal/store"
)

const pipelineVersion = "graph_first_v1"

// topSeedLimit bounds how many Tier-A seeds get their neighbors expanded
// into Tier B — expanding every seed would make Tier B cost scale with
// the whole Tier-A pool instead of its strongest members.
const topSeedLimit = 20

// PlanContext runs the full graph-first pipeline for one task against one
// project. mlMode controls whether the optional chromem-backed Stage-2
// reranker blend (ranker.ApplyStage2) runs on top of the deterministic
// Stage-1 ranking before the semantic fusion step: "off" skips it (the
// default, and the only mode the distilled pipeline itself specifies),
// "full" enables it. A Reranker failure in "full" mode is fail-open —
// Stage-2 is simply skipped, matching the graph/semantic fusion's own
// fail-open contract.
func PlanContext(ctx context.Context, st *store.Store, cfg *config.Config, rr reranker.Reranker, epStore *episode.Store, projectRoot, task string, tokenBudget uint32, mlMode string) (budget.AssemblyResult, error) {
	if tokenBudget == 0 {
		tokenBudget = cfg.Plan.DefaultTokenBudget
	}

	state, err := indexer.Build(ctx, st, cfg, projectRoot, false, true, false)
	if err != nil {
		return budget.AssemblyResult{}, fmt.Errorf("planner: index: %w", err)
	}
	if !state.CacheHit {
		if err := st.StoreArtifact(state.Artifact, cfg.Cache.MaxProjects, cfg.Cache.RetryAttempts, cfg.Cache.RetryBaseMs); err != nil {
			return budget.AssemblyResult{}, fmt.Errorf("planner: persist artifact: %w", err)
		}
	}

	churnCache, err := churn.Load(ctx, state.ProjectRoot, cfg.Churn.SinceWindow)
	if err != nil {
		churnCache = &churn.Cache{HeadSHA: "unknown", FreqMap: map[string]uint32{}}
	}

	parsedIntent := intent.Parse(task, state.ProjectID)
	queryTags := parsedIntent.ExtractedTags

	var sessionID string
	if epStore != nil {
		var budgetPtr *int64
		if tokenBudget > 0 {
			b := int64(tokenBudget)
			budgetPtr = &b
		}
		sessionID, err = epStore.StartEpisode(ctx, state.ProjectID, task, parsedIntent, string(parsedIntent.Predicted), budgetPtr)
		if err != nil {
			sessionID = ""
		}
	}

	recentPaths := make(map[string]bool, len(state.Delta.Changes))
	for _, c := range state.Delta.Changes {
		recentPaths[c.RelPath] = true
	}

	fileByPath := make(map[string]artifact.FileArtifact, len(state.Artifact.Files))
	var symbolFiles []callgraph.SymbolFile
	for _, fa := range state.Artifact.Files {
		fileByPath[fa.RelPath] = fa
		var syms []string
		for _, s := range fa.PubSymbols {
			if s.Kind == artifact.SymbolFunction || s.Kind == artifact.SymbolMethod {
				syms = append(syms, s.Name)
			}
		}
		symbolFiles = append(symbolFiles, callgraph.SymbolFile{RelPath: fa.RelPath, Symbols: syms})
	}
	cg := callgraph.Build(symbolFiles, state.ProjectRoot)

	// Tier A: direct seeds.
	type scored struct {
		path  string
		score float64
	}
	var tierA []scored
	allPaths := make(map[string]bool)
	for _, fa := range state.Artifact.Files {
		if isNoiseCandidate(fa, queryTags, tierLevelA) {
			continue
		}
		if s := tierAScore(fa, queryTags); s > 0 {
			tierA = append(tierA, scored{fa.RelPath, s})
			allPaths[fa.RelPath] = true
		}
	}
	sort.SliceStable(tierA, func(i, j int) bool { return tierA[i].score > tierA[j].score })

	// Tier B: 1-hop neighbors via import edges and call-graph edges. The
	// import check below is a fuzzy substring match against each seed's
	// stem, not an exact-key lookup, so a reverse import index wouldn't
	// help here — every seed still needs to walk every file's imports.
	seedLimit := topSeedLimit
	if seedLimit > len(tierA) {
		seedLimit = len(tierA)
	}
	seedPaths := make([]string, seedLimit)
	for i := 0; i < seedLimit; i++ {
		seedPaths[i] = tierA[i].path
	}

	tierBScore := make(map[string]float64)
	for _, seed := range seedPaths {
		seedStem := stemOf(seed)
		for _, fa := range state.Artifact.Files {
			if allPaths[fa.RelPath] {
				continue
			}
			importsSeed := false
			for _, imp := range fa.Imports {
				lower := strings.ToLower(imp)
				if strings.Contains(lower, seedStem) || imp == "super::*" {
					importsSeed = true
					break
				}
			}
			if importsSeed && !isNoiseCandidate(fa, queryTags, tierLevelB) {
				if tierBScore[fa.RelPath] < 0.3 {
					tierBScore[fa.RelPath] = 0.3
				}
			}
		}

		if cg.CallerScore(seed, queryTags) > 0.1 {
			for _, fa := range state.Artifact.Files {
				if allPaths[fa.RelPath] {
					continue
				}
				cs := cg.CallerScore(fa.RelPath, queryTags)
				if cs > 0.1 && !isNoiseCandidate(fa, queryTags, tierLevelB) {
					candidate := 0.2 + cs*0.3
					if tierBScore[fa.RelPath] < candidate {
						tierBScore[fa.RelPath] = candidate
					}
				}
			}
		}
	}

	var tierB []scored
	for path, s := range tierBScore {
		tierB = append(tierB, scored{path, s})
	}
	sort.SliceStable(tierB, func(i, j int) bool { return tierB[i].score > tierB[j].score })
	for _, tb := range tierB {
		allPaths[tb.path] = true
	}

	// Tier C: recall fallback, filling remaining budget from churn/recency.
	candidateCap := cfg.Plan.CandidateCap
	tierCBudget := candidateCap - len(tierA) - len(tierB)
	var tierC []scored
	if tierCBudget > 0 {
		var pool []scored
		for _, fa := range state.Artifact.Files {
			if allPaths[fa.RelPath] || isNoiseCandidate(fa, queryTags, tierLevelC) {
				continue
			}
			c := churnCache.Score(fa.RelPath)
			recency := 0.0
			if recentPaths[fa.RelPath] {
				recency = 1.0
			}
			pool = append(pool, scored{fa.RelPath, 0.15 + c*0.1 + recency*0.05})
		}
		sort.SliceStable(pool, func(i, j int) bool { return pool[i].score > pool[j].score })
		if len(pool) > tierCBudget {
			pool = pool[:tierCBudget]
		}
		tierC = pool
		for _, tc := range tierC {
			allPaths[tc.path] = true
		}
	}

	// Build the capped candidate pool.
	type poolEntry struct {
		path  string
		score float64
		tier  string
	}
	var pool []poolEntry
	for _, s := range tierA {
		pool = append(pool, poolEntry{s.path, s.score, "tier_a"})
	}
	for _, s := range tierB {
		pool = append(pool, poolEntry{s.path, s.score, "tier_b"})
	}
	for _, s := range tierC {
		pool = append(pool, poolEntry{s.path, s.score, "tier_c"})
	}
	if len(pool) > candidateCap {
		pool = pool[:candidateCap]
	}
	graphCandidateCount := len(pool)

	var candidates []ranker.Candidate
	for _, p := range pool {
		fa, ok := fileByPath[p.path]
		if !ok {
			continue
		}
		structural := p.score
		if structural > 1 {
			structural = 1
		}
		recency := 0.0
		if recentPaths[p.path] {
			recency = 1.0
		}
		testProximity := 0.0
		if ranker.IsTestFile(p.path) {
			testProximity = 0.8
		}
		rawCost := budget.EstimateTokensForPath(p.path)
		if rawCost < 180 {
			rawCost = 180
		}
		candidates = append(candidates, ranker.Candidate{
			RelPath: p.path,
			Features: ranker.FeatureVec{
				Structural:    structural,
				Churn:         churnCache.Score(p.path),
				Recency:       recency,
				Risk:          ranker.PathRiskScore(p.path),
				TestProximity: testProximity,
				CallGraph:     cg.CallerScore(p.path, queryTags),
				TokenCost:     minFloat(float64(rawCost)/1000, 1),
			},
			EstimatedTokens: rawCost,
			Sources:         []string{p.tier},
		})
	}

	candidates = ranker.RankStage1(candidates, parsedIntent.Predicted)

	if mlMode == "full" && rr != nil && len(candidates) > 0 {
		if rerankScores, err := rr.Rerank(ctx, task, candidates); err == nil && len(rerankScores) == len(candidates) {
			candidates = ranker.ApplyStage2(candidates, rerankScores)
		}
	}

	semanticCap := cfg.Plan.SemanticCap
	if semanticCap > len(candidates) {
		semanticCap = len(candidates)
	}
	evidence, backendUsed, semErr := semantic.RunStage(ctx, task, candidates[:semanticCap], state.ProjectRoot)
	if semErr != nil {
		evidence, backendUsed = nil, "error"
	}

	for i := range candidates {
		ev, ok := evidence[candidates[i].RelPath]
		if !ok {
			continue
		}
		graphScore := candidates[i].Score
		candidates[i].Score = cfg.Plan.GraphWeight*graphScore + cfg.Plan.SemanticWeight*ev.SemanticScore
		candidates[i].Sources = append(candidates[i].Sources, "semantic:"+strings.Join(ev.MatchedTerms, ","))
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	hasSemantic := func(c ranker.Candidate) bool {
		for _, s := range c.Sources {
			if strings.HasPrefix(s, "semantic:") {
				return true
			}
		}
		return false
	}
	isInfraLike := func(relPath string) bool {
		p := strings.ToLower(relPath)
		return strings.HasSuffix(p, ".md") || strings.Contains(p, "/test") ||
			strings.Contains(p, "__init__") || strings.HasSuffix(p, ".yaml") ||
			strings.HasSuffix(p, ".toml") || strings.HasSuffix(p, ".json")
	}

	filtered := candidates[:0:0]
	for _, c := range candidates {
		if isInfraLike(c.RelPath) && !hasSemantic(c) {
			if c.Score >= cfg.Plan.InfraScoreFloor {
				filtered = append(filtered, c)
			}
			continue
		}
		if c.Score >= cfg.Plan.MinFinalScore || hasSemantic(c) {
			filtered = append(filtered, c)
		}
	}
	candidates = filtered

	explicitTestDocs := false
	for _, tag := range queryTags {
		switch tag {
		case "test", "tests", "doc", "docs", "readme":
			explicitTestDocs = true
		}
	}
	if !explicitTestDocs {
		maxInfra := cfg.Plan.MaxInfraFiles
		infraCount := 0
		capped := candidates[:0:0]
		for _, c := range candidates {
			p := strings.ToLower(c.RelPath)
			isInfra := strings.HasSuffix(p, ".md") || strings.HasSuffix(p, ".txt") ||
				strings.HasSuffix(p, ".yml") || strings.HasSuffix(p, ".yaml") ||
				strings.Contains(p, "/test") || strings.Contains(p, "__init__") ||
				strings.Contains(p, "/.github/")
			if isInfra {
				infraCount++
				if infraCount > maxInfra {
					continue
				}
			}
			capped = append(capped, c)
		}
		candidates = capped
	}

	result := budget.Assemble(candidates, tokenBudget)
	result.PipelineVersion = pipelineVersion
	result.SemanticBackendUsed = backendUsed
	result.GraphCandidateCount = graphCandidateCount
	result.SemanticHitCount = len(evidence)
	result.SessionID = sessionID

	if epStore != nil && sessionID != "" {
		payload := fmt.Sprintf(`{"selected":%d,"dropped":%d,"tokens_used":%d}`,
			len(result.Selected), len(result.Dropped), result.BudgetReport.EstimatedUsed)
		_ = epStore.RecordEpisodeEvent(ctx, episode.EpisodeEvent{
			SessionID:   sessionID,
			EventType:   episode.EventDecision,
			PayloadJSON: &payload,
		})
	}

	return result, nil
}

func stemOf(relPath string) string {
	base := relPath
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
