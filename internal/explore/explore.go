// Package explore implements the lightweight "context slice for a
// query_type" operation behind /v1/explore, /v1/context, and /v1/refresh:
// no free-text task the way the plan pipeline (component L) has, just an
// intent enum and a detail level. It indexes (or reuses) the project,
// ranks every non-noise file with the same Stage-1 model the plan
// pipeline uses, and hands the result to the budget assembler.
package explore

import (
	"context"
	"fmt"
	"sort"

	"github.com/rtk-mem/rtk-mem/internal/budget"
	"github.com/rtk-mem/rtk-mem/internal/callgraph"
	"github.com/rtk-mem/rtk-mem/internal/churn"
	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/indexer"
	"github.com/rtk-mem/rtk-mem/internal/intent"
	"github.com/rtk-mem/rtk-mem/internal/planner"
	"github.com/rtk-mem/rtk-mem/internal/ranker"
	"github.com/rtk-mem/rtk-mem/internal/store"
)

// Detail controls how much of the result is meaningful to a caller that
// only reads the top-level fields; all three levels return the same
// AssemblyResult shape, so Detail is carried through for the HTTP layer
// to decide how much of DecisionTrace/Dropped to serialize.
type Detail string

const (
	DetailCompact Detail = "compact"
	DetailNormal  Detail = "normal"
	DetailVerbose Detail = "verbose"
)

// queryTypeToIntent maps the HTTP API's query_type enum directly onto an
// intent.Kind, bypassing intent.Parse's free-text lexicon lookup since
// there is no task string to classify.
func queryTypeToIntent(queryType string) intent.Kind {
	switch queryType {
	case "bugfix":
		return intent.Bugfix
	case "feature":
		return intent.Feature
	case "refactor":
		return intent.Refactor
	case "incident":
		return intent.Incident
	default:
		return intent.Unknown
	}
}

// Result is the outcome of Context: the assembled budget result plus the
// index build state that produced it, so callers can report cache_status
// and delta counts alongside the selected files.
type Result struct {
	Assembly budget.AssemblyResult
	Build    indexer.BuildState
}

// Context indexes projectRoot (honoring forceRefresh), ranks every
// non-noise file under the query_type's intent weights, and assembles the
// result under tokenBudget (0 uses the configured default).
func Context(ctx context.Context, st *store.Store, cfg *config.Config, projectRoot, queryType string, tokenBudget uint32, forceRefresh bool) (Result, error) {
	if tokenBudget == 0 {
		tokenBudget = cfg.Plan.DefaultTokenBudget
	}

	state, err := indexer.Build(ctx, st, cfg, projectRoot, forceRefresh, true, false)
	if err != nil {
		return Result{}, fmt.Errorf("explore: index: %w", err)
	}
	if !state.CacheHit {
		if err := st.StoreArtifact(state.Artifact, cfg.Cache.MaxProjects, cfg.Cache.RetryAttempts, cfg.Cache.RetryBaseMs); err != nil {
			return Result{}, fmt.Errorf("explore: persist artifact: %w", err)
		}
	}

	churnCache, err := churn.Load(ctx, state.ProjectRoot, cfg.Churn.SinceWindow)
	if err != nil {
		churnCache = &churn.Cache{HeadSHA: "unknown", FreqMap: map[string]uint32{}}
	}

	recentPaths := make(map[string]bool, len(state.Delta.Changes))
	for _, c := range state.Delta.Changes {
		recentPaths[c.RelPath] = true
	}

	var symbolFiles []callgraph.SymbolFile
	for _, fa := range state.Artifact.Files {
		var syms []string
		for _, s := range fa.PubSymbols {
			syms = append(syms, s.Name)
		}
		symbolFiles = append(symbolFiles, callgraph.SymbolFile{RelPath: fa.RelPath, Symbols: syms})
	}
	cg := callgraph.Build(symbolFiles, state.ProjectRoot)

	var candidates []ranker.Candidate
	for _, fa := range state.Artifact.Files {
		if planner.IsNoise(fa) {
			continue
		}
		structural := float64(len(fa.PubSymbols)) / 10
		if structural > 1 {
			structural = 1
		}
		recency := 0.0
		if recentPaths[fa.RelPath] {
			recency = 1.0
		}
		testProximity := 0.0
		if ranker.IsTestFile(fa.RelPath) {
			testProximity = 0.8
		}
		rawCost := budget.EstimateTokensForPath(fa.RelPath)
		candidates = append(candidates, ranker.Candidate{
			RelPath: fa.RelPath,
			Features: ranker.FeatureVec{
				Structural:    structural,
				Churn:         churnCache.Score(fa.RelPath),
				Recency:       recency,
				Risk:          ranker.PathRiskScore(fa.RelPath),
				TestProximity: testProximity,
				CallGraph:     cg.CallerScore(fa.RelPath, nil),
				TokenCost:     minFloat(float64(rawCost)/1000, 1),
			},
			EstimatedTokens: rawCost,
			Sources:         []string{"explore"},
		})
	}

	candidates = ranker.RankStage1(candidates, queryTypeToIntent(queryType))
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	assembly := budget.Assemble(candidates, tokenBudget)
	assembly.PipelineVersion = "explore_v1"
	return Result{Assembly: assembly, Build: state}, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
