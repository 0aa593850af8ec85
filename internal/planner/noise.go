package planner

import (
	"path/filepath"
	"strings"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
)

var sourceLikeLanguages = map[string]bool{
	"rust": true, "typescript": true, "javascript": true, "python": true,
	"go": true, "java": true, "kotlin": true, "swift": true, "ruby": true,
	"php": true, "scala": true, "c": true, "cpp": true, "csharp": true,
}

func isSourceLikeLanguage(language string) bool {
	return sourceLikeLanguages[language]
}

// pathQueryOverlapHits tokenizes relPath into alphanumeric runs of at
// least 3 characters and counts how many query tags appear among them.
func pathQueryOverlapHits(relPath string, queryTags []string) int {
	if len(queryTags) == 0 {
		return 0
	}
	tokens := make(map[string]bool)
	var current strings.Builder
	lower := strings.ToLower(relPath)
	flush := func() {
		if current.Len() >= 3 {
			tokens[current.String()] = true
		}
		current.Reset()
	}
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	hits := 0
	for _, tag := range queryTags {
		tag = strings.ToLower(tag)
		if len(tag) < 3 {
			continue
		}
		if tokens[tag] {
			hits++
		}
	}
	return hits
}

// tier is the candidate-pool stage a noise check runs under: 0 = legacy
// (no tier awareness, unused by the graph-first pipeline but kept so the
// unified filter matches its grounding source's full contract), 1 = Tier
// A, 2 = Tier B, 3 = Tier C (relaxed).
type tier int

const (
	tierLegacy tier = 0
	tierLevelA tier = 1
	tierLevelB tier = 2
	tierLevelC tier = 3
)

// isNoiseCandidate is the unified, language-agnostic noise filter shared
// by every tier: it excludes rtk-lock sidecars, generated review/issue
// reports, tiny source stubs, and — for Tier A/B only — docs, config, and
// test files that don't overlap the query and carry no symbols.
func isNoiseCandidate(fa artifact.FileArtifact, queryTags []string, t tier) bool {
	path := strings.ToLower(filepath.ToSlash(fa.RelPath))

	if strings.HasSuffix(path, ".rtk-lock") {
		return true
	}
	if strings.Contains(path, "/review/") || (strings.Contains(path, "/issues/") && strings.HasSuffix(path, ".md")) {
		return true
	}

	lines := 0
	if fa.LineCount != nil {
		lines = *fa.LineCount
	}
	hasSymbols := len(fa.PubSymbols) > 0
	hasImports := len(fa.Imports) > 0
	hasSemanticSignals := hasSymbols || hasImports

	isSource := isSourceLikeLanguage(fa.Language)
	isDoc := strings.HasSuffix(path, ".md") || strings.HasSuffix(path, ".rst") || strings.HasSuffix(path, ".txt")
	isConfig := fa.Language == "toml" || fa.Language == "yaml" || fa.Language == "json"
	isTextBlob := strings.HasSuffix(path, ".txt") || strings.HasSuffix(path, ".log") ||
		strings.HasSuffix(path, ".out") || strings.HasSuffix(path, ".csv")
	isTest := strings.Contains(path, "/test") || strings.Contains(path, "_test") || strings.Contains(path, "spec")
	overlap := pathQueryOverlapHits(fa.RelPath, queryTags)

	if isSource && !hasSymbols && !hasImports && lines <= 5 {
		return true
	}

	if t == tierLegacy && isTextBlob && !hasSemanticSignals {
		return true
	}

	applyOverlapFilter := t == tierLegacy || t <= tierLevelB
	if applyOverlapFilter {
		if (isDoc || isConfig) && !hasSemanticSignals && overlap == 0 {
			return true
		}
		if t != tierLegacy && isTest && overlap == 0 && !hasSymbols {
			return true
		}
	}

	if t == tierLegacy && !isSource && !isDoc && !isConfig && !hasSemanticSignals && lines <= 80 {
		return true
	}

	return false
}

// IsNoise reports whether fa would be excluded from a context slice built
// without any task text to score query-tag overlap against — the strict,
// non-tier-aware legacy contract (component M's /v1/explore path, which has
// no free-text task the way component L's plan pipeline does).
func IsNoise(fa artifact.FileArtifact) bool {
	return isNoiseCandidate(fa, nil, tierLegacy)
}

// tierAScore scores a file for direct-seed membership: path/query-tag
// overlap dominates, a small bonus rewards source files with symbols, and
// docs/config without any overlap are zeroed outright.
func tierAScore(fa artifact.FileArtifact, queryTags []string) float64 {
	path := strings.ToLower(filepath.ToSlash(fa.RelPath))
	overlap := pathQueryOverlapHits(fa.RelPath, queryTags)
	hasSymbols := len(fa.PubSymbols) > 0

	var score float64
	if overlap > 0 {
		bonus := float64(overlap) * 0.15
		if bonus > 0.35 {
			bonus = 0.35
		}
		score += 0.5 + bonus
	}
	if isSourceLikeLanguage(fa.Language) && hasSymbols {
		score += 0.1
	}

	isDoc := strings.HasSuffix(path, ".md") || strings.HasSuffix(path, ".txt")
	isConfig := strings.HasSuffix(path, ".toml") || strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".yaml")
	if (isDoc || isConfig) && overlap == 0 {
		return 0
	}
	return score
}
