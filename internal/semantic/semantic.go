// Package semantic implements the candidate-scoped semantic search stage
// (component J): a fail-open backend ladder that scores each candidate
// file's relevance to a task's free-text description, independent of the
// deterministic ranker's structural/churn/recency features.
package semantic

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rtk-mem/rtk-mem/internal/ranker"
)

// Evidence is the semantic-relevance result for one candidate file.
type Evidence struct {
	SemanticScore float64
	MatchedTerms  []string
	Snippet       string
}

const maxSnippetChars = 120

// RunStage scores candidates against task, trying ripgrep first and
// falling back to a built-in term-frequency scorer. Returns the evidence
// map and a label naming which backend produced it ("rg", "builtin",
// "builtin-no-terms", or "none" for empty input).
// Never mutates the project tree; read-only throughout.
func RunStage(ctx context.Context, task string, candidates []ranker.Candidate, projectRoot string) (map[string]Evidence, string, error) {
	if len(candidates) == 0 || strings.TrimSpace(task) == "" {
		return nil, "none", nil
	}

	if evidence, backend, ok := ripgrepBackend(ctx, task, candidates, projectRoot); ok {
		return evidence, backend, nil
	}

	evidence, backend := builtinScorer(task, candidates, projectRoot)
	return evidence, backend, nil
}

func ripgrepBackend(ctx context.Context, task string, candidates []ranker.Candidate, projectRoot string) (map[string]Evidence, string, bool) {
	if _, err := exec.LookPath("rg"); err != nil {
		return nil, "rg-unavailable", false
	}

	terms := taskTerms(task)
	if len(terms) == 0 {
		return nil, "rg-unavailable", false
	}

	pattern := strings.Join(terms, "|")
	args := []string{"--json", "--ignore-case", "-e", pattern, "--"}
	candidatePaths := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		args = append(args, c.RelPath)
		candidatePaths[c.RelPath] = struct{}{}
	}

	cmd := exec.CommandContext(ctx, "rg", args...)
	cmd.Dir = projectRoot
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, "rg-unavailable", false
	}
	if err := cmd.Start(); err != nil {
		return nil, "rg-unavailable", false
	}

	hits := make(map[string]*rgHit)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		parseRgLine(scanner.Bytes(), candidatePaths, hits)
	}
	_ = cmd.Wait()

	if len(hits) == 0 {
		return nil, "rg-nomatch", false
	}

	evidence := make(map[string]Evidence, len(hits))
	for path, h := range hits {
		evidence[path] = Evidence{
			SemanticScore: normalizeRaw(float64(h.rawScore)),
			MatchedTerms:  h.matchedTerms(),
			Snippet:       truncate(h.snippet, maxSnippetChars),
		}
	}
	return evidence, "rg", true
}

type rgHit struct {
	rawScore int
	terms    map[string]struct{}
	snippet  string
}

func (h *rgHit) matchedTerms() []string {
	out := make([]string, 0, len(h.terms))
	for t := range h.terms {
		out = append(out, t)
	}
	return out
}

// rg --json emits one JSON object per line; "match" entries carry the
// file path, the matched line text, and a submatches array whose length
// is the per-line match count.
func parseRgLine(line []byte, candidatePaths map[string]struct{}, hits map[string]*rgHit) {
	var envelope struct {
		Type string `json:"type"`
		Data struct {
			Path struct {
				Text string `json:"text"`
			} `json:"path"`
			Lines struct {
				Text string `json:"text"`
			} `json:"lines"`
			Submatches []struct {
				Match struct {
					Text string `json:"text"`
				} `json:"match"`
			} `json:"submatches"`
		} `json:"data"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil || envelope.Type != "match" {
		return
	}
	path := envelope.Data.Path.Text
	if _, ok := candidatePaths[path]; !ok {
		return
	}

	h, ok := hits[path]
	if !ok {
		h = &rgHit{terms: make(map[string]struct{})}
		hits[path] = h
	}
	h.rawScore += len(envelope.Data.Submatches)
	if h.snippet == "" {
		h.snippet = strings.TrimRight(envelope.Data.Lines.Text, "\n")
	}
	for _, sm := range envelope.Data.Submatches {
		if sm.Match.Text != "" {
			h.terms[strings.ToLower(sm.Match.Text)] = struct{}{}
		}
	}
}

// normalizeRaw maps a raw rg match count into [0,1] via tanh, so a single
// dominant file can't saturate the score while a handful of hits still
// registers clearly above zero.
func normalizeRaw(raw float64) float64 {
	score := math.Tanh(raw / 20)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func builtinScorer(task string, candidates []ranker.Candidate, projectRoot string) (map[string]Evidence, string) {
	terms := taskTerms(task)
	if len(terms) == 0 {
		return nil, "builtin-no-terms"
	}

	evidence := make(map[string]Evidence)
	for _, c := range candidates {
		content, err := os.ReadFile(filepath.Join(projectRoot, c.RelPath))
		if err != nil {
			continue
		}
		lower := strings.ToLower(string(content))

		var hitTerms []string
		totalHits := 0
		snippet := ""
		for _, term := range terms {
			count := strings.Count(lower, term)
			if count == 0 {
				continue
			}
			hitTerms = append(hitTerms, term)
			totalHits += count
			if snippet == "" {
				snippet = firstLineContaining(lower, term)
			}
		}
		if len(hitTerms) == 0 {
			continue
		}

		hitsCapped := totalHits
		if hitsCapped > 10 {
			hitsCapped = 10
		}
		score := float64(len(hitTerms))/float64(len(terms))*0.5 + float64(hitsCapped)*0.05
		if score > 1 {
			score = 1
		}
		evidence[c.RelPath] = Evidence{
			SemanticScore: score,
			MatchedTerms:  hitTerms,
			Snippet:       truncate(snippet, maxSnippetChars),
		}
	}

	return evidence, "builtin"
}

func taskTerms(task string) []string {
	var terms []string
	for _, word := range strings.Fields(task) {
		if len(word) >= 3 {
			terms = append(terms, strings.ToLower(word))
		}
	}
	return terms
}

func firstLineContaining(content, term string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, term) {
			return line
		}
	}
	return ""
}

func truncate(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars])
}
