// Package intent classifies a free-text task description into an intent
// kind, a confidence score, a risk class, and a stable fingerprint used to
// correlate episodes for the same underlying task across sessions.
//
// Classification is a fixed rule-based lexicon lookup, not a model call:
// deterministic, offline, and cheap enough to run on every episode start.
package intent

import (
	"strings"
	"unicode"

	"github.com/rtk-mem/rtk-mem/internal/hashutil"
)

// Kind is the classified intent behind a task.
type Kind string

const (
	Bugfix   Kind = "bugfix"
	Feature  Kind = "feature"
	Refactor Kind = "refactor"
	Incident Kind = "incident"
	Unknown  Kind = "unknown"
)

// RiskClass is the sensitivity tier of the domain a task touches.
type RiskClass string

const (
	RiskLow    RiskClass = "low"
	RiskMedium RiskClass = "medium"
	RiskHigh   RiskClass = "high"
)

// TaskIntent is the classification result for one task description.
type TaskIntent struct {
	Predicted      Kind      `json:"predicted"`
	Confidence     float64   `json:"confidence"`
	TaskFingerprint string   `json:"task_fingerprint"`
	ExtractedTags  []string  `json:"extracted_tags"`
	RiskClass      RiskClass `json:"risk_class"`
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "in": {}, "at": {}, "of": {}, "on": {}, "to": {},
	"do": {}, "be": {}, "we": {}, "it": {}, "as": {}, "by": {}, "or": {}, "and": {}, "for": {},
	"with": {}, "not": {}, "are": {}, "was": {}, "were": {}, "this": {}, "that": {}, "has": {},
	"have": {}, "had": {}, "will": {}, "can": {}, "should": {}, "would": {}, "when": {},
	"what": {}, "how": {}, "why": {}, "who": {}, "which": {},
}

var bugfixSignals = []string{
	"bug", "fix", "broken", "crash", "panic", "error", "fail", "failure", "regression",
	"incorrect", "wrong", "unexpected", "issue", "problem", "not working", "nil pointer",
	"null pointer", "exception", "stack trace", "traceback", "segfault", "oom", "out of memory",
	"timeout", "deadlock", "race condition", "undefined", "404", "500", "401", "403",
	"not found", "unauthorized",
}

var featureSignals = []string{
	"add", "implement", "create", "new", "feature", "support", "enable", "introduce",
	"build", "develop", "write", "make", "allow", "provide", "extend", "enhance",
	"integration", "endpoint", "api", "command", "cli", "module",
}

var refactorSignals = []string{
	"refactor", "refactoring", "restructure", "reorganize", "cleanup", "clean up",
	"simplify", "extract", "rename", "move", "split", "merge", "consolidate", "reduce",
	"eliminate", "modernize", "upgrade",
}

var incidentSignals = []string{
	"incident", "production", "prod", "outage", "degraded", "sev1", "sev2", "critical",
	"hotfix", "hot fix", "urgent", "emergency", "down", "alert", "alarm", "on-call",
	"oncall", "postmortem", "post-mortem",
}

var highRiskSignals = []string{
	"auth", "authentication", "authorization", "password", "secret", "token", "key",
	"payment", "billing", "credit card", "stripe", "checkout", "order", "transaction",
	"migration", "database", "schema", "production", "deploy", "release", "admin",
	"permission", "role", "privilege", "access control",
}

var mediumRiskSignals = []string{
	"api", "endpoint", "service", "middleware", "routing", "network", "cache", "session",
	"cookie", "storage", "file", "upload", "test", "integration", "config", "environment",
}

// Parse classifies task text into a TaskIntent. projectID (the project cache
// key) is folded into the fingerprint so identical task text maps to a
// different fingerprint in different projects.
func Parse(task, projectID string) TaskIntent {
	normalized := Normalize(task)
	tags := extractTags(normalized)
	predicted, confidence := classify(normalized)
	risk := classifyRisk(normalized)
	fingerprint := buildFingerprint(normalized, projectID, predicted)
	return TaskIntent{
		Predicted:       predicted,
		Confidence:      confidence,
		TaskFingerprint: fingerprint,
		ExtractedTags:   tags,
		RiskClass:       risk,
	}
}

// Normalize lowercases task text, keeps alphanumerics plus space/colon/
// slash/underscore/dash, and collapses runs of whitespace to single spaces.
func Normalize(task string) string {
	lower := strings.ToLower(task)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" :/_-", r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func extractTags(normalized string) []string {
	var tags []string
	for _, tok := range strings.Fields(normalized) {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tags = append(tags, tok)
		if len(tags) == 20 {
			break
		}
	}
	return tags
}

func classify(normalized string) (Kind, float64) {
	scores := []struct {
		kind  Kind
		score float64
	}{
		{Bugfix, scoreSignals(normalized, bugfixSignals)},
		{Feature, scoreSignals(normalized, featureSignals)},
		{Refactor, scoreSignals(normalized, refactorSignals)},
		{Incident, scoreSignals(normalized, incidentSignals)},
	}

	total := 0.0
	best := -1
	for i, s := range scores {
		total += s.score
		if best == -1 || s.score > scores[best].score {
			best = i
		}
	}

	if best == -1 || scores[best].score <= 0 {
		return Unknown, 0.0
	}

	raw := 0.0
	if total > 0 {
		raw = scores[best].score / total
	}
	if raw < 0.4 {
		raw = 0.4
	}
	if raw > 0.95 {
		raw = 0.95
	}
	return scores[best].kind, raw
}

func scoreSignals(normalized string, signals []string) float64 {
	count := 0.0
	for _, s := range signals {
		if strings.Contains(normalized, s) {
			count++
		}
	}
	return count
}

func classifyRisk(normalized string) RiskClass {
	if scoreSignals(normalized, highRiskSignals) >= 1 {
		return RiskHigh
	}
	if scoreSignals(normalized, mediumRiskSignals) >= 1 {
		return RiskMedium
	}
	return RiskLow
}

func buildFingerprint(normalized, projectID string, k Kind) string {
	input := normalized + "|" + projectID + "|" + string(k)
	return hashutil.String(input)
}
