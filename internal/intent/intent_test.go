package intent

import (
	"strings"
	"testing"
)

func TestBugfixClassification(t *testing.T) {
	i := Parse("bug: jwt token not refreshing on 401", "proj1")
	if i.Predicted != Bugfix {
		t.Fatalf("expected bugfix, got %s", i.Predicted)
	}
	if i.Confidence < 0.4 {
		t.Fatalf("expected confidence >= 0.4, got %f", i.Confidence)
	}
}

func TestFeatureClassification(t *testing.T) {
	i := Parse("add support for oauth2 authentication endpoint", "proj1")
	if i.Predicted != Feature {
		t.Fatalf("expected feature, got %s", i.Predicted)
	}
}

func TestRefactorClassification(t *testing.T) {
	i := Parse("refactor the auth module to reduce duplication", "proj1")
	if i.Predicted != Refactor {
		t.Fatalf("expected refactor, got %s", i.Predicted)
	}
}

func TestIncidentClassification(t *testing.T) {
	i := Parse("production outage: payments service down sev1", "proj1")
	if i.Predicted != Incident {
		t.Fatalf("expected incident, got %s", i.Predicted)
	}
	if i.RiskClass != RiskHigh {
		t.Fatalf("expected high risk, got %s", i.RiskClass)
	}
}

func TestStableFingerprintSameProject(t *testing.T) {
	a := Parse("fix the login bug", "proj1")
	b := Parse("fix the login bug", "proj1")
	if a.TaskFingerprint != b.TaskFingerprint {
		t.Fatal("expected same fingerprint for identical task and project")
	}
}

func TestDifferentProjectsDifferentFingerprint(t *testing.T) {
	a := Parse("fix the login bug", "proj1")
	b := Parse("fix the login bug", "proj2")
	if a.TaskFingerprint == b.TaskFingerprint {
		t.Fatal("expected different fingerprint across projects")
	}
}

func TestHighRiskAuthTask(t *testing.T) {
	i := Parse("token validation broken in auth middleware", "proj1")
	if i.RiskClass != RiskHigh {
		t.Fatalf("expected high risk, got %s", i.RiskClass)
	}
}

func TestUnknownIntentEmptyInput(t *testing.T) {
	i := Parse("", "proj1")
	if i.Predicted != Unknown {
		t.Fatalf("expected unknown, got %s", i.Predicted)
	}
	if i.Confidence != 0.0 {
		t.Fatalf("expected 0 confidence, got %f", i.Confidence)
	}
}

func TestTagsStripStopwords(t *testing.T) {
	i := Parse("fix the login issue", "proj1")
	for _, tag := range i.ExtractedTags {
		if tag == "the" {
			t.Fatal("stopword leaked into extracted tags")
		}
	}
	has := func(tag string) bool {
		for _, t := range i.ExtractedTags {
			if t == tag {
				return true
			}
		}
		return false
	}
	if !has("fix") || !has("login") {
		t.Fatalf("expected fix and login in tags, got %v", i.ExtractedTags)
	}
}

func TestNormalizeStripsPunctuation(t *testing.T) {
	n := Normalize("fix bug: auth.token[refresh]!!")
	for _, c := range []string{".", "[", "]", "!"} {
		if strings.Contains(n, c) {
			t.Fatalf("expected normalized text to drop %q, got %q", c, n)
		}
	}
}

func TestNormalizePreservesColonSlash(t *testing.T) {
	n := Normalize("bug: src/auth.rs line 42")
	if !strings.Contains(n, ":") || !strings.Contains(n, "/") {
		t.Fatalf("expected colon and slash preserved, got %q", n)
	}
}
