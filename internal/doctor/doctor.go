// Package doctor implements the diagnostic checks run by the `doctor`
// CLI subcommand (component O): integration-hook registration, cache
// artifact freshness, and binary resolution on PATH.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/indexer"
	"github.com/rtk-mem/rtk-mem/internal/store"
)

// Severity ranks a single check's outcome. Higher is worse.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarn
	SeverityFail
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityWarn:
		return "warn"
	default:
		return "fail"
	}
}

// Finding is the result of a single doctor check.
type Finding struct {
	Name     string   `json:"name"`
	Severity Severity `json:"-"`
	Message  string   `json:"message"`
}

// MarshalJSON renders Severity as its string form in Finding's JSON.
func (f Finding) MarshalJSON() ([]byte, error) {
	type alias Finding
	return json.Marshal(struct {
		alias
		Severity string `json:"severity"`
	}{alias(f), f.Severity.String()})
}

// Report is the full set of findings and the exit code they imply.
type Report struct {
	Findings []Finding `json:"findings"`
}

// ExitCode reduces a report to the CLI exit code contract: 0 if every
// finding is ok, 2 if the worst finding is a warning, 1 if any finding
// failed outright.
func (r Report) ExitCode() int {
	worst := SeverityOK
	for _, f := range r.Findings {
		if f.Severity > worst {
			worst = f.Severity
		}
	}
	switch worst {
	case SeverityFail:
		return 1
	case SeverityWarn:
		return 2
	default:
		return 0
	}
}

// Run executes every check against projectRoot and returns the combined
// report. st may be nil, in which case the cache-freshness check is
// skipped with a warning rather than failing outright.
func Run(cfg *config.Config, st *store.Store, projectRoot string) Report {
	var findings []Finding
	findings = append(findings, checkIntegrationHook())
	findings = append(findings, checkCacheFreshness(cfg, st, projectRoot))
	findings = append(findings, checkBinaryOnPath())
	return Report{Findings: findings}
}

// checkIntegrationHook inspects the host agent's settings file for a
// registered PreToolUse hook invoking rtk-mem's context command.
func checkIntegrationHook() Finding {
	home, err := os.UserHomeDir()
	if err != nil {
		return Finding{Name: "integration_hook", Severity: SeverityWarn, Message: "cannot determine home directory: " + err.Error()}
	}
	settingsPath := filepath.Join(home, ".claude", "settings.json")
	raw, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Finding{Name: "integration_hook", Severity: SeverityWarn, Message: "no settings file at " + settingsPath + "; hook not installed"}
		}
		return Finding{Name: "integration_hook", Severity: SeverityFail, Message: "reading " + settingsPath + ": " + err.Error()}
	}

	var settings map[string]any
	if err := json.Unmarshal(raw, &settings); err != nil {
		return Finding{Name: "integration_hook", Severity: SeverityFail, Message: "parsing " + settingsPath + ": " + err.Error()}
	}

	if hookRegistered(settings) {
		return Finding{Name: "integration_hook", Severity: SeverityOK, Message: "rtk-mem context hook registered in " + settingsPath}
	}
	return Finding{Name: "integration_hook", Severity: SeverityWarn, Message: "rtk-mem context hook not found in " + settingsPath}
}

// hookRegistered walks settings["hooks"]["PreToolUse"] looking for a Task
// matcher entry whose command references the rtk-mem context hook script.
func hookRegistered(settings map[string]any) bool {
	hooks, _ := settings["hooks"].(map[string]any)
	if hooks == nil {
		return false
	}
	preToolUse, _ := hooks["PreToolUse"].([]any)
	for _, entryAny := range preToolUse {
		entry, ok := entryAny.(map[string]any)
		if !ok || entry["matcher"] != "Task" {
			continue
		}
		commands, _ := entry["hooks"].([]any)
		for _, cmdAny := range commands {
			cmdEntry, ok := cmdAny.(map[string]any)
			if !ok {
				continue
			}
			command, _ := cmdEntry["command"].(string)
			if strings.Contains(command, "rtk-mem-context") {
				return true
			}
		}
	}
	return false
}

// checkCacheFreshness reports whether projectRoot has a stored artifact
// and, if so, whether it's within the configured TTL.
func checkCacheFreshness(cfg *config.Config, st *store.Store, projectRoot string) Finding {
	if st == nil {
		return Finding{Name: "cache_freshness", Severity: SeverityWarn, Message: "no store available to inspect"}
	}
	root, err := indexer.CanonicalProjectRoot(projectRoot)
	if err != nil {
		return Finding{Name: "cache_freshness", Severity: SeverityFail, Message: "project root: " + err.Error()}
	}
	art, err := st.LoadArtifact(root)
	if err != nil {
		return Finding{Name: "cache_freshness", Severity: SeverityFail, Message: "loading cached artifact: " + err.Error()}
	}
	if art == nil {
		return Finding{Name: "cache_freshness", Severity: SeverityWarn, Message: "no cached artifact for " + root + "; run explore or refresh"}
	}
	if cfg.Cache.TTLSecs > 0 {
		age := time.Since(time.Unix(art.UpdatedAt, 0))
		if age > time.Duration(cfg.Cache.TTLSecs)*time.Second {
			return Finding{Name: "cache_freshness", Severity: SeverityWarn, Message: fmt.Sprintf("cached artifact is %s old, past the %ds TTL", age.Round(time.Second), cfg.Cache.TTLSecs)}
		}
	}
	return Finding{Name: "cache_freshness", Severity: SeverityOK, Message: fmt.Sprintf("cached artifact covers %d files", art.FileCount)}
}

// checkBinaryOnPath confirms the rtk-mem binary itself resolves on PATH,
// which most integration hooks assume when they shell out to it by name.
func checkBinaryOnPath() Finding {
	path, err := exec.LookPath("rtk-mem")
	if err != nil {
		return Finding{Name: "binary_on_path", Severity: SeverityWarn, Message: "rtk-mem not found on PATH: " + err.Error()}
	}
	return Finding{Name: "binary_on_path", Severity: SeverityOK, Message: "resolved to " + path}
}
