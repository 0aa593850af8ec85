// Package manifest parses a project's dependency manifest into the
// artifact.DepManifest shape shared by the indexer and budget assembler.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
)

// Parse tries, in order, go.mod, Cargo.toml, package.json, pyproject.toml
// at projectRoot and returns the manifest from the first one that parses
// successfully. Returns nil if none is present or none parses.
func Parse(projectRoot string) *artifact.DepManifest {
	if content, ok := readFile(projectRoot, "go.mod"); ok {
		if m := parseGoMod(content); m != nil {
			return m
		}
	}
	if content, ok := readFile(projectRoot, "Cargo.toml"); ok {
		if m := parseCargoToml(content); m != nil {
			return m
		}
	}
	if content, ok := readFile(projectRoot, "package.json"); ok {
		if m := parsePackageJSON(content); m != nil {
			return m
		}
	}
	if content, ok := readFile(projectRoot, "pyproject.toml"); ok {
		if m := parsePyprojectToml(content); m != nil {
			return m
		}
	}
	return nil
}

func readFile(root, name string) (string, bool) {
	path := filepath.Join(root, name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(content), true
}

// parseGoMod extracts module require lines as runtime entries. All Go
// dependencies are treated as runtime since go.mod has no separate
// dev/build dependency sections.
func parseGoMod(content string) *artifact.DepManifest {
	var runtime []artifact.ManifestEntry
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "require ("):
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			continue
		case inBlock:
			if entry, ok := parseRequireLine(trimmed); ok {
				runtime = append(runtime, entry)
			}
		case strings.HasPrefix(trimmed, "require "):
			if entry, ok := parseRequireLine(strings.TrimPrefix(trimmed, "require ")); ok {
				runtime = append(runtime, entry)
			}
		}
	}
	if len(runtime) == 0 {
		return nil
	}
	return &artifact.DepManifest{Runtime: runtime}
}

func parseRequireLine(line string) (artifact.ManifestEntry, bool) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "// indirect"))
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return artifact.ManifestEntry{}, false
	}
	return artifact.ManifestEntry{Name: fields[0], Version: fields[1]}, true
}

func parseCargoToml(content string) *artifact.DepManifest {
	var doc map[string]any
	if err := toml.Unmarshal([]byte(content), &doc); err != nil {
		return nil
	}
	extract := func(key string) []artifact.ManifestEntry {
		table, _ := doc[key].(map[string]any)
		entries := make([]artifact.ManifestEntry, 0, len(table))
		for name, val := range table {
			version := "*"
			switch v := val.(type) {
			case string:
				version = v
			case map[string]any:
				if s, ok := v["version"].(string); ok {
					version = s
				}
			}
			entries = append(entries, artifact.ManifestEntry{Name: name, Version: version})
		}
		return entries
	}
	return &artifact.DepManifest{
		Runtime: extract("dependencies"),
		Dev:     extract("dev-dependencies"),
		Build:   extract("build-dependencies"),
	}
}

func parsePackageJSON(content string) *artifact.DepManifest {
	var doc struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil
	}
	extract := func(m map[string]string) []artifact.ManifestEntry {
		entries := make([]artifact.ManifestEntry, 0, len(m))
		for name, version := range m {
			entries = append(entries, artifact.ManifestEntry{Name: name, Version: version})
		}
		return entries
	}
	return &artifact.DepManifest{
		Runtime: extract(doc.Dependencies),
		Dev:     extract(doc.DevDependencies),
	}
}

func parsePyprojectToml(content string) *artifact.DepManifest {
	var doc struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal([]byte(content), &doc); err != nil {
		return nil
	}
	runtime := make([]artifact.ManifestEntry, 0, len(doc.Project.Dependencies))
	for _, spec := range doc.Project.Dependencies {
		name, version := splitPEP508(spec)
		runtime = append(runtime, artifact.ManifestEntry{Name: name, Version: version})
	}
	return &artifact.DepManifest{Runtime: runtime}
}

var pep508Operators = []string{">=", "<=", "==", "!=", "~=", ">", "<", "["}

// splitPEP508 splits a PEP 508 dependency specifier (e.g. "requests>=2.28")
// into (name, version constraint), defaulting to "*" when unconstrained.
func splitPEP508(spec string) (string, string) {
	pos := -1
	for _, op := range pep508Operators {
		if i := strings.Index(spec, op); i >= 0 && (pos == -1 || i < pos) {
			pos = i
		}
	}
	if pos < 0 {
		return strings.TrimSpace(spec), "*"
	}
	return strings.TrimSpace(spec[:pos]), strings.TrimSpace(spec[pos:])
}
