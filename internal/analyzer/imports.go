package analyzer

import (
	"regexp"
	"strings"
)

var (
	jsImportRe  = regexp.MustCompile(`^\s*import\s+.+\s+from\s+['"]([^'"]+)['"]`)
	jsRequireRe = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	pyImportRe  = regexp.MustCompile(`^\s*import\s+([A-Za-z0-9_.]+)`)
	pyFromRe    = regexp.MustCompile(`^\s*from\s+([A-Za-z0-9_.]+)\s+import\s+`)
	rustUseRe   = regexp.MustCompile(`^\s*use\s+([^;]+);`)
	goImportRe  = regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`)
)

// extractImports scans every line against each language's import pattern,
// independent of the file's detected language — a file can embed foreign
// syntax in comments or generated blocks, and the upstream implementation
// makes no attempt to gate extraction by language either.
func extractImports(content string) []string {
	var imports []string
	for _, line := range strings.Split(content, "\n") {
		if m := jsImportRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, strings.TrimSpace(m[1]))
		}
		if m := jsRequireRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, strings.TrimSpace(m[1]))
		}
		if m := pyImportRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, strings.TrimSpace(m[1]))
		}
		if m := pyFromRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, strings.TrimSpace(m[1]))
		}
		if m := rustUseRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, strings.TrimSpace(m[1]))
		}
		if m := goImportRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, strings.TrimSpace(m[1]))
		}
	}
	return imports
}
