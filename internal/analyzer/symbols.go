package analyzer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
)

// symbolPattern pairs a regex capturing a declaration's name (and, for
// methods, the parenthesized signature tail) with the artifact.SymbolKind
// it represents.
type symbolPattern struct {
	re   *regexp.Regexp
	kind artifact.SymbolKind
}

var goSymbolPatterns = []symbolPattern{
	{regexp.MustCompile(`^func\s+\(\s*\w+\s+\*?\w+\s*\)\s+(\w+)\s*(\([^)]*\).*)?`), artifact.SymbolMethod},
	{regexp.MustCompile(`^func\s+(\w+)\s*(\([^)]*\).*)?`), artifact.SymbolFunction},
	{regexp.MustCompile(`^type\s+(\w+)\s+struct\b`), artifact.SymbolStruct},
	{regexp.MustCompile(`^type\s+(\w+)\s+interface\b`), artifact.SymbolInterface},
	{regexp.MustCompile(`^type\s+(\w+)\s+\w`), artifact.SymbolType},
	{regexp.MustCompile(`^const\s+(\w+)\b`), artifact.SymbolConst},
	{regexp.MustCompile(`^var\s+(\w+)\b`), artifact.SymbolVar},
}

var rustSymbolPatterns = []symbolPattern{
	{regexp.MustCompile(`^\s*pub\s+fn\s+(\w+)\s*(\([^)]*\).*)?`), artifact.SymbolFunction},
	{regexp.MustCompile(`^\s*pub\s+struct\s+(\w+)`), artifact.SymbolStruct},
	{regexp.MustCompile(`^\s*pub\s+enum\s+(\w+)`), artifact.SymbolEnum},
	{regexp.MustCompile(`^\s*pub\s+trait\s+(\w+)`), artifact.SymbolTrait},
	{regexp.MustCompile(`^\s*pub\s+type\s+(\w+)`), artifact.SymbolType},
	{regexp.MustCompile(`^\s*pub\s+const\s+(\w+)`), artifact.SymbolConst},
}

var tsSymbolPatterns = []symbolPattern{
	{regexp.MustCompile(`^\s*export\s+(?:async\s+)?function\s+(\w+)\s*(\([^)]*\).*)?`), artifact.SymbolFunction},
	{regexp.MustCompile(`^\s*export\s+class\s+(\w+)`), artifact.SymbolClass},
	{regexp.MustCompile(`^\s*export\s+interface\s+(\w+)`), artifact.SymbolInterface},
	{regexp.MustCompile(`^\s*export\s+type\s+(\w+)`), artifact.SymbolType},
	{regexp.MustCompile(`^\s*export\s+(?:const|let)\s+(\w+)`), artifact.SymbolConst},
}

var pySymbolPatterns = []symbolPattern{
	{regexp.MustCompile(`^def\s+(\w+)\s*(\([^)]*\).*)?`), artifact.SymbolFunction},
	{regexp.MustCompile(`^class\s+(\w+)`), artifact.SymbolClass},
}

func patternsForLanguage(lang string) []symbolPattern {
	switch lang {
	case "go":
		return goSymbolPatterns
	case "rust":
		return rustSymbolPatterns
	case "typescript", "javascript":
		return tsSymbolPatterns
	case "python":
		return pySymbolPatterns
	default:
		return nil
	}
}

// isExported reports whether name is public by the language's own
// convention: Go/Python use a naming convention (uppercase / no leading
// underscore), Rust/TypeScript visibility is already gated by the `pub`/
// `export` keyword baked into the regex itself, so any match is public.
func isExported(lang, name string) bool {
	if name == "" {
		return false
	}
	switch lang {
	case "go":
		return unicode.IsUpper(rune(name[0]))
	case "python":
		return !strings.HasPrefix(name, "_")
	default:
		return true
	}
}

// extractPubSymbols returns the public declarations in content for the
// given language, capped at maxSymbols.
func extractPubSymbols(content, lang string, maxSymbols int) []artifact.Symbol {
	patterns := patternsForLanguage(lang)
	if patterns == nil {
		return nil
	}

	var symbols []artifact.Symbol
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimRight(line, "\r")
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			name := m[1]
			if !isExported(lang, name) {
				break
			}
			sig := ""
			if len(m) > 2 {
				sig = strings.TrimSpace(m[2])
			}
			symbols = append(symbols, artifact.Symbol{
				Kind:      p.kind,
				Name:      name,
				Signature: sig,
			})
			break
		}
		if maxSymbols > 0 && len(symbols) >= maxSymbols {
			break
		}
	}
	return symbols
}
