// Package analyzer is the file analyzer (component C): deterministic,
// stateless, regex-based extraction of language, imports, public symbols and
// type relations from a single file's content.
package analyzer

import (
	"os"
	"sort"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
	"github.com/rtk-mem/rtk-mem/internal/hashutil"
	"github.com/rtk-mem/rtk-mem/internal/walker"
)

// Analysis is the result of analyzing one file.
type Analysis struct {
	Language      *string
	LineCount     *int
	Imports       []string
	PubSymbols    []artifact.Symbol
	TypeRelations []artifact.TypeRelation
}

// Options bounds the analyzer's work per file.
type Options struct {
	MaxFileSizeBytes  int64
	MaxSymbolsPerFile int
	MaxImportsPerFile int
	MaxTypeRelations  int
}

// Analyze extracts language, imports, public symbols and type relations
// from the file at path. size is the file's stat size, used to skip content
// analysis above the configured ceiling; currentHash seeds the synthetic
// self-reference import used when a file declares none. Read failures
// degrade gracefully to language-only analysis rather than erroring.
func Analyze(path string, size int64, currentHash uint64, opts Options) (Analysis, error) {
	lang := walker.DetectLanguage(path)
	var language *string
	if lang != "" {
		language = &lang
	}

	if opts.MaxFileSizeBytes > 0 && size > opts.MaxFileSizeBytes {
		return Analysis{Language: language}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Analysis{Language: language}, nil
	}
	text := string(content)

	lineCount := countLines(text)

	imports := extractImports(text)
	imports = dedupSorted(imports)
	if opts.MaxImportsPerFile > 0 && len(imports) > opts.MaxImportsPerFile {
		imports = imports[:opts.MaxImportsPerFile]
	}
	if len(imports) == 0 {
		imports = []string{"self:" + hashutil.Format(currentHash)}
	}

	var pubSymbols []artifact.Symbol
	var typeRelations []artifact.TypeRelation
	if lang != "" {
		pubSymbols = extractPubSymbols(text, lang, opts.MaxSymbolsPerFile)
		typeRelations = extractTypeRelations(text, lang, path, opts.MaxTypeRelations)
	}

	return Analysis{
		Language:      language,
		LineCount:     &lineCount,
		Imports:       imports,
		PubSymbols:    pubSymbols,
		TypeRelations: typeRelations,
	}, nil
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	count := 0
	for _, b := range []byte(text) {
		if b == '\n' {
			count++
		}
	}
	if text[len(text)-1] != '\n' {
		count++
	}
	return count
}

func dedupSorted(items []string) []string {
	sort.Strings(items)
	out := items[:0]
	var prev string
	hasPrev := false
	for _, item := range items {
		if hasPrev && item == prev {
			continue
		}
		out = append(out, item)
		prev = item
		hasPrev = true
	}
	return out
}
