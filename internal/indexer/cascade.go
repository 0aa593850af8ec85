package indexer

import (
	"path/filepath"
	"strings"

	"github.com/rtk-mem/rtk-mem/internal/artifact"
)

// ExpandDirty finds files one import-hop away from the given dirty set:
// any file whose import list plausibly references a dirtied file's path
// is marked dirty too, even though its own content hash is unchanged.
// One hop only — a file pulled in this way does not itself seed a further
// hop until the next build, matching the cascade contract.
func ExpandDirty(files []artifact.FileArtifact, dirty map[string]bool) []string {
	if len(dirty) == 0 {
		return nil
	}

	dirtyTokens := make(map[string]bool, len(dirty))
	for path := range dirty {
		dirtyTokens[moduleStem(path)] = true
	}

	var expanded []string
	for _, fa := range files {
		if dirty[fa.RelPath] {
			continue
		}
		for _, imp := range fa.Imports {
			if importReferencesAny(imp, dirtyTokens) {
				expanded = append(expanded, fa.RelPath)
				break
			}
		}
	}
	return expanded
}

// BuildImportEdges flattens every file's import list into (from, to) pairs
// for persistence via the store's artifact_edges table.
func BuildImportEdges(files []artifact.FileArtifact) [][2]string {
	var edges [][2]string
	for _, fa := range files {
		for _, imp := range fa.Imports {
			edges = append(edges, [2]string{fa.RelPath, imp})
		}
	}
	return edges
}

func importReferencesAny(imp string, tokens map[string]bool) bool {
	imp = filepath.ToSlash(strings.ToLower(imp))
	for token := range tokens {
		if token == "" {
			continue
		}
		if imp == token || strings.HasSuffix(imp, "/"+token) || strings.Contains(imp, "/"+token+"/") {
			return true
		}
		if base := filepath.Base(token); base != "." && base != "" {
			if imp == base || strings.HasSuffix(imp, "/"+base) {
				return true
			}
		}
	}
	return false
}

// moduleStem is the path with its extension removed and separators
// normalized, the loosest plausible form a file's own path takes when
// another file's import string refers to it.
func moduleStem(relPath string) string {
	relPath = filepath.ToSlash(strings.ToLower(relPath))
	if i := strings.LastIndex(relPath, "."); i > strings.LastIndex(relPath, "/") {
		relPath = relPath[:i]
	}
	return relPath
}
