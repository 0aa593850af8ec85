// Package callgraph builds an inverted symbol call graph (component G): for
// each known public symbol, which files contain a call site for it. Used to
// boost a file's ranking when a query mentions a symbol name the file
// actually invokes, independent of that file's import structure.
package callgraph

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SymbolFile pairs a file with the public symbol names it declares.
type SymbolFile struct {
	RelPath string
	Symbols []string
}

// Graph is an inverted call graph: symbol name -> rel_paths that call it.
type Graph struct {
	callerIndex map[string][]string
}

// Build reads each file under projectRoot and scans it for call sites.
func Build(allSymbols []SymbolFile, projectRoot string) *Graph {
	contentMap := make(map[string]string, len(allSymbols))
	for _, sf := range allSymbols {
		abs := filepath.Join(projectRoot, sf.RelPath)
		content, err := os.ReadFile(abs)
		if err != nil {
			continue
		}
		contentMap[sf.RelPath] = string(content)
	}
	return BuildFromContent(allSymbols, contentMap)
}

// BuildFromContent builds a call graph from a pre-loaded path->content map,
// avoiding disk reads when the caller already has file contents in hand.
func BuildFromContent(allSymbols []SymbolFile, contentMap map[string]string) *Graph {
	allKnown := make(map[string]struct{})
	for _, sf := range allSymbols {
		for _, sym := range sf.Symbols {
			allKnown[sym] = struct{}{}
		}
	}

	callerIndex := make(map[string][]string)
	for callerPath, content := range contentMap {
		for symbol := range allKnown {
			if hasCallSite(content, symbol) {
				callerIndex[symbol] = append(callerIndex[symbol], callerPath)
			}
		}
	}

	return &Graph{callerIndex: callerIndex}
}

// CallersOf returns the rel_paths known to call symbol.
func (g *Graph) CallersOf(symbol string) []string {
	return g.callerIndex[symbol]
}

// CallerScore scores relPath by the fraction of queryTags for which relPath
// calls some symbol fuzzily matching the tag (substring match either way).
// Empty tags score 0.
func (g *Graph) CallerScore(relPath string, queryTags []string) float64 {
	if len(queryTags) == 0 {
		return 0
	}
	hits := 0
	for _, tag := range queryTags {
		if g.tagHits(relPath, tag) {
			hits++
		}
	}
	score := float64(hits) / float64(len(queryTags))
	if score > 1 {
		return 1
	}
	return score
}

func (g *Graph) tagHits(relPath, tag string) bool {
	for sym, callers := range g.callerIndex {
		if !strings.Contains(sym, tag) && !strings.Contains(tag, sym) {
			continue
		}
		for _, p := range callers {
			if p == relPath {
				return true
			}
		}
	}
	return false
}

// IsEmpty reports whether the graph has no call-site entries.
func (g *Graph) IsEmpty() bool {
	return len(g.callerIndex) == 0
}

// EdgeCount returns the total number of (symbol, caller file) edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, callers := range g.callerIndex {
		n += len(callers)
	}
	return n
}

// hasCallSite reports whether content contains a call site for symbol.
// Patterns: "symbol(" (direct call), "symbol::" (module access), and
// "symbol." (selector/method call, needed for Go which has no "::").
// Symbols under 3 characters are skipped to avoid false positives, and a
// symbol that occurs only in definition lines doesn't count as called.
func hasCallSite(content, symbol string) bool {
	if len(symbol) < 3 {
		return false
	}
	callPat := symbol + "("
	modPat := symbol + "::"
	selPat := symbol + "."
	if !strings.Contains(content, callPat) && !strings.Contains(content, modPat) && !strings.Contains(content, selPat) {
		return false
	}
	return !isOnlyDefinition(content, symbol)
}

func isOnlyDefinition(content, symbol string) bool {
	callPat := symbol + "("
	modPat := symbol + "::"
	selPat := symbol + "."

	nonDefCalls := 0
	for _, line := range strings.Split(content, "\n") {
		hasCall := strings.Contains(line, callPat) || strings.Contains(line, modPat) || strings.Contains(line, selPat)
		if !hasCall {
			continue
		}
		isDef := strings.Contains(line, "fn "+symbol) ||
			strings.Contains(line, "func "+symbol) ||
			strings.Contains(line, "def "+symbol+"(") ||
			strings.Contains(line, "function "+symbol+"(") ||
			strings.Contains(line, "const "+symbol+" =") ||
			strings.Contains(line, "struct "+symbol) ||
			strings.Contains(line, "enum "+symbol) ||
			strings.Contains(line, "trait "+symbol) ||
			strings.Contains(line, "type "+symbol+" struct")
		if !isDef {
			nonDefCalls++
		}
	}
	return nonDefCalls == 0
}

var (
	cacheMu sync.Mutex
	cache   = make(map[string]*Graph)
)

// Get returns the cached graph for projectID, if any.
func Get(projectID string) (*Graph, bool) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	g, ok := cache[projectID]
	return g, ok
}

// Put stores g as the cached graph for projectID.
func Put(projectID string, g *Graph) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache[projectID] = g
}

// Invalidate drops the cached graph for projectID, forcing the next Get to
// miss. Called whenever the indexer rebuilds the project's artifact
// (cache_status != "hit").
func Invalidate(projectID string) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	delete(cache, projectID)
}
