// Package indexer is the orchestration layer (component D): it decides
// full vs. incremental scans, drives the analyzer and walker over a
// project tree, applies cascade invalidation, and hands back a fresh
// artifact plus the scan statistics that feed cache_status reporting.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rtk-mem/rtk-mem/internal/analyzer"
	"github.com/rtk-mem/rtk-mem/internal/artifact"
	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/delta"
	"github.com/rtk-mem/rtk-mem/internal/manifest"
	"github.com/rtk-mem/rtk-mem/internal/store"
	"github.com/rtk-mem/rtk-mem/internal/walker"
)

// NotFoundError reports a project root that does not exist or is not a
// directory.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("indexer: project root not found: %s", e.Path)
}

// StaleArtifactError reports that the cached artifact exceeded its TTL and
// a caller running in strict mode asked to be told rather than have the
// indexer silently rebuild it.
type StaleArtifactError struct {
	ProjectRoot string
}

func (e *StaleArtifactError) Error() string {
	return fmt.Sprintf("indexer: cached artifact for %s is stale; run refresh, or omit --strict", e.ProjectRoot)
}

// DirtyArtifactError reports that the cached artifact needed a cascade
// re-analysis (not stale, but changed) and a caller running in strict mode
// asked to be told rather than have the indexer silently rebuild it.
type DirtyArtifactError struct {
	ProjectRoot string
}

func (e *DirtyArtifactError) Error() string {
	return fmt.Sprintf("indexer: cached artifact for %s changed since it was last read; run refresh, or omit --strict", e.ProjectRoot)
}

// CheckStrict turns a build whose CacheStatus shows it needed an automatic
// rebuild into a typed error, for callers running in strict mode (§7:
// StaleArtifactError/DirtyArtifactError are raised only under strict mode
// and bail instead of auto-rebuilding). Build itself always rebuilds; this
// lets a strict caller reject that result after the fact rather than
// threading a strict flag through the whole build path.
func CheckStrict(state BuildState) error {
	switch state.CacheStatus {
	case "stale_rebuild":
		return &StaleArtifactError{ProjectRoot: state.ProjectRoot}
	case "dirty_rebuild":
		return &DirtyArtifactError{ProjectRoot: state.ProjectRoot}
	default:
		return nil
	}
}

// ScanStats counts how a build's files were produced.
type ScanStats struct {
	ScannedFiles    int
	ReusedEntries   int
	RehashedEntries int
}

// BuildState is the full result of a single Build invocation.
type BuildState struct {
	ProjectRoot    string
	ProjectID      string
	PriorArtifact  *artifact.ProjectArtifact
	Artifact       *artifact.ProjectArtifact
	Stats          ScanStats
	Delta          artifact.DeltaSummary
	CacheHit       bool
	PreviousExists bool
	StalePrevious  bool
	CacheStatus    string
}

// CanonicalProjectRoot resolves root to an absolute, symlink-evaluated
// path, failing with NotFoundError if it is absent or not a directory.
func CanonicalProjectRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &NotFoundError{Path: root}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", &NotFoundError{Path: root}
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", &NotFoundError{Path: root}
	}
	return resolved, nil
}

// Build runs the full indexing algorithm: canonicalize the root, load the
// prior artifact, decide full-vs-incremental, walk and analyze the tree,
// apply cascade invalidation, compute the FS delta, and parse the
// dependency manifest. It never persists — callers store the result via
// the artifact store when CacheHit is false.
func Build(ctx context.Context, st *store.Store, cfg *config.Config, projectRoot string, forceRefresh, cascadeEnabled, verbose bool) (BuildState, error) {
	root, err := CanonicalProjectRoot(projectRoot)
	if err != nil {
		return BuildState{}, err
	}
	projectID := store.ProjectCacheKey(root)

	prior, err := st.LoadArtifact(root)
	if err != nil {
		return BuildState{}, fmt.Errorf("indexer: load prior artifact: %w", err)
	}
	previousExists := prior != nil
	stalePrevious := previousExists && store.IsArtifactStale(prior, cfg.Cache.TTLSecs)

	fullScan := forceRefresh || stalePrevious || !previousExists

	priorByPath := make(map[string]artifact.FileArtifact)
	if prior != nil {
		for _, fa := range prior.Files {
			priorByPath[fa.RelPath] = fa
		}
	}

	files, err := walker.Walk(walker.WalkerConfig{
		RootDir: root,
		Include: cfg.Include,
		Exclude: cfg.Exclude,
	})
	if err != nil {
		return BuildState{}, fmt.Errorf("indexer: walk: %w", err)
	}

	opts := analyzer.Options{
		MaxFileSizeBytes:  cfg.Analyzer.MaxFileSizeBytes,
		MaxSymbolsPerFile: cfg.Analyzer.MaxSymbolsPerFile,
		MaxImportsPerFile: cfg.Analyzer.MaxImportsPerFile,
		MaxTypeRelations:  cfg.Analyzer.MaxTypeRelationsPerFile,
	}

	stats := ScanStats{ScannedFiles: len(files)}
	newFiles := make([]artifact.FileArtifact, 0, len(files))
	seen := make(map[string]bool, len(files))
	dirty := make(map[string]bool)

	for _, f := range files {
		seen[f.RelPath] = true
		hashDigest, hashErr := strconv.ParseUint(f.ContentHash, 16, 64)
		if hashErr != nil {
			hashDigest = 0
		}

		if !fullScan {
			if existing, ok := priorByPath[f.RelPath]; ok && existing.Size == f.Size && existing.Hash == hashDigest {
				stats.ReusedEntries++
				newFiles = append(newFiles, existing)
				continue
			}
		}
		dirty[f.RelPath] = true

		analysis, analyzeErr := analyzer.Analyze(f.Path, f.Size, hashDigest, opts)
		if analyzeErr != nil {
			analysis = analyzer.Analysis{}
		}
		stats.RehashedEntries++

		lang := f.Language
		if analysis.Language != nil {
			lang = *analysis.Language
		}
		newFiles = append(newFiles, artifact.FileArtifact{
			RelPath:       f.RelPath,
			Size:          f.Size,
			Hash:          hashDigest,
			Language:      lang,
			LineCount:     analysis.LineCount,
			Imports:       analysis.Imports,
			PubSymbols:    analysis.PubSymbols,
			TypeRelations: analysis.TypeRelations,
		})
	}

	removed := 0
	for path := range priorByPath {
		if !seen[path] {
			removed++
		}
	}

	// Cascade invalidation: one hop through the files' import lists. Any
	// file that imports a dirtied file's module is re-analyzed even if
	// its own content hash is unchanged.
	dirtyRebuild := false
	if cascadeEnabled && len(dirty) > 0 {
		expanded := ExpandDirty(newFiles, dirty)
		if len(expanded) > 0 {
			byPath := make(map[string]int, len(newFiles))
			for i, fa := range newFiles {
				byPath[fa.RelPath] = i
			}
			for _, relPath := range expanded {
				idx, ok := byPath[relPath]
				if !ok || dirty[relPath] {
					continue
				}
				fa := newFiles[idx]
				abs := filepath.Join(root, relPath)
				hashDigest := fa.Hash
				if content, readErr := os.ReadFile(abs); readErr == nil {
					analysis, analyzeErr := analyzer.Analyze(abs, int64(len(content)), hashDigest, opts)
					if analyzeErr == nil {
						newFiles[idx] = artifact.FileArtifact{
							RelPath:       fa.RelPath,
							Size:          fa.Size,
							Hash:          fa.Hash,
							Language:      fa.Language,
							LineCount:     analysis.LineCount,
							Imports:       analysis.Imports,
							PubSymbols:    analysis.PubSymbols,
							TypeRelations: analysis.TypeRelations,
						}
						dirtyRebuild = true
					}
				}
			}
		}
	}

	sort.Slice(newFiles, func(i, j int) bool { return newFiles[i].RelPath < newFiles[j].RelPath })

	var totalBytes int64
	for _, fa := range newFiles {
		totalBytes += fa.Size
	}

	depManifest := manifest.Parse(root)

	newArtifact := &artifact.ProjectArtifact{
		SchemaVersion: artifact.Version,
		ProjectID:     projectID,
		ProjectRoot:   root,
		UpdatedAt:     time.Now().Unix(),
		FileCount:     len(newFiles),
		TotalBytes:    totalBytes,
		Files:         newFiles,
		DepManifest:   depManifest,
	}

	if st != nil {
		_ = st.StoreArtifactEdges(projectID, BuildImportEdges(newFiles))
	}

	fsDelta := delta.FSDelta(prior, newArtifact)

	cacheHit := !fullScan && len(dirty) == 0 && removed == 0 && fsDelta.Added == 0 && fsDelta.Modified == 0 && fsDelta.Removed == 0

	status := "hit"
	switch {
	case !previousExists:
		status = "miss"
	case stalePrevious:
		status = "stale_rebuild"
	case dirtyRebuild:
		status = "dirty_rebuild"
	case !cacheHit:
		status = "refreshed"
	}

	if verbose {
		_ = stats
	}

	return BuildState{
		ProjectRoot:    root,
		ProjectID:      projectID,
		PriorArtifact:  prior,
		Artifact:       newArtifact,
		Stats:          stats,
		Delta:          fsDelta,
		CacheHit:       cacheHit,
		PreviousExists: previousExists,
		StalePrevious:  stalePrevious,
		CacheStatus:    status,
	}, nil
}
