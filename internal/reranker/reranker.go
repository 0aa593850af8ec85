// Package reranker implements the Stage-2 rerank oracle referenced by
// SPEC_FULL.md's ranker section: an optional, fail-open second pass that
// re-scores Stage-1 candidates by embedding similarity to the task text.
package reranker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rtk-mem/rtk-mem/internal/ranker"
	"github.com/rtk-mem/rtk-mem/internal/vectordb"
)

// maxSnippetBytes bounds how much of a candidate file is read for
// embedding; only the leading slice of a file matters for a relevance
// snippet, and large files would otherwise dominate embedding cost.
const maxSnippetBytes = 4096

// Reranker scores candidates against a task string. Any error is fail-open
// at the call site — Stage-2 is simply skipped.
type Reranker interface {
	Rerank(ctx context.Context, task string, candidates []ranker.Candidate) ([]float64, error)
}

// ChromemReranker embeds each candidate's file snippet into an ephemeral
// in-memory chromem-go collection, queries it with the task text, and
// maps the resulting cosine-similarity scores back to [0,1] per candidate,
// in the same order as the input slice.
type ChromemReranker struct {
	ProjectRoot string
}

// New returns a Reranker rooted at projectRoot.
func New(projectRoot string) *ChromemReranker {
	return &ChromemReranker{ProjectRoot: projectRoot}
}

func (r *ChromemReranker) Rerank(ctx context.Context, task string, candidates []ranker.Candidate) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	store, err := vectordb.NewChromemStore()
	if err != nil {
		return nil, fmt.Errorf("reranker: create collection: %w", err)
	}

	docs := make([]vectordb.Document, 0, len(candidates))
	for _, c := range candidates {
		snippet, err := readSnippet(filepath.Join(r.ProjectRoot, c.RelPath), maxSnippetBytes)
		if err != nil {
			continue
		}
		docs = append(docs, vectordb.Document{
			ID:      c.RelPath,
			Content: snippet,
			Metadata: vectordb.DocumentMetadata{
				FilePath: c.RelPath,
			},
		})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("reranker: no candidate content available to embed")
	}
	if err := store.AddDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("reranker: add documents: %w", err)
	}

	results, err := store.Search(ctx, task, store.Count(), nil)
	if err != nil {
		return nil, fmt.Errorf("reranker: query: %w", err)
	}

	scoreByPath := make(map[string]float64, len(results))
	for _, res := range results {
		scoreByPath[res.Document.Metadata.FilePath] = normalizeSimilarity(float64(res.Similarity))
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = scoreByPath[c.RelPath]
	}
	return scores, nil
}

// normalizeSimilarity maps chromem-go's cosine similarity (nominally
// [-1,1] for arbitrary vectors) into [0,1].
func normalizeSimilarity(sim float64) float64 {
	v := (sim + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func readSnippet(path string, maxBytes int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, maxBytes)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "", err
	}
	return string(buf[:n]), nil
}
