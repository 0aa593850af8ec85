package vectordb

import (
	"context"
	"math"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"github.com/cespare/xxhash/v2"
)

const embedDimensions = 256

// HashEmbeddingFunc is a deterministic, local, no-network embedding
// function: the classic hashing-trick (feature hashing) used by
// hashing-vectorizer style text encoders. Each lowercased word is hashed
// into one of embedDimensions buckets, with the hash's low bit choosing
// the bucket's sign so unrelated words partially cancel rather than only
// ever adding. The resulting vector is L2-normalized so chromem-go's
// cosine-similarity query scores land in a stable range.
//
// This exists because the semantic stage's rerank oracle (component I)
// needs embeddings without a hosted embedding API in the loop — no
// SPEC_FULL.md component calls a completion/embedding service directly.
func HashEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, embedDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := xxhash.Sum64String(word)
		bucket := int((h >> 1) % uint64(embedDimensions))
		if h&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec, nil
}

var _ chromem.EmbeddingFunc = HashEmbeddingFunc
