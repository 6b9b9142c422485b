// Package vectordb provides the vector index contract and its three
// implementations: a hand-rolled in-memory index, an embedded chromem
// index (optionally persistent), and a remote Qdrant index.
package vectordb

import (
	"context"
	"fmt"
	"math"
)

// Chunk is one embedded slice of a document. Source groups chunks into
// logical documents and must be non-empty.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Embedding []float32 `json:"embedding"`
}

// Match is one search hit. The chunk's fields are promoted, so callers
// read m.Text and m.Source directly.
type Match struct {
	Chunk
	Score float32
}

// Stats summarizes an index: total chunks and per-source counts.
type Stats struct {
	Chunks  int            `json:"chunks"`
	Sources map[string]int `json:"sources"`
}

// Index is the vector store contract shared by all backends.
//
// Add must be atomic with respect to Search: concurrent readers see the
// pre-add or post-add state, never a partial batch. Search returns the
// top k matches by cosine similarity; sources, when non-empty, restricts
// candidates to chunks whose Source is in the set.
type Index interface {
	Add(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, vector []float32, k int, sources []string) ([]Match, error)
	Stats(ctx context.Context) (Stats, error)
	Reset(ctx context.Context) error
	Close() error
}

// validateChunks rejects empty embeddings, empty sources, and dimension
// drift inside one batch. wantDim 0 means no established dimension yet.
func validateChunks(chunks []Chunk, wantDim int) (int, error) {
	dim := wantDim
	for _, c := range chunks {
		if c.Source == "" {
			return 0, fmt.Errorf("chunk %s has empty source", c.ID)
		}
		if len(c.Embedding) == 0 {
			return 0, fmt.Errorf("chunk %s has empty embedding", c.ID)
		}
		if dim == 0 {
			dim = len(c.Embedding)
		} else if len(c.Embedding) != dim {
			return 0, fmt.Errorf("chunk %s has dimension %d, index has %d", c.ID, len(c.Embedding), dim)
		}
	}
	return dim, nil
}

// cosineSimilarity computes cosine similarity with float64 accumulation.
// Zero-norm vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func sourceSet(sources []string) map[string]struct{} {
	if len(sources) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		set[s] = struct{}{}
	}
	return set
}
