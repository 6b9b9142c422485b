package vectordb

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex is the hand-rolled in-memory index behind the manual RAG
// backend. Dense cosine search over a flat slice, ties broken by
// insertion order. All access goes through one RWMutex, so adds are
// atomic with respect to searches.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks []Chunk
	dim    int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim, err := validateChunks(chunks, m.dim)
	if err != nil {
		return err
	}
	m.dim = dim
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int, sources []string) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.chunks) == 0 {
		return nil, nil
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vector), m.dim)
	}

	filter := sourceSet(sources)

	type scored struct {
		idx   int
		score float32
	}
	candidates := make([]scored, 0, len(m.chunks))
	for i, c := range m.chunks {
		if filter != nil {
			if _, ok := filter[c.Source]; !ok {
				continue
			}
		}
		candidates = append(candidates, scored{idx: i, score: cosineSimilarity(vector, c.Embedding)})
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	matches := make([]Match, 0, k)
	for _, c := range candidates[:k] {
		matches = append(matches, Match{Chunk: m.chunks[c.idx], Score: c.score})
	}
	return matches, nil
}

func (m *MemoryIndex) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Chunks:  len(m.chunks),
		Sources: make(map[string]int),
	}
	for _, c := range m.chunks {
		stats.Sources[c.Source]++
	}
	return stats, nil
}

func (m *MemoryIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	m.dim = 0
	return nil
}

func (m *MemoryIndex) Close() error {
	return nil
}

// Snapshot returns a copy of all chunks, in insertion order. The manual
// backend serializes this to its JSON store.
func (m *MemoryIndex) Snapshot() []Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Chunk, len(m.chunks))
	copy(out, m.chunks)
	return out
}

// Restore replaces the index contents wholesale, used when loading a
// persisted snapshot at startup.
func (m *MemoryIndex) Restore(chunks []Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dim, err := validateChunks(chunks, 0)
	if err != nil {
		return err
	}
	m.chunks = append([]Chunk(nil), chunks...)
	m.dim = dim
	return nil
}

var _ Index = (*MemoryIndex)(nil)
