package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/docent-ai/docent/pkg/utils"
)

const (
	chromemCollection = "documents"
	sidecarFile       = "sources.json"
)

// chromemSidecar records what chromem itself does not: which embedding
// model produced the vectors and how many chunks each source
// contributed. It lives next to the persisted collection so stats
// survive a restart.
type chromemSidecar struct {
	EmbeddingModel string         `json:"embedding_model"`
	Dimensions     int            `json:"dimensions"`
	Sources        map[string]int `json:"sources"`
}

// ChromemIndex is a chromem-go backed Index. With an empty path it runs
// fully in memory; with a path it persists every write under that
// directory and restores on startup.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	path       string
	embedModel string

	mu      sync.RWMutex
	sources map[string]int
	dim     int
}

var _ Index = (*ChromemIndex)(nil)

// NewChromemIndex opens (or creates) the index. Embeddings are always
// supplied by the caller, so the collection's embedding function is a
// guard that fails loudly if chromem ever tries to embed on its own.
func NewChromemIndex(path, embedModel string) (*ChromemIndex, error) {
	var db *chromem.DB
	var err error

	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store at %s: %w", path, err)
		}
	}

	idx := &ChromemIndex{
		db:         db,
		path:       path,
		embedModel: embedModel,
		sources:    make(map[string]int),
	}

	if err := idx.openCollection(); err != nil {
		return nil, err
	}
	if path != "" {
		if err := idx.restoreSidecar(); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (c *ChromemIndex) openCollection() error {
	col, err := c.db.GetOrCreateCollection(chromemCollection, nil, rejectEmbeddingFunc)
	if err != nil {
		return fmt.Errorf("failed to open collection: %w", err)
	}
	c.collection = col
	return nil
}

// rejectEmbeddingFunc is registered so any internal attempt by chromem
// to compute an embedding fails instead of silently producing vectors
// from a different model.
func rejectEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings must be computed before ingestion")
}

// restoreSidecar reloads per-source counts and validates that the
// persisted vectors came from the configured embedding model. A model
// mismatch makes every stored vector unusable, so the index is wiped
// rather than served with garbage similarities.
func (c *ChromemIndex) restoreSidecar() error {
	data, err := os.ReadFile(c.sidecarPath())
	if os.IsNotExist(err) {
		if c.collection.Count() == 0 {
			return nil
		}
		slog.Warn("Vector store has data but no metadata file, cannot verify embedding model, starting empty",
			"path", c.path, "chunks", c.collection.Count())
		if err := c.wipe(); err != nil {
			return err
		}
		return c.writeSidecar()
	}
	if err != nil {
		return fmt.Errorf("failed to read vector store metadata: %w", err)
	}

	var sc chromemSidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("failed to parse vector store metadata: %w", err)
	}

	if sc.EmbeddingModel != c.embedModel {
		slog.Warn("Vector store was built with a different embedding model, starting empty",
			"stored_model", sc.EmbeddingModel, "configured_model", c.embedModel)
		if err := c.wipe(); err != nil {
			return err
		}
		return c.writeSidecar()
	}

	if sc.Sources == nil {
		sc.Sources = make(map[string]int)
	}
	c.sources = sc.Sources
	c.dim = sc.Dimensions
	return nil
}

func (c *ChromemIndex) sidecarPath() string {
	return filepath.Join(c.path, sidecarFile)
}

// writeSidecar must be called with c.mu held (or before the index is
// shared).
func (c *ChromemIndex) writeSidecar() error {
	if c.path == "" {
		return nil
	}
	sc := chromemSidecar{
		EmbeddingModel: c.embedModel,
		Dimensions:     c.dim,
		Sources:        c.sources,
	}
	if err := utils.AtomicWriteJSON(c.sidecarPath(), sc); err != nil {
		return fmt.Errorf("failed to write vector store metadata: %w", err)
	}
	return nil
}

func (c *ChromemIndex) wipe() error {
	if err := c.db.DeleteCollection(chromemCollection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	c.sources = make(map[string]int)
	c.dim = 0
	return c.openCollection()
}

// Add indexes the chunks with their pre-computed embeddings. The
// sidecar is updated after the documents land so a crash between the
// two leaves counts stale, not vectors lost.
func (c *ChromemIndex) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dim, err := validateChunks(chunks, c.dim)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		docs = append(docs, chromem.Document{
			ID:        ch.ID,
			Content:   ch.Text,
			Metadata:  map[string]string{"source": ch.Source},
			Embedding: ch.Embedding,
		})
	}

	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	c.dim = dim
	for _, ch := range chunks {
		c.sources[ch.Source]++
	}
	return c.writeSidecar()
}

// Search returns the top k chunks by cosine similarity, optionally
// restricted to the given sources. chromem's where filter is a single
// equality, so a multi-source filter fans out one query per source and
// merges the results.
func (c *ChromemIndex) Search(ctx context.Context, vector []float32, k int, sources []string) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.dim > 0 && len(vector) != c.dim {
		return nil, fmt.Errorf("query vector has %d dimensions, index has %d", len(vector), c.dim)
	}

	total := c.collection.Count()
	if total == 0 {
		return nil, nil
	}

	if len(sources) == 0 {
		n := k
		if n > total {
			n = total
		}
		results, err := c.collection.QueryEmbedding(ctx, vector, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		return chromemMatches(results), nil
	}

	var merged []Match
	for _, src := range sources {
		count := c.sources[src]
		if count == 0 {
			continue
		}
		n := k
		if n > count {
			n = count
		}
		results, err := c.collection.QueryEmbedding(ctx, vector, n, map[string]string{"source": src}, nil)
		if err != nil {
			return nil, fmt.Errorf("query failed for source %s: %w", src, err)
		}
		merged = append(merged, chromemMatches(results)...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

func chromemMatches(results []chromem.Result) []Match {
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Chunk: Chunk{
				ID:        r.ID,
				Text:      r.Content,
				Source:    r.Metadata["source"],
				Embedding: r.Embedding,
			},
			Score: r.Similarity,
		})
	}
	return matches
}

func (c *ChromemIndex) Stats(ctx context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sources := make(map[string]int, len(c.sources))
	for src, n := range c.sources {
		sources[src] = n
	}
	return Stats{
		Chunks:  c.collection.Count(),
		Sources: sources,
	}, nil
}

// Reset drops every chunk and the persisted metadata.
func (c *ChromemIndex) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.wipe(); err != nil {
		return err
	}
	return c.writeSidecar()
}

func (c *ChromemIndex) Close() error {
	return nil
}
