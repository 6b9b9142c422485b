package rag

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/observability"
	"github.com/docent-ai/docent/pkg/utils"
	"github.com/docent-ai/docent/pkg/vectordb"
)

const manualStoreFile = "rag_store.json"

// manualStore is the on-disk shape of the manual backend's index.
type manualStore struct {
	EmbeddingModelName string           `json:"embedding_model_name"`
	Chunks             []vectordb.Chunk `json:"chunks"`
}

// ManualBackend is the hand-rolled RAG stack: fixed-window chunking,
// an in-process exact-scan index, and a JSON file rewritten on every
// ingest so the index survives restarts.
type ManualBackend struct {
	chunker         *WindowChunker
	embedder        Embedder
	index           *vectordb.MemoryIndex
	topK            int
	maxContextChars int
	storeFile       string

	mu sync.Mutex
}

var _ Backend = (*ManualBackend)(nil)

func NewManualBackend(cfg *config.RAGConfig, embedder Embedder) (*ManualBackend, error) {
	chunker, err := NewWindowChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	b := &ManualBackend{
		chunker:         chunker,
		embedder:        embedder,
		index:           vectordb.NewMemoryIndex(),
		topK:            cfg.TopK,
		maxContextChars: cfg.MaxContextChars,
	}
	if cfg.VectorStorePath != "" {
		b.storeFile = filepath.Join(cfg.VectorStorePath, manualStoreFile)
		b.load()
	}
	return b, nil
}

func (b *ManualBackend) Name() string {
	return config.BackendManual
}

// load restores the persisted index. Any problem with the file (absent,
// corrupt, wrong embedding model, inconsistent vectors) means starting
// empty; a warning replaces the data, never an error.
func (b *ManualBackend) load() {
	data, err := os.ReadFile(b.storeFile)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		slog.Warn("Failed to read manual RAG store, starting empty", "file", b.storeFile, "error", err)
		return
	}

	var store manualStore
	if err := json.Unmarshal(data, &store); err != nil {
		slog.Warn("Manual RAG store is corrupt, starting empty", "file", b.storeFile, "error", err)
		return
	}
	if store.EmbeddingModelName != b.embedder.Model() {
		slog.Warn("Manual RAG store was built with a different embedding model, starting empty",
			"stored_model", store.EmbeddingModelName, "configured_model", b.embedder.Model())
		return
	}
	if err := b.index.Restore(store.Chunks); err != nil {
		slog.Warn("Manual RAG store has inconsistent chunks, starting empty", "file", b.storeFile, "error", err)
		return
	}

	slog.Info("Restored manual RAG store", "file", b.storeFile, "chunks", len(store.Chunks))
}

// save must be called with b.mu held.
func (b *ManualBackend) save() error {
	if b.storeFile == "" {
		return nil
	}
	return utils.AtomicWriteJSON(b.storeFile, manualStore{
		EmbeddingModelName: b.embedder.Model(),
		Chunks:             b.index.Snapshot(),
	})
}

func (b *ManualBackend) IngestText(ctx context.Context, text, source string) (int, error) {
	tracer := observability.GetTracer("docent.rag")
	ctx, span := tracer.Start(ctx, observability.SpanIngest,
		trace.WithAttributes(attribute.String(observability.AttrRAGBackend, b.Name())),
	)
	defer span.End()

	pieces := b.chunker.Chunk(text)
	if len(pieces) == 0 {
		return 0, nil
	}

	chunks, err := embedChunks(ctx, b.embedder, pieces, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.index.Add(ctx, chunks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	if err := b.save(); err != nil {
		slog.Warn("Failed to persist manual RAG store", "file", b.storeFile, "error", err)
	}

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordChunksIndexed(ctx, b.Name(), len(chunks))
	}
	return len(chunks), nil
}

func (b *ManualBackend) IngestFile(ctx context.Context, filename string, data []byte) (int, error) {
	text, err := Parse(filename, data)
	if err != nil {
		return 0, err
	}
	return b.IngestText(ctx, text, filepath.Base(filename))
}

func (b *ManualBackend) BuildContext(ctx context.Context, query string, topK int, sources []string) (string, []vectordb.Match, error) {
	start := time.Now()

	tracer := observability.GetTracer("docent.rag")
	ctx, span := tracer.Start(ctx, observability.SpanRetrieval,
		trace.WithAttributes(attribute.String(observability.AttrRAGBackend, b.Name())),
	)
	defer span.End()

	if topK <= 0 {
		topK = b.topK
	}

	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		err = &EmbedError{Source: "query", Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.recordRetrieval(ctx, start, err)
		return "", nil, err
	}

	matches, err := b.index.Search(ctx, vec, topK, sources)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.recordRetrieval(ctx, start, err)
		return "", nil, err
	}

	span.SetAttributes(attribute.Int("matches", len(matches)))
	b.recordRetrieval(ctx, start, nil)
	return assembleContext(matches, b.maxContextChars), matches, nil
}

func (b *ManualBackend) recordRetrieval(ctx context.Context, start time.Time, err error) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordRetrieval(ctx, b.Name(), time.Since(start), err)
	}
}

func (b *ManualBackend) Stats(ctx context.Context) (BackendStats, error) {
	stats, err := b.index.Stats(ctx)
	if err != nil {
		return BackendStats{}, err
	}
	return BackendStats{
		System:      b.Name(),
		Chunks:      stats.Chunks,
		Sources:     stats.Sources,
		EmbedModel:  b.embedder.Model(),
		Vectorstore: "memory",
	}, nil
}

func (b *ManualBackend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.index.Reset(ctx); err != nil {
		return err
	}
	return b.save()
}

// Close persists the final state. The store is also saved on every
// ingest, so this is a formality on graceful shutdown.
func (b *ManualBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.save()
}
