package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/observability"
	"github.com/docent-ai/docent/pkg/vectordb"
)

const qdrantCollection = "documents"

// FrameworkBackend is the library-backed RAG stack: recursive-separator
// chunking over a pluggable vector index (embedded flat or persistent
// store, or a remote Qdrant server).
type FrameworkBackend struct {
	chunker         *RecursiveChunker
	embedder        Embedder
	index           vectordb.Index
	topK            int
	maxContextChars int
	vectorstore     string

	mu sync.Mutex
}

var _ Backend = (*FrameworkBackend)(nil)

func NewFrameworkBackend(cfg *config.RAGConfig, embedder Embedder) (*FrameworkBackend, error) {
	chunker, err := NewRecursiveChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	var index vectordb.Index
	switch cfg.VectorStore {
	case config.VectorStoreFlat:
		index, err = vectordb.NewChromemIndex("", embedder.Model())
	case config.VectorStorePersistent:
		index, err = vectordb.NewChromemIndex(filepath.Join(cfg.VectorStorePath, "chromem"), embedder.Model())
	case config.VectorStoreQdrant:
		index, err = vectordb.NewQdrantIndex(cfg.QdrantHost, cfg.QdrantPort, qdrantCollection)
	default:
		return nil, fmt.Errorf("unknown vectorstore %q", cfg.VectorStore)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s vector store: %w", cfg.VectorStore, err)
	}

	return &FrameworkBackend{
		chunker:         chunker,
		embedder:        embedder,
		index:           index,
		topK:            cfg.TopK,
		maxContextChars: cfg.MaxContextChars,
		vectorstore:     cfg.VectorStore,
	}, nil
}

func (b *FrameworkBackend) Name() string {
	return config.BackendFramework
}

func (b *FrameworkBackend) IngestText(ctx context.Context, text, source string) (int, error) {
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

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordChunksIndexed(ctx, b.Name(), len(chunks))
	}
	return len(chunks), nil
}

func (b *FrameworkBackend) IngestFile(ctx context.Context, filename string, data []byte) (int, error) {
	text, err := Parse(filename, data)
	if err != nil {
		return 0, err
	}
	return b.IngestText(ctx, text, filepath.Base(filename))
}

func (b *FrameworkBackend) BuildContext(ctx context.Context, query string, topK int, sources []string) (string, []vectordb.Match, error) {
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

func (b *FrameworkBackend) recordRetrieval(ctx context.Context, start time.Time, err error) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordRetrieval(ctx, b.Name(), time.Since(start), err)
	}
}

func (b *FrameworkBackend) Stats(ctx context.Context) (BackendStats, error) {
	stats, err := b.index.Stats(ctx)
	if err != nil {
		return BackendStats{}, err
	}
	return BackendStats{
		System:      b.Name(),
		Chunks:      stats.Chunks,
		Sources:     stats.Sources,
		EmbedModel:  b.embedder.Model(),
		Vectorstore: b.vectorstore,
	}, nil
}

func (b *FrameworkBackend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Reset(ctx)
}

func (b *FrameworkBackend) Close() error {
	return b.index.Close()
}
