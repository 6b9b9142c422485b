// Package orchestrator turns a chat message into a streamed answer.
//
// For each turn it resolves the RAG backend, decides between a plain and
// a context-augmented prompt, and hands the prompt to the LLM runtime.
// It also owns the two pieces of mutable gateway state the admin API can
// flip at runtime: the current generation model and the default backend
// for new sessions.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/llms"
	"github.com/docent-ai/docent/pkg/observability"
	"github.com/docent-ai/docent/pkg/rag"
	"github.com/docent-ai/docent/pkg/utils"
)

const systemPreamble = "You are a helpful AI assistant. Provide clear, concise, and accurate responses. " +
	"Prefer factual, sourced answers when context is provided."

// Streamer is the slice of the LLM client the orchestrator needs.
type Streamer interface {
	GenerateStream(ctx context.Context, model, prompt string, opts llms.GenerateOptions) (<-chan llms.StreamChunk, error)
}

// Query is one chat turn. Backend selects the RAG backend by name; empty
// means the orchestrator's current default. Sources restricts retrieval
// to the named documents; empty means no retrieval at all.
type Query struct {
	Message string
	Backend string
	Sources []string
}

// Orchestrator routes chat turns. Safe for concurrent use.
type Orchestrator struct {
	llm      Streamer
	ingestor *rag.Ingestor

	ragEnabled bool
	topK       int

	mu             sync.RWMutex
	model          string
	defaultBackend string
}

// New builds an orchestrator from the loaded configuration.
func New(llm Streamer, ingestor *rag.Ingestor, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		llm:            llm,
		ingestor:       ingestor,
		ragEnabled:     cfg.RAG.IsEnabled(),
		topK:           cfg.RAG.TopK,
		model:          cfg.LLM.GenerationModel,
		defaultBackend: cfg.RAG.BackendDefault,
	}
}

// CurrentModel returns the generation model used for chat turns.
func (o *Orchestrator) CurrentModel() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.model
}

// SetModel switches the generation model. In-flight turns keep the model
// they started with.
func (o *Orchestrator) SetModel(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if name != o.model {
		slog.Info("Generation model switched", "from", o.model, "to", name)
	}
	o.model = name
}

// DefaultBackend returns the backend new sessions start on.
func (o *Orchestrator) DefaultBackend() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.defaultBackend
}

// SetDefaultBackend switches the default backend for new sessions.
// Existing sessions keep their own selector.
func (o *Orchestrator) SetDefaultBackend(name string) error {
	if _, ok := o.ingestor.Backend(name); !ok {
		return fmt.Errorf("unknown backend %q", name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if name != o.defaultBackend {
		slog.Info("Default RAG backend switched", "from", o.defaultBackend, "to", name)
	}
	o.defaultBackend = name
	return nil
}

// RAGEnabled reports whether retrieval is globally on.
func (o *Orchestrator) RAGEnabled() bool {
	return o.ragEnabled
}

// Answer runs one chat turn and returns the LLM's delta stream. The
// channel carries text chunks followed by exactly one terminal "done" or
// "error" chunk, then closes. Retrieval failures abort the turn with an
// error rather than degrading to a context-free answer, so a broken
// embedding path never masquerades as a model that forgot the documents.
func (o *Orchestrator) Answer(ctx context.Context, q Query) (<-chan llms.StreamChunk, error) {
	message := strings.TrimSpace(q.Message)
	if message == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	tracer := observability.GetTracer("docent.orchestrator")
	ctx, span := tracer.Start(ctx, observability.SpanChatTurn)
	defer span.End()

	backendName := q.Backend
	if backendName == "" {
		backendName = o.DefaultBackend()
	}
	backend, ok := o.ingestor.Backend(backendName)
	if !ok {
		err := fmt.Errorf("unknown backend %q", backendName)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	contextBlock := ""
	retrieved := 0
	if o.ragEnabled && len(q.Sources) > 0 {
		block, matches, err := backend.BuildContext(ctx, message, o.topK, q.Sources)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("context retrieval failed: %w", err)
		}
		contextBlock = block
		retrieved = len(matches)
	}

	prompt := buildPrompt(message, contextBlock)
	model := o.CurrentModel()

	span.SetAttributes(
		attribute.String(observability.AttrRAGBackend, backend.Name()),
		attribute.String(observability.AttrLLMModel, model),
		attribute.Bool("rag.context_used", contextBlock != ""),
		attribute.Int("rag.chunks", retrieved),
	)
	slog.Debug("Dispatching chat turn",
		"backend", backend.Name(),
		"model", model,
		"rag", contextBlock != "",
		"chunks", retrieved,
		"prompt_tokens_est", utils.EstimateTokens(prompt))

	return o.llm.GenerateStream(ctx, model, prompt, llms.DefaultOptions())
}

// buildPrompt assembles the completion-style prompt. With context it
// instructs the model to stay inside the retrieved material; without it
// the preamble alone frames the exchange.
func buildPrompt(message, contextBlock string) string {
	if contextBlock == "" {
		return fmt.Sprintf("%s\n\nUser: %s\nAssistant:", systemPreamble, message)
	}
	return fmt.Sprintf("%s\n\n"+
		"You are given retrieved context from a knowledge base. Use it to answer the question.\n"+
		"If the answer isn't in the context, say you don't know.\n\n"+
		"Context:\n%s\n\n"+
		"User: %s\nAssistant:", systemPreamble, contextBlock, message)
}
