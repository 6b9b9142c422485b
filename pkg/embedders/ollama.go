// Package embedders produces embedding vectors via the local runtime.
package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/llms"
)

// Ollama's llama runner crashes with SIGABRT when it receives concurrent
// embedding requests, so every embed call in the process is serialized
// through this mutex.
var ollamaEmbedMu sync.Mutex

const embedMaxRetries = 3

// OllamaEmbedder calls POST /api/embeddings with a fixed model.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// NewOllamaEmbedder builds an embedder from the llm config section.
func NewOllamaEmbedder(cfg *config.LLMConfig) *OllamaEmbedder {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &OllamaEmbedder{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.EmbeddingModel,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout + 10*time.Second},
	}
}

// Embed returns the embedding vector for text. Transport failures are
// retried with linear backoff; protocol failures are not.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	slog.Debug("Embedding request", "model", e.model, "text_length", len(text))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var resp *http.Response
	var err error
	for attempt := 0; attempt < embedMaxRetries; attempt++ {
		resp, err = e.post(ctx, text)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		slog.Debug("Embedding retry", "attempt", attempt+1, "error", err)
		if attempt < embedMaxRetries-1 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}

	if err != nil {
		slog.Error("Embedding failed", "error", err, "model", e.model, "text_length", len(text))
		return nil, e.classify(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &llms.Error{Kind: llms.KindProtocol, Op: "embed",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var response embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &llms.Error{Kind: llms.KindProtocol, Op: "embed",
			Err: fmt.Errorf("malformed response: %w", err)}
	}
	if response.Error != "" {
		return nil, &llms.Error{Kind: llms.KindProtocol, Op: "embed",
			Err: fmt.Errorf("runtime error: %s", response.Error)}
	}
	if len(response.Embedding) == 0 {
		return nil, &llms.Error{Kind: llms.KindProtocol, Op: "embed",
			Err: fmt.Errorf("empty embedding")}
	}

	return response.Embedding, nil
}

func (e *OllamaEmbedder) post(ctx context.Context, text string) (*http.Response, error) {
	jsonData, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return e.httpClient.Do(req)
}

func (e *OllamaEmbedder) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		return fmt.Errorf("embed: %w", context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llms.Error{Kind: llms.KindTimeout, Op: "embed", Err: err}
	}
	return &llms.Error{Kind: llms.KindUnavailable, Op: "embed", Err: err}
}

// Model returns the embedding model name, recorded alongside every index.
func (e *OllamaEmbedder) Model() string {
	return e.model
}
