package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/httpclient"
	"github.com/docent-ai/docent/pkg/observability"
)

// pullTimeout bounds a model download. Pulls move gigabytes, so they get
// their own generous budget instead of the per-request timeout.
const pullTimeout = 30 * time.Minute

// Client talks to one Ollama-compatible runtime.
//
// Generation and listing fail fast so the orchestrator can surface
// problems to the user; only pulls go through the retrying client.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	pullClient *httpclient.Client
}

// NewClient builds a client from the llm config section.
func NewClient(cfg *config.LLMConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			// Per-call contexts carry the deadline; the client itself only
			// guards against connections that never progress.
			Timeout: timeout + 10*time.Second,
		},
		pullClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: pullTimeout}),
			httpclient.WithMaxRetries(2),
		),
	}
}

// Generate runs a blocking completion and returns the full response text.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	start := time.Now()

	tracer := observability.GetTracer("docent.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMGenerate,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, model),
			attribute.Bool("streaming", false),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.generate(ctx, model, prompt, opts, false)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordLLMCall(ctx, model, duration, 0, 0, err)
		}
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = classifyTransport(ctx, "generate", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var r generateResponse
	if err := json.Unmarshal(body, &r); err != nil {
		err = protocolError("generate", fmt.Errorf("malformed response: %w", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if r.Error != "" {
		err = protocolError("generate", fmt.Errorf("runtime error: %s", r.Error))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if !r.Done {
		err = protocolError("generate", fmt.Errorf("incomplete response"))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, r.PromptEvalCount),
		attribute.Int(observability.AttrLLMTokensOutput, r.EvalCount),
	)
	span.SetStatus(codes.Ok, "success")
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, model, duration, r.PromptEvalCount, r.EvalCount, nil)
	}

	return r.Response, nil
}

// GenerateStream runs a streaming completion. The returned channel yields
// text deltas and is closed by the producer after a terminal "done" or
// "error" chunk. Cancelling ctx aborts the underlying read.
func (c *Client) GenerateStream(ctx context.Context, model, prompt string, opts GenerateOptions) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk, 100)

	go func() {
		defer close(out)

		start := time.Now()
		tracer := observability.GetTracer("docent.llm")
		ctx, span := tracer.Start(ctx, observability.SpanLLMGenerate,
			trace.WithAttributes(
				attribute.String(observability.AttrLLMModel, model),
				attribute.Bool("streaming", true),
			),
		)
		defer span.End()

		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		inTokens, outTokens, err := c.stream(ctx, model, prompt, opts, out)
		duration := time.Since(start)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			select {
			case out <- StreamChunk{Type: "error", Err: err}:
			case <-ctx.Done():
			}
		} else {
			span.SetAttributes(
				attribute.Int(observability.AttrLLMTokensInput, inTokens),
				attribute.Int(observability.AttrLLMTokensOutput, outTokens),
			)
			span.SetStatus(codes.Ok, "success")
		}
		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordLLMCall(ctx, model, duration, inTokens, outTokens, err)
		}
	}()

	return out, nil
}

func (c *Client) generate(ctx context.Context, model, prompt string, opts GenerateOptions, stream bool) (*http.Response, error) {
	payload := generateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  stream,
		Options: &opts,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, protocolError("generate", fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, protocolError("generate", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, "generate", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		var errJSON struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errJSON) == nil && errJSON.Error != "" {
			return nil, protocolError("generate", fmt.Errorf("status %d: %s", resp.StatusCode, errJSON.Error))
		}
		return nil, protocolError("generate", fmt.Errorf("status %d", resp.StatusCode))
	}

	return resp, nil
}

// stream reads NDJSON deltas from the runtime and forwards them as text
// chunks, emitting one terminal "done" chunk on clean completion.
func (c *Client) stream(ctx context.Context, model, prompt string, opts GenerateOptions, out chan<- StreamChunk) (inTokens, outTokens int, err error) {
	resp, err := c.generate(ctx, model, prompt, opts, true)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	reader := bufio.NewReader(resp.Body)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var chunk generateResponse
			if jsonErr := json.Unmarshal(bytes.TrimSpace(line), &chunk); jsonErr != nil {
				return inTokens, outTokens, protocolError("generate", fmt.Errorf("malformed stream line: %w", jsonErr))
			}
			if chunk.Error != "" {
				return inTokens, outTokens, protocolError("generate", fmt.Errorf("runtime error: %s", chunk.Error))
			}
			if chunk.Response != "" {
				select {
				case out <- StreamChunk{Type: "text", Text: chunk.Response}:
				case <-ctx.Done():
					return inTokens, outTokens, classifyTransport(ctx, "generate", ctx.Err())
				}
			}
			if chunk.Done {
				inTokens = chunk.PromptEvalCount
				outTokens = chunk.EvalCount
				select {
				case out <- StreamChunk{Type: "done"}:
				case <-ctx.Done():
					return inTokens, outTokens, classifyTransport(ctx, "generate", ctx.Err())
				}
				return inTokens, outTokens, nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				// Stream ended without a done marker.
				return inTokens, outTokens, protocolError("generate", fmt.Errorf("stream ended early"))
			}
			return inTokens, outTokens, classifyTransport(ctx, "generate", readErr)
		}
	}
}

// ListModels returns the names of models installed on the runtime.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, protocolError("tags", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, "tags", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, protocolError("tags", fmt.Errorf("status %d", resp.StatusCode))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, protocolError("tags", fmt.Errorf("malformed response: %w", err))
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Pull asks the runtime to download a model. Blocking; model switches call
// this before reporting success.
func (c *Client) Pull(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()

	jsonData, err := json.Marshal(pullRequest{Name: name, Stream: false})
	if err != nil {
		return protocolError("pull", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(jsonData))
	if err != nil {
		return protocolError("pull", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// The retrying client returns both a response and an error on non-2xx
	// statuses; read the body in that case so the runtime's message survives.
	resp, err := c.pullClient.Do(req)
	if resp == nil {
		return classifyTransport(ctx, "pull", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return protocolError("pull", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var result struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return protocolError("pull", fmt.Errorf("malformed response: %w", err))
	}
	if result.Error != "" {
		return protocolError("pull", fmt.Errorf("runtime error: %s", result.Error))
	}
	if result.Status != "" && result.Status != "success" {
		return protocolError("pull", fmt.Errorf("unexpected status %q", result.Status))
	}
	return nil
}

// BaseURL reports where the client points, for health output.
func (c *Client) BaseURL() string {
	return c.baseURL
}
