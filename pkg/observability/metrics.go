package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type MetricsConfig struct {
	Enabled bool
}

// InitMetrics builds the Prometheus-backed metrics set. The exporter
// registers with the default Prometheus registry, which the server's
// /metrics endpoint serves. Disabled config yields an empty recorder
// whose methods all no-op.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)
	meter := meterProvider.Meter("docent")

	m := &PrometheusMetrics{}

	if m.llmDuration, err = meter.Float64Histogram(
		"docent_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}
	if m.llmInputTokens, err = meter.Int64Counter(
		"docent_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}
	if m.llmOutputTokens, err = meter.Int64Counter(
		"docent_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}
	if m.llmErrorsTotal, err = meter.Int64Counter(
		"docent_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	if m.toolDuration, err = meter.Float64Histogram(
		"docent_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}
	if m.toolCallsTotal, err = meter.Int64Counter(
		"docent_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}
	if m.toolErrorsTotal, err = meter.Int64Counter(
		"docent_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	if m.agentDuration, err = meter.Float64Histogram(
		"docent_agent_run_duration_seconds",
		metric.WithDescription("Agent run duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent duration histogram: %w", err)
	}
	if m.agentRunsTotal, err = meter.Int64Counter(
		"docent_agent_runs_total",
		metric.WithDescription("Total agent runs"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent runs counter: %w", err)
	}
	if m.agentStepsTotal, err = meter.Int64Counter(
		"docent_agent_steps_total",
		metric.WithDescription("Total agent reasoning steps"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent steps counter: %w", err)
	}
	if m.agentErrorsTotal, err = meter.Int64Counter(
		"docent_agent_errors_total",
		metric.WithDescription("Total agent errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent errors counter: %w", err)
	}

	if m.retrievalDuration, err = meter.Float64Histogram(
		"docent_retrieval_duration_seconds",
		metric.WithDescription("Vector retrieval duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create retrieval duration histogram: %w", err)
	}
	if m.retrievalsTotal, err = meter.Int64Counter(
		"docent_retrievals_total",
		metric.WithDescription("Total retrievals"),
	); err != nil {
		return nil, fmt.Errorf("failed to create retrievals counter: %w", err)
	}
	if m.retrievalErrorsTotal, err = meter.Int64Counter(
		"docent_retrieval_errors_total",
		metric.WithDescription("Total retrieval errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create retrieval errors counter: %w", err)
	}
	if m.chunksIndexedTotal, err = meter.Int64Counter(
		"docent_chunks_indexed_total",
		metric.WithDescription("Total chunks added to vector indexes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create chunks indexed counter: %w", err)
	}

	if m.sessionsActive, err = meter.Int64UpDownCounter(
		"docent_ws_sessions_active",
		metric.WithDescription("Currently connected chat sessions"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active sessions counter: %w", err)
	}
	if m.wsMessagesTotal, err = meter.Int64Counter(
		"docent_ws_messages_total",
		metric.WithDescription("Total WebSocket messages processed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create ws messages counter: %w", err)
	}

	return m, nil
}
