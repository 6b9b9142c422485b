package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics is the recording surface instrumented code calls. A nil value
// from GetGlobalMetrics means metrics were never initialized; callers
// check for that.
type Metrics interface {
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordAgentRun(ctx context.Context, duration time.Duration, steps int, err error)
	RecordRetrieval(ctx context.Context, backend string, duration time.Duration, err error)
	RecordChunksIndexed(ctx context.Context, backend string, count int)
	SessionOpened(ctx context.Context)
	SessionClosed(ctx context.Context)
	RecordWSMessage(ctx context.Context, messageType string)
}

// PrometheusMetrics records into OTel instruments exported via the
// Prometheus registry. The zero value is a valid no-op recorder.
type PrometheusMetrics struct {
	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	agentDuration    metric.Float64Histogram
	agentRunsTotal   metric.Int64Counter
	agentStepsTotal  metric.Int64Counter
	agentErrorsTotal metric.Int64Counter

	retrievalDuration    metric.Float64Histogram
	retrievalsTotal      metric.Int64Counter
	retrievalErrorsTotal metric.Int64Counter
	chunksIndexedTotal   metric.Int64Counter

	sessionsActive  metric.Int64UpDownCounter
	wsMessagesTotal metric.Int64Counter
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))

	if err != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
	}

	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil {
		m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordAgentRun(ctx context.Context, duration time.Duration, steps int, err error) {
	if m == nil || m.agentDuration == nil {
		return
	}

	m.agentDuration.Record(ctx, duration.Seconds())
	m.agentRunsTotal.Add(ctx, 1)
	if steps > 0 {
		m.agentStepsTotal.Add(ctx, int64(steps))
	}
	if err != nil {
		m.agentErrorsTotal.Add(ctx, 1)
	}
}

func (m *PrometheusMetrics) RecordRetrieval(ctx context.Context, backend string, duration time.Duration, err error) {
	if m == nil || m.retrievalDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("backend", backend),
	}

	m.retrievalDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.retrievalsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil {
		m.retrievalErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordChunksIndexed(ctx context.Context, backend string, count int) {
	if m == nil || m.chunksIndexedTotal == nil || count <= 0 {
		return
	}
	m.chunksIndexedTotal.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("backend", backend),
	))
}

func (m *PrometheusMetrics) SessionOpened(ctx context.Context) {
	if m == nil || m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1)
}

func (m *PrometheusMetrics) SessionClosed(ctx context.Context) {
	if m == nil || m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Add(ctx, -1)
}

func (m *PrometheusMetrics) RecordWSMessage(ctx context.Context, messageType string) {
	if m == nil || m.wsMessagesTotal == nil {
		return
	}
	m.wsMessagesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", messageType),
	))
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
