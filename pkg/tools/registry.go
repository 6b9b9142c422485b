// Package tools holds the static tool registry exposed to the agent
// loop: safe demonstrator tools plus a whitelist expression evaluator.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docent-ai/docent/pkg/observability"
	"github.com/docent-ai/docent/pkg/registry"
)

type Registry struct {
	*registry.BaseRegistry[Tool]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Tool](),
	}
}

// NewDefaultRegistry returns a registry loaded with every built-in tool.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, tool := range []Tool{
		NewCalculatorTool(),
		NewTimeTool(),
		NewWeatherTool(),
		NewKnowledgeTool(),
	} {
		// Built-in names are distinct, so Register cannot fail here.
		_ = r.RegisterTool(tool)
	}
	return r
}

func (r *Registry) RegisterTool(tool Tool) error {
	return r.Register(tool.GetName(), tool)
}

func (r *Registry) GetTool(name string) (Tool, error) {
	tool, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("tool '%s' not found", name)
	}
	return tool, nil
}

// ListTools returns tool descriptors sorted by name.
func (r *Registry) ListTools() []ToolInfo {
	items := r.List()

	infos := make([]ToolInfo, 0, len(items))
	for _, tool := range items {
		infos = append(infos, tool.GetInfo())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Execute runs the named tool and always returns an observation string.
// Unknown tools and failed executions come back as JSON error payloads
// the agent can read and react to; the reasoning loop never crashes on
// a bad tool call.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	start := time.Now()

	tracer := observability.GetTracer("docent.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String(observability.AttrToolName, name),
		),
	)
	defer span.End()

	tool, err := r.GetTool(name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool not found")

		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordToolExecution(ctx, name, time.Since(start), err)
		}
		return errorObservation(err)
	}

	result, execErr := tool.Execute(ctx, args)
	duration := time.Since(start)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordToolExecution(ctx, name, duration, execErr)
	}

	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		return errorObservation(execErr)
	}

	span.SetStatus(codes.Ok, "success")
	span.SetAttributes(attribute.Int64("tool.duration_ms", duration.Milliseconds()))

	return result
}

type toolError struct {
	Error string `json:"error"`
}

func errorObservation(err error) string {
	out, marshalErr := json.Marshal(toolError{Error: err.Error()})
	if marshalErr != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(out)
}
