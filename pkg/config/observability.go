package config

import "fmt"

// ObservabilityConfig controls metrics and tracing. Both are off by
// default; enabling them never changes request behavior.
type ObservabilityConfig struct {
	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// TracingEnabled exports OTLP spans for LLM calls, retrieval, and
	// tool execution.
	TracingEnabled bool `yaml:"tracing_enabled"`

	// TracingEndpoint is the OTLP gRPC collector address.
	TracingEndpoint string `yaml:"tracing_endpoint,omitempty"`

	// ServiceName tags exported telemetry.
	ServiceName string `yaml:"service_name,omitempty"`
}

func (c *ObservabilityConfig) SetDefaults() {
	if c.TracingEndpoint == "" {
		c.TracingEndpoint = "localhost:4317"
	}
	if c.ServiceName == "" {
		c.ServiceName = "docent"
	}
}

func (c *ObservabilityConfig) Validate() error {
	if c.TracingEnabled && c.TracingEndpoint == "" {
		return fmt.Errorf("tracing_endpoint required when tracing is enabled")
	}
	return nil
}

func (c *ObservabilityConfig) applyEnv() {
	envBool("METRICS_ENABLED", &c.MetricsEnabled)
	envBool("TRACING_ENABLED", &c.TracingEnabled)
	envString("TRACING_ENDPOINT", &c.TracingEndpoint)
}
