package config

import (
	"fmt"
	"strings"
)

// LLMConfig points docent at the local Ollama-compatible runtime.
type LLMConfig struct {
	// BaseURL is the runtime's HTTP root, e.g. http://localhost:11434.
	BaseURL string `yaml:"base_url,omitempty"`

	// TimeoutSeconds bounds each generation/embedding request.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// GenerationModel is the default model used for chat and agent runs.
	GenerationModel string `yaml:"generation_model,omitempty"`

	// EmbeddingModel is used for all embeddings. Indexes record the model
	// they were built with; changing this invalidates persisted stores.
	EmbeddingModel string `yaml:"embedding_model,omitempty"`
}

func (c *LLMConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 120
	}
	if c.GenerationModel == "" {
		c.GenerationModel = "gemma:2b"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "nomic-embed-text"
	}
}

func (c *LLMConfig) Validate() error {
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	return nil
}

func (c *LLMConfig) applyEnv() {
	// OLLAMA_HOST is honored as an alias for compatibility with standard
	// Ollama tooling; LLM_BASE_URL wins when both are set.
	envString("OLLAMA_HOST", &c.BaseURL)
	envString("LLM_BASE_URL", &c.BaseURL)
	envInt("LLM_TIMEOUT_SECONDS", &c.TimeoutSeconds)
	envString("LLM_GENERATION_MODEL", &c.GenerationModel)
	envString("LLM_EMBEDDING_MODEL", &c.EmbeddingModel)
}
