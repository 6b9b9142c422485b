// Package config loads and validates the docent configuration.
//
// Configuration comes from three layers, highest priority first:
//
//  1. Environment variables (LLM_BASE_URL, RAG_TOP_K, ...)
//  2. YAML config file
//  3. Compiled defaults
//
// The YAML file is optional; a missing file means defaults plus
// environment. Any validation failure is fatal at startup.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the docent gateway.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	RAG           RAGConfig           `yaml:"rag"`
	Agent         AgentConfig         `yaml:"agent"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logger        LoggerConfig        `yaml:"logger"`
}

// Load reads, decodes, and validates configuration. path may be empty or
// point at a nonexistent file, in which case only environment variables
// and defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else {
			rawMap := map[string]any{}
			if err := yaml.Unmarshal(data, &rawMap); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			expanded := expandEnvVarsInMap(rawMap)
			if err := decodeConfig(expanded, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills every unset field across all sections.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.RAG.SetDefaults()
	c.Agent.SetDefaults()
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
	c.Logger.SetDefaults()
}

// Validate checks all sections and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.RAG.Validate(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.LLM.applyEnv()
	c.RAG.applyEnv()
	c.Agent.applyEnv()
	c.Server.applyEnv()
	c.Observability.applyEnv()
	c.Logger.applyEnv()
}

// decodeConfig decodes a YAML-derived map into the Config struct.
// WeaklyTypedInput tolerates "8000" where an int is expected, which keeps
// env-var expansion inside YAML values working.
func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	return nil
}
