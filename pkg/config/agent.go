package config

import "fmt"

// AgentConfig bounds the ReAct tool loop.
type AgentConfig struct {
	// MaxSteps caps reasoning iterations per run before the loop is cut
	// short with a best-effort answer.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Model overrides the generation model for agent runs. Empty means
	// use llm.generation_model.
	Model string `yaml:"model,omitempty"`
}

func (c *AgentConfig) SetDefaults() {
	if c.MaxSteps == 0 {
		c.MaxSteps = 5
	}
}

func (c *AgentConfig) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	return nil
}

func (c *AgentConfig) applyEnv() {
	envInt("AGENT_MAX_STEPS", &c.MaxSteps)
	envString("AGENT_MODEL", &c.Model)
}
