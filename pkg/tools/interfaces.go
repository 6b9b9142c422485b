package tools

import "context"

// ToolInfo describes a registered tool to the agent and to API clients.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Tool is a callable the agent may invoke. Execute returns the
// observation string that is fed back into the reasoning loop.
type Tool interface {
	GetInfo() ToolInfo

	Execute(ctx context.Context, args map[string]interface{}) (string, error)

	GetName() string

	GetDescription() string
}
