package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/docent-ai/docent/pkg/config"
)

// SchemaCmd generates JSON Schema from the config structs.
// Output is written to stdout so it can be redirected or piped.
type SchemaCmd struct {
	// Compact enables compact JSON output (no indentation)
	Compact bool `help:"Compact JSON output (no indentation)."`
}

// Run executes the schema generation command.
func (c *SchemaCmd) Run() error {
	reflector := &jsonschema.Reflector{
		// Config structs carry yaml tags, not json
		FieldNameTag: "yaml",
		// Disallow additional properties for strict validation
		AllowAdditionalProperties: false,
		// Inline all definitions (no $ref) so form generators can consume it
		DoNotReference: true,
	}

	schema := reflector.Reflect(&config.Config{})

	schema.ID = "https://docent.ai/schemas/config.json"
	schema.Title = "Docent Configuration Schema"
	schema.Description = "Configuration schema for the docent chat gateway"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schema.Examples = []interface{}{
		map[string]interface{}{
			"llm": map[string]interface{}{
				"base_url":         "http://localhost:11434",
				"generation_model": "gemma:2b",
				"embedding_model":  "nomic-embed-text",
			},
			"rag": map[string]interface{}{
				"backend_default":  "manual",
				"vectorstore":      "persistent",
				"vectorstore_path": "./data/vectors",
			},
			"server": map[string]interface{}{
				"host": "0.0.0.0",
				"port": 8000,
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	return nil
}
