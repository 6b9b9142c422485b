package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type knowledgeEntry struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`

	keywords []string
}

// knowledgeBase is the fixed demonstrator corpus behind
// search_knowledge. Real document retrieval goes through the RAG
// backends, not through this tool.
var knowledgeBase = []knowledgeEntry{
	{
		Topic:    "golang",
		Content:  "Go is a statically typed, compiled language designed at Google, known for goroutines, channels and fast builds.",
		keywords: []string{"go", "golang", "goroutine"},
	},
	{
		Topic:    "rag",
		Content:  "Retrieval-augmented generation retrieves passages relevant to a query from an index and feeds them to a language model as context for the answer.",
		keywords: []string{"rag", "retrieval", "augmented"},
	},
	{
		Topic:    "embeddings",
		Content:  "An embedding is a fixed-length numeric vector representing text, placed so that semantically similar texts map to nearby vectors.",
		keywords: []string{"embedding", "vector", "similarity"},
	},
	{
		Topic:    "llm",
		Content:  "Large language models generate text token by token conditioned on a prompt. Local runtimes such as Ollama expose them over HTTP.",
		keywords: []string{"llm", "language model", "ollama", "model"},
	},
	{
		Topic:    "websocket",
		Content:  "WebSocket provides a persistent bidirectional channel over a single TCP connection, commonly used for realtime chat applications.",
		keywords: []string{"websocket", "realtime", "chat"},
	},
}

// KnowledgeTool searches the fixed demonstrator knowledge base.
type KnowledgeTool struct{}

func NewKnowledgeTool() *KnowledgeTool {
	return &KnowledgeTool{}
}

func (t *KnowledgeTool) GetName() string {
	return "search_knowledge"
}

func (t *KnowledgeTool) GetDescription() string {
	return "Search the built-in knowledge base"
}

func (t *KnowledgeTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "search_knowledge",
		Description: "Search a small built-in knowledge base of facts about this system's domain.",
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "What to look up",
				Required:    true,
			},
		},
	}
}

type knowledgeResult struct {
	Query   string           `json:"query"`
	Results []knowledgeEntry `json:"results"`
	Message string           `json:"message"`
}

func (t *KnowledgeTool) Execute(_ context.Context, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query parameter is required")
	}

	lowered := strings.ToLower(query)
	results := make([]knowledgeEntry, 0)
	for _, entry := range knowledgeBase {
		for _, kw := range entry.keywords {
			if strings.Contains(lowered, kw) {
				results = append(results, entry)
				break
			}
		}
	}

	message := fmt.Sprintf("Found %d matching entries.", len(results))
	if len(results) == 0 {
		message = "No knowledge base entries matched this query."
	}

	out, err := json.Marshal(knowledgeResult{
		Query:   query,
		Results: results,
		Message: message,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
