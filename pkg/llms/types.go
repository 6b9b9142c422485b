// Package llms implements the client for the local Ollama-compatible
// runtime: completion, streaming, model listing, and pulls.
package llms

// GenerateOptions are the sampling options sent with each completion.
// Zero values are omitted from the wire request so the runtime's own
// defaults apply.
type GenerateOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// DefaultOptions are tuned for conversational replies: warm sampling and
// stop sequences that keep small models from continuing the dialogue on
// the user's behalf.
func DefaultOptions() GenerateOptions {
	return GenerateOptions{
		Temperature: 0.7,
		TopP:        0.9,
		TopK:        40,
		NumPredict:  200,
		Stop:        []string{"\nUser:", "User:", "\n\n\n"},
	}
}

// AgentOptions are tuned for tool-loop reasoning: near-deterministic
// sampling and room for structured multi-line steps.
func AgentOptions() GenerateOptions {
	return GenerateOptions{
		Temperature: 0.1,
		NumPredict:  300,
	}
}

// StreamChunk is one unit of a streaming completion.
//
// Type is "text" for a delta, "done" when the stream finished cleanly,
// or "error" when it failed mid-flight. The producer closes the channel
// after the terminal chunk.
type StreamChunk struct {
	Type string
	Text string
	Err  error
}

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Stream  bool             `json:"stream"`
	Options *GenerateOptions `json:"options,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name       string `json:"name"`
		Size       int64  `json:"size"`
		ModifiedAt string `json:"modified_at"`
	} `json:"models"`
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}
