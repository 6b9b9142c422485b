package agent

import (
	"encoding/json"
	"strings"
)

const (
	markerThought     = "THOUGHT:"
	markerAction      = "ACTION:"
	markerActionInput = "ACTION_INPUT:"
	markerFinal       = "FINAL_ANSWER:"
)

type responseKind int

const (
	// responseUnstructured carries neither marker; the raw text is
	// treated as a best-effort final answer.
	responseUnstructured responseKind = iota
	responseFinal
	responseToolCall
	// responseAmbiguous contains both FINAL_ANSWER and a tool call.
	responseAmbiguous
)

type parsedResponse struct {
	Kind    responseKind
	Thought string
	Tool    string
	ArgsRaw string
	Answer  string
}

// parseResponse classifies one LLM step output. The classification is
// purely textual and deterministic: no retries or sampling happen here.
func parseResponse(response string) parsedResponse {
	hasFinal := strings.Contains(response, markerFinal)
	hasAction := strings.Contains(response, markerAction) &&
		strings.Contains(response, markerActionInput)

	switch {
	case hasFinal && hasAction:
		return parsedResponse{Kind: responseAmbiguous}

	case hasFinal:
		_, after, _ := strings.Cut(response, markerFinal)
		return parsedResponse{
			Kind:   responseFinal,
			Answer: strings.TrimSpace(after),
		}

	case hasAction:
		before, afterAction, _ := strings.Cut(response, markerAction)

		var thought string
		if strings.Contains(before, markerThought) {
			thought = strings.TrimSpace(strings.ReplaceAll(before, markerThought, ""))
		}

		toolPart, argsPart, _ := strings.Cut(afterAction, markerActionInput)
		return parsedResponse{
			Kind:    responseToolCall,
			Thought: thought,
			Tool:    strings.TrimSpace(toolPart),
			ArgsRaw: strings.TrimSpace(argsPart),
		}

	default:
		return parsedResponse{Kind: responseUnstructured}
	}
}

// parseToolArgs decodes the ACTION_INPUT payload. Models often wrap the
// JSON in prose, so a failed direct decode falls back to the outermost
// {...} block. Unrecoverable input yields an empty argument map; the
// tool's own validation produces the observation the agent reacts to.
func parseToolArgs(raw string) map[string]interface{} {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err == nil && args != nil {
		return args
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var fallback map[string]interface{}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &fallback); err == nil && fallback != nil {
			return fallback
		}
	}

	return map[string]interface{}{}
}
