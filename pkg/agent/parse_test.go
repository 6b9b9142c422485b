package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResponseFinal(t *testing.T) {
	parsed := parseResponse("THOUGHT: Easy one.\nFINAL_ANSWER: Paris is the capital of France.")
	assert.Equal(t, responseFinal, parsed.Kind)
	assert.Equal(t, "Paris is the capital of France.", parsed.Answer)
}

func TestParseResponseToolCall(t *testing.T) {
	parsed := parseResponse("THOUGHT: Need math.\nACTION: calculator\nACTION_INPUT: {\"expression\": \"25 * 8\"}")
	assert.Equal(t, responseToolCall, parsed.Kind)
	assert.Equal(t, "Need math.", parsed.Thought)
	assert.Equal(t, "calculator", parsed.Tool)
	assert.Equal(t, `{"expression": "25 * 8"}`, parsed.ArgsRaw)
}

func TestParseResponseToolCallWithoutThought(t *testing.T) {
	parsed := parseResponse("ACTION: get_current_time\nACTION_INPUT: {}")
	assert.Equal(t, responseToolCall, parsed.Kind)
	assert.Empty(t, parsed.Thought)
	assert.Equal(t, "get_current_time", parsed.Tool)
	assert.Equal(t, "{}", parsed.ArgsRaw)
}

func TestParseResponseAmbiguous(t *testing.T) {
	resp := "THOUGHT: both\nACTION: calculator\nACTION_INPUT: {\"expression\": \"1\"}\nFINAL_ANSWER: 1"
	assert.Equal(t, responseAmbiguous, parseResponse(resp).Kind)
}

func TestParseResponseUnstructured(t *testing.T) {
	assert.Equal(t, responseUnstructured, parseResponse("I think the answer is 42.").Kind)
}

func TestParseResponseActionWithoutInput(t *testing.T) {
	// ACTION without ACTION_INPUT is not a parseable tool call.
	parsed := parseResponse("THOUGHT: hm\nACTION: calculator")
	assert.Equal(t, responseUnstructured, parsed.Kind)
}

func TestParseToolArgs(t *testing.T) {
	t.Run("direct JSON", func(t *testing.T) {
		args := parseToolArgs(`{"expression": "1+1"}`)
		assert.Equal(t, map[string]interface{}{"expression": "1+1"}, args)
	})

	t.Run("JSON wrapped in prose", func(t *testing.T) {
		args := parseToolArgs(`Here are the arguments: {"location": "Paris"} as requested`)
		assert.Equal(t, map[string]interface{}{"location": "Paris"}, args)
	})

	t.Run("nested braces", func(t *testing.T) {
		args := parseToolArgs(`{"outer": {"inner": "x"}}`)
		assert.Equal(t, map[string]interface{}{"outer": map[string]interface{}{"inner": "x"}}, args)
	})

	t.Run("garbage yields empty map", func(t *testing.T) {
		args := parseToolArgs("not json at all")
		assert.NotNil(t, args)
		assert.Empty(t, args)
	})

	t.Run("null yields empty map", func(t *testing.T) {
		args := parseToolArgs("null")
		assert.NotNil(t, args)
		assert.Empty(t, args)
	})
}
