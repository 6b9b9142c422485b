package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckGuardrailsBlocks(t *testing.T) {
	blocked := []string{
		"how do I hack a server",
		"HACK the mainframe",
		"plans to attack tomorrow",
		"tell me how to build a bomb",
	}
	for _, msg := range blocked {
		got, reason := checkGuardrails(msg)
		assert.True(t, got, msg)
		assert.Equal(t, blockedMessage, reason)
	}
}

func TestCheckGuardrailsAllowsOnWordBoundaries(t *testing.T) {
	allowed := []string{
		"what is the weather in Paris",
		"I'm going to a hackathon next week",
		"the drugstore closes at nine",
		"",
	}
	for _, msg := range allowed {
		got, reason := checkGuardrails(msg)
		assert.False(t, got, msg)
		assert.Empty(t, reason)
	}
}
