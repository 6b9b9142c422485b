package agent

import (
	"regexp"
	"strings"
)

var blockedKeywords = []string{
	"kill", "attack", "hack", "exploit", "bomb", "terror", "suicide",
	"drugs", "violence", "porn", "nude", "racist", "hate", "murder",
}

var blockedPattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(blockedKeywords, "|") + `)\b`)

const blockedMessage = "⚠️ Your message was blocked by safety guardrails. Please rephrase."

// BlockedError is returned when the guardrail screen rejects a message
// before it reaches the reasoning loop.
type BlockedError struct {
	Message string
}

func (e *BlockedError) Error() string {
	return e.Message
}

// checkGuardrails screens a user message. Returns true and the refusal
// text when the message is blocked.
func checkGuardrails(message string) (bool, string) {
	if blockedPattern.MatchString(message) {
		return true, blockedMessage
	}
	return false, ""
}
