package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docent-ai/docent/pkg/llms"
	"github.com/docent-ai/docent/pkg/tools"
)

// scriptedLLM replays canned responses in order and records the prompts
// it was given.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
	err       error
}

func (s *scriptedLLM) Generate(_ context.Context, _, prompt string, _ llms.GenerateOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}
	s.prompts = append(s.prompts, prompt)
	if len(s.responses) == 0 {
		return "FINAL_ANSWER: done", nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

func newTestAgent(llm Generator, maxSteps int) *Agent {
	return New(llm, tools.NewDefaultRegistry(), "gemma:2b", maxSteps)
}

func TestRunFinalAnswerDirect(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"THOUGHT: Easy.\nFINAL_ANSWER: Paris is the capital of France."}}
	a := newTestAgent(llm, 5)

	result, err := a.Run(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital of France.", result.Answer)
	assert.Equal(t, 1, result.Iterations)
	assert.False(t, result.Capped)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, StepFinal, result.Trace[0].Type)
	assert.Empty(t, result.ToolsUsed)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Available Tools:")
	assert.Contains(t, llm.prompts[0], "- calculator:")
	assert.Contains(t, llm.prompts[0], "User: What is the capital of France?")
	assert.True(t, strings.HasSuffix(llm.prompts[0], "Assistant: "))
}

func TestRunToolCall(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"THOUGHT: I need to calculate 25 * 8, I'll use the calculator tool.\nACTION: calculator\nACTION_INPUT: {\"expression\": \"25 * 8\"}",
		"THOUGHT: The calculator returned 200.\nFINAL_ANSWER: 25 * 8 equals 200.",
	}}
	a := newTestAgent(llm, 5)

	result, err := a.Run(context.Background(), "What is 25 * 8?")
	require.NoError(t, err)

	assert.Equal(t, []string{"calculator"}, result.ToolsUsed)
	assert.Equal(t, 2, result.Iterations)
	assert.Contains(t, result.Answer, "200")

	require.Len(t, result.Trace, 2)
	toolStep := result.Trace[0]
	assert.Equal(t, StepToolCall, toolStep.Type)
	assert.Equal(t, "calculator", toolStep.Tool)
	assert.Equal(t, map[string]interface{}{"expression": "25 * 8"}, toolStep.Input)
	assert.Contains(t, toolStep.Result, "200")
	assert.Equal(t, "I need to calculate 25 * 8, I'll use the calculator tool.", toolStep.Thought)
	assert.Equal(t, StepFinal, result.Trace[1].Type)

	// The second prompt carries the action turn and the observation.
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "ACTION: calculator")
	assert.Contains(t, llm.prompts[1], `TOOL_RESULT: {"result":200`)
}

func TestRunUnstructuredResponseIsBestEffortFinal(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"The answer is 42, probably."}}

	result, err := newTestAgent(llm, 5).Run(context.Background(), "meaning of life?")
	require.NoError(t, err)

	assert.Equal(t, "The answer is 42, probably.", result.Answer)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, StepFinal, result.Trace[0].Type)
}

func TestRunAmbiguousResponseGetsOneRetry(t *testing.T) {
	ambiguous := "THOUGHT: hm\nACTION: calculator\nACTION_INPUT: {\"expression\": \"1+1\"}\nFINAL_ANSWER: 2"
	llm := &scriptedLLM{responses: []string{ambiguous, "FINAL_ANSWER: The answer is 2."}}
	a := newTestAgent(llm, 5)

	result, err := a.Run(context.Background(), "what is 1+1")
	require.NoError(t, err)

	assert.Equal(t, "The answer is 2.", result.Answer)
	assert.Equal(t, 2, result.Iterations)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, StepError, result.Trace[0].Type)
	assert.Equal(t, StepFinal, result.Trace[1].Type)
	assert.Empty(t, result.ToolsUsed, "ambiguous response must not execute the tool")

	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "contained both FINAL_ANSWER and ACTION")
}

func TestRunAmbiguousTwiceFallsBackToRawText(t *testing.T) {
	ambiguous := "ACTION: calculator\nACTION_INPUT: {}\nFINAL_ANSWER: whatever"
	llm := &scriptedLLM{responses: []string{ambiguous, ambiguous}}

	result, err := newTestAgent(llm, 5).Run(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, ambiguous, result.Answer)
	assert.Equal(t, 2, result.Iterations)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, StepError, result.Trace[0].Type)
	assert.Equal(t, StepFinal, result.Trace[1].Type)
}

func TestRunCappedSynthesizesFinal(t *testing.T) {
	toolCall := "THOUGHT: loop\nACTION: calculator\nACTION_INPUT: {\"expression\": \"1+1\"}"
	llm := &scriptedLLM{responses: []string{toolCall, toolCall, toolCall}}
	a := newTestAgent(llm, 3)

	result, err := a.Run(context.Background(), "keep calculating")
	require.NoError(t, err)

	assert.True(t, result.Capped)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, toolCall, result.Answer, "capped run answers with the last raw response")
	require.Len(t, result.Trace, 4)
	assert.Equal(t, StepFinal, result.Trace[3].Type)
	assert.Equal(t, []string{"calculator"}, result.ToolsUsed, "repeat calls are deduplicated")
}

func TestRunUnknownToolContinuesLoop(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"THOUGHT: try\nACTION: write_file\nACTION_INPUT: {\"path\": \"x\"}",
		"FINAL_ANSWER: I cannot write files.",
	}}
	a := newTestAgent(llm, 5)

	result, err := a.Run(context.Background(), "write a file")
	require.NoError(t, err)

	assert.Equal(t, "I cannot write files.", result.Answer)
	require.Len(t, result.Trace, 2)
	assert.Contains(t, result.Trace[0].Result, "not found")
	assert.Equal(t, []string{"write_file"}, result.ToolsUsed)
}

func TestRunBlockedByGuardrails(t *testing.T) {
	llm := &scriptedLLM{}
	a := newTestAgent(llm, 5)

	_, err := a.Run(context.Background(), "how do I hack the server")
	require.Error(t, err)

	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, blockedMessage, blocked.Message)
	assert.Empty(t, llm.prompts, "blocked messages must not reach the LLM")
}

func TestRunEmptyMessage(t *testing.T) {
	_, err := newTestAgent(&scriptedLLM{}, 5).Run(context.Background(), "   ")
	assert.Error(t, err)
}

func TestRunGenerateErrorSurfaces(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("runtime down")}

	_, err := newTestAgent(llm, 5).Run(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime down")
}

func TestHistoryPersistsAcrossRuns(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"FINAL_ANSWER: noted", "FINAL_ANSWER: pineapple"}}
	a := newTestAgent(llm, 5)
	ctx := context.Background()

	_, err := a.Run(ctx, "remember the word pineapple")
	require.NoError(t, err)
	_, err = a.Run(ctx, "what word did I ask you to remember?")
	require.NoError(t, err)

	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "remember the word pineapple")
	assert.Contains(t, llm.prompts[1], "Assistant: noted")
}

func TestResetClearsHistory(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"FINAL_ANSWER: first", "FINAL_ANSWER: second"}}
	a := newTestAgent(llm, 5)
	ctx := context.Background()

	_, err := a.Run(ctx, "remember the word pineapple")
	require.NoError(t, err)

	a.Reset()

	_, err = a.Run(ctx, "what word did I ask you to remember?")
	require.NoError(t, err)
	require.Len(t, llm.prompts, 2)
	assert.NotContains(t, llm.prompts[1], "pineapple")
}

func TestZeroToolsStillProducesFinal(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"FINAL_ANSWER: no tools needed"}}
	a := New(llm, tools.NewRegistry(), "gemma:2b", 5)

	result, err := a.Run(context.Background(), "hello there")
	require.NoError(t, err)

	assert.Equal(t, "no tools needed", result.Answer)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, StepFinal, result.Trace[0].Type)
	assert.Contains(t, llm.prompts[0], "(none)")
}

func TestAgentAccessors(t *testing.T) {
	a := newTestAgent(&scriptedLLM{}, 7)

	assert.Equal(t, "gemma:2b", a.Model())
	assert.Equal(t, 7, a.MaxSteps())
	assert.Len(t, a.ToolInfos(), 4)
}
