// Package agent implements the bounded ReAct loop: the model reasons in
// THOUGHT/ACTION/FINAL_ANSWER steps, tools execute through the registry,
// and every run is capped at a fixed number of iterations.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/docent-ai/docent/pkg/llms"
	"github.com/docent-ai/docent/pkg/observability"
	"github.com/docent-ai/docent/pkg/tools"
	"github.com/docent-ai/docent/pkg/utils"
)

// historyTokenBudget bounds the conversation history carried between
// runs. Older turns fall off first; the turn being answered never does.
const historyTokenBudget = 4000

type StepType string

const (
	StepToolCall StepType = "tool_call"
	StepFinal    StepType = "final"
	StepError    StepType = "error"
)

// Step is one entry in a run's trace.
type Step struct {
	Type    StepType               `json:"type"`
	Content string                 `json:"content,omitempty"`
	Thought string                 `json:"thought,omitempty"`
	Tool    string                 `json:"tool,omitempty"`
	Input   map[string]interface{} `json:"input,omitempty"`
	Result  string                 `json:"result,omitempty"`
	Message string                 `json:"message,omitempty"`
}

type RunResult struct {
	Answer     string   `json:"answer"`
	Trace      []Step   `json:"steps"`
	ToolsUsed  []string `json:"tools_used"`
	Iterations int      `json:"iterations"`
	Capped     bool     `json:"capped,omitempty"`
}

// Generator is the slice of the LLM client the agent needs.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts llms.GenerateOptions) (string, error)
}

// Agent runs the ReAct loop against one model with one tool registry.
// Conversation history persists across Run calls until Reset; calls on
// the same instance are serialized.
type Agent struct {
	llm      Generator
	tools    *tools.Registry
	model    string
	maxSteps int
	counter  *utils.TokenCounter

	mu      sync.Mutex
	history []utils.Message
}

func New(llm Generator, registry *tools.Registry, model string, maxSteps int) *Agent {
	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		slog.Warn("Token counter unavailable, history trimming disabled", "error", err)
	}

	return &Agent{
		llm:      llm,
		tools:    registry,
		model:    model,
		maxSteps: maxSteps,
		counter:  counter,
	}
}

func (a *Agent) Model() string {
	return a.model
}

func (a *Agent) MaxSteps() int {
	return a.maxSteps
}

func (a *Agent) ToolInfos() []tools.ToolInfo {
	return a.tools.ListTools()
}

// Reset clears the conversation history.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = nil
	slog.Info("Agent conversation history cleared")
}

// Run executes the reasoning loop for one user message.
func (a *Agent) Run(ctx context.Context, userMessage string) (*RunResult, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}
	if blocked, msg := checkGuardrails(userMessage); blocked {
		return nil, &BlockedError{Message: msg}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.run(ctx, userMessage)
}

func (a *Agent) run(ctx context.Context, userMessage string) (_ *RunResult, runErr error) {
	start := time.Now()

	tracer := observability.GetTracer("docent.agent")
	ctx, span := tracer.Start(ctx, observability.SpanAgentRun)
	defer span.End()

	result := &RunResult{Trace: []Step{}, ToolsUsed: []string{}}
	defer func() {
		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordAgentRun(ctx, time.Since(start), result.Iterations, runErr)
		}
		if runErr != nil {
			span.RecordError(runErr)
			span.SetStatus(codes.Error, runErr.Error())
			return
		}
		span.SetAttributes(
			attribute.Int("agent.iterations", result.Iterations),
			attribute.Bool("agent.capped", result.Capped),
		)
	}()

	a.history = append(a.history, utils.Message{Role: "user", Content: userMessage})
	a.trimHistory()

	var lastResponse string
	clarified := false

	for result.Iterations < a.maxSteps {
		result.Iterations++
		slog.Debug("Agent iteration", "iteration", result.Iterations, "max", a.maxSteps)

		response, err := a.llm.Generate(ctx, a.model, a.buildPrompt(), llms.AgentOptions())
		if err != nil {
			return nil, fmt.Errorf("agent step %d: %w", result.Iterations, err)
		}
		response = strings.TrimSpace(response)
		lastResponse = response

		parsed := parseResponse(response)
		switch parsed.Kind {
		case responseFinal:
			return a.finish(result, response, parsed.Answer), nil

		case responseToolCall:
			args := parseToolArgs(parsed.ArgsRaw)
			observation := a.tools.Execute(ctx, parsed.Tool, args)

			result.Trace = append(result.Trace, Step{
				Type:    StepToolCall,
				Thought: parsed.Thought,
				Tool:    parsed.Tool,
				Input:   args,
				Result:  observation,
			})
			result.ToolsUsed = appendUnique(result.ToolsUsed, parsed.Tool)

			argsJSON, _ := json.Marshal(args)
			a.history = append(a.history,
				utils.Message{Role: "assistant", Content: fmt.Sprintf("ACTION: %s\nACTION_INPUT: %s", parsed.Tool, argsJSON)},
				utils.Message{Role: "tool", Content: "TOOL_RESULT: " + observation},
			)
			a.trimHistory()

		case responseAmbiguous:
			if clarified {
				// Second malformed response, give up on the format and
				// return the raw text.
				return a.finish(result, response, response), nil
			}
			clarified = true
			result.Trace = append(result.Trace, Step{
				Type:    StepError,
				Message: "response contained both FINAL_ANSWER and ACTION",
			})
			a.history = append(a.history,
				utils.Message{Role: "assistant", Content: response},
				utils.Message{Role: "tool", Content: "TOOL_RESULT: ERROR: Your response contained both FINAL_ANSWER and ACTION. Respond with exactly one of them."},
			)

		default:
			// No markers at all: treat the raw response as the answer.
			return a.finish(result, response, response), nil
		}
	}

	// Step cap reached without a final answer.
	result.Capped = true
	slog.Warn("Agent run capped", "iterations", result.Iterations)
	return a.finish(result, lastResponse, lastResponse), nil
}

// finish appends the Final step, records the answer in history, and
// completes the result.
func (a *Agent) finish(result *RunResult, stepContent, answer string) *RunResult {
	result.Trace = append(result.Trace, Step{Type: StepFinal, Content: stepContent})
	result.Answer = answer
	a.history = append(a.history, utils.Message{Role: "assistant", Content: answer})
	return result
}

func (a *Agent) trimHistory() {
	if a.counter == nil {
		return
	}

	fitted := a.counter.FitWithinLimit(a.history, historyTokenBudget)
	if len(fitted) == 0 && len(a.history) > 0 {
		// Never trim away the turn being answered.
		fitted = a.history[len(a.history)-1:]
	}
	a.history = fitted
}

func (a *Agent) buildPrompt() string {
	var b strings.Builder
	b.WriteString(a.systemPrompt())
	b.WriteString("\n\n")

	for _, msg := range a.history {
		switch msg.Role {
		case "user":
			b.WriteString("User: " + msg.Content + "\n\n")
		case "assistant":
			b.WriteString("Assistant: " + msg.Content + "\n\n")
		case "tool":
			b.WriteString(msg.Content + "\n\n")
		}
	}

	b.WriteString("Assistant: ")
	return b.String()
}

func (a *Agent) systemPrompt() string {
	var b strings.Builder
	for _, info := range a.tools.ListTools() {
		fmt.Fprintf(&b, "- %s: %s\n", info.Name, info.Description)
		for _, p := range info.Parameters {
			requirement := "optional"
			if p.Required {
				requirement = "required"
			}
			fmt.Fprintf(&b, "  %s (%s, %s): %s\n", p.Name, p.Type, requirement, p.Description)
		}
	}
	toolsDescription := strings.TrimRight(b.String(), "\n")
	if toolsDescription == "" {
		toolsDescription = "(none)"
	}

	return fmt.Sprintf(`You are a helpful AI agent with access to tools. You can use tools to help answer questions.

Available Tools:
%s

When you need to use a tool, respond in this EXACT format:
THOUGHT: [Explain your reasoning about what you need to do]
ACTION: [tool_name]
ACTION_INPUT: {"parameter": "value"}

When you have the final answer, respond in this format:
THOUGHT: [Explain your final reasoning]
FINAL_ANSWER: [Your complete answer to the user]

Important Rules:
1. ALWAYS start with THOUGHT to explain your reasoning
2. Use ACTION when you need a tool
3. Use FINAL_ANSWER when you're done
4. Never use ACTION and FINAL_ANSWER in the same response
5. Be clear and concise
6. If a tool gives an error, try a different approach

Example:
User: What is 25 + 17?
THOUGHT: I need to calculate 25 + 17, I'll use the calculator tool.
ACTION: calculator
ACTION_INPUT: {"expression": "25 + 17"}

[After getting tool result]
THOUGHT: The calculator returned 42. This is the answer.
FINAL_ANSWER: 25 + 17 equals 42.`, toolsDescription)
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
