package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeToolFormats(t *testing.T) {
	tool := NewTimeTool()
	tool.now = func() time.Time {
		return time.Date(2026, time.August, 24, 14, 30, 5, 0, time.UTC)
	}

	out, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)

	var result timeResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "2026-08-24T14:30:05Z", result.Timestamp)
	assert.Equal(t, "2026-08-24", result.Date)
	assert.Equal(t, "14:30:05", result.Time)
	assert.Equal(t, "Monday", result.Day)
	assert.Equal(t, "It is 14:30 on Monday, August 24, 2026.", result.Message)
}

func TestWeatherToolIsDeterministicPerLocation(t *testing.T) {
	tool := NewWeatherTool()
	ctx := context.Background()

	first, err := tool.Execute(ctx, map[string]interface{}{"location": "Paris"})
	require.NoError(t, err)
	second, err := tool.Execute(ctx, map[string]interface{}{"location": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var result weatherResult
	require.NoError(t, json.Unmarshal([]byte(first), &result))
	assert.Equal(t, "Paris", result.Location)
	assert.Contains(t, result.Note, "simulated")
	assert.Contains(t, weatherConditions, result.Condition)
	assert.Regexp(t, `^-?\d+°C$`, result.Temperature)
}

func TestWeatherToolRequiresLocation(t *testing.T) {
	tool := NewWeatherTool()

	_, err := tool.Execute(context.Background(), map[string]interface{}{})
	assert.Error(t, err)

	_, err = tool.Execute(context.Background(), map[string]interface{}{"location": "  "})
	assert.Error(t, err)
}

func TestKnowledgeToolMatchesKeywords(t *testing.T) {
	tool := NewKnowledgeTool()
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]interface{}{"query": "what is golang good for"})
	require.NoError(t, err)

	var result knowledgeResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotEmpty(t, result.Results)
	assert.Equal(t, "golang", result.Results[0].Topic)
}

func TestKnowledgeToolNoMatches(t *testing.T) {
	tool := NewKnowledgeTool()

	out, err := tool.Execute(context.Background(), map[string]interface{}{"query": "zzz qqq"})
	require.NoError(t, err)

	var result knowledgeResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Empty(t, result.Results)
	assert.Equal(t, "No knowledge base entries matched this query.", result.Message)
}

func TestKnowledgeToolRequiresQuery(t *testing.T) {
	tool := NewKnowledgeTool()

	_, err := tool.Execute(context.Background(), nil)
	assert.Error(t, err)
}
