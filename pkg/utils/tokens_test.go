package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenCounterUnknownModelFallsBack(t *testing.T) {
	tc, err := NewTokenCounter("gemma:2b")
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.Equal(t, "gemma:2b", tc.Model())
}

func TestCount(t *testing.T) {
	tc, err := NewTokenCounter("gemma:2b")
	require.NoError(t, err)

	assert.Zero(t, tc.Count(""))
	assert.Greater(t, tc.Count("hello world"), 0)

	short := tc.Count("hi")
	long := tc.Count(strings.Repeat("the quick brown fox ", 50))
	assert.Greater(t, long, short)
}

func TestCountMessagesIncludesOverhead(t *testing.T) {
	tc, err := NewTokenCounter("gemma:2b")
	require.NoError(t, err)

	msgs := []Message{{Role: "user", Content: "hello"}}
	withOverhead := tc.CountMessages(msgs)
	raw := tc.Count("user") + tc.Count("hello")
	assert.Equal(t, raw+3+3, withOverhead)
}

func TestFitWithinLimitKeepsMostRecent(t *testing.T) {
	tc, err := NewTokenCounter("gemma:2b")
	require.NoError(t, err)

	msgs := []Message{
		{Role: "user", Content: strings.Repeat("old conversation turn ", 30)},
		{Role: "assistant", Content: strings.Repeat("old reply text here ", 30)},
		{Role: "user", Content: "newest question"},
	}

	lastOnly := tc.CountMessages(msgs[2:])
	fitted := tc.FitWithinLimit(msgs, lastOnly+3)
	require.Len(t, fitted, 1)
	assert.Equal(t, "newest question", fitted[0].Content)

	// A generous budget keeps everything, in order.
	all := tc.FitWithinLimit(msgs, 100000)
	require.Len(t, all, 3)
	assert.Equal(t, "newest question", all[2].Content)
}

func TestFitWithinLimitEmpty(t *testing.T) {
	tc, err := NewTokenCounter("gemma:2b")
	require.NoError(t, err)
	assert.Empty(t, tc.FitWithinLimit(nil, 100))
}

func TestFitWithinLimitTinyBudget(t *testing.T) {
	tc, err := NewTokenCounter("gemma:2b")
	require.NoError(t, err)

	msgs := []Message{{Role: "user", Content: strings.Repeat("word ", 100)}}
	assert.Empty(t, tc.FitWithinLimit(msgs, 5))
}

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}

func TestEncodingCacheReuse(t *testing.T) {
	a, err := NewTokenCounter("phi3")
	require.NoError(t, err)
	b, err := NewTokenCounter("phi3")
	require.NoError(t, err)
	assert.Same(t, a.encoding, b.encoding)
}
