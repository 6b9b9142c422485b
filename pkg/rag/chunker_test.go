package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerConstructorValidation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 800, 200, false},
		{"zero overlap valid", 100, 0, false},
		{"zero size", 0, 0, true},
		{"negative size", -1, 0, true},
		{"negative overlap", 100, -1, true},
		{"overlap equals size", 100, 100, true},
		{"overlap exceeds size", 100, 150, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errWindow := NewWindowChunker(tt.size, tt.overlap)
			_, errRecursive := NewRecursiveChunker(tt.size, tt.overlap)
			if tt.wantErr {
				assert.Error(t, errWindow)
				assert.Error(t, errRecursive)
			} else {
				assert.NoError(t, errWindow)
				assert.NoError(t, errRecursive)
			}
		})
	}
}

func TestWindowChunkerWindows(t *testing.T) {
	c, err := NewWindowChunker(10, 3)
	require.NoError(t, err)

	chunks := c.Chunk("abcdefghijklmnopqrstuvwxyz")
	assert.Equal(t, []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxyz"}, chunks)
}

func TestWindowChunkerShortInput(t *testing.T) {
	c, err := NewWindowChunker(800, 200)
	require.NoError(t, err)

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t  "))
	assert.Equal(t, []string{"hello world"}, c.Chunk("hello world"))
}

func TestWindowChunkerCleansInput(t *testing.T) {
	c, err := NewWindowChunker(800, 200)
	require.NoError(t, err)

	chunks := c.Chunk("  line one  \r\n  line two  \r\n")
	require.Len(t, chunks, 1)
	assert.Equal(t, "line one\nline two", chunks[0])
}

func TestWindowChunkerUnicode(t *testing.T) {
	c, err := NewWindowChunker(4, 1)
	require.NoError(t, err)

	chunks := c.Chunk("héllo wörld")
	for _, chunk := range chunks {
		assert.True(t, strings.ToValidUTF8(chunk, "") == chunk, "chunk %q must be valid UTF-8", chunk)
	}
}

func TestRecursiveChunkerShortInput(t *testing.T) {
	c, err := NewRecursiveChunker(800, 200)
	require.NoError(t, err)

	assert.Nil(t, c.Chunk(""))
	assert.Equal(t, []string{"hello world"}, c.Chunk("hello world"))
}

func TestRecursiveChunkerSplitsOnParagraphs(t *testing.T) {
	c, err := NewRecursiveChunker(20, 0)
	require.NoError(t, err)

	chunks := c.Chunk("first paragraph.\n\nsecond paragraph.\n\nthird one.")
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks, "first paragraph.")
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 20+2, "chunk %q exceeds target size", chunk)
	}
}

func TestRecursiveChunkerFallsBackToWords(t *testing.T) {
	c, err := NewRecursiveChunker(15, 0)
	require.NoError(t, err)

	chunks := c.Chunk("one two three four five six seven")
	require.Greater(t, len(chunks), 1)
	joined := strings.Join(chunks, " ")
	for _, word := range []string{"one", "two", "seven"} {
		assert.Contains(t, joined, word)
	}
}

func TestRecursiveChunkerOverlapPrefix(t *testing.T) {
	text := "alpha beta gamma delta.\n\nepsilon zeta eta theta.\n\niota kappa lambda mu."

	plain, err := NewRecursiveChunker(30, 0)
	require.NoError(t, err)
	withOverlap, err := NewRecursiveChunker(30, 8)
	require.NoError(t, err)

	base := plain.Chunk(text)
	overlapped := withOverlap.Chunk(text)
	require.Equal(t, len(base), len(overlapped))
	require.Greater(t, len(base), 1)

	assert.Equal(t, base[0], overlapped[0], "first chunk carries no overlap")
	for i := 1; i < len(base); i++ {
		assert.True(t, strings.HasSuffix(overlapped[i], base[i]),
			"chunk %d must end with its own content", i)
		assert.Greater(t, len(overlapped[i]), len(base[i]),
			"chunk %d must carry an overlap prefix", i)
	}
}

func TestRecursiveChunkerGiantToken(t *testing.T) {
	c, err := NewRecursiveChunker(10, 0)
	require.NoError(t, err)

	chunks := c.Chunk(strings.Repeat("x", 35))
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 10)
	}
	assert.Equal(t, 35, len(strings.Join(chunks, "")))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a\nb", cleanText("  a  \r\n  b  "))
	assert.Equal(t, "", cleanText("   \n \r\n "))
}
