package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// A Chunker splits document text into pieces small enough to embed.
type Chunker interface {
	Chunk(text string) []string
}

func validateChunkParams(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if size <= overlap {
		return fmt.Errorf("chunk size (%d) must be greater than overlap (%d)", size, overlap)
	}
	return nil
}

// cleanText normalizes line endings and strips the whitespace that PDF
// extraction tends to leave around lines.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// WindowChunker splits text into fixed-size character windows with a
// configured overlap between consecutive windows.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if err := validateChunkParams(size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk walks the text in windows of size characters, stepping
// size-overlap each time. The final window may be shorter. Empty input
// yields nil; input at most one window long yields a single chunk.
func (c *WindowChunker) Chunk(text string) []string {
	runes := []rune(cleanText(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			chunks = append(chunks, window)
		}

		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

// recursiveSeparators is the split hierarchy: paragraphs, then lines,
// then words, then single characters as a last resort.
var recursiveSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker splits on semantic boundaries where it can: it
// prefers paragraph breaks, falls back to line breaks, then words, then
// characters, merging pieces up to the target size and prefixing each
// chunk after the first with the tail of its predecessor as overlap.
type RecursiveChunker struct {
	size    int
	overlap int
}

func NewRecursiveChunker(size, overlap int) (*RecursiveChunker, error) {
	if err := validateChunkParams(size, overlap); err != nil {
		return nil, err
	}
	return &RecursiveChunker{size: size, overlap: overlap}, nil
}

func (c *RecursiveChunker) Chunk(text string) []string {
	text = cleanText(text)
	if text == "" {
		return nil
	}
	pieces := c.splitText(text, recursiveSeparators)
	return c.addOverlap(pieces)
}

// splitText recursively splits on the first separator present in the
// text, accumulating small pieces into chunks of at most size
// characters and recursing into pieces that are still too large.
func (c *RecursiveChunker) splitText(text string, separators []string) []string {
	if text == "" {
		return nil
	}

	separator := ""
	rest := separators
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var splits []string
	if separator == "" {
		splits = make([]string, 0, len(text))
		for _, r := range text {
			splits = append(splits, string(r))
		}
	} else {
		splits = strings.Split(text, separator)
	}

	var result []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			result = append(result, chunk)
		}
		current.Reset()
	}

	for _, split := range splits {
		piece := split
		if separator != "" {
			piece = split + separator
		}

		if current.Len() > 0 && current.Len()+len(piece) > c.size {
			flush()
		}

		if len(piece) > c.size && len(rest) > 0 {
			flush()
			result = append(result, c.splitText(split, rest)...)
			continue
		}

		current.WriteString(piece)
	}
	flush()

	return result
}

// addOverlap prefixes every chunk after the first with the tail of the
// previous chunk.
func (c *RecursiveChunker) addOverlap(chunks []string) []string {
	if len(chunks) <= 1 || c.overlap <= 0 {
		return chunks
	}

	result := make([]string, len(chunks))
	result[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		start := len(prev) - c.overlap
		if start < 0 {
			start = 0
		}
		for start < len(prev) && !utf8.RuneStart(prev[start]) {
			start++
		}
		result[i] = prev[start:] + chunks[i]
	}
	return result
}
