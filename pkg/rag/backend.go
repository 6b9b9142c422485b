package rag

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/pkg/vectordb"
)

const contextSeparator = "\n\n---\n\n"

// Embedder turns text into a vector. Satisfied by
// embedders.OllamaEmbedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// BackendStats summarizes one backend's index.
type BackendStats struct {
	System      string         `json:"system"`
	Chunks      int            `json:"chunks"`
	Sources     map[string]int `json:"sources"`
	EmbedModel  string         `json:"embedding_model"`
	Vectorstore string         `json:"vectorstore"`
}

// Backend is a complete ingestion-and-retrieval stack. The manual and
// framework backends differ in chunking strategy and index variant but
// expose the same operations.
type Backend interface {
	Name() string

	// IngestText chunks, embeds, and indexes the text under the given
	// source. Returns the number of chunks added. All-or-nothing: an
	// embedding failure leaves the index untouched.
	IngestText(ctx context.Context, text, source string) (int, error)

	// IngestFile parses the document and ingests the extracted text
	// under the base filename as source.
	IngestFile(ctx context.Context, filename string, data []byte) (int, error)

	// BuildContext embeds the query, retrieves the top chunks
	// (optionally restricted to sources), and assembles the context
	// string under the configured character budget.
	BuildContext(ctx context.Context, query string, topK int, sources []string) (string, []vectordb.Match, error)

	Stats(ctx context.Context) (BackendStats, error)
	Reset(ctx context.Context) error
}

// embedChunks embeds every piece before anything is indexed, so a
// failure cannot leave a partial batch behind.
func embedChunks(ctx context.Context, embedder Embedder, pieces []string, source string) ([]vectordb.Chunk, error) {
	chunks := make([]vectordb.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		vec, err := embedder.Embed(ctx, piece)
		if err != nil {
			return nil, &EmbedError{Source: source, Err: err}
		}
		chunks = append(chunks, vectordb.Chunk{
			ID:        uuid.NewString(),
			Text:      piece,
			Source:    source,
			Embedding: vec,
		})
	}
	return chunks, nil
}

// assembleContext formats the retrieved chunks as
// "Source: <source>\n<text>" blocks joined by a separator, keeping
// whole blocks while they fit and cutting the first block if it alone
// exceeds the budget.
func assembleContext(matches []vectordb.Match, maxChars int) string {
	if len(matches) == 0 || maxChars <= 0 {
		return ""
	}

	var b strings.Builder
	for _, m := range matches {
		block := "Source: " + m.Source + "\n" + m.Text

		if b.Len() == 0 {
			if runeLen(block) > maxChars {
				return truncateRunes(block, maxChars)
			}
			b.WriteString(block)
			continue
		}

		if runeLen(b.String())+runeLen(contextSeparator)+runeLen(block) > maxChars {
			break
		}
		b.WriteString(contextSeparator)
		b.WriteString(block)
	}
	return b.String()
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
