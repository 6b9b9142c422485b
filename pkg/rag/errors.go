// Package rag implements document ingestion and retrieval: parsing,
// chunking, embedding, and two interchangeable backends over the
// vector indices in pkg/vectordb.
package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when a filename's extension maps
	// to no known parser.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument is returned when a document parses successfully
	// but yields no extractable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// EmbedError reports a failed embedding call during ingestion. Ingestion
// is all-or-nothing: when this error is returned, the index was not
// touched.
type EmbedError struct {
	Source string
	Err    error
}

func (e *EmbedError) Error() string {
	return fmt.Sprintf("embedding failed for %s: %v", e.Source, e.Err)
}

func (e *EmbedError) Unwrap() error {
	return e.Err
}
