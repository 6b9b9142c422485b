package rag

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// recentWriteWindow is how long a file saved by the ingestor itself is
// remembered, so the upload watcher does not ingest it a second time.
const recentWriteWindow = 10 * time.Second

// IngestResult reports the per-backend outcome of a unified ingestion.
// One backend failing does not stop the other.
type IngestResult struct {
	ManualChunks    int
	FrameworkChunks int
	ManualErr       error
	FrameworkErr    error
}

// Ingestor writes the same document into both backends and optionally
// keeps the raw upload bytes on disk.
type Ingestor struct {
	manual    Backend
	framework Backend
	uploadDir string

	mu     sync.Mutex
	recent map[string]time.Time
}

func NewIngestor(manual, framework Backend, uploadDir string) *Ingestor {
	return &Ingestor{
		manual:    manual,
		framework: framework,
		uploadDir: uploadDir,
		recent:    make(map[string]time.Time),
	}
}

func (in *Ingestor) UploadDir() string {
	return in.uploadDir
}

// Backend returns the named backend.
func (in *Ingestor) Backend(name string) (Backend, bool) {
	switch name {
	case in.manual.Name():
		return in.manual, true
	case in.framework.Name():
		return in.framework, true
	default:
		return nil, false
	}
}

func (in *Ingestor) Backends() []Backend {
	return []Backend{in.manual, in.framework}
}

// IngestText writes the text into both backends concurrently,
// best-effort per backend.
func (in *Ingestor) IngestText(ctx context.Context, text, source string) IngestResult {
	var res IngestResult

	// A plain group on purpose: WithContext would cancel the surviving
	// backend's embedding calls when the other one fails.
	var g errgroup.Group
	g.Go(func() error {
		res.ManualChunks, res.ManualErr = in.manual.IngestText(ctx, text, source)
		return nil
	})
	g.Go(func() error {
		res.FrameworkChunks, res.FrameworkErr = in.framework.IngestText(ctx, text, source)
		return nil
	})
	_ = g.Wait()

	return res
}

// IngestFile saves the raw bytes to the upload directory (best-effort),
// then ingests the document into both backends.
func (in *Ingestor) IngestFile(ctx context.Context, filename string, data []byte) IngestResult {
	in.saveUpload(filename, data)

	var res IngestResult

	var g errgroup.Group
	g.Go(func() error {
		res.ManualChunks, res.ManualErr = in.manual.IngestFile(ctx, filename, data)
		return nil
	})
	g.Go(func() error {
		res.FrameworkChunks, res.FrameworkErr = in.framework.IngestFile(ctx, filename, data)
		return nil
	})
	_ = g.Wait()

	return res
}

func (in *Ingestor) saveUpload(filename string, data []byte) {
	if in.uploadDir == "" {
		return
	}

	base := filepath.Base(filename)
	in.markRecent(base)

	if err := os.MkdirAll(in.uploadDir, 0755); err != nil {
		slog.Warn("Failed to create upload directory", "dir", in.uploadDir, "error", err)
		return
	}
	path := filepath.Join(in.uploadDir, base)
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Warn("Failed to save upload", "path", path, "error", err)
	}
}

func (in *Ingestor) markRecent(name string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.recent[name] = time.Now()
}

// consumeRecent reports whether the ingestor itself wrote this file
// moments ago, clearing the mark. The watcher calls this to skip
// re-ingesting uploads that arrived through the API.
func (in *Ingestor) consumeRecent(name string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	at, ok := in.recent[name]
	if !ok {
		return false
	}
	delete(in.recent, name)
	return time.Since(at) < recentWriteWindow
}
