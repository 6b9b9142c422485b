package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// UploadWatcher watches the upload directory and ingests documents
// dropped there by means other than the API (scp, cp, volume mounts).
type UploadWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	ingestor *Ingestor
	debounce time.Duration

	mu       sync.Mutex
	watching bool
	cancel   context.CancelFunc
}

func NewUploadWatcher(dir string, ingestor *Ingestor) (*UploadWatcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload watcher requires a directory")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &UploadWatcher{
		watcher:  watcher,
		dir:      dir,
		ingestor: ingestor,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start begins watching. The directory is created if missing. A second
// Start is a no-op.
func (w *UploadWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watching {
		return nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch upload directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.watching = true

	go w.watchEvents(ctx)

	slog.Info("Watching upload directory", "dir", w.dir)
	return nil
}

func (w *UploadWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return nil
	}
	w.cancel()
	w.watching = false
	return w.watcher.Close()
}

// watchEvents coalesces the event bursts a single file copy produces
// and ingests each settled file once.
func (w *UploadWatcher) watchEvents(ctx context.Context) {
	pending := make(map[string]struct{})
	var pendingMu sync.Mutex
	var debounceTimer *time.Timer

	processPending := func() {
		pendingMu.Lock()
		paths := pending
		pending = make(map[string]struct{})
		pendingMu.Unlock()

		for path := range paths {
			w.ingestPath(ctx, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !SupportedFile(event.Name) {
				continue
			}

			pendingMu.Lock()
			pending[event.Name] = struct{}{}
			pendingMu.Unlock()

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, processPending)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Upload watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *UploadWatcher) ingestPath(ctx context.Context, path string) {
	name := filepath.Base(path)

	if w.ingestor.consumeRecent(name) {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Failed to read dropped file", "path", path, "error", err)
		return
	}
	if len(data) == 0 {
		return
	}

	res := w.ingestor.IngestFile(ctx, name, data)
	if res.ManualErr != nil {
		slog.Warn("Manual ingestion of dropped file failed", "file", name, "error", res.ManualErr)
	}
	if res.FrameworkErr != nil {
		slog.Warn("Framework ingestion of dropped file failed", "file", name, "error", res.FrameworkErr)
	}
	slog.Info("Ingested dropped file", "file", name,
		"manual_chunks", res.ManualChunks, "framework_chunks", res.FrameworkChunks)
}
