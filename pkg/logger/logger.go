// Package logger configures the process-wide structured logger.
//
// Docent logs through log/slog everywhere. This package owns the single
// slog.Logger handed to slog.SetDefault, translates the configured level
// string into a slog.Level, and knows how to open the optional log file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
)

// ParseLevel converts a textual level from config into a slog.Level.
// Accepted values are DEBUG, INFO, WARN (or WARNING) and ERROR in any case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Init builds the default logger and installs it via slog.SetDefault.
// format selects between "text" and "json" handlers; anything else falls
// back to text so a typo in config never silences logging.
func Init(level slog.Level, output io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Normalize the level label so WARNING never leaks into output.
			if a.Key == slog.LevelKey {
				if lv, ok := a.Value.Any().(slog.Level); ok && lv == slog.LevelWarn {
					a.Value = slog.StringValue("WARN")
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// GetLogger returns the configured logger, initializing a sane default
// (INFO, text, stderr) if Init was never called.
func GetLogger() *slog.Logger {
	mu.Lock()
	initialized := defaultLogger != nil
	mu.Unlock()
	if !initialized {
		Init(slog.LevelInfo, os.Stderr, "text")
	}
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger
}

// OpenLogFile opens (creating if needed) the file logs are appended to.
// The returned cleanup closes the file and is safe to defer even when the
// process later re-routes logging.
func OpenLogFile(path string) (*os.File, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	cleanup := func() {
		_ = f.Close()
	}
	return f, cleanup, nil
}
