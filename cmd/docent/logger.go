package main

import (
	"fmt"
	"io"
	"os"

	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/logger"
)

const (
	logLevelEnvVar  = "LOG_LEVEL"
	logFileEnvVar   = "LOG_FILE"
	logFormatEnvVar = "LOG_FORMAT"

	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// initLogger initializes the process logger.
// Priority: CLI flags > env vars > defaults.
// Returns a cleanup function when logging to a file.
func initLogger(cliLevel, cliFile, cliFormat string) (func(), error) {
	logLevel := cliLevel
	if logLevel == "" {
		logLevel = os.Getenv(logLevelEnvVar)
	}
	if logLevel == "" {
		logLevel = defaultLogLevel
	}

	logFile := cliFile
	if logFile == "" {
		logFile = os.Getenv(logFileEnvVar)
	}

	logFormat := cliFormat
	if logFormat == "" {
		logFormat = os.Getenv(logFormatEnvVar)
	}
	if logFormat == "" {
		logFormat = defaultLogFormat
	}

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer = os.Stderr
	var cleanup func()
	if logFile != "" {
		file, fileCleanup, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = fileCleanup
	}

	logger.Init(level, output, logFormat)
	return cleanup, nil
}

// initServeLogger reinitializes logging once the config file is known.
// CLI flags stay authoritative; otherwise the merged config decides
// (env over file over defaults).
func initServeLogger(cli *CLI, cfg *config.LoggerConfig) (func(), error) {
	level := cli.LogLevel
	if level == "" {
		level = cfg.Level
	}
	file := cli.LogFile
	if file == "" {
		file = cfg.File
	}
	format := cli.LogFormat
	if format == "" {
		format = cfg.Format
	}
	return initLogger(level, file, format)
}
