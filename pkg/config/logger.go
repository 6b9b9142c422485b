package config

import "fmt"

// LoggerConfig configures logging behavior.
//
// Priority order (highest to lowest):
//  1. Environment variables (LOG_LEVEL, LOG_FORMAT, LOG_FILE)
//  2. Config file (logger section)
//  3. Defaults (info level, text format, stderr)
type LoggerConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is "text" or "json".
	Format string `yaml:"format,omitempty"`

	// File is the log file path; empty logs to stderr.
	File string `yaml:"file,omitempty"`
}

func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

func (c *LoggerConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (valid: text, json)", c.Format)
	}
	return nil
}

func (c *LoggerConfig) applyEnv() {
	envString("LOG_LEVEL", &c.Level)
	envString("LOG_FORMAT", &c.Format)
	envString("LOG_FILE", &c.File)
}
