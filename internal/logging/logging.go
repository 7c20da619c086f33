// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds logging settings
type Config struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Color  bool   `toml:"color"`

	// Optional rotated JSON log file, always written at debug level
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// DefaultConfig returns logging defaults: colored text at info level
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     FormatText,
		Color:      true,
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// Validate checks logging configuration
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	if c.Format != FormatText && c.Format != FormatJSON {
		return errors.Newf("invalid log format: %s (must be text or json)", c.Format)
	}
	return nil
}

// ParseLevel converts a level name to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Newf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

// New creates a logger writing to console and, if configured, to a rotated
// file. The returned close function releases the file.
func New(config Config, console io.Writer) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, nil, err
	}

	var consoleHandler slog.Handler
	switch config.Format {
	case FormatJSON:
		consoleHandler = slog.NewJSONHandler(console, &slog.HandlerOptions{Level: level})
	case FormatText, "":
		consoleHandler = tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			NoColor:    !config.Color,
		})
	default:
		return nil, nil, errors.Newf("invalid log format: %s (must be text or json)", config.Format)
	}

	closer := func() error { return nil }
	handler := consoleHandler

	if config.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			Compress:   true,
		}
		closer = fileWriter.Close
		fileHandler := slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = NewMultiHandler(consoleHandler, fileHandler)
	}

	return slog.New(handler), closer, nil
}
