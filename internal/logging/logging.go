// ABOUTME: Default slog logger configuration for the CLI and servers
// ABOUTME: Text output on stdout, or JSON lines when a log file is given
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrLevel is returned for an unknown log level name
var ErrLevel = errors.New("unexpected log level")

// ParseLevel maps "error", "warn", "info" and "debug" to slog levels
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "error":
		return slog.LevelError, nil
	case "warn":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrLevel, name)
}

// ConfigureDefaultLogger installs the default slog logger.
//
// logLevel is one of "none", "error", "warn", "info" or "debug"; "none"
// discards everything. An empty logFile logs text to stdout, otherwise
// JSON is written to the file and the file is returned so the caller can
// close it.
func ConfigureDefaultLogger(logLevel string, logFile string, opts slog.HandlerOptions) (*os.File, error) {
	if logLevel == "none" {
		opts.Level = slog.LevelError + 4
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &opts)))
		return nil, nil
	}

	level, err := ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	opts.Level = level

	if logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &opts)))
		return nil, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, &opts)))
	return f, nil
}
