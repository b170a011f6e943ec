// Package logger provides structured logging for the forensic engine.
//
// Usage:
//
//	log := logger.New("info", "text")
//	log.Info("analysis completed", "analysis_id", id, "authentic", true)
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a structured logger wrapper around slog
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to stderr.
// Valid levels: debug, info, warn, error (case-insensitive). Format is text or json.
func New(level, format string) *Logger {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter creates a Logger that writes to w
func NewWithWriter(level, format string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{slog.New(handler)}
}

// parseLevel converts a string level to slog.Level, defaulting to info
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with the given attributes added
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// Component returns a Logger tagged with the component name
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// NopLogger returns a logger that discards all output
func NopLogger() *Logger {
	return NewWithWriter("error", "text", io.Discard)
}
