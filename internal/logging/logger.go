// Package logging provides the structured logger and request-scoped tracing helpers.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New builds a JSON logger writing to w at the named level (debug, info, warn or error).
// Unknown levels fall back to info.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     ParseLevel(level),
	}))
}

// ParseLevel maps a textual level onto slog.Level.
func ParseLevel(level string) slog.Level {
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
