// Package logging configures the slog logger shared by every component
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

// TimeFormat is the timestamp layout used on console output
const TimeFormat = "15:04:05"

// New returns a tint-backed slog logger writing to w at the given level.
// Unknown levels fall back to info.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      ParseLevel(level),
			TimeFormat: TimeFormat,
		}),
	)
}

// ParseLevel maps a config level name to a slog level
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

// Discard returns a logger that drops every record, used when a component is
// constructed without one
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or a discarding logger when l is nil
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
