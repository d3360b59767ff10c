// Package observability provides the structured logging wrapper threaded
// through RunContext. Grounded on 88lin-divinesense's
// ai/observability/logging.Logger: an slog.Handler wrapper with level
// filtering and per-component fields, replacing a global mutable logger
// per spec.md's design note in §9.
package observability

import (
	"log/slog"
	"os"
)

// Format selects the slog handler used by New.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// New builds an *slog.Logger writing to os.Stdout at the
// given level, in the requested format. Component-scoped loggers are then
// derived with logger.With("component", name), matching the teacher's
// per-component logger convention.
func New(format Format, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a config string to an slog.Level, defaulting to Info for
// an unrecognized value rather than failing a run over a logging detail.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
