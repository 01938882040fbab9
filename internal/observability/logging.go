// Package observability wires structured logging and distributed tracing
// from configuration.
package observability

import (
	"io"
	"log/slog"
	"strings"

	"github.com/aiandme-io/humanbound-engine/internal/config"
)

// NewLogger builds a slog logger from the logging configuration. Unknown
// levels fall back to info, unknown formats to JSON.
func NewLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
