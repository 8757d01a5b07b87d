// Package logging configures structured logging for GuardGate.
//
// All components log through log/slog. New builds the process-wide logger
// from configuration; components derive their own loggers with
// logger.With("component", ...).
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/config"
)

// New builds a slog.Logger from the logging configuration, writing to w.
// A nil w defaults to stderr.
func New(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// Setup builds the logger and installs it as the process default, so
// package-level slog calls flow through the configured handler.
func Setup(cfg config.LoggingConfig) *slog.Logger {
	logger := New(cfg, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a configuration level string to a slog.Level. Unknown
// strings map to info.
func ParseLevel(level string) slog.Level {
	switch level {
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
