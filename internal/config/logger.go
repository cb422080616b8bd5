package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns a slog.Logger configured from the main configuration.
// verbose forces the debug level.
func NewLogger(w io.Writer, cfg *MainConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	format := "text"
	if cfg != nil {
		level = parseLevel(cfg.LogLevel)
		format = strings.ToLower(cfg.LogFormat)
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
