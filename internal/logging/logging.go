package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the process-wide logger. LOG_LEVEL overrides fallback,
// verbose overrides both. LOG_FORMAT=json switches to JSON output.
func Init(verbose bool, fallback slog.Level) *slog.Logger {
	level := ParseLevel(os.Getenv("LOG_LEVEL"), fallback)
	if verbose {
		level = slog.LevelDebug
	}

	logger := New(os.Stderr, level, os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps LOG_LEVEL values, including the environment aliases, to
// a level. Unknown values yield fallback.
func ParseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return fallback
}
