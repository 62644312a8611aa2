package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup initializes the global slog logger with JSON output to stdout.
func Setup(level string) {
	slog.SetDefault(New(os.Stdout, level))
}

// New builds a JSON logger writing to w at the named level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ParseLevel maps debug/info/warn/error to slog levels; anything else is info.
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
