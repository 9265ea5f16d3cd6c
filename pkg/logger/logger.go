package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a structured logger tagged with the application name.
// encoding is "json" (default) or "console"; level is one of debug, info, warn, error.
func New(level, encoding string) *slog.Logger {
	return newWithWriter(os.Stdout, level, encoding)
}

func newWithWriter(w io.Writer, level, encoding string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(encoding) {
	case "console", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("app", "faceswapbot")
}

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
