// Package logging wraps slog with the small surface the services need:
// a JSON handler picked by level name and component-tagged child loggers.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the application logger handed to every component.
type Logger struct {
	*slog.Logger
}

// New builds a JSON logger writing to stdout. Unknown level names fall
// back to info.
func New(level string) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return &Logger{Logger: slog.New(handler)}
}

// Default returns an info-level logger.
func Default() *Logger {
	return New("info")
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
