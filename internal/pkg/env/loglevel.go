package env

import (
	"log/slog"
	"strings"
)

// ParseLogLevel reads the LOG_LEVEL environment variable and returns the
// corresponding slog.Level. Falls back to the provided default if the
// variable is empty or unrecognised.
func ParseLogLevel(fallback slog.Level) slog.Level {
	return ParseLevel(Get("LOG_LEVEL", ""), fallback)
}

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" to a slog.Level.
func ParseLevel(raw string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
