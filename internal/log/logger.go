// Package log configures the process-wide slog logger.
package log

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default logger. Format "text" uses a colored terminal
// handler; "json" emits one JSON object per line for log shippers.
func Setup(level, format string) {
	lvl := parseLevel(level)

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	default:
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
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
