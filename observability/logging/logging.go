// Package logging configures the process-wide structured logger.
package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup installs a JSON slog handler as the default logger and bridges the
// stdlib log package into it. Level is one of debug, info, warn, error;
// anything else falls back to info.
func Setup(service, env, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
	)
	slog.SetDefault(logger)
	log.SetOutput(slog.NewLogLogger(handler, lvl).Writer())
	log.SetFlags(0)
	return logger
}
