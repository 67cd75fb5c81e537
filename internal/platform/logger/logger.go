package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/reigh-app/reigh-api/internal/config"
)

type contextKey struct{}

// ParseLevel maps a configured level name to a slog.Level (case-insensitive).
// Unknown names return false and slog.LevelInfo.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New creates a JSON logger writing to w at the named level.
func New(level string, w io.Writer) *slog.Logger {
	lvl, _ := ParseLevel(level)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Setup initializes the application's logging system from the server
// configuration. It creates a JSON logger on stdout, installs it as the slog
// default and returns it.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	if _, ok := ParseLevel(cfg.LogLevel); !ok {
		// Create a temporary logger to output the warning
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	logger := New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	return logger, nil
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOrDefault(ctx, slog.Default())
}

// FromContextOrDefault returns the logger stored in ctx, or fallback.
func FromContextOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return fallback
}
