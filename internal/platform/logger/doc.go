// Package logger configures the application's structured slog logger and
// carries request-scoped loggers through context.Context so that stores,
// services and background jobs log with the same trace attributes as the
// request that triggered them.
package logger
