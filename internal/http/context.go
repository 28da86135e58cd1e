package http

import (
	"context"
	"log/slog"

	"github.com/example/class-scheduler/internal/logging"
)

// ContextWithLogger returns a derived context carrying the request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string) *slog.Logger {
	return logging.From(ctx, fallback).With("handler", handlerName, "operation", operation)
}
