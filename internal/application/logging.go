package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/class-scheduler/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// serviceLogger tags the request logger, or base outside a request, with the
// service and operation being run.
func serviceLogger(ctx context.Context, base *slog.Logger, service, operation string, attrs ...any) *slog.Logger {
	tagged := make([]any, 0, len(attrs)+4)
	tagged = append(tagged, "service", service, "operation", operation)
	return logging.From(ctx, base).With(append(tagged, attrs...)...)
}

// ErrorKind maps service errors to a stable logging label: validation,
// conflict, not_found, cancelled or unexpected.
func ErrorKind(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unexpected"
	}
}
