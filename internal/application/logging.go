package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/appointment-engine/internal/logging"
	"github.com/example/appointment-engine/internal/timeutil"
	"github.com/example/appointment-engine/internal/timer"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Resolve(ctx, base, "service", serviceName, operation, attrs...)
}

// logOutcome writes the result of a mutation: rejected requests at Warn,
// everything else that failed at Error.
func logOutcome(ctx context.Context, logger *slog.Logger, err error, failure, success string, attrs ...any) {
	if err == nil {
		logger.With(attrs...).InfoContext(ctx, success)
		return
	}
	kind := ErrorKind(err)
	if kind == "unexpected" {
		logger.ErrorContext(ctx, failure, "error", err, "error_kind", kind)
		return
	}
	logger.WarnContext(ctx, failure, "error", err, "error_kind", kind)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var cErr *ConflictError
	if errors.As(err, &cErr) {
		return "conflict"
	}
	var tErr *timer.InvalidTransitionError
	if errors.As(err, &tErr) {
		return "invalid_transition"
	}
	if errors.Is(err, timeutil.ErrFormat) {
		return "format"
	}

	return "unexpected"
}
