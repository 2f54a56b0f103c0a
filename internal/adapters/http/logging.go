package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

const serviceName = "roadworks-service"

const ctxKeyLogger ctxKey = "logger"

func baseLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

// withRequestLogger binds the request id, method and path once per request.
func withRequestLogger(ctx context.Context, r *http.Request, requestID string) context.Context {
	logger := baseLogger().With(
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
	)
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// loggerFrom returns the request logger, plus the caller identity once authMiddleware ran.
func loggerFrom(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxKeyLogger).(*slog.Logger)
	if !ok {
		logger = baseLogger()
	}
	if auth, ok := authFromContext(ctx); ok {
		logger = logger.With("user_id", auth.UserID, "role", string(auth.Role))
	}
	return logger
}

// failureLevel grades a refused request. Lockout, token and rate-limit refusals are
// warnings. A missing mirror is a warning too: the API keeps serving without Firebase.
func failureLevel(statusCode int, code string) slog.Level {
	switch {
	case statusCode >= http.StatusInternalServerError && strings.HasPrefix(code, "MIRROR_"):
		return slog.LevelWarn
	case statusCode >= http.StatusInternalServerError:
		return slog.LevelError
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden,
		statusCode == http.StatusTooManyRequests,
		code == "INVALID_CREDENTIALS":
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func logOperationFailure(ctx context.Context, operation string, statusCode int, code, message string, err error) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("outcome", "failure"),
		slog.Int("status_code", statusCode),
		slog.String("error_code", code),
		slog.String("message", message),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	loggerFrom(ctx).LogAttrs(ctx, failureLevel(statusCode, code), "http operation failed", attrs...)
}
