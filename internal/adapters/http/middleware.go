package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/roadworks/internal/application"
	"github.com/viralforge/roadworks/internal/domain"
)

type ctxKey string

const (
	ctxKeyTokenRaw ctxKey = "token_raw"
	ctxKeyAuth     ctxKey = "auth_context"
)

var errMissingBearer = errors.New("missing bearer token")

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(withRequestLogger(r.Context(), r, reqID)))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				loggerFrom(r.Context()).ErrorContext(r.Context(), "panic recovered",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"panic", rec,
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Erreur interne du serveur")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		outcome := "success"
		if statusCode >= 400 {
			outcome = "failure"
		}

		level := slog.LevelInfo
		switch {
		case statusCode >= 500:
			level = slog.LevelError
		case statusCode >= 400:
			level = slog.LevelWarn
		}
		loggerFrom(r.Context()).LogAttrs(r.Context(), level, "http request completed",
			slog.String("operation", "http_request"),
			slog.String("outcome", outcome),
			slog.String("route", routePattern(r)),
			slog.Int("status_code", statusCode),
			slog.Int("bytes", recorder.bytes),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

// authMiddleware requires a bearer token backed by an active session.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "authenticate")
			return
		}
		auth, err := h.service.Authenticate(r.Context(), raw)
		if err != nil {
			h.writeMappedError(r.Context(), w, "authenticate", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithAuth(r.Context(), raw, auth)))
	})
}

// optionalAuthMiddleware lets anonymous requests through. A token that is present must be valid.
func (h *Handler) optionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := bearerTokenFromHeader(r.Header.Get("Authorization")); err != nil {
			next.ServeHTTP(w, r)
			return
		}
		h.authMiddleware(next).ServeHTTP(w, r)
	})
}

// requireRole must run after authMiddleware.
func requireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := authFromContext(r.Context())
			if !ok {
				writeMissingBearerError(r.Context(), w, "authorize")
				return
			}
			if err := application.Authorize(auth, role); err != nil {
				status, code, msg := mapDomainError(err)
				logOperationFailure(r.Context(), "authorize", status, code, msg, err)
				writeError(w, status, code, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func contextWithAuth(ctx context.Context, token string, auth domain.AuthContext) context.Context {
	ctx = context.WithValue(ctx, ctxKeyTokenRaw, token)
	return context.WithValue(ctx, ctxKeyAuth, auth)
}

func authFromContext(ctx context.Context) (domain.AuthContext, bool) {
	auth, ok := ctx.Value(ctxKeyAuth).(domain.AuthContext)
	return auth, ok
}

func tokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ctxKeyTokenRaw).(string)
	return token, ok && token != ""
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errMissingBearer
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}

const internalErrorMessage = "Erreur interne du serveur"

// mapDomainError returns status, machine code and the client-safe message for err.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", domain.UserMessage(err, "Données invalides")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest, "INVALID_CREDENTIALS", domain.UserMessage(err, "Email ou mot de passe incorrect")
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusBadRequest, "DUPLICATE_EMAIL", domain.UserMessage(err, "Cet email est déjà utilisé")
	case errors.Is(err, domain.ErrExpiredToken):
		return http.StatusUnauthorized, "TOKEN_EXPIRED", domain.UserMessage(err, "Token expiré")
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN", domain.UserMessage(err, "Token invalide")
	case errors.Is(err, domain.ErrSessionInvalid):
		return http.StatusUnauthorized, "SESSION_INVALID", domain.UserMessage(err, "Session invalide ou expirée")
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", domain.UserMessage(err, "Token d'authentification manquant")
	case errors.Is(err, domain.ErrAccountLocked), errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusForbidden, "ACCOUNT_LOCKED", domain.UserMessage(err, "Compte bloqué")
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", domain.UserMessage(err, "Accès refusé")
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", domain.UserMessage(err, "Ressource non trouvée")
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", domain.UserMessage(err, "Trop de requêtes, réessayez plus tard")
	case errors.Is(err, domain.ErrMirrorUnavailable):
		return http.StatusServiceUnavailable, "MIRROR_UNAVAILABLE", domain.UserMessage(err, "Firebase non configuré")
	case errors.Is(err, domain.ErrMirrorOffline):
		return http.StatusServiceUnavailable, "MIRROR_OFFLINE", domain.UserMessage(err, "Firebase injoignable")
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", internalErrorMessage
	}
}
