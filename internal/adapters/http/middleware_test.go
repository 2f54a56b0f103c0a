package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/viralforge/roadworks/internal/domain"
)

func TestMapDomainError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewError(domain.ErrInvalidInput, "x"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{domain.UnknownAccountError(), http.StatusBadRequest, "INVALID_CREDENTIALS"},
		{domain.NewError(domain.ErrDuplicateEmail, "x"), http.StatusBadRequest, "DUPLICATE_EMAIL"},
		{fmt.Errorf("parse: %w", domain.ErrExpiredToken), http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{domain.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{domain.ErrSessionInvalid, http.StatusUnauthorized, "SESSION_INVALID"},
		{domain.ErrTooManyAttempts, http.StatusForbidden, "ACCOUNT_LOCKED"},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{domain.ErrMirrorOffline, http.StatusServiceUnavailable, "MIRROR_OFFLINE"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code, _ := mapDomainError(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("%v: expected %d %s, got %d %s", tc.err, tc.status, tc.code, status, code)
		}
	}
}

func TestInternalErrorDetailOnlyInDebug(t *testing.T) {
	t.Parallel()

	err := errors.New("pq: relation missing")

	quiet := &Handler{}
	res := httptest.NewRecorder()
	quiet.writeMappedError(httptest.NewRequest(http.MethodGet, "/", nil).Context(), res, "test", err)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if body := res.Body.String(); strings.Contains(body, "relation missing") {
		t.Fatalf("detail leaked outside debug mode: %s", body)
	}

	debug := &Handler{debug: true}
	res = httptest.NewRecorder()
	debug.writeMappedError(httptest.NewRequest(http.MethodGet, "/", nil).Context(), res, "test", err)
	if body := res.Body.String(); !strings.Contains(body, "relation missing") {
		t.Fatalf("expected detail in debug mode: %s", body)
	}
}

func TestBearerTokenFromHeader(t *testing.T) {
	t.Parallel()

	if _, err := bearerTokenFromHeader("Basic abc"); err == nil {
		t.Fatalf("expected error for non bearer scheme")
	}
	if _, err := bearerTokenFromHeader("Bearer   "); err == nil {
		t.Fatalf("expected error for empty token")
	}
	token, err := bearerTokenFromHeader("Bearer abc.def")
	if err != nil || token != "abc.def" {
		t.Fatalf("unexpected token %q (%v)", token, err)
	}
}

func TestFailureLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		code   string
		want   slog.Level
	}{
		{http.StatusInternalServerError, "INTERNAL_ERROR", slog.LevelError},
		{http.StatusServiceUnavailable, "MIRROR_OFFLINE", slog.LevelWarn},
		{http.StatusServiceUnavailable, "NOT_READY", slog.LevelError},
		{http.StatusForbidden, "ACCOUNT_LOCKED", slog.LevelWarn},
		{http.StatusUnauthorized, "TOKEN_EXPIRED", slog.LevelWarn},
		{http.StatusTooManyRequests, "RATE_LIMITED", slog.LevelWarn},
		{http.StatusBadRequest, "INVALID_CREDENTIALS", slog.LevelWarn},
		{http.StatusBadRequest, "VALIDATION_ERROR", slog.LevelInfo},
		{http.StatusNotFound, "NOT_FOUND", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := failureLevel(tc.status, tc.code); got != tc.want {
			t.Fatalf("%d %s: expected %s, got %s", tc.status, tc.code, tc.want, got)
		}
	}
}

func TestOperationFailureLogCarriesRequestAndCaller(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.WithValue(context.Background(), ctxKeyLogger, logger.With("request_id", "req-42"))
	ctx = contextWithAuth(ctx, "raw-token", domain.AuthContext{UserID: 7, Role: domain.RoleManager})

	logOperationFailure(ctx, "update_signalement", http.StatusForbidden, "FORBIDDEN", "Accès refusé", domain.ErrForbidden)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":      "WARN",
		"request_id": "req-42",
		"user_id":    float64(7),
		"role":       "MANAGER",
		"operation":  "update_signalement",
		"error_code": "FORBIDDEN",
		"error":      domain.ErrForbidden.Error(),
	}
	for key, value := range want {
		if entry[key] != value {
			t.Fatalf("%s: expected %v, got %v (%s)", key, value, entry[key], buf.String())
		}
	}
	if strings.Contains(buf.String(), "raw-token") {
		t.Fatalf("bearer token leaked into logs: %s", buf.String())
	}
}
