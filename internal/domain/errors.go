package domain

import "errors"

var (
	// ErrNotFound is returned when the requested account or report does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether email or password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lock window is still running.
	ErrAccountLocked = errors.New("account locked")
	// ErrTooManyAttempts is returned by the failed attempt that triggers the lock.
	ErrTooManyAttempts = errors.New("too many failed attempts")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token expired")
	ErrSessionInvalid  = errors.New("session invalid or expired")
	ErrDuplicateEmail  = errors.New("email already in use")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrRateLimited     = errors.New("rate limited")
	// ErrMirrorUnavailable means mirror credentials were missing at process start.
	ErrMirrorUnavailable = errors.New("mirror store not configured")
	// ErrMirrorOffline means the mirror is configured but the reachability probe failed.
	ErrMirrorOffline = errors.New("mirror store offline")
)

// Error pairs a sentinel kind with the message shown to API clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError builds a user-facing error that still matches kind with errors.Is.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// UserMessage extracts the client-safe message from err, or returns fallback.
func UserMessage(err error, fallback string) string {
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return fallback
}

func invalidInput(message string) error {
	return NewError(ErrInvalidInput, message)
}
