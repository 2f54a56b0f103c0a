package ports

import (
	"context"
	"time"
)

// RateLimiter counts hits per key in a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SessionRevocationStore keeps revocation markers with token-aligned TTL.
// It short-circuits authentication of logged-out tokens before the session lookup.
type SessionRevocationStore interface {
	MarkRevoked(ctx context.Context, tokenHash string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}
