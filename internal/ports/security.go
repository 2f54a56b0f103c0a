package ports

import (
	"time"

	"github.com/viralforge/roadworks/internal/domain"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type AuthClaims struct {
	UserID    int64
	Email     string
	Role      domain.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenSigner signs and verifies bearer tokens. Parse returns domain.ErrExpiredToken
// or domain.ErrInvalidToken on failure.
type TokenSigner interface {
	Sign(claims AuthClaims) (string, error)
	Parse(token string) (AuthClaims, error)
}
