package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/viralforge/roadworks/internal/domain"
)

const serviceName = "roadworks-service"

// normalizeEmail canonicalizes and validates email format before persistence/comparison.
// Only a bare address is accepted; display-name and angle-bracket forms are rejected.
func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", domain.NewError(domain.ErrInvalidInput, "Email requis")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Name != "" || addr.Address != trimmed {
		return "", domain.NewError(domain.ErrInvalidInput, "Email invalide")
	}
	return addr.Address, nil
}

// hashToken stores one-way token fingerprints instead of raw bearer tokens.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

// enforceRateLimit fails open when the limiter is unavailable.
func (s *Service) enforceRateLimit(ctx context.Context, key string, threshold int, window time.Duration) error {
	if s.rateLimiter == nil || threshold <= 0 || window <= 0 {
		return nil
	}
	if strings.TrimSpace(key) == "" {
		return nil
	}
	allowed, err := s.rateLimiter.Allow(ctx, key, threshold, window)
	if err != nil {
		slog.Default().WarnContext(ctx, "rate-limit state unavailable",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "rate_limit",
			"outcome", "warning",
			"key", key,
			"error", err,
		)
		return nil
	}
	if !allowed {
		return domain.NewError(domain.ErrRateLimited, "Trop de requêtes, réessayez plus tard")
	}
	return nil
}

func formatHours(hours int) string {
	return strconv.Itoa(hours) + "h"
}
