package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
)

type issuedSession struct {
	token   string
	session domain.Session
}

// issueSession signs a bearer token and records its session row inside the login transaction.
// The jti keeps tokens unique even when two logins land in the same second.
func (s *Service) issueSession(
	ctx context.Context,
	tx ports.LoginTx,
	account domain.Account,
	ipAddress, userAgent string,
	params domain.SystemParams,
	now time.Time,
) (issuedSession, error) {
	expiresAt := now.Add(params.SessionDuration())
	token, err := s.tokenSigner.Sign(ports.AuthClaims{
		UserID:    account.ID,
		Email:     account.Email,
		Role:      account.Role,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return issuedSession{}, fmt.Errorf("sign token: %w", err)
	}
	session, err := tx.CreateSession(ctx, ports.SessionCreateParams{
		UserID:    account.ID,
		TokenHash: hashToken(token),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return issuedSession{}, fmt.Errorf("create session: %w", err)
	}
	return issuedSession{token: token, session: session}, nil
}

// Authenticate checks the token cryptographically, then the session row and the owner's lock flag.
// A cryptographically valid token is rejected once its session was revoked.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.AuthContext, error) {
	claims, err := s.tokenSigner.Parse(token)
	if err != nil {
		if errors.Is(err, domain.ErrExpiredToken) {
			return domain.AuthContext{}, domain.NewError(domain.ErrExpiredToken, "Token expiré")
		}
		return domain.AuthContext{}, domain.NewError(domain.ErrInvalidToken, "Token invalide")
	}

	tokenHash := hashToken(token)
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, tokenHash)
		if err != nil {
			slog.Default().WarnContext(ctx, "revocation lookup failed; falling back to session store",
				"service", serviceName,
				"module", "application",
				"layer", "application",
				"operation", "authenticate",
				"outcome", "warning",
				"error", err,
			)
		} else if revoked {
			return domain.AuthContext{}, sessionInvalidError()
		}
	}

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AuthContext{}, sessionInvalidError()
		}
		return domain.AuthContext{}, fmt.Errorf("load session: %w", err)
	}
	now := s.nowFn()
	if !session.UsableAt(now) || session.UserID != claims.UserID {
		return domain.AuthContext{}, sessionInvalidError()
	}

	account, err := s.accounts.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AuthContext{}, sessionInvalidError()
		}
		return domain.AuthContext{}, fmt.Errorf("load account: %w", err)
	}
	if account.Locked {
		return domain.AuthContext{}, domain.NewError(domain.ErrAccountLocked, "Votre compte est bloqué. Contactez un administrateur.")
	}

	if err := s.sessions.TouchActivity(ctx, session.ID, now); err != nil {
		return domain.AuthContext{}, fmt.Errorf("touch session: %w", err)
	}

	return domain.AuthContext{
		UserID:    account.ID,
		Email:     account.Email,
		Nom:       account.Nom,
		Prenom:    account.Prenom,
		Role:      account.Role,
		SessionID: session.ID,
	}, nil
}

// Authorize is the role predicate evaluated by the routing layer after Authenticate.
func Authorize(auth domain.AuthContext, role domain.Role) error {
	if auth.HasRole(role) {
		return nil
	}
	if role == domain.RoleManager {
		return domain.NewError(domain.ErrForbidden, "Accès réservé aux managers")
	}
	return domain.NewError(domain.ErrForbidden, "Accès refusé")
}

func sessionInvalidError() error {
	return domain.NewError(domain.ErrSessionInvalid, "Session invalide ou expirée")
}
