package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
)

// Register creates a local account and emits user.registered in the same transaction.
// When the mirror is reachable an external auth identity is created first; its failure only logs.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (AccountView, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return AccountView{}, err
	}
	if ip := strings.TrimSpace(req.IPAddress); ip != "" {
		if err := s.enforceRateLimit(
			ctx,
			"register:ip:"+ip,
			s.cfg.RegisterRateLimitIPThreshold,
			s.cfg.RegisterRateLimitWindow,
		); err != nil {
			return AccountView{}, err
		}
	}
	if err := s.enforceRateLimit(
		ctx,
		"register:identifier:"+email,
		s.cfg.RegisterRateLimitIdentifierThreshold,
		s.cfg.RegisterRateLimitWindow,
	); err != nil {
		return AccountView{}, err
	}

	if err := domain.ValidatePassword(req.Password); err != nil {
		return AccountView{}, err
	}
	if err := domain.ValidateName("nom", req.Nom); err != nil {
		return AccountView{}, err
	}
	if err := domain.ValidateName("prenom", req.Prenom); err != nil {
		return AccountView{}, err
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return AccountView{}, err
	}

	taken, err := s.accounts.EmailTaken(ctx, email, 0)
	if err != nil {
		return AccountView{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return AccountView{}, duplicateEmailError()
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return AccountView{}, fmt.Errorf("hash password: %w", err)
	}

	nom := strings.TrimSpace(req.Nom)
	prenom := strings.TrimSpace(req.Prenom)
	firebaseUID := s.createMirrorIdentity(ctx, email, req.Password, strings.TrimSpace(prenom+" "+nom))

	now := s.nowFn()
	account, err := s.accounts.Create(ctx, ports.AccountCreateParams{
		Email:        email,
		PasswordHash: passwordHash,
		Nom:          nom,
		Prenom:       prenom,
		Role:         role,
		FirebaseUID:  firebaseUID,
		CreatedAt:    now,
	}, accountEvent(eventTypeUserRegistered, now))
	if err != nil {
		s.discardMirrorIdentity(ctx, firebaseUID)
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return AccountView{}, duplicateEmailError()
		}
		return AccountView{}, err
	}
	return toAccountView(account), nil
}

// Login evaluates the lockout policy and issues a session, all in one transaction
// holding the account row lock. Failed attempts are committed before the error is returned.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, err
	}
	params, err := s.params.SystemParams(ctx)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("load system params: %w", err)
	}

	now := s.nowFn()
	var (
		eval    domain.LockoutEvaluation
		account domain.Account
		issued  issuedSession
	)
	err = s.accounts.WithLockedAccount(ctx, email, func(tx ports.LoginTx, acc domain.Account) error {
		account = acc
		eval = domain.EvaluateLogin(acc.LockState(), func() bool {
			return s.hasher.Compare(acc.PasswordHash, req.Password) == nil
		}, now, params)

		if eval.StateChanged {
			if err := tx.SaveLockState(ctx, eval.State); err != nil {
				return fmt.Errorf("save lock state: %w", err)
			}
		}

		switch eval.Decision {
		case domain.DecisionTooManyAttempts:
			locked := acc
			locked.Locked = true
			locked.LockedAt = eval.State.LockedAt
			locked.FailedAttempts = eval.State.FailedAttempts
			if err := tx.Enqueue(ctx, accountEvent(eventTypeAccountLocked, now)(locked)); err != nil {
				return fmt.Errorf("enqueue lock event: %w", err)
			}
		case domain.DecisionAuthenticated:
			var issueErr error
			issued, issueErr = s.issueSession(ctx, tx, acc, req.IPAddress, req.UserAgent, params, now)
			if issueErr != nil {
				return issueErr
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		loginAttemptsTotal.WithLabelValues("unknown_account").Inc()
		return LoginResponse{}, domain.UnknownAccountError()
	}
	if err != nil {
		loginAttemptsTotal.WithLabelValues("error").Inc()
		return LoginResponse{}, fmt.Errorf("login transaction: %w", err)
	}

	if decisionErr := eval.Err(); decisionErr != nil {
		outcome := "invalid_credentials"
		switch eval.Decision {
		case domain.DecisionLocked:
			outcome = "locked"
		case domain.DecisionTooManyAttempts:
			outcome = "lockout_triggered"
			accountLockoutsTotal.Inc()
		}
		loginAttemptsTotal.WithLabelValues(outcome).Inc()
		slog.Default().WarnContext(ctx, "login rejected",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "login",
			"outcome", outcome,
			"user_id", account.ID,
			"failed_attempts", eval.State.FailedAttempts,
			"auto_unlocked", eval.AutoUnlocked,
		)
		return LoginResponse{}, decisionErr
	}

	loginAttemptsTotal.WithLabelValues("success").Inc()
	return LoginResponse{
		Token:     issued.token,
		ExpiresIn: formatHours(params.SessionDurationHours),
		ExpiresAt: issued.session.ExpiresAt,
		User:      toUserSummary(account),
	}, nil
}

// Logout deactivates the session behind token. Unknown or already inactive tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	tokenHash := hashToken(token)
	if err := s.sessions.Deactivate(ctx, tokenHash); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if s.revocations == nil {
		return nil
	}
	claims, err := s.tokenSigner.Parse(token)
	if err != nil {
		return nil
	}
	if err := s.revocations.MarkRevoked(ctx, tokenHash, claims.ExpiresAt); err != nil {
		slog.Default().WarnContext(ctx, "failed to write revocation marker",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "logout",
			"outcome", "warning",
			"error", err,
		)
	}
	return nil
}

func (s *Service) Me(ctx context.Context, auth domain.AuthContext) (AccountView, error) {
	account, err := s.accounts.GetByID(ctx, auth.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AccountView{}, domain.NewError(domain.ErrNotFound, "Utilisateur non trouvé")
		}
		return AccountView{}, err
	}
	return toAccountView(account), nil
}

// UpdateMe applies self-service profile changes. A new email is re-checked for uniqueness.
func (s *Service) UpdateMe(ctx context.Context, auth domain.AuthContext, req UpdateProfileRequest) (AccountView, error) {
	update := domain.ProfileUpdate{}
	if req.Nom != nil {
		if err := domain.ValidateName("nom", *req.Nom); err != nil {
			return AccountView{}, err
		}
		nom := strings.TrimSpace(*req.Nom)
		update.Nom = &nom
	}
	if req.Prenom != nil {
		if err := domain.ValidateName("prenom", *req.Prenom); err != nil {
			return AccountView{}, err
		}
		prenom := strings.TrimSpace(*req.Prenom)
		update.Prenom = &prenom
	}
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return AccountView{}, err
		}
		taken, err := s.accounts.EmailTaken(ctx, email, auth.UserID)
		if err != nil {
			return AccountView{}, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return AccountView{}, duplicateEmailError()
		}
		update.Email = &email
	}
	if update.Empty() {
		return AccountView{}, domain.NewError(domain.ErrInvalidInput, "Aucune donnée à mettre à jour")
	}

	account, err := s.accounts.UpdateProfile(ctx, auth.UserID, update, s.nowFn())
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return AccountView{}, duplicateEmailError()
		}
		if errors.Is(err, domain.ErrNotFound) {
			return AccountView{}, domain.NewError(domain.ErrNotFound, "Utilisateur non trouvé")
		}
		return AccountView{}, err
	}
	return toAccountView(account), nil
}

func (s *Service) createMirrorIdentity(ctx context.Context, email, password, displayName string) *string {
	if s.identities == nil || !s.gate.IsConfigured() || !s.gate.IsReachable(ctx) {
		return nil
	}
	uid, err := s.identities.CreateUser(ctx, ports.MirrorUserParams{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		slog.Default().WarnContext(ctx, "mirror identity creation failed; continuing with local account",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "register",
			"outcome", "warning",
			"error", err,
		)
		return nil
	}
	return &uid
}

// discardMirrorIdentity removes an external identity whose local account was never stored.
// Failures are logged with the uid so the orphan can be cleaned up by hand.
func (s *Service) discardMirrorIdentity(ctx context.Context, uid *string) {
	if uid == nil || s.identities == nil {
		return
	}
	if err := s.identities.DeleteUser(ctx, *uid); err != nil {
		slog.Default().WarnContext(ctx, "orphaned mirror identity not deleted",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "register",
			"outcome", "warning",
			"firebase_uid", *uid,
			"error", err,
		)
	}
}

func duplicateEmailError() error {
	return domain.NewError(domain.ErrDuplicateEmail, "Cet email est déjà utilisé")
}
