package application

import (
	"context"
	"errors"

	"github.com/viralforge/roadworks/internal/domain"
)

// Unblock clears the counter and lock of an account and emits account.unlocked.
func (s *Service) Unblock(ctx context.Context, userID int64) (AccountView, error) {
	now := s.nowFn()
	account, err := s.accounts.Unblock(ctx, userID, now, accountEvent(eventTypeAccountUnlocked, now))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AccountView{}, domain.NewError(domain.ErrNotFound, "Utilisateur non trouvé")
		}
		return AccountView{}, err
	}
	return toAccountView(account), nil
}

// BlockedUsers lists accounts whose stored lock flag is set, newest lock first.
// Locks whose window elapsed stay listed until the next login attempt unlocks them.
func (s *Service) BlockedUsers(ctx context.Context) ([]BlockedUser, error) {
	accounts, err := s.accounts.ListBlocked(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BlockedUser, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, BlockedUser{
			ID:          a.ID,
			Email:       a.Email,
			Nom:         a.Nom,
			Prenom:      a.Prenom,
			Role:        string(a.Role),
			Tentatives:  a.FailedAttempts,
			DateBlocage: a.LockedAt,
		})
	}
	return out, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]AdminUser, error) {
	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AdminUser, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AdminUser{
			ID:           a.ID,
			Email:        a.Email,
			Nom:          a.Nom,
			Prenom:       a.Prenom,
			Role:         string(a.Role),
			EstBloque:    a.Locked,
			Tentatives:   a.FailedAttempts,
			DateCreation: a.CreatedAt,
		})
	}
	return out, nil
}
