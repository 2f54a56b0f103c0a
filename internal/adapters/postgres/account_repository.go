package postgres

import (
	"context"
	"time"

	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) Create(ctx context.Context, params ports.AccountCreateParams, eventFor ports.AccountEventFunc) (domain.Account, error) {
	var result domain.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := utilisateurModel{
			Email:            params.Email,
			PasswordHash:     params.PasswordHash,
			Nom:              params.Nom,
			Prenom:           params.Prenom,
			Role:             string(params.Role),
			FirebaseUID:      params.FirebaseUID,
			DateCreation:     params.CreatedAt,
			DateModification: params.CreatedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateEmail
			}
			return err
		}
		result = toDomainAccount(rec)
		if eventFor == nil {
			return nil
		}
		outbox := toOutboxModel(eventFor(result))
		return tx.Create(&outbox).Error
	})
	if err != nil {
		return domain.Account{}, err
	}
	return result, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (domain.Account, error) {
	var rec utilisateurModel
	if err := r.db.WithContext(ctx).Where("id_utilisateur = ?", id).Take(&rec).Error; err != nil {
		return domain.Account{}, notFound(err)
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	var rec utilisateurModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		return domain.Account{}, notFound(err)
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&utilisateurModel{}).Where("email = ?", email)
	if excludeID > 0 {
		query = query.Where("id_utilisateur <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *accountRepository) UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate, at time.Time) (domain.Account, error) {
	fields := map[string]any{"date_modification": at}
	if update.Nom != nil {
		fields["nom"] = *update.Nom
	}
	if update.Prenom != nil {
		fields["prenom"] = *update.Prenom
	}
	if update.Email != nil {
		fields["email"] = *update.Email
	}

	var rec utilisateurModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&utilisateurModel{}).Where("id_utilisateur = ?", id).Updates(fields)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return domain.ErrDuplicateEmail
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Where("id_utilisateur = ?", id).Take(&rec).Error
	})
	if err != nil {
		return domain.Account{}, notFound(err)
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) Unblock(ctx context.Context, id int64, at time.Time, eventFor ports.AccountEventFunc) (domain.Account, error) {
	var result domain.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&utilisateurModel{}).
			Where("id_utilisateur = ?", id).
			Updates(map[string]any{
				"tentatives_connexion": 0,
				"est_bloque":           false,
				"date_blocage":         nil,
				"date_modification":    at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		var rec utilisateurModel
		if err := tx.Where("id_utilisateur = ?", id).Take(&rec).Error; err != nil {
			return err
		}
		result = toDomainAccount(rec)
		if eventFor == nil {
			return nil
		}
		outbox := toOutboxModel(eventFor(result))
		return tx.Create(&outbox).Error
	})
	if err != nil {
		return domain.Account{}, notFound(err)
	}
	return result, nil
}

func (r *accountRepository) ListBlocked(ctx context.Context) ([]domain.Account, error) {
	var rows []utilisateurModel
	if err := r.db.WithContext(ctx).
		Where("est_bloque = ?", true).
		Order("date_blocage DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainAccounts(rows), nil
}

func (r *accountRepository) ListAll(ctx context.Context) ([]domain.Account, error) {
	var rows []utilisateurModel
	if err := r.db.WithContext(ctx).Order("date_creation DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainAccounts(rows), nil
}

func (r *accountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&utilisateurModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// WithLockedAccount serializes concurrent logins of one account on its row lock.
func (r *accountRepository) WithLockedAccount(ctx context.Context, email string, fn func(tx ports.LoginTx, account domain.Account) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec utilisateurModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("email = ?", email).
			Take(&rec).Error; err != nil {
			return notFound(err)
		}
		return fn(&loginTx{tx: tx, userID: rec.ID}, toDomainAccount(rec))
	})
}

type loginTx struct {
	tx     *gorm.DB
	userID int64
}

func (l *loginTx) SaveLockState(ctx context.Context, state domain.LockState) error {
	return l.tx.WithContext(ctx).
		Model(&utilisateurModel{}).
		Where("id_utilisateur = ?", l.userID).
		Updates(map[string]any{
			"tentatives_connexion": state.FailedAttempts,
			"est_bloque":           state.Locked,
			"date_blocage":         state.LockedAt,
		}).Error
}

func (l *loginTx) CreateSession(ctx context.Context, params ports.SessionCreateParams) (domain.Session, error) {
	rec := sessionModel{
		UserID:               params.UserID,
		Token:                params.TokenHash,
		IPAddress:            nullableString(params.IPAddress),
		UserAgent:            nullableString(params.UserAgent),
		DateCreation:         params.CreatedAt,
		DateExpiration:       params.ExpiresAt,
		DateDerniereActivite: params.CreatedAt,
		EstActive:            true,
	}
	if err := l.tx.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Session{}, err
	}
	return toDomainSession(rec), nil
}

func (l *loginTx) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	rec := toOutboxModel(event)
	return l.tx.WithContext(ctx).Create(&rec).Error
}

func toDomainAccounts(rows []utilisateurModel) []domain.Account {
	result := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainAccount(row))
	}
	return result
}
