package postgres

import (
	"context"
	"time"

	"github.com/viralforge/roadworks/internal/domain"
	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

func (r *sessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	var rec sessionModel
	if err := r.db.WithContext(ctx).Where("token = ?", tokenHash).Take(&rec).Error; err != nil {
		return domain.Session{}, notFound(err)
	}
	return toDomainSession(rec), nil
}

func (r *sessionRepository) TouchActivity(ctx context.Context, sessionID int64, touchedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("id_session = ?", sessionID).
		Update("date_derniere_activite", gorm.Expr("GREATEST(date_derniere_activite, ?)", touchedAt)).Error
}

func (r *sessionRepository) Deactivate(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("token = ?", tokenHash).
		Where("est_active = ?", true).
		Update("est_active", false).Error
}
