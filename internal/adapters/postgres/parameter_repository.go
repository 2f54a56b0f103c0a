package postgres

import (
	"context"

	"github.com/viralforge/roadworks/internal/domain"
	"gorm.io/gorm"
)

type parameterRepository struct {
	db *gorm.DB
}

// SystemParams is read on every decision so operators can retune the policy without a restart.
func (r *parameterRepository) SystemParams(ctx context.Context) (domain.SystemParams, error) {
	var rows []parametreModel
	if err := r.db.WithContext(ctx).
		Where("cle IN ?", []string{domain.ParamMaxLoginAttempts, domain.ParamSessionHours, domain.ParamLockHours}).
		Find(&rows).Error; err != nil {
		return domain.SystemParams{}, err
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Cle] = row.Valeur
	}
	return domain.ParamsFromValues(values), nil
}
