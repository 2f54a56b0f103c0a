package postgres

import (
	"context"

	"github.com/viralforge/roadworks/internal/domain"
	"gorm.io/gorm"
)

type entrepriseRepository struct {
	db *gorm.DB
}

func (r *entrepriseRepository) List(ctx context.Context) ([]domain.Entreprise, error) {
	var rows []entrepriseModel
	if err := r.db.WithContext(ctx).Order("nom ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Entreprise, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainEntreprise(row))
	}
	return result, nil
}
