package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type signalementRepository struct {
	db *gorm.DB
}

func (r *signalementRepository) List(ctx context.Context, filter domain.SignalementFilter) ([]domain.Signalement, error) {
	query := r.db.WithContext(ctx).Model(&signalementDetailModel{})
	if filter.Statut != "" {
		query = query.Where("statut = ?", string(filter.Statut))
	}
	if filter.UserID > 0 {
		query = query.Where("id_utilisateur = ?", filter.UserID)
	}
	query = query.Order("date_signalement DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []signalementDetailModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainSignalementDetails(rows), nil
}

func (r *signalementRepository) GetByID(ctx context.Context, id int64) (domain.Signalement, error) {
	var rec signalementDetailModel
	if err := r.db.WithContext(ctx).Where("id_signalement = ?", id).Take(&rec).Error; err != nil {
		return domain.Signalement{}, notFound(err)
	}
	return toDomainSignalementDetail(rec), nil
}

func (r *signalementRepository) Create(ctx context.Context, params domain.SignalementCreate, at time.Time, eventFor ports.SignalementEventFunc) (domain.Signalement, error) {
	var result domain.Signalement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := signalementModel{
			UserID:           params.UserID,
			Latitude:         params.Latitude,
			Longitude:        params.Longitude,
			Adresse:          nullableString(params.Adresse),
			Description:      nullableString(params.Description),
			Statut:           string(domain.StatusNew),
			SurfaceM2:        params.SurfaceM2,
			DateSignalement:  at,
			DateModification: at,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		result = toDomainSignalement(rec)
		return enqueueSignalementEvent(tx, result, eventFor)
	})
	if err != nil {
		return domain.Signalement{}, err
	}
	return result, nil
}

// Update applies only the provided fields. Entering EN_COURS stamps the works start once;
// entering TERMINE stamps the works end.
func (r *signalementRepository) Update(ctx context.Context, id int64, update domain.SignalementUpdate, at time.Time, eventFor ports.SignalementEventFunc) (domain.Signalement, error) {
	fields := map[string]any{"date_modification": at}
	if update.Statut != nil {
		fields["statut"] = string(*update.Statut)
		switch *update.Statut {
		case domain.StatusInProgress:
			fields["date_debut_travaux"] = gorm.Expr("COALESCE(date_debut_travaux, ?)", at)
		case domain.StatusDone:
			fields["date_fin_travaux"] = at
		}
	}
	if update.Budget != nil {
		fields["budget"] = *update.Budget
	}
	if update.SurfaceM2 != nil {
		fields["surface_m2"] = *update.SurfaceM2
	}
	if update.EntrepriseID != nil {
		fields["id_entreprise"] = *update.EntrepriseID
	}
	if update.Adresse != nil {
		fields["adresse"] = *update.Adresse
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}

	var result domain.Signalement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&signalementModel{}).Where("id_signalement = ?", id).Updates(fields)
		if res.Error != nil {
			if isForeignKeyViolation(res.Error) {
				return domain.NewError(domain.ErrInvalidInput, "Entreprise inexistante")
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		var rec signalementModel
		if err := tx.Where("id_signalement = ?", id).Take(&rec).Error; err != nil {
			return err
		}
		result = toDomainSignalement(rec)
		return enqueueSignalementEvent(tx, result, eventFor)
	})
	if err != nil {
		return domain.Signalement{}, notFound(err)
	}
	return result, nil
}

// Delete returns the removed row so callers can clean up its mirror document.
func (r *signalementRepository) Delete(ctx context.Context, id int64, eventFor ports.SignalementEventFunc) (domain.Signalement, error) {
	var result domain.Signalement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec signalementModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id_signalement = ?", id).
			Take(&rec).Error; err != nil {
			return err
		}
		if err := tx.Where("id_signalement = ?", id).Delete(&signalementModel{}).Error; err != nil {
			return err
		}
		result = toDomainSignalement(rec)
		return enqueueSignalementEvent(tx, result, eventFor)
	})
	if err != nil {
		return domain.Signalement{}, notFound(err)
	}
	return result, nil
}

func (r *signalementRepository) Stats(ctx context.Context) (domain.Stats, error) {
	var rec statsModel
	if err := r.db.WithContext(ctx).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Stats{}, nil
		}
		return domain.Stats{}, err
	}
	return domain.Stats{
		Total:        rec.TotalSignalements,
		New:          rec.NbNouveaux,
		InProgress:   rec.NbEnCours,
		Done:         rec.NbTermines,
		SurfaceTotal: rec.SurfaceTotaleM2,
		BudgetTotal:  rec.BudgetTotal,
		ProgressPct:  rec.AvancementPct,
	}, nil
}

func (r *signalementRepository) ListForSync(ctx context.Context) ([]domain.Signalement, error) {
	var rows []signalementDetailModel
	if err := r.db.WithContext(ctx).Order("date_signalement DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainSignalementDetails(rows), nil
}

// AssignFirebaseIDs never overwrites a key that is already recorded.
func (r *signalementRepository) AssignFirebaseIDs(ctx context.Context, keys map[int64]string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, key := range keys {
			if err := tx.Model(&signalementModel{}).
				Where("id_signalement = ?", id).
				Where("firebase_id IS NULL OR firebase_id = ''").
				Update("firebase_id", key).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func enqueueSignalementEvent(tx *gorm.DB, item domain.Signalement, eventFor ports.SignalementEventFunc) error {
	if eventFor == nil {
		return nil
	}
	outbox := toOutboxModel(eventFor(item))
	return tx.Create(&outbox).Error
}

func toDomainSignalementDetails(rows []signalementDetailModel) []domain.Signalement {
	result := make([]domain.Signalement, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainSignalementDetail(row))
	}
	return result
}
