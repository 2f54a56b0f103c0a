package postgres

import (
	"errors"
	"strings"

	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
	"gorm.io/gorm"
)

func toDomainAccount(row utilisateurModel) domain.Account {
	return domain.Account{
		ID:             row.ID,
		Email:          row.Email,
		PasswordHash:   row.PasswordHash,
		Nom:            row.Nom,
		Prenom:         row.Prenom,
		Role:           domain.Role(row.Role),
		FailedAttempts: row.TentativesConnexion,
		Locked:         row.EstBloque,
		LockedAt:       row.DateBlocage,
		FirebaseUID:    row.FirebaseUID,
		CreatedAt:      row.DateCreation,
		UpdatedAt:      row.DateModification,
	}
}

func toDomainSession(row sessionModel) domain.Session {
	return domain.Session{
		ID:             row.ID,
		UserID:         row.UserID,
		TokenHash:      row.Token,
		IPAddress:      stringValue(row.IPAddress),
		UserAgent:      stringValue(row.UserAgent),
		CreatedAt:      row.DateCreation,
		ExpiresAt:      row.DateExpiration,
		LastActivityAt: row.DateDerniereActivite,
		Active:         row.EstActive,
	}
}

func toDomainSignalement(row signalementModel) domain.Signalement {
	return domain.Signalement{
		ID:             row.ID,
		Latitude:       row.Latitude,
		Longitude:      row.Longitude,
		Adresse:        stringValue(row.Adresse),
		Description:    stringValue(row.Description),
		Statut:         domain.Status(row.Statut),
		SurfaceM2:      row.SurfaceM2,
		Budget:         row.Budget,
		UserID:         row.UserID,
		EntrepriseID:   row.EntrepriseID,
		ReportedAt:     row.DateSignalement,
		UpdatedAt:      row.DateModification,
		WorksStartedAt: row.DateDebutTravaux,
		WorksEndedAt:   row.DateFinTravaux,
		FirebaseID:     row.FirebaseID,
	}
}

func toDomainSignalementDetail(row signalementDetailModel) domain.Signalement {
	item := toDomainSignalement(row.signalementModel)
	if email := stringValue(row.UtilisateurEmail); email != "" {
		item.Reporter = &domain.Reporter{
			Email:  email,
			Nom:    stringValue(row.UtilisateurNom),
			Prenom: stringValue(row.UtilisateurPrenom),
		}
	}
	if nom := stringValue(row.EntrepriseNom); nom != "" {
		item.Entreprise = &domain.EntrepriseRef{
			Nom:       nom,
			Telephone: stringValue(row.EntrepriseTelephone),
		}
	}
	return item
}

func toDomainEntreprise(row entrepriseModel) domain.Entreprise {
	return domain.Entreprise{
		ID:        row.ID,
		Nom:       row.Nom,
		Telephone: stringValue(row.Telephone),
		Email:     stringValue(row.Email),
		Adresse:   stringValue(row.Adresse),
	}
}

func toOutboxModel(event ports.OutboxEvent) outboxModel {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	return outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(payload),
		CreatedAt:    event.OccurredAt,
		FirstSeenAt:  event.OccurredAt,
	}
}

func toOutboxRecord(row outboxModel) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:       row.OutboxID,
		EventType:      row.EventType,
		PartitionKey:   row.PartitionKey,
		Payload:        []byte(row.Payload),
		RetryCount:     row.RetryCount,
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt,
		PublishedAt:    row.PublishedAt,
		LastErrorAt:    row.LastErrorAt,
		ClaimToken:     row.ClaimToken,
		ClaimUntil:     row.ClaimUntil,
		DeadLetteredAt: row.DeadLetteredAt,
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isForeignKeyViolation(err error) bool {
	return errors.Is(err, gorm.ErrForeignKeyViolated)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
