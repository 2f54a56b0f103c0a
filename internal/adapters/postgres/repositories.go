package postgres

import (
	"github.com/viralforge/roadworks/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Accounts     ports.AccountRepository
	Sessions     ports.SessionRepository
	Params       ports.ParameterRepository
	Signalements ports.SignalementRepository
	Entreprises  ports.EntrepriseRepository
	Outbox       ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Accounts:     &accountRepository{db: db},
		Sessions:     &sessionRepository{db: db},
		Params:       &parameterRepository{db: db},
		Signalements: &signalementRepository{db: db},
		Entreprises:  &entrepriseRepository{db: db},
		Outbox:       &outboxRepository{db: db},
	}
}
