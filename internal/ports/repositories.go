package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/roadworks/internal/domain"
)

// AccountCreateParams is the persisted shape of a registration.
type AccountCreateParams struct {
	Email        string
	PasswordHash string
	Nom          string
	Prenom       string
	Role         domain.Role
	FirebaseUID  *string
	CreatedAt    time.Time
}

// AccountEventFunc builds the outbox event written in the same transaction as an account change.
type AccountEventFunc func(account domain.Account) OutboxEvent

// LoginTx is the unit of work for one login evaluation.
// The account row stays locked (SELECT ... FOR UPDATE) until the callback returns.
type LoginTx interface {
	SaveLockState(ctx context.Context, state domain.LockState) error
	CreateSession(ctx context.Context, params SessionCreateParams) (domain.Session, error)
	Enqueue(ctx context.Context, event OutboxEvent) error
}

// AccountRepository is the credential store.
type AccountRepository interface {
	Create(ctx context.Context, params AccountCreateParams, eventFor AccountEventFunc) (domain.Account, error)
	GetByID(ctx context.Context, id int64) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate, at time.Time) (domain.Account, error)
	Unblock(ctx context.Context, id int64, at time.Time, eventFor AccountEventFunc) (domain.Account, error)
	ListBlocked(ctx context.Context) ([]domain.Account, error)
	ListAll(ctx context.Context) ([]domain.Account, error)
	Count(ctx context.Context) (int64, error)
	// WithLockedAccount runs fn inside one transaction holding the row lock of the account.
	// fn returning nil commits, including on failed-login paths. Unknown emails return domain.ErrNotFound
	// without calling fn.
	WithLockedAccount(ctx context.Context, email string, fn func(tx LoginTx, account domain.Account) error) error
}

type SessionCreateParams struct {
	UserID    int64
	TokenHash string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type SessionRepository interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error)
	// TouchActivity never moves last activity backwards.
	TouchActivity(ctx context.Context, sessionID int64, at time.Time) error
	// Deactivate is a no-op for unknown or already inactive sessions.
	Deactivate(ctx context.Context, tokenHash string) error
}

// ParameterRepository reads parametre_systeme.
type ParameterRepository interface {
	SystemParams(ctx context.Context) (domain.SystemParams, error)
}

// SignalementEventFunc builds the outbox event written with a report change.
type SignalementEventFunc func(item domain.Signalement) OutboxEvent

type SignalementRepository interface {
	List(ctx context.Context, filter domain.SignalementFilter) ([]domain.Signalement, error)
	GetByID(ctx context.Context, id int64) (domain.Signalement, error)
	Create(ctx context.Context, params domain.SignalementCreate, at time.Time, eventFor SignalementEventFunc) (domain.Signalement, error)
	Update(ctx context.Context, id int64, update domain.SignalementUpdate, at time.Time, eventFor SignalementEventFunc) (domain.Signalement, error)
	Delete(ctx context.Context, id int64, eventFor SignalementEventFunc) (domain.Signalement, error)
	Stats(ctx context.Context) (domain.Stats, error)
	// ListForSync returns every report with joined reporter/company, newest first.
	ListForSync(ctx context.Context) ([]domain.Signalement, error)
	// AssignFirebaseIDs records mirror keys for rows that have none yet.
	AssignFirebaseIDs(ctx context.Context, keys map[int64]string) error
}

type EntrepriseRepository interface {
	List(ctx context.Context) ([]domain.Entreprise, error)
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for domain events.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
