package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
)

// setupTestDB starts a disposable PostgreSQL and applies the embedded migrations.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("roadworks_test"),
		tcpostgres.WithUsername("roadworks"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := Connect(ctx, dsn, 4)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db), "migrations must be re-runnable")

	var ledger []string
	require.NoError(t, db.WithContext(ctx).Raw("SELECT name FROM schema_migrations ORDER BY name").Scan(&ledger).Error)
	require.Equal(t, []string{"0001_schema.sql", "0002_views.sql", "0003_outbox_partitions.sql"}, ledger)
	return db
}

func testEvent(eventType, key string, at time.Time) ports.OutboxEvent {
	return ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: key,
		Payload:      []byte(`{"id":"` + key + `"}`),
		OccurredAt:   at,
	}
}

func TestAccountLockoutRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(db)
	now := time.Now().UTC().Truncate(time.Second)

	params, err := repos.Params.SystemParams(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.DefaultSystemParams(), params)

	account, err := repos.Accounts.Create(ctx, ports.AccountCreateParams{
		Email:        "jean@example.com",
		PasswordHash: "hash",
		Nom:          "Rakoto",
		Prenom:       "Jean",
		Role:         domain.RoleUser,
		CreatedAt:    now,
	}, func(a domain.Account) ports.OutboxEvent {
		return testEvent("user.registered", "account-1", now)
	})
	require.NoError(t, err)
	require.NotZero(t, account.ID)

	_, err = repos.Accounts.Create(ctx, ports.AccountCreateParams{
		Email: "jean@example.com", PasswordHash: "x", Nom: "A", Prenom: "B", Role: domain.RoleUser, CreatedAt: now,
	}, nil)
	require.True(t, errors.Is(err, domain.ErrDuplicateEmail), "got %v", err)

	err = repos.Accounts.WithLockedAccount(ctx, "jean@example.com", func(tx ports.LoginTx, current domain.Account) error {
		require.Equal(t, account.ID, current.ID)
		return tx.SaveLockState(ctx, domain.LockState{FailedAttempts: 3, Locked: true, LockedAt: &now})
	})
	require.NoError(t, err)

	blocked, err := repos.Accounts.ListBlocked(ctx)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	require.Equal(t, 3, blocked[0].FailedAttempts)

	unblocked, err := repos.Accounts.Unblock(ctx, account.ID, now, nil)
	require.NoError(t, err)
	require.False(t, unblocked.Locked)
	require.Zero(t, unblocked.FailedAttempts)
	require.Nil(t, unblocked.LockedAt)

	err = repos.Accounts.WithLockedAccount(ctx, "nobody@example.com", func(ports.LoginTx, domain.Account) error {
		t.Fatal("callback must not run for unknown email")
		return nil
	})
	require.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func TestConcurrentFailedLoginsLockOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(db)
	now := time.Now().UTC().Truncate(time.Second)

	account, err := repos.Accounts.Create(ctx, ports.AccountCreateParams{
		Email: "race@example.com", PasswordHash: "hash", Nom: "Rakoto", Prenom: "Jean", Role: domain.RoleUser, CreatedAt: now,
	}, nil)
	require.NoError(t, err)

	params := domain.SystemParams{MaxLoginAttempts: 10, SessionDurationHours: 24, LockDurationHours: 24}
	const attempts = 12

	var (
		counts [4]atomic.Int32
		start  = make(chan struct{})
		errs   = make(chan error, attempts)
		wg     sync.WaitGroup
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- repos.Accounts.WithLockedAccount(ctx, account.Email, func(tx ports.LoginTx, current domain.Account) error {
				eval := domain.EvaluateLogin(current.LockState(), func() bool { return false }, now, params)
				if eval.StateChanged {
					if err := tx.SaveLockState(ctx, eval.State); err != nil {
						return err
					}
				}
				counts[eval.Decision].Add(1)
				return nil
			})
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 9, counts[domain.DecisionInvalidCredentials].Load())
	require.EqualValues(t, 1, counts[domain.DecisionTooManyAttempts].Load(), "the lock must be set exactly once")
	require.EqualValues(t, 2, counts[domain.DecisionLocked].Load())
	require.Zero(t, counts[domain.DecisionAuthenticated].Load())

	stored, err := repos.Accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, params.MaxLoginAttempts, stored.FailedAttempts, "no failed attempt may be lost")
	require.True(t, stored.Locked)
	require.NotNil(t, stored.LockedAt)
	require.True(t, stored.LockedAt.Equal(now))
}

func TestLoginTransactionRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(db)
	now := time.Now().UTC().Truncate(time.Second)

	account, err := repos.Accounts.Create(ctx, ports.AccountCreateParams{
		Email: "marie@example.com", PasswordHash: "hash", Nom: "Rabe", Prenom: "Marie", Role: domain.RoleManager, CreatedAt: now,
	}, nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repos.Accounts.WithLockedAccount(ctx, account.Email, func(tx ports.LoginTx, _ domain.Account) error {
		if _, err := tx.CreateSession(ctx, ports.SessionCreateParams{
			UserID: account.ID, TokenHash: "rolled-back", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = repos.Sessions.GetByTokenHash(ctx, "rolled-back")
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = repos.Accounts.WithLockedAccount(ctx, account.Email, func(tx ports.LoginTx, _ domain.Account) error {
		_, err := tx.CreateSession(ctx, ports.SessionCreateParams{
			UserID: account.ID, TokenHash: "kept", IPAddress: "10.0.0.1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		})
		return err
	})
	require.NoError(t, err)

	session, err := repos.Sessions.GetByTokenHash(ctx, "kept")
	require.NoError(t, err)
	require.True(t, session.UsableAt(now))
	require.Equal(t, "10.0.0.1", session.IPAddress)

	require.NoError(t, repos.Sessions.Deactivate(ctx, "kept"))
	require.NoError(t, repos.Sessions.Deactivate(ctx, "kept"))
	session, err = repos.Sessions.GetByTokenHash(ctx, "kept")
	require.NoError(t, err)
	require.False(t, session.Active)
}

func TestSignalementWorkflowStamps(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(db)
	now := time.Now().UTC().Truncate(time.Second)

	surface := 12.5
	created, err := repos.Signalements.Create(ctx, domain.SignalementCreate{
		Latitude: -18.91, Longitude: 47.52, Adresse: "Analakely", Description: "Nid de poule", SurfaceM2: &surface,
	}, now, nil)
	require.NoError(t, err)
	require.Equal(t, domain.StatusNew, created.Statut)

	inProgress := domain.StatusInProgress
	first, err := repos.Signalements.Update(ctx, created.ID, domain.SignalementUpdate{Statut: &inProgress}, now.Add(time.Hour), nil)
	require.NoError(t, err)
	require.NotNil(t, first.WorksStartedAt)

	second, err := repos.Signalements.Update(ctx, created.ID, domain.SignalementUpdate{Statut: &inProgress}, now.Add(2*time.Hour), nil)
	require.NoError(t, err)
	require.True(t, first.WorksStartedAt.Equal(*second.WorksStartedAt), "works start must be stamped once")

	missing := int64(999)
	_, err = repos.Signalements.Update(ctx, created.ID, domain.SignalementUpdate{EntrepriseID: &missing}, now, nil)
	require.EqualError(t, err, "Entreprise inexistante")

	require.NoError(t, repos.Signalements.AssignFirebaseIDs(ctx, map[int64]string{created.ID: "signalement_1"}))
	require.NoError(t, repos.Signalements.AssignFirebaseIDs(ctx, map[int64]string{created.ID: "other"}))
	stored, err := repos.Signalements.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FirebaseID)
	require.Equal(t, "signalement_1", *stored.FirebaseID)

	stats, err := repos.Signalements.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Total)
	require.EqualValues(t, 1, stats.InProgress)

	_, err = repos.Signalements.Delete(ctx, created.ID, nil)
	require.NoError(t, err)
	_, err = repos.Signalements.GetByID(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOutboxClaimAndPublish(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(db)
	now := time.Now().UTC()

	require.NoError(t, repos.Outbox.Enqueue(ctx, testEvent("signalement.created", "signalement-1", now)))

	records, err := repos.Outbox.ClaimUnpublished(ctx, 10, "claim-a", now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, records, 1)

	again, err := repos.Outbox.ClaimUnpublished(ctx, 10, "claim-b", now.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, again, "claimed records are leased")

	require.NoError(t, repos.Outbox.MarkPublished(ctx, records[0].OutboxID, "claim-a", now))
	after, err := repos.Outbox.ClaimUnpublished(ctx, 10, "claim-c", now.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, after)
}

func TestOutboxClaimsPartitionHeadsInOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(db)
	now := time.Now().UTC().Truncate(time.Millisecond)
	lease := now.Add(time.Minute)

	created := testEvent("signalement.created", "signalement-7", now)
	updated := testEvent("signalement.updated", "signalement-7", now.Add(time.Second))
	locked := testEvent("account.locked", "account-3", now.Add(2*time.Second))
	stray := testEvent("invoice.paid", "invoice-1", now)
	for _, event := range []ports.OutboxEvent{updated, created, locked, stray} {
		require.NoError(t, repos.Outbox.Enqueue(ctx, event))
	}

	first, err := repos.Outbox.ClaimUnpublished(ctx, 10, "claim-a", lease)
	require.NoError(t, err)
	require.Len(t, first, 2, "only one head per partition")
	require.Equal(t, created.EventID, first[0].OutboxID)
	require.Equal(t, locked.EventID, first[1].OutboxID)

	require.NoError(t, repos.Outbox.MarkFailed(ctx, created.EventID, "claim-a", "broker down", now))
	require.ErrorIs(t, repos.Outbox.MarkFailed(ctx, created.EventID, "claim-a", "broker down", now), errLeaseLost)

	retry, err := repos.Outbox.ClaimUnpublished(ctx, 10, "claim-b", lease)
	require.NoError(t, err)
	require.Len(t, retry, 1, "a failed head keeps blocking its partition")
	require.Equal(t, created.EventID, retry[0].OutboxID)
	require.Equal(t, 1, retry[0].RetryCount)

	require.NoError(t, repos.Outbox.MarkPublished(ctx, created.EventID, "claim-b", now))
	next, err := repos.Outbox.ClaimUnpublished(ctx, 10, "claim-c", lease)
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.Equal(t, updated.EventID, next[0].OutboxID)

	var parked outboxModel
	require.NoError(t, db.WithContext(ctx).First(&parked, "outbox_id = ?", stray.EventID).Error)
	require.NotNil(t, parked.DeadLetteredAt)
	require.NotNil(t, parked.LastError)
	require.Equal(t, unroutableReason, *parked.LastError)
}

func TestRunMigrationsRejectsEditedFile(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.WithContext(ctx).
		Exec("UPDATE schema_migrations SET checksum = ? WHERE name = ?", strings.Repeat("0", 64), "0002_views.sql").Error)
	err := RunMigrations(ctx, db)
	require.ErrorIs(t, err, errMigrationChanged)
	require.Contains(t, err.Error(), "0002_views.sql")
}
