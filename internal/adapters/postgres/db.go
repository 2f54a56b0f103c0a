package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const serviceName = "roadworks-service"

const pingTimeout = 5 * time.Second

// adapterLogger tags records with the postgres adapter fields shared by connect and migrate.
func adapterLogger(operation string) *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "postgres",
		"layer", "adapter",
		"operation", operation,
	)
}

// Connect opens the roadworks GORM pool over pgx and pings it. maxConns <= 0 keeps
// the database/sql defaults.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*gorm.DB, error) {
	logger := adapterLogger("connect")
	started := time.Now()

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		logger.ErrorContext(ctx, "postgres unreachable", "outcome", "failure", "error", err)
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(int(maxConns))
		sqlDB.SetMaxIdleConns(max(1, int(maxConns)/2))
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		logger.ErrorContext(ctx, "postgres ping failed", "outcome", "failure", "error", err)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.InfoContext(ctx, "postgres pool ready",
		"outcome", "success",
		"max_conns", maxConns,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return db, nil
}
