package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockKey serializes schema changes when the API and the worker boot together.
const migrationLockKey int64 = 0x726f6164776f726b

const createLedgerSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name       VARCHAR(255) PRIMARY KEY,
    checksum   CHAR(64)     NOT NULL,
    applied_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
)`

var errMigrationChanged = errors.New("applied migration was modified")

type migrationFile struct {
	name     string
	body     string
	checksum string
}

// RunMigrations applies the embedded roadworks schema files in lexical order, once
// each. schema_migrations records the checksum of every applied file and a file
// edited after it ran is refused.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	logger := adapterLogger("run_migrations")

	files, err := loadMigrations()
	if err != nil {
		return err
	}
	// Multi-statement files need the simple protocol, which GORM's prepared pool never uses.
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("gorm sql db: %w", err)
	}
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migrations: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createLedgerSQL); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedChecksums(ctx, tx)
	if err != nil {
		return err
	}

	var ran, skipped []string
	for _, file := range files {
		if checksum, ok := applied[file.name]; ok {
			if checksum != file.checksum {
				logger.ErrorContext(ctx, "schema migration drift",
					"outcome", "failure",
					"migration", file.name,
					"recorded_checksum", checksum,
					"embedded_checksum", file.checksum,
				)
				return fmt.Errorf("%s: %w", file.name, errMigrationChanged)
			}
			skipped = append(skipped, file.name)
			continue
		}

		started := time.Now()
		if _, err := tx.ExecContext(ctx, file.body); err != nil {
			return fmt.Errorf("exec migration %s: %w", file.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (name, checksum) VALUES ($1, $2)",
			file.name, file.checksum,
		); err != nil {
			return fmt.Errorf("record migration %s: %w", file.name, err)
		}
		ran = append(ran, file.name)
		logger.InfoContext(ctx, "schema migration applied",
			"outcome", "success",
			"migration", file.name,
			"checksum", file.checksum[:12],
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}

	logger.InfoContext(ctx, "roadworks schema up to date",
		"outcome", "success",
		"applied", ran,
		"already_applied", skipped,
	)
	return nil
}

func loadMigrations() ([]migrationFile, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	files := make([]migrationFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		raw, err := migrationFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(raw)
		files = append(files, migrationFile{name: e.Name(), body: string(raw), checksum: hex.EncodeToString(sum[:])})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}

func appliedChecksums(ctx context.Context, tx *sql.Tx) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("load schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]string{}
	for rows.Next() {
		var name, checksum string
		if err := rows.Scan(&name, &checksum); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[name] = checksum
	}
	return applied, rows.Err()
}
