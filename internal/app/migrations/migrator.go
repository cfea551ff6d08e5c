// Package migrations applies the SQL files under the migrations directory in order.
package migrations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// Conn is the subset of *pgxpool.Pool the migrator needs
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Migrator manages database migrations
type Migrator struct {
	db     Conn
	logger zerolog.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db Conn, logger zerolog.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// ensureMigrationTableExists creates the migration tracking table if it doesn't exist
func (m *Migrator) ensureMigrationTableExists(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := m.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create migration tracking table: %w", err)
	}
	return nil
}

// isMigrationApplied checks if a specific migration has already been applied
func (m *Migrator) isMigrationApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1);`
	if err := m.db.QueryRow(ctx, query, version).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return exists, nil
}

// VersionOf extracts the version prefix of a migration file ("001_init.sql" => "001")
func VersionOf(filePath string) string {
	return strings.Split(filepath.Base(filePath), "_")[0]
}

// MigrateFromFile executes one migration file inside a transaction and records its version
func (m *Migrator) MigrateFromFile(ctx context.Context, filePath string) (applied bool, err error) {
	if err := m.ensureMigrationTableExists(ctx); err != nil {
		return false, err
	}

	filename := filepath.Base(filePath)
	version := VersionOf(filePath)

	done, err := m.isMigrationApplied(ctx, version)
	if err != nil {
		return false, err
	}
	if done {
		m.logger.Debug().Str("file", filename).Msg("Migration already applied, skipping")
		return false, nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return false, fmt.Errorf("migration %s failed: %w", filename, err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, version, time.Now()); err != nil {
		return false, fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	m.logger.Info().Str("file", filename).Msg("Migration applied")
	return true, nil
}

// PendingFiles lists the .sql files of dirPath sorted by name
func PendingFiles(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, filepath.Join(dirPath, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// MigrateFromDirectory applies every unapplied SQL file in dirPath and returns how many ran
func (m *Migrator) MigrateFromDirectory(ctx context.Context, dirPath string) (int, error) {
	files, err := PendingFiles(dirPath)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, file := range files {
		applied, err := m.MigrateFromFile(ctx, file)
		if err != nil {
			return count, err
		}
		if applied {
			count++
		}
	}
	return count, nil
}
