// Package sqlbase provides schema migrations shared by the SQL stores.
package sqlbase

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// migrationLockID keys the advisory lock held while migrating. The API and the
// worker both migrate on startup and must not apply the same version twice.
const migrationLockID int64 = 0x7175617361720001

var ErrDuplicateMigration = errors.New("duplicate migration version")

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationManager applies pending migrations in version order.
type MigrationManager struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations []Migration
}

// NewMigrationManager creates a MigrationManager. Migrations may be given in any order.
func NewMigrationManager(logger *slog.Logger, db *sql.DB, migrations []Migration) *MigrationManager {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })

	return &MigrationManager{db: db, logger: logger, migrations: sorted}
}

// LatestVersion returns the highest known migration version.
func (m *MigrationManager) LatestVersion() int {
	if len(m.migrations) == 0 {
		return 0
	}

	return m.migrations[len(m.migrations)-1].Version
}

// RunMigrations brings the schema to LatestVersion.
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	for i := 1; i < len(m.migrations); i++ {
		if m.migrations[i].Version == m.migrations[i-1].Version {
			return fmt.Errorf("%w: %d", ErrDuplicateMigration, m.migrations[i].Version)
		}
	}

	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire migration connection: %w", err)
	}

	defer func() { _ = conn.Close() }()

	_, err = conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationLockID)
	if err != nil {
		return fmt.Errorf("failed to take migration lock: %w", err)
	}

	defer func() {
		_, unlockErr := conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockID)
		if unlockErr != nil {
			m.logger.ErrorContext(ctx, "Failed to release migration lock", "error", unlockErr)
		}
	}()

	_, err = conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int

	err = conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to query current schema version: %w", err)
	}

	m.logger.InfoContext(ctx, "Checking database schema", "version", current, "latest", m.LatestVersion())

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}

		err = m.apply(ctx, conn, migration)
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *MigrationManager) apply(ctx context.Context, conn *sql.Conn, migration Migration) error {
	logger := m.logger.With("version", migration.Version, "migration", migration.Name)
	logger.InfoContext(ctx, "Applying migration")

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
	}

	_, err = tx.ExecContext(ctx, migration.SQL)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to execute migration %d (%s): %w", migration.Version, migration.Name, err)
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		migration.Version, migration.Name)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	logger.InfoContext(ctx, "Migration applied")

	return nil
}
