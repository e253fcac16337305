// Package migrate applies versioned SQL migrations to a database/sql handle.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB represents either a database connection or transaction
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider defines how migrations are loaded and managed
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// Latest targets the highest known migration
const Latest = -1

// step is one migration to run, and the version recorded once it has run
type step struct {
	migration Migration
	up        bool
	recordAs  int
}

// MigrateUp runs all pending migrations up to the latest version
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(Latest)
}

// MigrateDown rolls back to targetVersion, which must be below the current
// version
func (m *Migrator) MigrateDown(targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}
	if targetVersion >= current {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, current)
	}
	return m.MigrateTo(targetVersion)
}

// MigrateTo runs migrations up or down to reach targetVersion
func (m *Migrator) MigrateTo(targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}

	migrations, err := m.sortedMigrations()
	if err != nil {
		return err
	}

	for _, s := range plan(migrations, current, targetVersion) {
		if err := m.executeMigration(s); err != nil {
			verb := "apply"
			if !s.up {
				verb = "roll back"
			}
			return fmt.Errorf("failed to %s migration %d: %w", verb, s.migration.Version, err)
		}
	}

	return nil
}

func (m *Migrator) sortedMigrations() ([]Migration, error) {
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// plan lists the steps from current to target over migrations sorted by
// ascending version. Rolling back records the version of the next lower
// migration, or 0, so gaps in numbering are handled.
func plan(migrations []Migration, current, target int) []step {
	if target == Latest {
		target = current
		if len(migrations) > 0 && migrations[len(migrations)-1].Version > current {
			target = migrations[len(migrations)-1].Version
		}
	}

	var steps []step
	if target >= current {
		for _, mig := range migrations {
			if mig.Version > current && mig.Version <= target {
				steps = append(steps, step{migration: mig, up: true, recordAs: mig.Version})
			}
		}
		return steps
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if mig.Version <= target || mig.Version > current {
			continue
		}
		prev := 0
		if i > 0 {
			prev = migrations[i-1].Version
		}
		steps = append(steps, step{migration: mig, up: false, recordAs: prev})
	}
	return steps
}

// GetCurrentVersion returns the current migration version, creating the
// version table on first use
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	version, err := m.provider.GetCurrentVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// GetPendingMigrations returns migrations that haven't been applied yet, in
// the order they would run
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return nil, err
	}

	migrations, err := m.sortedMigrations()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, s := range plan(migrations, current, Latest) {
		pending = append(pending, s.migration)
	}
	return pending, nil
}

// executeMigration runs one step and records its version in the same
// transaction
func (m *Migrator) executeMigration(s step) error {
	query, direction := s.migration.Up, "up"
	if !s.up {
		query, direction = s.migration.Down, "down"
	}

	if query == "" {
		return fmt.Errorf("migration %d has no %s SQL", s.migration.Version, direction)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to execute %s SQL: %w", direction, err)
	}

	if err := m.provider.SetVersion(tx, s.recordAs); err != nil {
		return fmt.Errorf("failed to record version %d: %w", s.recordAs, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("migrated",
		"version", s.migration.Version,
		"name", s.migration.Name,
		"direction", direction,
		"now_at", s.recordAs)

	return nil
}
