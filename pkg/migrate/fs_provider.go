package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Migration files are named 001_create_reports.up.sql / 001_create_reports.down.sql
var migrationFileRegex = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider loads migrations from a filesystem, typically an embed.FS
type FSProvider struct {
	fsys           fs.FS
	migrationTable string
	dbDriver       string // "sqlite" or "postgres"
}

// NewFSProvider creates a migration provider reading *.sql files at the root
// of fsys
func NewFSProvider(fsys fs.FS, migrationTable string, dbDriver string) *FSProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	return &FSProvider{
		fsys:           fsys,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// GetMigrations loads all migrations, sorted by version
func (p *FSProvider) GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(p.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := migrationFileRegex.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in file %s: %w", entry.Name(), err)
		}

		content, err := fs.ReadFile(p.fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: strings.ReplaceAll(matches[2], "_", " ")}
			byVersion[version] = m
		}
		if matches[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (p *FSProvider) CreateMigrationTable(db *sql.DB) error {
	timestampType := "DATETIME"
	if p.dbDriver == "postgres" {
		timestampType = "TIMESTAMP"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, p.migrationTable, timestampType)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (p *FSProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.migrationTable)

	var version int
	if err := db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion records version as the current one. Rolling back removes the
// rows of every version above it.
func (p *FSProvider) SetVersion(db DB, version int) error {
	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version > ?", p.migrationTable)
	insertQuery := fmt.Sprintf("INSERT INTO %s (version) VALUES (?)", p.migrationTable)
	if p.dbDriver == "postgres" {
		deleteQuery = strings.Replace(deleteQuery, "?", "$1", 1)
		insertQuery = strings.Replace(insertQuery, "?", "$1", 1) + " ON CONFLICT (version) DO NOTHING"
	} else {
		insertQuery = strings.Replace(insertQuery, "INSERT", "INSERT OR IGNORE", 1)
	}

	if _, err := db.Exec(deleteQuery, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if version == 0 {
		return nil
	}
	if _, err := db.Exec(insertQuery, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
