// Package archive keeps a record of every estimation served over HTTP in
// SQLite or PostgreSQL.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/iopestimator/pkg/estimate"
	"github.com/chrissnell/iopestimator/pkg/migrate"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned by Get for unknown or malformed ids
var ErrNotFound = errors.New("report not found")

// Record is one archived estimation
type Record struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Readings  []float64        `json:"readings"`
	Report    *estimate.Report `json:"report"`
}

// Store reads and writes Records
type Store struct {
	db     *sql.DB
	driver string
	logger *zap.SugaredLogger
	now    func() time.Time
}

// Open connects to the archive database and brings its schema up to date.
// driver is "sqlite", "postgres" (lib/pq) or "pgx".
func Open(driver, dsn string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s archive: %w", driver, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s archive: %w", driver, err)
	}

	s, err := New(db, driver, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle and runs pending migrations
func New(db *sql.DB, driver string, logger *zap.SugaredLogger) (*Store, error) {
	if !SupportedDriver(driver) {
		return nil, fmt.Errorf("unsupported archive driver %q", driver)
	}

	if err := Migrator(db, driver, logger).MigrateUp(); err != nil {
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}

	return &Store{
		db:     db,
		driver: driver,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SupportedDriver reports whether driver can back the archive
func SupportedDriver(driver string) bool {
	switch driver {
	case "sqlite", "postgres", "pgx":
		return true
	}
	return false
}

// dialect folds the two PostgreSQL drivers into one SQL dialect
func dialect(driver string) string {
	if driver == "pgx" {
		return "postgres"
	}
	return driver
}

// Migrator returns a migrator for the archive schema
func Migrator(db *sql.DB, driver string, logger *zap.SugaredLogger) *migrate.Migrator {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		// the embedded directory always exists
		panic(err)
	}
	return migrate.NewMigrator(db, migrate.NewFSProvider(sub, "archive_migrations", dialect(driver)), logger)
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL
func (s *Store) rebind(query string) string {
	if dialect(s.driver) != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save archives a report together with the readings it was computed from
func (s *Store) Save(ctx context.Context, readings []float64, report *estimate.Report) (Record, error) {
	rec := Record{
		ID:        uuid.New().String(),
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
		Readings:  append([]float64(nil), readings...),
		Report:    report,
	}

	readingsJSON, err := json.Marshal(rec.Readings)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode readings: %w", err)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode report: %w", err)
	}

	query := s.rebind(`INSERT INTO estimation_reports (id, created_at, n, readings, report) VALUES (?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query, rec.ID, rec.CreatedAt.UnixMicro(), report.N, string(readingsJSON), string(reportJSON))
	if err != nil {
		return Record{}, fmt.Errorf("failed to insert report: %w", err)
	}

	s.logger.Debugw("archived report", "id", rec.ID, "n", report.N)
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec          Record
		createdAt    int64
		readingsJSON string
		reportJSON   string
	)
	if err := row.Scan(&rec.ID, &createdAt, &readingsJSON, &reportJSON); err != nil {
		return Record{}, err
	}

	rec.CreatedAt = time.UnixMicro(createdAt).UTC()
	if err := json.Unmarshal([]byte(readingsJSON), &rec.Readings); err != nil {
		return Record{}, fmt.Errorf("failed to decode readings of %s: %w", rec.ID, err)
	}
	rec.Report = &estimate.Report{}
	if err := json.Unmarshal([]byte(reportJSON), rec.Report); err != nil {
		return Record{}, fmt.Errorf("failed to decode report %s: %w", rec.ID, err)
	}
	return rec, nil
}

// Get loads one record by id
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, ErrNotFound
	}

	query := s.rebind(`SELECT id, created_at, readings, report FROM estimation_reports WHERE id = ?`)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return rec, nil
}

// List returns up to limit records, newest first
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := s.rebind(`SELECT id, created_at, readings, report FROM estimation_reports ORDER BY created_at DESC, id DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reports: %w", err)
	}

	return records, nil
}
