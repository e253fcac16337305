package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/chrissnell/iopestimator/internal/archive"
	"github.com/chrissnell/iopestimator/internal/log"
	"github.com/chrissnell/iopestimator/pkg/migrate"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var (
		dbDriver      = flag.String("driver", "sqlite", "Archive database driver (sqlite, postgres, pgx)")
		dbDSN         = flag.String("dsn", os.Getenv("IOPESTIMATOR_ARCHIVE_DSN"), "Archive connection string")
		command       = flag.String("command", "status", "Migration command: up, down, to, version, status")
		targetVersion = flag.String("target", "", "Target version for down/to commands")
		debug         = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Usage = showHelp
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if !archive.SupportedDriver(*dbDriver) {
		fmt.Fprintf(os.Stderr, "Error: unsupported driver %q\n", *dbDriver)
		os.Exit(1)
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	db, err := sql.Open(*dbDriver, *dbDSN)
	if err != nil {
		log.Fatalf("Failed to connect to archive: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping archive: %v", err)
	}

	migrator := archive.Migrator(db, *dbDriver, log.GetSugaredLogger())

	switch *command {
	case "up":
		err = migrator.MigrateUp()
	case "down", "to":
		var target int
		target, err = parseTarget(*targetVersion)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if *command == "down" {
			err = migrator.MigrateDown(target)
		} else {
			err = migrator.MigrateTo(target)
		}
	case "version":
		version, err := migrator.GetCurrentVersion()
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}
}

func parseTarget(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("-target flag is required for down and to commands")
	}
	target, err := strconv.Atoi(s)
	if err != nil || target < 0 {
		return 0, fmt.Errorf("invalid target version %q", s)
	}
	return target, nil
}

func showStatus(migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrator.GetPendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", currentVersion)
	fmt.Printf("Pending migrations: %d\n", len(pending))

	for _, migration := range pending {
		fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
	}

	return nil
}

const usage = `Report archive migration tool

Usage:
  migrate [flags]

Commands (-command):
  up         apply all pending migrations
  down       roll back to -target
  to         migrate up or down to -target
  version    print the current version
  status     print the current version and pending migrations (default)

Examples:
  migrate -dsn reports.db -command up
  migrate -driver pgx -dsn postgres://localhost/iop -command down -target 0

Flags:
`

func showHelp() {
	fmt.Fprint(os.Stderr, usage)
	flag.PrintDefaults()
}
