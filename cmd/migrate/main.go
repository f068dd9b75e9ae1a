// Package main provides the schema migration CLI for the paper analysis
// database.
//
// Usage:
//
//	migrate status                    show current version, dirty flag, pending count
//	migrate migrate                   apply all pending migrations
//	migrate validate                  validate migration files and applied state
//	migrate create <name>             generate the next up/down migration pair
//	migrate history                   list applied and pending migrations
//	migrate reset -confirm reset-all-data   roll back everything and re-apply
//	migrate force -version N          set the version without running migrations
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/paperlyzer/analysis-service/internal/config"
	"github.com/paperlyzer/analysis-service/internal/database"
	"github.com/paperlyzer/analysis-service/internal/observability"
)

// resetConfirmToken must be passed verbatim to the reset command.
const resetConfirmToken = "reset-all-data"

// migrationNamePattern restricts generated migration names to safe characters.
var migrationNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		return fmt.Errorf("no command specified")
	}
	command := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	// create only touches the filesystem; no database connection needed.
	if command == "create" {
		return runCreate(cfg.Database.MigrationPath, flag.Args()[1:], logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	metrics := observability.NewMetrics("paperlyzer")

	switch command {
	case "status":
		return runStatus(migrator, logger)
	case "migrate":
		return withMigrationLock(ctx, db, logger, func() error {
			return runMigrate(migrator, metrics, logger)
		})
	case "validate":
		return runValidate(ctx, migrator, db, logger)
	case "history":
		return runHistory(migrator)
	case "reset":
		return withMigrationLock(ctx, db, logger, func() error {
			return runReset(migrator, metrics, flag.Args()[1:], logger)
		})
	case "force":
		return runForce(migrator, flag.Args()[1:], logger)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Schema migration tool for the paper analysis database.

Usage: migrate <command> [options]

Commands:
  status      Show current version, dirty flag, and pending count
  migrate     Apply all pending migrations
  validate    Validate migration files and the applied state
  create      Generate the next up/down migration pair: create <name>
  history     List every migration with its applied state
  reset       Roll back everything and re-apply (requires -confirm %s)
  force       Set the version without running migrations: force -version N
`, resetConfirmToken)
}

// withMigrationLock serializes schema-changing commands across concurrent
// invocations via a session advisory lock.
func withMigrationLock(ctx context.Context, db *database.DB, logger zerolog.Logger, fn func() error) error {
	acquired, err := db.AcquireAdvisoryLock(ctx, database.MigrationLockKey)
	if err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another migration is in progress; try again later")
	}
	defer func() {
		if err := db.ReleaseAdvisoryLock(ctx, database.MigrationLockKey); err != nil {
			logger.Warn().Err(err).Msg("failed to release migration lock")
		}
	}()

	return fn()
}

func runStatus(migrator *database.Migrator, logger zerolog.Logger) error {
	status, err := migrator.Status()
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}

	statusLogger := observability.WithMigrationContext(logger, status.Version, status.Dirty)
	statusLogger.Info().
		Uint("latest", status.Latest).
		Int("pending", status.Pending).
		Msg("migration status")

	fmt.Printf("version: %d\ndirty:   %t\nlatest:  %d\npending: %d\n",
		status.Version, status.Dirty, status.Latest, status.Pending)

	if status.Dirty {
		return fmt.Errorf("database is dirty at version %d", status.Version)
	}
	return nil
}

func runMigrate(migrator *database.Migrator, metrics *observability.Metrics, logger zerolog.Logger) error {
	start := time.Now()
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	metrics.RecordMigration("up", time.Since(start).Seconds())

	status, err := migrator.Status()
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}
	statusLogger := observability.WithMigrationContext(logger, status.Version, status.Dirty)
	statusLogger.Info().
		Msg("database is up to date")
	return nil
}

func runValidate(ctx context.Context, migrator *database.Migrator, db *database.DB, logger zerolog.Logger) error {
	if err := migrator.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Spot-check the live schema for the shape the chain should have
	// produced. Catches manual schema edits the version table cannot see.
	inspector := database.NewInspector(db)
	spotChecks := []struct {
		table  string
		column string
	}{
		{"papers", "workspace_id"},
		{"sentences", "detection_status"},
		{"paper_selections", "workspace_id"},
	}

	status, err := migrator.Status()
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}

	if status.Version >= 11 {
		for _, check := range spotChecks {
			ok, err := inspector.ColumnExists(ctx, check.table, check.column)
			if err != nil {
				return fmt.Errorf("spot-check %s.%s: %w", check.table, check.column, err)
			}
			if !ok {
				return fmt.Errorf("live schema mismatch: %s.%s missing at version %d",
					check.table, check.column, status.Version)
			}
		}
	}

	logger.Info().Msg("migration files and live schema are consistent")
	fmt.Println("ok")
	return nil
}

func runHistory(migrator *database.Migrator) error {
	entries, err := migrator.History()
	if err != nil {
		return fmt.Errorf("read migration history: %w", err)
	}

	for _, entry := range entries {
		marker := "pending"
		if entry.Applied {
			marker = "applied"
		}
		fmt.Printf("%06d  %-40s %s\n", entry.Version, entry.Name, marker)
	}
	return nil
}

func runReset(migrator *database.Migrator, metrics *observability.Metrics, args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	confirm := fs.String("confirm", "", fmt.Sprintf("must be %q to proceed", resetConfirmToken))
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *confirm != resetConfirmToken {
		return fmt.Errorf("reset destroys all data; re-run with -confirm %s", resetConfirmToken)
	}

	start := time.Now()
	if err := migrator.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	metrics.RecordMigration("down", 0)
	metrics.RecordMigration("up", time.Since(start).Seconds())

	logger.Info().Msg("database reset complete")
	return nil
}

func runForce(migrator *database.Migrator, args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("force", flag.ContinueOnError)
	version := fs.Int("version", -1, "version to force")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version < 0 {
		return fmt.Errorf("force requires -version N")
	}

	logger.Warn().Int("version", *version).Msg("forcing migration version")
	if err := migrator.Force(*version); err != nil {
		return fmt.Errorf("force version: %w", err)
	}
	return nil
}

// runCreate generates the next numbered up/down pair in the migrations
// directory.
func runCreate(path string, args []string, logger zerolog.Logger) error {
	if len(args) < 1 {
		return fmt.Errorf("create requires a migration name")
	}
	name := strings.ToLower(args[0])
	if !migrationNamePattern.MatchString(name) {
		return fmt.Errorf("migration name %q must match %s", name, migrationNamePattern)
	}

	latest, err := database.ValidateSource(path)
	if err != nil && !strings.Contains(err.Error(), "no migrations found") {
		return fmt.Errorf("existing migrations are invalid, fix them first: %w", err)
	}
	next := latest + 1

	for _, direction := range []string{"up", "down"} {
		filename := filepath.Join(path, fmt.Sprintf("%06d_%s.%s.sql", next, name, direction))
		content := fmt.Sprintf("-- %06d_%s.%s.sql\n\n", next, name, direction)
		if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", filename, err)
		}
		fmt.Println(filename)
	}

	logger.Info().Uint("version", next).Str("name", name).Msg("migration pair created")
	return nil
}
