package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// migrationFilePattern matches golang-migrate file names: NNNNNN_name.up.sql.
var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// Migrator handles database migrations.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB // sql.DB wrapper around pgx pool, must be closed
	path    string
	logger  zerolog.Logger
}

// MigrationStatus describes the current position in the migration chain.
type MigrationStatus struct {
	// Version is the currently applied version, 0 when no migration has run.
	Version uint
	// Dirty reports whether the last migration failed mid-way.
	Dirty bool
	// Latest is the highest version available in the migrations directory.
	Latest uint
	// Pending is the number of versions not yet applied.
	Pending int
}

// MigrationEntry is one step of the chain as reported by History.
type MigrationEntry struct {
	Version uint
	Name    string
	Applied bool
}

// NewMigrator creates a new migrator instance.
// It requires a valid database connection and a path to the migrations directory.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	// Validate inputs
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if db.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if migrationsPath == "" {
		return nil, fmt.Errorf("migrations path is required")
	}

	// Validate migrations path exists before creating database connections
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations path validation failed: %w", err)
	}

	// Get a standard database/sql connection from pgx pool
	sqlDB := stdlib.OpenDBFromPool(db.pool)

	// Create the postgres driver
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	// Create the migrate instance
	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		path:    migrationsPath,
		logger:  logger,
	}, nil
}

// Up runs all pending migrations.
func (m *Migrator) Up() error {
	m.logger.Info().Msg("running database migrations...")

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.logger.Info().Msg("migrations completed successfully")
	return nil
}

// Down rolls back all migrations.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("rolling back all migrations...")

	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to roll back")
			return nil
		}
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}

	m.logger.Info().Msg("migrations rolled back successfully")
	return nil
}

// Steps runs n migrations (positive = up, negative = down).
func (m *Migrator) Steps(n int) error {
	m.logger.Info().Int("steps", n).Msg("running migration steps...")

	if err := m.migrate.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to apply")
			return nil
		}
		// Handle "file does not exist" which occurs when at latest version
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Info().Msg("no more migrations available")
			return nil
		}
		return fmt.Errorf("failed to run migration steps: %w", err)
	}

	m.logger.Info().Int("steps", n).Msg("migration steps completed successfully")
	return nil
}

// Version returns the current migration version.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force sets the migration version without running migrations.
// This is useful for recovering from failed migrations.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing migration version...")
	return m.migrate.Force(version)
}

// Status reports the current version, dirty flag, and pending count against
// the migrations directory.
func (m *Migrator) Status() (*MigrationStatus, error) {
	versions, _, err := sourceVersions(m.path)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{}
	if len(versions) > 0 {
		status.Latest = versions[len(versions)-1]
	}

	current, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			status.Pending = len(versions)
			return status, nil
		}
		return nil, fmt.Errorf("failed to read migration version: %w", err)
	}

	status.Version = current
	status.Dirty = dirty
	for _, v := range versions {
		if v > current {
			status.Pending++
		}
	}
	return status, nil
}

// History lists every migration in the chain with its applied state.
func (m *Migrator) History() ([]MigrationEntry, error) {
	versions, names, err := sourceVersions(m.path)
	if err != nil {
		return nil, err
	}

	current, _, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("failed to read migration version: %w", err)
	}

	entries := make([]MigrationEntry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, MigrationEntry{
			Version: v,
			Name:    names[v],
			Applied: v <= current,
		})
	}
	return entries, nil
}

// Validate checks the migration source and the applied state:
// every up file has a matching down file, versions form a strict linear
// chain without gaps, and the database is not dirty.
func (m *Migrator) Validate() error {
	latest, err := ValidateSource(m.path)
	if err != nil {
		return err
	}

	current, dirty, err := m.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d; resolve manually and use force", current)
	}
	if current > latest {
		return fmt.Errorf("database version %d is ahead of migration files (latest %d)", current, latest)
	}

	m.logger.Info().
		Uint("latest", latest).
		Uint("current", current).
		Msg("migration chain is valid")
	return nil
}

// ValidateSource checks the migration files on disk: names parse, every up
// has a matching down, and versions are contiguous starting at 1.
// It returns the highest version found.
func ValidateSource(path string) (uint, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	ups := map[uint64]string{}
	downs := map[uint64]string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			if strings.HasSuffix(entry.Name(), ".sql") {
				return 0, fmt.Errorf("migration file %q does not match NNNNNN_name.{up,down}.sql", entry.Name())
			}
			continue
		}
		version, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("migration file %q has invalid version: %w", entry.Name(), err)
		}
		switch match[3] {
		case "up":
			if prev, ok := ups[version]; ok {
				return 0, fmt.Errorf("duplicate up migration for version %d: %s and %s", version, prev, entry.Name())
			}
			ups[version] = entry.Name()
		case "down":
			if prev, ok := downs[version]; ok {
				return 0, fmt.Errorf("duplicate down migration for version %d: %s and %s", version, prev, entry.Name())
			}
			downs[version] = entry.Name()
		}
	}

	if len(ups) == 0 {
		return 0, fmt.Errorf("no migrations found in %s", path)
	}

	versions := make([]uint64, 0, len(ups))
	for v := range ups {
		if _, ok := downs[v]; !ok {
			return 0, fmt.Errorf("migration %s has no matching down file", ups[v])
		}
		versions = append(versions, v)
	}
	for v := range downs {
		if _, ok := ups[v]; !ok {
			return 0, fmt.Errorf("migration %s has no matching up file", downs[v])
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	// The chain is strictly linear: versions are contiguous starting at 1.
	for i, v := range versions {
		if v != uint64(i+1) {
			return 0, fmt.Errorf("migration chain has a gap: expected version %d, found %d", i+1, v)
		}
	}

	return uint(versions[len(versions)-1]), nil
}

// Reset rolls back all migrations and re-applies the full chain.
// Callers must gate this behind an explicit confirmation; it destroys all data.
func (m *Migrator) Reset() error {
	m.logger.Warn().Msg("resetting database: rolling back all migrations")
	if err := m.Down(); err != nil {
		return fmt.Errorf("reset rollback failed: %w", err)
	}
	if err := m.Up(); err != nil {
		return fmt.Errorf("reset re-apply failed: %w", err)
	}
	m.logger.Info().Msg("database reset complete")
	return nil
}

// Close closes the migrator and releases resources.
// If both source and database close operations fail, both errors are combined.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()

	// Close the sql.DB wrapper to release connections back to the pool
	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}

	if sourceErr != nil && dbErr != nil {
		return fmt.Errorf("failed to close migrator: source error: %v, database error: %w", sourceErr, dbErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

// sourceVersions reads the migrations directory and returns the sorted
// versions plus a version-to-name map, considering only up files.
func sourceVersions(path string) ([]uint, map[uint]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := map[uint]string{}
	versions := make([]uint, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationFilePattern.FindStringSubmatch(filepath.Base(entry.Name()))
		if match == nil || match[3] != "up" {
			continue
		}
		v, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, uint(v))
		names[uint(v)] = match[2]
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, names, nil
}
