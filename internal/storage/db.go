// Package storage owns the SQLite connection, schema migrations and the
// transaction helper shared by all services.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bip/backend/internal/storage/migrations"
)

// MemoryPath opens a private in-memory database. It only survives while the
// single pooled connection stays open.
const MemoryPath = ":memory:"

// Options configures Open.
type Options struct {
	Path         string
	MaxOpenConns int
}

// Open connects to the database at opts.Path and applies pending migrations.
func Open(opts Options, logger *slog.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.Connect("sqlite", dsn(opts.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite serialises writers; one connection avoids SQLITE_BUSY churn and
	// keeps :memory: databases alive.
	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 || opts.Path == MemoryPath {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	if opts.Path != MemoryPath {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := ApplyMigrations(db.DB, logger); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("Database connected and migrations applied", "path", opts.Path)
	return db, nil
}

// Close closes the pool and logs the outcome.
func Close(db *sqlx.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.Close(); err != nil {
		logger.Error("Error closing database connection", "error", err)
		return
	}
	logger.Info("Database connection closed")
}

// ApplyMigrations runs the embedded migrations up to the latest version.
func ApplyMigrations(db *sql.DB, logger *slog.Logger) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}
	if logger == nil {
		logger = slog.Default()
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("No database migrations to apply")
			return nil
		}
		return err
	}
	logger.Info("Database migrations applied")
	return nil
}

// SchemaVersion returns the applied migration version.
func SchemaVersion(ctx context.Context, q sqlx.QueryerContext) (int64, error) {
	var version int64
	err := sqlx.GetContext(ctx, q, &version, `SELECT version FROM schema_migrations LIMIT 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Failed to rollback transaction", "error", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err was caused by a UNIQUE or PRIMARY KEY
// constraint.
func IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

func dsn(path string) string {
	// Immediate transactions take the write lock at BEGIN, where busy_timeout
	// still applies, instead of failing on a read-to-write upgrade.
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite&_txlock=immediate"
	if path == MemoryPath {
		return path + "?" + pragmas
	}
	return "file:" + path + "?" + pragmas + "&_pragma=journal_mode(WAL)"
}
