// Package sqlite implements the persistence contracts on SQLite through
// modernc.org/sqlite and sqlx. The schema is managed by the migration
// subpackage from SQL files embedded in the binary.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations returns the schema migrations shipped with the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(fmt.Sprintf("sqlite: embedded migrations: %v", err))
	}
	return sub
}

// Store is a SQLite backed implementation of the schedule, class and
// enrollment repositories.
type Store struct {
	pool       *ConnectionPool
	retry      *RetryHelper
	migrations fs.FS
	logger     *slog.Logger
	now        func() time.Time
}

var (
	_ persistence.ScheduleRepository   = (*Store)(nil)
	_ persistence.ClassRepository      = (*Store)(nil)
	_ persistence.EnrollmentRepository = (*Store)(nil)
)

// Option customizes a Store.
type Option func(*Store)

// WithMigrations replaces the embedded migrations, e.g. with os.DirFS.
func WithMigrations(fsys fs.FS) Option {
	return func(s *Store) {
		if fsys != nil {
			s.migrations = fsys
		}
	}
}

// WithLogger sets the logger used for migrations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to the database. Call Migrate before first use.
func Open(ctx context.Context, config Config, opts ...Option) (*Store, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}

	store := &Store{
		pool:       pool,
		retry:      NewRetryHelper(DefaultRetryConfig()),
		migrations: Migrations(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// DB exposes the database handle for maintenance tasks.
func (s *Store) DB() *sqlx.DB {
	return s.pool.DB()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	manager := migration.NewManager(migration.NewScanner(s.migrations), migration.NewExecutor(s.pool.DB()), s.logger)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending migrations.
func (s *Store) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(migration.NewScanner(s.migrations), migration.NewExecutor(s.pool.DB()), s.logger)
	return manager.Status(ctx)
}

// WithinTx runs fn in one IMMEDIATE transaction. The whole transaction is
// retried when SQLite reports lock contention.
func (s *Store) WithinTx(ctx context.Context, fn func(tx persistence.ScheduleTx) error) error {
	if fn == nil {
		return fmt.Errorf("sqlite: transaction function is nil")
	}
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			return fn(&scheduleTx{q: tx})
		})
	})
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(column, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse %s %q: %w", column, value, err)
	}
	return t, nil
}
