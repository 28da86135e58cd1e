// Package postgres implements the persistence contracts on PostgreSQL with
// gorm. Conflict slots are serialized with transaction scoped advisory
// locks.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/example/class-scheduler/internal/persistence"
)

// Config describes the PostgreSQL connection.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SlowQueryThreshold marks queries logged at warn level. Zero disables it.
	SlowQueryThreshold time.Duration
}

// DefaultConfig returns pool settings suitable for a single server process.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:                dsn,
		MaxOpenConns:       10,
		MaxIdleConns:       5,
		ConnMaxLifetime:    30 * time.Minute,
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

// Store is a PostgreSQL backed implementation of the schedule, class and
// enrollment repositories.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ persistence.ScheduleRepository   = (*Store)(nil)
	_ persistence.ClassRepository      = (*Store)(nil)
	_ persistence.EnrollmentRepository = (*Store)(nil)
)

// Open connects to PostgreSQL. Call Migrate before first use.
func Open(ctx context.Context, config Config, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(config.DSN) == "" {
		return nil, errors.New("postgres: dsn is required")
	}

	db, err := gorm.Open(postgres.New(postgres.Config{DSN: config.DSN}), &gorm.Config{
		Logger:         newGormLogger(logger, config.SlowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: access pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&classModel{}, &enrollmentModel{}, &scheduleModel{}); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// WithinTx runs fn in one database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx persistence.ScheduleTx) error) error {
	if fn == nil {
		return errors.New("postgres: transaction function is nil")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&scheduleTx{db: tx})
	})
}

// mapError translates gorm errors into persistence errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return persistence.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case strings.Contains(err.Error(), "SQLSTATE 23514"), strings.Contains(err.Error(), "SQLSTATE 23502"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}
