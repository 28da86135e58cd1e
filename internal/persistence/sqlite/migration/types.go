package migration

import (
	"context"
	"time"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     string // numeric version, e.g. "001"
	Description string
	SQL         string
	FilePath    string
	Checksum    string // sha256 of SQL
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarizes the schema version of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}

// Source lists the migrations available to apply, ordered by version.
type Source interface {
	Scan() ([]Migration, error)
}

// Executor runs migrations against a database.
type Executor interface {
	// InitializeVersionTable creates the schema_migrations table if needed.
	InitializeVersionTable(ctx context.Context) error
	// Apply runs the migration and records its version in one transaction.
	Apply(ctx context.Context, migration Migration) error
	// Applied returns the recorded migrations ordered by version.
	Applied(ctx context.Context) ([]AppliedMigration, error)
}
