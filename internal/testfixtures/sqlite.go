package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/class-scheduler/internal/persistence/sqlite"
)

// NewSQLiteHarness wires services over a migrated SQLite database in a
// temporary directory. The store is closed when tb finishes.
func NewSQLiteHarness(tb testing.TB, opts ...ServiceFactoryOption) *Harness {
	tb.Helper()

	ctx := context.Background()
	path := filepath.Join(tb.TempDir(), "scheduler.db")

	store, err := sqlite.Open(ctx, sqlite.DefaultConfig(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	return NewHarness(store, opts...)
}
