package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/persistence/storetest"
)

// openTestStore connects to SCHEDULER_TEST_POSTGRES_DSN and empties the
// tables. Tests are skipped when the variable is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("SCHEDULER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCHEDULER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, DefaultConfig(dsn), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := store.db.Exec(`TRUNCATE schedules, enrollments, classes`).Error; err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return openTestStore(t) })
}

func TestTimeAndDateConversions(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"00:00:00", "08:30:00", "23:59:59"} {
		tod := calendar.MustParseTimeOfDay(raw)
		back, err := fromTime(toTime(tod))
		if err != nil {
			t.Fatalf("fromTime(%s) failed: %v", raw, err)
		}
		if back != tod {
			t.Fatalf("expected %s, got %s", tod, back)
		}
	}

	d := calendar.MustParseDate("2024-02-29")
	if got := fromDate(toDate(d)); !got.Equal(d) {
		t.Fatalf("expected %s, got %s", d, got)
	}
	if fromDatePtr(nil) != nil || toDatePtr(nil) != nil {
		t.Fatalf("expected nil dates to stay nil")
	}
}

func TestExceptionSetsEncodeAsJSONArrays(t *testing.T) {
	t.Parallel()

	empty, err := toDateSet(calendar.DateSet{})
	if err != nil {
		t.Fatalf("toDateSet failed: %v", err)
	}
	if string(empty) != "[]" {
		t.Fatalf("expected [], got %s", empty)
	}

	set, err := fromDateSet([]byte(`"[\"2024-01-15\"]"`))
	if err != nil {
		t.Fatalf("fromDateSet failed: %v", err)
	}
	if !set.Contains(calendar.MustParseDate("2024-01-15")) {
		t.Fatalf("expected legacy string encoding to decode, got %s", set)
	}
}

func TestGormLoggerLevels(t *testing.T) {
	t.Parallel()

	logger := newGormLogger(nil, time.Millisecond)
	silent := logger.LogMode(gormlogger.Silent)
	if silent == logger {
		t.Fatalf("expected LogMode to return a copy")
	}
	// Must not panic on a silent logger with a nil query callback.
	silent.Trace(context.Background(), time.Now(), nil, nil)
}
