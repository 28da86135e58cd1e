// Package storetest holds the behavioural contract every persistence
// backend must satisfy. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/scheduler"
)

// Store is the full set of contracts a backend implements.
type Store interface {
	persistence.ScheduleRepository
	persistence.ClassRepository
	persistence.EnrollmentRepository
}

// Opener returns an empty store. Cleanup is registered on t.
type Opener func(t *testing.T) Store

var reference = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// Run exercises the persistence contracts against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Helper()

	t.Run("schedule round trip", func(t *testing.T) { testScheduleRoundTrip(t, open(t)) })
	t.Run("schedule not found", func(t *testing.T) { testScheduleNotFound(t, open(t)) })
	t.Run("duplicate schedule", func(t *testing.T) { testDuplicateSchedule(t, open(t)) })
	t.Run("transaction rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("schedule filters", func(t *testing.T) { testScheduleFilters(t, open(t)) })
	t.Run("class directory", func(t *testing.T) { testClassDirectory(t, open(t)) })
	t.Run("total sessions", func(t *testing.T) { testTotalSessions(t, open(t)) })
}

// Series builds an active Monday 08:00-10:00 lecture in room 101 of Main.
func Series(id, classID string) scheduler.Schedule {
	to := calendar.MustParseDate("2024-01-29")
	return scheduler.Schedule{
		ID:            id,
		ClassID:       classID,
		Kind:          scheduler.KindRecurring,
		DayOfWeek:     calendar.Monday,
		StartTime:     calendar.MustParseTimeOfDay("08:00:00"),
		EndTime:       calendar.MustParseTimeOfDay("10:00:00"),
		EffectiveFrom: calendar.MustParseDate("2024-01-01"),
		EffectiveTo:   &to,
		Location:      scheduler.Location{Room: "101", Building: "Main", Campus: "North"},
		SessionType:   scheduler.SessionLecture,
		IsActive:      true,
		CreatedAt:     reference,
		UpdatedAt:     reference,
	}
}

func create(t *testing.T, store Store, schedules ...scheduler.Schedule) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(tx persistence.ScheduleTx) error {
		for _, s := range schedules {
			if err := tx.CreateSchedule(context.Background(), s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create schedules failed: %v", err)
	}
}

func seedClass(t *testing.T, store Store, class persistence.Class) {
	t.Helper()
	if err := store.UpsertClass(context.Background(), class); err != nil {
		t.Fatalf("UpsertClass(%s) failed: %v", class.ID, err)
	}
}

func assertSameSchedule(t *testing.T, want, got scheduler.Schedule) {
	t.Helper()

	if got.ID != want.ID || got.ClassID != want.ClassID || got.Kind != want.Kind || got.ParentID != want.ParentID {
		t.Fatalf("identity mismatch: want %+v, got %+v", want, got)
	}
	if got.DayOfWeek != want.DayOfWeek || got.StartTime != want.StartTime || got.EndTime != want.EndTime {
		t.Fatalf("slot mismatch: want %v %s-%s, got %v %s-%s", want.DayOfWeek, want.StartTime, want.EndTime, got.DayOfWeek, got.StartTime, got.EndTime)
	}
	if got.EffectiveFrom != want.EffectiveFrom || !sameDatePtr(got.EffectiveTo, want.EffectiveTo) || !sameDatePtr(got.ReplacesDate, want.ReplacesDate) {
		t.Fatalf("date mismatch: want %s..%v, got %s..%v", want.EffectiveFrom, want.EffectiveTo, got.EffectiveFrom, got.EffectiveTo)
	}
	if got.Location != want.Location || got.SessionType != want.SessionType {
		t.Fatalf("location mismatch: want %+v %s, got %+v %s", want.Location, want.SessionType, got.Location, got.SessionType)
	}
	if got.IsActive != want.IsActive || got.IsOnline != want.IsOnline || got.MeetingURL != want.MeetingURL {
		t.Fatalf("flag mismatch: want %+v, got %+v", want, got)
	}
	if got.SubstituteLecturerID != want.SubstituteLecturerID || got.Notes != want.Notes {
		t.Fatalf("detail mismatch: want %+v, got %+v", want, got)
	}
	if !got.CancelledDates.Equal(want.CancelledDates) || !got.DeletedDates.Equal(want.DeletedDates) {
		t.Fatalf("exception mismatch: want %s / %s, got %s / %s", want.CancelledDates, want.DeletedDates, got.CancelledDates, got.DeletedDates)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("timestamp mismatch: want %s/%s, got %s/%s", want.CreatedAt, want.UpdatedAt, got.CreatedAt, got.UpdatedAt)
	}
}

func sameDatePtr(a, b *calendar.Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func testScheduleRoundTrip(t *testing.T, store Store) {
	ctx := context.Background()
	seedClass(t, store, persistence.Class{ID: "class-1", Label: "Algorithms"})

	series := Series("sched-1", "class-1")
	series.CancelledDates = calendar.NewDateSet(calendar.MustParseDate("2024-01-15"))
	series.DeletedDates = calendar.NewDateSet(calendar.MustParseDate("2024-01-22"), calendar.MustParseDate("2024-01-08"))
	series.Notes = "bring laptops"
	series.SubstituteLecturerID = "lect-9"

	override := Series("sched-2", "class-1")
	override.Kind = scheduler.KindOverride
	override.ParentID = series.ID
	override.DayOfWeek = calendar.Tuesday
	override.EffectiveFrom = calendar.MustParseDate("2024-01-30")
	override.EffectiveTo = &override.EffectiveFrom
	replaced := calendar.MustParseDate("2024-01-29")
	override.ReplacesDate = &replaced
	override.IsOnline = true
	override.MeetingURL = "https://meet.example.com/algo"

	create(t, store, series, override)

	fetched, err := store.GetSchedule(ctx, series.ID)
	if err != nil {
		t.Fatalf("GetSchedule failed: %v", err)
	}
	assertSameSchedule(t, series, fetched)

	fetched, err = store.GetSchedule(ctx, override.ID)
	if err != nil {
		t.Fatalf("GetSchedule override failed: %v", err)
	}
	assertSameSchedule(t, override, fetched)

	series.EffectiveTo = nil
	series.IsActive = false
	series.CancelledDates = calendar.DateSet{}
	series.UpdatedAt = reference.Add(time.Hour)
	err = store.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		if err := tx.LockSlot(ctx, series.Slot()); err != nil {
			return err
		}
		return tx.UpdateSchedule(ctx, series)
	})
	if err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}
	fetched, err = store.GetSchedule(ctx, series.ID)
	if err != nil {
		t.Fatalf("GetSchedule after update failed: %v", err)
	}
	assertSameSchedule(t, series, fetched)

	err = store.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		return tx.DeleteSchedule(ctx, override.ID)
	})
	if err != nil {
		t.Fatalf("DeleteSchedule failed: %v", err)
	}
	if _, err := store.GetSchedule(ctx, override.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func testScheduleNotFound(t *testing.T, store Store) {
	ctx := context.Background()

	if _, err := store.GetSchedule(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from GetSchedule, got %v", err)
	}
	err := store.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		return tx.UpdateSchedule(ctx, Series("missing", "class-1"))
	})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from UpdateSchedule, got %v", err)
	}
	err = store.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		return tx.DeleteSchedule(ctx, "missing")
	})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from DeleteSchedule, got %v", err)
	}
}

func testDuplicateSchedule(t *testing.T, store Store) {
	ctx := context.Background()
	seedClass(t, store, persistence.Class{ID: "class-1", Label: "Algorithms"})
	create(t, store, Series("sched-1", "class-1"))

	err := store.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		return tx.CreateSchedule(ctx, Series("sched-1", "class-1"))
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func testRollback(t *testing.T, store Store) {
	ctx := context.Background()
	seedClass(t, store, persistence.Class{ID: "class-1", Label: "Algorithms"})
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		if err := tx.CreateSchedule(ctx, Series("sched-1", "class-1")); err != nil {
			return err
		}
		if _, err := tx.GetSchedule(ctx, "sched-1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}
	if _, err := store.GetSchedule(ctx, "sched-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected rolled back schedule to be absent, got %v", err)
	}
}

func testScheduleFilters(t *testing.T, store Store) {
	ctx := context.Background()
	seedClass(t, store, persistence.Class{ID: "class-1", Label: "Algorithms"})
	seedClass(t, store, persistence.Class{ID: "class-2", Label: "Databases"})

	a := Series("a", "class-1")
	b := Series("b", "class-2")
	b.Location = scheduler.Location{Room: "202", Building: "Main"}
	b.SubstituteLecturerID = "lect-2"
	c := Series("c", "class-2")
	c.IsActive = false
	c.EffectiveFrom = calendar.MustParseDate("2024-03-04")
	c.EffectiveTo = nil
	d := Series("d", "class-1")
	d.Kind = scheduler.KindOverride
	d.ParentID = "a"
	d.EffectiveFrom = calendar.MustParseDate("2024-01-29")
	d.EffectiveTo = &d.EffectiveFrom
	d.Location = scheduler.Location{Room: " 101", Building: "MAIN"}
	e := Series("e", "class-2")
	e.Kind = scheduler.KindOverride
	e.ParentID = "b"
	e.EffectiveFrom = calendar.MustParseDate("2024-01-22")
	e.EffectiveTo = &e.EffectiveFrom
	e.Location = scheduler.Location{Room: "202", Building: "Main"}
	create(t, store, a, b, c, d, e)

	slot := scheduler.NewSlot("101", "main", calendar.Monday)
	from := calendar.MustParseDate("2024-02-01")
	to := calendar.MustParseDate("2024-12-31")

	cases := []struct {
		name   string
		filter persistence.ScheduleFilter
		want   []string
	}{
		{name: "all", filter: persistence.ScheduleFilter{}, want: []string{"a", "b", "c", "d", "e"}},
		{name: "class", filter: persistence.ScheduleFilter{ClassIDs: []string{"class-2"}}, want: []string{"b", "c", "e"}},
		{name: "no classes", filter: persistence.ScheduleFilter{ClassIDs: []string{}}, want: nil},
		{name: "active", filter: persistence.ScheduleFilter{ActiveOnly: true}, want: []string{"a", "b", "d", "e"}},
		{name: "slot", filter: persistence.ScheduleFilter{Slot: &slot}, want: []string{"a", "c", "d"}},
		{name: "parent", filter: persistence.ScheduleFilter{ParentID: "a"}, want: []string{"d"}},
		{name: "parents", filter: persistence.ScheduleFilter{ParentIDs: []string{"a", "b", "c"}}, want: []string{"d", "e"}},
		{name: "parents and class", filter: persistence.ScheduleFilter{ParentIDs: []string{"a", "b"}, ClassIDs: []string{"class-2"}}, want: []string{"e"}},
		{name: "no parents", filter: persistence.ScheduleFilter{ParentIDs: []string{}}, want: nil},
		{name: "substitute", filter: persistence.ScheduleFilter{SubstituteLecturerID: "lect-2"}, want: []string{"b"}},
		{name: "overlap keeps open series", filter: persistence.ScheduleFilter{OverlapsFrom: &from, OverlapsTo: &to}, want: []string{"c"}},
	}

	for _, tc := range cases {
		got, err := store.ListSchedules(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: ListSchedules failed: %v", tc.name, err)
		}
		ids := make(map[string]bool, len(got))
		for _, s := range got {
			ids[s.ID] = true
		}
		if len(ids) != len(tc.want) {
			t.Fatalf("%s: expected %v, got %d schedules", tc.name, tc.want, len(got))
		}
		for _, id := range tc.want {
			if !ids[id] {
				t.Fatalf("%s: expected %s in results", tc.name, id)
			}
		}
	}
}

func testClassDirectory(t *testing.T, store Store) {
	ctx := context.Background()
	ends := calendar.MustParseDate("2024-06-30")
	seedClass(t, store, persistence.Class{ID: "class-1", Label: "Algorithms", LecturerID: "lect-1", DepartmentID: "cs", EndsOn: &ends, CreatedAt: reference, UpdatedAt: reference})
	seedClass(t, store, persistence.Class{ID: "class-2", Label: "Databases", LecturerID: "lect-2", DepartmentID: "cs", CreatedAt: reference, UpdatedAt: reference})
	seedClass(t, store, persistence.Class{ID: "class-3", Label: "Statistics", LecturerID: "lect-1", DepartmentID: "math", CreatedAt: reference, UpdatedAt: reference})

	if err := store.UpsertEnrollment(ctx, persistence.Enrollment{ID: "enr-1", ClassID: "class-2", StudentID: "stu-1", CreatedAt: reference, UpdatedAt: reference}); err != nil {
		t.Fatalf("UpsertEnrollment failed: %v", err)
	}

	class, err := store.GetClass(ctx, "class-1")
	if err != nil {
		t.Fatalf("GetClass failed: %v", err)
	}
	if class.Label != "Algorithms" || class.EndsOn == nil || !class.EndsOn.Equal(ends) {
		t.Fatalf("unexpected class %+v", class)
	}
	if _, err := store.GetClass(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cases := []struct {
		name   string
		filter persistence.ClassFilter
		want   []string
	}{
		{name: "lecturer", filter: persistence.ClassFilter{LecturerID: "lect-1"}, want: []string{"class-1", "class-3"}},
		{name: "department", filter: persistence.ClassFilter{DepartmentID: "cs"}, want: []string{"class-1", "class-2"}},
		{name: "student", filter: persistence.ClassFilter{StudentID: "stu-1"}, want: []string{"class-2"}},
		{name: "ids", filter: persistence.ClassFilter{IDs: []string{"class-3"}}, want: []string{"class-3"}},
	}
	for _, tc := range cases {
		got, err := store.ListClasses(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: ListClasses failed: %v", tc.name, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: expected %v, got %+v", tc.name, tc.want, got)
		}
		for i, id := range tc.want {
			if got[i].ID != id {
				t.Fatalf("%s: expected %s at %d, got %s", tc.name, id, i, got[i].ID)
			}
		}
	}
}

func testTotalSessions(t *testing.T, store Store) {
	ctx := context.Background()
	seedClass(t, store, persistence.Class{ID: "class-1", Label: "Algorithms"})
	seedClass(t, store, persistence.Class{ID: "class-2", Label: "Databases"})
	for _, e := range []persistence.Enrollment{
		{ID: "enr-1", ClassID: "class-1", StudentID: "stu-1", TotalSessions: 2},
		{ID: "enr-2", ClassID: "class-1", StudentID: "stu-2", TotalSessions: 9},
		{ID: "enr-3", ClassID: "class-2", StudentID: "stu-1", TotalSessions: 4},
	} {
		e.CreatedAt, e.UpdatedAt = reference, reference
		if err := store.UpsertEnrollment(ctx, e); err != nil {
			t.Fatalf("UpsertEnrollment(%s) failed: %v", e.ID, err)
		}
	}

	written, err := store.SetTotalSessions(ctx, "class-1", 5)
	if err != nil {
		t.Fatalf("SetTotalSessions failed: %v", err)
	}
	if written != 2 {
		t.Fatalf("expected 2 rows written, got %d", written)
	}

	enrollments, err := store.ListEnrollments(ctx, "class-1")
	if err != nil {
		t.Fatalf("ListEnrollments failed: %v", err)
	}
	for _, e := range enrollments {
		if e.TotalSessions != 5 {
			t.Fatalf("expected total 5 on %s, got %d", e.ID, e.TotalSessions)
		}
	}

	other, err := store.ListEnrollments(ctx, "class-2")
	if err != nil {
		t.Fatalf("ListEnrollments failed: %v", err)
	}
	if len(other) != 1 || other[0].TotalSessions != 4 {
		t.Fatalf("expected class-2 to be untouched, got %+v", other)
	}

	if written, err := store.SetTotalSessions(ctx, "class-without-enrollments", 3); err != nil || written != 0 {
		t.Fatalf("expected no rows written, got %d err=%v", written, err)
	}
}
