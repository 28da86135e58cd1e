package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/lock"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/persistence/memory"
	"github.com/example/class-scheduler/internal/scheduler"
)

var fixedNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type serviceHarness struct {
	store   *memory.Store
	sync    *SessionSynchronizer
	service *ScheduleService
}

// newHarness wires the service over a memory store seeded with two classes:
// class-1 (Algebra I, lecturer-1, math) with students 1 and 2, and class-2
// (Physics, lecturer-2, science) with student 1.
func newHarness(t *testing.T) *serviceHarness {
	t.Helper()

	ctx := context.Background()
	store := memory.New()
	for _, class := range []persistence.Class{
		{ID: "class-1", Label: "Algebra I", LecturerID: "lecturer-1", DepartmentID: "math", CreatedAt: fixedNow, UpdatedAt: fixedNow},
		{ID: "class-2", Label: "Physics", LecturerID: "lecturer-2", DepartmentID: "science", CreatedAt: fixedNow, UpdatedAt: fixedNow},
	} {
		if err := store.UpsertClass(ctx, class); err != nil {
			t.Fatalf("seed class: %v", err)
		}
	}
	for _, enrollment := range []persistence.Enrollment{
		{ID: "enrollment-1", ClassID: "class-1", StudentID: "student-1"},
		{ID: "enrollment-2", ClassID: "class-1", StudentID: "student-2"},
		{ID: "enrollment-3", ClassID: "class-2", StudentID: "student-1"},
	} {
		if err := store.UpsertEnrollment(ctx, enrollment); err != nil {
			t.Fatalf("seed enrollment: %v", err)
		}
	}

	now := func() time.Time { return fixedNow }
	sync := NewSessionSynchronizerWithLogger(store, store, store, lock.NewLocal(), 0, now, quietLogger())
	service := NewScheduleServiceWithLogger(store, store, sync, sequentialIDs("schedule"), now, quietLogger())
	return &serviceHarness{store: store, sync: sync, service: service}
}

// totalSessions returns the session count stored on the class enrollments,
// failing when they disagree.
func (h *serviceHarness) totalSessions(t *testing.T, classID string) int {
	t.Helper()

	enrollments, err := h.store.ListEnrollments(context.Background(), classID)
	if err != nil {
		t.Fatalf("list enrollments: %v", err)
	}
	if len(enrollments) == 0 {
		t.Fatalf("class %s has no enrollments", classID)
	}
	total := enrollments[0].TotalSessions
	for _, enrollment := range enrollments[1:] {
		if enrollment.TotalSessions != total {
			t.Fatalf("expected identical totals across enrollments, got %d and %d", total, enrollment.TotalSessions)
		}
	}
	return total
}

func (h *serviceHarness) schedule(t *testing.T, id string) scheduler.Schedule {
	t.Helper()

	schedule, err := h.store.GetSchedule(context.Background(), id)
	if err != nil {
		t.Fatalf("get schedule %s: %v", id, err)
	}
	return schedule
}

func (h *serviceHarness) create(t *testing.T, input ScheduleInput) scheduler.Schedule {
	t.Helper()

	schedule, warnings, err := h.service.CreateSchedule(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateSchedule returned error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	return schedule
}

// mondaySeries is a weekly Monday 08:00-10:00 series in Main 101.
func mondaySeries(classID, from, to string) ScheduleInput {
	return ScheduleInput{
		ClassID:       classID,
		Kind:          scheduler.KindRecurring,
		DayOfWeek:     calendar.Monday,
		StartTime:     "08:00:00",
		EndTime:       "10:00:00",
		EffectiveFrom: from,
		EffectiveTo:   to,
		Room:          "101",
		Building:      "Main",
	}
}

// singleSession is a one-off 08:00-10:00 session in Main 101.
func singleSession(classID, date string) ScheduleInput {
	return ScheduleInput{
		ClassID:       classID,
		Kind:          scheduler.KindSingleDate,
		StartTime:     "08:00:00",
		EndTime:       "10:00:00",
		EffectiveFrom: date,
		Room:          "101",
		Building:      "Main",
	}
}

func mustDate(value string) calendar.Date {
	return calendar.MustParseDate(value)
}

func boolPtr(v bool) *bool {
	return &v
}

func expectValidationField(t *testing.T, err error, field string) {
	t.Helper()

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := vErr.FieldErrors[field]; !ok {
		t.Fatalf("expected validation error for %s, got %v", field, vErr.FieldErrors)
	}
}

type resyncerStub struct {
	err   error
	calls []string
}

func (s *resyncerStub) ResyncClass(ctx context.Context, classID string) (ResyncResult, error) {
	s.calls = append(s.calls, classID)
	if s.err != nil {
		return ResyncResult{}, s.err
	}
	return ResyncResult{ClassID: classID}, nil
}

type enrollmentWriterStub struct {
	err    error
	totals map[string]int
}

func (s *enrollmentWriterStub) SetTotalSessions(ctx context.Context, classID string, total int) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.totals == nil {
		s.totals = make(map[string]int)
	}
	s.totals[classID] = total
	return 1, nil
}
