package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/persistence/memory"
	"github.com/example/class-scheduler/internal/scheduler"
)

func TestScheduleService_CreateSchedule(t *testing.T) {
	t.Run("creates a recurring series and counts its sessions", func(t *testing.T) {
		h := newHarness(t)

		schedule := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))

		if schedule.ID != "schedule-1" {
			t.Fatalf("expected generated id schedule-1, got %s", schedule.ID)
		}
		if schedule.Kind != scheduler.KindRecurring || schedule.DayOfWeek != calendar.Monday {
			t.Fatalf("unexpected kind or weekday: %s %s", schedule.Kind, schedule.DayOfWeek)
		}
		if !schedule.IsActive || schedule.SessionType != scheduler.SessionLecture {
			t.Fatalf("expected active lecture by default, got active=%v type=%s", schedule.IsActive, schedule.SessionType)
		}
		if !schedule.CreatedAt.Equal(fixedNow) {
			t.Fatalf("expected created at %v, got %v", fixedNow, schedule.CreatedAt)
		}
		if got := h.totalSessions(t, "class-1"); got != 5 {
			t.Fatalf("expected 5 sessions, got %d", got)
		}
	})

	t.Run("derives the weekday of a single date schedule", func(t *testing.T) {
		h := newHarness(t)

		schedule := h.create(t, singleSession("class-1", "2024-01-03"))

		if schedule.DayOfWeek != calendar.Wednesday {
			t.Fatalf("expected wednesday, got %s", schedule.DayOfWeek)
		}
		if schedule.EffectiveTo == nil || !schedule.EffectiveTo.Equal(mustDate("2024-01-03")) {
			t.Fatalf("expected effective_to to equal effective_from, got %v", schedule.EffectiveTo)
		}
		if got := h.totalSessions(t, "class-1"); got != 1 {
			t.Fatalf("expected 1 session, got %d", got)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*ScheduleInput)
			field  string
		}{
			{name: "missing class", mutate: func(in *ScheduleInput) { in.ClassID = "" }, field: "class_id"},
			{name: "unknown class", mutate: func(in *ScheduleInput) { in.ClassID = "class-404" }, field: "class_id"},
			{name: "start after end", mutate: func(in *ScheduleInput) { in.StartTime = "11:00:00" }, field: "end_time"},
			{name: "start equals end", mutate: func(in *ScheduleInput) { in.EndTime = "08:00:00" }, field: "end_time"},
			{name: "malformed time", mutate: func(in *ScheduleInput) { in.StartTime = "8 o'clock" }, field: "start_time"},
			{name: "missing weekday", mutate: func(in *ScheduleInput) { in.DayOfWeek = calendar.WeekdayUnspecified }, field: "day_of_week"},
			{name: "missing effective from", mutate: func(in *ScheduleInput) { in.EffectiveFrom = "" }, field: "effective_from"},
			{name: "inverted range", mutate: func(in *ScheduleInput) { in.EffectiveTo = "2023-12-01" }, field: "effective_to"},
			{name: "online without url", mutate: func(in *ScheduleInput) { in.IsOnline = true }, field: "meeting_url"},
			{name: "invalid url", mutate: func(in *ScheduleInput) { in.MeetingURL = "not a url" }, field: "meeting_url"},
			{name: "unknown session type", mutate: func(in *ScheduleInput) { in.SessionType = "party" }, field: "session_type"},
			{name: "override kind", mutate: func(in *ScheduleInput) { in.Kind = scheduler.KindOverride }, field: "kind"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t)
				input := mondaySeries("class-1", "2024-01-01", "2024-01-29")
				tt.mutate(&input)

				_, _, err := h.service.CreateSchedule(context.Background(), input)
				expectValidationField(t, err, tt.field)

				schedules, listErr := h.store.ListSchedules(context.Background(), persistence.ScheduleFilter{})
				if listErr != nil {
					t.Fatalf("list schedules: %v", listErr)
				}
				if len(schedules) != 0 {
					t.Fatalf("expected nothing persisted, got %d schedules", len(schedules))
				}
			})
		}
	})

	t.Run("rejects a single date schedule with a mismatched weekday", func(t *testing.T) {
		h := newHarness(t)
		input := singleSession("class-1", "2024-01-03")
		input.DayOfWeek = calendar.Monday

		_, _, err := h.service.CreateSchedule(context.Background(), input)
		expectValidationField(t, err, "day_of_week")
	})

	t.Run("rejects a clash with an open ended series", func(t *testing.T) {
		h := newHarness(t)
		h.create(t, mondaySeries("class-1", "2024-01-01", ""))

		_, _, err := h.service.CreateSchedule(context.Background(), singleSession("class-2", "2030-06-03"))
		var cErr *ConflictError
		if !errors.As(err, &cErr) {
			t.Fatalf("expected conflict error, got %v", err)
		}
		if cErr.ScheduleID != "schedule-1" || cErr.ClassLabel != "Algebra I" {
			t.Fatalf("expected conflict with schedule-1 of Algebra I, got %+v", cErr)
		}
	})

	t.Run("inactive schedules never conflict", func(t *testing.T) {
		h := newHarness(t)
		h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))

		input := mondaySeries("class-2", "2024-01-01", "2024-01-29")
		input.IsActive = boolPtr(false)
		schedule := h.create(t, input)
		if schedule.IsActive {
			t.Fatalf("expected inactive schedule")
		}
		if got := h.totalSessions(t, "class-2"); got != 0 {
			t.Fatalf("expected inactive schedule not to count, got %d", got)
		}
	})

	t.Run("room matching ignores case and padding", func(t *testing.T) {
		h := newHarness(t)
		h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))

		input := singleSession("class-2", "2024-01-08")
		input.Room, input.Building = " 101 ", "MAIN"
		_, _, err := h.service.CreateSchedule(context.Background(), input)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("schedules without a room never conflict", func(t *testing.T) {
		h := newHarness(t)
		first := mondaySeries("class-1", "2024-01-01", "2024-01-29")
		first.Room, first.Building = "", ""
		h.create(t, first)
		h.create(t, first)
	})
}

func TestScheduleService_ConflictCarveOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.create(t, mondaySeries("class-1", "2024-03-04", "2024-05-06"))
	if _, _, err := h.service.ToggleSingleOccurrence(ctx, a.ID, mustDate("2024-03-04")); err != nil {
		t.Fatalf("ToggleSingleOccurrence returned error: %v", err)
	}

	if _, _, err := h.service.CreateSchedule(ctx, singleSession("class-2", "2024-03-04")); err != nil {
		t.Fatalf("expected the cancelled date to be bookable, got %v", err)
	}

	_, _, err := h.service.CreateSchedule(ctx, singleSession("class-2", "2024-03-11"))
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if cErr.ScheduleID != a.ID || !cErr.Date.Equal(mustDate("2024-03-11")) {
		t.Fatalf("expected conflict with %s on 2024-03-11, got %+v", a.ID, cErr)
	}

	t.Run("restoring a booked date conflicts", func(t *testing.T) {
		_, _, err := h.service.ToggleSingleOccurrence(ctx, a.ID, mustDate("2024-03-04"))
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict when restoring a date taken by another class, got %v", err)
		}
		if !h.schedule(t, a.ID).CancelledDates.Contains(mustDate("2024-03-04")) {
			t.Fatalf("expected the failed toggle to leave the date cancelled")
		}
	})
}

func TestScheduleService_EndToEndSessionCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
	if got := h.totalSessions(t, "class-1"); got != 5 {
		t.Fatalf("expected 5 sessions, got %d", got)
	}

	if _, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, mustDate("2024-01-15")); err != nil {
		t.Fatalf("ToggleSingleOccurrence returned error: %v", err)
	}
	if got := h.totalSessions(t, "class-1"); got != 4 {
		t.Fatalf("expected 4 sessions after cancelling, got %d", got)
	}

	if _, err := h.service.DeleteSingleOccurrence(ctx, series.ID, mustDate("2024-01-22")); err != nil {
		t.Fatalf("DeleteSingleOccurrence returned error: %v", err)
	}
	if got := h.totalSessions(t, "class-1"); got != 3 {
		t.Fatalf("expected 3 sessions after deleting, got %d", got)
	}

	override, warnings, err := h.service.EditSingleOccurrence(ctx, series.ID, mustDate("2024-01-29"), OverrideInput{Date: "2024-01-30"})
	if err != nil {
		t.Fatalf("EditSingleOccurrence returned error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if override.DayOfWeek != calendar.Tuesday || !override.EffectiveFrom.Equal(mustDate("2024-01-30")) {
		t.Fatalf("expected tuesday override on 2024-01-30, got %s %s", override.DayOfWeek, override.EffectiveFrom)
	}
	if got := h.totalSessions(t, "class-1"); got != 3 {
		t.Fatalf("expected 3 sessions after overriding, got %d", got)
	}
}

func TestScheduleService_ToggleSingleOccurrence(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip restores the original set", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		before := h.schedule(t, series.ID).CancelledDates

		cancelled, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, mustDate("2024-01-08"))
		if err != nil {
			t.Fatalf("first toggle returned error: %v", err)
		}
		if !cancelled.CancelledDates.Contains(mustDate("2024-01-08")) {
			t.Fatalf("expected date to be cancelled, got %s", cancelled.CancelledDates)
		}

		restored, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, mustDate("2024-01-08"))
		if err != nil {
			t.Fatalf("second toggle returned error: %v", err)
		}
		if !restored.CancelledDates.Equal(before) {
			t.Fatalf("expected %s after round trip, got %s", before, restored.CancelledDates)
		}
		if got := h.totalSessions(t, "class-1"); got != 5 {
			t.Fatalf("expected 5 sessions after round trip, got %d", got)
		}
	})

	t.Run("rejects single date schedules", func(t *testing.T) {
		h := newHarness(t)
		single := h.create(t, singleSession("class-1", "2024-01-03"))

		_, _, err := h.service.ToggleSingleOccurrence(ctx, single.ID, mustDate("2024-01-03"))
		expectValidationField(t, err, "date")
	})

	t.Run("rejects dates that are not occurrences", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))

		for _, raw := range []string{"2024-01-02", "2024-02-05", "2023-12-25"} {
			_, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, mustDate(raw))
			expectValidationField(t, err, "date")
		}
	})

	t.Run("rejects inactive series", func(t *testing.T) {
		h := newHarness(t)
		input := mondaySeries("class-1", "2024-01-01", "2024-01-29")
		input.IsActive = boolPtr(false)
		series := h.create(t, input)

		_, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, mustDate("2024-01-08"))
		expectValidationField(t, err, "date")
	})

	t.Run("returns not found for unknown schedules", func(t *testing.T) {
		h := newHarness(t)

		_, _, err := h.service.ToggleSingleOccurrence(ctx, "missing", mustDate("2024-01-08"))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestScheduleService_DeleteSingleOccurrence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
	d := mustDate("2024-01-08")

	if _, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, d); err != nil {
		t.Fatalf("ToggleSingleOccurrence returned error: %v", err)
	}
	if _, err := h.service.DeleteSingleOccurrence(ctx, series.ID, d); err != nil {
		t.Fatalf("DeleteSingleOccurrence returned error: %v", err)
	}

	stored := h.schedule(t, series.ID)
	if !stored.DeletedDates.Contains(d) {
		t.Fatalf("expected %s in deleted dates, got %s", d, stored.DeletedDates)
	}
	if stored.CancelledDates.Contains(d) {
		t.Fatalf("expected %s to leave cancelled dates, got %s", d, stored.CancelledDates)
	}
	if got := h.totalSessions(t, "class-1"); got != 4 {
		t.Fatalf("expected 4 sessions, got %d", got)
	}

	t.Run("toggling a deleted date keeps it deleted", func(t *testing.T) {
		toggled, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, d)
		if err != nil {
			t.Fatalf("ToggleSingleOccurrence returned error: %v", err)
		}
		if !toggled.DeletedDates.Contains(d) || toggled.CancelledDates.Contains(d) {
			t.Fatalf("expected the deleted date to stay deleted only, got cancelled=%s deleted=%s", toggled.CancelledDates, toggled.DeletedDates)
		}
		if got := h.totalSessions(t, "class-1"); got != 4 {
			t.Fatalf("expected 4 sessions, got %d", got)
		}
	})

	t.Run("deleting twice is a no-op", func(t *testing.T) {
		if _, err := h.service.DeleteSingleOccurrence(ctx, series.ID, d); err != nil {
			t.Fatalf("second delete returned error: %v", err)
		}
		if got := h.schedule(t, series.ID).DeletedDates.Len(); got != 1 {
			t.Fatalf("expected one deleted date, got %d", got)
		}
	})

	t.Run("returns not found for unknown schedules", func(t *testing.T) {
		if _, err := h.service.DeleteSingleOccurrence(ctx, "missing", d); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestScheduleService_EditSingleOccurrence(t *testing.T) {
	ctx := context.Background()

	t.Run("override hides the parent occurrence", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		d := mustDate("2024-01-15")

		override, warnings, err := h.service.EditSingleOccurrence(ctx, series.ID, d, OverrideInput{
			Room:                 "202",
			StartTime:            "09:00:00",
			SubstituteLecturerID: "lecturer-9",
		})
		if err != nil {
			t.Fatalf("EditSingleOccurrence returned error: %v", err)
		}
		if len(warnings) != 0 {
			t.Fatalf("expected no warnings, got %v", warnings)
		}

		if override.Kind != scheduler.KindOverride || override.ParentID != series.ID {
			t.Fatalf("expected override of %s, got kind=%s parent=%s", series.ID, override.Kind, override.ParentID)
		}
		if override.ReplacesDate == nil || !override.ReplacesDate.Equal(d) || !override.EffectiveFrom.Equal(d) {
			t.Fatalf("expected override scoped to %s, got replaces=%v from=%s", d, override.ReplacesDate, override.EffectiveFrom)
		}
		if override.Location.Room != "202" || override.Location.Building != "Main" {
			t.Fatalf("expected room override with inherited building, got %+v", override.Location)
		}
		if override.StartTime != calendar.MustParseTimeOfDay("09:00:00") || override.EndTime != series.EndTime {
			t.Fatalf("expected 09:00 start with inherited end, got %s-%s", override.StartTime, override.EndTime)
		}
		if override.SubstituteLecturerID != "lecturer-9" {
			t.Fatalf("expected substitute lecturer, got %q", override.SubstituteLecturerID)
		}

		parent := h.schedule(t, series.ID)
		if !parent.CancelledDates.Contains(d) {
			t.Fatalf("expected parent to cancel %s, got %s", d, parent.CancelledDates)
		}
		if got := h.totalSessions(t, "class-1"); got != 5 {
			t.Fatalf("expected 5 sessions with exactly one on %s, got %d", d, got)
		}
	})

	t.Run("override in the parent's own slot does not clash with it", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))

		if _, _, err := h.service.EditSingleOccurrence(ctx, series.ID, mustDate("2024-01-08"), OverrideInput{Notes: "guest lecture"}); err != nil {
			t.Fatalf("expected override in the parent's slot to succeed, got %v", err)
		}
	})

	t.Run("override clashing with another class is rejected", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		other := mondaySeries("class-2", "2024-01-01", "2024-01-29")
		other.Room = "202"
		h.create(t, other)

		_, _, err := h.service.EditSingleOccurrence(ctx, series.ID, mustDate("2024-01-08"), OverrideInput{Room: "202"})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if h.schedule(t, series.ID).CancelledDates.Contains(mustDate("2024-01-08")) {
			t.Fatalf("expected parent to stay untouched after a rejected override")
		}
	})

	t.Run("inactive parent keeps no exception for the date", func(t *testing.T) {
		h := newHarness(t)
		input := mondaySeries("class-1", "2024-01-01", "2024-01-29")
		input.IsActive = boolPtr(false)
		series := h.create(t, input)
		d := mustDate("2024-01-15")

		if _, _, err := h.service.EditSingleOccurrence(ctx, series.ID, d, OverrideInput{}); err != nil {
			t.Fatalf("EditSingleOccurrence returned error: %v", err)
		}
		if parent := h.schedule(t, series.ID); !parent.CancelledDates.IsEmpty() {
			t.Fatalf("expected no cancelled dates on an inactive parent, got %s", parent.CancelledDates)
		}
		if got := h.totalSessions(t, "class-1"); got != 1 {
			t.Fatalf("expected only the override to count, got %d", got)
		}
	})

	t.Run("rejects a second override of the same date", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		d := mustDate("2024-01-15")

		if _, _, err := h.service.EditSingleOccurrence(ctx, series.ID, d, OverrideInput{}); err != nil {
			t.Fatalf("first override returned error: %v", err)
		}
		_, _, err := h.service.EditSingleOccurrence(ctx, series.ID, d, OverrideInput{})
		expectValidationField(t, err, "date")

		t.Run("and restoring the replaced date", func(t *testing.T) {
			_, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, d)
			expectValidationField(t, err, "date")
		})
	})

	t.Run("rejects deleted dates and invalid attributes", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		if _, err := h.service.DeleteSingleOccurrence(ctx, series.ID, mustDate("2024-01-22")); err != nil {
			t.Fatalf("DeleteSingleOccurrence returned error: %v", err)
		}

		_, _, err := h.service.EditSingleOccurrence(ctx, series.ID, mustDate("2024-01-22"), OverrideInput{})
		expectValidationField(t, err, "date")

		_, _, err = h.service.EditSingleOccurrence(ctx, series.ID, mustDate("2024-01-08"), OverrideInput{EndTime: "07:00:00"})
		expectValidationField(t, err, "end_time")

		_, _, err = h.service.EditSingleOccurrence(ctx, series.ID, mustDate("2024-01-08"), OverrideInput{IsOnline: boolPtr(true)})
		expectValidationField(t, err, "meeting_url")

		_, _, err = h.service.EditSingleOccurrence(ctx, series.ID, mustDate("2024-01-08"), OverrideInput{Date: "next week"})
		expectValidationField(t, err, "date")
	})
}

func TestScheduleService_ToggleSeries(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivation clears exceptions and reactivation keeps them cleared", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		if _, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, mustDate("2024-01-08")); err != nil {
			t.Fatalf("ToggleSingleOccurrence returned error: %v", err)
		}

		off, _, err := h.service.ToggleSeries(ctx, series.ID, nil)
		if err != nil {
			t.Fatalf("ToggleSeries returned error: %v", err)
		}
		if off.IsActive || !off.CancelledDates.IsEmpty() {
			t.Fatalf("expected inactive series with no cancelled dates, got active=%v cancelled=%s", off.IsActive, off.CancelledDates)
		}
		if got := h.totalSessions(t, "class-1"); got != 0 {
			t.Fatalf("expected 0 sessions while inactive, got %d", got)
		}

		on, _, err := h.service.ToggleSeries(ctx, series.ID, boolPtr(true))
		if err != nil {
			t.Fatalf("ToggleSeries returned error: %v", err)
		}
		if !on.IsActive || !on.CancelledDates.IsEmpty() {
			t.Fatalf("expected active series with no cancelled dates, got active=%v cancelled=%s", on.IsActive, on.CancelledDates)
		}
		if got := h.totalSessions(t, "class-1"); got != 5 {
			t.Fatalf("expected 5 sessions after reactivation, got %d", got)
		}
	})

	t.Run("reactivation leaves overridden dates to their overrides", func(t *testing.T) {
		d := mustDate("2024-01-15")
		cases := []struct {
			name  string
			input OverrideInput
			// slotFree reports whether Main 101 is free on d after reactivation.
			slotFree bool
		}{
			{name: "override in the series slot", input: OverrideInput{Notes: "guest lecture"}},
			{name: "override moved to another room", input: OverrideInput{Room: "202"}, slotFree: true},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				h := newHarness(t)
				series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
				override, _, err := h.service.EditSingleOccurrence(ctx, series.ID, d, tc.input)
				if err != nil {
					t.Fatalf("EditSingleOccurrence returned error: %v", err)
				}
				if got := h.totalSessions(t, "class-1"); got != 5 {
					t.Fatalf("expected 5 sessions after the edit, got %d", got)
				}

				if _, _, err := h.service.ToggleSeries(ctx, series.ID, boolPtr(false)); err != nil {
					t.Fatalf("deactivation returned error: %v", err)
				}
				if got := h.totalSessions(t, "class-1"); got != 1 {
					t.Fatalf("expected only the override while inactive, got %d", got)
				}

				on, _, err := h.service.ToggleSeries(ctx, series.ID, boolPtr(true))
				if err != nil {
					t.Fatalf("expected reactivation to succeed, got %v", err)
				}
				if !on.CancelledDates.IsEmpty() {
					t.Fatalf("expected no cancelled dates after reactivation, got %s", on.CancelledDates)
				}
				if got := h.totalSessions(t, "class-1"); got != 5 {
					t.Fatalf("expected 5 sessions after reactivation, got %d", got)
				}

				_, _, err = h.service.CreateSchedule(ctx, singleSession("class-2", "2024-01-15"))
				if tc.slotFree {
					if err != nil {
						t.Fatalf("expected the vacated slot to be bookable, got %v", err)
					}
					return
				}
				var cErr *ConflictError
				if !errors.As(err, &cErr) || cErr.ScheduleID != override.ID {
					t.Fatalf("expected conflict with override %s, got %v", override.ID, err)
				}
			})
		}
	})

	t.Run("explicit flag matching the current state changes nothing", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))

		same, _, err := h.service.ToggleSeries(ctx, series.ID, boolPtr(true))
		if err != nil {
			t.Fatalf("ToggleSeries returned error: %v", err)
		}
		if !same.IsActive || !same.UpdatedAt.Equal(series.UpdatedAt) {
			t.Fatalf("expected untouched schedule, got %+v", same)
		}
	})

	t.Run("reactivation runs the conflict check", func(t *testing.T) {
		h := newHarness(t)
		input := mondaySeries("class-1", "2024-01-01", "2024-01-29")
		input.IsActive = boolPtr(false)
		series := h.create(t, input)
		h.create(t, singleSession("class-2", "2024-01-15"))

		_, _, err := h.service.ToggleSeries(ctx, series.ID, nil)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict on reactivation, got %v", err)
		}
		if h.schedule(t, series.ID).IsActive {
			t.Fatalf("expected series to remain inactive")
		}
	})

	t.Run("returns not found for unknown schedules", func(t *testing.T) {
		h := newHarness(t)
		if _, _, err := h.service.ToggleSeries(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestScheduleService_UpdateSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("prunes exceptions outside the new range", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		for _, raw := range []string{"2024-01-08", "2024-01-29"} {
			if _, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, mustDate(raw)); err != nil {
				t.Fatalf("ToggleSingleOccurrence returned error: %v", err)
			}
		}

		updated, _, err := h.service.UpdateSchedule(ctx, series.ID, mondaySeries("class-1", "2024-01-01", "2024-01-22"))
		if err != nil {
			t.Fatalf("UpdateSchedule returned error: %v", err)
		}
		if !updated.CancelledDates.Equal(calendar.NewDateSet(mustDate("2024-01-08"))) {
			t.Fatalf("expected only 2024-01-08 to remain cancelled, got %s", updated.CancelledDates)
		}
		if got := h.totalSessions(t, "class-1"); got != 3 {
			t.Fatalf("expected 3 sessions, got %d", got)
		}
	})

	t.Run("saving as inactive clears cancelled dates", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		if _, _, err := h.service.ToggleSingleOccurrence(ctx, series.ID, mustDate("2024-01-08")); err != nil {
			t.Fatalf("ToggleSingleOccurrence returned error: %v", err)
		}

		input := mondaySeries("class-1", "2024-01-01", "2024-01-29")
		input.IsActive = boolPtr(false)
		updated, _, err := h.service.UpdateSchedule(ctx, series.ID, input)
		if err != nil {
			t.Fatalf("UpdateSchedule returned error: %v", err)
		}
		if !updated.CancelledDates.IsEmpty() {
			t.Fatalf("expected no cancelled dates, got %s", updated.CancelledDates)
		}
	})

	t.Run("saving as active again keeps overrides in place", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		if _, _, err := h.service.EditSingleOccurrence(ctx, series.ID, mustDate("2024-01-15"), OverrideInput{Notes: "guest lecture"}); err != nil {
			t.Fatalf("EditSingleOccurrence returned error: %v", err)
		}

		input := mondaySeries("class-1", "2024-01-01", "2024-01-29")
		input.IsActive = boolPtr(false)
		if _, _, err := h.service.UpdateSchedule(ctx, series.ID, input); err != nil {
			t.Fatalf("UpdateSchedule returned error: %v", err)
		}

		input.IsActive = boolPtr(true)
		if _, _, err := h.service.UpdateSchedule(ctx, series.ID, input); err != nil {
			t.Fatalf("expected reactivating update to succeed, got %v", err)
		}
		if got := h.totalSessions(t, "class-1"); got != 5 {
			t.Fatalf("expected 5 sessions, got %d", got)
		}
	})

	t.Run("does not conflict with itself", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))

		input := mondaySeries("class-1", "2024-01-01", "2024-01-29")
		input.EndTime = "11:00:00"
		if _, _, err := h.service.UpdateSchedule(ctx, series.ID, input); err != nil {
			t.Fatalf("expected in-place update to succeed, got %v", err)
		}
	})

	t.Run("rejects kind and class changes", func(t *testing.T) {
		h := newHarness(t)
		series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))

		input := mondaySeries("class-1", "2024-01-01", "2024-01-29")
		input.Kind = scheduler.KindSingleDate
		_, _, err := h.service.UpdateSchedule(ctx, series.ID, input)
		expectValidationField(t, err, "kind")

		input = mondaySeries("class-2", "2024-01-01", "2024-01-29")
		_, _, err = h.service.UpdateSchedule(ctx, series.ID, input)
		expectValidationField(t, err, "class_id")
	})

	t.Run("rejects moving onto an occupied slot", func(t *testing.T) {
		h := newHarness(t)
		h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		other := mondaySeries("class-2", "2024-01-01", "2024-01-29")
		other.Room = "202"
		moved := h.create(t, other)

		_, _, err := h.service.UpdateSchedule(ctx, moved.ID, mondaySeries("class-2", "2024-01-01", "2024-01-29"))
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("returns not found for unknown schedules", func(t *testing.T) {
		h := newHarness(t)
		_, _, err := h.service.UpdateSchedule(ctx, "missing", mondaySeries("class-1", "2024-01-01", "2024-01-29"))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestScheduleService_DeleteSchedule(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	series := h.create(t, mondaySeries("class-1", "2024-01-01", "2024-01-29"))
	override, _, err := h.service.EditSingleOccurrence(ctx, series.ID, mustDate("2024-01-08"), OverrideInput{})
	if err != nil {
		t.Fatalf("EditSingleOccurrence returned error: %v", err)
	}
	single := h.create(t, singleSession("class-1", "2024-02-07"))

	if _, err := h.service.DeleteSchedule(ctx, series.ID); err != nil {
		t.Fatalf("DeleteSchedule returned error: %v", err)
	}

	if _, err := h.store.GetSchedule(ctx, override.ID); err == nil {
		t.Fatalf("expected override to be deleted with its series")
	}
	if _, err := h.store.GetSchedule(ctx, single.ID); err != nil {
		t.Fatalf("expected unrelated schedule to survive, got %v", err)
	}
	if got := h.totalSessions(t, "class-1"); got != 1 {
		t.Fatalf("expected 1 session left, got %d", got)
	}

	if _, err := h.service.DeleteSchedule(ctx, series.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestScheduleService_ResyncFailureIsAWarning(t *testing.T) {
	store := seededStore(t)
	resyncer := &resyncerStub{err: errors.New("enrollments unavailable")}
	service := NewScheduleServiceWithLogger(store, store, resyncer, sequentialIDs("schedule"), nil, quietLogger())

	schedule, warnings, err := service.CreateSchedule(context.Background(), mondaySeries("class-1", "2024-01-01", "2024-01-29"))
	if err != nil {
		t.Fatalf("expected the write to succeed, got %v", err)
	}
	if len(warnings) != 1 || warnings[0].Code != WarningResyncFailed {
		t.Fatalf("expected one resync warning, got %v", warnings)
	}
	if _, err := store.GetSchedule(context.Background(), schedule.ID); err != nil {
		t.Fatalf("expected schedule to be committed, got %v", err)
	}
	if len(resyncer.calls) != 1 || resyncer.calls[0] != "class-1" {
		t.Fatalf("expected one resync of class-1, got %v", resyncer.calls)
	}
}

func TestScheduleService_NilReceiver(t *testing.T) {
	var service *ScheduleService
	if _, _, err := service.CreateSchedule(context.Background(), ScheduleInput{}); err == nil {
		t.Fatalf("expected error from nil service")
	}
	if _, err := NewScheduleService(nil, nil, nil, nil, nil).ListSchedules(context.Background(), ListSchedulesParams{}); err == nil {
		t.Fatalf("expected error without a repository")
	}
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	return newHarness(t).store
}
