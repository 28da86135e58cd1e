package scheduler

import (
	"testing"

	"github.com/example/class-scheduler/internal/calendar"
)

func TestSessionCount(t *testing.T) {
	t.Parallel()

	horizon := date("2024-12-31")
	base := func() Schedule {
		s := mondaySeries()
		s.EffectiveFrom = date("2024-01-01")
		s.EffectiveTo = datePtr("2024-01-29")
		return s
	}

	cases := []struct {
		name       string
		mutate     func(*Schedule)
		superseded calendar.DateSet
		want       int
	}{
		{name: "five mondays", want: 5},
		{name: "cancelled date", mutate: func(s *Schedule) { s.CancelledDates = calendar.NewDateSet(date("2024-01-15")) }, want: 4},
		{
			name: "date both cancelled and deleted counts once",
			mutate: func(s *Schedule) {
				s.CancelledDates = calendar.NewDateSet(date("2024-01-15"))
				s.DeletedDates = calendar.NewDateSet(date("2024-01-15"), date("2024-01-22"))
			},
			want: 3,
		},
		{name: "superseded date", superseded: calendar.NewDateSet(date("2024-01-22")), want: 4},
		{
			name:       "superseded and cancelled date counts once",
			mutate:     func(s *Schedule) { s.CancelledDates = calendar.NewDateSet(date("2024-01-22")) },
			superseded: calendar.NewDateSet(date("2024-01-22"), date("2024-02-12")),
			want:       4,
		},
		{name: "exclusion outside the series is ignored", mutate: func(s *Schedule) { s.CancelledDates = calendar.NewDateSet(date("2024-02-05")) }, want: 5},
		{name: "inactive", mutate: func(s *Schedule) { s.IsActive = false }, want: 0},
		{name: "exam", mutate: func(s *Schedule) { s.SessionType = SessionExam }, want: 0},
		{name: "review", mutate: func(s *Schedule) { s.SessionType = SessionReview }, want: 0},
		{name: "open ended uses horizon", mutate: func(s *Schedule) { s.EffectiveTo = nil }, want: 53},
		{
			name: "single date",
			mutate: func(s *Schedule) {
				s.Kind = KindOverride
				s.EffectiveTo = &s.EffectiveFrom
			},
			want: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := base()
			if tc.mutate != nil {
				tc.mutate(&s)
			}
			if got := s.SessionCount(horizon, tc.superseded); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestSupersededDates(t *testing.T) {
	t.Parallel()

	replaced := func(parentID, day string) Schedule {
		d := date(day)
		return Schedule{ID: parentID + "-" + day, Kind: KindOverride, ParentID: parentID, ReplacesDate: &d, EffectiveFrom: d}
	}
	schedules := []Schedule{
		mondaySeries(),
		replaced("series-1", "2024-01-15"),
		replaced("series-1", "2024-01-08"),
		replaced("series-2", "2024-03-04"),
		{ID: "single-1", Kind: KindSingleDate, EffectiveFrom: date("2024-01-15")},
	}

	got := SupersededDates(schedules)
	if len(got) != 2 {
		t.Fatalf("expected 2 parents, got %v", got)
	}
	if !got["series-1"].Equal(calendar.NewDateSet(date("2024-01-08"), date("2024-01-15"))) {
		t.Fatalf("unexpected dates for series-1: %s", got["series-1"])
	}
	if !got["series-2"].Equal(calendar.NewDateSet(date("2024-03-04"))) {
		t.Fatalf("unexpected dates for series-2: %s", got["series-2"])
	}
	if !got["missing"].IsEmpty() {
		t.Fatalf("expected no dates for an unknown parent")
	}
}

func TestScheduleLiveness(t *testing.T) {
	t.Parallel()

	s := mondaySeries()
	s.CancelledDates = calendar.NewDateSet(date("2024-03-11"))
	s.DeletedDates = calendar.NewDateSet(date("2024-03-18"))

	if !s.IsLive(date("2024-03-04")) {
		t.Fatal("expected first monday to be live")
	}
	if s.IsLive(date("2024-03-11")) || s.IsLive(date("2024-03-18")) {
		t.Fatal("excluded dates must not be live")
	}
	if s.IsLive(date("2024-03-05")) {
		t.Fatal("tuesday must not be live")
	}
	if !s.Occurs(date("2024-03-18")) {
		t.Fatal("deleted date is still an occurrence of the rule")
	}
}

func TestSingleDateSlotDerivesWeekday(t *testing.T) {
	t.Parallel()

	s := singleDate("2024-03-06", "08:00", "09:00")
	s.DayOfWeek = calendar.Monday
	if got := s.Slot().Weekday; got != calendar.Wednesday {
		t.Fatalf("expected wednesday, got %v", got)
	}
}

func TestCloneDetachesPointers(t *testing.T) {
	t.Parallel()

	s := mondaySeries()
	c := s.Clone()
	*c.EffectiveTo = date("2030-01-01")
	if s.EffectiveTo.Equal(date("2030-01-01")) {
		t.Fatal("clone shares EffectiveTo with original")
	}
}
