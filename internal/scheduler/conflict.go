package scheduler

import (
	"slices"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/recurrence"
)

// Window is the room, time and date span a candidate write would occupy.
type Window struct {
	Slot  Slot
	Start calendar.TimeOfDay
	End   calendar.TimeOfDay
	From  calendar.Date
	// To is nil for an open ended series.
	To *calendar.Date
	// Excluded holds the candidate's own cancelled and deleted dates.
	Excluded calendar.DateSet
}

// WindowOf derives the conflict window of a schedule.
func WindowOf(s Schedule) Window {
	w := Window{
		Slot:     s.Slot(),
		Start:    s.StartTime,
		End:      s.EndTime,
		From:     s.EffectiveFrom,
		To:       s.EffectiveTo,
		Excluded: s.Exclusions(),
	}
	if s.Kind.IsSingle() {
		d := s.EffectiveFrom
		w.To = &d
		w.Excluded = calendar.DateSet{}
	}
	return w
}

// Conflict details the existing schedule a candidate clashes with.
type Conflict struct {
	Existing Schedule
	// Date is the first date on which both sessions would take place.
	Date calendar.Date
}

// FindConflict returns the first active schedule in existing that occupies
// the same slot as candidate with an overlapping time window on at least
// one date where both sessions are live. Schedules whose IDs appear in
// excludeIDs are ignored, as are inactive schedules and schedules without
// a room.
func FindConflict(existing []Schedule, candidate Window, excludeIDs ...string) (Conflict, bool) {
	if candidate.Slot.IsZero() || !candidate.Slot.Weekday.Valid() {
		return Conflict{}, false
	}

	for _, other := range existing {
		if !other.IsActive || slices.Contains(excludeIDs, other.ID) {
			continue
		}
		win := WindowOf(other)
		if win.Slot != candidate.Slot {
			continue
		}
		if !calendar.Overlaps(win.Start, win.End, candidate.Start, candidate.End) {
			continue
		}
		if d, ok := firstSharedDate(win, candidate); ok {
			return Conflict{Existing: other, Date: d}, true
		}
	}
	return Conflict{}, false
}

// firstSharedDate intersects the two date ranges, treating an open end as
// unbounded, and returns the first date in the intersection that neither
// window has excluded.
func firstSharedDate(a, b Window) (calendar.Date, bool) {
	lo := calendar.MaxDate(a.From, b.From)

	var hi *calendar.Date
	switch {
	case a.To != nil && b.To != nil:
		d := calendar.MinDate(*a.To, *b.To)
		hi = &d
	case a.To != nil:
		hi = a.To
	case b.To != nil:
		hi = b.To
	}
	if hi != nil && hi.Before(lo) {
		return calendar.Date{}, false
	}

	// With no upper bound only excluded dates can push the answer forward,
	// so the search ends after one step past all of them.
	budget := a.Excluded.Len() + b.Excluded.Len() + 1
	for d := recurrence.FirstOnOrAfter(lo, a.Slot.Weekday); hi == nil || !d.After(*hi); d = d.AddDays(7) {
		if !a.Excluded.Contains(d) && !b.Excluded.Contains(d) {
			return d, true
		}
		if hi == nil {
			budget--
			if budget == 0 {
				break
			}
		}
	}
	return calendar.Date{}, false
}
