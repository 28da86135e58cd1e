// Package recurrence expands weekly rules into calendar dates and counts them.
package recurrence

import (
	"errors"

	"github.com/example/class-scheduler/internal/calendar"
)

// State describes what happens to one occurrence date of a series.
type State string

const (
	// StateScheduled is the default state of an occurrence.
	StateScheduled State = "scheduled"
	// StateCancelled marks a date temporarily skipped by an active series.
	StateCancelled State = "cancelled"
	// StateDeleted marks a date permanently removed from a series.
	StateDeleted State = "deleted"
	// StateSuperseded marks a date replaced by an override session.
	StateSuperseded State = "superseded"
)

// Rule describes a weekly recurrence. EndsOn nil means the series is open ended.
type Rule struct {
	Weekday  calendar.Weekday
	StartsOn calendar.Date
	EndsOn   *calendar.Date
}

// GenerateOptions defines optional range bounds for occurrence generation.
type GenerateOptions struct {
	RangeStart *calendar.Date
	RangeEnd   *calendar.Date
}

// Exceptions carries the per-date exception sets of a series.
type Exceptions struct {
	Cancelled  calendar.DateSet
	Deleted    calendar.DateSet
	Superseded calendar.DateSet
}

// Occurrence is one materialized date of a series.
type Occurrence struct {
	Date  calendar.Date
	State State
}

// ErrInvalidWeekday indicates the rule weekday is not set.
var ErrInvalidWeekday = errors.New("recurrence: rule weekday is not set")

// ErrInvalidWindow indicates the generation window is unbounded.
var ErrInvalidWindow = errors.New("recurrence: generation window requires an end bound")

// FirstOnOrAfter returns the first date on or after from that falls on w.
func FirstOnOrAfter(from calendar.Date, w calendar.Weekday) calendar.Date {
	return from.AddDays(from.Weekday().DaysUntil(w))
}

// Count returns the number of dates in the inclusive range [from, to] that
// fall on w. It returns 0 when to is before from or w is not a valid weekday.
func Count(from, to calendar.Date, w calendar.Weekday) int {
	if !w.Valid() || to.Before(from) {
		return 0
	}
	first := FirstOnOrAfter(from, w)
	if first.After(to) {
		return 0
	}
	return to.DaysSince(first)/7 + 1
}

// Occurrences lists the dates in [from, to] that fall on w, in ascending order.
func Occurrences(from, to calendar.Date, w calendar.Weekday) []calendar.Date {
	n := Count(from, to, w)
	if n == 0 {
		return nil
	}
	out := make([]calendar.Date, 0, n)
	for d := FirstOnOrAfter(from, w); !d.After(to); d = d.AddDays(7) {
		out = append(out, d)
	}
	return out
}

// IsOccurrence reports whether d is a date produced by the rule.
func (r Rule) IsOccurrence(d calendar.Date) bool {
	if !r.Weekday.Valid() || d.Weekday() != r.Weekday || d.Before(r.StartsOn) {
		return false
	}
	return r.EndsOn == nil || !d.After(*r.EndsOn)
}

// Window clamps the rule's own range to the optional bounds. The returned
// flag is false when the window is empty.
func (r Rule) Window(opts GenerateOptions) (from, to calendar.Date, ok bool, err error) {
	from = r.StartsOn
	if opts.RangeStart != nil && opts.RangeStart.After(from) {
		from = *opts.RangeStart
	}

	switch {
	case r.EndsOn != nil && opts.RangeEnd != nil:
		to = calendar.MinDate(*r.EndsOn, *opts.RangeEnd)
	case r.EndsOn != nil:
		to = *r.EndsOn
	case opts.RangeEnd != nil:
		to = *opts.RangeEnd
	default:
		return from, to, false, ErrInvalidWindow
	}
	return from, to, !to.Before(from), nil
}

// Count returns the number of occurrences of the rule within the window.
func (r Rule) Count(opts GenerateOptions) (int, error) {
	if !r.Weekday.Valid() {
		return 0, ErrInvalidWeekday
	}
	from, to, ok, err := r.Window(opts)
	if err != nil || !ok {
		return 0, err
	}
	return Count(from, to, r.Weekday), nil
}

// Expand materializes the rule within the window, tagging each date with
// its state. Deleted wins over superseded, which wins over cancelled.
func (r Rule) Expand(ex Exceptions, opts GenerateOptions) ([]Occurrence, error) {
	if !r.Weekday.Valid() {
		return nil, ErrInvalidWeekday
	}
	from, to, ok, err := r.Window(opts)
	if err != nil || !ok {
		return nil, err
	}

	dates := Occurrences(from, to, r.Weekday)
	out := make([]Occurrence, 0, len(dates))
	for _, d := range dates {
		out = append(out, Occurrence{Date: d, State: ex.StateOf(d)})
	}
	return out, nil
}

// StateOf returns the state of d given the exception sets.
func (ex Exceptions) StateOf(d calendar.Date) State {
	switch {
	case ex.Deleted.Contains(d):
		return StateDeleted
	case ex.Superseded.Contains(d):
		return StateSuperseded
	case ex.Cancelled.Contains(d):
		return StateCancelled
	default:
		return StateScheduled
	}
}
