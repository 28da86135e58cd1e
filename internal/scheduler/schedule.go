package scheduler

import (
	"strings"
	"time"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/recurrence"
)

// Kind distinguishes weekly series from one-off sessions.
type Kind string

const (
	// KindRecurring repeats weekly between EffectiveFrom and EffectiveTo.
	KindRecurring Kind = "recurring"
	// KindSingleDate happens exactly once on EffectiveFrom.
	KindSingleDate Kind = "single_date"
	// KindOverride is a single date session that replaces one occurrence of a parent series.
	KindOverride Kind = "override"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindRecurring, KindSingleDate, KindOverride:
		return true
	default:
		return false
	}
}

// IsSingle reports whether schedules of this kind happen on exactly one date.
func (k Kind) IsSingle() bool {
	return k == KindSingleDate || k == KindOverride
}

// SessionType classifies what happens during a session.
type SessionType string

const (
	SessionLecture  SessionType = "lecture"
	SessionLab      SessionType = "lab"
	SessionTutorial SessionType = "tutorial"
	SessionSeminar  SessionType = "seminar"
	SessionExam     SessionType = "exam"
	SessionReview   SessionType = "review"
)

// SessionTypes lists every supported session type.
func SessionTypes() []SessionType {
	return []SessionType{SessionLecture, SessionLab, SessionTutorial, SessionSeminar, SessionExam, SessionReview}
}

// Valid reports whether s is a known session type.
func (s SessionType) Valid() bool {
	for _, known := range SessionTypes() {
		if s == known {
			return true
		}
	}
	return false
}

// Countable reports whether sessions of this type count towards attendance.
func (s SessionType) Countable() bool {
	return s != SessionExam && s != SessionReview
}

// Location identifies where a session takes place.
type Location struct {
	Room     string `json:"room"`
	Building string `json:"building"`
	Campus   string `json:"campus,omitempty"`
}

// Schedule is one recurring or single date teaching slot of a class.
type Schedule struct {
	ID                   string             `json:"id"`
	ClassID              string             `json:"class_id"`
	Kind                 Kind               `json:"kind"`
	ParentID             string             `json:"parent_id,omitempty"`
	ReplacesDate         *calendar.Date     `json:"replaces_date,omitempty"`
	DayOfWeek            calendar.Weekday   `json:"day_of_week"`
	StartTime            calendar.TimeOfDay `json:"start_time"`
	EndTime              calendar.TimeOfDay `json:"end_time"`
	EffectiveFrom        calendar.Date      `json:"effective_from"`
	EffectiveTo          *calendar.Date     `json:"effective_to"`
	Location             Location           `json:"location"`
	SessionType          SessionType        `json:"session_type"`
	IsActive             bool               `json:"is_active"`
	IsOnline             bool               `json:"is_online"`
	MeetingURL           string             `json:"meeting_url,omitempty"`
	SubstituteLecturerID string             `json:"substitute_lecturer_id,omitempty"`
	CancelledDates       calendar.DateSet   `json:"cancelled_dates"`
	DeletedDates         calendar.DateSet   `json:"deleted_dates"`
	Notes                string             `json:"notes,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// Clone returns a copy that shares no pointers with s.
func (s Schedule) Clone() Schedule {
	out := s
	if s.EffectiveTo != nil {
		to := *s.EffectiveTo
		out.EffectiveTo = &to
	}
	if s.ReplacesDate != nil {
		d := *s.ReplacesDate
		out.ReplacesDate = &d
	}
	return out
}

// Rule returns the recurrence rule that produces the schedule's dates.
// Single date kinds produce a rule bounded to their one date.
func (s Schedule) Rule() recurrence.Rule {
	if s.Kind.IsSingle() {
		d := s.EffectiveFrom
		return recurrence.Rule{Weekday: d.Weekday(), StartsOn: d, EndsOn: &d}
	}
	return recurrence.Rule{Weekday: s.DayOfWeek, StartsOn: s.EffectiveFrom, EndsOn: s.EffectiveTo}
}

// Occurs reports whether d is an occurrence of the schedule, ignoring exceptions.
func (s Schedule) Occurs(d calendar.Date) bool {
	return s.Rule().IsOccurrence(d)
}

// Exclusions returns every date removed from the series, cancelled or deleted.
func (s Schedule) Exclusions() calendar.DateSet {
	return s.CancelledDates.Union(s.DeletedDates)
}

// Excluded reports whether d is cancelled or deleted.
func (s Schedule) Excluded(d calendar.Date) bool {
	return s.CancelledDates.Contains(d) || s.DeletedDates.Contains(d)
}

// IsLive reports whether a session actually takes place on d.
func (s Schedule) IsLive(d calendar.Date) bool {
	return s.IsActive && s.Occurs(d) && !s.Excluded(d)
}

// SessionCount returns the number of countable sessions the schedule
// contributes. Open ended series are counted up to horizon. Dates in
// superseded are held by overrides and not counted for the series.
func (s Schedule) SessionCount(horizon calendar.Date, superseded calendar.DateSet) int {
	if !s.IsActive || !s.SessionType.Countable() {
		return 0
	}
	if s.Kind.IsSingle() {
		return 1
	}

	end := horizon
	if s.EffectiveTo != nil {
		end = *s.EffectiveTo
	}
	rule := s.Rule()
	rule.EndsOn = &end

	total := recurrence.Count(rule.StartsOn, end, rule.Weekday)
	excluded := s.Exclusions().Union(superseded).Filter(rule.IsOccurrence).Len()
	return max(0, total-excluded)
}

// SupersededDates maps each parent ID to the dates its overrides in
// schedules replace.
func SupersededDates(schedules []Schedule) map[string]calendar.DateSet {
	out := make(map[string]calendar.DateSet)
	for _, s := range schedules {
		if s.ParentID == "" || s.ReplacesDate == nil {
			continue
		}
		out[s.ParentID] = out[s.ParentID].Add(*s.ReplacesDate)
	}
	return out
}

// Slot returns the room, building and weekday triple used for conflict detection.
func (s Schedule) Slot() Slot {
	day := s.DayOfWeek
	if s.Kind.IsSingle() {
		day = s.EffectiveFrom.Weekday()
	}
	return NewSlot(s.Location.Room, s.Location.Building, day)
}

// Slot is the room, building and weekday a session occupies.
type Slot struct {
	Room     string
	Building string
	Weekday  calendar.Weekday
}

// NewSlot normalizes room and building so comparisons ignore case and padding.
func NewSlot(room, building string, day calendar.Weekday) Slot {
	return Slot{
		Room:     strings.ToLower(strings.TrimSpace(room)),
		Building: strings.ToLower(strings.TrimSpace(building)),
		Weekday:  day,
	}
}

// IsZero reports whether the slot has no room and so cannot clash.
func (s Slot) IsZero() bool {
	return s.Room == ""
}

// Key returns a stable identifier for the slot, suitable for lock names.
func (s Slot) Key() string {
	return s.Building + "|" + s.Room + "|" + s.Weekday.String()
}
