package application

import (
	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/recurrence"
	"github.com/example/class-scheduler/internal/scheduler"
)

// ScheduleInput captures caller provided schedule fields. Dates use
// YYYY-MM-DD and times HH:MM:SS.
type ScheduleInput struct {
	ClassID string `json:"class_id" validate:"required,max=64"`
	// Kind defaults to recurring. New overrides are created through
	// EditSingleOccurrence; updates may echo the stored kind.
	Kind          scheduler.Kind   `json:"kind" validate:"omitempty,oneof=recurring single_date override"`
	DayOfWeek     calendar.Weekday `json:"day_of_week"`
	StartTime     string           `json:"start_time" validate:"required"`
	EndTime       string           `json:"end_time" validate:"required"`
	EffectiveFrom string           `json:"effective_from" validate:"required"`
	EffectiveTo   string           `json:"effective_to"`
	Room          string           `json:"room" validate:"max=64"`
	Building      string           `json:"building" validate:"max=128"`
	Campus        string           `json:"campus" validate:"max=128"`
	// SessionType defaults to lecture.
	SessionType scheduler.SessionType `json:"session_type" validate:"omitempty,oneof=lecture lab tutorial seminar exam review"`
	// IsActive defaults to true.
	IsActive             *bool  `json:"is_active"`
	IsOnline             bool   `json:"is_online"`
	MeetingURL           string `json:"meeting_url" validate:"omitempty,url,max=2048"`
	SubstituteLecturerID string `json:"substitute_lecturer_id" validate:"max=64"`
	Notes                string `json:"notes" validate:"max=2000"`
}

// OverrideInput carries the attributes of an override session. Empty
// fields inherit the parent series' values.
type OverrideInput struct {
	// Date moves the override away from the replaced occurrence.
	Date                 string                `json:"date"`
	StartTime            string                `json:"start_time"`
	EndTime              string                `json:"end_time"`
	Room                 string                `json:"room" validate:"max=64"`
	Building             string                `json:"building" validate:"max=128"`
	Campus               string                `json:"campus" validate:"max=128"`
	SessionType          scheduler.SessionType `json:"session_type" validate:"omitempty,oneof=lecture lab tutorial seminar exam review"`
	IsOnline             *bool                 `json:"is_online"`
	MeetingURL           string                `json:"meeting_url" validate:"omitempty,url,max=2048"`
	SubstituteLecturerID string                `json:"substitute_lecturer_id" validate:"max=64"`
	Notes                string                `json:"notes" validate:"max=2000"`
}

// ListSchedulesParams narrows ListSchedules. Zero fields do not filter;
// Month and Year must be given together.
type ListSchedulesParams struct {
	ClassID      string
	LecturerID   string
	DepartmentID string
	StudentID    string
	Month        int
	Year         int
}

// ScheduleView is a schedule as returned by ListSchedules.
type ScheduleView struct {
	scheduler.Schedule
	ClassLabel string `json:"class_label,omitempty"`
	// Occurrences is populated when the listing is scoped to a month.
	Occurrences []OccurrenceView `json:"occurrences,omitempty"`
}

// OccurrenceView is one dated session of a schedule within the listed month.
type OccurrenceView struct {
	Date  calendar.Date    `json:"date"`
	State recurrence.State `json:"state"`
}

// ResyncResult reports the outcome of one class resync.
type ResyncResult struct {
	ClassID       string `json:"class_id"`
	TotalSessions int    `json:"total_sessions"`
	Enrollments   int64  `json:"enrollments"`
}
