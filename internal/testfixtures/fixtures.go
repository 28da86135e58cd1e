package testfixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/scheduler"
)

var (
	classCounter      uint64
	enrollmentCounter uint64
)

// referenceTime falls on a Monday so weekly series starting "today" line up.
var referenceTime = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Class fixtures -----------------------------

// ClassOption configures a generated class.
type ClassOption func(*persistence.Class)

// NewClass returns a deterministic class with optional overrides.
func NewClass(opts ...ClassOption) persistence.Class {
	idx := atomic.AddUint64(&classCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	class := persistence.Class{
		ID:           fmt.Sprintf("class-%03d", idx),
		Label:        fmt.Sprintf("Class %03d", idx),
		LecturerID:   fmt.Sprintf("lecturer-%03d", idx),
		DepartmentID: "general",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&class)
	}
	return class
}

// WithClassID overrides the generated class ID.
func WithClassID(id string) ClassOption {
	return func(c *persistence.Class) {
		c.ID = id
	}
}

// WithClassLabel overrides the generated label.
func WithClassLabel(label string) ClassOption {
	return func(c *persistence.Class) {
		c.Label = label
	}
}

// WithLecturer assigns the class lecturer.
func WithLecturer(id string) ClassOption {
	return func(c *persistence.Class) {
		c.LecturerID = id
	}
}

// WithDepartment assigns the class department.
func WithDepartment(id string) ClassOption {
	return func(c *persistence.Class) {
		c.DepartmentID = id
	}
}

// WithTermEnd sets the last day of the class term.
func WithTermEnd(date string) ClassOption {
	return func(c *persistence.Class) {
		d := calendar.MustParseDate(date)
		c.EndsOn = &d
	}
}

// NewEnrollment enrolls studentID in classID.
func NewEnrollment(classID, studentID string) persistence.Enrollment {
	idx := atomic.AddUint64(&enrollmentCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	return persistence.Enrollment{
		ID:        fmt.Sprintf("enrollment-%03d", idx),
		ClassID:   classID,
		StudentID: studentID,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// Seeder is satisfied by every store that can hold classes and enrollments.
type Seeder interface {
	UpsertClass(ctx context.Context, class persistence.Class) error
	UpsertEnrollment(ctx context.Context, enrollment persistence.Enrollment) error
}

// SeedClass stores class and enrolls each student in it.
func SeedClass(ctx context.Context, store Seeder, class persistence.Class, studentIDs ...string) error {
	if err := store.UpsertClass(ctx, class); err != nil {
		return fmt.Errorf("seed class %s: %w", class.ID, err)
	}
	for _, studentID := range studentIDs {
		if err := store.UpsertEnrollment(ctx, NewEnrollment(class.ID, studentID)); err != nil {
			return fmt.Errorf("seed enrollment %s/%s: %w", class.ID, studentID, err)
		}
	}
	return nil
}

// ---------------------------- Schedule fixtures ----------------------------

// ScheduleOption configures a generated schedule input.
type ScheduleOption func(*application.ScheduleInput)

// WeeklySeries returns a recurring 08:00-10:00 series in Main 101. An empty
// to leaves the series open ended.
func WeeklySeries(classID string, day calendar.Weekday, from, to string, opts ...ScheduleOption) application.ScheduleInput {
	input := application.ScheduleInput{
		ClassID:       classID,
		Kind:          scheduler.KindRecurring,
		DayOfWeek:     day,
		StartTime:     "08:00:00",
		EndTime:       "10:00:00",
		EffectiveFrom: from,
		EffectiveTo:   to,
		Room:          "101",
		Building:      "Main",
	}
	for _, opt := range opts {
		opt(&input)
	}
	return input
}

// SingleSession returns a one-off 08:00-10:00 session in Main 101.
func SingleSession(classID, date string, opts ...ScheduleOption) application.ScheduleInput {
	input := application.ScheduleInput{
		ClassID:       classID,
		Kind:          scheduler.KindSingleDate,
		StartTime:     "08:00:00",
		EndTime:       "10:00:00",
		EffectiveFrom: date,
		Room:          "101",
		Building:      "Main",
	}
	for _, opt := range opts {
		opt(&input)
	}
	return input
}

// InRoom moves the session to another room.
func InRoom(room, building string) ScheduleOption {
	return func(in *application.ScheduleInput) {
		in.Room, in.Building = room, building
	}
}

// Between sets the session times.
func Between(start, end string) ScheduleOption {
	return func(in *application.ScheduleInput) {
		in.StartTime, in.EndTime = start, end
	}
}

// OfType sets the session type.
func OfType(sessionType scheduler.SessionType) ScheduleOption {
	return func(in *application.ScheduleInput) {
		in.SessionType = sessionType
	}
}

// Inactive stores the schedule switched off.
func Inactive() ScheduleOption {
	return func(in *application.ScheduleInput) {
		active := false
		in.IsActive = &active
	}
}

// Online marks the session as online with the given meeting URL.
func Online(meetingURL string) ScheduleOption {
	return func(in *application.ScheduleInput) {
		in.IsOnline, in.MeetingURL = true, meetingURL
	}
}

// SubstitutedBy assigns a substitute lecturer.
func SubstitutedBy(lecturerID string) ScheduleOption {
	return func(in *application.ScheduleInput) {
		in.SubstituteLecturerID = lecturerID
	}
}
