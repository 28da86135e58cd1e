package persistence

import (
	"time"

	"github.com/example/class-scheduler/internal/calendar"
)

// Class is the read-only view of a class the schedule engine needs.
type Class struct {
	ID           string
	Label        string
	LecturerID   string
	DepartmentID string
	// EndsOn is the last day of the class term, if known.
	EndsOn    *calendar.Date
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enrollment links a student to a class and carries the derived session count.
type Enrollment struct {
	ID            string
	ClassID       string
	StudentID     string
	TotalSessions int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
