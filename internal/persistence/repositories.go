package persistence

import (
	"context"
	"slices"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/scheduler"
)

// ScheduleFilter narrows schedule queries. Zero fields do not filter. A
// non-nil but empty ClassIDs or ParentIDs matches nothing.
type ScheduleFilter struct {
	ClassIDs             []string
	ParentID             string
	ParentIDs            []string
	SubstituteLecturerID string
	Slot                 *scheduler.Slot
	ActiveOnly           bool
	// OverlapsFrom and OverlapsTo keep schedules whose effective range
	// intersects [OverlapsFrom, OverlapsTo]. An open series end is unbounded.
	OverlapsFrom *calendar.Date
	OverlapsTo   *calendar.Date
}

// MatchesNothing reports whether an empty ID list rules out every schedule.
func (f ScheduleFilter) MatchesNothing() bool {
	return (f.ClassIDs != nil && len(f.ClassIDs) == 0) || (f.ParentIDs != nil && len(f.ParentIDs) == 0)
}

// Matches reports whether s satisfies the filter. Stores that cannot express
// a clause in their query language use it to post-filter rows.
func (f ScheduleFilter) Matches(s scheduler.Schedule) bool {
	if f.ClassIDs != nil && !slices.Contains(f.ClassIDs, s.ClassID) {
		return false
	}
	if f.ParentID != "" && s.ParentID != f.ParentID {
		return false
	}
	if f.ParentIDs != nil && !slices.Contains(f.ParentIDs, s.ParentID) {
		return false
	}
	if f.SubstituteLecturerID != "" && s.SubstituteLecturerID != f.SubstituteLecturerID {
		return false
	}
	if f.Slot != nil && s.Slot() != *f.Slot {
		return false
	}
	if f.ActiveOnly && !s.IsActive {
		return false
	}
	if f.OverlapsTo != nil && s.EffectiveFrom.After(*f.OverlapsTo) {
		return false
	}
	if f.OverlapsFrom != nil {
		end := s.EffectiveTo
		if s.Kind.IsSingle() {
			end = &s.EffectiveFrom
		}
		if end != nil && end.Before(*f.OverlapsFrom) {
			return false
		}
	}
	return true
}

// ScheduleReader exposes schedule lookups.
type ScheduleReader interface {
	GetSchedule(ctx context.Context, id string) (scheduler.Schedule, error)
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]scheduler.Schedule, error)
}

// ScheduleTx is the view of the schedule store inside one transaction.
type ScheduleTx interface {
	ScheduleReader
	// LockSlot blocks other transactions from writing to the slot until
	// this transaction ends.
	LockSlot(ctx context.Context, slot scheduler.Slot) error
	CreateSchedule(ctx context.Context, schedule scheduler.Schedule) error
	UpdateSchedule(ctx context.Context, schedule scheduler.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
}

// ScheduleRepository stores schedules. Writes happen inside WithinTx, which
// commits when fn returns nil and rolls back otherwise.
type ScheduleRepository interface {
	ScheduleReader
	WithinTx(ctx context.Context, fn func(tx ScheduleTx) error) error
}

// ClassFilter narrows class queries. Zero fields do not filter.
type ClassFilter struct {
	IDs          []string
	LecturerID   string
	DepartmentID string
	StudentID    string
}

// ClassRepository resolves class identities and stores class records.
type ClassRepository interface {
	GetClass(ctx context.Context, id string) (Class, error)
	ListClasses(ctx context.Context, filter ClassFilter) ([]Class, error)
	UpsertClass(ctx context.Context, class Class) error
}

// EnrollmentRepository stores enrollments and their derived session count.
type EnrollmentRepository interface {
	UpsertEnrollment(ctx context.Context, enrollment Enrollment) error
	ListEnrollments(ctx context.Context, classID string) ([]Enrollment, error)
	// SetTotalSessions overwrites total_sessions on every enrollment of the
	// class and reports how many rows were written.
	SetTotalSessions(ctx context.Context, classID string, total int) (int64, error)
}
