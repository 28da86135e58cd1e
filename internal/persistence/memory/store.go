// Package memory provides an in-process implementation of the persistence
// contracts. It backs tests and the demo mode of the server.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/scheduler"
)

// Store keeps schedules, classes and enrollments in maps guarded by a mutex.
//
// Transactions work on a private copy of the schedule map that replaces the
// committed map when fn succeeds. Only one transaction runs at a time, so
// LockSlot needs no bookkeeping of its own.
type Store struct {
	txMu        sync.Mutex
	mu          sync.RWMutex
	schedules   map[string]scheduler.Schedule
	classes     map[string]persistence.Class
	enrollments map[string]persistence.Enrollment
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		schedules:   make(map[string]scheduler.Schedule),
		classes:     make(map[string]persistence.Class),
		enrollments: make(map[string]persistence.Enrollment),
	}
}

// Close releases resources held by the store. No-op for the in-memory implementation.
func (s *Store) Close() error {
	return nil
}

// Migrate initialises the store. No-op for the in-memory implementation.
func (s *Store) Migrate(context.Context) error {
	return nil
}

// --- ScheduleRepository implementation ---

// GetSchedule retrieves a committed schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, id string) (scheduler.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSchedule(s.schedules, id)
}

// ListSchedules returns committed schedules matching the filter.
func (s *Store) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]scheduler.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSchedules(s.schedules, filter), nil
}

// WithinTx runs fn against a staged copy of the schedules and commits it if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx persistence.ScheduleTx) error) error {
	if fn == nil {
		return fmt.Errorf("memory: transaction function is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	staged := maps.Clone(s.schedules)
	s.mu.RUnlock()

	if err := fn(&scheduleTx{schedules: staged}); err != nil {
		return err
	}

	s.mu.Lock()
	s.schedules = staged
	s.mu.Unlock()
	return nil
}

type scheduleTx struct {
	schedules map[string]scheduler.Schedule
}

func (t *scheduleTx) GetSchedule(ctx context.Context, id string) (scheduler.Schedule, error) {
	return getSchedule(t.schedules, id)
}

func (t *scheduleTx) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]scheduler.Schedule, error) {
	return listSchedules(t.schedules, filter), nil
}

// LockSlot is satisfied by the store-wide transaction mutex.
func (t *scheduleTx) LockSlot(ctx context.Context, slot scheduler.Slot) error {
	return ctx.Err()
}

func (t *scheduleTx) CreateSchedule(ctx context.Context, schedule scheduler.Schedule) error {
	if schedule.ID == "" {
		return fmt.Errorf("memory: schedule id is required: %w", persistence.ErrConstraintViolation)
	}
	if _, ok := t.schedules[schedule.ID]; ok {
		return fmt.Errorf("memory: schedule %s: %w", schedule.ID, persistence.ErrDuplicate)
	}
	t.schedules[schedule.ID] = schedule.Clone()
	return nil
}

func (t *scheduleTx) UpdateSchedule(ctx context.Context, schedule scheduler.Schedule) error {
	if _, ok := t.schedules[schedule.ID]; !ok {
		return persistence.ErrNotFound
	}
	t.schedules[schedule.ID] = schedule.Clone()
	return nil
}

func (t *scheduleTx) DeleteSchedule(ctx context.Context, id string) error {
	if _, ok := t.schedules[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(t.schedules, id)
	return nil
}

func getSchedule(schedules map[string]scheduler.Schedule, id string) (scheduler.Schedule, error) {
	schedule, ok := schedules[id]
	if !ok {
		return scheduler.Schedule{}, persistence.ErrNotFound
	}
	return schedule.Clone(), nil
}

// listSchedules orders results by effective date, start time and ID.
func listSchedules(schedules map[string]scheduler.Schedule, filter persistence.ScheduleFilter) []scheduler.Schedule {
	out := make([]scheduler.Schedule, 0)
	for _, schedule := range schedules {
		if filter.Matches(schedule) {
			out = append(out, schedule.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].EffectiveFrom.Compare(out[j].EffectiveFrom); c != 0 {
			return c < 0
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// --- ClassRepository implementation ---

// GetClass retrieves a class by ID.
func (s *Store) GetClass(ctx context.Context, id string) (persistence.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	class, ok := s.classes[id]
	if !ok {
		return persistence.Class{}, persistence.ErrNotFound
	}
	return cloneClass(class), nil
}

// ListClasses returns classes matching the filter ordered by ID.
func (s *Store) ListClasses(ctx context.Context, filter persistence.ClassFilter) ([]persistence.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var enrolled map[string]bool
	if filter.StudentID != "" {
		enrolled = make(map[string]bool)
		for _, enrollment := range s.enrollments {
			if enrollment.StudentID == filter.StudentID {
				enrolled[enrollment.ClassID] = true
			}
		}
	}

	out := make([]persistence.Class, 0)
	for _, class := range s.classes {
		switch {
		case len(filter.IDs) > 0 && !slices.Contains(filter.IDs, class.ID):
			continue
		case filter.LecturerID != "" && class.LecturerID != filter.LecturerID:
			continue
		case filter.DepartmentID != "" && class.DepartmentID != filter.DepartmentID:
			continue
		case enrolled != nil && !enrolled[class.ID]:
			continue
		}
		out = append(out, cloneClass(class))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertClass stores or replaces a class.
func (s *Store) UpsertClass(ctx context.Context, class persistence.Class) error {
	if class.ID == "" {
		return fmt.Errorf("memory: class id is required: %w", persistence.ErrConstraintViolation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[class.ID] = cloneClass(class)
	return nil
}

// --- EnrollmentRepository implementation ---

// UpsertEnrollment stores or replaces an enrollment.
func (s *Store) UpsertEnrollment(ctx context.Context, enrollment persistence.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.classes[enrollment.ClassID]; !ok {
		return fmt.Errorf("memory: class %s: %w", enrollment.ClassID, persistence.ErrForeignKeyViolation)
	}
	s.enrollments[enrollment.ID] = enrollment
	return nil
}

// ListEnrollments returns the enrollments of a class ordered by ID.
func (s *Store) ListEnrollments(ctx context.Context, classID string) ([]persistence.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Enrollment, 0)
	for _, enrollment := range s.enrollments {
		if enrollment.ClassID == classID {
			out = append(out, enrollment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetTotalSessions overwrites the session count on every enrollment of the class.
func (s *Store) SetTotalSessions(ctx context.Context, classID string, total int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var written int64
	for id, enrollment := range s.enrollments {
		if enrollment.ClassID != classID {
			continue
		}
		enrollment.TotalSessions = total
		s.enrollments[id] = enrollment
		written++
	}
	return written, nil
}

func cloneClass(class persistence.Class) persistence.Class {
	out := class
	if class.EndsOn != nil {
		d := *class.EndsOn
		out.EndsOn = &d
	}
	return out
}
