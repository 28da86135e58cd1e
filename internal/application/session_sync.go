package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/lock"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/scheduler"
)

// DefaultOpenSeriesWeeks bounds the count of a series with no end date when
// the class has no known term end.
const DefaultOpenSeriesWeeks = 16

// ClassDirectory exposes class lookups.
type ClassDirectory interface {
	GetClass(ctx context.Context, id string) (persistence.Class, error)
	ListClasses(ctx context.Context, filter persistence.ClassFilter) ([]persistence.Class, error)
}

// EnrollmentWriter persists the derived session count of a class.
type EnrollmentWriter interface {
	SetTotalSessions(ctx context.Context, classID string, total int) (int64, error)
}

// SessionSynchronizer recomputes the number of countable sessions of a class
// and writes it to every enrollment of the class.
type SessionSynchronizer struct {
	schedules       persistence.ScheduleReader
	classes         ClassDirectory
	enrollments     EnrollmentWriter
	locker          lock.Locker
	openSeriesWeeks int
	stale           *staleClasses
	logger          *slog.Logger
}

// NewSessionSynchronizer wires dependencies for session counting.
func NewSessionSynchronizer(schedules persistence.ScheduleReader, classes ClassDirectory, enrollments EnrollmentWriter, locker lock.Locker, openSeriesWeeks int, now func() time.Time) *SessionSynchronizer {
	return NewSessionSynchronizerWithLogger(schedules, classes, enrollments, locker, openSeriesWeeks, now, nil)
}

// NewSessionSynchronizerWithLogger constructs a synchronizer with a specified logger.
func NewSessionSynchronizerWithLogger(schedules persistence.ScheduleReader, classes ClassDirectory, enrollments EnrollmentWriter, locker lock.Locker, openSeriesWeeks int, now func() time.Time, logger *slog.Logger) *SessionSynchronizer {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if openSeriesWeeks <= 0 {
		openSeriesWeeks = DefaultOpenSeriesWeeks
	}
	return &SessionSynchronizer{
		schedules:       schedules,
		classes:         classes,
		enrollments:     enrollments,
		locker:          locker,
		openSeriesWeeks: openSeriesWeeks,
		stale:           newStaleClasses(0, now),
		logger:          defaultLogger(logger),
	}
}

func (s *SessionSynchronizer) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionSynchronizer", operation, attrs...)
}

// CountSessions returns the number of countable sessions of the class
// without writing it anywhere.
func (s *SessionSynchronizer) CountSessions(ctx context.Context, classID string) (int, error) {
	if s == nil || s.schedules == nil || s.classes == nil {
		return 0, fmt.Errorf("session synchronizer not configured")
	}

	class, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return 0, fmt.Errorf("class %s: %w", classID, ErrNotFound)
		}
		return 0, fmt.Errorf("load class %s: %w", classID, err)
	}

	// Inactive overrides still supersede their parent's date.
	schedules, err := s.schedules.ListSchedules(ctx, persistence.ScheduleFilter{
		ClassIDs: []string{classID},
	})
	if err != nil {
		return 0, fmt.Errorf("list schedules of class %s: %w", classID, err)
	}

	superseded := scheduler.SupersededDates(schedules)
	total := 0
	for _, schedule := range schedules {
		total += schedule.SessionCount(s.horizon(class, schedule), superseded[schedule.ID])
	}
	return total, nil
}

// horizon is the last date an open ended series is counted to.
func (s *SessionSynchronizer) horizon(class persistence.Class, schedule scheduler.Schedule) calendar.Date {
	if class.EndsOn != nil {
		return *class.EndsOn
	}
	return schedule.EffectiveFrom.AddDays(7*s.openSeriesWeeks - 1)
}

// ResyncClass recomputes the session count of the class and replaces
// total_sessions on each of its enrollments. Resyncs of one class never
// run concurrently.
func (s *SessionSynchronizer) ResyncClass(ctx context.Context, classID string) (result ResyncResult, err error) {
	if s == nil {
		err = fmt.Errorf("SessionSynchronizer is nil")
		return
	}
	if s.enrollments == nil {
		err = fmt.Errorf("enrollment writer not configured")
		return
	}

	logger := s.loggerWith(ctx, "ResyncClass", "class_id", classID)
	defer func() {
		if err != nil {
			s.stale.Mark(classID)
			logger.ErrorContext(ctx, "failed to resync class", "error", err, "error_kind", ErrorKind(err))
			return
		}
		s.stale.Clear(classID)
		logger.With("total_sessions", result.TotalSessions, "enrollments", result.Enrollments).
			InfoContext(ctx, "class resynced")
	}()

	release, err := s.locker.Acquire(ctx, "resync:"+classID)
	if err != nil {
		err = fmt.Errorf("acquire resync lock: %w", err)
		return
	}
	defer release()

	total, err := s.CountSessions(ctx, classID)
	if err != nil {
		return
	}

	written, err := s.enrollments.SetTotalSessions(ctx, classID, total)
	if err != nil {
		err = fmt.Errorf("write total sessions: %w", err)
		return
	}

	result = ResyncResult{ClassID: classID, TotalSessions: total, Enrollments: written}
	return
}

// ResyncAll resyncs every class and returns how many succeeded. Failures do
// not stop the pass; they are joined into the returned error.
func (s *SessionSynchronizer) ResyncAll(ctx context.Context) (count int, err error) {
	if s == nil || s.classes == nil {
		err = fmt.Errorf("session synchronizer not configured")
		return
	}

	logger := s.loggerWith(ctx, "ResyncAll")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "resync pass finished with failures", "resynced", count, "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "resync pass finished", "resynced", count)
	}()

	classes, err := s.classes.ListClasses(ctx, persistence.ClassFilter{})
	if err != nil {
		err = fmt.Errorf("list classes: %w", err)
		return
	}

	s.stale.Reset()
	count, err = s.resyncEach(ctx, classIDs(classes))
	return
}

// ResyncStale retries the classes whose last resync failed. After an
// overflow it falls back to ResyncAll.
func (s *SessionSynchronizer) ResyncStale(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("SessionSynchronizer is nil")
	}
	ids, overflow := s.stale.Snapshot()
	if overflow {
		return s.ResyncAll(ctx)
	}
	return s.resyncEach(ctx, ids)
}

// StaleClasses lists the classes whose total_sessions may be out of date.
func (s *SessionSynchronizer) StaleClasses() []string {
	if s == nil {
		return nil
	}
	ids, _ := s.stale.Snapshot()
	return ids
}

func (s *SessionSynchronizer) resyncEach(ctx context.Context, ids []string) (int, error) {
	var (
		count int
		errs  []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.ResyncClass(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("class %s: %w", id, err))
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

func classIDs(classes []persistence.Class) []string {
	ids := make([]string, 0, len(classes))
	for _, class := range classes {
		ids = append(ids, class.ID)
	}
	return ids
}
