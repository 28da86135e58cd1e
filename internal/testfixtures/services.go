package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/lock"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/persistence/memory"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults. Logs are
// discarded unless WithLogger is given.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator(""),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// SynchronizerDeps captures dependencies for constructing a session synchronizer.
type SynchronizerDeps struct {
	Schedules       persistence.ScheduleReader
	Classes         application.ClassDirectory
	Enrollments     application.EnrollmentWriter
	Locker          lock.Locker
	OpenSeriesWeeks int
}

// NewSessionSynchronizer builds a synchronizer using the factory clock and logger.
func (f *ServiceFactory) NewSessionSynchronizer(deps SynchronizerDeps) *application.SessionSynchronizer {
	return application.NewSessionSynchronizerWithLogger(
		deps.Schedules,
		deps.Classes,
		deps.Enrollments,
		deps.Locker,
		deps.OpenSeriesWeeks,
		f.Clock.NowFunc(),
		f.Logger,
	)
}

// ScheduleServiceDeps captures dependencies for constructing a schedule service.
type ScheduleServiceDeps struct {
	Schedules   application.ScheduleStore
	Classes     application.ClassDirectory
	Sessions    application.SessionResyncer
	IDGenerator func() string
	Now         func() time.Time
}

// NewScheduleService builds a schedule service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewScheduleService(deps ScheduleServiceDeps) *application.ScheduleService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewScheduleServiceWithLogger(
		deps.Schedules,
		deps.Classes,
		deps.Sessions,
		idGen,
		now,
		f.Logger,
	)
}

// Backend is a store offering every contract the services consume.
type Backend interface {
	persistence.ScheduleRepository
	persistence.ClassRepository
	persistence.EnrollmentRepository
}

// Harness wires the schedule service and session synchronizer over one backend.
type Harness struct {
	Store     Backend
	Factory   *ServiceFactory
	Sessions  *application.SessionSynchronizer
	Schedules *application.ScheduleService
}

// NewHarness wires services over store.
func NewHarness(store Backend, opts ...ServiceFactoryOption) *Harness {
	factory := NewServiceFactory(opts...)
	sessions := factory.NewSessionSynchronizer(SynchronizerDeps{
		Schedules:   store,
		Classes:     store,
		Enrollments: store,
		Locker:      lock.NewLocal(),
	})
	schedules := factory.NewScheduleService(ScheduleServiceDeps{
		Schedules: store,
		Classes:   store,
		Sessions:  sessions,
	})
	return &Harness{Store: store, Factory: factory, Sessions: sessions, Schedules: schedules}
}

// NewMemoryHarness wires services over an empty in-memory store.
func NewMemoryHarness(opts ...ServiceFactoryOption) *Harness {
	return NewHarness(memory.New(), opts...)
}

// Seed stores class and enrolls studentIDs, failing tb on error.
func (h *Harness) Seed(tb testing.TB, class persistence.Class, studentIDs ...string) persistence.Class {
	tb.Helper()
	if err := SeedClass(context.Background(), h.Store, class, studentIDs...); err != nil {
		tb.Fatalf("%v", err)
	}
	return class
}

// TotalSessions returns the stored session count of the first enrollment
// of classID.
func (h *Harness) TotalSessions(tb testing.TB, classID string) int {
	tb.Helper()
	enrollments, err := h.Store.ListEnrollments(context.Background(), classID)
	if err != nil {
		tb.Fatalf("list enrollments of %s: %v", classID, err)
	}
	if len(enrollments) == 0 {
		tb.Fatalf("class %s has no enrollments", classID)
	}
	return enrollments[0].TotalSessions
}
