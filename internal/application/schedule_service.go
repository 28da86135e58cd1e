package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/scheduler"
)

// ScheduleStore captures the persistence interactions needed by the service.
type ScheduleStore interface {
	persistence.ScheduleReader
	WithinTx(ctx context.Context, fn func(tx persistence.ScheduleTx) error) error
}

// SessionResyncer recomputes the session count of a class after a committed write.
type SessionResyncer interface {
	ResyncClass(ctx context.Context, classID string) (ResyncResult, error)
}

// ScheduleService orchestrates validation, conflict detection and persistence
// for schedules and their per-date exceptions.
type ScheduleService struct {
	schedules   ScheduleStore
	classes     ClassDirectory
	sessions    SessionResyncer
	validator   *inputValidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(schedules ScheduleStore, classes ClassDirectory, sessions SessionResyncer, idGenerator func() string, now func() time.Time) *ScheduleService {
	return NewScheduleServiceWithLogger(schedules, classes, sessions, idGenerator, now, nil)
}

// NewScheduleServiceWithLogger constructs a schedule service with a specified logger.
func NewScheduleServiceWithLogger(schedules ScheduleStore, classes ClassDirectory, sessions SessionResyncer, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ScheduleService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		schedules:   schedules,
		classes:     classes,
		sessions:    sessions,
		validator:   newInputValidator(),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

func (s *ScheduleService) ready() error {
	if s == nil {
		return fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return fmt.Errorf("schedule repository not configured")
	}
	return nil
}

// CreateSchedule validates the input, rejects it when the room is taken and
// persists a new recurring or single date schedule.
func (s *ScheduleService) CreateSchedule(ctx context.Context, input ScheduleInput) (schedule scheduler.Schedule, warnings []Warning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	classID := strings.TrimSpace(input.ClassID)
	logger := s.loggerWith(ctx, "CreateSchedule", "class_id", classID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("schedule_id", schedule.ID).InfoContext(ctx, "schedule created")
	}()

	kind := input.Kind
	if kind == "" {
		kind = scheduler.KindRecurring
	}

	vErr := s.validator.check(input)
	if kind == scheduler.KindOverride {
		vErr.add("kind", "overrides are created from an occurrence of a series")
	}
	fields := parseScheduleInput(input, kind, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureClassExists(ctx, classID); err != nil {
		return
	}

	createdAt := s.now()
	candidate := scheduler.Schedule{
		ID:                   s.idGenerator(),
		ClassID:              classID,
		Kind:                 kind,
		DayOfWeek:            fields.dayOfWeek,
		StartTime:            fields.start,
		EndTime:              fields.end,
		EffectiveFrom:        fields.effectiveFrom,
		EffectiveTo:          fields.effectiveTo,
		Location:             locationOf(input.Room, input.Building, input.Campus),
		SessionType:          fields.sessionType,
		IsActive:             fields.isActive,
		IsOnline:             input.IsOnline,
		MeetingURL:           strings.TrimSpace(input.MeetingURL),
		SubstituteLecturerID: strings.TrimSpace(input.SubstituteLecturerID),
		Notes:                input.Notes,
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
	}

	err = s.schedules.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		if candidate.IsActive {
			if err := s.ensureSlotFree(ctx, tx, scheduler.WindowOf(candidate), nil); err != nil {
				return err
			}
		}
		return tx.CreateSchedule(ctx, candidate)
	})
	if err != nil {
		err = s.writeError(ctx, err)
		return
	}

	schedule = candidate
	warnings = s.resync(ctx, logger, schedule.ClassID)
	return
}

// UpdateSchedule replaces the attributes of a schedule. The kind and class
// cannot change. Exception dates that are no longer occurrences are dropped
// and saving an inactive schedule clears its cancelled dates.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, id string, input ScheduleInput) (schedule scheduler.Schedule, warnings []Warning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateSchedule", "schedule_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("class_id", schedule.ClassID).InfoContext(ctx, "schedule updated")
	}()

	classID := strings.TrimSpace(input.ClassID)
	err = s.schedules.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		existing, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return err
		}

		vErr := s.validator.check(input)
		if input.Kind != "" && input.Kind != existing.Kind {
			vErr.add("kind", "cannot be changed")
		}
		if classID != "" && classID != existing.ClassID {
			vErr.add("class_id", "cannot be changed")
		}
		fields := parseScheduleInput(input, existing.Kind, vErr)
		if vErr.HasErrors() {
			return vErr
		}

		updated := existing.Clone()
		updated.DayOfWeek = fields.dayOfWeek
		updated.StartTime = fields.start
		updated.EndTime = fields.end
		updated.EffectiveFrom = fields.effectiveFrom
		updated.EffectiveTo = fields.effectiveTo
		updated.Location = locationOf(input.Room, input.Building, input.Campus)
		updated.SessionType = fields.sessionType
		updated.IsActive = fields.isActive
		updated.IsOnline = input.IsOnline
		updated.MeetingURL = strings.TrimSpace(input.MeetingURL)
		updated.SubstituteLecturerID = strings.TrimSpace(input.SubstituteLecturerID)
		updated.Notes = input.Notes
		updated.UpdatedAt = s.now()

		updated.CancelledDates = existing.CancelledDates.Filter(updated.Occurs)
		updated.DeletedDates = existing.DeletedDates.Filter(updated.Occurs)
		if !updated.IsActive {
			updated.CancelledDates = calendar.DateSet{}
		}

		if updated.IsActive {
			window, err := seriesWindow(ctx, tx, updated)
			if err != nil {
				return err
			}
			if err := s.ensureSlotFree(ctx, tx, window, nil, updated.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateSchedule(ctx, updated); err != nil {
			return err
		}
		schedule = updated
		return nil
	})
	if err != nil {
		err = s.writeError(ctx, err)
		schedule = scheduler.Schedule{}
		return
	}

	warnings = s.resync(ctx, logger, schedule.ClassID)
	return
}

// DeleteSchedule removes a schedule. Deleting a series also deletes the
// overrides that replace its occurrences.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, id string) (warnings []Warning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteSchedule", "schedule_id", id)
	var (
		classID   string
		overrides int
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("class_id", classID, "overrides_deleted", overrides).InfoContext(ctx, "schedule deleted")
	}()

	err = s.schedules.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		existing, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return err
		}
		classID = existing.ClassID
		overrides = 0

		if existing.Kind == scheduler.KindRecurring {
			children, err := tx.ListSchedules(ctx, persistence.ScheduleFilter{ParentID: existing.ID})
			if err != nil {
				return err
			}
			for _, child := range children {
				if err := tx.DeleteSchedule(ctx, child.ID); err != nil {
					return err
				}
			}
			overrides = len(children)
		}
		return tx.DeleteSchedule(ctx, existing.ID)
	})
	if err != nil {
		err = s.writeError(ctx, err)
		return
	}

	warnings = s.resync(ctx, logger, classID)
	return
}

// ToggleSeries switches a schedule on or off. A nil active flips the current
// state. Both transitions leave the cancelled dates empty, and switching on
// goes through the conflict check.
func (s *ScheduleService) ToggleSeries(ctx context.Context, id string, active *bool) (schedule scheduler.Schedule, warnings []Warning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ToggleSeries", "schedule_id", id)
	changed := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to toggle series", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("is_active", schedule.IsActive, "changed", changed).InfoContext(ctx, "series toggled")
	}()

	err = s.schedules.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		existing, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return err
		}

		desired := !existing.IsActive
		if active != nil {
			desired = *active
		}
		if desired == existing.IsActive {
			schedule, changed = existing, false
			return nil
		}

		updated := existing.Clone()
		updated.IsActive = desired
		updated.CancelledDates = calendar.DateSet{}
		updated.UpdatedAt = s.now()

		if updated.IsActive {
			window, err := seriesWindow(ctx, tx, updated)
			if err != nil {
				return err
			}
			if err := s.ensureSlotFree(ctx, tx, window, nil, updated.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateSchedule(ctx, updated); err != nil {
			return err
		}
		schedule, changed = updated, true
		return nil
	})
	if err != nil {
		err = s.writeError(ctx, err)
		schedule = scheduler.Schedule{}
		return
	}

	if changed {
		warnings = s.resync(ctx, logger, schedule.ClassID)
	}
	return
}

// ToggleSingleOccurrence cancels one occurrence of an active series, or
// restores it when it is already cancelled. Deleted dates are left as they
// are.
func (s *ScheduleService) ToggleSingleOccurrence(ctx context.Context, id string, date calendar.Date) (schedule scheduler.Schedule, warnings []Warning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ToggleSingleOccurrence", "schedule_id", id, "date", date.String())
	changed := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to toggle occurrence", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("cancelled", schedule.CancelledDates.Contains(date), "changed", changed).
			InfoContext(ctx, "occurrence toggled")
	}()

	err = s.schedules.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		existing, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return err
		}
		if vErr := requireSeriesOccurrence(existing, date); vErr != nil {
			return vErr
		}
		if existing.DeletedDates.Contains(date) {
			schedule, changed = existing, false
			return nil
		}
		if !existing.IsActive {
			return fieldError("date", "occurrences of an inactive series cannot be cancelled")
		}

		updated := existing.Clone()
		updated.UpdatedAt = s.now()

		if !existing.CancelledDates.Contains(date) {
			updated.CancelledDates = existing.CancelledDates.Add(date)
		} else {
			replaced, err := hasOverrideFor(ctx, tx, existing.ID, date)
			if err != nil {
				return err
			}
			if replaced {
				return fieldError("date", "occurrence is replaced by an override")
			}

			updated.CancelledDates = existing.CancelledDates.Remove(date)
			if err := s.ensureSlotFree(ctx, tx, occurrenceWindow(updated, date), nil, updated.ID); err != nil {
				return err
			}
		}

		if err := tx.UpdateSchedule(ctx, updated); err != nil {
			return err
		}
		schedule, changed = updated, true
		return nil
	})
	if err != nil {
		err = s.writeError(ctx, err)
		schedule = scheduler.Schedule{}
		return
	}

	if changed {
		warnings = s.resync(ctx, logger, schedule.ClassID)
	}
	return
}

// DeleteSingleOccurrence permanently removes one occurrence of a series.
func (s *ScheduleService) DeleteSingleOccurrence(ctx context.Context, id string, date calendar.Date) (warnings []Warning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteSingleOccurrence", "schedule_id", id, "date", date.String())
	var (
		classID string
		changed bool
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete occurrence", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("class_id", classID, "changed", changed).InfoContext(ctx, "occurrence deleted")
	}()

	err = s.schedules.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		existing, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return err
		}
		classID = existing.ClassID
		if vErr := requireSeriesOccurrence(existing, date); vErr != nil {
			return vErr
		}
		if existing.DeletedDates.Contains(date) && !existing.CancelledDates.Contains(date) {
			changed = false
			return nil
		}

		updated := existing.Clone()
		updated.DeletedDates = existing.DeletedDates.Add(date)
		updated.CancelledDates = existing.CancelledDates.Remove(date)
		updated.UpdatedAt = s.now()
		if err := tx.UpdateSchedule(ctx, updated); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		err = s.writeError(ctx, err)
		return
	}

	if changed {
		warnings = s.resync(ctx, logger, classID)
	}
	return
}

// EditSingleOccurrence replaces one occurrence of a series with an override
// session. The override inherits every attribute input leaves empty. Once
// the override is stored the parent is reconciled in a separate step whose
// failure is reported as a warning.
func (s *ScheduleService) EditSingleOccurrence(ctx context.Context, id string, date calendar.Date, input OverrideInput) (override scheduler.Schedule, warnings []Warning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "EditSingleOccurrence", "schedule_id", id, "date", date.String())
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to override occurrence", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("override_id", override.ID, "override_date", override.EffectiveFrom.String()).
			InfoContext(ctx, "occurrence overridden")
	}()

	if vErr := s.validator.check(input); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.schedules.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		parent, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return err
		}
		if vErr := requireSeriesOccurrence(parent, date); vErr != nil {
			return vErr
		}
		if parent.DeletedDates.Contains(date) {
			return fieldError("date", "occurrence was deleted")
		}
		replaced, err := hasOverrideFor(ctx, tx, parent.ID, date)
		if err != nil {
			return err
		}
		if replaced {
			return fieldError("date", "occurrence already has an override")
		}

		candidate, vErr := s.buildOverride(parent, date, input)
		if vErr.HasErrors() {
			return vErr
		}

		freed := parent.Clone()
		freed.CancelledDates = parent.CancelledDates.Add(date)
		if err := s.ensureSlotFree(ctx, tx, scheduler.WindowOf(candidate), &freed); err != nil {
			return err
		}
		if err := tx.CreateSchedule(ctx, candidate); err != nil {
			return err
		}
		override = candidate
		return nil
	})
	if err != nil {
		err = s.writeError(ctx, err)
		override = scheduler.Schedule{}
		return
	}

	if rErr := s.reconcileParent(ctx, id, date); rErr != nil {
		logger.WarnContext(ctx, "failed to reconcile parent series", "error", rErr)
		warnings = append(warnings, Warning{
			Code:    WarningReconcileFailed,
			Message: fmt.Sprintf("series %s still shows %s alongside the override", id, date),
		})
	}
	warnings = append(warnings, s.resync(ctx, logger, override.ClassID)...)
	return
}

// buildOverride merges input over the attributes of parent.
func (s *ScheduleService) buildOverride(parent scheduler.Schedule, replaced calendar.Date, input OverrideInput) (scheduler.Schedule, *ValidationError) {
	vErr := &ValidationError{}

	day := replaced
	if strings.TrimSpace(input.Date) != "" {
		if parsed, ok := parseDateField("date", input.Date, vErr); ok {
			day = parsed
		}
	}

	start, end := parent.StartTime, parent.EndTime
	if strings.TrimSpace(input.StartTime) != "" || strings.TrimSpace(input.EndTime) != "" {
		start, end = parseTimeWindow(
			firstNonEmpty(input.StartTime, parent.StartTime.String()),
			firstNonEmpty(input.EndTime, parent.EndTime.String()),
			vErr,
		)
	}

	location := parent.Location
	if room := strings.TrimSpace(input.Room); room != "" {
		location.Room = room
	}
	if building := strings.TrimSpace(input.Building); building != "" {
		location.Building = building
	}
	if campus := strings.TrimSpace(input.Campus); campus != "" {
		location.Campus = campus
	}

	sessionType := parent.SessionType
	if input.SessionType != "" {
		sessionType = input.SessionType
	}
	isOnline := parent.IsOnline
	if input.IsOnline != nil {
		isOnline = *input.IsOnline
	}
	meetingURL := firstNonEmpty(input.MeetingURL, parent.MeetingURL)
	if isOnline && meetingURL == "" {
		vErr.add("meeting_url", "is required when is_online is set")
	}

	createdAt := s.now()
	replacedDate, effectiveTo := replaced, day
	return scheduler.Schedule{
		ID:                   s.idGenerator(),
		ClassID:              parent.ClassID,
		Kind:                 scheduler.KindOverride,
		ParentID:             parent.ID,
		ReplacesDate:         &replacedDate,
		DayOfWeek:            day.Weekday(),
		StartTime:            start,
		EndTime:              end,
		EffectiveFrom:        day,
		EffectiveTo:          &effectiveTo,
		Location:             location,
		SessionType:          sessionType,
		IsActive:             true,
		IsOnline:             isOnline,
		MeetingURL:           meetingURL,
		SubstituteLecturerID: firstNonEmpty(input.SubstituteLecturerID, parent.SubstituteLecturerID),
		Notes:                firstNonEmpty(input.Notes, parent.Notes),
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
	}, vErr
}

// reconcileParent hides the replaced occurrence of an active parent, or
// drops a stale cancellation from an inactive one.
func (s *ScheduleService) reconcileParent(ctx context.Context, parentID string, date calendar.Date) error {
	return s.schedules.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		parent, err := tx.GetSchedule(ctx, parentID)
		if err != nil {
			return err
		}

		cancelled := parent.CancelledDates.Remove(date)
		if parent.IsActive {
			cancelled = parent.CancelledDates.Add(date)
		}
		if cancelled.Equal(parent.CancelledDates) {
			return nil
		}

		updated := parent.Clone()
		updated.CancelledDates = cancelled
		updated.UpdatedAt = s.now()
		return tx.UpdateSchedule(ctx, updated)
	})
}

// ensureSlotFree locks the slot of window and fails with a ConflictError
// when an active schedule already holds it on a shared live date. freed,
// when set, replaces the stored copy of the same schedule for the check.
func (s *ScheduleService) ensureSlotFree(ctx context.Context, tx persistence.ScheduleTx, window scheduler.Window, freed *scheduler.Schedule, excludeIDs ...string) error {
	if window.Slot.IsZero() {
		return nil
	}
	if err := tx.LockSlot(ctx, window.Slot); err != nil {
		return fmt.Errorf("lock slot: %w", err)
	}

	slot, from := window.Slot, window.From
	existing, err := tx.ListSchedules(ctx, persistence.ScheduleFilter{
		Slot:         &slot,
		ActiveOnly:   true,
		OverlapsFrom: &from,
		OverlapsTo:   window.To,
	})
	if err != nil {
		return fmt.Errorf("list schedules in slot: %w", err)
	}
	if freed != nil {
		for i := range existing {
			if existing[i].ID == freed.ID {
				existing[i] = *freed
			}
		}
	}

	// Dates held by overrides are free of their parent for this check.
	superseded, err := supersededDates(ctx, tx, existing)
	if err != nil {
		return err
	}
	for i := range existing {
		if dates := superseded[existing[i].ID]; !dates.IsEmpty() {
			existing[i].CancelledDates = existing[i].CancelledDates.Union(dates)
		}
	}

	conflict, found := scheduler.FindConflict(existing, window, excludeIDs...)
	if !found {
		return nil
	}
	return &ConflictError{
		ScheduleID: conflict.Existing.ID,
		ClassID:    conflict.Existing.ClassID,
		Date:       conflict.Date,
	}
}

func (s *ScheduleService) ensureClassExists(ctx context.Context, classID string) error {
	if s.classes == nil {
		return nil
	}
	if _, err := s.classes.GetClass(ctx, classID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return fieldError("class_id", "class does not exist")
		}
		return fmt.Errorf("load class %s: %w", classID, err)
	}
	return nil
}

// resync refreshes the session count of classID after a committed write.
// Failures are logged and returned as warnings.
func (s *ScheduleService) resync(ctx context.Context, logger *slog.Logger, classID string) []Warning {
	if s.sessions == nil || classID == "" {
		return nil
	}
	if _, err := s.sessions.ResyncClass(ctx, classID); err != nil {
		logger.WarnContext(ctx, "session count left stale", "class_id", classID, "error", err)
		return []Warning{{
			Code:    WarningResyncFailed,
			Message: fmt.Sprintf("session count of class %s could not be updated", classID),
		}}
	}
	return nil
}

// writeError maps a failed transaction to the service error taxonomy and
// names the class that holds a conflicting booking.
func (s *ScheduleService) writeError(ctx context.Context, err error) error {
	err = mapScheduleRepoError(err)

	var cErr *ConflictError
	if s.classes == nil || !errors.As(err, &cErr) || cErr.ClassLabel != "" {
		return err
	}
	if class, lookupErr := s.classes.GetClass(ctx, cErr.ClassID); lookupErr == nil {
		cErr.ClassLabel = class.Label
	}
	return err
}

func mapScheduleRepoError(err error) error {
	if err == nil {
		return nil
	}
	var (
		vErr *ValidationError
		cErr *ConflictError
	)
	if errors.As(err, &vErr) || errors.As(err, &cErr) || errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return fieldError("id", "schedule already exists")
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return fieldError("schedule", "violates a storage constraint")
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return fieldError("class_id", "class does not exist")
	}
	return err
}

// requireSeriesOccurrence checks that date is an occurrence of a recurring series.
func requireSeriesOccurrence(schedule scheduler.Schedule, date calendar.Date) *ValidationError {
	if schedule.Kind.IsSingle() {
		return fieldError("date", "single date schedules have no recurring occurrences")
	}
	if !schedule.Occurs(date) {
		return fieldError("date", "is not an occurrence of the series")
	}
	return nil
}

func hasOverrideFor(ctx context.Context, tx persistence.ScheduleTx, parentID string, date calendar.Date) (bool, error) {
	children, err := tx.ListSchedules(ctx, persistence.ScheduleFilter{ParentID: parentID})
	if err != nil {
		return false, err
	}
	for _, child := range children {
		if child.ReplacesDate != nil && child.ReplacesDate.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

// supersededDates maps every series in schedules to the dates its
// overrides replace, using one query for all of them.
func supersededDates(ctx context.Context, reader persistence.ScheduleReader, schedules []scheduler.Schedule) (map[string]calendar.DateSet, error) {
	var parentIDs []string
	for _, schedule := range schedules {
		if schedule.Kind == scheduler.KindRecurring {
			parentIDs = append(parentIDs, schedule.ID)
		}
	}
	if len(parentIDs) == 0 {
		return map[string]calendar.DateSet{}, nil
	}

	children, err := reader.ListSchedules(ctx, persistence.ScheduleFilter{ParentIDs: parentIDs})
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return scheduler.SupersededDates(children), nil
}

// seriesWindow is the conflict window of schedule without the dates its
// overrides already hold.
func seriesWindow(ctx context.Context, tx persistence.ScheduleTx, schedule scheduler.Schedule) (scheduler.Window, error) {
	window := scheduler.WindowOf(schedule)
	superseded, err := supersededDates(ctx, tx, []scheduler.Schedule{schedule})
	if err != nil {
		return scheduler.Window{}, err
	}
	window.Excluded = window.Excluded.Union(superseded[schedule.ID])
	return window, nil
}

// occurrenceWindow narrows the conflict window of a series to one date.
func occurrenceWindow(schedule scheduler.Schedule, date calendar.Date) scheduler.Window {
	window := scheduler.WindowOf(schedule)
	day := date
	window.From = day
	window.To = &day
	window.Excluded = calendar.DateSet{}
	return window
}

func locationOf(room, building, campus string) scheduler.Location {
	return scheduler.Location{
		Room:     strings.TrimSpace(room),
		Building: strings.TrimSpace(building),
		Campus:   strings.TrimSpace(campus),
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}
