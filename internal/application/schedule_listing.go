package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/recurrence"
	"github.com/example/class-scheduler/internal/scheduler"
)

// ListSchedules returns the schedules matching params ordered by start. A
// lecturer matches the classes they teach and the schedules they substitute
// on. When Month and Year are set only schedules running that month are
// returned, each with its dated occurrences.
func (s *ScheduleService) ListSchedules(ctx context.Context, params ListSchedulesParams) (views []ScheduleView, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListSchedules")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list schedules", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "schedules listed", "count", len(views))
	}()

	month, vErr := monthOf(params.Month, params.Year)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	filters, err := s.listFilters(ctx, params, month)
	if err != nil {
		return
	}

	schedules, err := s.collectSchedules(ctx, filters)
	if err != nil {
		return
	}

	labels, err := s.classLabels(ctx, schedules)
	if err != nil {
		return
	}

	var superseded map[string]calendar.DateSet
	if month != nil {
		superseded, err = supersededDates(ctx, s.schedules, activeOnly(schedules))
		if err != nil {
			return nil, err
		}
	}

	views = make([]ScheduleView, 0, len(schedules))
	for _, schedule := range schedules {
		view := ScheduleView{Schedule: schedule, ClassLabel: labels[schedule.ClassID]}
		if month != nil && schedule.IsActive {
			view.Occurrences, err = occurrencesIn(schedule, superseded[schedule.ID], *month)
			if err != nil {
				return nil, err
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// monthRange is an inclusive span of dates.
type monthRange struct {
	from calendar.Date
	to   calendar.Date
}

func monthOf(month, year int) (*monthRange, *ValidationError) {
	vErr := &ValidationError{}
	if month == 0 && year == 0 {
		return nil, vErr
	}
	if month == 0 {
		vErr.add("month", "is required with year")
	} else if month < 1 || month > 12 {
		vErr.add("month", "must be between 1 and 12")
	}
	if year == 0 {
		vErr.add("year", "is required with month")
	} else if year < 1 || year > 9999 {
		vErr.add("year", "must be between 1 and 9999")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	first := calendar.NewDate(year, time.Month(month), 1)
	last := calendar.DateOf(first.Time().AddDate(0, 1, -1))
	return &monthRange{from: first, to: last}, vErr
}

// listFilters translates params into one or more store queries whose
// results are merged.
func (s *ScheduleService) listFilters(ctx context.Context, params ListSchedulesParams, month *monthRange) ([]persistence.ScheduleFilter, error) {
	base := persistence.ScheduleFilter{}
	if month != nil {
		from, to := month.from, month.to
		base.OverlapsFrom, base.OverlapsTo = &from, &to
	}

	// allowed is nil when no class restriction applies.
	var allowed []string
	switch {
	case params.DepartmentID != "" || params.StudentID != "":
		classes, err := s.listClasses(ctx, persistence.ClassFilter{
			IDs:          nonEmpty(params.ClassID),
			DepartmentID: params.DepartmentID,
			StudentID:    params.StudentID,
		})
		if err != nil {
			return nil, err
		}
		allowed = classIDs(classes)
	case params.ClassID != "":
		allowed = []string{params.ClassID}
	}

	if params.LecturerID == "" {
		base.ClassIDs = allowed
		return []persistence.ScheduleFilter{base}, nil
	}

	taught := []string{}
	if allowed == nil || len(allowed) > 0 {
		classes, err := s.listClasses(ctx, persistence.ClassFilter{IDs: allowed, LecturerID: params.LecturerID})
		if err != nil {
			return nil, err
		}
		taught = classIDs(classes)
	}

	byClass := base
	byClass.ClassIDs = taught
	bySubstitute := base
	bySubstitute.ClassIDs = allowed
	bySubstitute.SubstituteLecturerID = params.LecturerID
	return []persistence.ScheduleFilter{byClass, bySubstitute}, nil
}

func (s *ScheduleService) listClasses(ctx context.Context, filter persistence.ClassFilter) ([]persistence.Class, error) {
	if s.classes == nil {
		return nil, fmt.Errorf("class directory not configured")
	}
	classes, err := s.classes.ListClasses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// collectSchedules runs each filter and merges the results without duplicates.
func (s *ScheduleService) collectSchedules(ctx context.Context, filters []persistence.ScheduleFilter) ([]scheduler.Schedule, error) {
	seen := make(map[string]struct{})
	out := make([]scheduler.Schedule, 0)
	for _, filter := range filters {
		schedules, err := s.schedules.ListSchedules(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list schedules: %w", err)
		}
		for _, schedule := range schedules {
			if _, ok := seen[schedule.ID]; ok {
				continue
			}
			seen[schedule.ID] = struct{}{}
			out = append(out, schedule)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := a.EffectiveFrom.Compare(b.EffectiveFrom); c != 0 {
			return c < 0
		}
		if a.StartTime != b.StartTime {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *ScheduleService) classLabels(ctx context.Context, schedules []scheduler.Schedule) (map[string]string, error) {
	labels := make(map[string]string)
	if s.classes == nil || len(schedules) == 0 {
		return labels, nil
	}

	ids := make([]string, 0)
	for _, schedule := range schedules {
		if _, ok := labels[schedule.ClassID]; ok {
			continue
		}
		labels[schedule.ClassID] = ""
		ids = append(ids, schedule.ClassID)
	}

	classes, err := s.listClasses(ctx, persistence.ClassFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	for _, class := range classes {
		labels[class.ID] = class.Label
	}
	return labels, nil
}

// occurrencesIn materializes the dates of schedule inside month. Dates in
// superseded are replaced by an override and reported as such.
func occurrencesIn(schedule scheduler.Schedule, superseded calendar.DateSet, month monthRange) ([]OccurrenceView, error) {
	exceptions := recurrence.Exceptions{
		Cancelled:  schedule.CancelledDates,
		Deleted:    schedule.DeletedDates,
		Superseded: superseded,
	}

	from, to := month.from, month.to
	occurrences, err := schedule.Rule().Expand(exceptions, recurrence.GenerateOptions{RangeStart: &from, RangeEnd: &to})
	if err != nil {
		return nil, fmt.Errorf("expand schedule %s: %w", schedule.ID, err)
	}

	out := make([]OccurrenceView, 0, len(occurrences))
	for _, occurrence := range occurrences {
		out = append(out, OccurrenceView{Date: occurrence.Date, State: occurrence.State})
	}
	return out, nil
}

func activeOnly(schedules []scheduler.Schedule) []scheduler.Schedule {
	out := make([]scheduler.Schedule, 0, len(schedules))
	for _, schedule := range schedules {
		if schedule.IsActive {
			out = append(out, schedule)
		}
	}
	return out
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
