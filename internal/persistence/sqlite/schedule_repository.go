package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/scheduler"
)

const scheduleColumns = `id, class_id, kind, parent_id, replaces_date, day_of_week, slot_weekday,
	start_time, end_time, effective_from, effective_to, room, building, campus, room_key, building_key,
	session_type, is_active, is_online, meeting_url, substitute_lecturer_id,
	cancelled_dates, deleted_dates, notes, created_at, updated_at`

type scheduleRow struct {
	ID                   string             `db:"id"`
	ClassID              string             `db:"class_id"`
	Kind                 string             `db:"kind"`
	ParentID             sql.NullString     `db:"parent_id"`
	ReplacesDate         calendar.NullDate  `db:"replaces_date"`
	DayOfWeek            int                `db:"day_of_week"`
	SlotWeekday          int                `db:"slot_weekday"`
	StartTime            calendar.TimeOfDay `db:"start_time"`
	EndTime              calendar.TimeOfDay `db:"end_time"`
	EffectiveFrom        calendar.Date      `db:"effective_from"`
	EffectiveTo          calendar.NullDate  `db:"effective_to"`
	Room                 string             `db:"room"`
	Building             string             `db:"building"`
	Campus               string             `db:"campus"`
	RoomKey              string             `db:"room_key"`
	BuildingKey          string             `db:"building_key"`
	SessionType          string             `db:"session_type"`
	IsActive             bool               `db:"is_active"`
	IsOnline             bool               `db:"is_online"`
	MeetingURL           string             `db:"meeting_url"`
	SubstituteLecturerID string             `db:"substitute_lecturer_id"`
	CancelledDates       calendar.DateSet   `db:"cancelled_dates"`
	DeletedDates         calendar.DateSet   `db:"deleted_dates"`
	Notes                string             `db:"notes"`
	CreatedAt            string             `db:"created_at"`
	UpdatedAt            string             `db:"updated_at"`
}

func newScheduleRow(s scheduler.Schedule) scheduleRow {
	slot := s.Slot()
	row := scheduleRow{
		ID:                   s.ID,
		ClassID:              s.ClassID,
		Kind:                 string(s.Kind),
		ParentID:             sql.NullString{String: s.ParentID, Valid: s.ParentID != ""},
		ReplacesDate:         calendar.NullDateFrom(s.ReplacesDate),
		DayOfWeek:            s.DayOfWeek.Number(),
		SlotWeekday:          slot.Weekday.Number(),
		StartTime:            s.StartTime,
		EndTime:              s.EndTime,
		EffectiveFrom:        s.EffectiveFrom,
		EffectiveTo:          calendar.NullDateFrom(s.EffectiveTo),
		Room:                 s.Location.Room,
		Building:             s.Location.Building,
		Campus:               s.Location.Campus,
		RoomKey:              slot.Room,
		BuildingKey:          slot.Building,
		SessionType:          string(s.SessionType),
		IsActive:             s.IsActive,
		IsOnline:             s.IsOnline,
		MeetingURL:           s.MeetingURL,
		SubstituteLecturerID: s.SubstituteLecturerID,
		CancelledDates:       s.CancelledDates,
		DeletedDates:         s.DeletedDates,
		Notes:                s.Notes,
		CreatedAt:            timestamp(s.CreatedAt),
		UpdatedAt:            timestamp(s.UpdatedAt),
	}
	return row
}

func (r scheduleRow) schedule() (scheduler.Schedule, error) {
	day, err := calendar.WeekdayFromNumber(r.DayOfWeek)
	if err != nil && r.DayOfWeek != 0 {
		return scheduler.Schedule{}, fmt.Errorf("sqlite: schedule %s: %w", r.ID, err)
	}
	createdAt, err := parseTimestamp("created_at", r.CreatedAt)
	if err != nil {
		return scheduler.Schedule{}, err
	}
	updatedAt, err := parseTimestamp("updated_at", r.UpdatedAt)
	if err != nil {
		return scheduler.Schedule{}, err
	}

	return scheduler.Schedule{
		ID:                   r.ID,
		ClassID:              r.ClassID,
		Kind:                 scheduler.Kind(r.Kind),
		ParentID:             r.ParentID.String,
		ReplacesDate:         r.ReplacesDate.Ptr(),
		DayOfWeek:            day,
		StartTime:            r.StartTime,
		EndTime:              r.EndTime,
		EffectiveFrom:        r.EffectiveFrom,
		EffectiveTo:          r.EffectiveTo.Ptr(),
		Location:             scheduler.Location{Room: r.Room, Building: r.Building, Campus: r.Campus},
		SessionType:          scheduler.SessionType(r.SessionType),
		IsActive:             r.IsActive,
		IsOnline:             r.IsOnline,
		MeetingURL:           r.MeetingURL,
		SubstituteLecturerID: r.SubstituteLecturerID,
		CancelledDates:       r.CancelledDates,
		DeletedDates:         r.DeletedDates,
		Notes:                r.Notes,
		CreatedAt:            createdAt,
		UpdatedAt:            updatedAt,
	}, nil
}

// GetSchedule retrieves a committed schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, id string) (scheduler.Schedule, error) {
	return getSchedule(ctx, s.pool.DB(), id)
}

// ListSchedules returns committed schedules matching the filter.
func (s *Store) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]scheduler.Schedule, error) {
	return listSchedules(ctx, s.pool.DB(), filter)
}

// scheduleTx runs repository statements on an open transaction.
type scheduleTx struct {
	q *sqlx.Tx
}

func (t *scheduleTx) GetSchedule(ctx context.Context, id string) (scheduler.Schedule, error) {
	return getSchedule(ctx, t.q, id)
}

func (t *scheduleTx) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]scheduler.Schedule, error) {
	return listSchedules(ctx, t.q, filter)
}

// LockSlot is a no-op: the transaction already holds the database write
// lock because it began IMMEDIATE.
func (t *scheduleTx) LockSlot(ctx context.Context, slot scheduler.Slot) error {
	return ctx.Err()
}

func (t *scheduleTx) CreateSchedule(ctx context.Context, schedule scheduler.Schedule) error {
	if schedule.ID == "" {
		return fmt.Errorf("sqlite: schedule id is required: %w", persistence.ErrConstraintViolation)
	}
	query := `INSERT INTO schedules (` + scheduleColumns + `) VALUES (
		:id, :class_id, :kind, :parent_id, :replaces_date, :day_of_week, :slot_weekday,
		:start_time, :end_time, :effective_from, :effective_to, :room, :building, :campus, :room_key, :building_key,
		:session_type, :is_active, :is_online, :meeting_url, :substitute_lecturer_id,
		:cancelled_dates, :deleted_dates, :notes, :created_at, :updated_at)`
	if _, err := t.q.NamedExecContext(ctx, query, newScheduleRow(schedule)); err != nil {
		return fmt.Errorf("sqlite: create schedule %s: %w", schedule.ID, mapError(err))
	}
	return nil
}

func (t *scheduleTx) UpdateSchedule(ctx context.Context, schedule scheduler.Schedule) error {
	query := `UPDATE schedules SET
		class_id = :class_id, kind = :kind, parent_id = :parent_id, replaces_date = :replaces_date,
		day_of_week = :day_of_week, slot_weekday = :slot_weekday, start_time = :start_time, end_time = :end_time,
		effective_from = :effective_from, effective_to = :effective_to,
		room = :room, building = :building, campus = :campus, room_key = :room_key, building_key = :building_key,
		session_type = :session_type, is_active = :is_active, is_online = :is_online, meeting_url = :meeting_url,
		substitute_lecturer_id = :substitute_lecturer_id, cancelled_dates = :cancelled_dates,
		deleted_dates = :deleted_dates, notes = :notes, updated_at = :updated_at
		WHERE id = :id`
	result, err := t.q.NamedExecContext(ctx, query, newScheduleRow(schedule))
	if err != nil {
		return fmt.Errorf("sqlite: update schedule %s: %w", schedule.ID, mapError(err))
	}
	return requireRow(result)
}

func (t *scheduleTx) DeleteSchedule(ctx context.Context, id string) error {
	result, err := t.q.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete schedule %s: %w", id, mapError(err))
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func getSchedule(ctx context.Context, q sqlx.QueryerContext, id string) (scheduler.Schedule, error) {
	var row scheduleRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scheduler.Schedule{}, persistence.ErrNotFound
		}
		return scheduler.Schedule{}, fmt.Errorf("sqlite: get schedule %s: %w", id, mapError(err))
	}
	return row.schedule()
}

func listSchedules(ctx context.Context, q sqlx.QueryerContext, filter persistence.ScheduleFilter) ([]scheduler.Schedule, error) {
	if filter.MatchesNothing() {
		return []scheduler.Schedule{}, nil
	}

	query, args, err := scheduleQuery(filter)
	if err != nil {
		return nil, err
	}

	var rows []scheduleRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: list schedules: %w", mapError(err))
	}

	out := make([]scheduler.Schedule, 0, len(rows))
	for _, row := range rows {
		schedule, err := row.schedule()
		if err != nil {
			return nil, err
		}
		out = append(out, schedule)
	}
	return out, nil
}

// scheduleQuery translates the filter into SQL. Results are ordered by
// effective date, start time and ID.
func scheduleQuery(filter persistence.ScheduleFilter) (string, []any, error) {
	var (
		where []string
		args  []any
	)

	if len(filter.ClassIDs) > 0 {
		clause, inArgs, err := sqlx.In(`class_id IN (?)`, filter.ClassIDs)
		if err != nil {
			return "", nil, fmt.Errorf("sqlite: expand class filter: %w", err)
		}
		where = append(where, clause)
		args = append(args, inArgs...)
	}
	if filter.ParentID != "" {
		where = append(where, `parent_id = ?`)
		args = append(args, filter.ParentID)
	}
	if len(filter.ParentIDs) > 0 {
		clause, inArgs, err := sqlx.In(`parent_id IN (?)`, filter.ParentIDs)
		if err != nil {
			return "", nil, fmt.Errorf("sqlite: expand parent filter: %w", err)
		}
		where = append(where, clause)
		args = append(args, inArgs...)
	}
	if filter.SubstituteLecturerID != "" {
		where = append(where, `substitute_lecturer_id = ?`)
		args = append(args, filter.SubstituteLecturerID)
	}
	if filter.Slot != nil {
		where = append(where, `room_key = ?`, `building_key = ?`, `slot_weekday = ?`)
		args = append(args, filter.Slot.Room, filter.Slot.Building, filter.Slot.Weekday.Number())
	}
	if filter.ActiveOnly {
		where = append(where, `is_active = 1`)
	}
	if filter.OverlapsTo != nil {
		where = append(where, `effective_from <= ?`)
		args = append(args, filter.OverlapsTo.String())
	}
	if filter.OverlapsFrom != nil {
		where = append(where, `COALESCE(CASE WHEN kind = 'recurring' THEN effective_to ELSE effective_from END, '9999-12-31') >= ?`)
		args = append(args, filter.OverlapsFrom.String())
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY effective_from, start_time, id`
	return query, args, nil
}
