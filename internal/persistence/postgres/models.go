package postgres

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/scheduler"
)

type classModel struct {
	ID           string          `gorm:"column:id;type:text;primaryKey"`
	Label        string          `gorm:"column:label;type:text;not null"`
	LecturerID   string          `gorm:"column:lecturer_id;type:text;not null;index"`
	DepartmentID string          `gorm:"column:department_id;type:text;not null;index"`
	EndsOn       *datatypes.Date `gorm:"column:ends_on;type:date"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null;autoCreateTime:false"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;type:timestamptz;not null;autoUpdateTime:false"`
}

func (classModel) TableName() string { return "classes" }

type enrollmentModel struct {
	ID            string     `gorm:"column:id;type:text;primaryKey"`
	ClassID       string     `gorm:"column:class_id;type:text;not null;uniqueIndex:uq_enrollments_class_student,priority:1"`
	StudentID     string     `gorm:"column:student_id;type:text;not null;uniqueIndex:uq_enrollments_class_student,priority:2;index"`
	TotalSessions int        `gorm:"column:total_sessions;not null;check:chk_enrollments_total,total_sessions >= 0"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:timestamptz;not null;autoCreateTime:false"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:timestamptz;not null;autoUpdateTime:false"`
	Class         classModel `gorm:"foreignKey:ClassID;references:ID;constraint:OnDelete:CASCADE"`
}

func (enrollmentModel) TableName() string { return "enrollments" }

type scheduleModel struct {
	ID                   string          `gorm:"column:id;type:text;primaryKey"`
	ClassID              string          `gorm:"column:class_id;type:text;not null;index"`
	Kind                 string          `gorm:"column:kind;type:varchar(16);not null;check:chk_schedules_kind,kind IN ('recurring','single_date','override')"`
	ParentID             *string         `gorm:"column:parent_id;type:text;index"`
	ReplacesDate         *datatypes.Date `gorm:"column:replaces_date;type:date"`
	DayOfWeek            int             `gorm:"column:day_of_week;type:smallint;not null;check:chk_schedules_day,day_of_week BETWEEN 0 AND 7"`
	SlotWeekday          int             `gorm:"column:slot_weekday;type:smallint;not null;index:idx_schedules_slot,priority:3"`
	StartTime            datatypes.Time  `gorm:"column:start_time;type:time;not null"`
	EndTime              datatypes.Time  `gorm:"column:end_time;type:time;not null;check:chk_schedules_time,start_time < end_time"`
	EffectiveFrom        datatypes.Date  `gorm:"column:effective_from;type:date;not null"`
	EffectiveTo          *datatypes.Date `gorm:"column:effective_to;type:date;check:chk_schedules_range,effective_to IS NULL OR effective_to >= effective_from"`
	Room                 string          `gorm:"column:room;type:text;not null"`
	Building             string          `gorm:"column:building;type:text;not null"`
	Campus               string          `gorm:"column:campus;type:text;not null"`
	RoomKey              string          `gorm:"column:room_key;type:text;not null;index:idx_schedules_slot,priority:2"`
	BuildingKey          string          `gorm:"column:building_key;type:text;not null;index:idx_schedules_slot,priority:1"`
	SessionType          string          `gorm:"column:session_type;type:varchar(16);not null"`
	IsActive             bool            `gorm:"column:is_active;not null"`
	IsOnline             bool            `gorm:"column:is_online;not null"`
	MeetingURL           string          `gorm:"column:meeting_url;type:text;not null"`
	SubstituteLecturerID string          `gorm:"column:substitute_lecturer_id;type:text;not null;index"`
	CancelledDates       datatypes.JSON  `gorm:"column:cancelled_dates;type:jsonb;not null"`
	DeletedDates         datatypes.JSON  `gorm:"column:deleted_dates;type:jsonb;not null"`
	Notes                string          `gorm:"column:notes;type:text;not null"`
	CreatedAt            time.Time       `gorm:"column:created_at;type:timestamptz;not null;autoCreateTime:false"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;type:timestamptz;not null;autoUpdateTime:false"`
	Class                classModel      `gorm:"foreignKey:ClassID;references:ID;constraint:OnDelete:CASCADE"`
}

func (scheduleModel) TableName() string { return "schedules" }

func toDate(d calendar.Date) datatypes.Date {
	return datatypes.Date(d.Time())
}

func toDatePtr(d *calendar.Date) *datatypes.Date {
	if d == nil {
		return nil
	}
	out := toDate(*d)
	return &out
}

func fromDate(d datatypes.Date) calendar.Date {
	return calendar.DateOf(time.Time(d))
}

func fromDatePtr(d *datatypes.Date) *calendar.Date {
	if d == nil {
		return nil
	}
	out := fromDate(*d)
	return &out
}

func toTime(t calendar.TimeOfDay) datatypes.Time {
	return datatypes.NewTime(t.Hour, t.Minute, t.Second, 0)
}

func fromTime(t datatypes.Time) (calendar.TimeOfDay, error) {
	d := time.Duration(t)
	return calendar.NewTimeOfDay(int(d/time.Hour), int(d%time.Hour/time.Minute), int(d%time.Minute/time.Second))
}

func toDateSet(set calendar.DateSet) (datatypes.JSON, error) {
	data, err := set.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func fromDateSet(data datatypes.JSON) (calendar.DateSet, error) {
	var set calendar.DateSet
	if err := set.UnmarshalJSON(data); err != nil {
		return calendar.DateSet{}, err
	}
	return set, nil
}

func newScheduleModel(s scheduler.Schedule) (scheduleModel, error) {
	cancelled, err := toDateSet(s.CancelledDates)
	if err != nil {
		return scheduleModel{}, err
	}
	deleted, err := toDateSet(s.DeletedDates)
	if err != nil {
		return scheduleModel{}, err
	}

	var parentID *string
	if s.ParentID != "" {
		id := s.ParentID
		parentID = &id
	}

	slot := s.Slot()
	return scheduleModel{
		ID:                   s.ID,
		ClassID:              s.ClassID,
		Kind:                 string(s.Kind),
		ParentID:             parentID,
		ReplacesDate:         toDatePtr(s.ReplacesDate),
		DayOfWeek:            s.DayOfWeek.Number(),
		SlotWeekday:          slot.Weekday.Number(),
		StartTime:            toTime(s.StartTime),
		EndTime:              toTime(s.EndTime),
		EffectiveFrom:        toDate(s.EffectiveFrom),
		EffectiveTo:          toDatePtr(s.EffectiveTo),
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
		CancelledDates:       cancelled,
		DeletedDates:         deleted,
		Notes:                s.Notes,
		CreatedAt:            s.CreatedAt.UTC(),
		UpdatedAt:            s.UpdatedAt.UTC(),
	}, nil
}

func (m scheduleModel) schedule() (scheduler.Schedule, error) {
	day, err := calendar.WeekdayFromNumber(m.DayOfWeek)
	if err != nil && m.DayOfWeek != 0 {
		return scheduler.Schedule{}, fmt.Errorf("postgres: schedule %s: %w", m.ID, err)
	}
	start, err := fromTime(m.StartTime)
	if err != nil {
		return scheduler.Schedule{}, fmt.Errorf("postgres: schedule %s start_time: %w", m.ID, err)
	}
	end, err := fromTime(m.EndTime)
	if err != nil {
		return scheduler.Schedule{}, fmt.Errorf("postgres: schedule %s end_time: %w", m.ID, err)
	}
	cancelled, err := fromDateSet(m.CancelledDates)
	if err != nil {
		return scheduler.Schedule{}, fmt.Errorf("postgres: schedule %s cancelled_dates: %w", m.ID, err)
	}
	deleted, err := fromDateSet(m.DeletedDates)
	if err != nil {
		return scheduler.Schedule{}, fmt.Errorf("postgres: schedule %s deleted_dates: %w", m.ID, err)
	}

	var parentID string
	if m.ParentID != nil {
		parentID = *m.ParentID
	}

	return scheduler.Schedule{
		ID:                   m.ID,
		ClassID:              m.ClassID,
		Kind:                 scheduler.Kind(m.Kind),
		ParentID:             parentID,
		ReplacesDate:         fromDatePtr(m.ReplacesDate),
		DayOfWeek:            day,
		StartTime:            start,
		EndTime:              end,
		EffectiveFrom:        fromDate(m.EffectiveFrom),
		EffectiveTo:          fromDatePtr(m.EffectiveTo),
		Location:             scheduler.Location{Room: m.Room, Building: m.Building, Campus: m.Campus},
		SessionType:          scheduler.SessionType(m.SessionType),
		IsActive:             m.IsActive,
		IsOnline:             m.IsOnline,
		MeetingURL:           m.MeetingURL,
		SubstituteLecturerID: m.SubstituteLecturerID,
		CancelledDates:       cancelled,
		DeletedDates:         deleted,
		Notes:                m.Notes,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}, nil
}

func newClassModel(c persistence.Class) classModel {
	return classModel{
		ID:           c.ID,
		Label:        c.Label,
		LecturerID:   c.LecturerID,
		DepartmentID: c.DepartmentID,
		EndsOn:       toDatePtr(c.EndsOn),
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}
}

func (m classModel) class() persistence.Class {
	return persistence.Class{
		ID:           m.ID,
		Label:        m.Label,
		LecturerID:   m.LecturerID,
		DepartmentID: m.DepartmentID,
		EndsOn:       fromDatePtr(m.EndsOn),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func newEnrollmentModel(e persistence.Enrollment) enrollmentModel {
	return enrollmentModel{
		ID:            e.ID,
		ClassID:       e.ClassID,
		StudentID:     e.StudentID,
		TotalSessions: e.TotalSessions,
		CreatedAt:     e.CreatedAt.UTC(),
		UpdatedAt:     e.UpdatedAt.UTC(),
	}
}

func (m enrollmentModel) enrollment() persistence.Enrollment {
	return persistence.Enrollment{
		ID:            m.ID,
		ClassID:       m.ClassID,
		StudentID:     m.StudentID,
		TotalSessions: m.TotalSessions,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
