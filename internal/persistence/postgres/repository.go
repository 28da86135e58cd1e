package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/scheduler"
)

// --- ScheduleRepository implementation ---

// GetSchedule retrieves a committed schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, id string) (scheduler.Schedule, error) {
	return getSchedule(s.db.WithContext(ctx), id)
}

// ListSchedules returns committed schedules matching the filter.
func (s *Store) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]scheduler.Schedule, error) {
	return listSchedules(s.db.WithContext(ctx), filter)
}

type scheduleTx struct {
	db *gorm.DB
}

func (t *scheduleTx) GetSchedule(ctx context.Context, id string) (scheduler.Schedule, error) {
	return getSchedule(t.db.WithContext(ctx), id)
}

func (t *scheduleTx) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]scheduler.Schedule, error) {
	return listSchedules(t.db.WithContext(ctx), filter)
}

// LockSlot takes a transaction scoped advisory lock keyed by the slot.
func (t *scheduleTx) LockSlot(ctx context.Context, slot scheduler.Slot) error {
	err := t.db.WithContext(ctx).Exec(`SELECT pg_advisory_xact_lock(hashtextextended(?, 0))`, "slot:"+slot.Key()).Error
	if err != nil {
		return fmt.Errorf("postgres: lock slot %s: %w", slot.Key(), err)
	}
	return nil
}

func (t *scheduleTx) CreateSchedule(ctx context.Context, schedule scheduler.Schedule) error {
	if schedule.ID == "" {
		return fmt.Errorf("postgres: schedule id is required: %w", persistence.ErrConstraintViolation)
	}
	model, err := newScheduleModel(schedule)
	if err != nil {
		return fmt.Errorf("postgres: encode schedule %s: %w", schedule.ID, err)
	}
	if err := t.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return fmt.Errorf("postgres: create schedule %s: %w", schedule.ID, mapError(err))
	}
	return nil
}

func (t *scheduleTx) UpdateSchedule(ctx context.Context, schedule scheduler.Schedule) error {
	model, err := newScheduleModel(schedule)
	if err != nil {
		return fmt.Errorf("postgres: encode schedule %s: %w", schedule.ID, err)
	}
	// Select("*") writes zero values such as is_active=false.
	result := t.db.WithContext(ctx).Model(&scheduleModel{ID: schedule.ID}).
		Omit(clause.Associations, "created_at").
		Select("*").
		Updates(&model)
	if result.Error != nil {
		return fmt.Errorf("postgres: update schedule %s: %w", schedule.ID, mapError(result.Error))
	}
	if result.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (t *scheduleTx) DeleteSchedule(ctx context.Context, id string) error {
	result := t.db.WithContext(ctx).Delete(&scheduleModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("postgres: delete schedule %s: %w", id, mapError(result.Error))
	}
	if result.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func getSchedule(db *gorm.DB, id string) (scheduler.Schedule, error) {
	var model scheduleModel
	if err := db.Where("id = ?", id).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return scheduler.Schedule{}, persistence.ErrNotFound
		}
		return scheduler.Schedule{}, fmt.Errorf("postgres: get schedule %s: %w", id, mapError(err))
	}
	return model.schedule()
}

func listSchedules(db *gorm.DB, filter persistence.ScheduleFilter) ([]scheduler.Schedule, error) {
	if filter.MatchesNothing() {
		return []scheduler.Schedule{}, nil
	}

	query := db.Model(&scheduleModel{})
	if len(filter.ClassIDs) > 0 {
		query = query.Where("class_id IN ?", filter.ClassIDs)
	}
	if filter.ParentID != "" {
		query = query.Where("parent_id = ?", filter.ParentID)
	}
	if len(filter.ParentIDs) > 0 {
		query = query.Where("parent_id IN ?", filter.ParentIDs)
	}
	if filter.SubstituteLecturerID != "" {
		query = query.Where("substitute_lecturer_id = ?", filter.SubstituteLecturerID)
	}
	if filter.Slot != nil {
		query = query.Where("room_key = ? AND building_key = ? AND slot_weekday = ?",
			filter.Slot.Room, filter.Slot.Building, filter.Slot.Weekday.Number())
	}
	if filter.ActiveOnly {
		query = query.Where("is_active")
	}
	if filter.OverlapsTo != nil {
		query = query.Where("effective_from <= ?", toDate(*filter.OverlapsTo))
	}
	if filter.OverlapsFrom != nil {
		query = query.Where("COALESCE(CASE WHEN kind = 'recurring' THEN effective_to ELSE effective_from END, 'infinity'::date) >= ?",
			toDate(*filter.OverlapsFrom))
	}

	var models []scheduleModel
	if err := query.Order("effective_from, start_time, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("postgres: list schedules: %w", mapError(err))
	}

	out := make([]scheduler.Schedule, 0, len(models))
	for _, model := range models {
		schedule, err := model.schedule()
		if err != nil {
			return nil, err
		}
		out = append(out, schedule)
	}
	return out, nil
}

// --- ClassRepository implementation ---

// GetClass retrieves a class by ID.
func (s *Store) GetClass(ctx context.Context, id string) (persistence.Class, error) {
	var model classModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return persistence.Class{}, persistence.ErrNotFound
		}
		return persistence.Class{}, fmt.Errorf("postgres: get class %s: %w", id, mapError(err))
	}
	return model.class(), nil
}

// ListClasses returns classes matching the filter ordered by ID.
func (s *Store) ListClasses(ctx context.Context, filter persistence.ClassFilter) ([]persistence.Class, error) {
	query := s.db.WithContext(ctx).Model(&classModel{})
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.LecturerID != "" {
		query = query.Where("lecturer_id = ?", filter.LecturerID)
	}
	if filter.DepartmentID != "" {
		query = query.Where("department_id = ?", filter.DepartmentID)
	}
	if filter.StudentID != "" {
		query = query.Where("EXISTS (SELECT 1 FROM enrollments e WHERE e.class_id = classes.id AND e.student_id = ?)", filter.StudentID)
	}

	var models []classModel
	if err := query.Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("postgres: list classes: %w", mapError(err))
	}
	out := make([]persistence.Class, 0, len(models))
	for _, model := range models {
		out = append(out, model.class())
	}
	return out, nil
}

// UpsertClass stores or replaces a class.
func (s *Store) UpsertClass(ctx context.Context, class persistence.Class) error {
	if class.ID == "" {
		return fmt.Errorf("postgres: class id is required: %w", persistence.ErrConstraintViolation)
	}
	model := newClassModel(class)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"label", "lecturer_id", "department_id", "ends_on", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("postgres: upsert class %s: %w", class.ID, mapError(err))
	}
	return nil
}

// --- EnrollmentRepository implementation ---

// UpsertEnrollment stores or replaces an enrollment.
func (s *Store) UpsertEnrollment(ctx context.Context, enrollment persistence.Enrollment) error {
	model := newEnrollmentModel(enrollment)
	err := s.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"class_id", "student_id", "total_sessions", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("postgres: upsert enrollment %s: %w", enrollment.ID, mapError(err))
	}
	return nil
}

// ListEnrollments returns the enrollments of a class ordered by ID.
func (s *Store) ListEnrollments(ctx context.Context, classID string) ([]persistence.Enrollment, error) {
	var models []enrollmentModel
	if err := s.db.WithContext(ctx).Where("class_id = ?", classID).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("postgres: list enrollments: %w", mapError(err))
	}
	out := make([]persistence.Enrollment, 0, len(models))
	for _, model := range models {
		out = append(out, model.enrollment())
	}
	return out, nil
}

// SetTotalSessions overwrites the session count on every enrollment of the class.
func (s *Store) SetTotalSessions(ctx context.Context, classID string, total int) (int64, error) {
	result := s.db.WithContext(ctx).Model(&enrollmentModel{}).
		Where("class_id = ?", classID).
		Updates(map[string]any{"total_sessions": total, "updated_at": s.now().UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("postgres: set total sessions for class %s: %w", classID, mapError(result.Error))
	}
	return result.RowsAffected, nil
}
