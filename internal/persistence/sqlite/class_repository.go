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
)

type classRow struct {
	ID           string            `db:"id"`
	Label        string            `db:"label"`
	LecturerID   string            `db:"lecturer_id"`
	DepartmentID string            `db:"department_id"`
	EndsOn       calendar.NullDate `db:"ends_on"`
	CreatedAt    string            `db:"created_at"`
	UpdatedAt    string            `db:"updated_at"`
}

func (r classRow) class() (persistence.Class, error) {
	createdAt, err := parseTimestamp("created_at", r.CreatedAt)
	if err != nil {
		return persistence.Class{}, err
	}
	updatedAt, err := parseTimestamp("updated_at", r.UpdatedAt)
	if err != nil {
		return persistence.Class{}, err
	}
	return persistence.Class{
		ID:           r.ID,
		Label:        r.Label,
		LecturerID:   r.LecturerID,
		DepartmentID: r.DepartmentID,
		EndsOn:       r.EndsOn.Ptr(),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

type enrollmentRow struct {
	ID            string `db:"id"`
	ClassID       string `db:"class_id"`
	StudentID     string `db:"student_id"`
	TotalSessions int    `db:"total_sessions"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

// GetClass retrieves a class by ID.
func (s *Store) GetClass(ctx context.Context, id string) (persistence.Class, error) {
	var row classRow
	err := s.pool.DB().GetContext(ctx, &row,
		`SELECT id, label, lecturer_id, department_id, ends_on, created_at, updated_at FROM classes WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Class{}, persistence.ErrNotFound
		}
		return persistence.Class{}, fmt.Errorf("sqlite: get class %s: %w", id, mapError(err))
	}
	return row.class()
}

// ListClasses returns classes matching the filter ordered by ID.
func (s *Store) ListClasses(ctx context.Context, filter persistence.ClassFilter) ([]persistence.Class, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.IDs) > 0 {
		clause, inArgs, err := sqlx.In(`id IN (?)`, filter.IDs)
		if err != nil {
			return nil, fmt.Errorf("sqlite: expand class filter: %w", err)
		}
		where = append(where, clause)
		args = append(args, inArgs...)
	}
	if filter.LecturerID != "" {
		where = append(where, `lecturer_id = ?`)
		args = append(args, filter.LecturerID)
	}
	if filter.DepartmentID != "" {
		where = append(where, `department_id = ?`)
		args = append(args, filter.DepartmentID)
	}
	if filter.StudentID != "" {
		where = append(where, `EXISTS (SELECT 1 FROM enrollments e WHERE e.class_id = classes.id AND e.student_id = ?)`)
		args = append(args, filter.StudentID)
	}

	query := `SELECT id, label, lecturer_id, department_id, ends_on, created_at, updated_at FROM classes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY id`

	var rows []classRow
	if err := s.pool.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: list classes: %w", mapError(err))
	}
	out := make([]persistence.Class, 0, len(rows))
	for _, row := range rows {
		class, err := row.class()
		if err != nil {
			return nil, err
		}
		out = append(out, class)
	}
	return out, nil
}

// UpsertClass stores or replaces a class.
func (s *Store) UpsertClass(ctx context.Context, class persistence.Class) error {
	if class.ID == "" {
		return fmt.Errorf("sqlite: class id is required: %w", persistence.ErrConstraintViolation)
	}
	row := classRow{
		ID:           class.ID,
		Label:        class.Label,
		LecturerID:   class.LecturerID,
		DepartmentID: class.DepartmentID,
		EndsOn:       calendar.NullDateFrom(class.EndsOn),
		CreatedAt:    timestamp(class.CreatedAt),
		UpdatedAt:    timestamp(class.UpdatedAt),
	}
	_, err := s.pool.DB().NamedExecContext(ctx, `
		INSERT INTO classes (id, label, lecturer_id, department_id, ends_on, created_at, updated_at)
		VALUES (:id, :label, :lecturer_id, :department_id, :ends_on, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			label = excluded.label,
			lecturer_id = excluded.lecturer_id,
			department_id = excluded.department_id,
			ends_on = excluded.ends_on,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("sqlite: upsert class %s: %w", class.ID, mapError(err))
	}
	return nil
}

// UpsertEnrollment stores or replaces an enrollment.
func (s *Store) UpsertEnrollment(ctx context.Context, enrollment persistence.Enrollment) error {
	row := enrollmentRow{
		ID:            enrollment.ID,
		ClassID:       enrollment.ClassID,
		StudentID:     enrollment.StudentID,
		TotalSessions: enrollment.TotalSessions,
		CreatedAt:     timestamp(enrollment.CreatedAt),
		UpdatedAt:     timestamp(enrollment.UpdatedAt),
	}
	_, err := s.pool.DB().NamedExecContext(ctx, `
		INSERT INTO enrollments (id, class_id, student_id, total_sessions, created_at, updated_at)
		VALUES (:id, :class_id, :student_id, :total_sessions, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			class_id = excluded.class_id,
			student_id = excluded.student_id,
			total_sessions = excluded.total_sessions,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("sqlite: upsert enrollment %s: %w", enrollment.ID, mapError(err))
	}
	return nil
}

// ListEnrollments returns the enrollments of a class ordered by ID.
func (s *Store) ListEnrollments(ctx context.Context, classID string) ([]persistence.Enrollment, error) {
	var rows []enrollmentRow
	err := s.pool.DB().SelectContext(ctx, &rows, `
		SELECT id, class_id, student_id, total_sessions, created_at, updated_at
		FROM enrollments WHERE class_id = ? ORDER BY id`, classID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list enrollments: %w", mapError(err))
	}

	out := make([]persistence.Enrollment, 0, len(rows))
	for _, row := range rows {
		createdAt, err := parseTimestamp("created_at", row.CreatedAt)
		if err != nil {
			return nil, err
		}
		updatedAt, err := parseTimestamp("updated_at", row.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, persistence.Enrollment{
			ID:            row.ID,
			ClassID:       row.ClassID,
			StudentID:     row.StudentID,
			TotalSessions: row.TotalSessions,
			CreatedAt:     createdAt,
			UpdatedAt:     updatedAt,
		})
	}
	return out, nil
}

// SetTotalSessions overwrites the session count on every enrollment of the class.
func (s *Store) SetTotalSessions(ctx context.Context, classID string, total int) (int64, error) {
	result, err := s.pool.DB().ExecContext(ctx,
		`UPDATE enrollments SET total_sessions = ?, updated_at = ? WHERE class_id = ?`,
		total, timestamp(s.now()), classID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: set total sessions for class %s: %w", classID, mapError(err))
	}
	written, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return written, nil
}
