package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// ScheduleRepository manages persistence for student schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = "id, student_code, course_codes, status, comment, created_at, updated_at"

// FindByStudent fetches the schedule submitted by one student.
func (r *ScheduleRepository) FindByStudent(ctx context.Context, studentCode string) (*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE student_code = $1", scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, studentCode); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// Create inserts a new schedule.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.SchedulePending
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	const query = `INSERT INTO schedules (id, student_code, course_codes, status, comment, created_at, updated_at)
        VALUES (:id, :student_code, :course_codes, :status, :comment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// UpdateStatus records the review outcome for a schedule.
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus, comment string) error {
	const query = `UPDATE schedules SET status = $2, comment = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, string(status), comment, time.Now().UTC()); err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	return nil
}

// DeleteByStudent removes a student's schedule.
func (r *ScheduleRepository) DeleteByStudent(ctx context.Context, studentCode string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE student_code = $1", studentCode); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// RemoveCourseFromAll drops a course reference from every schedule holding it.
func (r *ScheduleRepository) RemoveCourseFromAll(ctx context.Context, courseCode string) error {
	const query = `UPDATE schedules SET course_codes = array_remove(course_codes, $1), updated_at = $2
        WHERE course_codes @> ARRAY[$1]::text[]`
	if _, err := r.db.ExecContext(ctx, query, courseCode, time.Now().UTC()); err != nil {
		return fmt.Errorf("remove course from schedules: %w", err)
	}
	return nil
}
