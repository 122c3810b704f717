package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// CourseRepository manages persistence for course records.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = "id, code, program, name, room, group_label, capacity, lab, slots, reduced_parity, instructor_code, enrolled, created_at, updated_at"

// List returns courses matching the provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses c"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Program != "" {
		conditions = append(conditions, fmt.Sprintf("c.program = $%d", len(args)+1))
		args = append(args, filter.Program)
	}
	if filter.Instructor != "" {
		conditions = append(conditions, fmt.Sprintf("c.instructor_code = $%d", len(args)+1))
		args = append(args, filter.Instructor)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.code, c.program, c.name, c.room, c.group_label, c.capacity, c.lab, c.slots,
        c.reduced_parity, c.instructor_code, c.enrolled, c.created_at, c.updated_at
        %s ORDER BY c.code ASC LIMIT %d OFFSET %d`, base, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByCode fetches a course by external code.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE code = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByCodes fetches courses for a set of external codes.
func (r *CourseRepository) ListByCodes(ctx context.Context, codes []string) ([]models.Course, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM courses WHERE code = ANY($1) ORDER BY code", courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, pq.Array(codes)); err != nil {
		return nil, fmt.Errorf("list courses by codes: %w", err)
	}
	return courses, nil
}

// ListByInstructor returns every course taught by the given person.
func (r *CourseRepository) ListByInstructor(ctx context.Context, instructorCode string) ([]models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE instructor_code = $1 ORDER BY code", courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, instructorCode); err != nil {
		return nil, fmt.Errorf("list courses by instructor: %w", err)
	}
	return courses, nil
}

// ListCodes returns course codes, optionally restricted to one program.
func (r *CourseRepository) ListCodes(ctx context.Context, program string) ([]string, error) {
	query := "SELECT code FROM courses ORDER BY code"
	args := []interface{}{}
	if program != "" {
		query = "SELECT code FROM courses WHERE program = $1 ORDER BY code"
		args = append(args, program)
	}
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, args...); err != nil {
		return nil, fmt.Errorf("list course codes: %w", err)
	}
	return codes, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.Enrolled == nil {
		course.Enrolled = pq.StringArray{}
	}
	if course.Slots == nil {
		course.Slots = models.WeekSlots{}
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, program, name, room, group_label, capacity, lab, slots, reduced_parity, instructor_code, enrolled, created_at, updated_at)
        VALUES (:id, :code, :program, :name, :room, :group_label, :capacity, :lab, :slots, :reduced_parity, :instructor_code, :enrolled, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course keyed by external code.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET program = :program, name = :name, room = :room, group_label = :group_label,
        capacity = :capacity, lab = :lab, slots = :slots, reduced_parity = :reduced_parity,
        instructor_code = :instructor_code, updated_at = :updated_at WHERE code = :code`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course by external code.
func (r *CourseRepository) Delete(ctx context.Context, code string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM courses WHERE code = $1", code); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// ClearInstructor unsets the weak instructor reference on courses taught by instructorCode.
func (r *CourseRepository) ClearInstructor(ctx context.Context, instructorCode string) error {
	const query = `UPDATE courses SET instructor_code = NULL, updated_at = $2 WHERE instructor_code = $1`
	if _, err := r.db.ExecContext(ctx, query, instructorCode, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear instructor reference: %w", err)
	}
	return nil
}

// Enroll adds a student to a course, consuming one seat. The guard keeps
// capacity non-negative and the enrollment list duplicate-free; zero rows
// affected means the seat was unavailable or the student already enrolled.
func (r *CourseRepository) Enroll(ctx context.Context, courseCode, studentCode string) error {
	const query = `UPDATE courses SET enrolled = array_append(enrolled, $2), capacity = capacity - 1, updated_at = $3
        WHERE code = $1 AND capacity > 0 AND NOT (enrolled @> ARRAY[$2]::text[])`
	res, err := r.db.ExecContext(ctx, query, courseCode, studentCode, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Unenroll removes a student from a course, releasing the seat when the
// student was actually enrolled.
func (r *CourseRepository) Unenroll(ctx context.Context, courseCode, studentCode string) error {
	const query = `UPDATE courses SET enrolled = array_remove(enrolled, $2), capacity = capacity + 1, updated_at = $3
        WHERE code = $1 AND enrolled @> ARRAY[$2]::text[]`
	if _, err := r.db.ExecContext(ctx, query, courseCode, studentCode, time.Now().UTC()); err != nil {
		return fmt.Errorf("unenroll student: %w", err)
	}
	return nil
}

// UnenrollEverywhere removes the student from every course they appear in,
// releasing the seats. Used when a student record is destroyed.
func (r *CourseRepository) UnenrollEverywhere(ctx context.Context, studentCode string) error {
	const query = `UPDATE courses SET enrolled = array_remove(enrolled, $1), capacity = capacity + 1, updated_at = $2
        WHERE enrolled @> ARRAY[$1]::text[]`
	if _, err := r.db.ExecContext(ctx, query, studentCode, time.Now().UTC()); err != nil {
		return fmt.Errorf("unenroll student everywhere: %w", err)
	}
	return nil
}
