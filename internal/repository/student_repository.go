package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = "id, code, program, full_name, email, phone, tutor_code, receipt_status, created_at, updated_at"

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Program != "" {
		conditions = append(conditions, fmt.Sprintf("s.program = $%d", len(args)+1))
		args = append(args, filter.Program)
	}
	if filter.Tutor != "" {
		conditions = append(conditions, fmt.Sprintf("s.tutor_code = $%d", len(args)+1))
		args = append(args, filter.Tutor)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.code) LIKE $%d)", len(args)+1, len(args)+1))
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

	query := fmt.Sprintf(`SELECT s.id, s.code, s.program, s.full_name, s.email, s.phone, s.tutor_code, s.receipt_status, s.created_at, s.updated_at
        %s ORDER BY s.code ASC LIMIT %d OFFSET %d`, base, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByCode fetches a student by external code.
func (r *StudentRepository) FindByCode(ctx context.Context, code string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE code = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, code); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListCodes returns student codes, optionally restricted to one program.
func (r *StudentRepository) ListCodes(ctx context.Context, program string) ([]string, error) {
	query := "SELECT code FROM students ORDER BY code"
	args := []interface{}{}
	if program != "" {
		query = "SELECT code FROM students WHERE program = $1 ORDER BY code"
		args = append(args, program)
	}
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, args...); err != nil {
		return nil, fmt.Errorf("list student codes: %w", err)
	}
	return codes, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.ReceiptStatus == "" {
		student.ReceiptStatus = models.ReceiptNone
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, code, program, full_name, email, phone, tutor_code, receipt_status, created_at, updated_at)
        VALUES (:id, :code, :program, :full_name, :email, :phone, :tutor_code, :receipt_status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student keyed by external code.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET program = :program, full_name = :full_name, email = :email, phone = :phone,
        tutor_code = :tutor_code, receipt_status = :receipt_status, updated_at = :updated_at WHERE code = :code`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student by external code.
func (r *StudentRepository) Delete(ctx context.Context, code string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE code = $1", code); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// ClearTutor unsets the weak tutor reference on every student pointing at tutorCode.
func (r *StudentRepository) ClearTutor(ctx context.Context, tutorCode string) error {
	const query = `UPDATE students SET tutor_code = NULL, updated_at = $2 WHERE tutor_code = $1`
	if _, err := r.db.ExecContext(ctx, query, tutorCode, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear tutor reference: %w", err)
	}
	return nil
}
