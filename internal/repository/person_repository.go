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

// PersonRepository manages persistence for personnel accounts.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository constructs a PersonRepository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// List returns personnel matching the provided filters.
func (r *PersonRepository) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	base := "FROM persons p"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(p.full_name) LIKE $%d OR LOWER(p.code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(p.roles)", len(args)+1))
		args = append(args, string(filter.Role))
	}
	if filter.Program != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM role_records rr WHERE rr.person_code = p.code AND rr.program = $%d)", len(args)+1))
		args = append(args, filter.Program)
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

	query := fmt.Sprintf(`SELECT p.id, p.code, p.full_name, p.credential, p.roles, p.email, p.phone, p.created_at, p.updated_at
        %s ORDER BY p.code ASC LIMIT %d OFFSET %d`, base, size, offset)

	var persons []models.Person
	if err := r.db.SelectContext(ctx, &persons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list persons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count persons: %w", err)
	}
	return persons, total, nil
}

// FindByCode fetches a person by external code.
func (r *PersonRepository) FindByCode(ctx context.Context, code string) (*models.Person, error) {
	const query = `SELECT id, code, full_name, credential, roles, email, phone, created_at, updated_at
        FROM persons WHERE code = $1`
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, code); err != nil {
		return nil, err
	}
	return &person, nil
}

// ListCodes returns every personnel external code.
func (r *PersonRepository) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, "SELECT code FROM persons ORDER BY code"); err != nil {
		return nil, fmt.Errorf("list person codes: %w", err)
	}
	return codes, nil
}

// ListCodesByProgram returns codes of personnel holding a role record
// affiliated with the given program.
func (r *PersonRepository) ListCodesByProgram(ctx context.Context, program string) ([]string, error) {
	const query = `SELECT DISTINCT p.code FROM persons p
        JOIN role_records rr ON rr.person_code = p.code
        WHERE rr.program = $1 ORDER BY p.code`
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, program); err != nil {
		return nil, fmt.Errorf("list person codes by program: %w", err)
	}
	return codes, nil
}

// Create inserts a new person record.
func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if person.CreatedAt.IsZero() {
		person.CreatedAt = now
	}
	person.UpdatedAt = now
	const query = `INSERT INTO persons (id, code, full_name, credential, roles, email, phone, created_at, updated_at)
        VALUES (:id, :code, :full_name, :credential, :roles, :email, :phone, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// Update modifies an existing person keyed by external code.
func (r *PersonRepository) Update(ctx context.Context, person *models.Person) error {
	person.UpdatedAt = time.Now().UTC()
	const query = `UPDATE persons SET full_name = :full_name, credential = :credential, roles = :roles,
        email = :email, phone = :phone, updated_at = :updated_at WHERE code = :code`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

// Delete removes a person by external code.
func (r *PersonRepository) Delete(ctx context.Context, code string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM persons WHERE code = $1", code); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return nil
}
