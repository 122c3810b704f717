package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// RoleRecordRepository manages the polymorphic role-subtype records.
type RoleRecordRepository struct {
	db *sqlx.DB
}

// NewRoleRecordRepository constructs a RoleRecordRepository.
func NewRoleRecordRepository(db *sqlx.DB) *RoleRecordRepository {
	return &RoleRecordRepository{db: db}
}

const roleRecordColumns = "id, person_code, kind, program, members, max_weekly_hours, receipt_enabled, created_at, updated_at"

// FindByPersonAndKind fetches the record for one (person, kind) pair.
func (r *RoleRecordRepository) FindByPersonAndKind(ctx context.Context, personCode string, kind models.RoleTag) (*models.RoleRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM role_records WHERE person_code = $1 AND kind = $2", roleRecordColumns)
	var record models.RoleRecord
	if err := r.db.GetContext(ctx, &record, query, personCode, string(kind)); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindCoordinatorByProgram fetches the coordinator record for a program, if any.
func (r *RoleRecordRepository) FindCoordinatorByProgram(ctx context.Context, program string) (*models.RoleRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM role_records WHERE kind = $1 AND program = $2", roleRecordColumns)
	var record models.RoleRecord
	if err := r.db.GetContext(ctx, &record, query, string(models.RoleCoordinator), program); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByPerson returns every role record held by a person.
func (r *RoleRecordRepository) ListByPerson(ctx context.Context, personCode string) ([]models.RoleRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM role_records WHERE person_code = $1 ORDER BY kind", roleRecordColumns)
	var records []models.RoleRecord
	if err := r.db.SelectContext(ctx, &records, query, personCode); err != nil {
		return nil, fmt.Errorf("list role records: %w", err)
	}
	return records, nil
}

// ListByPersonKinds returns a person's records restricted to the given kinds.
func (r *RoleRecordRepository) ListByPersonKinds(ctx context.Context, personCode string, kinds []models.RoleTag) ([]models.RoleRecord, error) {
	tags := make([]string, len(kinds))
	for i, k := range kinds {
		tags[i] = string(k)
	}
	query := fmt.Sprintf("SELECT %s FROM role_records WHERE person_code = $1 AND kind = ANY($2) ORDER BY kind", roleRecordColumns)
	var records []models.RoleRecord
	if err := r.db.SelectContext(ctx, &records, query, personCode, pq.Array(tags)); err != nil {
		return nil, fmt.Errorf("list role records by kinds: %w", err)
	}
	return records, nil
}

// ListHolders returns every record of the given kinds whose member list
// contains memberCode. The holder invariant keeps this to at most one row.
func (r *RoleRecordRepository) ListHolders(ctx context.Context, memberCode string, kinds []models.RoleTag) ([]models.RoleRecord, error) {
	tags := make([]string, len(kinds))
	for i, k := range kinds {
		tags[i] = string(k)
	}
	query := fmt.Sprintf("SELECT %s FROM role_records WHERE kind = ANY($1) AND members @> ARRAY[$2]::text[]", roleRecordColumns)
	var records []models.RoleRecord
	if err := r.db.SelectContext(ctx, &records, query, pq.Array(tags), memberCode); err != nil {
		return nil, fmt.Errorf("list holders: %w", err)
	}
	return records, nil
}

// ListProtectedCodes returns codes that must survive any deletion pass:
// the general coordinator plus coordinators/admins with no program affiliation.
func (r *RoleRecordRepository) ListProtectedCodes(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT person_code FROM role_records
        WHERE kind = $1 OR (kind = ANY($2) AND program IS NULL)
        ORDER BY person_code`
	var codes []string
	scoped := pq.Array([]string{string(models.RoleCoordinator), string(models.RoleAdmin)})
	if err := r.db.SelectContext(ctx, &codes, query, string(models.RoleGeneralCoordinator), scoped); err != nil {
		return nil, fmt.Errorf("list protected codes: %w", err)
	}
	return codes, nil
}

// Create inserts a new role record.
func (r *RoleRecordRepository) Create(ctx context.Context, record *models.RoleRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Members == nil {
		record.Members = pq.StringArray{}
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO role_records (id, person_code, kind, program, members, max_weekly_hours, receipt_enabled, created_at, updated_at)
        VALUES (:id, :person_code, :kind, :program, :members, :max_weekly_hours, :receipt_enabled, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create role record: %w", err)
	}
	return nil
}

// UpdateMembers replaces the member list of a record.
func (r *RoleRecordRepository) UpdateMembers(ctx context.Context, id string, members []string) error {
	const query = `UPDATE role_records SET members = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, pq.Array(members), time.Now().UTC()); err != nil {
		return fmt.Errorf("update role record members: %w", err)
	}
	return nil
}

// UpdateConfig updates the coordinator configuration and program affiliation.
func (r *RoleRecordRepository) UpdateConfig(ctx context.Context, record *models.RoleRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE role_records SET program = :program, max_weekly_hours = :max_weekly_hours,
        receipt_enabled = :receipt_enabled, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("update role record config: %w", err)
	}
	return nil
}

// Delete removes one (person, kind) record.
func (r *RoleRecordRepository) Delete(ctx context.Context, personCode string, kind models.RoleTag) error {
	const query = `DELETE FROM role_records WHERE person_code = $1 AND kind = $2`
	if _, err := r.db.ExecContext(ctx, query, personCode, string(kind)); err != nil {
		return fmt.Errorf("delete role record: %w", err)
	}
	return nil
}

// DeleteByPerson removes every role record held by a person.
func (r *RoleRecordRepository) DeleteByPerson(ctx context.Context, personCode string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM role_records WHERE person_code = $1", personCode); err != nil {
		return fmt.Errorf("delete role records: %w", err)
	}
	return nil
}

// DeleteByPersonProgram removes a person's role records affiliated with one program.
func (r *RoleRecordRepository) DeleteByPersonProgram(ctx context.Context, personCode, program string) error {
	const query = `DELETE FROM role_records WHERE person_code = $1 AND program = $2`
	if _, err := r.db.ExecContext(ctx, query, personCode, program); err != nil {
		return fmt.Errorf("delete role records by program: %w", err)
	}
	return nil
}
