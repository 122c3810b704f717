package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// ImportRunRepository tracks asynchronous snapshot import runs.
type ImportRunRepository struct {
	db *sqlx.DB
}

// NewImportRunRepository constructs an ImportRunRepository.
func NewImportRunRepository(db *sqlx.DB) *ImportRunRepository {
	return &ImportRunRepository{db: db}
}

const importRunColumns = "id, entity, program, status, summary, error, requested_by, created_at, updated_at"

// Create inserts a new pending import run.
func (r *ImportRunRepository) Create(ctx context.Context, run *models.ImportRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.ImportPending
	}
	if len(run.Summary) == 0 {
		run.Summary = json.RawMessage("{}")
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	const query = `INSERT INTO import_runs (id, entity, program, status, summary, error, requested_by, created_at, updated_at)
        VALUES (:id, :entity, :program, :status, :summary, :error, :requested_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create import run: %w", err)
	}
	return nil
}

// FindByID fetches an import run.
func (r *ImportRunRepository) FindByID(ctx context.Context, id string) (*models.ImportRun, error) {
	query := fmt.Sprintf("SELECT %s FROM import_runs WHERE id = $1", importRunColumns)
	var run models.ImportRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns recent import runs, newest first.
func (r *ImportRunRepository) List(ctx context.Context, limit int) ([]models.ImportRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM import_runs ORDER BY created_at DESC LIMIT %d", importRunColumns, limit)
	var runs []models.ImportRun
	if err := r.db.SelectContext(ctx, &runs, query); err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	return runs, nil
}

// MarkRunning transitions a pending run to RUNNING.
func (r *ImportRunRepository) MarkRunning(ctx context.Context, id string) error {
	const query = `UPDATE import_runs SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, string(models.ImportRunning), time.Now().UTC()); err != nil {
		return fmt.Errorf("mark import run running: %w", err)
	}
	return nil
}

// Finish records the terminal state and summary of a run.
func (r *ImportRunRepository) Finish(ctx context.Context, id string, status models.ImportStatus, summary json.RawMessage, errMsg *string) error {
	if len(summary) == 0 {
		summary = json.RawMessage("{}")
	}
	const query = `UPDATE import_runs SET status = $2, summary = $3, error = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, string(status), []byte(summary), errMsg, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish import run: %w", err)
	}
	return nil
}
