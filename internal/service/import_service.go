package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/jobs"
)

const importJobType = "snapshot-import"

type importRunStore interface {
	Create(ctx context.Context, run *models.ImportRun) error
	FindByID(ctx context.Context, id string) (*models.ImportRun, error)
	List(ctx context.Context, limit int) ([]models.ImportRun, error)
	MarkRunning(ctx context.Context, id string) error
	Finish(ctx context.Context, id string, status models.ImportStatus, summary json.RawMessage, errMsg *string) error
}

// ImportService parses uploaded snapshots and drives the reconciliation
// engine, either synchronously or through the background queue with an
// import run tracking each job.
type ImportService struct {
	engine  *ReconciliationEngine
	runs    importRunStore
	queue   *jobs.Queue
	metrics *MetricsService
	maxRows int
	logger  *zap.Logger
}

// NewImportService constructs an ImportService and its worker queue. Call
// Start before enqueueing. metrics may be nil.
func NewImportService(engine *ReconciliationEngine, runs importRunStore, metrics *MetricsService, queueCfg jobs.QueueConfig, maxRows int, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	s := &ImportService{
		engine:  engine,
		runs:    runs,
		metrics: metrics,
		maxRows: maxRows,
		logger:  logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue(importJobType, s.handleJob, queueCfg)
	return s
}

// Start launches the background workers.
func (s *ImportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *ImportService) Stop() {
	s.queue.Stop()
}

// Pending reports queued, unstarted imports.
func (s *ImportService) Pending() int {
	return s.queue.Pending()
}

// ParseSnapshot reads a CSV stream into a trimmed header and row maps with
// lower-cased keys. Format problems abort the whole batch.
func (s *ImportService) ParseSnapshot(r io.Reader) ([]string, []map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rawHeader, err := reader.Read()
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrFormat, "snapshot has no header row")
	}
	header := make([]string, len(rawHeader))
	for i, column := range rawHeader {
		header[i] = strings.ToLower(strings.TrimSpace(column))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrFormat, "malformed snapshot row: "+err.Error())
		}
		if len(rows) >= s.maxRows {
			return nil, nil, appErrors.Clone(appErrors.ErrFormat, fmt.Sprintf("snapshot exceeds %d rows", s.maxRows))
		}
		row := make(map[string]string, len(header))
		for i, value := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = strings.TrimSpace(value)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// RunSync applies a snapshot inline and returns its summary.
func (s *ImportService) RunSync(ctx context.Context, input ImportInput) (*models.ImportSummary, error) {
	summary, err := s.engine.Run(ctx, input)
	s.metrics.ObserveImport(input.Entity, summary, err != nil)
	return summary, err
}

// Enqueue registers an import run and hands the snapshot to the workers.
func (s *ImportService) Enqueue(ctx context.Context, input ImportInput) (*models.ImportRun, error) {
	run := &models.ImportRun{
		Entity:      input.Entity,
		Status:      models.ImportPending,
		RequestedBy: input.RequestedBy,
	}
	if input.Program != "" {
		run.Program = &input.Program
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register import run")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: importJobType, Payload: input}); err != nil {
		msg := err.Error()
		if finishErr := s.runs.Finish(ctx, run.ID, models.ImportFailed, nil, &msg); finishErr != nil {
			s.logger.Error("failed to mark import run failed", zap.String("run_id", run.ID), zap.Error(finishErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue import")
	}
	return run, nil
}

// GetRun returns one import run by id.
func (s *ImportService) GetRun(ctx context.Context, id string) (*models.ImportRun, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "import run not found")
	}
	return run, nil
}

// ListRuns returns the most recent import runs.
func (s *ImportService) ListRuns(ctx context.Context, limit int) ([]models.ImportRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list import runs")
	}
	return runs, nil
}

// handleJob runs one queued import. Outcomes are recorded on the run; the
// queue's retry path is not used because the run already carries the
// failure and the engine re-applies cleanly on a manual resubmit.
func (s *ImportService) handleJob(ctx context.Context, job jobs.Job) error {
	input, ok := job.Payload.(ImportInput)
	if !ok {
		s.logger.Error("unexpected import payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.runs.MarkRunning(ctx, job.ID); err != nil {
		s.logger.Error("failed to mark import run running", zap.String("run_id", job.ID), zap.Error(err))
	}

	summary, err := s.engine.Run(ctx, input)
	s.metrics.ObserveImport(input.Entity, summary, err != nil)
	if err != nil {
		msg := appErrors.FromError(err).Message
		if finishErr := s.runs.Finish(ctx, job.ID, models.ImportFailed, nil, &msg); finishErr != nil {
			s.logger.Error("failed to record import failure", zap.String("run_id", job.ID), zap.Error(finishErr))
		}
		return nil
	}

	raw, marshalErr := json.Marshal(summary)
	if marshalErr != nil {
		s.logger.Error("failed to encode import summary", zap.String("run_id", job.ID), zap.Error(marshalErr))
	}
	if err := s.runs.Finish(ctx, job.ID, models.ImportCompleted, raw, nil); err != nil {
		s.logger.Error("failed to record import completion", zap.String("run_id", job.ID), zap.Error(err))
	}
	return nil
}
