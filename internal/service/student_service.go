package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type studentStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByCode(ctx context.Context, code string) (*models.Student, error)
}

// StudentService is the single-entity surface over students.
type StudentService struct {
	students studentStore
	engine   *ReconciliationEngine
	validate *validator.Validate
	logger   *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(students studentStore, engine *ReconciliationEngine, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		students: students,
		engine:   engine,
		validate: validator.New(),
		logger:   logger,
	}
}

// List returns students matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, total, nil
}

// Get returns one student by code.
func (s *StudentService) Get(ctx context.Context, code string) (*models.Student, error) {
	student, err := s.students.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student "+code+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Upsert creates or updates one student through the engine's row path. A
// tutor code that does not resolve leaves the reference unset and is
// reported back as a conflict.
func (s *StudentService) Upsert(ctx context.Context, req dto.StudentUpsertRequest) (*models.Student, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	row := map[string]string{
		ColCode:          req.Code,
		ColName:          req.Name,
		ColProgram:       req.Program,
		ColEmail:         req.Email,
		ColPhone:         req.Phone,
		ColTutor:         req.Tutor,
		ColReceiptStatus: req.ReceiptStatus,
	}
	_, rejection, err := s.engine.UpsertOne(ctx, models.ImportStudents, row)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return nil, appErrors.Clone(appErrors.ErrReferenceNotFound, rejection.Reason)
	}
	return s.Get(ctx, req.Code)
}

// Delete removes one student and rolls back their enrollments.
func (s *StudentService) Delete(ctx context.Context, code string) error {
	if _, err := s.Get(ctx, code); err != nil {
		return err
	}
	return s.engine.DeleteOne(ctx, models.ImportStudents, code, "")
}
