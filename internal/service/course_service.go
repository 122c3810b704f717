package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
}

// CourseService is the single-entity surface over courses.
type CourseService struct {
	courses  courseStore
	engine   *ReconciliationEngine
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(courses courseStore, engine *ReconciliationEngine, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		courses:  courses,
		engine:   engine,
		validate: validator.New(),
		logger:   logger,
	}
}

// List returns courses matching the filter.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, total, nil
}

// Get returns one course by code.
func (s *CourseService) Get(ctx context.Context, code string) (*models.Course, error) {
	course, err := s.courses.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course "+code+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Upsert creates or updates one course through the engine's row path, so
// the schedule conflict check and instructor mirroring always run.
func (s *CourseService) Upsert(ctx context.Context, req dto.CourseUpsertRequest) (*models.Course, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	row := map[string]string{
		ColCode:       req.Code,
		ColName:       req.Name,
		ColProgram:    req.Program,
		ColRoom:       req.Room,
		ColGroup:      req.Group,
		ColCapacity:   strconv.Itoa(req.Capacity),
		ColLab:        strconv.FormatBool(req.Lab),
		ColReduced:    strconv.FormatBool(req.Reduced),
		ColInstructor: req.Instructor,
	}
	for _, day := range models.Weekdays {
		if slot, ok := req.Slots[day]; ok {
			row[day] = slot
		}
	}
	_, rejection, err := s.engine.UpsertOne(ctx, models.ImportCourses, row)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return nil, appErrors.Clone(appErrors.ErrReferenceNotFound, rejection.Reason)
	}
	return s.Get(ctx, req.Code)
}

// Delete removes one course, detaching it from schedules and its
// instructor's member list.
func (s *CourseService) Delete(ctx context.Context, code string) error {
	if _, err := s.Get(ctx, code); err != nil {
		return err
	}
	return s.engine.DeleteOne(ctx, models.ImportCourses, code, "")
}
