package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type personStore interface {
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error)
	FindByCode(ctx context.Context, code string) (*models.Person, error)
}

type personRoleStore interface {
	ListByPerson(ctx context.Context, personCode string) ([]models.RoleRecord, error)
}

// PersonDetail is a person together with their role records.
type PersonDetail struct {
	Person  models.Person       `json:"person"`
	Records []models.RoleRecord `json:"records"`
}

// PersonService is the single-entity surface over personnel. Writes go
// through the reconciliation engine so manual edits obey the same
// invariants as bulk imports.
type PersonService struct {
	people   personStore
	roles    personRoleStore
	engine   *ReconciliationEngine
	validate *validator.Validate
	logger   *zap.Logger
}

// NewPersonService constructs a PersonService.
func NewPersonService(people personStore, roles personRoleStore, engine *ReconciliationEngine, logger *zap.Logger) *PersonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonService{
		people:   people,
		roles:    roles,
		engine:   engine,
		validate: validator.New(),
		logger:   logger,
	}
}

// List returns personnel matching the filter.
func (s *PersonService) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	persons, total, err := s.people.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list personnel")
	}
	return persons, total, nil
}

// Get returns one person with their role records.
func (s *PersonService) Get(ctx context.Context, code string) (*PersonDetail, error) {
	person, err := s.people.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person "+code+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	records, err := s.roles.ListByPerson(ctx, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list role records")
	}
	return &PersonDetail{Person: *person, Records: records}, nil
}

// Upsert creates or updates one person through the engine's row path.
func (s *PersonService) Upsert(ctx context.Context, req dto.PersonUpsertRequest) (*PersonDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	row := map[string]string{
		ColCode:           req.Code,
		ColName:           req.Name,
		ColCredential:     req.Credential,
		ColRoles:          strings.Join(req.Roles, "|"),
		ColEmail:          req.Email,
		ColPhone:          req.Phone,
		ColProgram:        req.Program,
		ColMaxWeeklyHours: strconv.Itoa(req.MaxWeeklyHours),
		ColReceiptEnabled: strconv.FormatBool(req.ReceiptEnabled),
	}
	if _, _, err := s.engine.UpsertOne(ctx, models.ImportPersonnel, row); err != nil {
		return nil, err
	}
	return s.Get(ctx, req.Code)
}

// Delete removes one person, program-scoped when program is non-empty.
func (s *PersonService) Delete(ctx context.Context, code, program string) error {
	if _, err := s.people.FindByCode(ctx, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "person "+code+" not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return s.engine.DeleteOne(ctx, models.ImportPersonnel, code, program)
}
