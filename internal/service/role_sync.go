package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type roleSyncStore interface {
	FindByPersonAndKind(ctx context.Context, personCode string, kind models.RoleTag) (*models.RoleRecord, error)
	FindCoordinatorByProgram(ctx context.Context, program string) (*models.RoleRecord, error)
	Create(ctx context.Context, record *models.RoleRecord) error
	UpdateConfig(ctx context.Context, record *models.RoleRecord) error
	Delete(ctx context.Context, personCode string, kind models.RoleTag) error
}

// CoordinatorConfig carries the scalar configuration of a coordinator record.
type CoordinatorConfig struct {
	MaxWeeklyHours int
	ReceiptEnabled bool
}

// RoleSubtypeSynchronizer keeps a person's role records in lockstep with
// their role set. It only ever adds or updates records implied by the role
// set; shrinking the set never discards a record implicitly, because the
// member lists are shared bookkeeping with students and courses.
type RoleSubtypeSynchronizer struct {
	records roleSyncStore
	logger  *zap.Logger
}

// NewRoleSubtypeSynchronizer constructs a RoleSubtypeSynchronizer.
func NewRoleSubtypeSynchronizer(records roleSyncStore, logger *zap.Logger) *RoleSubtypeSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleSubtypeSynchronizer{records: records, logger: logger}
}

// CheckCoordinator enforces the one-coordinator-per-program invariant.
// A program may already be held by personCode itself; any other holder
// fails the check.
func (s *RoleSubtypeSynchronizer) CheckCoordinator(ctx context.Context, personCode, program string) error {
	if program == "" {
		return nil
	}
	existing, err := s.records.FindCoordinatorByProgram(ctx, program)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check coordinator uniqueness")
	}
	if existing.PersonCode != personCode {
		return appErrors.Clone(appErrors.ErrDuplicateCoordinator, "program "+program+" already coordinated by "+existing.PersonCode)
	}
	return nil
}

// Sync ensures a role record exists for every role in the person's role set.
// program supplies the affiliation for program-scoped kinds; coord supplies
// the coordinator scalar configuration.
func (s *RoleSubtypeSynchronizer) Sync(ctx context.Context, person *models.Person, program string, coord CoordinatorConfig) error {
	for _, kind := range person.RoleSet() {
		if !models.ValidRole(kind) {
			return appErrors.Clone(appErrors.ErrRowValidation, "unknown role tag "+string(kind))
		}
		if kind == models.RoleCoordinator {
			if err := s.CheckCoordinator(ctx, person.Code, program); err != nil {
				return err
			}
		}

		existing, err := s.records.FindByPersonAndKind(ctx, person.Code, kind)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load role record")
			}
			record := &models.RoleRecord{
				PersonCode: person.Code,
				Kind:       kind,
			}
			if affiliation := programFor(kind, program); affiliation != "" {
				record.Program = &affiliation
			}
			if kind == models.RoleCoordinator {
				record.MaxWeeklyHours = coord.MaxWeeklyHours
				record.ReceiptEnabled = coord.ReceiptEnabled
			}
			if err := s.records.Create(ctx, record); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create role record")
			}
			continue
		}

		if kind != models.RoleCoordinator {
			continue
		}
		if coordinatorChanged(existing, program, coord) {
			if existing.ProgramValue() != program {
				if err := s.CheckCoordinator(ctx, person.Code, program); err != nil {
					return err
				}
			}
			if program != "" {
				existing.Program = &program
			} else {
				existing.Program = nil
			}
			existing.MaxWeeklyHours = coord.MaxWeeklyHours
			existing.ReceiptEnabled = coord.ReceiptEnabled
			if err := s.records.UpdateConfig(ctx, existing); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update coordinator record")
			}
		}
	}
	return nil
}

// Remove deletes one role record after confirming its member list is empty.
// Non-empty records would orphan reciprocal pointers and must be detached
// through the reciprocal updater first.
func (s *RoleSubtypeSynchronizer) Remove(ctx context.Context, personCode string, kind models.RoleTag) error {
	record, err := s.records.FindByPersonAndKind(ctx, personCode, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load role record")
	}
	if len(record.Members) > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "role record still holds members")
	}
	if err := s.records.Delete(ctx, personCode, kind); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete role record")
	}
	return nil
}

// programFor returns the affiliation to persist for a role kind. The
// general variants are never program-scoped.
func programFor(kind models.RoleTag, program string) string {
	switch kind {
	case models.RoleGeneralCoordinator, models.RoleGeneralAdmin:
		return ""
	default:
		return program
	}
}

func coordinatorChanged(record *models.RoleRecord, program string, coord CoordinatorConfig) bool {
	return record.ProgramValue() != program ||
		record.MaxWeeklyHours != coord.MaxWeeklyHours ||
		record.ReceiptEnabled != coord.ReceiptEnabled
}
