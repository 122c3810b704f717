package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type holderStore interface {
	ListByPersonKinds(ctx context.Context, personCode string, kinds []models.RoleTag) ([]models.RoleRecord, error)
	ListHolders(ctx context.Context, memberCode string, kinds []models.RoleTag) ([]models.RoleRecord, error)
	UpdateMembers(ctx context.Context, id string, members []string) error
}

// ReciprocalReferenceUpdater keeps role-record member lists consistent with
// the forward pointers stored on students and courses. A member code appears
// in at most one holder's records per kind family, and membership updates
// are idempotent.
type ReciprocalReferenceUpdater struct {
	records holderStore
	logger  *zap.Logger
}

// NewReciprocalReferenceUpdater constructs a ReciprocalReferenceUpdater.
func NewReciprocalReferenceUpdater(records holderStore, logger *zap.Logger) *ReciprocalReferenceUpdater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReciprocalReferenceUpdater{records: records, logger: logger}
}

// Move transfers memberCode from oldPerson's records to newPerson's within
// the given kind family. Empty oldPerson means the member was previously
// unassigned; empty newPerson clears the assignment. When both sides name
// the same person the call only ensures the membership is present.
func (u *ReciprocalReferenceUpdater) Move(ctx context.Context, memberCode string, kinds []models.RoleTag, oldPerson, newPerson string) error {
	if oldPerson == newPerson {
		if newPerson == "" {
			return nil
		}
		return u.ensureMember(ctx, memberCode, kinds, newPerson)
	}
	if oldPerson != "" {
		if err := u.removeMember(ctx, memberCode, kinds, oldPerson); err != nil {
			return err
		}
	}
	if newPerson != "" {
		return u.ensureMember(ctx, memberCode, kinds, newPerson)
	}
	return nil
}

// Detach strips memberCode from every holder record in the kind family,
// regardless of who holds it. Used when the member itself is deleted, so
// drifted state cannot leave a dangling membership behind.
func (u *ReciprocalReferenceUpdater) Detach(ctx context.Context, memberCode string, kinds []models.RoleTag) error {
	holders, err := u.records.ListHolders(ctx, memberCode, kinds)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holder records")
	}
	for i := range holders {
		record := &holders[i]
		if record.RemoveMember(memberCode) {
			if err := u.records.UpdateMembers(ctx, record.ID, record.Members); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update member list")
			}
		}
	}
	return nil
}

// ensureMember adds memberCode to exactly one of personCode's records in the
// kind family, preferring the earliest kind present. A person without any
// record in the family cannot hold members.
func (u *ReciprocalReferenceUpdater) ensureMember(ctx context.Context, memberCode string, kinds []models.RoleTag, personCode string) error {
	records, err := u.records.ListByPersonKinds(ctx, personCode, kinds)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list role records")
	}
	if len(records) == 0 {
		return appErrors.Clone(appErrors.ErrReferenceNotFound, personCode+" holds no matching role record")
	}
	for i := range records {
		if records[i].HasMember(memberCode) {
			return nil
		}
	}
	target := pickHolder(records, kinds)
	target.AddMember(memberCode)
	if err := u.records.UpdateMembers(ctx, target.ID, target.Members); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update member list")
	}
	return nil
}

func (u *ReciprocalReferenceUpdater) removeMember(ctx context.Context, memberCode string, kinds []models.RoleTag, personCode string) error {
	records, err := u.records.ListByPersonKinds(ctx, personCode, kinds)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list role records")
	}
	for i := range records {
		record := &records[i]
		if record.RemoveMember(memberCode) {
			if err := u.records.UpdateMembers(ctx, record.ID, record.Members); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update member list")
			}
		}
	}
	return nil
}

// pickHolder returns the record whose kind comes first in the family's
// precedence order.
func pickHolder(records []models.RoleRecord, kinds []models.RoleTag) *models.RoleRecord {
	for _, kind := range kinds {
		for i := range records {
			if records[i].Kind == kind {
				return &records[i]
			}
		}
	}
	return &records[0]
}
