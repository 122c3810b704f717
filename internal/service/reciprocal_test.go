package service

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func TestMoveAssignsToHolder(t *testing.T) {
	roles := newFakeRoleRepo()
	require.NoError(t, roles.Create(context.Background(), &models.RoleRecord{
		PersonCode: "A2002", Kind: models.RoleTutor,
	}))
	updater := NewReciprocalReferenceUpdater(roles, nil)

	require.NoError(t, updater.Move(context.Background(), "S3003", models.StudentHolderKinds, "", "A2002"))
	require.True(t, roles.find("A2002", models.RoleTutor).HasMember("S3003"))

	// Idempotent.
	require.NoError(t, updater.Move(context.Background(), "S3003", models.StudentHolderKinds, "A2002", "A2002"))
	require.Len(t, roles.find("A2002", models.RoleTutor).Members, 1)
}

func TestMoveTransfersBetweenHolders(t *testing.T) {
	roles := newFakeRoleRepo()
	require.NoError(t, roles.Create(context.Background(), &models.RoleRecord{
		PersonCode: "A2002", Kind: models.RoleTutor, Members: pq.StringArray{"S3003"},
	}))
	require.NoError(t, roles.Create(context.Background(), &models.RoleRecord{
		PersonCode: "T1001", Kind: models.RoleTeacher,
	}))
	updater := NewReciprocalReferenceUpdater(roles, nil)

	require.NoError(t, updater.Move(context.Background(), "S3003", models.StudentHolderKinds, "A2002", "T1001"))
	require.False(t, roles.find("A2002", models.RoleTutor).HasMember("S3003"))
	require.True(t, roles.find("T1001", models.RoleTeacher).HasMember("S3003"))
}

func TestMoveClearsAssignment(t *testing.T) {
	roles := newFakeRoleRepo()
	require.NoError(t, roles.Create(context.Background(), &models.RoleRecord{
		PersonCode: "A2002", Kind: models.RoleTutor, Members: pq.StringArray{"S3003"},
	}))
	updater := NewReciprocalReferenceUpdater(roles, nil)

	require.NoError(t, updater.Move(context.Background(), "S3003", models.StudentHolderKinds, "A2002", ""))
	require.Empty(t, roles.find("A2002", models.RoleTutor).Members)
}

func TestMovePrefersKindPrecedence(t *testing.T) {
	roles := newFakeRoleRepo()
	require.NoError(t, roles.Create(context.Background(), &models.RoleRecord{
		PersonCode: "T1001", Kind: models.RoleTeacher,
	}))
	require.NoError(t, roles.Create(context.Background(), &models.RoleRecord{
		PersonCode: "T1001", Kind: models.RoleTutor,
	}))
	updater := NewReciprocalReferenceUpdater(roles, nil)

	require.NoError(t, updater.Move(context.Background(), "S3003", models.StudentHolderKinds, "", "T1001"))
	require.True(t, roles.find("T1001", models.RoleTutor).HasMember("S3003"))
	require.False(t, roles.find("T1001", models.RoleTeacher).HasMember("S3003"))
}

func TestMoveWithoutHolderRecord(t *testing.T) {
	roles := newFakeRoleRepo()
	updater := NewReciprocalReferenceUpdater(roles, nil)

	err := updater.Move(context.Background(), "S3003", models.StudentHolderKinds, "", "A2002")
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrReferenceNotFound.Code))
}

func TestMoveNoopWhenBothEmpty(t *testing.T) {
	updater := NewReciprocalReferenceUpdater(newFakeRoleRepo(), nil)
	require.NoError(t, updater.Move(context.Background(), "S3003", models.StudentHolderKinds, "", ""))
}

func TestDetachStripsAllHolders(t *testing.T) {
	roles := newFakeRoleRepo()
	require.NoError(t, roles.Create(context.Background(), &models.RoleRecord{
		PersonCode: "A2002", Kind: models.RoleTutor, Members: pq.StringArray{"S3003", "S4004"},
	}))
	require.NoError(t, roles.Create(context.Background(), &models.RoleRecord{
		PersonCode: "T1001", Kind: models.RoleTeacher, Members: pq.StringArray{"S3003"},
	}))
	updater := NewReciprocalReferenceUpdater(roles, nil)

	require.NoError(t, updater.Detach(context.Background(), "S3003", models.StudentHolderKinds))
	require.Equal(t, []string{"S4004"}, []string(roles.find("A2002", models.RoleTutor).Members))
	require.Empty(t, roles.find("T1001", models.RoleTeacher).Members)
}
