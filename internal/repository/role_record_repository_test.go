package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func newRoleRecordRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func roleRecordRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "person_code", "kind", "program", "members", "max_weekly_hours", "receipt_enabled", "created_at", "updated_at"}).
		AddRow("rr-1", "A2002", "TUTOR", sql.NullString{String: "MATH", Valid: true}, []byte("{S3003}"), 0, false, now, now)
}

func TestRoleRecordRepositoryFindByPersonAndKind(t *testing.T) {
	db, mock, cleanup := newRoleRecordRepoMock(t)
	defer cleanup()
	repo := NewRoleRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE person_code = $1 AND kind = $2")).
		WithArgs("A2002", "TUTOR").
		WillReturnRows(roleRecordRows())

	record, err := repo.FindByPersonAndKind(context.Background(), "A2002", models.RoleTutor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTutor, record.Kind)
	assert.Equal(t, "MATH", record.ProgramValue())
	assert.True(t, record.HasMember("S3003"))
}

func TestRoleRecordRepositoryFindCoordinatorMissing(t *testing.T) {
	db, mock, cleanup := newRoleRecordRepoMock(t)
	defer cleanup()
	repo := NewRoleRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE kind = $1 AND program = $2")).
		WithArgs("COORDINATOR", "PHYS").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindCoordinatorByProgram(context.Background(), "PHYS")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestRoleRecordRepositoryListHolders(t *testing.T) {
	db, mock, cleanup := newRoleRecordRepoMock(t)
	defer cleanup()
	repo := NewRoleRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("members @> ARRAY[$2]::text[]")).
		WithArgs(sqlmock.AnyArg(), "S3003").
		WillReturnRows(roleRecordRows())

	records, err := repo.ListHolders(context.Background(), "S3003", models.StudentHolderKinds)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A2002", records[0].PersonCode)
}

func TestRoleRecordRepositoryListProtectedCodes(t *testing.T) {
	db, mock, cleanup := newRoleRecordRepoMock(t)
	defer cleanup()
	repo := NewRoleRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("kind = $1 OR (kind = ANY($2) AND program IS NULL)")).
		WithArgs("GENERAL_COORDINATOR", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"person_code"}).AddRow("D0001").AddRow("G0001"))

	codes, err := repo.ListProtectedCodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"D0001", "G0001"}, codes)
}

func TestRoleRecordRepositoryUpdateMembers(t *testing.T) {
	db, mock, cleanup := newRoleRecordRepoMock(t)
	defer cleanup()
	repo := NewRoleRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE role_records SET members = $2")).
		WithArgs("rr-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateMembers(context.Background(), "rr-1", []string{"S3003", "S4004"}))
}

func TestRoleRecordRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRoleRecordRepoMock(t)
	defer cleanup()
	repo := NewRoleRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO role_records")).
		WithArgs(sqlmock.AnyArg(), "A2002", "TUTOR", sqlmock.AnyArg(), sqlmock.AnyArg(), 0, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.RoleRecord{PersonCode: "A2002", Kind: models.RoleTutor}
	require.NoError(t, repo.Create(context.Background(), record))
	assert.NotEmpty(t, record.ID)
}

func TestRoleRecordRepositoryDeleteByPersonProgram(t *testing.T) {
	db, mock, cleanup := newRoleRecordRepoMock(t)
	defer cleanup()
	repo := NewRoleRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_records WHERE person_code = $1 AND program = $2")).
		WithArgs("T1001", "MATH").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteByPersonProgram(context.Background(), "T1001", "MATH"))
}
