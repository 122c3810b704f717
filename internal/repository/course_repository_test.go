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
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func courseRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "code", "program", "name", "room", "group_label", "capacity", "lab", "slots", "reduced_parity", "instructor_code", "enrolled", "created_at", "updated_at"}).
		AddRow("c-1", "M0101", "MATH", "Algebra", "B12", "A", 28, false, []byte(`{"monday":"10:00-12:00"}`), false, sql.NullString{String: "T1001", Valid: true}, []byte("{S3003,S4004}"), now, now)
}

func TestCourseRepositoryFindByCode(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, program, name, room, group_label")).
		WithArgs("M0101").
		WillReturnRows(courseRows())

	course, err := repo.FindByCode(context.Background(), "M0101")
	require.NoError(t, err)
	assert.Equal(t, "M0101", course.Code)
	assert.Equal(t, "10:00-12:00", course.Slots["monday"])
	assert.Equal(t, "T1001", course.InstructorValue())
	assert.Equal(t, 30, course.InitialCapacity())
}

func TestCourseRepositoryListByInstructor(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE instructor_code = $1 ORDER BY code")).
		WithArgs("T1001").
		WillReturnRows(courseRows())

	courses, err := repo.ListByInstructor(context.Background(), "T1001")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "M0101", courses[0].Code)
}

func TestCourseRepositoryEnroll(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET enrolled = array_append(enrolled, $2)")).
		WithArgs("M0101", "S3003", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Enroll(context.Background(), "M0101", "S3003"))
}

func TestCourseRepositoryEnrollNoSeat(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	// Zero rows affected: full course or already enrolled.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET enrolled = array_append(enrolled, $2)")).
		WithArgs("M0101", "S3003", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Enroll(context.Background(), "M0101", "S3003")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestCourseRepositoryUnenroll(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET enrolled = array_remove(enrolled, $2)")).
		WithArgs("M0101", "S3003", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Unenroll(context.Background(), "M0101", "S3003"))
}

func TestCourseRepositoryListCodesScoped(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT code FROM courses WHERE program = $1")).
		WithArgs("MATH").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("M0101").AddRow("M0202"))

	codes, err := repo.ListCodes(context.Background(), "MATH")
	require.NoError(t, err)
	assert.Equal(t, []string{"M0101", "M0202"}, codes)
}
