package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/jobs"
)

func newExportFixture() (*ExportService, *engineFixture) {
	f := newEngineFixture()
	return NewExportService(f.people, f.roles, f.students, f.courses, f.schedules, nil), f
}

func TestPersonnelCSVOmitsCredential(t *testing.T) {
	svc, f := newExportFixture()
	ctx := context.Background()

	_, err := f.engine.Run(ctx, personnelInput(
		map[string]string{"code": "C1001", "name": "Lena Brandt", "credential": "pw", "program": "MATH", "max_weekly_hours": "20", "receipt_enabled": "true"},
	))
	require.NoError(t, err)

	out, err := svc.PersonnelCSV(ctx, "")
	require.NoError(t, err)
	text := string(out)
	require.Contains(t, text, "C1001")
	require.Contains(t, text, "Lena Brandt")
	require.Contains(t, text, "COORDINATOR")
	require.Contains(t, text, "MATH")
	require.Contains(t, text, "20")
	require.NotContains(t, text, "credential")
	require.NotContains(t, text, "pw")
}

func TestStudentsCSV(t *testing.T) {
	svc, f := newExportFixture()
	ctx := context.Background()

	_, err := f.engine.Run(ctx, personnelInput(
		map[string]string{"code": "A2002", "name": "Omar Haddad", "program": "MATH"},
	))
	require.NoError(t, err)
	_, err = f.engine.Run(ctx, studentsInput(
		map[string]string{"code": "S3003", "name": "Iris Chen", "program": "MATH", "tutor": "A2002", "receipt_status": "PENDING"},
	))
	require.NoError(t, err)

	out, err := svc.StudentsCSV(ctx, "MATH")
	require.NoError(t, err)
	text := string(out)
	require.Contains(t, text, "S3003")
	require.Contains(t, text, "A2002")
	require.Contains(t, text, "PENDING")
}

func TestCoursesCSVExportsInitialCapacity(t *testing.T) {
	svc, f := newExportFixture()
	ctx := context.Background()

	require.NoError(t, f.courses.Create(ctx, &models.Course{
		Code: "M0101", Name: "Algebra", Program: "MATH",
		Capacity: 28, Enrolled: []string{"S3003", "S4004"},
		Slots: models.WeekSlots{"monday": "10:00-12:00"},
	}))

	out, err := svc.CoursesCSV(ctx, "MATH")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], ",30,")
	require.Contains(t, lines[1], "10:00-12:00")
}

func TestSchedulePDF(t *testing.T) {
	svc, f := newExportFixture()
	ctx := context.Background()

	require.NoError(t, f.courses.Create(ctx, &models.Course{
		Code: "M0101", Name: "Algebra", Program: "MATH", Capacity: 30,
		Slots: models.WeekSlots{"monday": "10:00-12:00"},
	}))
	require.NoError(t, f.schedules.Create(ctx, &models.Schedule{
		StudentCode: "S3003", CourseCodes: []string{"M0101"}, Status: models.ScheduleAccepted,
	}))

	out, err := svc.SchedulePDF(ctx, "S3003")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = svc.SchedulePDF(ctx, "S9999")
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

// An exported snapshot fed back through the engine must be a full no-op.
func TestExportImportRoundTrip(t *testing.T) {
	svc, f := newExportFixture()
	ctx := context.Background()
	importSvc := NewImportService(f.engine, newFakeImportRunRepo(), nil, jobs.QueueConfig{}, 0, nil)

	_, err := f.engine.Run(ctx, personnelInput(
		map[string]string{"code": "T1001", "name": "Nadia Petrov", "credential": "pw", "program": "MATH"},
		map[string]string{"code": "A2002", "name": "Omar Haddad", "program": "MATH"},
	))
	require.NoError(t, err)
	_, err = f.engine.Run(ctx, studentsInput(
		map[string]string{"code": "S3003", "name": "Iris Chen", "program": "MATH", "tutor": "A2002"},
	))
	require.NoError(t, err)
	_, err = f.engine.Run(ctx, coursesInput(
		map[string]string{"code": "M0101", "name": "Algebra", "program": "MATH", "capacity": "30", "monday": "10:00-12:00", "instructor": "T1001"},
	))
	require.NoError(t, err)

	exports := []struct {
		entity models.ImportEntity
		render func() ([]byte, error)
	}{
		{models.ImportPersonnel, func() ([]byte, error) { return svc.PersonnelCSV(ctx, "") }},
		{models.ImportStudents, func() ([]byte, error) { return svc.StudentsCSV(ctx, "") }},
		{models.ImportCourses, func() ([]byte, error) { return svc.CoursesCSV(ctx, "") }},
	}
	for _, e := range exports {
		out, err := e.render()
		require.NoError(t, err)
		header, rows, err := importSvc.ParseSnapshot(bytes.NewReader(out))
		require.NoError(t, err)

		summary, err := f.engine.Run(ctx, ImportInput{Entity: e.entity, Header: header, Rows: rows})
		require.NoError(t, err, "entity %s", e.entity)
		require.Zero(t, summary.Created, "entity %s", e.entity)
		require.Zero(t, summary.Updated, "entity %s", e.entity)
		require.Zero(t, summary.Deleted, "entity %s", e.entity)
		require.Empty(t, summary.Rejected, "entity %s", e.entity)
	}
}
