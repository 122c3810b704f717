package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type scheduleFixture struct {
	schedules *fakeScheduleRepo
	courses   *fakeCourseRepo
	students  *fakeStudentRepo
	svc       *ScheduleService
}

func newScheduleFixture(t *testing.T) *scheduleFixture {
	t.Helper()
	schedules := newFakeScheduleRepo()
	courses := newFakeCourseRepo()
	students := newFakeStudentRepo()
	require.NoError(t, students.Create(context.Background(), &models.Student{
		Code: "S3003", FullName: "Iris Chen", Program: "MATH",
	}))
	return &scheduleFixture{
		schedules: schedules,
		courses:   courses,
		students:  students,
		svc:       NewScheduleService(schedules, courses, students, nil),
	}
}

func (f *scheduleFixture) addCourse(t *testing.T, code string, capacity int) {
	t.Helper()
	require.NoError(t, f.courses.Create(context.Background(), &models.Course{
		Code: code, Name: code, Program: "MATH", Capacity: capacity, Slots: models.WeekSlots{},
	}))
}

func TestScheduleSubmitEnrollsAndCreates(t *testing.T) {
	f := newScheduleFixture(t)
	f.addCourse(t, "M0101", 2)
	f.addCourse(t, "M0202", 1)

	schedule, err := f.svc.Submit(context.Background(), "S3003", []string{"M0101", "M0202"})
	require.NoError(t, err)
	require.Equal(t, models.SchedulePending, schedule.Status)
	require.Len(t, schedule.CourseCodes, 2)

	course, err := f.courses.FindByCode(context.Background(), "M0101")
	require.NoError(t, err)
	require.Equal(t, 1, course.Capacity)
	require.Equal(t, []string{"S3003"}, []string(course.Enrolled))
}

func TestScheduleSubmitUnknownStudent(t *testing.T) {
	f := newScheduleFixture(t)

	_, err := f.svc.Submit(context.Background(), "S9999", []string{"M0101"})
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestScheduleSubmitRejectsSecondSchedule(t *testing.T) {
	f := newScheduleFixture(t)
	f.addCourse(t, "M0101", 5)

	_, err := f.svc.Submit(context.Background(), "S3003", []string{"M0101"})
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), "S3003", []string{"M0101"})
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
}

func TestScheduleSubmitUnknownCourse(t *testing.T) {
	f := newScheduleFixture(t)
	f.addCourse(t, "M0101", 5)

	_, err := f.svc.Submit(context.Background(), "S3003", []string{"M0101", "M9999"})
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrReferenceNotFound.Code))

	// Nothing was enrolled.
	course, err := f.courses.FindByCode(context.Background(), "M0101")
	require.NoError(t, err)
	require.Equal(t, 5, course.Capacity)
}

func TestScheduleSubmitFullCourseRollsBackSeats(t *testing.T) {
	f := newScheduleFixture(t)
	f.addCourse(t, "M0101", 5)
	f.addCourse(t, "M0202", 0)

	_, err := f.svc.Submit(context.Background(), "S3003", []string{"M0101", "M0202"})
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	// The seat taken in the first course was released.
	course, err := f.courses.FindByCode(context.Background(), "M0101")
	require.NoError(t, err)
	require.Equal(t, 5, course.Capacity)
	require.Empty(t, course.Enrolled)
	_, err = f.schedules.FindByStudent(context.Background(), "S3003")
	require.Error(t, err)
}

func TestScheduleReview(t *testing.T) {
	f := newScheduleFixture(t)
	f.addCourse(t, "M0101", 5)

	_, err := f.svc.Submit(context.Background(), "S3003", []string{"M0101"})
	require.NoError(t, err)

	schedule, err := f.svc.Review(context.Background(), "S3003", true, "looks fine")
	require.NoError(t, err)
	require.Equal(t, models.ScheduleAccepted, schedule.Status)
	require.Equal(t, "looks fine", schedule.Comment)

	rejected, err := f.svc.Review(context.Background(), "S3003", false, "overloaded")
	require.NoError(t, err)
	require.Equal(t, models.ScheduleRejected, rejected.Status)

	// Rejection keeps the seats until the student withdraws.
	course, err := f.courses.FindByCode(context.Background(), "M0101")
	require.NoError(t, err)
	require.Equal(t, 4, course.Capacity)
}

func TestScheduleWithdrawReleasesSeats(t *testing.T) {
	f := newScheduleFixture(t)
	f.addCourse(t, "M0101", 5)
	f.addCourse(t, "M0202", 5)

	_, err := f.svc.Submit(context.Background(), "S3003", []string{"M0101", "M0202"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Withdraw(context.Background(), "S3003"))

	for _, code := range []string{"M0101", "M0202"} {
		course, err := f.courses.FindByCode(context.Background(), code)
		require.NoError(t, err)
		require.Equal(t, 5, course.Capacity)
		require.Empty(t, course.Enrolled)
	}
	_, err = f.svc.Get(context.Background(), "S3003")
	require.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestScheduleGetNotFound(t *testing.T) {
	f := newScheduleFixture(t)

	_, err := f.svc.Get(context.Background(), "S3003")
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}
