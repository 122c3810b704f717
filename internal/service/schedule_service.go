package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type scheduleStore interface {
	FindByStudent(ctx context.Context, studentCode string) (*models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus, comment string) error
	DeleteByStudent(ctx context.Context, studentCode string) error
}

type scheduleCourseStore interface {
	ListByCodes(ctx context.Context, codes []string) ([]models.Course, error)
	Enroll(ctx context.Context, courseCode, studentCode string) error
	Unenroll(ctx context.Context, courseCode, studentCode string) error
}

type scheduleStudentStore interface {
	FindByCode(ctx context.Context, code string) (*models.Student, error)
}

// ScheduleService manages per-student course selections. Enrollment takes
// seats atomically course by course; a submission that cannot complete
// releases every seat it took, so capacity never leaks.
type ScheduleService struct {
	schedules scheduleStore
	courses   scheduleCourseStore
	students  scheduleStudentStore
	locks     *keyedMutex
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(schedules scheduleStore, courses scheduleCourseStore, students scheduleStudentStore, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		schedules: schedules,
		courses:   courses,
		students:  students,
		locks:     newKeyedMutex(),
		logger:    logger,
	}
}

// Get returns a student's schedule.
func (s *ScheduleService) Get(ctx context.Context, studentCode string) (*models.Schedule, error) {
	schedule, err := s.schedules.FindByStudent(ctx, studentCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no schedule for "+studentCode)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

// Submit records a student's course selection, enrolling them in each
// course. The whole submission fails if the student already has a schedule,
// any course is unknown, or any course has no free seats.
func (s *ScheduleService) Submit(ctx context.Context, studentCode string, courseCodes []string) (*models.Schedule, error) {
	release := s.locks.Lock(studentCode)
	defer release()

	if _, err := s.students.FindByCode(ctx, studentCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student "+studentCode+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.schedules.FindByStudent(ctx, studentCode); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student "+studentCode+" already has a schedule")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	courses, err := s.courses.ListByCodes(ctx, courseCodes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	if len(courses) != len(dedupe(courseCodes)) {
		return nil, appErrors.Clone(appErrors.ErrReferenceNotFound, "one or more courses do not exist")
	}

	enrolled := make([]string, 0, len(courses))
	for i := range courses {
		code := courses[i].Code
		if err := s.courses.Enroll(ctx, code, studentCode); err != nil {
			s.rollbackEnrollments(ctx, studentCode, enrolled)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "course "+code+" has no free seats")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
		}
		enrolled = append(enrolled, code)
	}

	schedule := &models.Schedule{
		StudentCode: studentCode,
		CourseCodes: enrolled,
		Status:      models.SchedulePending,
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		s.rollbackEnrollments(ctx, studentCode, enrolled)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save schedule")
	}
	return schedule, nil
}

// Review accepts or rejects a pending schedule. Rejection keeps the seats:
// the student withdraws and resubmits to change their selection.
func (s *ScheduleService) Review(ctx context.Context, studentCode string, accept bool, comment string) (*models.Schedule, error) {
	release := s.locks.Lock(studentCode)
	defer release()

	schedule, err := s.Get(ctx, studentCode)
	if err != nil {
		return nil, err
	}
	status := models.ScheduleRejected
	if accept {
		status = models.ScheduleAccepted
	}
	if err := s.schedules.UpdateStatus(ctx, schedule.ID, status, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	schedule.Status = status
	schedule.Comment = comment
	return schedule, nil
}

// Withdraw destroys a student's schedule and releases every seat it held.
func (s *ScheduleService) Withdraw(ctx context.Context, studentCode string) error {
	release := s.locks.Lock(studentCode)
	defer release()

	schedule, err := s.Get(ctx, studentCode)
	if err != nil {
		return err
	}
	for _, code := range schedule.CourseCodes {
		if err := s.courses.Unenroll(ctx, code, studentCode); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release seat")
		}
	}
	if err := s.schedules.DeleteByStudent(ctx, studentCode); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	return nil
}

func (s *ScheduleService) rollbackEnrollments(ctx context.Context, studentCode string, courseCodes []string) {
	for _, code := range courseCodes {
		if err := s.courses.Unenroll(ctx, code, studentCode); err != nil {
			s.logger.Error("failed to release seat during rollback",
				zap.String("course", code),
				zap.String("student", studentCode),
				zap.Error(err))
		}
	}
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}
