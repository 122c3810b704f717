package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type enginePersonStore interface {
	FindByCode(ctx context.Context, code string) (*models.Person, error)
	ListCodes(ctx context.Context) ([]string, error)
	ListCodesByProgram(ctx context.Context, program string) ([]string, error)
	Create(ctx context.Context, person *models.Person) error
	Update(ctx context.Context, person *models.Person) error
	Delete(ctx context.Context, code string) error
}

type engineStudentStore interface {
	FindByCode(ctx context.Context, code string) (*models.Student, error)
	ListCodes(ctx context.Context, program string) ([]string, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, code string) error
}

type engineCourseStore interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	ListByInstructor(ctx context.Context, instructorCode string) ([]models.Course, error)
	ListCodes(ctx context.Context, program string) ([]string, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, code string) error
	UnenrollEverywhere(ctx context.Context, studentCode string) error
}

type engineRoleStore interface {
	ListByPerson(ctx context.Context, personCode string) ([]models.RoleRecord, error)
	ListProtectedCodes(ctx context.Context) ([]string, error)
	DeleteByPerson(ctx context.Context, personCode string) error
	DeleteByPersonProgram(ctx context.Context, personCode, program string) error
}

type engineScheduleStore interface {
	DeleteByStudent(ctx context.Context, studentCode string) error
	RemoveCourseFromAll(ctx context.Context, courseCode string) error
}

// ImportInput is one parsed snapshot handed to the engine. Rows arrive
// trimmed with lower-cased keys; Program scopes the deletion pass when
// non-empty; RequestedBy is excluded from deletion so a caller cannot
// import themselves out of existence.
type ImportInput struct {
	Entity      models.ImportEntity
	Header      []string
	Rows        []map[string]string
	Program     string
	RequestedBy string
}

// ReconciliationEngine applies a full snapshot against the live record
// graph: header validation, per-row upsert with subtype and reciprocal
// synchronization, then a deletion pass over scoped records absent from
// the snapshot, excluding the protected set. Rows are serialized per
// external code through a keyed mutex pool, so a concurrent CRUD call on
// the same code cannot interleave with the row applying it.
type ReconciliationEngine struct {
	planner    *UpsertPlanner
	roleSync   *RoleSubtypeSynchronizer
	reciprocal *ReciprocalReferenceUpdater
	people     enginePersonStore
	students   engineStudentStore
	courses    engineCourseStore
	roles      engineRoleStore
	schedules  engineScheduleStore
	locks      *keyedMutex
	logger     *zap.Logger
}

// NewReconciliationEngine constructs a ReconciliationEngine.
func NewReconciliationEngine(
	planner *UpsertPlanner,
	roleSync *RoleSubtypeSynchronizer,
	reciprocal *ReciprocalReferenceUpdater,
	people enginePersonStore,
	students engineStudentStore,
	courses engineCourseStore,
	roles engineRoleStore,
	schedules engineScheduleStore,
	logger *zap.Logger,
) *ReconciliationEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationEngine{
		planner:    planner,
		roleSync:   roleSync,
		reciprocal: reciprocal,
		people:     people,
		students:   students,
		courses:    courses,
		roles:      roles,
		schedules:  schedules,
		locks:      newKeyedMutex(),
		logger:     logger,
	}
}

// Run applies one snapshot. A header failure aborts before any write; every
// other failure is row-local, recorded in the summary's rejected list, and
// does not stop the batch. Applying an unchanged snapshot twice yields zero
// creates, updates, and deletes on the second run.
func (e *ReconciliationEngine) Run(ctx context.Context, input ImportInput) (*models.ImportSummary, error) {
	if !models.ValidImportEntity(input.Entity) {
		return nil, appErrors.Clone(appErrors.ErrFormat, "unknown snapshot entity "+string(input.Entity))
	}
	if err := e.planner.ValidateHeader(input.Entity, input.Header); err != nil {
		return nil, err
	}

	summary := &models.ImportSummary{Rejected: []models.RowRejection{}}
	seen := make(map[string]bool, len(input.Rows))

	for _, row := range input.Rows {
		code := field(row, ColCode)
		if code != "" {
			seen[code] = true
		}
		action, rejection, err := e.applyRow(ctx, input, row)
		if err != nil {
			summary.Rejected = append(summary.Rejected, models.RowRejection{Code: code, Reason: appErrors.FromError(err).Message})
			e.logger.Warn("snapshot row rejected",
				zap.String("entity", string(input.Entity)),
				zap.String("code", code),
				zap.Error(err))
			continue
		}
		if rejection != nil {
			summary.Rejected = append(summary.Rejected, *rejection)
		}
		switch action {
		case ActionCreate:
			summary.Created++
		case ActionUpdate:
			summary.Updated++
		case ActionSkip:
			summary.Skipped++
		}
	}

	deleted, err := e.deleteAbsent(ctx, input, seen)
	if err != nil {
		return nil, err
	}
	summary.Deleted = deleted

	e.logger.Info("snapshot reconciled",
		zap.String("entity", string(input.Entity)),
		zap.String("program", input.Program),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("deleted", summary.Deleted),
		zap.Int("rejected", len(summary.Rejected)))
	return summary, nil
}

// UpsertOne applies a single row outside a batch. Single-entity CRUD goes
// through here so a manual edit holds the same invariants as a bulk import.
func (e *ReconciliationEngine) UpsertOne(ctx context.Context, entity models.ImportEntity, row map[string]string) (PlanAction, *models.RowRejection, error) {
	if !models.ValidImportEntity(entity) {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "unknown entity "+string(entity))
	}
	return e.applyRow(ctx, ImportInput{Entity: entity}, row)
}

// DeleteOne removes a single record with the same cascade-unset behavior as
// the deletion pass. Protected personnel codes are refused.
func (e *ReconciliationEngine) DeleteOne(ctx context.Context, entity models.ImportEntity, code, program string) error {
	if !models.ValidImportEntity(entity) {
		return appErrors.Clone(appErrors.ErrValidation, "unknown entity "+string(entity))
	}
	if entity == models.ImportPersonnel {
		protected, err := e.protectedCodes(ctx, ImportInput{Entity: entity})
		if err != nil {
			return err
		}
		if protected[code] {
			return appErrors.Clone(appErrors.ErrForbidden, code+" is a protected account")
		}
	}
	release := e.locks.Lock(code)
	defer release()
	return e.deleteOne(ctx, ImportInput{Entity: entity, Program: program}, code)
}

func (e *ReconciliationEngine) applyRow(ctx context.Context, input ImportInput, row map[string]string) (PlanAction, *models.RowRejection, error) {
	code := field(row, ColCode)
	if code != "" {
		release := e.locks.Lock(code)
		defer release()
	}
	switch input.Entity {
	case models.ImportPersonnel:
		return e.applyPersonRow(ctx, row)
	case models.ImportStudents:
		return e.applyStudentRow(ctx, row)
	default:
		return e.applyCourseRow(ctx, row)
	}
}

// applyPersonRow upserts one personnel row. The coordinator gate runs
// before the Person write; a synchronizer failure after the write
// compensates by deleting the created Person or restoring the prior one,
// so a Person never outlives its backing role records.
func (e *ReconciliationEngine) applyPersonRow(ctx context.Context, row map[string]string) (PlanAction, *models.RowRejection, error) {
	plan, err := e.planner.PlanPerson(ctx, row)
	if err != nil {
		return "", nil, err
	}
	if plan.Person.HasRole(models.RoleCoordinator) {
		if err := e.roleSync.CheckCoordinator(ctx, plan.Person.Code, plan.Program); err != nil {
			return "", nil, err
		}
	}

	switch plan.Action {
	case ActionCreate:
		if err := e.people.Create(ctx, plan.Person); err != nil {
			return "", nil, fmt.Errorf("create person %s: %w", plan.Person.Code, err)
		}
	case ActionUpdate:
		if err := e.people.Update(ctx, plan.Person); err != nil {
			return "", nil, fmt.Errorf("update person %s: %w", plan.Person.Code, err)
		}
	}

	if err := e.roleSync.Sync(ctx, plan.Person, plan.Program, plan.Coordinator); err != nil {
		e.compensatePerson(ctx, plan)
		return "", nil, err
	}
	return plan.Action, nil, nil
}

// compensatePerson undoes the Person write of a row whose role
// synchronization failed.
func (e *ReconciliationEngine) compensatePerson(ctx context.Context, plan *PersonPlan) {
	switch plan.Action {
	case ActionCreate:
		if err := e.roles.DeleteByPerson(ctx, plan.Person.Code); err != nil {
			e.logger.Error("failed to roll back role records", zap.String("code", plan.Person.Code), zap.Error(err))
		}
		if err := e.people.Delete(ctx, plan.Person.Code); err != nil {
			e.logger.Error("failed to roll back person create", zap.String("code", plan.Person.Code), zap.Error(err))
		}
	case ActionUpdate:
		if err := e.people.Update(ctx, plan.Prior); err != nil {
			e.logger.Error("failed to roll back person update", zap.String("code", plan.Person.Code), zap.Error(err))
		}
	}
}

// applyStudentRow upserts one student row and mirrors the tutor reference
// into the holder records. A tutor code that does not resolve leaves the
// reference unset and reports the row without discarding its other fields.
func (e *ReconciliationEngine) applyStudentRow(ctx context.Context, row map[string]string) (PlanAction, *models.RowRejection, error) {
	plan, err := e.planner.PlanStudent(ctx, row)
	if err != nil {
		return "", nil, err
	}

	var rejection *models.RowRejection
	if tutor := plan.Student.TutorValue(); tutor != "" {
		if _, err := e.people.FindByCode(ctx, tutor); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return "", nil, fmt.Errorf("resolve tutor %s: %w", tutor, err)
			}
			plan.Student.TutorCode = nil
			rejection = &models.RowRejection{
				Code:   plan.Student.Code,
				Reason: appErrors.Clone(appErrors.ErrReferenceNotFound, "tutor "+tutor+" not found").Message,
			}
			if plan.Action == ActionSkip && plan.Prior != nil && plan.Prior.TutorValue() != "" {
				plan.Action = ActionUpdate
			}
		}
	}

	switch plan.Action {
	case ActionCreate:
		if err := e.students.Create(ctx, plan.Student); err != nil {
			return "", nil, fmt.Errorf("create student %s: %w", plan.Student.Code, err)
		}
	case ActionUpdate:
		if err := e.students.Update(ctx, plan.Student); err != nil {
			return "", nil, fmt.Errorf("update student %s: %w", plan.Student.Code, err)
		}
	}

	oldTutor := ""
	if plan.Prior != nil {
		oldTutor = plan.Prior.TutorValue()
	}
	newTutor := plan.Student.TutorValue()
	if err := e.reciprocal.Move(ctx, plan.Student.Code, models.StudentHolderKinds, oldTutor, newTutor); err != nil {
		if !appErrors.HasCode(err, appErrors.ErrReferenceNotFound.Code) {
			return "", nil, err
		}
		// The tutor exists but holds no tutor-like record: unset and report.
		plan.Student.TutorCode = nil
		if updErr := e.students.Update(ctx, plan.Student); updErr != nil {
			return "", nil, fmt.Errorf("unset tutor on %s: %w", plan.Student.Code, updErr)
		}
		rejection = &models.RowRejection{Code: plan.Student.Code, Reason: appErrors.FromError(err).Message}
	}
	return plan.Action, rejection, nil
}

// applyCourseRow upserts one course row: instructor resolution, schedule
// conflict check against the instructor's other courses, then the write and
// the reciprocal member move. A conflicting row is rejected whole; the
// earlier course's slots stand.
func (e *ReconciliationEngine) applyCourseRow(ctx context.Context, row map[string]string) (PlanAction, *models.RowRejection, error) {
	plan, err := e.planner.PlanCourse(ctx, row)
	if err != nil {
		return "", nil, err
	}

	var rejection *models.RowRejection
	if instructor := plan.Course.InstructorValue(); instructor != "" {
		if _, err := e.people.FindByCode(ctx, instructor); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return "", nil, fmt.Errorf("resolve instructor %s: %w", instructor, err)
			}
			plan.Course.InstructorCode = nil
			rejection = &models.RowRejection{
				Code:   plan.Course.Code,
				Reason: appErrors.Clone(appErrors.ErrReferenceNotFound, "instructor "+instructor+" not found").Message,
			}
			if plan.Action == ActionSkip && plan.Prior != nil && plan.Prior.InstructorValue() != "" {
				plan.Action = ActionUpdate
			}
		}
	}

	if instructor := plan.Course.InstructorValue(); instructor != "" && len(plan.Course.Slots) > 0 {
		existing, err := e.courses.ListByInstructor(ctx, instructor)
		if err != nil {
			return "", nil, fmt.Errorf("list instructor courses: %w", err)
		}
		if conflict := FirstConflict(plan.Course.Slots, existing, plan.Course.Code); conflict != nil {
			return "", nil, appErrors.Clone(appErrors.ErrScheduleConflict,
				fmt.Sprintf("%s %s already taken by %s", conflict.Weekday, conflict.TimeRange, conflict.CourseCode))
		}
	}

	switch plan.Action {
	case ActionCreate:
		if err := e.courses.Create(ctx, plan.Course); err != nil {
			return "", nil, fmt.Errorf("create course %s: %w", plan.Course.Code, err)
		}
	case ActionUpdate:
		if err := e.courses.Update(ctx, plan.Course); err != nil {
			return "", nil, fmt.Errorf("update course %s: %w", plan.Course.Code, err)
		}
	}

	oldInstructor := ""
	if plan.Prior != nil {
		oldInstructor = plan.Prior.InstructorValue()
	}
	newInstructor := plan.Course.InstructorValue()
	if err := e.reciprocal.Move(ctx, plan.Course.Code, models.CourseHolderKinds, oldInstructor, newInstructor); err != nil {
		if !appErrors.HasCode(err, appErrors.ErrReferenceNotFound.Code) {
			return "", nil, err
		}
		plan.Course.InstructorCode = nil
		if updErr := e.courses.Update(ctx, plan.Course); updErr != nil {
			return "", nil, fmt.Errorf("unset instructor on %s: %w", plan.Course.Code, updErr)
		}
		rejection = &models.RowRejection{Code: plan.Course.Code, Reason: appErrors.FromError(err).Message}
	}
	return plan.Action, rejection, nil
}

// deleteAbsent runs the deletion pass: scoped existing codes, minus the
// snapshot's codes, minus the protected set. Runs on a fresh read after all
// row writes so a record a row just created is never deleted.
func (e *ReconciliationEngine) deleteAbsent(ctx context.Context, input ImportInput, seen map[string]bool) (int, error) {
	existing, err := e.existingCodes(ctx, input)
	if err != nil {
		return 0, err
	}
	protected, err := e.protectedCodes(ctx, input)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, code := range existing {
		if seen[code] || protected[code] {
			continue
		}
		release := e.locks.Lock(code)
		err := e.deleteOne(ctx, input, code)
		release()
		if err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (e *ReconciliationEngine) existingCodes(ctx context.Context, input ImportInput) ([]string, error) {
	switch input.Entity {
	case models.ImportPersonnel:
		if input.Program != "" {
			return e.people.ListCodesByProgram(ctx, input.Program)
		}
		return e.people.ListCodes(ctx)
	case models.ImportStudents:
		return e.students.ListCodes(ctx, input.Program)
	default:
		return e.courses.ListCodes(ctx, input.Program)
	}
}

func (e *ReconciliationEngine) protectedCodes(ctx context.Context, input ImportInput) (map[string]bool, error) {
	protected := map[string]bool{}
	if input.RequestedBy != "" {
		protected[input.RequestedBy] = true
	}
	if input.Entity != models.ImportPersonnel {
		return protected, nil
	}
	codes, err := e.roles.ListProtectedCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list protected codes: %w", err)
	}
	for _, code := range codes {
		protected[code] = true
	}
	return protected, nil
}

func (e *ReconciliationEngine) deleteOne(ctx context.Context, input ImportInput, code string) error {
	switch input.Entity {
	case models.ImportPersonnel:
		return e.deletePerson(ctx, code, input.Program)
	case models.ImportStudents:
		return e.deleteStudent(ctx, code)
	default:
		return e.deleteCourse(ctx, code)
	}
}

// deletePerson removes a personnel record. A program-scoped pass removes
// only that program's role records; the Person itself goes only when no
// role records remain. Weak references held by the removed records'
// members are unset first, never cascaded into deletes.
func (e *ReconciliationEngine) deletePerson(ctx context.Context, code, program string) error {
	records, err := e.roles.ListByPerson(ctx, code)
	if err != nil {
		return fmt.Errorf("list role records for %s: %w", code, err)
	}

	remaining := 0
	for i := range records {
		record := &records[i]
		if program != "" && record.ProgramValue() != program {
			remaining++
			continue
		}
		if err := e.unsetMembers(ctx, record); err != nil {
			return err
		}
	}

	if program != "" {
		if err := e.roles.DeleteByPersonProgram(ctx, code, program); err != nil {
			return fmt.Errorf("delete role records for %s: %w", code, err)
		}
		if remaining > 0 {
			return nil
		}
	} else {
		if err := e.roles.DeleteByPerson(ctx, code); err != nil {
			return fmt.Errorf("delete role records for %s: %w", code, err)
		}
	}
	if err := e.people.Delete(ctx, code); err != nil {
		return fmt.Errorf("delete person %s: %w", code, err)
	}
	return nil
}

// unsetMembers clears the weak references pointing back at a role record
// about to be deleted.
func (e *ReconciliationEngine) unsetMembers(ctx context.Context, record *models.RoleRecord) error {
	for _, member := range record.Members {
		if record.Kind == models.RoleTeacher {
			course, err := e.courses.FindByCode(ctx, member)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return fmt.Errorf("load course %s: %w", member, err)
			}
			course.InstructorCode = nil
			if err := e.courses.Update(ctx, course); err != nil {
				return fmt.Errorf("unset instructor on %s: %w", member, err)
			}
			continue
		}
		student, err := e.students.FindByCode(ctx, member)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return fmt.Errorf("load student %s: %w", member, err)
		}
		student.TutorCode = nil
		if err := e.students.Update(ctx, student); err != nil {
			return fmt.Errorf("unset tutor on %s: %w", member, err)
		}
	}
	return nil
}

// deleteStudent removes a student and rolls back their footprint: holder
// memberships, course enrollments (seats released), and schedule.
func (e *ReconciliationEngine) deleteStudent(ctx context.Context, code string) error {
	if err := e.reciprocal.Detach(ctx, code, models.StudentHolderKinds); err != nil {
		return err
	}
	if err := e.courses.UnenrollEverywhere(ctx, code); err != nil {
		return fmt.Errorf("unenroll %s: %w", code, err)
	}
	if err := e.schedules.DeleteByStudent(ctx, code); err != nil {
		return fmt.Errorf("delete schedule of %s: %w", code, err)
	}
	if err := e.students.Delete(ctx, code); err != nil {
		return fmt.Errorf("delete student %s: %w", code, err)
	}
	return nil
}

// deleteCourse removes a course, detaching it from its instructor's member
// list and from every schedule referencing it.
func (e *ReconciliationEngine) deleteCourse(ctx context.Context, code string) error {
	if err := e.reciprocal.Detach(ctx, code, models.CourseHolderKinds); err != nil {
		return err
	}
	if err := e.schedules.RemoveCourseFromAll(ctx, code); err != nil {
		return fmt.Errorf("detach course %s from schedules: %w", code, err)
	}
	if err := e.courses.Delete(ctx, code); err != nil {
		return fmt.Errorf("delete course %s: %w", code, err)
	}
	return nil
}
