package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// In-memory stores backing the service tests. They mimic the repository
// contracts, including sql.ErrNoRows on missing records.

type fakePersonRepo struct {
	persons map[string]*models.Person
	roles   *fakeRoleRepo
}

func newFakePersonRepo(roles *fakeRoleRepo) *fakePersonRepo {
	return &fakePersonRepo{persons: map[string]*models.Person{}, roles: roles}
}

func (r *fakePersonRepo) FindByCode(ctx context.Context, code string) (*models.Person, error) {
	person, ok := r.persons[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *person
	clone.Roles = append(pq.StringArray(nil), person.Roles...)
	return &clone, nil
}

func (r *fakePersonRepo) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	var out []models.Person
	for _, code := range r.sortedCodes() {
		out = append(out, *r.persons[code])
	}
	return out, len(out), nil
}

func (r *fakePersonRepo) ListCodes(ctx context.Context) ([]string, error) {
	return r.sortedCodes(), nil
}

func (r *fakePersonRepo) ListCodesByProgram(ctx context.Context, program string) ([]string, error) {
	seen := map[string]bool{}
	var codes []string
	for _, record := range r.roles.records {
		if record.ProgramValue() == program && !seen[record.PersonCode] {
			seen[record.PersonCode] = true
			codes = append(codes, record.PersonCode)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (r *fakePersonRepo) Create(ctx context.Context, person *models.Person) error {
	if _, exists := r.persons[person.Code]; exists {
		return fmt.Errorf("duplicate person %s", person.Code)
	}
	person.ID = fmt.Sprintf("p-%d", len(r.persons)+1)
	clone := *person
	r.persons[person.Code] = &clone
	return nil
}

func (r *fakePersonRepo) Update(ctx context.Context, person *models.Person) error {
	if _, exists := r.persons[person.Code]; !exists {
		return sql.ErrNoRows
	}
	clone := *person
	r.persons[person.Code] = &clone
	return nil
}

func (r *fakePersonRepo) Delete(ctx context.Context, code string) error {
	delete(r.persons, code)
	return nil
}

func (r *fakePersonRepo) sortedCodes() []string {
	codes := make([]string, 0, len(r.persons))
	for code := range r.persons {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

type fakeRoleRepo struct {
	records []*models.RoleRecord
	nextID  int
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{}
}

func (r *fakeRoleRepo) FindByPersonAndKind(ctx context.Context, personCode string, kind models.RoleTag) (*models.RoleRecord, error) {
	for _, record := range r.records {
		if record.PersonCode == personCode && record.Kind == kind {
			clone := *record
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeRoleRepo) FindCoordinatorByProgram(ctx context.Context, program string) (*models.RoleRecord, error) {
	for _, record := range r.records {
		if record.Kind == models.RoleCoordinator && record.ProgramValue() == program {
			clone := *record
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeRoleRepo) ListByPerson(ctx context.Context, personCode string) ([]models.RoleRecord, error) {
	var out []models.RoleRecord
	for _, record := range r.records {
		if record.PersonCode == personCode {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) ListByPersonKinds(ctx context.Context, personCode string, kinds []models.RoleTag) ([]models.RoleRecord, error) {
	var out []models.RoleRecord
	for _, record := range r.records {
		if record.PersonCode != personCode {
			continue
		}
		for _, kind := range kinds {
			if record.Kind == kind {
				out = append(out, *record)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) ListHolders(ctx context.Context, memberCode string, kinds []models.RoleTag) ([]models.RoleRecord, error) {
	var out []models.RoleRecord
	for _, record := range r.records {
		if !record.HasMember(memberCode) {
			continue
		}
		for _, kind := range kinds {
			if record.Kind == kind {
				out = append(out, *record)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) ListProtectedCodes(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var codes []string
	for _, record := range r.records {
		protected := record.Kind == models.RoleGeneralCoordinator ||
			((record.Kind == models.RoleCoordinator || record.Kind == models.RoleAdmin) && record.Program == nil)
		if protected && !seen[record.PersonCode] {
			seen[record.PersonCode] = true
			codes = append(codes, record.PersonCode)
		}
	}
	return codes, nil
}

func (r *fakeRoleRepo) Create(ctx context.Context, record *models.RoleRecord) error {
	r.nextID++
	record.ID = fmt.Sprintf("rr-%d", r.nextID)
	clone := *record
	r.records = append(r.records, &clone)
	return nil
}

func (r *fakeRoleRepo) UpdateMembers(ctx context.Context, id string, members []string) error {
	for _, record := range r.records {
		if record.ID == id {
			record.Members = append(pq.StringArray(nil), members...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeRoleRepo) UpdateConfig(ctx context.Context, record *models.RoleRecord) error {
	for _, existing := range r.records {
		if existing.ID == record.ID {
			existing.Program = record.Program
			existing.MaxWeeklyHours = record.MaxWeeklyHours
			existing.ReceiptEnabled = record.ReceiptEnabled
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeRoleRepo) Delete(ctx context.Context, personCode string, kind models.RoleTag) error {
	r.filter(func(record *models.RoleRecord) bool {
		return record.PersonCode != personCode || record.Kind != kind
	})
	return nil
}

func (r *fakeRoleRepo) DeleteByPerson(ctx context.Context, personCode string) error {
	r.filter(func(record *models.RoleRecord) bool {
		return record.PersonCode != personCode
	})
	return nil
}

func (r *fakeRoleRepo) DeleteByPersonProgram(ctx context.Context, personCode, program string) error {
	r.filter(func(record *models.RoleRecord) bool {
		return record.PersonCode != personCode || record.ProgramValue() != program
	})
	return nil
}

func (r *fakeRoleRepo) filter(keep func(*models.RoleRecord) bool) {
	var kept []*models.RoleRecord
	for _, record := range r.records {
		if keep(record) {
			kept = append(kept, record)
		}
	}
	r.records = kept
}

func (r *fakeRoleRepo) find(personCode string, kind models.RoleTag) *models.RoleRecord {
	for _, record := range r.records {
		if record.PersonCode == personCode && record.Kind == kind {
			return record
		}
	}
	return nil
}

type fakeStudentRepo struct {
	students map[string]*models.Student
}

func newFakeStudentRepo() *fakeStudentRepo {
	return &fakeStudentRepo{students: map[string]*models.Student{}}
}

func (r *fakeStudentRepo) FindByCode(ctx context.Context, code string) (*models.Student, error) {
	student, ok := r.students[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *student
	return &clone, nil
}

func (r *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, code := range r.sortedCodes() {
		student := r.students[code]
		if filter.Program != "" && student.Program != filter.Program {
			continue
		}
		out = append(out, *student)
	}
	return out, len(out), nil
}

func (r *fakeStudentRepo) ListCodes(ctx context.Context, program string) ([]string, error) {
	var codes []string
	for _, code := range r.sortedCodes() {
		if program == "" || r.students[code].Program == program {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

func (r *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = fmt.Sprintf("s-%d", len(r.students)+1)
	clone := *student
	r.students[student.Code] = &clone
	return nil
}

func (r *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if _, exists := r.students[student.Code]; !exists {
		return sql.ErrNoRows
	}
	clone := *student
	r.students[student.Code] = &clone
	return nil
}

func (r *fakeStudentRepo) Delete(ctx context.Context, code string) error {
	delete(r.students, code)
	return nil
}

func (r *fakeStudentRepo) sortedCodes() []string {
	codes := make([]string, 0, len(r.students))
	for code := range r.students {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

type fakeCourseRepo struct {
	courses map[string]*models.Course
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{courses: map[string]*models.Course{}}
}

func (r *fakeCourseRepo) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	course, ok := r.courses[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *course
	clone.Enrolled = append([]string(nil), course.Enrolled...)
	return &clone, nil
}

func (r *fakeCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var out []models.Course
	for _, code := range r.sortedCodes() {
		course := r.courses[code]
		if filter.Program != "" && course.Program != filter.Program {
			continue
		}
		out = append(out, *course)
	}
	return out, len(out), nil
}

func (r *fakeCourseRepo) ListByCodes(ctx context.Context, codes []string) ([]models.Course, error) {
	var out []models.Course
	seen := map[string]bool{}
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true
		if course, ok := r.courses[code]; ok {
			out = append(out, *course)
		}
	}
	return out, nil
}

func (r *fakeCourseRepo) ListByInstructor(ctx context.Context, instructorCode string) ([]models.Course, error) {
	var out []models.Course
	for _, code := range r.sortedCodes() {
		course := r.courses[code]
		if course.InstructorValue() == instructorCode {
			out = append(out, *course)
		}
	}
	return out, nil
}

func (r *fakeCourseRepo) ListCodes(ctx context.Context, program string) ([]string, error) {
	var codes []string
	for _, code := range r.sortedCodes() {
		if program == "" || r.courses[code].Program == program {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

func (r *fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = fmt.Sprintf("c-%d", len(r.courses)+1)
	clone := *course
	r.courses[course.Code] = &clone
	return nil
}

func (r *fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	if _, exists := r.courses[course.Code]; !exists {
		return sql.ErrNoRows
	}
	clone := *course
	r.courses[course.Code] = &clone
	return nil
}

func (r *fakeCourseRepo) Delete(ctx context.Context, code string) error {
	delete(r.courses, code)
	return nil
}

func (r *fakeCourseRepo) Enroll(ctx context.Context, courseCode, studentCode string) error {
	course, ok := r.courses[courseCode]
	if !ok || course.Capacity <= 0 {
		return sql.ErrNoRows
	}
	for _, enrolled := range course.Enrolled {
		if enrolled == studentCode {
			return sql.ErrNoRows
		}
	}
	course.Enrolled = append(course.Enrolled, studentCode)
	course.Capacity--
	return nil
}

func (r *fakeCourseRepo) Unenroll(ctx context.Context, courseCode, studentCode string) error {
	course, ok := r.courses[courseCode]
	if !ok {
		return nil
	}
	for i, enrolled := range course.Enrolled {
		if enrolled == studentCode {
			course.Enrolled = append(course.Enrolled[:i], course.Enrolled[i+1:]...)
			course.Capacity++
			return nil
		}
	}
	return nil
}

func (r *fakeCourseRepo) UnenrollEverywhere(ctx context.Context, studentCode string) error {
	for _, course := range r.courses {
		for i, enrolled := range course.Enrolled {
			if enrolled == studentCode {
				course.Enrolled = append(course.Enrolled[:i], course.Enrolled[i+1:]...)
				course.Capacity++
				break
			}
		}
	}
	return nil
}

func (r *fakeCourseRepo) sortedCodes() []string {
	codes := make([]string, 0, len(r.courses))
	for code := range r.courses {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

type fakeScheduleRepo struct {
	schedules map[string]*models.Schedule
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: map[string]*models.Schedule{}}
}

func (r *fakeScheduleRepo) FindByStudent(ctx context.Context, studentCode string) (*models.Schedule, error) {
	schedule, ok := r.schedules[studentCode]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *schedule
	return &clone, nil
}

func (r *fakeScheduleRepo) Create(ctx context.Context, schedule *models.Schedule) error {
	schedule.ID = fmt.Sprintf("sch-%d", len(r.schedules)+1)
	clone := *schedule
	r.schedules[schedule.StudentCode] = &clone
	return nil
}

func (r *fakeScheduleRepo) UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus, comment string) error {
	for _, schedule := range r.schedules {
		if schedule.ID == id {
			schedule.Status = status
			schedule.Comment = comment
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeScheduleRepo) DeleteByStudent(ctx context.Context, studentCode string) error {
	delete(r.schedules, studentCode)
	return nil
}

func (r *fakeScheduleRepo) RemoveCourseFromAll(ctx context.Context, courseCode string) error {
	for _, schedule := range r.schedules {
		for i, code := range schedule.CourseCodes {
			if code == courseCode {
				schedule.CourseCodes = append(schedule.CourseCodes[:i], schedule.CourseCodes[i+1:]...)
				break
			}
		}
	}
	return nil
}

type fakeImportRunRepo struct {
	mu   sync.Mutex
	runs map[string]*models.ImportRun
}

func newFakeImportRunRepo() *fakeImportRunRepo {
	return &fakeImportRunRepo{runs: map[string]*models.ImportRun{}}
}

func (r *fakeImportRunRepo) Create(ctx context.Context, run *models.ImportRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.ID = fmt.Sprintf("run-%d", len(r.runs)+1)
	run.Status = models.ImportPending
	clone := *run
	r.runs[run.ID] = &clone
	return nil
}

func (r *fakeImportRunRepo) FindByID(ctx context.Context, id string) (*models.ImportRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *run
	return &clone, nil
}

func (r *fakeImportRunRepo) List(ctx context.Context, limit int) ([]models.ImportRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ImportRun
	for _, run := range r.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (r *fakeImportRunRepo) MarkRunning(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return sql.ErrNoRows
	}
	run.Status = models.ImportRunning
	return nil
}

func (r *fakeImportRunRepo) Finish(ctx context.Context, id string, status models.ImportStatus, summary json.RawMessage, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return sql.ErrNoRows
	}
	run.Status = status
	run.Summary = summary
	run.Error = errMsg
	return nil
}
