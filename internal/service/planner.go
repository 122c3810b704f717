package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// PlanAction tags what a row plan will do to the store.
type PlanAction string

const (
	ActionCreate PlanAction = "create"
	ActionUpdate PlanAction = "update"
	ActionSkip   PlanAction = "skip"
)

// Snapshot column names, shared between import parsing and export rendering
// so a re-imported export round-trips.
const (
	ColCode           = "code"
	ColName           = "name"
	ColCredential     = "credential"
	ColRoles          = "roles"
	ColEmail          = "email"
	ColPhone          = "phone"
	ColProgram        = "program"
	ColMaxWeeklyHours = "max_weekly_hours"
	ColReceiptEnabled = "receipt_enabled"
	ColTutor          = "tutor"
	ColReceiptStatus  = "receipt_status"
	ColRoom           = "room"
	ColGroup          = "group"
	ColCapacity       = "capacity"
	ColLab            = "lab"
	ColReduced        = "reduced"
	ColInstructor     = "instructor"
)

var requiredColumns = map[models.ImportEntity][]string{
	models.ImportPersonnel: {ColCode, ColName},
	models.ImportStudents:  {ColCode, ColName, ColProgram},
	models.ImportCourses:   {ColCode, ColName, ColProgram, ColCapacity},
}

var timeRangePattern = regexp.MustCompile(`^\d{2}:\d{2}-\d{2}:\d{2}$`)

type plannerPersonReader interface {
	FindByCode(ctx context.Context, code string) (*models.Person, error)
}

type plannerStudentReader interface {
	FindByCode(ctx context.Context, code string) (*models.Student, error)
}

type plannerCourseReader interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
}

// PersonPlan is the write plan for one personnel row. Person carries the
// target state; Prior is the stored record the plan was diffed against,
// nil on create. Program and Coordinator feed the role synchronizer.
type PersonPlan struct {
	Action      PlanAction
	Person      *models.Person
	Prior       *models.Person
	Program     string
	Coordinator CoordinatorConfig
}

// StudentPlan is the write plan for one student row. The tutor reference in
// Student is the row's claim; the engine resolves it and downgrades to unset
// when the code does not exist.
type StudentPlan struct {
	Action  PlanAction
	Student *models.Student
	Prior   *models.Student
}

// CoursePlan is the write plan for one course row. Capacity on the plan is
// remaining seats, already adjusted for the prior enrollment on update.
type CoursePlan struct {
	Action PlanAction
	Course *models.Course
	Prior  *models.Course
}

// UpsertPlanner validates and normalizes one snapshot row, diffs it against
// the stored record, and emits a create/update/skip plan. It never writes.
type UpsertPlanner struct {
	people      plannerPersonReader
	students    plannerStudentReader
	courses     plannerCourseReader
	credentials *CredentialReconciler
	logger      *zap.Logger
}

// NewUpsertPlanner constructs an UpsertPlanner.
func NewUpsertPlanner(people plannerPersonReader, students plannerStudentReader, courses plannerCourseReader, credentials *CredentialReconciler, logger *zap.Logger) *UpsertPlanner {
	if credentials == nil {
		credentials = NewCredentialReconciler(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpsertPlanner{
		people:      people,
		students:    students,
		courses:     courses,
		credentials: credentials,
		logger:      logger,
	}
}

// ValidateHeader checks the batch header for the entity's required columns.
// A missing column fails the whole batch before any write.
func (p *UpsertPlanner) ValidateHeader(entity models.ImportEntity, header []string) error {
	present := make(map[string]bool, len(header))
	for _, column := range header {
		present[strings.ToLower(strings.TrimSpace(column))] = true
	}
	for _, column := range requiredColumns[entity] {
		if !present[column] {
			return appErrors.Clone(appErrors.ErrFormat, "missing required column "+column)
		}
	}
	return nil
}

// PlanPerson builds the write plan for one personnel row.
func (p *UpsertPlanner) PlanPerson(ctx context.Context, row map[string]string) (*PersonPlan, error) {
	code := field(row, ColCode)
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "missing code")
	}
	class, ok := ClassifyExternalCode(code)
	if !ok || class.Student {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "malformed personnel code "+code)
	}
	name := field(row, ColName)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "missing name")
	}

	roles, err := parseRoles(field(row, ColRoles), class.Role)
	if err != nil {
		return nil, err
	}
	coord := CoordinatorConfig{}
	if raw := field(row, ColMaxWeeklyHours); raw != "" {
		hours, convErr := strconv.Atoi(raw)
		if convErr != nil || hours < 0 {
			return nil, appErrors.Clone(appErrors.ErrRowValidation, "invalid max_weekly_hours "+raw)
		}
		coord.MaxWeeklyHours = hours
	}
	receipt, err := parseBoolField(row, ColReceiptEnabled)
	if err != nil {
		return nil, err
	}
	coord.ReceiptEnabled = receipt

	plan := &PersonPlan{
		Program:     field(row, ColProgram),
		Coordinator: coord,
	}

	prior, err := p.people.FindByCode(ctx, code)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}

	if prior == nil {
		credential, hashErr := p.credentials.Resolve(field(row, ColCredential), "")
		if hashErr != nil {
			return nil, appErrors.Wrap(hashErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash credential")
		}
		plan.Action = ActionCreate
		plan.Person = &models.Person{
			Code:       code,
			FullName:   name,
			Credential: credential,
			Roles:      rolesToStrings(roles),
			Email:      field(row, ColEmail),
			Phone:      field(row, ColPhone),
		}
		return plan, nil
	}

	credential, hashErr := p.credentials.Resolve(field(row, ColCredential), prior.Credential)
	if hashErr != nil {
		return nil, appErrors.Wrap(hashErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash credential")
	}
	next := *prior
	next.FullName = name
	next.Credential = credential
	next.Roles = rolesToStrings(roles)
	next.Email = field(row, ColEmail)
	next.Phone = field(row, ColPhone)

	plan.Prior = prior
	plan.Person = &next
	if personChanged(prior, &next) {
		plan.Action = ActionUpdate
	} else {
		plan.Action = ActionSkip
	}
	return plan, nil
}

// PlanStudent builds the write plan for one student row.
func (p *UpsertPlanner) PlanStudent(ctx context.Context, row map[string]string) (*StudentPlan, error) {
	code := field(row, ColCode)
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "missing code")
	}
	class, ok := ClassifyExternalCode(code)
	if !ok || !class.Student {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "malformed student code "+code)
	}
	name := field(row, ColName)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "missing name")
	}
	program := field(row, ColProgram)
	if program == "" {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "missing program")
	}

	tutor := field(row, ColTutor)
	if tutor != "" {
		tutorClass, tutorOK := ClassifyExternalCode(tutor)
		if !tutorOK || tutorClass.Student {
			return nil, appErrors.Clone(appErrors.ErrRowValidation, "malformed tutor code "+tutor)
		}
	}
	status, err := parseReceiptStatus(field(row, ColReceiptStatus))
	if err != nil {
		return nil, err
	}

	prior, err := p.students.FindByCode(ctx, code)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	plan := &StudentPlan{}
	if prior == nil {
		plan.Action = ActionCreate
		plan.Student = &models.Student{
			Code:          code,
			FullName:      name,
			Program:       program,
			Email:         field(row, ColEmail),
			Phone:         field(row, ColPhone),
			ReceiptStatus: status,
		}
		if tutor != "" {
			plan.Student.TutorCode = &tutor
		}
		return plan, nil
	}

	next := *prior
	next.FullName = name
	next.Program = program
	next.Email = field(row, ColEmail)
	next.Phone = field(row, ColPhone)
	next.ReceiptStatus = status
	if tutor != "" {
		next.TutorCode = &tutor
	} else {
		next.TutorCode = nil
	}

	plan.Prior = prior
	plan.Student = &next
	if studentChanged(prior, &next) {
		plan.Action = ActionUpdate
	} else {
		plan.Action = ActionSkip
	}
	return plan, nil
}

// PlanCourse builds the write plan for one course row. The snapshot carries
// the initial capacity; stored capacity is remaining seats, so the plan
// deducts the prior enrollment on update.
func (p *UpsertPlanner) PlanCourse(ctx context.Context, row map[string]string) (*CoursePlan, error) {
	code := field(row, ColCode)
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "missing code")
	}
	name := field(row, ColName)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "missing name")
	}
	program := field(row, ColProgram)
	if program == "" {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "missing program")
	}
	capacityRaw := field(row, ColCapacity)
	if capacityRaw == "" {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "missing capacity")
	}
	capacity, err := strconv.Atoi(capacityRaw)
	if err != nil || capacity < 0 {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "invalid capacity "+capacityRaw)
	}

	slots, err := parseSlots(row)
	if err != nil {
		return nil, err
	}
	lab, err := parseBoolField(row, ColLab)
	if err != nil {
		return nil, err
	}
	reduced, err := parseBoolField(row, ColReduced)
	if err != nil {
		return nil, err
	}
	instructor := field(row, ColInstructor)
	if instructor != "" {
		instructorClass, instructorOK := ClassifyExternalCode(instructor)
		if !instructorOK || instructorClass.Student {
			return nil, appErrors.Clone(appErrors.ErrRowValidation, "malformed instructor code "+instructor)
		}
	}

	prior, err := p.courses.FindByCode(ctx, code)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	plan := &CoursePlan{}
	if prior == nil {
		plan.Action = ActionCreate
		plan.Course = &models.Course{
			Code:          code,
			Name:          name,
			Program:       program,
			Room:          field(row, ColRoom),
			GroupLabel:    field(row, ColGroup),
			Capacity:      capacity,
			Lab:           lab,
			Slots:         slots,
			ReducedParity: reduced,
		}
		if instructor != "" {
			plan.Course.InstructorCode = &instructor
		}
		return plan, nil
	}

	if capacity < len(prior.Enrolled) {
		return nil, appErrors.Clone(appErrors.ErrRowValidation, "capacity below current enrollment for "+code)
	}
	next := *prior
	next.Name = name
	next.Program = program
	next.Room = field(row, ColRoom)
	next.GroupLabel = field(row, ColGroup)
	next.Capacity = capacity - len(prior.Enrolled)
	next.Lab = lab
	next.Slots = slots
	next.ReducedParity = reduced
	if instructor != "" {
		next.InstructorCode = &instructor
	} else {
		next.InstructorCode = nil
	}

	plan.Prior = prior
	plan.Course = &next
	if courseChanged(prior, &next) {
		plan.Action = ActionUpdate
	} else {
		plan.Action = ActionSkip
	}
	return plan, nil
}

// field returns the trimmed value of a row column.
func field(row map[string]string, key string) string {
	return strings.TrimSpace(row[key])
}

// parseRoles parses the pipe-separated roles column and guarantees the
// prefix-implied role is a member of the final set.
func parseRoles(raw string, prefixRole models.RoleTag) ([]models.RoleTag, error) {
	set := map[models.RoleTag]bool{prefixRole: true}
	if raw != "" {
		for _, token := range strings.Split(raw, "|") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			tag := models.RoleTag(strings.ToUpper(token))
			if !models.ValidRole(tag) {
				return nil, appErrors.Clone(appErrors.ErrRowValidation, "unknown role "+token)
			}
			set[tag] = true
		}
	}
	roles := make([]models.RoleTag, 0, len(set))
	for _, tag := range models.AllRoles {
		if set[tag] {
			roles = append(roles, tag)
		}
	}
	return roles, nil
}

func rolesToStrings(roles []models.RoleTag) []string {
	out := make([]string, len(roles))
	for i, tag := range roles {
		out[i] = string(tag)
	}
	return out
}

func parseBoolField(row map[string]string, key string) (bool, error) {
	raw := field(row, key)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrRowValidation, "invalid "+key+" "+raw)
	}
	return value, nil
}

func parseReceiptStatus(raw string) (models.ReceiptStatus, error) {
	if raw == "" {
		return models.ReceiptNone, nil
	}
	status := models.ReceiptStatus(strings.ToUpper(raw))
	switch status {
	case models.ReceiptNone, models.ReceiptPending, models.ReceiptAccepted, models.ReceiptRejected:
		return status, nil
	}
	return "", appErrors.Clone(appErrors.ErrRowValidation, "invalid receipt_status "+raw)
}

// parseSlots reads the per-weekday slot columns into a WeekSlots map. Empty
// columns stay absent from the map.
func parseSlots(row map[string]string) (models.WeekSlots, error) {
	slots := models.WeekSlots{}
	for _, day := range models.Weekdays {
		raw := field(row, day)
		if raw == "" {
			continue
		}
		if !timeRangePattern.MatchString(raw) {
			return nil, appErrors.Clone(appErrors.ErrRowValidation, "invalid "+day+" slot "+raw)
		}
		slots[day] = raw
	}
	return slots, nil
}

func personChanged(prior, next *models.Person) bool {
	return prior.FullName != next.FullName ||
		prior.Credential != next.Credential ||
		prior.Email != next.Email ||
		prior.Phone != next.Phone ||
		!sameStringSet(prior.Roles, next.Roles)
}

func studentChanged(prior, next *models.Student) bool {
	return prior.FullName != next.FullName ||
		prior.Program != next.Program ||
		prior.Email != next.Email ||
		prior.Phone != next.Phone ||
		prior.ReceiptStatus != next.ReceiptStatus ||
		prior.TutorValue() != next.TutorValue()
}

func courseChanged(prior, next *models.Course) bool {
	return prior.Name != next.Name ||
		prior.Program != next.Program ||
		prior.Room != next.Room ||
		prior.GroupLabel != next.GroupLabel ||
		prior.Capacity != next.Capacity ||
		prior.Lab != next.Lab ||
		prior.ReducedParity != next.ReducedParity ||
		prior.InstructorValue() != next.InstructorValue() ||
		!prior.Slots.Equal(next.Slots)
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
