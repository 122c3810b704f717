package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/export"
)

const exportPageSize = 100

type exportPersonStore interface {
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error)
}

type exportRoleStore interface {
	ListByPerson(ctx context.Context, personCode string) ([]models.RoleRecord, error)
}

type exportStudentStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type exportCourseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListByCodes(ctx context.Context, codes []string) ([]models.Course, error)
}

type exportScheduleStore interface {
	FindByStudent(ctx context.Context, studentCode string) (*models.Schedule, error)
}

// ExportService renders snapshot datasets. The CSV shapes mirror the import
// columns, so feeding an export back through the reconciliation engine is a
// full no-op.
type ExportService struct {
	people    exportPersonStore
	roles     exportRoleStore
	students  exportStudentStore
	courses   exportCourseStore
	schedules exportScheduleStore
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(
	people exportPersonStore,
	roles exportRoleStore,
	students exportStudentStore,
	courses exportCourseStore,
	schedules exportScheduleStore,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		people:    people,
		roles:     roles,
		students:  students,
		courses:   courses,
		schedules: schedules,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
	}
}

// PersonnelCSV renders the personnel snapshot, optionally scoped to one
// program. Credentials are never exported; an absent credential column
// keeps stored hashes untouched on re-import.
func (s *ExportService) PersonnelCSV(ctx context.Context, program string) ([]byte, error) {
	headers := []string{ColCode, ColName, ColRoles, ColEmail, ColPhone, ColProgram, ColMaxWeeklyHours, ColReceiptEnabled}
	var rows []map[string]string

	for page := 1; ; page++ {
		persons, total, err := s.people.List(ctx, models.PersonFilter{Program: program, Page: page, PageSize: exportPageSize})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list personnel")
		}
		for i := range persons {
			person := &persons[i]
			row := map[string]string{
				ColCode:  person.Code,
				ColName:  person.FullName,
				ColRoles: strings.Join(person.Roles, "|"),
				ColEmail: person.Email,
				ColPhone: person.Phone,
			}
			records, err := s.roles.ListByPerson(ctx, person.Code)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list role records")
			}
			for j := range records {
				record := &records[j]
				if row[ColProgram] == "" && record.ProgramValue() != "" {
					row[ColProgram] = record.ProgramValue()
				}
				if record.Kind == models.RoleCoordinator {
					row[ColMaxWeeklyHours] = strconv.Itoa(record.MaxWeeklyHours)
					row[ColReceiptEnabled] = strconv.FormatBool(record.ReceiptEnabled)
				}
			}
			rows = append(rows, row)
		}
		if len(rows) >= total || len(persons) == 0 {
			break
		}
	}
	return s.render(export.Dataset{Headers: headers, Rows: rows})
}

// StudentsCSV renders the student snapshot, optionally scoped to a program.
func (s *ExportService) StudentsCSV(ctx context.Context, program string) ([]byte, error) {
	headers := []string{ColCode, ColName, ColProgram, ColEmail, ColPhone, ColTutor, ColReceiptStatus}
	var rows []map[string]string

	for page := 1; ; page++ {
		students, total, err := s.students.List(ctx, models.StudentFilter{Program: program, Page: page, PageSize: exportPageSize})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
		}
		for i := range students {
			student := &students[i]
			rows = append(rows, map[string]string{
				ColCode:          student.Code,
				ColName:          student.FullName,
				ColProgram:       student.Program,
				ColEmail:         student.Email,
				ColPhone:         student.Phone,
				ColTutor:         student.TutorValue(),
				ColReceiptStatus: string(student.ReceiptStatus),
			})
		}
		if len(rows) >= total || len(students) == 0 {
			break
		}
	}
	return s.render(export.Dataset{Headers: headers, Rows: rows})
}

// CoursesCSV renders the course snapshot. Capacity is exported as the
// initial capacity, matching what the import expects.
func (s *ExportService) CoursesCSV(ctx context.Context, program string) ([]byte, error) {
	headers := []string{ColCode, ColName, ColProgram, ColRoom, ColGroup, ColCapacity, ColLab}
	headers = append(headers, models.Weekdays...)
	headers = append(headers, ColReduced, ColInstructor)
	var rows []map[string]string

	for page := 1; ; page++ {
		courses, total, err := s.courses.List(ctx, models.CourseFilter{Program: program, Page: page, PageSize: exportPageSize})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
		}
		for i := range courses {
			course := &courses[i]
			row := map[string]string{
				ColCode:       course.Code,
				ColName:       course.Name,
				ColProgram:    course.Program,
				ColRoom:       course.Room,
				ColGroup:      course.GroupLabel,
				ColCapacity:   strconv.Itoa(course.InitialCapacity()),
				ColLab:        strconv.FormatBool(course.Lab),
				ColReduced:    strconv.FormatBool(course.ReducedParity),
				ColInstructor: course.InstructorValue(),
			}
			for _, day := range models.Weekdays {
				row[day] = course.Slots[day]
			}
			rows = append(rows, row)
		}
		if len(rows) >= total || len(courses) == 0 {
			break
		}
	}
	return s.render(export.Dataset{Headers: headers, Rows: rows})
}

// SchedulePDF renders a student's schedule as a printable sheet.
func (s *ExportService) SchedulePDF(ctx context.Context, studentCode string) ([]byte, error) {
	schedule, err := s.schedules.FindByStudent(ctx, studentCode)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no schedule for "+studentCode)
	}
	courses, err := s.courses.ListByCodes(ctx, schedule.CourseCodes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	headers := []string{"course", "name", "room"}
	headers = append(headers, models.Weekdays...)
	rows := make([]map[string]string, 0, len(courses))
	for i := range courses {
		course := &courses[i]
		row := map[string]string{
			"course": course.Code,
			"name":   course.Name,
			"room":   course.Room,
		}
		for _, day := range models.Weekdays {
			row[day] = course.Slots[day]
		}
		rows = append(rows, row)
	}

	data, err := s.pdf.Render(export.Dataset{Headers: headers, Rows: rows}, "Schedule "+studentCode+" ("+string(schedule.Status)+")")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return data, nil
}

func (s *ExportService) render(data export.Dataset) ([]byte, error) {
	out, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return out, nil
}
