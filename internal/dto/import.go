package dto

// ImportRequest selects what a snapshot upload reconciles.
type ImportRequest struct {
	Entity  string `form:"entity" validate:"required,oneof=PERSONNEL STUDENTS COURSES"`
	Program string `form:"program"`
	Async   bool   `form:"async"`
}

// ScheduleSubmitRequest is a student's course selection.
type ScheduleSubmitRequest struct {
	StudentCode string   `json:"student_code" validate:"required"`
	CourseCodes []string `json:"course_codes" validate:"required,min=1,dive,required"`
}

// ScheduleReviewRequest accepts or rejects a submitted schedule.
type ScheduleReviewRequest struct {
	Accept  bool   `json:"accept"`
	Comment string `json:"comment"`
}
