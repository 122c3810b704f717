package dto

// PersonUpsertRequest creates or updates one personnel account. The code's
// prefix letter fixes the base role; Roles may widen the set.
type PersonUpsertRequest struct {
	Code           string   `json:"code" validate:"required"`
	Name           string   `json:"name" validate:"required"`
	Credential     string   `json:"credential"`
	Roles          []string `json:"roles"`
	Email          string   `json:"email" validate:"omitempty,email"`
	Phone          string   `json:"phone"`
	Program        string   `json:"program"`
	MaxWeeklyHours int      `json:"max_weekly_hours" validate:"gte=0"`
	ReceiptEnabled bool     `json:"receipt_enabled"`
}

// StudentUpsertRequest creates or updates one student.
type StudentUpsertRequest struct {
	Code          string `json:"code" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Program       string `json:"program" validate:"required"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone"`
	Tutor         string `json:"tutor"`
	ReceiptStatus string `json:"receipt_status"`
}

// CourseUpsertRequest creates or updates one course. Capacity is the
// initial capacity; Slots maps weekday to "HH:MM-HH:MM".
type CourseUpsertRequest struct {
	Code       string            `json:"code" validate:"required"`
	Name       string            `json:"name" validate:"required"`
	Program    string            `json:"program" validate:"required"`
	Room       string            `json:"room"`
	Group      string            `json:"group"`
	Capacity   int               `json:"capacity" validate:"gte=0"`
	Lab        bool              `json:"lab"`
	Slots      map[string]string `json:"slots"`
	Reduced    bool              `json:"reduced"`
	Instructor string            `json:"instructor"`
}
