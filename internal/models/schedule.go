package models

import (
	"time"

	"github.com/lib/pq"
)

// ScheduleStatus is the review state of a submitted schedule.
type ScheduleStatus string

const (
	SchedulePending  ScheduleStatus = "PENDING"
	ScheduleAccepted ScheduleStatus = "ACCEPTED"
	ScheduleRejected ScheduleStatus = "REJECTED"
)

// Schedule is one student's submitted course selection.
type Schedule struct {
	ID          string         `db:"id" json:"id"`
	StudentCode string         `db:"student_code" json:"student_code"`
	CourseCodes pq.StringArray `db:"course_codes" json:"course_codes"`
	Status      ScheduleStatus `db:"status" json:"status"`
	Comment     string         `db:"comment" json:"comment"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}
