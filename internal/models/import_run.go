package models

import (
	"encoding/json"
	"time"
)

// ImportEntity selects which snapshot kind a reconciliation run covers.
type ImportEntity string

const (
	ImportPersonnel ImportEntity = "PERSONNEL"
	ImportStudents  ImportEntity = "STUDENTS"
	ImportCourses   ImportEntity = "COURSES"
)

// ValidImportEntity reports whether entity names a known snapshot kind.
func ValidImportEntity(entity ImportEntity) bool {
	switch entity {
	case ImportPersonnel, ImportStudents, ImportCourses:
		return true
	}
	return false
}

// ImportStatus is the lifecycle state of an import run.
type ImportStatus string

const (
	ImportPending   ImportStatus = "PENDING"
	ImportRunning   ImportStatus = "RUNNING"
	ImportCompleted ImportStatus = "COMPLETED"
	ImportFailed    ImportStatus = "FAILED"
)

// RowRejection reports one row that could not be fully applied.
type RowRejection struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// ImportSummary is the outcome of one reconciliation pass.
type ImportSummary struct {
	Created  int            `json:"created"`
	Updated  int            `json:"updated"`
	Skipped  int            `json:"skipped"`
	Deleted  int            `json:"deleted"`
	Rejected []RowRejection `json:"rejected"`
}

// ImportRun tracks an asynchronous snapshot import.
type ImportRun struct {
	ID          string          `db:"id" json:"id"`
	Entity      ImportEntity    `db:"entity" json:"entity"`
	Program     *string         `db:"program" json:"program,omitempty"`
	Status      ImportStatus    `db:"status" json:"status"`
	Summary     json.RawMessage `db:"summary" json:"summary,omitempty"`
	Error       *string         `db:"error" json:"error,omitempty"`
	RequestedBy string          `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
