package models

import "time"

// ReceiptStatus tracks the payment receipt review state for a student.
type ReceiptStatus string

const (
	ReceiptNone     ReceiptStatus = "NONE"
	ReceiptPending  ReceiptStatus = "PENDING"
	ReceiptAccepted ReceiptStatus = "ACCEPTED"
	ReceiptRejected ReceiptStatus = "REJECTED"
)

// Student is an enrolled student. TutorCode is a weak reference: the
// authoritative bookkeeping for the tutor relationship lives in the
// holder RoleRecord's member list.
type Student struct {
	ID            string        `db:"id" json:"id"`
	Code          string        `db:"code" json:"code"`
	Program       string        `db:"program" json:"program"`
	FullName      string        `db:"full_name" json:"full_name"`
	Email         string        `db:"email" json:"email"`
	Phone         string        `db:"phone" json:"phone"`
	TutorCode     *string       `db:"tutor_code" json:"tutor_code,omitempty"`
	ReceiptStatus ReceiptStatus `db:"receipt_status" json:"receipt_status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// TutorValue returns the tutor reference or the empty string.
func (s *Student) TutorValue() string {
	if s.TutorCode == nil {
		return ""
	}
	return *s.TutorCode
}

// StudentFilter narrows student listings.
type StudentFilter struct {
	Search   string
	Program  string
	Tutor    string
	Page     int
	PageSize int
}
