package models

import (
	"time"

	"github.com/lib/pq"
)

// RoleRecord is the role-subtype projection of a Person: one record per
// (person, kind) pair. All six kinds share this shape so holder lookups
// iterate one polymorphic set instead of per-kind collections. Members
// holds student codes for tutor-like kinds and course codes for teachers.
type RoleRecord struct {
	ID             string         `db:"id" json:"id"`
	PersonCode     string         `db:"person_code" json:"person_code"`
	Kind           RoleTag        `db:"kind" json:"kind"`
	Program        *string        `db:"program" json:"program,omitempty"`
	Members        pq.StringArray `db:"members" json:"members"`
	MaxWeeklyHours int            `db:"max_weekly_hours" json:"max_weekly_hours,omitempty"`
	ReceiptEnabled bool           `db:"receipt_enabled" json:"receipt_enabled,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// HasMember reports whether code is present in the member list.
func (r *RoleRecord) HasMember(code string) bool {
	for _, m := range r.Members {
		if m == code {
			return true
		}
	}
	return false
}

// AddMember appends code with set semantics. Returns true when the list changed.
func (r *RoleRecord) AddMember(code string) bool {
	if r.HasMember(code) {
		return false
	}
	r.Members = append(r.Members, code)
	return true
}

// RemoveMember drops code from the member list. Returns true when the list changed.
func (r *RoleRecord) RemoveMember(code string) bool {
	for i, m := range r.Members {
		if m == code {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return true
		}
	}
	return false
}

// ProgramValue returns the affiliation or the empty string.
func (r *RoleRecord) ProgramValue() string {
	if r.Program == nil {
		return ""
	}
	return *r.Program
}
