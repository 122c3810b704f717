package models

import (
	"time"

	"github.com/lib/pq"
)

// RoleTag identifies one role a person may hold.
type RoleTag string

const (
	RoleTeacher            RoleTag = "TEACHER"
	RoleTutor              RoleTag = "TUTOR"
	RoleCoordinator        RoleTag = "COORDINATOR"
	RoleAdmin              RoleTag = "ADMIN"
	RoleGeneralCoordinator RoleTag = "GENERAL_COORDINATOR"
	RoleGeneralAdmin       RoleTag = "GENERAL_ADMIN"
)

// AllRoles lists every valid role tag.
var AllRoles = []RoleTag{
	RoleTeacher,
	RoleTutor,
	RoleCoordinator,
	RoleAdmin,
	RoleGeneralCoordinator,
	RoleGeneralAdmin,
}

// StudentHolderKinds are the role records that may own a student's id,
// in lookup precedence order.
var StudentHolderKinds = []RoleTag{RoleTutor, RoleTeacher, RoleCoordinator, RoleAdmin}

// CourseHolderKinds are the role records that may own a course's id.
var CourseHolderKinds = []RoleTag{RoleTeacher}

// ValidRole reports whether tag names a known role.
func ValidRole(tag RoleTag) bool {
	for _, r := range AllRoles {
		if r == tag {
			return true
		}
	}
	return false
}

// Person is a personnel account identified by its external code.
// The credential field always stores an opaque hash, never plaintext.
type Person struct {
	ID         string         `db:"id" json:"id"`
	Code       string         `db:"code" json:"code"`
	FullName   string         `db:"full_name" json:"full_name"`
	Credential string         `db:"credential" json:"-"`
	Roles      pq.StringArray `db:"roles" json:"roles"`
	Email      string         `db:"email" json:"email"`
	Phone      string         `db:"phone" json:"phone"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// HasRole reports whether the person carries the given role tag.
func (p *Person) HasRole(tag RoleTag) bool {
	for _, r := range p.Roles {
		if RoleTag(r) == tag {
			return true
		}
	}
	return false
}

// RoleSet returns the person's roles as typed tags.
func (p *Person) RoleSet() []RoleTag {
	tags := make([]RoleTag, 0, len(p.Roles))
	for _, r := range p.Roles {
		tags = append(tags, RoleTag(r))
	}
	return tags
}

// PersonFilter narrows person listings.
type PersonFilter struct {
	Search   string
	Role     RoleTag
	Program  string
	Page     int
	PageSize int
}
