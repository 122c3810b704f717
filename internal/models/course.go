package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Weekdays enumerates the slot map keys in week order.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

// WeekSlots maps a weekday to a time range string ("HH:MM-HH:MM").
// At most one slot per weekday; absent keys mean no meeting that day.
// Stored as JSONB.
type WeekSlots map[string]string

// Value implements driver.Valuer.
func (w WeekSlots) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner.
func (w *WeekSlots) Scan(src interface{}) error {
	if src == nil {
		*w = WeekSlots{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported week slots source %T", src)
	}
	if len(raw) == 0 {
		*w = WeekSlots{}
		return nil
	}
	return json.Unmarshal(raw, w)
}

// Equal compares two slot maps entry by entry.
func (w WeekSlots) Equal(other WeekSlots) bool {
	if len(w) != len(other) {
		return false
	}
	for day, slot := range w {
		if other[day] != slot {
			return false
		}
	}
	return true
}

// SlotConflict identifies an overlapping (weekday, time range) pair.
type SlotConflict struct {
	Weekday    string `json:"weekday"`
	TimeRange  string `json:"time_range"`
	CourseCode string `json:"course_code"`
}

// Course is a taught course. InstructorCode is a weak reference mirrored
// into the instructor's teacher RoleRecord member list. Capacity counts
// remaining seats: Capacity + len(Enrolled) equals the initial capacity
// at every observable point.
type Course struct {
	ID             string         `db:"id" json:"id"`
	Code           string         `db:"code" json:"code"`
	Program        string         `db:"program" json:"program"`
	Name           string         `db:"name" json:"name"`
	Room           string         `db:"room" json:"room"`
	GroupLabel     string         `db:"group_label" json:"group_label"`
	Capacity       int            `db:"capacity" json:"capacity"`
	Lab            bool           `db:"lab" json:"lab"`
	Slots          WeekSlots      `db:"slots" json:"slots"`
	ReducedParity  bool           `db:"reduced_parity" json:"reduced_parity"`
	InstructorCode *string        `db:"instructor_code" json:"instructor_code,omitempty"`
	Enrolled       pq.StringArray `db:"enrolled" json:"enrolled"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// InstructorValue returns the instructor reference or the empty string.
func (c *Course) InstructorValue() string {
	if c.InstructorCode == nil {
		return ""
	}
	return *c.InstructorCode
}

// InitialCapacity reconstructs the capacity before any enrollment.
func (c *Course) InitialCapacity() int {
	return c.Capacity + len(c.Enrolled)
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	Search     string
	Program    string
	Instructor string
	Page       int
	PageSize   int
}
