package service

import "github.com/noah-isme/academic-records-api/internal/models"

// FirstConflict compares a candidate weekly slot map against the other
// courses of the same instructor and returns the first overlapping
// (weekday, time range) pair, or nil when the candidate fits. Only
// explicitly populated slots participate; equality of weekday and the
// exact time-range string constitutes a conflict. Pure function.
func FirstConflict(candidate models.WeekSlots, existing []models.Course, excludeCode string) *models.SlotConflict {
	for _, day := range models.Weekdays {
		slot := candidate[day]
		if slot == "" {
			continue
		}
		for i := range existing {
			course := &existing[i]
			if course.Code == excludeCode {
				continue
			}
			if course.Slots[day] == slot {
				return &models.SlotConflict{Weekday: day, TimeRange: slot, CourseCode: course.Code}
			}
		}
	}
	return nil
}
