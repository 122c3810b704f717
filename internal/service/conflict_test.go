package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func TestFirstConflictDetectsSameDaySameRange(t *testing.T) {
	existing := []models.Course{
		{Code: "M0101", Slots: models.WeekSlots{"monday": "10:00-12:00"}},
	}

	conflict := FirstConflict(models.WeekSlots{"monday": "10:00-12:00"}, existing, "M0202")
	require.NotNil(t, conflict)
	require.Equal(t, "monday", conflict.Weekday)
	require.Equal(t, "10:00-12:00", conflict.TimeRange)
	require.Equal(t, "M0101", conflict.CourseCode)
}

func TestFirstConflictIgnoresOtherDaysAndRanges(t *testing.T) {
	existing := []models.Course{
		{Code: "M0101", Slots: models.WeekSlots{"monday": "10:00-12:00", "wednesday": "08:00-10:00"}},
	}

	require.Nil(t, FirstConflict(models.WeekSlots{"tuesday": "10:00-12:00"}, existing, "M0202"))
	require.Nil(t, FirstConflict(models.WeekSlots{"monday": "12:00-14:00"}, existing, "M0202"))
}

func TestFirstConflictExcludesOwnCode(t *testing.T) {
	existing := []models.Course{
		{Code: "M0101", Slots: models.WeekSlots{"friday": "08:00-10:00"}},
	}

	require.Nil(t, FirstConflict(models.WeekSlots{"friday": "08:00-10:00"}, existing, "M0101"))
}

func TestFirstConflictEmptySlotsNeverConflict(t *testing.T) {
	existing := []models.Course{
		{Code: "M0101", Slots: models.WeekSlots{}},
	}

	require.Nil(t, FirstConflict(models.WeekSlots{}, existing, "M0202"))
}
