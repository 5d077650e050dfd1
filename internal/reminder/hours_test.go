package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

func day(s string) time.Time {
	t, err := timesheet.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestHoursRequired(t *testing.T) {
	tests := []struct {
		name  string
		emp   store.Employee
		start string
		end   string
		want  float64
	}{
		{"ten weekdays full time", store.Employee{WorkStatus: 100}, "2024-05-06", "2024-05-17", 80},
		{"half time", store.Employee{WorkStatus: 50}, "2024-05-06", "2024-05-17", 40},
		{"hired mid period", store.Employee{WorkStatus: 100, HireDate: day("2024-05-13")}, "2024-05-06", "2024-05-17", 40},
		{"hired before period", store.Employee{WorkStatus: 100, HireDate: day("2020-01-01")}, "2024-05-06", "2024-05-17", 80},
		{"hired after period", store.Employee{WorkStatus: 100, HireDate: day("2024-06-01")}, "2024-05-06", "2024-05-17", 0},
		{"weekend only", store.Employee{WorkStatus: 100}, "2024-05-11", "2024-05-12", 0},
		{"whole month", store.Employee{WorkStatus: 100}, "2024-05-01", "2024-05-31", 184},
		{"inactive", store.Employee{WorkStatus: 0}, "2024-05-01", "2024-05-31", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HoursRequired(tt.emp, day(tt.start), day(tt.end)), 1e-9)
		})
	}
}

func TestShouldRemind(t *testing.T) {
	assert.False(t, ShouldRemind(40, 40))
	assert.True(t, ShouldRemind(40, 39.99))
	assert.False(t, ShouldRemind(40, 41))
	assert.False(t, ShouldRemind(0, 0))
}

func TestHoursSubmittedCountsOnlySubmittedStates(t *testing.T) {
	entries := []timesheet.TimeEntry{
		{DurationSeconds: 3600, Status: "APPROVED"},
		{DurationSeconds: 7200, Status: "submitted"},
		{DurationSeconds: 36000, Status: "DRAFT"},
		{DurationSeconds: 36000, Status: "REJECTED"},
		{DurationSeconds: 36000},
	}
	assert.InDelta(t, 3, HoursSubmitted(entries), 1e-9)
	assert.Zero(t, HoursSubmitted(nil))
}
