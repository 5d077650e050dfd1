package reminder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

func TestLastWorkDay(t *testing.T) {
	assert.Equal(t, day("2024-06-28"), LastWorkDay(day("2024-06-29")))
	assert.Equal(t, day("2024-06-28"), LastWorkDay(day("2024-06-30")))
	assert.Equal(t, day("2024-06-26"), LastWorkDay(day("2024-06-26")))
}

func TestCaseReminderDay(t *testing.T) {
	tests := []struct {
		today string
		day1  bool
		day2  bool
	}{
		// May 2024 ends on a Friday; the second reminder lands on June 1.
		{"2024-05-31", true, false},
		{"2024-06-01", false, true},
		// June 2024 ends on a Sunday.
		{"2024-06-28", true, false},
		{"2024-06-29", false, true},
		{"2024-06-30", false, false},
		{"2024-07-01", false, false},
		{"2024-05-15", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.today, func(t *testing.T) {
			assert.Equal(t, tt.day1, CaseReminderDay(day(tt.today), FirstReminder), "day 1")
			assert.Equal(t, tt.day2, CaseReminderDay(day(tt.today), SecondReminder), "day 2")
			assert.False(t, CaseReminderDay(day(tt.today), 3))
		})
	}
}

func TestCasePeriod(t *testing.T) {
	assert.Equal(t, timesheet.DateRange{Start: day("2024-05-01"), End: day("2024-05-31")}, CasePeriod(day("2024-06-01")))
	assert.Equal(t, timesheet.DateRange{Start: day("2024-06-01"), End: day("2024-06-30")}, CasePeriod(day("2024-06-15")))
	assert.Equal(t, timesheet.DateRange{Start: day("2024-02-01"), End: day("2024-02-29")}, CasePeriod(day("2024-02-29")))
}

func TestCykPeriod(t *testing.T) {
	c := DefaultCalendar()

	tests := []struct {
		today, start, end string
	}{
		{"2024-04-15", "2024-04-15", "2024-04-28"},
		{"2024-04-28", "2024-04-15", "2024-04-28"},
		{"2024-04-29", "2024-04-29", "2024-05-12"},
		{"2024-05-31", "2024-05-27", "2024-06-09"},
		{"2024-04-14", "2024-04-01", "2024-04-14"},
		{"2024-04-01", "2024-04-01", "2024-04-14"},
	}
	for _, tt := range tests {
		t.Run(tt.today, func(t *testing.T) {
			got := c.CykPeriod(day(tt.today))
			assert.Equal(t, timesheet.DateRange{Start: day(tt.start), End: day(tt.end)}, got)
		})
	}
}

func TestCykPeriodAlwaysContainsToday(t *testing.T) {
	c := DefaultCalendar()
	for d := day("2023-12-01"); d.Before(day("2025-03-01")); d = d.AddDate(0, 0, 1) {
		p := c.CykPeriod(d)
		require.True(t, p.Contains(d), timesheet.FormatDate(d))
		require.Equal(t, 13, int(p.End.Sub(p.Start).Hours()/24))
	}
}

func TestCykReminderDay(t *testing.T) {
	c := DefaultCalendar()
	assert.True(t, c.CykReminderDay(day("2024-04-26")))
	assert.False(t, c.CykReminderDay(day("2024-04-28")))
	assert.True(t, c.CykReminderDay(day("2024-05-10")))
	assert.False(t, c.CykReminderDay(day("2024-05-09")))

	assert.True(t, c.IsReminderDay(store.CohortCYK, day("2024-05-10"), SecondReminder))
	assert.False(t, c.IsReminderDay(store.CohortCASE, day("2024-05-10"), FirstReminder))
	assert.Equal(t, c.CykPeriod(day("2024-05-10")), c.Period(store.CohortCYK, day("2024-05-10")))
	assert.Equal(t, CasePeriod(day("2024-05-10")), c.Period(store.CohortCASE, day("2024-05-10")))
}
