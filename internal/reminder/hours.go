// Package reminder decides which employees should be reminded to submit
// their timesheets and sends the reminders.
package reminder

import (
	"strings"
	"time"

	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

// HoursPerDay is the full-time requirement for one work day.
const HoursPerDay = 8

// HoursRequired returns the hours emp must log between start and end
// inclusive: eight hours per Monday-to-Friday day, scaled by the employee's
// full-time percentage. Days before the hire date are not counted.
func HoursRequired(emp store.Employee, start, end time.Time) float64 {
	start, end = timesheet.Day(start), timesheet.Day(end)
	if !emp.HireDate.IsZero() {
		if hire := timesheet.Day(emp.HireDate); hire.After(start) {
			start = hire
		}
	}

	workDays := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if timesheet.ISOWeekday(d) <= 5 {
			workDays++
		}
	}
	return float64(workDays) * HoursPerDay * float64(emp.WorkStatus) / 100
}

// ShouldRemind reports whether required strictly exceeds submitted.
func ShouldRemind(required, submitted float64) bool {
	return required > submitted
}

// IsSubmitted reports whether an entry status counts toward the requirement.
func IsSubmitted(status string) bool {
	switch strings.ToUpper(status) {
	case "APPROVED", "SUBMITTED":
		return true
	}
	return false
}

// HoursSubmitted sums the hours of approved or submitted entries.
func HoursSubmitted(entries []timesheet.TimeEntry) float64 {
	var seconds int64
	for _, e := range entries {
		if IsSubmitted(e.Status) {
			seconds += e.DurationSeconds
		}
	}
	return timesheet.SecondsToHours(seconds)
}
