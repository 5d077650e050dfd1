package reminder

import (
	"time"

	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

// Reminder day numbers passed by the scheduled jobs.
const (
	// FirstReminder runs on the last work day of a pay period.
	FirstReminder = 1
	// SecondReminder runs on the day after the last work day.
	SecondReminder = 2
)

// LastWorkDay returns d, or the Friday before it when d falls on a weekend.
func LastWorkDay(d time.Time) time.Time {
	d = timesheet.Day(d)
	back := timesheet.ISOWeekday(d) - 5
	if back < 0 {
		back = 0
	}
	return d.AddDate(0, 0, -back)
}

// rollBack maps the first of a month to the previous day. Reminders sent on
// the 1st still concern the month that just ended.
func rollBack(today time.Time) (time.Time, bool) {
	today = timesheet.Day(today)
	if today.Day() == 1 {
		return today.AddDate(0, 0, -1), true
	}
	return today, false
}

// CasePeriod returns the calendar month pay period that today's reminders
// are about.
func CasePeriod(today time.Time) timesheet.DateRange {
	today, _ = rollBack(today)
	return timesheet.DateRange{Start: timesheet.StartOfMonth(today), End: timesheet.EndOfMonth(today)}
}

// CaseReminderDay reports whether reminder day number day fires today for
// the monthly cohort. Day 1 is the last work day of the month. Day 2 is the
// day after it, which for a month ending on a work day is the 1st of the next
// month.
func CaseReminderDay(today time.Time, day int) bool {
	today, rolled := rollBack(today)
	lastWorkDay := LastWorkDay(timesheet.EndOfMonth(today))

	switch day {
	case FirstReminder:
		return !rolled && today.Equal(lastWorkDay)
	case SecondReminder:
		if rolled {
			return today.Equal(lastWorkDay)
		}
		return today.Equal(lastWorkDay.AddDate(0, 0, 1))
	}
	return false
}

// Calendar holds the recurring pay period definition for the bi-weekly
// cohort.
type Calendar struct {
	// CykAnchor is the first day of any known pay period.
	CykAnchor     time.Time
	CykPeriodDays int
}

func DefaultCalendar() Calendar {
	return Calendar{
		CykAnchor:     time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		CykPeriodDays: 14,
	}
}

// CykPeriod returns the pay period containing today.
func (c Calendar) CykPeriod(today time.Time) timesheet.DateRange {
	n := c.CykPeriodDays
	if n <= 0 {
		n = DefaultCalendar().CykPeriodDays
	}
	anchor := timesheet.Day(c.CykAnchor)
	today = timesheet.Day(today)

	days := int(today.Sub(anchor).Hours() / 24)
	k := days / n
	if days < 0 && days%n != 0 {
		k--
	}
	start := anchor.AddDate(0, 0, k*n)
	return timesheet.DateRange{Start: start, End: start.AddDate(0, 0, n-1)}
}

// CykReminderDay reports whether today is the last work day of the current
// bi-weekly pay period. The reminder day number is not consulted: every
// scheduled job on that day fires.
func (c Calendar) CykReminderDay(today time.Time) bool {
	return timesheet.Day(today).Equal(LastWorkDay(c.CykPeriod(today).End))
}

// Period returns the pay period a cohort's reminders are about.
func (c Calendar) Period(cohort string, today time.Time) timesheet.DateRange {
	if cohort == store.CohortCYK {
		return c.CykPeriod(today)
	}
	return CasePeriod(today)
}

// IsReminderDay applies the cohort's reminder-day gate.
func (c Calendar) IsReminderDay(cohort string, today time.Time, day int) bool {
	if cohort == store.CohortCYK {
		return c.CykReminderDay(today)
	}
	return CaseReminderDay(today, day)
}
