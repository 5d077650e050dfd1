// Package timesheet normalizes vendor time entries and aggregates them into
// caller-defined periods.
//
// Calendar dates are represented as time.Time values at midnight UTC. Use Day
// to reduce an instant to its calendar date in the instant's own location.
package timesheet

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Clock abstracts time.Now so "today" is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock with the system clock.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Today returns the current calendar date as seen in loc.
func Today(c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return Day(c.Now().In(loc))
}

// Day returns the calendar date of t (in t's location) as midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date. Longer ISO timestamps are accepted and
// truncated to their date part.
func ParseDate(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfMonth returns the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns the last day of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, -1)
}

// ISOWeekday returns 1 (Monday) through 7 (Sunday).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return wd
}

// monthIndex orders dates by calendar month.
func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}
