package timesheet

import (
	"time"

	"github.com/consultwithcase/portalsync/internal/apperr"
)

// BatchMonths is the width of a vendor query window in calendar months.
const BatchMonths = 2

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// Contains reports whether day falls inside the range, inclusive.
func (r DateRange) Contains(day time.Time) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// BatchDateRange splits [start, end] into ordered, non-overlapping windows
// for paginated vendor queries. The first window runs from start to the end
// of the following month; later windows cover two whole months. Once a
// window would begin in or after today's month, a single final window runs
// through end. Every window is clipped to end.
//
// The "caught up to today" check compares calendar months; loop termination
// compares days.
func BatchDateRange(start, end, today time.Time) ([]DateRange, error) {
	start, end, today = Day(start), Day(end), Day(today)
	if start.After(end) {
		return nil, apperr.InvalidInput("batch date range", "start %s is after end %s", FormatDate(start), FormatDate(end))
	}

	var batches []DateRange
	batchStart := start
	batchEnd := EndOfMonth(StartOfMonth(start).AddDate(0, BatchMonths-1, 0))
	for !batchStart.After(end) {
		batches = append(batches, DateRange{Start: batchStart, End: minDate(batchEnd, end)})

		batchStart = batchEnd.AddDate(0, 0, 1)
		batchEnd = EndOfMonth(batchStart.AddDate(0, BatchMonths-1, 0))
		if batchStart.After(end) {
			break
		}
		if monthIndex(batchStart) >= monthIndex(today) && monthIndex(batchStart) < monthIndex(end) {
			batches = append(batches, DateRange{Start: batchStart, End: end})
			break
		}
	}
	return batches, nil
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
