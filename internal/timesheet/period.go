package timesheet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/consultwithcase/portalsync/internal/apperr"
)

// TimeEntry is one unit of worked time, already normalized from a vendor shape.
type TimeEntry struct {
	Date            time.Time
	CategoryID      string
	DurationSeconds int64
	// Status is the vendor submission state, when the vendor reports one.
	Status string
}

// Period is a caller-supplied, inclusive date range. Timesheets maps category
// display names to summed seconds and is filled by Aggregate.
type Period struct {
	Title      string
	StartDate  time.Time
	EndDate    time.Time
	Timesheets map[string]int64
}

// Range returns the period's dates as a DateRange.
func (p Period) Range() DateRange {
	return DateRange{Start: p.StartDate, End: p.EndDate}
}

// Validate rejects periods whose start is after their end.
func (p Period) Validate() error {
	if p.StartDate.After(p.EndDate) {
		return apperr.InvalidInput("validate period", "period %q starts %s after it ends %s",
			p.Title, FormatDate(p.StartDate), FormatDate(p.EndDate))
	}
	return nil
}

type periodJSON struct {
	Title      string           `json:"title"`
	StartDate  string           `json:"startDate"`
	EndDate    string           `json:"endDate"`
	Timesheets map[string]int64 `json:"timesheets"`
}

// MarshalJSON writes dates as YYYY-MM-DD and always includes timesheets.
func (p Period) MarshalJSON() ([]byte, error) {
	ts := p.Timesheets
	if ts == nil {
		ts = map[string]int64{}
	}
	return json.Marshal(periodJSON{
		Title:      p.Title,
		StartDate:  FormatDate(p.StartDate),
		EndDate:    FormatDate(p.EndDate),
		Timesheets: ts,
	})
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (p *Period) UnmarshalJSON(data []byte) error {
	var raw periodJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := ParseDate(raw.StartDate)
	if err != nil {
		return fmt.Errorf("period %q: %w", raw.Title, err)
	}
	end, err := ParseDate(raw.EndDate)
	if err != nil {
		return fmt.Errorf("period %q: %w", raw.Title, err)
	}
	*p = Period{Title: raw.Title, StartDate: start, EndDate: end, Timesheets: raw.Timesheets}
	return nil
}

// MarshalJSON writes the range dates as YYYY-MM-DD.
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start string `json:"startDate"`
		End   string `json:"endDate"`
	}{FormatDate(r.Start), FormatDate(r.End)})
}

// MonthlyPeriods returns one period per calendar month touched by
// [start, end], titled YYYY-MM. The first and last periods are clipped to the
// range.
func MonthlyPeriods(start, end time.Time) ([]Period, error) {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return nil, apperr.InvalidInput("monthly periods", "start %s is after end %s", FormatDate(start), FormatDate(end))
	}
	var periods []Period
	for m := StartOfMonth(start); !m.After(end); m = m.AddDate(0, 1, 0) {
		p := Period{
			Title:     m.Format("2006-01"),
			StartDate: m,
			EndDate:   EndOfMonth(m),
		}
		if p.StartDate.Before(start) {
			p.StartDate = start
		}
		if p.EndDate.After(end) {
			p.EndDate = end
		}
		periods = append(periods, p)
	}
	return periods, nil
}

// Span returns the range from the earliest period start to the latest end.
func Span(periods []Period) (DateRange, error) {
	if len(periods) == 0 {
		return DateRange{}, apperr.InvalidInput("period span", "no periods given")
	}
	r := periods[0].Range()
	for _, p := range periods[1:] {
		if p.StartDate.Before(r.Start) {
			r.Start = p.StartDate
		}
		if p.EndDate.After(r.End) {
			r.End = p.EndDate
		}
	}
	return r, nil
}
