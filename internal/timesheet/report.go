package timesheet

import (
	"slices"
	"strings"
	"time"
)

// Request describes one vendor fetch. When Periods is empty the Start..End
// range is split into monthly periods.
type Request struct {
	Periods []Period
	Start   time.Time
	End     time.Time
	// Statuses, when set, keeps only entries whose status is listed.
	Statuses []string
	// OnlyPTO skips timesheet aggregation and returns balances only.
	OnlyPTO bool
}

// ResolvePeriods returns the request's periods and the range spanning them.
func (r Request) ResolvePeriods() ([]Period, DateRange, error) {
	periods := r.Periods
	if len(periods) == 0 {
		var err error
		periods, err = MonthlyPeriods(r.Start, r.End)
		if err != nil {
			return nil, DateRange{}, err
		}
	}
	for _, p := range periods {
		if err := p.Validate(); err != nil {
			return nil, DateRange{}, err
		}
	}
	span, err := Span(periods)
	if err != nil {
		return nil, DateRange{}, err
	}
	return periods, DateRange{Start: Day(span.Start), End: Day(span.End)}, nil
}

// Report is the result of one vendor fetch. Balances are in seconds, keyed
// by leave or PTO name.
type Report struct {
	System       string             `json:"system"`
	Balances     map[string]float64 `json:"ptoBalances"`
	Periods      []Period           `json:"timesheets"`
	Supplemental SupplementalData   `json:"supplementalData"`
}

// FilterStatus keeps entries whose status matches one of statuses, ignoring
// case. An empty filter keeps everything.
func FilterStatus(entries []TimeEntry, statuses []string) []TimeEntry {
	if len(statuses) == 0 {
		return entries
	}
	out := make([]TimeEntry, 0, len(entries))
	for _, e := range entries {
		if slices.ContainsFunc(statuses, func(s string) bool { return strings.EqualFold(s, e.Status) }) {
			out = append(out, e)
		}
	}
	return out
}

// MergeReports sums several vendors' reports over the same periods. Period
// totals are added by category name, balances are added by key, and
// supplemental data is merged with MergeSupplementalData.
func MergeReports(reports ...Report) Report {
	merged := Report{Balances: map[string]float64{}}
	var systems []string
	var supps []SupplementalData
	for _, r := range reports {
		if r.System != "" {
			systems = append(systems, r.System)
		}
		for k, v := range r.Balances {
			merged.Balances[k] += v
		}
		supps = append(supps, r.Supplemental)
		for _, p := range r.Periods {
			i := slices.IndexFunc(merged.Periods, func(q Period) bool {
				return q.Title == p.Title && q.StartDate.Equal(p.StartDate) && q.EndDate.Equal(p.EndDate)
			})
			if i < 0 {
				merged.Periods = append(merged.Periods, Period{
					Title: p.Title, StartDate: p.StartDate, EndDate: p.EndDate,
					Timesheets: map[string]int64{},
				})
				i = len(merged.Periods) - 1
			}
			for name, secs := range p.Timesheets {
				merged.Periods[i].Timesheets[name] += secs
			}
		}
	}
	merged.System = strings.Join(systems, "+")
	merged.Supplemental = MergeSupplementalData(supps...)
	return merged
}
