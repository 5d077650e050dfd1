// Package periods builds the date periods timesheets are aggregated into:
// calendar months, CYK pay periods, or events read from an iCalendar feed.
package periods

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/reminder"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

const prodID = "-//consultwithcase//portalsync//EN"

// Loader reads periods from an iCalendar file or URL.
type Loader struct {
	HTTPClient *http.Client
	// Location interprets floating event times; nil means UTC.
	Location *time.Location
}

// Load returns one period per titled event in source overlapping window,
// ordered by start date.
func (l Loader) Load(ctx context.Context, source string, window timesheet.DateRange) ([]timesheet.Period, error) {
	var r io.ReadCloser

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		client := l.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("calendar fetch returned status %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening calendar file: %w", err)
		}
		r = f
	}
	defer r.Close()

	return Parse(r, window, l.Location)
}

// Parse decodes every calendar in r. All-day events end the day before
// their exclusive DTEND; timed events end on the day of DTEND. Events with
// no summary or unreadable dates are skipped.
func Parse(r io.Reader, window timesheet.DateRange, loc *time.Location) ([]timesheet.Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	dec := ical.NewDecoder(r)
	var out []timesheet.Period

	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing calendar: %w", err)
		}

		for _, component := range cal.Children {
			if component.Name != ical.CompEvent {
				continue
			}
			event := ical.Event{Component: component}

			summary, _ := event.Props.Text(ical.PropSummary)
			if summary == "" {
				continue
			}
			start, err := event.DateTimeStart(loc)
			if err != nil {
				continue
			}
			end, err := event.DateTimeEnd(loc)
			if err != nil {
				continue
			}

			first := timesheet.Day(start.In(loc))
			last := timesheet.Day(end.In(loc))
			if isAllDay(event) && last.After(first) {
				last = last.AddDate(0, 0, -1)
			}
			p := timesheet.Period{Title: summary, StartDate: first, EndDate: last}
			if !p.EndDate.Before(window.Start) && !p.StartDate.After(window.End) {
				out = append(out, p)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func isAllDay(event ical.Event) bool {
	prop := event.Props.Get(ical.PropDateTimeStart)
	return prop != nil && prop.ValueType() == ical.ValueDate
}

// Monthly returns one period per calendar month of window.
func Monthly(window timesheet.DateRange) ([]timesheet.Period, error) {
	return timesheet.MonthlyPeriods(window.Start, window.End)
}

// PayPeriods returns every CYK pay period overlapping window, titled by
// their date range.
func PayPeriods(cal reminder.Calendar, window timesheet.DateRange) ([]timesheet.Period, error) {
	if window.Start.After(window.End) {
		return nil, apperr.InvalidInput("pay periods", "start %s is after end %s",
			timesheet.FormatDate(window.Start), timesheet.FormatDate(window.End))
	}
	var out []timesheet.Period
	for r := cal.CykPeriod(window.Start); !r.Start.After(window.End); r = cal.CykPeriod(r.End.AddDate(0, 0, 1)) {
		out = append(out, timesheet.Period{
			Title:     timesheet.FormatDate(r.Start) + " to " + timesheet.FormatDate(r.End),
			StartDate: r.Start,
			EndDate:   r.End,
		})
	}
	return out, nil
}

// Encode writes periods as all-day events, so a period list can be shared
// as a calendar feed and read back with Parse.
func Encode(w io.Writer, periods []timesheet.Period, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)

	for _, p := range periods {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%s@portalsync", timesheet.FormatDate(p.StartDate), timesheet.FormatDate(p.EndDate)))
		event.Props.SetText(ical.PropSummary, p.Title)

		stamp := ical.NewProp(ical.PropDateTimeStamp)
		stamp.SetDateTime(now.UTC())
		event.Props.Set(stamp)

		start := ical.NewProp(ical.PropDateTimeStart)
		start.SetDate(p.StartDate)
		event.Props.Set(start)

		end := ical.NewProp(ical.PropDateTimeEnd)
		end.SetDate(p.EndDate.AddDate(0, 0, 1))
		event.Props.Set(end)

		cal.Children = append(cal.Children, event.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}
