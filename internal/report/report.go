// Package report renders aggregated timesheets, reminder runs and employee
// lists for the terminal, or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/consultwithcase/portalsync/internal/reminder"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

// JSON writes v indented.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

func hours(seconds float64) string {
	return strconv.FormatFloat(seconds/3600, 'f', 2, 64)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// Timesheets writes one table per period with hours by category, then the
// balances and supplemental totals.
func Timesheets(w io.Writer, r *timesheet.Report) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(r.System+" timesheets") + "\n")

	for _, p := range r.Periods {
		b.WriteString("\n" + subtitleStyle.Render(fmt.Sprintf("%s  %s to %s",
			p.Title, timesheet.FormatDate(p.StartDate), timesheet.FormatDate(p.EndDate))) + "\n")

		if len(p.Timesheets) == 0 {
			b.WriteString(dimStyle.Render("  no time logged") + "\n")
			continue
		}

		names := make([]string, 0, len(p.Timesheets))
		for name := range p.Timesheets {
			names = append(names, name)
		}
		sort.Strings(names)

		t := newTable("Category", "Hours", "")
		var total int64
		for _, name := range names {
			secs := p.Timesheets[name]
			total += secs
			tag := ""
			if slices.Contains(r.Supplemental.NonBillables, name) {
				tag = "non-billable"
			}
			t.Row(name, hours(float64(secs)), tag)
		}
		t.Row("Total", hours(float64(total)), "")
		b.WriteString(t.Render() + "\n")
	}

	if len(r.Balances) > 0 {
		b.WriteString("\n" + subtitleStyle.Render("Balances") + "\n")
		keys := make([]string, 0, len(r.Balances))
		for k := range r.Balances {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		t := newTable("Leave", "Hours")
		for _, k := range keys {
			name := k
			if mapped := r.Supplemental.LeaveMappings[k]; mapped != "" {
				name = fmt.Sprintf("%s (%s)", mapped, k)
			}
			t.Row(name, hours(r.Balances[k]))
		}
		b.WriteString(t.Render() + "\n")
	}

	s := r.Supplemental
	summary := fmt.Sprintf("Today: %s h   Future: %d days, %s h",
		hours(float64(s.Today)), s.Future.Days, hours(float64(s.Future.Duration)))
	b.WriteString("\n" + boxStyle.Render(summary) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// Batches writes the query windows for a date range.
func Batches(w io.Writer, batches []timesheet.DateRange) error {
	t := newTable("#", "Start", "End")
	for i, b := range batches {
		t.Row(strconv.Itoa(i+1), timesheet.FormatDate(b.Start), timesheet.FormatDate(b.End))
	}
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

// Decisions writes the outcome of a reminder run.
func Decisions(w io.Writer, decisions []reminder.Decision) error {
	if len(decisions) == 0 {
		_, err := io.WriteString(w, dimStyle.Render("Not a reminder day; nobody evaluated.")+"\n")
		return err
	}

	t := newTable("Employee", "Cohort", "Period", "Required", "Submitted", "Result")
	for _, d := range decisions {
		var result string
		switch {
		case d.Err != nil:
			result = errorStyle.Render("error: " + d.Err.Error())
		case d.Notified:
			result = warningStyle.Render("reminded")
		case d.ShouldRemind:
			result = warningStyle.Render("behind")
		default:
			result = successStyle.Render("ok")
		}
		t.Row(
			strconv.Itoa(d.EmployeeNumber),
			d.Cohort,
			timesheet.FormatDate(d.Period.Start)+" to "+timesheet.FormatDate(d.Period.End),
			strconv.FormatFloat(d.HoursRequired, 'f', 2, 64),
			strconv.FormatFloat(d.HoursSubmitted, 'f', 2, 64),
			result,
		)
	}
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

// Employees writes the employee records.
func Employees(w io.Writer, employees []store.Employee) error {
	t := newTable("Number", "Name", "Cohort", "FTE %", "Hired", "Phone", "SMS")
	for _, e := range employees {
		hired := ""
		if !e.HireDate.IsZero() {
			hired = timesheet.FormatDate(e.HireDate)
		}
		sms := "yes"
		if e.SMSOptedOut {
			sms = "opted out"
		}
		t.Row(strconv.Itoa(e.EmployeeNumber), e.Name(), e.Cohort, strconv.Itoa(e.WorkStatus), hired, e.PhoneNumber, sms)
	}
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

// Reminders writes logged reminder evaluations, newest first.
func Reminders(w io.Writer, logs []store.ReminderLog) error {
	t := newTable("When", "Employee", "Day", "Period", "Required", "Submitted", "Notified", "Error")
	for _, l := range logs {
		notified := ""
		if l.Notified {
			notified = "yes"
		}
		t.Row(
			l.CreatedAt.Format("2006-01-02 15:04"),
			strconv.Itoa(l.EmployeeNumber),
			strconv.Itoa(l.ReminderDay),
			timesheet.FormatDate(l.PeriodStart)+" to "+timesheet.FormatDate(l.PeriodEnd),
			strconv.FormatFloat(l.HoursRequired, 'f', 2, 64),
			strconv.FormatFloat(l.HoursSubmitted, 'f', 2, 64),
			notified,
			l.Error,
		)
	}
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}
