package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultwithcase/portalsync/internal/reminder"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleReport() *timesheet.Report {
	return &timesheet.Report{
		System:   "Unanet",
		Balances: map[string]float64{"PTO": 144000},
		Periods: []timesheet.Period{
			{
				Title:      "2024-03",
				StartDate:  date(2024, 3, 1),
				EndDate:    date(2024, 3, 31),
				Timesheets: map[string]int64{"ACME OY1": 28800, "Overhead": 5400},
			},
			{Title: "2024-04", StartDate: date(2024, 4, 1), EndDate: date(2024, 4, 30)},
		},
		Supplemental: timesheet.SupplementalData{
			NonBillables:  []string{"Overhead"},
			LeaveMappings: map[string]string{"PTO": "Paid Time Off"},
			Today:         3600,
			Future:        timesheet.FutureData{Days: 2, Duration: 57600},
		},
	}
}

func TestTimesheets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Timesheets(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "Unanet timesheets")
	assert.Contains(t, out, "2024-03  2024-03-01 to 2024-03-31")
	assert.Contains(t, out, "ACME OY1")
	assert.Contains(t, out, "8.00")
	assert.Contains(t, out, "1.50")
	assert.Contains(t, out, "non-billable")
	assert.Contains(t, out, "9.50")
	assert.Contains(t, out, "no time logged")
	assert.Contains(t, out, "Paid Time Off (PTO)")
	assert.Contains(t, out, "40.00")
	assert.Contains(t, out, "Future: 2 days, 16.00 h")
}

func TestJSONUsesWireNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "ptoBalances")
	assert.Contains(t, decoded, "timesheets")
	assert.Contains(t, decoded, "supplementalData")
}

func TestBatches(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Batches(&buf, []timesheet.DateRange{
		{Start: date(2024, 1, 1), End: date(2024, 3, 31)},
		{Start: date(2024, 4, 1), End: date(2024, 4, 10)},
	}))
	assert.Contains(t, buf.String(), "2024-04-10")
}

func TestDecisions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Decisions(&buf, nil))
	assert.Contains(t, buf.String(), "Not a reminder day")

	buf.Reset()
	period := timesheet.DateRange{Start: date(2024, 3, 1), End: date(2024, 3, 15)}
	require.NoError(t, Decisions(&buf, []reminder.Decision{
		{EmployeeNumber: 1, Cohort: store.CohortCASE, Period: period, HoursRequired: 88, HoursSubmitted: 80, ShouldRemind: true, Notified: true},
		{EmployeeNumber: 2, Cohort: store.CohortCASE, Period: period, HoursRequired: 88, HoursSubmitted: 88},
		{EmployeeNumber: 3, Cohort: store.CohortCYK, Period: period, Err: errors.New("vendor down")},
	}))
	out := buf.String()
	assert.Contains(t, out, "reminded")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "vendor down")
}

func TestEmployees(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Employees(&buf, []store.Employee{{
		EmployeeNumber: 7,
		FirstName:      "Ada",
		LastName:       "Lovelace",
		HireDate:       date(2020, 5, 1),
		WorkStatus:     100,
		Cohort:         store.CohortCASE,
		SMSOptedOut:    true,
	}}))
	out := buf.String()
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "2020-05-01")
	assert.Contains(t, out, "opted out")
}
