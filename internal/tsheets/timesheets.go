package tsheets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/consultwithcase/portalsync/internal/reminder"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

// System names TSheets in reports.
const System = "TSheets"

// GetTimesheets fetches a user's timesheets for [start, end], one request
// group per date batch, all batches in flight at once. Any failed batch fails
// the whole call.
func (c *Client) GetTimesheets(ctx context.Context, userID int64, start, end time.Time) ([]Timesheet, error) {
	batches, err := timesheet.BatchDateRange(start, end, timesheet.Today(c.clock, c.loc))
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetching timesheets", "user_id", userID, "batches", len(batches))

	results := make([][]Timesheet, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		g.Go(func() error {
			ts, err := c.getTimesheetWindow(gctx, userID, batch)
			if err != nil {
				return err
			}
			results[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Timesheet
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// Catalog converts jobcodes to categories.
func Catalog(jobcodes []Jobcode) timesheet.Catalog {
	catalog := make(timesheet.Catalog, len(jobcodes))
	for _, j := range jobcodes {
		kind := timesheet.KindRegular
		if j.Type == "pto" {
			kind = timesheet.KindPTO
		}
		id := strconv.FormatInt(j.ID, 10)
		catalog[id] = timesheet.Category{
			ID:       id,
			ParentID: strconv.FormatInt(j.ParentID, 10),
			Kind:     kind,
			Name:     j.Name,
		}
	}
	return catalog
}

// Entries converts timesheets to time entries. Unparseable dates are errors.
func Entries(timesheets []Timesheet) ([]timesheet.TimeEntry, error) {
	entries := make([]timesheet.TimeEntry, 0, len(timesheets))
	for _, ts := range timesheets {
		date, err := timesheet.ParseDate(ts.Date)
		if err != nil {
			return nil, fmt.Errorf("timesheet %d: %w", ts.ID, err)
		}
		entries = append(entries, timesheet.TimeEntry{
			Date:            date,
			CategoryID:      strconv.FormatInt(ts.JobcodeID, 10),
			DurationSeconds: ts.Duration,
			Status:          ts.State,
		})
	}
	return entries, nil
}

// FetchTimesheets resolves the employee, then loads jobcodes and timesheets
// concurrently and aggregates them into the requested periods.
func (c *Client) FetchTimesheets(ctx context.Context, employeeNumber int, req timesheet.Request) (*timesheet.Report, error) {
	periods, span, err := req.ResolvePeriods()
	if err != nil {
		return nil, err
	}

	user, err := c.GetUser(ctx, employeeNumber)
	if err != nil {
		return nil, err
	}

	var (
		jobcodes   []Jobcode
		timesheets []Timesheet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobcodes, err = c.GetJobcodes(gctx)
		return err
	})
	if !req.OnlyPTO {
		g.Go(func() error {
			var err error
			timesheets, err = c.GetTimesheets(gctx, user.User.ID, span.Start, span.End)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog := Catalog(jobcodes).Merge(Catalog(user.Jobcodes))
	report := &timesheet.Report{
		System:   System,
		Balances: make(map[string]float64, len(user.User.PTOBalances)),
		Supplemental: timesheet.SupplementalData{
			NonBillables: []string{},
		},
	}
	for id, secs := range user.User.PTOBalances {
		report.Balances[timesheet.DisplayName(id, catalog)] = float64(secs)
	}
	if req.OnlyPTO {
		return report, nil
	}

	entries, err := Entries(timesheets)
	if err != nil {
		return nil, err
	}
	entries = timesheet.FilterStatus(entries, req.Statuses)

	report.Periods, report.Supplemental, err = timesheet.Aggregate(entries, periods, timesheet.Options{
		Catalog:    catalog,
		Classifier: timesheet.NewParentChain(catalog, c.nonBillableRoots...),
		Today:      timesheet.Today(c.clock, c.loc),
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("fetched tsheets timesheets", "employee_number", employeeNumber,
		"entries", len(entries), "periods", len(report.Periods))
	return report, nil
}

// HoursSubmitted sums the employee's approved or submitted hours in period.
func (c *Client) HoursSubmitted(ctx context.Context, emp store.Employee, period timesheet.DateRange) (float64, error) {
	userID, err := strconv.ParseInt(emp.TSheetsUserID, 10, 64)
	if emp.TSheetsUserID == "" || err != nil {
		user, err := c.GetUser(ctx, emp.EmployeeNumber)
		if err != nil {
			return 0, err
		}
		userID = user.User.ID
	}

	timesheets, err := c.GetTimesheets(ctx, userID, period.Start, period.End)
	if err != nil {
		return 0, err
	}
	entries, err := Entries(timesheets)
	if err != nil {
		return 0, err
	}
	return reminder.HoursSubmitted(entries), nil
}

var _ reminder.HoursSource = (*Client)(nil)
