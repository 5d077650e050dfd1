package unanet

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

// endOfTime is the end date Unanet gives open-ended leave projects.
const endOfTime = "2099-12-31"

// PersonUpdater saves a resolved person key on the employee record.
type PersonUpdater interface {
	Update(ctx context.Context, id, field string, value any) error
}

// PersonKey looks up the Unanet person whose first ID code is the employee
// number. Zero or several matches are InvalidInput.
func (c *Client) PersonKey(ctx context.Context, employeeNumber int) (string, error) {
	var resp peopleResponse
	body := map[string]any{"idCode1": employeeNumber}
	if err := c.call(ctx, http.MethodPost, "/rest/people/search", body, &resp); err != nil {
		return "", fmt.Errorf("searching people: %w", err)
	}
	if len(resp.Items) != 1 {
		return "", apperr.InvalidInput("unanet person key",
			"could not distinguish Unanet employee %d (%d options)", employeeNumber, len(resp.Items))
	}
	return resp.Items[0].Key.String(), nil
}

// ResolvePersonKey returns emp's stored person key, or looks it up and saves
// it on the employee record for next time.
func (c *Client) ResolvePersonKey(ctx context.Context, emp store.Employee, updater PersonUpdater) (string, error) {
	if emp.UnanetPersonKey != "" {
		return emp.UnanetPersonKey, nil
	}
	key, err := c.PersonKey(ctx, emp.EmployeeNumber)
	if err != nil {
		return "", err
	}
	if updater != nil && emp.ID != "" {
		if err := updater.Update(ctx, emp.ID, "unanet_person_key", key); err != nil {
			return "", fmt.Errorf("saving person key: %w", err)
		}
		c.logger.Info("saved unanet person key", "employee_number", emp.EmployeeNumber)
	}
	return key, nil
}

// SearchTime lists personKey's timesheets beginning within [start, end].
// When statuses is set only timesheets in one of them are kept.
func (c *Client) SearchTime(ctx context.Context, personKey string, start, end time.Time, statuses []string) ([]TimeSummary, error) {
	body := map[string]any{
		"personKeys":     []string{personKey},
		"beginDateStart": timesheet.FormatDate(start),
		"beginDateEnd":   timesheet.FormatDate(end),
	}
	var resp timeSearchResponse
	if err := c.call(ctx, http.MethodPost, "/rest/time/search", body, &resp); err != nil {
		return nil, fmt.Errorf("searching time: %w", err)
	}
	if len(statuses) == 0 {
		return resp.Items, nil
	}
	kept := resp.Items[:0]
	for _, ts := range resp.Items {
		for _, s := range statuses {
			if ts.Status == s {
				kept = append(kept, ts)
				break
			}
		}
	}
	return kept, nil
}

// GetTimesheets loads every summary's full timesheet, all at once.
func (c *Client) GetTimesheets(ctx context.Context, summaries []TimeSummary) ([]Timesheet, error) {
	sheets := make([]Timesheet, len(summaries))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range summaries {
		g.Go(func() error {
			path := "/rest/time/" + url.PathEscape(s.Key.String())
			if err := c.call(gctx, http.MethodGet, path, nil, &sheets[i]); err != nil {
				return fmt.Errorf("getting timesheet %s: %w", s.Key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sheets, nil
}

// Entries converts the slips of sheets that fall inside one of periods.
// Zero-hour slips are skipped. Slips are filed under their raw project and
// task; the returned catalog carries the project type for classification.
func Entries(sheets []Timesheet, periods []timesheet.Period) ([]timesheet.TimeEntry, timesheet.Catalog, error) {
	catalog := timesheet.Catalog{}
	var entries []timesheet.TimeEntry
	seen := make(map[string]bool)
	for _, sheet := range sheets {
		key := sheet.Key.String()
		if key != "" && seen[key] {
			continue
		}
		seen[key] = true

		for _, slip := range sheet.Timeslips {
			secs := timesheet.HoursToSeconds(float64(slip.HoursWorked))
			if secs == 0 {
				continue
			}
			date, err := timesheet.ParseDate(slip.WorkDate)
			if err != nil {
				return nil, nil, fmt.Errorf("timesheet %s: %w", key, err)
			}
			if !inAny(date, periods) {
				continue
			}

			var project, task string
			if slip.Project != nil {
				project = slip.Project.Name
			}
			if slip.Task != nil {
				task = slip.Task.Name
			}
			id := project + "\x1f" + task
			catalog[id] = timesheet.Category{
				ID:          id,
				Kind:        timesheet.KindRegular,
				Name:        project,
				Task:        task,
				ProjectCode: true,
				ProjectType: slip.ProjectType.Name,
			}
			entries = append(entries, timesheet.TimeEntry{
				Date:            date,
				CategoryID:      id,
				DurationSeconds: secs,
				Status:          sheet.Status,
			})
		}
	}
	return entries, catalog, nil
}

func inAny(day time.Time, periods []timesheet.Period) bool {
	for _, p := range periods {
		if p.Range().Contains(day) {
			return true
		}
	}
	return false
}

func (c *Client) leave(ctx context.Context, personKey, start, end string) ([]LeaveItem, error) {
	body := map[string]any{
		"dateRange": map[string]string{"rangeStart": start, "rangeEnd": end},
	}
	var resp leaveResponse
	path := "/rest/people/" + url.PathEscape(personKey) + "/leave"
	if err := c.call(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("getting leave %s..%s: %w", start, end, err)
	}
	return resp.Items, nil
}

// LeaveBalances returns personKey's remaining leave in seconds keyed by leave
// code: this year's budget minus this month's actuals. Leave projects whose
// dates differ from the calendar year are refetched over their own range to
// get the right budget. The returned supplemental data maps codes to names.
func (c *Client) LeaveBalances(ctx context.Context, personKey string) (map[string]float64, timesheet.SupplementalData, error) {
	today := timesheet.Today(c.clock, c.loc)
	yearStart := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(today.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	ys, ye := timesheet.FormatDate(yearStart), timesheet.FormatDate(yearEnd)

	var basic, actuals []LeaveItem
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		basic, err = c.leave(gctx, personKey, ys, ye)
		return err
	})
	g.Go(func() error {
		var err error
		actuals, err = c.leave(gctx, personKey, timesheet.FormatDate(timesheet.StartOfMonth(today)), timesheet.FormatDate(today))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, timesheet.SupplementalData{}, err
	}

	var oddballs []LeaveItem
	for _, item := range basic {
		if item.BeginDate != ys || (item.EndDate != ye && item.EndDate != endOfTime) {
			oddballs = append(oddballs, item)
		}
	}
	budgets := make([]*number, len(oddballs))
	g, gctx = errgroup.WithContext(ctx)
	for i, item := range oddballs {
		g.Go(func() error {
			items, err := c.leave(gctx, personKey, item.BeginDate, item.EndDate)
			if err != nil {
				return err
			}
			for _, it := range items {
				if it.Project.Code == item.Project.Code {
					b := it.Budget
					budgets[i] = &b
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, timesheet.SupplementalData{}, err
	}
	oddBudget := make(map[string]number, len(oddballs))
	for i, item := range oddballs {
		if budgets[i] != nil {
			oddBudget[item.Project.Code] = *budgets[i]
		}
	}

	balances := make(map[string]float64, len(basic))
	mappings := make(map[string]string, len(basic))
	for _, item := range basic {
		budget := item.Budget
		if b, ok := oddBudget[item.Project.Code]; ok {
			budget = b
		}
		mappings[item.Project.Code] = item.Project.Name
		balances[item.Project.Code] = float64(budget) * 3600
	}
	for _, item := range actuals {
		code := item.Project.Code
		balances[code] = roundMillis(balances[code] - float64(item.Actuals)*3600)
	}

	planable := make(map[string]string, len(c.planable))
	for k, v := range c.planable {
		planable[k] = v
	}
	return balances, timesheet.SupplementalData{
		NonBillables:  []string{},
		LeaveMappings: mappings,
		PlanableKeys:  planable,
	}, nil
}

func roundMillis(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// FetchTimesheets aggregates personKey's timesheets into the requested
// periods and attaches leave balances. Time is searched from the start of
// the first period's month because Unanet timesheets begin on month or
// half-month boundaries.
func (c *Client) FetchTimesheets(ctx context.Context, personKey string, req timesheet.Request) (*timesheet.Report, error) {
	periods, span, err := req.ResolvePeriods()
	if err != nil {
		return nil, err
	}
	if _, err := c.authToken(ctx); err != nil {
		return nil, err
	}

	var (
		sheets    []Timesheet
		balances  map[string]float64
		leaveSupp timesheet.SupplementalData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balances, leaveSupp, err = c.LeaveBalances(gctx, personKey)
		return err
	})
	if !req.OnlyPTO {
		g.Go(func() error {
			summaries, err := c.SearchTime(gctx, personKey, timesheet.StartOfMonth(span.Start), span.End, req.Statuses)
			if err != nil {
				return err
			}
			sheets, err = c.GetTimesheets(gctx, summaries)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &timesheet.Report{
		System:       System,
		Balances:     balances,
		Supplemental: leaveSupp,
	}
	if req.OnlyPTO {
		return report, nil
	}

	entries, catalog, err := Entries(sheets, periods)
	if err != nil {
		return nil, err
	}
	var timeSupp timesheet.SupplementalData
	report.Periods, timeSupp, err = timesheet.Aggregate(entries, periods, timesheet.Options{
		Catalog:    catalog,
		Classifier: timesheet.AllowList{Catalog: catalog, Billable: c.billable},
		Today:      timesheet.Today(c.clock, c.loc),
	})
	if err != nil {
		return nil, err
	}
	report.Supplemental = timesheet.MergeSupplementalData(timeSupp, leaveSupp)
	c.logger.Info("fetched unanet timesheets", "timesheets", len(sheets), "entries", len(entries))
	return report, nil
}
