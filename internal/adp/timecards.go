package adp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/reminder"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

const (
	// System names ADP in reports.
	System = "ADP"

	// queryMargin widens time-card queries: ADP matches on the card's pay
	// period, which can start before or end after the requested dates.
	queryMargin = 15

	regularPayCode = "Regular"
	ptoPayCode     = "Paid Time Off"
	ptoName        = "PTO"
	employeeField  = "Int Comp ID"
)

// GetTimeCards fetches aoid's time cards for [start, end] in date batches,
// all in flight at once, and drops duplicate cards returned by overlapping
// queries.
func (c *Client) GetTimeCards(ctx context.Context, aoid string, start, end time.Time) ([]TimeCard, error) {
	batches, err := timesheet.BatchDateRange(start, end, timesheet.Today(c.clock, c.loc))
	if err != nil {
		return nil, err
	}

	results := make([][]TimeCard, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		g.Go(func() error {
			cards, err := c.timeCardWindow(gctx, aoid, batch)
			if err != nil {
				return err
			}
			results[i] = cards
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dedupe(results...), nil
}

// dedupe keeps the first card seen for each time card ID.
func dedupe(batches ...[]TimeCard) []TimeCard {
	seen := make(map[string]bool)
	var cards []TimeCard
	for _, batch := range batches {
		for _, card := range batch {
			if seen[card.TimeCardID] {
				continue
			}
			seen[card.TimeCardID] = true
			cards = append(cards, card)
		}
	}
	return cards
}

func (c *Client) timeCardWindow(ctx context.Context, aoid string, window timesheet.DateRange) ([]TimeCard, error) {
	from := timesheet.FormatDate(window.Start.AddDate(0, 0, -queryMargin))
	to := timesheet.FormatDate(window.End.AddDate(0, 0, queryMargin))
	query := url.Values{"$filter": {fmt.Sprintf(
		"timeCards/timePeriod/startDate ge '%s' and timeCards/timePeriod/endDate le '%s'", from, to)}}

	var resp timeCardsResponse
	path := "/time/v2/workers/" + url.PathEscape(aoid) + "/time-cards"
	if err := c.getJSON(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("getting time cards %s..%s: %w", from, to, err)
	}
	return resp.TimeCards, nil
}

// Entries flattens time cards into entries. Regular hours are filed under
// the card's last home labor allocation code; every other pay code is its
// own non-billable category. The returned catalog describes each category
// and nonBillable lists the pay-code categories. Daily totals carry no
// approval state, so entries have an empty Status.
func Entries(cards []TimeCard) (entries []timesheet.TimeEntry, catalog timesheet.Catalog, nonBillable []string, err error) {
	catalog = timesheet.Catalog{}
	seen := make(map[string]bool)
	for _, card := range cards {
		regular := regularPayCode
		if n := len(card.HomeLaborAllocations); n > 0 && card.HomeLaborAllocations[n-1].AllocationCode.CodeValue != "" {
			regular = card.HomeLaborAllocations[n-1].AllocationCode.CodeValue
		}

		for _, dt := range card.DailyTotals {
			code := dt.PayCode.ShortName
			kind := timesheet.KindRegular
			switch code {
			case regularPayCode:
				code = regular
			case ptoPayCode:
				code = ptoName
				kind = timesheet.KindPTO
			default:
				kind = timesheet.KindOther
			}
			if code != regular && !seen[code] {
				seen[code] = true
				nonBillable = append(nonBillable, code)
			}
			catalog[code] = timesheet.Category{ID: code, Kind: kind, Name: code}

			date, err := timesheet.ParseDate(dt.EntryDate)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("time card %s: %w", card.TimeCardID, err)
			}
			secs, err := timesheet.ParseDuration(dt.TimeDuration)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("time card %s: %w", card.TimeCardID, err)
			}
			entries = append(entries, timesheet.TimeEntry{
				Date:            date,
				CategoryID:      code,
				DurationSeconds: secs,
			})
		}
	}
	return entries, catalog, nonBillable, nil
}

// GetBalances returns aoid's time-off policy balances in seconds, keyed by
// policy name. A policy with no quantity is unlimited and reported as 0.
func (c *Client) GetBalances(ctx context.Context, aoid string) (map[string]float64, error) {
	var resp timeOffBalancesResponse
	path := "/time/v3/workers/" + url.PathEscape(aoid) + "/time-off-balances"
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("getting time-off balances: %w", err)
	}

	balances := make(map[string]float64)
	if len(resp.TimeOffBalances) == 0 {
		return balances, nil
	}
	for _, b := range resp.TimeOffBalances[0].TimeOffPolicyBalances {
		var hours float64
		if len(b.PolicyBalances) > 0 && b.PolicyBalances[0].TotalQuantity != nil {
			hours = b.PolicyBalances[0].TotalQuantity.QuantityValue
		}
		balances[b.TimeOffPolicyCode.ShortName] = hours * 3600
	}
	return balances, nil
}

// FetchTimesheets aggregates aoid's time cards into the requested periods
// and attaches time-off balances. Cards and balances load concurrently.
func (c *Client) FetchTimesheets(ctx context.Context, aoid string, req timesheet.Request) (*timesheet.Report, error) {
	periods, span, err := req.ResolvePeriods()
	if err != nil {
		return nil, err
	}

	var (
		cards    []TimeCard
		balances map[string]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balances, err = c.GetBalances(gctx, aoid)
		return err
	})
	if !req.OnlyPTO {
		g.Go(func() error {
			var err error
			cards, err = c.GetTimeCards(gctx, aoid, span.Start, span.End)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &timesheet.Report{
		System:       System,
		Balances:     balances,
		Supplemental: timesheet.SupplementalData{NonBillables: []string{}},
	}
	if req.OnlyPTO {
		return report, nil
	}

	entries, catalog, nonBillable, err := Entries(cards)
	if err != nil {
		return nil, err
	}
	if len(req.Statuses) > 0 {
		c.logger.Debug("adp time cards have no status; ignoring status filter", "statuses", req.Statuses)
	}

	report.Periods, report.Supplemental, err = timesheet.Aggregate(entries, periods, timesheet.Options{
		Catalog:    catalog,
		Classifier: timesheet.NewParentChain(catalog, nonBillable...),
		Today:      timesheet.Today(c.clock, c.loc),
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("fetched adp time cards", "aoid", aoid, "cards", len(cards), "entries", len(entries))
	return report, nil
}

// GetWorkers returns every active worker. The list is cached.
func (c *Client) GetWorkers(ctx context.Context) ([]Worker, error) {
	if cached, ok := c.workers.Get(); ok {
		return cached, nil
	}

	query := url.Values{
		"$top":    {"5000"},
		"$select": {"workers/associateOID,workers/workerStatus,workers/customFieldGroup/stringFields"},
	}
	var resp workersResponse
	if err := c.getJSON(ctx, "/hr/v2/workers", query, &resp); err != nil {
		return nil, fmt.Errorf("getting workers: %w", err)
	}

	active := make([]Worker, 0, len(resp.Workers))
	for _, w := range resp.Workers {
		if w.Active() {
			active = append(active, w)
		}
	}
	c.workers.Set(active)
	return active, nil
}

// ResolveAOID finds the associate OID of the active worker whose employee
// number custom field matches. A miss refetches the worker list once, since
// the cached list predates new hires. Zero or several matches are
// InvalidInput.
func (c *Client) ResolveAOID(ctx context.Context, employeeNumber int) (string, error) {
	want := strconv.Itoa(employeeNumber)
	matches, err := c.matchWorkers(ctx, want)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		c.logger.Debug("employee not in cached workers; refetching", "employee_number", employeeNumber)
		c.workers.Invalidate()
		if matches, err = c.matchWorkers(ctx, want); err != nil {
			return "", err
		}
	}
	if len(matches) != 1 {
		return "", apperr.InvalidInput("resolve aoid", "employee number %d matches %d ADP workers", employeeNumber, len(matches))
	}
	return matches[0], nil
}

func (c *Client) matchWorkers(ctx context.Context, employeeNumber string) ([]string, error) {
	workers, err := c.GetWorkers(ctx)
	if err != nil {
		return nil, err
	}
	var matches []string
	for _, w := range workers {
		if v, ok := w.StringField(employeeField); ok && v == employeeNumber {
			matches = append(matches, w.AssociateOID)
		}
	}
	return matches, nil
}

// HoursSubmitted sums the hours on emp's time cards dated inside period.
// Every daily total counts: a time card is submitted once it exists.
func (c *Client) HoursSubmitted(ctx context.Context, emp store.Employee, period timesheet.DateRange) (float64, error) {
	aoid := emp.ADPAOID
	if aoid == "" {
		var err error
		if aoid, err = c.ResolveAOID(ctx, emp.EmployeeNumber); err != nil {
			return 0, err
		}
	}

	cards, err := c.timeCardWindow(ctx, aoid, period)
	if err != nil {
		return 0, err
	}
	entries, _, _, err := Entries(dedupe(cards))
	if err != nil {
		return 0, err
	}

	var seconds int64
	for _, e := range entries {
		if period.Contains(e.Date) {
			seconds += e.DurationSeconds
		}
	}
	return timesheet.SecondsToHours(seconds), nil
}

var _ reminder.HoursSource = (*Client)(nil)
