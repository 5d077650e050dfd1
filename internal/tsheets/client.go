// Package tsheets is a client for the QuickBooks Time (TSheets) REST API.
package tsheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/cache"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

const defaultBaseURL = "https://rest.tsheets.com/api/v1"

type Options struct {
	BaseURL  string
	CacheTTL time.Duration
	// NonBillableRoots are root jobcode IDs whose subtrees are non-billable.
	NonBillableRoots []string
	Clock            timesheet.Clock
	Location         *time.Location
}

type Client struct {
	token            string
	baseURL          string
	httpClient       *http.Client
	jobcodes         *cache.List[Jobcode]
	nonBillableRoots []string
	clock            timesheet.Clock
	loc              *time.Location
	logger           *slog.Logger
}

func NewClient(token string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Clock == nil {
		opts.Clock = timesheet.RealClock{}
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		jobcodes:         cache.NewList[Jobcode](opts.CacheTTL),
		nonBillableRoots: opts.NonBillableRoots,
		clock:            opts.Clock,
		loc:              opts.Location,
		logger:           logger,
	}
}

// Diagnostics describes the client for failure reports.
func (c *Client) Diagnostics(stage string) apperr.Diagnostics {
	return apperr.Diagnostics{Stage: stage, BaseURL: c.baseURL, Secret: c.token}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	c.logger.Debug("tsheets API request", "method", http.MethodGet, "path", path)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("API request transport error", "path", path, "error", err, "elapsed", time.Since(requestStart))
		return nil, apperr.VendorCallFailed("tsheets "+path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.VendorCallFailed("tsheets "+path, fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("tsheets API response", "path", path, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(requestStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("API request failed", "path", path, "status", resp.StatusCode, "response", truncate(string(respBody), 200))
		return nil, apperr.VendorCallFailed("tsheets "+path, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500)))
	}

	return respBody, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// UserData is a user with the jobcodes the API attached to it (PTO codes).
type UserData struct {
	User     User
	Jobcodes []Jobcode
}

// GetUser looks up the single user with the given employee number. Zero or
// several matches are InvalidInput errors.
func (c *Client) GetUser(ctx context.Context, employeeNumber int) (*UserData, error) {
	query := url.Values{"employee_numbers": {strconv.Itoa(employeeNumber)}}
	data, err := c.doRequest(ctx, "/users", query)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	var resp usersResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing users response: %w", err)
	}

	users := resp.Results.Users.values()
	switch len(users) {
	case 0:
		return nil, apperr.InvalidInput("get user", "invalid employee number: %d", employeeNumber)
	case 1:
	default:
		return nil, apperr.InvalidInput("get user", "employee number %d matches %d users", employeeNumber, len(users))
	}

	return &UserData{User: users[0], Jobcodes: resp.SupplementalData.Jobcodes.values()}, nil
}

// GetJobcodes returns every jobcode, following pages until the API reports
// no more.
func (c *Client) GetJobcodes(ctx context.Context) ([]Jobcode, error) {
	if cached, ok := c.jobcodes.Get(); ok {
		return cached, nil
	}

	var all []Jobcode
	for page := 1; ; page++ {
		query := url.Values{"page": {strconv.Itoa(page)}}
		data, err := c.doRequest(ctx, "/jobcodes", query)
		if err != nil {
			return nil, fmt.Errorf("getting jobcodes: %w", err)
		}

		var resp jobcodesResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parsing jobcodes response: %w", err)
		}

		all = append(all, resp.Results.Jobcodes.values()...)
		if !resp.More || len(resp.Results.Jobcodes) == 0 {
			break
		}
	}

	c.jobcodes.Set(all)
	return all, nil
}

// getTimesheetWindow fetches every page of timesheets in one date window.
func (c *Client) getTimesheetWindow(ctx context.Context, userID int64, window timesheet.DateRange) ([]Timesheet, error) {
	var all []Timesheet
	for page := 1; ; page++ {
		query := url.Values{
			"start_date": {timesheet.FormatDate(window.Start)},
			"end_date":   {timesheet.FormatDate(window.End)},
			"user_ids":   {strconv.FormatInt(userID, 10)},
			"page":       {strconv.Itoa(page)},
		}
		data, err := c.doRequest(ctx, "/timesheets", query)
		if err != nil {
			return nil, fmt.Errorf("getting timesheets %s..%s: %w",
				timesheet.FormatDate(window.Start), timesheet.FormatDate(window.End), err)
		}

		var resp timesheetsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parsing timesheets response: %w", err)
		}

		all = append(all, resp.Results.Timesheets.values()...)
		if !resp.More || len(resp.Results.Timesheets) == 0 {
			break
		}
	}
	return all, nil
}
