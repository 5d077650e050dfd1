// Package unanet is a client for the Unanet platform REST API.
package unanet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/secrets"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

const (
	// System names Unanet in reports.
	System = "Unanet"

	// LoginSecret holds {"username": ..., "password": ...}.
	LoginSecret = "/Unanet/login"

	stageProd = "prod"
)

// DefaultBillableProjectTypes are the project types whose hours are billable.
var DefaultBillableProjectTypes = []string{"BILL_SVCS"}

// DefaultPlanableKeys maps leave names to the codes usable for planning.
var DefaultPlanableKeys = map[string]string{"PTO": "PTO", "Holiday": "HOLIDAY"}

// BaseURLForStage returns the production platform URL for the prod stage
// and the sandbox URL otherwise.
func BaseURLForStage(stage string) string {
	suffix := "-sand"
	if stage == stageProd {
		suffix = ""
	}
	return fmt.Sprintf("https://consultwithcase%s.unanet.biz/platform", suffix)
}

type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoadLogin reads the API account's login from the secret store.
func LoadLogin(ctx context.Context, s secrets.Store) (Login, error) {
	raw, err := s.Get(ctx, LoginSecret)
	if err != nil {
		return Login{}, fmt.Errorf("loading unanet login: %w", err)
	}
	var l Login
	if err := json.Unmarshal([]byte(raw), &l); err != nil || l.Username == "" || l.Password == "" {
		return Login{}, apperr.Configuration("load unanet login", "could not get login info from %s", LoginSecret)
	}
	return l, nil
}

type Options struct {
	BaseURL              string
	BillableProjectTypes []string
	PlanableKeys         map[string]string
	Clock                timesheet.Clock
	Location             *time.Location
}

type Client struct {
	baseURL    string
	login      Login
	httpClient *http.Client
	billable   []string
	planable   map[string]string
	clock      timesheet.Clock
	loc        *time.Location
	logger     *slog.Logger

	mu    sync.Mutex
	token string
}

func NewClient(login Login, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURLForStage("")
	}
	if len(opts.BillableProjectTypes) == 0 {
		opts.BillableProjectTypes = DefaultBillableProjectTypes
	}
	if opts.PlanableKeys == nil {
		opts.PlanableKeys = DefaultPlanableKeys
	}
	if opts.Clock == nil {
		opts.Clock = timesheet.RealClock{}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		login:   login,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		billable: opts.BillableProjectTypes,
		planable: opts.PlanableKeys,
		clock:    opts.Clock,
		loc:      opts.Location,
		logger:   logger,
	}
}

// Diagnostics describes the client for failure reports.
func (c *Client) Diagnostics(stage string) apperr.Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return apperr.Diagnostics{Stage: stage, BaseURL: c.baseURL, Secret: c.token}
}

// Login exchanges the username and password for an API token.
func (c *Client) Login(ctx context.Context) error {
	var resp loginResponse
	if err := c.doRequest(ctx, http.MethodPost, "/rest/login", "", c.login, &resp); err != nil {
		return fmt.Errorf("login to Unanet failed: %w", err)
	}
	if resp.Token == "" {
		return apperr.VendorCallFailed("unanet /rest/login", errors.New("login returned no token"))
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

// authToken logs in on first use.
func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	token, err := c.authToken(ctx)
	if err != nil {
		return err
	}
	return c.doRequest(ctx, method, path, token, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("unanet API request", "method", method, "path", path)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("API request transport error", "method", method, "path", path, "error", err, "elapsed", time.Since(requestStart))
		return apperr.VendorCallFailed("unanet "+path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.VendorCallFailed("unanet "+path, fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("unanet API response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(requestStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("API request failed", "method", method, "path", path, "status", resp.StatusCode, "response", truncate(string(respBody), 200))
		return apperr.VendorCallFailed("unanet "+path, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500)))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Ping reports whether the Unanet API is up.
func (c *Client) Ping(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/rest/ping", "", nil, nil)
}

// Classify decides how to report err: when the ping endpoint also fails the
// error becomes VendorUnavailable, otherwise it keeps its kind. Unclassified
// errors become VendorCallFailed.
func (c *Client) Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if pingErr := c.Ping(ctx); pingErr != nil {
		c.logger.Warn("unanet ping failed while handling error", "error", pingErr)
		return &apperr.Error{
			Kind:    apperr.KindVendorUnavailable,
			Op:      "unanet",
			Message: "Unanet API failed to respond",
			Err:     err,
		}
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.VendorCallFailed("unanet", err)
}

// Failure classifies err and builds the caller-facing failure.
func (c *Client) Failure(ctx context.Context, err error, stage string) apperr.Failure {
	return apperr.NewFailure(c.Classify(ctx, err), c.Diagnostics(stage))
}
