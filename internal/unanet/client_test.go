package unanet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/secrets"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

const (
	sheetOne = `{"key": 1, "status": "COMPLETED", "timeslips": [
		{"workDate": "2024-03-04", "hoursWorked": "8", "project": {"name": "9876.54.32.PROJECT.OY1"},
		 "task": {"name": "PROJECT - Engineering OY1"}, "projectType": {"name": "BILL_SVCS"}},
		{"workDate": "2024-03-05", "hoursWorked": 0, "project": {"name": "9876.54.32.PROJECT.OY1"},
		 "projectType": {"name": "BILL_SVCS"}},
		{"workDate": "2024-02-28", "hoursWorked": 4, "project": {"name": "9876.54.32.PROJECT.OY1"},
		 "projectType": {"name": "BILL_SVCS"}},
		{"workDate": "2024-03-15", "hoursWorked": 2, "project": {"name": "Overhead"}, "projectType": {"name": "INDIRECT"}},
		{"workDate": "2024-03-20", "hoursWorked": 1.5, "project": {"name": "Overhead"}, "projectType": {"name": "INDIRECT"}}
	]}`
	sheetTwo = `{"key": 2, "status": "INUSE", "timeslips": [
		{"workDate": "2024-03-06", "hoursWorked": 3, "project": {"name": "9876.54.32.PROJECT.OY1"},
		 "task": {"name": "PROJECT - Engineering OY1"}, "projectType": {"name": "BILL_SVCS"}}
	]}`
)

type fakeUnanet struct {
	logins atomic.Int32
}

func (f *fakeUnanet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/rest/ping" {
		w.Write([]byte(`{}`))
		return
	}
	if r.URL.Path == "/rest/login" {
		var l Login
		json.NewDecoder(r.Body).Decode(&l)
		if l.Username != "api" || l.Password != "pw" {
			http.Error(w, "bad login", http.StatusUnauthorized)
			return
		}
		f.logins.Add(1)
		w.Write([]byte(`{"token": "tok-1234567890-abcdefgh"}`))
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok-1234567890-abcdefgh" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/rest/people/search":
		var body struct {
			IDCode1 int `json:"idCode1"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		switch body.IDCode1 {
		case 42:
			w.Write([]byte(`{"items": [{"key": 555}]}`))
		case 43:
			w.Write([]byte(`{"items": [{"key": 1}, {"key": 2}]}`))
		default:
			w.Write([]byte(`{"items": []}`))
		}
	case "/rest/time/search":
		w.Write([]byte(`{"items": [{"key": 1, "status": "COMPLETED"}, {"key": 2, "status": "INUSE"}]}`))
	case "/rest/time/1":
		w.Write([]byte(sheetOne))
	case "/rest/time/2":
		w.Write([]byte(sheetTwo))
	case "/rest/people/555/leave":
		var body struct {
			DateRange struct {
				RangeStart string `json:"rangeStart"`
			} `json:"dateRange"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		switch body.DateRange.RangeStart {
		case "2024-01-01":
			w.Write([]byte(`{"items": [
				{"project": {"code": "PTO", "name": "Paid Time Off"}, "beginDate": "2024-01-01", "endDate": "2099-12-31", "budget": 120},
				{"project": {"code": "HOLIDAY", "name": "Holiday"}, "beginDate": "2023-07-01", "endDate": "2024-06-30", "budget": 40}]}`))
		case "2024-03-01":
			w.Write([]byte(`{"items": [{"project": {"code": "PTO", "name": "Paid Time Off"}, "actuals": 8.0001}]}`))
		case "2023-07-01":
			w.Write([]byte(`{"items": [{"project": {"code": "HOLIDAY", "name": "Holiday"}, "budget": 64}]}`))
		default:
			w.Write([]byte(`{"items": []}`))
		}
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, api http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c := NewClient(Login{Username: "api", Password: "pw"}, Options{
		BaseURL:  srv.URL,
		Clock:    timesheet.FixedClock(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)),
		Location: time.UTC,
	}, nil)
	return c, srv
}

func march() []timesheet.Period {
	return []timesheet.Period{{
		Title:     "March",
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}}
}

func TestFetchTimesheets(t *testing.T) {
	api := &fakeUnanet{}
	c, _ := newTestClient(t, api)

	report, err := c.FetchTimesheets(context.Background(), "555", timesheet.Request{Periods: march()})
	require.NoError(t, err)

	assert.Equal(t, System, report.System)
	require.Len(t, report.Periods, 1)
	assert.Equal(t, map[string]int64{
		"PROJECT OY1 - Engineering": 39600,
		"Overhead":                  12600,
	}, report.Periods[0].Timesheets)

	supp := report.Supplemental
	assert.Equal(t, int64(7200), supp.Today)
	assert.Equal(t, timesheet.FutureData{Days: 1, Duration: 5400}, supp.Future)
	assert.Equal(t, []string{"Overhead"}, supp.NonBillables)
	assert.Equal(t, map[string]string{"PTO": "Paid Time Off", "HOLIDAY": "Holiday"}, supp.LeaveMappings)
	assert.Equal(t, DefaultPlanableKeys, supp.PlanableKeys)

	assert.Equal(t, map[string]float64{"PTO": 403199.64, "HOLIDAY": 230400}, report.Balances)
	assert.Equal(t, int32(1), api.logins.Load())
}

func TestFetchTimesheetsStatusFilter(t *testing.T) {
	c, _ := newTestClient(t, &fakeUnanet{})

	report, err := c.FetchTimesheets(context.Background(), "555", timesheet.Request{
		Periods:  march(),
		Statuses: []string{"INUSE"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"PROJECT OY1 - Engineering": 10800}, report.Periods[0].Timesheets)
	assert.Empty(t, report.Supplemental.NonBillables)
}

func TestFetchTimesheetsOnlyPTO(t *testing.T) {
	c, _ := newTestClient(t, &fakeUnanet{})

	report, err := c.FetchTimesheets(context.Background(), "555", timesheet.Request{Periods: march(), OnlyPTO: true})
	require.NoError(t, err)
	assert.Empty(t, report.Periods)
	assert.Len(t, report.Balances, 2)
}

type recordingUpdater struct {
	id, field string
	value     any
}

func (u *recordingUpdater) Update(_ context.Context, id, field string, value any) error {
	u.id, u.field, u.value = id, field, value
	return nil
}

func TestResolvePersonKey(t *testing.T) {
	c, _ := newTestClient(t, &fakeUnanet{})
	ctx := context.Background()

	u := &recordingUpdater{}
	key, err := c.ResolvePersonKey(ctx, store.Employee{ID: "e1", EmployeeNumber: 42}, u)
	require.NoError(t, err)
	assert.Equal(t, "555", key)
	assert.Equal(t, &recordingUpdater{id: "e1", field: "unanet_person_key", value: "555"}, u)

	stored := &recordingUpdater{}
	key, err = c.ResolvePersonKey(ctx, store.Employee{ID: "e2", EmployeeNumber: 42, UnanetPersonKey: "777"}, stored)
	require.NoError(t, err)
	assert.Equal(t, "777", key)
	assert.Empty(t, stored.id)

	for _, n := range []int{43, 99} {
		_, err = c.ResolvePersonKey(ctx, store.Employee{ID: "e3", EmployeeNumber: n}, u)
		assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "employee %d", n)
	}
}

func TestLoginFailure(t *testing.T) {
	srv := httptest.NewServer(&fakeUnanet{})
	defer srv.Close()
	c := NewClient(Login{Username: "api", Password: "wrong"}, Options{BaseURL: srv.URL}, nil)

	_, err := c.PersonKey(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login to Unanet failed")
	assert.True(t, errors.Is(err, apperr.ErrVendorCallFailed))
}

func TestClassifyVendorUp(t *testing.T) {
	c, _ := newTestClient(t, &fakeUnanet{})
	require.NoError(t, c.Login(context.Background()))

	err := c.Classify(context.Background(), errors.New("boom"))
	assert.True(t, errors.Is(err, apperr.ErrVendorCallFailed))

	invalid := apperr.InvalidInput("x", "bad")
	assert.Equal(t, invalid, c.Classify(context.Background(), invalid))

	f := c.Failure(context.Background(), errors.New("boom"), "dev")
	assert.Equal(t, http.StatusInternalServerError, f.Status)
	assert.Equal(t, "tok-1234***abcdefgh", f.Body.APIKey)
	assert.Equal(t, "dev", f.Body.Stage)
}

func TestClassifyVendorDown(t *testing.T) {
	c, srv := newTestClient(t, &fakeUnanet{})
	srv.Close()

	err := c.Classify(context.Background(), errors.New("boom"))
	assert.True(t, errors.Is(err, apperr.ErrVendorUnavailable))

	f := c.Failure(context.Background(), errors.New("boom"), "prod")
	assert.Equal(t, http.StatusServiceUnavailable, f.Status)
	assert.Equal(t, "ERR_VENDOR_DOWN", f.Code)
}

type mapStore map[string]string

func (m mapStore) Get(_ context.Context, name string) (string, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return "", secrets.ErrNotFound
}

func TestLoadLogin(t *testing.T) {
	l, err := LoadLogin(context.Background(), mapStore{LoginSecret: `{"username": "api", "password": "pw"}`})
	require.NoError(t, err)
	assert.Equal(t, Login{Username: "api", Password: "pw"}, l)

	_, err = LoadLogin(context.Background(), mapStore{LoginSecret: `{"username": "api"}`})
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))

	_, err = LoadLogin(context.Background(), mapStore{})
	assert.ErrorIs(t, err, secrets.ErrNotFound)
}

func TestBaseURLForStage(t *testing.T) {
	assert.Equal(t, "https://consultwithcase.unanet.biz/platform", BaseURLForStage("prod"))
	assert.Equal(t, "https://consultwithcase-sand.unanet.biz/platform", BaseURLForStage("dev"))
}
