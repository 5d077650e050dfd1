package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/notify"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

type fakeStore struct {
	employees []store.Employee
	logs      []store.ReminderLog
	state     map[string]string
	listCalls int
}

func (f *fakeStore) ActiveEmployees(context.Context) ([]store.Employee, error) {
	f.listCalls++
	return f.employees, nil
}

func (f *fakeStore) LogReminder(_ context.Context, r store.ReminderLog) (int64, error) {
	f.logs = append(f.logs, r)
	return int64(len(f.logs)), nil
}

func (f *fakeStore) SetState(_ context.Context, key, value string) error {
	if f.state == nil {
		f.state = map[string]string{}
	}
	f.state[key] = value
	return nil
}

type fakeSource struct {
	hours  map[int]float64
	errs   map[int]error
	period timesheet.DateRange
}

func (f *fakeSource) HoursSubmitted(_ context.Context, emp store.Employee, period timesheet.DateRange) (float64, error) {
	f.period = period
	if err := f.errs[emp.EmployeeNumber]; err != nil {
		return 0, err
	}
	return f.hours[emp.EmployeeNumber], nil
}

type fakeNotifier struct {
	sent []notify.Message
}

func (f *fakeNotifier) Notify(_ context.Context, m notify.Message) error {
	f.sent = append(f.sent, m)
	return nil
}

func clockAt(s string) timesheet.Clock {
	return timesheet.FixedClock(day(s).Add(20 * time.Hour))
}

func decisionFor(t *testing.T, decisions []Decision, number int) Decision {
	t.Helper()
	for _, d := range decisions {
		if d.EmployeeNumber == number {
			return d
		}
	}
	t.Fatalf("no decision for employee %d", number)
	return Decision{}
}

func TestRunnerCaseReminderDay(t *testing.T) {
	st := &fakeStore{employees: []store.Employee{
		{EmployeeNumber: 1, WorkStatus: 100, PhoneNumber: "555-000-0001", Cohort: store.CohortCASE},
		{EmployeeNumber: 2, WorkStatus: 100, PhoneNumber: "555-000-0002", Cohort: store.CohortCASE},
		{EmployeeNumber: 3, WorkStatus: 50, Cohort: store.CohortCASE},
		{EmployeeNumber: 4, WorkStatus: 100, PhoneNumber: "555-000-0004", SMSOptedOut: true},
		{EmployeeNumber: 5, WorkStatus: 100, PhoneNumber: "555-000-0005", Cohort: store.CohortCYK},
		{EmployeeNumber: 6, WorkStatus: 100, PhoneNumber: "555-000-0006", Cohort: store.CohortCASE},
	}}
	caseHours := &fakeSource{
		hours: map[int]float64{1: 200, 2: 100},
		errs:  map[int]error{6: apperr.VendorCallFailed("get timesheets", errors.New("boom"))},
	}
	cykHours := &fakeSource{}
	n := &fakeNotifier{}

	r := NewRunner(st, map[string]HoursSource{store.CohortCASE: caseHours, store.CohortCYK: cykHours}, n, RunnerOptions{
		Stage:    StageProd,
		Clock:    clockAt("2024-05-31"),
		Location: time.UTC,
	}, nil)

	decisions, err := r.Run(context.Background(), FirstReminder)
	require.NoError(t, err)
	require.Len(t, decisions, 5, "cyk employee is not evaluated on a case-only day")

	assert.Equal(t, timesheet.DateRange{Start: day("2024-05-01"), End: day("2024-05-31")}, caseHours.period)
	assert.Equal(t, []int{2, 3, 4}, Reminded(decisions))

	d1 := decisionFor(t, decisions, 1)
	assert.InDelta(t, 184, d1.HoursRequired, 1e-9)
	assert.False(t, d1.ShouldRemind)

	d2 := decisionFor(t, decisions, 2)
	assert.True(t, d2.Notified)
	assert.NoError(t, d2.Err)

	d3 := decisionFor(t, decisions, 3)
	assert.InDelta(t, 92, d3.HoursRequired, 1e-9)
	assert.False(t, d3.Notified)
	assert.True(t, errors.Is(d3.Err, apperr.ErrInvalidInput), "missing phone number")

	d4 := decisionFor(t, decisions, 4)
	assert.False(t, d4.Notified)
	assert.NoError(t, d4.Err)

	d6 := decisionFor(t, decisions, 6)
	assert.False(t, d6.ShouldRemind)
	assert.True(t, errors.Is(d6.Err, apperr.ErrVendorCallFailed))

	require.Len(t, n.sent, 1)
	assert.Equal(t, "+15550000002", n.sent[0].PhoneNumber)
	assert.Equal(t, notify.DefaultMessage, n.sent[0].Body)

	assert.Len(t, st.logs, 5)
	assert.Equal(t, "2024-05-31", st.state[lastRunKey])
}

func TestRunnerOnlyNotifiesTestEmployeesOutsideProd(t *testing.T) {
	st := &fakeStore{employees: []store.Employee{
		{EmployeeNumber: 2, WorkStatus: 100, PhoneNumber: "555-000-0002"},
		{EmployeeNumber: 8, WorkStatus: 100, PhoneNumber: "555-000-0008"},
	}}
	n := &fakeNotifier{}
	r := NewRunner(st, map[string]HoursSource{store.CohortCASE: &fakeSource{}}, n, RunnerOptions{
		Stage:               "dev",
		TestEmployeeNumbers: []int{8},
		Clock:               clockAt("2024-06-01"),
		Location:            time.UTC,
	}, nil)

	decisions, err := r.Run(context.Background(), SecondReminder)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 8}, Reminded(decisions))
	require.Len(t, n.sent, 1)
	assert.Equal(t, 8, n.sent[0].EmployeeNumber)
}

func TestRunnerSkipsNonReminderDays(t *testing.T) {
	st := &fakeStore{employees: []store.Employee{{EmployeeNumber: 1, WorkStatus: 100}}}
	r := NewRunner(st, nil, &fakeNotifier{}, RunnerOptions{Clock: clockAt("2024-05-15"), Location: time.UTC}, nil)

	decisions, err := r.Run(context.Background(), FirstReminder)
	require.NoError(t, err)
	assert.Empty(t, decisions)
	assert.Zero(t, st.listCalls)
}

func TestRunnerRejectsUnknownDay(t *testing.T) {
	r := NewRunner(&fakeStore{}, nil, &fakeNotifier{}, RunnerOptions{}, nil)
	_, err := r.Run(context.Background(), 3)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestRunnerMissingSourceIsConfigurationError(t *testing.T) {
	st := &fakeStore{employees: []store.Employee{
		{EmployeeNumber: 5, WorkStatus: 100, Cohort: store.CohortCYK},
	}}
	r := NewRunner(st, map[string]HoursSource{}, &fakeNotifier{}, RunnerOptions{
		Clock:    clockAt("2024-06-07"),
		Location: time.UTC,
	}, nil)

	decisions, err := r.Run(context.Background(), FirstReminder)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, errors.Is(decisions[0].Err, apperr.ErrConfiguration))
	require.Len(t, st.logs, 1)
	assert.NotEmpty(t, st.logs[0].Error)
}
