package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultwithcase/portalsync/internal/apperr"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "portalsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *DB, employees ...Employee) {
	t.Helper()
	for i := range employees {
		require.NoError(t, db.UpsertEmployee(context.Background(), &employees[i]))
	}
}

func TestGetByEmployeeNumber(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seed(t, db, Employee{
		ID:             "e1",
		EmployeeNumber: 10066,
		FirstName:      "Ada",
		LastName:       "Lovelace",
		HireDate:       time.Date(2023, 7, 10, 0, 0, 0, 0, time.UTC),
		WorkStatus:     100,
		PhoneNumber:    "555-123-4567",
		Cohort:         CohortCYK,
	})

	e, err := db.GetByEmployeeNumber(ctx, 10066)
	require.NoError(t, err)
	assert.Equal(t, "e1", e.ID)
	assert.Equal(t, "Ada Lovelace", e.Name())
	assert.Equal(t, time.Date(2023, 7, 10, 0, 0, 0, 0, time.UTC), e.HireDate)
	assert.Equal(t, CohortCYK, e.Cohort)
	assert.True(t, e.Active())

	_, err = db.GetByEmployeeNumber(ctx, 1)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestUpsertDefaultsCohort(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, Employee{ID: "e1", EmployeeNumber: 1, WorkStatus: 50})

	e, err := db.GetByEmployeeNumber(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, CohortCASE, e.Cohort)

	e.WorkStatus = 80
	require.NoError(t, db.UpsertEmployee(context.Background(), e))
	e, err = db.GetByEmployeeNumber(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 80, e.WorkStatus)
}

func TestUpdate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seed(t, db, Employee{ID: "e1", EmployeeNumber: 7, WorkStatus: 100})

	require.NoError(t, db.Update(ctx, "e1", "unanet_person_key", "4242"))
	require.NoError(t, db.Update(ctx, "e1", "sms_opted_out", true))

	e, err := db.GetByEmployeeNumber(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "4242", e.UnanetPersonKey)
	assert.True(t, e.SMSOptedOut)

	err = db.Update(ctx, "e1", "id; DROP TABLE employees", "x")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	err = db.Update(ctx, "missing", "adp_aoid", "x")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestActiveEmployees(t *testing.T) {
	db := openTestDB(t)
	seed(t, db,
		Employee{ID: "c", EmployeeNumber: 3, WorkStatus: 100},
		Employee{ID: "a", EmployeeNumber: 1, WorkStatus: 0},
		Employee{ID: "b", EmployeeNumber: 2, WorkStatus: 50},
	)

	active, err := db.ActiveEmployees(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, 2, active[0].EmployeeNumber)
	assert.Equal(t, 3, active[1].EmployeeNumber)

	all, err := db.ListEmployees(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReminderLog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.LogReminder(ctx, ReminderLog{
		EmployeeNumber: 7,
		Cohort:         CohortCASE,
		ReminderDay:    1,
		PeriodStart:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		HoursRequired:  184,
		HoursSubmitted: 120.5,
		Notified:       true,
	})
	require.NoError(t, err)
	_, err = db.LogReminder(ctx, ReminderLog{EmployeeNumber: 8, Cohort: CohortCYK, ReminderDay: 2, Error: "no phone"})
	require.NoError(t, err)

	logs, err := db.RecentReminders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 8, logs[0].EmployeeNumber)
	assert.Equal(t, "no phone", logs[0].Error)
	assert.Equal(t, 7, logs[1].EmployeeNumber)
	assert.True(t, logs[1].Notified)
	assert.InDelta(t, 120.5, logs[1].HoursSubmitted, 1e-9)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), logs[1].PeriodEnd)
}

func TestState(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	v, err := db.GetState(ctx, "reminder.last_run")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetState(ctx, "reminder.last_run", "2024-05-31"))
	require.NoError(t, db.SetState(ctx, "reminder.last_run", "2024-06-28"))
	v, err = db.GetState(ctx, "reminder.last_run")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-28", v)
}
