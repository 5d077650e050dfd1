package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/consultwithcase/portalsync/internal/timesheet"
)

// ReminderLog records one evaluated reminder decision.
type ReminderLog struct {
	ID             int64
	EmployeeNumber int
	Cohort         string
	ReminderDay    int
	PeriodStart    time.Time
	PeriodEnd      time.Time
	HoursRequired  float64
	HoursSubmitted float64
	Notified       bool
	Error          string
	CreatedAt      time.Time
}

func (db *DB) LogReminder(ctx context.Context, r ReminderLog) (int64, error) {
	var errText sql.NullString
	if r.Error != "" {
		errText = sql.NullString{String: r.Error, Valid: true}
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO reminders (employee_number, cohort, reminder_day, period_start, period_end,
			hours_required, hours_submitted, notified, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.EmployeeNumber, r.Cohort, r.ReminderDay,
		timesheet.FormatDate(r.PeriodStart), timesheet.FormatDate(r.PeriodEnd),
		r.HoursRequired, r.HoursSubmitted, r.Notified, errText,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting reminder log: %w", err)
	}
	return result.LastInsertId()
}

// RecentReminders returns the latest reminder logs, newest first.
func (db *DB) RecentReminders(ctx context.Context, limit int) ([]ReminderLog, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, employee_number, cohort, reminder_day, period_start, period_end,
			hours_required, hours_submitted, notified, error, created_at
		 FROM reminders
		 ORDER BY id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reminders: %w", err)
	}
	defer rows.Close()

	var logs []ReminderLog
	for rows.Next() {
		var r ReminderLog
		var start, end string
		var errText, created sql.NullString
		if err := rows.Scan(
			&r.ID, &r.EmployeeNumber, &r.Cohort, &r.ReminderDay, &start, &end,
			&r.HoursRequired, &r.HoursSubmitted, &r.Notified, &errText, &created,
		); err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		r.Error = errText.String
		if t, err := timesheet.ParseDate(start); err == nil {
			r.PeriodStart = t
		}
		if t, err := timesheet.ParseDate(end); err == nil {
			r.PeriodEnd = t
		}
		if t, err := time.Parse(time.RFC3339, created.String); err == nil {
			r.CreatedAt = t
		} else if t, err := time.Parse(time.DateTime, created.String); err == nil {
			r.CreatedAt = t
		}
		logs = append(logs, r)
	}

	return logs, rows.Err()
}
