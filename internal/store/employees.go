package store

import (
	"context"
	"fmt"
	"time"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

// Payroll cohorts. Each cohort has its own reminder calendar and hours source.
const (
	CohortCASE = "case"
	CohortCYK  = "cyk"
)

type Employee struct {
	ID             string
	EmployeeNumber int
	FirstName      string
	LastName       string
	HireDate       time.Time
	// WorkStatus is the full-time percentage; zero means inactive.
	WorkStatus      int
	PhoneNumber     string
	SMSOptedOut     bool
	Cohort          string
	TSheetsUserID   string
	ADPAOID         string
	UnanetPersonKey string
}

// Active reports whether the employee is currently working.
func (e Employee) Active() bool {
	return e.WorkStatus > 0
}

func (e Employee) Name() string {
	if e.FirstName == "" && e.LastName == "" {
		return fmt.Sprintf("#%d", e.EmployeeNumber)
	}
	return e.FirstName + " " + e.LastName
}

// updatable maps the field names accepted by Update to their columns.
var updatable = map[string]string{
	"first_name":        "first_name",
	"last_name":         "last_name",
	"hire_date":         "hire_date",
	"work_status":       "work_status",
	"phone_number":      "phone_number",
	"sms_opted_out":     "sms_opted_out",
	"cohort":            "cohort",
	"tsheets_user_id":   "tsheets_user_id",
	"adp_aoid":          "adp_aoid",
	"unanet_person_key": "unanet_person_key",
}

const employeeColumns = `id, employee_number, first_name, last_name, hire_date, work_status, phone_number,
	sms_opted_out, cohort, tsheets_user_id, adp_aoid, unanet_person_key`

func (db *DB) UpsertEmployee(ctx context.Context, e *Employee) error {
	if e.ID == "" {
		return apperr.InvalidInput("upsert employee", "employee id is required")
	}
	cohort := e.Cohort
	if cohort == "" {
		cohort = CohortCASE
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO employees (`+employeeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			employee_number = excluded.employee_number,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			hire_date = excluded.hire_date,
			work_status = excluded.work_status,
			phone_number = excluded.phone_number,
			sms_opted_out = excluded.sms_opted_out,
			cohort = excluded.cohort,
			tsheets_user_id = excluded.tsheets_user_id,
			adp_aoid = excluded.adp_aoid,
			unanet_person_key = excluded.unanet_person_key,
			updated_at = CURRENT_TIMESTAMP`,
		e.ID, e.EmployeeNumber, e.FirstName, e.LastName, timesheet.FormatDate(e.HireDate), e.WorkStatus,
		e.PhoneNumber, e.SMSOptedOut, cohort, e.TSheetsUserID, e.ADPAOID, e.UnanetPersonKey,
	)
	if err != nil {
		return fmt.Errorf("upserting employee %s: %w", e.ID, err)
	}
	return nil
}

// GetByEmployeeNumber returns the employee record keyed by employee number.
// An unknown number is an InvalidInput error.
func (db *DB) GetByEmployeeNumber(ctx context.Context, number int) (*Employee, error) {
	employees, err := db.queryEmployees(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE employee_number = ?`, number)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return nil, apperr.InvalidInput("get employee", "invalid employee number: %d", number)
	}
	return &employees[0], nil
}

// Update sets a single whitelisted field on the employee with the given id.
func (db *DB) Update(ctx context.Context, id, field string, value any) error {
	column, ok := updatable[field]
	if !ok {
		return apperr.InvalidInput("update employee", "field %q cannot be updated", field)
	}
	if t, ok := value.(time.Time); ok {
		value = timesheet.FormatDate(t)
	}

	result, err := db.ExecContext(ctx,
		"UPDATE employees SET "+column+" = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("updating employee %s %s: %w", id, field, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating employee %s %s: %w", id, field, err)
	}
	if n == 0 {
		return apperr.InvalidInput("update employee", "no employee with id %s", id)
	}
	return nil
}

func (db *DB) ListEmployees(ctx context.Context) ([]Employee, error) {
	return db.queryEmployees(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY employee_number ASC`)
}

// ActiveEmployees returns employees with a positive work status.
func (db *DB) ActiveEmployees(ctx context.Context) ([]Employee, error) {
	return db.queryEmployees(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE work_status > 0 ORDER BY employee_number ASC`)
}

func (db *DB) queryEmployees(ctx context.Context, query string, args ...any) ([]Employee, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying employees: %w", err)
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var e Employee
		var hireDate string
		if err := rows.Scan(
			&e.ID, &e.EmployeeNumber, &e.FirstName, &e.LastName, &hireDate, &e.WorkStatus,
			&e.PhoneNumber, &e.SMSOptedOut, &e.Cohort, &e.TSheetsUserID, &e.ADPAOID, &e.UnanetPersonKey,
		); err != nil {
			return nil, fmt.Errorf("scanning employee: %w", err)
		}
		if hireDate != "" {
			t, err := timesheet.ParseDate(hireDate)
			if err != nil {
				return nil, fmt.Errorf("employee %s: %w", e.ID, err)
			}
			e.HireDate = t
		}
		employees = append(employees, e)
	}

	return employees, rows.Err()
}
