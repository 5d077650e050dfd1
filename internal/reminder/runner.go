package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/notify"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

const (
	StageProd = "prod"

	lastRunKey = "reminder.last_run"
)

// EmployeeStore is the subset of the employee store the runner needs.
type EmployeeStore interface {
	ActiveEmployees(ctx context.Context) ([]store.Employee, error)
	LogReminder(ctx context.Context, r store.ReminderLog) (int64, error)
	SetState(ctx context.Context, key, value string) error
}

// HoursSource reports the hours an employee has submitted in a period.
type HoursSource interface {
	HoursSubmitted(ctx context.Context, emp store.Employee, period timesheet.DateRange) (float64, error)
}

// Decision is the outcome of evaluating one employee.
type Decision struct {
	EmployeeNumber int
	Cohort         string
	Period         timesheet.DateRange
	HoursRequired  float64
	HoursSubmitted float64
	ShouldRemind   bool
	Notified       bool
	Err            error
}

type RunnerOptions struct {
	Stage string
	// TestEmployeeNumbers are the only employees notified outside prod.
	TestEmployeeNumbers []int
	Message             string
	Calendar            Calendar
	Clock               timesheet.Clock
	Location            *time.Location
}

type Runner struct {
	store    EmployeeStore
	sources  map[string]HoursSource
	notifier notify.Notifier
	opts     RunnerOptions
	logger   *slog.Logger
}

// NewRunner builds a runner. sources maps each cohort to its hours source.
func NewRunner(st EmployeeStore, sources map[string]HoursSource, notifier notify.Notifier, opts RunnerOptions, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = timesheet.RealClock{}
	}
	if opts.Message == "" {
		opts.Message = notify.DefaultMessage
	}
	if opts.Calendar.CykPeriodDays == 0 {
		opts.Calendar = DefaultCalendar()
	}
	return &Runner{
		store:    st,
		sources:  sources,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

// Run evaluates every active employee whose cohort has a reminder today and
// notifies those who are short on hours. Employees are processed one at a
// time; a failure for one employee is recorded on its decision and does not
// stop the run.
func (r *Runner) Run(ctx context.Context, day int) ([]Decision, error) {
	if day != FirstReminder && day != SecondReminder {
		return nil, apperr.InvalidInput("run reminders", "reminder day must be 1 or 2, got %d", day)
	}

	today := timesheet.Today(r.opts.Clock, r.opts.Location)
	gates := map[string]bool{
		store.CohortCASE: r.opts.Calendar.IsReminderDay(store.CohortCASE, today, day),
		store.CohortCYK:  r.opts.Calendar.IsReminderDay(store.CohortCYK, today, day),
	}
	if !gates[store.CohortCASE] && !gates[store.CohortCYK] {
		r.logger.Info("not a reminder day", "date", timesheet.FormatDate(today), "day", day)
		return nil, nil
	}
	r.logger.Info("reminder day", "date", timesheet.FormatDate(today), "day", day,
		"case", gates[store.CohortCASE], "cyk", gates[store.CohortCYK])

	employees, err := r.store.ActiveEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active employees: %w", err)
	}

	var decisions []Decision
	for _, emp := range employees {
		if err := ctx.Err(); err != nil {
			return decisions, err
		}
		cohort := emp.Cohort
		if cohort == "" {
			cohort = store.CohortCASE
		}
		if !gates[cohort] {
			continue
		}

		d := r.evaluate(ctx, emp, cohort, today)
		if d.Err != nil {
			r.logger.Warn("reminder failed", "employee_number", emp.EmployeeNumber, "error", d.Err)
		}
		r.record(ctx, d, day)
		decisions = append(decisions, d)
	}

	if err := r.store.SetState(ctx, lastRunKey, timesheet.FormatDate(today)); err != nil {
		r.logger.Warn("saving last reminder run", "error", err)
	}
	r.logger.Info("reminders finished", "evaluated", len(decisions), "reminded", len(Reminded(decisions)))
	return decisions, nil
}

func (r *Runner) evaluate(ctx context.Context, emp store.Employee, cohort string, today time.Time) Decision {
	period := r.opts.Calendar.Period(cohort, today)
	d := Decision{EmployeeNumber: emp.EmployeeNumber, Cohort: cohort, Period: period}

	source, ok := r.sources[cohort]
	if !ok {
		d.Err = apperr.Configuration("run reminders", "no hours source for cohort %q", cohort)
		return d
	}

	submitted, err := source.HoursSubmitted(ctx, emp, period)
	if err != nil {
		d.Err = fmt.Errorf("getting hours submitted: %w", err)
		return d
	}
	d.HoursSubmitted = submitted
	d.HoursRequired = HoursRequired(emp, period.Start, period.End)
	d.ShouldRemind = ShouldRemind(d.HoursRequired, d.HoursSubmitted)

	r.logger.Debug("evaluated employee", "employee_number", emp.EmployeeNumber, "cohort", cohort,
		"required", d.HoursRequired, "submitted", d.HoursSubmitted, "remind", d.ShouldRemind)

	if d.ShouldRemind {
		d.Notified, d.Err = r.send(ctx, emp)
	}
	return d
}

func (r *Runner) send(ctx context.Context, emp store.Employee) (bool, error) {
	if r.opts.Stage != StageProd && !slices.Contains(r.opts.TestEmployeeNumbers, emp.EmployeeNumber) {
		r.logger.Debug("skipping notification outside prod", "employee_number", emp.EmployeeNumber, "stage", r.opts.Stage)
		return false, nil
	}

	phone := notify.FormatSMSNumber(emp.PhoneNumber)
	if phone == "" {
		return false, apperr.InvalidInput("send reminder", "phone number does not exist for employee number %d", emp.EmployeeNumber)
	}
	if emp.SMSOptedOut {
		r.logger.Info("employee opted out of text messages", "employee_number", emp.EmployeeNumber)
		return false, nil
	}

	r.logger.Info("sending reminder", "employee_number", emp.EmployeeNumber)
	if err := r.notifier.Notify(ctx, notify.Message{
		EmployeeNumber: emp.EmployeeNumber,
		PhoneNumber:    phone,
		Title:          notify.DefaultTitle,
		Body:           r.opts.Message,
	}); err != nil {
		return false, fmt.Errorf("notifying employee number %d: %w", emp.EmployeeNumber, err)
	}
	return true, nil
}

func (r *Runner) record(ctx context.Context, d Decision, day int) {
	entry := store.ReminderLog{
		EmployeeNumber: d.EmployeeNumber,
		Cohort:         d.Cohort,
		ReminderDay:    day,
		PeriodStart:    d.Period.Start,
		PeriodEnd:      d.Period.End,
		HoursRequired:  d.HoursRequired,
		HoursSubmitted: d.HoursSubmitted,
		Notified:       d.Notified,
	}
	if d.Err != nil {
		entry.Error = d.Err.Error()
	}
	if _, err := r.store.LogReminder(ctx, entry); err != nil {
		r.logger.Warn("saving reminder log", "employee_number", d.EmployeeNumber, "error", err)
	}
}

// Reminded returns the employee numbers whose hours fell short.
func Reminded(decisions []Decision) []int {
	var numbers []int
	for _, d := range decisions {
		if d.ShouldRemind {
			numbers = append(numbers, d.EmployeeNumber)
		}
	}
	return numbers
}
