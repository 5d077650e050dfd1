// Package notify delivers timesheet reminders to employees.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/gen2brain/beeep"
)

const DefaultTitle = "CASE Alerts"

const DefaultMessage = "CASE Alerts: This is a reminder that you have not yet met the timesheet hour requirements " +
	"for this pay period. Please be sure to submit your hours as soon as possible to keep payroll running smoothly."

type Message struct {
	EmployeeNumber int
	// PhoneNumber is in SMS format, see FormatSMSNumber.
	PhoneNumber string
	Title       string
	Body        string
}

type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// FormatSMSNumber converts a stored phone number such as "555-123-4567" to
// "+15551234567". An empty number stays empty.
func FormatSMSNumber(number string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
	if digits == "" {
		return ""
	}
	return "+1" + digits
}

// DesktopNotifier shows reminders as desktop notifications.
type DesktopNotifier struct {
	notify func(title, message string) error
}

func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{notify: func(title, message string) error {
		return beeep.Notify(title, message, "")
	}}
}

func (d *DesktopNotifier) Notify(_ context.Context, m Message) error {
	title := m.Title
	if title == "" {
		title = DefaultTitle
	}
	body := fmt.Sprintf("%s (employee %d, %s)", m.Body, m.EmployeeNumber, m.PhoneNumber)
	if err := d.notify(title, body); err != nil {
		return fmt.Errorf("sending desktop notification: %w", err)
	}
	return nil
}

// LogNotifier only logs reminders. It is used for dry runs.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, m Message) error {
	l.logger.Info("reminder", "employee_number", m.EmployeeNumber, "phone", m.PhoneNumber, "message", m.Body)
	return nil
}

// New returns the notifier for a configured channel ("desktop" or "log").
func New(channel string, logger *slog.Logger) (Notifier, error) {
	switch channel {
	case "", "desktop":
		return NewDesktopNotifier(), nil
	case "log":
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown notify channel %q", channel)
	}
}
