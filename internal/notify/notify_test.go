package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSMSNumber(t *testing.T) {
	assert.Equal(t, "+15551234567", FormatSMSNumber("555-123-4567"))
	assert.Equal(t, "+15551234567", FormatSMSNumber("(555) 123 4567"))
	assert.Equal(t, "", FormatSMSNumber(""))
	assert.Equal(t, "", FormatSMSNumber("--"))
}

func TestDesktopNotifier(t *testing.T) {
	var gotTitle, gotBody string
	d := &DesktopNotifier{notify: func(title, message string) error {
		gotTitle, gotBody = title, message
		return nil
	}}

	err := d.Notify(context.Background(), Message{EmployeeNumber: 7, PhoneNumber: "+15551234567", Body: "submit hours"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, gotTitle)
	assert.Contains(t, gotBody, "submit hours")
	assert.Contains(t, gotBody, "employee 7")

	d.notify = func(string, string) error { return errors.New("no display") }
	assert.Error(t, d.Notify(context.Background(), Message{}))
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.Notify(context.Background(), Message{EmployeeNumber: 42, PhoneNumber: "+15550000000"}))
	assert.Contains(t, buf.String(), "employee_number=42")
}

func TestNew(t *testing.T) {
	n, err := New("log", nil)
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	n, err = New("desktop", nil)
	require.NoError(t, err)
	assert.IsType(t, &DesktopNotifier{}, n)

	_, err = New("pager", nil)
	assert.Error(t, err)
}
