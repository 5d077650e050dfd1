package periods

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/reminder"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:b@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Second half\r\n" +
	"DTSTART;VALUE=DATE:20240316\r\n" +
	"DTEND;VALUE=DATE:20240401\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:a@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:First half\r\n" +
	"DTSTART;VALUE=DATE:20240301\r\n" +
	"DTEND;VALUE=DATE:20240316\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:c@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Kickoff\r\n" +
	"DTSTART:20240320T090000Z\r\n" +
	"DTEND:20240320T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:d@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240305\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:e@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"SUMMARY:Last year\r\n" +
	"DTSTART;VALUE=DATE:20230301\r\n" +
	"DTEND;VALUE=DATE:20230302\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func march2024() timesheet.DateRange {
	return timesheet.DateRange{Start: date(2024, 3, 1), End: date(2024, 3, 31)}
}

func TestParse(t *testing.T) {
	got, err := Parse(strings.NewReader(feed), march2024(), time.UTC)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, timesheet.Period{Title: "First half", StartDate: date(2024, 3, 1), EndDate: date(2024, 3, 15)}, got[0])
	assert.Equal(t, timesheet.Period{Title: "Second half", StartDate: date(2024, 3, 16), EndDate: date(2024, 3, 31)}, got[1])
	assert.Equal(t, timesheet.Period{Title: "Kickoff", StartDate: date(2024, 3, 20), EndDate: date(2024, 3, 20)}, got[2])
}

func TestLoadFileAndURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periods.ics")
	require.NoError(t, os.WriteFile(path, []byte(feed), 0644))

	fromFile, err := Loader{}.Load(context.Background(), path, march2024())
	require.NoError(t, err)
	assert.Len(t, fromFile, 3)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/periods.ics" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	fromURL, err := Loader{HTTPClient: srv.Client()}.Load(context.Background(), srv.URL+"/periods.ics", march2024())
	require.NoError(t, err)
	assert.Equal(t, fromFile, fromURL)

	_, err = Loader{HTTPClient: srv.Client()}.Load(context.Background(), srv.URL+"/missing.ics", march2024())
	assert.ErrorContains(t, err, "status 404")
}

func TestPayPeriods(t *testing.T) {
	got, err := PayPeriods(reminder.DefaultCalendar(), timesheet.DateRange{Start: date(2024, 4, 20), End: date(2024, 5, 13)})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "2024-04-15 to 2024-04-28", got[0].Title)
	assert.Equal(t, date(2024, 4, 29), got[1].StartDate)
	assert.Equal(t, date(2024, 5, 12), got[1].EndDate)
	assert.Equal(t, date(2024, 5, 13), got[2].StartDate)

	_, err = PayPeriods(reminder.DefaultCalendar(), timesheet.DateRange{Start: date(2024, 5, 2), End: date(2024, 5, 1)})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestEncodeRoundTrips(t *testing.T) {
	want, err := PayPeriods(reminder.DefaultCalendar(), timesheet.DateRange{Start: date(2024, 4, 15), End: date(2024, 5, 12)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, want, time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)))
	assert.Contains(t, buf.String(), "DTSTART;VALUE=DATE:20240415")

	got, err := Parse(&buf, timesheet.DateRange{Start: date(2024, 1, 1), End: date(2024, 12, 31)}, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMonthly(t *testing.T) {
	got, err := Monthly(timesheet.DateRange{Start: date(2024, 1, 15), End: date(2024, 3, 10)})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-02", got[1].Title)
	assert.Equal(t, date(2024, 3, 10), got[2].EndDate)
}
