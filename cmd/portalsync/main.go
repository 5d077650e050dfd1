package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tj/go-naturaldate"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/config"
	"github.com/consultwithcase/portalsync/internal/report"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "portalsync",
	Short:         "Timesheet and PTO aggregation for the CASE Consulting Portal",
	Long:          "portalsync pulls timesheets and leave balances from TSheets, ADP and Unanet, rolls them up into Portal periods, and reminds employees who are behind on their hours.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return 2
	case apperr.KindVendorUnavailable:
		return 3
	}
	return 1
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, apperr.InvalidInput("log level", "unknown log level %q", logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch logFormat {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, apperr.InvalidInput("log format", "unknown log format %q", logFormat)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// localNow reads clock in the configured timezone, so "today" matches the
// vendor fetches near midnight.
func localNow(cfg *config.Config, clock timesheet.Clock) (time.Time, error) {
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	return clock.Now().In(loc), nil
}

func openStore(cfg *config.Config) (*store.DB, error) {
	path, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// parseDay accepts YYYY-MM-DD or a natural phrase such as "2 months ago".
func parseDay(s string, now time.Time) (time.Time, error) {
	if d, err := timesheet.ParseDate(s); err == nil {
		return d, nil
	}
	t, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return time.Time{}, apperr.InvalidInput("parse date", "cannot understand date %q", s)
	}
	return timesheet.Day(t), nil
}

// dateRange resolves the --start/--end flags. Defaults run from the first
// of the current month through today.
func dateRange(cmd *cobra.Command, now time.Time) (timesheet.DateRange, error) {
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")

	today := timesheet.Day(now)
	r := timesheet.DateRange{Start: timesheet.StartOfMonth(today), End: today}
	var err error
	if startFlag != "" {
		if r.Start, err = parseDay(startFlag, now); err != nil {
			return r, err
		}
	}
	if endFlag != "" {
		if r.End, err = parseDay(endFlag, now); err != nil {
			return r, err
		}
	}
	if r.Start.After(r.End) {
		return r, apperr.InvalidInput("date range", "start %s is after end %s",
			timesheet.FormatDate(r.Start), timesheet.FormatDate(r.End))
	}
	return r, nil
}

// printFailure writes the structured failure for err to stderr as JSON.
func printFailure(err error, d apperr.Diagnostics) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return
	}
	_ = report.JSON(os.Stderr, apperr.NewFailure(err, d))
}
