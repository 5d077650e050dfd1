package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/periods"
	"github.com/consultwithcase/portalsync/internal/report"
	"github.com/consultwithcase/portalsync/internal/timesheet"
)

var timesheetsCmd = &cobra.Command{
	Use:   "timesheets",
	Short: "Aggregate an employee's timesheets into periods",
	RunE:  runTimesheets,
}

var ptoCmd = &cobra.Command{
	Use:   "pto",
	Short: "Show an employee's PTO and leave balances",
}

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Show the query windows used to fetch a date range",
	RunE:  runBatches,
}

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "Write the periods for a date range as an iCalendar feed",
	RunE:  runPeriods,
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("start", "", "First day (YYYY-MM-DD or e.g. \"2 months ago\"); default first of this month")
	cmd.Flags().String("end", "", "Last day; default today")
}

func addPeriodFlags(cmd *cobra.Command) {
	addRangeFlags(cmd)
	cmd.Flags().String("periods-ics", "", "Read periods from an iCalendar file or URL")
	cmd.Flags().Bool("pay-periods", false, "Use bi-weekly pay periods instead of calendar months")
}

func init() {
	// Set here rather than in the literal: runTimesheets refers to ptoCmd.
	ptoCmd.RunE = runTimesheets

	for _, cmd := range []*cobra.Command{timesheetsCmd, ptoCmd} {
		cmd.Flags().IntP("employee", "e", 0, "Employee number")
		cmd.Flags().String("vendor", vendorTSheets, "Vendor: tsheets, adp, unanet or all")
		cmd.Flags().Bool("json", false, "Print JSON instead of tables")
		_ = cmd.MarkFlagRequired("employee")
	}
	addPeriodFlags(timesheetsCmd)
	timesheetsCmd.Flags().StringSlice("status", nil, "Only count entries with these statuses")
	addRangeFlags(batchesCmd)
	addPeriodFlags(periodsCmd)

	rootCmd.AddCommand(timesheetsCmd)
	rootCmd.AddCommand(ptoCmd)
	rootCmd.AddCommand(batchesCmd)
	rootCmd.AddCommand(periodsCmd)
}

// resolvePeriods picks the periods for a command: an ICS feed, pay periods,
// or calendar months over the flag range.
func resolvePeriods(ctx context.Context, cmd *cobra.Command, a *app, now time.Time) ([]timesheet.Period, error) {
	window, err := dateRange(cmd, now)
	if err != nil {
		return nil, err
	}

	if source, _ := cmd.Flags().GetString("periods-ics"); source != "" {
		ps, err := periods.Loader{Location: a.loc}.Load(ctx, source, window)
		if err != nil {
			return nil, err
		}
		if len(ps) == 0 {
			return nil, apperr.InvalidInput("load periods", "no periods in %s between %s and %s",
				source, timesheet.FormatDate(window.Start), timesheet.FormatDate(window.End))
		}
		return ps, nil
	}

	if pay, _ := cmd.Flags().GetBool("pay-periods"); pay {
		cal, err := a.cfg.Calendar()
		if err != nil {
			return nil, err
		}
		return periods.PayPeriods(cal, window)
	}
	return periods.Monthly(window)
}

func runTimesheets(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().In(a.loc)

	employee, _ := cmd.Flags().GetInt("employee")
	vendor, _ := cmd.Flags().GetString("vendor")
	asJSON, _ := cmd.Flags().GetBool("json")

	req := timesheet.Request{OnlyPTO: cmd == ptoCmd}
	if cmd == ptoCmd {
		req.Start, req.End = timesheet.Day(now), timesheet.Day(now)
	} else {
		if req.Periods, err = resolvePeriods(ctx, cmd, a, now); err != nil {
			return err
		}
		req.Statuses, _ = cmd.Flags().GetStringSlice("status")
	}

	db, err := openStore(a.cfg)
	if err != nil {
		a.logger.Warn("employee store unavailable", "error", err)
		db = nil
	} else {
		defer db.Close()
	}

	vendors := []string{vendor}
	if vendor == vendorAll {
		vendors = []string{vendorTSheets, vendorADP, vendorUnanet}
	}

	reports := make([]timesheet.Report, len(vendors))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range vendors {
		g.Go(func() error {
			r, err := a.fetch(gctx, v, db, employee, req)
			if err != nil {
				return fmt.Errorf("%s: %w", v, err)
			}
			reports[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	result := reports[0]
	if len(reports) > 1 {
		result = timesheet.MergeReports(reports...)
	}

	if asJSON {
		return report.JSON(os.Stdout, result)
	}
	return report.Timesheets(os.Stdout, &result)
}

func runBatches(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	now, err := localNow(cfg, timesheet.RealClock{})
	if err != nil {
		return err
	}
	window, err := dateRange(cmd, now)
	if err != nil {
		return err
	}
	batches, err := timesheet.BatchDateRange(window.Start, window.End, now)
	if err != nil {
		return err
	}
	return report.Batches(os.Stdout, batches)
}

func runPeriods(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().In(a.loc)

	ps, err := resolvePeriods(ctx, cmd, a, now)
	if err != nil {
		return err
	}
	return periods.Encode(os.Stdout, ps, now)
}
