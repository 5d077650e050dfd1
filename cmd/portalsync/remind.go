package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/consultwithcase/portalsync/internal/config"
	"github.com/consultwithcase/portalsync/internal/notify"
	"github.com/consultwithcase/portalsync/internal/reminder"
	"github.com/consultwithcase/portalsync/internal/report"
	"github.com/consultwithcase/portalsync/internal/store"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Remind employees who are short on submitted hours",
	RunE:  runRemind,
}

var remindScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run reminders on their cron schedule until stopped",
	RunE:  runRemindSchedule,
}

var remindStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running reminder scheduler",
	RunE:  runRemindStop,
}

var remindLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent reminder evaluations",
	RunE:  runRemindLog,
}

func init() {
	remindCmd.Flags().Int("day", reminder.FirstReminder, "Reminder day: 1 or 2")
	remindCmd.Flags().Bool("dry-run", false, "Log reminders instead of sending them")
	remindScheduleCmd.Flags().Bool("dry-run", false, "Log reminders instead of sending them")
	remindLogCmd.Flags().Int("limit", 20, "Number of entries to show")

	remindCmd.AddCommand(remindScheduleCmd)
	remindCmd.AddCommand(remindStopCmd)
	remindCmd.AddCommand(remindLogCmd)
	rootCmd.AddCommand(remindCmd)
}

// newRunner wires the reminder runner: TSheets answers for the CASE cohort
// and ADP for CYK.
func newRunner(ctx context.Context, a *app, db *store.DB, dryRun bool) (*reminder.Runner, error) {
	channel := a.cfg.Notify.Channel
	if dryRun {
		channel = "log"
	}
	notifier, err := notify.New(channel, a.logger)
	if err != nil {
		return nil, err
	}

	ts, err := a.tsheetsClient(ctx)
	if err != nil {
		return nil, err
	}
	sources := map[string]reminder.HoursSource{store.CohortCASE: ts}

	if ap, err := a.adpClient(ctx); err != nil {
		a.logger.Warn("ADP unavailable; CYK employees will fail", "error", err)
	} else {
		sources[store.CohortCYK] = ap
	}

	cal, err := a.cfg.Calendar()
	if err != nil {
		return nil, err
	}
	return reminder.NewRunner(db, sources, notifier, reminder.RunnerOptions{
		Stage:               a.cfg.Stage,
		TestEmployeeNumbers: a.cfg.Reminder.TestEmployeeNumbers,
		Message:             a.cfg.Reminder.Message,
		Calendar:            cal,
		Location:            a.loc,
	}, a.logger), nil
}

func runRemind(cmd *cobra.Command, args []string) error {
	day, _ := cmd.Flags().GetInt("day")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	a, err := newApp()
	if err != nil {
		return err
	}
	db, err := openStore(a.cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	runner, err := newRunner(ctx, a, db, dryRun)
	if err != nil {
		return err
	}
	decisions, err := runner.Run(ctx, day)
	if err != nil {
		return err
	}
	return report.Decisions(os.Stdout, decisions)
}

func runRemindSchedule(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	a, err := newApp()
	if err != nil {
		return err
	}
	db, err := openStore(a.cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner, err := newRunner(ctx, a, db, dryRun)
	if err != nil {
		return err
	}
	pidPath, err := config.PIDPath()
	if err != nil {
		return err
	}
	sched := reminder.NewScheduler(runner, a.cfg.Reminder.Jobs, a.loc, pidPath, a.logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return sched.Run(ctx)
}

func runRemindStop(cmd *cobra.Command, args []string) error {
	pidPath, err := config.PIDPath()
	if err != nil {
		return err
	}
	pid, err := reminder.ReadPID(pidPath)
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending stop signal: %w", err)
	}

	fmt.Printf("Sent stop signal to portalsync scheduler (PID %d)\n", pid)
	return nil
}

func runRemindLog(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	logs, err := db.RecentReminders(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("reading reminder log: %w", err)
	}
	if len(logs) == 0 {
		fmt.Println("No reminders logged yet.")
		return nil
	}
	return report.Reminders(os.Stdout, logs)
}
