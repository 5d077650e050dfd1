package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Job runs the reminders for one reminder day on a cron schedule.
type Job struct {
	Spec string `toml:"spec"`
	Day  int    `toml:"day"`
}

// DefaultJobs sends the first reminder at 20:00 and the second at 07:00 and
// 16:00. The day gates decide whether a job does anything.
func DefaultJobs() []Job {
	return []Job{
		{Spec: "0 20 * * *", Day: FirstReminder},
		{Spec: "0 7 * * *", Day: SecondReminder},
		{Spec: "0 16 * * *", Day: SecondReminder},
	}
}

type JobRunner interface {
	Run(ctx context.Context, day int) ([]Decision, error)
}

type Scheduler struct {
	runner  JobRunner
	jobs    []Job
	loc     *time.Location
	pidPath string
	logger  *slog.Logger
}

func NewScheduler(runner JobRunner, jobs []Job, loc *time.Location, pidPath string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if loc == nil {
		loc = time.Local
	}
	if len(jobs) == 0 {
		jobs = DefaultJobs()
	}
	return &Scheduler{
		runner:  runner,
		jobs:    jobs,
		loc:     loc,
		pidPath: pidPath,
		logger:  logger,
	}
}

// Run schedules the jobs and blocks until ctx is done. A PID file is kept
// while the scheduler runs so it can be stopped from another process.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))
	for _, j := range s.jobs {
		if _, err := c.AddFunc(j.Spec, func() { s.runJob(ctx, j) }); err != nil {
			return fmt.Errorf("adding reminder job %q: %w", j.Spec, err)
		}
	}

	if err := s.writePID(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer s.removePID()

	c.Start()
	for _, e := range c.Entries() {
		s.logger.Info("scheduled reminder job", "next", e.Next.Format(time.RFC3339))
	}

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, j Job) {
	s.logger.Info("running reminder job", "schedule", j.Spec, "day", j.Day)
	decisions, err := s.runner.Run(ctx, j.Day)
	if err != nil {
		s.logger.Error("reminder job failed", "schedule", j.Spec, "day", j.Day, "error", err)
		return
	}
	s.logger.Info("reminder job finished", "schedule", j.Spec, "reminded", Reminded(decisions))
}

func (s *Scheduler) writePID() error {
	if s.pidPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.pidPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (s *Scheduler) removePID() {
	if s.pidPath != "" {
		os.Remove(s.pidPath)
	}
}

func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("no running scheduler found")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file")
	}

	return pid, nil
}
