package reminder

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls atomic.Int32
	day   atomic.Int32
}

func (c *countingRunner) Run(_ context.Context, day int) ([]Decision, error) {
	c.calls.Add(1)
	c.day.Store(int32(day))
	return []Decision{{EmployeeNumber: 1, ShouldRemind: true}}, nil
}

func TestSchedulerRunsJobsAndManagesPIDFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "run", "portalsync.pid")
	runner := &countingRunner{}
	s := NewScheduler(runner, []Job{{Spec: "@every 1s", Day: SecondReminder}}, time.UTC, pidPath, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(pidPath)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	pid, err := ReadPID(pidPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.Eventually(t, func() bool { return runner.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(SecondReminder), runner.day.Load())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	_, err = os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err))
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "portalsync.pid")
	s := NewScheduler(&countingRunner{}, []Job{{Spec: "not a schedule", Day: 1}}, nil, pidPath, nil)

	err := s.Run(context.Background())
	require.Error(t, err)
	_, statErr := os.Stat(pidPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReadPIDMissing(t *testing.T) {
	_, err := ReadPID(filepath.Join(t.TempDir(), "missing.pid"))
	assert.Error(t, err)
}

func TestDefaultJobs(t *testing.T) {
	jobs := DefaultJobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, FirstReminder, jobs[0].Day)
	assert.Equal(t, SecondReminder, jobs[1].Day)
}
