package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRunsJobsAndTracksStats(t *testing.T) {
	w := NewWorker(2)
	defer w.Shutdown()

	var ran atomic.Int32
	w.Enqueue("ok", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	w.EnqueueAsync("fails", func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("boom")
	})
	w.EnqueueAsync("panics", func(ctx context.Context) error {
		ran.Add(1)
		panic("unexpected")
	})

	require.Eventually(t, func() bool {
		s := w.GetStats()
		return s.SucceededJobs+s.FailedJobs == 3
	}, time.Second, 5*time.Millisecond)

	stats := w.GetStats()
	assert.Equal(t, int32(3), ran.Load())
	assert.Equal(t, int64(1), stats.SucceededJobs)
	assert.Equal(t, int64(2), stats.FailedJobs)
	assert.Equal(t, 0, stats.ActiveJobs)
	assert.Equal(t, 10, stats.MaxConcurrent)
}

func TestWorkerShutdownIsIdempotent(t *testing.T) {
	w := NewWorker(1)
	w.Shutdown()
	assert.NotPanics(t, w.Shutdown)
	assert.Error(t, w.Context().Err())
}

func TestSchedulerRegistersAndRunsJobs(t *testing.T) {
	s := NewScheduler(context.Background())

	var calls atomic.Int32
	require.NoError(t, s.AddJob("overdue", "0 0 * * * *", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, s.AddJob("failing", "@every 1h", func(ctx context.Context) error {
		return errors.New("down")
	}))

	assert.Error(t, s.AddJob("overdue", "@hourly", func(ctx context.Context) error { return nil }))
	assert.Error(t, s.AddJob("bad", "not a cron", func(ctx context.Context) error { return nil }))

	require.NoError(t, s.RunNow("overdue"))
	assert.Equal(t, int32(1), calls.Load())
	assert.EqualError(t, s.RunNow("failing"), "job failing failed: down")
	assert.Error(t, s.RunNow("missing"))

	infos := s.Jobs()
	require.Len(t, infos, 2)
	assert.Equal(t, "failing", infos[0].Name)
	assert.Equal(t, "down", infos[0].LastError)
	assert.Equal(t, int64(1), infos[1].Runs)
	require.NotNil(t, infos[1].LastRun)

	require.NoError(t, s.RemoveJob("failing"))
	assert.Len(t, s.Jobs(), 1)
}
