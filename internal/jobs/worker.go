package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// Worker runs fire-and-forget work such as notifications and post-commit
// integration pushes on a bounded pool.
type Worker struct {
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	pending       sync.WaitGroup
	queue         chan namedJob
	asyncSem      chan struct{}
	maxConcurrent int
	stats         WorkerStats
	statsMu       sync.RWMutex
	closeOnce     sync.Once
}

type namedJob struct {
	name string
	run  Job
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int   `json:"activeJobs"`
	SucceededJobs int64 `json:"succeededJobs"`
	FailedJobs    int64 `json:"failedJobs"`
	QueueLength   int   `json:"queueLength"`
	MaxConcurrent int   `json:"maxConcurrent"`
}

// NewWorker creates a worker with N concurrent processors
func NewWorker(numWorkers int) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	// Allow 2x workers for async jobs
	asyncLimit := numWorkers * 2
	if asyncLimit < 10 {
		asyncLimit = 10
	}

	w := &Worker{
		ctx:           ctx,
		cancel:        cancel,
		queue:         make(chan namedJob, 100),
		asyncSem:      make(chan struct{}, asyncLimit),
		maxConcurrent: asyncLimit,
	}

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}

	return w
}

// Enqueue adds a job to be processed by the worker pool. A full queue runs
// the job on the caller's goroutine instead of dropping it.
func (w *Worker) Enqueue(name string, job Job) {
	nj := namedJob{name: name, run: job}
	w.pending.Add(1)
	select {
	case w.queue <- nj:
	default:
		logger.Warn("worker queue full, running job synchronously", slog.String("job", name))
		w.run(-1, nj)
	}
}

// EnqueueAsync runs a job in a new goroutine, bounded by semaphore
func (w *Worker) EnqueueAsync(name string, job Job) {
	w.pending.Add(1)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.asyncSem <- struct{}{}
		defer func() { <-w.asyncSem }()

		w.run(-1, namedJob{name: name, run: job})
	}()
}

// process handles jobs from the queue
func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			w.run(workerID, job)
		}
	}
}

func (w *Worker) run(workerID int, job namedJob) {
	w.trackJobStart()
	start := time.Now()
	var err error
	defer func() {
		defer w.pending.Done()
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		w.trackJobEnd(err)
		if err != nil {
			logger.Error("background job failed",
				slog.String("job", job.name),
				slog.Int("worker", workerID),
				slog.String("error", err.Error()))
			return
		}
		logger.Debug("background job completed",
			slog.String("job", job.name),
			slog.Int("worker", workerID),
			slog.Duration("elapsed", time.Since(start)))
	}()
	err = job.run(w.ctx)
}

// Shutdown cancels the worker context and waits for running jobs
func (w *Worker) Shutdown() {
	w.closeOnce.Do(func() {
		w.cancel()
		close(w.queue)
	})
	w.wg.Wait()
}

// Wait blocks until every job accepted so far has finished, without stopping the worker
func (w *Worker) Wait() {
	w.pending.Wait()
}

// Context returns the worker's context for checking cancellation
func (w *Worker) Context() context.Context {
	return w.ctx
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.QueueLength = len(w.queue)
	stats.MaxConcurrent = w.maxConcurrent
	return stats
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

func (w *Worker) trackJobEnd(err error) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs--
	if err != nil {
		w.stats.FailedJobs++
		return
	}
	w.stats.SucceededJobs++
}
