package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// Scheduler runs named jobs on cron expressions (with a seconds field)
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	mu   sync.Mutex
	jobs map[string]*scheduledJob
}

type scheduledJob struct {
	entryID  cron.EntryID
	cronExpr string
	lastRun  time.Time
	lastErr  string
	runs     int64
}

// ScheduledJobInfo describes a registered job for the jobs endpoint
type ScheduledJobInfo struct {
	Name      string     `json:"name"`
	CronExpr  string     `json:"cronExpr"`
	NextRun   time.Time  `json:"nextRun"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Runs      int64      `json:"runs"`
}

// cronLogger adapts robfig/cron's logger to slog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// NewScheduler creates a scheduler whose jobs receive ctx
func NewScheduler(ctx context.Context) *Scheduler {
	l := cronLogger{}
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithLogger(l), cron.WithChain(
			cron.SkipIfStillRunning(l),
			cron.Recover(l),
		)),
		ctx:  ctx,
		jobs: make(map[string]*scheduledJob),
	}
}

// Start starts the scheduler. Jobs added before this call will begin running.
func (s *Scheduler) Start() {
	logger.Info("starting job scheduler", slog.Int("jobs", len(s.jobs)))
	s.cron.Start()
}

// Stop stops the scheduler; the returned context is done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	logger.Info("stopping job scheduler")
	return s.cron.Stop()
}

// AddJob registers job under name with a cron expression such as
// "0 */15 * * * *" or "@every 1h".
func (s *Scheduler) AddJob(name, cronExpr string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	entry := &scheduledJob{cronExpr: cronExpr}
	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.execute(name, entry, job)
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}
	entry.entryID = entryID
	s.jobs[name] = entry

	logger.Info("added scheduled job", slog.String("job", name), slog.String("cron", cronExpr))
	return nil
}

// RunNow executes a registered job synchronously, outside its schedule
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	job := s.cron.Entry(entry.entryID).Job
	if job == nil {
		return fmt.Errorf("job %s not found", name)
	}
	job.Run()
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.lastErr != "" {
		return fmt.Errorf("job %s failed: %s", name, entry.lastErr)
	}
	return nil
}

func (s *Scheduler) execute(name string, entry *scheduledJob, job Job) {
	start := time.Now()
	err := job(s.ctx)

	s.mu.Lock()
	entry.lastRun = start
	entry.runs++
	entry.lastErr = ""
	if err != nil {
		entry.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("scheduled job failed", slog.String("job", name), slog.String("error", err.Error()))
		return
	}
	logger.Info("completed scheduled job", slog.String("job", name), slog.Duration("elapsed", time.Since(start)))
}

// RemoveJob removes a job by name
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Remove(entry.entryID)
	delete(s.jobs, name)
	return nil
}

// Jobs describes every registered job sorted by name
func (s *Scheduler) Jobs() []ScheduledJobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ScheduledJobInfo, 0, len(s.jobs))
	for name, entry := range s.jobs {
		info := ScheduledJobInfo{
			Name:      name,
			CronExpr:  entry.cronExpr,
			NextRun:   s.cron.Entry(entry.entryID).Next,
			LastError: entry.lastErr,
			Runs:      entry.runs,
		}
		if !entry.lastRun.IsZero() {
			last := entry.lastRun
			info.LastRun = &last
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
