package services

import (
	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/jobs"
)

// JobService exposes the worker pool and the scheduled jobs
type JobService struct {
	worker    *jobs.Worker
	scheduler *jobs.Scheduler
}

func NewJobService(worker *jobs.Worker, scheduler *jobs.Scheduler) *JobService {
	return &JobService{
		worker:    worker,
		scheduler: scheduler,
	}
}

func (s *JobService) GetStatus() map[string]interface{} {
	stats := s.worker.GetStats()
	status := map[string]interface{}{
		"activeJobs":    stats.ActiveJobs,
		"succeededJobs": stats.SucceededJobs,
		"failedJobs":    stats.FailedJobs,
		"queueLength":   stats.QueueLength,
		"maxConcurrent": stats.MaxConcurrent,
	}
	if s.scheduler != nil {
		status["scheduled"] = s.scheduler.Jobs()
	}
	return status
}

// RunNow executes a scheduled job immediately
func (s *JobService) RunNow(name string) error {
	if s.scheduler == nil {
		return apperr.New(apperr.KindNotFound, "job %s not found", name)
	}
	for _, job := range s.scheduler.Jobs() {
		if job.Name == name {
			return s.scheduler.RunNow(name)
		}
	}
	return apperr.New(apperr.KindNotFound, "job %s not found", name)
}
