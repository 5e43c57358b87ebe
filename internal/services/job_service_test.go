package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/jobs"
)

func TestServices_RegisterJobs(t *testing.T) {
	cfg := testConfig()
	cfg.ReportCacheCron = "0 */15 * * * *"
	cfg.ClientRiskCron = "0 0 3 * * *"
	env := newTestEnv(t, cfg)

	scheduler := jobs.NewScheduler(context.Background())
	require.NoError(t, env.svc.RegisterJobs(scheduler, cfg))
	svc := NewJobService(env.worker, scheduler)

	registered := scheduler.Jobs()
	require.Len(t, registered, 2, "jobs without a cron expression stay disabled")
	assert.Equal(t, "client_risk", registered[0].Name)
	assert.Equal(t, "report_cache", registered[1].Name)

	require.NoError(t, svc.RunNow("report_cache"))
	status := svc.GetStatus()
	assert.Contains(t, status, "scheduled")
	assert.Contains(t, status, "succeededJobs")
	assert.Equal(t, env.worker.GetStats().MaxConcurrent, status["maxConcurrent"])
	assert.Equal(t, int64(1), scheduler.Jobs()[1].Runs)

	err := svc.RunNow("recurring_billing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	cfg.OverdueCron = "not a cron"
	assert.Error(t, env.svc.RegisterJobs(jobs.NewScheduler(context.Background()), cfg))
}
