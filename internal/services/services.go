package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/config"
	"github.com/sjperalta/fintera-contracts/internal/integrations"
	"github.com/sjperalta/fintera-contracts/internal/jobs"
	"github.com/sjperalta/fintera-contracts/internal/locks"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/storage"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// Services holds all service instances
type Services struct {
	Auth         *AuthService
	User         *UserService
	Contract     *ContractService
	Amendment    *AmendmentService
	Milestone    *MilestoneService
	Billing      *BillingService
	Workflow     *WorkflowService
	Alert        *AlertService
	Report       *ReportService
	Export       *ExportService
	ClientRisk   *ClientRiskService
	Integration  *IntegrationService
	Notification *NotificationService
	Email        *EmailService
	Audit        *AuditService
	Job          *JobService
}

// NewServices creates all service instances. Every contract mutation shares
// one KeyedMutex so engines serialize on the same contractId.
func NewServices(repos *repository.Repositories, worker *jobs.Worker, scheduler *jobs.Scheduler, storage *storage.LocalStorage, cfg *config.Config) *Services {
	contractLocks := locks.NewKeyedMutex()
	auditSvc := NewAuditService(repos.Audit)
	emailSvc := NewEmailService(cfg)
	notificationSvc := NewNotificationService(emailSvc, repos.User, cfg.NotifyEmails)

	contractSvc := NewContractService(repos, contractLocks, auditSvc)
	billingSvc := NewBillingService(repos, contractLocks, auditSvc)
	milestoneSvc := NewMilestoneService(repos, contractLocks, auditSvc, billingSvc)
	alertSvc := NewAlertService(repos, notificationSvc, worker)

	return &Services{
		Auth:      NewAuthService(repos.User, auditSvc, cfg),
		User:      NewUserService(repos.User, auditSvc),
		Contract:  contractSvc,
		Amendment: NewAmendmentService(repos, contractLocks, auditSvc),
		Milestone: milestoneSvc,
		Billing:   billingSvc,
		Workflow: NewWorkflowService(repos, contractLocks, auditSvc, contractSvc, milestoneSvc, billingSvc,
			alertSvc, notificationSvc, worker, cfg.EscalationThresholdDays),
		Alert:        alertSvc,
		Report:       NewReportService(repos, cfg.ReportCacheTTL),
		Export:       NewExportService(repos, storage, auditSvc),
		ClientRisk:   NewClientRiskService(repos),
		Integration:  NewIntegrationService(repos, integrations.NewClients(cfg), auditSvc),
		Notification: notificationSvc,
		Email:        emailSvc,
		Audit:        auditSvc,
		Job:          NewJobService(worker, scheduler),
	}
}

// RegisterJobs adds the recurring automation to scheduler
func (s *Services) RegisterJobs(scheduler *jobs.Scheduler, cfg *config.Config) error {
	scheduled := []struct {
		name string
		cron string
		job  jobs.Job
	}{
		{"recurring_billing", cfg.RecurringBillingCron, func(ctx context.Context) error {
			result, err := s.Workflow.RunRecurringBilling(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			logger.Info("recurring billing run", "created", len(result.Created), "skipped", result.Skipped)
			return nil
		}},
		{"overdue_billing", cfg.OverdueCron, func(ctx context.Context) error {
			moved, err := s.Workflow.MarkOverdue(ctx)
			if err != nil {
				return err
			}
			logger.Info("overdue billing check", "marked", moved)
			return nil
		}},
		{"contract_alerts", cfg.AlertsCron, func(ctx context.Context) error {
			expiring, err := s.Alert.GenerateExpirationAlerts(ctx, cfg.AlertExpirationDays)
			if err != nil {
				return err
			}
			atRisk, err := s.Alert.GenerateMilestoneRiskAlerts(ctx)
			if err != nil {
				return err
			}
			logger.Info("alert generation", "expiration", len(expiring), "milestone_risk", len(atRisk))
			return nil
		}},
		{"client_risk", cfg.ClientRiskCron, func(ctx context.Context) error {
			_, err := s.ClientRisk.UpdateAllScores(ctx)
			return err
		}},
		{"report_cache", cfg.ReportCacheCron, s.Report.RefreshCache},
	}

	for _, j := range scheduled {
		if j.cron == "" {
			logger.Info("scheduled job disabled", "job", j.name)
			continue
		}
		if err := scheduler.AddJob(j.name, j.cron, j.job); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}
	return nil
}
