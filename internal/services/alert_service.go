package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/jobs"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/validation"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// milestoneRiskHorizon is how far ahead open milestones are checked for risk
const milestoneRiskHorizon = 7

var alertStatuses = []string{models.AlertStatusOpen, models.AlertStatusAcknowledged, models.AlertStatusResolved}

// AlertUpdate acknowledges or resolves an alert
type AlertUpdate struct {
	Status string
}

type AlertService struct {
	repos    *repository.Repositories
	notifier Notifier
	worker   *jobs.Worker
}

func NewAlertService(repos *repository.Repositories, notifier Notifier, worker *jobs.Worker) *AlertService {
	return &AlertService{repos: repos, notifier: notifier, worker: worker}
}

// Raise stores alert unless an unresolved alert of the same type already
// exists for the same contract and milestone. It reports whether it was created.
func (s *AlertService) Raise(ctx context.Context, repos *repository.Repositories, alert *models.Alert, metadata map[string]any) (*models.Alert, bool, error) {
	if repos == nil {
		repos = s.repos
	}
	existing, err := repos.Alert.FindOpen(ctx, alert.Type, alert.ContractID, alert.MilestoneID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up open alerts: %w", err)
	}

	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, false, fmt.Errorf("failed to encode alert metadata: %w", err)
		}
		alert.Metadata = datatypes.JSON(raw)
	}
	alert.Status = models.AlertStatusOpen
	if err := repos.Alert.Create(ctx, alert); err != nil {
		return nil, false, fmt.Errorf("failed to create alert: %w", err)
	}
	return alert, true, nil
}

// GenerateExpirationAlerts raises an alert for every active contract ending
// within the next withinDays days and returns the alerts it created.
func (s *AlertService) GenerateExpirationAlerts(ctx context.Context, withinDays int) ([]models.Alert, error) {
	if withinDays <= 0 {
		return nil, apperr.New(apperr.KindInvalidValue, "days must be positive")
	}
	today := models.DateOnly(time.Now().UTC())
	contracts, err := s.repos.Contract.FindExpiring(ctx, today, today.AddDate(0, 0, withinDays))
	if err != nil {
		return nil, fmt.Errorf("failed to find expiring contracts: %w", err)
	}

	created := []models.Alert{}
	for i := range contracts {
		c := &contracts[i]
		days := daysUntil(c.EndDate, today)
		severity := models.RiskLow
		switch {
		case days <= 7:
			severity = models.RiskHigh
		case days <= 14:
			severity = models.RiskMedium
		}
		msg := fmt.Sprintf("Contract %s (%s) expires in %d days on %s", c.ContractNumber, c.Title, days, c.EndDate.Format(dateLayout))
		if c.AutoRenew {
			msg += "; auto-renewal is enabled"
		}
		alert, ok, err := s.Raise(ctx, nil, &models.Alert{
			Type:       models.AlertTypeExpiration,
			Severity:   severity,
			ContractID: c.ContractID,
			Message:    msg,
		}, map[string]any{"daysUntilExpiry": days, "autoRenew": c.AutoRenew, "endDate": c.EndDate.Format(dateLayout)})
		if err != nil {
			return nil, err
		}
		if ok {
			created = append(created, *alert)
		}
	}

	s.notify(ctx, "Contracts expiring soon", created)
	return created, nil
}

// GenerateMilestoneRiskAlerts raises an alert for every open milestone whose
// computed risk is above Low and returns the alerts it created.
func (s *AlertService) GenerateMilestoneRiskAlerts(ctx context.Context) ([]models.Alert, error) {
	now := time.Now().UTC()
	milestones, err := s.repos.Milestone.FindAtRisk(ctx, models.DateOnly(now).AddDate(0, 0, milestoneRiskHorizon))
	if err != nil {
		return nil, fmt.Errorf("failed to find milestones at risk: %w", err)
	}

	created := []models.Alert{}
	for i := range milestones {
		m := &milestones[i]
		risk := milestoneRisk(m, now)
		if risk.RiskLevel == models.RiskLow {
			continue
		}
		milestoneID := m.MilestoneID
		alert, ok, err := s.Raise(ctx, nil, &models.Alert{
			Type:        models.AlertTypeMilestoneRisk,
			Severity:    risk.RiskLevel,
			ContractID:  m.ContractID,
			MilestoneID: &milestoneID,
			Message:     fmt.Sprintf("Milestone %s (%s) is at %s risk", m.MilestoneID, m.Title, risk.RiskLevel),
		}, map[string]any{"riskFactors": risk.RiskFactors, "mitigationPlans": risk.MitigationPlans})
		if err != nil {
			return nil, err
		}
		if ok {
			created = append(created, *alert)
		}
	}

	s.notify(ctx, "Milestones at risk", created)
	return created, nil
}

// RaiseBillingDue records an alert for an overdue billing schedule
func (s *AlertService) RaiseBillingDue(ctx context.Context, schedule *models.BillingSchedule) error {
	scheduleID := schedule.ScheduleID
	due := ""
	if schedule.DueDate != nil {
		due = schedule.DueDate.Format(dateLayout)
	}
	_, _, err := s.Raise(ctx, nil, &models.Alert{
		Type:       models.AlertTypeBillingDue,
		Severity:   models.RiskHigh,
		ContractID: schedule.ContractID,
		ScheduleID: &scheduleID,
		Message:    fmt.Sprintf("Invoice %s of %.2f %s is overdue since %s", schedule.InvoiceNumber, schedule.TotalAmount, schedule.Currency, due),
	}, map[string]any{"scheduleId": scheduleID, "dueDate": due})
	return err
}

// List returns alerts matching the query
func (s *AlertService) List(ctx context.Context, query *repository.AlertQuery) ([]models.Alert, int64, error) {
	if query.Status != "" {
		if err := validation.OneOf("status", query.Status, alertStatuses); err != nil {
			return nil, 0, err
		}
	}
	return s.repos.Alert.List(ctx, query)
}

// Update acknowledges or resolves an alert
func (s *AlertService) Update(ctx context.Context, id uint, update *AlertUpdate, actor Actor) (*models.Alert, error) {
	if err := validation.OneOf("status", update.Status, alertStatuses); err != nil {
		return nil, err
	}
	alert, err := s.repos.Alert.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "alert", fmt.Sprint(id))
	}
	if !alert.IsOpen() {
		return nil, apperr.New(apperr.KindInvalidStatusTransition, "alert %d is already resolved", id)
	}

	alert.Status = update.Status
	if update.Status == models.AlertStatusResolved {
		now := time.Now().UTC()
		alert.ResolvedAt = &now
		alert.ResolvedBy = actor.Ref()
	}
	if err := s.repos.Alert.Update(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return alert, nil
}

func (s *AlertService) notify(ctx context.Context, title string, alerts []models.Alert) {
	if len(alerts) == 0 || s.notifier == nil {
		return
	}
	logger.Info("alerts raised", slog.String("title", title), slog.Int("count", len(alerts)))
	s.worker.EnqueueAsync("notify:"+title, func(ctx context.Context) error {
		return s.notifier.AlertsRaised(ctx, title, alerts)
	})
}
