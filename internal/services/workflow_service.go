package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/jobs"
	"github.com/sjperalta/fintera-contracts/internal/locks"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/statemachine"
	"github.com/sjperalta/fintera-contracts/internal/validation"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// defaultMilestone describes one milestone created on activation
type defaultMilestone struct {
	suffix     string
	title      string
	percentage float64
	// position of the target date within the contract period, 0..1
	position float64
}

var defaultMilestones = []defaultMilestone{
	{suffix: "M1", title: "Kickoff", percentage: 20, position: 0.2},
	{suffix: "M2", title: "Delivery", percentage: 50, position: 0.7},
	{suffix: "M3", title: "Acceptance", percentage: 30, position: 1},
}

// ActivateOptions enumerates what activation creates besides the status change
type ActivateOptions struct {
	CreateDefaultMilestones bool
	CreateBilling           bool
}

// ActivationResult is the activated contract and everything created with it
type ActivationResult struct {
	Contract         *models.Contract         `json:"contract"`
	Milestones       []models.Milestone       `json:"milestonesCreated"`
	BillingSchedules []models.BillingSchedule `json:"billingSchedulesCreated"`
}

// RenewOptions shapes the successor contract
type RenewOptions struct {
	TermMonths        int
	ValueAdjustment   float64
	NewContractNumber string
}

// RenewalResult pairs the renewed contract with its successor
type RenewalResult struct {
	Previous *models.Contract `json:"previousContract"`
	Renewed  *models.Contract `json:"renewedContract"`
}

// EscalationResult reports whether a milestone delay was escalated
type EscalationResult struct {
	Escalated     bool              `json:"escalated"`
	DaysDelayed   int               `json:"daysDelayed"`
	ThresholdDays int               `json:"thresholdDays"`
	Message       string            `json:"message"`
	Milestone     *models.Milestone `json:"milestone"`
	Alert         *models.Alert     `json:"alert,omitempty"`
}

// RecurringBillingResult lists the occurrences materialized by one run
type RecurringBillingResult struct {
	AsOf      time.Time `json:"asOf"`
	Processed int       `json:"processedSchedules"`
	Created   []string  `json:"createdScheduleIds"`
	Skipped   int       `json:"skipped"`
}

type WorkflowService struct {
	repos               *repository.Repositories
	locks               *locks.KeyedMutex
	auditSvc            *AuditService
	contractSvc         *ContractService
	milestoneSvc        *MilestoneService
	billingSvc          *BillingService
	alertSvc            *AlertService
	notifier            Notifier
	worker              *jobs.Worker
	generator           *BillingScheduleGenerator
	escalationThreshold int
}

func NewWorkflowService(
	repos *repository.Repositories,
	locks *locks.KeyedMutex,
	auditSvc *AuditService,
	contractSvc *ContractService,
	milestoneSvc *MilestoneService,
	billingSvc *BillingService,
	alertSvc *AlertService,
	notifier Notifier,
	worker *jobs.Worker,
	escalationThreshold int,
) *WorkflowService {
	return &WorkflowService{
		repos:               repos,
		locks:               locks,
		auditSvc:            auditSvc,
		contractSvc:         contractSvc,
		milestoneSvc:        milestoneSvc,
		billingSvc:          billingSvc,
		alertSvc:            alertSvc,
		notifier:            notifier,
		worker:              worker,
		generator:           NewBillingScheduleGenerator(),
		escalationThreshold: escalationThreshold,
	}
}

// Activate moves a Draft or Pending contract to Active, optionally creating
// the default milestones and their billing, and notifies asynchronously.
func (s *WorkflowService) Activate(ctx context.Context, contractID string, opts ActivateOptions, actor Actor) (*ActivationResult, error) {
	unlock := s.locks.Lock(contractID)
	defer unlock()

	result := &ActivationResult{Milestones: []models.Milestone{}, BillingSchedules: []models.BillingSchedule{}}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		contract, err := tx.Contract.FindByContractID(ctx, contractID)
		if err != nil {
			return notFound(err, "contract", contractID)
		}
		if !contract.IsActive {
			return apperr.New(apperr.KindInvalidStatusTransition, "contract %s is deleted", contractID)
		}
		if err := statemachine.NewContractFSM(contract).Activate(ctx); err != nil {
			return err
		}

		if opts.CreateDefaultMilestones {
			if err := s.createDefaultMilestones(ctx, tx, contract, opts.CreateBilling, result); err != nil {
				return err
			}
		} else if opts.CreateBilling {
			if err := s.billExistingMilestones(ctx, tx, contract, result); err != nil {
				return err
			}
		}

		contract.AppendAudit("activated", actor.Ref(),
			fmt.Sprintf("%d milestones, %d billing schedules created", len(result.Milestones), len(result.BillingSchedules)))
		if err := tx.Contract.Update(ctx, contract); err != nil {
			return err
		}
		result.Contract = contract
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "failed to activate contract")
	}

	result.Contract.Duration = result.Contract.DurationDays()
	s.auditSvc.Log(ctx, actor, AuditUpdate, "Contract", contractID, "Contract activated")

	contract := *result.Contract
	milestones, billing := len(result.Milestones), len(result.BillingSchedules)
	s.worker.EnqueueAsync("notify:activated:"+contractID, func(ctx context.Context) error {
		return s.notifier.ContractActivated(ctx, &contract, milestones, billing, actor)
	})
	return result, nil
}

func (s *WorkflowService) createDefaultMilestones(ctx context.Context, tx *repository.Repositories, contract *models.Contract, withBilling bool, result *ActivationResult) error {
	span := contract.DurationDays() - 1
	var previous string
	for _, d := range defaultMilestones {
		target := contract.StartDate.AddDate(0, 0, int(math.Round(float64(span)*d.position)))
		input := &MilestoneInput{
			MilestoneID:   contract.ContractID + "-" + d.suffix,
			Title:         d.title,
			TargetDate:    target,
			Value:         contract.TotalValue * d.percentage / 100,
			Percentage:    d.percentage,
			IsBillable:    true,
			AssignedTo:    contract.AssignedTo,
			CreateBilling: withBilling,
		}
		if previous != "" {
			input.Dependencies = []string{previous}
		}
		created, err := s.milestoneSvc.createInTx(ctx, tx, contract, input)
		if err != nil {
			return err
		}
		result.Milestones = append(result.Milestones, *created.Milestone)
		if created.BillingScheduleCreated != nil {
			result.BillingSchedules = append(result.BillingSchedules, *created.BillingScheduleCreated)
		}
		previous = input.MilestoneID
	}
	return nil
}

func (s *WorkflowService) billExistingMilestones(ctx context.Context, tx *repository.Repositories, contract *models.Contract, result *ActivationResult) error {
	milestones, err := tx.Milestone.FindByContract(ctx, contract.ContractID, "")
	if err != nil {
		return fmt.Errorf("failed to load milestones: %w", err)
	}
	for i := range milestones {
		m := &milestones[i]
		if m.Status == models.MilestoneStatusCancelled || !m.MayTriggerBilling() || m.Value <= 0 {
			continue
		}
		schedule, err := s.milestoneSvc.billFor(ctx, tx, contract, m)
		if err != nil {
			return err
		}
		result.BillingSchedules = append(result.BillingSchedules, *schedule)
	}
	return nil
}

// Renew creates the successor of an Active or Completed contract and marks
// the predecessor Renewed.
func (s *WorkflowService) Renew(ctx context.Context, contractID string, opts RenewOptions, actor Actor) (*RenewalResult, error) {
	if opts.TermMonths < 0 {
		return nil, apperr.New(apperr.KindInvalidValue, "termMonths cannot be negative")
	}
	if opts.ValueAdjustment <= -100 {
		return nil, apperr.New(apperr.KindInvalidValue, "valueAdjustment must be greater than -100")
	}

	unlock := s.locks.Lock(contractID)
	defer unlock()

	result := &RenewalResult{}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		previous, err := tx.Contract.FindByContractID(ctx, contractID)
		if err != nil {
			return notFound(err, "contract", contractID)
		}
		if err := statemachine.NewContractFSM(previous).Renew(ctx); err != nil {
			return err
		}

		renewals, err := tx.Contract.CountRenewals(ctx, contractID)
		if err != nil {
			return fmt.Errorf("failed to count renewals: %w", err)
		}
		n := renewals + 1
		successor := s.successorOf(previous, n, opts, actor)
		if err := validation.Positive("totalValue", successor.TotalValue); err != nil {
			return err
		}
		if err := s.contractSvc.insert(ctx, tx, successor); err != nil {
			return err
		}

		previous.AppendAudit("renewed", actor.Ref(), "successor "+successor.ContractID)
		if err := tx.Contract.Update(ctx, previous); err != nil {
			return err
		}
		result.Previous, result.Renewed = previous, successor
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "failed to renew contract")
	}

	result.Previous.Duration = result.Previous.DurationDays()
	result.Renewed.Duration = result.Renewed.DurationDays()
	s.auditSvc.Log(ctx, actor, AuditCreate, "Contract", result.Renewed.ContractID, "Renewal of "+contractID)

	previous, renewed := *result.Previous, *result.Renewed
	s.worker.EnqueueAsync("notify:renewed:"+contractID, func(ctx context.Context) error {
		return s.notifier.ContractRenewed(ctx, &previous, &renewed)
	})
	return result, nil
}

func (s *WorkflowService) successorOf(previous *models.Contract, n int64, opts RenewOptions, actor Actor) *models.Contract {
	start := models.DateOnly(previous.EndDate).AddDate(0, 0, 1)
	end := start.AddDate(0, 0, previous.DurationDays()-1)
	if opts.TermMonths > 0 {
		end = start.AddDate(0, opts.TermMonths, -1)
	}
	value := round2(previous.TotalValue * (1 + opts.ValueAdjustment/100))

	number := validation.Sanitize(opts.NewContractNumber)
	if number == "" {
		number = fmt.Sprintf("%s-R%d", previous.ContractNumber, n)
	}
	status := models.ContractStatusDraft
	if previous.AutoRenew {
		status = models.ContractStatusActive
	}
	parent := previous.ContractID

	successor := &models.Contract{
		ContractID:        fmt.Sprintf("%s-R%d", previous.ContractID, n),
		ContractNumber:    number,
		Title:             previous.Title,
		ClientID:          previous.ClientID,
		ClientName:        previous.ClientName,
		ContractType:      previous.ContractType,
		Status:            status,
		StartDate:         start,
		EndDate:           end,
		TotalValue:        value,
		OriginalValue:     value,
		Currency:          previous.Currency,
		Terms:             previous.Terms,
		RiskLevel:         previous.RiskLevel,
		Priority:          previous.Priority,
		AssignedTo:        previous.AssignedTo,
		Department:        previous.Department,
		IsActive:          true,
		AutoRenew:         previous.AutoRenew,
		RenewalNoticeDays: previous.RenewalNoticeDays,
		ParentContractID:  &parent,
		CreatedBy:         actor.Ref(),
	}
	successor.AppendAudit("created", actor.Ref(), "renewal of "+previous.ContractID)
	return successor
}

// Escalate raises an escalation alert and marks the milestone Delayed when
// it is late by more than thresholdDays. A non-positive threshold uses the
// configured default.
func (s *WorkflowService) Escalate(ctx context.Context, contractID, milestoneID string, thresholdDays int, actor Actor) (*EscalationResult, error) {
	if thresholdDays <= 0 {
		thresholdDays = s.escalationThreshold
	}

	unlock := s.locks.Lock(contractID)
	defer unlock()

	result := &EscalationResult{ThresholdDays: thresholdDays}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		m, err := tx.Milestone.FindByMilestoneID(ctx, milestoneID)
		if err != nil {
			return notFound(err, "milestone", milestoneID)
		}
		if m.ContractID != contractID {
			return apperr.New(apperr.KindNotFound, "milestone %s not found on contract %s", milestoneID, contractID)
		}
		result.Milestone = m

		if !m.IsOpen() {
			result.Message = fmt.Sprintf("milestone is %s, nothing to escalate", m.Status)
			return nil
		}
		result.DaysDelayed = max(0, -daysUntil(m.TargetDate, time.Now().UTC()))
		if result.DaysDelayed <= thresholdDays {
			result.Message = fmt.Sprintf("delay of %d days is within the %d day threshold", result.DaysDelayed, thresholdDays)
			return nil
		}

		if m.Status != models.MilestoneStatusDelayed {
			if err := statemachine.NewMilestoneFSM(m).Delay(ctx); err != nil {
				return err
			}
			if err := tx.Milestone.Update(ctx, m); err != nil {
				return err
			}
		}

		severity := models.RiskHigh
		if result.DaysDelayed > 2*thresholdDays {
			severity = models.RiskCritical
		}
		id := m.MilestoneID
		alert, _, err := s.alertSvc.Raise(ctx, tx, &models.Alert{
			Type:        models.AlertTypeEscalation,
			Severity:    severity,
			ContractID:  contractID,
			MilestoneID: &id,
			Message:     fmt.Sprintf("Milestone %s (%s) is %d days late", m.MilestoneID, m.Title, result.DaysDelayed),
		}, map[string]any{"daysDelayed": result.DaysDelayed, "thresholdDays": thresholdDays, "escalatedBy": actor.Ref()})
		if err != nil {
			return err
		}
		result.Escalated = true
		result.Alert = alert
		result.Message = fmt.Sprintf("milestone escalated after %d days of delay", result.DaysDelayed)
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "failed to escalate milestone")
	}

	if result.Escalated {
		s.auditSvc.Log(ctx, actor, AuditUpdate, "Milestone", milestoneID, result.Message)
	}
	return result, nil
}

// TriggerBilling creates the billing schedule of a completed billable milestone
func (s *WorkflowService) TriggerBilling(ctx context.Context, contractID, milestoneID string, actor Actor) (*MilestoneResult, error) {
	unlock := s.locks.Lock(contractID)
	defer unlock()

	var result *MilestoneResult
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		m, err := tx.Milestone.FindByMilestoneID(ctx, milestoneID)
		if err != nil {
			return notFound(err, "milestone", milestoneID)
		}
		if m.ContractID != contractID {
			return apperr.New(apperr.KindNotFound, "milestone %s not found on contract %s", milestoneID, contractID)
		}
		if !m.IsCompleted() {
			return apperr.New(apperr.KindInvalidStatusTransition, "milestone %s must be completed before billing", milestoneID)
		}
		if !m.IsBillable {
			return apperr.New(apperr.KindInvalidInput, "milestone %s is not billable", milestoneID)
		}
		if m.BillingScheduleID != nil {
			return apperr.New(apperr.KindDuplicateKey, "milestone %s is already billed by %s", milestoneID, *m.BillingScheduleID)
		}
		contract, err := tx.Contract.FindByContractID(ctx, contractID)
		if err != nil {
			return notFound(err, "contract", contractID)
		}
		schedule, err := s.milestoneSvc.billFor(ctx, tx, contract, m)
		if err != nil {
			return err
		}
		result = &MilestoneResult{
			Milestone:              m,
			BillingScheduleCreated: schedule,
			BillingTriggered:       true,
			BillingScheduleID:      schedule.ScheduleID,
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "failed to trigger billing")
	}

	s.auditSvc.Log(ctx, actor, AuditCreate, "BillingSchedule", result.BillingScheduleID, "Billing for milestone "+milestoneID)
	return result, nil
}

// RunRecurringBilling materializes every recurring occurrence due on or
// before asOf as a one-time child schedule. Child ids are deterministic, so
// running twice creates nothing new.
func (s *WorkflowService) RunRecurringBilling(ctx context.Context, asOf time.Time) (*RecurringBillingResult, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	result := &RecurringBillingResult{AsOf: models.DateOnly(asOf), Created: []string{}}

	parents, err := s.repos.BillingSchedule.FindRecurring(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recurring schedules: %w", err)
	}

	var errs []error
	for i := range parents {
		created, skipped, err := s.materialize(ctx, &parents[i], asOf)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result.Processed++
		result.Created = append(result.Created, created...)
		result.Skipped += skipped
	}
	if len(result.Created) > 0 {
		logger.Info("recurring billing materialized",
			slog.Int("created", len(result.Created)),
			slog.Int("schedules", result.Processed))
	}
	return result, errors.Join(errs...)
}

func (s *WorkflowService) materialize(ctx context.Context, parent *models.BillingSchedule, asOf time.Time) ([]string, int, error) {
	due := s.generator.Due(parent.RecurringSchedule, asOf)
	if len(due) == 0 {
		return nil, 0, nil
	}

	unlock := s.locks.Lock(parent.ContractID)
	defer unlock()

	var created []string
	var skipped int
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		contract, err := tx.Contract.FindByContractID(ctx, parent.ContractID)
		if err != nil {
			return notFound(err, "contract", parent.ContractID)
		}
		for _, o := range due {
			id := OccurrenceScheduleID(parent.ScheduleID, o.Sequence)
			exists, err := tx.BillingSchedule.ExistsByScheduleID(ctx, id)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if !contract.Contains(o.BillingDate) {
				skipped++
				logger.Warn("recurring occurrence outside contract period",
					slog.String("schedule", id),
					slog.String("contract", contract.ContractID))
				continue
			}
			parentID := parent.ScheduleID
			if _, err := s.billingSvc.createInTx(ctx, tx, contract, &BillingInput{
				ScheduleID:       id,
				MilestoneID:      parent.MilestoneID,
				BillingType:      models.BillingTypeOneTime,
				BillingDate:      o.BillingDate,
				Amount:           o.Amount,
				Currency:         parent.Currency,
				TaxApplicable:    parent.TaxApplicable,
				TaxRate:          parent.TaxRate,
				Description:      fmt.Sprintf("%s #%d", parent.Description, o.Sequence),
				Status:           models.BillingStatusScheduled,
				ParentScheduleID: &parentID,
			}); err != nil {
				return err
			}
			created = append(created, id)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to materialize %s: %w", parent.ScheduleID, err)
	}
	return created, skipped, nil
}

// MarkOverdue moves past-due invoices to Overdue and raises billing alerts for them
func (s *WorkflowService) MarkOverdue(ctx context.Context) (int, error) {
	moved, err := s.billingSvc.MarkOverdue(ctx)
	for i := range moved {
		if alertErr := s.alertSvc.RaiseBillingDue(ctx, &moved[i]); alertErr != nil {
			err = errors.Join(err, alertErr)
		}
	}
	return len(moved), err
}
