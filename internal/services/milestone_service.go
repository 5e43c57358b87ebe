package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/locks"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/statemachine"
	"github.com/sjperalta/fintera-contracts/internal/validation"
)

// BulkBatchSize is the number of bulk milestone items processed together
const BulkBatchSize = 25

// underrunTolerance is the share below plan an actual value may fall without a warning
const underrunTolerance = 0.10

var milestoneStatuses = []string{
	models.MilestoneStatusNotStarted,
	models.MilestoneStatusInProgress,
	models.MilestoneStatusCompleted,
	models.MilestoneStatusDelayed,
	models.MilestoneStatusCancelled,
}

// MilestoneInput carries the fields of a new milestone
type MilestoneInput struct {
	MilestoneID        string
	Title              string
	Description        string
	TargetDate         time.Time
	Value              float64
	Percentage         float64
	Status             string
	Deliverables       []string
	AcceptanceCriteria []string
	Dependencies       []string
	IsBillable         bool
	AssignedTo         string
	CreateBilling      bool
}

// MilestoneUpdate carries the fields to change; nil fields are left untouched
type MilestoneUpdate struct {
	Title              *string
	Description        *string
	TargetDate         *time.Time
	Value              *float64
	Percentage         *float64
	Status             string
	Deliverables       []string
	AcceptanceCriteria []string
	Dependencies       []string
	IsBillable         *bool
	AssignedTo         *string
	CompletionDate     *time.Time
	ActualValue        *float64
	CompletionNotes    *string
	TriggerBilling     bool
}

// MilestoneResult is a written milestone plus the billing it produced
type MilestoneResult struct {
	Milestone              *models.Milestone
	BillingScheduleCreated *models.BillingSchedule
	BillingTriggered       bool
	BillingScheduleID      string
}

// MilestoneFilter enumerates the options of the milestone listing
type MilestoneFilter struct {
	Status          string
	IncludeProgress bool
	IncludeRisk     bool
}

// BulkMilestoneItem is one entry of a bulk update
type BulkMilestoneItem struct {
	ContractID  string
	MilestoneID string
	Update      MilestoneUpdate
}

// BulkMilestoneResult reports the outcome of one bulk item
type BulkMilestoneResult struct {
	MilestoneID string `json:"milestoneId"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"errorKind,omitempty"`
}

type MilestoneService struct {
	repos      *repository.Repositories
	locks      *locks.KeyedMutex
	auditSvc   *AuditService
	billingSvc *BillingService
}

func NewMilestoneService(repos *repository.Repositories, locks *locks.KeyedMutex, auditSvc *AuditService, billingSvc *BillingService) *MilestoneService {
	return &MilestoneService{repos: repos, locks: locks, auditSvc: auditSvc, billingSvc: billingSvc}
}

// Create validates and persists a milestone, optionally with its billing schedule
func (s *MilestoneService) Create(ctx context.Context, contractID string, input *MilestoneInput, actor Actor) (*MilestoneResult, error) {
	unlock := s.locks.Lock(contractID)
	defer unlock()

	var result *MilestoneResult
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		contract, err := tx.Contract.FindByContractID(ctx, contractID)
		if err != nil {
			return notFound(err, "contract", contractID)
		}
		result, err = s.createInTx(ctx, tx, contract, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actor, AuditCreate, "Milestone", result.Milestone.MilestoneID,
		fmt.Sprintf("Milestone %q (%.2f%%) on contract %s", result.Milestone.Title, result.Milestone.Percentage, contractID))
	return result, nil
}

// createInTx validates and writes a milestone on tx. Callers hold the contract lock.
func (s *MilestoneService) createInTx(ctx context.Context, tx *repository.Repositories, contract *models.Contract, input *MilestoneInput) (*MilestoneResult, error) {
	title := validation.Sanitize(input.Title)
	if title == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "title is required")
	}
	if input.TargetDate.IsZero() {
		return nil, apperr.New(apperr.KindInvalidInput, "targetDate is required")
	}
	if err := validation.WithinPeriod("targetDate", input.TargetDate, contract.StartDate, contract.EndDate); err != nil {
		return nil, err
	}
	if err := validation.Percentage(input.Percentage); err != nil {
		return nil, err
	}
	if err := validation.NonNegative("value", input.Value); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = models.MilestoneStatusNotStarted
	}
	if err := validation.OneOf("status", status, milestoneStatuses); err != nil {
		return nil, err
	}

	milestoneID := validation.Sanitize(input.MilestoneID)
	if milestoneID == "" {
		milestoneID = "MS-" + strings.ToUpper(uuid.NewString()[:8])
	}
	exists, err := tx.Milestone.ExistsByMilestoneID(ctx, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to check milestone id: %w", err)
	}
	if err := validation.Unique(exists, "milestoneId", milestoneID); err != nil {
		return nil, err
	}

	existing, err := tx.Milestone.FindByContract(ctx, contract.ContractID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load milestones: %w", err)
	}
	if status != models.MilestoneStatusCancelled {
		if err := validation.PercentageBudget(existing, input.Percentage, ""); err != nil {
			return nil, err
		}
	}
	deps := validation.SanitizeAll(input.Dependencies)
	if err := validation.Dependencies(validation.BuildDependencyGraph(existing), milestoneID, deps); err != nil {
		return nil, err
	}

	value := input.Value
	if value == 0 {
		value = contract.TotalValue * input.Percentage / 100
	}

	milestone := &models.Milestone{
		ContractID:         contract.ContractID,
		MilestoneID:        milestoneID,
		Title:              title,
		Description:        validation.Sanitize(input.Description),
		TargetDate:         models.DateOnly(input.TargetDate),
		Value:              round2(value),
		Percentage:         input.Percentage,
		Status:             status,
		Deliverables:       validation.SanitizeAll(input.Deliverables),
		AcceptanceCriteria: validation.SanitizeAll(input.AcceptanceCriteria),
		Dependencies:       deps,
		IsBillable:         input.IsBillable,
		AssignedTo:         validation.Sanitize(input.AssignedTo),
	}
	if status == models.MilestoneStatusCompleted {
		milestone.CompletionWarnings = s.complete(milestone, nil, nil, existing)
	}
	if err := tx.Milestone.Create(ctx, milestone); err != nil {
		return nil, duplicate(err, "milestoneId", milestoneID)
	}

	result := &MilestoneResult{Milestone: milestone}
	if input.CreateBilling && milestone.MayTriggerBilling() {
		schedule, err := s.billFor(ctx, tx, contract, milestone)
		if err != nil {
			return nil, err
		}
		result.BillingScheduleCreated = schedule
		result.BillingScheduleID = schedule.ScheduleID
	}
	return result, nil
}

// billFor creates the Milestone billing schedule of m and links it back.
// The amount is the planned value; overruns only show up as completion warnings.
func (s *MilestoneService) billFor(ctx context.Context, tx *repository.Repositories, contract *models.Contract, m *models.Milestone) (*models.BillingSchedule, error) {
	milestoneID := m.MilestoneID
	billingDate := m.TargetDate
	if m.CompletionDate != nil && contract.Contains(*m.CompletionDate) {
		billingDate = *m.CompletionDate
	}
	schedule, err := s.billingSvc.createInTx(ctx, tx, contract, &BillingInput{
		MilestoneID: &milestoneID,
		BillingType: models.BillingTypeMilestone,
		BillingDate: billingDate,
		Amount:      m.Value,
		Currency:    contract.Currency,
		Description: "Milestone: " + m.Title,
	})
	if err != nil {
		return nil, err
	}
	m.BillingScheduleID = &schedule.ScheduleID
	if err := tx.Milestone.Update(ctx, m); err != nil {
		return nil, err
	}
	return schedule, nil
}

// frozenOnceClosed rejects changes to the figures of a completed or cancelled milestone
func frozenOnceClosed(m *models.Milestone, u *MilestoneUpdate) error {
	if m.IsOpen() {
		return nil
	}
	var field string
	switch {
	case u.Value != nil && round2(*u.Value) != m.Value:
		field = "value"
	case u.Percentage != nil && *u.Percentage != m.Percentage:
		field = "percentage"
	case u.TargetDate != nil && !models.DateOnly(*u.TargetDate).Equal(models.DateOnly(m.TargetDate)):
		field = "targetDate"
	default:
		return nil
	}
	return apperr.New(apperr.KindImmutableFieldViolation,
		"%s of milestone %s cannot change once it is %s", field, m.MilestoneID, m.Status)
}

// Update changes a milestone under its contract's lock
func (s *MilestoneService) Update(ctx context.Context, contractID, milestoneID string, update *MilestoneUpdate, actor Actor) (*MilestoneResult, error) {
	unlock := s.locks.Lock(contractID)
	defer unlock()

	var result *MilestoneResult
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		result, err = s.updateInTx(ctx, tx, contractID, milestoneID, update)
		return err
	})
	if err != nil {
		return nil, passThrough(err, "failed to update milestone")
	}

	details := fmt.Sprintf("Milestone %s is %s", milestoneID, result.Milestone.Status)
	if result.BillingTriggered {
		details += ", billing " + result.BillingScheduleID
	}
	s.auditSvc.Log(ctx, actor, AuditUpdate, "Milestone", milestoneID, details)
	return result, nil
}

func (s *MilestoneService) updateInTx(ctx context.Context, tx *repository.Repositories, contractID, milestoneID string, u *MilestoneUpdate) (*MilestoneResult, error) {
	m, err := tx.Milestone.FindByMilestoneID(ctx, milestoneID)
	if err != nil {
		return nil, notFound(err, "milestone", milestoneID)
	}
	if m.ContractID != contractID {
		return nil, apperr.New(apperr.KindNotFound, "milestone %s not found on contract %s", milestoneID, contractID)
	}
	contract, err := tx.Contract.FindByContractID(ctx, contractID)
	if err != nil {
		return nil, notFound(err, "contract", contractID)
	}
	if err := frozenOnceClosed(m, u); err != nil {
		return nil, err
	}
	siblings, err := tx.Milestone.FindByContract(ctx, contractID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load milestones: %w", err)
	}

	if u.Percentage != nil && *u.Percentage != m.Percentage {
		if err := validation.Percentage(*u.Percentage); err != nil {
			return nil, err
		}
		if m.CountsTowardsBudget() {
			if err := validation.PercentageBudget(siblings, *u.Percentage, m.MilestoneID); err != nil {
				return nil, err
			}
		}
		m.Percentage = *u.Percentage
	}
	if u.TargetDate != nil {
		if err := validation.WithinPeriod("targetDate", *u.TargetDate, contract.StartDate, contract.EndDate); err != nil {
			return nil, err
		}
		m.TargetDate = models.DateOnly(*u.TargetDate)
	}
	if u.Dependencies != nil {
		deps := validation.SanitizeAll(u.Dependencies)
		if err := validation.Dependencies(validation.BuildDependencyGraph(siblings), m.MilestoneID, deps); err != nil {
			return nil, err
		}
		m.Dependencies = deps
	}
	if u.Value != nil {
		if err := validation.NonNegative("value", *u.Value); err != nil {
			return nil, err
		}
		m.Value = round2(*u.Value)
	}
	if u.Title != nil {
		title := validation.Sanitize(*u.Title)
		if title == "" {
			return nil, apperr.New(apperr.KindInvalidInput, "title cannot be empty")
		}
		m.Title = title
	}
	if u.Description != nil {
		m.Description = validation.Sanitize(*u.Description)
	}
	if u.Deliverables != nil {
		m.Deliverables = validation.SanitizeAll(u.Deliverables)
	}
	if u.AcceptanceCriteria != nil {
		m.AcceptanceCriteria = validation.SanitizeAll(u.AcceptanceCriteria)
	}
	if u.IsBillable != nil {
		m.IsBillable = *u.IsBillable
	}
	if u.AssignedTo != nil {
		m.AssignedTo = validation.Sanitize(*u.AssignedTo)
	}
	if u.CompletionNotes != nil {
		m.CompletionNotes = validation.Sanitize(*u.CompletionNotes)
	}

	if u.Status != "" && u.Status != m.Status {
		if err := validation.OneOf("status", u.Status, milestoneStatuses); err != nil {
			return nil, err
		}
		if err := statemachine.NewMilestoneFSM(m).TransitionTo(ctx, u.Status); err != nil {
			return nil, err
		}
		if m.IsCompleted() {
			if u.ActualValue != nil {
				if err := validation.NonNegative("actualValue", *u.ActualValue); err != nil {
					return nil, err
				}
			}
			m.CompletionWarnings = s.complete(m, u.CompletionDate, u.ActualValue, siblings)
		}
	}

	if err := tx.Milestone.Update(ctx, m); err != nil {
		return nil, err
	}

	result := &MilestoneResult{Milestone: m}
	if u.TriggerBilling {
		if !m.IsBillable {
			return nil, apperr.New(apperr.KindInvalidInput, "milestone %s is not billable", m.MilestoneID)
		}
		if m.BillingScheduleID != nil {
			result.BillingScheduleID = *m.BillingScheduleID
			return result, nil
		}
		schedule, err := s.billFor(ctx, tx, contract, m)
		if err != nil {
			return nil, err
		}
		result.BillingTriggered = true
		result.BillingScheduleID = schedule.ScheduleID
		result.BillingScheduleCreated = schedule
	}
	return result, nil
}

// complete records completion data and returns the non-fatal warnings
func (s *MilestoneService) complete(m *models.Milestone, completedAt *time.Time, actual *float64, siblings []models.Milestone) []string {
	date := time.Now().UTC()
	if completedAt != nil {
		date = completedAt.UTC()
	}
	value := m.Value
	if actual != nil {
		value = round2(*actual)
	}
	m.CompletionDate = &date
	m.ActualValue = &value

	var warnings []string
	if late := models.InclusiveDays(m.TargetDate, date) - 1; late > 0 {
		warnings = append(warnings, fmt.Sprintf("completed %d days after target date %s", late, m.TargetDate.Format(dateLayout)))
	}
	if value > m.Value {
		warnings = append(warnings, fmt.Sprintf("actual value %.2f exceeds planned value %.2f", value, m.Value))
	} else if m.Value > 0 && value < m.Value*(1-underrunTolerance) {
		warnings = append(warnings, fmt.Sprintf("actual value %.2f is more than 10%% below planned value %.2f", value, m.Value))
	}

	byID := make(map[string]*models.Milestone, len(siblings))
	for i := range siblings {
		byID[siblings[i].MilestoneID] = &siblings[i]
	}
	for _, dep := range m.Dependencies {
		if d, ok := byID[dep]; ok && !d.IsCompleted() {
			warnings = append(warnings, fmt.Sprintf("dependency %s is %s", dep, d.Status))
		}
	}
	return warnings
}

// List returns the milestones of a contract with optional progress and risk
func (s *MilestoneService) List(ctx context.Context, contractID string, filter MilestoneFilter) ([]models.Milestone, error) {
	if _, err := s.repos.Contract.FindByContractID(ctx, contractID); err != nil {
		return nil, notFound(err, "contract", contractID)
	}
	if filter.Status != "" {
		if err := validation.OneOf("status", filter.Status, milestoneStatuses); err != nil {
			return nil, err
		}
	}
	milestones, err := s.repos.Milestone.FindByContract(ctx, contractID, filter.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}

	now := time.Now().UTC()
	for i := range milestones {
		if filter.IncludeProgress {
			p := milestoneProgress(&milestones[i], now)
			milestones[i].Progress = &p
		}
		if filter.IncludeRisk {
			r := milestoneRisk(&milestones[i], now)
			milestones[i].Risk = &r
		}
	}
	return milestones, nil
}

// BulkUpdate applies every item and reports per-item outcomes. Items are
// processed in batches; inside a batch, items of different contracts run
// concurrently and items of the same contract run in order.
func (s *MilestoneService) BulkUpdate(ctx context.Context, items []BulkMilestoneItem, actor Actor) []BulkMilestoneResult {
	results := make([]BulkMilestoneResult, len(items))

	for start := 0; start < len(items); start += BulkBatchSize {
		end := min(start+BulkBatchSize, len(items))

		groups := make(map[string][]int)
		var order []string
		for i := start; i < end; i++ {
			key := items[i].ContractID
			if key == "" {
				key = "?" + items[i].MilestoneID
			}
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], i)
		}

		var wg sync.WaitGroup
		for _, key := range order {
			wg.Add(1)
			go func(indexes []int) {
				defer wg.Done()
				for _, i := range indexes {
					results[i] = s.bulkItem(ctx, &items[i], actor)
				}
			}(groups[key])
		}
		wg.Wait()
	}
	return results
}

func (s *MilestoneService) bulkItem(ctx context.Context, item *BulkMilestoneItem, actor Actor) BulkMilestoneResult {
	res := BulkMilestoneResult{MilestoneID: item.MilestoneID}
	if item.MilestoneID == "" {
		res.Error = "milestoneId is required"
		res.ErrorKind = string(apperr.KindInvalidInput)
		return res
	}

	contractID := item.ContractID
	if contractID == "" {
		m, err := s.repos.Milestone.FindByMilestoneID(ctx, item.MilestoneID)
		if err != nil {
			err = notFound(err, "milestone", item.MilestoneID)
			res.Error, res.ErrorKind = publicMessage(err), string(apperr.KindOf(err))
			return res
		}
		contractID = m.ContractID
	}

	if _, err := s.Update(ctx, contractID, item.MilestoneID, &item.Update, actor); err != nil {
		res.Error, res.ErrorKind = publicMessage(err), string(apperr.KindOf(err))
		return res
	}
	res.Success = true
	return res
}

// milestoneProgress estimates delivery progress from status, target date and now
func milestoneProgress(m *models.Milestone, now time.Time) models.MilestoneProgress {
	days := daysUntil(m.TargetDate, now)
	switch m.Status {
	case models.MilestoneStatusCompleted:
		onTrack := m.CompletionDate == nil || !models.DateOnly(*m.CompletionDate).After(models.DateOnly(m.TargetDate))
		return models.MilestoneProgress{PercentageComplete: 100, DaysRemaining: 0, IsOnTrack: onTrack}
	case models.MilestoneStatusCancelled:
		return models.MilestoneProgress{PercentageComplete: 0, DaysRemaining: 0, IsOnTrack: false}
	case models.MilestoneStatusInProgress, models.MilestoneStatusDelayed:
		return models.MilestoneProgress{
			PercentageComplete: 50,
			DaysRemaining:      days,
			IsOnTrack:          days >= 0 && m.Status != models.MilestoneStatusDelayed,
		}
	}
	return models.MilestoneProgress{PercentageComplete: 0, DaysRemaining: days, IsOnTrack: days >= 0}
}

// milestoneRisk classifies an open milestone against its target date
func milestoneRisk(m *models.Milestone, now time.Time) models.MilestoneRisk {
	risk := models.MilestoneRisk{RiskLevel: models.RiskLow, RiskFactors: []string{}, MitigationPlans: []string{}}
	if !m.IsOpen() {
		return risk
	}

	raise := func(level, factor, plan string) {
		if riskRank(level) > riskRank(risk.RiskLevel) {
			risk.RiskLevel = level
		}
		risk.RiskFactors = append(risk.RiskFactors, factor)
		if !slices.Contains(risk.MitigationPlans, plan) {
			risk.MitigationPlans = append(risk.MitigationPlans, plan)
		}
	}

	days := daysUntil(m.TargetDate, now)
	switch {
	case days < -7:
		raise(models.RiskCritical, fmt.Sprintf("target date passed %d days ago", -days), "Escalate to the contract owner and agree a recovery plan")
	case days < 0:
		raise(models.RiskHigh, fmt.Sprintf("target date passed %d days ago", -days), "Agree a revised target date with the client")
	case days <= 3 && m.Status != models.MilestoneStatusInProgress:
		raise(models.RiskHigh, fmt.Sprintf("due in %d days and not in progress", days), "Assign resources immediately")
	case days <= 7 && m.Status == models.MilestoneStatusNotStarted:
		raise(models.RiskMedium, fmt.Sprintf("due in %d days and not started", days), "Start work and confirm the delivery plan")
	}
	if m.Status == models.MilestoneStatusDelayed {
		raise(models.RiskHigh, "milestone is marked as delayed", "Review blockers with the assigned team")
	}
	if m.AssignedTo == "" {
		raise(models.RiskMedium, "no owner assigned", "Assign an owner")
	}
	return risk
}

func riskRank(level string) int {
	return slices.Index(riskLevels, level)
}

// daysUntil counts calendar days from now to target; negative once passed
func daysUntil(target, now time.Time) int {
	return int(models.DateOnly(target).Sub(models.DateOnly(now)).Hours() / 24)
}
