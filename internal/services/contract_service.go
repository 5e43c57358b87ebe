package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/locks"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/statemachine"
	"github.com/sjperalta/fintera-contracts/internal/validation"
)

// upcomingRenewalWindow is the horizon of the upcomingRenewals summary counter
const upcomingRenewalWindow = 90 * 24 * time.Hour

var contractStatuses = []string{
	models.ContractStatusDraft,
	models.ContractStatusPending,
	models.ContractStatusActive,
	models.ContractStatusCompleted,
	models.ContractStatusTerminated,
	models.ContractStatusRenewed,
}

var riskLevels = []string{models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskCritical}

// ContractInput carries the fields of a new contract
type ContractInput struct {
	ContractID        string
	ContractNumber    string
	Title             string
	ClientID          string
	ClientName        string
	ContractType      string
	Status            string
	StartDate         time.Time
	EndDate           time.Time
	TotalValue        float64
	Currency          string
	Terms             models.ContractTerms
	RiskLevel         string
	Priority          string
	AssignedTo        string
	Department        string
	AutoRenew         bool
	RenewalNoticeDays *int
	ParentContractID  *string
}

// TermsPatch updates contract terms field by field
type TermsPatch struct {
	Scope              *string
	Deliverables       *string
	AcceptanceCriteria *string
	Warranty           *string
	PaymentTerms       *string
}

// ContractPatch carries the fields to change; nil fields are left untouched
type ContractPatch struct {
	ContractID        *string
	ContractNumber    *string
	Title             *string
	ClientID          *string
	ClientName        *string
	ContractType      *string
	Status            *string
	StartDate         *time.Time
	EndDate           *time.Time
	TotalValue        *float64
	Currency          *string
	Terms             *TermsPatch
	RiskLevel         *string
	Priority          *string
	AssignedTo        *string
	Department        *string
	AutoRenew         *bool
	RenewalNoticeDays *int
	Version           *int
}

// ContractFilter enumerates the options of the contract listing
type ContractFilter struct {
	Status          string
	ClientID        string
	ContractType    string
	StartDate       *time.Time
	EndDate         *time.Time
	Search          string
	IncludeSummary  bool
	IncludeMetrics  bool
	IncludeInactive bool
	Page            int
	Limit           int
	SortBy          string
	SortDir         string
}

// ContractList is one page of contracts plus the optional summary
type ContractList struct {
	Contracts []models.Contract
	Total     int64
	Page      int
	Limit     int
	Summary   *repository.ContractSummary
}

type ContractService struct {
	repos    *repository.Repositories
	locks    *locks.KeyedMutex
	auditSvc *AuditService
}

func NewContractService(repos *repository.Repositories, locks *locks.KeyedMutex, auditSvc *AuditService) *ContractService {
	return &ContractService{repos: repos, locks: locks, auditSvc: auditSvc}
}

// Create validates and persists a new contract
func (s *ContractService) Create(ctx context.Context, input *ContractInput, actor Actor) (*models.Contract, error) {
	contract, err := s.buildContract(input, actor)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(contract.ContractID)
	defer unlock()

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		return s.insert(ctx, tx, contract)
	})
	if err != nil {
		return nil, err
	}

	contract.Duration = contract.DurationDays()
	s.auditSvc.Log(ctx, actor, AuditCreate, "Contract", contract.ContractID,
		fmt.Sprintf("Contract %s created with value %.2f %s", contract.ContractNumber, contract.TotalValue, contract.Currency))
	return contract, nil
}

// insert runs the uniqueness checks and writes the contract on tx.
// Callers hold the contract lock.
func (s *ContractService) insert(ctx context.Context, tx *repository.Repositories, contract *models.Contract) error {
	exists, err := tx.Contract.ExistsByContractID(ctx, contract.ContractID)
	if err != nil {
		return fmt.Errorf("failed to check contract id: %w", err)
	}
	if err := validation.Unique(exists, "contractId", contract.ContractID); err != nil {
		return err
	}
	exists, err = tx.Contract.ExistsByContractNumber(ctx, contract.ContractNumber)
	if err != nil {
		return fmt.Errorf("failed to check contract number: %w", err)
	}
	if err := validation.Unique(exists, "contractNumber", contract.ContractNumber); err != nil {
		return err
	}

	if contract.ClientID != "" {
		client, err := tx.Client.FindByClientID(ctx, contract.ClientID)
		if err == nil {
			contract.ClientName = client.CompanyName
		}
	}

	if err := tx.Contract.Create(ctx, contract); err != nil {
		return duplicate(err, "contract", contract.ContractID)
	}
	return nil
}

func (s *ContractService) buildContract(input *ContractInput, actor Actor) (*models.Contract, error) {
	contractID := validation.Sanitize(input.ContractID)
	number := validation.Sanitize(input.ContractNumber)
	title := validation.Sanitize(input.Title)
	if contractID == "" || number == "" || title == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "contractId, contractNumber and title are required")
	}

	contractType := input.ContractType
	if contractType == "" {
		contractType = models.ContractTypeFixedPrice
	}
	if err := validation.OneOf("contractType", contractType, models.ContractTypes); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = models.ContractStatusDraft
	}
	if err := validation.OneOf("status", status, contractStatuses); err != nil {
		return nil, err
	}

	riskLevel := input.RiskLevel
	if riskLevel == "" {
		riskLevel = models.RiskLow
	}
	if err := validation.OneOf("riskLevel", riskLevel, riskLevels); err != nil {
		return nil, err
	}

	start := models.DateOnly(input.StartDate)
	end := models.DateOnly(input.EndDate)
	if err := validation.DateRange(start, end); err != nil {
		return nil, err
	}
	if err := validation.Positive("totalValue", input.TotalValue); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = models.DefaultCurrency
	}
	noticeDays := models.DefaultRenewalNoticeDays
	if input.RenewalNoticeDays != nil {
		noticeDays = *input.RenewalNoticeDays
	}

	contract := &models.Contract{
		ContractID:     contractID,
		ContractNumber: number,
		Title:          title,
		ClientID:       validation.Sanitize(input.ClientID),
		ClientName:     validation.Sanitize(input.ClientName),
		ContractType:   contractType,
		Status:         status,
		StartDate:      start,
		EndDate:        end,
		TotalValue:     round2(input.TotalValue),
		OriginalValue:  round2(input.TotalValue),
		Currency:       currency,
		Terms: models.ContractTerms{
			Scope:              validation.Sanitize(input.Terms.Scope),
			Deliverables:       validation.Sanitize(input.Terms.Deliverables),
			AcceptanceCriteria: validation.Sanitize(input.Terms.AcceptanceCriteria),
			Warranty:           validation.Sanitize(input.Terms.Warranty),
			PaymentTerms:       validation.Sanitize(input.Terms.PaymentTerms),
		},
		RiskLevel:         riskLevel,
		Priority:          validation.Sanitize(input.Priority),
		AssignedTo:        validation.Sanitize(input.AssignedTo),
		Department:        validation.Sanitize(input.Department),
		IsActive:          true,
		AutoRenew:         input.AutoRenew,
		RenewalNoticeDays: noticeDays,
		ParentContractID:  input.ParentContractID,
		CreatedBy:         actor.Ref(),
	}
	contract.AppendAudit("created", actor.Ref(), "")
	return contract, nil
}

// Update applies a patch to a contract under its lock
func (s *ContractService) Update(ctx context.Context, contractID string, patch *ContractPatch, actor Actor) (*models.Contract, error) {
	unlock := s.locks.Lock(contractID)
	defer unlock()

	var updated *models.Contract
	var changed []string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		contract, err := tx.Contract.FindByContractID(ctx, contractID)
		if err != nil {
			return notFound(err, "contract", contractID)
		}
		if patch.Version != nil && *patch.Version != contract.Version {
			return apperr.New(apperr.KindConcurrentModification,
				"contract %s is at version %d, not %d", contractID, contract.Version, *patch.Version)
		}

		changed, err = s.applyPatch(ctx, tx, contract, patch)
		if err != nil {
			return err
		}

		contract.AppendAudit("updated", actor.Ref(), strings.Join(changed, ", "))
		if err := tx.Contract.Update(ctx, contract); err != nil {
			return duplicate(err, "contractNumber", contract.ContractNumber)
		}
		updated = contract
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated.Duration = updated.DurationDays()
	s.auditSvc.Log(ctx, actor, AuditUpdate, "Contract", contractID, "Updated fields: "+strings.Join(changed, ", "))
	return updated, nil
}

func (s *ContractService) applyPatch(ctx context.Context, tx *repository.Repositories, c *models.Contract, p *ContractPatch) ([]string, error) {
	var changed []string

	if p.ContractID != nil {
		if err := validation.ImmutableField("contractId", c.ContractID, strings.TrimSpace(*p.ContractID)); err != nil {
			return nil, err
		}
	}

	if p.ContractNumber != nil {
		number := validation.Sanitize(*p.ContractNumber)
		if number != "" && number != c.ContractNumber {
			exists, err := tx.Contract.ExistsByContractNumber(ctx, number)
			if err != nil {
				return nil, fmt.Errorf("failed to check contract number: %w", err)
			}
			if err := validation.Unique(exists, "contractNumber", number); err != nil {
				return nil, err
			}
			c.ContractNumber = number
			changed = append(changed, "contractNumber")
		}
	}

	if p.TotalValue != nil && *p.TotalValue != c.TotalValue {
		if err := validation.Positive("totalValue", *p.TotalValue); err != nil {
			return nil, err
		}
		amendments, err := tx.Amendment.CountByContract(ctx, c.ContractID)
		if err != nil {
			return nil, fmt.Errorf("failed to count amendments: %w", err)
		}
		// A draft may be re-priced until the first amendment; afterwards value moves only through amendments
		if amendments > 0 || (c.Status != models.ContractStatusDraft && c.Status != models.ContractStatusPending) {
			return nil, apperr.New(apperr.KindImmutableFieldViolation,
				"totalValue of contract %s changes only through amendments", c.ContractID)
		}
		c.TotalValue = round2(*p.TotalValue)
		c.OriginalValue = c.TotalValue
		changed = append(changed, "totalValue")
	}

	if p.Status != nil && *p.Status != c.Status {
		if err := statemachine.NewContractFSM(c).TransitionTo(ctx, *p.Status); err != nil {
			return nil, err
		}
		changed = append(changed, "status")
	}

	if p.StartDate != nil || p.EndDate != nil {
		start, end := c.StartDate, c.EndDate
		if p.StartDate != nil {
			start = models.DateOnly(*p.StartDate)
		}
		if p.EndDate != nil {
			end = models.DateOnly(*p.EndDate)
		}
		if err := validation.DateRange(start, end); err != nil {
			return nil, err
		}
		if err := checkChildrenWithinPeriod(ctx, tx, c.ContractID, start, end); err != nil {
			return nil, err
		}
		c.StartDate, c.EndDate = start, end
		changed = append(changed, "period")
	}

	if p.ContractType != nil && *p.ContractType != c.ContractType {
		if err := validation.OneOf("contractType", *p.ContractType, models.ContractTypes); err != nil {
			return nil, err
		}
		c.ContractType = *p.ContractType
		changed = append(changed, "contractType")
	}

	if p.RiskLevel != nil && *p.RiskLevel != c.RiskLevel {
		if err := validation.OneOf("riskLevel", *p.RiskLevel, riskLevels); err != nil {
			return nil, err
		}
		c.RiskLevel = *p.RiskLevel
		changed = append(changed, "riskLevel")
	}

	if p.ClientID != nil && *p.ClientID != c.ClientID {
		c.ClientID = validation.Sanitize(*p.ClientID)
		if client, err := tx.Client.FindByClientID(ctx, c.ClientID); err == nil {
			c.ClientName = client.CompanyName
		}
		changed = append(changed, "clientId")
	}

	setText := func(name string, dst *string, src *string) {
		if src == nil {
			return
		}
		if v := validation.Sanitize(*src); v != *dst {
			*dst = v
			changed = append(changed, name)
		}
	}
	if p.Title != nil && validation.Sanitize(*p.Title) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "title cannot be empty")
	}
	setText("title", &c.Title, p.Title)
	setText("clientName", &c.ClientName, p.ClientName)
	setText("priority", &c.Priority, p.Priority)
	setText("assignedTo", &c.AssignedTo, p.AssignedTo)
	setText("department", &c.Department, p.Department)

	if p.Currency != nil {
		if cur := strings.ToUpper(strings.TrimSpace(*p.Currency)); cur != "" && cur != c.Currency {
			c.Currency = cur
			changed = append(changed, "currency")
		}
	}

	if t := p.Terms; t != nil {
		setText("terms.scope", &c.Terms.Scope, t.Scope)
		setText("terms.deliverables", &c.Terms.Deliverables, t.Deliverables)
		setText("terms.acceptanceCriteria", &c.Terms.AcceptanceCriteria, t.AcceptanceCriteria)
		setText("terms.warranty", &c.Terms.Warranty, t.Warranty)
		setText("terms.paymentTerms", &c.Terms.PaymentTerms, t.PaymentTerms)
	}

	if p.AutoRenew != nil && *p.AutoRenew != c.AutoRenew {
		c.AutoRenew = *p.AutoRenew
		changed = append(changed, "autoRenew")
	}
	if p.RenewalNoticeDays != nil && *p.RenewalNoticeDays != c.RenewalNoticeDays {
		if *p.RenewalNoticeDays < 0 {
			return nil, apperr.New(apperr.KindInvalidValue, "renewalNoticeDays cannot be negative")
		}
		c.RenewalNoticeDays = *p.RenewalNoticeDays
		changed = append(changed, "renewalNoticeDays")
	}

	return changed, nil
}

// Delete soft deletes a contract, or removes it with its children when hard is set
func (s *ContractService) Delete(ctx context.Context, contractID string, hard bool, actor Actor) error {
	if hard && !actor.IsAdmin() {
		return apperr.New(apperr.KindUnauthorized, "hard delete requires the admin role")
	}

	unlock := s.locks.Lock(contractID)
	defer unlock()

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		contract, err := tx.Contract.FindByContractID(ctx, contractID)
		if err != nil {
			return notFound(err, "contract", contractID)
		}

		if !hard {
			contract.IsActive = false
			contract.AppendAudit("deleted", actor.Ref(), "soft delete")
			return tx.Contract.Update(ctx, contract)
		}

		open, err := tx.Milestone.CountOpenByContract(ctx, contractID)
		if err != nil {
			return fmt.Errorf("failed to count milestones: %w", err)
		}
		if open > 0 {
			return apperr.New(apperr.KindReferentialIntegrity,
				"contract %s still has %d active milestones", contractID, open)
		}

		if err := tx.BillingSchedule.DeleteByContract(ctx, contractID); err != nil {
			return err
		}
		if err := tx.Milestone.DeleteByContract(ctx, contractID); err != nil {
			return err
		}
		if err := tx.Amendment.DeleteByContract(ctx, contractID); err != nil {
			return err
		}
		if err := tx.Alert.DeleteByContract(ctx, contractID); err != nil {
			return err
		}
		return tx.Contract.Delete(ctx, contractID)
	})
	if err != nil {
		return passThrough(err, "failed to delete contract")
	}

	mode := "soft"
	if hard {
		mode = "hard"
	}
	s.auditSvc.Log(ctx, actor, AuditDelete, "Contract", contractID, mode+" delete")
	return nil
}

// Get loads one contract with its computed fields
func (s *ContractService) Get(ctx context.Context, contractID string, includeMetrics bool) (*models.Contract, error) {
	contract, err := s.repos.Contract.FindByContractID(ctx, contractID)
	if err != nil {
		return nil, notFound(err, "contract", contractID)
	}
	contract.Duration = contract.DurationDays()
	if includeMetrics {
		milestones, err := s.repos.Milestone.FindByContract(ctx, contractID, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load milestones: %w", err)
		}
		contract.PerformanceMetrics = performanceMetrics(contract, milestones)
	}
	return contract, nil
}

// List returns a filtered page of contracts
func (s *ContractService) List(ctx context.Context, filter ContractFilter) (*ContractList, error) {
	if filter.Status != "" {
		if err := validation.OneOf("status", filter.Status, contractStatuses); err != nil {
			return nil, err
		}
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, apperr.New(apperr.KindInvalidDateRange, "endDate filter must not precede startDate")
	}

	query := &repository.ContractQuery{
		ListQuery: &repository.ListQuery{
			Page:    filter.Page,
			PerPage: filter.Limit,
			Search:  filter.Search,
			SortBy:  filter.SortBy,
			SortDir: filter.SortDir,
		},
		Status:          filter.Status,
		ClientID:        filter.ClientID,
		ContractType:    filter.ContractType,
		StartDate:       filter.StartDate,
		EndDate:         filter.EndDate,
		IncludeInactive: filter.IncludeInactive,
	}

	contracts, total, err := s.repos.Contract.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}

	if filter.IncludeMetrics && len(contracts) > 0 {
		if err := s.attachMetrics(ctx, contracts); err != nil {
			return nil, err
		}
	}
	for i := range contracts {
		contracts[i].Duration = contracts[i].DurationDays()
	}

	result := &ContractList{
		Contracts: contracts,
		Total:     total,
		Page:      query.Page,
		Limit:     query.PerPage,
	}
	if filter.IncludeSummary {
		summary, err := s.repos.Contract.Summary(ctx, query, upcomingRenewalWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize contracts: %w", err)
		}
		result.Summary = summary
	}
	return result, nil
}

func (s *ContractService) attachMetrics(ctx context.Context, contracts []models.Contract) error {
	ids := make([]string, len(contracts))
	for i := range contracts {
		ids[i] = contracts[i].ContractID
	}
	milestones, err := s.repos.Milestone.FindByContracts(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load milestones: %w", err)
	}
	byContract := make(map[string][]models.Milestone, len(contracts))
	for _, m := range milestones {
		byContract[m.ContractID] = append(byContract[m.ContractID], m)
	}
	for i := range contracts {
		contracts[i].PerformanceMetrics = performanceMetrics(&contracts[i], byContract[contracts[i].ContractID])
	}
	return nil
}

// checkChildrenWithinPeriod rejects a contract period that would leave open
// milestones, unsettled billing or amendments outside of it
func checkChildrenWithinPeriod(ctx context.Context, tx *repository.Repositories, contractID string, start, end time.Time) error {
	milestones, err := tx.Milestone.FindByContract(ctx, contractID, "")
	if err != nil {
		return fmt.Errorf("failed to load milestones: %w", err)
	}
	for i := range milestones {
		m := &milestones[i]
		if m.Status == models.MilestoneStatusCancelled {
			continue
		}
		if err := validation.WithinPeriod("milestone "+m.MilestoneID+" targetDate", m.TargetDate, start, end); err != nil {
			return err
		}
	}

	schedules, err := tx.BillingSchedule.FindByContract(ctx, &repository.BillingQuery{ContractID: contractID})
	if err != nil {
		return fmt.Errorf("failed to load billing schedules: %w", err)
	}
	for i := range schedules {
		b := &schedules[i]
		if b.IsPaid() || b.Status == models.BillingStatusCancelled {
			continue
		}
		field := "billing " + b.ScheduleID
		if err := validation.WithinPeriod(field+" billingDate", b.BillingDate, start, end); err != nil {
			return err
		}
		for _, d := range []*time.Time{b.RecurringStart, b.RecurringEnd} {
			if d == nil {
				continue
			}
			if err := validation.WithinPeriod(field+" recurring window", *d, start, end); err != nil {
				return err
			}
		}
	}

	amendments, err := tx.Amendment.FindByContract(ctx, contractID, "")
	if err != nil {
		return fmt.Errorf("failed to load amendments: %w", err)
	}
	for i := range amendments {
		a := &amendments[i]
		if a.Status == models.AmendmentStatusRejected {
			continue
		}
		if err := validation.WithinPeriod("amendment "+a.AmendmentNumber+" amendmentDate", a.AmendmentDate, start, end); err != nil {
			return err
		}
	}
	return nil
}
