package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/locks"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/statemachine"
	"github.com/sjperalta/fintera-contracts/internal/validation"
)

// AmendmentInput carries the fields of a new amendment
type AmendmentInput struct {
	AmendmentNumber string
	AmendmentDate   time.Time
	Type            string
	Description     string
	Reason          string
	ValueChange     float64
	TimelineChange  int
	ResourceChange  string
}

// AmendmentUpdate changes the status or the free text of an amendment
type AmendmentUpdate struct {
	Status          string
	RejectionReason string
	Description     *string
	Reason          *string
}

// AmendmentFilter enumerates the options of the amendment listing
type AmendmentFilter struct {
	Status          string
	IncludeTimeline bool
}

type AmendmentService struct {
	repos    *repository.Repositories
	locks    *locks.KeyedMutex
	auditSvc *AuditService
}

func NewAmendmentService(repos *repository.Repositories, locks *locks.KeyedMutex, auditSvc *AuditService) *AmendmentService {
	return &AmendmentService{repos: repos, locks: locks, auditSvc: auditSvc}
}

// Create validates and records a new amendment in Pending Approval
func (s *AmendmentService) Create(ctx context.Context, contractID string, input *AmendmentInput, actor Actor) (*models.ContractAmendment, error) {
	if err := validation.OneOf("type", input.Type, models.AmendmentTypes); err != nil {
		return nil, err
	}
	if input.AmendmentDate.IsZero() {
		return nil, apperr.New(apperr.KindInvalidInput, "amendmentDate is required")
	}

	number := validation.Sanitize(input.AmendmentNumber)
	if number == "" {
		number = "AMD-" + strings.ToUpper(uuid.NewString()[:8])
	}

	unlock := s.locks.Lock(contractID)
	defer unlock()

	var amendment *models.ContractAmendment
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		contract, err := tx.Contract.FindByContractID(ctx, contractID)
		if err != nil {
			return notFound(err, "contract", contractID)
		}
		if err := amendable(contract); err != nil {
			return err
		}
		if err := validation.WithinPeriod("amendmentDate", input.AmendmentDate, contract.StartDate, contract.EndDate); err != nil {
			return err
		}

		exists, err := tx.Amendment.ExistsByNumber(ctx, number)
		if err != nil {
			return fmt.Errorf("failed to check amendment number: %w", err)
		}
		if err := validation.Unique(exists, "amendmentNumber", number); err != nil {
			return err
		}

		now := time.Now().UTC()
		original := contract.TotalValue
		candidate := &models.ContractAmendment{
			ContractID:      contractID,
			AmendmentNumber: number,
			AmendmentDate:   models.DateOnly(input.AmendmentDate),
			Type:            input.Type,
			Description:     validation.Sanitize(input.Description),
			Reason:          validation.Sanitize(input.Reason),
			ImpactAnalysis: models.ImpactAnalysis{
				ValueChange:    round2(input.ValueChange),
				TimelineChange: input.TimelineChange,
				ResourceChange: validation.Sanitize(input.ResourceChange),
			},
			OriginalValue:    original,
			NewValue:         round2(original + input.ValueChange),
			ChangePercentage: input.ValueChange / original * 100,
			Status:           models.AmendmentStatusPendingApproval,
			RequestedBy:      actor.Ref(),
		}
		candidate.RecordStatus(candidate.Status, actor.Ref(), now)

		existing, err := tx.Amendment.FindByContract(ctx, contractID, "")
		if err != nil {
			return fmt.Errorf("failed to load amendments: %w", err)
		}
		if err := validation.AmendmentConsistency(contract, existing, candidate); err != nil {
			return err
		}

		if err := tx.Amendment.Create(ctx, candidate); err != nil {
			return duplicate(err, "amendmentNumber", number)
		}
		amendment = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actor, AuditCreate, "ContractAmendment", number,
		fmt.Sprintf("Amendment %s on contract %s, value change %.2f", number, contractID, amendment.ImpactAnalysis.ValueChange))
	return amendment, nil
}

// SetStatus moves an amendment through its lifecycle. Implementing applies the
// value and timeline changes to the contract in the same transaction.
func (s *AmendmentService) SetStatus(ctx context.Context, contractID, number string, update *AmendmentUpdate, actor Actor) (*models.ContractAmendment, error) {
	unlock := s.locks.Lock(contractID)
	defer unlock()

	var amendment *models.ContractAmendment
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		a, err := tx.Amendment.FindByNumber(ctx, contractID, number)
		if err != nil {
			return notFound(err, "amendment", number)
		}
		if a.IsImplemented() {
			return apperr.New(apperr.KindImmutableAfterImplementation,
				"amendment %s has been implemented and cannot change", number)
		}

		if update.Description != nil {
			a.Description = validation.Sanitize(*update.Description)
		}
		if update.Reason != nil {
			a.Reason = validation.Sanitize(*update.Reason)
		}

		target := models.CanonicalAmendmentStatus(update.Status)
		if target != "" && target != a.Status {
			if err := statemachine.NewAmendmentFSM(a).TransitionTo(ctx, target); err != nil {
				return err
			}
			now := time.Now().UTC()
			switch target {
			case models.AmendmentStatusApproved:
				a.ApprovedBy = actor.Ref()
				a.ApprovalDate = &now
			case models.AmendmentStatusRejected:
				a.RejectionReason = validation.Sanitize(update.RejectionReason)
			case models.AmendmentStatusImplemented:
				if err := s.implement(ctx, tx, a, actor); err != nil {
					return err
				}
				a.ImplementedAt = &now
			}
			a.RecordStatus(target, actor.Ref(), now)
		}

		if err := tx.Amendment.Update(ctx, a); err != nil {
			return err
		}
		amendment = a
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "failed to update amendment")
	}

	s.auditSvc.Log(ctx, actor, auditActionFor(amendment.Status), "ContractAmendment", number,
		fmt.Sprintf("Amendment %s is now %s", number, amendment.Status))
	return amendment, nil
}

// amendable rejects amendments on deleted or closed contracts
func amendable(c *models.Contract) error {
	if !c.IsActive {
		return apperr.New(apperr.KindInvalidStatusTransition, "contract %s is deleted", c.ContractID)
	}
	if c.IsTerminal() {
		return apperr.New(apperr.KindInvalidStatusTransition, "contract %s is %s and cannot be amended", c.ContractID, c.Status)
	}
	return nil
}

// implement applies the amendment to its contract on tx
func (s *AmendmentService) implement(ctx context.Context, tx *repository.Repositories, a *models.ContractAmendment, actor Actor) error {
	contract, err := tx.Contract.FindByContractID(ctx, a.ContractID)
	if err != nil {
		return notFound(err, "contract", a.ContractID)
	}
	if err := amendable(contract); err != nil {
		return err
	}

	value := round2(contract.TotalValue + a.ImpactAnalysis.ValueChange)
	if value <= 0 {
		return apperr.New(apperr.KindConflictingAmendment,
			"implementing %s would bring contract %s to %.2f", a.AmendmentNumber, contract.ContractID, value)
	}
	end := contract.EndDate.AddDate(0, 0, a.ImpactAnalysis.TimelineChange)
	if err := validation.DateRange(contract.StartDate, end); err != nil {
		return err
	}
	if a.ImpactAnalysis.TimelineChange < 0 {
		if err := checkChildrenWithinPeriod(ctx, tx, contract.ContractID, contract.StartDate, end); err != nil {
			return err
		}
	}

	contract.TotalValue = value
	contract.EndDate = end
	contract.AppendAudit("amendment_implemented", actor.Ref(),
		fmt.Sprintf("%s: value %+.2f, timeline %+d days", a.AmendmentNumber, a.ImpactAnalysis.ValueChange, a.ImpactAnalysis.TimelineChange))
	return tx.Contract.Update(ctx, contract)
}

// List returns the amendments of a contract
func (s *AmendmentService) List(ctx context.Context, contractID string, filter AmendmentFilter) ([]models.ContractAmendment, error) {
	if _, err := s.repos.Contract.FindByContractID(ctx, contractID); err != nil {
		return nil, notFound(err, "contract", contractID)
	}
	amendments, err := s.repos.Amendment.FindByContract(ctx, contractID, filter.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to list amendments: %w", err)
	}
	if filter.IncludeTimeline {
		for i := range amendments {
			tl := amendments[i].BuildTimeline()
			amendments[i].Timeline = &tl
		}
	}
	return amendments, nil
}

func auditActionFor(status string) string {
	switch status {
	case models.AmendmentStatusApproved:
		return AuditApprove
	case models.AmendmentStatusRejected:
		return AuditReject
	case models.AmendmentStatusImplemented:
		return AuditImplement
	}
	return AuditUpdate
}
