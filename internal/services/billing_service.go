package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/locks"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/statemachine"
	"github.com/sjperalta/fintera-contracts/internal/validation"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// defaultUpcomingDays is the horizon of the upcoming billing listing
const defaultUpcomingDays = 30

var billingTypes = []string{models.BillingTypeOneTime, models.BillingTypeRecurring, models.BillingTypeMilestone}

var billingStatuses = []string{
	models.BillingStatusPending,
	models.BillingStatusScheduled,
	models.BillingStatusInvoiced,
	models.BillingStatusOverdue,
	models.BillingStatusPaid,
	models.BillingStatusCancelled,
}

// BillingInput carries the fields of a new billing schedule
type BillingInput struct {
	ScheduleID       string
	MilestoneID      *string
	BillingType      string
	BillingDate      time.Time
	Frequency        string
	RecurringStart   *time.Time
	RecurringEnd     *time.Time
	Amount           float64
	Currency         string
	TaxApplicable    bool
	TaxRate          float64
	Description      string
	Status           string
	ParentScheduleID *string
}

// BillingUpdate moves a schedule through invoicing and payment
type BillingUpdate struct {
	Status           string
	InvoiceNumber    string
	InvoiceDate      *time.Time
	DueDate          *time.Time
	PaymentDate      *time.Time
	PaymentAmount    *float64
	PaymentMethod    string
	PaymentReference string
	Description      *string
}

// BillingFilter enumerates the options of the billing listing
type BillingFilter struct {
	Status                 string
	Upcoming               bool
	Days                   int
	IncludePaymentTracking bool
}

type BillingService struct {
	repos     *repository.Repositories
	locks     *locks.KeyedMutex
	auditSvc  *AuditService
	generator *BillingScheduleGenerator
}

func NewBillingService(repos *repository.Repositories, locks *locks.KeyedMutex, auditSvc *AuditService) *BillingService {
	return &BillingService{
		repos:     repos,
		locks:     locks,
		auditSvc:  auditSvc,
		generator: NewBillingScheduleGenerator(),
	}
}

// Create validates and persists a billing schedule for a contract
func (s *BillingService) Create(ctx context.Context, contractID string, input *BillingInput, actor Actor) (*models.BillingSchedule, error) {
	unlock := s.locks.Lock(contractID)
	defer unlock()

	var schedule *models.BillingSchedule
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		contract, err := tx.Contract.FindByContractID(ctx, contractID)
		if err != nil {
			return notFound(err, "contract", contractID)
		}
		schedule, err = s.createInTx(ctx, tx, contract, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actor, AuditCreate, "BillingSchedule", schedule.ScheduleID,
		fmt.Sprintf("%s billing of %.2f %s for contract %s", schedule.BillingType, schedule.TotalAmount, schedule.Currency, contractID))
	return schedule, nil
}

// createInTx builds and writes a schedule on tx. Callers hold the contract lock.
func (s *BillingService) createInTx(ctx context.Context, tx *repository.Repositories, contract *models.Contract, input *BillingInput) (*models.BillingSchedule, error) {
	schedule, err := s.build(contract, input)
	if err != nil {
		return nil, err
	}

	exists, err := tx.BillingSchedule.ExistsByScheduleID(ctx, schedule.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to check schedule id: %w", err)
	}
	if err := validation.Unique(exists, "scheduleId", schedule.ScheduleID); err != nil {
		return nil, err
	}

	if err := tx.BillingSchedule.Create(ctx, schedule); err != nil {
		return nil, duplicate(err, "scheduleId", schedule.ScheduleID)
	}
	return schedule, nil
}

func (s *BillingService) build(contract *models.Contract, input *BillingInput) (*models.BillingSchedule, error) {
	billingType := input.BillingType
	if billingType == "" {
		billingType = models.BillingTypeOneTime
		if input.Frequency != "" {
			billingType = models.BillingTypeRecurring
		}
	}
	if err := validation.OneOf("billingType", billingType, billingTypes); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = models.BillingStatusPending
	}
	if status != models.BillingStatusPending && status != models.BillingStatusScheduled {
		return nil, apperr.New(apperr.KindInvalidStatusTransition,
			"a billing schedule starts as %s or %s", models.BillingStatusPending, models.BillingStatusScheduled)
	}

	if err := validation.Positive("amount", input.Amount); err != nil {
		return nil, err
	}
	if input.TaxApplicable && (input.TaxRate < 0 || input.TaxRate > 100) {
		return nil, apperr.New(apperr.KindInvalidValue, "taxRate must be between 0 and 100")
	}

	scheduleID := validation.Sanitize(input.ScheduleID)
	if scheduleID == "" {
		scheduleID = "BS-" + strings.ToUpper(uuid.NewString()[:8])
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = contract.Currency
	}

	schedule := &models.BillingSchedule{
		ContractID:       contract.ContractID,
		MilestoneID:      input.MilestoneID,
		ScheduleID:       scheduleID,
		BillingType:      billingType,
		Amount:           round2(input.Amount),
		Currency:         currency,
		TaxApplicable:    input.TaxApplicable,
		Status:           status,
		Description:      validation.Sanitize(input.Description),
		ParentScheduleID: input.ParentScheduleID,
	}
	if input.TaxApplicable {
		schedule.TaxRate = input.TaxRate
	}
	schedule.TaxAmount, schedule.TotalAmount = taxFor(schedule.Amount, schedule.TaxRate, schedule.TaxApplicable)

	if billingType == models.BillingTypeRecurring {
		if err := s.applyRecurring(contract, schedule, input); err != nil {
			return nil, err
		}
		return schedule, nil
	}

	if input.BillingDate.IsZero() {
		return nil, apperr.New(apperr.KindInvalidInput, "billingDate is required")
	}
	if err := validation.WithinPeriod("billingDate", input.BillingDate, contract.StartDate, contract.EndDate); err != nil {
		return nil, err
	}
	schedule.BillingDate = models.DateOnly(input.BillingDate)
	return schedule, nil
}

// applyRecurring validates the recurring window and generates its occurrences
func (s *BillingService) applyRecurring(contract *models.Contract, schedule *models.BillingSchedule, input *BillingInput) error {
	if err := validation.OneOf("frequency", input.Frequency, frequencies); err != nil {
		return err
	}

	start, end := contract.StartDate, contract.EndDate
	if input.RecurringStart != nil {
		start = *input.RecurringStart
	} else if !input.BillingDate.IsZero() {
		start = input.BillingDate
	}
	if input.RecurringEnd != nil {
		end = *input.RecurringEnd
	}
	start, end = models.DateOnly(start), models.DateOnly(end)

	if err := validation.WithinPeriod("recurringStartDate", start, contract.StartDate, contract.EndDate); err != nil {
		return err
	}
	if err := validation.WithinPeriod("recurringEndDate", end, contract.StartDate, contract.EndDate); err != nil {
		return err
	}
	if err := validation.DateRange(start, end); err != nil {
		return err
	}

	occurrences, err := s.generator.Generate(input.Frequency, start, end, schedule.Amount)
	if err != nil {
		return err
	}

	schedule.Frequency = input.Frequency
	schedule.RecurringStart = &start
	schedule.RecurringEnd = &end
	schedule.RecurringSchedule = occurrences
	schedule.BillingDate = start
	return nil
}

// Update applies a status transition and its invoice or payment details
func (s *BillingService) Update(ctx context.Context, contractID, scheduleID string, update *BillingUpdate, actor Actor) (*models.BillingSchedule, error) {
	unlock := s.locks.Lock(contractID)
	defer unlock()

	var schedule *models.BillingSchedule
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		b, err := s.findOwned(ctx, tx, contractID, scheduleID)
		if err != nil {
			return err
		}
		if b.IsPaid() {
			return apperr.New(apperr.KindImmutablePaidRecord,
				"billing schedule %s has been paid and cannot change", scheduleID)
		}

		if update.Status != "" && update.Status != b.Status {
			if err := validation.OneOf("status", update.Status, billingStatuses); err != nil {
				return err
			}
			if err := statemachine.NewBillingFSM(b).TransitionTo(ctx, update.Status); err != nil {
				return err
			}
			switch b.Status {
			case models.BillingStatusInvoiced:
				s.recordInvoice(b, update)
			case models.BillingStatusPaid:
				if err := s.recordPayment(b, update); err != nil {
					return err
				}
			}
		} else if b.Status == models.BillingStatusInvoiced && update.DueDate != nil {
			due := models.DateOnly(*update.DueDate)
			b.DueDate = &due
		}

		if update.Description != nil {
			b.Description = validation.Sanitize(*update.Description)
		}

		if err := tx.BillingSchedule.Update(ctx, b); err != nil {
			return err
		}
		schedule = b
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "failed to update billing schedule")
	}

	s.auditSvc.Log(ctx, actor, AuditUpdate, "BillingSchedule", scheduleID,
		fmt.Sprintf("Billing schedule %s is now %s", scheduleID, schedule.Status))
	return schedule, nil
}

func (s *BillingService) findOwned(ctx context.Context, tx *repository.Repositories, contractID, scheduleID string) (*models.BillingSchedule, error) {
	b, err := tx.BillingSchedule.FindByScheduleID(ctx, scheduleID)
	if err != nil {
		return nil, notFound(err, "billing schedule", scheduleID)
	}
	if b.ContractID != contractID {
		return nil, apperr.New(apperr.KindNotFound, "billing schedule %s not found on contract %s", scheduleID, contractID)
	}
	return b, nil
}

func (s *BillingService) recordInvoice(b *models.BillingSchedule, update *BillingUpdate) {
	invoiceDate := models.DateOnly(time.Now().UTC())
	if update.InvoiceDate != nil {
		invoiceDate = models.DateOnly(*update.InvoiceDate)
	}
	due := invoiceDate.AddDate(0, 0, models.DefaultPaymentDueDays)
	if update.DueDate != nil {
		due = models.DateOnly(*update.DueDate)
	}
	number := validation.Sanitize(update.InvoiceNumber)
	if number == "" {
		number = "INV-" + b.ScheduleID
	}
	b.InvoiceNumber = number
	b.InvoiceDate = &invoiceDate
	b.DueDate = &due
}

func (s *BillingService) recordPayment(b *models.BillingSchedule, update *BillingUpdate) error {
	paidAt := time.Now().UTC()
	if update.PaymentDate != nil {
		paidAt = update.PaymentDate.UTC()
	}
	amount := b.TotalAmount
	if update.PaymentAmount != nil {
		if err := validation.Positive("paymentAmount", *update.PaymentAmount); err != nil {
			return err
		}
		amount = round2(*update.PaymentAmount)
	}
	b.PaymentDate = &paidAt
	b.PaymentAmount = &amount
	b.PaymentMethod = validation.Sanitize(update.PaymentMethod)
	b.PaymentReference = validation.Sanitize(update.PaymentReference)
	return nil
}

// List returns the billing schedules of a contract
func (s *BillingService) List(ctx context.Context, contractID string, filter BillingFilter) ([]models.BillingSchedule, error) {
	if _, err := s.repos.Contract.FindByContractID(ctx, contractID); err != nil {
		return nil, notFound(err, "contract", contractID)
	}
	if filter.Status != "" {
		if err := validation.OneOf("status", filter.Status, billingStatuses); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	query := &repository.BillingQuery{ContractID: contractID, Status: filter.Status}
	if filter.Upcoming {
		days := filter.Days
		if days <= 0 {
			days = defaultUpcomingDays
		}
		from := models.DateOnly(now)
		to := from.AddDate(0, 0, days)
		query.From, query.To = &from, &to
	}

	schedules, err := s.repos.BillingSchedule.FindByContract(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing schedules: %w", err)
	}
	if filter.IncludePaymentTracking {
		for i := range schedules {
			pt := schedules[i].Track(now)
			schedules[i].PaymentTracking = &pt
		}
	}
	return schedules, nil
}

// MarkOverdue moves invoiced schedules past their due date to Overdue and
// returns the schedules it moved.
func (s *BillingService) MarkOverdue(ctx context.Context) ([]models.BillingSchedule, error) {
	now := time.Now().UTC()
	candidates, err := s.repos.BillingSchedule.FindOverdueCandidates(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find overdue candidates: %w", err)
	}

	moved := []models.BillingSchedule{}
	var errs []error
	for _, c := range candidates {
		b, err := s.markOverdue(ctx, c.ContractID, c.ScheduleID, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if b != nil {
			moved = append(moved, *b)
		}
	}
	if len(moved) > 0 {
		logger.Info("billing schedules marked overdue", slog.Int("count", len(moved)))
	}
	return moved, errors.Join(errs...)
}

func (s *BillingService) markOverdue(ctx context.Context, contractID, scheduleID string, now time.Time) (*models.BillingSchedule, error) {
	unlock := s.locks.Lock(contractID)
	defer unlock()

	var moved *models.BillingSchedule
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		b, err := tx.BillingSchedule.FindByScheduleID(ctx, scheduleID)
		if err != nil {
			return err
		}
		// re-checked under the lock, a payment may have landed meanwhile
		if !b.MayMarkOverdue(now) {
			return nil
		}
		if err := statemachine.NewBillingFSM(b).MarkOverdue(ctx); err != nil {
			return err
		}
		if err := tx.BillingSchedule.Update(ctx, b); err != nil {
			return err
		}
		moved = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark %s overdue: %w", scheduleID, err)
	}
	return moved, nil
}
