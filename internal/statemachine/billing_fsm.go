package statemachine

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

// BillingFSM wraps a billing schedule with its state machine
type BillingFSM struct {
	schedule *models.BillingSchedule
	m        *machine
}

// NewBillingFSM creates a new billing schedule state machine
func NewBillingFSM(schedule *models.BillingSchedule) *BillingFSM {
	return &BillingFSM{
		schedule: schedule,
		m: newMachine("billing schedule", schedule.Status, fsm.Events{
			// pending → scheduled
			{Name: "schedule", Src: []string{models.BillingStatusPending}, Dst: models.BillingStatusScheduled},

			// pending/scheduled → invoiced
			{Name: "invoice", Src: []string{models.BillingStatusPending, models.BillingStatusScheduled}, Dst: models.BillingStatusInvoiced},

			// invoiced → overdue (due date passed)
			{Name: "overdue", Src: []string{models.BillingStatusInvoiced}, Dst: models.BillingStatusOverdue},

			// invoiced/overdue → paid
			{Name: "pay", Src: []string{models.BillingStatusInvoiced, models.BillingStatusOverdue}, Dst: models.BillingStatusPaid},

			// pending/scheduled/invoiced → cancelled
			{Name: "cancel", Src: []string{models.BillingStatusPending, models.BillingStatusScheduled, models.BillingStatusInvoiced}, Dst: models.BillingStatusCancelled},
		}),
	}
}

// TransitionTo moves the schedule to status. A paid schedule rejects every change.
func (b *BillingFSM) TransitionTo(ctx context.Context, status string) error {
	if b.schedule.IsPaid() {
		return apperr.New(apperr.KindImmutablePaidRecord,
			"billing schedule %s has been paid and cannot change", b.schedule.ScheduleID)
	}
	next, err := b.m.transitionTo(ctx, status)
	if err != nil {
		return err
	}
	b.schedule.Status = next
	return nil
}

// MarkOverdue transitions an invoiced schedule to overdue
func (b *BillingFSM) MarkOverdue(ctx context.Context) error {
	next, err := b.m.fire(ctx, "overdue")
	if err != nil {
		return err
	}
	b.schedule.Status = next
	return nil
}

// Current returns the current state
func (b *BillingFSM) Current() string {
	return b.m.fsm.Current()
}
