package statemachine

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

// AmendmentFSM wraps an amendment with its state machine
type AmendmentFSM struct {
	amendment *models.ContractAmendment
	m         *machine
}

// NewAmendmentFSM creates a new amendment state machine
func NewAmendmentFSM(amendment *models.ContractAmendment) *AmendmentFSM {
	return &AmendmentFSM{
		amendment: amendment,
		m: newMachine("amendment", models.CanonicalAmendmentStatus(amendment.Status), fsm.Events{
			{Name: "approve", Src: []string{models.AmendmentStatusPendingApproval}, Dst: models.AmendmentStatusApproved},
			{Name: "reject", Src: []string{models.AmendmentStatusPendingApproval}, Dst: models.AmendmentStatusRejected},
			{Name: "implement", Src: []string{models.AmendmentStatusApproved}, Dst: models.AmendmentStatusImplemented},
		}),
	}
}

// TransitionTo moves the amendment to status. An implemented amendment
// rejects every change, including re-applying its own status.
func (a *AmendmentFSM) TransitionTo(ctx context.Context, status string) error {
	if a.amendment.IsImplemented() {
		return apperr.New(apperr.KindImmutableAfterImplementation,
			"amendment %s has been implemented and cannot change", a.amendment.AmendmentNumber)
	}
	next, err := a.m.transitionTo(ctx, models.CanonicalAmendmentStatus(status))
	if err != nil {
		return err
	}
	a.amendment.Status = next
	return nil
}

// Current returns the current state
func (a *AmendmentFSM) Current() string {
	return a.m.fsm.Current()
}
