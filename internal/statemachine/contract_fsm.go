package statemachine

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/sjperalta/fintera-contracts/internal/models"
)

// ContractFSM wraps a contract with its state machine
type ContractFSM struct {
	contract *models.Contract
	m        *machine
}

// NewContractFSM creates a new contract state machine
func NewContractFSM(contract *models.Contract) *ContractFSM {
	return &ContractFSM{
		contract: contract,
		m: newMachine("contract", contract.Status, fsm.Events{
			// pending → draft (back to editing)
			{Name: "revise", Src: []string{models.ContractStatusPending}, Dst: models.ContractStatusDraft},

			// draft → pending (awaiting approval)
			{Name: "submit", Src: []string{models.ContractStatusDraft}, Dst: models.ContractStatusPending},

			// draft/pending → active
			{Name: "activate", Src: []string{models.ContractStatusDraft, models.ContractStatusPending}, Dst: models.ContractStatusActive},

			// active → completed
			{Name: "complete", Src: []string{models.ContractStatusActive}, Dst: models.ContractStatusCompleted},

			// draft/pending/active → terminated
			{Name: "terminate", Src: []string{models.ContractStatusDraft, models.ContractStatusPending, models.ContractStatusActive}, Dst: models.ContractStatusTerminated},

			// active/completed → renewed
			{Name: "renew", Src: []string{models.ContractStatusActive, models.ContractStatusCompleted}, Dst: models.ContractStatusRenewed},
		}),
	}
}

// TransitionTo moves the contract to status
func (c *ContractFSM) TransitionTo(ctx context.Context, status string) error {
	next, err := c.m.transitionTo(ctx, status)
	if err != nil {
		return err
	}
	c.contract.Status = next
	return nil
}

// Activate transitions contract to active state
func (c *ContractFSM) Activate(ctx context.Context) error {
	return c.event(ctx, "activate")
}

// Renew marks the contract as superseded by a renewal
func (c *ContractFSM) Renew(ctx context.Context) error {
	return c.event(ctx, "renew")
}

// Terminate transitions contract to terminated state
func (c *ContractFSM) Terminate(ctx context.Context) error {
	return c.event(ctx, "terminate")
}

func (c *ContractFSM) event(ctx context.Context, name string) error {
	next, err := c.m.fire(ctx, name)
	if err != nil {
		return err
	}
	c.contract.Status = next
	return nil
}

// Current returns the current state
func (c *ContractFSM) Current() string {
	return c.m.fsm.Current()
}

// Can checks if a transition is possible
func (c *ContractFSM) Can(event string) bool {
	return c.m.fsm.Can(event)
}

// AvailableStatuses lists the statuses the contract may move to
func (c *ContractFSM) AvailableStatuses() []string {
	return c.m.targets()
}
