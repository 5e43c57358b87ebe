package statemachine

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/sjperalta/fintera-contracts/internal/models"
)

// MilestoneFSM wraps a milestone with its state machine
type MilestoneFSM struct {
	milestone *models.Milestone
	m         *machine
}

// NewMilestoneFSM creates a new milestone state machine
func NewMilestoneFSM(milestone *models.Milestone) *MilestoneFSM {
	return &MilestoneFSM{
		milestone: milestone,
		m: newMachine("milestone", milestone.Status, fsm.Events{
			// not started/delayed → in progress
			{Name: "start", Src: []string{models.MilestoneStatusNotStarted, models.MilestoneStatusDelayed}, Dst: models.MilestoneStatusInProgress},

			{Name: "complete", Src: []string{models.MilestoneStatusNotStarted, models.MilestoneStatusInProgress, models.MilestoneStatusDelayed}, Dst: models.MilestoneStatusCompleted},
			{Name: "delay", Src: []string{models.MilestoneStatusNotStarted, models.MilestoneStatusInProgress}, Dst: models.MilestoneStatusDelayed},
			{Name: "cancel", Src: []string{models.MilestoneStatusNotStarted, models.MilestoneStatusInProgress, models.MilestoneStatusDelayed}, Dst: models.MilestoneStatusCancelled},
		}),
	}
}

// TransitionTo moves the milestone to status
func (ms *MilestoneFSM) TransitionTo(ctx context.Context, status string) error {
	next, err := ms.m.transitionTo(ctx, status)
	if err != nil {
		return err
	}
	ms.milestone.Status = next
	return nil
}

// Delay flags the milestone as delayed
func (ms *MilestoneFSM) Delay(ctx context.Context) error {
	return ms.TransitionTo(ctx, models.MilestoneStatusDelayed)
}

// Current returns the current state
func (ms *MilestoneFSM) Current() string {
	return ms.m.fsm.Current()
}
