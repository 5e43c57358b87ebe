package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

func TestContractTransitions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		from, to string
		ok       bool
	}{
		{models.ContractStatusDraft, models.ContractStatusPending, true},
		{models.ContractStatusDraft, models.ContractStatusActive, true},
		{models.ContractStatusDraft, models.ContractStatusTerminated, true},
		{models.ContractStatusDraft, models.ContractStatusCompleted, false},
		{models.ContractStatusPending, models.ContractStatusDraft, true},
		{models.ContractStatusActive, models.ContractStatusCompleted, true},
		{models.ContractStatusActive, models.ContractStatusRenewed, true},
		{models.ContractStatusActive, models.ContractStatusDraft, false},
		{models.ContractStatusCompleted, models.ContractStatusRenewed, true},
		{models.ContractStatusCompleted, models.ContractStatusActive, false},
		{models.ContractStatusTerminated, models.ContractStatusActive, false},
		{models.ContractStatusRenewed, models.ContractStatusActive, false},
		{models.ContractStatusActive, models.ContractStatusActive, true},
		{models.ContractStatusActive, "Archived", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			c := &models.Contract{Status: tt.from}
			err := NewContractFSM(c).TransitionTo(ctx, tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, c.Status)
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrInvalidStatusTransition))
			assert.Equal(t, tt.from, c.Status)
		})
	}
}

func TestContractNamedEvents(t *testing.T) {
	ctx := context.Background()
	c := &models.Contract{Status: models.ContractStatusPending}
	f := NewContractFSM(c)

	assert.ElementsMatch(t,
		[]string{models.ContractStatusDraft, models.ContractStatusActive, models.ContractStatusTerminated},
		f.AvailableStatuses())

	require.NoError(t, f.Activate(ctx))
	assert.Equal(t, models.ContractStatusActive, c.Status)
	require.NoError(t, f.Renew(ctx))
	assert.Equal(t, models.ContractStatusRenewed, c.Status)

	err := f.Terminate(ctx)
	assert.True(t, errors.Is(err, apperr.ErrInvalidStatusTransition))
}

func TestAmendmentTransitions(t *testing.T) {
	ctx := context.Background()

	a := &models.ContractAmendment{AmendmentNumber: "AMD-1", Status: models.AmendmentStatusPendingApproval}
	f := NewAmendmentFSM(a)
	assert.True(t, errors.Is(f.TransitionTo(ctx, models.AmendmentStatusImplemented), apperr.ErrInvalidStatusTransition))
	require.NoError(t, f.TransitionTo(ctx, models.AmendmentStatusApproved))
	require.NoError(t, f.TransitionTo(ctx, models.AmendmentStatusImplemented))
	assert.Equal(t, models.AmendmentStatusImplemented, a.Status)

	for _, target := range []string{models.AmendmentStatusApproved, models.AmendmentStatusRejected, models.AmendmentStatusImplemented} {
		err := NewAmendmentFSM(a).TransitionTo(ctx, target)
		assert.True(t, errors.Is(err, apperr.ErrImmutableAfterImplementation), target)
	}

	rejected := &models.ContractAmendment{Status: models.AmendmentStatusRejected}
	assert.True(t, errors.Is(NewAmendmentFSM(rejected).TransitionTo(ctx, models.AmendmentStatusApproved), apperr.ErrInvalidStatusTransition))
}

func TestAmendmentAcceptsPendingSynonym(t *testing.T) {
	a := &models.ContractAmendment{Status: models.AmendmentStatusPendingAlias}
	f := NewAmendmentFSM(a)
	assert.Equal(t, models.AmendmentStatusPendingApproval, f.Current())
	require.NoError(t, f.TransitionTo(context.Background(), models.AmendmentStatusRejected))
	assert.Equal(t, models.AmendmentStatusRejected, a.Status)
}

func TestMilestoneTransitions(t *testing.T) {
	ctx := context.Background()

	m := &models.Milestone{Status: models.MilestoneStatusNotStarted}
	f := NewMilestoneFSM(m)
	require.NoError(t, f.Delay(ctx))
	require.NoError(t, f.TransitionTo(ctx, models.MilestoneStatusInProgress))
	require.NoError(t, f.TransitionTo(ctx, models.MilestoneStatusCompleted))

	err := NewMilestoneFSM(m).TransitionTo(ctx, models.MilestoneStatusInProgress)
	assert.True(t, errors.Is(err, apperr.ErrInvalidStatusTransition))

	cancelled := &models.Milestone{Status: models.MilestoneStatusCancelled}
	err = NewMilestoneFSM(cancelled).TransitionTo(ctx, models.MilestoneStatusCompleted)
	assert.True(t, errors.Is(err, apperr.ErrInvalidStatusTransition))
}

func TestBillingTransitions(t *testing.T) {
	ctx := context.Background()

	b := &models.BillingSchedule{ScheduleID: "BS-1", Status: models.BillingStatusPending}
	f := NewBillingFSM(b)
	assert.True(t, errors.Is(f.TransitionTo(ctx, models.BillingStatusPaid), apperr.ErrInvalidStatusTransition))
	require.NoError(t, f.TransitionTo(ctx, models.BillingStatusInvoiced))
	require.NoError(t, f.MarkOverdue(ctx))
	require.NoError(t, f.TransitionTo(ctx, models.BillingStatusPaid))
	assert.Equal(t, models.BillingStatusPaid, b.Status)

	err := NewBillingFSM(b).TransitionTo(ctx, models.BillingStatusPaid)
	assert.True(t, errors.Is(err, apperr.ErrImmutablePaidRecord))

	overdue := &models.BillingSchedule{Status: models.BillingStatusOverdue}
	err = NewBillingFSM(overdue).TransitionTo(ctx, models.BillingStatusCancelled)
	assert.True(t, errors.Is(err, apperr.ErrInvalidStatusTransition))
}
