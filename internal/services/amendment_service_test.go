package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/testutil"
)

func TestAmendmentService_ImplementRaisesContractValue(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-X", 500000, "2025-01-01", "2025-12-31")

	a, err := env.svc.Amendment.Create(ctx, "CTR-X", &AmendmentInput{
		AmendmentNumber: "AMD-001",
		AmendmentDate:   testutil.Date(t, "2025-04-01"),
		Type:            models.AmendmentTypeScopeChange,
		Description:     "Additional reporting module",
		ValueChange:     50000,
		TimelineChange:  30,
	}, manager)
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusPendingApproval, a.Status)
	assert.Equal(t, 500000.0, a.OriginalValue)
	assert.Equal(t, 550000.0, a.NewValue)
	assert.InDelta(t, 10.0, a.ChangePercentage, 1e-9)

	// value is untouched until implementation
	c, err := env.svc.Contract.Get(ctx, "CTR-X", false)
	require.NoError(t, err)
	assert.Equal(t, 500000.0, c.TotalValue)

	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-X", "AMD-001", &AmendmentUpdate{Status: models.AmendmentStatusApproved}, admin)
	require.NoError(t, err)
	a, err = env.svc.Amendment.SetStatus(ctx, "CTR-X", "AMD-001", &AmendmentUpdate{Status: models.AmendmentStatusImplemented}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusImplemented, a.Status)
	assert.NotNil(t, a.ImplementedAt)
	assert.Equal(t, admin.Ref(), a.ApprovedBy)

	c, err = env.svc.Contract.Get(ctx, "CTR-X", false)
	require.NoError(t, err)
	assert.Equal(t, 550000.0, c.TotalValue)
	assert.Equal(t, 500000.0, c.OriginalValue)
	assert.Equal(t, testutil.Date(t, "2026-01-30"), c.EndDate.UTC())
}

func TestAmendmentService_ImplementedIsImmutable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 1000, "2025-01-01", "2025-12-31")

	_, err := env.svc.Amendment.Create(ctx, "CTR-1", &AmendmentInput{
		AmendmentNumber: "AMD-1",
		AmendmentDate:   testutil.Date(t, "2025-02-01"),
		Type:            models.AmendmentTypePriceChange,
		ValueChange:     200,
	}, manager)
	require.NoError(t, err)
	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-1", "AMD-1", &AmendmentUpdate{Status: models.AmendmentStatusApproved}, admin)
	require.NoError(t, err)
	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-1", "AMD-1", &AmendmentUpdate{Status: models.AmendmentStatusImplemented}, admin)
	require.NoError(t, err)

	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-1", "AMD-1", &AmendmentUpdate{Status: models.AmendmentStatusRejected}, admin)
	assert.Equal(t, apperr.KindImmutableAfterImplementation, apperr.KindOf(err))

	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-1", "AMD-1", &AmendmentUpdate{Description: stringPtr("rewritten")}, admin)
	assert.Equal(t, apperr.KindImmutableAfterImplementation, apperr.KindOf(err))

	stored, err := env.repos.Amendment.FindByNumber(ctx, "CTR-1", "AMD-1")
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusImplemented, stored.Status)
	assert.Empty(t, stored.Description)

	c, err := env.svc.Contract.Get(ctx, "CTR-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, c.TotalValue)
}

func TestAmendmentService_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 1000, "2025-01-01", "2025-12-31")

	input := func(number, date string, change float64) *AmendmentInput {
		return &AmendmentInput{
			AmendmentNumber: number,
			AmendmentDate:   testutil.Date(t, date),
			Type:            models.AmendmentTypeScopeChange,
			ValueChange:     change,
		}
	}

	_, err := env.svc.Amendment.Create(ctx, "CTR-1", input("AMD-1", "2025-03-01", 100), manager)
	require.NoError(t, err)

	t.Run("duplicate number", func(t *testing.T) {
		_, err := env.svc.Amendment.Create(ctx, "CTR-1", input("AMD-1", "2025-04-01", 100), manager)
		assert.Equal(t, apperr.KindDuplicateKey, apperr.KindOf(err))
	})

	t.Run("date outside the contract period", func(t *testing.T) {
		_, err := env.svc.Amendment.Create(ctx, "CTR-1", input("AMD-2", "2026-03-01", 100), manager)
		assert.Equal(t, apperr.KindOutOfPeriod, apperr.KindOf(err))
	})

	t.Run("same type pending on the same date", func(t *testing.T) {
		_, err := env.svc.Amendment.Create(ctx, "CTR-1", input("AMD-3", "2025-03-01", 50), manager)
		assert.Equal(t, apperr.KindConflictingAmendment, apperr.KindOf(err))
	})

	t.Run("change that wipes out the value", func(t *testing.T) {
		_, err := env.svc.Amendment.Create(ctx, "CTR-1", input("AMD-4", "2025-05-01", -1000), manager)
		assert.Equal(t, apperr.KindConflictingAmendment, apperr.KindOf(err))
	})

	t.Run("unknown type", func(t *testing.T) {
		in := input("AMD-5", "2025-05-01", 10)
		in.Type = "Rebrand"
		_, err := env.svc.Amendment.Create(ctx, "CTR-1", in, manager)
		assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	})

	t.Run("implement straight from pending", func(t *testing.T) {
		_, err := env.svc.Amendment.SetStatus(ctx, "CTR-1", "AMD-1", &AmendmentUpdate{Status: models.AmendmentStatusImplemented}, admin)
		assert.Equal(t, apperr.KindInvalidStatusTransition, apperr.KindOf(err))
	})

	amendments, err := env.svc.Amendment.List(ctx, "CTR-1", AmendmentFilter{})
	require.NoError(t, err)
	assert.Len(t, amendments, 1)
}

func TestAmendmentService_ListAcceptsPendingAlias(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 1000, "2025-01-01", "2025-12-31")

	_, err := env.svc.Amendment.Create(ctx, "CTR-1", &AmendmentInput{
		AmendmentNumber: "AMD-1",
		AmendmentDate:   testutil.Date(t, "2025-03-01"),
		Type:            models.AmendmentTypeTimelineChange,
		TimelineChange:  14,
	}, manager)
	require.NoError(t, err)
	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-1", "AMD-1", &AmendmentUpdate{
		Status:          models.AmendmentStatusRejected,
		RejectionReason: "out of budget",
	}, admin)
	require.NoError(t, err)
	_, err = env.svc.Amendment.Create(ctx, "CTR-1", &AmendmentInput{
		AmendmentNumber: "AMD-2",
		AmendmentDate:   testutil.Date(t, "2025-04-01"),
		Type:            models.AmendmentTypeTimelineChange,
		TimelineChange:  7,
	}, manager)
	require.NoError(t, err)

	pending, err := env.svc.Amendment.List(ctx, "CTR-1", AmendmentFilter{Status: models.AmendmentStatusPendingAlias, IncludeTimeline: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "AMD-2", pending[0].AmendmentNumber)
	assert.NotNil(t, pending[0].Timeline)

	_, err = env.svc.Amendment.List(ctx, "CTR-404", AmendmentFilter{})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAmendmentService_ShorteningKeepsChildrenInPeriod(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 10000, "2025-01-01", "2025-12-31")
	env.createMilestone(t, "CTR-1", "MS-1", 20, "2025-12-15")

	_, err := env.svc.Amendment.Create(ctx, "CTR-1", &AmendmentInput{
		AmendmentNumber: "AMD-1",
		AmendmentDate:   testutil.Date(t, "2025-03-01"),
		Type:            models.AmendmentTypeTimelineChange,
		TimelineChange:  -30,
	}, manager)
	require.NoError(t, err)
	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-1", "AMD-1", &AmendmentUpdate{Status: models.AmendmentStatusApproved}, admin)
	require.NoError(t, err)

	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-1", "AMD-1", &AmendmentUpdate{Status: models.AmendmentStatusImplemented}, admin)
	assert.Equal(t, apperr.KindOutOfPeriod, apperr.KindOf(err))

	stored, err := env.repos.Amendment.FindByNumber(ctx, "CTR-1", "AMD-1")
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusApproved, stored.Status)
	c, err := env.svc.Contract.Get(ctx, "CTR-1", false)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(t, "2025-12-31"), c.EndDate.UTC())

	_, err = env.svc.Milestone.Update(ctx, "CTR-1", "MS-1", &MilestoneUpdate{TargetDate: timePtr(testutil.Date(t, "2025-11-15"))}, manager)
	require.NoError(t, err)
	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-1", "AMD-1", &AmendmentUpdate{Status: models.AmendmentStatusImplemented}, admin)
	require.NoError(t, err)
	c, err = env.svc.Contract.Get(ctx, "CTR-1", false)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(t, "2025-12-01"), c.EndDate.UTC())
}

func TestAmendmentService_ClosedContractsCannotBeAmended(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-T", 1000, "2025-01-01", "2025-12-31")
	env.createContract(t, "CTR-D", 1000, "2025-01-01", "2025-12-31")

	input := &AmendmentInput{
		AmendmentNumber: "AMD-T1",
		AmendmentDate:   testutil.Date(t, "2025-03-01"),
		Type:            models.AmendmentTypePriceChange,
		ValueChange:     100,
	}
	_, err := env.svc.Amendment.Create(ctx, "CTR-T", input, manager)
	require.NoError(t, err)
	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-T", "AMD-T1", &AmendmentUpdate{Status: models.AmendmentStatusApproved}, admin)
	require.NoError(t, err)

	_, err = env.svc.Contract.Update(ctx, "CTR-T", &ContractPatch{Status: stringPtr(models.ContractStatusTerminated)}, manager)
	require.NoError(t, err)

	input.AmendmentNumber = "AMD-T2"
	_, err = env.svc.Amendment.Create(ctx, "CTR-T", input, manager)
	assert.Equal(t, apperr.KindInvalidStatusTransition, apperr.KindOf(err))

	// an approval granted before termination cannot be implemented afterwards
	_, err = env.svc.Amendment.SetStatus(ctx, "CTR-T", "AMD-T1", &AmendmentUpdate{Status: models.AmendmentStatusImplemented}, admin)
	assert.Equal(t, apperr.KindInvalidStatusTransition, apperr.KindOf(err))
	c, err := env.svc.Contract.Get(ctx, "CTR-T", false)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, c.TotalValue)

	require.NoError(t, env.svc.Contract.Delete(ctx, "CTR-D", false, manager))
	input.AmendmentNumber = "AMD-D1"
	_, err = env.svc.Amendment.Create(ctx, "CTR-D", input, manager)
	assert.Equal(t, apperr.KindInvalidStatusTransition, apperr.KindOf(err))
}
