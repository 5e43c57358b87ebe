package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/testutil"
)

func TestMilestoneService_PercentageBudget(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 10000, "2025-01-01", "2025-12-31")

	full := env.createMilestone(t, "CTR-1", "MS-1", 100, "2025-06-01")
	assert.Equal(t, 10000.0, full.Value, "value defaults to the share of the contract")

	_, err := env.svc.Milestone.Create(ctx, "CTR-1", &MilestoneInput{
		MilestoneID: "MS-2",
		Title:       "One more",
		TargetDate:  testutil.Date(t, "2025-07-01"),
		Percentage:  1,
	}, manager)
	assert.Equal(t, apperr.KindPercentageBudgetExceeded, apperr.KindOf(err))

	exists, err := env.repos.Milestone.ExistsByMilestoneID(ctx, "MS-2")
	require.NoError(t, err)
	assert.False(t, exists)

	// cancelling frees the budget
	_, err = env.svc.Milestone.Update(ctx, "CTR-1", "MS-1", &MilestoneUpdate{Status: models.MilestoneStatusCancelled}, manager)
	require.NoError(t, err)
	env.createMilestone(t, "CTR-1", "MS-2", 60, "2025-07-01")
	env.createMilestone(t, "CTR-1", "MS-3", 40, "2025-08-01")

	_, err = env.svc.Milestone.Update(ctx, "CTR-1", "MS-3", &MilestoneUpdate{Percentage: floatPtr(41)}, manager)
	assert.Equal(t, apperr.KindPercentageBudgetExceeded, apperr.KindOf(err))

	var total float64
	milestones, err := env.repos.Milestone.FindByContract(ctx, "CTR-1", "")
	require.NoError(t, err)
	for _, m := range milestones {
		if m.CountsTowardsBudget() {
			total += m.Percentage
		}
	}
	assert.LessOrEqual(t, total, 100.0)
}

func TestMilestoneService_Dependencies(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 10000, "2025-01-01", "2025-12-31")

	env.createMilestone(t, "CTR-1", "A", 10, "2025-02-01")
	env.createMilestone(t, "CTR-1", "B", 10, "2025-03-01", "A")
	env.createMilestone(t, "CTR-1", "C", 10, "2025-04-01", "B")

	_, err := env.svc.Milestone.Update(ctx, "CTR-1", "A", &MilestoneUpdate{Dependencies: []string{"C"}}, manager)
	assert.Equal(t, apperr.KindCircularDependency, apperr.KindOf(err))

	a, err := env.repos.Milestone.FindByMilestoneID(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, a.Dependencies, "no partial edge is stored")

	_, err = env.svc.Milestone.Create(ctx, "CTR-1", &MilestoneInput{
		MilestoneID:  "D",
		Title:        "Depends on nothing real",
		TargetDate:   testutil.Date(t, "2025-05-01"),
		Percentage:   10,
		Dependencies: []string{"Z"},
	}, manager)
	assert.Equal(t, apperr.KindUnknownDependency, apperr.KindOf(err))

	_, err = env.svc.Milestone.Update(ctx, "CTR-1", "B", &MilestoneUpdate{Dependencies: []string{"B"}}, manager)
	assert.Equal(t, apperr.KindCircularDependency, apperr.KindOf(err))
}

func TestMilestoneService_CreateValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 10000, "2025-01-01", "2025-12-31")
	env.createMilestone(t, "CTR-1", "MS-1", 10, "2025-02-01")

	cases := []struct {
		name  string
		input MilestoneInput
		kind  apperr.Kind
	}{
		{"duplicate id", MilestoneInput{MilestoneID: "MS-1", Title: "Dup", TargetDate: testutil.Date(t, "2025-03-01"), Percentage: 5}, apperr.KindDuplicateKey},
		{"target outside period", MilestoneInput{MilestoneID: "MS-2", Title: "Late", TargetDate: testutil.Date(t, "2026-03-01"), Percentage: 5}, apperr.KindOutOfPeriod},
		{"zero percentage", MilestoneInput{MilestoneID: "MS-3", Title: "Zero", TargetDate: testutil.Date(t, "2025-03-01")}, apperr.KindInvalidValue},
		{"negative value", MilestoneInput{MilestoneID: "MS-4", Title: "Neg", TargetDate: testutil.Date(t, "2025-03-01"), Percentage: 5, Value: -1}, apperr.KindInvalidValue},
		{"missing title", MilestoneInput{MilestoneID: "MS-5", TargetDate: testutil.Date(t, "2025-03-01"), Percentage: 5}, apperr.KindInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Milestone.Create(ctx, "CTR-1", &tc.input, manager)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}

	_, err := env.svc.Milestone.Create(ctx, "CTR-404", &MilestoneInput{Title: "x", TargetDate: testutil.Date(t, "2025-03-01"), Percentage: 5}, manager)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMilestoneService_CompleteWithTriggerBilling(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 80000, "2025-01-01", "2025-12-31")
	env.createMilestone(t, "CTR-1", "MS-1", 25, "2025-04-30")

	res, err := env.svc.Milestone.Update(ctx, "CTR-1", "MS-1", &MilestoneUpdate{
		Status:         models.MilestoneStatusCompleted,
		CompletionDate: timePtr(testutil.Date(t, "2025-04-28")),
		TriggerBilling: true,
	}, manager)
	require.NoError(t, err)
	assert.True(t, res.BillingTriggered)
	require.NotNil(t, res.BillingScheduleCreated)
	assert.Equal(t, res.Milestone.Value, res.BillingScheduleCreated.Amount)
	assert.Equal(t, 20000.0, res.BillingScheduleCreated.Amount)
	assert.Equal(t, models.BillingTypeMilestone, res.BillingScheduleCreated.BillingType)
	assert.Empty(t, res.Milestone.CompletionWarnings)

	schedules, err := env.svc.Billing.List(ctx, "CTR-1", BillingFilter{})
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, res.BillingScheduleID, schedules[0].ScheduleID)
	require.NotNil(t, schedules[0].MilestoneID)
	assert.Equal(t, "MS-1", *schedules[0].MilestoneID)

	stored, err := env.repos.Milestone.FindByMilestoneID(ctx, "MS-1")
	require.NoError(t, err)
	require.NotNil(t, stored.BillingScheduleID)
	assert.Equal(t, res.BillingScheduleID, *stored.BillingScheduleID)

	// billing twice returns the existing schedule
	again, err := env.svc.Milestone.Update(ctx, "CTR-1", "MS-1", &MilestoneUpdate{TriggerBilling: true}, manager)
	require.NoError(t, err)
	assert.False(t, again.BillingTriggered)
	assert.Equal(t, res.BillingScheduleID, again.BillingScheduleID)
}

func TestMilestoneService_TriggeredBillingUsesPlannedValue(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 10000, "2025-01-01", "2025-12-31")
	env.createMilestone(t, "CTR-1", "MS-1", 50, "2025-06-01")

	res, err := env.svc.Milestone.Update(ctx, "CTR-1", "MS-1", &MilestoneUpdate{
		Status:         models.MilestoneStatusCompleted,
		CompletionDate: timePtr(testutil.Date(t, "2025-06-01")),
		ActualValue:    floatPtr(6000),
		TriggerBilling: true,
	}, manager)
	require.NoError(t, err)
	require.NotNil(t, res.BillingScheduleCreated)
	assert.Equal(t, 5000.0, res.Milestone.Value)
	assert.Equal(t, 5000.0, res.BillingScheduleCreated.Amount)
	require.Len(t, res.Milestone.CompletionWarnings, 1)
	assert.Contains(t, res.Milestone.CompletionWarnings[0], "exceeds planned value")
}

func TestMilestoneService_ClosedMilestoneFiguresAreFrozen(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 10000, "2025-01-01", "2025-12-31")
	env.createMilestone(t, "CTR-1", "MS-1", 30, "2025-05-01")
	env.createMilestone(t, "CTR-1", "MS-2", 20, "2025-06-01")

	_, err := env.svc.Milestone.Update(ctx, "CTR-1", "MS-1", &MilestoneUpdate{Status: models.MilestoneStatusCompleted}, manager)
	require.NoError(t, err)
	_, err = env.svc.Milestone.Update(ctx, "CTR-1", "MS-2", &MilestoneUpdate{Status: models.MilestoneStatusCancelled}, manager)
	require.NoError(t, err)

	for _, id := range []string{"MS-1", "MS-2"} {
		_, err = env.svc.Milestone.Update(ctx, "CTR-1", id, &MilestoneUpdate{Value: floatPtr(9000)}, manager)
		assert.Equal(t, apperr.KindImmutableFieldViolation, apperr.KindOf(err), id)
		_, err = env.svc.Milestone.Update(ctx, "CTR-1", id, &MilestoneUpdate{Percentage: floatPtr(10)}, manager)
		assert.Equal(t, apperr.KindImmutableFieldViolation, apperr.KindOf(err), id)
		_, err = env.svc.Milestone.Update(ctx, "CTR-1", id, &MilestoneUpdate{TargetDate: timePtr(testutil.Date(t, "2025-09-01"))}, manager)
		assert.Equal(t, apperr.KindImmutableFieldViolation, apperr.KindOf(err), id)
	}

	// descriptive fields stay editable
	res, err := env.svc.Milestone.Update(ctx, "CTR-1", "MS-1", &MilestoneUpdate{Description: stringPtr("Signed off")}, manager)
	require.NoError(t, err)
	assert.Equal(t, "Signed off", res.Milestone.Description)
	assert.Equal(t, 3000.0, res.Milestone.Value)
	assert.Equal(t, testutil.Date(t, "2025-05-01"), res.Milestone.TargetDate.UTC())
}

func TestMilestoneService_CompletionWarnings(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 10000, "2025-01-01", "2025-12-31")
	env.createMilestone(t, "CTR-1", "MS-1", 10, "2025-02-01")
	env.createMilestone(t, "CTR-1", "MS-2", 20, "2025-03-01", "MS-1")

	res, err := env.svc.Milestone.Update(ctx, "CTR-1", "MS-2", &MilestoneUpdate{
		Status:         models.MilestoneStatusCompleted,
		CompletionDate: timePtr(testutil.Date(t, "2025-03-11")),
		ActualValue:    floatPtr(2500),
	}, manager)
	require.NoError(t, err, "warnings never fail the write")
	require.Len(t, res.Milestone.CompletionWarnings, 3)
	assert.Contains(t, res.Milestone.CompletionWarnings[0], "10 days after target date")
	assert.Contains(t, res.Milestone.CompletionWarnings[1], "exceeds planned value")
	assert.Contains(t, res.Milestone.CompletionWarnings[2], "dependency MS-1")

	stored, err := env.repos.Milestone.FindByMilestoneID(ctx, "MS-2")
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusCompleted, stored.Status)
	require.NotNil(t, stored.ActualValue)
	assert.Equal(t, 2500.0, *stored.ActualValue)

	_, err = env.svc.Milestone.Update(ctx, "CTR-1", "MS-2", &MilestoneUpdate{Status: models.MilestoneStatusInProgress}, manager)
	assert.Equal(t, apperr.KindInvalidStatusTransition, apperr.KindOf(err))
}

func TestMilestoneService_BulkUpdate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 10000, "2025-01-01", "2025-12-31")
	env.createContract(t, "CTR-2", 10000, "2025-01-01", "2025-12-31")

	var items []BulkMilestoneItem
	for i := 1; i <= 30; i++ {
		contractID := "CTR-1"
		if i%2 == 0 {
			contractID = "CTR-2"
		}
		id := fmt.Sprintf("MS-%02d", i)
		env.createMilestone(t, contractID, id, 3, "2025-06-01")
		items = append(items, BulkMilestoneItem{
			ContractID:  contractID,
			MilestoneID: id,
			Update:      MilestoneUpdate{Status: models.MilestoneStatusInProgress},
		})
	}
	items = append(items,
		BulkMilestoneItem{MilestoneID: "MS-01", Update: MilestoneUpdate{Status: models.MilestoneStatusCompleted}},
		BulkMilestoneItem{MilestoneID: "MS-404", Update: MilestoneUpdate{Status: models.MilestoneStatusCompleted}},
		BulkMilestoneItem{Update: MilestoneUpdate{Status: models.MilestoneStatusCompleted}},
	)

	results := env.svc.Milestone.BulkUpdate(ctx, items, manager)
	require.Len(t, results, len(items))
	for i := 0; i < 30; i++ {
		assert.True(t, results[i].Success, results[i].Error)
	}
	assert.True(t, results[30].Success, "contract is resolved from the milestone")
	assert.False(t, results[31].Success)
	assert.Equal(t, string(apperr.KindNotFound), results[31].ErrorKind)
	assert.False(t, results[32].Success)
	assert.Equal(t, string(apperr.KindInvalidInput), results[32].ErrorKind)

	completed, err := env.svc.Milestone.List(ctx, "CTR-1", MilestoneFilter{Status: models.MilestoneStatusCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestMilestoneProgressAndRisk(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	notStarted := &models.Milestone{Status: models.MilestoneStatusNotStarted, TargetDate: now.AddDate(0, 0, 5), AssignedTo: "pm"}
	p := milestoneProgress(notStarted, now)
	assert.Equal(t, 5, p.DaysRemaining)
	assert.True(t, p.IsOnTrack)
	assert.Equal(t, models.RiskMedium, milestoneRisk(notStarted, now).RiskLevel)

	overdue := &models.Milestone{Status: models.MilestoneStatusInProgress, TargetDate: now.AddDate(0, 0, -10), AssignedTo: "pm"}
	assert.False(t, milestoneProgress(overdue, now).IsOnTrack)
	r := milestoneRisk(overdue, now)
	assert.Equal(t, models.RiskCritical, r.RiskLevel)
	assert.NotEmpty(t, r.MitigationPlans)

	done := &models.Milestone{Status: models.MilestoneStatusCompleted, TargetDate: now.AddDate(0, 0, -10)}
	assert.Equal(t, 100.0, milestoneProgress(done, now).PercentageComplete)
	assert.Equal(t, models.RiskLow, milestoneRisk(done, now).RiskLevel)

	unowned := &models.Milestone{Status: models.MilestoneStatusInProgress, TargetDate: now.AddDate(0, 0, 30)}
	assert.Equal(t, models.RiskMedium, milestoneRisk(unowned, now).RiskLevel)
}
