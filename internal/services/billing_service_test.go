package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/testutil"
)

func TestTaxFor(t *testing.T) {
	tax, total := taxFor(50000, 8.25, true)
	assert.Equal(t, 4125.00, tax)
	assert.Equal(t, 54125.00, total)

	tax, total = taxFor(999.99, 7.5, true)
	assert.Equal(t, 75.0, tax)
	assert.Equal(t, 1074.99, total)

	tax, total = taxFor(1200, 8.25, false)
	assert.Zero(t, tax)
	assert.Equal(t, 1200.0, total)
}

func TestBillingService_CreateComputesTax(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 100000, "2025-01-01", "2025-12-31")

	b, err := env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
		ScheduleID:    "BS-1",
		BillingDate:   testutil.Date(t, "2025-02-01"),
		Amount:        50000,
		TaxApplicable: true,
		TaxRate:       8.25,
		Description:   "Phase one",
	}, manager)
	require.NoError(t, err)
	assert.Equal(t, models.BillingTypeOneTime, b.BillingType)
	assert.Equal(t, models.BillingStatusPending, b.Status)
	assert.Equal(t, 4125.00, b.TaxAmount)
	assert.Equal(t, 54125.00, b.TotalAmount)
	assert.Equal(t, "USD", b.Currency)

	_, err = env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
		ScheduleID:  "BS-1",
		BillingDate: testutil.Date(t, "2025-03-01"),
		Amount:      10,
	}, manager)
	assert.Equal(t, apperr.KindDuplicateKey, apperr.KindOf(err))

	_, err = env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
		BillingDate: testutil.Date(t, "2026-03-01"),
		Amount:      10,
	}, manager)
	assert.Equal(t, apperr.KindOutOfPeriod, apperr.KindOf(err))

	_, err = env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
		BillingDate: testutil.Date(t, "2025-03-01"),
		Amount:      10,
		Status:      models.BillingStatusPaid,
	}, manager)
	assert.Equal(t, apperr.KindInvalidStatusTransition, apperr.KindOf(err))

	_, err = env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
		BillingDate:   testutil.Date(t, "2025-03-01"),
		Amount:        10,
		TaxApplicable: true,
		TaxRate:       120,
	}, manager)
	assert.Equal(t, apperr.KindInvalidValue, apperr.KindOf(err))
}

func TestBillingService_PaidIsImmutable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 100000, "2025-01-01", "2025-12-31")

	_, err := env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
		ScheduleID:  "BS-1",
		BillingDate: testutil.Date(t, "2025-02-01"),
		Amount:      1000,
	}, manager)
	require.NoError(t, err)

	invoiced, err := env.svc.Billing.Update(ctx, "CTR-1", "BS-1", &BillingUpdate{
		Status:      models.BillingStatusInvoiced,
		InvoiceDate: timePtr(testutil.Date(t, "2025-02-01")),
	}, manager)
	require.NoError(t, err)
	assert.Equal(t, "INV-BS-1", invoiced.InvoiceNumber)
	require.NotNil(t, invoiced.DueDate)
	assert.Equal(t, testutil.Date(t, "2025-03-03"), invoiced.DueDate.UTC())

	paid, err := env.svc.Billing.Update(ctx, "CTR-1", "BS-1", &BillingUpdate{
		Status:           models.BillingStatusPaid,
		PaymentDate:      timePtr(testutil.Date(t, "2025-02-20")),
		PaymentMethod:    "wire",
		PaymentReference: "TX-991",
	}, manager)
	require.NoError(t, err)
	require.NotNil(t, paid.PaymentAmount)
	assert.Equal(t, 1000.0, *paid.PaymentAmount)

	_, err = env.svc.Billing.Update(ctx, "CTR-1", "BS-1", &BillingUpdate{Description: stringPtr("changed")}, manager)
	assert.Equal(t, apperr.KindImmutablePaidRecord, apperr.KindOf(err))
	_, err = env.svc.Billing.Update(ctx, "CTR-1", "BS-1", &BillingUpdate{Status: models.BillingStatusCancelled}, manager)
	assert.Equal(t, apperr.KindImmutablePaidRecord, apperr.KindOf(err))

	stored, err := env.repos.BillingSchedule.FindByScheduleID(ctx, "BS-1")
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusPaid, stored.Status)
	assert.Empty(t, stored.Description)
	assert.Equal(t, "TX-991", stored.PaymentReference)
}

func TestBillingService_StatusTransitions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 100000, "2025-01-01", "2025-12-31")
	_, err := env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
		ScheduleID:  "BS-1",
		BillingDate: testutil.Date(t, "2025-02-01"),
		Amount:      1000,
	}, manager)
	require.NoError(t, err)

	_, err = env.svc.Billing.Update(ctx, "CTR-1", "BS-1", &BillingUpdate{Status: models.BillingStatusPaid}, manager)
	assert.Equal(t, apperr.KindInvalidStatusTransition, apperr.KindOf(err), "payment requires an invoice")

	_, err = env.svc.Billing.Update(ctx, "CTR-2", "BS-1", &BillingUpdate{Status: models.BillingStatusScheduled}, manager)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = env.svc.Billing.Update(ctx, "CTR-1", "BS-1", &BillingUpdate{Status: "Refunded"}, manager)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestBillingService_Recurring(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 120000, "2025-01-31", "2025-12-31")

	b, err := env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
		ScheduleID: "BS-R",
		Frequency:  models.FrequencyMonthly,
		Amount:     10000,
	}, manager)
	require.NoError(t, err)
	assert.Equal(t, models.BillingTypeRecurring, b.BillingType)
	require.Len(t, b.RecurringSchedule, 12)
	assert.Equal(t, testutil.Date(t, "2025-01-31"), b.RecurringSchedule[0].BillingDate)
	assert.Equal(t, testutil.Date(t, "2025-02-28"), b.RecurringSchedule[1].BillingDate)
	assert.Equal(t, testutil.Date(t, "2025-03-31"), b.RecurringSchedule[2].BillingDate)
	assert.Equal(t, 12, b.RecurringSchedule[11].Sequence)

	_, err = env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
		Frequency: "Fortnightly",
		Amount:    10,
	}, manager)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	end := testutil.Date(t, "2026-06-30")
	_, err = env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
		Frequency:    models.FrequencyQuarterly,
		Amount:       10,
		RecurringEnd: &end,
	}, manager)
	assert.Equal(t, apperr.KindOutOfPeriod, apperr.KindOf(err))
}

func TestBillingScheduleGenerator(t *testing.T) {
	g := NewBillingScheduleGenerator()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	weekly, err := g.Generate(models.FrequencyWeekly, start, start.AddDate(0, 0, 28), 100)
	require.NoError(t, err)
	assert.Len(t, weekly, 5)

	annual, err := g.Generate(models.FrequencyAnnually, start, start.AddDate(3, 0, 0), 100)
	require.NoError(t, err)
	assert.Len(t, annual, 4)

	due := g.Due(weekly, start.AddDate(0, 0, 10))
	assert.Len(t, due, 2)

	_, err = g.Generate(models.FrequencyMonthly, start, start.AddDate(0, 0, -1), 100)
	assert.Equal(t, apperr.KindInvalidDateRange, apperr.KindOf(err))

	assert.Equal(t, "BS-9-3", OccurrenceScheduleID("BS-9", 3))
}

func TestBillingService_MarkOverdueAndTracking(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createContract(t, "CTR-1", 100000, "2021-01-01", "2035-12-31")

	for _, id := range []string{"BS-OLD", "BS-NEW"} {
		_, err := env.svc.Billing.Create(ctx, "CTR-1", &BillingInput{
			ScheduleID:  id,
			BillingDate: testutil.Date(t, "2021-02-01"),
			Amount:      500,
		}, manager)
		require.NoError(t, err)
	}
	_, err := env.svc.Billing.Update(ctx, "CTR-1", "BS-OLD", &BillingUpdate{
		Status:      models.BillingStatusInvoiced,
		InvoiceDate: timePtr(testutil.Date(t, "2021-02-01")),
	}, manager)
	require.NoError(t, err)
	_, err = env.svc.Billing.Update(ctx, "CTR-1", "BS-NEW", &BillingUpdate{
		Status:  models.BillingStatusInvoiced,
		DueDate: timePtr(testutil.Date(t, "2035-01-01")),
	}, manager)
	require.NoError(t, err)

	moved, err := env.svc.Workflow.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	schedules, err := env.svc.Billing.List(ctx, "CTR-1", BillingFilter{IncludePaymentTracking: true})
	require.NoError(t, err)
	byID := map[string]models.BillingSchedule{}
	for _, s := range schedules {
		byID[s.ScheduleID] = s
	}
	assert.Equal(t, models.BillingStatusOverdue, byID["BS-OLD"].Status)
	assert.Equal(t, models.BillingStatusInvoiced, byID["BS-NEW"].Status)
	require.NotNil(t, byID["BS-NEW"].PaymentTracking)
	assert.Equal(t, "awaiting_payment", byID["BS-NEW"].PaymentTracking.PaymentStatus)

	alerts, total, err := env.svc.Alert.List(ctx, &repository.AlertQuery{Type: models.AlertTypeBillingDue})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, alerts, 1)
	assert.Equal(t, "CTR-1", alerts[0].ContractID)

	// a second run finds nothing new
	moved, err = env.svc.Workflow.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
}
