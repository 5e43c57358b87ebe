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

// seedPortfolio creates two clients: CL-1 with a paid invoice and a completed
// milestone, CL-2 with a single invoice long past its due date.
func seedPortfolio(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()

	for id, name := range map[string]string{"CL-1": "Globex", "CL-2": "Initech"} {
		require.NoError(t, env.repos.Client.Create(ctx, &models.Client{ClientID: id, CompanyName: name}))
	}
	for _, c := range []struct {
		id, client string
		value      float64
	}{{"CTR-A", "CL-1", 100000}, {"CTR-B", "CL-2", 50000}} {
		_, err := env.svc.Contract.Create(ctx, &ContractInput{
			ContractID:     c.id,
			ContractNumber: "CN-" + c.id,
			Title:          "Contract " + c.id,
			ClientID:       c.client,
			StartDate:      testutil.Date(t, "2025-01-01"),
			EndDate:        testutil.Date(t, "2025-12-31"),
			TotalValue:     c.value,
		}, manager)
		require.NoError(t, err)
	}

	env.createMilestone(t, "CTR-A", "MS-1", 40, "2025-06-01")
	_, err := env.svc.Milestone.Update(ctx, "CTR-A", "MS-1", &MilestoneUpdate{
		Status:         models.MilestoneStatusCompleted,
		CompletionDate: timePtr(testutil.Date(t, "2025-05-30")),
	}, manager)
	require.NoError(t, err)

	_, err = env.svc.Billing.Create(ctx, "CTR-A", &BillingInput{
		ScheduleID:  "BS-A",
		BillingDate: testutil.Date(t, "2025-02-01"),
		Amount:      30000,
	}, manager)
	require.NoError(t, err)
	_, err = env.svc.Billing.Update(ctx, "CTR-A", "BS-A", &BillingUpdate{
		Status:      models.BillingStatusInvoiced,
		InvoiceDate: timePtr(testutil.Date(t, "2025-02-01")),
	}, manager)
	require.NoError(t, err)
	_, err = env.svc.Billing.Update(ctx, "CTR-A", "BS-A", &BillingUpdate{
		Status:      models.BillingStatusPaid,
		PaymentDate: timePtr(testutil.Date(t, "2025-02-20")),
	}, manager)
	require.NoError(t, err)

	_, err = env.svc.Billing.Create(ctx, "CTR-B", &BillingInput{
		ScheduleID:  "BS-B",
		BillingDate: testutil.Date(t, "2025-02-01"),
		Amount:      10000,
	}, manager)
	require.NoError(t, err)
	_, err = env.svc.Billing.Update(ctx, "CTR-B", "BS-B", &BillingUpdate{
		Status:  models.BillingStatusInvoiced,
		DueDate: timePtr(testutil.Date(t, "2025-03-01")),
	}, manager)
	require.NoError(t, err)
}

func TestReportService_Financial(t *testing.T) {
	env := newTestEnv(t, nil)
	seedPortfolio(t, env)

	report, err := env.svc.Report.Financial(context.Background(), ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, "USD", report.Currency)
	assert.Equal(t, 150000.0, report.TotalContractValue)
	assert.Zero(t, report.AmendmentImpact)
	assert.Equal(t, 40000.0, report.RecognizedRevenue)
	assert.Equal(t, 10000.0, report.DeferredRevenue)
	assert.Equal(t, 10000.0, report.UnbilledRevenue)
	assert.Len(t, report.Contracts, 2)

	assert.Equal(t, BillingMetrics{
		Billed:         40000,
		Paid:           30000,
		Outstanding:    10000,
		Overdue:        10000,
		InvoiceCount:   2,
		OverdueCount:   1,
		CollectionRate: 75,
	}, report.Billing)
}

func TestReportService_Performance(t *testing.T) {
	env := newTestEnv(t, nil)
	seedPortfolio(t, env)

	report, err := env.svc.Report.Performance(context.Background(), ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalContracts)
	assert.Zero(t, report.ActiveContracts)
	assert.Equal(t, 1, report.TotalMilestones)
	assert.Equal(t, 1, report.CompletedMilestones)
	assert.Equal(t, 100.0, report.CompletionRate)
	assert.Equal(t, 100.0, report.OnTimeDelivery)
	assert.Equal(t, 4.6, report.ClientSatisfaction)
	assert.Equal(t, 1, report.RiskAssessment.OverdueBillings)
	assert.Equal(t, 2, report.RiskAssessment.ByLevel[models.RiskLow])

	require.Len(t, report.Profitability, 1)
	row := report.Profitability[0]
	assert.Equal(t, models.ContractTypeFixedPrice, row.ContractType)
	assert.Equal(t, 2, row.Contracts)
	assert.Equal(t, 150000.0, row.TotalValue)
	assert.Equal(t, 30000.0, row.Collected)
	assert.Equal(t, 100.0, row.RevenueShare)
}

func TestReportService_ClientAnalysis(t *testing.T) {
	env := newTestEnv(t, nil)
	seedPortfolio(t, env)

	report, err := env.svc.Report.ClientAnalysis(context.Background(), ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalClients)
	assert.Equal(t, 150000.0, report.TotalValue)
	require.Len(t, report.Clients, 2)

	globex, initech := report.Clients[0], report.Clients[1]
	assert.Equal(t, "Globex", globex.CompanyName)
	assert.Equal(t, 30000.0, globex.Paid)
	assert.Equal(t, 1.0, globex.OnTimePaymentRatio)
	assert.Equal(t, "CL-2", initech.ClientID)
	assert.Equal(t, 10000.0, initech.Overdue)
	assert.Zero(t, initech.OnTimePaymentRatio)
}

func TestReportService_CacheAndRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	seedPortfolio(t, env)

	first, err := env.svc.Report.Financial(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 150000.0, first.TotalContractValue)

	_, err = env.svc.Amendment.Create(ctx, "CTR-A", &AmendmentInput{
		AmendmentNumber: "AMD-1",
		AmendmentDate:   testutil.Date(t, "2025-07-01"),
		Type:            models.AmendmentTypeScopeChange,
		ValueChange:     10000,
	}, manager)
	require.NoError(t, err)
	for _, status := range []string{models.AmendmentStatusApproved, models.AmendmentStatusImplemented} {
		_, err = env.svc.Amendment.SetStatus(ctx, "CTR-A", "AMD-1", &AmendmentUpdate{Status: status}, admin)
		require.NoError(t, err)
	}

	cached, err := env.svc.Report.Financial(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 150000.0, cached.TotalContractValue, "served from cache")

	fresh, err := env.svc.Report.Financial(ctx, ReportFilter{Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, 160000.0, fresh.TotalContractValue)
	assert.Equal(t, 10000.0, fresh.AmendmentImpact)
	assert.Equal(t, 44000.0, fresh.RecognizedRevenue)

	byClient, err := env.svc.Report.Financial(ctx, ReportFilter{ClientID: "CL-2"})
	require.NoError(t, err)
	assert.Equal(t, 50000.0, byClient.TotalContractValue)

	require.NoError(t, env.svc.Report.RefreshCache(ctx))
}

func TestReportService_RejectsInvertedPeriod(t *testing.T) {
	env := newTestEnv(t, nil)
	start := testutil.Date(t, "2025-06-01")
	end := testutil.Date(t, "2025-01-01")

	_, err := env.svc.Report.Performance(context.Background(), ReportFilter{StartDate: &start, EndDate: &end})
	assert.Equal(t, apperr.KindInvalidDateRange, apperr.KindOf(err))
}
